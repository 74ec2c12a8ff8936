package router

import (
	"errors"
	"reflect"
	"testing"

	"cliproxy/pkg/backend"
)

func newTestSelector() *Selector {
	s := New(DefaultConfig())
	s.Register("codex", backend.NewMock(backend.MockConfig{BackendName: "codex"}))
	s.Register("opencode", backend.NewMock(backend.MockConfig{BackendName: "opencode"}))
	return s
}

func TestResolve(t *testing.T) {
	s := newTestSelector()

	tests := []struct {
		model string
		want  string
	}{
		{"codex-local", "codex"},
		{"opencode-local", "opencode"},
		{"anthropic/claude-sonnet-4", "opencode"},
		{"openai/gpt-4.1", "opencode"},
		{"opencode/grok-code", "opencode"},
		{"gpt-5.2-codex", "codex"},
		{"o3-mini", "codex"},
		{"completely-unknown", "codex"},
		{"", "codex"},
	}
	for _, tt := range tests {
		if got := s.Resolve(tt.model); got != tt.want {
			t.Errorf("Resolve(%q) = %q, want %q", tt.model, got, tt.want)
		}
	}
}

func TestSelect(t *testing.T) {
	s := newTestSelector()

	tests := []struct {
		model string
		want  string
	}{
		{"codex-local", "codex"},
		{"anthropic/claude-sonnet-4", "opencode"},
		{"anything-else", "codex"},
		{"", "codex"},
	}
	for _, tt := range tests {
		b, err := s.Select(tt.model)
		if err != nil {
			t.Errorf("Select(%q) error: %v", tt.model, err)
			continue
		}
		if b.Name() != tt.want {
			t.Errorf("Select(%q).Name() = %q, want %q", tt.model, b.Name(), tt.want)
		}
	}
}

func TestSelectUnregisteredBackend(t *testing.T) {
	// Default config routes anthropic/ models to opencode, which is not
	// registered here.
	s := New(DefaultConfig())
	s.Register("codex", backend.NewMock(backend.MockConfig{BackendName: "codex"}))

	_, err := s.Select("anthropic/claude-sonnet-4")
	var nfErr *NotFoundError
	if !errors.As(err, &nfErr) {
		t.Fatalf("error type = %T, want *NotFoundError", err)
	}
	if nfErr.Model != "anthropic/claude-sonnet-4" || nfErr.Backend != "opencode" {
		t.Errorf("NotFoundError = %+v", nfErr)
	}
}

func TestSelectNoDefaultRegistered(t *testing.T) {
	s := New(Config{Default: "codex"})

	if _, err := s.Select("anything"); err == nil {
		t.Error("expected NotFoundError with no backends registered")
	}
}

func TestAliasBeatsPrefix(t *testing.T) {
	s := New(Config{
		Patterns: map[string][]string{"opencode": {"special/"}},
		Aliases:  map[string]string{"special/pinned": "codex"},
		Default:  "codex",
	})

	if got := s.Resolve("special/pinned"); got != "codex" {
		t.Errorf("Resolve(special/pinned) = %q, want alias to win", got)
	}
	if got := s.Resolve("special/other"); got != "opencode" {
		t.Errorf("Resolve(special/other) = %q, want prefix match", got)
	}
}

func TestGet(t *testing.T) {
	s := newTestSelector()

	if b := s.Get("codex"); b == nil || b.Name() != "codex" {
		t.Errorf("Get(codex) = %v", b)
	}
	if b := s.Get("missing"); b != nil {
		t.Errorf("Get(missing) = %v, want nil", b)
	}
}

func TestNames(t *testing.T) {
	s := newTestSelector()

	if got := s.Names(); !reflect.DeepEqual(got, []string{"codex", "opencode"}) {
		t.Errorf("Names() = %v, want [codex opencode]", got)
	}
}

func TestBackends(t *testing.T) {
	s := newTestSelector()

	backends := s.Backends()
	if len(backends) != 2 {
		t.Fatalf("Backends() = %d entries, want 2", len(backends))
	}
	if backends[0].Name() != "codex" || backends[1].Name() != "opencode" {
		t.Errorf("Backends() order = %q, %q", backends[0].Name(), backends[1].Name())
	}
}

func TestAliasesOnlyForRegistered(t *testing.T) {
	s := New(DefaultConfig())
	s.Register("codex", backend.NewMock(backend.MockConfig{BackendName: "codex"}))

	if got := s.Aliases(); !reflect.DeepEqual(got, []string{"codex-local"}) {
		t.Errorf("Aliases() = %v, want [codex-local]", got)
	}

	s.Register("opencode", backend.NewMock(backend.MockConfig{BackendName: "opencode"}))
	if got := s.Aliases(); !reflect.DeepEqual(got, []string{"codex-local", "opencode-local"}) {
		t.Errorf("Aliases() = %v", got)
	}
}

func TestNotFoundErrorMessage(t *testing.T) {
	err := &NotFoundError{Model: "x/y", Backend: "z"}
	want := `no backend registered for model "x/y" (resolved to "z")`
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
