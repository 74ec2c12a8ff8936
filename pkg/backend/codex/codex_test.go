package codex

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"cliproxy/pkg/backend"
)

func TestResolveModel(t *testing.T) {
	c := New(Config{Model: "gpt-5.2-codex"})

	tests := []struct {
		requested string
		want      string
	}{
		{"", "gpt-5.2-codex"},
		{Alias, "gpt-5.2-codex"},
		{"gpt-4.1", "gpt-4.1"},
		{"o3-mini", "o3-mini"},
	}
	for _, tt := range tests {
		if got := c.resolveModel(tt.requested); got != tt.want {
			t.Errorf("resolveModel(%q) = %q, want %q", tt.requested, got, tt.want)
		}
	}
}

func TestBuildArgs(t *testing.T) {
	c := New(Config{Model: "m", Sandbox: "read-only"})
	got := c.buildArgs("say hi", "m", true)
	want := []string{"e", "say hi", "--skip-git-repo-check", "-m", "m", "-s", "read-only", "--json"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("args = %v, want %v", got, want)
	}

	got = c.buildArgs("say hi", "m", false)
	for _, a := range got {
		if a == "--json" {
			t.Error("aggregate args should not include --json")
		}
	}
}

func TestBuildArgsFullAuto(t *testing.T) {
	c := New(Config{FullAuto: true})
	got := c.buildArgs("p", "m", false)
	found := false
	for _, a := range got {
		if a == "--full-auto" {
			found = true
		}
	}
	if !found {
		t.Errorf("args = %v, want --full-auto present", got)
	}

	// Never inferred: absent unless configured.
	plain := New(Config{}).buildArgs("p", "m", false)
	for _, a := range plain {
		if a == "--full-auto" {
			t.Error("--full-auto appended without configuration")
		}
	}
}

func TestConfigDefaults(t *testing.T) {
	c := New(Config{})
	if c.Name() != "codex" {
		t.Errorf("name = %q", c.Name())
	}
	if c.Executable() != "codex" {
		t.Errorf("executable = %q", c.Executable())
	}
	if c.DefaultModel() != "gpt-5.2-codex" {
		t.Errorf("model = %q", c.DefaultModel())
	}
	if c.cfg.Sandbox != "read-only" {
		t.Errorf("sandbox = %q", c.cfg.Sandbox)
	}
}

// fakeCLI writes an executable shell script standing in for the codex binary.
func fakeCLI(t *testing.T, script string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "codex.sh")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o700); err != nil {
		t.Fatal(err)
	}
	return path
}

func collectEvents(t *testing.T, c *Codex, inv backend.Invocation) ([]backend.Event, error) {
	t.Helper()
	var events []backend.Event
	err := c.RunStreaming(context.Background(), inv, func(ev backend.Event) error {
		events = append(events, ev)
		return nil
	})
	return events, err
}

func TestRunStreamingParsesFeed(t *testing.T) {
	script := fakeCLI(t, `
printf '%s\n' 'Reading prompt...'
printf '%s\n' '{"type":"item.completed","item":{"type":"reasoning","text":"let me think"}}'
printf '%s\n' '{"type":"item.completed","item":{"type":"agent_message","text":"Hello"}}'
printf '%s\n' '{"type":"turn.completed","usage":{"input_tokens":100,"cached_input_tokens":0,"output_tokens":9}}'
`)
	c := New(Config{Path: script})

	events, err := collectEvents(t, c, backend.Invocation{Prompt: "hi"})
	if err != nil {
		t.Fatal(err)
	}

	// Banner and reasoning dropped; delta + usage + trailing done remain.
	if len(events) != 3 {
		t.Fatalf("events = %d, want 3: %+v", len(events), events)
	}
	if events[0].Kind != backend.EventMessageDelta || events[0].MessageDelta.Text != "Hello" {
		t.Errorf("event 0 = %+v", events[0])
	}
	if events[1].Kind != backend.EventUsage || events[1].Usage.InputTokens != 100 {
		t.Errorf("event 1 = %+v", events[1])
	}
	if events[2].Kind != backend.EventDone {
		t.Errorf("event 2 = %+v", events[2])
	}
}

func TestRunStreamingDeltaOrderPreserved(t *testing.T) {
	script := fakeCLI(t, `
printf '%s\n' '{"type":"item.completed","item":{"type":"agent_message","text":"one"}}'
printf '%s\n' '{"type":"item.completed","item":{"type":"agent_message","text":"two"}}'
printf '%s\n' '{"type":"item.completed","item":{"type":"agent_message","text":"three"}}'
`)
	c := New(Config{Path: script})

	events, err := collectEvents(t, c, backend.Invocation{})
	if err != nil {
		t.Fatal(err)
	}
	var got []string
	for _, ev := range events {
		if ev.Kind == backend.EventMessageDelta {
			got = append(got, ev.MessageDelta.Text)
		}
	}
	if !reflect.DeepEqual(got, []string{"one", "two", "three"}) {
		t.Errorf("deltas = %v", got)
	}
}

func TestRunStreamingNonZeroExit(t *testing.T) {
	script := fakeCLI(t, `
printf '%s\n' '{"type":"item.completed","item":{"type":"agent_message","text":"partial"}}'
echo "model unavailable" >&2
exit 3
`)
	c := New(Config{Path: script})

	events, err := collectEvents(t, c, backend.Invocation{})
	if err == nil {
		t.Fatal("expected error for non-zero exit")
	}
	var execErr *backend.ExecError
	if !errors.As(err, &execErr) {
		t.Fatalf("error type = %T, want *backend.ExecError", err)
	}
	if !strings.Contains(execErr.Stderr, "model unavailable") {
		t.Errorf("stderr = %q", execErr.Stderr)
	}

	// Events produced before the failure were still delivered; no done after.
	if len(events) != 1 || events[0].MessageDelta.Text != "partial" {
		t.Errorf("events = %+v", events)
	}
}

func TestRunStreamingLaunchFailure(t *testing.T) {
	c := New(Config{Path: filepath.Join(t.TempDir(), "missing-binary")})

	_, err := collectEvents(t, c, backend.Invocation{})
	var execErr *backend.ExecError
	if !errors.As(err, &execErr) {
		t.Fatalf("error = %v, want *backend.ExecError", err)
	}
}

func TestRunStreamingCallbackAborts(t *testing.T) {
	script := fakeCLI(t, `
printf '%s\n' '{"type":"item.completed","item":{"type":"agent_message","text":"a"}}'
printf '%s\n' '{"type":"item.completed","item":{"type":"agent_message","text":"b"}}'
`)
	c := New(Config{Path: script})

	cbErr := errors.New("client went away")
	err := c.RunStreaming(context.Background(), backend.Invocation{}, func(ev backend.Event) error {
		return cbErr
	})
	if !errors.Is(err, cbErr) {
		t.Errorf("err = %v, want callback error", err)
	}
}

func TestRunStreamingPassesArgs(t *testing.T) {
	// The script echoes its argv back as an agent_message.
	script := fakeCLI(t, `
printf '{"type":"item.completed","item":{"type":"agent_message","text":"%s"}}\n' "$*"
`)
	c := New(Config{Path: script, Model: "default-model", Sandbox: "workspace-write"})

	events, err := collectEvents(t, c, backend.Invocation{Prompt: "the-prompt", Model: Alias})
	if err != nil {
		t.Fatal(err)
	}
	argv := events[0].MessageDelta.Text
	for _, want := range []string{"e the-prompt", "-m default-model", "-s workspace-write", "--json"} {
		if !strings.Contains(argv, want) {
			t.Errorf("argv = %q, missing %q", argv, want)
		}
	}
}

func TestRunAggregateParsesStderrTranscript(t *testing.T) {
	script := fakeCLI(t, `
{
printf '%s\n' 'banner line'
printf '%s\n' 'codex'
printf '%s\n' 'The capital is Paris.'
printf '%s\n' 'tokens used'
printf '%s\n' '1,000'
} >&2
`)
	c := New(Config{Path: script})

	res, err := c.RunAggregate(context.Background(), backend.Invocation{Prompt: "capital of France?"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Content != "The capital is Paris." {
		t.Errorf("content = %q", res.Content)
	}
	if res.Usage.InputTokens != 800 || res.Usage.OutputTokens != 200 {
		t.Errorf("usage = %+v, want 80/20 split of 1000", res.Usage)
	}
}

func TestRunAggregateNonZeroExit(t *testing.T) {
	script := fakeCLI(t, `
echo "quota exceeded" >&2
exit 1
`)
	c := New(Config{Path: script})

	_, err := c.RunAggregate(context.Background(), backend.Invocation{})
	var execErr *backend.ExecError
	if !errors.As(err, &execErr) {
		t.Fatalf("error type = %T, want *backend.ExecError", err)
	}
	if !strings.Contains(execErr.Stderr, "quota exceeded") {
		t.Errorf("stderr = %q", execErr.Stderr)
	}
}

func TestRunStreamingContextCancel(t *testing.T) {
	script := fakeCLI(t, `
printf '%s\n' '{"type":"item.completed","item":{"type":"agent_message","text":"first"}}'
sleep 10 >/dev/null 2>&1
printf '%s\n' '{"type":"item.completed","item":{"type":"agent_message","text":"never"}}'
`)
	c := New(Config{Path: script})

	ctx, cancel := context.WithCancel(context.Background())
	var events []backend.Event
	err := c.RunStreaming(ctx, backend.Invocation{}, func(ev backend.Event) error {
		events = append(events, ev)
		cancel()
		return nil
	})
	if err == nil {
		t.Fatal("expected error after context cancellation")
	}
	for _, ev := range events {
		if ev.Kind == backend.EventMessageDelta && ev.MessageDelta.Text == "never" {
			t.Error("event delivered after cancellation")
		}
	}
}
