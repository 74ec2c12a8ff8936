// Package router maps requested model names to registered backends. Routing
// is total over model strings: a synthetic alias wins, then a configured
// prefix, then the default backend. Selection fails only when the resolved
// backend has no registered adapter.
package router

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"cliproxy/pkg/backend"
	"cliproxy/pkg/backend/codex"
	"cliproxy/pkg/backend/opencode"
)

// Config configures model-to-backend routing.
type Config struct {
	// Patterns maps backend names to model name prefixes.
	// Example: {"opencode": ["anthropic/", "openai/"]}
	Patterns map[string][]string

	// Aliases maps synthetic model names to backend names.
	// Example: {"codex-local": "codex"}
	Aliases map[string]string

	// Default is the fallback backend name when no alias or prefix matches.
	Default string
}

// NotFoundError reports a model whose resolved backend is not registered.
type NotFoundError struct {
	Model   string
	Backend string
}

// Error describes the failed resolution.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no backend registered for model %q (resolved to %q)", e.Model, e.Backend)
}

// Selector routes model names to registered backends.
type Selector struct {
	backends map[string]backend.Backend
	config   Config
	mu       sync.RWMutex
}

// New creates a selector with the given routing configuration.
func New(cfg Config) *Selector {
	return &Selector{
		backends: make(map[string]backend.Backend),
		config:   cfg,
	}
}

// Register adds a backend to the selector under the given name.
func (s *Selector) Register(name string, b backend.Backend) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.backends[name] = b
}

// Resolve returns the backend name the given model routes to, without
// checking registration.
func (s *Selector) Resolve(model string) string {
	if name, ok := s.config.Aliases[model]; ok {
		return name
	}
	for backendName, prefixes := range s.config.Patterns {
		for _, prefix := range prefixes {
			if strings.HasPrefix(model, prefix) {
				return backendName
			}
		}
	}
	return s.config.Default
}

// Select returns the backend for the given model. Every model string resolves
// to some backend name; the error is a NotFoundError only when that backend
// was never registered.
func (s *Selector) Select(model string) (backend.Backend, error) {
	name := s.Resolve(model)

	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.backends[name]
	if !ok {
		return nil, &NotFoundError{Model: model, Backend: name}
	}
	return b, nil
}

// Get returns a backend by name, or nil if not registered.
func (s *Selector) Get(name string) backend.Backend {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.backends[name]
}

// Names returns all registered backend names in sorted order.
func (s *Selector) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.backends))
	for name := range s.backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Backends returns all registered backends sorted by name.
func (s *Selector) Backends() []backend.Backend {
	names := s.Names()
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]backend.Backend, 0, len(names))
	for _, name := range names {
		out = append(out, s.backends[name])
	}
	return out
}

// Aliases returns the synthetic model names that route to registered
// backends, in sorted order.
func (s *Selector) Aliases() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	aliases := make([]string, 0, len(s.config.Aliases))
	for alias, name := range s.config.Aliases {
		if _, ok := s.backends[name]; ok {
			aliases = append(aliases, alias)
		}
	}
	sort.Strings(aliases)
	return aliases
}

// DefaultConfig returns the standard routing table: each synthetic alias maps
// to its own backend, provider-prefixed models go to opencode, and everything
// else falls through to codex.
func DefaultConfig() Config {
	return Config{
		Patterns: map[string][]string{
			"opencode": {"anthropic/", "openai/", "opencode/"},
		},
		Aliases: map[string]string{
			codex.Alias:    "codex",
			opencode.Alias: "opencode",
		},
		Default: "codex",
	}
}
