// Package backend defines the interface for CLI inference backends. Each
// agent CLI (Codex, OpenCode) is wrapped by an adapter that launches the
// binary as a subprocess, parses its output, and emits normalized events.
package backend

import (
	"context"
	"fmt"
)

// Backend is the interface all CLI adapters implement. Adapters own the full
// subprocess lifecycle for a run: argument construction, launch, output
// parsing, and cleanup on every exit path.
type Backend interface {
	// Name returns the backend identifier (e.g. "codex", "opencode").
	Name() string

	// Executable returns the configured binary name or path, used for
	// availability probes.
	Executable() string

	// DefaultModel returns the model used when the request does not name one.
	DefaultModel() string

	// RunStreaming executes a run and delivers normalized events via the
	// onEvent callback as the subprocess produces them. The callback may
	// return an error to abort the run; the subprocess is then killed and
	// the callback's error returned.
	RunStreaming(ctx context.Context, inv Invocation, onEvent func(Event) error) error

	// RunAggregate executes a run to completion and returns the collected
	// result.
	RunAggregate(ctx context.Context, inv Invocation) (*Result, error)
}

// Invocation is a single run request. Model is the raw identifier from the
// caller, possibly empty or a routing alias; the adapter resolves it to a
// concrete model before launching.
type Invocation struct {
	Prompt string `json:"prompt"`
	Model  string `json:"model,omitempty"`
}

// Result is the collected output of an aggregate run. Content is the
// backend's complete reply text with no tool-call post-processing applied.
type Result struct {
	Content string     `json:"content"`
	Usage   UsageEvent `json:"usage"`
}

// ExecError reports a subprocess that exited non-zero or failed to launch.
// Stderr holds the trimmed stderr capture when available.
type ExecError struct {
	Backend string
	Stderr  string
	Err     error
}

// Error returns the failure message, including captured stderr when present.
func (e *ExecError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("%s: %v: %s", e.Backend, e.Err, e.Stderr)
	}
	return fmt.Sprintf("%s: %v", e.Backend, e.Err)
}

// Unwrap returns the underlying process error.
func (e *ExecError) Unwrap() error { return e.Err }

// ProtocolError reports a failure the backend announced in-band (an error
// record in its output) even though the process exited cleanly.
type ProtocolError struct {
	Backend string
	Message string
}

// Error returns the backend's failure message.
func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s: %s", e.Backend, e.Message)
}
