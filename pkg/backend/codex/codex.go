// Package codex adapts the Codex CLI as an inference backend. Streaming runs
// pass --json and parse the JSONL event feed from stdout; aggregate runs
// parse the human-readable transcript codex prints on stderr.
package codex

import (
	"bufio"
	"bytes"
	"context"
	"os/exec"
	"strings"

	"cliproxy/pkg/backend"
)

// Alias is the synthetic model name that resolves to this backend's
// configured default model.
const Alias = "codex-local"

// Config holds configuration for the Codex adapter.
type Config struct {
	// Path is the codex binary name or path.
	Path string
	// Model is the default model when the request names none.
	Model string
	// Sandbox is the codex sandbox policy (e.g. "read-only", "workspace-write").
	Sandbox string
	// FullAuto adds --full-auto so codex approves its own actions.
	FullAuto bool
}

// Codex runs the codex binary as a subprocess, one process per request.
type Codex struct {
	cfg Config
}

var _ backend.Backend = (*Codex)(nil)

// New creates a Codex adapter with the given configuration.
func New(cfg Config) *Codex {
	if cfg.Path == "" {
		cfg.Path = "codex"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-5.2-codex"
	}
	if cfg.Sandbox == "" {
		cfg.Sandbox = "read-only"
	}
	return &Codex{cfg: cfg}
}

// Name returns "codex".
func (c *Codex) Name() string { return "codex" }

// Executable returns the configured codex binary.
func (c *Codex) Executable() string { return c.cfg.Path }

// DefaultModel returns the configured default model.
func (c *Codex) DefaultModel() string { return c.cfg.Model }

// resolveModel maps the requested model to a concrete codex model. The empty
// string and the routing alias both mean the configured default; anything
// else is passed through verbatim.
func (c *Codex) resolveModel(requested string) string {
	if requested == "" || requested == Alias {
		return c.cfg.Model
	}
	return requested
}

func (c *Codex) buildArgs(prompt, model string, streamJSON bool) []string {
	args := []string{"e", prompt, "--skip-git-repo-check", "-m", model, "-s", c.cfg.Sandbox}
	if c.cfg.FullAuto {
		args = append(args, "--full-auto")
	}
	if streamJSON {
		args = append(args, "--json")
	}
	return args
}

// RunStreaming launches codex with --json and delivers each parsed JSONL
// record as a normalized event. Lines that are not valid records are dropped.
// A done event is emitted after the process exits cleanly; a non-zero exit
// becomes an ExecError carrying stderr, returned after all parsed events
// were delivered.
func (c *Codex) RunStreaming(ctx context.Context, inv backend.Invocation, onEvent func(backend.Event) error) error {
	args := c.buildArgs(inv.Prompt, c.resolveModel(inv.Model), true)
	cmd := exec.CommandContext(ctx, c.cfg.Path, args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return &backend.ExecError{Backend: c.Name(), Err: err}
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Start(); err != nil {
		return &backend.ExecError{Backend: c.Name(), Err: err}
	}

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		ev, ok := decodeLine(line)
		if !ok {
			continue
		}
		if err := onEvent(ev); err != nil {
			_ = cmd.Process.Kill()
			_ = cmd.Wait()
			return err
		}
	}
	if scanErr := scanner.Err(); scanErr != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return &backend.ExecError{Backend: c.Name(), Err: scanErr}
	}
	if err := cmd.Wait(); err != nil {
		return &backend.ExecError{Backend: c.Name(), Stderr: strings.TrimSpace(stderr.String()), Err: err}
	}
	return onEvent(backend.NewDoneEvent())
}

// RunAggregate launches codex without --json and parses the reply transcript
// from stderr once the process exits.
func (c *Codex) RunAggregate(ctx context.Context, inv backend.Invocation) (*backend.Result, error) {
	args := c.buildArgs(inv.Prompt, c.resolveModel(inv.Model), false)
	cmd := exec.CommandContext(ctx, c.cfg.Path, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, &backend.ExecError{Backend: c.Name(), Stderr: strings.TrimSpace(stderr.String()), Err: err}
	}

	content, total := parseTranscript(stderr.String())
	in, out := splitTokens(total)
	return &backend.Result{
		Content: content,
		Usage:   backend.UsageEvent{InputTokens: in, OutputTokens: out},
	}, nil
}
