// Package opencode adapts the OpenCode CLI as an inference backend. Both
// modes invoke `opencode run --format json` and parse the line-delimited
// JSON event feed from stdout; aggregate runs drain the same feed after the
// process exits.
package opencode

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
const Alias = "opencode-local"

// Config holds configuration for the OpenCode adapter.
type Config struct {
	// Path is the opencode binary name or path.
	Path string
	// Model is the default provider/model when the request names none.
	Model string
}

// OpenCode runs the opencode binary as a subprocess, one process per request.
type OpenCode struct {
	cfg Config
}

var _ backend.Backend = (*OpenCode)(nil)

// New creates an OpenCode adapter with the given configuration.
func New(cfg Config) *OpenCode {
	if cfg.Path == "" {
		cfg.Path = "opencode"
	}
	if cfg.Model == "" {
		cfg.Model = "anthropic/claude-sonnet-4"
	}
	return &OpenCode{cfg: cfg}
}

// Name returns "opencode".
func (o *OpenCode) Name() string { return "opencode" }

// Executable returns the configured opencode binary.
func (o *OpenCode) Executable() string { return o.cfg.Path }

// DefaultModel returns the configured default model.
func (o *OpenCode) DefaultModel() string { return o.cfg.Model }

func (o *OpenCode) resolveModel(requested string) string {
	if requested == "" || requested == Alias {
		return o.cfg.Model
	}
	return requested
}

func (o *OpenCode) buildArgs(prompt, model string) []string {
	return []string{"run", prompt, "--model", model, "--format", "json"}
}

// RunStreaming launches opencode and delivers each parsed event as it
// arrives. Unrecognized lines are dropped. A done event always terminates a
// successful run: one is taken from the feed's step_finish record when
// present, otherwise emitted after a clean exit.
func (o *OpenCode) RunStreaming(ctx context.Context, inv backend.Invocation, onEvent func(backend.Event) error) error {
	args := o.buildArgs(inv.Prompt, o.resolveModel(inv.Model))
	cmd := exec.CommandContext(ctx, o.cfg.Path, args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return &backend.ExecError{Backend: o.Name(), Err: err}
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Start(); err != nil {
		return &backend.ExecError{Backend: o.Name(), Err: err}
	}

	doneSent := false
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		for _, ev := range decodeLine(line) {
			if ev.Kind == backend.EventDone {
				doneSent = true
			}
			if err := onEvent(ev); err != nil {
				_ = cmd.Process.Kill()
				_ = cmd.Wait()
				return err
			}
		}
	}
	if scanErr := scanner.Err(); scanErr != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return &backend.ExecError{Backend: o.Name(), Err: scanErr}
	}
	if err := cmd.Wait(); err != nil {
		return &backend.ExecError{Backend: o.Name(), Stderr: strings.TrimSpace(stderr.String()), Err: err}
	}
	if !doneSent {
		return onEvent(backend.NewDoneEvent())
	}
	return nil
}

// RunAggregate launches opencode, waits for it to exit, and folds the event
// feed into a single result. Text parts are concatenated as-is; an error
// record anywhere in the feed fails the run with a ProtocolError.
func (o *OpenCode) RunAggregate(ctx context.Context, inv backend.Invocation) (*backend.Result, error) {
	args := o.buildArgs(inv.Prompt, o.resolveModel(inv.Model))
	cmd := exec.CommandContext(ctx, o.cfg.Path, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, &backend.ExecError{Backend: o.Name(), Stderr: strings.TrimSpace(stderr.String()), Err: err}
	}

	var sb strings.Builder
	res := &backend.Result{}
	for _, line := range strings.Split(stdout.String(), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		for _, ev := range decodeLine(line) {
			switch ev.Kind {
			case backend.EventMessageDelta:
				sb.WriteString(ev.MessageDelta.Text)
			case backend.EventUsage:
				res.Usage = *ev.Usage
			case backend.EventError:
				return nil, &backend.ProtocolError{Backend: o.Name(), Message: ev.Error.Message}
			}
		}
	}
	res.Content = sb.String()
	return res, nil
}
