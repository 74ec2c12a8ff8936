package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"
)

// TraceConfig configures the event tracing wrapper.
type TraceConfig struct {
	// Dir is the output directory. One .jsonl file per run.
	Dir string

	// Redact trims prompts in logged invocations to a short prefix.
	Redact bool

	// OnEvent is a real-time event hook for live debugging.
	OnEvent func(Event)
}

// TraceEntry is a single line in the JSONL trace file.
type TraceEntry struct {
	Timestamp  string      `json:"ts"`
	Type       string      `json:"type"` // "run_start", "event", "run_end"
	Backend    string      `json:"backend,omitempty"`
	Invocation *Invocation `json:"invocation,omitempty"` // For run_start
	Kind       string      `json:"kind,omitempty"`       // Event kind string
	Event      *Event      `json:"event,omitempty"`      // The raw event
	LatencyMs  int64       `json:"latency_ms,omitempty"` // Ms since last event
	TotalMs    int64       `json:"total_ms,omitempty"`   // For run_end
	Usage      *UsageEvent `json:"usage,omitempty"`      // For run_end
	Error      string      `json:"error,omitempty"`      // For run_end on error
}

// traceBackend wraps a Backend with JSONL event tracing.
type traceBackend struct {
	inner  Backend
	cfg    TraceConfig
	runSeq atomic.Int64
}

// WithTrace wraps any Backend with tracing that records the full run
// lifecycle to JSONL files with timestamps and latency tracking. Dropped
// output lines are invisible here too; the trace shows what the adapter
// parsed, not the raw subprocess output.
func WithTrace(b Backend, cfg TraceConfig) Backend {
	return &traceBackend{inner: b, cfg: cfg}
}

func (t *traceBackend) Name() string         { return t.inner.Name() }
func (t *traceBackend) Executable() string   { return t.inner.Executable() }
func (t *traceBackend) DefaultModel() string { return t.inner.DefaultModel() }

func (t *traceBackend) RunStreaming(ctx context.Context, inv Invocation, onEvent func(Event) error) error {
	seq := t.runSeq.Add(1)
	w, err := t.openLog(seq)
	if err != nil {
		// Fall through without tracing if we can't open the file.
		return t.inner.RunStreaming(ctx, inv, onEvent)
	}
	defer w.Close()

	logInv := inv
	if t.cfg.Redact {
		logInv.Prompt = redactString(inv.Prompt)
	}

	runStart := time.Now()
	t.writeLine(w, TraceEntry{
		Timestamp:  runStart.Format(time.RFC3339Nano),
		Type:       "run_start",
		Backend:    t.inner.Name(),
		Invocation: &logInv,
	})

	lastEvent := runStart
	var lastUsage *UsageEvent

	streamErr := t.inner.RunStreaming(ctx, inv, func(ev Event) error {
		now := time.Now()
		latency := now.Sub(lastEvent).Milliseconds()
		lastEvent = now

		if ev.Kind == EventUsage {
			lastUsage = ev.Usage
		}

		t.writeLine(w, TraceEntry{
			Timestamp: now.Format(time.RFC3339Nano),
			Type:      "event",
			Kind:      ev.Kind.String(),
			Event:     &ev,
			LatencyMs: latency,
		})

		if t.cfg.OnEvent != nil {
			t.cfg.OnEvent(ev)
		}

		return onEvent(ev)
	})

	endEntry := TraceEntry{
		Timestamp: time.Now().Format(time.RFC3339Nano),
		Type:      "run_end",
		TotalMs:   time.Since(runStart).Milliseconds(),
		Usage:     lastUsage,
	}
	if streamErr != nil {
		endEntry.Error = streamErr.Error()
	}
	t.writeLine(w, endEntry)

	return streamErr
}

func (t *traceBackend) RunAggregate(ctx context.Context, inv Invocation) (*Result, error) {
	seq := t.runSeq.Add(1)
	w, err := t.openLog(seq)
	if err != nil {
		return t.inner.RunAggregate(ctx, inv)
	}
	defer w.Close()

	logInv := inv
	if t.cfg.Redact {
		logInv.Prompt = redactString(inv.Prompt)
	}

	runStart := time.Now()
	t.writeLine(w, TraceEntry{
		Timestamp:  runStart.Format(time.RFC3339Nano),
		Type:       "run_start",
		Backend:    t.inner.Name(),
		Invocation: &logInv,
	})

	res, runErr := t.inner.RunAggregate(ctx, inv)

	endEntry := TraceEntry{
		Timestamp: time.Now().Format(time.RFC3339Nano),
		Type:      "run_end",
		TotalMs:   time.Since(runStart).Milliseconds(),
	}
	if res != nil {
		endEntry.Usage = &res.Usage
	}
	if runErr != nil {
		endEntry.Error = runErr.Error()
	}
	t.writeLine(w, endEntry)

	return res, runErr
}

func (t *traceBackend) openLog(seq int64) (*os.File, error) {
	if err := os.MkdirAll(t.cfg.Dir, 0o755); err != nil {
		return nil, err
	}
	name := fmt.Sprintf("run-%s-%s-%03d.jsonl",
		t.inner.Name(),
		time.Now().Format("2006-01-02"),
		seq,
	)
	return os.Create(filepath.Join(t.cfg.Dir, name))
}

func (t *traceBackend) writeLine(f *os.File, entry TraceEntry) {
	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	f.Write(data)
	f.Write([]byte("\n"))
}

// redactString keeps the first 20 chars and replaces the rest.
func redactString(s string) string {
	if len(s) <= 20 {
		return s
	}
	return s[:20] + strings.Repeat("*", 10) + fmt.Sprintf(" [%d chars redacted]", len(s)-20)
}
