package backend

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWithTraceRunStreaming(t *testing.T) {
	dir := t.TempDir()
	events := []Event{NewMessageDeltaEvent("hello"), NewUsageEvent(10, 0, 5), NewDoneEvent()}
	inner := NewMock(MockConfig{Responses: [][]Event{events}})
	traced := WithTrace(inner, TraceConfig{Dir: dir})

	if traced.Name() != "mock" {
		t.Errorf("expected 'mock', got %q", traced.Name())
	}

	var got []Event
	err := traced.RunStreaming(context.Background(), Invocation{Model: "test"}, func(ev Event) error {
		got = append(got, ev)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 events, got %d", len(got))
	}

	files, _ := filepath.Glob(filepath.Join(dir, "*.jsonl"))
	if len(files) != 1 {
		t.Fatalf("expected 1 trace file, got %d", len(files))
	}

	data, _ := os.ReadFile(files[0])
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	// run_start + 3 events + run_end = 5 lines
	if len(lines) != 5 {
		t.Fatalf("expected 5 trace lines, got %d", len(lines))
	}

	var startEntry TraceEntry
	json.Unmarshal([]byte(lines[0]), &startEntry)
	if startEntry.Type != "run_start" {
		t.Errorf("first line should be run_start, got %q", startEntry.Type)
	}

	var endEntry TraceEntry
	json.Unmarshal([]byte(lines[4]), &endEntry)
	if endEntry.Type != "run_end" {
		t.Errorf("last line should be run_end, got %q", endEntry.Type)
	}
	if endEntry.Usage == nil || endEntry.Usage.InputTokens != 10 {
		t.Error("run_end should carry the stream's usage")
	}
}

func TestWithTraceRedaction(t *testing.T) {
	dir := t.TempDir()
	inner := NewMock(MockConfig{Responses: [][]Event{{NewDoneEvent()}}})
	traced := WithTrace(inner, TraceConfig{Dir: dir, Redact: true})

	inv := Invocation{Prompt: "This is a very long prompt that should be partially redacted before logging"}
	traced.RunStreaming(context.Background(), inv, func(Event) error { return nil })

	files, _ := filepath.Glob(filepath.Join(dir, "*.jsonl"))
	data, _ := os.ReadFile(files[0])
	content := string(data)

	if strings.Contains(content, "should be partially redacted") {
		t.Error("prompt should be redacted in the trace")
	}
	if !strings.Contains(content, "chars redacted") {
		t.Error("trace should mark the redaction")
	}
}

func TestWithTraceOnEvent(t *testing.T) {
	dir := t.TempDir()
	events := []Event{NewMessageDeltaEvent("hi"), NewDoneEvent()}
	inner := NewMock(MockConfig{Responses: [][]Event{events}})

	var hookCalled int
	traced := WithTrace(inner, TraceConfig{
		Dir:     dir,
		OnEvent: func(Event) { hookCalled++ },
	})

	traced.RunStreaming(context.Background(), Invocation{}, func(Event) error { return nil })
	if hookCalled != 2 {
		t.Errorf("expected OnEvent called 2 times, got %d", hookCalled)
	}
}

func TestWithTraceRunAggregate(t *testing.T) {
	dir := t.TempDir()
	events := []Event{NewMessageDeltaEvent("result"), NewUsageEvent(8, 0, 3), NewDoneEvent()}
	inner := NewMock(MockConfig{Responses: [][]Event{events}})
	traced := WithTrace(inner, TraceConfig{Dir: dir})

	result, err := traced.RunAggregate(context.Background(), Invocation{})
	if err != nil {
		t.Fatal(err)
	}
	if result.Content != "result" {
		t.Errorf("content = %q", result.Content)
	}

	files, _ := filepath.Glob(filepath.Join(dir, "*.jsonl"))
	if len(files) != 1 {
		t.Fatalf("expected 1 trace file, got %d", len(files))
	}
	data, _ := os.ReadFile(files[0])
	if !strings.Contains(string(data), "run_end") {
		t.Error("trace should contain run_end")
	}
}

func TestWithTraceStreamError(t *testing.T) {
	dir := t.TempDir()
	events := []Event{NewMessageDeltaEvent("a"), NewMessageDeltaEvent("b")}
	inner := NewMock(MockConfig{
		Responses:  [][]Event{events},
		FailAfterN: 1,
	})
	traced := WithTrace(inner, TraceConfig{Dir: dir})

	err := traced.RunStreaming(context.Background(), Invocation{}, func(Event) error { return nil })
	if err == nil {
		t.Fatal("expected error")
	}

	files, _ := filepath.Glob(filepath.Join(dir, "*.jsonl"))
	data, _ := os.ReadFile(files[0])
	if !strings.Contains(string(data), "injected failure") {
		t.Error("run_end should record the error")
	}
}

func TestRedactString(t *testing.T) {
	short := "short"
	if redactString(short) != short {
		t.Error("short strings should not be redacted")
	}
	long := "this is a very long string that needs redacting"
	r := redactString(long)
	if !strings.Contains(r, "chars redacted") {
		t.Error("long strings should be redacted")
	}
	if !strings.HasPrefix(r, "this is a very long ") {
		t.Error("should keep first 20 chars")
	}
}
