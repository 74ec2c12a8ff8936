package backend

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMockName(t *testing.T) {
	m := NewMock(MockConfig{})
	if m.Name() != "mock" {
		t.Errorf("expected 'mock', got %q", m.Name())
	}
	m2 := NewMock(MockConfig{BackendName: "test"})
	if m2.Name() != "test" {
		t.Errorf("expected 'test', got %q", m2.Name())
	}
}

func TestMockRunStreaming(t *testing.T) {
	events := []Event{
		NewMessageDeltaEvent("hello"),
		NewMessageDeltaEvent(" world"),
		NewDoneEvent(),
	}
	m := NewMock(MockConfig{Responses: [][]Event{events}})

	var got []Event
	err := m.RunStreaming(context.Background(), Invocation{Model: "test"}, func(ev Event) error {
		got = append(got, ev)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 events, got %d", len(got))
	}
	if got[0].MessageDelta.Text != "hello" {
		t.Errorf("expected 'hello', got %q", got[0].MessageDelta.Text)
	}
}

func TestMockNoMoreResponses(t *testing.T) {
	m := NewMock(MockConfig{Responses: [][]Event{{NewDoneEvent()}}})
	m.RunStreaming(context.Background(), Invocation{}, func(Event) error { return nil })
	err := m.RunStreaming(context.Background(), Invocation{}, func(Event) error { return nil })
	if err == nil {
		t.Fatal("expected error for exhausted responses")
	}
}

func TestMockRecord(t *testing.T) {
	m := NewMock(MockConfig{
		Record:    true,
		Responses: [][]Event{{NewDoneEvent()}},
	})
	m.RunStreaming(context.Background(), Invocation{Prompt: "hi", Model: "gpt-4"}, func(Event) error { return nil })
	rec := m.Recorded()
	if len(rec) != 1 || rec[0].Model != "gpt-4" || rec[0].Prompt != "hi" {
		t.Errorf("recorded invocations mismatch: %+v", rec)
	}
}

func TestMockFailAfterN(t *testing.T) {
	events := []Event{NewMessageDeltaEvent("a"), NewMessageDeltaEvent("b"), NewMessageDeltaEvent("c")}
	injectedErr := errors.New("boom")
	m := NewMock(MockConfig{
		Responses:  [][]Event{events},
		FailAfterN: 2,
		FailErr:    injectedErr,
	})

	var count int
	err := m.RunStreaming(context.Background(), Invocation{}, func(Event) error {
		count++
		return nil
	})
	if !errors.Is(err, injectedErr) {
		t.Errorf("expected injected error, got %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 events before failure, got %d", count)
	}
}

func TestMockContextCancel(t *testing.T) {
	events := []Event{NewMessageDeltaEvent("a"), NewMessageDeltaEvent("b")}
	m := NewMock(MockConfig{
		Responses:  [][]Event{events},
		EventDelay: 100 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := m.RunStreaming(ctx, Invocation{}, func(Event) error { return nil })
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestMockCallbackError(t *testing.T) {
	m := NewMock(MockConfig{Responses: [][]Event{{NewMessageDeltaEvent("a")}}})
	cbErr := errors.New("callback err")
	err := m.RunStreaming(context.Background(), Invocation{}, func(Event) error { return cbErr })
	if !errors.Is(err, cbErr) {
		t.Errorf("expected callback error, got %v", err)
	}
}

func TestMockRunAggregate(t *testing.T) {
	events := []Event{
		NewMessageDeltaEvent("hello"),
		NewMessageDeltaEvent(" there"),
		NewUsageEvent(100, 0, 50),
		NewDoneEvent(),
	}
	m := NewMock(MockConfig{Responses: [][]Event{events}})
	result, err := m.RunAggregate(context.Background(), Invocation{})
	if err != nil {
		t.Fatal(err)
	}
	if result.Content != "hello there" {
		t.Errorf("content = %q", result.Content)
	}
	if result.Usage.InputTokens != 100 || result.Usage.OutputTokens != 50 {
		t.Errorf("usage = %+v", result.Usage)
	}
}

func TestMockRunAggregateErrorEvent(t *testing.T) {
	events := []Event{NewMessageDeltaEvent("partial"), NewErrorEvent("backend broke")}
	m := NewMock(MockConfig{BackendName: "failing", Responses: [][]Event{events}})

	_, err := m.RunAggregate(context.Background(), Invocation{})
	if err == nil {
		t.Fatal("expected error")
	}
	var protoErr *ProtocolError
	if !errors.As(err, &protoErr) {
		t.Fatalf("error type = %T, want *ProtocolError", err)
	}
	if protoErr.Backend != "failing" || protoErr.Message != "backend broke" {
		t.Errorf("error = %+v", protoErr)
	}
}

func TestMockCallCount(t *testing.T) {
	m := NewMock(MockConfig{Responses: [][]Event{{NewDoneEvent()}, {NewDoneEvent()}}})
	m.RunStreaming(context.Background(), Invocation{}, func(Event) error { return nil })
	if m.CallCount() != 1 {
		t.Errorf("expected 1, got %d", m.CallCount())
	}
	m.RunStreaming(context.Background(), Invocation{}, func(Event) error { return nil })
	if m.CallCount() != 2 {
		t.Errorf("expected 2, got %d", m.CallCount())
	}
}
