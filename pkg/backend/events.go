package backend

import "time"

// EventKind identifies the type of normalized event emitted during a run.
type EventKind int

const (
	// EventMessageDelta indicates an assistant-visible text chunk.
	EventMessageDelta EventKind = iota
	// EventFunctionCall indicates a structured tool invocation.
	EventFunctionCall
	// EventUsage indicates token usage counters for the run.
	EventUsage
	// EventError indicates a failure reported in-band by the backend.
	EventError
	// EventDone indicates the run is complete.
	EventDone
)

// String returns the human-readable name of the event kind.
func (k EventKind) String() string {
	switch k {
	case EventMessageDelta:
		return "message_delta"
	case EventFunctionCall:
		return "function_call"
	case EventUsage:
		return "usage"
	case EventError:
		return "error"
	case EventDone:
		return "done"
	default:
		return "unknown"
	}
}

// Event is a normalized backend event. Exactly one of the typed fields is
// populated, determined by Kind. Events for a single run are delivered in the
// order the backend produced them, with at most one usage event per run and
// nothing after termination.
type Event struct {
	Kind      EventKind `json:"kind"`
	Timestamp time.Time `json:"timestamp"`

	MessageDelta *MessageDeltaEvent `json:"message_delta,omitempty"`
	FunctionCall *FunctionCallEvent `json:"function_call,omitempty"`
	Usage        *UsageEvent        `json:"usage,omitempty"`
	Error        *ErrorEvent        `json:"error,omitempty"`
}

// MessageDeltaEvent carries an incremental chunk of assistant text.
type MessageDeltaEvent struct {
	Text string `json:"text"`
}

// FunctionCallEvent carries a tool invocation requested by the backend.
// Arguments is an opaque JSON-encoded string passed through without
// validation.
type FunctionCallEvent struct {
	CallID    string `json:"call_id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// UsageEvent carries token usage counters reported by the backend.
type UsageEvent struct {
	InputTokens       int `json:"input_tokens"`
	CachedInputTokens int `json:"cached_input_tokens,omitempty"`
	OutputTokens      int `json:"output_tokens"`
}

// Total returns the combined input and output token count.
func (u UsageEvent) Total() int { return u.InputTokens + u.OutputTokens }

// ErrorEvent carries a failure message reported by the backend while its
// process was still running.
type ErrorEvent struct {
	Message string `json:"message"`
}

// NewMessageDeltaEvent creates a message delta event with the given text.
func NewMessageDeltaEvent(text string) Event {
	return Event{
		Kind:         EventMessageDelta,
		Timestamp:    time.Now(),
		MessageDelta: &MessageDeltaEvent{Text: text},
	}
}

// NewFunctionCallEvent creates a function call event.
func NewFunctionCallEvent(callID, name, args string) Event {
	return Event{
		Kind:         EventFunctionCall,
		Timestamp:    time.Now(),
		FunctionCall: &FunctionCallEvent{CallID: callID, Name: name, Arguments: args},
	}
}

// NewUsageEvent creates a usage event.
func NewUsageEvent(input, cached, output int) Event {
	return Event{
		Kind:      EventUsage,
		Timestamp: time.Now(),
		Usage:     &UsageEvent{InputTokens: input, CachedInputTokens: cached, OutputTokens: output},
	}
}

// NewErrorEvent creates an error event.
func NewErrorEvent(message string) Event {
	return Event{
		Kind:      EventError,
		Timestamp: time.Now(),
		Error:     &ErrorEvent{Message: message},
	}
}

// NewDoneEvent creates a done event signaling run completion.
func NewDoneEvent() Event {
	return Event{
		Kind:      EventDone,
		Timestamp: time.Now(),
	}
}
