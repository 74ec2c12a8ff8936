package proxy

import (
	"encoding/hex"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"cliproxy/pkg/backend"
	"cliproxy/pkg/toolcall"
)

// newCompletionID returns a fresh chat completion identifier.
func newCompletionID() string {
	u := uuid.New()
	return "chatcmpl-" + hex.EncodeToString(u[:])[:24]
}

// buildChatResponse assembles the aggregate completion body. When the request
// declared tools, inline tool-call JSON is extracted from the content; a
// reply that was nothing but tool calls gets a null content field.
func buildChatResponse(id, model string, result *backend.Result, toolsEnabled bool) ChatResponse {
	msg := ChatMessage{Role: "assistant", Content: result.Content}
	finishReason := "stop"

	if toolsEnabled {
		calls, remaining := toolcall.Extract(result.Content)
		if len(calls) > 0 {
			finishReason = "tool_calls"
			msg.ToolCalls = toToolCalls(calls)
			if remaining == "" {
				msg.Content = nil
			} else {
				msg.Content = remaining
			}
		}
	}

	return ChatResponse{
		ID:      id,
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   model,
		Choices: []Choice{{Index: 0, Message: msg, FinishReason: finishReason}},
		Usage: Usage{
			PromptTokens:     result.Usage.InputTokens,
			CompletionTokens: result.Usage.OutputTokens,
			TotalTokens:      result.Usage.Total(),
		},
	}
}

func toToolCalls(calls []toolcall.Call) []ToolCall {
	out := make([]ToolCall, 0, len(calls))
	for _, c := range calls {
		out = append(out, ToolCall{
			ID:       c.ID,
			Type:     "function",
			Function: ToolFunction{Name: c.Name, Arguments: c.Arguments},
		})
	}
	return out
}

type streamState int

const (
	streamOpen streamState = iota
	streamClosed
)

// chunkStream turns normalized backend events into SSE chat chunks. It emits
// exactly one terminal chunk carrying a finish reason, followed by the
// [DONE] sentinel, no matter how the event sequence ends.
type chunkStream struct {
	w       http.ResponseWriter
	flusher http.Flusher
	id      string
	model   string
	backend string
	created int64
	tools   bool

	state    streamState
	roleSent bool
	sawTool  bool
	usage    *backend.UsageEvent
}

func newChunkStream(w http.ResponseWriter, flusher http.Flusher, id, model, backendName string, toolsEnabled bool) *chunkStream {
	return &chunkStream{
		w:       w,
		flusher: flusher,
		id:      id,
		model:   model,
		backend: backendName,
		created: time.Now().Unix(),
		tools:   toolsEnabled,
	}
}

// onEvent is the backend event callback. Returning an error aborts the run.
func (cs *chunkStream) onEvent(ev backend.Event) error {
	if cs.state == streamClosed {
		return nil
	}
	switch ev.Kind {
	case backend.EventMessageDelta:
		return cs.writeContent(ev.MessageDelta.Text)
	case backend.EventFunctionCall:
		if !cs.tools {
			return nil
		}
		return cs.writeToolCall(ev.FunctionCall)
	case backend.EventUsage:
		cs.usage = ev.Usage
	case backend.EventError:
		return &backend.ProtocolError{Backend: cs.backend, Message: ev.Error.Message}
	case backend.EventDone:
		// The terminal chunk is written by finish once the run returns.
	}
	return nil
}

func (cs *chunkStream) writeContent(text string) error {
	if text == "" {
		return nil
	}
	delta := Delta{Content: text}
	if !cs.roleSent {
		delta.Role = "assistant"
		cs.roleSent = true
	}
	return cs.writeChunk(DeltaChoice{Index: 0, Delta: delta})
}

func (cs *chunkStream) writeToolCall(call *backend.FunctionCallEvent) error {
	cs.sawTool = true
	delta := Delta{ToolCalls: []ToolCall{{
		ID:       call.CallID,
		Type:     "function",
		Function: ToolFunction{Name: call.Name, Arguments: call.Arguments},
	}}}
	if !cs.roleSent {
		delta.Role = "assistant"
		cs.roleSent = true
	}
	return cs.writeChunk(DeltaChoice{Index: 0, Delta: delta})
}

func (cs *chunkStream) writeChunk(choice DeltaChoice) error {
	chunk := StreamChunk{
		ID:      cs.id,
		Object:  "chat.completion.chunk",
		Created: cs.created,
		Model:   cs.model,
		Choices: []DeltaChoice{choice},
	}
	return writeSSE(cs.w, cs.flusher, chunk)
}

// finish writes the terminal chunk and the [DONE] sentinel. Safe to call at
// most once per stream; later events are ignored.
func (cs *chunkStream) finish(reason string) {
	if cs.state == streamClosed {
		return
	}
	cs.state = streamClosed
	_ = cs.writeChunk(DeltaChoice{Index: 0, Delta: Delta{}, FinishReason: &reason})
	_, _ = fmt.Fprint(cs.w, "data: [DONE]\n\n")
	cs.flusher.Flush()
}

// finishReason picks the success reason for the terminal chunk.
func (cs *chunkStream) finishReason() string {
	if cs.sawTool {
		return "tool_calls"
	}
	return "stop"
}

// Usage returns token counters captured from the stream, if any arrived.
func (cs *chunkStream) Usage() *backend.UsageEvent {
	return cs.usage
}
