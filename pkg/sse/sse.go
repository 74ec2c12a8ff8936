// Package sse parses an OpenAI-style chat-completions SSE stream from the
// client side: data frames holding chat.completion.chunk objects, terminated
// by a [DONE] sentinel. It is used by the examples and integration tests.
package sse

import (
	"bufio"
	"encoding/json"
	"errors"
	"io"
	"strings"
)

// Chunk is one chat.completion.chunk payload.
type Chunk struct {
	ID      string        `json:"id"`
	Object  string        `json:"object"`
	Created int64         `json:"created"`
	Model   string        `json:"model"`
	Choices []ChunkChoice `json:"choices"`
}

// ChunkChoice is one choice within a chunk. FinishReason is nil until the
// terminal chunk.
type ChunkChoice struct {
	Index        int     `json:"index"`
	Delta        Delta   `json:"delta"`
	FinishReason *string `json:"finish_reason"`
}

// Delta is the incremental message payload of a chunk.
type Delta struct {
	Role      string     `json:"role,omitempty"`
	Content   string     `json:"content,omitempty"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}

// ToolCall is a complete tool invocation carried by a chunk.
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function FunctionCall `json:"function"`
}

// FunctionCall names the function and its JSON-encoded arguments.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Event is one parsed SSE data frame.
type Event struct {
	Raw   json.RawMessage
	Value Chunk
}

var errStreamDone = errors.New("sse: stream done")

// ParseStream reads SSE frames from r and emits each parsed chunk. It
// returns nil once the [DONE] sentinel arrives or the stream ends; frames
// that are not valid chunk JSON are skipped.
func ParseStream(r io.Reader, emit func(Event) error) error {
	s := bufio.NewScanner(r)
	buf := make([]byte, 0, 64*1024)
	s.Buffer(buf, 1024*1024)

	var dataLines []string
	flush := func() error {
		if len(dataLines) == 0 {
			return nil
		}
		joined := strings.Join(dataLines, "\n")
		dataLines = dataLines[:0]
		trimmed := strings.TrimSpace(joined)
		if trimmed == "" {
			return nil
		}
		if trimmed == "[DONE]" {
			return errStreamDone
		}
		raw := json.RawMessage(joined)
		var ch Chunk
		if err := json.Unmarshal(raw, &ch); err != nil {
			return nil
		}
		return emit(Event{Raw: raw, Value: ch})
	}

	for s.Scan() {
		line := s.Text()
		if line == "" {
			if err := flush(); err != nil {
				if errors.Is(err, errStreamDone) {
					return nil
				}
				return err
			}
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}
		if strings.HasPrefix(line, "data:") {
			dataLines = append(dataLines, strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		}
	}
	if err := s.Err(); err != nil {
		return err
	}
	if err := flush(); err != nil && !errors.Is(err, errStreamDone) {
		return err
	}
	return nil
}

// Collector folds a chunk stream back into a complete message.
type Collector struct {
	role         string
	content      strings.Builder
	toolCalls    []ToolCall
	finishReason string
	chunks       int
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{}
}

// Observe accumulates one chunk.
func (c *Collector) Observe(ch Chunk) {
	c.chunks++
	if len(ch.Choices) == 0 {
		return
	}
	choice := ch.Choices[0]
	if choice.Delta.Role != "" {
		c.role = choice.Delta.Role
	}
	c.content.WriteString(choice.Delta.Content)
	c.toolCalls = append(c.toolCalls, choice.Delta.ToolCalls...)
	if choice.FinishReason != nil {
		c.finishReason = *choice.FinishReason
	}
}

// Role returns the assistant role announced by the first chunk.
func (c *Collector) Role() string { return c.role }

// Content returns the concatenated text deltas.
func (c *Collector) Content() string { return c.content.String() }

// ToolCalls returns all tool calls seen, in arrival order.
func (c *Collector) ToolCalls() []ToolCall { return c.toolCalls }

// FinishReason returns the terminal chunk's finish reason, or "".
func (c *Collector) FinishReason() string { return c.finishReason }

// Chunks returns how many chunks were observed.
func (c *Collector) Chunks() int { return c.chunks }
