package opencode

import (
	"encoding/json"

	"cliproxy/pkg/backend"
)

// jsonEvent is one line of the --format json stdout feed.
type jsonEvent struct {
	Type  string     `json:"type"`
	Part  *jsonPart  `json:"part,omitempty"`
	Error *jsonError `json:"error,omitempty"`
}

// jsonPart carries the payload of text and step_finish records.
type jsonPart struct {
	Text   string      `json:"text,omitempty"`
	Tokens *jsonTokens `json:"tokens,omitempty"`
}

type jsonTokens struct {
	Input  int `json:"input"`
	Output int `json:"output"`
}

type jsonError struct {
	Name string         `json:"name,omitempty"`
	Data *jsonErrorData `json:"data,omitempty"`
}

type jsonErrorData struct {
	Message string `json:"message,omitempty"`
}

// decodeLine parses one stdout line into normalized events. step_finish
// yields the run's token counters (when reported) followed by done; text
// yields a delta; error yields an error event. Everything else, including
// step_start and malformed lines, yields nothing.
func decodeLine(line string) []backend.Event {
	var ev jsonEvent
	if err := json.Unmarshal([]byte(line), &ev); err != nil {
		return nil
	}

	switch ev.Type {
	case "text":
		if ev.Part != nil && ev.Part.Text != "" {
			return []backend.Event{backend.NewMessageDeltaEvent(ev.Part.Text)}
		}
	case "step_finish":
		var out []backend.Event
		if ev.Part != nil && ev.Part.Tokens != nil {
			out = append(out, backend.NewUsageEvent(ev.Part.Tokens.Input, 0, ev.Part.Tokens.Output))
		}
		return append(out, backend.NewDoneEvent())
	case "error":
		return []backend.Event{backend.NewErrorEvent(ev.Error.message())}
	}
	return nil
}

// message resolves the most specific failure text the record offers.
func (e *jsonError) message() string {
	if e != nil {
		if e.Data != nil && e.Data.Message != "" {
			return e.Data.Message
		}
		if e.Name != "" {
			return e.Name
		}
	}
	return "Unknown error"
}
