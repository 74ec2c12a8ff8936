package codex

import (
	"encoding/json"

	"cliproxy/pkg/backend"
)

// jsonEvent is one line of the --json stdout feed.
type jsonEvent struct {
	Type  string     `json:"type"`
	Item  *jsonItem  `json:"item,omitempty"`
	Usage *jsonUsage `json:"usage,omitempty"`
}

// jsonItem is the payload of an item.completed record.
type jsonItem struct {
	ID        string `json:"id,omitempty"`
	Type      string `json:"type"`
	Text      string `json:"text,omitempty"`
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
	CallID    string `json:"call_id,omitempty"`
}

// jsonUsage is the payload of a turn.completed record.
type jsonUsage struct {
	InputTokens       int `json:"input_tokens"`
	CachedInputTokens int `json:"cached_input_tokens"`
	OutputTokens      int `json:"output_tokens"`
}

// decodeLine parses one stdout line into a normalized event. It reports false
// for lines that are not recognizable records: malformed JSON, unknown types,
// reasoning items, and function calls missing any of name, arguments or
// call_id.
func decodeLine(line string) (backend.Event, bool) {
	var ev jsonEvent
	if err := json.Unmarshal([]byte(line), &ev); err != nil {
		return backend.Event{}, false
	}

	switch ev.Type {
	case "item.completed":
		if ev.Item == nil {
			return backend.Event{}, false
		}
		switch ev.Item.Type {
		case "agent_message":
			if ev.Item.Text == "" {
				return backend.Event{}, false
			}
			return backend.NewMessageDeltaEvent(ev.Item.Text), true
		case "function_call":
			if ev.Item.Name == "" || ev.Item.Arguments == "" || ev.Item.CallID == "" {
				return backend.Event{}, false
			}
			return backend.NewFunctionCallEvent(ev.Item.CallID, ev.Item.Name, ev.Item.Arguments), true
		}
	case "turn.completed":
		if ev.Usage == nil {
			return backend.Event{}, false
		}
		return backend.NewUsageEvent(ev.Usage.InputTokens, ev.Usage.CachedInputTokens, ev.Usage.OutputTokens), true
	}
	return backend.Event{}, false
}
