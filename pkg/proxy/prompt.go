package proxy

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// buildPrompt flattens a chat conversation into a single prompt string for a
// CLI backend. Tool definitions become a documentation block up front, and
// each message gets a role prefix. Prior tool calls and tool results are
// replayed as plain text so the model keeps the loop context.
func buildPrompt(messages []ChatMessage, tools []Tool) string {
	var parts []string

	if len(tools) > 0 {
		parts = append(parts, formatToolsPrompt(tools))
		parts = append(parts, "") // blank line separator
	}

	for _, msg := range messages {
		switch msg.Role {
		case "system":
			parts = append(parts, "System: "+contentText(msg.Content))
		case "user":
			parts = append(parts, "User: "+contentText(msg.Content))
		case "assistant":
			if len(msg.ToolCalls) > 0 {
				for _, tc := range msg.ToolCalls {
					parts = append(parts, fmt.Sprintf("Assistant called tool: %s(arguments: %s)", tc.Function.Name, tc.Function.Arguments))
				}
			} else if text := contentText(msg.Content); text != "" {
				parts = append(parts, "Assistant: "+text)
			}
		case "tool":
			parts = append(parts, fmt.Sprintf("Tool %s (call_id: %s) returned: %s", msg.Name, msg.ToolCallID, contentText(msg.Content)))
		}
	}

	return strings.Join(parts, "\n\n")
}

// formatToolsPrompt renders tool definitions as natural-language
// documentation plus the inline-JSON calling convention the extractor
// recognizes on the way back.
func formatToolsPrompt(tools []Tool) string {
	if len(tools) == 0 {
		return ""
	}

	lines := []string{"You have access to the following tools:\n"}

	for _, tool := range tools {
		fn := tool.Function
		if fn == nil {
			continue
		}
		desc := fn.Description
		if desc == "" {
			desc = "No description provided"
		}
		lines = append(lines, fmt.Sprintf("- %s: %s", fn.Name, desc))

		if params := indentParams(fn.Parameters); params != "" {
			lines = append(lines, "  Parameters: "+params)
		}
	}

	lines = append(lines, "\nTo use a tool, respond with a JSON object in this exact format:")
	lines = append(lines, `{"name": "tool_name", "arguments": {...}}`)
	lines = append(lines, "\nYou can include explanation text along with or after the JSON.")

	return strings.Join(lines, "\n")
}

// indentParams pretty-prints a JSON Schema for the tools block. Absent or
// empty schemas return "" so the line is skipped entirely.
func indentParams(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || string(trimmed) == "null" || string(trimmed) == "{}" {
		return ""
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, trimmed, "", "  "); err != nil {
		return string(trimmed)
	}
	return buf.String()
}

// contentText flattens a message content value. Plain strings pass through,
// typed part lists contribute their text fields, and anything else (null
// included) is empty.
func contentText(v any) string {
	switch c := v.(type) {
	case string:
		return c
	case []any:
		var sb strings.Builder
		for _, p := range c {
			part, ok := p.(map[string]any)
			if !ok {
				continue
			}
			if text, ok := part["text"].(string); ok {
				sb.WriteString(text)
			}
		}
		return sb.String()
	default:
		return ""
	}
}
