// Package toolcall recovers structured tool invocations that a backend
// emitted inline as JSON in its reply text. Scanning is not anchored: any
// substring shaped like {"name": "...", "arguments": {...}} counts as a
// call, including one a model quotes back in prose.
package toolcall

import (
	"encoding/hex"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// Call is one recovered tool invocation. Arguments is the matched JSON
// object text, passed through without validation.
type Call struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

var (
	callPattern = regexp.MustCompile(`\{\s*"name"\s*:\s*"([^"]+)"\s*,\s*"arguments"\s*:\s*(\{[^}]*\})\s*\}`)
	newlineRuns = regexp.MustCompile(`\n{3,}`)
)

// NewCallID returns a fresh tool call identifier of the form
// "call_" followed by 24 hex characters.
func NewCallID() string {
	u := uuid.New()
	return "call_" + hex.EncodeToString(u[:])[:24]
}

// Extract scans text for inline tool-call JSON and returns the recovered
// calls plus the text with all matches removed, runs of three or more
// newlines collapsed to a single blank line, and the result trimmed. An
// empty remainder means the reply was nothing but tool calls. With no
// matches the input text is returned unchanged.
func Extract(text string) ([]Call, string) {
	matches := callPattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil, text
	}

	calls := make([]Call, 0, len(matches))
	for _, m := range matches {
		calls = append(calls, Call{ID: NewCallID(), Name: m[1], Arguments: m[2]})
	}

	remaining := callPattern.ReplaceAllString(text, "")
	remaining = newlineRuns.ReplaceAllString(remaining, "\n\n")
	return calls, strings.TrimSpace(remaining)
}
