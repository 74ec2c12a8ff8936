package codex

import (
	"strconv"
	"strings"
)

// parseTranscript extracts the reply text and combined token count from the
// transcript codex prints on stderr in aggregate mode. A line that trims to
// "codex" starts the reply body; "tokens used" ends it, with the count
// (possibly comma-separated) on the following line.
func parseTranscript(transcript string) (content string, totalTokens int) {
	lines := strings.Split(transcript, "\n")
	var body []string
	inBody := false
	for i := 0; i < len(lines); i++ {
		stripped := strings.TrimSpace(lines[i])
		if stripped == "codex" {
			inBody = true
			continue
		}
		if stripped == "tokens used" {
			if i+1 < len(lines) {
				raw := strings.ReplaceAll(strings.TrimSpace(lines[i+1]), ",", "")
				if n, err := strconv.Atoi(raw); err == nil {
					totalTokens = n
				}
			}
			break
		}
		if inBody {
			body = append(body, lines[i])
		}
	}
	return strings.TrimSpace(strings.Join(body, "\n")), totalTokens
}

// splitTokens approximates a prompt/completion breakdown from a combined
// count. The transcript reports only a total, so this assumes 80% of it was
// input.
func splitTokens(total int) (input, output int) {
	input = total * 8 / 10
	return input, total - input
}
