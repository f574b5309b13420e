package ai

import (
	"encoding/json"
	"fmt"
	"strings"
)

// DecodeJSON parses model output into T after stripping markdown fences and
// chatter around the JSON payload.
func DecodeJSON[T any](content string) (*T, error) {
	cleaned := CleanJSONContent(content)
	if cleaned == "" {
		return nil, fmt.Errorf("empty model output")
	}

	var result T
	if err := json.Unmarshal([]byte(cleaned), &result); err != nil {
		return nil, fmt.Errorf("failed to parse JSON content: %w (content: %s)", err, truncate(cleaned, 200))
	}
	return &result, nil
}

// CleanJSONContent removes markdown code blocks and leading/trailing chatter
func CleanJSONContent(content string) string {
	content = strings.TrimSpace(content)

	if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimPrefix(content, "```JSON")
		content = strings.TrimPrefix(content, "```")
		content = strings.TrimSuffix(strings.TrimSpace(content), "```")
		content = strings.TrimSpace(content)
	}

	// reasoning models sometimes emit a think block first
	if i := strings.Index(content, "</think>"); i >= 0 {
		content = strings.TrimSpace(content[i+len("</think>"):])
	}

	start := strings.IndexAny(content, "{[")
	if start < 0 {
		return content
	}
	closer := byte('}')
	if content[start] == '[' {
		closer = ']'
	}
	end := strings.LastIndexByte(content, closer)
	if end < start {
		return content[start:]
	}
	return content[start : end+1]
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
