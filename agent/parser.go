package agent

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/xiaorui775/ChatLab/llm"
)

var (
	thinkRe    = regexp.MustCompile(`(?s)<think>.*?</think>`)
	toolCallRe = regexp.MustCompile(`(?s)<tool_call>(.*?)</tool_call>`)
)

// taggedCall is the JSON payload inside a <tool_call> tag. Arguments may be a
// JSON object or a string containing JSON; both forms appear in the wild.
type taggedCall struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// ParseTaggedToolCalls extracts tool calls from model text when the provider
// did not raise native ones. Malformed payloads are skipped. Each parsed call
// gets a synthesized id.
func ParseTaggedToolCalls(content string) []llm.ToolCall {
	matches := toolCallRe.FindAllStringSubmatch(content, -1)
	if len(matches) == 0 {
		return nil
	}

	calls := make([]llm.ToolCall, 0, len(matches))
	for _, m := range matches {
		var tc taggedCall
		if err := json.Unmarshal([]byte(strings.TrimSpace(m[1])), &tc); err != nil {
			continue
		}
		if tc.Name == "" {
			continue
		}
		calls = append(calls, llm.ToolCall{
			ID: uuid.NewString(),
			Function: llm.ToolCallFunction{
				Name:      tc.Name,
				Arguments: normalizeArguments(tc.Arguments),
			},
		})
	}
	return calls
}

// normalizeArguments flattens the two accepted argument encodings down to a
// raw JSON object string.
func normalizeArguments(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "{}"
	}
	trimmed := strings.TrimSpace(string(raw))
	if strings.HasPrefix(trimmed, "\"") {
		// Arguments came as a string holding JSON; unwrap one level.
		var inner string
		if err := json.Unmarshal(raw, &inner); err == nil {
			inner = strings.TrimSpace(inner)
			if inner == "" {
				return "{}"
			}
			return inner
		}
	}
	return trimmed
}

// StripThink removes reasoning regions from model text.
func StripThink(content string) string {
	return thinkRe.ReplaceAllString(content, "")
}

// CleanContent removes both reasoning and tool-call regions, leaving only the
// user-facing answer text.
func CleanContent(content string) string {
	cleaned := StripThink(content)
	cleaned = toolCallRe.ReplaceAllString(cleaned, "")
	// An unterminated tool_call region at the tail is dropped too.
	if i := strings.Index(cleaned, "<tool_call>"); i >= 0 {
		cleaned = cleaned[:i]
	}
	return strings.TrimSpace(cleaned)
}
