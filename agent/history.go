package agent

import "github.com/xiaorui775/ChatLab/llm"

// TrimHistory keeps the last max user messages plus whatever assistant and
// tool messages follow them. Fewer user messages than max keeps everything;
// max <= 0 disables trimming.
func TrimHistory(msgs []llm.Message, max int) []llm.Message {
	if max <= 0 || len(msgs) == 0 {
		return msgs
	}

	usersSeen := 0
	start := 0
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == "user" {
			usersSeen++
			if usersSeen == max {
				start = i
				break
			}
		}
	}
	return msgs[start:]
}
