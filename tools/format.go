package tools

import (
	"fmt"
	"strings"
	"time"

	"github.com/xiaorui775/ChatLab/store"
)

// Results feed a token-limited model context, so formatting is one compact
// line per message with content capped.
const maxContentRunes = 100

func formatMessageLine(m store.ChatMessage) string {
	ts := time.Unix(m.Timestamp, 0).Format("2006-01-02 15:04")
	return fmt.Sprintf("[%d] %s %s: %s", m.ID, ts, m.SenderName, truncateRunes(m.Content, maxContentRunes))
}

func formatMessages(msgs []store.ChatMessage) string {
	if len(msgs) == 0 {
		return "(no messages)"
	}
	lines := make([]string, len(msgs))
	for i, m := range msgs {
		lines[i] = formatMessageLine(m)
	}
	return strings.Join(lines, "\n")
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "…"
}

func formatTimeRange(tr *store.TimeRange) string {
	if tr == nil {
		return "all time"
	}
	format := func(ts int64) string {
		if ts == 0 {
			return "-"
		}
		return time.Unix(ts, 0).Format("2006-01-02 15:04")
	}
	return format(tr.Start) + " ~ " + format(tr.End)
}
