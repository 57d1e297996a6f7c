package tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
)

func (b *Builtins) searchSessions(ctx context.Context, params api.ToolCallFunctionArguments, tc *ToolContext) (string, error) {
	keyword, _ := argString(params, "keyword")

	sessions, err := b.store.SearchSessions(ctx, keyword)
	if err != nil {
		return "", fmt.Errorf("search sessions: %w", err)
	}
	if len(sessions) == 0 {
		return errPayload("session_not_found", keyword), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d session(s):\n", len(sessions))
	for _, s := range sessions {
		fmt.Fprintf(&sb, "%s  %s (%s ~ %s, %d messages)\n",
			s.ID, s.Title,
			time.Unix(s.StartTime, 0).Format("2006-01-02"),
			time.Unix(s.EndTime, 0).Format("2006-01-02"),
			s.MessageCount)
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}

func (b *Builtins) sessionMessages(ctx context.Context, params api.ToolCallFunctionArguments, tc *ToolContext) (string, error) {
	sessionID, ok := argString(params, "session_id")
	if !ok {
		sessionID = tc.SessionID
	}

	tr, err := ResolveTimeFilter(params, tc)
	if err != nil {
		return "", err
	}
	limit := effectiveLimit(params, tc, defaultSessionLimit)
	offset, _ := argInt(params, "offset")

	msgs, err := b.store.SessionMessages(ctx, sessionID, tr, limit, offset)
	if err != nil {
		return "", fmt.Errorf("session messages: %w", err)
	}
	if len(msgs) == 0 {
		return errPayload("session_not_found", sessionID), nil
	}
	return fmt.Sprintf("Session %s, %d message(s):\n%s", sessionID, len(msgs), formatMessages(msgs)), nil
}

func (b *Builtins) sessionSummaries(ctx context.Context, params api.ToolCallFunctionArguments, tc *ToolContext) (string, error) {
	sessionID, ok := argString(params, "session_id")
	if !ok {
		sessionID = tc.SessionID
	}

	summaries, err := b.store.SessionSummaries(ctx, sessionID)
	if err != nil {
		return "", fmt.Errorf("session summaries: %w", err)
	}
	if len(summaries) == 0 {
		return errPayload("no_summaries", sessionID), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Summaries of session %s:\n", sessionID)
	for _, s := range summaries {
		fmt.Fprintf(&sb, "[%s] %s\n", time.Unix(s.GeneratedAt, 0).Format("2006-01-02"), s.Summary)
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}
