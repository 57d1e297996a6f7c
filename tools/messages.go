package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/ollama/ollama/api"
	"github.com/xiaorui775/ChatLab/store"
)

const (
	defaultSearchLimit  = 20
	defaultRecentLimit  = 50
	defaultContextSpan  = 5
	defaultRecentHours  = 24
	defaultConvoLimit   = 50
	defaultSessionLimit = 100
)

func (b *Builtins) searchMessages(ctx context.Context, params api.ToolCallFunctionArguments, tc *ToolContext) (string, error) {
	keywords := argStringSlice(params, "keywords")
	if len(keywords) == 0 {
		return "", fmt.Errorf("missing required parameter: keywords")
	}

	tr, err := ResolveTimeFilter(params, tc)
	if err != nil {
		return "", err
	}

	q := store.SearchQuery{
		Keywords:  keywords,
		TimeRange: tr,
		Limit:     effectiveLimit(params, tc, defaultSearchLimit),
	}
	if sender, ok := argString(params, "sender"); ok {
		member, err := b.resolveMember(ctx, tc, sender)
		if err != nil {
			return "", err
		}
		if member == nil {
			return errPayload("member_not_found", sender), nil
		}
		q.SenderID = member.ID
	}
	if offset, ok := argInt(params, "offset"); ok && offset > 0 {
		q.Offset = offset
	}

	res, err := b.store.SearchMessages(ctx, tc.SessionID, q)
	if err != nil {
		return "", fmt.Errorf("search messages: %w", err)
	}
	if res.Total == 0 {
		return fmt.Sprintf("No messages matching %q in %s.", strings.Join(keywords, ", "), formatTimeRange(tr)), nil
	}
	return fmt.Sprintf("%d match(es), showing %d (most recent first):\n%s",
		res.Total, len(res.Messages), formatMessages(res.Messages)), nil
}

func (b *Builtins) recentMessages(ctx context.Context, params api.ToolCallFunctionArguments, tc *ToolContext) (string, error) {
	hours, ok := argInt(params, "hours")
	if !ok || hours <= 0 {
		hours = defaultRecentHours
	}
	limit := effectiveLimit(params, tc, defaultRecentLimit)

	msgs, err := b.store.RecentMessages(ctx, tc.SessionID, hours, limit)
	if err != nil {
		return "", fmt.Errorf("recent messages: %w", err)
	}
	if len(msgs) == 0 {
		return fmt.Sprintf("No messages in the last %d hour(s).", hours), nil
	}
	return fmt.Sprintf("Last %d hour(s), %d message(s):\n%s", hours, len(msgs), formatMessages(msgs)), nil
}

func (b *Builtins) timeStats(ctx context.Context, params api.ToolCallFunctionArguments, tc *ToolContext) (string, error) {
	granularity, ok := argString(params, "granularity")
	if !ok {
		granularity = "day"
	}

	tr, err := ResolveTimeFilter(params, tc)
	if err != nil {
		return "", err
	}

	buckets, err := b.store.TimeStats(ctx, tc.SessionID, granularity, tr)
	if err != nil {
		return "", fmt.Errorf("time stats: %w", err)
	}
	if len(buckets) == 0 {
		return fmt.Sprintf("No activity in %s.", formatTimeRange(tr)), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Messages per %s (%s):\n", granularity, formatTimeRange(tr))
	for _, bucket := range buckets {
		fmt.Fprintf(&sb, "%s: %d\n", bucket.Label, bucket.Count)
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}

func (b *Builtins) conversationBetween(ctx context.Context, params api.ToolCallFunctionArguments, tc *ToolContext) (string, error) {
	queryA, okA := argString(params, "member_a")
	queryB, okB := argString(params, "member_b")
	if !okA || !okB {
		return "", fmt.Errorf("missing required parameters: member_a and member_b")
	}

	memberA, err := b.resolveMember(ctx, tc, queryA)
	if err != nil {
		return "", err
	}
	if memberA == nil {
		return errPayload("member_not_found", queryA), nil
	}
	memberB, err := b.resolveMember(ctx, tc, queryB)
	if err != nil {
		return "", err
	}
	if memberB == nil {
		return errPayload("member_not_found", queryB), nil
	}

	tr, err := ResolveTimeFilter(params, tc)
	if err != nil {
		return "", err
	}
	limit := effectiveLimit(params, tc, defaultConvoLimit)

	msgs, err := b.store.ConversationBetween(ctx, tc.SessionID, memberA.ID, memberB.ID, tr, limit)
	if err != nil {
		return "", fmt.Errorf("conversation between: %w", err)
	}
	if len(msgs) == 0 {
		return errPayload("no_conversation_found",
			fmt.Sprintf("%s and %s in %s", displayName(*memberA), displayName(*memberB), formatTimeRange(tr))), nil
	}
	return fmt.Sprintf("Conversation between %s and %s, %d message(s):\n%s",
		displayName(*memberA), displayName(*memberB), len(msgs), formatMessages(msgs)), nil
}

func (b *Builtins) messageContext(ctx context.Context, params api.ToolCallFunctionArguments, tc *ToolContext) (string, error) {
	id, ok := argInt(params, "message_id")
	if !ok {
		return "", fmt.Errorf("missing required parameter: message_id")
	}

	before, okBefore := argInt(params, "before")
	if !okBefore || before < 0 {
		before = defaultContextSpan
	}
	after, okAfter := argInt(params, "after")
	if !okAfter || after < 0 {
		after = defaultContextSpan
	}

	msgs, err := b.store.MessageContext(ctx, tc.SessionID, int64(id), before, after)
	if err != nil {
		return "", fmt.Errorf("message context: %w", err)
	}
	if len(msgs) == 0 {
		return errPayload("message_not_found", fmt.Sprintf("id=%d", id)), nil
	}
	return fmt.Sprintf("Context around message %d:\n%s", id, formatMessages(msgs)), nil
}
