package tools

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
	"github.com/xiaorui775/ChatLab/store"
)

// MatchMember fuzzy-matches a query against a member's account name, nickname,
// user-defined aliases and platform id. Exact platform-id and exact-name hits
// win over substring hits.
func MatchMember(members []store.Member, query string) *store.Member {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}
	lower := strings.ToLower(query)

	for i := range members {
		if members[i].PlatformID == query || strconv.FormatInt(members[i].ID, 10) == query {
			return &members[i]
		}
	}
	for i := range members {
		if equalsAnyName(&members[i], lower) {
			return &members[i]
		}
	}
	for i := range members {
		if containsAnyName(&members[i], lower) {
			return &members[i]
		}
	}
	return nil
}

func equalsAnyName(m *store.Member, lower string) bool {
	if strings.ToLower(m.AccountName) == lower || strings.ToLower(m.Nickname) == lower {
		return true
	}
	for _, alias := range m.Aliases {
		if strings.ToLower(alias) == lower {
			return true
		}
	}
	return false
}

func containsAnyName(m *store.Member, lower string) bool {
	if strings.Contains(strings.ToLower(m.AccountName), lower) ||
		strings.Contains(strings.ToLower(m.Nickname), lower) {
		return true
	}
	for _, alias := range m.Aliases {
		if strings.Contains(strings.ToLower(alias), lower) {
			return true
		}
	}
	return false
}

func (b *Builtins) resolveMember(ctx context.Context, tc *ToolContext, query string) (*store.Member, error) {
	members, err := b.store.Members(ctx, tc.SessionID)
	if err != nil {
		return nil, fmt.Errorf("load members: %w", err)
	}
	return MatchMember(members, query), nil
}

func (b *Builtins) listMembers(ctx context.Context, params api.ToolCallFunctionArguments, tc *ToolContext) (string, error) {
	members, err := b.store.Members(ctx, tc.SessionID)
	if err != nil {
		return "", fmt.Errorf("load members: %w", err)
	}

	keyword, _ := argString(params, "keyword")
	var sb strings.Builder
	count := 0
	for _, m := range members {
		if keyword != "" && !containsAnyName(&m, strings.ToLower(keyword)) && m.PlatformID != keyword {
			continue
		}
		count++
		fmt.Fprintf(&sb, "%s (id: %s", displayName(m), m.PlatformID)
		if len(m.Aliases) > 0 {
			fmt.Fprintf(&sb, ", aliases: %s", strings.Join(m.Aliases, "/"))
		}
		sb.WriteString(")\n")
	}
	if count == 0 {
		return errPayload("member_not_found", keyword), nil
	}
	return fmt.Sprintf("%d member(s):\n%s", count, strings.TrimRight(sb.String(), "\n")), nil
}

func displayName(m store.Member) string {
	if m.Nickname != "" && m.Nickname != m.AccountName {
		return fmt.Sprintf("%s (%s)", m.Nickname, m.AccountName)
	}
	return m.AccountName
}

func (b *Builtins) memberNameHistory(ctx context.Context, params api.ToolCallFunctionArguments, tc *ToolContext) (string, error) {
	query, ok := argString(params, "member")
	if !ok {
		return "", fmt.Errorf("missing required parameter: member")
	}

	member, err := b.resolveMember(ctx, tc, query)
	if err != nil {
		return "", err
	}
	if member == nil {
		return errPayload("member_not_found", query), nil
	}

	history, err := b.store.MemberNameHistory(ctx, tc.SessionID, member.ID)
	if err != nil {
		return "", fmt.Errorf("load name history: %w", err)
	}
	if len(history) == 0 {
		return fmt.Sprintf("%s has no recorded name changes.", displayName(*member)), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Name history of %s:\n", displayName(*member))
	for _, nc := range history {
		fmt.Fprintf(&sb, "%s  %s\n", time.Unix(nc.ChangedAt, 0).Format("2006-01-02"), nc.Name)
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}

func (b *Builtins) memberStats(ctx context.Context, params api.ToolCallFunctionArguments, tc *ToolContext) (string, error) {
	tr, err := ResolveTimeFilter(params, tc)
	if err != nil {
		return "", err
	}

	stats, err := b.store.MemberStats(ctx, tc.SessionID, tr)
	if err != nil {
		return "", fmt.Errorf("load member stats: %w", err)
	}

	if query, ok := argString(params, "member"); ok {
		member, err := b.resolveMember(ctx, tc, query)
		if err != nil {
			return "", err
		}
		if member == nil {
			return errPayload("member_not_found", query), nil
		}
		matched := false
		for _, st := range stats {
			if st.MemberID == member.ID {
				stats = []store.MemberStats{st}
				matched = true
				break
			}
		}
		if !matched {
			return fmt.Sprintf("%s: 0 messages in %s.", displayName(*member), formatTimeRange(tr)), nil
		}
	}

	top, _ := argInt(params, "top")
	if top > 0 && len(stats) > top {
		stats = stats[:top]
	}
	if len(stats) == 0 {
		return fmt.Sprintf("No activity in %s.", formatTimeRange(tr)), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Member activity (%s):\n", formatTimeRange(tr))
	for i, st := range stats {
		fmt.Fprintf(&sb, "%d. %s: %d messages, %d chars, active %d day(s), last seen %s\n",
			i+1, st.Name, st.MessageCount, st.CharCount, st.ActiveDays,
			time.Unix(st.LastSeen, 0).Format("2006-01-02"))
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}
