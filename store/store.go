// Package store defines the chat-message store the query tools run against.
// The persistent implementation lives in the host application; this package
// carries the contract plus an in-memory implementation used by tests and
// examples.
package store

import "context"

// ChatMessage is one message row. Timestamp is unix seconds.
type ChatMessage struct {
	ID         int64  `json:"id"`
	SessionID  string `json:"session_id"`
	SenderID   int64  `json:"sender_id"`
	SenderName string `json:"sender_name"`
	Content    string `json:"content"`
	Timestamp  int64  `json:"timestamp"`
}

// Member is a conversation participant. Aliases are user-defined alternate
// names; PlatformID is the platform account identifier (QQ number, wxid, ...).
type Member struct {
	ID          int64    `json:"id"`
	AccountName string   `json:"account_name"`
	Nickname    string   `json:"nickname"`
	Aliases     []string `json:"aliases,omitempty"`
	PlatformID  string   `json:"platform_id"`
}

// NameChange records one historical display name of a member.
type NameChange struct {
	Name      string `json:"name"`
	ChangedAt int64  `json:"changed_at"`
}

type Session struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	StartTime    int64  `json:"start_time"`
	EndTime      int64  `json:"end_time"`
	MessageCount int    `json:"message_count"`
}

type SessionSummary struct {
	SessionID   string `json:"session_id"`
	Summary     string `json:"summary"`
	GeneratedAt int64  `json:"generated_at"`
}

type MemberStats struct {
	MemberID     int64  `json:"member_id"`
	Name         string `json:"name"`
	MessageCount int    `json:"message_count"`
	CharCount    int    `json:"char_count"`
	ActiveDays   int    `json:"active_days"`
	FirstSeen    int64  `json:"first_seen"`
	LastSeen     int64  `json:"last_seen"`
}

// TimeBucket is one aggregation bucket of the time-stats query.
type TimeBucket struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// TimeRange bounds a query in unix seconds. A zero bound is unbounded on that
// side.
type TimeRange struct {
	Start int64 `json:"start"`
	End   int64 `json:"end"`
}

// Contains reports whether ts falls within the range.
func (r *TimeRange) Contains(ts int64) bool {
	if r == nil {
		return true
	}
	if r.Start != 0 && ts < r.Start {
		return false
	}
	if r.End != 0 && ts > r.End {
		return false
	}
	return true
}

type SearchQuery struct {
	Keywords  []string   `json:"keywords"`
	SenderID  int64      `json:"sender_id,omitempty"` // 0 = any sender
	TimeRange *TimeRange `json:"time_range,omitempty"`
	Limit     int        `json:"limit"`
	Offset    int        `json:"offset"`
}

// SearchResult is one page of a keyword search. Messages are ordered most
// recent first; Total is the match count before pagination.
type SearchResult struct {
	Total    int           `json:"total"`
	Messages []ChatMessage `json:"messages"`
}

// MessageStore is the query API of the persistent chat-message store.
type MessageStore interface {
	SearchMessages(ctx context.Context, sessionID string, q SearchQuery) (*SearchResult, error)
	RecentMessages(ctx context.Context, sessionID string, hours int, limit int) ([]ChatMessage, error)
	Members(ctx context.Context, sessionID string) ([]Member, error)
	MemberNameHistory(ctx context.Context, sessionID string, memberID int64) ([]NameChange, error)
	MemberStats(ctx context.Context, sessionID string, tr *TimeRange) ([]MemberStats, error)
	TimeStats(ctx context.Context, sessionID string, granularity string, tr *TimeRange) ([]TimeBucket, error)
	ConversationBetween(ctx context.Context, sessionID string, memberA, memberB int64, tr *TimeRange, limit int) ([]ChatMessage, error)
	MessageContext(ctx context.Context, sessionID string, messageID int64, before, after int) ([]ChatMessage, error)
	SearchSessions(ctx context.Context, keyword string) ([]Session, error)
	SessionMessages(ctx context.Context, sessionID string, tr *TimeRange, limit, offset int) ([]ChatMessage, error)
	SessionSummaries(ctx context.Context, sessionID string) ([]SessionSummary, error)
}
