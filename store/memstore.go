package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemStore is an in-memory MessageStore. It pins the ordering contracts the
// tools rely on (keyword search is most recent first) and is the reference
// implementation for tests and examples.
type MemStore struct {
	mu        sync.RWMutex
	messages  map[string][]ChatMessage // sessionID -> messages ordered by time asc
	members   map[string][]Member
	names     map[string]map[int64][]NameChange // sessionID -> memberID -> history
	sessions  []Session
	summaries map[string][]SessionSummary
}

func NewMemStore() *MemStore {
	return &MemStore{
		messages:  make(map[string][]ChatMessage),
		members:   make(map[string][]Member),
		names:     make(map[string]map[int64][]NameChange),
		summaries: make(map[string][]SessionSummary),
	}
}

func (s *MemStore) AddSession(sess Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = append(s.sessions, sess)
}

func (s *MemStore) AddMember(sessionID string, m Member) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.members[sessionID] = append(s.members[sessionID], m)
}

func (s *MemStore) AddNameChange(sessionID string, memberID int64, nc NameChange) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.names[sessionID] == nil {
		s.names[sessionID] = make(map[int64][]NameChange)
	}
	s.names[sessionID][memberID] = append(s.names[sessionID][memberID], nc)
}

func (s *MemStore) AddSummary(sum SessionSummary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summaries[sum.SessionID] = append(s.summaries[sum.SessionID], sum)
}

func (s *MemStore) AddMessage(m ChatMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := append(s.messages[m.SessionID], m)
	sort.SliceStable(msgs, func(i, j int) bool { return msgs[i].Timestamp < msgs[j].Timestamp })
	s.messages[m.SessionID] = msgs
}

func (s *MemStore) SearchMessages(ctx context.Context, sessionID string, q SearchQuery) (*SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []ChatMessage
	for _, m := range s.messages[sessionID] {
		if q.SenderID != 0 && m.SenderID != q.SenderID {
			continue
		}
		if !q.TimeRange.Contains(m.Timestamp) {
			continue
		}
		if !matchesKeywords(m.Content, q.Keywords) {
			continue
		}
		matched = append(matched, m)
	}

	// Most recent first; the page window applies after ordering.
	sort.SliceStable(matched, func(i, j int) bool { return matched[i].Timestamp > matched[j].Timestamp })

	total := len(matched)
	start := q.Offset
	if start > total {
		start = total
	}
	end := total
	if q.Limit > 0 && start+q.Limit < end {
		end = start + q.Limit
	}
	return &SearchResult{Total: total, Messages: matched[start:end]}, nil
}

func matchesKeywords(content string, keywords []string) bool {
	if len(keywords) == 0 {
		return true
	}
	lower := strings.ToLower(content)
	for _, kw := range keywords {
		if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

func (s *MemStore) RecentMessages(ctx context.Context, sessionID string, hours int, limit int) ([]ChatMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cutoff := time.Now().Add(-time.Duration(hours) * time.Hour).Unix()
	var out []ChatMessage
	for _, m := range s.messages[sessionID] {
		if m.Timestamp >= cutoff {
			out = append(out, m)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (s *MemStore) Members(ctx context.Context, sessionID string) ([]Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Member(nil), s.members[sessionID]...), nil
}

func (s *MemStore) MemberNameHistory(ctx context.Context, sessionID string, memberID int64) ([]NameChange, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if hist, ok := s.names[sessionID]; ok {
		return append([]NameChange(nil), hist[memberID]...), nil
	}
	return nil, nil
}

func (s *MemStore) MemberStats(ctx context.Context, sessionID string, tr *TimeRange) ([]MemberStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byMember := make(map[int64]*MemberStats)
	days := make(map[int64]map[string]struct{})
	for _, m := range s.messages[sessionID] {
		if !tr.Contains(m.Timestamp) {
			continue
		}
		st, ok := byMember[m.SenderID]
		if !ok {
			st = &MemberStats{MemberID: m.SenderID, Name: m.SenderName, FirstSeen: m.Timestamp}
			byMember[m.SenderID] = st
			days[m.SenderID] = make(map[string]struct{})
		}
		st.MessageCount++
		st.CharCount += len([]rune(m.Content))
		if m.Timestamp < st.FirstSeen {
			st.FirstSeen = m.Timestamp
		}
		if m.Timestamp > st.LastSeen {
			st.LastSeen = m.Timestamp
		}
		st.Name = m.SenderName
		days[m.SenderID][time.Unix(m.Timestamp, 0).Format("2006-01-02")] = struct{}{}
	}

	out := make([]MemberStats, 0, len(byMember))
	for id, st := range byMember {
		st.ActiveDays = len(days[id])
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MessageCount > out[j].MessageCount })
	return out, nil
}

func (s *MemStore) TimeStats(ctx context.Context, sessionID string, granularity string, tr *TimeRange) ([]TimeBucket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var layout string
	switch granularity {
	case "hour":
		layout = "2006-01-02 15:00"
	case "day":
		layout = "2006-01-02"
	case "month":
		layout = "2006-01"
	case "week":
		layout = "" // handled below
	default:
		return nil, fmt.Errorf("unknown granularity: %s", granularity)
	}

	counts := make(map[string]int)
	var order []string
	for _, m := range s.messages[sessionID] {
		if !tr.Contains(m.Timestamp) {
			continue
		}
		t := time.Unix(m.Timestamp, 0)
		var label string
		if granularity == "week" {
			year, week := t.ISOWeek()
			label = fmt.Sprintf("%d-W%02d", year, week)
		} else {
			label = t.Format(layout)
		}
		if _, seen := counts[label]; !seen {
			order = append(order, label)
		}
		counts[label]++
	}

	out := make([]TimeBucket, 0, len(order))
	for _, label := range order {
		out = append(out, TimeBucket{Label: label, Count: counts[label]})
	}
	return out, nil
}

func (s *MemStore) ConversationBetween(ctx context.Context, sessionID string, memberA, memberB int64, tr *TimeRange, limit int) ([]ChatMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// A conversation segment is messages of either member where the other
	// responds within a short window.
	const windowSeconds = 300

	msgs := s.messages[sessionID]
	var out []ChatMessage
	for i, m := range msgs {
		if !tr.Contains(m.Timestamp) {
			continue
		}
		if m.SenderID != memberA && m.SenderID != memberB {
			continue
		}
		other := memberB
		if m.SenderID == memberB {
			other = memberA
		}
		if hasNearbyReply(msgs, i, other, windowSeconds) {
			out = append(out, m)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func hasNearbyReply(msgs []ChatMessage, idx int, senderID int64, window int64) bool {
	ts := msgs[idx].Timestamp
	for i := idx - 1; i >= 0 && ts-msgs[i].Timestamp <= window; i-- {
		if msgs[i].SenderID == senderID {
			return true
		}
	}
	for i := idx + 1; i < len(msgs) && msgs[i].Timestamp-ts <= window; i++ {
		if msgs[i].SenderID == senderID {
			return true
		}
	}
	return false
}

func (s *MemStore) MessageContext(ctx context.Context, sessionID string, messageID int64, before, after int) ([]ChatMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs := s.messages[sessionID]
	idx := -1
	for i, m := range msgs {
		if m.ID == messageID {
			idx = i
			break
		}
	}
	if idx == -1 {
		return nil, nil
	}
	start := idx - before
	if start < 0 {
		start = 0
	}
	end := idx + after + 1
	if end > len(msgs) {
		end = len(msgs)
	}
	return append([]ChatMessage(nil), msgs[start:end]...), nil
}

func (s *MemStore) SearchSessions(ctx context.Context, keyword string) ([]Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Session
	lower := strings.ToLower(keyword)
	for _, sess := range s.sessions {
		if keyword == "" || strings.Contains(strings.ToLower(sess.Title), lower) {
			out = append(out, sess)
		}
	}
	return out, nil
}

func (s *MemStore) SessionMessages(ctx context.Context, sessionID string, tr *TimeRange, limit, offset int) ([]ChatMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []ChatMessage
	for _, m := range s.messages[sessionID] {
		if tr.Contains(m.Timestamp) {
			out = append(out, m)
		}
	}
	if offset > len(out) {
		offset = len(out)
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemStore) SessionSummaries(ctx context.Context, sessionID string) ([]SessionSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]SessionSummary(nil), s.summaries[sessionID]...), nil
}
