// Package chunking slices a session's message stream into coherent
// conversational chunks for embedding. Chunk ids are content-addressed, so
// re-chunking unchanged messages yields identical chunks and embeddings can be
// reused.
package chunking

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/pkoukk/tiktoken-go"
	"github.com/xiaorui775/ChatLab/store"
)

const (
	defaultTargetTokens = 400
	defaultMaxGap       = 30 * time.Minute
)

// Options tune chunk boundaries. TargetTokens caps a chunk's token budget;
// MaxGap starts a new chunk when consecutive messages are further apart;
// OverlapMessages carries that many trailing messages into the next chunk.
type Options struct {
	TargetTokens    int
	MaxGap          time.Duration
	OverlapMessages int
}

func (o Options) withDefaults() Options {
	if o.TargetTokens <= 0 {
		o.TargetTokens = defaultTargetTokens
	}
	if o.MaxGap <= 0 {
		o.MaxGap = defaultMaxGap
	}
	if o.OverlapMessages < 0 {
		o.OverlapMessages = 0
	}
	return o
}

// Chunk is a contiguous slice of a session's messages, the unit of embedding
// and retrieval.
type Chunk struct {
	ID           string   `json:"id"`
	SessionID    string   `json:"session_id"`
	StartTime    int64    `json:"start_time"`
	EndTime      int64    `json:"end_time"`
	Participants []string `json:"participants"`
	MessageIDs   []int64  `json:"message_ids"`
	Text         string   `json:"text"`
}

type Chunker struct {
	// Loaded once; encoding lookup is the expensive part.
	tok   *tiktoken.Tiktoken
	store store.MessageStore
}

func NewChunker(st store.MessageStore) (*Chunker, error) {
	tok, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, fmt.Errorf("get token encoder: %w", err)
	}
	return &Chunker{tok: tok, store: st}, nil
}

// ChunkSession produces a deterministic, time-ordered sequence of chunks
// covering every message of the session exactly once, plus the configured
// overlap.
func (c *Chunker) ChunkSession(ctx context.Context, sessionID string, opts Options) ([]Chunk, error) {
	opts = opts.withDefaults()

	msgs, err := c.store.SessionMessages(ctx, sessionID, nil, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("load session messages: %w", err)
	}
	if len(msgs) == 0 {
		return nil, nil
	}

	var out []Chunk
	var current []store.ChatMessage
	tokens := 0

	flush := func() {
		if len(current) == 0 {
			return
		}
		out = append(out, c.buildChunk(sessionID, current))
		if opts.OverlapMessages > 0 && opts.OverlapMessages < len(current) {
			carried := current[len(current)-opts.OverlapMessages:]
			current = append([]store.ChatMessage(nil), carried...)
			tokens = c.countTokens(current)
		} else {
			current = nil
			tokens = 0
		}
	}

	maxGap := int64(opts.MaxGap / time.Second)
	for i, m := range msgs {
		if len(current) > 0 && m.Timestamp-msgs[i-1].Timestamp > maxGap {
			// Conversation lull; the carried overlap would bridge unrelated
			// topics, so drop it entirely.
			out = append(out, c.buildChunk(sessionID, current))
			current, tokens = nil, 0
		}

		line := formatLine(m)
		n := len(c.tok.Encode(line, nil, nil))
		if len(current) > 0 && tokens+n > opts.TargetTokens {
			flush()
		}
		current = append(current, m)
		tokens += n
	}
	if len(current) > 0 {
		out = append(out, c.buildChunk(sessionID, current))
	}
	return out, nil
}

func (c *Chunker) countTokens(msgs []store.ChatMessage) int {
	total := 0
	for _, m := range msgs {
		total += len(c.tok.Encode(formatLine(m), nil, nil))
	}
	return total
}

func (c *Chunker) buildChunk(sessionID string, msgs []store.ChatMessage) Chunk {
	var sb strings.Builder
	participants := make([]string, 0, 4)
	seen := make(map[string]struct{}, 4)
	ids := make([]int64, len(msgs))

	for i, m := range msgs {
		sb.WriteString(formatLine(m))
		sb.WriteByte('\n')
		ids[i] = m.ID
		if _, ok := seen[m.SenderName]; !ok {
			seen[m.SenderName] = struct{}{}
			participants = append(participants, m.SenderName)
		}
	}

	text := strings.TrimRight(sb.String(), "\n")
	id := sha1.Sum([]byte(sessionID + ":" + text))
	return Chunk{
		ID:           hex.EncodeToString(id[:]),
		SessionID:    sessionID,
		StartTime:    msgs[0].Timestamp,
		EndTime:      msgs[len(msgs)-1].Timestamp,
		Participants: participants,
		MessageIDs:   ids,
		Text:         text,
	}
}

func formatLine(m store.ChatMessage) string {
	return fmt.Sprintf("%s %s: %s",
		time.Unix(m.Timestamp, 0).Format("2006-01-02 15:04"), m.SenderName, m.Content)
}
