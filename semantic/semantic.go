// Package semantic implements retrieval-augmented search over embedded chat
// chunks: query rewrite, embedding, filtered candidate retrieval, optional
// LLM rerank, and top-k selection.
package semantic

import (
	"github.com/xiaorui775/ChatLab/embedding"
	"github.com/xiaorui775/ChatLab/store"
)

// ErrNotEnabled mirrors the embedding sentinel so callers at either layer can
// distinguish "feature off" from "no matches".
var ErrNotEnabled = embedding.ErrNotEnabled

const (
	defaultCandidates = 50
	defaultTopK       = 5
	// Previews returned to the model are capped to keep tool results bounded.
	maxPreviewRunes = 500
)

type SearchRequest struct {
	Query     string
	SessionID string
	TimeRange *store.TimeRange
	// Candidates bounds the retrieval set before reranking; TopK the final
	// result count. Zero means the default.
	Candidates int
	TopK       int
}

// ScoredChunk is one retrieved fragment with its similarity score and enough
// metadata to present without loading the chunk again.
type ScoredChunk struct {
	ChunkID      string   `json:"chunk_id"`
	SessionID    string   `json:"session_id"`
	StartTime    int64    `json:"start_time"`
	EndTime      int64    `json:"end_time"`
	Participants []string `json:"participants"`
	Content      string   `json:"content"`
	Score        float64  `json:"score"`
}

// SearchResponse carries the final fragments and the rewritten query actually
// used for retrieval.
type SearchResponse struct {
	Results []ScoredChunk `json:"results"`
	Query   string        `json:"query"`
}

// IndexStats summarizes one indexing pass over a session.
type IndexStats struct {
	Chunks   int `json:"chunks"`
	Embedded int `json:"embedded"`
	Reused   int `json:"reused"`
}
