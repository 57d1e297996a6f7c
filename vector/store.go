// Package vector persists chunk embeddings and answers nearest-neighbor
// queries over them. SQLite is the source of truth; an optional LRU layer
// fronts reads.
package vector

import "context"

// Metadata travels with every stored vector and comes back on search hits, so
// callers can present results without a second lookup.
type Metadata struct {
	SessionID    string   `json:"session_id"`
	StartTime    int64    `json:"start_time"`
	EndTime      int64    `json:"end_time"`
	Participants []string `json:"participants"`
	Preview      string   `json:"preview"`
}

type Record struct {
	ChunkID  string
	Vector   []float32
	Metadata Metadata
}

type SearchResult struct {
	Record
	Score float64
}

// Filter narrows a search before scoring. Zero fields mean no restriction.
type Filter struct {
	SessionID string
	StartTime int64
	EndTime   int64
}

type Stats struct {
	Records   int64
	CacheHits int64
	CacheMiss int64
}

type Store interface {
	Upsert(ctx context.Context, records []Record) error
	Get(ctx context.Context, chunkID string) (*Record, error)
	Search(ctx context.Context, query []float32, filter Filter, topK int) ([]SearchResult, error)
	Has(ctx context.Context, chunkID string) (bool, error)
	Clear(ctx context.Context) error
	Stats(ctx context.Context) (Stats, error)
	Close() error
}
