package semantic

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/SaiNageswarS/go-api-boot/logger"
	"github.com/SaiNageswarS/go-collection-boot/async"
	"github.com/xiaorui775/ChatLab/chunking"
	"github.com/xiaorui775/ChatLab/llm"
	"github.com/xiaorui775/ChatLab/prompts"
	"github.com/xiaorui775/ChatLab/vector"
	"go.uber.org/zap"
)

// EmbeddingSource is what the pipeline needs from the embedding layer;
// *embedding.Manager satisfies it.
type EmbeddingSource interface {
	Enabled() bool
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Pipeline wires the retrieval stages together. The mini model handles query
// rewriting and reranking; either client may be nil, which skips that stage.
type Pipeline struct {
	embeddings EmbeddingSource
	vectors    vector.Store
	chunker    *chunking.Chunker
	mini       llm.LLMClient
	locale     string
	rerank     bool
}

type PipelineOption func(*Pipeline)

// WithMiniModel enables query rewriting and reranking through the given
// client.
func WithMiniModel(cli llm.LLMClient) PipelineOption {
	return func(p *Pipeline) { p.mini = cli; p.rerank = cli != nil }
}

func WithLocale(locale string) PipelineOption {
	return func(p *Pipeline) { p.locale = locale }
}

// WithoutRerank keeps query rewriting but skips the rerank stage.
func WithoutRerank() PipelineOption {
	return func(p *Pipeline) { p.rerank = false }
}

func NewPipeline(embeddings EmbeddingSource, vectors vector.Store, chunker *chunking.Chunker, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		embeddings: embeddings,
		vectors:    vectors,
		chunker:    chunker,
		locale:     "en",
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Search runs the full retrieval pipeline. It returns ErrNotEnabled when no
// embedding configuration is active; an enabled search with no matches
// returns an empty result set and a nil error.
func (p *Pipeline) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	if !p.embeddings.Enabled() {
		return nil, ErrNotEnabled
	}

	query := p.rewriteQuery(ctx, req.Query)

	queryVec, err := p.embeddings.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	filter := vector.Filter{SessionID: req.SessionID}
	if req.TimeRange != nil {
		filter.StartTime = req.TimeRange.Start
		filter.EndTime = req.TimeRange.End
	}

	candidates := req.Candidates
	if candidates <= 0 {
		candidates = defaultCandidates
	}
	topK := req.TopK
	if topK <= 0 {
		topK = defaultTopK
	}

	hits, err := p.vectors.Search(ctx, queryVec, filter, candidates)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	if len(hits) == 0 {
		return &SearchResponse{Query: query}, nil
	}

	if p.rerank && p.mini != nil && len(hits) > topK {
		hits = p.rerankHits(ctx, query, hits, topK)
	}
	if len(hits) > topK {
		hits = hits[:topK]
	}

	results := make([]ScoredChunk, len(hits))
	for i, h := range hits {
		results[i] = ScoredChunk{
			ChunkID:      h.ChunkID,
			SessionID:    h.Metadata.SessionID,
			StartTime:    h.Metadata.StartTime,
			EndTime:      h.Metadata.EndTime,
			Participants: h.Metadata.Participants,
			Content:      capRunes(h.Metadata.Preview, maxPreviewRunes),
			Score:        h.Score,
		}
	}
	return &SearchResponse{Results: results, Query: query}, nil
}

// rewriteQuery reformulates a conversational question into a retrieval query.
// Any failure falls back to the original text; rewriting is best-effort.
func (p *Pipeline) rewriteQuery(ctx context.Context, query string) string {
	if p.mini == nil {
		return query
	}
	system, err := prompts.RenderQueryRewritePrompt(p.locale)
	if err != nil {
		logger.Error("render rewrite prompt failed", zap.Error(err))
		return query
	}
	resp, err := p.mini.Chat(ctx,
		[]llm.Message{{Role: "user", Content: query}},
		llm.WithSystemPrompt(system), llm.WithTemperature(0.0))
	if err != nil {
		logger.Error("query rewrite failed, using original", zap.Error(err))
		return query
	}
	rewritten := strings.TrimSpace(resp.Content)
	if rewritten == "" {
		return query
	}
	return rewritten
}

// rerankHits asks the mini model to pick the most relevant candidates. The
// model returns a JSON array of candidate indices; anything unparseable keeps
// the similarity order.
func (p *Pipeline) rerankHits(ctx context.Context, query string, hits []vector.SearchResult, topK int) []vector.SearchResult {
	previews := make([]string, len(hits))
	for i, h := range hits {
		previews[i] = capRunes(h.Metadata.Preview, maxPreviewRunes)
	}

	system, user, err := prompts.RenderRerankPrompt(query, previews)
	if err != nil {
		logger.Error("render rerank prompt failed", zap.Error(err))
		return hits
	}
	resp, err := p.mini.Chat(ctx,
		[]llm.Message{{Role: "user", Content: user}},
		llm.WithSystemPrompt(system), llm.WithTemperature(0.0))
	if err != nil {
		logger.Error("rerank failed, keeping similarity order", zap.Error(err))
		return hits
	}

	indices := parseIndexArray(resp.Content)
	if len(indices) == 0 {
		return hits
	}

	reranked := make([]vector.SearchResult, 0, topK)
	seen := make(map[int]struct{}, len(indices))
	for _, idx := range indices {
		if idx < 0 || idx >= len(hits) {
			continue
		}
		if _, dup := seen[idx]; dup {
			continue
		}
		seen[idx] = struct{}{}
		reranked = append(reranked, hits[idx])
		if len(reranked) == topK {
			break
		}
	}
	if len(reranked) == 0 {
		return hits
	}
	return reranked
}

// IndexSession chunks a session and embeds every chunk not already stored.
// Chunk ids are content hashes, so unchanged conversation regions reuse their
// existing embeddings across runs.
func (p *Pipeline) IndexSession(ctx context.Context, sessionID string) (*IndexStats, error) {
	if !p.embeddings.Enabled() {
		return nil, ErrNotEnabled
	}

	chunks, err := p.chunker.ChunkSession(ctx, sessionID, chunking.Options{})
	if err != nil {
		return nil, fmt.Errorf("chunk session %s: %w", sessionID, err)
	}

	stats := &IndexStats{Chunks: len(chunks)}
	pending := make([]chunking.Chunk, 0, len(chunks))
	for _, c := range chunks {
		exists, err := p.vectors.Has(ctx, c.ID)
		if err != nil {
			return nil, fmt.Errorf("check chunk %s: %w", c.ID, err)
		}
		if exists {
			stats.Reused++
			continue
		}
		pending = append(pending, c)
	}
	if len(pending) == 0 {
		return stats, nil
	}

	tasks := make([]<-chan async.Result[vector.Record], 0, len(pending))
	for _, c := range pending {
		tasks = append(tasks, p.embedChunk(ctx, c))
	}
	records, err := async.AwaitAll(tasks...)
	if err != nil {
		return nil, fmt.Errorf("embed chunks: %w", err)
	}

	if err := p.vectors.Upsert(ctx, records); err != nil {
		return nil, fmt.Errorf("store embeddings: %w", err)
	}
	stats.Embedded = len(records)
	logger.Info("indexed session",
		zap.String("sessionId", sessionID),
		zap.Int("chunks", stats.Chunks),
		zap.Int("embedded", stats.Embedded),
		zap.Int("reused", stats.Reused))
	return stats, nil
}

func (p *Pipeline) embedChunk(ctx context.Context, c chunking.Chunk) <-chan async.Result[vector.Record] {
	return async.Go(func() (vector.Record, error) {
		vec, err := p.embeddings.Embed(ctx, c.Text)
		if err != nil {
			return vector.Record{}, fmt.Errorf("embed chunk %s: %w", c.ID, err)
		}
		return vector.Record{
			ChunkID: c.ID,
			Vector:  vec,
			Metadata: vector.Metadata{
				SessionID:    c.SessionID,
				StartTime:    c.StartTime,
				EndTime:      c.EndTime,
				Participants: c.Participants,
				Preview:      capRunes(c.Text, maxPreviewRunes),
			},
		}, nil
	})
}

// parseIndexArray extracts a JSON integer array from model output, tolerating
// surrounding prose or code fences.
func parseIndexArray(content string) []int {
	start := strings.Index(content, "[")
	end := strings.LastIndex(content, "]")
	if start < 0 || end <= start {
		return nil
	}
	var indices []int
	if err := json.Unmarshal([]byte(content[start:end+1]), &indices); err != nil {
		return nil
	}
	return indices
}

func capRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "…"
}
