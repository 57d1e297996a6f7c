package semantic

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xiaorui775/ChatLab/chunking"
	"github.com/xiaorui775/ChatLab/embedding"
	"github.com/xiaorui775/ChatLab/llm"
	"github.com/xiaorui775/ChatLab/store"
	"github.com/xiaorui775/ChatLab/vector"
)

// fakeEmbeddings maps any text to a fixed-direction vector keyed by keyword.
type fakeEmbeddings struct {
	enabled bool
	calls   int
}

func (f *fakeEmbeddings) Enabled() bool { return f.enabled }

func (f *fakeEmbeddings) Embed(ctx context.Context, text string) ([]float32, error) {
	f.calls++
	if strings.Contains(text, "deploy") {
		return []float32{1, 0}, nil
	}
	return []float32{0, 1}, nil
}

// memVectors is a minimal in-memory vector.Store for pipeline tests.
type memVectors struct {
	records map[string]vector.Record
}

func newMemVectors() *memVectors {
	return &memVectors{records: make(map[string]vector.Record)}
}

func (m *memVectors) Upsert(ctx context.Context, records []vector.Record) error {
	for _, r := range records {
		m.records[r.ChunkID] = r
	}
	return nil
}

func (m *memVectors) Get(ctx context.Context, chunkID string) (*vector.Record, error) {
	if r, ok := m.records[chunkID]; ok {
		return &r, nil
	}
	return nil, nil
}

func (m *memVectors) Has(ctx context.Context, chunkID string) (bool, error) {
	_, ok := m.records[chunkID]
	return ok, nil
}

func (m *memVectors) Search(ctx context.Context, query []float32, filter vector.Filter, topK int) ([]vector.SearchResult, error) {
	var out []vector.SearchResult
	for _, r := range m.records {
		if filter.SessionID != "" && r.Metadata.SessionID != filter.SessionID {
			continue
		}
		score := float64(query[0]*r.Vector[0] + query[1]*r.Vector[1])
		out = append(out, vector.SearchResult{Record: r, Score: score})
	}
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j].Score > out[i].Score {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	if topK > 0 && len(out) > topK {
		out = out[:topK]
	}
	return out, nil
}

func (m *memVectors) Clear(ctx context.Context) error {
	m.records = make(map[string]vector.Record)
	return nil
}

func (m *memVectors) Stats(ctx context.Context) (vector.Stats, error) {
	return vector.Stats{Records: int64(len(m.records))}, nil
}

func (m *memVectors) Close() error { return nil }

// cannedMini replays responses keyed by call order.
type cannedMini struct {
	responses []string
	calls     int
}

func (c *cannedMini) Chat(ctx context.Context, messages []llm.Message, opts ...llm.LLMOption) (*llm.ChatResponse, error) {
	if c.calls >= len(c.responses) {
		return nil, errors.New("no more canned responses")
	}
	resp := c.responses[c.calls]
	c.calls++
	return &llm.ChatResponse{Content: resp, FinishReason: llm.FinishStop}, nil
}

func (c *cannedMini) ChatStream(ctx context.Context, messages []llm.Message, onChunk func(chunk llm.StreamChunk) error, opts ...llm.LLMOption) (*llm.ChatResponse, error) {
	return c.Chat(ctx, messages, opts...)
}

func (c *cannedMini) Capabilities() llm.Capability { return 0 }
func (c *cannedMini) GetModel() string             { return "canned" }

func seedVectors(t *testing.T, v vector.Store) {
	t.Helper()
	require.NoError(t, v.Upsert(context.Background(), []vector.Record{
		{ChunkID: "deploy-chunk", Vector: []float32{1, 0}, Metadata: vector.Metadata{
			SessionID: "s1", StartTime: 100, EndTime: 200,
			Participants: []string{"Alice"}, Preview: "we deployed at noon",
		}},
		{ChunkID: "lunch-chunk", Vector: []float32{0, 1}, Metadata: vector.Metadata{
			SessionID: "s1", StartTime: 300, EndTime: 400,
			Participants: []string{"Bob"}, Preview: "noodles for lunch",
		}},
	}))
}

func TestSearchNotEnabled(t *testing.T) {
	p := NewPipeline(&fakeEmbeddings{enabled: false}, newMemVectors(), nil)

	_, err := p.Search(context.Background(), SearchRequest{Query: "anything"})
	assert.ErrorIs(t, err, ErrNotEnabled)
	assert.ErrorIs(t, err, embedding.ErrNotEnabled)

	_, err = p.IndexSession(context.Background(), "s1")
	assert.ErrorIs(t, err, ErrNotEnabled)
}

func TestSearchEmptyIsNotAnError(t *testing.T) {
	p := NewPipeline(&fakeEmbeddings{enabled: true}, newMemVectors(), nil)

	resp, err := p.Search(context.Background(), SearchRequest{Query: "deploy history"})
	require.NoError(t, err)
	assert.Empty(t, resp.Results)
	assert.Equal(t, "deploy history", resp.Query)
}

func TestSearchRanksBySimilarity(t *testing.T) {
	vecs := newMemVectors()
	seedVectors(t, vecs)
	p := NewPipeline(&fakeEmbeddings{enabled: true}, vecs, nil)

	resp, err := p.Search(context.Background(), SearchRequest{Query: "when was the deploy", SessionID: "s1", TopK: 1})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "deploy-chunk", resp.Results[0].ChunkID)
	assert.Equal(t, "we deployed at noon", resp.Results[0].Content)
	assert.Equal(t, []string{"Alice"}, resp.Results[0].Participants)
	assert.Equal(t, int64(100), resp.Results[0].StartTime)
}

func TestSearchUsesRewrittenQuery(t *testing.T) {
	vecs := newMemVectors()
	seedVectors(t, vecs)
	mini := &cannedMini{responses: []string{"deploy timing"}}
	p := NewPipeline(&fakeEmbeddings{enabled: true}, vecs, nil, WithMiniModel(mini), WithoutRerank())

	resp, err := p.Search(context.Background(), SearchRequest{Query: "when did we ship it?", TopK: 1})
	require.NoError(t, err)
	assert.Equal(t, "deploy timing", resp.Query)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "deploy-chunk", resp.Results[0].ChunkID)
}

func TestSearchRerankReorders(t *testing.T) {
	vecs := newMemVectors()
	seedVectors(t, vecs)
	// First canned response rewrites, second reranks: the model promotes
	// index 1 over index 0.
	mini := &cannedMini{responses: []string{"deploy timing", "[1, 0]"}}
	p := NewPipeline(&fakeEmbeddings{enabled: true}, vecs, nil, WithMiniModel(mini))

	resp, err := p.Search(context.Background(), SearchRequest{Query: "ship it", TopK: 1})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "lunch-chunk", resp.Results[0].ChunkID)
}

func TestSearchRerankFailureKeepsOrder(t *testing.T) {
	vecs := newMemVectors()
	seedVectors(t, vecs)
	mini := &cannedMini{responses: []string{"deploy timing", "not an array at all"}}
	p := NewPipeline(&fakeEmbeddings{enabled: true}, vecs, nil, WithMiniModel(mini))

	resp, err := p.Search(context.Background(), SearchRequest{Query: "ship it", TopK: 1})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "deploy-chunk", resp.Results[0].ChunkID)
}

func TestParseIndexArray(t *testing.T) {
	assert.Equal(t, []int{2, 0, 1}, parseIndexArray("[2, 0, 1]"))
	assert.Equal(t, []int{1}, parseIndexArray("The best match is:\n```json\n[1]\n```"))
	assert.Nil(t, parseIndexArray("no brackets"))
	assert.Nil(t, parseIndexArray("[not, numbers]"))
}

func TestIndexSessionReusesEmbeddings(t *testing.T) {
	st := store.NewMemStore()
	base := time.Date(2024, 3, 4, 9, 0, 0, 0, time.Local)
	for i := 0; i < 5; i++ {
		st.AddMessage(store.ChatMessage{
			ID: int64(i + 1), SessionID: "s1", SenderID: 1, SenderName: "Alice",
			Content:   "deploy discussion continues",
			Timestamp: base.Add(time.Duration(i) * time.Minute).Unix(),
		})
	}

	chunker, err := chunking.NewChunker(st)
	require.NoError(t, err)

	emb := &fakeEmbeddings{enabled: true}
	vecs := newMemVectors()
	p := NewPipeline(emb, vecs, chunker)

	stats, err := p.IndexSession(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, stats.Chunks, stats.Embedded)
	assert.Zero(t, stats.Reused)
	firstCalls := emb.calls

	// Unchanged content: every chunk id already exists, nothing re-embedded.
	stats, err = p.IndexSession(context.Background(), "s1")
	require.NoError(t, err)
	assert.Zero(t, stats.Embedded)
	assert.Equal(t, stats.Chunks, stats.Reused)
	assert.Equal(t, firstCalls, emb.calls)
}
