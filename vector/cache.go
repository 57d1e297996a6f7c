package vector

import (
	"context"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

const defaultCacheSize = 4096

// CachedStore fronts a Store with an LRU of recently read records. Writes go
// through to the backing store and update the cache; the cache never affects
// search results, only Get latency.
type CachedStore struct {
	inner Store
	lru   *lru.Cache[string, *Record]

	hits   atomic.Int64
	misses atomic.Int64
}

func NewCachedStore(inner Store, size int) (*CachedStore, error) {
	if size <= 0 {
		size = defaultCacheSize
	}
	c, err := lru.New[string, *Record](size)
	if err != nil {
		return nil, err
	}
	return &CachedStore{inner: inner, lru: c}, nil
}

func (c *CachedStore) Upsert(ctx context.Context, records []Record) error {
	if err := c.inner.Upsert(ctx, records); err != nil {
		return err
	}
	for i := range records {
		r := records[i]
		c.lru.Add(r.ChunkID, &r)
	}
	return nil
}

func (c *CachedStore) Get(ctx context.Context, chunkID string) (*Record, error) {
	if rec, ok := c.lru.Get(chunkID); ok {
		c.hits.Add(1)
		return rec, nil
	}
	c.misses.Add(1)
	rec, err := c.inner.Get(ctx, chunkID)
	if err != nil || rec == nil {
		return rec, err
	}
	c.lru.Add(chunkID, rec)
	return rec, nil
}

func (c *CachedStore) Has(ctx context.Context, chunkID string) (bool, error) {
	if c.lru.Contains(chunkID) {
		return true, nil
	}
	return c.inner.Has(ctx, chunkID)
}

func (c *CachedStore) Search(ctx context.Context, query []float32, filter Filter, topK int) ([]SearchResult, error) {
	return c.inner.Search(ctx, query, filter, topK)
}

func (c *CachedStore) Clear(ctx context.Context) error {
	if err := c.inner.Clear(ctx); err != nil {
		return err
	}
	c.lru.Purge()
	return nil
}

func (c *CachedStore) Stats(ctx context.Context) (Stats, error) {
	st, err := c.inner.Stats(ctx)
	if err != nil {
		return st, err
	}
	st.CacheHits = c.hits.Load()
	st.CacheMiss = c.misses.Load()
	return st, nil
}

func (c *CachedStore) Close() error { return c.inner.Close() }
