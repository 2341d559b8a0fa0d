package embedding

import (
	"github.com/hrygo/gridsense/ai/cache"
)

// CachedEmbedder memoizes an Embedder. Embedding is pure, so cached vectors
// never go stale; the LRU only bounds memory.
type CachedEmbedder struct {
	inner Embedder
	lru   *cache.LRU[string, []float32]
}

// NewCachedEmbedder wraps inner with an LRU of the given capacity.
func NewCachedEmbedder(inner Embedder, capacity int) *CachedEmbedder {
	return &CachedEmbedder{
		inner: inner,
		lru:   cache.NewLRU[string, []float32](capacity, 0),
	}
}

// Dimensions returns the wrapped embedder's dimension.
func (c *CachedEmbedder) Dimensions() int { return c.inner.Dimensions() }

// Embed returns the cached vector when available.
func (c *CachedEmbedder) Embed(text, contextTag string) []float32 {
	key := contextTag + "\x00" + text
	if vec, ok := c.lru.Get(key); ok {
		return vec
	}
	vec := c.inner.Embed(text, contextTag)
	c.lru.Put(key, vec)
	return vec
}
