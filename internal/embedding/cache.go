package embedding

import (
	"container/list"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
)

// EmbeddingCache is an LRU cache for embeddings keyed by text.
type EmbeddingCache struct {
	capacity int
	cache    map[string]*list.Element
	lru      *list.List
	mu       sync.Mutex
}

type cacheEntry struct {
	key   string
	value []float32
}

// NewEmbeddingCache creates a new cache with the given capacity.
func NewEmbeddingCache(capacity int) *EmbeddingCache {
	if capacity <= 0 {
		capacity = 1
	}
	return &EmbeddingCache{
		capacity: capacity,
		cache:    make(map[string]*list.Element),
		lru:      list.New(),
	}
}

// Get returns the cached embedding for key if present.
func (c *EmbeddingCache) Get(key string) ([]float32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.cache[key]; ok {
		c.lru.MoveToFront(elem)
		return elem.Value.(*cacheEntry).value, true
	}
	return nil, false
}

// Set stores the embedding for key, evicting the oldest entry if at capacity.
func (c *EmbeddingCache) Set(key string, value []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.cache[key]; ok {
		c.lru.MoveToFront(elem)
		elem.Value.(*cacheEntry).value = value
		return
	}

	entry := &cacheEntry{key: key, value: value}
	elem := c.lru.PushFront(entry)
	c.cache[key] = elem

	if c.lru.Len() > c.capacity {
		oldest := c.lru.Back()
		if oldest != nil {
			c.lru.Remove(oldest)
			delete(c.cache, oldest.Value.(*cacheEntry).key)
		}
	}
}

// Len returns the number of cached entries.
func (c *EmbeddingCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// CachingEmbedder wraps an Embedder with an EmbeddingCache keyed by the SHA-256 of the text.
// Returned vectors are copies, so callers may modify them.
type CachingEmbedder struct {
	next  Embedder
	cache *EmbeddingCache
}

// NewCachingEmbedder wraps next with a cache holding up to size embeddings.
func NewCachingEmbedder(next Embedder, size int) *CachingEmbedder {
	return &CachingEmbedder{next: next, cache: NewEmbeddingCache(size)}
}

func cacheKey(prefix, text string) string {
	sum := sha256.Sum256([]byte(text))
	return prefix + hex.EncodeToString(sum[:])
}

// Embed returns the cached embedding for text or computes and caches it.
func (e *CachingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := cacheKey("d:", text)
	if cached, ok := e.cache.Get(key); ok {
		return cloneVector(cached), nil
	}
	emb, err := e.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	e.cache.Set(key, cloneVector(emb))
	return emb, nil
}

// EmbedQuery is Embed for search queries; query and document embeddings are cached separately.
func (e *CachingEmbedder) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	key := cacheKey("q:", query)
	if cached, ok := e.cache.Get(key); ok {
		return cloneVector(cached), nil
	}
	emb, err := EmbedQuery(ctx, e.next, query)
	if err != nil {
		return nil, err
	}
	e.cache.Set(key, cloneVector(emb))
	return emb, nil
}

// EmbedBatch calls Embed for each text.
func (e *CachingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return embedEach(ctx, e, texts)
}

// Dimensions returns the wrapped embedder's dimension.
func (e *CachingEmbedder) Dimensions() int {
	return e.next.Dimensions()
}

// Close closes the wrapped embedder.
func (e *CachingEmbedder) Close() error {
	return e.next.Close()
}

func cloneVector(v []float32) []float32 {
	if v == nil {
		return nil
	}
	out := make([]float32, len(v))
	copy(out, v)
	return out
}
