package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"framesearch/internal/domain"
	"framesearch/internal/port"
)

// QueryCache is a bounded LRU of single-source retrieval results with a TTL.
type QueryCache struct {
	mu      sync.Mutex
	entries map[string]*cacheEntry
	order   []string
	maxSize int
	ttl     time.Duration
}

type cacheEntry struct {
	frames    []domain.FrameRecord
	timestamp time.Time
}

func NewQueryCache(maxSize int, ttl time.Duration) *QueryCache {
	if maxSize <= 0 {
		maxSize = 100
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &QueryCache{
		entries: make(map[string]*cacheEntry),
		order:   make([]string, 0, maxSize),
		maxSize: maxSize,
		ttl:     ttl,
	}
}

func cacheKey(kind string, payload []byte) string {
	data := append([]byte(kind+":"), payload...)
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:16])
}

// Get reports a live entry and marks it most recently used. Lookup, expiry
// and reordering happen under one lock so order always mirrors entries.
func (c *QueryCache) Get(key string) ([]domain.FrameRecord, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, exists := c.entries[key]
	if !exists {
		return nil, false
	}

	if time.Since(entry.timestamp) > c.ttl {
		delete(c.entries, key)
		c.removeFromOrder(key)
		return nil, false
	}

	c.moveToEnd(key)
	return entry.frames, true
}

func (c *QueryCache) Put(key string, frames []domain.FrameRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; exists {
		c.entries[key] = &cacheEntry{frames: frames, timestamp: time.Now()}
		c.moveToEnd(key)
		return
	}

	for len(c.entries) >= c.maxSize && len(c.order) > 0 {
		c.evictOldest()
	}

	c.entries[key] = &cacheEntry{frames: frames, timestamp: time.Now()}
	c.order = append(c.order, key)
}

func (c *QueryCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *QueryCache) evictOldest() {
	if len(c.order) == 0 {
		return
	}
	oldest := c.order[0]
	c.order = c.order[1:]
	delete(c.entries, oldest)
}

func (c *QueryCache) moveToEnd(key string) {
	c.removeFromOrder(key)
	c.order = append(c.order, key)
}

func (c *QueryCache) removeFromOrder(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}

// CachedRetriever memoizes a backend's retrievals. Each backend gets its
// own cache, so keys only need to cover the query payload.
type CachedRetriever struct {
	retriever port.FrameRetriever
	cache     *QueryCache
}

func NewCachedRetriever(retriever port.FrameRetriever, cache *QueryCache) *CachedRetriever {
	return &CachedRetriever{
		retriever: retriever,
		cache:     cache,
	}
}

func (r *CachedRetriever) SearchText(ctx context.Context, text string) ([]domain.FrameRecord, error) {
	key := cacheKey("text", []byte(text))
	if frames, hit := r.cache.Get(key); hit {
		return frames, nil
	}

	frames, err := r.retriever.SearchText(ctx, text)
	if err != nil {
		return nil, err
	}

	r.cache.Put(key, frames)
	return frames, nil
}

func (r *CachedRetriever) SearchImage(ctx context.Context, image []byte) ([]domain.FrameRecord, error) {
	key := cacheKey("image", image)
	if frames, hit := r.cache.Get(key); hit {
		return frames, nil
	}

	frames, err := r.retriever.SearchImage(ctx, image)
	if err != nil {
		return nil, err
	}

	r.cache.Put(key, frames)
	return frames, nil
}
