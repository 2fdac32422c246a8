package gitlab

import (
	"net/http"
	"sync"
	"time"
)

type cachedResponse struct {
	status int
	header http.Header
	body   []byte
}

type cacheEntry struct {
	value     cachedResponse
	expiresAt time.Time
}

// responseCache holds GET responses until their TTL. Expired entries are
// treated as misses and evicted lazily on lookup.
type responseCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	now     func() time.Time
}

func newResponseCache() *responseCache {
	return &responseCache{
		entries: make(map[string]cacheEntry),
		now:     time.Now,
	}
}

func (c *responseCache) Get(key string) (cachedResponse, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return cachedResponse{}, false
	}
	if !c.now().Before(entry.expiresAt) {
		delete(c.entries, key)
		return cachedResponse{}, false
	}
	return entry.value, true
}

func (c *responseCache) Set(key string, value cachedResponse, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	c.mu.Lock()
	c.entries[key] = cacheEntry{value: value, expiresAt: c.now().Add(ttl)}
	c.mu.Unlock()
}

func (c *responseCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
