package blacklist

import (
	"context"
	"sync"
	"time"
)

// Cache is the TTL flag store the deny-list writes through. Set-with-expiry
// and existence are all it needs.
type Cache interface {
	SetFlag(ctx context.Context, key string, ttl time.Duration) error
	HasFlag(ctx context.Context, key string) (bool, error)
}

// MemoryCache is a mutex-guarded Cache with lazy expiry, for single-process
// deployments and tests. Multi-instance deployments use the redis adapter.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]time.Time
	now     func() time.Time
}

var _ Cache = (*MemoryCache)(nil)

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]time.Time), now: time.Now}
}

func (c *MemoryCache) SetFlag(_ context.Context, key string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}

	c.mu.Lock()
	c.entries[key] = c.now().Add(ttl)
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) HasFlag(_ context.Context, key string) (bool, error) {
	c.mu.RLock()
	expiry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		return false, nil
	}
	if c.now().Before(expiry) {
		return true, nil
	}

	c.mu.Lock()
	// Re-check: a concurrent SetFlag may have renewed the entry.
	if current, ok := c.entries[key]; ok && !c.now().Before(current) {
		delete(c.entries, key)
	}
	c.mu.Unlock()
	return false, nil
}
