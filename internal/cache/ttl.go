package cache

import (
	"sync"
	"time"
)

// Store is the cache surface used by the mention resolver and intent router.
// Keys must always embed the owning user id; staleness is acceptable,
// cross-user leakage is not.
type Store interface {
	// Get returns the cached value, or false when absent or expired.
	Get(key string) (any, bool)
	// Set stores value under key for the given TTL. A non-positive TTL is a no-op.
	Set(key string, value any, ttl time.Duration)
}

type entry struct {
	value   any
	expires time.Time
}

// TTLCache is a mutex-protected map with per-entry expiry.
// Expired entries are evicted lazily on read and opportunistically on write.
type TTLCache struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
}

// New creates an empty TTLCache.
func New() *TTLCache {
	return &TTLCache{
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

// Get returns the cached value, or false when absent or expired.
func (c *TTLCache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.now().After(e.expires) {
		delete(c.entries, key)
		return nil, false
	}
	return e.value, true
}

// Set stores value under key for the given TTL.
func (c *TTLCache) Set(key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	// Opportunistic sweep to keep the map bounded under churn.
	if len(c.entries) > 4096 {
		now := c.now()
		for k, e := range c.entries {
			if now.After(e.expires) {
				delete(c.entries, k)
			}
		}
	}
	c.entries[key] = entry{value: value, expires: c.now().Add(ttl)}
}

// Len returns the number of entries currently held, including not-yet-evicted
// expired ones.
func (c *TTLCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Nop is a cache that stores nothing. Useful as a test substitute.
type Nop struct{}

// Get always misses.
func (Nop) Get(string) (any, bool) { return nil, false }

// Set discards the value.
func (Nop) Set(string, any, time.Duration) {}
