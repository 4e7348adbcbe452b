// Package cache provides a thread-safe in-memory cache with TTL support.
package cache

import (
	"sync"
	"time"
)

const sweepInterval = 5 * time.Minute

type entry struct {
	value      any
	expiration time.Time
}

// Cache is a thread-safe TTL cache. Entries expire lazily on Get and are
// swept periodically in the background.
type Cache struct {
	entries map[string]entry
	mu      sync.RWMutex
	ttl     time.Duration
}

// New creates a cache with the given default TTL.
func New(ttl time.Duration) *Cache {
	c := &Cache{
		entries: make(map[string]entry),
		ttl:     ttl,
	}
	go c.sweep()
	return c
}

// Get returns the cached value for key, if present and not expired.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if time.Now().After(e.expiration) {
		c.mu.Lock()
		// Re-check after lock upgrade: another goroutine may have replaced it.
		if cur, ok := c.entries[key]; ok && time.Now().After(cur.expiration) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, false
	}
	return e.value, true
}

// Set stores value under key with the default TTL.
func (c *Cache) Set(key string, value any) {
	c.SetWithTTL(key, value, c.ttl)
}

// SetWithTTL stores value under key with a custom TTL.
func (c *Cache) SetWithTTL(key string, value any, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry{value: value, expiration: time.Now().Add(ttl)}
}

// sweep periodically removes expired entries.
func (c *Cache) sweep() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for range ticker.C {
		now := time.Now()
		c.mu.Lock()
		for key, e := range c.entries {
			if now.After(e.expiration) {
				delete(c.entries, key)
			}
		}
		c.mu.Unlock()
	}
}
