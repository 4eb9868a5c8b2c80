// Package cache holds the last known good upstream payload per
// (resource, symbol) pair, bounded by a freshness TTL.
//
// Expiry is lazy: an entry past its TTL is deleted on the read that
// discovers it. The key space is bounded by the number of monitored
// resource/symbol pairs, so there is no capacity limit or sweep goroutine.
package cache

import (
	"sync"
	"time"
)

// Key derives the deterministic cache key for a resource and symbol.
func Key(resource, symbol string) string {
	return resource + ":" + symbol
}

type entry struct {
	payload  any
	storedAt time.Time
}

// Cache is a mutex-guarded TTL map from cache key to payload.
type Cache struct {
	mu      sync.Mutex
	entries map[string]entry
	ttl     time.Duration

	// now is swapped out in tests.
	now func() time.Time
}

// New constructs a cache whose entries expire ttl after being stored.
func New(ttl time.Duration) *Cache {
	return &Cache{
		entries: make(map[string]entry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Set stores or overwrites the payload for key, stamping it with the
// current time.
func (c *Cache) Set(key string, payload any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry{payload: payload, storedAt: c.now()}
}

// Get returns the payload and its age when an unexpired entry exists.
// An expired entry is deleted on discovery and reported as a miss.
func (c *Cache) Get(key string) (any, time.Duration, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, 0, false
	}

	age := c.now().Sub(e.storedAt)
	if age > c.ttl {
		delete(c.entries, key)
		return nil, 0, false
	}
	return e.payload, age, true
}

// Len reports the number of live entries, expired or not. Used for tests
// and the health endpoint.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
