// Package cache provides a small bounded TTL cache. Entries are
// (value, insertion time) pairs expired lazily on read; when the cache
// is full the oldest entry is evicted. Safe for concurrent use.
package cache

import (
	"sync"
	"time"
)

const defaultMaxSize = 1024

type entry[V any] struct {
	value    V
	inserted time.Time
}

// TTL is a time-to-live cache from K to V.
type TTL[K comparable, V any] struct {
	ttl     time.Duration
	maxSize int
	now     func() time.Time

	mu      sync.Mutex
	entries map[K]entry[V]
}

// NewTTL creates a cache whose entries expire after ttl. A maxSize of
// zero or less selects the default capacity of 1024.
func NewTTL[K comparable, V any](ttl time.Duration, maxSize int) *TTL[K, V] {
	if maxSize <= 0 {
		maxSize = defaultMaxSize
	}
	return &TTL[K, V]{
		ttl:     ttl,
		maxSize: maxSize,
		now:     time.Now,
		entries: make(map[K]entry[V]),
	}
}

// WithClock overrides the clock, for tests.
func (c *TTL[K, V]) WithClock(now func() time.Time) *TTL[K, V] {
	c.now = now
	return c
}

// Get returns the cached value for key if present and not expired.
func (c *TTL[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	if c.now().Sub(e.inserted) >= c.ttl {
		delete(c.entries, key)
		var zero V
		return zero, false
	}
	return e.value, true
}

// Set stores value under key, restamping its insertion time.
func (c *TTL[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; !ok && len(c.entries) >= c.maxSize {
		c.evictLocked()
	}
	c.entries[key] = entry[V]{value: value, inserted: c.now()}
}

// Len returns the number of entries, expired ones included.
func (c *TTL[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// evictLocked drops expired entries, and the oldest live entry when
// none were expired. Callers hold c.mu.
func (c *TTL[K, V]) evictLocked() {
	now := c.now()
	dropped := false
	for k, e := range c.entries {
		if now.Sub(e.inserted) >= c.ttl {
			delete(c.entries, k)
			dropped = true
		}
	}
	if dropped {
		return
	}

	var oldestKey K
	var oldest time.Time
	first := true
	for k, e := range c.entries {
		if first || e.inserted.Before(oldest) {
			oldestKey, oldest = k, e.inserted
			first = false
		}
	}
	if !first {
		delete(c.entries, oldestKey)
	}
}
