// Package cache provides the in-process TTL cache in front of the
// expensive report builders.
package cache

import (
	"sync"
	"sync/atomic"
	"time"
)

// DefaultTTL is how long a report stays fresh.
const DefaultTTL = 5 * time.Minute

// TTL is a concurrent-safe key/value cache whose entries expire a fixed
// duration after they were stored. Expiry is checked on read only; stale
// entries stay in the map until the next Set for the same key replaces them.
type TTL[T any] struct {
	mu      sync.RWMutex
	entries map[string]entry[T]
	ttl     time.Duration
	now     func() time.Time
	hits    atomic.Int64
	misses  atomic.Int64
}

type entry[T any] struct {
	value    T
	storedAt time.Time
}

// Stats contains cache performance statistics.
type Stats struct {
	Entries int     `json:"entries"`
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	HitRate float64 `json:"hit_rate"`
}

// Option configures a TTL cache.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// New creates a cache with the given TTL. A non-positive ttl uses DefaultTTL.
func New[T any](ttl time.Duration, opts ...Option) *TTL[T] {
	o := options{now: time.Now}
	for _, fn := range opts {
		fn(&o)
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &TTL[T]{
		entries: make(map[string]entry[T]),
		ttl:     ttl,
		now:     o.now,
	}
}

// Get returns the value for key if it was stored less than the TTL ago.
func (c *TTL[T]) Get(key string) (T, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || c.now().Sub(e.storedAt) >= c.ttl {
		c.misses.Add(1)
		var zero T
		return zero, false
	}
	c.hits.Add(1)
	return e.value, true
}

// Set stores value under key, replacing any previous entry. Concurrent sets
// on one key are last-write-wins.
func (c *TTL[T]) Set(key string, value T) {
	e := entry[T]{value: value, storedAt: c.now()}

	c.mu.Lock()
	c.entries[key] = e
	c.mu.Unlock()
}

// Stats returns cache performance statistics. Entries counts stored keys,
// fresh or not.
func (c *TTL[T]) Stats() Stats {
	c.mu.RLock()
	entries := len(c.entries)
	c.mu.RUnlock()

	hits := c.hits.Load()
	misses := c.misses.Load()

	var hitRate float64
	if total := hits + misses; total > 0 {
		hitRate = float64(hits) / float64(total)
	}

	return Stats{
		Entries: entries,
		Hits:    hits,
		Misses:  misses,
		HitRate: hitRate,
	}
}
