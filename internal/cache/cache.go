// Package cache implements the time-bounded store shared by the weather and
// air-quality clients. It bounds call volume to external sources: any lookup
// within the TTL window is served from memory and never re-issues a network
// call.
//
// The cache grows without bound beyond TTL eviction. This is a deliberate
// tradeoff: keys are derived from region coordinates, so the entry count is
// bounded by the number of distinct regions in practice.
package cache

import (
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// DefaultTTL is the standard time-to-live for cached source responses.
const DefaultTTL = 15 * time.Minute

type entry[V any] struct {
	value     V
	createdAt time.Time
}

// Cache is a typed key-to-value store with per-entry expiration. Expired
// entries are evicted lazily on access, not by a background sweep. It is safe
// for concurrent use.
type Cache[V any] struct {
	ttl   time.Duration
	clock clockwork.Clock

	mu      sync.Mutex
	entries map[string]entry[V]
}

// New creates a cache with the given TTL. A ttl <= 0 falls back to DefaultTTL.
func New[V any](ttl time.Duration) *Cache[V] {
	return NewWithClock[V](ttl, clockwork.NewRealClock())
}

// NewWithClock creates a cache with an injected clock, allowing tests to
// advance time without sleeping.
func NewWithClock[V any](ttl time.Duration, clock clockwork.Clock) *Cache[V] {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache[V]{
		ttl:     ttl,
		clock:   clock,
		entries: make(map[string]entry[V]),
	}
}

// Get returns the cached value for key. An entry older than the TTL is
// treated as absent and removed as a side effect.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	if c.clock.Since(e.createdAt) > c.ttl {
		delete(c.entries, key)
		var zero V
		return zero, false
	}
	return e.value, true
}

// Set stores value under key, overwriting (never merging with) any existing
// entry and resetting its age.
func (c *Cache[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry[V]{value: value, createdAt: c.clock.Now()}
}

// Clear removes all entries.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]entry[V])
}

// Len returns the number of stored entries, including any that have expired
// but not yet been evicted by a Get.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Key builds a cache key from semantically relevant parameters: a logical
// source tag, the coordinate rounded to four decimals, and the day count.
// Distinct queries never collide and identical queries always hit.
func Key(tag string, lat, lon float64, days int) string {
	return fmt.Sprintf("%s:%.4f,%.4f:%d", tag, lat, lon, days)
}
