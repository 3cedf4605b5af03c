// Package cache memoizes risk results keyed by text fingerprint.
//
// Two backends share one interface: an in-process LRU with per-entry TTL
// (the default) and a Redis store for deployments where several instances
// should share verdicts. Both keep cumulative process-lifetime hit/miss
// counters; eviction never resets them.
package cache

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// Stats reports cumulative cache effectiveness since process start.
type Stats struct {
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	Size    int     `json:"size"`
	HitRate float64 `json:"hit_rate"`
}

// Cache is the memoization contract the pipeline codes against.
// Get returns ok=false for missing or expired entries; expired entries
// count as misses. Set inserts or refreshes an entry at full TTL.
type Cache[V any] interface {
	Get(ctx context.Context, key string) (V, bool)
	Set(ctx context.Context, key string, value V)
	Stats() Stats
}

type memoryEntry[V any] struct {
	key       string
	value     V
	expiresAt time.Time
}

// Memory is a bounded LRU with per-entry TTL. Reads promote entries to
// most-recently-used; eviction happens only when an insert finds the cache
// at capacity; expiry is checked lazily on read.
type Memory[V any] struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	order    *list.List // front = most recently used
	entries  map[string]*list.Element
	hits     int64
	misses   int64
	now      func() time.Time
}

// NewMemory creates an in-process cache bounded to capacity entries, each
// living for ttl after its last Set.
func NewMemory[V any](capacity int, ttl time.Duration) *Memory[V] {
	if capacity <= 0 {
		capacity = 1000
	}
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	return &Memory[V]{
		capacity: capacity,
		ttl:      ttl,
		order:    list.New(),
		entries:  make(map[string]*list.Element, capacity),
		now:      time.Now,
	}
}

// Get returns the cached value for key. An expired entry is removed and
// reported as a miss; a live one is promoted to most-recently-used.
func (c *Memory[V]) Get(_ context.Context, key string) (V, bool) {
	var zero V
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		c.misses++
		return zero, false
	}
	entry := elem.Value.(*memoryEntry[V])
	if c.now().After(entry.expiresAt) {
		c.order.Remove(elem)
		delete(c.entries, key)
		c.misses++
		return zero, false
	}

	c.order.MoveToFront(elem)
	c.hits++
	return entry.value, true
}

// Set stores value under key at full TTL, evicting the least-recently-used
// entry when the cache is at capacity.
func (c *Memory[V]) Set(_ context.Context, key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expiresAt := c.now().Add(c.ttl)
	if elem, ok := c.entries[key]; ok {
		entry := elem.Value.(*memoryEntry[V])
		entry.value = value
		entry.expiresAt = expiresAt
		c.order.MoveToFront(elem)
		return
	}

	if c.order.Len() >= c.capacity {
		oldest := c.order.Back()
		if oldest != nil {
			c.order.Remove(oldest)
			delete(c.entries, oldest.Value.(*memoryEntry[V]).key)
		}
	}
	c.entries[key] = c.order.PushFront(&memoryEntry[V]{key: key, value: value, expiresAt: expiresAt})
}

// Stats returns cumulative counters. Evictions and expiries do not reset
// them; HitRate is hits over total lookups.
func (c *Memory[V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Stats{Hits: c.hits, Misses: c.misses, Size: c.order.Len()}
	if total := c.hits + c.misses; total > 0 {
		s.HitRate = float64(c.hits) / float64(total)
	}
	return s
}
