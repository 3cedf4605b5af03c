package cache

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func TestMemoryGetSet(t *testing.T) {
	ctx := context.Background()
	c := NewMemory[string](10, time.Minute)

	if _, ok := c.Get(ctx, "missing"); ok {
		t.Error("empty cache should miss")
	}

	c.Set(ctx, "k", "v")
	got, ok := c.Get(ctx, "k")
	if !ok || got != "v" {
		t.Errorf("Get = %q/%v, want v/true", got, ok)
	}
}

func TestMemoryTTLExpiry(t *testing.T) {
	ctx := context.Background()
	c := NewMemory[string](10, time.Minute)

	now := time.Now()
	c.now = func() time.Time { return now }

	c.Set(ctx, "k", "v")

	now = now.Add(59 * time.Second)
	if _, ok := c.Get(ctx, "k"); !ok {
		t.Error("entry expired before its TTL")
	}

	now = now.Add(2 * time.Second)
	if _, ok := c.Get(ctx, "k"); ok {
		t.Error("entry survived past its TTL")
	}

	// The expired read removed the entry and counted as a miss
	s := c.Stats()
	if s.Size != 0 {
		t.Errorf("expired entry not removed, size=%d", s.Size)
	}
	if s.Hits != 1 || s.Misses != 1 {
		t.Errorf("hits=%d misses=%d, want 1/1", s.Hits, s.Misses)
	}
}

func TestMemoryLRUEviction(t *testing.T) {
	ctx := context.Background()
	c := NewMemory[int](3, time.Minute)

	c.Set(ctx, "a", 1)
	c.Set(ctx, "b", 2)
	c.Set(ctx, "c", 3)

	// Touch "a" so "b" becomes least recently used
	if _, ok := c.Get(ctx, "a"); !ok {
		t.Fatal("a should be present")
	}

	c.Set(ctx, "d", 4)

	if _, ok := c.Get(ctx, "b"); ok {
		t.Error("b should have been evicted as LRU")
	}
	for _, k := range []string{"a", "c", "d"} {
		if _, ok := c.Get(ctx, k); !ok {
			t.Errorf("%s should still be cached", k)
		}
	}
	if s := c.Stats(); s.Size != 3 {
		t.Errorf("size = %d, want 3", s.Size)
	}
}

func TestMemoryEvictionOnlyOnInsert(t *testing.T) {
	ctx := context.Background()
	c := NewMemory[int](2, time.Minute)

	c.Set(ctx, "a", 1)
	c.Set(ctx, "b", 2)

	// Reads and refreshes at capacity must not evict
	c.Get(ctx, "a")
	c.Set(ctx, "a", 11)

	if _, ok := c.Get(ctx, "b"); !ok {
		t.Error("refreshing an existing key must not evict others")
	}
	got, _ := c.Get(ctx, "a")
	if got != 11 {
		t.Errorf("refresh lost: got %d, want 11", got)
	}
}

func TestMemoryStatsCumulativeAcrossEvictions(t *testing.T) {
	ctx := context.Background()
	c := NewMemory[int](2, time.Minute)

	for i := 0; i < 10; i++ {
		key := fmt.Sprintf("k%d", i)
		c.Set(ctx, key, i)
		c.Get(ctx, key)           // hit
		c.Get(ctx, "nope")        // miss
	}

	s := c.Stats()
	if s.Hits != 10 || s.Misses != 10 {
		t.Errorf("hits=%d misses=%d, want 10/10 despite evictions", s.Hits, s.Misses)
	}
	if s.HitRate != 0.5 {
		t.Errorf("hit rate = %f, want 0.5", s.HitRate)
	}
	if s.Size != 2 {
		t.Errorf("size = %d, want capacity 2", s.Size)
	}
}

func TestMemoryConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	c := NewMemory[int](100, time.Minute)

	done := make(chan struct{})
	for w := 0; w < 8; w++ {
		go func(w int) {
			defer func() { done <- struct{}{} }()
			for i := 0; i < 200; i++ {
				key := fmt.Sprintf("k%d", i%50)
				c.Set(ctx, key, w)
				c.Get(ctx, key)
			}
		}(w)
	}
	for w := 0; w < 8; w++ {
		<-done
	}

	if s := c.Stats(); s.Size > 100 {
		t.Errorf("size %d exceeds capacity", s.Size)
	}
}
