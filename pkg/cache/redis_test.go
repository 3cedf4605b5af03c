package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

type testResult struct {
	Score float64 `json:"score"`
	Level string  `json:"level"`
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *Redis[testResult]) {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := NewRedis[testResult](context.Background(), RedisOptions{
		Addr: mr.Addr(),
		TTL:  time.Minute,
	})
	if err != nil {
		t.Fatalf("NewRedis() error = %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return mr, c
}

func TestRedisGetSet(t *testing.T) {
	_, c := newTestRedis(t)
	ctx := context.Background()

	if _, ok := c.Get(ctx, "missing"); ok {
		t.Error("empty cache should miss")
	}

	want := testResult{Score: 0.87, Level: "high"}
	c.Set(ctx, "abc123", want)

	got, ok := c.Get(ctx, "abc123")
	if !ok {
		t.Fatal("expected hit after Set")
	}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestRedisTTL(t *testing.T) {
	mr, c := newTestRedis(t)
	ctx := context.Background()

	c.Set(ctx, "k", testResult{Score: 0.5})
	mr.FastForward(61 * time.Second)

	if _, ok := c.Get(ctx, "k"); ok {
		t.Error("entry survived past its TTL")
	}
}

func TestRedisCorruptEntryIsMiss(t *testing.T) {
	mr, c := newTestRedis(t)
	ctx := context.Background()

	if err := mr.Set("shield:result:bad", "{not json"); err != nil {
		t.Fatal(err)
	}
	if _, ok := c.Get(ctx, "bad"); ok {
		t.Error("corrupt entry must be a miss")
	}
	// And it gets cleaned up
	if mr.Exists("shield:result:bad") {
		t.Error("corrupt entry should be deleted")
	}
}

func TestRedisStats(t *testing.T) {
	_, c := newTestRedis(t)
	ctx := context.Background()

	c.Set(ctx, "a", testResult{Score: 0.1})
	c.Get(ctx, "a")
	c.Get(ctx, "nope")

	s := c.Stats()
	if s.Hits != 1 || s.Misses != 1 {
		t.Errorf("hits=%d misses=%d, want 1/1", s.Hits, s.Misses)
	}
	if s.Size != 1 {
		t.Errorf("size = %d, want 1", s.Size)
	}
}

func TestRedisUnreachable(t *testing.T) {
	_, err := NewRedis[testResult](context.Background(), RedisOptions{Addr: "127.0.0.1:1"})
	if err == nil {
		t.Error("expected connection error for unreachable redis")
	}
}
