package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis stores results in a shared Redis instance so every replica serves
// the same verdicts. TTL and eviction are delegated to Redis itself;
// hit/miss counters are per-process, matching the in-memory backend.
type Redis[V any] struct {
	client    *redis.Client
	ttl       time.Duration
	keyPrefix string
	hits      atomic.Int64
	misses    atomic.Int64
}

// RedisOptions configure the shared backend.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// NewRedis connects to Redis and verifies the connection before returning.
func NewRedis[V any](ctx context.Context, opts RedisOptions) (*Redis[V], error) {
	if opts.TTL <= 0 {
		opts.TTL = 60 * time.Second
	}
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis cache at %s: %w", opts.Addr, err)
	}
	return &Redis[V]{
		client:    client,
		ttl:       opts.TTL,
		keyPrefix: "shield:result:",
	}, nil
}

// Get fetches and decodes the cached value. Decode failures are treated as
// misses; a stale or corrupt entry must never surface as a result.
func (c *Redis[V]) Get(ctx context.Context, key string) (V, bool) {
	var zero V
	data, err := c.client.Get(ctx, c.keyPrefix+key).Bytes()
	if err != nil {
		c.misses.Add(1)
		return zero, false
	}
	var value V
	if err := json.Unmarshal(data, &value); err != nil {
		c.misses.Add(1)
		_ = c.client.Del(ctx, c.keyPrefix+key).Err()
		return zero, false
	}
	c.hits.Add(1)
	return value, true
}

// Set stores the value with the configured TTL. Failures are logged and
// swallowed: the cache is an optimization, not a dependency.
func (c *Redis[V]) Set(ctx context.Context, key string, value V) {
	data, err := json.Marshal(value)
	if err != nil {
		log.Printf("[WARN] Cache encode failed for %s: %v", key, err)
		return
	}
	if err := c.client.Set(ctx, c.keyPrefix+key, data, c.ttl).Err(); err != nil {
		log.Printf("[WARN] Cache write failed for %s: %v", key, err)
	}
}

// Stats reports this process's hit/miss counters. Size queries Redis and
// falls back to 0 when unreachable.
func (c *Redis[V]) Stats() Stats {
	s := Stats{Hits: c.hits.Load(), Misses: c.misses.Load()}
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if n, err := c.client.DBSize(ctx).Result(); err == nil {
		s.Size = int(n)
	}
	return s
}

// Close releases the Redis connection.
func (c *Redis[V]) Close() error {
	return c.client.Close()
}
