// Package cache provides a typed, TTL-aware in-process cache backed by Ristretto.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// Config sizes a Cache.
type Config struct {
	Name        string
	NumCounters int64 // keys tracked for admission, ~10x max items
	MaxCost     int64 // max items, every entry costs 1
	BufferItems int64
	DefaultTTL  time.Duration
}

// DefaultConfig returns a small cache suitable for address lookups.
func DefaultConfig(name string) Config {
	return Config{
		Name:        name,
		NumCounters: 10_000,
		MaxCost:     1_000,
		BufferItems: 64,
		DefaultTTL:  5 * time.Minute,
	}
}

// Cache maps string keys to values of type V.
type Cache[V any] struct {
	name  string
	inner *ristretto.Cache
	ttl   time.Duration

	hits   metric.Int64Counter
	misses metric.Int64Counter
}

// New creates a Cache.
func New[V any](cfg Config) (*Cache[V], error) {
	if cfg.BufferItems == 0 {
		cfg.BufferItems = 64
	}
	inner, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: cfg.NumCounters,
		MaxCost:     cfg.MaxCost,
		BufferItems: cfg.BufferItems,
	})
	if err != nil {
		return nil, fmt.Errorf("create %s cache: %w", cfg.Name, err)
	}

	c := &Cache[V]{name: cfg.Name, inner: inner, ttl: cfg.DefaultTTL}

	meter := otel.Meter("cache")
	if c.hits, err = meter.Int64Counter(cfg.Name+"_cache_hits_total", metric.WithDescription("Cache hits")); err != nil {
		return nil, err
	}
	if c.misses, err = meter.Int64Counter(cfg.Name+"_cache_misses_total", metric.WithDescription("Cache misses")); err != nil {
		return nil, err
	}
	return c, nil
}

// Get returns the value for key.
func (c *Cache[V]) Get(ctx context.Context, key string) (V, bool) {
	var zero V
	raw, ok := c.inner.Get(key)
	if !ok {
		c.misses.Add(ctx, 1)
		return zero, false
	}
	v, ok := raw.(V)
	if !ok {
		c.misses.Add(ctx, 1)
		return zero, false
	}
	c.hits.Add(ctx, 1)
	return v, true
}

// Set stores value for ttl, or the default TTL when ttl is zero. Writes
// are applied asynchronously; Wait blocks until they are visible.
func (c *Cache[V]) Set(_ context.Context, key string, value V, ttl time.Duration) bool {
	if ttl == 0 {
		ttl = c.ttl
	}
	return c.inner.SetWithTTL(key, value, 1, ttl)
}

// Delete removes key.
func (c *Cache[V]) Delete(key string) {
	c.inner.Del(key)
}

// Wait blocks until pending writes are applied.
func (c *Cache[V]) Wait() {
	c.inner.Wait()
}

// Close releases the cache.
func (c *Cache[V]) Close() {
	c.inner.Close()
}
