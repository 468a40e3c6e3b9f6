// Package redis implements the response cache on a shared Redis instance so
// several gateway replicas can reuse each other's answers.
package redis

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	cachepkg "github.com/roteiro-ai/roteiro/pkg/cache"
	"github.com/roteiro-ai/roteiro/pkg/models"
)

// Cache stores answers as plain Redis strings with a native expiry.
type Cache struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
	hits   atomic.Int64
	misses atomic.Int64
}

var _ cachepkg.Cache = (*Cache)(nil)

// New creates a Cache. The client is owned by the caller.
func New(rdb *redis.Client, prefix string, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = cachepkg.DefaultTTL
	}
	return &Cache{rdb: rdb, prefix: prefix + "cache:", ttl: ttl}
}

func (c *Cache) key(persona, question string) string {
	return c.prefix + cachepkg.Key(persona, question)
}

// Get returns the cached answer. Redis errors read as a miss.
func (c *Cache) Get(ctx context.Context, persona, question string) (string, bool) {
	val, err := c.rdb.Get(ctx, c.key(persona, question)).Result()
	if err != nil {
		c.misses.Add(1)
		return "", false
	}
	c.hits.Add(1)
	return val, true
}

// Put stores an answer with the cache TTL.
func (c *Cache) Put(ctx context.Context, persona, question, response string) error {
	if err := c.rdb.Set(ctx, c.key(persona, question), response, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache put: %w", err)
	}
	return nil
}

// Stats counts live keys under the prefix.
func (c *Cache) Stats(ctx context.Context) (models.CacheStats, error) {
	var n int64
	iter := c.rdb.Scan(ctx, 0, c.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		n++
	}
	if err := iter.Err(); err != nil {
		return models.CacheStats{}, fmt.Errorf("cache stats: %w", err)
	}
	return models.CacheStats{
		Entries: n,
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
	}, nil
}

// Clear deletes every key under the prefix. Redis already drops expired keys,
// so expiredOnly has nothing to do.
func (c *Cache) Clear(ctx context.Context, expiredOnly bool) error {
	if expiredOnly {
		return nil
	}
	iter := c.rdb.Scan(ctx, 0, c.prefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("cache clear: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("cache clear: %w", err)
	}
	return nil
}

// Close is a no-op; the Redis client is shared and closed by its owner.
func (c *Cache) Close() error { return nil }
