package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestCache connects to ROTEIRO_TEST_REDIS (host:port) or skips.
func newTestCache(t *testing.T, ttl time.Duration) *Cache {
	t.Helper()
	addr := os.Getenv("ROTEIRO_TEST_REDIS")
	if addr == "" {
		t.Skip("ROTEIRO_TEST_REDIS not set")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = rdb.Close() })
	require.NoError(t, rdb.Ping(context.Background()).Err())

	c := New(rdb, "roteiro-test:"+uuid.NewString()+":", ttl)
	t.Cleanup(func() { _ = c.Clear(context.Background(), false) })
	return c
}

func TestPutAndGet(t *testing.T) {
	c := newTestCache(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, "technical", "Qual a dose?", "600 mg"))

	got, ok := c.Get(ctx, "technical", " qual a dose? ")
	require.True(t, ok)
	assert.Equal(t, "600 mg", got)

	_, ok = c.Get(ctx, "empathetic", "Qual a dose?")
	assert.False(t, ok)

	stats, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Entries)
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
}

func TestExpiry(t *testing.T) {
	c := newTestCache(t, time.Second)
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, "technical", "q", "a"))
	time.Sleep(1100 * time.Millisecond)

	_, ok := c.Get(ctx, "technical", "q")
	assert.False(t, ok)
}

func TestClear(t *testing.T) {
	c := newTestCache(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, "technical", "a", "1"))
	require.NoError(t, c.Put(ctx, "technical", "b", "2"))
	require.NoError(t, c.Clear(ctx, false))

	stats, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.Entries)
}
