package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T, ttl time.Duration) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewRedisCache(rdb, ttl), mr
}

func TestRedisCacheMiss(t *testing.T) {
	t.Parallel()

	cache, _ := newTestCache(t, time.Minute)

	_, found, err := cache.Get(context.Background(), "customers who ordered last month")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRedisCacheStoreAndGet(t *testing.T) {
	t.Parallel()

	cache, mr := newTestCache(t, 10*time.Second)
	ctx := context.Background()

	statement := "SELECT cust_id, cust_name FROM cust_info LIMIT 200"
	require.NoError(t, cache.Store(ctx, "list all customers", statement))

	got, found, err := cache.Get(ctx, "list all customers")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, statement, got)

	// TTL must be attached so stale translations expire.
	assert.Positive(t, mr.TTL(cacheKey("list all customers")))
}

func TestRedisCacheNormalizesRequest(t *testing.T) {
	t.Parallel()

	cache, _ := newTestCache(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, cache.Store(ctx, "List All Customers", "SELECT 1"))

	got, found, err := cache.Get(ctx, "  list all customers  ")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "SELECT 1", got)
}

func TestRedisCacheOverwrite(t *testing.T) {
	t.Parallel()

	cache, _ := newTestCache(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, cache.Store(ctx, "q", "SELECT 1"))
	require.NoError(t, cache.Store(ctx, "q", "SELECT 2"))

	got, found, err := cache.Get(ctx, "q")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "SELECT 2", got)
}

func TestRedisCacheContextCanceled(t *testing.T) {
	t.Parallel()

	cache, _ := newTestCache(t, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.Error(t, cache.Store(ctx, "q", "SELECT 1"))
}

func TestNoopCache(t *testing.T) {
	t.Parallel()

	cache := NewNoopCache()
	ctx := context.Background()

	require.NoError(t, cache.Store(ctx, "q", "SELECT 1"))

	_, found, err := cache.Get(ctx, "q")
	require.NoError(t, err)
	assert.False(t, found)
}
