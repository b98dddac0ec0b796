package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	mr "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func runCacheContract(t *testing.T, c Cache) {
	ctx := context.Background()

	_, err := c.Get(ctx, "missing")
	require.ErrorIs(t, err, ErrMiss)

	require.NoError(t, c.Set(ctx, "a", []byte("1"), time.Minute))
	got, err := c.Get(ctx, "a")
	require.NoError(t, err)
	require.Equal(t, []byte("1"), got)

	require.NoError(t, c.Delete(ctx, "a"))
	_, err = c.Get(ctx, "a")
	require.ErrorIs(t, err, ErrMiss)

	for i := 0; i < 250; i++ {
		require.NoError(t, c.Set(ctx, fmt.Sprintf("k%d", i), []byte("v"), time.Minute))
	}
	require.NoError(t, c.Flush(ctx))
	for i := 0; i < 250; i += 50 {
		_, err = c.Get(ctx, fmt.Sprintf("k%d", i))
		require.ErrorIs(t, err, ErrMiss)
	}
}

func TestMemoryCache(t *testing.T) {
	runCacheContract(t, NewMemory(time.Minute))
}

func TestMemoryCacheExpiry(t *testing.T) {
	c := NewMemory(time.Minute)
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "short", []byte("x"), 20*time.Millisecond))
	time.Sleep(40 * time.Millisecond)
	_, err := c.Get(ctx, "short")
	require.ErrorIs(t, err, ErrMiss)
}

func TestRedisCache(t *testing.T) {
	m, err := mr.Run()
	require.NoError(t, err)
	defer m.Close()

	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	runCacheContract(t, NewRedis(client, "test:people:"))
}

func TestRedisCacheTTLAndFlushScope(t *testing.T) {
	m, err := mr.Run()
	require.NoError(t, err)
	defer m.Close()

	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	c := NewRedis(client, "")
	ctx := context.Background()

	require.NoError(t, client.Set(ctx, "unrelated", "keep", 0).Err())
	require.NoError(t, c.Set(ctx, "p1", []byte("x"), time.Second))
	require.True(t, m.Exists("cache:p1"))

	m.FastForward(2 * time.Second)
	_, err = c.Get(ctx, "p1")
	require.ErrorIs(t, err, ErrMiss)

	require.NoError(t, c.Set(ctx, "p2", []byte("y"), time.Minute))
	require.NoError(t, c.Flush(ctx))
	require.False(t, m.Exists("cache:p2"))
	v, err := client.Get(ctx, "unrelated").Result()
	require.NoError(t, err)
	require.Equal(t, "keep", v)
}
