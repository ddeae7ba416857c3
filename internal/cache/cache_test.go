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

func TestMemory_SetGetClear(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(0, time.Minute)

	_, ok, err := c.Get(ctx, IndexPageKey("1"))
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, IndexPageKey("1"), []byte("first")))
	got, ok, err := c.Get(ctx, IndexPageKey("1"))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("first"), got)

	require.NoError(t, c.Clear(ctx))
	_, ok, err = c.Get(ctx, IndexPageKey("1"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemory_Expires(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(10, 50*time.Millisecond)

	require.NoError(t, c.Set(ctx, "k", []byte("v")))
	assert.Eventually(t, func() bool {
		_, ok, _ := c.Get(ctx, "k")
		return !ok
	}, time.Second, 10*time.Millisecond)
}

func newTestRedis(t *testing.T, ttl time.Duration) (*Redis, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	c := NewRedisWithClient(client, "test", ttl)
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestRedis_SetGetExpire(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestRedis(t, 20*time.Second)

	require.NoError(t, c.Set(ctx, IndexPageKey(""), []byte("body")))
	assert.True(t, mr.Exists("test:index_page:"))

	got, ok, err := c.Get(ctx, IndexPageKey(""))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("body"), got)

	mr.FastForward(21 * time.Second)
	_, ok, err = c.Get(ctx, IndexPageKey(""))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedis_ClearOnlyOwnPrefix(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestRedis(t, time.Minute)

	require.NoError(t, mr.Set("other:key", "keep"))
	require.NoError(t, c.Set(ctx, "a", []byte("1")))
	require.NoError(t, c.Set(ctx, "b", []byte("2")))

	require.NoError(t, c.Clear(ctx))

	_, ok, err := c.Get(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.True(t, mr.Exists("other:key"))
}

func TestNew_Backends(t *testing.T) {
	ctx := context.Background()

	c, err := New(ctx, Config{Backend: "memory", TTL: time.Second}, RedisOptions{})
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, c)

	mr := miniredis.RunT(t)
	c, err = New(ctx, Config{Backend: "redis"}, RedisOptions{Address: mr.Addr()})
	require.NoError(t, err)
	assert.IsType(t, &Redis{}, c)
	require.NoError(t, c.Close())

	_, err = New(ctx, Config{Backend: "memcached"}, RedisOptions{})
	assert.Error(t, err)
}
