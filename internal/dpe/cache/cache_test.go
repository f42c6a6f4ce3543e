package cache

import (
	"context"
	"testing"
	"time"

	"dpehub_backend/platform/config"
	"dpehub_backend/platform/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_GetSetClear(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(2, time.Minute)

	_, ok, err := m.Get(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, m.Set(ctx, "a", []byte("1")))
	v, ok, err := m.Get(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("1"), v)

	require.NoError(t, m.Clear(ctx))
	assert.Equal(t, 0, m.Len())
}

func TestMemory_EvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(2, time.Minute)

	require.NoError(t, m.Set(ctx, "a", []byte("1")))
	require.NoError(t, m.Set(ctx, "b", []byte("2")))
	_, _, _ = m.Get(ctx, "a")
	require.NoError(t, m.Set(ctx, "c", []byte("3")))

	_, ok, _ := m.Get(ctx, "b")
	assert.False(t, ok)
	_, ok, _ = m.Get(ctx, "a")
	assert.True(t, ok)
}

func TestMemory_Expires(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(4, 20*time.Millisecond)
	require.NoError(t, m.Set(ctx, "a", []byte("1")))

	assert.Eventually(t, func() bool {
		_, ok, _ := m.Get(ctx, "a")
		return !ok
	}, time.Second, 10*time.Millisecond)
}

func newRedisStore(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisFromClient(client, time.Minute)
	t.Cleanup(func() { _ = store.Close() })
	return store, mr
}

func TestRedis_GetSetClear(t *testing.T) {
	ctx := context.Background()
	store, mr := newRedisStore(t)

	_, ok, err := store.Get(ctx, "lines:thil")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Set(ctx, "lines:thil", []byte(`{"total":1}`)))
	v, ok, err := store.Get(ctx, "lines:thil")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `{"total":1}`, string(v))
	assert.True(t, mr.Exists("dpehub:lines:thil"))
	assert.Equal(t, time.Minute, mr.TTL("dpehub:lines:thil"))

	require.NoError(t, mr.Set("unrelated", "keep"))
	require.NoError(t, store.Clear(ctx))
	assert.False(t, mr.Exists("dpehub:lines:thil"))
	assert.True(t, mr.Exists("unrelated"))
}

func TestRedis_TTLExpiry(t *testing.T) {
	ctx := context.Background()
	store, mr := newRedisStore(t)

	require.NoError(t, store.Set(ctx, "k", []byte("v")))
	mr.FastForward(2 * time.Minute)

	_, ok, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedis_ClearEmpty(t *testing.T) {
	store, _ := newRedisStore(t)
	require.NoError(t, store.Clear(context.Background()))
	require.NoError(t, store.Ping(context.Background()))
}

func TestNewRedis_InvalidURL(t *testing.T) {
	_, err := NewRedis("://nope", time.Minute)
	require.Error(t, err)
}

func TestOpen_FallsBackToMemory(t *testing.T) {
	store, closeFn := Open(context.Background(), &config.Config{CacheSize: 4, CacheTTL: time.Minute}, logger.Discard())
	defer func() { _ = closeFn() }()
	_, ok := store.(*Memory)
	assert.True(t, ok)

	store, closeFn = Open(context.Background(), &config.Config{CacheSize: 4, CacheTTL: time.Minute, RedisURL: "redis://127.0.0.1:1"}, logger.Discard())
	defer func() { _ = closeFn() }()
	_, ok = store.(*Memory)
	assert.True(t, ok)
}

func TestOpen_UsesRedisWhenReachable(t *testing.T) {
	mr := miniredis.RunT(t)
	store, closeFn := Open(context.Background(), &config.Config{CacheSize: 4, CacheTTL: time.Minute, RedisURL: "redis://" + mr.Addr()}, logger.Discard())
	defer func() { _ = closeFn() }()

	_, ok := store.(*Redis)
	assert.True(t, ok)
}
