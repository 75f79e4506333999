// SPDX-License-Identifier: MIT

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupMiniRedis creates a test Redis server using miniredis.
func setupMiniRedis(t *testing.T) (*miniredis.Miniredis, *RedisCache) {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := NewRedisCache(RedisConfig{Addr: mr.Addr()}, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return mr, c
}

func TestRedisCache_SetGet(t *testing.T) {
	ctx := context.Background()
	mr, c := setupMiniRedis(t)

	require.NoError(t, c.Set(ctx, "dash:admin", stats{Lotes: 7}, time.Minute))
	assert.True(t, mr.Exists("seedlab:dash:admin"))

	var got stats
	ok, err := c.Get(ctx, "dash:admin", &got)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 7, got.Lotes)

	mr.FastForward(2 * time.Minute)
	ok, err = c.Get(ctx, "dash:admin", &got)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisCache_IncrSetsTTLOnce(t *testing.T) {
	ctx := context.Background()
	mr, c := setupMiniRedis(t)

	n, err := c.Incr(ctx, "fail:ana", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	mr.FastForward(30 * time.Second)
	n, err = c.Incr(ctx, "fail:ana", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	ttl, err := c.TTL(ctx, "fail:ana")
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, ttl)
}

func TestRedisCache_DeletePrefix(t *testing.T) {
	ctx := context.Background()
	mr, c := setupMiniRedis(t)
	require.NoError(t, c.Set(ctx, "dash:1", 1, 0))
	require.NoError(t, c.Set(ctx, "dash:2", 2, 0))
	require.NoError(t, c.Set(ctx, "lock:ana", 1, 0))

	require.NoError(t, c.DeletePrefix(ctx, "dash:"))
	assert.False(t, mr.Exists("seedlab:dash:1"))
	assert.True(t, mr.Exists("seedlab:lock:ana"))
}

func TestRedisCache_ConnectFailure(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()
	_, err := NewRedisCache(RedisConfig{Addr: addr}, zerolog.Nop())
	require.Error(t, err)
}
