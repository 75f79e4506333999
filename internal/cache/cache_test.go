// SPDX-License-Identifier: MIT

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type stats struct {
	Lotes int            `json:"lotes"`
	Tipos map[string]int `json:"tipos"`
}

func TestMemoryCache_SetGet(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(0)

	require.NoError(t, c.Set(ctx, "dash:admin", stats{Lotes: 3, Tipos: map[string]int{"PMS": 1}}, time.Minute))

	var got stats
	ok, err := c.Get(ctx, "dash:admin", &got)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 3, got.Lotes)
	assert.Equal(t, 1, got.Tipos["PMS"])

	ok, err = c.Get(ctx, "missing", &got)
	require.NoError(t, err)
	assert.False(t, ok)

	s := c.Stats()
	assert.Equal(t, int64(1), s.Hits)
	assert.Equal(t, int64(1), s.Misses)
	assert.Equal(t, int64(1), s.Sets)
}

func TestMemoryCache_Expiration(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(0)
	now := time.Now()
	c.now = func() time.Time { return now }

	require.NoError(t, c.Set(ctx, "k", 1, time.Second))
	now = now.Add(2 * time.Second)

	var v int
	ok, err := c.Get(ctx, "k", &v)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryCache_DeletePrefix(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(0)
	require.NoError(t, c.Set(ctx, "dash:1", 1, 0))
	require.NoError(t, c.Set(ctx, "dash:2", 2, 0))
	require.NoError(t, c.Set(ctx, "other", 3, 0))

	require.NoError(t, c.DeletePrefix(ctx, "dash:"))
	assert.Equal(t, 1, c.Stats().CurrentSize)
}

func TestMemoryCache_IncrAndTTL(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(0)
	now := time.Now()
	c.now = func() time.Time { return now }

	for i := int64(1); i <= 3; i++ {
		n, err := c.Incr(ctx, "fail:ana", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, i, n)
	}
	ttl, err := c.TTL(ctx, "fail:ana")
	require.NoError(t, err)
	assert.Equal(t, time.Minute, ttl)

	now = now.Add(61 * time.Second)
	n, err := c.Incr(ctx, "fail:ana", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "window restarts after expiry")
}

func TestMemoryCache_JanitorStops(t *testing.T) {
	defer goleak.VerifyNone(t)
	c := NewMemoryCache(5 * time.Millisecond)
	require.NoError(t, c.Set(context.Background(), "k", 1, time.Millisecond))
	require.Eventually(t, func() bool { return c.Stats().CurrentSize == 0 }, time.Second, 5*time.Millisecond)
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
}
