package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_BasicOperations(t *testing.T) {
	c := NewMemory(DefaultMemoryConfig())
	defer c.Close()

	ctx := context.Background()

	t.Run("set and get", func(t *testing.T) {
		require.NoError(t, c.Set(ctx, "key1", []byte("value1"), 0))

		val, err := c.Get(ctx, "key1")
		require.NoError(t, err)
		assert.Equal(t, []byte("value1"), val)
	})

	t.Run("get non-existent key", func(t *testing.T) {
		val, err := c.Get(ctx, "non-existent")
		require.NoError(t, err)
		assert.Nil(t, val)
	})

	t.Run("overwrite", func(t *testing.T) {
		require.NoError(t, c.Set(ctx, "key2", []byte("v1"), 0))
		require.NoError(t, c.Set(ctx, "key2", []byte("v2"), 0))

		val, err := c.Get(ctx, "key2")
		require.NoError(t, err)
		assert.Equal(t, []byte("v2"), val)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, c.Set(ctx, "key3", []byte("value3"), 0))
		require.NoError(t, c.Delete(ctx, "key3"))

		val, err := c.Get(ctx, "key3")
		require.NoError(t, err)
		assert.Nil(t, val)
	})

	t.Run("flush", func(t *testing.T) {
		require.NoError(t, c.Set(ctx, "key4", []byte("value4"), 0))
		require.NoError(t, c.Flush(ctx))
		assert.Equal(t, 0, c.Len())
	})
}

func TestMemory_TTLExpiry(t *testing.T) {
	c := NewMemory(MemoryConfig{DefaultTTL: 5 * time.Minute})
	defer c.Close()

	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c.SetClock(func() time.Time { return now })

	require.NoError(t, c.Set(ctx, "key", []byte("value"), 0))

	t.Run("fresh entry hits", func(t *testing.T) {
		now = now.Add(4 * time.Minute)
		val, err := c.Get(ctx, "key")
		require.NoError(t, err)
		assert.Equal(t, []byte("value"), val)
	})

	t.Run("stale entry misses and is discarded", func(t *testing.T) {
		now = now.Add(2 * time.Minute) // past TTL relative to createdAt
		val, err := c.Get(ctx, "key")
		require.NoError(t, err)
		assert.Nil(t, val)
		assert.Equal(t, 0, c.Len())
	})
}

func TestMemory_PerEntryTTL(t *testing.T) {
	c := NewMemory(MemoryConfig{DefaultTTL: time.Hour})
	defer c.Close()

	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c.SetClock(func() time.Time { return now })

	require.NoError(t, c.Set(ctx, "short", []byte("v"), time.Minute))

	now = now.Add(2 * time.Minute)
	val, err := c.Get(ctx, "short")
	require.NoError(t, err)
	assert.Nil(t, val)
}

func TestMemory_OversizedItemSkipped(t *testing.T) {
	c := NewMemory(MemoryConfig{DefaultTTL: time.Minute, MaxItemSize: 8})
	defer c.Close()

	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "big", []byte("way too large for the cache"), 0))

	val, err := c.Get(ctx, "big")
	require.NoError(t, err)
	assert.Nil(t, val)
}

func TestMemory_ValueIsolation(t *testing.T) {
	c := NewMemory(DefaultMemoryConfig())
	defer c.Close()

	ctx := context.Background()
	original := []byte("immutable")
	require.NoError(t, c.Set(ctx, "key", original, 0))

	original[0] = 'X'

	val, err := c.Get(ctx, "key")
	require.NoError(t, err)
	assert.Equal(t, []byte("immutable"), val)

	val[0] = 'Y'
	again, err := c.Get(ctx, "key")
	require.NoError(t, err)
	assert.Equal(t, []byte("immutable"), again)
}

func TestMemory_Stats(t *testing.T) {
	c := NewMemory(DefaultMemoryConfig())
	defer c.Close()

	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "key", []byte("v"), 0))

	_, _ = c.Get(ctx, "key")
	_, _ = c.Get(ctx, "missing")

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, int64(1), stats.Sets)
	assert.InDelta(t, 0.5, stats.HitRate, 0.001)
}
