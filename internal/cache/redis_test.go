package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewRedisWithClient(client, "relay-test", time.Minute), mr
}

func TestRedis_SetGet(t *testing.T) {
	c, _ := newTestRedis(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "key1", []byte("value1"), 0))

	val, err := c.Get(ctx, "key1")
	require.NoError(t, err)
	assert.Equal(t, []byte("value1"), val)
}

func TestRedis_MissReturnsNil(t *testing.T) {
	c, _ := newTestRedis(t)

	val, err := c.Get(context.Background(), "absent")
	require.NoError(t, err)
	assert.Nil(t, val)
}

func TestRedis_TTLExpiry(t *testing.T) {
	c, mr := newTestRedis(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "key", []byte("v"), time.Minute))

	mr.FastForward(2 * time.Minute)

	val, err := c.Get(ctx, "key")
	require.NoError(t, err)
	assert.Nil(t, val)
}

func TestRedis_Namespacing(t *testing.T) {
	c, mr := newTestRedis(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "abc", []byte("v"), 0))
	assert.True(t, mr.Exists("relay-test:abc"))
}

func TestRedis_DeleteAndFlush(t *testing.T) {
	c, _ := newTestRedis(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "a", []byte("1"), 0))
	require.NoError(t, c.Set(ctx, "b", []byte("2"), 0))

	require.NoError(t, c.Delete(ctx, "a"))
	val, err := c.Get(ctx, "a")
	require.NoError(t, err)
	assert.Nil(t, val)

	require.NoError(t, c.Flush(ctx))
	val, err = c.Get(ctx, "b")
	require.NoError(t, err)
	assert.Nil(t, val)
}

func TestRedis_Ping(t *testing.T) {
	c, mr := newTestRedis(t)
	require.NoError(t, c.Ping(context.Background()))

	mr.Close()
	assert.Error(t, c.Ping(context.Background()))
}
