package distlock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisBackend(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client, mr
}

func TestRedisLock_SingleHolder(t *testing.T) {
	client, _ := newRedisBackend(t)
	ctx := context.Background()

	a := NewLock(client, nil, "batch", time.Minute)
	b := NewLock(client, nil, "batch", time.Minute)

	got, err := a.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, got)

	got, err = b.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, got, "second holder must be refused")

	require.NoError(t, a.Release(ctx))

	got, err = b.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, got)
}

func TestRedisLock_ReleaseAfterExpiryIsNoop(t *testing.T) {
	client, mr := newRedisBackend(t)
	ctx := context.Background()

	a := NewLock(client, nil, "batch", time.Second)
	got, err := a.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, got)

	mr.FastForward(2 * time.Second)

	b := NewLock(client, nil, "batch", time.Minute)
	got, err = b.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, got)

	// The expired holder must not free the new holder's lock.
	require.NoError(t, a.Release(ctx))
	got, err = NewLock(client, nil, "batch", time.Minute).Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, got)
}
