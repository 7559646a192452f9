package throttle

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisLimiter(t *testing.T, cfg Config) (*RedisLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisLimiter(client, cfg), mr
}

func TestRedisLimiter_AllowsUpToLimit(t *testing.T) {
	l, _ := newRedisLimiter(t, Config{Limit: 3, Window: time.Minute})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := l.Allow(ctx, "10.0.0.1")
		require.NoError(t, err)
		assert.True(t, ok, "request %d within limit", i+1)
	}

	ok, err := l.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, ok, "request beyond the limit is rejected")
}

func TestRedisLimiter_KeysAreIndependent(t *testing.T) {
	l, _ := newRedisLimiter(t, Config{Limit: 1, Window: time.Minute})
	ctx := context.Background()

	ok, err := l.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = l.Allow(ctx, "10.0.0.2")
	require.NoError(t, err)
	assert.True(t, ok, "a different client has its own window")
}

func TestRedisLimiter_WindowResets(t *testing.T) {
	l, mr := newRedisLimiter(t, Config{Limit: 1, Window: time.Minute})
	ctx := context.Background()

	ok, err := l.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = l.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	require.False(t, ok)

	mr.FastForward(61 * time.Second)

	ok, err = l.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, ok, "a new window starts after expiry")
}

func TestRedisLimiter_UsesPrefixedKeys(t *testing.T) {
	l, mr := newRedisLimiter(t, Config{Limit: 5, Window: time.Minute})

	_, err := l.Allow(context.Background(), "10.0.0.1")
	require.NoError(t, err)

	assert.True(t, mr.Exists("throttle:10.0.0.1"))
}

func TestRedisLimiter_BackendDownReturnsError(t *testing.T) {
	l, mr := newRedisLimiter(t, DefaultConfig())
	mr.Close()

	_, err := l.Allow(context.Background(), "10.0.0.1")
	assert.Error(t, err)
}

func TestMemoryLimiter_BurstThenRejects(t *testing.T) {
	l := NewMemoryLimiter(Config{Limit: 3, Window: time.Minute})
	t.Cleanup(l.Close)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := l.Allow(ctx, "10.0.0.1")
		require.NoError(t, err)
		assert.True(t, ok, "request %d within burst", i+1)
	}

	ok, err := l.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = l.Allow(ctx, "10.0.0.9")
	require.NoError(t, err)
	assert.True(t, ok, "other clients are unaffected")
}

func TestMemoryLimiter_CloseStopsSweepAndIsIdempotent(t *testing.T) {
	l := NewMemoryLimiter(Config{Limit: 2, Window: time.Minute})
	l.Close()
	l.Close()

	// Closing only stops the background eviction; admission keeps working.
	ok, err := l.Allow(context.Background(), "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, ok)
}
