package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oggyb/matchbot/internal/cache"
	"github.com/oggyb/matchbot/internal/config"
)

func newCache(t *testing.T) (*cache.RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	cfg := &config.Config{}
	cfg.Redis.Addr = mr.Addr()
	return cache.NewRedisCache(cfg), mr
}

func TestPendingLikes_MissSetHitInvalidate(t *testing.T) {
	ctx := context.Background()
	rc, mr := newCache(t)

	_, ok, err := rc.GetPendingLikes(ctx, 7)
	require.NoError(t, err)
	assert.False(t, ok, "empty cache is a miss")

	require.NoError(t, rc.SetPendingLikes(ctx, 7, 3))
	n, ok, err := rc.GetPendingLikes(ctx, 7)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(3), n)
	assert.Equal(t, cache.PendingLikesTTL, mr.TTL(cache.KeyForPendingLikes(7)))

	require.NoError(t, rc.InvalidatePendingLikes(ctx, 7, 8))
	_, ok, err = rc.GetPendingLikes(ctx, 7)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPendingLikes_ExpiresAfterTTL(t *testing.T) {
	ctx := context.Background()
	rc, mr := newCache(t)

	require.NoError(t, rc.SetPendingLikes(ctx, 1, 5))
	mr.FastForward(cache.PendingLikesTTL + time.Second)

	_, ok, err := rc.GetPendingLikes(ctx, 1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTryLock(t *testing.T) {
	ctx := context.Background()
	rc, _ := newCache(t)

	got, err := rc.TryLock(ctx, "lock:test", "a", time.Minute)
	require.NoError(t, err)
	assert.True(t, got)

	got, err = rc.TryLock(ctx, "lock:test", "b", time.Minute)
	require.NoError(t, err)
	assert.False(t, got, "second owner must not take a held lease")

	require.NoError(t, rc.Unlock(ctx, "lock:test", "b"))
	got, _ = rc.TryLock(ctx, "lock:test", "b", time.Minute)
	assert.False(t, got, "unlock by a non-owner is ignored")

	require.NoError(t, rc.Unlock(ctx, "lock:test", "a"))
	got, _ = rc.TryLock(ctx, "lock:test", "b", time.Minute)
	assert.True(t, got)
}

func TestExtendLock(t *testing.T) {
	ctx := context.Background()
	rc, mr := newCache(t)

	ok, err := rc.TryLock(ctx, "lock:test", "a", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(50 * time.Second)
	ok, err = rc.ExtendLock(ctx, "lock:test", "a", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, time.Minute, mr.TTL("lock:test"))

	ok, err = rc.ExtendLock(ctx, "lock:test", "b", time.Hour)
	require.NoError(t, err)
	assert.False(t, ok, "only the owner extends")

	mr.FastForward(2 * time.Minute)
	ok, err = rc.ExtendLock(ctx, "lock:test", "a", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "an expired lease is gone")
}
