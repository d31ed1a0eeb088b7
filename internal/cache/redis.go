package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/oggyb/matchbot/internal/config"
)

// PendingLikesTTL bounds how long a cached pending-like count may be served.
const PendingLikesTTL = time.Hour

type RedisCache struct {
	Client *redis.Client
}

// NewRedisCache initializes Redis client from config.
// Only Addr is mandatory, Password/DB are optional.
func NewRedisCache(cfg *config.Config) *RedisCache {
	opts := &redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}
	return &RedisCache{Client: redis.NewClient(opts)}
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.Client.Ping(ctx).Err()
}

func (c *RedisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return c.Client.Set(ctx, key, value, ttl).Err()
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, error) {
	return c.Client.Get(ctx, key).Result()
}

func (c *RedisCache) Del(ctx context.Context, keys ...string) error {
	return c.Client.Del(ctx, keys...).Err()
}

// KeyForPendingLikes generates the Redis key for a profile's pending-like count.
func KeyForPendingLikes(profileID uint64) string {
	return fmt.Sprintf("likes:pending:%d", profileID)
}

// GetPendingLikes returns the cached count. ok is false on a miss.
// A hit refreshes the TTL since the owner is active.
func (c *RedisCache) GetPendingLikes(ctx context.Context, profileID uint64) (n int64, ok bool, err error) {
	key := KeyForPendingLikes(profileID)
	val, err := c.Client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	} else if err != nil {
		return 0, false, err
	}
	n, err = strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, false, nil
	}
	_ = c.Client.Expire(ctx, key, PendingLikesTTL).Err()
	return n, true, nil
}

func (c *RedisCache) SetPendingLikes(ctx context.Context, profileID uint64, n int64) error {
	return c.Client.Set(ctx, KeyForPendingLikes(profileID), n, PendingLikesTTL).Err()
}

// InvalidatePendingLikes drops cached counts; the next read recomputes from the DB.
func (c *RedisCache) InvalidatePendingLikes(ctx context.Context, profileIDs ...uint64) error {
	if len(profileIDs) == 0 {
		return nil
	}
	keys := make([]string, 0, len(profileIDs))
	for _, id := range profileIDs {
		keys = append(keys, KeyForPendingLikes(id))
	}
	return c.Del(ctx, keys...)
}

// TryLock takes a best-effort exclusive lease on key for ttl.
// It returns false when another holder owns the lease.
func (c *RedisCache) TryLock(ctx context.Context, key, owner string, ttl time.Duration) (bool, error) {
	return c.Client.SetNX(ctx, key, owner, ttl).Result()
}

// Unlock releases the lease only if owner still holds it.
func (c *RedisCache) Unlock(ctx context.Context, key, owner string) error {
	const script = `if redis.call("GET", KEYS[1]) == ARGV[1] then return redis.call("DEL", KEYS[1]) end return 0`
	return c.Client.Eval(ctx, script, []string{key}, owner).Err()
}

// ExtendLock resets the lease's ttl if owner still holds it. It returns
// false when the lease expired or passed to another owner.
func (c *RedisCache) ExtendLock(ctx context.Context, key, owner string, ttl time.Duration) (bool, error) {
	const script = `if redis.call("GET", KEYS[1]) == ARGV[1] then return redis.call("PEXPIRE", KEYS[1], ARGV[2]) end return 0`
	n, err := c.Client.Eval(ctx, script, []string{key}, owner, ttl.Milliseconds()).Int64()
	return n == 1, err
}
