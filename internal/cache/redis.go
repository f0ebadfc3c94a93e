package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache shares cached values between instances. Values are stored as JSON
// under namespace+key; redis failures degrade to cache misses.
type RedisCache[T any] struct {
	client    redis.UniversalClient
	namespace string
	ttl       time.Duration
	logger    *slog.Logger
}

var _ Cache[int] = (*RedisCache[int])(nil)

func NewRedisCache[T any](client redis.UniversalClient, namespace string, ttl time.Duration, logger *slog.Logger) *RedisCache[T] {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisCache[T]{client: client, namespace: namespace, ttl: ttl, logger: logger}
}

func (c *RedisCache[T]) Get(ctx context.Context, key string) (T, bool) {
	var zero T
	raw, err := c.client.Get(ctx, c.namespace+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.WarnContext(ctx, "Redis cache get failed", "key", key, "error", err)
		}
		return zero, false
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		c.logger.WarnContext(ctx, "Redis cache entry undecodable", "key", key, "error", err)
		return zero, false
	}
	return v, true
}

func (c *RedisCache[T]) Set(ctx context.Context, key string, data T) {
	raw, err := json.Marshal(data)
	if err != nil {
		c.logger.WarnContext(ctx, "Redis cache encode failed", "key", key, "error", err)
		return
	}
	if err := c.client.Set(ctx, c.namespace+key, raw, c.ttl).Err(); err != nil {
		c.logger.WarnContext(ctx, "Redis cache set failed", "key", key, "error", err)
	}
}

func (c *RedisCache[T]) Delete(ctx context.Context, key string) {
	if err := c.client.Del(ctx, c.namespace+key).Err(); err != nil {
		c.logger.WarnContext(ctx, "Redis cache delete failed", "key", key, "error", err)
	}
}

func (c *RedisCache[T]) DeletePrefix(ctx context.Context, prefix string) int {
	iter := c.client.Scan(ctx, 0, c.namespace+prefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		c.logger.WarnContext(ctx, "Redis cache scan failed", "prefix", prefix, "error", err)
	}
	if len(keys) == 0 {
		return 0
	}
	n, err := c.client.Del(ctx, keys...).Result()
	if err != nil {
		c.logger.WarnContext(ctx, "Redis cache delete failed", "prefix", prefix, "error", err)
		return 0
	}
	return int(n)
}

// Ping reports whether redis is reachable, for readiness checks.
func (c *RedisCache[T]) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
