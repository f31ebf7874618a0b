package dedup

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const seenKeyPrefix = "scholarsync:seen:"

// RedisCache remembers fingerprints already persisted so repeat sightings
// skip the database existence query.
type RedisCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisCache returns a cache whose entries expire after ttl.
func NewRedisCache(rdb *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{rdb: rdb, ttl: ttl}
}

func seenKey(id, deadline string) string {
	return seenKeyPrefix + id + "|" + deadline
}

// Seen reports whether (id, deadline) was marked.
func (c *RedisCache) Seen(ctx context.Context, id, deadline string) (bool, error) {
	_, err := c.rdb.Get(ctx, seenKey(id, deadline)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Mark records (id, deadline) as persisted.
func (c *RedisCache) Mark(ctx context.Context, id, deadline string) error {
	return c.rdb.Set(ctx, seenKey(id, deadline), 1, c.ttl).Err()
}

// Forget removes a stale mark.
func (c *RedisCache) Forget(ctx context.Context, id, deadline string) error {
	return c.rdb.Del(ctx, seenKey(id, deadline)).Err()
}
