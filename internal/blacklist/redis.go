package blacklist

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache shares the deny-list across instances. The value is an opaque
// marker; redis owns the expiry.
type RedisCache struct {
	client *redis.Client
}

var _ Cache = (*RedisCache)(nil)

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) SetFlag(ctx context.Context, key string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return c.client.Set(ctx, key, "1", ttl).Err()
}

func (c *RedisCache) HasFlag(ctx context.Context, key string) (bool, error) {
	n, err := c.client.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
