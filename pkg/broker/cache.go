package broker

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// TTLCache is a shared string cache with per-entry expiry. Resolver
// replicas use it so a CDN URL resolved by one replica serves them all.
type TTLCache struct {
	client *Client
}

// NewTTLCache returns a cache handle on the broker connection.
func NewTTLCache(client *Client) *TTLCache {
	return &TTLCache{client: client}
}

// Get returns the cached value for key. ok is false on a miss.
func (c *TTLCache) Get(ctx context.Context, key string) (value string, ok bool, err error) {
	value, err = c.client.rdb.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read cache key %s: %w", key, err)
	}
	return value, true, nil
}

// Set stores value under key for ttl.
func (c *TTLCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := c.client.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("failed to write cache key %s: %w", key, err)
	}
	return nil
}

// Delete removes key from the cache.
func (c *TTLCache) Delete(ctx context.Context, key string) error {
	if err := c.client.rdb.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to delete cache key %s: %w", key, err)
	}
	return nil
}
