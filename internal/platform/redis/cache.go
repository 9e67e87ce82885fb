package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"chronicle/pkg/sentinel"
)

// Cache is a small byte-value cache used for dashboard payloads. It satisfies
// the audit service's cache port without leaking redis types into the domain.
type Cache struct {
	client *Client
	prefix string
}

// NewCache wraps a redis client as a cache. Returns nil for a nil client so
// callers can wire the cache unconditionally.
func NewCache(client *Client, prefix string) *Cache {
	if client == nil {
		return nil
	}
	return &Cache{client: client, prefix: prefix}
}

func (c *Cache) key(k string) string {
	return c.prefix + ":" + k
}

// Get returns the cached value or sentinel.ErrNotFound on a miss.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := c.client.Get(ctx, c.key(key)).Bytes()
	if err == redis.Nil {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return val, nil
}

// Set stores a value with the given TTL.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.client.Set(ctx, c.key(key), value, ttl).Err()
}
