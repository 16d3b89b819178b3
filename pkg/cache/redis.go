package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/OpenTraceLab/OpenTraceRoute/pkg/errors"
)

// DefaultRedisPrefix namespaces the keys written by RedisCache
const DefaultRedisPrefix = "otr:"

// RedisCache stores entries in Redis with native expiry
type RedisCache struct {
	client *redis.Client
	prefix string
}

// NewRedisCache connects to the server named by url
// (redis://[:password@]host:port/db) and checks it answers.
func NewRedisCache(ctx context.Context, url, prefix string) (*RedisCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "redis url %q", url)
	}
	opts.DialTimeout = 2 * time.Second
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "connecting to redis at %s", opts.Addr)
	}
	return NewRedisCacheFromClient(client, prefix), nil
}

// NewRedisCacheFromClient wraps an existing client. An empty prefix
// selects DefaultRedisPrefix.
func NewRedisCacheFromClient(client *redis.Client, prefix string) *RedisCache {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisCache{client: client, prefix: prefix}
}

// Get retrieves a value from Redis
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(errors.ErrCodeInternal, err, "redis get")
	}
	return data, true, nil
}

// Set stores a value in Redis
func (c *RedisCache) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, c.prefix+key, data, ttl).Err(); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "redis set")
	}
	return nil
}

// Delete removes a value from Redis
func (c *RedisCache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, c.prefix+key).Err(); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "redis del")
	}
	return nil
}

// Close closes the client
func (c *RedisCache) Close() error {
	return c.client.Close()
}

var _ Cache = (*RedisCache)(nil)
