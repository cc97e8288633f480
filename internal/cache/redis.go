package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache is a Cache backed by Redis.
type RedisCache struct {
	client    redis.Cmdable
	keyPrefix string
	closeFn   func() error
}

type RedisOption func(*RedisCache)

// WithKeyPrefix namespaces every key, e.g. "identity-sync:".
func WithKeyPrefix(prefix string) RedisOption {
	return func(c *RedisCache) {
		c.keyPrefix = prefix
	}
}

// NewRedisCache wraps an existing client; the caller keeps ownership of it.
func NewRedisCache(client redis.Cmdable, opts ...RedisOption) *RedisCache {
	c := &RedisCache{client: client}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewRedisCacheFromURL parses a redis:// URL and owns the resulting client.
func NewRedisCacheFromURL(url string, opts ...RedisOption) (*RedisCache, error) {
	options, err := redis.ParseURL(url)
	if err != nil {
		return nil, &CacheError{Op: "connect", Err: err}
	}
	client := redis.NewClient(options)
	c := NewRedisCache(client, opts...)
	c.closeFn = client.Close
	return c, nil
}

func (c *RedisCache) prefixedKey(key string) string {
	return c.keyPrefix + key
}

// Get maps redis.Nil to a miss; any other failure is a CacheError.
func (c *RedisCache) Get(ctx context.Context, key string) (Result, error) {
	val, err := c.client.Get(ctx, c.prefixedKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Miss(), nil
	}
	if err != nil {
		return Miss(), &CacheError{Op: "get", Key: key, Err: err}
	}
	return Hit(val), nil
}

// Set writes value with ttl; a zero ttl keeps the key until deleted.
func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, c.prefixedKey(key), value, ttl).Err(); err != nil {
		return &CacheError{Op: "set", Key: key, Err: err}
	}
	return nil
}

// Delete removes key.
func (c *RedisCache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, c.prefixedKey(key)).Err(); err != nil {
		return &CacheError{Op: "delete", Key: key, Err: err}
	}
	return nil
}

// Ping checks the connection.
func (c *RedisCache) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return &CacheError{Op: "ping", Err: err}
	}
	return nil
}

// Close releases the client when the cache created it.
func (c *RedisCache) Close() error {
	if c.closeFn == nil {
		return nil
	}
	return c.closeFn()
}
