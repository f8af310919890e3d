// Package redis provides Redis-based infrastructure implementations: the
// typed cache client, the distributed fixed-window rate limiter, and the
// read-through response cache.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iruldev/shortlink-api/internal/domain"
)

// ClientConfig holds Redis connection configuration.
type ClientConfig struct {
	Host         string
	Port         int
	DB           int
	Password     string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Client wraps the Redis client with connection pooling and implements
// domain.Cache.
type Client struct {
	rdb *redis.Client
}

// NewClient creates a new Redis client with the given configuration and
// verifies reachability.
func NewClient(cfg ClientConfig) (*Client, error) {
	// Apply defaults
	if cfg.PoolSize == 0 {
		cfg.PoolSize = 10
	}
	if cfg.MinIdleConns == 0 {
		cfg.MinIdleConns = 5
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = 5 * time.Second
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 3 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 3 * time.Second
	}
	if cfg.Port == 0 {
		cfg.Port = 6379
	}
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	// Validate connection
	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// Close closes the Redis client connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping checks if Redis is available.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return wrapUnavailable(err)
	}
	return nil
}

// Get returns the value at key, or domain.ErrCacheMiss.
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	val, err := c.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", domain.ErrCacheMiss
	}
	if err != nil {
		return "", wrapUnavailable(err)
	}
	return val, nil
}

// Set stores value at key with a TTL. Zero ttl means no expiry.
func (c *Client) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := c.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
		return wrapUnavailable(err)
	}
	return nil
}

// Delete removes keys. Missing keys are not an error.
func (c *Client) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		return wrapUnavailable(err)
	}
	return nil
}

// luaIncrWithExpire atomically increments the window counter, arms its TTL
// on first increment, and returns {count, remaining ttl seconds}.
// KEYS[1] = counter key, ARGV[1] = window seconds.
const luaIncrWithExpire = `
local current = redis.call('INCR', KEYS[1])
if current == 1 then
    redis.call('EXPIRE', KEYS[1], ARGV[1])
end
local ttl = redis.call('TTL', KEYS[1])
return {current, ttl}
`

// IncrWithExpire atomically increments the counter at key in a single round
// trip and returns the post-increment count plus the key's remaining TTL.
func (c *Client) IncrWithExpire(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	res, err := c.rdb.Eval(ctx, luaIncrWithExpire, []string{key}, int(window.Seconds())).Result()
	if err != nil {
		return 0, 0, wrapUnavailable(err)
	}

	vals, ok := res.([]any)
	if !ok || len(vals) != 2 {
		return 0, 0, fmt.Errorf("redis: unexpected INCR script reply %T", res)
	}
	count, _ := vals[0].(int64)
	ttlSecs, _ := vals[1].(int64)
	if ttlSecs < 0 {
		ttlSecs = int64(window.Seconds())
	}
	return count, time.Duration(ttlSecs) * time.Second, nil
}

// ScanKeys returns up to limit keys matching prefix via a cursor scan.
// Reserved for admin use; never uses the blocking KEYS command.
func (c *Client) ScanKeys(ctx context.Context, prefix string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 100
	}

	var keys []string
	var cursor uint64
	for {
		batch, next, err := c.rdb.Scan(ctx, cursor, prefix+"*", 100).Result()
		if err != nil {
			return nil, wrapUnavailable(err)
		}
		keys = append(keys, batch...)
		if len(keys) >= limit {
			return keys[:limit], nil
		}
		cursor = next
		if cursor == 0 {
			return keys, nil
		}
	}
}

// Client returns the underlying redis.Client for direct access.
func (c *Client) Client() *redis.Client {
	return c.rdb
}

func wrapUnavailable(err error) error {
	return fmt.Errorf("%w: %w", domain.ErrCacheUnavailable, err)
}
