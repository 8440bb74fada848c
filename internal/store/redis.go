package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisClient implements the Client interface using go-redis
type RedisClient struct {
	client *redis.Client
}

// NewRedisClient creates a new Redis client. Every operation on the connection
// is bounded by cfg.Timeout; operation-level retries are disabled because the
// migration decides continue-vs-abort per call itself.
func NewRedisClient(cfg Config) *RedisClient {
	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.Timeout,
		ReadTimeout:  cfg.Timeout,
		WriteTimeout: cfg.Timeout,
		MaxRetries:   -1,
	})

	return &RedisClient{client: client}
}

// Ping checks connectivity and authentication
func (c *RedisClient) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Scan fetches one batch of keys starting at cursor
func (c *RedisClient) Scan(ctx context.Context, cursor uint64, count int64) ([]string, uint64, error) {
	keys, next, err := c.client.Scan(ctx, cursor, "", count).Result()
	if err != nil {
		return nil, 0, err
	}
	return keys, next, nil
}

// MemoryUsage reports the number of bytes a key occupies on the server
func (c *RedisClient) MemoryUsage(ctx context.Context, key string) (int64, error) {
	return c.client.MemoryUsage(ctx, key).Result()
}

// TypeOf returns the server-side type name of a key
func (c *RedisClient) TypeOf(ctx context.Context, key string) (string, error) {
	return c.client.Type(ctx, key).Result()
}

// PTTL returns the remaining lifetime of a key. Redis reports -1ms for keys
// without an expiration and -2ms for missing keys; callers normalize both.
func (c *RedisClient) PTTL(ctx context.Context, key string) (time.Duration, error) {
	return c.client.PTTL(ctx, key).Result()
}

// DBSize returns the approximate number of keys in the selected database
func (c *RedisClient) DBSize(ctx context.Context) (int64, error) {
	return c.client.DBSize(ctx).Result()
}

// Dump returns the serialized value of a key
func (c *RedisClient) Dump(ctx context.Context, key string) ([]byte, error) {
	payload, err := c.client.Dump(ctx, key).Result()
	if err != nil {
		return nil, err
	}
	return []byte(payload), nil
}

// RestoreBatch queues a RESTORE REPLACE per item on a pipeline and flushes it
// once. The returned slice holds one error per item; a transport failure during
// the flush surfaces on every queued command, so per-item inspection covers it.
func (c *RedisClient) RestoreBatch(ctx context.Context, items []RestoreItem) []error {
	pipe := c.client.Pipeline()

	cmds := make([]*redis.StatusCmd, len(items))
	for i, item := range items {
		ttl := time.Duration(item.TTLMillis) * time.Millisecond
		cmds[i] = pipe.RestoreReplace(ctx, item.Key, ttl, string(item.Payload))
	}

	// Per-command errors are collected below; Exec's own error duplicates them.
	_, _ = pipe.Exec(ctx)

	errs := make([]error, len(items))
	for i, cmd := range cmds {
		errs[i] = cmd.Err()
	}
	return errs
}

// Close closes the underlying connection pool
func (c *RedisClient) Close() error {
	return c.client.Close()
}
