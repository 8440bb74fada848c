package store

import (
	"context"
	"time"
)

// Client defines the interface for key-value store operations used by the migration
type Client interface {
	// Connection check
	Ping(ctx context.Context) error

	// Keyspace enumeration. Returns the keys of one batch and the cursor for
	// the next call; a returned cursor of 0 means enumeration is complete.
	Scan(ctx context.Context, cursor uint64, count int64) (keys []string, next uint64, err error)

	// Per-key introspection
	MemoryUsage(ctx context.Context, key string) (int64, error)
	TypeOf(ctx context.Context, key string) (string, error)
	PTTL(ctx context.Context, key string) (time.Duration, error)
	DBSize(ctx context.Context) (int64, error)

	// Value transfer
	Dump(ctx context.Context, key string) ([]byte, error)
	RestoreBatch(ctx context.Context, items []RestoreItem) []error

	Close() error
}

// RestoreItem is one queued write for a batched restore. TTLMillis of 0 means
// the key is written without an expiration.
type RestoreItem struct {
	Key       string
	Payload   []byte
	TTLMillis int64
}

// Config contains client configuration
type Config struct {
	Host     string
	Port     int
	Password string
	DB       int
	Timeout  time.Duration
}
