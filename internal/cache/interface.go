package cache

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss is returned by FetchReport when the key is absent or expired.
var ErrCacheMiss = errors.New("cache miss")

// Cache memoizes computed reports under an opaque key.
type Cache interface {
	// StoreReport marshals data to JSON and stores it with a TTL
	StoreReport(ctx context.Context, key string, data any, ttl time.Duration) error

	// FetchReport returns the raw JSON stored under key, or ErrCacheMiss
	FetchReport(ctx context.Context, key string) ([]byte, error)

	// Ping checks cache connection
	Ping(ctx context.Context) error

	// Close gracefully closes any connections
	Close()
}
