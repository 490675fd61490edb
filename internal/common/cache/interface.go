package cache

import (
	"context"
	"time"
)

// Cache is the key-value surface the failure index needs. Implementations
// must make SetNX atomic across processes.
type Cache interface {
	BasicOps
	HashOps
	ZSetOps

	// Close closes the cache connection
	Close() error
}

// BasicOps defines basic key-value operations
type BasicOps interface {
	// Get retrieves the value for the given key. A missing key yields ("", nil).
	Get(ctx context.Context, key string) (string, error)

	// SetNX sets the value only if the key does not exist.
	// Returns true if the key was set, false if it already existed.
	SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error)
}

// HashOps defines hash (map) operations
type HashOps interface {
	HSet(ctx context.Context, key, field string, value interface{}) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)

	// HIncrBy increments the integer value of a hash field and returns the new value
	HIncrBy(ctx context.Context, key, field string, incr int64) (int64, error)
}

// ZSetOps defines the sorted set operations used for ordered listings
type ZSetOps interface {
	ZAdd(ctx context.Context, key string, members ...ZMember) error

	// ZRevRange returns members by index range, highest score first
	ZRevRange(ctx context.Context, key string, start, stop int64) ([]string, error)

	ZCard(ctx context.Context, key string) (int64, error)
}

// ZMember represents a member in a sorted set
type ZMember struct {
	Score  float64
	Member string
}
