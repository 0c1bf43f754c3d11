// Package counter provides the shared key/value counter store backing
// circuit-breaker failure counts and budget spend/token counters. The store
// is the only mutable state shared across concurrent executions; increments
// are atomic per key, everything else is best-effort.
package counter

import (
	"context"
	"time"
)

// Store is a counter store with atomic increment-and-fetch and per-key TTL.
// A ttl of zero means no expiry; a non-zero ttl is applied only when the key
// is first created, so repeated increments never extend a key's life.
type Store interface {
	// IncrBy atomically adds delta to the integer counter at key and
	// returns the new value.
	IncrBy(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, error)

	// IncrByFloat atomically adds delta to the float counter at key and
	// returns the new value.
	IncrByFloat(ctx context.Context, key string, delta float64, ttl time.Duration) (float64, error)

	// GetInt returns the integer counter at key, zero when absent.
	GetInt(ctx context.Context, key string) (int64, error)

	// GetFloat returns the float counter at key, zero when absent.
	GetFloat(ctx context.Context, key string) (float64, error)

	// Get returns the string value at key and whether it exists.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set writes a string value at key, replacing any previous value and
	// its TTL.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Delete removes the given keys. Missing keys are not an error.
	Delete(ctx context.Context, keys ...string) error

	Close() error
}
