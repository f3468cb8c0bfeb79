// Package cache provides the ephemeral key/value store used to mirror
// active call sessions and to cache lookup results. The store is a
// non-authoritative mirror: every caller must tolerate a miss.
package cache

import (
	"context"
	"time"
)

// Cache is the minimal contract for the ephemeral store. Implementations
// must be safe for concurrent use. Values are stored as strings to keep
// the port free of serialization concerns.
type Cache interface {
	// Get fetches the value for key. Misses are reported as ("", ErrMiss);
	// a non-nil error other than ErrMiss means a transport or server failure.
	Get(ctx context.Context, key string) (string, error)

	// Set stores value at key with the provided TTL. Zero or negative TTL
	// means no expiration.
	Set(ctx context.Context, key string, value string, ttl time.Duration) error

	// Del removes the given keys.
	Del(ctx context.Context, keys ...string) error

	// Ping verifies connectivity with the backend.
	Ping(ctx context.Context) error

	// Close releases any resources held by the cache.
	Close() error
}

// ErrMiss signals a cache miss in a typed way so callers can tell misses
// apart from transport errors.
var ErrMiss = errMiss{}

type errMiss struct{}

func (e errMiss) Error() string { return "cache: miss" }
