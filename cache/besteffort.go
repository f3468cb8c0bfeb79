package cache

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// BestEffort wraps a Cache with the continue-without-cache policy: any
// backend failure is logged and swallowed, never propagated. Callers see
// only hit-or-miss, which makes the degraded mode an explicit contract
// instead of scattered error handling.
//
// A BestEffort around a nil Cache is valid and behaves as an always-miss
// cache, which keeps the realtime core runnable without Redis.
type BestEffort struct {
	c Cache
}

// NewBestEffort wraps c. c may be nil.
func NewBestEffort(c Cache) *BestEffort {
	return &BestEffort{c: c}
}

// Get returns the cached value and whether it was present.
func (b *BestEffort) Get(ctx context.Context, key string) (string, bool) {
	if b == nil || b.c == nil {
		return "", false
	}
	v, err := b.c.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrMiss) {
			zap.S().Warnw("cache get failed", "key", key, "error", err)
		}
		return "", false
	}
	return v, true
}

// Set stores the value, ignoring failures.
func (b *BestEffort) Set(ctx context.Context, key string, value string, ttl time.Duration) {
	if b == nil || b.c == nil {
		return
	}
	if err := b.c.Set(ctx, key, value, ttl); err != nil {
		zap.S().Warnw("cache set failed", "key", key, "error", err)
	}
}

// Del removes keys, ignoring failures.
func (b *BestEffort) Del(ctx context.Context, keys ...string) {
	if b == nil || b.c == nil || len(keys) == 0 {
		return
	}
	if err := b.c.Del(ctx, keys...); err != nil {
		zap.S().Warnw("cache del failed", "keys", keys, "error", err)
	}
}
