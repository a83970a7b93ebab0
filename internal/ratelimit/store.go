package ratelimit

import (
	"context"
	"time"
)

// DefaultKeyPrefix namespaces counters inside a shared key-value store.
const DefaultKeyPrefix = "rl:"

// Store is a shared fixed-window counter.
//
// IncrementAndCheck atomically increments the counter for key and returns the
// new value. When the returned value is 1 the store attaches an expiry of
// window to the key. Implementations must be safe for concurrent callers
// sharing the same key.
type Store interface {
	IncrementAndCheck(ctx context.Context, key string, window time.Duration) (int64, error)
	Ping(ctx context.Context) error
}
