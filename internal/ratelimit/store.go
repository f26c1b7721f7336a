// Package ratelimit implements fixed-window request counting with pluggable
// backends. The in-memory store serves tests and single-instance dev; the
// Redis store provides the shared atomic counter required once multiple
// instances serve traffic.
package ratelimit

import (
	"context"
	"time"
)

// Store is the fixed-window counter backend. IncrFixedWindow atomically
// increments the counter for key within the current window and returns the
// post-increment count together with the instant the window resets.
//
// Implementations must perform the increment as a single atomic operation,
// never a caller-side read-modify-write, or concurrent requests undercount.
type Store interface {
	IncrFixedWindow(ctx context.Context, key string, window time.Duration) (count int64, resetAt time.Time, err error)
}
