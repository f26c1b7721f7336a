package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"balanceguard/internal/types"
)

// RedisStore is a shared fixed-window counter backed by Redis. The increment
// and TTL read go out in a single pipelined round trip; the key's expiry is
// set only when the increment created it (count == 1), which makes the
// counter atomic across instances.
type RedisStore struct {
	client *redis.Client
	clock  types.Clock
}

// NewRedisStore creates a Redis-backed store. A nil clock defaults to the
// real clock.
func NewRedisStore(client *redis.Client, clock types.Clock) *RedisStore {
	if clock == nil {
		clock = types.RealClock{}
	}
	return &RedisStore{client: client, clock: clock}
}

// IncrFixedWindow implements Store.
func (s *RedisStore) IncrFixedWindow(ctx context.Context, key string, window time.Duration) (int64, time.Time, error) {
	now := s.clock.Now()

	pipe := s.client.Pipeline()
	incr := pipe.Incr(ctx, key)
	ttl := pipe.PTTL(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, time.Time{}, fmt.Errorf("rate limit incr %q: %w", key, err)
	}

	count := incr.Val()
	if count == 1 {
		// First hit in the window: bind the key's lifetime to the window.
		if err := s.client.Expire(ctx, key, window).Err(); err != nil {
			return 0, time.Time{}, fmt.Errorf("rate limit expire %q: %w", key, err)
		}
		return count, now.Add(window), nil
	}

	remaining := ttl.Val()
	if remaining < 0 {
		// Key exists without an expiry (lost between INCR and EXPIRE on a
		// previous call). Re-arm it rather than leaving an immortal counter.
		if err := s.client.Expire(ctx, key, window).Err(); err != nil {
			return 0, time.Time{}, fmt.Errorf("rate limit expire %q: %w", key, err)
		}
		return count, now.Add(window), nil
	}

	return count, now.Add(remaining), nil
}
