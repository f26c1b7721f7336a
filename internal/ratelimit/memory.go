package ratelimit

import (
	"context"
	"sync"
	"time"

	"balanceguard/internal/types"
)

// MemoryStore is a per-process fixed-window counter. Buckets reset lazily on
// the first increment after their window elapses; the Janitor sweeps buckets
// that stopped receiving traffic so idle keys do not accumulate.
//
// Counters are not shared across processes. Production deployments with more
// than one instance must use RedisStore instead.
type MemoryStore struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	clock   types.Clock
}

type bucket struct {
	count   int64
	resetAt time.Time
}

// NewMemoryStore creates an in-memory store. A nil clock defaults to the
// real clock.
func NewMemoryStore(clock types.Clock) *MemoryStore {
	if clock == nil {
		clock = types.RealClock{}
	}
	return &MemoryStore{
		buckets: make(map[string]*bucket),
		clock:   clock,
	}
}

// IncrFixedWindow implements Store.
func (s *MemoryStore) IncrFixedWindow(_ context.Context, key string, window time.Duration) (int64, time.Time, error) {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.buckets[key]
	if !ok || !b.resetAt.After(now) {
		b = &bucket{count: 0, resetAt: now.Add(window)}
		s.buckets[key] = b
	}
	b.count++
	return b.count, b.resetAt, nil
}

// Janitor periodically removes expired buckets until ctx is cancelled. It is
// intended to run as its own goroutine from the process run loop.
func (s *MemoryStore) Janitor(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.sweep()
		}
	}
}

// sweep drops every bucket whose window has elapsed.
func (s *MemoryStore) sweep() {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	for key, b := range s.buckets {
		if !b.resetAt.After(now) {
			delete(s.buckets, key)
		}
	}
}

// size returns the number of live buckets. Test helper.
func (s *MemoryStore) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buckets)
}
