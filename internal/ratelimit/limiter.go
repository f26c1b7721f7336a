package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"balanceguard/internal/types"
)

// Policy is a per-route rate-limit setting. The zero value disables limiting.
type Policy struct {
	Max    int
	Window time.Duration
}

// Enabled reports whether the policy actually limits anything.
func (p Policy) Enabled() bool {
	return p.Max > 0 && p.Window > 0
}

// RouteKey derives the counting key component for a request. The query string
// is excluded to bound key cardinality.
func RouteKey(r *http.Request) string {
	return r.Method + ":" + r.URL.Path
}

// Limiter enforces fixed-window policies against a Store. Store failures fail
// open: an unreachable counter must not take down all traffic.
type Limiter struct {
	store  Store
	logger *slog.Logger
}

// NewLimiter creates a Limiter. A nil logger falls back to slog.Default().
func NewLimiter(store Store, logger *slog.Logger) *Limiter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Limiter{store: store, logger: logger}
}

// Check increments the counter for (surface, ip, routeKey) and returns a
// RATE_LIMITED error once the post-increment count exceeds the policy. The
// error details carry the window reset instant and the limit so clients can
// back off precisely.
func (l *Limiter) Check(ctx context.Context, surface types.Surface, ip, routeKey string, policy Policy) error {
	if !policy.Enabled() {
		return nil
	}

	key := fmt.Sprintf("%s:%s:%s", surface, ip, routeKey)
	count, resetAt, err := l.store.IncrFixedWindow(ctx, key, policy.Window)
	if err != nil {
		l.logger.Error("rate limit store error",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return nil
	}

	if count > int64(policy.Max) {
		return types.NewAppErrorWithDetails(
			types.ErrCodeRateLimited,
			"Rate limit exceeded. Please retry after the reset time.",
			nil,
			map[string]any{
				"reset_at_ms": resetAt.UnixMilli(),
				"limit":       policy.Max,
			},
		)
	}
	return nil
}
