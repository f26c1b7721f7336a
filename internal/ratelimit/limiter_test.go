package ratelimit

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"balanceguard/internal/types"
)

// errorStore always fails, exercising the fail-open path.
type errorStore struct{}

func (errorStore) IncrFixedWindow(context.Context, string, time.Duration) (int64, time.Time, error) {
	return 0, time.Time{}, errors.New("store unavailable")
}

func TestRouteKey_ExcludesQuery(t *testing.T) {
	r := httptest.NewRequest("POST", "/api/orders?page=2&sort=asc", nil)
	assert.Equal(t, "POST:/api/orders", RouteKey(r))
}

func TestLimiter_AllowsUpToMax(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	limiter := NewLimiter(NewMemoryStore(clock), nil)
	policy := Policy{Max: 3, Window: time.Minute}
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		err := limiter.Check(ctx, types.SurfaceClient, "1.2.3.4", "POST:/api/orders", policy)
		require.NoError(t, err)
	}

	err := limiter.Check(ctx, types.SurfaceClient, "1.2.3.4", "POST:/api/orders", policy)
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeRateLimited, appErr.Code)
	assert.Equal(t, 429, appErr.HTTPStatus())
	assert.Equal(t, 3, appErr.Details["limit"])
	assert.Equal(t, clock.now.Add(time.Minute).UnixMilli(), appErr.Details["reset_at_ms"])
}

func TestLimiter_NewWindowAdmitsAgain(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	limiter := NewLimiter(NewMemoryStore(clock), nil)
	policy := Policy{Max: 1, Window: time.Minute}
	ctx := context.Background()

	require.NoError(t, limiter.Check(ctx, types.SurfaceSite, "5.6.7.8", "GET:/", policy))
	require.Error(t, limiter.Check(ctx, types.SurfaceSite, "5.6.7.8", "GET:/", policy))

	clock.advance(61 * time.Second)
	assert.NoError(t, limiter.Check(ctx, types.SurfaceSite, "5.6.7.8", "GET:/", policy))
}

func TestLimiter_SeparateKeysDoNotInterfere(t *testing.T) {
	limiter := NewLimiter(NewMemoryStore(nil), nil)
	policy := Policy{Max: 1, Window: time.Minute}
	ctx := context.Background()

	require.NoError(t, limiter.Check(ctx, types.SurfaceClient, "1.1.1.1", "POST:/a", policy))
	require.Error(t, limiter.Check(ctx, types.SurfaceClient, "1.1.1.1", "POST:/a", policy))

	// Different IP, route, and surface each count separately.
	assert.NoError(t, limiter.Check(ctx, types.SurfaceClient, "2.2.2.2", "POST:/a", policy))
	assert.NoError(t, limiter.Check(ctx, types.SurfaceClient, "1.1.1.1", "POST:/b", policy))
	assert.NoError(t, limiter.Check(ctx, types.SurfaceAdmin, "1.1.1.1", "POST:/a", policy))
}

func TestLimiter_DisabledPolicyPassesThrough(t *testing.T) {
	limiter := NewLimiter(errorStore{}, nil)
	err := limiter.Check(context.Background(), types.SurfaceSite, "1.2.3.4", "GET:/", Policy{})
	assert.NoError(t, err)
}

func TestLimiter_StoreErrorFailsOpen(t *testing.T) {
	limiter := NewLimiter(errorStore{}, nil)
	policy := Policy{Max: 1, Window: time.Minute}

	for i := 0; i < 5; i++ {
		err := limiter.Check(context.Background(), types.SurfaceAdmin, "1.2.3.4", "DELETE:/x", policy)
		assert.NoError(t, err)
	}
}
