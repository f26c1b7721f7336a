package core

import (
	"context"

	"balanceguard/internal/ratelimit"
	"balanceguard/internal/types"
)

// StaticResolver returns a fixed actor for every request. Test hook for
// exercising gateways without a session store.
type StaticResolver struct {
	Actor types.Actor
	Err   error
}

func (s StaticResolver) Resolve(_ context.Context, surface types.Surface, _ string) (types.Actor, error) {
	if s.Err != nil {
		return types.Actor{Kind: types.ActorAnon, Surface: surface}, s.Err
	}
	return s.Actor, nil
}

// AnonResolver resolves every request to an anonymous actor.
func AnonResolver() StaticResolver {
	return StaticResolver{Actor: types.Actor{Kind: types.ActorAnon}}
}

// AllowAllLimiter never rejects.
type AllowAllLimiter struct{}

func (AllowAllLimiter) Check(context.Context, types.Surface, string, string, ratelimit.Policy) error {
	return nil
}

// DenyLimiter rejects every check with a RATE_LIMITED error.
type DenyLimiter struct{}

func (DenyLimiter) Check(context.Context, types.Surface, string, string, ratelimit.Policy) error {
	return types.NewAppError(types.ErrCodeRateLimited, "Rate limit exceeded. Please retry after the reset time.", nil)
}
