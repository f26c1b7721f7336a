package core

import (
	"context"
	"log/slog"
	"net/http"

	"balanceguard/internal/auth"
	"balanceguard/internal/config"
	"balanceguard/internal/ratelimit"
	"balanceguard/internal/types"
)

// IdentityResolver maps a raw session token to an actor for one surface.
type IdentityResolver interface {
	Resolve(ctx context.Context, surface types.Surface, rawToken string) (types.Actor, error)
}

// RateLimiter enforces a fixed-window policy for one caller and route.
type RateLimiter interface {
	Check(ctx context.Context, surface types.Surface, ip, routeKey string, policy ratelimit.Policy) error
}

// Gateway runs the per-surface enforcement pipeline in a fixed order: origin,
// CSRF, rate limit, identity, authorization, then the handler. Each stage that
// rejects produces exactly one error envelope.
type Gateway struct {
	surface     types.Surface
	cfg         config.SurfaceConfig
	production  bool
	resolver    IdentityResolver
	limiter     RateLimiter
	logger      *slog.Logger
	requireCSRF bool
	requireAuth bool
}

func NewGateway(surface types.Surface, cfg config.SurfaceConfig, production bool, resolver IdentityResolver, limiter RateLimiter, logger *slog.Logger) *Gateway {
	if !surface.Valid() {
		panic("core: gateway requires a valid surface")
	}
	if resolver == nil {
		panic("core: gateway requires an identity resolver")
	}
	if limiter == nil {
		panic("core: gateway requires a rate limiter")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		surface:     surface,
		cfg:         cfg,
		production:  production,
		resolver:    resolver,
		limiter:     limiter,
		logger:      logger,
		requireCSRF: surface != types.SurfaceSite,
		requireAuth: surface != types.SurfaceSite,
	}
}

// Policy adjusts gateway defaults for a single route.
type Policy struct {
	public      bool
	skipCSRF    bool
	requireCSRF bool
	rateLimit   *ratelimit.Policy
}

type PolicyOption func(*Policy)

// Public skips the authorization requirement; identity is still resolved.
func Public() PolicyOption {
	return func(p *Policy) { p.public = true }
}

// SkipCSRF exempts a route from the double-submit check. Use only for routes
// that establish the session in the first place.
func SkipCSRF() PolicyOption {
	return func(p *Policy) { p.skipCSRF = true }
}

// RequireCSRF forces the double-submit check on a route regardless of the
// surface default. Panics at registration on the site surface, which never
// issues CSRF cookies.
func RequireCSRF() PolicyOption {
	return func(p *Policy) { p.requireCSRF = true }
}

// WithRateLimit overrides the surface rate limit for a route. A zero-max
// policy disables limiting on the route.
func WithRateLimit(policy ratelimit.Policy) PolicyOption {
	return func(p *Policy) { p.rateLimit = &policy }
}

// Wrap applies the gateway pipeline around a handler.
func (g *Gateway) Wrap(handler http.HandlerFunc, opts ...PolicyOption) http.HandlerFunc {
	var policy Policy
	for _, opt := range opts {
		opt(&policy)
	}
	if policy.requireCSRF && g.surface == types.SurfaceSite {
		panic("core: CSRF enforcement configured on the site surface")
	}
	csrfRequired := (g.requireCSRF || policy.requireCSRF) && !policy.skipCSRF
	authRequired := g.requireAuth && !policy.public
	limitPolicy := ratelimit.Policy{Max: g.cfg.RateLimitMax, Window: g.cfg.RateLimitWindow}
	if policy.rateLimit != nil {
		limitPolicy = *policy.rateLimit
	}

	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		ip := types.GetClientIP(ctx)

		if !isSafeMethod(r.Method) || (g.production && len(g.cfg.AllowedOrigins) == 0) {
			if err := EnforceOrigin(r.Header.Get("Origin"), g.cfg, g.production); err != nil {
				g.fail(w, r, err)
				return
			}
		}

		if csrfRequired && !isSafeMethod(r.Method) {
			if err := EnforceCSRF(r, g.surface); err != nil {
				g.fail(w, r, err)
				return
			}
		}

		if limitPolicy.Enabled() {
			if err := g.limiter.Check(ctx, g.surface, ip, ratelimit.RouteKey(r), limitPolicy); err != nil {
				g.fail(w, r, err)
				return
			}
		}

		rawToken, _ := auth.ReadSessionCookie(r, g.surface, g.production)
		actor, err := g.resolver.Resolve(ctx, g.surface, rawToken)
		if err != nil {
			g.fail(w, r, err)
			return
		}
		ctx = types.WithActor(ctx, actor)

		if authRequired && actor.Kind == types.ActorAnon {
			g.fail(w, r, types.NewAppError(types.ErrCodeAuthRequired, "Authentication is required.", nil))
			return
		}

		handler(w, r.WithContext(ctx))
	}
}

func (g *Gateway) fail(w http.ResponseWriter, r *http.Request, err error) {
	var status int
	var code types.ErrorCode
	if appErr, ok := err.(*types.AppError); ok {
		status = appErr.HTTPStatus()
		code = appErr.Code
	} else {
		status = http.StatusInternalServerError
		code = types.ErrCodeInternal
	}
	g.logger.Warn("gateway rejected request",
		"request_id", types.GetRequestID(r.Context()),
		"surface", string(g.surface),
		"client_ip", types.GetClientIP(r.Context()),
		"method", r.Method,
		"path", r.URL.Path,
		"code", string(code),
		"status", status,
	)
	Error(w, r, err)
}
