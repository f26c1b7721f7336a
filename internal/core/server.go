package core

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"balanceguard/internal/config"
	"balanceguard/internal/types"
)

// RouteRegistrar mounts a set of routes on a surface group.
type RouteRegistrar func(r chi.Router, gw *Gateway)

// Server owns the router, the per-surface gateways, and the resources that
// must be released on shutdown.
type Server struct {
	Config   *config.Config
	Logger   *slog.Logger
	Resolver IdentityResolver
	Limiter  RateLimiter
	Validate *Validator

	router   *chi.Mux
	gateways map[types.Surface]*Gateway
	closers  []io.Closer
}

func NewServer(cfg *config.Config, logger *slog.Logger, resolver IdentityResolver, limiter RateLimiter) *Server {
	if cfg == nil {
		panic("core: server requires a config")
	}
	if resolver == nil {
		panic("core: server requires an identity resolver")
	}
	if limiter == nil {
		panic("core: server requires a rate limiter")
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		Config:   cfg,
		Logger:   logger,
		Resolver: resolver,
		Limiter:  limiter,
		Validate: NewValidator(),
		router:   chi.NewRouter(),
		gateways: make(map[types.Surface]*Gateway),
	}
	for _, surface := range []types.Surface{types.SurfaceSite, types.SurfaceClient, types.SurfaceAdmin} {
		s.gateways[surface] = NewGateway(surface, cfg.Surfaces.ForSurface(surface), cfg.IsProduction(), resolver, limiter, logger)
	}
	return s
}

// Router exposes the underlying mux for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Handler returns the fully assembled HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// AddCloser registers a resource to release during shutdown, such as the
// database pool or the Redis client.
func (s *Server) AddCloser(c io.Closer) {
	s.closers = append(s.closers, c)
}

// Shutdown releases registered resources. The HTTP listener itself is drained
// by the caller before this runs.
func (s *Server) Shutdown(ctx context.Context) error {
	_ = ctx
	var firstErr error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
