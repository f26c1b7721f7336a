package core

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"balanceguard/internal/types"
)

// MountRoutes assembles the full routing tree. Global middleware runs in a
// strict order:
//  1. Recoverer, so a panic anywhere below still yields an envelope
//  2. RequestIDMiddleware, so every later stage and log line carries the ID
//  3. SecurityHeaders, applied before any handler can write
//  4. RequestLogger, which observes the final status of each request
//
// Each surface group then layers its own surface tag and CORS policy, and the
// registrars wrap individual routes in the surface gateway. Webhook routes
// mount at the top level, outside any surface group: webhook callers are
// servers, not browsers, so neither CORS nor the gateway applies to them.
func (s *Server) MountRoutes(site, client, admin []RouteRegistrar, webhooks []func(chi.Router)) {
	s.router.Use(s.Recoverer)
	s.router.Use(RequestIDMiddleware)
	s.router.Use(s.SecurityHeaders)
	s.router.Use(RequestLogger(s.Logger))

	// Unmatched paths and methods get the envelope too, not chi's plain-text
	// fallback.
	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		Error(w, r, types.NewAppError(types.ErrCodeNotFound, "Resource not found.", nil))
	})
	s.router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		Error(w, r, types.NewAppError(types.ErrCodeMethodNotAllowed, "Method not allowed.", nil))
	})

	mount := func(prefix string, surface types.Surface, regs []RouteRegistrar) {
		cors := NewCORS(surface, s.Config.Surfaces.ForSurface(surface))
		s.router.Route(prefix, func(r chi.Router) {
			r.Use(SurfaceMiddleware(surface))
			r.Use(cors.Middleware)
			for _, reg := range regs {
				reg(r, s.gateways[surface])
			}
		})
	}

	mount("/site", types.SurfaceSite, site)
	mount("/client", types.SurfaceClient, client)
	mount("/admin", types.SurfaceAdmin, admin)

	for _, reg := range webhooks {
		reg(s.router)
	}
}
