package core

import (
	"net/http"
	"strconv"

	"balanceguard/internal/config"
	"balanceguard/internal/types"
)

const (
	corsAllowedMethods = "GET,POST,PUT,PATCH,DELETE,OPTIONS"
	corsMaxAgeSeconds  = 600
)

// CORS applies per-surface cross-origin headers. The site surface is
// credential-less; client and admin echo a single allowed origin and permit
// credentials. The wildcard origin is never emitted.
type CORS struct {
	surface types.Surface
	cfg     config.SurfaceConfig
}

func NewCORS(surface types.Surface, cfg config.SurfaceConfig) *CORS {
	return &CORS{surface: surface, cfg: cfg}
}

func (c *CORS) credentialed() bool {
	return c.surface != types.SurfaceSite
}

// Middleware sets CORS headers on every response in the group, including
// error responses, and short-circuits preflight requests.
func (c *CORS) Middleware(next http.Handler) http.Handler {
	allowedHeaders := "Content-Type, " + csrfHeaderName

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		allowed := origin != "" && originAllowed(origin, c.cfg)

		w.Header().Add("Vary", "Origin")
		if allowed {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			if c.credentialed() {
				w.Header().Set("Access-Control-Allow-Credentials", "true")
			}
		}

		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			if !allowed {
				w.WriteHeader(http.StatusForbidden)
				return
			}
			w.Header().Set("Access-Control-Allow-Methods", corsAllowedMethods)
			w.Header().Set("Access-Control-Allow-Headers", allowedHeaders)
			w.Header().Set("Access-Control-Max-Age", strconv.Itoa(corsMaxAgeSeconds))
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
