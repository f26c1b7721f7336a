package core

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"

	"balanceguard/internal/types"
)

// responseCapture records the status code and byte count written by a handler
// so the request logger can report them.
type responseCapture struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (rc *responseCapture) WriteHeader(status int) {
	rc.status = status
	rc.ResponseWriter.WriteHeader(status)
}

func (rc *responseCapture) Write(b []byte) (int, error) {
	if rc.status == 0 {
		rc.status = http.StatusOK
	}
	n, err := rc.ResponseWriter.Write(b)
	rc.bytes += n
	return n, err
}

func (rc *responseCapture) Unwrap() http.ResponseWriter {
	return rc.ResponseWriter
}

// RequestIDMiddleware assigns a request ID, extracts the client IP, and echoes
// the ID on the response before any handler runs.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.NewString()

		ctx := types.WithRequestID(r.Context(), requestID)
		ctx = types.WithClientIP(ctx, extractClientIP(r))

		w.Header().Set("X-Request-Id", requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// SurfaceMiddleware tags every request in a route group with its surface.
func SurfaceMiddleware(surface types.Surface) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(types.WithSurface(r.Context(), surface)))
		})
	}
}

// Recoverer converts panics into a 500 envelope. The body is assembled by hand
// so a marshaling failure cannot re-panic inside the recovery path.
func (s *Server) Recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				requestID := types.GetRequestID(r.Context())
				s.Logger.Error("panic recovered",
					"request_id", requestID,
					"method", r.Method,
					"path", r.URL.Path,
					"panic", fmt.Sprintf("%v", rec),
					"stack", string(debug.Stack()),
				)
				writeRawError(w, requestID, http.StatusInternalServerError,
					string(types.ErrCodeInternal), "An internal error occurred.")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func writeRawError(w http.ResponseWriter, requestID string, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if requestID != "" {
		w.Header().Set("X-Request-Id", requestID)
	}
	w.WriteHeader(status)
	fmt.Fprintf(w, `{"ok":false,"request_id":"%s","error":{"code":"%s","message":"%s"}}`,
		escapeJSON(requestID), escapeJSON(code), escapeJSON(message))
}

func escapeJSON(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	s = strings.ReplaceAll(s, "\n", `\n`)
	s = strings.ReplaceAll(s, "\r", `\r`)
	s = strings.ReplaceAll(s, "\t", `\t`)
	return s
}

var defaultRedactedHeaders = map[string]struct{}{
	"authorization": {},
	"cookie":        {},
	"x-csrf-token":  {},
}

// RequestLogger emits one structured line per request. Secret-bearing headers
// are never logged, only their presence.
func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rc := &responseCapture{ResponseWriter: w}

			next.ServeHTTP(rc, r)

			if rc.status == 0 {
				rc.status = http.StatusOK
			}

			attrs := []any{
				"request_id", types.GetRequestID(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
				"status", rc.status,
				"bytes", rc.bytes,
				"duration_ms", time.Since(start).Milliseconds(),
				"client_ip", types.GetClientIP(r.Context()),
			}
			if surface := types.GetSurface(r.Context()); surface != "" {
				attrs = append(attrs, "surface", string(surface))
			}
			for name := range defaultRedactedHeaders {
				if r.Header.Get(name) != "" {
					attrs = append(attrs, "has_"+strings.ReplaceAll(name, "-", "_"), true)
				}
			}

			switch {
			case rc.status >= 500:
				logger.Error("request completed", attrs...)
			case rc.status >= 400:
				logger.Warn("request completed", attrs...)
			default:
				logger.Info("request completed", attrs...)
			}
		})
	}
}

// SecurityHeaders sets the baseline hardening headers on every response.
func (s *Server) SecurityHeaders(next http.Handler) http.Handler {
	production := s.Config.IsProduction()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("Permissions-Policy", "geolocation=(), microphone=(), camera=()")
		h.Set("Cross-Origin-Opener-Policy", "same-origin")
		h.Set("Cross-Origin-Resource-Policy", "same-origin")
		if production {
			h.Set("Strict-Transport-Security", "max-age=63072000; includeSubDomains")
		}
		next.ServeHTTP(w, r)
	})
}

// extractClientIP prefers the first X-Forwarded-For entry, falling back to the
// socket peer address with its port stripped.
func extractClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}
