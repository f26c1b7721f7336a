package core

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"balanceguard/internal/config"
	"balanceguard/internal/types"
)

func TestMountRoutesFallbacksUseEnvelope(t *testing.T) {
	s := NewServer(&config.Config{}, testLogger(), AnonResolver(), AllowAllLimiter{})
	ping := func(r chi.Router, gw *Gateway) {
		r.Get("/ping", gw.Wrap(func(w http.ResponseWriter, r *http.Request) {
			JSON(w, r, http.StatusOK, map[string]bool{"pong": true})
		}, Public()))
	}
	s.MountRoutes([]RouteRegistrar{ping}, nil, nil, nil)

	cases := []struct {
		name       string
		method     string
		path       string
		wantStatus int
		wantCode   types.ErrorCode
	}{
		{"unmatched top-level path", http.MethodGet, "/nope", http.StatusNotFound, types.ErrCodeNotFound},
		{"unmatched surface path", http.MethodGet, "/site/nope", http.StatusNotFound, types.ErrCodeNotFound},
		{"wrong method on a route", http.MethodDelete, "/site/ping", http.StatusMethodNotAllowed, types.ErrCodeMethodNotAllowed},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			s.Handler().ServeHTTP(w, httptest.NewRequest(tc.method, tc.path, nil))

			if w.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d, body = %s", w.Code, tc.wantStatus, w.Body.String())
			}
			if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
				t.Errorf("Content-Type = %q, want JSON envelope", ct)
			}
			if w.Header().Get("X-Request-Id") == "" {
				t.Error("missing X-Request-Id header")
			}
			if code := gatewayErrCode(t, w); code != string(tc.wantCode) {
				t.Errorf("error code = %s, want %s", code, tc.wantCode)
			}
		})
	}
}
