package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"balanceguard/internal/config"
	"balanceguard/internal/core"
	"balanceguard/internal/ratelimit"
)

// Pinger reports whether the backing database is reachable, satisfied by
// pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	build config.BuildInfo
	db    Pinger
}

func NewHealthHandler(build config.BuildInfo, db Pinger) *HealthHandler {
	return &HealthHandler{build: build, db: db}
}

// RegisterRoutes mounts the health endpoint. It is public and uncounted by
// the surface rate limit so load balancer probes cannot exhaust the budget.
func (h *HealthHandler) RegisterRoutes(r chi.Router, gw *core.Gateway) {
	r.Get("/health", gw.Wrap(h.Health, core.Public(), core.WithRateLimit(ratelimit.Policy{})))
}

type healthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Database  string `json:"database"`
	CheckedAt string `json:"checked_at"`
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:    "ok",
		Version:   h.build.Version,
		Commit:    h.build.Commit,
		Database:  "ok",
		CheckedAt: time.Now().UTC().Format(time.RFC3339),
	}

	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.Ping(ctx); err != nil {
			resp.Status = "degraded"
			resp.Database = "unreachable"
		}
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	core.JSON(w, r, status, resp)
}
