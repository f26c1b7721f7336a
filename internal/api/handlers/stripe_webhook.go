package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	stripe "github.com/stripe/stripe-go/v82"

	"balanceguard/internal/billing"
	"balanceguard/internal/core"
	"balanceguard/internal/external"
	"balanceguard/internal/types"
)

// EventIngester is the webhook handler's view of billing.Pipeline.
type EventIngester interface {
	Ingest(ctx context.Context, event *stripe.Event, payload []byte) (billing.Outcome, error)
}

// StripeWebhookHandler receives asynchronous events from Stripe. The route is
// not behind any gateway; Stripe is a server, not a browser, and the only
// authentication is the Stripe-Signature header.
type StripeWebhookHandler struct {
	pipeline     EventIngester
	secret       string
	tolerance    time.Duration
	maxBodyBytes int64
	clock        types.Clock
	logger       *slog.Logger
}

func NewStripeWebhookHandler(pipeline EventIngester, secret string, tolerance time.Duration, maxBodyBytes int64, clock types.Clock, logger *slog.Logger) *StripeWebhookHandler {
	if clock == nil {
		clock = types.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if tolerance <= 0 {
		tolerance = external.DefaultSignatureTolerance
	}
	if maxBodyBytes <= 0 {
		maxBodyBytes = 64 * 1024
	}
	return &StripeWebhookHandler{
		pipeline:     pipeline,
		secret:       secret,
		tolerance:    tolerance,
		maxBodyBytes: maxBodyBytes,
		clock:        clock,
		logger:       logger,
	}
}

// RegisterRoutes mounts the webhook endpoint at the top level, outside every
// surface group.
func (h *StripeWebhookHandler) RegisterRoutes(r chi.Router) {
	r.Post("/webhooks/stripe/billing", h.Handle)
}

// Handle verifies the delivery signature over the raw body, then hands the
// parsed event to the ingest pipeline. Everything past a verified claim is
// acknowledged with 200 so Stripe does not retry deliveries this system has
// already recorded.
func (h *StripeWebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		h.logger.Warn("failed to read webhook body",
			"request_id", types.GetRequestID(r.Context()), "error", err)
		core.Error(w, r, types.NewAppError(types.ErrCodeValidationFailed,
			"Request body could not be read.", err))
		return
	}

	sigHeader := r.Header.Get("Stripe-Signature")
	if err := external.VerifyStripeSignature(payload, sigHeader, h.secret, h.clock.Now(), h.tolerance); err != nil {
		h.logger.Warn("webhook signature verification failed",
			"request_id", types.GetRequestID(r.Context()),
			"error", err,
		)
		core.Error(w, r, err)
		return
	}

	var event stripe.Event
	if err := json.Unmarshal(payload, &event); err != nil {
		h.logger.Warn("webhook payload is not valid event JSON",
			"request_id", types.GetRequestID(r.Context()), "error", err)
		core.Error(w, r, types.NewAppError(types.ErrCodeValidationFailed,
			"Webhook payload is not a valid event.", err))
		return
	}

	outcome, err := h.pipeline.Ingest(r.Context(), &event, payload)
	if err != nil {
		h.logger.Error("webhook event could not be claimed",
			"request_id", types.GetRequestID(r.Context()),
			"stripe_event_id", event.ID,
			"error", err,
		)
		core.Error(w, r, err)
		return
	}

	h.logger.Info("webhook delivery acknowledged",
		"request_id", types.GetRequestID(r.Context()),
		"stripe_event_id", event.ID,
		"event_type", string(event.Type),
		"outcome", string(outcome),
	)
	core.JSON(w, r, http.StatusOK, map[string]bool{"received": true})
}
