// Package billing ingests verified Stripe webhook events into the local
// ledger. Every delivery is recorded exactly once per (stripe_event_id,
// livemode) pair; redeliveries and unhandled types are acknowledged without
// side effects.
package billing

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	stripe "github.com/stripe/stripe-go/v82"

	"balanceguard/internal/external"
	"balanceguard/internal/types"
)

// Store is the ledger surface the pipeline writes to, satisfied by
// db.BillingRepo.
type Store interface {
	ClaimEvent(ctx context.Context, e *types.BillingEvent) (bool, error)
	MarkProcessing(ctx context.Context, eventID uuid.UUID, at time.Time) error
	MarkProcessed(ctx context.Context, eventID uuid.UUID, at time.Time) error
	MarkFailed(ctx context.Context, eventID uuid.UUID, errorCode string) error
	MarkIgnored(ctx context.Context, eventID uuid.UUID) error
	UpsertTransaction(ctx context.Context, t *types.BillingTransaction) error
	FindTransactionByChargeID(ctx context.Context, chargeID string) (*types.BillingTransaction, error)
	InsertRefund(ctx context.Context, refund *types.BillingRefund) error
	InsertLineItem(ctx context.Context, item *types.BillingLineItem) error
}

// Alerter is the failure notification hook, satisfied by
// external.AlertNotifier.
type Alerter interface {
	Enabled() bool
	Notify(ctx context.Context, alert external.Alert)
}

// Outcome describes what happened to one delivery. Every outcome except a
// claim failure is acknowledged to the provider with a 2xx.
type Outcome string

const (
	OutcomeProcessed Outcome = "processed"
	OutcomeDeduped   Outcome = "deduped"
	OutcomeIgnored   Outcome = "ignored"
	OutcomeFailed    Outcome = "failed"
)

var handledEventTypes = map[stripe.EventType]struct{}{
	stripe.EventTypeChargeSucceeded:         {},
	stripe.EventTypeRefundCreated:           {},
	stripe.EventTypeInvoicePaymentSucceeded: {},
}

type Pipeline struct {
	store   Store
	alerter Alerter
	clock   types.Clock
	logger  *slog.Logger
}

func NewPipeline(store Store, alerter Alerter, clock types.Clock, logger *slog.Logger) *Pipeline {
	if store == nil {
		panic("billing: pipeline requires a store")
	}
	if clock == nil {
		clock = types.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{store: store, alerter: alerter, clock: clock, logger: logger}
}

// Ingest records one verified delivery and applies its effects. The payload
// is the raw verified body; it is redacted before it is persisted. A non-nil
// error means the delivery was not claimed and the provider should retry.
// Handler failures after the claim are recorded as FAILED and still
// acknowledged.
func (p *Pipeline) Ingest(ctx context.Context, event *stripe.Event, payload []byte) (Outcome, error) {
	ev := &types.BillingEvent{
		ID:            uuid.New(),
		StripeEventID: event.ID,
		Livemode:      event.Livemode,
		Type:          string(event.Type),
		ReceivedAt:    p.clock.Now(),
		PayloadJSON:   RedactPayload(payload),
		ProcessStatus: types.ProcessStatusReceived,
	}

	claimed, err := p.store.ClaimEvent(ctx, ev)
	if err != nil {
		return OutcomeFailed, err
	}
	if !claimed {
		p.logger.Info("billing event redelivered, skipping",
			"stripe_event_id", event.ID,
			"livemode", event.Livemode,
			"type", string(event.Type),
		)
		return OutcomeDeduped, nil
	}

	if _, handled := handledEventTypes[event.Type]; !handled {
		if err := p.store.MarkIgnored(ctx, ev.ID); err != nil {
			p.logger.Error("failed to mark billing event ignored",
				"stripe_event_id", event.ID, "error", err)
		}
		p.logger.Info("billing event type not handled",
			"stripe_event_id", event.ID,
			"type", string(event.Type),
		)
		return OutcomeIgnored, nil
	}

	if err := p.store.MarkProcessing(ctx, ev.ID, p.clock.Now()); err != nil {
		p.logger.Error("failed to mark billing event processing",
			"stripe_event_id", event.ID, "error", err)
	}

	if err := p.dispatch(ctx, event); err != nil {
		code := failureCode(err)
		p.logger.Error("billing event processing failed",
			"stripe_event_id", event.ID,
			"type", string(event.Type),
			"error_code", code,
			"error", err,
		)
		if markErr := p.store.MarkFailed(ctx, ev.ID, code); markErr != nil {
			p.logger.Error("failed to mark billing event failed",
				"stripe_event_id", event.ID, "error", markErr)
		}
		p.alertFailure(ctx, event.ID, code)
		return OutcomeFailed, nil
	}

	if err := p.store.MarkProcessed(ctx, ev.ID, p.clock.Now()); err != nil {
		p.logger.Error("failed to mark billing event processed",
			"stripe_event_id", event.ID, "error", err)
	}
	return OutcomeProcessed, nil
}

func (p *Pipeline) dispatch(ctx context.Context, event *stripe.Event) error {
	if event.Data == nil {
		return errors.New("event data object missing")
	}
	switch event.Type {
	case stripe.EventTypeChargeSucceeded:
		return p.handleChargeSucceeded(ctx, event)
	case stripe.EventTypeRefundCreated:
		return p.handleRefundCreated(ctx, event)
	case stripe.EventTypeInvoicePaymentSucceeded:
		return p.handleInvoicePaymentSucceeded(ctx, event)
	default:
		return nil
	}
}

func (p *Pipeline) alertFailure(ctx context.Context, stripeEventID, code string) {
	if p.alerter == nil || !p.alerter.Enabled() {
		return
	}
	p.alerter.Notify(ctx, external.Alert{
		Source:    "billing-pipeline",
		Severity:  "error",
		Summary:   "billing event processing failed",
		EventID:   stripeEventID,
		ErrorCode: code,
		At:        p.clock.Now(),
	})
}

func failureCode(err error) string {
	var appErr *types.AppError
	if errors.As(err, &appErr) {
		return string(appErr.Code)
	}
	return string(types.ErrCodeInternal)
}
