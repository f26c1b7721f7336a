package db

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"balanceguard/internal/types"
)

// BillingRepo persists the webhook event ledger and the provider-neutral
// money facts derived from it. Every write is idempotent: the event claim
// rides on a unique constraint, transactions upsert by their Stripe object
// identity, and refunds dedupe on stripe_refund_id.
type BillingRepo struct {
	db DBTX
}

// NewBillingRepo creates a BillingRepo backed by the given database
// connection (pool or transaction).
func NewBillingRepo(db DBTX) *BillingRepo {
	return &BillingRepo{db: db}
}

// ClaimEvent inserts the ledger row for a delivery. The unique constraint on
// (stripe_event_id, livemode) is the concurrency-safety mechanism: of two
// concurrent deliveries of the same event exactly one insert lands; the other
// observes the conflict and reports claimed=false (deduped). The claim is
// never rolled back once made.
func (r *BillingRepo) ClaimEvent(ctx context.Context, e *types.BillingEvent) (claimed bool, err error) {
	tag, err := r.db.Exec(ctx,
		`INSERT INTO billing_events (id, stripe_event_id, livemode, type, received_at,
		     payload_json, process_status, processing_attempts)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, 0)
		 ON CONFLICT (stripe_event_id, livemode) DO NOTHING`,
		e.ID, e.StripeEventID, e.Livemode, e.Type, e.ReceivedAt,
		e.PayloadJSON, types.ProcessStatusReceived,
	)
	if err != nil {
		return false, types.NewAppError(types.ErrCodeInternal, "failed to claim billing event", err)
	}
	return tag.RowsAffected() > 0, nil
}

// MarkProcessing records the start of a processing attempt.
func (r *BillingRepo) MarkProcessing(ctx context.Context, eventID uuid.UUID, at time.Time) error {
	_, err := r.db.Exec(ctx,
		`UPDATE billing_events
		 SET processing_started_at = $1, processing_attempts = processing_attempts + 1
		 WHERE id = $2`,
		at, eventID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternal, "failed to mark billing event processing", err)
	}
	return nil
}

// MarkProcessed transitions the event to its terminal success state.
func (r *BillingRepo) MarkProcessed(ctx context.Context, eventID uuid.UUID, at time.Time) error {
	_, err := r.db.Exec(ctx,
		`UPDATE billing_events
		 SET process_status = $1, processed_at = $2, last_error_code = NULL
		 WHERE id = $3`,
		types.ProcessStatusProcessed, at, eventID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternal, "failed to mark billing event processed", err)
	}
	return nil
}

// MarkFailed records a handler failure on the ledger row. The claim stays in
// place so the delivery remains auditable.
func (r *BillingRepo) MarkFailed(ctx context.Context, eventID uuid.UUID, errorCode string) error {
	_, err := r.db.Exec(ctx,
		`UPDATE billing_events
		 SET process_status = $1, last_error_code = $2
		 WHERE id = $3`,
		types.ProcessStatusFailed, errorCode, eventID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternal, "failed to mark billing event failed", err)
	}
	return nil
}

// MarkIgnored is the terminal state for event types outside the allowlist.
func (r *BillingRepo) MarkIgnored(ctx context.Context, eventID uuid.UUID) error {
	_, err := r.db.Exec(ctx,
		`UPDATE billing_events SET process_status = $1 WHERE id = $2`,
		types.ProcessStatusIgnored, eventID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternal, "failed to mark billing event ignored", err)
	}
	return nil
}

// UpsertTransaction merges a money fact by its Stripe object identity and
// fills in the row's id (existing or new) on the passed struct. Replays of
// the same event update in place, never duplicate.
func (r *BillingRepo) UpsertTransaction(ctx context.Context, t *types.BillingTransaction) error {
	err := r.db.QueryRow(ctx,
		`INSERT INTO billing_transactions (id, stripe_object_type, stripe_object_id, kind,
		     status, purpose, amount_cents, currency, customer_id, charge_id,
		     occurred_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), NOW())
		 ON CONFLICT (stripe_object_type, stripe_object_id, kind) DO UPDATE
		 SET status = EXCLUDED.status,
		     purpose = EXCLUDED.purpose,
		     amount_cents = EXCLUDED.amount_cents,
		     currency = EXCLUDED.currency,
		     customer_id = EXCLUDED.customer_id,
		     charge_id = EXCLUDED.charge_id,
		     occurred_at = EXCLUDED.occurred_at,
		     updated_at = NOW()
		 RETURNING id`,
		t.ID, t.StripeObjectType, t.StripeObjectID, t.Kind,
		t.Status, t.Purpose, t.AmountCents, t.Currency, t.CustomerID, t.ChargeID,
		t.OccurredAt,
	).Scan(&t.ID)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternal, "failed to upsert billing transaction", err)
	}
	return nil
}

// FindTransactionByChargeID locates the charge transaction a refund should
// attach to. Returns (nil, nil) when no such charge is on file.
func (r *BillingRepo) FindTransactionByChargeID(ctx context.Context, chargeID string) (*types.BillingTransaction, error) {
	var t types.BillingTransaction
	err := r.db.QueryRow(ctx,
		`SELECT id, stripe_object_type, stripe_object_id, kind, status, purpose,
		     amount_cents, currency, customer_id, charge_id, occurred_at, created_at, updated_at
		 FROM billing_transactions
		 WHERE charge_id = $1 AND kind = $2`,
		chargeID, types.TransactionKindCharge,
	).Scan(
		&t.ID, &t.StripeObjectType, &t.StripeObjectID, &t.Kind, &t.Status, &t.Purpose,
		&t.AmountCents, &t.Currency, &t.CustomerID, &t.ChargeID, &t.OccurredAt, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, types.NewAppError(types.ErrCodeInternal, "failed to find charge transaction", err)
	}
	return &t, nil
}

// InsertRefund records a refund once per stripe_refund_id. Replays are
// no-ops.
func (r *BillingRepo) InsertRefund(ctx context.Context, refund *types.BillingRefund) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO billing_refunds (id, stripe_refund_id, transaction_id, amount_cents,
		     currency, reason, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, NOW())
		 ON CONFLICT (stripe_refund_id) DO NOTHING`,
		refund.ID, refund.StripeRefundID, refund.TransactionID, refund.AmountCents,
		refund.Currency, refund.Reason,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternal, "failed to insert billing refund", err)
	}
	return nil
}

// InsertLineItem attaches a product-level grant to a transaction. One row per
// (transaction, kind, product); replays are no-ops.
func (r *BillingRepo) InsertLineItem(ctx context.Context, item *types.BillingLineItem) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO billing_line_items (id, transaction_id, kind, product_ref, quantity, created_at)
		 VALUES ($1, $2, $3, $4, $5, NOW())
		 ON CONFLICT (transaction_id, kind, product_ref) DO NOTHING`,
		item.ID, item.TransactionID, item.Kind, item.ProductRef, item.Quantity,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternal, "failed to insert billing line item", err)
	}
	return nil
}
