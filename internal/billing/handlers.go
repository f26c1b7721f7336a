package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	stripe "github.com/stripe/stripe-go/v82"

	"balanceguard/internal/types"
)

// Metadata keys set by the checkout flow. Their absence is not an error: a
// transaction without a recognized product grants nothing but is still
// recorded.
const (
	metaPackRef = "pack_ref"
	metaPackQty = "pack_quantity"
	metaPlanRef = "plan_ref"
)

func eventOccurredAt(event *stripe.Event) time.Time {
	return time.Unix(event.Created, 0).UTC()
}

// handleChargeSucceeded records a one-time charge. A payload missing its
// object id, a positive amount, or a currency is logged and skipped; the
// delivery is still acknowledged.
func (p *Pipeline) handleChargeSucceeded(ctx context.Context, event *stripe.Event) error {
	var charge stripe.Charge
	if err := json.Unmarshal(event.Data.Raw, &charge); err != nil {
		return fmt.Errorf("decode charge object: %w", err)
	}
	if charge.ID == "" || charge.Amount <= 0 || charge.Currency == "" {
		p.logger.Warn("charge event missing required fields, skipping",
			"stripe_event_id", event.ID, "charge_id", charge.ID)
		return nil
	}

	chargeID := charge.ID
	txn := &types.BillingTransaction{
		ID:               uuid.New(),
		StripeObjectType: "charge",
		StripeObjectID:   charge.ID,
		Kind:             types.TransactionKindCharge,
		Status:           types.TransactionStatusSucceeded,
		Purpose:          types.PurposeOneTimePurchase,
		AmountCents:      charge.Amount,
		Currency:         string(charge.Currency),
		ChargeID:         &chargeID,
		OccurredAt:       eventOccurredAt(event),
	}
	if charge.Customer != nil && charge.Customer.ID != "" {
		customerID := charge.Customer.ID
		txn.CustomerID = &customerID
	}
	if err := p.store.UpsertTransaction(ctx, txn); err != nil {
		return fmt.Errorf("upsert charge transaction: %w", err)
	}

	if ref := charge.Metadata[metaPackRef]; ref != "" {
		qty := 1
		if raw := charge.Metadata[metaPackQty]; raw != "" {
			if n, err := strconv.Atoi(raw); err == nil && n > 0 {
				qty = n
			}
		}
		item := &types.BillingLineItem{
			ID:            uuid.New(),
			TransactionID: txn.ID,
			Kind:          types.LineItemKindPack,
			ProductRef:    ref,
			Quantity:      qty,
		}
		if err := p.store.InsertLineItem(ctx, item); err != nil {
			return fmt.Errorf("insert pack line item: %w", err)
		}
	}
	return nil
}

// handleRefundCreated links a refund to its charge transaction and mirrors it
// as a REFUND row. A refund whose charge was never recorded locally is
// skipped silently; it belongs to a payment this system does not track.
func (p *Pipeline) handleRefundCreated(ctx context.Context, event *stripe.Event) error {
	var refund stripe.Refund
	if err := json.Unmarshal(event.Data.Raw, &refund); err != nil {
		return fmt.Errorf("decode refund object: %w", err)
	}
	if refund.ID == "" || refund.Charge == nil || refund.Charge.ID == "" ||
		refund.Amount <= 0 || refund.Currency == "" {
		p.logger.Warn("refund event missing required fields, skipping",
			"stripe_event_id", event.ID, "refund_id", refund.ID)
		return nil
	}

	chargeTxn, err := p.store.FindTransactionByChargeID(ctx, refund.Charge.ID)
	if err != nil {
		return fmt.Errorf("find charge transaction: %w", err)
	}
	if chargeTxn == nil {
		p.logger.Info("refund for untracked charge, skipping",
			"stripe_event_id", event.ID,
			"refund_id", refund.ID,
			"charge_id", refund.Charge.ID,
		)
		return nil
	}

	row := &types.BillingRefund{
		ID:             uuid.New(),
		StripeRefundID: refund.ID,
		TransactionID:  chargeTxn.ID,
		AmountCents:    refund.Amount,
		Currency:       string(refund.Currency),
	}
	if refund.Reason != "" {
		reason := string(refund.Reason)
		row.Reason = &reason
	}
	if err := p.store.InsertRefund(ctx, row); err != nil {
		return fmt.Errorf("insert refund: %w", err)
	}

	chargeID := refund.Charge.ID
	mirror := &types.BillingTransaction{
		ID:               uuid.New(),
		StripeObjectType: "refund",
		StripeObjectID:   refund.ID,
		Kind:             types.TransactionKindRefund,
		Status:           types.TransactionStatusSucceeded,
		Purpose:          types.PurposeRefund,
		AmountCents:      refund.Amount,
		Currency:         string(refund.Currency),
		ChargeID:         &chargeID,
		OccurredAt:       eventOccurredAt(event),
	}
	if err := p.store.UpsertTransaction(ctx, mirror); err != nil {
		return fmt.Errorf("upsert refund transaction: %w", err)
	}
	return nil
}

// handleInvoicePaymentSucceeded records a subscription payment.
func (p *Pipeline) handleInvoicePaymentSucceeded(ctx context.Context, event *stripe.Event) error {
	var invoice stripe.Invoice
	if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
		return fmt.Errorf("decode invoice object: %w", err)
	}
	if invoice.ID == "" || invoice.AmountPaid <= 0 || invoice.Currency == "" {
		p.logger.Warn("invoice event missing required fields, skipping",
			"stripe_event_id", event.ID, "invoice_id", invoice.ID)
		return nil
	}

	txn := &types.BillingTransaction{
		ID:               uuid.New(),
		StripeObjectType: "invoice",
		StripeObjectID:   invoice.ID,
		Kind:             types.TransactionKindCharge,
		Status:           types.TransactionStatusSucceeded,
		Purpose:          types.PurposeSubscriptionPayment,
		AmountCents:      invoice.AmountPaid,
		Currency:         string(invoice.Currency),
		OccurredAt:       eventOccurredAt(event),
	}
	if invoice.Customer != nil && invoice.Customer.ID != "" {
		customerID := invoice.Customer.ID
		txn.CustomerID = &customerID
	}
	if err := p.store.UpsertTransaction(ctx, txn); err != nil {
		return fmt.Errorf("upsert invoice transaction: %w", err)
	}

	if ref := invoice.Metadata[metaPlanRef]; ref != "" {
		item := &types.BillingLineItem{
			ID:            uuid.New(),
			TransactionID: txn.ID,
			Kind:          types.LineItemKindSubscription,
			ProductRef:    ref,
			Quantity:      1,
		}
		if err := p.store.InsertLineItem(ctx, item); err != nil {
			return fmt.Errorf("insert subscription line item: %w", err)
		}
	}
	return nil
}
