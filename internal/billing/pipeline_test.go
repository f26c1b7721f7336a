package billing

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	stripe "github.com/stripe/stripe-go/v82"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"balanceguard/internal/external"
	"balanceguard/internal/types"
)

var testNow = time.Date(2026, 4, 10, 9, 0, 0, 0, time.UTC)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

type mockStore struct {
	mock.Mock
}

func (m *mockStore) ClaimEvent(ctx context.Context, e *types.BillingEvent) (bool, error) {
	args := m.Called(ctx, e)
	return args.Bool(0), args.Error(1)
}

func (m *mockStore) MarkProcessing(ctx context.Context, eventID uuid.UUID, at time.Time) error {
	return m.Called(ctx, eventID, at).Error(0)
}

func (m *mockStore) MarkProcessed(ctx context.Context, eventID uuid.UUID, at time.Time) error {
	return m.Called(ctx, eventID, at).Error(0)
}

func (m *mockStore) MarkFailed(ctx context.Context, eventID uuid.UUID, errorCode string) error {
	return m.Called(ctx, eventID, errorCode).Error(0)
}

func (m *mockStore) MarkIgnored(ctx context.Context, eventID uuid.UUID) error {
	return m.Called(ctx, eventID).Error(0)
}

func (m *mockStore) UpsertTransaction(ctx context.Context, t *types.BillingTransaction) error {
	return m.Called(ctx, t).Error(0)
}

func (m *mockStore) FindTransactionByChargeID(ctx context.Context, chargeID string) (*types.BillingTransaction, error) {
	args := m.Called(ctx, chargeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.BillingTransaction), args.Error(1)
}

func (m *mockStore) InsertRefund(ctx context.Context, refund *types.BillingRefund) error {
	return m.Called(ctx, refund).Error(0)
}

func (m *mockStore) InsertLineItem(ctx context.Context, item *types.BillingLineItem) error {
	return m.Called(ctx, item).Error(0)
}

type recordingAlerter struct {
	alerts []external.Alert
}

func (a *recordingAlerter) Enabled() bool { return true }

func (a *recordingAlerter) Notify(_ context.Context, alert external.Alert) {
	a.alerts = append(a.alerts, alert)
}

func newTestPipeline(store *mockStore, alerter Alerter) *Pipeline {
	return NewPipeline(store, alerter, fixedClock{now: testNow}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func makeEvent(id string, eventType stripe.EventType, object string) (*stripe.Event, []byte) {
	payload := []byte(`{"id":"` + id + `","type":"` + string(eventType) + `","livemode":false,"created":1775000000,"data":{"object":` + object + `}}`)
	event := &stripe.Event{
		ID:       id,
		Type:     eventType,
		Livemode: false,
		Created:  1775000000,
		Data:     &stripe.EventData{Raw: json.RawMessage(object)},
	}
	return event, payload
}

func expectClaim(store *mockStore, claimed bool) {
	store.On("ClaimEvent", mock.Anything, mock.AnythingOfType("*types.BillingEvent")).Return(claimed, nil)
}

func expectLifecycle(store *mockStore) {
	store.On("MarkProcessing", mock.Anything, mock.Anything, testNow).Return(nil)
	store.On("MarkProcessed", mock.Anything, mock.Anything, testNow).Return(nil)
}

func TestIngestDeduplicatesRedelivery(t *testing.T) {
	store := new(mockStore)
	expectClaim(store, false)
	p := newTestPipeline(store, nil)

	event, payload := makeEvent("evt_1", stripe.EventTypeChargeSucceeded, `{"id":"ch_1","amount":1500,"currency":"usd"}`)
	outcome, err := p.Ingest(context.Background(), event, payload)

	require.NoError(t, err)
	assert.Equal(t, OutcomeDeduped, outcome)
	store.AssertNotCalled(t, "MarkProcessing", mock.Anything, mock.Anything, mock.Anything)
	store.AssertNotCalled(t, "UpsertTransaction", mock.Anything, mock.Anything)
}

func TestIngestClaimFailureIsRetryable(t *testing.T) {
	store := new(mockStore)
	store.On("ClaimEvent", mock.Anything, mock.Anything).Return(false, errors.New("connection refused"))
	p := newTestPipeline(store, nil)

	event, payload := makeEvent("evt_1", stripe.EventTypeChargeSucceeded, `{"id":"ch_1","amount":1500,"currency":"usd"}`)
	_, err := p.Ingest(context.Background(), event, payload)

	require.Error(t, err)
}

func TestIngestIgnoresUnhandledType(t *testing.T) {
	store := new(mockStore)
	expectClaim(store, true)
	store.On("MarkIgnored", mock.Anything, mock.Anything).Return(nil)
	p := newTestPipeline(store, nil)

	event, payload := makeEvent("evt_1", "customer.created", `{"id":"cus_1"}`)
	outcome, err := p.Ingest(context.Background(), event, payload)

	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnored, outcome)
	store.AssertCalled(t, "MarkIgnored", mock.Anything, mock.Anything)
	store.AssertNotCalled(t, "MarkProcessing", mock.Anything, mock.Anything, mock.Anything)
}

func TestIngestChargeSucceeded(t *testing.T) {
	store := new(mockStore)
	var claimedEvent *types.BillingEvent
	store.On("ClaimEvent", mock.Anything, mock.AnythingOfType("*types.BillingEvent")).
		Run(func(args mock.Arguments) {
			claimedEvent = args.Get(1).(*types.BillingEvent)
		}).
		Return(true, nil)
	expectLifecycle(store)

	var txn *types.BillingTransaction
	store.On("UpsertTransaction", mock.Anything, mock.AnythingOfType("*types.BillingTransaction")).
		Run(func(args mock.Arguments) {
			txn = args.Get(1).(*types.BillingTransaction)
		}).
		Return(nil)
	p := newTestPipeline(store, nil)

	event, payload := makeEvent("evt_1", stripe.EventTypeChargeSucceeded,
		`{"id":"ch_1","amount":1500,"currency":"usd","customer":"cus_9","receipt_email":"buyer@example.com"}`)
	outcome, err := p.Ingest(context.Background(), event, payload)

	require.NoError(t, err)
	assert.Equal(t, OutcomeProcessed, outcome)

	require.NotNil(t, claimedEvent)
	assert.Equal(t, "evt_1", claimedEvent.StripeEventID)
	assert.Equal(t, types.ProcessStatusReceived, claimedEvent.ProcessStatus)
	assert.NotContains(t, string(claimedEvent.PayloadJSON), "buyer@example.com")

	require.NotNil(t, txn)
	assert.Equal(t, "charge", txn.StripeObjectType)
	assert.Equal(t, "ch_1", txn.StripeObjectID)
	assert.Equal(t, types.TransactionKindCharge, txn.Kind)
	assert.Equal(t, types.TransactionStatusSucceeded, txn.Status)
	assert.Equal(t, types.PurposeOneTimePurchase, txn.Purpose)
	assert.Equal(t, int64(1500), txn.AmountCents)
	assert.Equal(t, "usd", txn.Currency)
	require.NotNil(t, txn.ChargeID)
	assert.Equal(t, "ch_1", *txn.ChargeID)
	require.NotNil(t, txn.CustomerID)
	assert.Equal(t, "cus_9", *txn.CustomerID)
	assert.Equal(t, time.Unix(1775000000, 0).UTC(), txn.OccurredAt)
}

func TestIngestChargeWithPackMetadata(t *testing.T) {
	store := new(mockStore)
	expectClaim(store, true)
	expectLifecycle(store)
	store.On("UpsertTransaction", mock.Anything, mock.Anything).Return(nil)

	var item *types.BillingLineItem
	store.On("InsertLineItem", mock.Anything, mock.AnythingOfType("*types.BillingLineItem")).
		Run(func(args mock.Arguments) {
			item = args.Get(1).(*types.BillingLineItem)
		}).
		Return(nil)
	p := newTestPipeline(store, nil)

	event, payload := makeEvent("evt_1", stripe.EventTypeChargeSucceeded,
		`{"id":"ch_1","amount":4500,"currency":"usd","metadata":{"pack_ref":"pack_large","pack_quantity":"3"}}`)
	outcome, err := p.Ingest(context.Background(), event, payload)

	require.NoError(t, err)
	assert.Equal(t, OutcomeProcessed, outcome)
	require.NotNil(t, item)
	assert.Equal(t, types.LineItemKindPack, item.Kind)
	assert.Equal(t, "pack_large", item.ProductRef)
	assert.Equal(t, 3, item.Quantity)
}

func TestIngestChargeMissingFieldsIsNoOp(t *testing.T) {
	store := new(mockStore)
	expectClaim(store, true)
	expectLifecycle(store)
	p := newTestPipeline(store, nil)

	event, payload := makeEvent("evt_1", stripe.EventTypeChargeSucceeded, `{"amount":1500}`)
	outcome, err := p.Ingest(context.Background(), event, payload)

	require.NoError(t, err)
	assert.Equal(t, OutcomeProcessed, outcome)
	store.AssertNotCalled(t, "UpsertTransaction", mock.Anything, mock.Anything)
}

func TestIngestChargeMissingAmountIsNoOp(t *testing.T) {
	store := new(mockStore)
	expectClaim(store, true)
	expectLifecycle(store)
	p := newTestPipeline(store, nil)

	event, payload := makeEvent("evt_1", stripe.EventTypeChargeSucceeded, `{"id":"ch_1","currency":"usd"}`)
	outcome, err := p.Ingest(context.Background(), event, payload)

	require.NoError(t, err)
	assert.Equal(t, OutcomeProcessed, outcome)
	store.AssertNotCalled(t, "UpsertTransaction", mock.Anything, mock.Anything)
}

func TestIngestRefundMissingAmountIsNoOp(t *testing.T) {
	store := new(mockStore)
	expectClaim(store, true)
	expectLifecycle(store)
	p := newTestPipeline(store, nil)

	event, payload := makeEvent("evt_1", stripe.EventTypeRefundCreated, `{"id":"re_1","charge":"ch_1"}`)
	outcome, err := p.Ingest(context.Background(), event, payload)

	require.NoError(t, err)
	assert.Equal(t, OutcomeProcessed, outcome)
	store.AssertNotCalled(t, "FindTransactionByChargeID", mock.Anything, mock.Anything)
	store.AssertNotCalled(t, "InsertRefund", mock.Anything, mock.Anything)
	store.AssertNotCalled(t, "UpsertTransaction", mock.Anything, mock.Anything)
}

func TestIngestRefundForUntrackedChargeSkips(t *testing.T) {
	store := new(mockStore)
	expectClaim(store, true)
	expectLifecycle(store)
	store.On("FindTransactionByChargeID", mock.Anything, "ch_unknown").Return(nil, nil)
	p := newTestPipeline(store, nil)

	event, payload := makeEvent("evt_1", stripe.EventTypeRefundCreated,
		`{"id":"re_1","amount":500,"currency":"usd","charge":"ch_unknown"}`)
	outcome, err := p.Ingest(context.Background(), event, payload)

	require.NoError(t, err)
	assert.Equal(t, OutcomeProcessed, outcome)
	store.AssertNotCalled(t, "InsertRefund", mock.Anything, mock.Anything)
	store.AssertNotCalled(t, "UpsertTransaction", mock.Anything, mock.Anything)
}

func TestIngestRefundLinksAndMirrors(t *testing.T) {
	chargeTxnID := uuid.New()
	store := new(mockStore)
	expectClaim(store, true)
	expectLifecycle(store)
	store.On("FindTransactionByChargeID", mock.Anything, "ch_1").
		Return(&types.BillingTransaction{ID: chargeTxnID, StripeObjectID: "ch_1"}, nil)

	var refund *types.BillingRefund
	store.On("InsertRefund", mock.Anything, mock.AnythingOfType("*types.BillingRefund")).
		Run(func(args mock.Arguments) {
			refund = args.Get(1).(*types.BillingRefund)
		}).
		Return(nil)

	var mirror *types.BillingTransaction
	store.On("UpsertTransaction", mock.Anything, mock.AnythingOfType("*types.BillingTransaction")).
		Run(func(args mock.Arguments) {
			mirror = args.Get(1).(*types.BillingTransaction)
		}).
		Return(nil)
	p := newTestPipeline(store, nil)

	event, payload := makeEvent("evt_1", stripe.EventTypeRefundCreated,
		`{"id":"re_1","amount":500,"currency":"usd","charge":"ch_1","reason":"requested_by_customer"}`)
	outcome, err := p.Ingest(context.Background(), event, payload)

	require.NoError(t, err)
	assert.Equal(t, OutcomeProcessed, outcome)

	require.NotNil(t, refund)
	assert.Equal(t, "re_1", refund.StripeRefundID)
	assert.Equal(t, chargeTxnID, refund.TransactionID)
	assert.Equal(t, int64(500), refund.AmountCents)
	require.NotNil(t, refund.Reason)
	assert.Equal(t, "requested_by_customer", *refund.Reason)

	require.NotNil(t, mirror)
	assert.Equal(t, types.TransactionKindRefund, mirror.Kind)
	assert.Equal(t, types.PurposeRefund, mirror.Purpose)
	assert.Equal(t, "refund", mirror.StripeObjectType)
	assert.Equal(t, "re_1", mirror.StripeObjectID)
}

func TestIngestInvoicePaymentSucceeded(t *testing.T) {
	store := new(mockStore)
	expectClaim(store, true)
	expectLifecycle(store)

	var txn *types.BillingTransaction
	store.On("UpsertTransaction", mock.Anything, mock.AnythingOfType("*types.BillingTransaction")).
		Run(func(args mock.Arguments) {
			txn = args.Get(1).(*types.BillingTransaction)
		}).
		Return(nil)

	var item *types.BillingLineItem
	store.On("InsertLineItem", mock.Anything, mock.AnythingOfType("*types.BillingLineItem")).
		Run(func(args mock.Arguments) {
			item = args.Get(1).(*types.BillingLineItem)
		}).
		Return(nil)
	p := newTestPipeline(store, nil)

	event, payload := makeEvent("evt_1", stripe.EventTypeInvoicePaymentSucceeded,
		`{"id":"in_1","amount_paid":2900,"currency":"eur","metadata":{"plan_ref":"plan_pro"}}`)
	outcome, err := p.Ingest(context.Background(), event, payload)

	require.NoError(t, err)
	assert.Equal(t, OutcomeProcessed, outcome)

	require.NotNil(t, txn)
	assert.Equal(t, "invoice", txn.StripeObjectType)
	assert.Equal(t, types.PurposeSubscriptionPayment, txn.Purpose)
	assert.Equal(t, int64(2900), txn.AmountCents)
	assert.Equal(t, "eur", txn.Currency)

	require.NotNil(t, item)
	assert.Equal(t, types.LineItemKindSubscription, item.Kind)
	assert.Equal(t, "plan_pro", item.ProductRef)
}

func TestIngestHandlerFailureIsRecordedAndAcknowledged(t *testing.T) {
	store := new(mockStore)
	expectClaim(store, true)
	store.On("MarkProcessing", mock.Anything, mock.Anything, testNow).Return(nil)
	store.On("UpsertTransaction", mock.Anything, mock.Anything).Return(errors.New("connection refused"))
	store.On("MarkFailed", mock.Anything, mock.Anything, string(types.ErrCodeInternal)).Return(nil)

	alerter := &recordingAlerter{}
	p := newTestPipeline(store, alerter)

	event, payload := makeEvent("evt_1", stripe.EventTypeChargeSucceeded,
		`{"id":"ch_1","amount":1500,"currency":"usd"}`)
	outcome, err := p.Ingest(context.Background(), event, payload)

	require.NoError(t, err, "handler failures must still be acknowledged")
	assert.Equal(t, OutcomeFailed, outcome)
	store.AssertCalled(t, "MarkFailed", mock.Anything, mock.Anything, string(types.ErrCodeInternal))
	store.AssertNotCalled(t, "MarkProcessed", mock.Anything, mock.Anything, mock.Anything)

	require.Len(t, alerter.alerts, 1)
	assert.Equal(t, "evt_1", alerter.alerts[0].EventID)
	assert.Equal(t, string(types.ErrCodeInternal), alerter.alerts[0].ErrorCode)
}
