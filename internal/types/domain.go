package types

import (
	"time"

	"github.com/google/uuid"
)

// Session is a persisted login session. The cookie handed to the browser
// holds an opaque random token; only its SHA-256 hash is stored here.
type Session struct {
	ID                uuid.UUID
	UserID            uuid.UUID
	Surface           Surface
	AuthLevel         string
	SessionFamilyID   uuid.UUID
	RotationCounter   int
	TokenHash         string
	CreatedAt         time.Time
	LastSeenAt        time.Time
	ExpiresAt         time.Time
	RevokedAt         *time.Time
	RevokeReason      *string
	UserAgentSnapshot *string
	DeviceIDHash      *string
	IPCreated         *string
}

// Active reports whether the session is usable at the given instant. Surface
// matching is the caller's concern.
func (s *Session) Active(now time.Time) bool {
	return s.RevokedAt == nil && s.ExpiresAt.After(now)
}

// ProcessStatus is the lifecycle state of a billing event ledger row.
type ProcessStatus string

const (
	ProcessStatusReceived  ProcessStatus = "RECEIVED"
	ProcessStatusProcessed ProcessStatus = "PROCESSED"
	ProcessStatusFailed    ProcessStatus = "FAILED"
	ProcessStatusIgnored   ProcessStatus = "IGNORED"
)

// BillingEvent is one inbound webhook delivery. Rows are claimed exactly once
// per (stripe_event_id, livemode) pair and never deleted.
type BillingEvent struct {
	ID                  uuid.UUID
	StripeEventID       string
	Livemode            bool
	Type                string
	ReceivedAt          time.Time
	PayloadJSON         []byte
	ProcessStatus       ProcessStatus
	ProcessingStartedAt *time.Time
	ProcessingAttempts  int
	LastErrorCode       *string
	ProcessedAt         *time.Time
}

// TransactionKind distinguishes money-in from money-out rows.
type TransactionKind string

const (
	TransactionKindCharge TransactionKind = "CHARGE"
	TransactionKindRefund TransactionKind = "REFUND"
)

// TransactionStatus is the settlement state of a transaction.
type TransactionStatus string

const (
	TransactionStatusSucceeded TransactionStatus = "SUCCEEDED"
	TransactionStatusFailed    TransactionStatus = "FAILED"
)

// TransactionPurpose classifies what a transaction paid for.
type TransactionPurpose string

const (
	PurposeOneTimePurchase     TransactionPurpose = "ONE_TIME_PURCHASE"
	PurposeSubscriptionPayment TransactionPurpose = "SUBSCRIPTION_PAYMENT"
	PurposeRefund              TransactionPurpose = "REFUND"
)

// BillingTransaction is a provider-neutral money fact, upserted by
// (stripe_object_type, stripe_object_id, kind).
type BillingTransaction struct {
	ID               uuid.UUID
	StripeObjectType string
	StripeObjectID   string
	Kind             TransactionKind
	Status           TransactionStatus
	Purpose          TransactionPurpose
	AmountCents      int64
	Currency         string
	CustomerID       *string
	ChargeID         *string
	OccurredAt       time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// BillingRefund is always linked to an existing charge transaction.
type BillingRefund struct {
	ID             uuid.UUID
	StripeRefundID string
	TransactionID  uuid.UUID
	AmountCents    int64
	Currency       string
	Reason         *string
	CreatedAt      time.Time
}

// LineItemKind marks what a line item granted.
type LineItemKind string

const (
	LineItemKindPack         LineItemKind = "PACK"
	LineItemKindSubscription LineItemKind = "SUBSCRIPTION"
)

// BillingLineItem records a product-level grant attached to a transaction.
type BillingLineItem struct {
	ID            uuid.UUID
	TransactionID uuid.UUID
	Kind          LineItemKind
	ProductRef    string
	Quantity      int
	CreatedAt     time.Time
}

// Account is the credential-bearing principal for a surface. Client and admin
// accounts live in separate tables but share this shape.
type Account struct {
	ID           uuid.UUID
	Email        string
	PasswordHash string
	DisplayName  string
	LastLoginAt  *time.Time
	CreatedAt    time.Time
}
