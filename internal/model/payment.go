package model

import (
	"time"

	"github.com/openequity/Settlement-Backend/internal/money"
)

// Payment statuses. INITIAL is the only non-terminal state; transitions are
// monotonic toward a terminal state and never revert. A retried attempt gets
// a brand-new Payment record, preserving the audit trail.
const (
	PaymentStatusInitial   = "INITIAL"
	PaymentStatusSucceeded = "SUCCEEDED"
	PaymentStatusFailed    = "FAILED"
	PaymentStatusCancelled = "CANCELLED"
)

// Settlement target kinds. One generic state machine settles all three
// payable types; the kind plus PayableID identify the underlying record.
const (
	TargetInvoicePayment  = "invoice"
	TargetBuybackPayment  = "buyback"
	TargetDividendPayment = "dividend"
)

// SettlementTarget identifies the payable a Payment settles.
type SettlementTarget struct {
	// Kind is one of TargetInvoicePayment, TargetBuybackPayment,
	// TargetDividendPayment.
	Kind string
	// PayableID references the invoice, accepted bid, or dividend output.
	PayableID string
}

// Payment is a single money-movement attempt against the transfer provider.
type Payment struct {
	ID        string
	CompanyID string
	Target    SettlementTarget
	NetAmount money.Money
	TransferFee money.Money
	Currency  string
	Status    string
	// ProviderTransferID is the provider's id for the created transfer;
	// webhook events and reconciliation look payments up by it.
	ProviderTransferID string
	// Reference is the caller-supplied idempotency reference sent with the
	// create-transfer call.
	Reference string
	// ReconcileAttempts counts reconciliation polls; past the configured
	// bound the payment is flagged for manual review.
	ReconcileAttempts int
	FlaggedForReview  bool
	CreatedAt         time.Time
	ResolvedAt        time.Time
}

// Terminal reports whether the payment has reached a final state.
func (p *Payment) Terminal() bool {
	return p.Status != PaymentStatusInitial
}

// AuditRecord is a persisted trace of a settlement attempt, kept for support
// and compliance investigation. BankFingerprint is an encrypted digest of
// the recipient bank details, never the raw details.
type AuditRecord struct {
	ID              string
	PaymentID       string
	PayableID       string
	Event           string
	NetAmount       money.Money
	TransferFee     money.Money
	BankFingerprint string
	AttemptCount    int
	Detail          string
	CreatedAt       time.Time
}
