package model

import (
	"time"

	"github.com/openequity/Settlement-Backend/internal/money"
)

// DividendComputation statuses. A computation is created as draft, runs the
// waterfall, and becomes immutable when finalized.
const (
	ComputationStatusDraft     = "DRAFT"
	ComputationStatusFinalized = "FINALIZED"
)

// MinIssuanceLeadTime is the required gap between creating a computation and
// its issuance date. The window gives operators time to correct mistakes
// before investors are notified.
const MinIssuanceLeadTime = 10 * 24 * time.Hour

// DividendComputation is a single waterfall run over a cap-table snapshot.
type DividendComputation struct {
	ID          string
	CompanyID   string
	TotalAmount money.Money
	// IssuanceDate must be at least MinIssuanceLeadTime in the future at
	// creation time.
	IssuanceDate time.Time
	// ReturnOfCapital changes tax characterization (qualified amounts become
	// zero) but not the allocation math.
	ReturnOfCapital bool
	Status          string
	// CreatedBy is the acting user who started the computation, passed
	// explicitly by callers; the engine carries no ambient user context.
	CreatedBy string
	CreatedAt time.Time
	FinalizedAt     time.Time
}

// Finalized reports whether the computation has been committed and is
// immutable.
func (c *DividendComputation) Finalized() bool {
	return c.Status == ComputationStatusFinalized
}

// DividendComputationOutput is one investor's allocation row. The sum of
// DividendAmount across a computation's outputs equals TotalAmount exactly.
type DividendComputationOutput struct {
	ID            string
	ComputationID string
	InvestorID    string
	// SourceKind records which instrument produced the row: "holding" or
	// "convertible".
	SourceKind     string
	SourceID       string
	ShareClassName string
	NumberOfShares int64
	// HurdleRateCents and OriginalIssuePriceCents are zero when not defined
	// for the source instrument.
	HurdleRateCents         money.Money
	OriginalIssuePriceCents money.Money
	PreferredDividendAmount money.Money
	DividendAmount          money.Money
	QualifiedDividendAmount money.Money
}
