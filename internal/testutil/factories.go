package testutil

import (
	"database/sql"
	"testing"
	"time"

	"github.com/openequity/Settlement-Backend/internal/model"
	"github.com/openequity/Settlement-Backend/internal/money"
	"github.com/openequity/Settlement-Backend/internal/repository"
)

// ShareClassBuilder provides a fluent interface for creating test share classes.
//
// Example usage:
//
//	// Simple common stock with defaults
//	common := testutil.NewShareClass(companyID).Build(t, db)
//
//	// Participating preferred with a 2x cap
//	preferred := testutil.NewShareClass(companyID).
//	    WithName("Series A").
//	    WithPreference(10000, 1).
//	    Participating(20000).
//	    WithIssuePrice(money.FromDollars(10, 0)).
//	    Build(t, db)
type ShareClassBuilder struct {
	ID                       string
	CompanyID                string
	Name                     string
	LiquidationPreferenceBps int64
	IsParticipating          bool
	ParticipationCapBps      int64
	SeniorityRank            int
	OriginalIssuePriceCents  money.Money
}

// NewShareClass creates a ShareClassBuilder with common-stock defaults.
func NewShareClass(companyID string) *ShareClassBuilder {
	return &ShareClassBuilder{
		ID:        MakeID(),
		CompanyID: companyID,
		Name:      MakeName("common"),
	}
}

// WithName sets a custom class name.
func (b *ShareClassBuilder) WithName(name string) *ShareClassBuilder {
	b.Name = name
	return b
}

// WithPreference sets the liquidation preference multiple and seniority rank.
func (b *ShareClassBuilder) WithPreference(bps int64, rank int) *ShareClassBuilder {
	b.LiquidationPreferenceBps = bps
	b.SeniorityRank = rank
	return b
}

// Participating marks the class as participating with the given cap in basis
// points. Zero means uncapped participation.
func (b *ShareClassBuilder) Participating(capBps int64) *ShareClassBuilder {
	b.IsParticipating = true
	b.ParticipationCapBps = capBps
	return b
}

// WithIssuePrice sets the per-share original issue price.
func (b *ShareClassBuilder) WithIssuePrice(price money.Money) *ShareClassBuilder {
	b.OriginalIssuePriceCents = price
	return b
}

// Build creates the share class in the database and returns it.
func (b *ShareClassBuilder) Build(t *testing.T, db *sql.DB) model.ShareClass {
	t.Helper()

	query := `
		INSERT INTO share_class (id, company_id, name, liquidation_preference_bps,
			participating, participation_cap_bps, seniority_rank, original_issue_price_cents)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := db.Exec(query, b.ID, b.CompanyID, b.Name, b.LiquidationPreferenceBps,
		b.IsParticipating, b.ParticipationCapBps, b.SeniorityRank, b.OriginalIssuePriceCents.Cents())
	if err != nil {
		t.Fatalf("Failed to create test share class: %v", err)
	}

	return model.ShareClass{
		ID:                       b.ID,
		CompanyID:                b.CompanyID,
		Name:                     b.Name,
		LiquidationPreferenceBps: b.LiquidationPreferenceBps,
		Participating:            b.IsParticipating,
		ParticipationCapBps:      b.ParticipationCapBps,
		SeniorityRank:            b.SeniorityRank,
		OriginalIssuePriceCents:  b.OriginalIssuePriceCents,
	}
}

// HoldingBuilder provides a fluent interface for creating test share holdings.
type HoldingBuilder struct {
	ID              string
	CompanyID       string
	InvestorID      string
	ShareClassID    string
	NumberOfShares  int64
	HurdleRateCents money.Money
}

// NewHolding creates a HoldingBuilder for the given class with defaults.
func NewHolding(class model.ShareClass, investorID string) *HoldingBuilder {
	return &HoldingBuilder{
		ID:             MakeID(),
		CompanyID:      class.CompanyID,
		InvestorID:     investorID,
		ShareClassID:   class.ID,
		NumberOfShares: 100,
	}
}

// WithShares sets the position size.
func (b *HoldingBuilder) WithShares(n int64) *HoldingBuilder {
	b.NumberOfShares = n
	return b
}

// WithHurdle sets the per-share hurdle rate.
func (b *HoldingBuilder) WithHurdle(rate money.Money) *HoldingBuilder {
	b.HurdleRateCents = rate
	return b
}

// Build creates the holding in the database and returns it.
func (b *HoldingBuilder) Build(t *testing.T, db *sql.DB) model.ShareHolding {
	t.Helper()

	query := `
		INSERT INTO share_holding (id, company_id, investor_id, share_class_id,
			number_of_shares, hurdle_rate_cents)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := db.Exec(query, b.ID, b.CompanyID, b.InvestorID, b.ShareClassID,
		b.NumberOfShares, b.HurdleRateCents.Cents())
	if err != nil {
		t.Fatalf("Failed to create test holding: %v", err)
	}

	return model.ShareHolding{
		ID:              b.ID,
		CompanyID:       b.CompanyID,
		InvestorID:      b.InvestorID,
		ShareClassID:    b.ShareClassID,
		NumberOfShares:  b.NumberOfShares,
		HurdleRateCents: b.HurdleRateCents,
	}
}

// ConvertibleBuilder provides a fluent interface for creating test
// convertible securities.
type ConvertibleBuilder struct {
	ID              string
	CompanyID       string
	InvestorID      string
	PrincipalValue  money.Money
	ImpliedShares   int64
	InterestRateBps int64
	SeniorityRank   int
}

// NewConvertible creates a ConvertibleBuilder with defaults.
func NewConvertible(companyID, investorID string) *ConvertibleBuilder {
	return &ConvertibleBuilder{
		ID:             MakeID(),
		CompanyID:      companyID,
		InvestorID:     investorID,
		PrincipalValue: money.FromDollars(10000, 0),
		ImpliedShares:  1000,
	}
}

// WithPrincipal sets the principal value.
func (b *ConvertibleBuilder) WithPrincipal(p money.Money) *ConvertibleBuilder {
	b.PrincipalValue = p
	return b
}

// WithImpliedShares sets the as-converted share count.
func (b *ConvertibleBuilder) WithImpliedShares(n int64) *ConvertibleBuilder {
	b.ImpliedShares = n
	return b
}

// WithInterest sets the accrued interest rate in basis points.
func (b *ConvertibleBuilder) WithInterest(bps int64) *ConvertibleBuilder {
	b.InterestRateBps = bps
	return b
}

// WithSeniority sets the seniority rank.
func (b *ConvertibleBuilder) WithSeniority(rank int) *ConvertibleBuilder {
	b.SeniorityRank = rank
	return b
}

// Build creates the convertible in the database and returns it.
func (b *ConvertibleBuilder) Build(t *testing.T, db *sql.DB) model.ConvertibleSecurity {
	t.Helper()

	query := `
		INSERT INTO convertible_security (id, company_id, investor_id, principal_value_cents,
			implied_shares, valuation_cap_cents, discount_rate_bps, interest_rate_bps, seniority_rank)
		VALUES (?, ?, ?, ?, ?, 0, 0, ?, ?)
	`
	_, err := db.Exec(query, b.ID, b.CompanyID, b.InvestorID, b.PrincipalValue.Cents(),
		b.ImpliedShares, b.InterestRateBps, b.SeniorityRank)
	if err != nil {
		t.Fatalf("Failed to create test convertible: %v", err)
	}

	return model.ConvertibleSecurity{
		ID:              b.ID,
		CompanyID:       b.CompanyID,
		InvestorID:      b.InvestorID,
		PrincipalValue:  b.PrincipalValue,
		ImpliedShares:   b.ImpliedShares,
		InterestRateBps: b.InterestRateBps,
		SeniorityRank:   b.SeniorityRank,
	}
}

// OfferBuilder provides a fluent interface for creating test tender offers.
// Defaults to an open tender_offer auction with a one-day window around now.
type OfferBuilder struct {
	ID                         string
	CompanyID                  string
	BuybackType                string
	StartsAt                   time.Time
	EndsAt                     time.Time
	MinimumValuation           money.Money
	TotalAmount                money.Money
	StartingPricePerShareCents money.Money
}

// NewOffer creates an OfferBuilder with auction defaults.
func NewOffer(companyID string) *OfferBuilder {
	now := time.Now().UTC()
	return &OfferBuilder{
		ID:          MakeID(),
		CompanyID:   companyID,
		BuybackType: model.BuybackTypeTenderOffer,
		StartsAt:    now.Add(-time.Hour),
		EndsAt:      now.Add(23 * time.Hour),
		TotalAmount: money.FromDollars(3000, 0),
	}
}

// SingleStock switches the offer to a fixed-price buyback.
func (b *OfferBuilder) SingleStock(price money.Money) *OfferBuilder {
	b.BuybackType = model.BuybackTypeSingleStock
	b.StartingPricePerShareCents = price
	return b
}

// WithBudget sets the total budget cap.
func (b *OfferBuilder) WithBudget(total money.Money) *OfferBuilder {
	b.TotalAmount = total
	return b
}

// WithMinimumValuation sets the auction's valuation floor.
func (b *OfferBuilder) WithMinimumValuation(v money.Money) *OfferBuilder {
	b.MinimumValuation = v
	return b
}

// WithWindow sets the bidding window.
func (b *OfferBuilder) WithWindow(startsAt, endsAt time.Time) *OfferBuilder {
	b.StartsAt = startsAt
	b.EndsAt = endsAt
	return b
}

// Closed moves the window entirely into the past.
func (b *OfferBuilder) Closed() *OfferBuilder {
	now := time.Now().UTC()
	b.StartsAt = now.Add(-48 * time.Hour)
	b.EndsAt = now.Add(-24 * time.Hour)
	return b
}

// Build creates the offer in the database and returns it.
func (b *OfferBuilder) Build(t *testing.T, db *sql.DB) model.TenderOffer {
	t.Helper()

	query := `
		INSERT INTO tender_offer (id, company_id, buyback_type, starts_at, ends_at,
			minimum_valuation_cents, total_amount_cents, accepted_price_cents,
			starting_price_per_share_cents, cleared_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?, NULL, ?)
	`
	createdAt := time.Now().UTC()
	_, err := db.Exec(query, b.ID, b.CompanyID, b.BuybackType,
		repository.FormatTime(b.StartsAt), repository.FormatTime(b.EndsAt),
		b.MinimumValuation.Cents(), b.TotalAmount.Cents(),
		b.StartingPricePerShareCents.Cents(), repository.FormatTime(createdAt))
	if err != nil {
		t.Fatalf("Failed to create test offer: %v", err)
	}

	return model.TenderOffer{
		ID:                         b.ID,
		CompanyID:                  b.CompanyID,
		BuybackType:                b.BuybackType,
		StartsAt:                   b.StartsAt,
		EndsAt:                     b.EndsAt,
		MinimumValuation:           b.MinimumValuation,
		TotalAmount:                b.TotalAmount,
		StartingPricePerShareCents: b.StartingPricePerShareCents,
		CreatedAt:                  createdAt,
	}
}

// BidBuilder provides a fluent interface for creating test bids.
type BidBuilder struct {
	ID             string
	TenderOfferID  string
	InvestorID     string
	NumberOfShares int64
	SharePrice     money.Money
	ShareClass     string
	CreatedAt      time.Time
}

// NewBid creates a BidBuilder with defaults.
func NewBid(offer model.TenderOffer, investorID string) *BidBuilder {
	return &BidBuilder{
		ID:             MakeID(),
		TenderOfferID:  offer.ID,
		InvestorID:     investorID,
		NumberOfShares: 100,
		SharePrice:     money.FromDollars(10, 0),
		ShareClass:     "common",
		CreatedAt:      time.Now().UTC(),
	}
}

// WithShares sets the bid size.
func (b *BidBuilder) WithShares(n int64) *BidBuilder {
	b.NumberOfShares = n
	return b
}

// WithPrice sets the per-share ask.
func (b *BidBuilder) WithPrice(p money.Money) *BidBuilder {
	b.SharePrice = p
	return b
}

// WithShareClass sets the class the bid draws from.
func (b *BidBuilder) WithShareClass(name string) *BidBuilder {
	b.ShareClass = name
	return b
}

// WithCreatedAt pins the creation time, which decides single_stock ordering.
func (b *BidBuilder) WithCreatedAt(at time.Time) *BidBuilder {
	b.CreatedAt = at
	return b
}

// Build creates the bid in the database and returns it.
func (b *BidBuilder) Build(t *testing.T, db *sql.DB) model.TenderOfferBid {
	t.Helper()

	query := `
		INSERT INTO tender_offer_bid (id, tender_offer_id, investor_id, number_of_shares,
			share_price_cents, share_class, accepted_shares, created_at)
		VALUES (?, ?, ?, ?, ?, ?, 0, ?)
	`
	_, err := db.Exec(query, b.ID, b.TenderOfferID, b.InvestorID, b.NumberOfShares,
		b.SharePrice.Cents(), b.ShareClass, repository.FormatTime(b.CreatedAt))
	if err != nil {
		t.Fatalf("Failed to create test bid: %v", err)
	}

	return model.TenderOfferBid{
		ID:              b.ID,
		TenderOfferID:   b.TenderOfferID,
		InvestorID:      b.InvestorID,
		NumberOfShares:  b.NumberOfShares,
		SharePriceCents: b.SharePrice,
		ShareClass:      b.ShareClass,
		CreatedAt:       b.CreatedAt,
	}
}

// PaymentBuilder provides a fluent interface for creating test payments.
type PaymentBuilder struct {
	ID                 string
	CompanyID          string
	TargetKind         string
	PayableID          string
	NetAmount          money.Money
	TransferFee        money.Money
	Status             string
	ProviderTransferID string
	ReconcileAttempts  int
}

// NewPayment creates a PaymentBuilder with an in-flight invoice payment.
func NewPayment(companyID string) *PaymentBuilder {
	return &PaymentBuilder{
		ID:                 MakeID(),
		CompanyID:          companyID,
		TargetKind:         model.TargetInvoicePayment,
		PayableID:          MakeID(),
		NetAmount:          money.FromDollars(1250, 0),
		TransferFee:        money.FromDollars(2, 50),
		Status:             model.PaymentStatusInitial,
		ProviderTransferID: MakeID(),
	}
}

// WithStatus sets the payment status.
func (b *PaymentBuilder) WithStatus(status string) *PaymentBuilder {
	b.Status = status
	return b
}

// WithTarget sets the payable the payment settles.
func (b *PaymentBuilder) WithTarget(kind, payableID string) *PaymentBuilder {
	b.TargetKind = kind
	b.PayableID = payableID
	return b
}

// WithTransferID sets the provider transfer id.
func (b *PaymentBuilder) WithTransferID(id string) *PaymentBuilder {
	b.ProviderTransferID = id
	return b
}

// WithReconcileAttempts sets the attempt counter.
func (b *PaymentBuilder) WithReconcileAttempts(n int) *PaymentBuilder {
	b.ReconcileAttempts = n
	return b
}

// Build creates the payment in the database and returns it.
func (b *PaymentBuilder) Build(t *testing.T, db *sql.DB) model.Payment {
	t.Helper()

	createdAt := time.Now().UTC()
	query := `
		INSERT INTO payment (id, company_id, target_kind, payable_id, net_amount_cents,
			transfer_fee_cents, currency, status, provider_transfer_id, reference,
			reconcile_attempts, flagged_for_review, created_at, resolved_at)
		VALUES (?, ?, ?, ?, ?, ?, 'USD', ?, ?, ?, ?, FALSE, ?, NULL)
	`
	reference := MakeID()
	_, err := db.Exec(query, b.ID, b.CompanyID, b.TargetKind, b.PayableID,
		b.NetAmount.Cents(), b.TransferFee.Cents(), b.Status, b.ProviderTransferID,
		reference, b.ReconcileAttempts, repository.FormatTime(createdAt))
	if err != nil {
		t.Fatalf("Failed to create test payment: %v", err)
	}

	return model.Payment{
		ID:                 b.ID,
		CompanyID:          b.CompanyID,
		Target:             model.SettlementTarget{Kind: b.TargetKind, PayableID: b.PayableID},
		NetAmount:          b.NetAmount,
		TransferFee:        b.TransferFee,
		Currency:           "USD",
		Status:             b.Status,
		ProviderTransferID: b.ProviderTransferID,
		Reference:          reference,
		ReconcileAttempts:  b.ReconcileAttempts,
		CreatedAt:          createdAt,
	}
}
