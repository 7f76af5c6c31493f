package model

import (
	"time"

	"github.com/openequity/Settlement-Backend/internal/money"
)

// Buyback types. A single_stock buyback sells at a fixed price, first come
// first served; a tender_offer runs a clearing-price auction.
const (
	BuybackTypeSingleStock = "single_stock"
	BuybackTypeTenderOffer = "tender_offer"
)

// VestedGrantClass is the pseudo share class name under which vested option
// grants may be tendered alongside issued holdings.
const VestedGrantClass = "vested_grants"

// TenderOffer is a company share buyback window.
type TenderOffer struct {
	ID               string
	CompanyID        string
	BuybackType      string
	StartsAt         time.Time
	EndsAt           time.Time
	MinimumValuation money.Money
	// TotalAmount is the budget cap. Zero means uncapped, which is only
	// valid for tender_offer auctions constrained by minimum valuation.
	TotalAmount money.Money
	// AcceptedPriceCents is set once by the clearing engine and is then
	// immutable. Zero means clearing has not run (or found no equilibrium).
	AcceptedPriceCents money.Money
	// StartingPricePerShareCents is required and fixed for single_stock.
	StartingPricePerShareCents money.Money
	// ClearedAt is when the clearing computation ran; zero if it has not.
	ClearedAt time.Time
	CreatedAt time.Time
}

// Open reports whether the offer accepts bids at the given time. The window
// is half-open: [StartsAt, EndsAt).
func (o *TenderOffer) Open(now time.Time) bool {
	return !now.Before(o.StartsAt) && now.Before(o.EndsAt)
}

// Cleared reports whether the clearing computation has run for this offer.
func (o *TenderOffer) Cleared() bool {
	return !o.ClearedAt.IsZero()
}

// TenderOfferBid is one investor's offer to sell shares back to the company.
type TenderOfferBid struct {
	ID             string
	TenderOfferID  string
	InvestorID     string
	NumberOfShares int64
	SharePriceCents money.Money
	// ShareClass names the investor's securities the bid draws from; the
	// vested-grant pseudo-class is allowed.
	ShareClass string
	// AcceptedShares is set by clearing, always ≤ NumberOfShares.
	AcceptedShares int64
	CreatedAt      time.Time
}
