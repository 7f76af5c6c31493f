// Package clearing computes the outcome of a share buyback: a greedy
// allocation for fixed-price single_stock buybacks, and a market-clearing
// equilibrium price for tender_offer auctions.
//
// Both computations are pure. Setting the accepted price on the offer and
// persisting accepted share counts is the service layer's job.
package clearing

import (
	"errors"
	"sort"

	"github.com/openequity/Settlement-Backend/internal/model"
	"github.com/openequity/Settlement-Backend/internal/money"
)

var (
	// ErrNoBids rejects a clearing run over an offer with no bids.
	ErrNoBids = errors.New("tender offer has no bids")

	// ErrUnknownBuybackType rejects offers with a type the engine does not
	// recognize.
	ErrUnknownBuybackType = errors.New("unknown buyback type")

	// ErrMissingSharesOutstanding rejects auction clearing without a share
	// count to derive the implied valuation from.
	ErrMissingSharesOutstanding = errors.New("shares outstanding required for valuation check")
)

// Allocation is the cleared outcome for one bid.
type Allocation struct {
	BidID          string
	InvestorID     string
	RequestedShares int64
	AcceptedShares int64
	// AcceptedAmount is AcceptedShares × the bid's own price. Bids above the
	// clearing price are paid their bid price, not the clearing price.
	AcceptedAmount money.Money
}

// Result is the outcome of a clearing computation. NoEquilibrium is a valid
// outcome, not an error: no price satisfied the minimum valuation and the
// offer closes with zero accepted bids.
type Result struct {
	ClearingPrice money.Money
	NoEquilibrium bool
	Allocations   []Allocation
	TotalSpend    money.Money
}

// Clear computes the clearing outcome for an offer's bids.
// sharesOutstanding is the company's fully diluted share count, used to
// derive the valuation a price implies; it is only required for
// tender_offer auctions with a minimum valuation.
func Clear(offer *model.TenderOffer, bids []model.TenderOfferBid, sharesOutstanding int64) (Result, error) {
	if len(bids) == 0 {
		return Result{}, ErrNoBids
	}

	switch offer.BuybackType {
	case model.BuybackTypeSingleStock:
		return clearSingleStock(offer, bids)
	case model.BuybackTypeTenderOffer:
		return clearAuction(offer, bids, sharesOutstanding)
	default:
		return Result{}, ErrUnknownBuybackType
	}
}

// clearSingleStock accepts bids at the fixed starting price in creation
// order until the budget runs out. The bid that crosses the boundary is
// partially accepted; every later bid receives zero. This is a simple greedy
// allocation, not an auction.
func clearSingleStock(offer *model.TenderOffer, bids []model.TenderOfferBid) (Result, error) {
	price := offer.StartingPricePerShareCents

	ordered := make([]model.TenderOfferBid, len(bids))
	copy(ordered, bids)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
	})

	result := Result{ClearingPrice: price}
	remaining := offer.TotalAmount
	for _, bid := range ordered {
		alloc := Allocation{
			BidID:           bid.ID,
			InvestorID:      bid.InvestorID,
			RequestedShares: bid.NumberOfShares,
		}

		cost := price.MulRatio(bid.NumberOfShares, 1, money.RoundHalfUp)
		switch {
		case cost <= remaining:
			alloc.AcceptedShares = bid.NumberOfShares
			alloc.AcceptedAmount = cost
		case remaining.IsPositive():
			// Boundary bid: accept the shares the leftover budget covers.
			shares := int64(remaining) / int64(price)
			alloc.AcceptedShares = shares
			alloc.AcceptedAmount = price.MulRatio(shares, 1, money.RoundHalfUp)
		}

		remaining = remaining.Sub(alloc.AcceptedAmount)
		result.TotalSpend = result.TotalSpend.Add(alloc.AcceptedAmount)
		result.Allocations = append(result.Allocations, alloc)
	}

	return result, nil
}

// priceLevel groups the bids tied at one price, descending walk order.
type priceLevel struct {
	price money.Money
	bids  []model.TenderOfferBid
}

// clearAuction finds the highest price P such that buying every share bid at
// price ≥ P stays within the budget and implies a valuation of at least the
// offer's minimum. Bids strictly above P are accepted in full at their own
// price; bids at P are pro-rated over the leftover budget; bids below P are
// rejected.
func clearAuction(offer *model.TenderOffer, bids []model.TenderOfferBid, sharesOutstanding int64) (Result, error) {
	// Floor price implied by the minimum valuation: any clearing price below
	// it would value the company under the minimum.
	var floor money.Money
	if offer.MinimumValuation.IsPositive() {
		if sharesOutstanding <= 0 {
			return Result{}, ErrMissingSharesOutstanding
		}
		floor = ceilDiv(offer.MinimumValuation, sharesOutstanding)
	}

	levels := groupByPrice(bids)

	result := Result{}
	remaining := offer.TotalAmount
	capped := offer.TotalAmount.IsPositive()

	for _, level := range levels {
		if level.price < floor {
			break
		}

		var levelShares int64
		for _, bid := range level.bids {
			levelShares += bid.NumberOfShares
		}
		levelCost := level.price.MulRatio(levelShares, 1, money.RoundHalfUp)

		if !capped || levelCost <= remaining {
			for _, bid := range level.bids {
				result.Allocations = append(result.Allocations, Allocation{
					BidID:           bid.ID,
					InvestorID:      bid.InvestorID,
					RequestedShares: bid.NumberOfShares,
					AcceptedShares:  bid.NumberOfShares,
					AcceptedAmount:  level.price.MulRatio(bid.NumberOfShares, 1, money.RoundHalfUp),
				})
			}
			if capped {
				remaining = remaining.Sub(levelCost)
			}
			result.ClearingPrice = level.price
			result.TotalSpend = result.TotalSpend.Add(levelCost)
			continue
		}

		// Budget does not cover this level in full: this is the clearing
		// price. Pro-rate the shares the leftover budget buys across the
		// bids tied at this price only.
		available := int64(remaining) / int64(level.price)
		if available > 0 {
			parts := allocateLevelShares(available, level.bids)
			for i, bid := range level.bids {
				shares := parts[i]
				amount := level.price.MulRatio(shares, 1, money.RoundHalfUp)
				result.Allocations = append(result.Allocations, Allocation{
					BidID:           bid.ID,
					InvestorID:      bid.InvestorID,
					RequestedShares: bid.NumberOfShares,
					AcceptedShares:  shares,
					AcceptedAmount:  amount,
				})
				result.TotalSpend = result.TotalSpend.Add(amount)
			}
			result.ClearingPrice = level.price
		}
		break
	}

	if !result.ClearingPrice.IsPositive() {
		return Result{NoEquilibrium: true}, nil
	}

	// Rejected bids still appear in the result with zero accepted shares so
	// callers persist a complete outcome.
	accepted := make(map[string]bool, len(result.Allocations))
	for _, alloc := range result.Allocations {
		accepted[alloc.BidID] = true
	}
	for _, bid := range bids {
		if !accepted[bid.ID] {
			result.Allocations = append(result.Allocations, Allocation{
				BidID:           bid.ID,
				InvestorID:      bid.InvestorID,
				RequestedShares: bid.NumberOfShares,
			})
		}
	}

	return result, nil
}

// allocateLevelShares splits available shares across the bids tied at the
// clearing price, proportional to requested size. No bid is ever allocated
// past its request: floor shares are assigned first, then the rounding
// remainder one share at a time to the largest bid with capacity left,
// creation order breaking ties.
func allocateLevelShares(available int64, bids []model.TenderOfferBid) []int64 {
	var total int64
	for _, b := range bids {
		total += b.NumberOfShares
	}

	parts := make([]int64, len(bids))
	var assigned int64
	for i, b := range bids {
		parts[i] = available * b.NumberOfShares / total
		assigned += parts[i]
	}

	for assigned < available {
		next := -1
		for i, b := range bids {
			if parts[i] >= b.NumberOfShares {
				continue
			}
			if next == -1 || b.NumberOfShares > bids[next].NumberOfShares {
				next = i
			}
		}
		if next == -1 {
			break
		}
		parts[next]++
		assigned++
	}
	return parts
}

// groupByPrice buckets bids into price levels sorted from highest to lowest.
// Within a level, bids keep creation order.
func groupByPrice(bids []model.TenderOfferBid) []priceLevel {
	ordered := make([]model.TenderOfferBid, len(bids))
	copy(ordered, bids)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].SharePriceCents != ordered[j].SharePriceCents {
			return ordered[i].SharePriceCents > ordered[j].SharePriceCents
		}
		return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
	})

	var levels []priceLevel
	for _, bid := range ordered {
		if n := len(levels); n > 0 && levels[n-1].price == bid.SharePriceCents {
			levels[n-1].bids = append(levels[n-1].bids, bid)
			continue
		}
		levels = append(levels, priceLevel{price: bid.SharePriceCents, bids: []model.TenderOfferBid{bid}})
	}
	return levels
}

// ceilDiv returns the smallest per-share price whose product with shares
// reaches total.
func ceilDiv(total money.Money, shares int64) money.Money {
	return money.FromCents((total.Cents() + shares - 1) / shares)
}
