// Package waterfall implements the dividend distribution computation: a
// fixed cash pool allocated across share classes and convertible securities
// by seniority, with liquidation preferences, participation caps, and
// qualified/non-qualified tagging.
//
// The computation is pure and synchronous. It never mutates the snapshot it
// runs against and never partially persists; persistence belongs to the
// service layer.
package waterfall

import (
	"errors"
	"fmt"
	"sort"

	"github.com/openequity/Settlement-Backend/internal/model"
	"github.com/openequity/Settlement-Backend/internal/money"
)

// Basis-point denominator for multiples and rates.
const bpsDenominator = 10000

var (
	// ErrNonPositivePool rejects computations over a zero or negative pool.
	// A pool too small to satisfy all preferences is NOT an error; partial
	// tier satisfaction is valid and expected.
	ErrNonPositivePool = errors.New("distribution pool must be positive")

	// ErrNoEligibleInstruments rejects computations against a snapshot with
	// no holdings or convertibles. An empty cap table is an operator error,
	// not a zero-output success.
	ErrNoEligibleInstruments = errors.New("no eligible instruments in snapshot")

	// ErrSumInvariant signals that allocated amounts do not add up to the
	// pool exactly. It aborts the computation; nothing may be persisted.
	ErrSumInvariant = errors.New("allocation sum does not equal total amount")

	// ErrAllParticipantsCapped signals that every common-pool participant hit
	// its participation cap with money left over, leaving the remainder
	// unallocatable. Requires at least one uncapped class in the snapshot.
	ErrAllParticipantsCapped = errors.New("all participants capped with undistributed remainder")
)

// instrument is a holding or as-converted convertible normalized into the
// shape the waterfall operates on.
type instrument struct {
	investorID     string
	sourceKind     string
	sourceID       string
	className      string
	shares         int64
	seniorityRank  int
	preferenceClaim money.Money
	participating  bool
	// capTotal bounds total proceeds (preference + common) when > 0.
	capTotal money.Money
	hurdle   money.Money
	issuePrice money.Money

	// mutable during computation
	preferred money.Money
	total     money.Money
}

// Compute allocates total across the snapshot's instruments and returns one
// output row per instrument. The rows sum to total exactly or an error is
// returned; there is no partial result.
func Compute(snapshot *model.CapTableSnapshot, total money.Money, returnOfCapital bool) ([]model.DividendComputationOutput, error) {
	if !total.IsPositive() {
		return nil, ErrNonPositivePool
	}

	instruments, err := normalize(snapshot)
	if err != nil {
		return nil, err
	}
	if len(instruments) == 0 {
		return nil, ErrNoEligibleInstruments
	}

	remaining, err := payPreferences(instruments, total)
	if err != nil {
		return nil, err
	}

	if remaining.IsPositive() {
		if err := payCommon(instruments, remaining); err != nil {
			return nil, err
		}
	}

	outputs := make([]model.DividendComputationOutput, 0, len(instruments))
	var sum money.Money
	for _, inst := range instruments {
		qualified := inst.total
		if returnOfCapital {
			qualified = 0
		}
		outputs = append(outputs, model.DividendComputationOutput{
			InvestorID:              inst.investorID,
			SourceKind:              inst.sourceKind,
			SourceID:                inst.sourceID,
			ShareClassName:          inst.className,
			NumberOfShares:          inst.shares,
			HurdleRateCents:         inst.hurdle,
			OriginalIssuePriceCents: inst.issuePrice,
			PreferredDividendAmount: inst.preferred,
			DividendAmount:          inst.total,
			QualifiedDividendAmount: qualified,
		})
		sum += inst.total
	}

	if sum != total {
		return nil, fmt.Errorf("%w: allocated %s of %s", ErrSumInvariant, sum, total)
	}

	return outputs, nil
}

// normalize flattens holdings and as-converted convertibles into instruments
// in snapshot order, so pro-rata tie-breaks are deterministic.
func normalize(snapshot *model.CapTableSnapshot) ([]*instrument, error) {
	instruments := make([]*instrument, 0, len(snapshot.Holdings)+len(snapshot.Convertibles))

	for _, h := range snapshot.Holdings {
		class, ok := snapshot.ClassByID(h.ShareClassID)
		if !ok {
			return nil, fmt.Errorf("holding %s references unknown share class %s", h.ID, h.ShareClassID)
		}
		if h.NumberOfShares <= 0 {
			return nil, fmt.Errorf("holding %s has non-positive share count %d", h.ID, h.NumberOfShares)
		}

		inst := &instrument{
			investorID:    h.InvestorID,
			sourceKind:    "holding",
			sourceID:      h.ID,
			className:     class.Name,
			shares:        h.NumberOfShares,
			seniorityRank: class.SeniorityRank,
			participating: class.Participating || class.LiquidationPreferenceBps == 0,
			hurdle:        h.HurdleRateCents,
			issuePrice:    class.OriginalIssuePriceCents,
		}

		if class.LiquidationPreferenceBps > 0 {
			// preference = multiple × original issue price × shares,
			// rounded half-up per share position.
			claim := class.OriginalIssuePriceCents.
				MulRatio(class.LiquidationPreferenceBps, bpsDenominator, money.RoundHalfUp).
				MulRatio(h.NumberOfShares, 1, money.RoundHalfUp)
			if h.HurdleRateCents.IsPositive() {
				hurdleCap := h.HurdleRateCents.MulRatio(h.NumberOfShares, 1, money.RoundHalfUp)
				claim = claim.Min(hurdleCap)
			}
			inst.preferenceClaim = claim
		}

		if class.ParticipationCapBps > 0 {
			inst.capTotal = class.OriginalIssuePriceCents.
				MulRatio(class.ParticipationCapBps, bpsDenominator, money.RoundHalfUp).
				MulRatio(h.NumberOfShares, 1, money.RoundHalfUp)
		}

		instruments = append(instruments, inst)
	}

	for _, c := range snapshot.Convertibles {
		if c.ImpliedShares <= 0 {
			return nil, fmt.Errorf("convertible %s has non-positive implied shares %d", c.ID, c.ImpliedShares)
		}

		// A convertible's preference claim is its principal plus accrued
		// interest; it participates in the common pool with its implied
		// share count, uncapped.
		claim := c.PrincipalValue.Add(
			c.PrincipalValue.MulRatio(c.InterestRateBps, bpsDenominator, money.RoundHalfUp))

		instruments = append(instruments, &instrument{
			investorID:      c.InvestorID,
			sourceKind:      "convertible",
			sourceID:        c.ID,
			className:       model.ConvertibleClassName,
			shares:          c.ImpliedShares,
			seniorityRank:   c.SeniorityRank,
			preferenceClaim: claim,
			participating:   true,
		})
	}

	return instruments, nil
}

// payPreferences walks seniority tiers in ascending rank order. A tier whose
// total claim exceeds the remaining pool is paid pro rata by claim size and
// exhausts the pool; later tiers receive nothing. Returns the pool remaining
// for the common distribution.
func payPreferences(instruments []*instrument, pool money.Money) (money.Money, error) {
	byRank := make(map[int][]*instrument)
	ranks := make([]int, 0)
	for _, inst := range instruments {
		if !inst.preferenceClaim.IsPositive() {
			continue
		}
		if _, seen := byRank[inst.seniorityRank]; !seen {
			ranks = append(ranks, inst.seniorityRank)
		}
		byRank[inst.seniorityRank] = append(byRank[inst.seniorityRank], inst)
	}
	sort.Ints(ranks)

	remaining := pool
	for _, rank := range ranks {
		tier := byRank[rank]

		var tierClaim money.Money
		for _, inst := range tier {
			tierClaim += inst.preferenceClaim
		}

		if remaining < tierClaim {
			// Partial tier: split what is left pro rata by claim size.
			claims := make([]money.Money, len(tier))
			for i, inst := range tier {
				claims[i] = inst.preferenceClaim
			}
			parts, err := money.AllocateByMoney(remaining, claims)
			if err != nil {
				return 0, err
			}
			for i, inst := range tier {
				inst.preferred = parts[i]
				inst.total = parts[i]
			}
			return 0, nil
		}

		for _, inst := range tier {
			inst.preferred = inst.preferenceClaim
			inst.total = inst.preferenceClaim
		}
		remaining -= tierClaim
	}

	return remaining, nil
}

// payCommon distributes the remaining pool pro rata by as-converted share
// count across participating and common instruments. An instrument whose
// cumulative proceeds would exceed its participation cap is clamped there;
// the excess is redistributed among the remaining uncapped participants.
// The loop reaches a fixed point in at most one pass per instrument.
func payCommon(instruments []*instrument, pool money.Money) error {
	active := make([]*instrument, 0, len(instruments))
	for _, inst := range instruments {
		if inst.participating {
			active = append(active, inst)
		}
	}
	if len(active) == 0 {
		// Every class is non-participating preferred; the remainder has no
		// common sink. Treat like the all-capped case.
		return ErrAllParticipantsCapped
	}

	remaining := pool
	for pass := 0; pass <= len(instruments); pass++ {
		if !remaining.IsPositive() {
			return nil
		}
		if len(active) == 0 {
			return ErrAllParticipantsCapped
		}

		weights := make([]int64, len(active))
		for i, inst := range active {
			weights[i] = inst.shares
		}
		parts, err := money.AllocateProRata(remaining, weights)
		if err != nil {
			return err
		}

		next := active[:0:0]
		remaining = 0
		for i, inst := range active {
			proposed := inst.total.Add(parts[i])
			if inst.capTotal.IsPositive() && proposed > inst.capTotal {
				// Clamp at the cap, push the excess back into the pool.
				remaining += proposed.Sub(inst.capTotal)
				inst.total = inst.capTotal
				continue
			}
			inst.total = proposed
			next = append(next, inst)
		}
		active = next
	}

	if remaining.IsPositive() {
		return ErrAllParticipantsCapped
	}
	return nil
}
