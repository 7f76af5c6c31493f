package waterfall_test

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/openequity/Settlement-Backend/internal/model"
	"github.com/openequity/Settlement-Backend/internal/money"
	"github.com/openequity/Settlement-Backend/internal/waterfall"
)

func sumOutputs(outputs []model.DividendComputationOutput) money.Money {
	var sum money.Money
	for _, o := range outputs {
		sum += o.DividendAmount
	}
	return sum
}

func outputFor(t *testing.T, outputs []model.DividendComputationOutput, investorID string) model.DividendComputationOutput {
	t.Helper()
	for _, o := range outputs {
		if o.InvestorID == investorID {
			return o
		}
	}
	t.Fatalf("No output for investor %s", investorID)
	return model.DividendComputationOutput{}
}

// TestCompute_CommonOnly tests pro-rata distribution over a single common class.
//
// WHY: The simplest cap table is the baseline: the pool must split by share
// count and sum exactly, with the rounding remainder on the largest position.
func TestCompute_CommonOnly(t *testing.T) {
	snapshot := &model.CapTableSnapshot{
		CompanyID: "co",
		Classes: []model.ShareClass{
			{ID: "common", CompanyID: "co", Name: "common"},
		},
		Holdings: []model.ShareHolding{
			{ID: "h1", InvestorID: "alice", ShareClassID: "common", NumberOfShares: 1},
			{ID: "h2", InvestorID: "bob", ShareClassID: "common", NumberOfShares: 2},
		},
	}

	t.Run("splits by shares with remainder to the largest position", func(t *testing.T) {
		// Execute
		outputs, err := waterfall.Compute(snapshot, money.FromCents(1000050), false)

		// Assert
		if err != nil {
			t.Fatalf("Compute() returned unexpected error: %v", err)
		}
		if got := outputFor(t, outputs, "alice").DividendAmount; got != money.FromCents(333350) {
			t.Errorf("Expected $3,333.50 for alice, got %s", got)
		}
		if got := outputFor(t, outputs, "bob").DividendAmount; got != money.FromCents(666700) {
			t.Errorf("Expected $6,667.00 for bob, got %s", got)
		}
		if sum := sumOutputs(outputs); sum != money.FromCents(1000050) {
			t.Errorf("Outputs sum to %s, expected $10,000.50", sum)
		}
	})

	t.Run("qualified equals dividend for an ordinary distribution", func(t *testing.T) {
		outputs, err := waterfall.Compute(snapshot, money.FromDollars(300, 0), false)
		if err != nil {
			t.Fatalf("Compute() returned unexpected error: %v", err)
		}
		for _, o := range outputs {
			if o.QualifiedDividendAmount != o.DividendAmount {
				t.Errorf("Investor %s: qualified %s != dividend %s", o.InvestorID, o.QualifiedDividendAmount, o.DividendAmount)
			}
		}
	})

	t.Run("return of capital zeroes qualified amounts only", func(t *testing.T) {
		outputs, err := waterfall.Compute(snapshot, money.FromDollars(300, 0), true)
		if err != nil {
			t.Fatalf("Compute() returned unexpected error: %v", err)
		}
		for _, o := range outputs {
			if o.QualifiedDividendAmount != 0 {
				t.Errorf("Investor %s: expected zero qualified amount, got %s", o.InvestorID, o.QualifiedDividendAmount)
			}
		}
		if sum := sumOutputs(outputs); sum != money.FromDollars(300, 0) {
			t.Errorf("Outputs sum to %s, expected $300.00", sum)
		}
	})
}

// TestCompute_Preferences tests seniority-ordered preference payment.
//
// WHY: Preference handling decides who gets paid when the pool is thin.
// Senior tiers must fill completely before junior tiers see anything, and a
// partially funded tier must split pro rata by claim and stop the waterfall.
func TestCompute_Preferences(t *testing.T) {
	// Series A: 1x preference on a $10.00 issue price, senior, non-participating.
	// Series B: 1x preference on a $10.00 issue price, junior, non-participating.
	snapshot := &model.CapTableSnapshot{
		CompanyID: "co",
		Classes: []model.ShareClass{
			{ID: "common", CompanyID: "co", Name: "common"},
			{ID: "serA", CompanyID: "co", Name: "Series A", LiquidationPreferenceBps: 10000, SeniorityRank: 0, OriginalIssuePriceCents: money.FromDollars(10, 0)},
			{ID: "serB", CompanyID: "co", Name: "Series B", LiquidationPreferenceBps: 10000, SeniorityRank: 1, OriginalIssuePriceCents: money.FromDollars(10, 0)},
		},
		Holdings: []model.ShareHolding{
			{ID: "h1", InvestorID: "alice", ShareClassID: "serA", NumberOfShares: 100}, // $1,000 claim
			{ID: "h2", InvestorID: "carol", ShareClassID: "serA", NumberOfShares: 300}, // $3,000 claim
			{ID: "h3", InvestorID: "dave", ShareClassID: "serB", NumberOfShares: 100},  // $1,000 claim
			{ID: "h4", InvestorID: "bob", ShareClassID: "common", NumberOfShares: 300},
		},
	}

	t.Run("fills tiers in rank order then pays common", func(t *testing.T) {
		// $6,000: $4,000 Series A + $1,000 Series B + $1,000 to common.
		outputs, err := waterfall.Compute(snapshot, money.FromDollars(6000, 0), false)
		if err != nil {
			t.Fatalf("Compute() returned unexpected error: %v", err)
		}

		if got := outputFor(t, outputs, "alice"); got.PreferredDividendAmount != money.FromDollars(1000, 0) || got.DividendAmount != money.FromDollars(1000, 0) {
			t.Errorf("alice: expected $1,000 preferred, got preferred %s total %s", got.PreferredDividendAmount, got.DividendAmount)
		}
		if got := outputFor(t, outputs, "dave").DividendAmount; got != money.FromDollars(1000, 0) {
			t.Errorf("dave: expected $1,000, got %s", got)
		}
		// Non-participating preferred takes nothing from the common pool.
		if got := outputFor(t, outputs, "bob").DividendAmount; got != money.FromDollars(1000, 0) {
			t.Errorf("bob: expected the full $1,000 common remainder, got %s", got)
		}
		if sum := sumOutputs(outputs); sum != money.FromDollars(6000, 0) {
			t.Errorf("Outputs sum to %s, expected $6,000.00", sum)
		}
	})

	t.Run("partial senior tier splits pro rata by claim and stops", func(t *testing.T) {
		// $2,000 against a $4,000 senior tier: 1:3 by claim, juniors and
		// common get nothing.
		outputs, err := waterfall.Compute(snapshot, money.FromDollars(2000, 0), false)
		if err != nil {
			t.Fatalf("Compute() returned unexpected error: %v", err)
		}

		if got := outputFor(t, outputs, "alice").DividendAmount; got != money.FromDollars(500, 0) {
			t.Errorf("alice: expected $500, got %s", got)
		}
		if got := outputFor(t, outputs, "carol").DividendAmount; got != money.FromDollars(1500, 0) {
			t.Errorf("carol: expected $1,500, got %s", got)
		}
		if got := outputFor(t, outputs, "dave").DividendAmount; got != 0 {
			t.Errorf("dave: expected nothing from an exhausted pool, got %s", got)
		}
		if got := outputFor(t, outputs, "bob").DividendAmount; got != 0 {
			t.Errorf("bob: expected nothing from an exhausted pool, got %s", got)
		}
		if sum := sumOutputs(outputs); sum != money.FromDollars(2000, 0) {
			t.Errorf("Outputs sum to %s, expected $2,000.00", sum)
		}
	})

	t.Run("hurdle caps the preference claim", func(t *testing.T) {
		hurdled := &model.CapTableSnapshot{
			CompanyID: "co",
			Classes: []model.ShareClass{
				{ID: "common", CompanyID: "co", Name: "common"},
				{ID: "serA", CompanyID: "co", Name: "Series A", LiquidationPreferenceBps: 10000, OriginalIssuePriceCents: money.FromDollars(10, 0)},
			},
			Holdings: []model.ShareHolding{
				// Claim would be $1,000 but the $2.00/share hurdle caps it at $200.
				{ID: "h1", InvestorID: "alice", ShareClassID: "serA", NumberOfShares: 100, HurdleRateCents: money.FromDollars(2, 0)},
				{ID: "h2", InvestorID: "bob", ShareClassID: "common", NumberOfShares: 100},
			},
		}

		outputs, err := waterfall.Compute(hurdled, money.FromDollars(1000, 0), false)
		if err != nil {
			t.Fatalf("Compute() returned unexpected error: %v", err)
		}
		if got := outputFor(t, outputs, "alice").PreferredDividendAmount; got != money.FromDollars(200, 0) {
			t.Errorf("alice: expected $200 hurdle-capped preference, got %s", got)
		}
		if got := outputFor(t, outputs, "bob").DividendAmount; got != money.FromDollars(800, 0) {
			t.Errorf("bob: expected $800 common remainder, got %s", got)
		}
	})
}

// TestCompute_ParticipationCaps tests cap clamping and redistribution.
//
// WHY: A participating-preferred cap changes where money lands: the clamped
// excess must flow to uncapped participants, and a snapshot where nobody can
// absorb the pool must fail loudly instead of losing cents.
func TestCompute_ParticipationCaps(t *testing.T) {
	t.Run("clamps at the cap and redistributes the excess", func(t *testing.T) {
		snapshot := &model.CapTableSnapshot{
			CompanyID: "co",
			Classes: []model.ShareClass{
				{ID: "common", CompanyID: "co", Name: "common"},
				// 1x preference, participating with a 2x total cap on $1.00.
				{ID: "serP", CompanyID: "co", Name: "Series P", LiquidationPreferenceBps: 10000, Participating: true, ParticipationCapBps: 20000, OriginalIssuePriceCents: money.FromDollars(1, 0)},
			},
			Holdings: []model.ShareHolding{
				{ID: "h1", InvestorID: "eve", ShareClassID: "serP", NumberOfShares: 100},
				{ID: "h2", InvestorID: "frank", ShareClassID: "common", NumberOfShares: 100},
			},
		}

		// $1,000: eve takes her $100 preference, the $900 common split
		// would give her $450 more but the 2x cap stops her at $200 total;
		// the excess lands on frank.
		outputs, err := waterfall.Compute(snapshot, money.FromDollars(1000, 0), false)
		if err != nil {
			t.Fatalf("Compute() returned unexpected error: %v", err)
		}

		if got := outputFor(t, outputs, "eve").DividendAmount; got != money.FromDollars(200, 0) {
			t.Errorf("eve: expected $200 capped total, got %s", got)
		}
		if got := outputFor(t, outputs, "frank").DividendAmount; got != money.FromDollars(800, 0) {
			t.Errorf("frank: expected $800, got %s", got)
		}
	})

	t.Run("fails when every participant is capped with money left", func(t *testing.T) {
		snapshot := &model.CapTableSnapshot{
			CompanyID: "co",
			Classes: []model.ShareClass{
				{ID: "serP", CompanyID: "co", Name: "Series P", LiquidationPreferenceBps: 10000, Participating: true, ParticipationCapBps: 20000, OriginalIssuePriceCents: money.FromDollars(1, 0)},
			},
			Holdings: []model.ShareHolding{
				{ID: "h1", InvestorID: "eve", ShareClassID: "serP", NumberOfShares: 100},
			},
		}

		_, err := waterfall.Compute(snapshot, money.FromDollars(1000, 0), false)
		if !errors.Is(err, waterfall.ErrAllParticipantsCapped) {
			t.Errorf("Expected ErrAllParticipantsCapped, got %v", err)
		}
	})
}

// TestCompute_Convertibles tests as-converted convertible participation.
//
// WHY: Convertibles hold a preference claim of principal plus interest and
// then share the common pool through their implied shares. Getting either
// side wrong misallocates against every other instrument.
func TestCompute_Convertibles(t *testing.T) {
	snapshot := &model.CapTableSnapshot{
		CompanyID: "co",
		Classes: []model.ShareClass{
			{ID: "common", CompanyID: "co", Name: "common"},
		},
		Holdings: []model.ShareHolding{
			{ID: "h1", InvestorID: "bob", ShareClassID: "common", NumberOfShares: 100},
		},
		Convertibles: []model.ConvertibleSecurity{
			// $1,000 principal at 10% accrued interest: $1,100 claim.
			{ID: "c1", InvestorID: "gina", PrincipalValue: money.FromDollars(1000, 0), ImpliedShares: 100, InterestRateBps: 1000},
		},
	}

	// Execute
	outputs, err := waterfall.Compute(snapshot, money.FromDollars(2100, 0), false)

	// Assert
	if err != nil {
		t.Fatalf("Compute() returned unexpected error: %v", err)
	}

	gina := outputFor(t, outputs, "gina")
	if gina.PreferredDividendAmount != money.FromDollars(1100, 0) {
		t.Errorf("gina: expected $1,100 preference, got %s", gina.PreferredDividendAmount)
	}
	// Remaining $1,000 splits evenly over 100 implied + 100 common shares.
	if gina.DividendAmount != money.FromDollars(1600, 0) {
		t.Errorf("gina: expected $1,600 total, got %s", gina.DividendAmount)
	}
	if gina.ShareClassName != model.ConvertibleClassName {
		t.Errorf("gina: expected class %q, got %q", model.ConvertibleClassName, gina.ShareClassName)
	}
	if got := outputFor(t, outputs, "bob").DividendAmount; got != money.FromDollars(500, 0) {
		t.Errorf("bob: expected $500, got %s", got)
	}
}

// TestCompute_Errors tests input rejection.
//
// WHY: A zero pool or an empty cap table is an operator mistake. The engine
// must refuse to produce a plausible-looking empty result for either.
func TestCompute_Errors(t *testing.T) {
	valid := &model.CapTableSnapshot{
		CompanyID: "co",
		Classes:   []model.ShareClass{{ID: "common", CompanyID: "co", Name: "common"}},
		Holdings:  []model.ShareHolding{{ID: "h1", InvestorID: "alice", ShareClassID: "common", NumberOfShares: 10}},
	}

	t.Run("rejects a non-positive pool", func(t *testing.T) {
		if _, err := waterfall.Compute(valid, 0, false); !errors.Is(err, waterfall.ErrNonPositivePool) {
			t.Errorf("Expected ErrNonPositivePool for zero, got %v", err)
		}
		if _, err := waterfall.Compute(valid, money.FromCents(-1), false); !errors.Is(err, waterfall.ErrNonPositivePool) {
			t.Errorf("Expected ErrNonPositivePool for negative, got %v", err)
		}
	})

	t.Run("rejects an empty snapshot", func(t *testing.T) {
		empty := &model.CapTableSnapshot{CompanyID: "co"}
		if _, err := waterfall.Compute(empty, money.FromDollars(100, 0), false); !errors.Is(err, waterfall.ErrNoEligibleInstruments) {
			t.Errorf("Expected ErrNoEligibleInstruments, got %v", err)
		}
	})

	t.Run("rejects a holding with an unknown class", func(t *testing.T) {
		broken := &model.CapTableSnapshot{
			CompanyID: "co",
			Holdings:  []model.ShareHolding{{ID: "h1", InvestorID: "alice", ShareClassID: "missing", NumberOfShares: 10}},
		}
		if _, err := waterfall.Compute(broken, money.FromDollars(100, 0), false); err == nil {
			t.Error("Expected error for unknown share class")
		}
	})
}

// TestCompute_SumInvariantRandomized tests exactness over random cap tables.
//
// WHY: The exact-sum invariant must hold for any cap-table shape — mixed
// seniority ranks, preference and cap multiples, hurdles, convertibles —
// not just the hand-picked cases above. Random tables surface the rounding
// and redistribution interactions no fixed fixture would.
func TestCompute_SumInvariantRandomized(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 300; i++ {
		snapshot := &model.CapTableSnapshot{CompanyID: "co"}

		classes := rng.Intn(4) + 1
		for c := 0; c < classes; c++ {
			class := model.ShareClass{
				ID:        fmt.Sprintf("class-%d", c),
				CompanyID: "co",
				Name:      fmt.Sprintf("class-%d", c),
			}
			if rng.Intn(2) == 1 {
				class.LiquidationPreferenceBps = rng.Int63n(20000) + 5000
				class.SeniorityRank = rng.Intn(3)
				class.OriginalIssuePriceCents = money.FromCents(rng.Int63n(2000) + 1)
				if rng.Intn(2) == 1 {
					class.Participating = true
					if rng.Intn(2) == 1 {
						class.ParticipationCapBps = rng.Int63n(20000) + 10000
					}
				}
			}
			snapshot.Classes = append(snapshot.Classes, class)

			holders := rng.Intn(5) + 1
			for h := 0; h < holders; h++ {
				holding := model.ShareHolding{
					ID:             fmt.Sprintf("h-%d-%d", c, h),
					InvestorID:     fmt.Sprintf("inv-%d-%d", c, h),
					ShareClassID:   class.ID,
					NumberOfShares: rng.Int63n(10000) + 1,
				}
				if class.LiquidationPreferenceBps > 0 && rng.Intn(4) == 0 {
					holding.HurdleRateCents = money.FromCents(rng.Int63n(500) + 1)
				}
				snapshot.Holdings = append(snapshot.Holdings, holding)
			}
		}

		for v := 0; v < rng.Intn(3); v++ {
			snapshot.Convertibles = append(snapshot.Convertibles, model.ConvertibleSecurity{
				ID:              fmt.Sprintf("conv-%d", v),
				CompanyID:       "co",
				InvestorID:      fmt.Sprintf("conv-inv-%d", v),
				PrincipalValue:  money.FromCents(rng.Int63n(10_000_000) + 1),
				ImpliedShares:   rng.Int63n(5000) + 1,
				InterestRateBps: rng.Int63n(2000),
				SeniorityRank:   rng.Intn(3),
			})
		}

		total := money.FromCents(rng.Int63n(100_000_000) + 1)
		returnOfCapital := rng.Intn(4) == 0

		outputs, err := waterfall.Compute(snapshot, total, returnOfCapital)
		if errors.Is(err, waterfall.ErrAllParticipantsCapped) {
			// Legitimate outcome: every participant hit its cap with money
			// left over. Nothing to distribute, nothing to check.
			continue
		}
		if err != nil {
			t.Fatalf("Compute() returned unexpected error on iteration %d: %v", i, err)
		}
		if sum := sumOutputs(outputs); sum != total {
			t.Fatalf("Outputs sum to %s, expected %s (iteration %d, %d classes, %d convertibles)",
				sum, total, i, classes, len(snapshot.Convertibles))
		}
		for _, o := range outputs {
			if o.DividendAmount.IsNegative() {
				t.Fatalf("Negative allocation %s for %s on iteration %d", o.DividendAmount, o.InvestorID, i)
			}
			if returnOfCapital && o.QualifiedDividendAmount != 0 {
				t.Fatalf("Qualified amount %s on a return of capital, iteration %d", o.QualifiedDividendAmount, i)
			}
		}
	}
}
