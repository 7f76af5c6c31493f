package money_test

import (
	"math/rand"
	"testing"

	"github.com/openequity/Settlement-Backend/internal/money"
)

// TestMulRatio tests multiplication by a rational with explicit rounding.
//
// WHY: Every multiple in the engine (preference multiples, interest rates,
// caps) goes through MulRatio. Rounding mistakes here compound across a
// whole distribution, so each mode's behavior at the half-cent boundary is
// pinned down.
func TestMulRatio(t *testing.T) {
	t.Run("half up rounds the half cent away from zero", func(t *testing.T) {
		// $0.25 * 1/2 = 12.5 cents
		if got := money.FromCents(25).MulRatio(1, 2, money.RoundHalfUp); got != money.FromCents(13) {
			t.Errorf("Expected 13 cents, got %d", got.Cents())
		}
		if got := money.FromCents(-25).MulRatio(1, 2, money.RoundHalfUp); got != money.FromCents(-13) {
			t.Errorf("Expected -13 cents, got %d", got.Cents())
		}
	})

	t.Run("round down truncates toward zero", func(t *testing.T) {
		if got := money.FromCents(25).MulRatio(1, 2, money.RoundDown); got != money.FromCents(12) {
			t.Errorf("Expected 12 cents, got %d", got.Cents())
		}
		if got := money.FromCents(-25).MulRatio(1, 2, money.RoundDown); got != money.FromCents(-12) {
			t.Errorf("Expected -12 cents, got %d", got.Cents())
		}
	})

	t.Run("half even breaks ties to the even cent", func(t *testing.T) {
		// 12.5 -> 12, 13.5 -> 14
		if got := money.FromCents(25).MulRatio(1, 2, money.RoundHalfEven); got != money.FromCents(12) {
			t.Errorf("Expected 12 cents, got %d", got.Cents())
		}
		if got := money.FromCents(27).MulRatio(1, 2, money.RoundHalfEven); got != money.FromCents(14) {
			t.Errorf("Expected 14 cents, got %d", got.Cents())
		}
	})

	t.Run("panics on zero denominator", func(t *testing.T) {
		defer func() {
			if recover() == nil {
				t.Error("Expected panic for zero denominator")
			}
		}()
		money.FromCents(100).MulRatio(1, 0, money.RoundHalfUp)
	})

	t.Run("applies basis point multiples", func(t *testing.T) {
		// 1.5x of $10.00
		if got := money.FromDollars(10, 0).MulRatio(15000, 10000, money.RoundHalfUp); got != money.FromDollars(15, 0) {
			t.Errorf("Expected $15.00, got %s", got)
		}
	})
}

// TestAllocateProRata tests exact pro-rata allocation.
//
// WHY: Allocation is the core guarantee of the engine: parts must sum to the
// total exactly, with the rounding remainder going to the largest weight.
// Any drift here breaks the distribution sum invariant.
func TestAllocateProRata(t *testing.T) {
	t.Run("gives the remainder to the largest weight", func(t *testing.T) {
		// $10,000.50 split 1:2
		parts, err := money.AllocateProRata(money.FromCents(1000050), []int64{1, 2})
		if err != nil {
			t.Fatalf("AllocateProRata() returned unexpected error: %v", err)
		}

		if parts[0] != money.FromCents(333350) {
			t.Errorf("Expected $3,333.50 for weight 1, got %s", parts[0])
		}
		if parts[1] != money.FromCents(666700) {
			t.Errorf("Expected $6,667.00 for weight 2, got %s", parts[1])
		}
	})

	t.Run("breaks remainder ties by input order", func(t *testing.T) {
		// 5 cents over three equal weights: floor gives 1 each, the
		// 2-cent remainder lands on the first of the tied weights.
		parts, err := money.AllocateProRata(money.FromCents(5), []int64{1, 1, 1})
		if err != nil {
			t.Fatalf("AllocateProRata() returned unexpected error: %v", err)
		}

		want := []money.Money{3, 1, 1}
		for i := range want {
			if parts[i] != want[i] {
				t.Errorf("Part %d: expected %d cents, got %d", i, want[i].Cents(), parts[i].Cents())
			}
		}
	})

	t.Run("zero weights receive nothing", func(t *testing.T) {
		parts, err := money.AllocateProRata(money.FromCents(100), []int64{0, 4})
		if err != nil {
			t.Fatalf("AllocateProRata() returned unexpected error: %v", err)
		}
		if parts[0] != 0 {
			t.Errorf("Expected zero for zero weight, got %s", parts[0])
		}
		if parts[1] != money.FromCents(100) {
			t.Errorf("Expected full total for sole weight, got %s", parts[1])
		}
	})

	t.Run("rejects all-zero weights", func(t *testing.T) {
		if _, err := money.AllocateProRata(money.FromCents(100), []int64{0, 0}); err == nil {
			t.Error("Expected error for all-zero weights")
		}
	})

	t.Run("rejects negative weights", func(t *testing.T) {
		if _, err := money.AllocateProRata(money.FromCents(100), []int64{3, -1}); err == nil {
			t.Error("Expected error for negative weight")
		}
	})

	t.Run("parts always sum to the total", func(t *testing.T) {
		rng := rand.New(rand.NewSource(42))
		for i := 0; i < 200; i++ {
			total := money.FromCents(rng.Int63n(10_000_000) + 1)
			weights := make([]int64, rng.Intn(20)+1)
			for j := range weights {
				weights[j] = rng.Int63n(5000)
			}
			weights[0]++ // at least one positive weight

			parts, err := money.AllocateProRata(total, weights)
			if err != nil {
				t.Fatalf("AllocateProRata() returned unexpected error: %v", err)
			}

			var sum money.Money
			for _, p := range parts {
				sum += p
			}
			if sum != total {
				t.Fatalf("Parts sum %d != total %d for weights %v", sum.Cents(), total.Cents(), weights)
			}
		}
	})
}

// TestFromDecimalString tests boundary parsing of dollar amounts.
//
// WHY: Amounts cross the API boundary as decimal strings. Sub-cent inputs
// must be rejected, not silently rounded, or callers could create payments
// the integer-cent engine cannot represent.
func TestFromDecimalString(t *testing.T) {
	t.Run("parses exact cents", func(t *testing.T) {
		got, err := money.FromDecimalString("104.25")
		if err != nil {
			t.Fatalf("FromDecimalString() returned unexpected error: %v", err)
		}
		if got != money.FromCents(10425) {
			t.Errorf("Expected 10425 cents, got %d", got.Cents())
		}
	})

	t.Run("rejects sub-cent precision", func(t *testing.T) {
		if _, err := money.FromDecimalString("104.255"); err == nil {
			t.Error("Expected error for sub-cent amount")
		}
	})

	t.Run("rejects garbage", func(t *testing.T) {
		if _, err := money.FromDecimalString("not-money"); err == nil {
			t.Error("Expected error for non-numeric amount")
		}
	})

	t.Run("round trips through Decimal", func(t *testing.T) {
		m := money.FromCents(123456)
		if m.Decimal().StringFixed(2) != "1234.56" {
			t.Errorf("Expected 1234.56, got %s", m.Decimal().StringFixed(2))
		}
	})
}
