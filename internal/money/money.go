// Package money implements fixed-point currency arithmetic in integer minor
// units (cents). All engine computation happens in this type; floating point
// is never used for amounts. Conversion to decimal dollars exists only for
// presentation boundaries.
package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Money is an amount in integer cents. It may be negative where the domain
// allows it (fee netting); validation of sign constraints belongs to callers.
type Money int64

// Rounding selects how MulRatio resolves fractional cents. Each call site
// picks one mode and documents the choice there.
type Rounding int

const (
	// RoundHalfUp rounds 0.5 cents away from zero.
	RoundHalfUp Rounding = iota
	// RoundDown truncates toward zero.
	RoundDown
	// RoundHalfEven rounds 0.5 cents to the nearest even cent (banker's).
	RoundHalfEven
)

// FromCents wraps a raw cent count.
func FromCents(cents int64) Money {
	return Money(cents)
}

// FromDollars builds a Money from whole dollars and cents.
func FromDollars(dollars, cents int64) Money {
	return Money(dollars*100 + cents)
}

// Cents returns the raw cent count.
func (m Money) Cents() int64 {
	return int64(m)
}

// Add returns m + other.
func (m Money) Add(other Money) Money {
	return m + other
}

// Sub returns m - other. The result may be negative; callers that require
// non-negative amounts must check.
func (m Money) Sub(other Money) Money {
	return m - other
}

// IsPositive reports whether the amount is strictly greater than zero.
func (m Money) IsPositive() bool {
	return m > 0
}

// IsNegative reports whether the amount is strictly less than zero.
func (m Money) IsNegative() bool {
	return m < 0
}

// Min returns the smaller of m and other.
func (m Money) Min(other Money) Money {
	if other < m {
		return other
	}
	return m
}

// MulRatio returns m × numerator ÷ denominator with the given rounding mode.
// Panics if denominator is zero; a zero denominator is always a programming
// error, never a data condition.
func (m Money) MulRatio(numerator, denominator int64, mode Rounding) Money {
	if denominator == 0 {
		panic("money: MulRatio with zero denominator")
	}
	if denominator < 0 {
		numerator, denominator = -numerator, -denominator
	}

	product := int64(m) * numerator
	quotient := product / denominator
	remainder := product % denominator

	if remainder == 0 {
		return Money(quotient)
	}

	negative := remainder < 0
	absRem := remainder
	if negative {
		absRem = -absRem
	}

	switch mode {
	case RoundDown:
		return Money(quotient)
	case RoundHalfUp:
		if absRem*2 >= denominator {
			if negative {
				return Money(quotient - 1)
			}
			return Money(quotient + 1)
		}
		return Money(quotient)
	case RoundHalfEven:
		switch {
		case absRem*2 > denominator:
			if negative {
				return Money(quotient - 1)
			}
			return Money(quotient + 1)
		case absRem*2 == denominator:
			if quotient%2 != 0 {
				if negative {
					return Money(quotient - 1)
				}
				return Money(quotient + 1)
			}
			return Money(quotient)
		default:
			return Money(quotient)
		}
	default:
		panic(fmt.Sprintf("money: unknown rounding mode %d", mode))
	}
}

// AllocateProRata splits total across weights so the parts sum to total
// exactly. Each part is floor(total × weight ÷ sumOfWeights); the rounding
// remainder goes to the largest-weight entry, ties broken by input order.
// This is the single remainder-assignment rule shared by the dividend
// waterfall and the clearing engine.
//
// Returns an error if weights is empty, any weight is negative, or all
// weights are zero.
func AllocateProRata(total Money, weights []int64) ([]Money, error) {
	if len(weights) == 0 {
		return nil, fmt.Errorf("money: cannot allocate across zero weights")
	}

	var sum int64
	for i, w := range weights {
		if w < 0 {
			return nil, fmt.Errorf("money: negative weight %d at index %d", w, i)
		}
		sum += w
	}
	if sum == 0 {
		return nil, fmt.Errorf("money: all weights are zero")
	}

	parts := make([]Money, len(weights))
	var allocated Money
	for i, w := range weights {
		parts[i] = total.MulRatio(w, sum, RoundDown)
		allocated += parts[i]
	}

	// Remainder to the largest weight, first occurrence on ties.
	remainder := total - allocated
	if remainder != 0 {
		largest := 0
		for i, w := range weights {
			if w > weights[largest] {
				largest = i
			}
		}
		parts[largest] += remainder
	}

	return parts, nil
}

// AllocateByMoney is AllocateProRata with Money claims as weights. Used when
// a tier's remaining pool is split pro rata by preference claim size.
func AllocateByMoney(total Money, claims []Money) ([]Money, error) {
	weights := make([]int64, len(claims))
	for i, c := range claims {
		weights[i] = int64(c)
	}
	return AllocateProRata(total, weights)
}

// Decimal returns the amount as decimal dollars for presentation use only.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(int64(m), -2)
}

// FromDecimalString parses a decimal dollar string ("104.25") into cents.
// More than two fractional digits is rejected rather than rounded; amounts
// arriving at the boundary must already be exact cents.
func FromDecimalString(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("money: invalid amount %q: %w", s, err)
	}
	cents := d.Shift(2)
	if !cents.IsInteger() {
		return 0, fmt.Errorf("money: amount %q has sub-cent precision", s)
	}
	return Money(cents.IntPart()), nil
}

// String formats the amount as decimal dollars, e.g. "$104.25" or "-$0.07".
func (m Money) String() string {
	sign := ""
	v := int64(m)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s$%d.%02d", sign, v/100, v%100)
}
