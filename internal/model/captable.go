package model

import (
	"github.com/openequity/Settlement-Backend/internal/money"
)

// ShareClass represents a class of stock with its distribution terms.
// A share class is immutable once holdings reference it.
type ShareClass struct {
	ID        string
	CompanyID string
	Name      string
	// LiquidationPreferenceMultiple scales the preference claim, expressed
	// in basis points of the original issue price (10000 = 1.0x).
	LiquidationPreferenceBps int64
	Participating            bool
	// ParticipationCapBps caps total participating proceeds at this multiple
	// of the invested amount, in basis points. Zero means uncapped.
	ParticipationCapBps int64
	// SeniorityRank orders preference payment: lower ranks are paid first,
	// equal ranks share pro rata.
	SeniorityRank int
	// OriginalIssuePriceCents is the per-share issue price the preference
	// and cap multiples apply to.
	OriginalIssuePriceCents money.Money
}

// ShareHolding is an investor's position in one share class at snapshot time.
// A holding is never mutated after a distribution computation has consumed
// it; a new computation re-reads current holdings.
type ShareHolding struct {
	ID             string
	CompanyID      string
	InvestorID     string
	ShareClassID   string
	NumberOfShares int64
	// HurdleRateCents caps the per-share preferred dividend where defined.
	// Zero means no hurdle.
	HurdleRateCents money.Money
}

// ConvertibleClassName labels output rows produced by as-converted
// convertible securities, which have no issued share class.
const ConvertibleClassName = "convertible"

// ConvertibleSecurity participates in distributions as if converted, subject
// to its own seniority rank.
type ConvertibleSecurity struct {
	ID            string
	CompanyID     string
	InvestorID    string
	PrincipalValue money.Money
	ImpliedShares int64
	// ValuationCapCents is optional; zero means no cap.
	ValuationCapCents money.Money
	// DiscountRateBps is the conversion discount in basis points, in [0, 10000].
	DiscountRateBps int64
	// InterestRateBps is the accrued interest rate in basis points.
	InterestRateBps int64
	SeniorityRank   int
}

// CapTableSnapshot is the read-only capitalization state a distribution
// computation runs against. It is assembled once per computation; the engine
// never mutates it.
type CapTableSnapshot struct {
	CompanyID    string
	Classes      []ShareClass
	Holdings     []ShareHolding
	Convertibles []ConvertibleSecurity
}

// ClassByID returns the share class with the given id, or false.
func (s *CapTableSnapshot) ClassByID(id string) (ShareClass, bool) {
	for _, c := range s.Classes {
		if c.ID == id {
			return c, true
		}
	}
	return ShareClass{}, false
}

// ClassByName returns the share class with the given name, or false.
// Class names are unique per company.
func (s *CapTableSnapshot) ClassByName(name string) (ShareClass, bool) {
	for _, c := range s.Classes {
		if c.Name == name {
			return c, true
		}
	}
	return ShareClass{}, false
}

// SharesHeld sums the shares an investor holds in the named class.
func (s *CapTableSnapshot) SharesHeld(investorID, className string) int64 {
	class, ok := s.ClassByName(className)
	if !ok {
		return 0
	}
	var total int64
	for _, h := range s.Holdings {
		if h.InvestorID == investorID && h.ShareClassID == class.ID {
			total += h.NumberOfShares
		}
	}
	return total
}
