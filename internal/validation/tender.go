package validation

import (
	"strings"
	"time"

	"github.com/openequity/Settlement-Backend/internal/api/request"
	"github.com/openequity/Settlement-Backend/internal/model"
	"github.com/openequity/Settlement-Backend/internal/money"
)

// ValidateCreateOffer validates a tender offer creation request.
//
// Required fields:
//   - companyId: Must be a valid UUID
//   - buybackType: Must be "single_stock" or "tender_offer"
//   - startsAt, endsAt: RFC3339 timestamps with startsAt before endsAt
//
// Conditional fields:
//   - totalAmount: required and positive for single_stock; optional for
//     tender_offer (an absent budget runs the auction uncapped), positive
//     if provided
//   - startingPricePerShare: required and positive for single_stock
//   - minimumValuation: optional for tender_offer, positive if provided
//
// Returns a validation Error with field-specific error messages if validation fails.
//
//nolint:gocyclo // Comprehensive validation of offer creation, cannot be split well.
func ValidateCreateOffer(req request.CreateOfferRequest) error {
	errors := make(map[string]string)

	if err := ValidateUUID(req.CompanyID); err != nil {
		return err
	}

	if req.BuybackType != model.BuybackTypeSingleStock && req.BuybackType != model.BuybackTypeTenderOffer {
		errors["buybackType"] = "buybackType must be single_stock or tender_offer"
	}

	// The budget cap is mandatory for single_stock; a tender_offer auction
	// may run uncapped, bounded only by its minimum valuation.
	var err error
	if req.TotalAmount == "" {
		if req.BuybackType == model.BuybackTypeSingleStock {
			errors["totalAmount"] = "totalAmount is required for single_stock"
		}
	} else if amount, amountErr := money.FromDecimalString(req.TotalAmount); amountErr != nil {
		errors["totalAmount"] = amountErr.Error()
	} else if amount <= 0 {
		errors["totalAmount"] = "totalAmount must be positive"
	}

	var startsAt, endsAt time.Time
	if strings.TrimSpace(req.StartsAt) == "" {
		errors["startsAt"] = "date is required"
	} else if startsAt, err = time.Parse(time.RFC3339, req.StartsAt); err != nil {
		errors["startsAt"] = err.Error()
	}
	if strings.TrimSpace(req.EndsAt) == "" {
		errors["endsAt"] = "date is required"
	} else if endsAt, err = time.Parse(time.RFC3339, req.EndsAt); err != nil {
		errors["endsAt"] = err.Error()
	}
	if !startsAt.IsZero() && !endsAt.IsZero() && !startsAt.Before(endsAt) {
		errors["endsAt"] = "endsAt must be after startsAt"
	}

	if req.BuybackType == model.BuybackTypeSingleStock {
		price, err := money.FromDecimalString(req.StartingPricePerShare)
		if err != nil {
			errors["startingPricePerShare"] = err.Error()
		} else if price <= 0 {
			errors["startingPricePerShare"] = "startingPricePerShare must be positive"
		}
	}

	// optionals

	if req.MinimumValuation != "" {
		valuation, err := money.FromDecimalString(req.MinimumValuation)
		if err != nil {
			errors["minimumValuation"] = err.Error()
		} else if valuation <= 0 {
			errors["minimumValuation"] = "minimumValuation must be positive"
		}
	}

	if len(errors) > 0 {
		return &Error{Fields: errors}
	}

	return nil
}

// ValidateSubmitBid validates a bid submission request.
//
// Required fields:
//   - investorId: Must be a valid UUID
//   - shareClass: Must be non-empty
//   - numberOfShares: Must be positive
//   - sharePrice: Must be a positive decimal amount
//
// Returns a validation Error with field-specific error messages if validation fails.
func ValidateSubmitBid(req request.SubmitBidRequest) error {
	errors := make(map[string]string)

	if err := ValidateUUID(req.InvestorID); err != nil {
		return err
	}

	if strings.TrimSpace(req.ShareClass) == "" {
		errors["shareClass"] = "shareClass is required"
	}

	if req.NumberOfShares <= 0 {
		errors["numberOfShares"] = "numberOfShares must be positive"
	}

	price, err := money.FromDecimalString(req.SharePrice)
	if err != nil {
		errors["sharePrice"] = err.Error()
	} else if price <= 0 {
		errors["sharePrice"] = "sharePrice must be positive"
	}

	if len(errors) > 0 {
		return &Error{Fields: errors}
	}

	return nil
}
