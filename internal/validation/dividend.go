package validation

import (
	"strings"
	"time"

	"github.com/openequity/Settlement-Backend/internal/api/request"
	"github.com/openequity/Settlement-Backend/internal/money"
)

// ValidateCreateComputation validates a dividend computation request.
// Checks all required fields and validates their formats and constraints.
//
// Required fields:
//   - companyId: Must be a valid UUID
//   - actingUserId: Must be a valid UUID
//   - totalAmount: Must be a positive decimal amount
//   - issuanceDate: Must be in RFC3339 format
//
// The ten-day issuance lead time is a business rule, enforced by the
// service, not here.
//
// Returns a validation Error with field-specific error messages if validation fails.
func ValidateCreateComputation(req request.CreateComputationRequest) error {
	errors := make(map[string]string)

	if err := ValidateUUID(req.CompanyID); err != nil {
		return err
	}
	if err := ValidateUUID(req.ActingUserID); err != nil {
		return err
	}

	amount, err := money.FromDecimalString(req.TotalAmount)
	if err != nil {
		errors["totalAmount"] = err.Error()
	} else if amount <= 0 {
		errors["totalAmount"] = "totalAmount must be positive"
	}

	if strings.TrimSpace(req.IssuanceDate) == "" {
		errors["issuanceDate"] = "date is required"
	} else if _, err := time.Parse(time.RFC3339, req.IssuanceDate); err != nil {
		errors["issuanceDate"] = err.Error()
	}

	if len(errors) > 0 {
		return &Error{Fields: errors}
	}

	return nil
}
