package validation

import (
	"strings"

	"github.com/openequity/Settlement-Backend/internal/api/request"
	"github.com/openequity/Settlement-Backend/internal/model"
	"github.com/openequity/Settlement-Backend/internal/money"
)

// ValidateCreatePayment validates a payment creation request.
//
// Required fields:
//   - companyId: Must be a valid UUID
//   - actingUserId: Must be a valid UUID
//   - targetKind: Must be "invoice", "buyback" or "dividend"
//   - payableId: Must be a valid UUID
//   - netAmount: Must be a positive decimal amount
//   - transferFee: Must be a non-negative decimal amount
//   - currency, recipientId, bankDetails: Must be non-empty
//
// Returns a validation Error with field-specific error messages if validation fails.
//
//nolint:gocyclo // Comprehensive validation of payment creation, cannot be split well.
func ValidateCreatePayment(req request.CreatePaymentRequest) error {
	errors := make(map[string]string)

	if err := ValidateUUID(req.CompanyID); err != nil {
		return err
	}
	if err := ValidateUUID(req.ActingUserID); err != nil {
		return err
	}
	if err := ValidateUUID(req.PayableID); err != nil {
		return err
	}

	switch req.TargetKind {
	case model.TargetInvoicePayment, model.TargetBuybackPayment, model.TargetDividendPayment:
	default:
		errors["targetKind"] = "targetKind must be invoice, buyback or dividend"
	}

	net, err := money.FromDecimalString(req.NetAmount)
	if err != nil {
		errors["netAmount"] = err.Error()
	} else if net <= 0 {
		errors["netAmount"] = "netAmount must be positive"
	}

	fee, err := money.FromDecimalString(req.TransferFee)
	if err != nil {
		errors["transferFee"] = err.Error()
	} else if fee < 0 {
		errors["transferFee"] = "transferFee must not be negative"
	}

	if strings.TrimSpace(req.Currency) == "" {
		errors["currency"] = "currency is required"
	}
	if strings.TrimSpace(req.RecipientID) == "" {
		errors["recipientId"] = "recipientId is required"
	}
	if strings.TrimSpace(req.BankDetails) == "" {
		errors["bankDetails"] = "bankDetails is required"
	}

	if len(errors) > 0 {
		return &Error{Fields: errors}
	}

	return nil
}
