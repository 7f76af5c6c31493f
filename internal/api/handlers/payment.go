package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/openequity/Settlement-Backend/internal/api/request"
	"github.com/openequity/Settlement-Backend/internal/api/response"
	"github.com/openequity/Settlement-Backend/internal/apperrors"
	"github.com/openequity/Settlement-Backend/internal/model"
	"github.com/openequity/Settlement-Backend/internal/money"
	"github.com/openequity/Settlement-Backend/internal/service"
	"github.com/openequity/Settlement-Backend/internal/validation"
)

// PaymentHandler handles HTTP requests for payment endpoints.
type PaymentHandler struct {
	settlementService *service.SettlementService
}

// NewPaymentHandler creates a new PaymentHandler with the provided service dependency.
func NewPaymentHandler(settlementService *service.SettlementService) *PaymentHandler {
	return &PaymentHandler{
		settlementService: settlementService,
	}
}

// PaymentResponse represents a payment in response bodies. Bank details are
// never echoed back; only the audit trail carries their fingerprint.
type PaymentResponse struct {
	ID                 string `json:"id"`
	CompanyID          string `json:"companyId"`
	TargetKind         string `json:"targetKind"`
	PayableID          string `json:"payableId"`
	NetAmount          string `json:"netAmount"`
	TransferFee        string `json:"transferFee"`
	Currency           string `json:"currency"`
	Status             string `json:"status"`
	ProviderTransferID string `json:"providerTransferId"`
	Reference          string `json:"reference"`
	ReconcileAttempts  int    `json:"reconcileAttempts"`
	FlaggedForReview   bool   `json:"flaggedForReview"`
	CreatedAt          string `json:"createdAt"`
	ResolvedAt         string `json:"resolvedAt,omitempty"`
}

func toPaymentResponse(p model.Payment) PaymentResponse {
	resp := PaymentResponse{
		ID:                 p.ID,
		CompanyID:          p.CompanyID,
		TargetKind:         p.Target.Kind,
		PayableID:          p.Target.PayableID,
		NetAmount:          fmtAmount(p.NetAmount),
		TransferFee:        fmtAmount(p.TransferFee),
		Currency:           p.Currency,
		Status:             p.Status,
		ProviderTransferID: p.ProviderTransferID,
		Reference:          p.Reference,
		ReconcileAttempts:  p.ReconcileAttempts,
		FlaggedForReview:   p.FlaggedForReview,
		CreatedAt:          p.CreatedAt.Format(time.RFC3339),
	}
	if !p.ResolvedAt.IsZero() {
		resp.ResolvedAt = p.ResolvedAt.Format(time.RFC3339)
	}
	return resp
}

// CreatePayment handles POST requests to settle one payable.
// Requests a transfer from the provider and records the payment in INITIAL;
// the webhook or the reconciliation sweep resolves it later.
//
// Endpoint: POST /api/payment
// Request Body: CreatePaymentRequest (companyId, actingUserId, targetKind, payableId, netAmount, transferFee, currency, recipientId, bankDetails)
// Response: 201 Created with PaymentResponse
// Error: 400 Bad Request if validation fails
// Error: 409 Conflict if a payment for the payable is already in flight
// Error: 502 Bad Gateway if the provider rejects the transfer
// Error: 500 Internal Server Error if creation fails
func (h *PaymentHandler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	req, err := parseJSON[request.CreatePaymentRequest](r)
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	if err := validation.ValidateCreatePayment(req); err != nil {
		response.RespondError(w, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	netAmount, err := money.FromDecimalString(req.NetAmount)
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "validation failed", err.Error())
		return
	}
	transferFee, err := money.FromDecimalString(req.TransferFee)
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	payment, err := h.settlementService.CreatePayment(r.Context(), service.CreatePaymentRequest{
		CompanyID:    req.CompanyID,
		ActingUserID: req.ActingUserID,
		Target:       model.SettlementTarget{Kind: req.TargetKind, PayableID: req.PayableID},
		NetAmount:    netAmount,
		TransferFee:  transferFee,
		Currency:     req.Currency,
		RecipientID:  req.RecipientID,
		BankDetails:  req.BankDetails,
	})
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrNonPositiveAmount):
			response.RespondError(w, http.StatusBadRequest, err.Error(), "")
		case errors.Is(err, apperrors.ErrPayableInFlight):
			response.RespondError(w, http.StatusConflict, apperrors.ErrPayableInFlight.Error(), "")
		case errors.Is(err, apperrors.ErrFailedToCreateTransfer):
			response.RespondError(w, http.StatusBadGateway, apperrors.ErrFailedToCreateTransfer.Error(), "")
		default:
			response.RespondError(w, http.StatusInternalServerError, "failed to create payment", err.Error())
		}
		return
	}

	response.RespondJSON(w, http.StatusCreated, toPaymentResponse(payment))
}

// GetPayment handles GET requests to retrieve one payment.
//
// Endpoint: GET /api/payment/{uuid}
// Response: 200 OK with PaymentResponse
// Error: 400 Bad Request if payment ID is invalid (validated by middleware)
// Error: 404 Not Found if the payment does not exist
// Error: 500 Internal Server Error if retrieval fails
func (h *PaymentHandler) GetPayment(w http.ResponseWriter, r *http.Request) {
	paymentID := chi.URLParam(r, "uuid")

	payment, err := h.settlementService.GetPayment(paymentID)
	if err != nil {
		if errors.Is(err, apperrors.ErrPaymentNotFound) {
			response.RespondError(w, http.StatusNotFound, apperrors.ErrPaymentNotFound.Error(), err.Error())
			return
		}
		response.RespondError(w, http.StatusInternalServerError, apperrors.ErrFailedToRetrievePayments.Error(), err.Error())
		return
	}

	response.RespondJSON(w, http.StatusOK, toPaymentResponse(payment))
}

// PaymentsPerCompany handles GET requests to retrieve all payments for a company.
//
// Endpoint: GET /api/payment/company/{uuid}
// Response: 200 OK with array of PaymentResponse
// Error: 400 Bad Request if company ID is invalid (validated by middleware)
// Error: 500 Internal Server Error if retrieval fails
func (h *PaymentHandler) PaymentsPerCompany(w http.ResponseWriter, r *http.Request) {
	companyID := chi.URLParam(r, "uuid")

	payments, err := h.settlementService.GetPaymentsForCompany(companyID)
	if err != nil {
		response.RespondError(w, http.StatusInternalServerError, apperrors.ErrFailedToRetrievePayments.Error(), err.Error())
		return
	}

	resp := make([]PaymentResponse, 0, len(payments))
	for _, p := range payments {
		resp = append(resp, toPaymentResponse(p))
	}
	response.RespondJSON(w, http.StatusOK, resp)
}
