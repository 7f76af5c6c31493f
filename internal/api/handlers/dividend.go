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

// DividendHandler handles HTTP requests for dividend computation endpoints.
// It serves as the HTTP layer adapter, parsing requests and delegating
// business logic to the dividendService.
type DividendHandler struct {
	dividendService *service.DividendService
}

// NewDividendHandler creates a new DividendHandler with the provided service dependency.
func NewDividendHandler(dividendService *service.DividendService) *DividendHandler {
	return &DividendHandler{
		dividendService: dividendService,
	}
}

// ComputationResponse represents a dividend computation in response bodies.
// Amounts are two-decimal dollar strings.
type ComputationResponse struct {
	ID              string                `json:"id"`
	CompanyID       string                `json:"companyId"`
	TotalAmount     string                `json:"totalAmount"`
	IssuanceDate    string                `json:"issuanceDate"`
	ReturnOfCapital bool                  `json:"returnOfCapital"`
	Status          string                `json:"status"`
	CreatedBy       string                `json:"createdBy"`
	CreatedAt       string                `json:"createdAt"`
	FinalizedAt     string                `json:"finalizedAt,omitempty"`
	Outputs         []ComputationOutputID `json:"outputs,omitempty"`
}

// ComputationOutputID represents one investor's allocation row in response bodies.
type ComputationOutputID struct {
	ID                      string `json:"id"`
	InvestorID              string `json:"investorId"`
	SourceKind              string `json:"sourceKind"`
	ShareClassName          string `json:"shareClassName"`
	NumberOfShares          int64  `json:"numberOfShares"`
	PreferredDividendAmount string `json:"preferredDividendAmount"`
	DividendAmount          string `json:"dividendAmount"`
	QualifiedDividendAmount string `json:"qualifiedDividendAmount"`
}

func toComputationResponse(c model.DividendComputation, outputs []model.DividendComputationOutput) ComputationResponse {
	resp := ComputationResponse{
		ID:              c.ID,
		CompanyID:       c.CompanyID,
		TotalAmount:     fmtAmount(c.TotalAmount),
		IssuanceDate:    c.IssuanceDate.Format(time.RFC3339),
		ReturnOfCapital: c.ReturnOfCapital,
		Status:          c.Status,
		CreatedBy:       c.CreatedBy,
		CreatedAt:       c.CreatedAt.Format(time.RFC3339),
	}
	if !c.FinalizedAt.IsZero() {
		resp.FinalizedAt = c.FinalizedAt.Format(time.RFC3339)
	}
	for _, out := range outputs {
		resp.Outputs = append(resp.Outputs, ComputationOutputID{
			ID:                      out.ID,
			InvestorID:              out.InvestorID,
			SourceKind:              out.SourceKind,
			ShareClassName:          out.ShareClassName,
			NumberOfShares:          out.NumberOfShares,
			PreferredDividendAmount: fmtAmount(out.PreferredDividendAmount),
			DividendAmount:          fmtAmount(out.DividendAmount),
			QualifiedDividendAmount: fmtAmount(out.QualifiedDividendAmount),
		})
	}
	return resp
}

// CreateComputation handles POST requests to start a dividend computation.
// Runs the waterfall as a draft preview; no money moves until finalization.
//
// Endpoint: POST /api/dividend/computation
// Request Body: CreateComputationRequest (companyId, actingUserId, totalAmount, issuanceDate, and optionally returnOfCapital)
// Response: 201 Created with ComputationResponse including preview outputs
// Error: 400 Bad Request if validation fails, the amount is not positive, or the issuance date is under ten days out
// Error: 500 Internal Server Error if the computation fails
func (h *DividendHandler) CreateComputation(w http.ResponseWriter, r *http.Request) {
	req, err := parseJSON[request.CreateComputationRequest](r)
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	if err := validation.ValidateCreateComputation(req); err != nil {
		response.RespondError(w, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	totalAmount, err := money.FromDecimalString(req.TotalAmount)
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "validation failed", err.Error())
		return
	}
	issuanceDate, err := time.Parse(time.RFC3339, req.IssuanceDate)
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	computation, outputs, err := h.dividendService.StartComputation(req.CompanyID, req.ActingUserID, totalAmount, issuanceDate, req.ReturnOfCapital)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrIssuanceDateTooSoon), errors.Is(err, apperrors.ErrNonPositiveAmount):
			response.RespondError(w, http.StatusBadRequest, err.Error(), "")
		case errors.Is(err, apperrors.ErrCompanyNotFound):
			response.RespondError(w, http.StatusNotFound, apperrors.ErrCompanyNotFound.Error(), err.Error())
		default:
			response.RespondError(w, http.StatusInternalServerError, "failed to start computation", err.Error())
		}
		return
	}

	response.RespondJSON(w, http.StatusCreated, toComputationResponse(computation, outputs))
}

// FinalizeComputation handles POST requests to finalize a draft computation.
// Re-runs the waterfall against the current cap table and commits the outputs
// atomically; a finalized computation is immutable.
//
// Endpoint: POST /api/dividend/computation/{uuid}/finalize
// Response: 200 OK with ComputationResponse
// Error: 404 Not Found if the computation does not exist
// Error: 409 Conflict if already finalized or a finalization is in flight
// Error: 500 Internal Server Error if finalization fails
func (h *DividendHandler) FinalizeComputation(w http.ResponseWriter, r *http.Request) {
	computationID := chi.URLParam(r, "uuid")

	computation, err := h.dividendService.FinalizeComputation(computationID)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrComputationNotFound):
			response.RespondError(w, http.StatusNotFound, apperrors.ErrComputationNotFound.Error(), err.Error())
		case errors.Is(err, apperrors.ErrComputationFinalized), errors.Is(err, apperrors.ErrComputationInFlight):
			response.RespondError(w, http.StatusConflict, err.Error(), "")
		default:
			response.RespondError(w, http.StatusInternalServerError, "failed to finalize computation", err.Error())
		}
		return
	}

	response.RespondJSON(w, http.StatusOK, toComputationResponse(computation, nil))
}

// GetComputation handles GET requests to retrieve one computation with its outputs.
//
// Endpoint: GET /api/dividend/computation/{uuid}
// Response: 200 OK with ComputationResponse
// Error: 400 Bad Request if computation ID is invalid (validated by middleware)
// Error: 404 Not Found if the computation does not exist
// Error: 500 Internal Server Error if retrieval fails
func (h *DividendHandler) GetComputation(w http.ResponseWriter, r *http.Request) {
	computationID := chi.URLParam(r, "uuid")

	computation, outputs, err := h.dividendService.GetComputation(computationID)
	if err != nil {
		if errors.Is(err, apperrors.ErrComputationNotFound) {
			response.RespondError(w, http.StatusNotFound, apperrors.ErrComputationNotFound.Error(), err.Error())
			return
		}
		response.RespondError(w, http.StatusInternalServerError, apperrors.ErrFailedToRetrieveComputations.Error(), err.Error())
		return
	}

	response.RespondJSON(w, http.StatusOK, toComputationResponse(computation, outputs))
}

// ComputationsPerCompany handles GET requests to retrieve all computations for a company.
//
// Endpoint: GET /api/dividend/company/{uuid}
// Response: 200 OK with array of ComputationResponse (without outputs)
// Error: 400 Bad Request if company ID is invalid (validated by middleware)
// Error: 500 Internal Server Error if retrieval fails
func (h *DividendHandler) ComputationsPerCompany(w http.ResponseWriter, r *http.Request) {
	companyID := chi.URLParam(r, "uuid")

	computations, err := h.dividendService.GetComputationsForCompany(companyID)
	if err != nil {
		response.RespondError(w, http.StatusInternalServerError, apperrors.ErrFailedToRetrieveComputations.Error(), err.Error())
		return
	}

	resp := make([]ComputationResponse, 0, len(computations))
	for _, c := range computations {
		resp = append(resp, toComputationResponse(c, nil))
	}
	response.RespondJSON(w, http.StatusOK, resp)
}
