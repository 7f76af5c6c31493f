package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/openequity/Settlement-Backend/internal/api/request"
	"github.com/openequity/Settlement-Backend/internal/api/response"
	"github.com/openequity/Settlement-Backend/internal/apperrors"
	"github.com/openequity/Settlement-Backend/internal/clearing"
	"github.com/openequity/Settlement-Backend/internal/model"
	"github.com/openequity/Settlement-Backend/internal/money"
	"github.com/openequity/Settlement-Backend/internal/service"
	"github.com/openequity/Settlement-Backend/internal/validation"
)

// TenderHandler handles HTTP requests for tender offer endpoints.
type TenderHandler struct {
	tenderService *service.TenderService
}

// NewTenderHandler creates a new TenderHandler with the provided service dependency.
func NewTenderHandler(tenderService *service.TenderService) *TenderHandler {
	return &TenderHandler{
		tenderService: tenderService,
	}
}

// OfferResponse represents a tender offer in response bodies.
type OfferResponse struct {
	ID                    string        `json:"id"`
	CompanyID             string        `json:"companyId"`
	BuybackType           string        `json:"buybackType"`
	StartsAt              string        `json:"startsAt"`
	EndsAt                string        `json:"endsAt"`
	TotalAmount           string        `json:"totalAmount"`
	MinimumValuation      string        `json:"minimumValuation,omitempty"`
	StartingPricePerShare string        `json:"startingPricePerShare,omitempty"`
	AcceptedPrice         string        `json:"acceptedPrice,omitempty"`
	ClearedAt             string        `json:"clearedAt,omitempty"`
	Bids                  []BidResponse `json:"bids,omitempty"`
}

// BidResponse represents a bid in response bodies.
type BidResponse struct {
	ID             string `json:"id"`
	TenderOfferID  string `json:"tenderOfferId"`
	InvestorID     string `json:"investorId"`
	ShareClass     string `json:"shareClass"`
	NumberOfShares int64  `json:"numberOfShares"`
	SharePrice     string `json:"sharePrice"`
	AcceptedShares int64  `json:"acceptedShares"`
}

// ClearingResponse represents a clearing outcome. NoEquilibrium true with an
// empty clearingPrice means no price satisfied the minimum valuation.
type ClearingResponse struct {
	ClearingPrice string               `json:"clearingPrice,omitempty"`
	NoEquilibrium bool                 `json:"noEquilibrium"`
	TotalSpend    string               `json:"totalSpend"`
	Allocations   []AllocationResponse `json:"allocations"`
}

// AllocationResponse represents one bid's clearing allocation.
type AllocationResponse struct {
	BidID           string `json:"bidId"`
	InvestorID      string `json:"investorId"`
	RequestedShares int64  `json:"requestedShares"`
	AcceptedShares  int64  `json:"acceptedShares"`
	AcceptedAmount  string `json:"acceptedAmount"`
}

func toOfferResponse(o model.TenderOffer, bids []model.TenderOfferBid) OfferResponse {
	resp := OfferResponse{
		ID:          o.ID,
		CompanyID:   o.CompanyID,
		BuybackType: o.BuybackType,
		StartsAt:    o.StartsAt.Format(time.RFC3339),
		EndsAt:      o.EndsAt.Format(time.RFC3339),
		TotalAmount: fmtAmount(o.TotalAmount),
	}
	if o.MinimumValuation > 0 {
		resp.MinimumValuation = fmtAmount(o.MinimumValuation)
	}
	if o.StartingPricePerShareCents > 0 {
		resp.StartingPricePerShare = fmtAmount(o.StartingPricePerShareCents)
	}
	if o.AcceptedPriceCents > 0 {
		resp.AcceptedPrice = fmtAmount(o.AcceptedPriceCents)
	}
	if o.Cleared() {
		resp.ClearedAt = o.ClearedAt.Format(time.RFC3339)
	}
	for _, b := range bids {
		resp.Bids = append(resp.Bids, toBidResponse(b))
	}
	return resp
}

func toBidResponse(b model.TenderOfferBid) BidResponse {
	return BidResponse{
		ID:             b.ID,
		TenderOfferID:  b.TenderOfferID,
		InvestorID:     b.InvestorID,
		ShareClass:     b.ShareClass,
		NumberOfShares: b.NumberOfShares,
		SharePrice:     fmtAmount(b.SharePriceCents),
		AcceptedShares: b.AcceptedShares,
	}
}

func toClearingResponse(res clearing.Result) ClearingResponse {
	resp := ClearingResponse{
		NoEquilibrium: res.NoEquilibrium,
		TotalSpend:    fmtAmount(res.TotalSpend),
		Allocations:   make([]AllocationResponse, 0, len(res.Allocations)),
	}
	if !res.NoEquilibrium {
		resp.ClearingPrice = fmtAmount(res.ClearingPrice)
	}
	for _, a := range res.Allocations {
		resp.Allocations = append(resp.Allocations, AllocationResponse{
			BidID:           a.BidID,
			InvestorID:      a.InvestorID,
			RequestedShares: a.RequestedShares,
			AcceptedShares:  a.AcceptedShares,
			AcceptedAmount:  fmtAmount(a.AcceptedAmount),
		})
	}
	return resp
}

// CreateOffer handles POST requests to open a tender offer.
//
// Endpoint: POST /api/tender
// Request Body: CreateOfferRequest (companyId, buybackType, totalAmount, startsAt, endsAt, and conditionally startingPricePerShare, minimumValuation)
// Response: 201 Created with OfferResponse
// Error: 400 Bad Request if validation fails
// Error: 500 Internal Server Error if creation fails
func (h *TenderHandler) CreateOffer(w http.ResponseWriter, r *http.Request) {
	req, err := parseJSON[request.CreateOfferRequest](r)
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	if err := validation.ValidateCreateOffer(req); err != nil {
		response.RespondError(w, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	offer, err := offerFromRequest(req)
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	created, err := h.tenderService.CreateOffer(offer)
	if err != nil {
		response.RespondError(w, http.StatusInternalServerError, "failed to create offer", err.Error())
		return
	}

	response.RespondJSON(w, http.StatusCreated, toOfferResponse(created, nil))
}

func offerFromRequest(req request.CreateOfferRequest) (model.TenderOffer, error) {
	offer := model.TenderOffer{
		CompanyID:   req.CompanyID,
		BuybackType: req.BuybackType,
	}
	var err error
	// Absent for uncapped tender_offer auctions.
	if req.TotalAmount != "" {
		if offer.TotalAmount, err = money.FromDecimalString(req.TotalAmount); err != nil {
			return model.TenderOffer{}, err
		}
	}
	if offer.StartsAt, err = time.Parse(time.RFC3339, req.StartsAt); err != nil {
		return model.TenderOffer{}, err
	}
	if offer.EndsAt, err = time.Parse(time.RFC3339, req.EndsAt); err != nil {
		return model.TenderOffer{}, err
	}
	if req.StartingPricePerShare != "" {
		if offer.StartingPricePerShareCents, err = money.FromDecimalString(req.StartingPricePerShare); err != nil {
			return model.TenderOffer{}, err
		}
	}
	if req.MinimumValuation != "" {
		if offer.MinimumValuation, err = money.FromDecimalString(req.MinimumValuation); err != nil {
			return model.TenderOffer{}, err
		}
	}
	return offer, nil
}

// GetOffer handles GET requests to retrieve one offer with its bids.
//
// Endpoint: GET /api/tender/{uuid}
// Response: 200 OK with OfferResponse
// Error: 400 Bad Request if offer ID is invalid (validated by middleware)
// Error: 404 Not Found if the offer does not exist
// Error: 500 Internal Server Error if retrieval fails
func (h *TenderHandler) GetOffer(w http.ResponseWriter, r *http.Request) {
	offerID := chi.URLParam(r, "uuid")

	offer, bids, err := h.tenderService.GetOffer(offerID)
	if err != nil {
		if errors.Is(err, apperrors.ErrTenderOfferNotFound) {
			response.RespondError(w, http.StatusNotFound, apperrors.ErrTenderOfferNotFound.Error(), err.Error())
			return
		}
		response.RespondError(w, http.StatusInternalServerError, apperrors.ErrFailedToRetrieveOffers.Error(), err.Error())
		return
	}

	response.RespondJSON(w, http.StatusOK, toOfferResponse(offer, bids))
}

// SubmitBid handles POST requests to place a bid on an open offer.
//
// Endpoint: POST /api/tender/{uuid}/bid
// Request Body: SubmitBidRequest (investorId, shareClass, numberOfShares, sharePrice)
// Response: 201 Created with BidResponse
// Error: 400 Bad Request if validation fails, the price mismatches a single_stock offer, holdings are insufficient, or the budget is exhausted
// Error: 404 Not Found if the offer does not exist
// Error: 409 Conflict if the offer is closed or already cleared
// Error: 500 Internal Server Error if creation fails
func (h *TenderHandler) SubmitBid(w http.ResponseWriter, r *http.Request) {
	offerID := chi.URLParam(r, "uuid")

	req, err := parseJSON[request.SubmitBidRequest](r)
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	if err := validation.ValidateSubmitBid(req); err != nil {
		response.RespondError(w, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	sharePrice, err := money.FromDecimalString(req.SharePrice)
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	bid, err := h.tenderService.SubmitBid(offerID, req.InvestorID, req.ShareClass, req.NumberOfShares, sharePrice)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrTenderOfferNotFound):
			response.RespondError(w, http.StatusNotFound, apperrors.ErrTenderOfferNotFound.Error(), err.Error())
		case errors.Is(err, apperrors.ErrOfferClosed), errors.Is(err, apperrors.ErrOfferCleared):
			response.RespondError(w, http.StatusConflict, err.Error(), "")
		case errors.Is(err, apperrors.ErrBidPriceMismatch),
			errors.Is(err, apperrors.ErrBidExceedsBudget),
			errors.Is(err, apperrors.ErrInsufficientShares),
			errors.Is(err, apperrors.ErrShareClassNotFound),
			errors.Is(err, apperrors.ErrNonPositiveAmount):
			response.RespondError(w, http.StatusBadRequest, err.Error(), "")
		default:
			response.RespondError(w, http.StatusInternalServerError, "failed to submit bid", err.Error())
		}
		return
	}

	response.RespondJSON(w, http.StatusCreated, toBidResponse(bid))
}

// WithdrawBid handles DELETE requests to withdraw a bid from an open offer.
// Withdrawal is allowed any time before the offer closes and never after
// clearing has run.
//
// Endpoint: DELETE /api/tender/{uuid}/bid/{bidUuid}
// Response: 204 No Content
// Error: 404 Not Found if the bid does not exist
// Error: 409 Conflict if the offer is closed or already cleared
// Error: 500 Internal Server Error if deletion fails
func (h *TenderHandler) WithdrawBid(w http.ResponseWriter, r *http.Request) {
	bidID := chi.URLParam(r, "bidUuid")

	if err := validation.ValidateUUID(bidID); err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid UUID format", err.Error())
		return
	}

	if err := h.tenderService.WithdrawBid(bidID); err != nil {
		switch {
		case errors.Is(err, apperrors.ErrBidNotFound):
			response.RespondError(w, http.StatusNotFound, apperrors.ErrBidNotFound.Error(), err.Error())
		case errors.Is(err, apperrors.ErrOfferClosed), errors.Is(err, apperrors.ErrOfferCleared):
			response.RespondError(w, http.StatusConflict, err.Error(), "")
		default:
			response.RespondError(w, http.StatusInternalServerError, "failed to withdraw bid", err.Error())
		}
		return
	}

	response.RespondJSON(w, http.StatusNoContent, nil)
}

// ClearOffer handles POST requests to run the clearing computation for an offer.
// Clearing runs exactly once; the accepted price is immutable afterwards.
//
// Endpoint: POST /api/tender/{uuid}/clear
// Response: 200 OK with ClearingResponse
// Error: 404 Not Found if the offer does not exist
// Error: 409 Conflict if clearing has already run
// Error: 422 Unprocessable Entity if the offer has no bids
// Error: 500 Internal Server Error if clearing fails
func (h *TenderHandler) ClearOffer(w http.ResponseWriter, r *http.Request) {
	offerID := chi.URLParam(r, "uuid")

	result, err := h.tenderService.ComputeClearing(offerID)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrTenderOfferNotFound):
			response.RespondError(w, http.StatusNotFound, apperrors.ErrTenderOfferNotFound.Error(), err.Error())
		case errors.Is(err, apperrors.ErrOfferCleared):
			response.RespondError(w, http.StatusConflict, apperrors.ErrOfferCleared.Error(), "")
		case errors.Is(err, clearing.ErrNoBids):
			response.RespondError(w, http.StatusUnprocessableEntity, clearing.ErrNoBids.Error(), "")
		default:
			response.RespondError(w, http.StatusInternalServerError, "failed to clear offer", err.Error())
		}
		return
	}

	response.RespondJSON(w, http.StatusOK, toClearingResponse(result))
}
