package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/openequity/Settlement-Backend/internal/api/response"
	"github.com/openequity/Settlement-Backend/internal/model"
	"github.com/openequity/Settlement-Backend/internal/service"
)

// CapTableHandler serves read-only capitalization snapshots. The engine never
// writes to the cap table; this surface exists so operators can inspect the
// inputs a distribution or clearing run will see.
type CapTableHandler struct {
	capTableService *service.CapTableService
}

// NewCapTableHandler creates a new CapTableHandler with the provided service dependency.
func NewCapTableHandler(capTableService *service.CapTableService) *CapTableHandler {
	return &CapTableHandler{capTableService: capTableService}
}

// SnapshotResponse represents a company's capitalization in response bodies.
type SnapshotResponse struct {
	CompanyID         string            `json:"companyId"`
	OutstandingShares int64             `json:"outstandingShares"`
	Classes           []ShareClassView  `json:"classes"`
	Holdings          []HoldingView     `json:"holdings"`
	Convertibles      []ConvertibleView `json:"convertibles,omitempty"`
}

// ShareClassView represents a share class and its distribution terms.
type ShareClassView struct {
	ID                       string `json:"id"`
	Name                     string `json:"name"`
	LiquidationPreferenceBps int64  `json:"liquidationPreferenceBps"`
	Participating            bool   `json:"participating"`
	ParticipationCapBps      int64  `json:"participationCapBps"`
	SeniorityRank            int    `json:"seniorityRank"`
	OriginalIssuePrice       string `json:"originalIssuePrice"`
}

// HoldingView represents one investor position.
type HoldingView struct {
	ID             string `json:"id"`
	InvestorID     string `json:"investorId"`
	ShareClassID   string `json:"shareClassId"`
	NumberOfShares int64  `json:"numberOfShares"`
	HurdleRate     string `json:"hurdleRate,omitempty"`
}

// ConvertibleView represents one convertible security. ValuationCap and
// DiscountRateBps are the conversion terms the recorded impliedShares was
// derived from; distributions consume the share count, not the terms.
type ConvertibleView struct {
	ID              string `json:"id"`
	InvestorID      string `json:"investorId"`
	PrincipalValue  string `json:"principalValue"`
	ImpliedShares   int64  `json:"impliedShares"`
	InterestRateBps int64  `json:"interestRateBps"`
	ValuationCap    string `json:"valuationCap,omitempty"`
	DiscountRateBps int64  `json:"discountRateBps,omitempty"`
	SeniorityRank   int    `json:"seniorityRank"`
}

func toSnapshotResponse(s *model.CapTableSnapshot, outstanding int64) SnapshotResponse {
	resp := SnapshotResponse{
		CompanyID:         s.CompanyID,
		OutstandingShares: outstanding,
		Classes:           []ShareClassView{},
		Holdings:          []HoldingView{},
	}
	for _, c := range s.Classes {
		resp.Classes = append(resp.Classes, ShareClassView{
			ID:                       c.ID,
			Name:                     c.Name,
			LiquidationPreferenceBps: c.LiquidationPreferenceBps,
			Participating:            c.Participating,
			ParticipationCapBps:      c.ParticipationCapBps,
			SeniorityRank:            c.SeniorityRank,
			OriginalIssuePrice:       fmtAmount(c.OriginalIssuePriceCents),
		})
	}
	for _, h := range s.Holdings {
		view := HoldingView{
			ID:             h.ID,
			InvestorID:     h.InvestorID,
			ShareClassID:   h.ShareClassID,
			NumberOfShares: h.NumberOfShares,
		}
		if h.HurdleRateCents.IsPositive() {
			view.HurdleRate = fmtAmount(h.HurdleRateCents)
		}
		resp.Holdings = append(resp.Holdings, view)
	}
	for _, c := range s.Convertibles {
		view := ConvertibleView{
			ID:              c.ID,
			InvestorID:      c.InvestorID,
			PrincipalValue:  fmtAmount(c.PrincipalValue),
			ImpliedShares:   c.ImpliedShares,
			InterestRateBps: c.InterestRateBps,
			DiscountRateBps: c.DiscountRateBps,
			SeniorityRank:   c.SeniorityRank,
		}
		if c.ValuationCapCents.IsPositive() {
			view.ValuationCap = fmtAmount(c.ValuationCapCents)
		}
		resp.Convertibles = append(resp.Convertibles, view)
	}
	return resp
}

// GetSnapshot handles GET requests for a company's capitalization snapshot.
//
// Endpoint: GET /api/captable/{uuid}
// Response: 200 OK with SnapshotResponse
// Error: 500 Internal Server Error if the snapshot cannot be assembled
func (h *CapTableHandler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	companyID := chi.URLParam(r, "uuid")

	snapshot, err := h.capTableService.GetSnapshot(companyID)
	if err != nil {
		response.RespondError(w, http.StatusInternalServerError, "failed to retrieve cap table snapshot", err.Error())
		return
	}
	outstanding, err := h.capTableService.TotalOutstandingShares(companyID)
	if err != nil {
		response.RespondError(w, http.StatusInternalServerError, "failed to retrieve cap table snapshot", err.Error())
		return
	}

	response.RespondJSON(w, http.StatusOK, toSnapshotResponse(snapshot, outstanding))
}
