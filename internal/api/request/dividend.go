package request

// CreateComputationRequest represents the request body for starting a dividend
// computation. All fields are required; amounts are decimal strings ("2500000.00").
type CreateComputationRequest struct {
	CompanyID       string `json:"companyId"`
	ActingUserID    string `json:"actingUserId"`
	TotalAmount     string `json:"totalAmount"`
	IssuanceDate    string `json:"issuanceDate"`
	ReturnOfCapital bool   `json:"returnOfCapital,omitempty"`
}
