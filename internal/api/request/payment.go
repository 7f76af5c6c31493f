package request

// CreatePaymentRequest represents the request body for settling one payable.
// bankDetails are fingerprinted for the audit trail and never stored raw.
type CreatePaymentRequest struct {
	CompanyID    string `json:"companyId"`
	ActingUserID string `json:"actingUserId"`
	TargetKind   string `json:"targetKind"`
	PayableID    string `json:"payableId"`
	NetAmount    string `json:"netAmount"`
	TransferFee  string `json:"transferFee"`
	Currency     string `json:"currency"`
	RecipientID  string `json:"recipientId"`
	BankDetails  string `json:"bankDetails"`
}
