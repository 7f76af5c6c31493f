package request

// CreateOfferRequest represents the request body for opening a tender offer.
// Amounts are decimal strings; minimumValuation and startingPricePerShare are
// meaningful only for the buyback types that use them.
type CreateOfferRequest struct {
	CompanyID             string `json:"companyId"`
	BuybackType           string `json:"buybackType"`
	TotalAmount           string `json:"totalAmount"`
	StartingPricePerShare string `json:"startingPricePerShare,omitempty"`
	MinimumValuation      string `json:"minimumValuation,omitempty"`
	StartsAt              string `json:"startsAt"`
	EndsAt                string `json:"endsAt"`
}

// SubmitBidRequest represents the request body for placing a bid on an open
// tender offer.
type SubmitBidRequest struct {
	InvestorID     string `json:"investorId"`
	ShareClass     string `json:"shareClass"`
	NumberOfShares int64  `json:"numberOfShares"`
	SharePrice     string `json:"sharePrice"`
}
