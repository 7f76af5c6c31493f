package service

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/openequity/Settlement-Backend/internal/apperrors"
	"github.com/openequity/Settlement-Backend/internal/clearing"
	"github.com/openequity/Settlement-Backend/internal/model"
	"github.com/openequity/Settlement-Backend/internal/money"
	"github.com/openequity/Settlement-Backend/internal/repository"
)

// TenderService manages tender offers and their bids, and runs the clearing
// computation. The accepted price is set exactly once per offer.
type TenderService struct {
	tenderRepo   *repository.TenderRepository
	capTableRepo *repository.CapTableRepository
	notifier     Notifier

	// Now is the clock, replaceable in tests.
	Now func() time.Time
}

// NewTenderService creates a new TenderService with the provided dependencies.
func NewTenderService(
	tenderRepo *repository.TenderRepository,
	capTableRepo *repository.CapTableRepository,
	notifier Notifier,
) *TenderService {
	return &TenderService{
		tenderRepo:   tenderRepo,
		capTableRepo: capTableRepo,
		notifier:     notifier,
		Now:          time.Now,
	}
}

// CreateOffer validates and persists a tender offer.
func (s *TenderService) CreateOffer(offer model.TenderOffer) (model.TenderOffer, error) {
	if offer.BuybackType != model.BuybackTypeSingleStock && offer.BuybackType != model.BuybackTypeTenderOffer {
		return model.TenderOffer{}, clearing.ErrUnknownBuybackType
	}
	if !offer.EndsAt.After(offer.StartsAt) {
		return model.TenderOffer{}, fmt.Errorf("offer window must end after it starts")
	}
	if offer.BuybackType == model.BuybackTypeSingleStock {
		if !offer.StartingPricePerShareCents.IsPositive() {
			return model.TenderOffer{}, fmt.Errorf("single_stock offers require a fixed starting price")
		}
		if !offer.TotalAmount.IsPositive() {
			return model.TenderOffer{}, fmt.Errorf("single_stock offers require a budget cap")
		}
	}

	offer.ID = uuid.New().String()
	offer.AcceptedPriceCents = 0
	offer.ClearedAt = time.Time{}
	offer.CreatedAt = s.Now().UTC()

	if err := s.tenderRepo.CreateOffer(offer); err != nil {
		return model.TenderOffer{}, err
	}
	return offer, nil
}

// GetOffer retrieves an offer and its bids.
func (s *TenderService) GetOffer(offerID string) (model.TenderOffer, []model.TenderOfferBid, error) {
	offer, err := s.tenderRepo.GetOffer(offerID)
	if err != nil {
		return model.TenderOffer{}, nil, err
	}
	bids, err := s.tenderRepo.GetBidsForOffer(offerID)
	if err != nil {
		return model.TenderOffer{}, nil, err
	}
	return offer, bids, nil
}

// SubmitBid validates and records a bid against an open offer.
//
// Preconditions enforced here rather than in the persistence layer: the
// offer is open and uncleared; the price is positive (and equals the fixed
// starting price for single_stock); the bidder holds enough shares of the
// named class, with the vested-grant pseudo-class included; and for
// single_stock, cumulative bid value stays within the budget.
func (s *TenderService) SubmitBid(offerID, investorID, shareClass string, numberOfShares int64, sharePrice money.Money) (model.TenderOfferBid, error) {
	offer, err := s.tenderRepo.GetOffer(offerID)
	if err != nil {
		return model.TenderOfferBid{}, err
	}

	if offer.Cleared() {
		return model.TenderOfferBid{}, apperrors.ErrOfferCleared
	}
	if !offer.Open(s.Now().UTC()) {
		return model.TenderOfferBid{}, apperrors.ErrOfferClosed
	}
	if numberOfShares <= 0 {
		return model.TenderOfferBid{}, apperrors.ErrNonPositiveAmount
	}
	if !sharePrice.IsPositive() {
		return model.TenderOfferBid{}, apperrors.ErrNonPositiveAmount
	}

	if offer.BuybackType == model.BuybackTypeSingleStock && sharePrice != offer.StartingPricePerShareCents {
		return model.TenderOfferBid{}, apperrors.ErrBidPriceMismatch
	}

	if err := s.checkHoldings(offer.CompanyID, investorID, shareClass, numberOfShares); err != nil {
		return model.TenderOfferBid{}, err
	}

	if offer.BuybackType == model.BuybackTypeSingleStock {
		if err := s.checkBudget(offer, numberOfShares, sharePrice); err != nil {
			return model.TenderOfferBid{}, err
		}
	}

	bid := model.TenderOfferBid{
		ID:              uuid.New().String(),
		TenderOfferID:   offerID,
		InvestorID:      investorID,
		NumberOfShares:  numberOfShares,
		SharePriceCents: sharePrice,
		ShareClass:      shareClass,
		CreatedAt:       s.Now().UTC(),
	}
	if err := s.tenderRepo.CreateBid(bid); err != nil {
		return model.TenderOfferBid{}, err
	}
	return bid, nil
}

// WithdrawBid removes a bid. Withdrawal is allowed only while the offer is
// open and before the clearing price has been set.
func (s *TenderService) WithdrawBid(bidID string) error {
	bid, err := s.tenderRepo.GetBid(bidID)
	if err != nil {
		return err
	}
	offer, err := s.tenderRepo.GetOffer(bid.TenderOfferID)
	if err != nil {
		return err
	}

	if offer.Cleared() {
		return apperrors.ErrOfferCleared
	}
	if !offer.Open(s.Now().UTC()) {
		return apperrors.ErrOfferClosed
	}

	return s.tenderRepo.DeleteBid(bidID)
}

// ComputeClearing runs the clearing engine over the offer's bids and
// persists the outcome: the accepted price on the offer (set once,
// immutable) and accepted share counts on every bid. A no-equilibrium
// outcome closes the offer with zero accepted bids and no price.
func (s *TenderService) ComputeClearing(offerID string) (clearing.Result, error) {
	offer, err := s.tenderRepo.GetOffer(offerID)
	if err != nil {
		return clearing.Result{}, err
	}
	if offer.Cleared() {
		return clearing.Result{}, apperrors.ErrOfferCleared
	}

	bids, err := s.tenderRepo.GetBidsForOffer(offerID)
	if err != nil {
		return clearing.Result{}, err
	}

	var outstanding int64
	if offer.BuybackType == model.BuybackTypeTenderOffer && offer.MinimumValuation.IsPositive() {
		outstanding, err = s.capTableRepo.TotalOutstandingShares(offer.CompanyID)
		if err != nil {
			return clearing.Result{}, err
		}
	}

	result, err := clearing.Clear(&offer, bids, outstanding)
	if err != nil {
		return clearing.Result{}, err
	}

	clearedAt := repository.FormatTime(s.Now().UTC())
	if err := s.tenderRepo.SetAcceptedPrice(offerID, result.ClearingPrice, clearedAt); err != nil {
		return clearing.Result{}, err
	}

	for _, alloc := range result.Allocations {
		if err := s.tenderRepo.SetAcceptedShares(alloc.BidID, alloc.AcceptedShares); err != nil {
			return clearing.Result{}, err
		}
	}

	if !result.NoEquilibrium {
		offer.AcceptedPriceCents = result.ClearingPrice
		s.notifier.EquilibriumPriceSet(offer)
	}

	return result, nil
}

// checkHoldings verifies the bidder holds numberOfShares of the named class.
// The vested-grant pseudo-class tenders vested option grants, which the cap
// table tracks as a holding under that reserved class name.
func (s *TenderService) checkHoldings(companyID, investorID, shareClass string, numberOfShares int64) error {
	snapshot, err := s.capTableRepo.GetSnapshot(companyID)
	if err != nil {
		return err
	}

	if _, ok := snapshot.ClassByName(shareClass); !ok && shareClass != model.VestedGrantClass {
		return apperrors.ErrShareClassNotFound
	}

	if snapshot.SharesHeld(investorID, shareClass) < numberOfShares {
		return apperrors.ErrInsufficientShares
	}
	return nil
}

// checkBudget enforces the single_stock rule that cumulative bid value never
// exceeds the offer's total amount.
func (s *TenderService) checkBudget(offer model.TenderOffer, numberOfShares int64, sharePrice money.Money) error {
	bids, err := s.tenderRepo.GetBidsForOffer(offer.ID)
	if err != nil {
		return err
	}

	committed := sharePrice.MulRatio(numberOfShares, 1, money.RoundHalfUp)
	for _, b := range bids {
		committed = committed.Add(b.SharePriceCents.MulRatio(b.NumberOfShares, 1, money.RoundHalfUp))
	}
	if committed > offer.TotalAmount {
		return apperrors.ErrBidExceedsBudget
	}
	return nil
}
