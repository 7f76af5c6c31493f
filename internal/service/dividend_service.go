package service

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/openequity/Settlement-Backend/internal/apperrors"
	"github.com/openequity/Settlement-Backend/internal/model"
	"github.com/openequity/Settlement-Backend/internal/money"
	"github.com/openequity/Settlement-Backend/internal/repository"
	"github.com/openequity/Settlement-Backend/internal/waterfall"
)

// DividendService runs dividend distribution computations in two explicit
// steps: Start creates a draft and previews the waterfall; Finalize re-runs
// it against current holdings and commits atomically. Only Finalize notifies
// investors downstream.
type DividendService struct {
	dividendRepo *repository.DividendRepository
	capTableRepo *repository.CapTableRepository
	notifier     Notifier

	// Now is the clock, replaceable in tests.
	Now func() time.Time

	// inFlight marks computations currently being processed so the same
	// computation never runs twice concurrently.
	mu       sync.Mutex
	inFlight map[string]struct{}
}

// NewDividendService creates a new DividendService with the provided dependencies.
func NewDividendService(
	dividendRepo *repository.DividendRepository,
	capTableRepo *repository.CapTableRepository,
	notifier Notifier,
) *DividendService {
	return &DividendService{
		dividendRepo: dividendRepo,
		capTableRepo: capTableRepo,
		notifier:     notifier,
		Now:          time.Now,
		inFlight:     make(map[string]struct{}),
	}
}

// StartComputation validates the request, persists a draft computation, and
// returns it together with a preview of the allocation. Nothing investor-
// visible happens until FinalizeComputation.
//
// The issuance date must be at least ten days out, giving operators a
// correction window before funds move.
func (s *DividendService) StartComputation(companyID, actingUserID string, totalAmount money.Money, issuanceDate time.Time, returnOfCapital bool) (model.DividendComputation, []model.DividendComputationOutput, error) {
	if !totalAmount.IsPositive() {
		return model.DividendComputation{}, nil, apperrors.ErrNonPositiveAmount
	}

	now := s.Now().UTC()
	if issuanceDate.Before(now.Add(model.MinIssuanceLeadTime)) {
		return model.DividendComputation{}, nil, apperrors.ErrIssuanceDateTooSoon
	}

	snapshot, err := s.capTableRepo.GetSnapshot(companyID)
	if err != nil {
		return model.DividendComputation{}, nil, fmt.Errorf("failed to load cap table for company %s: %w", companyID, err)
	}

	outputs, err := waterfall.Compute(snapshot, totalAmount, returnOfCapital)
	if err != nil {
		return model.DividendComputation{}, nil, err
	}

	computation := model.DividendComputation{
		ID:              uuid.New().String(),
		CompanyID:       companyID,
		TotalAmount:     totalAmount,
		IssuanceDate:    issuanceDate.UTC(),
		ReturnOfCapital: returnOfCapital,
		Status:          model.ComputationStatusDraft,
		CreatedBy:       actingUserID,
		CreatedAt:       now,
	}
	if err := s.dividendRepo.Create(computation); err != nil {
		return model.DividendComputation{}, nil, err
	}

	return computation, outputs, nil
}

// FinalizeComputation commits a draft computation. It re-runs the waterfall
// against the holdings as they are now, verifies the sum invariant, writes
// all output rows and the immutability marker in one transaction, and emits
// the computation-finalized event. A second finalize, or one racing this
// one, is rejected.
func (s *DividendService) FinalizeComputation(computationID string) (model.DividendComputation, error) {
	release, ok := s.markInFlight(computationID)
	if !ok {
		return model.DividendComputation{}, apperrors.ErrComputationInFlight
	}
	defer release()

	computation, err := s.dividendRepo.Get(computationID)
	if err != nil {
		return model.DividendComputation{}, err
	}
	if computation.Finalized() {
		return model.DividendComputation{}, apperrors.ErrComputationFinalized
	}

	snapshot, err := s.capTableRepo.GetSnapshot(computation.CompanyID)
	if err != nil {
		return model.DividendComputation{}, fmt.Errorf("failed to load cap table for company %s: %w", computation.CompanyID, err)
	}

	outputs, err := waterfall.Compute(snapshot, computation.TotalAmount, computation.ReturnOfCapital)
	if err != nil {
		return model.DividendComputation{}, err
	}

	// Hard invariant, checked before the transaction is allowed to commit.
	var sum money.Money
	for i := range outputs {
		outputs[i].ID = uuid.New().String()
		outputs[i].ComputationID = computation.ID
		sum = sum.Add(outputs[i].DividendAmount)
	}
	if sum != computation.TotalAmount {
		return model.DividendComputation{}, fmt.Errorf("%w: computed %s of %s",
			apperrors.ErrSumInvariantViolated, sum, computation.TotalAmount)
	}

	computation.Status = model.ComputationStatusFinalized
	computation.FinalizedAt = s.Now().UTC()

	if err := s.dividendRepo.Finalize(computation, outputs); err != nil {
		return model.DividendComputation{}, err
	}

	s.notifier.ComputationFinalized(computation)
	return computation, nil
}

// GetComputation retrieves a computation and its persisted outputs. Outputs
// are empty for drafts; they exist only once finalized.
func (s *DividendService) GetComputation(computationID string) (model.DividendComputation, []model.DividendComputationOutput, error) {
	computation, err := s.dividendRepo.Get(computationID)
	if err != nil {
		return model.DividendComputation{}, nil, err
	}
	outputs, err := s.dividendRepo.GetOutputs(computationID)
	if err != nil {
		return model.DividendComputation{}, nil, err
	}
	return computation, outputs, nil
}

// GetComputationsForCompany retrieves a company's computations.
func (s *DividendService) GetComputationsForCompany(companyID string) ([]model.DividendComputation, error) {
	return s.dividendRepo.GetAllForCompany(companyID)
}

func (s *DividendService) markInFlight(computationID string) (release func(), ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.inFlight[computationID]; taken {
		return nil, false
	}
	s.inFlight[computationID] = struct{}{}
	return func() {
		s.mu.Lock()
		delete(s.inFlight, computationID)
		s.mu.Unlock()
	}, true
}
