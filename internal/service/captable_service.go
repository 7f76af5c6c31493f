package service

import (
	"github.com/openequity/Settlement-Backend/internal/model"
	"github.com/openequity/Settlement-Backend/internal/repository"
)

// CapTableService provides read-only capitalization snapshots. The engine
// never mutates the cap table; holdings are owned by the surrounding CRUD
// layer and re-read fresh for every computation.
type CapTableService struct {
	capTableRepo *repository.CapTableRepository
}

// NewCapTableService creates a new CapTableService with the provided repository dependencies.
func NewCapTableService(capTableRepo *repository.CapTableRepository) *CapTableService {
	return &CapTableService{capTableRepo: capTableRepo}
}

// GetSnapshot returns the company's capitalization as of now.
func (s *CapTableService) GetSnapshot(companyID string) (*model.CapTableSnapshot, error) {
	return s.capTableRepo.GetSnapshot(companyID)
}

// TotalOutstandingShares returns the fully diluted share count used for
// implied-valuation checks during tender clearing.
func (s *CapTableService) TotalOutstandingShares(companyID string) (int64, error) {
	return s.capTableRepo.TotalOutstandingShares(companyID)
}
