package repository

import (
	"database/sql"
	"fmt"

	"github.com/openequity/Settlement-Backend/internal/model"
	"github.com/openequity/Settlement-Backend/internal/money"
)

// CapTableRepository reads capitalization records. The engine never writes
// through this repository; holdings are owned by the surrounding CRUD layer.
type CapTableRepository struct {
	db *sql.DB
}

func NewCapTableRepository(db *sql.DB) *CapTableRepository {
	return &CapTableRepository{db: db}
}

// GetSnapshot assembles the company's current share classes, holdings, and
// convertible securities as of now.
func (r *CapTableRepository) GetSnapshot(companyID string) (*model.CapTableSnapshot, error) {
	snapshot := &model.CapTableSnapshot{CompanyID: companyID}

	classQuery := `
		SELECT id, company_id, name, liquidation_preference_bps, participating,
		participation_cap_bps, seniority_rank, original_issue_price_cents
		FROM share_class
		WHERE company_id = ?
		ORDER BY seniority_rank ASC, name ASC
	`
	rows, err := r.db.Query(classQuery, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to query share_class table: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var c model.ShareClass
		var issuePrice int64
		err := rows.Scan(
			&c.ID,
			&c.CompanyID,
			&c.Name,
			&c.LiquidationPreferenceBps,
			&c.Participating,
			&c.ParticipationCapBps,
			&c.SeniorityRank,
			&issuePrice,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan share_class results: %w", err)
		}
		c.OriginalIssuePriceCents = money.FromCents(issuePrice)
		snapshot.Classes = append(snapshot.Classes, c)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating share_class table: %w", err)
	}

	holdings, err := r.getHoldings(companyID)
	if err != nil {
		return nil, err
	}
	snapshot.Holdings = holdings

	convertibles, err := r.getConvertibles(companyID)
	if err != nil {
		return nil, err
	}
	snapshot.Convertibles = convertibles

	return snapshot, nil
}

func (r *CapTableRepository) getHoldings(companyID string) ([]model.ShareHolding, error) {
	query := `
		SELECT id, company_id, investor_id, share_class_id, number_of_shares, hurdle_rate_cents
		FROM share_holding
		WHERE company_id = ?
		ORDER BY id ASC
	`
	rows, err := r.db.Query(query, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to query share_holding table: %w", err)
	}
	defer rows.Close()

	var holdings []model.ShareHolding
	for rows.Next() {
		var h model.ShareHolding
		var hurdle int64
		err := rows.Scan(&h.ID, &h.CompanyID, &h.InvestorID, &h.ShareClassID, &h.NumberOfShares, &hurdle)
		if err != nil {
			return nil, fmt.Errorf("failed to scan share_holding results: %w", err)
		}
		h.HurdleRateCents = money.FromCents(hurdle)
		holdings = append(holdings, h)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating share_holding table: %w", err)
	}
	return holdings, nil
}

func (r *CapTableRepository) getConvertibles(companyID string) ([]model.ConvertibleSecurity, error) {
	query := `
		SELECT id, company_id, investor_id, principal_value_cents, implied_shares,
		valuation_cap_cents, discount_rate_bps, interest_rate_bps, seniority_rank
		FROM convertible_security
		WHERE company_id = ?
		ORDER BY id ASC
	`
	rows, err := r.db.Query(query, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to query convertible_security table: %w", err)
	}
	defer rows.Close()

	var convertibles []model.ConvertibleSecurity
	for rows.Next() {
		var c model.ConvertibleSecurity
		var principal, valuationCap int64
		err := rows.Scan(
			&c.ID,
			&c.CompanyID,
			&c.InvestorID,
			&principal,
			&c.ImpliedShares,
			&valuationCap,
			&c.DiscountRateBps,
			&c.InterestRateBps,
			&c.SeniorityRank,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan convertible_security results: %w", err)
		}
		c.PrincipalValue = money.FromCents(principal)
		c.ValuationCapCents = money.FromCents(valuationCap)
		convertibles = append(convertibles, c)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating convertible_security table: %w", err)
	}
	return convertibles, nil
}

// TotalOutstandingShares sums issued shares plus as-converted convertible
// shares, the denominator for implied-valuation checks.
func (r *CapTableRepository) TotalOutstandingShares(companyID string) (int64, error) {
	var issued sql.NullInt64
	err := r.db.QueryRow(
		`SELECT SUM(number_of_shares) FROM share_holding WHERE company_id = ?`, companyID,
	).Scan(&issued)
	if err != nil {
		return 0, fmt.Errorf("failed to sum share_holding shares: %w", err)
	}

	var implied sql.NullInt64
	err = r.db.QueryRow(
		`SELECT SUM(implied_shares) FROM convertible_security WHERE company_id = ?`, companyID,
	).Scan(&implied)
	if err != nil {
		return 0, fmt.Errorf("failed to sum convertible_security shares: %w", err)
	}

	return issued.Int64 + implied.Int64, nil
}
