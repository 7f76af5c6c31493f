package repository

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/openequity/Settlement-Backend/internal/apperrors"
	"github.com/openequity/Settlement-Backend/internal/model"
	"github.com/openequity/Settlement-Backend/internal/money"
)

type DividendRepository struct {
	db *sql.DB
}

func NewDividendRepository(db *sql.DB) *DividendRepository {
	return &DividendRepository{db: db}
}

// Create inserts a draft computation.
func (r *DividendRepository) Create(c model.DividendComputation) error {
	query := `
		INSERT INTO dividend_computation
		(id, company_id, total_amount_cents, issuance_date, return_of_capital, status, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.Exec(query,
		c.ID,
		c.CompanyID,
		c.TotalAmount.Cents(),
		FormatTime(c.IssuanceDate),
		c.ReturnOfCapital,
		c.Status,
		c.CreatedBy,
		FormatTime(c.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert dividend_computation: %w", err)
	}
	return nil
}

// Get retrieves one computation by id.
func (r *DividendRepository) Get(id string) (model.DividendComputation, error) {
	query := `
		SELECT id, company_id, total_amount_cents, issuance_date, return_of_capital,
		status, created_by, created_at, finalized_at
		FROM dividend_computation
		WHERE id = ?
	`
	row := r.db.QueryRow(query, id)
	c, err := scanComputation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.DividendComputation{}, apperrors.ErrComputationNotFound
	}
	return c, err
}

// GetAllForCompany retrieves a company's computations, newest first.
func (r *DividendRepository) GetAllForCompany(companyID string) ([]model.DividendComputation, error) {
	query := `
		SELECT id, company_id, total_amount_cents, issuance_date, return_of_capital,
		status, created_by, created_at, finalized_at
		FROM dividend_computation
		WHERE company_id = ?
		ORDER BY created_at DESC
	`
	rows, err := r.db.Query(query, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to query dividend_computation table: %w", err)
	}
	defer rows.Close()

	var computations []model.DividendComputation
	for rows.Next() {
		c, err := scanComputation(rows)
		if err != nil {
			return nil, err
		}
		computations = append(computations, c)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating dividend_computation table: %w", err)
	}
	return computations, nil
}

// scanner covers *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanComputation(s scanner) (model.DividendComputation, error) {
	var c model.DividendComputation
	var total int64
	var issuanceStr, createdStr string
	var finalizedStr sql.NullString

	err := s.Scan(&c.ID, &c.CompanyID, &total, &issuanceStr, &c.ReturnOfCapital, &c.Status, &c.CreatedBy, &createdStr, &finalizedStr)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.DividendComputation{}, err
		}
		return model.DividendComputation{}, fmt.Errorf("failed to scan dividend_computation results: %w", err)
	}

	c.TotalAmount = money.FromCents(total)
	c.IssuanceDate, err = ParseTime(issuanceStr)
	if err != nil {
		return model.DividendComputation{}, err
	}
	c.CreatedAt, err = ParseTime(createdStr)
	if err != nil {
		return model.DividendComputation{}, err
	}
	if finalizedStr.Valid && finalizedStr.String != "" {
		c.FinalizedAt, err = ParseTime(finalizedStr.String)
		if err != nil {
			return model.DividendComputation{}, err
		}
	}
	return c, nil
}

// Finalize commits a computation atomically: all output rows are written,
// the computation is marked FINALIZED, and the sum invariant is re-verified
// against what was actually written. Any failure rolls back the whole
// transaction; a computation is never partially persisted.
func (r *DividendRepository) Finalize(c model.DividendComputation, outputs []model.DividendComputationOutput) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin finalize transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	// Guard against a concurrent finalize: only a DRAFT row transitions.
	res, err := tx.Exec(
		`UPDATE dividend_computation SET status = ?, finalized_at = ? WHERE id = ? AND status = ?`,
		model.ComputationStatusFinalized,
		FormatTime(c.FinalizedAt),
		c.ID,
		model.ComputationStatusDraft,
	)
	if err != nil {
		return fmt.Errorf("failed to mark computation finalized: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read finalize row count: %w", err)
	}
	if affected == 0 {
		return apperrors.ErrComputationFinalized
	}

	insert := `
		INSERT INTO dividend_computation_output
		(id, computation_id, investor_id, source_kind, source_id, share_class_name,
		number_of_shares, hurdle_rate_cents, original_issue_price_cents,
		preferred_dividend_cents, dividend_cents, qualified_dividend_cents)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	for _, out := range outputs {
		_, err := tx.Exec(insert,
			out.ID,
			c.ID,
			out.InvestorID,
			out.SourceKind,
			out.SourceID,
			out.ShareClassName,
			out.NumberOfShares,
			out.HurdleRateCents.Cents(),
			out.OriginalIssuePriceCents.Cents(),
			out.PreferredDividendAmount.Cents(),
			out.DividendAmount.Cents(),
			out.QualifiedDividendAmount.Cents(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert computation output: %w", err)
		}
	}

	// Re-verify the sum invariant against the rows as written, not the
	// in-memory slice. A mismatch aborts the commit.
	var written sql.NullInt64
	err = tx.QueryRow(
		`SELECT SUM(dividend_cents) FROM dividend_computation_output WHERE computation_id = ?`, c.ID,
	).Scan(&written)
	if err != nil {
		return fmt.Errorf("failed to verify allocation sum: %w", err)
	}
	if written.Int64 != c.TotalAmount.Cents() {
		return fmt.Errorf("%w: wrote %d cents of %d", apperrors.ErrSumInvariantViolated, written.Int64, c.TotalAmount.Cents())
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit finalize transaction: %w", err)
	}
	return nil
}

// GetOutputs retrieves a computation's allocation rows.
func (r *DividendRepository) GetOutputs(computationID string) ([]model.DividendComputationOutput, error) {
	query := `
		SELECT id, computation_id, investor_id, source_kind, source_id, share_class_name,
		number_of_shares, hurdle_rate_cents, original_issue_price_cents,
		preferred_dividend_cents, dividend_cents, qualified_dividend_cents
		FROM dividend_computation_output
		WHERE computation_id = ?
		ORDER BY id ASC
	`
	rows, err := r.db.Query(query, computationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query dividend_computation_output table: %w", err)
	}
	defer rows.Close()

	var outputs []model.DividendComputationOutput
	for rows.Next() {
		var out model.DividendComputationOutput
		var hurdle, issuePrice, preferred, dividend, qualified int64
		err := rows.Scan(
			&out.ID,
			&out.ComputationID,
			&out.InvestorID,
			&out.SourceKind,
			&out.SourceID,
			&out.ShareClassName,
			&out.NumberOfShares,
			&hurdle,
			&issuePrice,
			&preferred,
			&dividend,
			&qualified,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan computation output results: %w", err)
		}
		out.HurdleRateCents = money.FromCents(hurdle)
		out.OriginalIssuePriceCents = money.FromCents(issuePrice)
		out.PreferredDividendAmount = money.FromCents(preferred)
		out.DividendAmount = money.FromCents(dividend)
		out.QualifiedDividendAmount = money.FromCents(qualified)
		outputs = append(outputs, out)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating computation output table: %w", err)
	}
	return outputs, nil
}
