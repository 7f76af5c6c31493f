package repository

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/openequity/Settlement-Backend/internal/apperrors"
	"github.com/openequity/Settlement-Backend/internal/model"
	"github.com/openequity/Settlement-Backend/internal/money"
)

type PaymentRepository struct {
	db *sql.DB
}

func NewPaymentRepository(db *sql.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

const paymentColumns = `
	id, company_id, target_kind, payable_id, net_amount_cents, transfer_fee_cents,
	currency, status, provider_transfer_id, reference, reconcile_attempts,
	flagged_for_review, created_at, resolved_at
`

// Create inserts a payment. The row is only created after the provider
// accepted the transfer request; a failed creation call leaves no orphan
// INITIAL row.
func (r *PaymentRepository) Create(p model.Payment) error {
	query := `
		INSERT INTO payment
		(id, company_id, target_kind, payable_id, net_amount_cents, transfer_fee_cents,
		currency, status, provider_transfer_id, reference, reconcile_attempts,
		flagged_for_review, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.Exec(query,
		p.ID,
		p.CompanyID,
		p.Target.Kind,
		p.Target.PayableID,
		p.NetAmount.Cents(),
		p.TransferFee.Cents(),
		p.Currency,
		p.Status,
		p.ProviderTransferID,
		p.Reference,
		p.ReconcileAttempts,
		p.FlaggedForReview,
		FormatTime(p.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert payment: %w", err)
	}
	return nil
}

// Get retrieves one payment by id.
func (r *PaymentRepository) Get(id string) (model.Payment, error) {
	row := r.db.QueryRow(`SELECT `+paymentColumns+` FROM payment WHERE id = ?`, id)
	p, err := scanPayment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Payment{}, apperrors.ErrPaymentNotFound
	}
	return p, err
}

// GetByTransferID looks a payment up by the provider's transfer id, the key
// webhook events carry.
func (r *PaymentRepository) GetByTransferID(transferID string) (model.Payment, error) {
	row := r.db.QueryRow(`SELECT `+paymentColumns+` FROM payment WHERE provider_transfer_id = ?`, transferID)
	p, err := scanPayment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Payment{}, apperrors.ErrPaymentNotFoundForTransfer
	}
	return p, err
}

// GetAllForCompany retrieves a company's payments, newest first.
func (r *PaymentRepository) GetAllForCompany(companyID string) ([]model.Payment, error) {
	rows, err := r.db.Query(
		`SELECT `+paymentColumns+` FROM payment WHERE company_id = ? ORDER BY created_at DESC, id ASC`, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to query payment table: %w", err)
	}
	defer rows.Close()
	return collectPayments(rows)
}

// GetNonTerminal retrieves payments still in INITIAL that have not been
// flagged for manual review — the reconciliation scheduler's scan set.
func (r *PaymentRepository) GetNonTerminal() ([]model.Payment, error) {
	rows, err := r.db.Query(
		`SELECT `+paymentColumns+` FROM payment WHERE status = ? AND flagged_for_review = FALSE ORDER BY created_at ASC`,
		model.PaymentStatusInitial)
	if err != nil {
		return nil, fmt.Errorf("failed to query non-terminal payments: %w", err)
	}
	defer rows.Close()
	return collectPayments(rows)
}

// HasInFlightForPayable reports whether an INITIAL payment already exists
// for the payable — the persistent half of the one-attempt-at-a-time rule.
func (r *PaymentRepository) HasInFlightForPayable(payableID string) (bool, error) {
	var count int
	err := r.db.QueryRow(
		`SELECT COUNT(*) FROM payment WHERE payable_id = ? AND status = ?`,
		payableID, model.PaymentStatusInitial,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to count in-flight payments: %w", err)
	}
	return count > 0, nil
}

// UpdateStatus moves a payment to a new status. Terminal states are sticky:
// the update only matches a row still in INITIAL, so a losing race or a
// replayed event affects zero rows and the caller sees changed=false.
func (r *PaymentRepository) UpdateStatus(id, status, resolvedAt string) (bool, error) {
	res, err := r.db.Exec(
		`UPDATE payment SET status = ?, resolved_at = ? WHERE id = ? AND status = ?`,
		status, resolvedAt, id, model.PaymentStatusInitial,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update payment status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read payment update row count: %w", err)
	}
	return affected > 0, nil
}

// IncrementReconcileAttempts bumps the reconciliation counter and flags the
// payment for manual review once attempts reach maxAttempts.
func (r *PaymentRepository) IncrementReconcileAttempts(id string, maxAttempts int) error {
	_, err := r.db.Exec(
		`UPDATE payment
		SET reconcile_attempts = reconcile_attempts + 1,
		    flagged_for_review = (reconcile_attempts + 1 >= ?)
		WHERE id = ?`,
		maxAttempts, id,
	)
	if err != nil {
		return fmt.Errorf("failed to increment reconcile attempts: %w", err)
	}
	return nil
}

func collectPayments(rows *sql.Rows) ([]model.Payment, error) {
	var payments []model.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating payment table: %w", err)
	}
	return payments, nil
}

func scanPayment(s scanner) (model.Payment, error) {
	var p model.Payment
	var net, fee int64
	var transferID sql.NullString
	var createdStr string
	var resolvedStr sql.NullString

	err := s.Scan(
		&p.ID,
		&p.CompanyID,
		&p.Target.Kind,
		&p.Target.PayableID,
		&net,
		&fee,
		&p.Currency,
		&p.Status,
		&transferID,
		&p.Reference,
		&p.ReconcileAttempts,
		&p.FlaggedForReview,
		&createdStr,
		&resolvedStr,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Payment{}, err
		}
		return model.Payment{}, fmt.Errorf("failed to scan payment results: %w", err)
	}

	p.NetAmount = money.FromCents(net)
	p.TransferFee = money.FromCents(fee)
	if transferID.Valid {
		p.ProviderTransferID = transferID.String
	}
	p.CreatedAt, err = ParseTime(createdStr)
	if err != nil {
		return model.Payment{}, err
	}
	if resolvedStr.Valid && resolvedStr.String != "" {
		p.ResolvedAt, err = ParseTime(resolvedStr.String)
		if err != nil {
			return model.Payment{}, err
		}
	}
	return p, nil
}
