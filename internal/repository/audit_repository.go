package repository

import (
	"database/sql"
	"fmt"

	"github.com/openequity/Settlement-Backend/internal/model"
	"github.com/openequity/Settlement-Backend/internal/money"
)

type AuditRepository struct {
	db *sql.DB
}

func NewAuditRepository(db *sql.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Create inserts an audit record.
func (r *AuditRepository) Create(rec model.AuditRecord) error {
	query := `
		INSERT INTO audit_record
		(id, payment_id, payable_id, event, net_amount_cents, transfer_fee_cents,
		bank_fingerprint, attempt_count, detail, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.Exec(query,
		rec.ID,
		rec.PaymentID,
		rec.PayableID,
		rec.Event,
		rec.NetAmount.Cents(),
		rec.TransferFee.Cents(),
		rec.BankFingerprint,
		rec.AttemptCount,
		rec.Detail,
		FormatTime(rec.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit_record: %w", err)
	}
	return nil
}

// GetForPayment retrieves a payment's audit trail, oldest first.
func (r *AuditRepository) GetForPayment(paymentID string) ([]model.AuditRecord, error) {
	query := `
		SELECT id, payment_id, payable_id, event, net_amount_cents, transfer_fee_cents,
		bank_fingerprint, attempt_count, detail, created_at
		FROM audit_record
		WHERE payment_id = ?
		ORDER BY created_at ASC, id ASC
	`
	rows, err := r.db.Query(query, paymentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit_record table: %w", err)
	}
	defer rows.Close()

	var records []model.AuditRecord
	for rows.Next() {
		var rec model.AuditRecord
		var net, fee int64
		var paymentID, fingerprint, detail sql.NullString
		var createdStr string

		err := rows.Scan(
			&rec.ID,
			&paymentID,
			&rec.PayableID,
			&rec.Event,
			&net,
			&fee,
			&fingerprint,
			&rec.AttemptCount,
			&detail,
			&createdStr,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit_record results: %w", err)
		}

		rec.PaymentID = paymentID.String
		rec.BankFingerprint = fingerprint.String
		rec.Detail = detail.String
		rec.NetAmount = money.FromCents(net)
		rec.TransferFee = money.FromCents(fee)
		rec.CreatedAt, err = ParseTime(createdStr)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit_record table: %w", err)
	}
	return records, nil
}
