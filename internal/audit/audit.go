// Package audit records settlement activity for support and compliance
// investigation. Audit logging is best-effort by contract: a failure to
// write an audit record is itself logged and swallowed, never propagated
// into the payment path.
package audit

import (
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/openequity/Settlement-Backend/internal/model"
	"github.com/openequity/Settlement-Backend/internal/repository"
)

// Logger persists audit records and mirrors them to structured logs.
type Logger struct {
	repo *repository.AuditRepository
	log  *logrus.Logger
}

// NewLogger creates an audit logger. repo may be nil in tests that only
// care about the structured log side.
func NewLogger(repo *repository.AuditRepository, log *logrus.Logger) *Logger {
	return &Logger{repo: repo, log: log}
}

// Record writes one audit entry. It never returns an error and never
// panics; failures are reported on the structured log only.
func (l *Logger) Record(rec model.AuditRecord) {
	defer func() {
		if r := recover(); r != nil {
			l.log.WithField("panic", r).Error("audit record write panicked")
		}
	}()

	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	l.log.WithFields(logrus.Fields{
		"paymentId":       rec.PaymentID,
		"payableId":       rec.PayableID,
		"event":           rec.Event,
		"netAmount":       rec.NetAmount.String(),
		"transferFee":     rec.TransferFee.String(),
		"bankFingerprint": rec.BankFingerprint,
		"attemptCount":    rec.AttemptCount,
	}).Info(rec.Detail)

	if l.repo == nil {
		return
	}
	if err := l.repo.Create(rec); err != nil {
		l.log.WithError(err).Error("failed to persist audit record")
	}
}
