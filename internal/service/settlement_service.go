package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/openequity/Settlement-Backend/internal/apperrors"
	"github.com/openequity/Settlement-Backend/internal/audit"
	"github.com/openequity/Settlement-Backend/internal/model"
	"github.com/openequity/Settlement-Backend/internal/money"
	"github.com/openequity/Settlement-Backend/internal/provider"
	"github.com/openequity/Settlement-Backend/internal/repository"
	"github.com/openequity/Settlement-Backend/internal/settlement"
)

// Audit event names recorded through the settlement lifecycle.
const (
	auditEventTransferCreated  = "transfer_created"
	auditEventTransferFailed   = "transfer_create_failed"
	auditEventStateTransition  = "state_transition"
	auditEventDuplicateEvent   = "duplicate_event"
	auditEventReconcileAttempt = "reconcile_attempt"
	auditEventFlaggedForReview = "flagged_for_review"
)

// Requeuer re-queues a payable for another payment attempt after a terminal
// failure and is told when a payable settles so it can forget the request.
// The dispatch side lives in the scheduler package.
type Requeuer interface {
	RequeuePayable(target model.SettlementTarget)
	SettlePayable(target model.SettlementTarget)
}

// CreatePaymentRequest carries everything needed to settle one payable.
// Company and acting user are explicit; the engine holds no ambient context.
type CreatePaymentRequest struct {
	CompanyID    string
	ActingUserID string
	Target       model.SettlementTarget
	NetAmount    money.Money
	TransferFee  money.Money
	Currency     string
	RecipientID  string
	// BankDetails are fingerprinted for the audit trail and never stored raw.
	BankDetails string
}

// SettlementService owns the Payment lifecycle: creating provider transfers,
// consuming webhook events, and reconciling stuck payments. All three paths
// share one idempotent transition function, so they converge regardless of
// delivery order.
type SettlementService struct {
	paymentRepo   *repository.PaymentRepository
	providerClient provider.Client
	locks         *settlement.PayableLocks
	auditLog      *audit.Logger
	fingerprinter *audit.Fingerprinter
	notifier      Notifier
	requeuer      Requeuer
	log           *logrus.Logger

	// Now is the clock, replaceable in tests.
	Now func() time.Time
}

// NewSettlementService creates a new SettlementService with the provided dependencies.
// requeuer may be nil when no retry dispatch is wired (tests, one-shot tools).
func NewSettlementService(
	paymentRepo *repository.PaymentRepository,
	providerClient provider.Client,
	auditLog *audit.Logger,
	fingerprinter *audit.Fingerprinter,
	notifier Notifier,
	requeuer Requeuer,
	log *logrus.Logger,
) *SettlementService {
	return &SettlementService{
		paymentRepo:   paymentRepo,
		providerClient: providerClient,
		locks:         settlement.NewPayableLocks(),
		auditLog:      auditLog,
		fingerprinter: fingerprinter,
		notifier:      notifier,
		requeuer:      requeuer,
		log:           log,
		Now:           time.Now,
	}
}

// SetRequeuer wires the retry dispatch after construction. The dispatcher
// needs the service to exist first, so the cycle is broken here.
func (s *SettlementService) SetRequeuer(requeuer Requeuer) {
	s.requeuer = requeuer
}

// CreatePayment requests a transfer from the provider and records the
// Payment in INITIAL. The per-payable lock is held only across the creation
// call and the insert — never across the wait for the webhook. If the
// provider call fails, no Payment row is created.
func (s *SettlementService) CreatePayment(ctx context.Context, req CreatePaymentRequest) (model.Payment, error) {
	if req.NetAmount < money.FromCents(1) {
		return model.Payment{}, apperrors.ErrNonPositiveAmount
	}
	if req.TransferFee.IsNegative() {
		return model.Payment{}, apperrors.ErrNonPositiveAmount
	}

	release, ok := s.locks.TryAcquire(req.Target.PayableID)
	if !ok {
		return model.Payment{}, apperrors.ErrPayableInFlight
	}
	defer release()

	// The persistent half of the same rule, covering restarts.
	inFlight, err := s.paymentRepo.HasInFlightForPayable(req.Target.PayableID)
	if err != nil {
		return model.Payment{}, err
	}
	if inFlight {
		return model.Payment{}, apperrors.ErrPayableInFlight
	}

	fingerprint := s.fingerprinter.Fingerprint(req.BankDetails)
	reference := uuid.New().String()

	transfer, err := s.providerClient.CreateTransfer(ctx, provider.CreateTransferRequest{
		AmountCents: req.NetAmount.Cents(),
		Currency:    req.Currency,
		RecipientID: req.RecipientID,
		Reference:   reference,
	})
	if err != nil {
		s.auditLog.Record(model.AuditRecord{
			PayableID:       req.Target.PayableID,
			Event:           auditEventTransferFailed,
			NetAmount:       req.NetAmount,
			TransferFee:     req.TransferFee,
			BankFingerprint: fingerprint,
			Detail:          "provider transfer creation failed",
		})
		return model.Payment{}, apperrors.ErrFailedToCreateTransfer
	}

	payment := model.Payment{
		ID:                 uuid.New().String(),
		CompanyID:          req.CompanyID,
		Target:             req.Target,
		NetAmount:          req.NetAmount,
		TransferFee:        req.TransferFee,
		Currency:           req.Currency,
		Status:             model.PaymentStatusInitial,
		ProviderTransferID: transfer.ID,
		Reference:          reference,
		CreatedAt:          s.Now().UTC(),
	}
	if err := s.paymentRepo.Create(payment); err != nil {
		// The transfer exists provider-side but we failed to record it.
		// Reconciliation cannot find it, so this is operator-alert level.
		s.log.WithError(err).WithFields(logrus.Fields{
			"transferId": transfer.ID,
			"payableId":  req.Target.PayableID,
		}).Error("payment row insert failed after transfer creation")
		return model.Payment{}, err
	}

	s.auditLog.Record(model.AuditRecord{
		PaymentID:       payment.ID,
		PayableID:       req.Target.PayableID,
		Event:           auditEventTransferCreated,
		NetAmount:       req.NetAmount,
		TransferFee:     req.TransferFee,
		BankFingerprint: fingerprint,
		Detail:          "transfer created at provider",
	})

	return payment, nil
}

// HandleWebhookEvent applies a provider notification to the matching
// payment. Unknown event types and unknown transfer ids are ignored and
// logged; duplicate deliveries and events against terminal payments are
// idempotent no-ops.
func (s *SettlementService) HandleWebhookEvent(event provider.WebhookEvent) error {
	if event.EventType != provider.EventTypeTransferStateChange {
		s.log.WithField("eventType", event.EventType).Info("ignoring unknown webhook event type")
		return nil
	}

	payment, err := s.paymentRepo.GetByTransferID(event.ResourceID)
	if err != nil {
		if err == apperrors.ErrPaymentNotFoundForTransfer {
			s.log.WithField("transferId", event.ResourceID).Warn("webhook for unknown transfer id")
			return nil
		}
		return err
	}

	return s.applyState(payment, event.CurrentState)
}

// ReconcilePayment re-fetches a payment's provider state and applies the
// same transition rule as the webhook path. Each attempt is counted; past
// maxAttempts the payment is flagged for manual review.
func (s *SettlementService) ReconcilePayment(ctx context.Context, payment model.Payment, maxAttempts int) error {
	if payment.Terminal() {
		return nil
	}

	if err := s.paymentRepo.IncrementReconcileAttempts(payment.ID, maxAttempts); err != nil {
		return err
	}

	s.auditLog.Record(model.AuditRecord{
		PaymentID:    payment.ID,
		PayableID:    payment.Target.PayableID,
		Event:        auditEventReconcileAttempt,
		NetAmount:    payment.NetAmount,
		TransferFee:  payment.TransferFee,
		AttemptCount: payment.ReconcileAttempts + 1,
		Detail:       "re-fetching transfer state from provider",
	})

	transfer, err := s.providerClient.GetTransfer(ctx, payment.ProviderTransferID)
	if err != nil {
		return err
	}

	if err := s.applyState(payment, transfer.CurrentState); err != nil {
		return err
	}

	if payment.ReconcileAttempts+1 >= maxAttempts {
		// Re-read: the transition above may have resolved it.
		current, err := s.paymentRepo.Get(payment.ID)
		if err != nil {
			return err
		}
		if !current.Terminal() {
			s.auditLog.Record(model.AuditRecord{
				PaymentID:    payment.ID,
				PayableID:    payment.Target.PayableID,
				Event:        auditEventFlaggedForReview,
				NetAmount:    payment.NetAmount,
				AttemptCount: current.ReconcileAttempts,
				Detail:       "reconciliation attempts exhausted without terminal state",
			})
		}
	}
	return nil
}

// applyState runs the shared transition function and persists the outcome.
// The conditional UPDATE makes the write idempotent under races: whichever
// of webhook and reconciliation lands first wins, the loser is a no-op.
func (s *SettlementService) applyState(payment model.Payment, state string) error {
	transition := settlement.Apply(&payment, provider.Classify(state))

	if transition.AlreadyTerminal {
		s.log.WithFields(logrus.Fields{
			"paymentId": payment.ID,
			"status":    payment.Status,
			"state":     state,
		}).Debug("event for already-terminal payment ignored")
		s.auditLog.Record(model.AuditRecord{
			PaymentID: payment.ID,
			PayableID: payment.Target.PayableID,
			Event:     auditEventDuplicateEvent,
			Detail:    "provider state " + state + " after terminal " + payment.Status,
		})
		return nil
	}
	if !transition.Changed {
		return nil
	}

	changed, err := s.paymentRepo.UpdateStatus(payment.ID, transition.To, repository.FormatTime(s.Now().UTC()))
	if err != nil {
		return err
	}
	if !changed {
		// Lost the race to a concurrent webhook/reconcile; both sides
		// converge on the same terminal state, so nothing more to do.
		s.log.WithField("paymentId", payment.ID).Debug("payment transition lost race, already resolved")
		return nil
	}

	payment.Status = transition.To

	s.auditLog.Record(model.AuditRecord{
		PaymentID:   payment.ID,
		PayableID:   payment.Target.PayableID,
		Event:       auditEventStateTransition,
		NetAmount:   payment.NetAmount,
		TransferFee: payment.TransferFee,
		Detail:      transition.From + " -> " + transition.To,
	})

	switch transition.To {
	case model.PaymentStatusSucceeded:
		s.notifier.PaymentSucceeded(payment)
		if s.requeuer != nil {
			s.requeuer.SettlePayable(payment.Target)
		}
	case model.PaymentStatusFailed:
		s.notifier.PaymentFailed(payment)
		if s.requeuer != nil {
			s.requeuer.RequeuePayable(payment.Target)
		}
	}
	return nil
}

// GetPayment retrieves one payment by id.
func (s *SettlementService) GetPayment(id string) (model.Payment, error) {
	return s.paymentRepo.Get(id)
}

// GetPaymentsForCompany retrieves a company's payments.
func (s *SettlementService) GetPaymentsForCompany(companyID string) ([]model.Payment, error) {
	return s.paymentRepo.GetAllForCompany(companyID)
}

// NonTerminalPayments returns the reconciliation scan set.
func (s *SettlementService) NonTerminalPayments() ([]model.Payment, error) {
	return s.paymentRepo.GetNonTerminal()
}
