package service_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/openequity/Settlement-Backend/internal/apperrors"
	"github.com/openequity/Settlement-Backend/internal/model"
	"github.com/openequity/Settlement-Backend/internal/money"
	"github.com/openequity/Settlement-Backend/internal/provider"
	"github.com/openequity/Settlement-Backend/internal/service"
	"github.com/openequity/Settlement-Backend/internal/testutil"
)

// recordingRequeuer captures retry-dispatch calls for assertions.
type recordingRequeuer struct {
	requeued []model.SettlementTarget
	settled  []model.SettlementTarget
}

func (r *recordingRequeuer) RequeuePayable(target model.SettlementTarget) {
	r.requeued = append(r.requeued, target)
}

func (r *recordingRequeuer) SettlePayable(target model.SettlementTarget) {
	r.settled = append(r.settled, target)
}

func makeRequest(companyID string) service.CreatePaymentRequest {
	return service.CreatePaymentRequest{
		CompanyID:    companyID,
		ActingUserID: testutil.MakeID(),
		Target:       model.SettlementTarget{Kind: model.TargetInvoicePayment, PayableID: testutil.MakeID()},
		NetAmount:    money.FromDollars(1250, 0),
		TransferFee:  money.FromDollars(2, 50),
		Currency:     "USD",
		RecipientID:  testutil.MakeID(),
		BankDetails:  "NL91ABNA0417164300",
	}
}

func countAuditEvents(t *testing.T, db *sql.DB, event string) int {
	t.Helper()
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM audit_record WHERE event = ?`, event).Scan(&n); err != nil {
		t.Fatalf("Failed to count audit records: %v", err)
	}
	return n
}

// TestCreatePayment tests transfer creation and the single-flight guard.
//
// WHY: A duplicate transfer pays an investor twice. Creation must refuse a
// payable with a payment already in flight, and a failed provider call must
// leave no Payment row behind — only an audit record.
func TestCreatePayment(t *testing.T) {
	ctx := context.Background()

	t.Run("creates a transfer and records the payment", func(t *testing.T) {
		// Setup
		db := testutil.SetupTestDB(t)
		fake := testutil.NewFakeProvider()
		svc := testutil.NewTestSettlementService(t, db, fake)
		companyID := testutil.MakeID()

		// Execute
		payment, err := svc.CreatePayment(ctx, makeRequest(companyID))

		// Assert
		if err != nil {
			t.Fatalf("CreatePayment() returned unexpected error: %v", err)
		}
		if payment.Status != model.PaymentStatusInitial {
			t.Errorf("Expected status INITIAL, got %s", payment.Status)
		}
		if payment.ProviderTransferID == "" {
			t.Error("Expected a provider transfer id")
		}
		if fake.CreateCalls != 1 {
			t.Errorf("Expected 1 provider create call, got %d", fake.CreateCalls)
		}

		stored, err := svc.GetPayment(payment.ID)
		if err != nil {
			t.Fatalf("GetPayment() returned unexpected error: %v", err)
		}
		if stored.ProviderTransferID != payment.ProviderTransferID {
			t.Errorf("Stored transfer id %s does not match %s", stored.ProviderTransferID, payment.ProviderTransferID)
		}
		if got := countAuditEvents(t, db, "transfer_created"); got != 1 {
			t.Errorf("Expected 1 transfer_created audit record, got %d", got)
		}
	})

	t.Run("rejects amounts that cannot settle", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		fake := testutil.NewFakeProvider()
		svc := testutil.NewTestSettlementService(t, db, fake)

		req := makeRequest(testutil.MakeID())
		req.NetAmount = money.FromCents(0)
		if _, err := svc.CreatePayment(ctx, req); !errors.Is(err, apperrors.ErrNonPositiveAmount) {
			t.Errorf("Expected ErrNonPositiveAmount for zero net, got %v", err)
		}

		req = makeRequest(testutil.MakeID())
		req.TransferFee = money.FromCents(-1)
		if _, err := svc.CreatePayment(ctx, req); !errors.Is(err, apperrors.ErrNonPositiveAmount) {
			t.Errorf("Expected ErrNonPositiveAmount for negative fee, got %v", err)
		}
		if fake.CreateCalls != 0 {
			t.Errorf("Expected no provider calls for rejected requests, got %d", fake.CreateCalls)
		}
	})

	t.Run("refuses a payable with a payment in flight", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		fake := testutil.NewFakeProvider()
		svc := testutil.NewTestSettlementService(t, db, fake)
		companyID := testutil.MakeID()

		existing := testutil.NewPayment(companyID).Build(t, db)

		req := makeRequest(companyID)
		req.Target = existing.Target
		if _, err := svc.CreatePayment(ctx, req); !errors.Is(err, apperrors.ErrPayableInFlight) {
			t.Errorf("Expected ErrPayableInFlight, got %v", err)
		}
		if fake.CreateCalls != 0 {
			t.Errorf("Expected no provider call for an in-flight payable, got %d", fake.CreateCalls)
		}
	})

	t.Run("allows a new payment after the previous one failed", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		fake := testutil.NewFakeProvider()
		svc := testutil.NewTestSettlementService(t, db, fake)
		companyID := testutil.MakeID()

		failed := testutil.NewPayment(companyID).WithStatus(model.PaymentStatusFailed).Build(t, db)

		req := makeRequest(companyID)
		req.Target = failed.Target
		if _, err := svc.CreatePayment(ctx, req); err != nil {
			t.Errorf("Expected a retry after terminal failure to succeed, got %v", err)
		}
	})

	t.Run("provider failure leaves no payment row", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		fake := testutil.NewFakeProvider()
		fake.FailCreates(true)
		svc := testutil.NewTestSettlementService(t, db, fake)
		companyID := testutil.MakeID()

		_, err := svc.CreatePayment(ctx, makeRequest(companyID))
		if !errors.Is(err, apperrors.ErrFailedToCreateTransfer) {
			t.Fatalf("Expected ErrFailedToCreateTransfer, got %v", err)
		}

		payments, err := svc.GetPaymentsForCompany(companyID)
		if err != nil {
			t.Fatalf("GetPaymentsForCompany() returned unexpected error: %v", err)
		}
		if len(payments) != 0 {
			t.Errorf("Expected no payment rows after a failed creation, got %d", len(payments))
		}
		if got := countAuditEvents(t, db, "transfer_create_failed"); got != 1 {
			t.Errorf("Expected 1 transfer_create_failed audit record, got %d", got)
		}
	})
}

// TestHandleWebhookEvent tests webhook-driven transitions and idempotence.
//
// WHY: The provider delivers webhooks at least once and in no guaranteed
// order. Replays, late contradictions, and unknown ids must all be harmless.
func TestHandleWebhookEvent(t *testing.T) {
	ctx := context.Background()

	succeededEvent := func(transferID string) provider.WebhookEvent {
		return provider.WebhookEvent{
			EventType:    provider.EventTypeTransferStateChange,
			ResourceID:   transferID,
			CurrentState: provider.StateOutgoingPaymentSent,
		}
	}

	t.Run("moves the payment to the matching terminal state", func(t *testing.T) {
		// Setup
		db := testutil.SetupTestDB(t)
		fake := testutil.NewFakeProvider()
		svc := testutil.NewTestSettlementService(t, db, fake)
		requeuer := &recordingRequeuer{}
		svc.SetRequeuer(requeuer)

		payment, err := svc.CreatePayment(ctx, makeRequest(testutil.MakeID()))
		if err != nil {
			t.Fatalf("CreatePayment() returned unexpected error: %v", err)
		}

		// Execute
		if err := svc.HandleWebhookEvent(succeededEvent(payment.ProviderTransferID)); err != nil {
			t.Fatalf("HandleWebhookEvent() returned unexpected error: %v", err)
		}

		// Assert
		stored, err := svc.GetPayment(payment.ID)
		if err != nil {
			t.Fatalf("GetPayment() returned unexpected error: %v", err)
		}
		if stored.Status != model.PaymentStatusSucceeded {
			t.Errorf("Expected SUCCEEDED, got %s", stored.Status)
		}
		if len(requeuer.settled) != 1 || requeuer.settled[0] != payment.Target {
			t.Errorf("Expected the payable to be marked settled, got %v", requeuer.settled)
		}
	})

	t.Run("replayed and contradictory events are no-ops", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		fake := testutil.NewFakeProvider()
		svc := testutil.NewTestSettlementService(t, db, fake)
		requeuer := &recordingRequeuer{}
		svc.SetRequeuer(requeuer)

		payment, err := svc.CreatePayment(ctx, makeRequest(testutil.MakeID()))
		if err != nil {
			t.Fatalf("CreatePayment() returned unexpected error: %v", err)
		}
		if err := svc.HandleWebhookEvent(succeededEvent(payment.ProviderTransferID)); err != nil {
			t.Fatalf("HandleWebhookEvent() returned unexpected error: %v", err)
		}

		// Replay of the same event.
		if err := svc.HandleWebhookEvent(succeededEvent(payment.ProviderTransferID)); err != nil {
			t.Fatalf("Replay returned unexpected error: %v", err)
		}
		// A contradictory failure after success.
		contradiction := provider.WebhookEvent{
			EventType:    provider.EventTypeTransferStateChange,
			ResourceID:   payment.ProviderTransferID,
			CurrentState: provider.StateBouncedBack,
		}
		if err := svc.HandleWebhookEvent(contradiction); err != nil {
			t.Fatalf("Contradictory event returned unexpected error: %v", err)
		}

		stored, err := svc.GetPayment(payment.ID)
		if err != nil {
			t.Fatalf("GetPayment() returned unexpected error: %v", err)
		}
		if stored.Status != model.PaymentStatusSucceeded {
			t.Errorf("Terminal state moved to %s", stored.Status)
		}
		if got := countAuditEvents(t, db, "duplicate_event"); got != 2 {
			t.Errorf("Expected 2 duplicate_event audit records, got %d", got)
		}
		// Exactly one downstream success notification, none for the replay.
		if len(requeuer.settled) != 1 {
			t.Errorf("Expected 1 settle notification, got %d", len(requeuer.settled))
		}
		if len(requeuer.requeued) != 0 {
			t.Errorf("Expected no requeue from the contradictory event, got %d", len(requeuer.requeued))
		}
	})

	t.Run("failure event requeues the payable", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		fake := testutil.NewFakeProvider()
		svc := testutil.NewTestSettlementService(t, db, fake)
		requeuer := &recordingRequeuer{}
		svc.SetRequeuer(requeuer)

		payment, err := svc.CreatePayment(ctx, makeRequest(testutil.MakeID()))
		if err != nil {
			t.Fatalf("CreatePayment() returned unexpected error: %v", err)
		}

		event := provider.WebhookEvent{
			EventType:    provider.EventTypeTransferStateChange,
			ResourceID:   payment.ProviderTransferID,
			CurrentState: provider.StateFundsRefunded,
		}
		if err := svc.HandleWebhookEvent(event); err != nil {
			t.Fatalf("HandleWebhookEvent() returned unexpected error: %v", err)
		}

		stored, err := svc.GetPayment(payment.ID)
		if err != nil {
			t.Fatalf("GetPayment() returned unexpected error: %v", err)
		}
		if stored.Status != model.PaymentStatusFailed {
			t.Errorf("Expected FAILED, got %s", stored.Status)
		}
		if len(requeuer.requeued) != 1 || requeuer.requeued[0] != payment.Target {
			t.Errorf("Expected the payable to be requeued, got %v", requeuer.requeued)
		}
	})

	t.Run("unknown event types and transfer ids are ignored", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		fake := testutil.NewFakeProvider()
		svc := testutil.NewTestSettlementService(t, db, fake)

		if err := svc.HandleWebhookEvent(provider.WebhookEvent{EventType: "transfers#relayed"}); err != nil {
			t.Errorf("Unknown event type should be ignored, got %v", err)
		}
		event := provider.WebhookEvent{
			EventType:    provider.EventTypeTransferStateChange,
			ResourceID:   "transfer-never-seen",
			CurrentState: provider.StateOutgoingPaymentSent,
		}
		if err := svc.HandleWebhookEvent(event); err != nil {
			t.Errorf("Unknown transfer id should be ignored, got %v", err)
		}
	})

	t.Run("processing state leaves the payment pending", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		fake := testutil.NewFakeProvider()
		svc := testutil.NewTestSettlementService(t, db, fake)

		payment, err := svc.CreatePayment(ctx, makeRequest(testutil.MakeID()))
		if err != nil {
			t.Fatalf("CreatePayment() returned unexpected error: %v", err)
		}

		event := provider.WebhookEvent{
			EventType:    provider.EventTypeTransferStateChange,
			ResourceID:   payment.ProviderTransferID,
			CurrentState: provider.StateProcessing,
		}
		if err := svc.HandleWebhookEvent(event); err != nil {
			t.Fatalf("HandleWebhookEvent() returned unexpected error: %v", err)
		}

		stored, err := svc.GetPayment(payment.ID)
		if err != nil {
			t.Fatalf("GetPayment() returned unexpected error: %v", err)
		}
		if stored.Status != model.PaymentStatusInitial {
			t.Errorf("Expected INITIAL, got %s", stored.Status)
		}
	})
}

// TestReconcilePayment tests the polling fallback.
//
// WHY: Reconciliation is what rescues a payment whose webhook never arrived.
// It must converge on the provider's state, count its attempts, and hand the
// payment to a human once the attempt budget runs out.
func TestReconcilePayment(t *testing.T) {
	ctx := context.Background()

	t.Run("converges a payment whose webhook was dropped", func(t *testing.T) {
		// Setup: the transfer succeeded provider-side but no webhook came.
		db := testutil.SetupTestDB(t)
		fake := testutil.NewFakeProvider()
		svc := testutil.NewTestSettlementService(t, db, fake)

		payment, err := svc.CreatePayment(ctx, makeRequest(testutil.MakeID()))
		if err != nil {
			t.Fatalf("CreatePayment() returned unexpected error: %v", err)
		}
		fake.SetState(payment.ProviderTransferID, provider.StateOutgoingPaymentSent)

		// Execute
		if err := svc.ReconcilePayment(ctx, payment, 5); err != nil {
			t.Fatalf("ReconcilePayment() returned unexpected error: %v", err)
		}

		// Assert
		stored, err := svc.GetPayment(payment.ID)
		if err != nil {
			t.Fatalf("GetPayment() returned unexpected error: %v", err)
		}
		if stored.Status != model.PaymentStatusSucceeded {
			t.Errorf("Expected SUCCEEDED, got %s", stored.Status)
		}
		if stored.ReconcileAttempts != 1 {
			t.Errorf("Expected 1 reconcile attempt, got %d", stored.ReconcileAttempts)
		}
		if fake.GetCalls != 1 {
			t.Errorf("Expected 1 provider poll, got %d", fake.GetCalls)
		}
	})

	t.Run("skips payments already terminal", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		fake := testutil.NewFakeProvider()
		svc := testutil.NewTestSettlementService(t, db, fake)

		payment := testutil.NewPayment(testutil.MakeID()).WithStatus(model.PaymentStatusSucceeded).Build(t, db)

		if err := svc.ReconcilePayment(ctx, payment, 5); err != nil {
			t.Fatalf("ReconcilePayment() returned unexpected error: %v", err)
		}
		if fake.GetCalls != 0 {
			t.Errorf("Expected no provider polls for a terminal payment, got %d", fake.GetCalls)
		}
	})

	t.Run("flags a stuck payment once attempts run out", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		fake := testutil.NewFakeProvider()
		svc := testutil.NewTestSettlementService(t, db, fake)

		payment, err := svc.CreatePayment(ctx, makeRequest(testutil.MakeID()))
		if err != nil {
			t.Fatalf("CreatePayment() returned unexpected error: %v", err)
		}

		// The provider keeps reporting processing through every attempt.
		maxAttempts := 3
		for i := 0; i < maxAttempts; i++ {
			current, err := svc.GetPayment(payment.ID)
			if err != nil {
				t.Fatalf("GetPayment() returned unexpected error: %v", err)
			}
			if err := svc.ReconcilePayment(ctx, current, maxAttempts); err != nil {
				t.Fatalf("ReconcilePayment() attempt %d returned unexpected error: %v", i+1, err)
			}
		}

		stored, err := svc.GetPayment(payment.ID)
		if err != nil {
			t.Fatalf("GetPayment() returned unexpected error: %v", err)
		}
		if stored.Status != model.PaymentStatusInitial {
			t.Errorf("Expected the payment to stay INITIAL, got %s", stored.Status)
		}
		if stored.ReconcileAttempts != maxAttempts {
			t.Errorf("Expected %d attempts recorded, got %d", maxAttempts, stored.ReconcileAttempts)
		}
		if !stored.FlaggedForReview {
			t.Error("Expected the payment to be flagged for review")
		}
		if got := countAuditEvents(t, db, "flagged_for_review"); got != 1 {
			t.Errorf("Expected 1 flagged_for_review audit record, got %d", got)
		}
	})

	t.Run("non-terminal scan excludes resolved payments", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		fake := testutil.NewFakeProvider()
		svc := testutil.NewTestSettlementService(t, db, fake)
		companyID := testutil.MakeID()

		open := testutil.NewPayment(companyID).Build(t, db)
		testutil.NewPayment(companyID).WithStatus(model.PaymentStatusSucceeded).Build(t, db)
		testutil.NewPayment(companyID).WithStatus(model.PaymentStatusFailed).Build(t, db)

		payments, err := svc.NonTerminalPayments()
		if err != nil {
			t.Fatalf("NonTerminalPayments() returned unexpected error: %v", err)
		}
		if len(payments) != 1 || payments[0].ID != open.ID {
			t.Errorf("Expected only the open payment in the scan set, got %d", len(payments))
		}
	})
}
