package service_test

import (
	"errors"
	"testing"
	"time"

	"github.com/openequity/Settlement-Backend/internal/apperrors"
	"github.com/openequity/Settlement-Backend/internal/model"
	"github.com/openequity/Settlement-Backend/internal/money"
	"github.com/openequity/Settlement-Backend/internal/testutil"
	"github.com/openequity/Settlement-Backend/internal/waterfall"
)

// TestStartComputation tests draft creation and the issuance lead time.
//
// WHY: Start is the operator's preview step. It must enforce the ten-day
// correction window exactly at the boundary and must not leave partial state
// behind when validation fails.
func TestStartComputation(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("creates a draft with a previewed allocation", func(t *testing.T) {
		// Setup
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestDividendService(t, db)
		svc.Now = func() time.Time { return now }

		companyID := testutil.MakeID()
		class := testutil.NewShareClass(companyID).Build(t, db)
		testutil.NewHolding(class, testutil.MakeID()).WithShares(100).Build(t, db)
		testutil.NewHolding(class, testutil.MakeID()).WithShares(300).Build(t, db)

		// Execute
		computation, outputs, err := svc.StartComputation(
			companyID, testutil.MakeID(), money.FromDollars(1000, 0), now.Add(11*24*time.Hour), false)

		// Assert
		if err != nil {
			t.Fatalf("StartComputation() returned unexpected error: %v", err)
		}
		if computation.Status != model.ComputationStatusDraft {
			t.Errorf("Expected status DRAFT, got %s", computation.Status)
		}
		var sum money.Money
		for _, o := range outputs {
			sum = sum.Add(o.DividendAmount)
		}
		if sum != money.FromDollars(1000, 0) {
			t.Errorf("Preview outputs sum to %s, expected $1,000.00", sum)
		}

		// The preview is not persisted; only the draft row is.
		stored, storedOutputs, err := svc.GetComputation(computation.ID)
		if err != nil {
			t.Fatalf("GetComputation() returned unexpected error: %v", err)
		}
		if stored.Status != model.ComputationStatusDraft {
			t.Errorf("Expected stored status DRAFT, got %s", stored.Status)
		}
		if len(storedOutputs) != 0 {
			t.Errorf("Expected no persisted outputs for a draft, got %d", len(storedOutputs))
		}
	})

	t.Run("enforces the lead time at the boundary", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestDividendService(t, db)
		svc.Now = func() time.Time { return now }

		companyID := testutil.MakeID()
		class := testutil.NewShareClass(companyID).Build(t, db)
		testutil.NewHolding(class, testutil.MakeID()).Build(t, db)

		// 9 days 23 hours out is too soon.
		_, _, err := svc.StartComputation(
			companyID, testutil.MakeID(), money.FromDollars(100, 0), now.Add(10*24*time.Hour-time.Hour), false)
		if !errors.Is(err, apperrors.ErrIssuanceDateTooSoon) {
			t.Errorf("Expected ErrIssuanceDateTooSoon, got %v", err)
		}

		// Exactly 10 days out is allowed.
		_, _, err = svc.StartComputation(
			companyID, testutil.MakeID(), money.FromDollars(100, 0), now.Add(10*24*time.Hour), false)
		if err != nil {
			t.Errorf("Expected a 10-day lead time to be accepted, got %v", err)
		}
	})

	t.Run("rejects a non-positive amount", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestDividendService(t, db)

		_, _, err := svc.StartComputation(
			testutil.MakeID(), testutil.MakeID(), money.FromCents(0), time.Now().Add(30*24*time.Hour), false)
		if !errors.Is(err, apperrors.ErrNonPositiveAmount) {
			t.Errorf("Expected ErrNonPositiveAmount, got %v", err)
		}
	})

	t.Run("rejects a company with no instruments", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestDividendService(t, db)

		_, _, err := svc.StartComputation(
			testutil.MakeID(), testutil.MakeID(), money.FromDollars(100, 0), time.Now().Add(30*24*time.Hour), false)
		if !errors.Is(err, waterfall.ErrNoEligibleInstruments) {
			t.Errorf("Expected ErrNoEligibleInstruments, got %v", err)
		}
	})
}

// TestFinalizeComputation tests the commit step and its idempotence.
//
// WHY: Finalize moves money. It must persist every output row exactly once,
// re-run the waterfall against current holdings rather than trusting the
// preview, and reject a second finalize outright.
func TestFinalizeComputation(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("persists outputs and marks the computation finalized", func(t *testing.T) {
		// Setup
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestDividendService(t, db)
		svc.Now = func() time.Time { return now }

		companyID := testutil.MakeID()
		class := testutil.NewShareClass(companyID).Build(t, db)
		investorA := testutil.MakeID()
		investorB := testutil.MakeID()
		testutil.NewHolding(class, investorA).WithShares(100).Build(t, db)
		testutil.NewHolding(class, investorB).WithShares(100).Build(t, db)

		computation, _, err := svc.StartComputation(
			companyID, testutil.MakeID(), money.FromDollars(500, 0), now.Add(14*24*time.Hour), false)
		if err != nil {
			t.Fatalf("StartComputation() returned unexpected error: %v", err)
		}

		// Execute
		finalized, err := svc.FinalizeComputation(computation.ID)

		// Assert
		if err != nil {
			t.Fatalf("FinalizeComputation() returned unexpected error: %v", err)
		}
		if finalized.Status != model.ComputationStatusFinalized {
			t.Errorf("Expected status FINALIZED, got %s", finalized.Status)
		}
		if finalized.FinalizedAt.IsZero() {
			t.Error("Expected FinalizedAt to be set")
		}

		_, outputs, err := svc.GetComputation(computation.ID)
		if err != nil {
			t.Fatalf("GetComputation() returned unexpected error: %v", err)
		}
		if len(outputs) != 2 {
			t.Fatalf("Expected 2 persisted outputs, got %d", len(outputs))
		}
		var sum money.Money
		for _, o := range outputs {
			if o.ComputationID != computation.ID {
				t.Errorf("Output %s references computation %s", o.ID, o.ComputationID)
			}
			sum = sum.Add(o.DividendAmount)
		}
		if sum != money.FromDollars(500, 0) {
			t.Errorf("Persisted outputs sum to %s, expected $500.00", sum)
		}
	})

	t.Run("finalize reflects holdings changed since the draft", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestDividendService(t, db)
		svc.Now = func() time.Time { return now }

		companyID := testutil.MakeID()
		class := testutil.NewShareClass(companyID).Build(t, db)
		testutil.NewHolding(class, testutil.MakeID()).WithShares(100).Build(t, db)

		computation, preview, err := svc.StartComputation(
			companyID, testutil.MakeID(), money.FromDollars(300, 0), now.Add(14*24*time.Hour), false)
		if err != nil {
			t.Fatalf("StartComputation() returned unexpected error: %v", err)
		}
		if len(preview) != 1 {
			t.Fatalf("Expected a single-holder preview, got %d rows", len(preview))
		}

		// A new holding lands between draft and finalize.
		testutil.NewHolding(class, testutil.MakeID()).WithShares(200).Build(t, db)

		if _, err := svc.FinalizeComputation(computation.ID); err != nil {
			t.Fatalf("FinalizeComputation() returned unexpected error: %v", err)
		}

		_, outputs, err := svc.GetComputation(computation.ID)
		if err != nil {
			t.Fatalf("GetComputation() returned unexpected error: %v", err)
		}
		if len(outputs) != 2 {
			t.Errorf("Expected finalize to pick up the new holding, got %d outputs", len(outputs))
		}
	})

	t.Run("second finalize is rejected", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestDividendService(t, db)
		svc.Now = func() time.Time { return now }

		companyID := testutil.MakeID()
		class := testutil.NewShareClass(companyID).Build(t, db)
		testutil.NewHolding(class, testutil.MakeID()).Build(t, db)

		computation, _, err := svc.StartComputation(
			companyID, testutil.MakeID(), money.FromDollars(100, 0), now.Add(14*24*time.Hour), false)
		if err != nil {
			t.Fatalf("StartComputation() returned unexpected error: %v", err)
		}

		if _, err := svc.FinalizeComputation(computation.ID); err != nil {
			t.Fatalf("First finalize returned unexpected error: %v", err)
		}
		if _, err := svc.FinalizeComputation(computation.ID); !errors.Is(err, apperrors.ErrComputationFinalized) {
			t.Errorf("Expected ErrComputationFinalized, got %v", err)
		}
	})
}

// TestGetComputationsForCompany tests the company listing.
func TestGetComputationsForCompany(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := testutil.NewTestDividendService(t, db)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.Now = func() time.Time { return now }

	companyID := testutil.MakeID()
	class := testutil.NewShareClass(companyID).Build(t, db)
	testutil.NewHolding(class, testutil.MakeID()).Build(t, db)

	otherID := testutil.MakeID()
	otherClass := testutil.NewShareClass(otherID).Build(t, db)
	testutil.NewHolding(otherClass, testutil.MakeID()).Build(t, db)

	for i := 0; i < 2; i++ {
		if _, _, err := svc.StartComputation(companyID, testutil.MakeID(), money.FromDollars(100, 0), now.Add(14*24*time.Hour), false); err != nil {
			t.Fatalf("StartComputation() returned unexpected error: %v", err)
		}
	}
	if _, _, err := svc.StartComputation(otherID, testutil.MakeID(), money.FromDollars(100, 0), now.Add(14*24*time.Hour), false); err != nil {
		t.Fatalf("StartComputation() returned unexpected error: %v", err)
	}

	computations, err := svc.GetComputationsForCompany(companyID)
	if err != nil {
		t.Fatalf("GetComputationsForCompany() returned unexpected error: %v", err)
	}
	if len(computations) != 2 {
		t.Errorf("Expected 2 computations for the company, got %d", len(computations))
	}
}
