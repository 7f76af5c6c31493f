package testutil

import (
	"database/sql"
	"fmt"
	"io"
	"math/rand"
	"testing"

	"github.com/fernet/fernet-go"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/openequity/Settlement-Backend/internal/audit"
	"github.com/openequity/Settlement-Backend/internal/repository"
	"github.com/openequity/Settlement-Backend/internal/service"
)

// MakeID returns a fresh UUID string.
func MakeID() string {
	return uuid.New().String()
}

// MakeName returns a unique name with the given prefix.
func MakeName(prefix string) string {
	return fmt.Sprintf("%s-%04d", prefix, rand.Intn(10000))
}

// QuietLogger returns a logrus logger that discards output, keeping test
// runs readable.
func QuietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// NewTestFingerprinter returns a fingerprinter with a generated key.
func NewTestFingerprinter(t *testing.T) *audit.Fingerprinter {
	t.Helper()

	var key fernet.Key
	if err := key.Generate(); err != nil {
		t.Fatalf("Failed to generate fernet key: %v", err)
	}
	fingerprinter, err := audit.NewFingerprinter(key.Encode())
	if err != nil {
		t.Fatalf("Failed to create fingerprinter: %v", err)
	}
	return fingerprinter
}

func NewTestDividendService(t *testing.T, db *sql.DB) *service.DividendService {
	t.Helper()

	dividendRepo := repository.NewDividendRepository(db)
	capTableRepo := repository.NewCapTableRepository(db)

	return service.NewDividendService(
		dividendRepo,
		capTableRepo,
		&service.LogNotifier{Log: QuietLogger()},
	)
}

func NewTestTenderService(t *testing.T, db *sql.DB) *service.TenderService {
	t.Helper()

	tenderRepo := repository.NewTenderRepository(db)
	capTableRepo := repository.NewCapTableRepository(db)

	return service.NewTenderService(
		tenderRepo,
		capTableRepo,
		&service.LogNotifier{Log: QuietLogger()},
	)
}

// NewTestSettlementService wires a settlement service around the given fake
// provider, with a persisted audit trail and no requeuer.
func NewTestSettlementService(t *testing.T, db *sql.DB, fake *FakeProvider) *service.SettlementService {
	t.Helper()

	logger := QuietLogger()
	paymentRepo := repository.NewPaymentRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	return service.NewSettlementService(
		paymentRepo,
		fake,
		audit.NewLogger(auditRepo, logger),
		NewTestFingerprinter(t),
		&service.LogNotifier{Log: logger},
		nil,
		logger,
	)
}
