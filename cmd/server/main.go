package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fernet/fernet-go"
	"github.com/sirupsen/logrus"

	"github.com/openequity/Settlement-Backend/internal/api"
	"github.com/openequity/Settlement-Backend/internal/audit"
	"github.com/openequity/Settlement-Backend/internal/config"
	"github.com/openequity/Settlement-Backend/internal/database"
	"github.com/openequity/Settlement-Backend/internal/provider"
	"github.com/openequity/Settlement-Backend/internal/repository"
	"github.com/openequity/Settlement-Backend/internal/scheduler"
	"github.com/openequity/Settlement-Backend/internal/service"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	// Open database connection
	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	log.Printf("Connected to database: %s", cfg.Database.Path)

	// Create repositories
	capTableRepo := repository.NewCapTableRepository(db)
	dividendRepo := repository.NewDividendRepository(db)
	tenderRepo := repository.NewTenderRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	// Audit trail. Without a configured key, fingerprints use an ephemeral
	// one and do not survive restarts.
	fernetKey := cfg.Audit.FernetKey
	if fernetKey == "" {
		var key fernet.Key
		if err := key.Generate(); err != nil {
			log.Fatalf("Failed to generate audit key: %v", err)
		}
		fernetKey = key.Encode()
		logger.Warn("AUDIT_FERNET_KEY not set, using ephemeral key")
	}
	fingerprinter, err := audit.NewFingerprinter(fernetKey)
	if err != nil {
		log.Fatalf("Failed to initialize audit fingerprinter: %v", err)
	}
	auditLog := audit.NewLogger(auditRepo, logger)

	providerClient := provider.NewHTTPClient(cfg.Provider.BaseURL, cfg.Provider.Token, cfg.Provider.Timeout)

	// Create services
	notifier := &service.LogNotifier{Log: logger}
	systemService := service.NewSystemService(db)
	dividendService := service.NewDividendService(dividendRepo, capTableRepo, notifier)
	tenderService := service.NewTenderService(tenderRepo, capTableRepo, notifier)
	capTableService := service.NewCapTableService(capTableRepo)
	settlementService := service.NewSettlementService(
		paymentRepo,
		providerClient,
		auditLog,
		fingerprinter,
		notifier,
		nil, // requeuer wired below, after the dispatcher exists
		logger,
	)

	dispatcher := scheduler.NewDispatcher(
		settlementService,
		cfg.Dispatch.Workers,
		cfg.Dispatch.QueueSize,
		cfg.Dispatch.MaxRetries,
		cfg.Dispatch.BaseBackoff,
		logger,
	)
	settlementService.SetRequeuer(dispatcher)

	rootCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := dispatcher.Run(rootCtx); err != nil {
			logger.WithError(err).Error("dispatcher stopped")
		}
	}()

	reconciler := scheduler.NewReconciler(
		settlementService,
		cfg.Scheduler.CronSpec,
		cfg.Scheduler.MaxReconcileAttempts,
		cfg.Scheduler.Concurrency,
		logger,
	)
	if err := reconciler.Start(rootCtx); err != nil {
		log.Fatalf("Failed to start reconciliation scheduler: %v", err)
	}

	// Create router
	router := api.NewRouter(systemService, dividendService, tenderService, settlementService, capTableService, cfg)

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Starting server on %s", cfg.Server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	reconciler.Stop()
	cancel()

	// Graceful shutdown with timeout
	ctx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}
