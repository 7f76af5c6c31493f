package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/openequity/Settlement-Backend/internal/api/handlers"
	custommiddleware "github.com/openequity/Settlement-Backend/internal/api/middleware"
	"github.com/openequity/Settlement-Backend/internal/config"
	"github.com/openequity/Settlement-Backend/internal/service"
)

// NewRouter creates and configures the HTTP router
func NewRouter(
	systemService *service.SystemService,
	dividendService *service.DividendService,
	tenderService *service.TenderService,
	settlementService *service.SettlementService,
	capTableService *service.CapTableService,
	cfg *config.Config,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(custommiddleware.Logger)
	r.Use(middleware.Recoverer)

	// CORS middleware
	corsMiddleware := custommiddleware.NewCORS(cfg.CORS.AllowedOrigins)
	r.Use(corsMiddleware.Handler)

	// API routes
	r.Route("/api", func(r chi.Router) {
		// System namespace
		r.Route("/system", func(r chi.Router) {
			systemHandler := handlers.NewSystemHandler(systemService)
			r.Get("/health", systemHandler.Health)
			r.Get("/version", systemHandler.Version)
		})

		r.Route("/dividend", func(r chi.Router) {
			dividendHandler := handlers.NewDividendHandler(dividendService)
			r.Post("/computation", dividendHandler.CreateComputation)
			r.Route("/computation/{uuid}", func(r chi.Router) {
				r.Use(custommiddleware.ValidateUUIDMiddleware)
				r.Get("/", dividendHandler.GetComputation)
				r.Post("/finalize", dividendHandler.FinalizeComputation)
			})
			r.Route("/company/{uuid}", func(r chi.Router) {
				r.Use(custommiddleware.ValidateUUIDMiddleware)
				r.Get("/", dividendHandler.ComputationsPerCompany)
			})
		})

		r.Route("/tender", func(r chi.Router) {
			tenderHandler := handlers.NewTenderHandler(tenderService)
			r.Post("/", tenderHandler.CreateOffer)
			r.Route("/{uuid}", func(r chi.Router) {
				r.Use(custommiddleware.ValidateUUIDMiddleware)
				r.Get("/", tenderHandler.GetOffer)
				r.Post("/bid", tenderHandler.SubmitBid)
				r.Delete("/bid/{bidUuid}", tenderHandler.WithdrawBid)
				r.Post("/clear", tenderHandler.ClearOffer)
			})
		})

		r.Route("/captable", func(r chi.Router) {
			capTableHandler := handlers.NewCapTableHandler(capTableService)
			r.Route("/{uuid}", func(r chi.Router) {
				r.Use(custommiddleware.ValidateUUIDMiddleware)
				r.Get("/", capTableHandler.GetSnapshot)
			})
		})

		r.Route("/payment", func(r chi.Router) {
			paymentHandler := handlers.NewPaymentHandler(settlementService)
			r.Post("/", paymentHandler.CreatePayment)
			r.Route("/company/{uuid}", func(r chi.Router) {
				r.Use(custommiddleware.ValidateUUIDMiddleware)
				r.Get("/", paymentHandler.PaymentsPerCompany)
			})
			r.Route("/{uuid}", func(r chi.Router) {
				r.Use(custommiddleware.ValidateUUIDMiddleware)
				r.Get("/", paymentHandler.GetPayment)
			})
		})

		// Provider webhook delivery, authenticated with the shared API key.
		r.Route("/webhooks", func(r chi.Router) {
			webhookHandler := handlers.NewWebhookHandler(settlementService)
			r.With(custommiddleware.APIKeyMiddleware).Post("/transfers", webhookHandler.TransferStateChange)
		})
	})

	return r
}
