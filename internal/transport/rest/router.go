package rest

import (
	"database/sql"
	"log/slog"

	"github.com/go-chi/chi"
	chiMiddleware "github.com/go-chi/chi/middleware"

	"github.com/jameskipngetich/paymentService/internal/payment"
	"github.com/jameskipngetich/paymentService/internal/transport/middleware"
)

// RegisterAllRoutes wires the payment API. The callback route stays
// outside any auth or CORS restrictions: the gateway must always be able
// to reach it and must always get a 200 back.
func RegisterAllRoutes(router *chi.Mux, db *sql.DB, paymentHandler *payment.Handler, webhookHandler *payment.WebhookHandler, logger *slog.Logger) {
	healthHandler := NewHealthHandler(db)

	router.Use(middleware.CORS)
	router.Use(chiMiddleware.RequestID)
	router.Use(middleware.RequestID)
	router.Use(middleware.LoggingMiddleware(logger))
	router.Use(middleware.RecoveryMiddleware(logger))

	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", healthHandler.healthCheckHandler)
		r.Get("/ping", healthHandler.pingHandler)

		r.Route("/payments", func(pr chi.Router) {
			if webhookHandler != nil {
				pr.Post("/callback", webhookHandler.HandleCallback)
			}
			if paymentHandler != nil {
				pr.Post("/", paymentHandler.InitiatePayment)
				pr.Get("/", paymentHandler.ListPayments)
				pr.Get("/{ref}", paymentHandler.GetPayment)
			}
		})
	})
}
