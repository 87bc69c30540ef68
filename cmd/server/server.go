// cmd/server/server.go
package main

import (
	"net/http"
	"time"

	"github.com/openclub/courtbook/internal/api"
	"github.com/openclub/courtbook/internal/api/bookings"
	"github.com/openclub/courtbook/internal/booking"
)

func newServer(config *Config, svc *booking.Service, ingestor *booking.PaymentIngestor) *http.Server {
	router := http.NewServeMux()

	// Setup middleware chain
	handler := api.ChainMiddleware(
		router,
		api.WithLogging,
		api.WithRecovery,
		api.WithRequestID,
	)

	bookings.InitHandlers(svc, ingestor)
	registerRoutes(router)

	return &http.Server{
		Addr:         ":" + config.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

func registerRoutes(mux *http.ServeMux) {
	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Booking routes
	mux.HandleFunc("GET /api/v1/courts/{id}/slots", bookings.HandleCourtSlots)
	mux.HandleFunc("POST /api/v1/holds", bookings.HandleCreateHold)
	mux.HandleFunc("POST /api/v1/holds/{id}/payment-pending", bookings.HandlePaymentPending)
	mux.HandleFunc("POST /api/v1/holds/{id}/confirm", bookings.HandleConfirm)
	mux.HandleFunc("POST /api/v1/holds/{id}/cancel", bookings.HandleCancel)

	// Payment provider webhooks
	mux.HandleFunc("POST /api/v1/webhooks/payments", bookings.HandlePaymentWebhook)

	// Domain event stream for notification/audit consumers
	mux.HandleFunc("GET /api/v1/events", bookings.HandleListEvents)
}
