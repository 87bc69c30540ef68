// internal/api/bookings/handlers.go
package bookings

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/openclub/courtbook/internal/booking"
	"github.com/openclub/courtbook/internal/db"
)

var (
	service  *booking.Service
	ingestor *booking.PaymentIngestor
	initOnce sync.Once
)

const requestTimeout = 5 * time.Second

// InitHandlers must be called during server startup before handling requests.
func InitHandlers(svc *booking.Service, ing *booking.PaymentIngestor) {
	if svc == nil || ing == nil {
		return
	}
	initOnce.Do(func() {
		service = svc
		ingestor = ing
	})
}

type slotResponse struct {
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	Open   bool      `json:"open"`
	Reason string    `json:"reason,omitempty"`
}

type reservationResponse struct {
	ID          string     `json:"id"`
	CourtID     int64      `json:"court_id"`
	StartAt     time.Time  `json:"start_at"`
	EndAt       time.Time  `json:"end_at"`
	Status      string     `json:"status"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	ClientName  string     `json:"client_name,omitempty"`
	ClientEmail string     `json:"client_email,omitempty"`
	ClientPhone string     `json:"client_phone,omitempty"`
	PriceCents  int64      `json:"price_cents"`
}

func toReservationResponse(r db.Reservation) reservationResponse {
	resp := reservationResponse{
		ID:          r.ID,
		CourtID:     r.CourtID,
		StartAt:     r.StartAt,
		EndAt:       r.EndAt,
		Status:      r.Status,
		ClientName:  r.ClientName,
		ClientEmail: r.ClientEmail,
		ClientPhone: r.ClientPhone,
		PriceCents:  r.PriceCents,
	}
	if r.ExpiresAt.Valid {
		expiresAt := r.ExpiresAt.Time
		resp.ExpiresAt = &expiresAt
	}
	return resp
}

// GET /api/v1/courts/{id}/slots?date=YYYY-MM-DD
func HandleCourtSlots(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	if service == nil {
		logger.Error().Msg("Booking handlers not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	courtID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid court id", http.StatusBadRequest)
		return
	}
	date, err := time.Parse("2006-01-02", strings.TrimSpace(r.URL.Query().Get("date")))
	if err != nil {
		http.Error(w, "Invalid or missing date", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	slots, err := service.Availability().ComputeSlots(ctx, courtID, date)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	resp := make([]slotResponse, 0, len(slots))
	for _, slot := range slots {
		resp = append(resp, slotResponse(slot))
	}
	writeJSON(w, http.StatusOK, map[string]any{"slots": resp})
}

type createHoldRequest struct {
	CourtID     int64     `json:"court_id"`
	StartAt     time.Time `json:"start_at"`
	EndAt       time.Time `json:"end_at"`
	TTLSeconds  int64     `json:"ttl_seconds,omitempty"`
	ClientName  string    `json:"client_name,omitempty"`
	ClientEmail string    `json:"client_email,omitempty"`
	ClientPhone string    `json:"client_phone,omitempty"`
}

// POST /api/v1/holds
func HandleCreateHold(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	if service == nil {
		logger.Error().Msg("Booking handlers not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	var req createHoldRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	reservation, err := service.CreateHold(ctx, booking.CreateHoldInput{
		CourtID: req.CourtID,
		StartAt: req.StartAt,
		EndAt:   req.EndAt,
		TTL:     time.Duration(req.TTLSeconds) * time.Second,
		Client: booking.ClientInfo{
			Name:  req.ClientName,
			Email: req.ClientEmail,
			Phone: req.ClientPhone,
		},
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toReservationResponse(reservation))
}

// POST /api/v1/holds/{id}/confirm
func HandleConfirm(w http.ResponseWriter, r *http.Request) {
	handleTransition(w, r, func(ctx context.Context, id string) (db.Reservation, error) {
		return service.Confirm(ctx, id)
	})
}

type cancelRequest struct {
	Reason string `json:"reason,omitempty"`
	Actor  string `json:"actor,omitempty"`
}

// POST /api/v1/holds/{id}/cancel
func HandleCancel(w http.ResponseWriter, r *http.Request) {
	var req cancelRequest
	if r.Body != nil {
		// Body is optional; a decode failure on an empty body is fine.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	handleTransition(w, r, func(ctx context.Context, id string) (db.Reservation, error) {
		return service.Cancel(ctx, id, req.Reason, req.Actor)
	})
}

// POST /api/v1/holds/{id}/payment-pending
func HandlePaymentPending(w http.ResponseWriter, r *http.Request) {
	handleTransition(w, r, func(ctx context.Context, id string) (db.Reservation, error) {
		return service.MarkPaymentPending(ctx, id)
	})
}

func handleTransition(w http.ResponseWriter, r *http.Request, op func(context.Context, string) (db.Reservation, error)) {
	logger := log.Ctx(r.Context())
	if service == nil {
		logger.Error().Msg("Booking handlers not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		http.Error(w, "Reservation id is required", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	reservation, err := op(ctx, id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toReservationResponse(reservation))
}

type webhookRequest struct {
	ProviderEventID string          `json:"provider_event_id"`
	ReservationID   string          `json:"reservation_id"`
	Payload         json.RawMessage `json:"payload"`
}

// POST /api/v1/webhooks/payments
func HandlePaymentWebhook(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	if ingestor == nil {
		logger.Error().Msg("Booking handlers not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	var req webhookRequest
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	if err := ingestor.Ingest(ctx, req.ProviderEventID, req.ReservationID, req.Payload); err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GET /api/v1/events?after=N&limit=M
func HandleListEvents(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	if service == nil {
		logger.Error().Msg("Booking handlers not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	after, _ := strconv.ParseInt(r.URL.Query().Get("after"), 10, 64)
	limit, _ := strconv.ParseInt(r.URL.Query().Get("limit"), 10, 64)

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	events, err := service.ListEventsAfter(ctx, after, limit)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to list domain events")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	type eventResponse struct {
		ID        int64           `json:"id"`
		Type      string          `json:"type"`
		Payload   json.RawMessage `json:"payload"`
		CreatedAt time.Time       `json:"created_at"`
	}
	resp := make([]eventResponse, 0, len(events))
	for _, event := range events {
		resp = append(resp, eventResponse{
			ID:        event.ID,
			Type:      event.Type,
			Payload:   json.RawMessage(event.Payload),
			CreatedAt: event.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": resp})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, booking.ErrInvalidRange), errors.Is(err, booking.ErrInvalidPayload):
		status = http.StatusBadRequest
	case errors.Is(err, booking.ErrUnknownCourt), errors.Is(err, booking.ErrUnknownReservation), errors.Is(err, sql.ErrNoRows):
		status = http.StatusNotFound
	case errors.Is(err, booking.ErrSlotConflict), errors.Is(err, booking.ErrInvalidTransition):
		status = http.StatusConflict
	case errors.Is(err, booking.ErrSlotUnavailable):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, booking.ErrHoldExpired):
		status = http.StatusGone
	}

	if status == http.StatusInternalServerError {
		log.Ctx(r.Context()).Error().Err(err).Msg("Booking operation failed")
		http.Error(w, "Internal Server Error", status)
		return
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
