// internal/booking/payments.go
package booking

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/openclub/courtbook/internal/db"
)

// PaymentStatus is the closed set of payment lifecycle states the provider
// can report. Anything else fails boundary validation.
type PaymentStatus string

const (
	PaymentApproved  PaymentStatus = "approved"
	PaymentPending   PaymentStatus = "pending"
	PaymentInProcess PaymentStatus = "in_process"
	PaymentFailed    PaymentStatus = "failed"
	PaymentCancelled PaymentStatus = "cancelled"
)

// ProviderEvent is the validated shape of a payment webhook body.
type ProviderEvent struct {
	Status      PaymentStatus `json:"status"`
	AmountCents int64         `json:"amount_cents,omitempty"`
	Currency    string        `json:"currency,omitempty"`
	Detail      string        `json:"detail,omitempty"`
}

// ParseProviderEvent validates a raw webhook payload before any
// interpretation happens.
func ParseProviderEvent(payload []byte) (ProviderEvent, error) {
	var event ProviderEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return ProviderEvent{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	switch event.Status {
	case PaymentApproved, PaymentPending, PaymentInProcess, PaymentFailed, PaymentCancelled:
		return event, nil
	case "":
		return ProviderEvent{}, fmt.Errorf("%w: missing status", ErrInvalidPayload)
	default:
		return ProviderEvent{}, fmt.Errorf("%w: unknown status %q", ErrInvalidPayload, event.Status)
	}
}

// PaymentIngestor consumes payment-provider webhook events and drives the
// reservation state machine. Delivery is at-least-once and possibly out of
// order; the unique provider event id makes effective processing at-most-once.
type PaymentIngestor struct {
	database *db.DB
	clock    clockwork.Clock
	svc      *Service
}

func NewPaymentIngestor(database *db.DB, clock clockwork.Clock, svc *Service) *PaymentIngestor {
	return &PaymentIngestor{database: database, clock: clock, svc: svc}
}

// Ingest records the provider event and advances the referenced reservation.
// The event row is inserted and committed before any state machine effect: a
// duplicate id short-circuits to success without re-driving anything, and a
// malformed or late event stays recorded so the provider's retries stop
// reprocessing it.
func (p *PaymentIngestor) Ingest(ctx context.Context, providerEventID, reservationID string, payload []byte) error {
	if providerEventID == "" {
		return fmt.Errorf("%w: missing provider event id", ErrInvalidPayload)
	}

	reservationRef := sql.NullString{String: reservationID, Valid: reservationID != ""}
	err := p.database.Queries.InsertPaymentEvent(ctx, db.InsertPaymentEventParams{
		ProviderEventID: providerEventID,
		ReservationID:   reservationRef,
		Payload:         string(payload),
		ProcessedAt:     p.clock.Now().UTC(),
	})
	if err != nil {
		if db.IsUniqueViolation(err) {
			log.Ctx(ctx).Info().
				Str("provider_event_id", providerEventID).
				Msg("Duplicate payment event ignored")
			return nil
		}
		return fmt.Errorf("insert payment event: %w", err)
	}

	event, err := ParseProviderEvent(payload)
	if err != nil {
		return err
	}

	if reservationID == "" {
		return ErrUnknownReservation
	}

	switch event.Status {
	case PaymentApproved:
		_, err = p.svc.Confirm(ctx, reservationID)
	case PaymentFailed, PaymentCancelled:
		_, err = p.svc.Cancel(ctx, reservationID, "payment "+string(event.Status), "payment-provider")
	case PaymentPending, PaymentInProcess:
		_, err = p.svc.MarkPaymentPending(ctx, reservationID)
	}
	if err != nil {
		return err
	}

	log.Ctx(ctx).Info().
		Str("provider_event_id", providerEventID).
		Str("reservation_id", reservationID).
		Str("payment_status", string(event.Status)).
		Msg("Payment event processed")
	return nil
}
