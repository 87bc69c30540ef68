package booking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/openclub/courtbook/internal/db"
)

func newTestIngestor(t *testing.T) (*db.DB, *Service, *PaymentIngestor, db.Reservation) {
	t.Helper()

	database, clock, svc, courtID := newTestService(t)
	ingestor := NewPaymentIngestor(database, clock, svc)

	hold, err := svc.CreateHold(context.Background(), CreateHoldInput{
		CourtID: courtID,
		StartAt: monday.Add(10 * time.Hour),
		EndAt:   monday.Add(11 * time.Hour),
	})
	if err != nil {
		t.Fatalf("create hold: %v", err)
	}
	return database, svc, ingestor, hold
}

func countPaymentEvents(t *testing.T, database *db.DB) int {
	t.Helper()

	var count int
	err := database.QueryRowContext(context.Background(),
		"SELECT COUNT(*) FROM payment_events").Scan(&count)
	if err != nil {
		t.Fatalf("count payment events: %v", err)
	}
	return count
}

func TestIngest_ApprovedConfirmsReservation(t *testing.T) {
	database, svc, ingestor, hold := newTestIngestor(t)
	ctx := context.Background()

	if err := ingestor.Ingest(ctx, "evt-1", hold.ID, []byte(`{"status":"approved","amount_cents":2000,"currency":"EUR"}`)); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	after, err := svc.database.Queries.GetReservation(ctx, hold.ID)
	if err != nil {
		t.Fatalf("get reservation: %v", err)
	}
	if Status(after.Status) != StatusConfirmed {
		t.Errorf("status = %s, want confirmed", after.Status)
	}
	if got := countPaymentEvents(t, database); got != 1 {
		t.Errorf("payment events = %d, want 1", got)
	}
}

func TestIngest_DuplicateEventProcessedOnce(t *testing.T) {
	database, _, ingestor, hold := newTestIngestor(t)
	ctx := context.Background()

	payload := []byte(`{"status":"approved"}`)
	if err := ingestor.Ingest(ctx, "evt-1", hold.ID, payload); err != nil {
		t.Fatalf("first ingest: %v", err)
	}
	// The provider redelivers the same event; this must be a quiet success.
	if err := ingestor.Ingest(ctx, "evt-1", hold.ID, payload); err != nil {
		t.Fatalf("replayed ingest: %v", err)
	}

	if got := countPaymentEvents(t, database); got != 1 {
		t.Errorf("payment events = %d, want 1", got)
	}
	if got := countEventsByType(t, database, "reservation.confirmed"); got != 1 {
		t.Errorf("reservation.confirmed events = %d, want 1", got)
	}
}

func TestIngest_PendingMarksPaymentPending(t *testing.T) {
	_, svc, ingestor, hold := newTestIngestor(t)
	ctx := context.Background()

	if err := ingestor.Ingest(ctx, "evt-1", hold.ID, []byte(`{"status":"in_process"}`)); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	after, err := svc.database.Queries.GetReservation(ctx, hold.ID)
	if err != nil {
		t.Fatalf("get reservation: %v", err)
	}
	if Status(after.Status) != StatusPaymentPending {
		t.Errorf("status = %s, want payment_pending", after.Status)
	}
}

func TestIngest_FailedCancelsReservation(t *testing.T) {
	database, svc, ingestor, hold := newTestIngestor(t)
	ctx := context.Background()

	if err := ingestor.Ingest(ctx, "evt-1", hold.ID, []byte(`{"status":"failed"}`)); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	after, err := svc.database.Queries.GetReservation(ctx, hold.ID)
	if err != nil {
		t.Fatalf("get reservation: %v", err)
	}
	if Status(after.Status) != StatusCancelled {
		t.Errorf("status = %s, want cancelled", after.Status)
	}
	if got := countEventsByType(t, database, "reservation.cancelled"); got != 1 {
		t.Errorf("reservation.cancelled events = %d, want 1", got)
	}
}

func TestIngest_UnknownReservationStillRecordsEvent(t *testing.T) {
	database, _, ingestor, _ := newTestIngestor(t)
	ctx := context.Background()

	err := ingestor.Ingest(ctx, "evt-late", "no-such-reservation", []byte(`{"status":"approved"}`))
	if !errors.Is(err, ErrUnknownReservation) {
		t.Fatalf("expected ErrUnknownReservation, got %v", err)
	}

	// The row is durably recorded so the provider's retry of the same id is
	// not reprocessed.
	if _, err := database.Queries.GetPaymentEventByProviderID(ctx, "evt-late"); err != nil {
		t.Fatalf("payment event row missing: %v", err)
	}
	if err := ingestor.Ingest(ctx, "evt-late", "no-such-reservation", []byte(`{"status":"approved"}`)); err != nil {
		t.Fatalf("retry of recorded event should succeed, got %v", err)
	}
}

func TestIngest_InvalidPayloadRecordedAndRejected(t *testing.T) {
	database, _, ingestor, hold := newTestIngestor(t)
	ctx := context.Background()

	err := ingestor.Ingest(ctx, "evt-bad", hold.ID, []byte(`{"status":"mystery"}`))
	if !errors.Is(err, ErrInvalidPayload) {
		t.Fatalf("expected ErrInvalidPayload, got %v", err)
	}
	if got := countPaymentEvents(t, database); got != 1 {
		t.Errorf("payment events = %d, want 1", got)
	}
}

func TestIngest_MissingProviderEventID(t *testing.T) {
	_, _, ingestor, hold := newTestIngestor(t)

	err := ingestor.Ingest(context.Background(), "", hold.ID, []byte(`{"status":"approved"}`))
	if !errors.Is(err, ErrInvalidPayload) {
		t.Fatalf("expected ErrInvalidPayload, got %v", err)
	}
}

func TestParseProviderEvent(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    PaymentStatus
		wantErr bool
	}{
		{"approved", `{"status":"approved"}`, PaymentApproved, false},
		{"pending", `{"status":"pending"}`, PaymentPending, false},
		{"in process", `{"status":"in_process"}`, PaymentInProcess, false},
		{"failed", `{"status":"failed"}`, PaymentFailed, false},
		{"cancelled", `{"status":"cancelled"}`, PaymentCancelled, false},
		{"missing status", `{}`, "", true},
		{"unknown status", `{"status":"refunded"}`, "", true},
		{"not json", `status=approved`, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event, err := ParseProviderEvent([]byte(tt.payload))
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidPayload) {
					t.Fatalf("expected ErrInvalidPayload, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if event.Status != tt.want {
				t.Errorf("status = %s, want %s", event.Status, tt.want)
			}
		})
	}
}
