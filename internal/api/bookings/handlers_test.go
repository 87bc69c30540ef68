package bookings

// NOTE: Tests cannot use t.Parallel() due to shared package state.

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/openclub/courtbook/internal/booking"
	"github.com/openclub/courtbook/internal/db"
	"github.com/openclub/courtbook/internal/testutil"
)

var monday = time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)

func setupBookingsTest(t *testing.T) (*db.DB, int64) {
	t.Helper()

	database := testutil.NewTestDB(t)
	courtID := testutil.SeedCourt(t, database)
	testutil.SeedRule(t, database, courtID, int64(monday.Weekday()), "08:00", "12:00", 60)

	clock := clockwork.NewFakeClockAt(monday.Add(7 * time.Hour))
	svc := booking.NewService(database, clock, booking.WithHoldTTL(10*time.Minute))
	ing := booking.NewPaymentIngestor(database, clock, svc)

	service = nil
	ingestor = nil
	initOnce = sync.Once{}
	InitHandlers(svc, ing)

	t.Cleanup(func() {
		service = nil
		ingestor = nil
		initOnce = sync.Once{}
	})

	return database, courtID
}

func TestHandleCourtSlots(t *testing.T) {
	_, courtID := setupBookingsTest(t)

	req := httptest.NewRequest(http.MethodGet,
		fmt.Sprintf("/api/v1/courts/%d/slots?date=2025-06-02", courtID), nil)
	req.SetPathValue("id", fmt.Sprintf("%d", courtID))
	recorder := httptest.NewRecorder()

	HandleCourtSlots(recorder, req)

	if recorder.Code != http.StatusOK {
		t.Fatalf("status: %d body: %s", recorder.Code, recorder.Body.String())
	}
	var body struct {
		Slots []slotResponse `json:"slots"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(body.Slots) != 4 {
		t.Fatalf("slots = %d, want 4", len(body.Slots))
	}
}

func TestHandleCourtSlots_BadDate(t *testing.T) {
	_, courtID := setupBookingsTest(t)

	req := httptest.NewRequest(http.MethodGet,
		fmt.Sprintf("/api/v1/courts/%d/slots?date=tomorrow", courtID), nil)
	req.SetPathValue("id", fmt.Sprintf("%d", courtID))
	recorder := httptest.NewRecorder()

	HandleCourtSlots(recorder, req)

	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("status: %d", recorder.Code)
	}
}

func postHold(t *testing.T, courtID int64, startHour, endHour int) *httptest.ResponseRecorder {
	t.Helper()

	payload := fmt.Sprintf(`{"court_id":%d,"start_at":%q,"end_at":%q,"client_name":"Ana"}`,
		courtID,
		monday.Add(time.Duration(startHour)*time.Hour).Format(time.RFC3339),
		monday.Add(time.Duration(endHour)*time.Hour).Format(time.RFC3339),
	)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/holds", strings.NewReader(payload))
	recorder := httptest.NewRecorder()
	HandleCreateHold(recorder, req)
	return recorder
}

func TestHandleCreateHold(t *testing.T) {
	_, courtID := setupBookingsTest(t)

	recorder := postHold(t, courtID, 10, 11)
	if recorder.Code != http.StatusCreated {
		t.Fatalf("status: %d body: %s", recorder.Code, recorder.Body.String())
	}

	var resp reservationResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if resp.Status != "hold" {
		t.Errorf("status = %s, want hold", resp.Status)
	}
	if resp.ExpiresAt == nil {
		t.Error("expires_at missing from hold response")
	}
}

func TestHandleCreateHold_ConflictMapsTo409(t *testing.T) {
	_, courtID := setupBookingsTest(t)

	if recorder := postHold(t, courtID, 10, 11); recorder.Code != http.StatusCreated {
		t.Fatalf("first hold status: %d", recorder.Code)
	}
	if recorder := postHold(t, courtID, 10, 11); recorder.Code != http.StatusConflict {
		t.Fatalf("second hold status: %d, want 409", recorder.Code)
	}
}

func TestHandleCreateHold_OutsideScheduleMapsTo422(t *testing.T) {
	_, courtID := setupBookingsTest(t)

	if recorder := postHold(t, courtID, 13, 14); recorder.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status: %d, want 422", recorder.Code)
	}
}

func TestHandleConfirmAndCancel(t *testing.T) {
	_, courtID := setupBookingsTest(t)

	recorder := postHold(t, courtID, 10, 11)
	var hold reservationResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &hold); err != nil {
		t.Fatalf("decode hold: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/holds/"+hold.ID+"/confirm", nil)
	req.SetPathValue("id", hold.ID)
	confirmRecorder := httptest.NewRecorder()
	HandleConfirm(confirmRecorder, req)
	if confirmRecorder.Code != http.StatusOK {
		t.Fatalf("confirm status: %d body: %s", confirmRecorder.Code, confirmRecorder.Body.String())
	}

	// Cancelling a confirmed reservation is allowed.
	req = httptest.NewRequest(http.MethodPost, "/api/v1/holds/"+hold.ID+"/cancel",
		strings.NewReader(`{"reason":"rainout","actor":"staff:bo"}`))
	req.SetPathValue("id", hold.ID)
	cancelRecorder := httptest.NewRecorder()
	HandleCancel(cancelRecorder, req)
	if cancelRecorder.Code != http.StatusOK {
		t.Fatalf("cancel status: %d body: %s", cancelRecorder.Code, cancelRecorder.Body.String())
	}

	var cancelled reservationResponse
	if err := json.Unmarshal(cancelRecorder.Body.Bytes(), &cancelled); err != nil {
		t.Fatalf("decode cancel: %v", err)
	}
	if cancelled.Status != "cancelled" {
		t.Errorf("status = %s, want cancelled", cancelled.Status)
	}
}

func TestHandleTransition_UnknownReservationMapsTo404(t *testing.T) {
	setupBookingsTest(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/holds/nope/confirm", nil)
	req.SetPathValue("id", "nope")
	recorder := httptest.NewRecorder()
	HandleConfirm(recorder, req)
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("status: %d, want 404", recorder.Code)
	}
}

func TestHandlePaymentWebhook_DuplicateDeliveryIsOK(t *testing.T) {
	_, courtID := setupBookingsTest(t)

	recorder := postHold(t, courtID, 10, 11)
	var hold reservationResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &hold); err != nil {
		t.Fatalf("decode hold: %v", err)
	}

	webhook := fmt.Sprintf(`{"provider_event_id":"evt-1","reservation_id":%q,"payload":{"status":"approved"}}`, hold.ID)
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/payments", strings.NewReader(webhook))
		webhookRecorder := httptest.NewRecorder()
		HandlePaymentWebhook(webhookRecorder, req)
		if webhookRecorder.Code != http.StatusOK {
			t.Fatalf("delivery %d status: %d body: %s", i+1, webhookRecorder.Code, webhookRecorder.Body.String())
		}
	}
}

func TestHandleListEvents_CursorReadsForward(t *testing.T) {
	_, courtID := setupBookingsTest(t)

	if recorder := postHold(t, courtID, 10, 11); recorder.Code != http.StatusCreated {
		t.Fatalf("hold status: %d", recorder.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/events?after=0", nil)
	recorder := httptest.NewRecorder()
	HandleListEvents(recorder, req)
	if recorder.Code != http.StatusOK {
		t.Fatalf("status: %d", recorder.Code)
	}

	var body struct {
		Events []struct {
			ID   int64  `json:"id"`
			Type string `json:"type"`
		} `json:"events"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(body.Events) != 1 || body.Events[0].Type != "reservation.hold" {
		t.Fatalf("unexpected events: %+v", body.Events)
	}

	// Reading past the cursor returns nothing new.
	req = httptest.NewRequest(http.MethodGet,
		fmt.Sprintf("/api/v1/events?after=%d", body.Events[0].ID), nil)
	recorder = httptest.NewRecorder()
	HandleListEvents(recorder, req)
	if err := json.Unmarshal(recorder.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode second body: %v", err)
	}
	if len(body.Events) != 0 {
		t.Fatalf("expected no events past cursor, got %d", len(body.Events))
	}
}
