// internal/booking/errors.go
package booking

import "errors"

var (
	// ErrInvalidRange indicates a malformed time range (start >= end).
	ErrInvalidRange = errors.New("invalid time range")
	// ErrSlotUnavailable indicates the range is not covered by open computed slots.
	ErrSlotUnavailable = errors.New("slot unavailable")
	// ErrSlotConflict indicates an overlap with another blocking reservation.
	ErrSlotConflict = errors.New("slot conflict")
	// ErrHoldExpired indicates an operation attempted past the hold deadline.
	ErrHoldExpired = errors.New("hold expired")
	// ErrInvalidTransition indicates a state machine rule violation.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrUnknownReservation indicates a reservation lookup failure.
	ErrUnknownReservation = errors.New("unknown reservation")
	// ErrUnknownCourt indicates a court lookup failure.
	ErrUnknownCourt = errors.New("unknown court")
	// ErrInvalidPayload indicates a payment payload that failed boundary validation.
	ErrInvalidPayload = errors.New("invalid payment payload")
)
