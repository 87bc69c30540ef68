// internal/booking/reservation.go
package booking

// Status is a reservation lifecycle state. Reservations move
// hold -> payment_pending -> confirmed on the happy path; holds and pending
// payments expire past their deadline; any non-terminal state can be
// cancelled.
type Status string

const (
	StatusHold           Status = "hold"
	StatusPaymentPending Status = "payment_pending"
	StatusConfirmed      Status = "confirmed"
	StatusCancelled      Status = "cancelled"
	StatusExpired        Status = "expired"
)

// Terminal reports whether no further transitions are allowed from s.
func (s Status) Terminal() bool {
	switch s {
	case StatusConfirmed, StatusCancelled, StatusExpired:
		return true
	}
	return false
}

// Blocking reports whether a reservation in this status occupies its time
// range for conflict purposes.
func (s Status) Blocking() bool {
	switch s {
	case StatusHold, StatusPaymentPending, StatusConfirmed:
		return true
	}
	return false
}

// Expirable reports whether the sweeper may reclaim a reservation in this
// status once its deadline passes.
func (s Status) Expirable() bool {
	return s == StatusHold || s == StatusPaymentPending
}

// ClientInfo carries the booking client's contact fields. The core stores
// them on the reservation but does not interpret them.
type ClientInfo struct {
	Name  string
	Email string
	Phone string
}
