// internal/db/queries.go
package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/mattn/go-sqlite3"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx so queries run inside or
// outside a transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Queries struct {
	db DBTX
}

func NewQueries(db DBTX) *Queries {
	return &Queries{db: db}
}

// IsUniqueViolation reports whether err is a SQLite unique constraint failure.
func IsUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

type InsertCourtParams struct {
	ClubID            int64
	Name              string
	PricePerHourCents int64
	Active            bool
}

func (q *Queries) InsertCourt(ctx context.Context, arg InsertCourtParams) (Court, error) {
	result, err := q.db.ExecContext(ctx,
		`INSERT INTO courts (club_id, name, price_per_hour_cents, active)
		 VALUES (?, ?, ?, ?)`,
		arg.ClubID, arg.Name, arg.PricePerHourCents, arg.Active,
	)
	if err != nil {
		return Court{}, err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return Court{}, err
	}
	return q.GetCourt(ctx, id)
}

func (q *Queries) GetCourt(ctx context.Context, id int64) (Court, error) {
	var c Court
	err := q.db.QueryRowContext(ctx,
		`SELECT id, club_id, name, price_per_hour_cents, active, created_at
		 FROM courts WHERE id = ?`, id,
	).Scan(&c.ID, &c.ClubID, &c.Name, &c.PricePerHourCents, &c.Active, &c.CreatedAt)
	return c, err
}

func (q *Queries) UpdateCourtActive(ctx context.Context, id int64, active bool) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE courts SET active = ? WHERE id = ?`, active, id)
	return err
}

type InsertAvailabilityRuleParams struct {
	CourtID     int64
	DayOfWeek   int64
	StartTime   string
	EndTime     string
	SlotMinutes int64
	Active      bool
}

func (q *Queries) InsertAvailabilityRule(ctx context.Context, arg InsertAvailabilityRuleParams) (int64, error) {
	result, err := q.db.ExecContext(ctx,
		`INSERT INTO availability_rules (court_id, day_of_week, start_time, end_time, slot_minutes, active)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		arg.CourtID, arg.DayOfWeek, arg.StartTime, arg.EndTime, arg.SlotMinutes, arg.Active,
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

func (q *Queries) ListActiveRulesForDay(ctx context.Context, courtID int64, dayOfWeek int64) ([]AvailabilityRule, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT id, court_id, day_of_week, start_time, end_time, slot_minutes, active, created_at
		 FROM availability_rules
		 WHERE court_id = ? AND day_of_week = ? AND active = 1
		 ORDER BY start_time`, courtID, dayOfWeek)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []AvailabilityRule
	for rows.Next() {
		var r AvailabilityRule
		if err := rows.Scan(&r.ID, &r.CourtID, &r.DayOfWeek, &r.StartTime, &r.EndTime, &r.SlotMinutes, &r.Active, &r.CreatedAt); err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

type InsertAvailabilityOverrideParams struct {
	CourtID   int64
	Date      string
	StartTime string
	EndTime   string
	Blocked   bool
	Reason    string
	CreatedAt time.Time
}

func (q *Queries) InsertAvailabilityOverride(ctx context.Context, arg InsertAvailabilityOverrideParams) (int64, error) {
	result, err := q.db.ExecContext(ctx,
		`INSERT INTO availability_overrides (court_id, date, start_time, end_time, blocked, reason, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		arg.CourtID, arg.Date, arg.StartTime, arg.EndTime, arg.Blocked, arg.Reason, arg.CreatedAt,
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// ListOverridesForDate returns overrides ordered oldest first so that applying
// them in order leaves the most recently created override in effect.
func (q *Queries) ListOverridesForDate(ctx context.Context, courtID int64, date string) ([]AvailabilityOverride, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT id, court_id, date, start_time, end_time, blocked, reason, created_at
		 FROM availability_overrides
		 WHERE court_id = ? AND date = ?
		 ORDER BY created_at, id`, courtID, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var overrides []AvailabilityOverride
	for rows.Next() {
		var o AvailabilityOverride
		if err := rows.Scan(&o.ID, &o.CourtID, &o.Date, &o.StartTime, &o.EndTime, &o.Blocked, &o.Reason, &o.CreatedAt); err != nil {
			return nil, err
		}
		overrides = append(overrides, o)
	}
	return overrides, rows.Err()
}

func (q *Queries) InsertReservation(ctx context.Context, r Reservation) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO reservations
		 (id, court_id, start_at, end_at, status, expires_at, client_name, client_email, client_phone, price_cents, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.CourtID, r.StartAt, r.EndAt, r.Status, r.ExpiresAt,
		r.ClientName, r.ClientEmail, r.ClientPhone, r.PriceCents, r.CreatedAt, r.UpdatedAt,
	)
	return err
}

func (q *Queries) GetReservation(ctx context.Context, id string) (Reservation, error) {
	var r Reservation
	err := q.db.QueryRowContext(ctx,
		`SELECT id, court_id, start_at, end_at, status, expires_at,
		        client_name, client_email, client_phone, price_cents, created_at, updated_at
		 FROM reservations WHERE id = ?`, id,
	).Scan(&r.ID, &r.CourtID, &r.StartAt, &r.EndAt, &r.Status, &r.ExpiresAt,
		&r.ClientName, &r.ClientEmail, &r.ClientPhone, &r.PriceCents, &r.CreatedAt, &r.UpdatedAt)
	return r, err
}

type UpdateReservationStatusParams struct {
	ID        string
	Status    string
	ExpiresAt sql.NullTime
	UpdatedAt time.Time
}

func (q *Queries) UpdateReservationStatus(ctx context.Context, arg UpdateReservationStatusParams) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE reservations SET status = ?, expires_at = ?, updated_at = ? WHERE id = ?`,
		arg.Status, arg.ExpiresAt, arg.UpdatedAt, arg.ID)
	return err
}

type CountOverlappingParams struct {
	CourtID   int64
	StartAt   time.Time
	EndAt     time.Time
	ExcludeID string
}

// CountOverlapping counts reservations in a blocking status whose half-open
// [start_at, end_at) range intersects the candidate range.
func (q *Queries) CountOverlapping(ctx context.Context, arg CountOverlappingParams) (int64, error) {
	var count int64
	err := q.db.QueryRowContext(ctx,
		`SELECT COUNT(*)
		 FROM reservations
		 WHERE court_id = ?
		   AND id != ?
		   AND status IN ('hold', 'payment_pending', 'confirmed')
		   AND start_at < ?
		   AND end_at > ?`,
		arg.CourtID, arg.ExcludeID, arg.EndAt, arg.StartAt,
	).Scan(&count)
	return count, err
}

// ListExpirableReservations returns holds and payment-pending reservations
// whose deadline has passed.
func (q *Queries) ListExpirableReservations(ctx context.Context, now time.Time) ([]Reservation, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT id, court_id, start_at, end_at, status, expires_at,
		        client_name, client_email, client_phone, price_cents, created_at, updated_at
		 FROM reservations
		 WHERE status IN ('hold', 'payment_pending')
		   AND expires_at IS NOT NULL
		   AND expires_at <= ?
		 ORDER BY expires_at`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reservations []Reservation
	for rows.Next() {
		var r Reservation
		if err := rows.Scan(&r.ID, &r.CourtID, &r.StartAt, &r.EndAt, &r.Status, &r.ExpiresAt,
			&r.ClientName, &r.ClientEmail, &r.ClientPhone, &r.PriceCents, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, err
		}
		reservations = append(reservations, r)
	}
	return reservations, rows.Err()
}

type InsertPaymentEventParams struct {
	ProviderEventID string
	ReservationID   sql.NullString
	Payload         string
	ProcessedAt     time.Time
}

func (q *Queries) InsertPaymentEvent(ctx context.Context, arg InsertPaymentEventParams) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO payment_events (provider_event_id, reservation_id, payload, processed_at)
		 VALUES (?, ?, ?, ?)`,
		arg.ProviderEventID, arg.ReservationID, arg.Payload, arg.ProcessedAt)
	return err
}

func (q *Queries) GetPaymentEventByProviderID(ctx context.Context, providerEventID string) (PaymentEvent, error) {
	var e PaymentEvent
	err := q.db.QueryRowContext(ctx,
		`SELECT id, provider_event_id, reservation_id, payload, processed_at
		 FROM payment_events WHERE provider_event_id = ?`, providerEventID,
	).Scan(&e.ID, &e.ProviderEventID, &e.ReservationID, &e.Payload, &e.ProcessedAt)
	return e, err
}

func (q *Queries) InsertDomainEvent(ctx context.Context, eventType, payload string, createdAt time.Time) (int64, error) {
	result, err := q.db.ExecContext(ctx,
		`INSERT INTO domain_events (type, payload, created_at) VALUES (?, ?, ?)`,
		eventType, payload, createdAt)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// ListDomainEventsAfter returns events with an id greater than the cursor, in
// append order.
func (q *Queries) ListDomainEventsAfter(ctx context.Context, after int64, limit int64) ([]DomainEvent, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT id, type, payload, created_at
		 FROM domain_events
		 WHERE id > ?
		 ORDER BY id
		 LIMIT ?`, after, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []DomainEvent
	for rows.Next() {
		var e DomainEvent
		if err := rows.Scan(&e.ID, &e.Type, &e.Payload, &e.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
