// internal/booking/service.go
package booking

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/nyaruka/phonenumbers"
	"github.com/rs/zerolog/log"

	"github.com/openclub/courtbook/internal/db"
)

const (
	defaultHoldTTL        = 10 * time.Minute
	defaultMaxAdvanceDays = 60
	defaultPhoneRegion    = "US"
)

// Service owns the reservation lifecycle. Every status write in the system
// goes through one of its operations; each successful transition records
// exactly one domain event in the same transaction.
type Service struct {
	database *db.DB
	clock    clockwork.Clock
	calc     *AvailabilityCalculator

	holdTTL        time.Duration
	maxAdvanceDays int
	phoneRegion    string

	courtLocks       *keyedMutex
	reservationLocks *keyedMutex
}

type ServiceOption func(*Service)

// WithHoldTTL overrides the default TTL for new holds.
func WithHoldTTL(d time.Duration) ServiceOption {
	return func(s *Service) {
		if d > 0 {
			s.holdTTL = d
		}
	}
}

// WithMaxAdvanceDays overrides how far ahead holds may be placed.
func WithMaxAdvanceDays(days int) ServiceOption {
	return func(s *Service) {
		if days > 0 {
			s.maxAdvanceDays = days
		}
	}
}

// WithPhoneRegion overrides the default region used to parse national-format
// client phone numbers.
func WithPhoneRegion(region string) ServiceOption {
	return func(s *Service) {
		if region != "" {
			s.phoneRegion = region
		}
	}
}

func NewService(database *db.DB, clock clockwork.Clock, opts ...ServiceOption) *Service {
	svc := &Service{
		database:         database,
		clock:            clock,
		calc:             NewAvailabilityCalculator(database),
		holdTTL:          defaultHoldTTL,
		maxAdvanceDays:   defaultMaxAdvanceDays,
		phoneRegion:      defaultPhoneRegion,
		courtLocks:       newKeyedMutex(),
		reservationLocks: newKeyedMutex(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Availability exposes the calculator backing CreateHold's coverage check.
func (s *Service) Availability() *AvailabilityCalculator {
	return s.calc
}

type CreateHoldInput struct {
	CourtID int64
	StartAt time.Time
	EndAt   time.Time
	// TTL overrides the service hold TTL for this request when positive.
	TTL    time.Duration
	Client ClientInfo
}

// CreateHold places a hold on the requested range. The conflict check and
// insert run inside one transaction while the court's lock is held, so two
// racing calls for overlapping ranges on the same court can never both
// succeed; the loser gets ErrSlotConflict.
func (s *Service) CreateHold(ctx context.Context, in CreateHoldInput) (db.Reservation, error) {
	startAt := in.StartAt.UTC()
	endAt := in.EndAt.UTC()
	if !startAt.Before(endAt) {
		return db.Reservation{}, ErrInvalidRange
	}

	now := s.clock.Now().UTC()
	if startAt.After(now.AddDate(0, 0, s.maxAdvanceDays)) {
		return db.Reservation{}, ErrSlotUnavailable
	}

	ttl := in.TTL
	if ttl <= 0 {
		ttl = s.holdTTL
	}

	client := in.Client
	client.Phone = s.normalizePhone(client.Phone)

	courtKey := strconv.FormatInt(in.CourtID, 10)
	s.courtLocks.Lock(courtKey)
	defer s.courtLocks.Unlock(courtKey)

	var reservation db.Reservation
	err := s.database.RunInTx(ctx, func(txdb *db.DB) error {
		court, err := txdb.Queries.GetCourt(ctx, in.CourtID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrUnknownCourt
			}
			return fmt.Errorf("get court: %w", err)
		}
		if !court.Active {
			return ErrUnknownCourt
		}

		covered, err := s.rangeWithinOpenSlots(ctx, in.CourtID, startAt, endAt)
		if err != nil {
			return err
		}
		if !covered {
			return ErrSlotUnavailable
		}

		conflict, err := HasConflict(ctx, txdb.Queries, in.CourtID, startAt, endAt, "")
		if err != nil {
			return err
		}
		if conflict {
			return ErrSlotConflict
		}

		reservation = db.Reservation{
			ID:          uuid.New().String(),
			CourtID:     in.CourtID,
			StartAt:     startAt,
			EndAt:       endAt,
			Status:      string(StatusHold),
			ExpiresAt:   sql.NullTime{Time: now.Add(ttl), Valid: true},
			ClientName:  client.Name,
			ClientEmail: client.Email,
			ClientPhone: client.Phone,
			PriceCents:  priceFor(court, startAt, endAt),
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := txdb.Queries.InsertReservation(ctx, reservation); err != nil {
			return fmt.Errorf("insert reservation: %w", err)
		}

		return recordTransition(ctx, txdb.Queries, now, TransitionEvent{
			ReservationID: reservation.ID,
			From:          "",
			To:            string(StatusHold),
		})
	})
	if err != nil {
		return db.Reservation{}, err
	}

	log.Ctx(ctx).Info().
		Str("reservation_id", reservation.ID).
		Int64("court_id", reservation.CourtID).
		Time("start_at", reservation.StartAt).
		Time("end_at", reservation.EndAt).
		Msg("Hold created")
	return reservation, nil
}

// MarkPaymentPending moves a live hold into payment_pending. The hold's
// deadline carries over unchanged.
func (s *Service) MarkPaymentPending(ctx context.Context, reservationID string) (db.Reservation, error) {
	return s.transition(ctx, reservationID, func(current db.Reservation, now time.Time) (transitionPlan, error) {
		if Status(current.Status) != StatusHold {
			return transitionPlan{}, ErrInvalidTransition
		}
		if !current.ExpiresAt.Valid || !now.Before(current.ExpiresAt.Time) {
			return transitionPlan{}, ErrHoldExpired
		}
		return transitionPlan{to: StatusPaymentPending, expiresAt: current.ExpiresAt}, nil
	})
}

// Confirm finalizes a reservation after payment approval. Confirming an
// already-confirmed reservation returns the existing record without a second
// event, which keeps webhook retries harmless.
func (s *Service) Confirm(ctx context.Context, reservationID string) (db.Reservation, error) {
	return s.transition(ctx, reservationID, func(current db.Reservation, now time.Time) (transitionPlan, error) {
		switch Status(current.Status) {
		case StatusConfirmed:
			return transitionPlan{noop: true}, nil
		case StatusHold, StatusPaymentPending:
			if !current.ExpiresAt.Valid || !now.Before(current.ExpiresAt.Time) {
				return transitionPlan{}, ErrHoldExpired
			}
			return transitionPlan{to: StatusConfirmed}, nil
		default:
			return transitionPlan{}, ErrInvalidTransition
		}
	})
}

// Cancel ends a non-terminal reservation. Cancelling an already-cancelled
// reservation is an idempotent no-op; cancelling an expired one is a rule
// violation. The actor identity is recorded on the event, not interpreted.
func (s *Service) Cancel(ctx context.Context, reservationID, reason, actor string) (db.Reservation, error) {
	return s.transition(ctx, reservationID, func(current db.Reservation, now time.Time) (transitionPlan, error) {
		switch Status(current.Status) {
		case StatusCancelled:
			return transitionPlan{noop: true}, nil
		case StatusExpired:
			return transitionPlan{}, ErrInvalidTransition
		default:
			return transitionPlan{to: StatusCancelled, reason: reason, actor: actor}, nil
		}
	})
}

// Expire reclaims a hold or pending payment past its deadline. A reservation
// that already left the expirable states, or whose deadline has not passed,
// is returned unchanged: the sweeper drives this operation and cannot know
// ahead of time whether it lost a race to a concurrent confirm.
func (s *Service) Expire(ctx context.Context, reservationID string) (db.Reservation, error) {
	return s.transition(ctx, reservationID, func(current db.Reservation, now time.Time) (transitionPlan, error) {
		if !Status(current.Status).Expirable() {
			return transitionPlan{noop: true}, nil
		}
		if !current.ExpiresAt.Valid || now.Before(current.ExpiresAt.Time) {
			return transitionPlan{noop: true}, nil
		}
		return transitionPlan{to: StatusExpired, expiresAt: current.ExpiresAt}, nil
	})
}

// transitionPlan is what a transition decides to do with the current record.
// noop returns the record unchanged; otherwise status becomes `to` and
// expires_at becomes `expiresAt` (null unless set, which is how confirm and
// cancel clear the deadline).
type transitionPlan struct {
	noop      bool
	to        Status
	expiresAt sql.NullTime
	reason    string
	actor     string
}

func (s *Service) transition(ctx context.Context, reservationID string, decide func(db.Reservation, time.Time) (transitionPlan, error)) (db.Reservation, error) {
	s.reservationLocks.Lock(reservationID)
	defer s.reservationLocks.Unlock(reservationID)

	now := s.clock.Now().UTC()

	var result db.Reservation
	err := s.database.RunInTx(ctx, func(txdb *db.DB) error {
		current, err := txdb.Queries.GetReservation(ctx, reservationID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrUnknownReservation
			}
			return fmt.Errorf("get reservation: %w", err)
		}

		plan, err := decide(current, now)
		if err != nil {
			return err
		}
		if plan.noop {
			result = current
			return nil
		}

		if err := txdb.Queries.UpdateReservationStatus(ctx, db.UpdateReservationStatusParams{
			ID:        current.ID,
			Status:    string(plan.to),
			ExpiresAt: plan.expiresAt,
			UpdatedAt: now,
		}); err != nil {
			return fmt.Errorf("update reservation status: %w", err)
		}

		if err := recordTransition(ctx, txdb.Queries, now, TransitionEvent{
			ReservationID: current.ID,
			From:          current.Status,
			To:            string(plan.to),
			Reason:        plan.reason,
			Actor:         plan.actor,
		}); err != nil {
			return err
		}

		result = current
		result.Status = string(plan.to)
		result.ExpiresAt = plan.expiresAt
		result.UpdatedAt = now
		return nil
	})
	if err != nil {
		return db.Reservation{}, err
	}

	log.Ctx(ctx).Debug().
		Str("reservation_id", result.ID).
		Str("status", result.Status).
		Msg("Reservation transition applied")
	return result, nil
}

// rangeWithinOpenSlots checks the requested range against the computed
// schedule of every civil date it touches.
func (s *Service) rangeWithinOpenSlots(ctx context.Context, courtID int64, startAt, endAt time.Time) (bool, error) {
	var slots []Slot
	day := time.Date(startAt.Year(), startAt.Month(), startAt.Day(), 0, 0, 0, 0, time.UTC)
	for !day.After(endAt) {
		daySlots, err := s.calc.ComputeSlots(ctx, courtID, day)
		if err != nil {
			return false, err
		}
		slots = append(slots, daySlots...)
		day = day.AddDate(0, 0, 1)
	}
	return rangeCovered(slots, startAt, endAt), nil
}

// priceFor prices a reservation from the court's hourly rate, rounded to the
// nearest cent.
func priceFor(court db.Court, startAt, endAt time.Time) int64 {
	minutes := endAt.Sub(startAt).Minutes()
	return int64(float64(court.PricePerHourCents)*minutes/60 + 0.5)
}

// normalizePhone formats a parseable, valid phone number as E.164. Contact
// fields are passed through to collaborators, so an unparseable value is kept
// as provided rather than rejected.
func (s *Service) normalizePhone(raw string) string {
	if raw == "" {
		return ""
	}
	num, err := phonenumbers.Parse(raw, s.phoneRegion)
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return raw
	}
	return phonenumbers.Format(num, phonenumbers.E164)
}
