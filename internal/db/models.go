// internal/db/models.go
package db

import (
	"database/sql"
	"time"
)

type Court struct {
	ID                int64
	ClubID            int64
	Name              string
	PricePerHourCents int64
	Active            bool
	CreatedAt         time.Time
}

type AvailabilityRule struct {
	ID          int64
	CourtID     int64
	DayOfWeek   int64
	StartTime   string // "HH:MM"
	EndTime     string // "HH:MM"
	SlotMinutes int64
	Active      bool
	CreatedAt   time.Time
}

type AvailabilityOverride struct {
	ID        int64
	CourtID   int64
	Date      string // "YYYY-MM-DD"
	StartTime string // "HH:MM"
	EndTime   string // "HH:MM"
	Blocked   bool
	Reason    string
	CreatedAt time.Time
}

type Reservation struct {
	ID          string
	CourtID     int64
	StartAt     time.Time
	EndAt       time.Time
	Status      string
	ExpiresAt   sql.NullTime
	ClientName  string
	ClientEmail string
	ClientPhone string
	PriceCents  int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type PaymentEvent struct {
	ID              int64
	ProviderEventID string
	ReservationID   sql.NullString
	Payload         string
	ProcessedAt     time.Time
}

type DomainEvent struct {
	ID        int64
	Type      string
	Payload   string
	CreatedAt time.Time
}
