package testutil

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/openclub/courtbook/internal/db"
)

// NewTestDB creates a temporary SQLite database with migrations applied.
func NewTestDB(t *testing.T) *db.DB {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	database, err := db.New(dbPath)
	if err != nil {
		t.Fatalf("create test db: %v", err)
	}
	t.Cleanup(func() {
		_ = database.Close()
	})

	return database
}

// SeedCourt inserts an active court and returns its id.
func SeedCourt(t *testing.T, database *db.DB) int64 {
	t.Helper()

	court, err := database.Queries.InsertCourt(context.Background(), db.InsertCourtParams{
		ClubID:            1,
		Name:              "Court 1",
		PricePerHourCents: 2000,
		Active:            true,
	})
	if err != nil {
		t.Fatalf("insert court: %v", err)
	}
	return court.ID
}

// SeedRule adds an active weekly availability rule for the court.
func SeedRule(t *testing.T, database *db.DB, courtID int64, dayOfWeek int64, start, end string, slotMinutes int64) {
	t.Helper()

	_, err := database.Queries.InsertAvailabilityRule(context.Background(), db.InsertAvailabilityRuleParams{
		CourtID:     courtID,
		DayOfWeek:   dayOfWeek,
		StartTime:   start,
		EndTime:     end,
		SlotMinutes: slotMinutes,
		Active:      true,
	})
	if err != nil {
		t.Fatalf("insert availability rule: %v", err)
	}
}

// SeedOverride adds a date-specific availability override for the court.
func SeedOverride(t *testing.T, database *db.DB, courtID int64, date, start, end string, blocked bool, reason string, createdAt time.Time) {
	t.Helper()

	_, err := database.Queries.InsertAvailabilityOverride(context.Background(), db.InsertAvailabilityOverrideParams{
		CourtID:   courtID,
		Date:      date,
		StartTime: start,
		EndTime:   end,
		Blocked:   blocked,
		Reason:    reason,
		CreatedAt: createdAt,
	})
	if err != nil {
		t.Fatalf("insert availability override: %v", err)
	}
}
