// internal/booking/conflict.go
package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/openclub/courtbook/internal/db"
)

// Overlaps reports whether two half-open ranges [aStart, aEnd) and
// [bStart, bEnd) intersect.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && aEnd.After(bStart)
}

// HasConflict reports whether the candidate range intersects any blocking
// reservation on the court. excludeID is skipped, so a reservation never
// conflicts with itself. The answer reflects committed state at query time;
// callers that need check-then-insert atomicity must hold the court lock for
// the duration of their transaction.
func HasConflict(ctx context.Context, q *db.Queries, courtID int64, startAt, endAt time.Time, excludeID string) (bool, error) {
	count, err := q.CountOverlapping(ctx, db.CountOverlappingParams{
		CourtID:   courtID,
		StartAt:   startAt,
		EndAt:     endAt,
		ExcludeID: excludeID,
	})
	if err != nil {
		return false, fmt.Errorf("count overlapping reservations: %w", err)
	}
	return count > 0, nil
}
