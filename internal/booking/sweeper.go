// internal/booking/sweeper.go
package booking

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
)

// SweepExpiredHolds expires every hold and pending payment whose deadline has
// passed and returns how many reservations actually transitioned. Processing
// is per-reservation: one failure is logged and skipped so it cannot block
// the rest of the batch. Running the sweep twice in quick succession is safe,
// the second pass finds nothing left to expire.
func (s *Service) SweepExpiredHolds(ctx context.Context) (int, error) {
	now := s.clock.Now().UTC()

	candidates, err := s.database.Queries.ListExpirableReservations(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("list expirable reservations: %w", err)
	}

	logger := log.Ctx(ctx)
	expired := 0
	for _, candidate := range candidates {
		reservation, err := s.Expire(ctx, candidate.ID)
		if err != nil {
			logger.Error().Err(err).
				Str("reservation_id", candidate.ID).
				Msg("Failed to expire reservation")
			continue
		}
		// Expire no-ops when it loses a race to a concurrent confirm, in
		// which case the returned status is not expired.
		if Status(reservation.Status) == StatusExpired {
			expired++
		}
	}

	if expired > 0 {
		logger.Info().Int("expired", expired).Msg("Swept expired holds")
	}
	return expired, nil
}
