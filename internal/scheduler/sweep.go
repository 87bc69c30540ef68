// internal/scheduler/sweep.go
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog/log"

	"github.com/openclub/courtbook/internal/booking"
)

const sweepJobTimeout = 2 * time.Minute

// RegisterSweepJob schedules the expired-hold sweep. The job is the only
// timer the system has for hold expiry: the core operation is idempotent and
// the scheduler just supplies the trigger. Singleton mode keeps overlapping
// runs from stacking up if a sweep is slow.
func (s *Service) RegisterSweepJob(svc *booking.Service, cronExpr string) error {
	jobName := "expired_hold_sweep"
	jobLogger := log.With().
		Str("component", "expired_hold_sweep_job").
		Str("job_name", jobName).
		Str("cron", cronExpr).
		Logger()

	_, err := s.AddJob(jobName, cronExpr, func() {
		ctx, cancel := context.WithTimeout(context.Background(), sweepJobTimeout)
		defer cancel()
		ctx = jobLogger.WithContext(ctx)

		count, err := svc.SweepExpiredHolds(ctx)
		if err != nil {
			jobLogger.Error().Err(err).Msg("Expired hold sweep failed")
			return
		}
		if count > 0 {
			jobLogger.Info().Int("expired", count).Msg("Expired hold sweep completed")
		}
	}, gocron.WithSingletonMode(gocron.LimitModeWait))
	if err != nil {
		return fmt.Errorf("add expired hold sweep job: %w", err)
	}

	jobLogger.Info().Msg("Expired hold sweep job registered")
	return nil
}
