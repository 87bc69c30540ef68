// internal/booking/events.go
package booking

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/openclub/courtbook/internal/db"
)

// TransitionEvent is the payload of every reservation domain event. One event
// is recorded per successful transition, in the same transaction.
type TransitionEvent struct {
	ReservationID string `json:"reservation_id"`
	From          string `json:"from"`
	To            string `json:"to"`
	Reason        string `json:"reason,omitempty"`
	Actor         string `json:"actor,omitempty"`
}

// recordTransition appends a "reservation.<newstatus>" event to the domain
// event log.
func recordTransition(ctx context.Context, q *db.Queries, now time.Time, event TransitionEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal transition event: %w", err)
	}
	eventType := "reservation." + event.To
	if _, err := q.InsertDomainEvent(ctx, eventType, string(payload), now); err != nil {
		return fmt.Errorf("insert domain event: %w", err)
	}
	return nil
}

// ListEventsAfter reads domain events forward from a cursor. Consumers keep
// the last seen id and pass it back; events are never mutated or deleted.
func (s *Service) ListEventsAfter(ctx context.Context, after int64, limit int64) ([]db.DomainEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	events, err := s.database.Queries.ListDomainEventsAfter(ctx, after, limit)
	if err != nil {
		return nil, fmt.Errorf("list domain events: %w", err)
	}
	return events, nil
}
