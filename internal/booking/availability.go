// internal/booking/availability.go
package booking

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/openclub/courtbook/internal/db"
)

// Slot is a candidate booking window for a court on a given date. Closed
// slots are returned alongside open ones so callers can render the full
// schedule; Reason carries the override reason when one applied.
type Slot struct {
	Start  time.Time
	End    time.Time
	Open   bool
	Reason string
}

// AvailabilityCalculator derives bookable slots from recurring weekly rules
// and date-specific overrides. It is read-only and holds no locks; a rule or
// override changing mid-flight becomes visible on the next read.
type AvailabilityCalculator struct {
	database *db.DB
}

func NewAvailabilityCalculator(database *db.DB) *AvailabilityCalculator {
	return &AvailabilityCalculator{database: database}
}

// ComputeSlots returns the court's slots for the civil date (UTC), ordered by
// start time with no two slots overlapping. Active rules matching the date's
// day of week generate fixed-size open slots; overrides for the exact date
// then rewrite the openness of every slot they intersect. Overrides apply
// oldest first, so when two overrides disagree on a slot the most recently
// created one wins. An unblocking override that touches no rule slot
// contributes its own open slot, which is how a date can open hours the
// weekly template never had.
func (c *AvailabilityCalculator) ComputeSlots(ctx context.Context, courtID int64, date time.Time) ([]Slot, error) {
	court, err := c.database.Queries.GetCourt(ctx, courtID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUnknownCourt
		}
		return nil, fmt.Errorf("get court: %w", err)
	}
	if !court.Active {
		return nil, nil
	}

	date = date.UTC()
	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	dayOfWeek := int64(dayStart.Weekday())

	rules, err := c.database.Queries.ListActiveRulesForDay(ctx, courtID, dayOfWeek)
	if err != nil {
		return nil, fmt.Errorf("list availability rules: %w", err)
	}

	var slots []Slot
	for _, rule := range rules {
		ruleSlots, err := expandRule(rule, dayStart)
		if err != nil {
			return nil, fmt.Errorf("rule %d: %w", rule.ID, err)
		}
		slots = append(slots, ruleSlots...)
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i].Start.Before(slots[j].Start) })

	overrides, err := c.database.Queries.ListOverridesForDate(ctx, courtID, dayStart.Format("2006-01-02"))
	if err != nil {
		return nil, fmt.Errorf("list availability overrides: %w", err)
	}

	for _, override := range overrides {
		slots, err = applyOverride(slots, override, dayStart)
		if err != nil {
			return nil, fmt.Errorf("override %d: %w", override.ID, err)
		}
	}

	return slots, nil
}

// expandRule subdivides the rule's window into contiguous fixed-size open
// slots. A trailing remainder shorter than the slot size is dropped.
func expandRule(rule db.AvailabilityRule, dayStart time.Time) ([]Slot, error) {
	start, err := atClockTime(dayStart, rule.StartTime)
	if err != nil {
		return nil, err
	}
	end, err := atClockTime(dayStart, rule.EndTime)
	if err != nil {
		return nil, err
	}
	size := time.Duration(rule.SlotMinutes) * time.Minute

	var slots []Slot
	for cur := start; !cur.Add(size).After(end); cur = cur.Add(size) {
		slots = append(slots, Slot{Start: cur, End: cur.Add(size), Open: true})
	}
	return slots, nil
}

func applyOverride(slots []Slot, override db.AvailabilityOverride, dayStart time.Time) ([]Slot, error) {
	start, err := atClockTime(dayStart, override.StartTime)
	if err != nil {
		return nil, err
	}
	end, err := atClockTime(dayStart, override.EndTime)
	if err != nil {
		return nil, err
	}
	if !start.Before(end) {
		return nil, fmt.Errorf("override window %s-%s is empty", override.StartTime, override.EndTime)
	}

	touched := false
	for i := range slots {
		if Overlaps(start, end, slots[i].Start, slots[i].End) {
			slots[i].Open = !override.Blocked
			slots[i].Reason = override.Reason
			touched = true
		}
	}

	// An unblocking override outside every rule slot opens its window as a
	// standalone slot.
	if !touched && !override.Blocked {
		slots = append(slots, Slot{Start: start, End: end, Open: true, Reason: override.Reason})
		sort.Slice(slots, func(i, j int) bool { return slots[i].Start.Before(slots[j].Start) })
	}

	return slots, nil
}

// atClockTime resolves an "HH:MM" wall-clock string against the given day.
func atClockTime(dayStart time.Time, clock string) (time.Time, error) {
	parsed, err := time.Parse("15:04", clock)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse clock time %q: %w", clock, err)
	}
	return dayStart.Add(time.Duration(parsed.Hour())*time.Hour + time.Duration(parsed.Minute())*time.Minute), nil
}

// rangeCovered reports whether [start, end) is fully covered by open slots.
func rangeCovered(slots []Slot, start, end time.Time) bool {
	cur := start
	for _, slot := range slots {
		if !slot.Open {
			continue
		}
		if slot.Start.After(cur) {
			continue
		}
		if slot.End.After(cur) {
			cur = slot.End
			if !cur.Before(end) {
				return true
			}
		}
	}
	return false
}
