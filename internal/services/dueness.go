// Package services holds the business logic: the recurring scheduler, the
// entry service and recurring-parent administration.
//
// Dueness is decided entirely from the latest child's effective date plus
// one rule period, at day granularity in the configured reference zone.
// Time-of-day never participates, so sub-day clock drift can neither skip
// nor double-fire an occurrence.
package services

import (
	"time"

	"tally/internal/core"
)

// StartOfDay strips the time-of-day in the given zone.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// NextOccurrence returns the first day (start-of-day in loc) on which a
// new occurrence becomes due, given the reference date: the latest child's
// effective date, or the parent's own date when no child exists yet.
func NextOccurrence(rule core.RecurrenceRule, reference time.Time, loc *time.Location) time.Time {
	return rule.AddTo(StartOfDay(reference, loc))
}

// IsDue reports whether now has reached the next occurrence day.
func IsDue(rule core.RecurrenceRule, reference, now time.Time, loc *time.Location) bool {
	next := NextOccurrence(rule, reference, loc)
	return !StartOfDay(now, loc).Before(next)
}
