package analytics

import (
	"errors"
	"time"
)

const (
	ByDay   Granularity = "day"
	ByWeek  Granularity = "week"
	ByMonth Granularity = "month"
	ByYear  Granularity = "year"
)

// Granularity selects the time-bucket width for history and breakdowns.
type Granularity string

var ErrInvalidGranularity = errors.New("invalid granularity")

func (g Granularity) Validate() error {
	switch g {
	case ByDay, ByWeek, ByMonth, ByYear:
		return nil
	}
	return ErrInvalidGranularity
}

// BucketStart maps an instant to the start of its bucket in the reference
// zone. Weeks start on Monday.
func BucketStart(t time.Time, g Granularity, loc *time.Location) time.Time {
	t = t.In(loc)
	switch g {
	case ByWeek:
		day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
		offset := (int(day.Weekday()) + 6) % 7 // Monday = 0
		return day.AddDate(0, 0, -offset)
	case ByMonth:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, loc)
	case ByYear:
		return time.Date(t.Year(), 1, 1, 0, 0, 0, 0, loc)
	default: // ByDay
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	}
}
