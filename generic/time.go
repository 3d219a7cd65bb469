package generic

import (
	"time"
)

// =============================================================================
// CLOCK - Injected "now" for status evaluation
// =============================================================================

// Clock supplies the evaluation instant. Status evaluation never reads the
// system clock directly, so lateness can be tested across time boundaries.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// FixedClock always returns the same instant.
type FixedClock struct {
	At time.Time
}

func (c FixedClock) Now() time.Time { return c.At }

// =============================================================================
// CALENDAR HELPERS
// =============================================================================

// EndOfDay returns 23:59:59.999 on the given calendar day in loc.
func EndOfDay(year int, month time.Month, day int, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return time.Date(year, month, day, 23, 59, 59, int(999*time.Millisecond), loc)
}

// DaysIn returns the number of days in the given month.
func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// EndOfMonth returns 23:59:59.999 on the last calendar day of the month.
// Month values outside 1..12 are normalized (month 13 is January next year).
func EndOfMonth(year int, month time.Month, loc *time.Location) time.Time {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return EndOfDay(first.Year(), first.Month(), DaysIn(first.Year(), first.Month()), loc)
}

// StartOfDay returns midnight of t's calendar day in t's location.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func StartOfYear(year int, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return time.Date(year, time.January, 1, 0, 0, 0, 0, loc)
}

func EndOfYear(year int, loc *time.Location) time.Time {
	return EndOfDay(year, time.December, 31, loc)
}
