package shares

import (
	"time"

	"github.com/warp/coop-ledger/generic"
)

// Cycle is one half-month dues window.
type Cycle struct {
	Year   int
	Month  time.Month
	Number int // 1 or 2
	DueAt  time.Time
}

// CurrentCycle returns the cycle containing now: day <= 15 is cycle 1,
// otherwise cycle 2. The cycle 2 due day follows policy.CycleRule.
func CurrentCycle(now time.Time, policy Policy) Cycle {
	loc := policy.location()
	local := now.In(loc)
	year, month, day := local.Date()

	if day <= 15 {
		return Cycle{Year: year, Month: month, Number: 1, DueAt: generic.EndOfDay(year, month, 15, loc)}
	}
	return Cycle{
		Year:   year,
		Month:  month,
		Number: 2,
		DueAt:  generic.EndOfDay(year, month, policy.CycleRule.SecondHalfDay(year, month), loc),
	}
}

// Matches reports whether the period is the dues period of this cycle.
func (c Cycle) Matches(p generic.ObligationPeriod) bool {
	return p.DueAt.Year() == c.Year && p.DueAt.Month() == c.Month && PeriodHalf(p) == c.Number
}

func (c Cycle) Label() string { return PeriodLabel(c.Year, c.Month, c.Number) }

// CycleForYear returns the cycle dividends for year are measured against:
// the current cycle when year is the current year, the year's last cycle
// for past years, and its first cycle for future years.
func CycleForYear(year int, now time.Time, policy Policy) Cycle {
	current := CurrentCycle(now, policy)
	switch {
	case year == current.Year:
		return current
	case year < current.Year:
		return CurrentCycle(time.Date(year, time.December, 31, 12, 0, 0, 0, policy.location()), policy)
	default:
		return CurrentCycle(time.Date(year, time.January, 1, 12, 0, 0, 0, policy.location()), policy)
	}
}
