package generic

import (
	"sort"
	"time"
)

// =============================================================================
// SCHEDULE - Ordered obligation periods
// =============================================================================

// Schedule is an ordered sequence of obligation periods.
// Periods are sorted ascending by DueAt and Index equals the position in the
// slice. Downstream logic relies on sort order only, never on gaps between
// due dates.
type Schedule struct {
	Periods []ObligationPeriod
}

// NewSchedule sorts periods by due date and assigns stable indices.
// The input slice is not modified.
func NewSchedule(periods []ObligationPeriod) Schedule {
	sorted := make([]ObligationPeriod, len(periods))
	copy(sorted, periods)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].DueAt.Before(sorted[j].DueAt)
	})
	for i := range sorted {
		sorted[i].Index = i
	}
	return Schedule{Periods: sorted}
}

// Concat joins schedules in order and re-indexes the result.
// Used to show two consecutive years so end-of-year payments can roll forward.
func Concat(schedules ...Schedule) Schedule {
	var all []ObligationPeriod
	for _, s := range schedules {
		all = append(all, s.Periods...)
	}
	return NewSchedule(all)
}

func (s Schedule) Len() int      { return len(s.Periods) }
func (s Schedule) IsEmpty() bool { return len(s.Periods) == 0 }

// TotalExpected sums the expected amount of every period.
func (s Schedule) TotalExpected(currency Currency) Amount {
	total := Amount{Currency: currency}
	for _, p := range s.Periods {
		total = total.Add(p.Expected)
	}
	return total
}

// FirstOpenAt returns the index of the first period with DueAt >= at, or
// Len() if every period is due before at.
func (s Schedule) FirstOpenAt(at time.Time) int {
	return sort.Search(len(s.Periods), func(i int) bool {
		return !s.Periods[i].DueAt.Before(at)
	})
}

// Through returns the prefix of the schedule due on or before at.
func (s Schedule) Through(at time.Time) Schedule {
	n := sort.Search(len(s.Periods), func(i int) bool {
		return s.Periods[i].DueAt.After(at)
	})
	return Schedule{Periods: s.Periods[:n]}
}
