package shares

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/coop-ledger/generic"
)

// Schedule generates 24 periods for each requested year: one due on the 15th
// and one on the second-half due day, both at 23:59:59.999 in the policy's
// location. Every period expects shareCount * unitValue.
func Schedule(policy Policy, shareCount int, unitValue decimal.Decimal, years ...int) generic.Schedule {
	loc := policy.location()
	expected := policy.ExpectedPerPeriod(shareCount, unitValue)

	periods := make([]generic.ObligationPeriod, 0, 24*len(years))
	for _, year := range years {
		for month := time.January; month <= time.December; month++ {
			periods = append(periods,
				generic.ObligationPeriod{
					DueAt:    generic.EndOfDay(year, month, 15, loc),
					Expected: expected,
					Label:    PeriodLabel(year, month, 1),
				},
				generic.ObligationPeriod{
					DueAt:    generic.EndOfDay(year, month, policy.ScheduleRule.SecondHalfDay(year, month), loc),
					Expected: expected,
					Label:    PeriodLabel(year, month, 2),
				},
			)
		}
	}
	return generic.NewSchedule(periods)
}

// ScheduleSpan concatenates consecutive years fromYear..toYear inclusive.
// Showing the following year lets end-of-year prepayments roll forward.
func ScheduleSpan(policy Policy, shareCount int, unitValue decimal.Decimal, fromYear, toYear int) generic.Schedule {
	if toYear < fromYear {
		return generic.Schedule{}
	}
	years := make([]int, 0, toYear-fromYear+1)
	for y := fromYear; y <= toYear; y++ {
		years = append(years, y)
	}
	return Schedule(policy, shareCount, unitValue, years...)
}

// MemberSchedule is ScheduleSpan for one member, without the periods due
// before the member's enrollment day.
func MemberSchedule(policy Policy, m Member, unitValue decimal.Decimal, fromYear, toYear int) generic.Schedule {
	s := ScheduleSpan(policy, m.ShareCount, unitValue, fromYear, toYear)
	if m.JoinedAt.IsZero() {
		return s
	}

	joined := generic.StartOfDay(m.JoinedAt.In(policy.location()))
	kept := s.Periods[:0:0]
	for _, p := range s.Periods {
		if !p.DueAt.Before(joined) {
			kept = append(kept, p)
		}
	}
	return generic.NewSchedule(kept)
}

// FirstScheduleYear is the first year a member's schedule must cover so that
// every payment settles the periods of its own time: the earliest of fromYear,
// the join year and the year of the earliest payment.
func FirstScheduleYear(policy Policy, m Member, payments []generic.Payment, fromYear int) int {
	loc := policy.location()
	start := fromYear
	if !m.JoinedAt.IsZero() {
		if y := m.JoinedAt.In(loc).Year(); y < start {
			start = y
		}
	}
	for _, p := range payments {
		if y := p.PaidAt.In(loc).Year(); y < start {
			start = y
		}
	}
	return start
}

// PeriodLabel formats a half-month period, e.g. "2025-07 H1".
func PeriodLabel(year int, month time.Month, half int) string {
	return fmt.Sprintf("%04d-%02d H%d", year, int(month), half)
}

// PeriodHalf returns 1 for a period due in the first half of its month,
// 2 otherwise.
func PeriodHalf(p generic.ObligationPeriod) int {
	if p.DueAt.Day() <= 15 {
		return 1
	}
	return 2
}
