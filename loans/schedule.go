package loans

import (
	"fmt"
	"time"

	"github.com/warp/coop-ledger/generic"
)

// BuildSchedule generates the loan's repayment schedule.
//
// Period i (0-based) is due at 23:59:59.999 on the last day of the month
// i+1 months after the anchor month, expecting MonthlyAmortization. When
// DueDate is set, generation stops at the first period that would fall
// after it. When TermMonths or MonthlyAmortization is zero the schedule is
// a single period at DueDate expecting Principal + Interest, and so is a
// maturity that falls before the first month end.
//
// If there is nothing to schedule against, an empty schedule is returned
// together with an *EmptyScheduleError. The empty schedule is still usable:
// reconciling against it leaves every payment unallocated.
func BuildSchedule(l Loan, loc *time.Location) (generic.Schedule, error) {
	loc = locOrUTC(loc)

	if l.TermMonths <= 0 || !l.MonthlyAmortization.IsPositive() {
		return lumpSum(l, loc)
	}

	anchor := l.Anchor().In(loc)
	var maturity time.Time
	if l.DueDate != nil {
		d := l.DueDate.In(loc)
		maturity = generic.EndOfDay(d.Year(), d.Month(), d.Day(), loc)
	}

	periods := make([]generic.ObligationPeriod, 0, l.TermMonths)
	for i := 0; i < l.TermMonths; i++ {
		due := generic.EndOfMonth(anchor.Year(), anchor.Month()+time.Month(i+1), loc)
		if !maturity.IsZero() && due.After(maturity) {
			break
		}
		periods = append(periods, generic.ObligationPeriod{
			DueAt:    due,
			Expected: l.MonthlyAmortization,
			Label:    fmt.Sprintf("Installment %d of %d", i+1, l.TermMonths),
		})
	}

	// Maturity before the first billing month end: the whole balance is
	// due at maturity rather than never.
	if len(periods) == 0 {
		return lumpSum(l, loc)
	}
	return generic.NewSchedule(periods), nil
}

func lumpSum(l Loan, loc *time.Location) (generic.Schedule, error) {
	if l.DueDate == nil {
		return generic.Schedule{}, &EmptyScheduleError{LoanID: l.ID}
	}
	due := l.DueDate.In(loc)
	return generic.NewSchedule([]generic.ObligationPeriod{{
		DueAt:    generic.EndOfDay(due.Year(), due.Month(), due.Day(), loc),
		Expected: l.Total(),
		Label:    "Lump sum",
	}}), nil
}
