/*
evaluation.go - Per-period status, balance and lateness

PURPOSE:
  Turns a schedule plus its allocations into what a member or an admin
  actually looks at: for each period, how much was paid, what is left,
  whether it is PAID / PARTIAL / NO_PAYMENT, and whether it is late.

RULES:
  TotalPaid = sum of Applied over allocations referencing the period
  Status    = PAID        if TotalPaid >= Expected
              PARTIAL     if 0 < TotalPaid < Expected
              NO_PAYMENT  if TotalPaid == 0
  Remaining = max(Expected - TotalPaid, 0)
  IsPast    = DueAt < now
  IsLate    = IsPast && Status != PAID

  "now" comes from an injected Clock. Expected amounts are rounded when the
  schedule is generated, so nothing is rounded here.

SEE ALSO:
  - allocation.go: Produces the allocations evaluated here
  - api/views.go: Projects a Reconciliation for display
*/
package generic

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// EVALUATE
// =============================================================================

// Evaluate computes the result of every period in the schedule.
// It is a pure function of its arguments.
func Evaluate(schedule Schedule, allocations []Allocation, now time.Time) []PeriodResult {
	paid := make(map[int]decimal.Decimal, schedule.Len())
	for _, a := range allocations {
		paid[a.PeriodIndex] = paid[a.PeriodIndex].Add(a.Applied.Value)
	}

	results := make([]PeriodResult, 0, schedule.Len())
	for _, p := range schedule.Periods {
		results = append(results, evaluatePeriod(p, paid[p.Index], now))
	}
	return results
}

func evaluatePeriod(p ObligationPeriod, paid decimal.Decimal, now time.Time) PeriodResult {
	currency := p.Expected.Currency
	totalPaid := Amount{Value: paid, Currency: currency}

	var status PeriodStatus
	switch {
	case totalPaid.GreaterThanOrEqual(p.Expected):
		status = StatusPaid
	case totalPaid.IsPositive():
		status = StatusPartial
	default:
		status = StatusNoPayment
	}

	remaining := p.Expected.Sub(totalPaid).Max(Amount{Value: decimal.Zero, Currency: currency})
	isPast := p.DueAt.Before(now)

	return PeriodResult{
		Period:    p,
		TotalPaid: totalPaid,
		Remaining: remaining,
		Status:    status,
		IsPast:    isPast,
		IsLate:    isPast && status != StatusPaid,
	}
}

// =============================================================================
// RECONCILIATION - Allocate + Evaluate + Summary
// =============================================================================

// Reconciliation is the canonical result every view projects from.
type Reconciliation struct {
	Schedule    Schedule
	Periods     []PeriodResult
	Allocations Allocations
	Summary     Summary
	EvaluatedAt time.Time
}

// Summary aggregates a reconciliation for headers and list screens.
type Summary struct {
	TotalExpected    Amount
	TotalPaid        Amount
	TotalRemaining   Amount
	TotalUnallocated Amount

	Paid      int
	Partial   int
	NoPayment int
	Late      int

	// First period that is not PAID, nil when everything is paid.
	NextDue *PeriodResult

	// True when every period is PAID (false for an empty schedule).
	FullyPaid bool
}

// Reconcile runs the full pipeline for one obligation.
func Reconcile(payments []Payment, schedule Schedule, clock Clock) (*Reconciliation, error) {
	if clock == nil {
		clock = SystemClock{}
	}

	allocations, err := Allocate(payments, schedule)
	if err != nil {
		return nil, err
	}

	now := clock.Now()
	periods := Evaluate(schedule, allocations.Records, now)

	return &Reconciliation{
		Schedule:    schedule,
		Periods:     periods,
		Allocations: allocations,
		Summary:     Summarize(periods, allocations.Unallocated, currencyOf(schedule, payments)),
		EvaluatedAt: now,
	}, nil
}

// Summarize aggregates period results.
func Summarize(periods []PeriodResult, unallocated []UnallocatedPayment, currency Currency) Summary {
	zero := Amount{Value: decimal.Zero, Currency: currency}
	s := Summary{
		TotalExpected:    zero,
		TotalPaid:        zero,
		TotalRemaining:   zero,
		TotalUnallocated: zero,
	}

	for i := range periods {
		r := periods[i]
		s.TotalExpected = s.TotalExpected.Add(r.Period.Expected)
		s.TotalPaid = s.TotalPaid.Add(r.TotalPaid)
		s.TotalRemaining = s.TotalRemaining.Add(r.Remaining)

		switch r.Status {
		case StatusPaid:
			s.Paid++
		case StatusPartial:
			s.Partial++
		default:
			s.NoPayment++
		}
		if r.IsLate {
			s.Late++
		}
		if s.NextDue == nil && r.Status != StatusPaid {
			s.NextDue = &periods[i]
		}
	}

	for _, u := range unallocated {
		s.TotalUnallocated = s.TotalUnallocated.Add(u.Amount)
	}

	s.FullyPaid = len(periods) > 0 && s.Paid == len(periods)
	return s
}

// PeriodAt returns the result for the period with the given index.
func (r *Reconciliation) PeriodAt(index int) (PeriodResult, bool) {
	for _, p := range r.Periods {
		if p.Period.Index == index {
			return p, true
		}
	}
	return PeriodResult{}, false
}

func currencyOf(schedule Schedule, payments []Payment) Currency {
	if schedule.Len() > 0 && schedule.Periods[0].Expected.Currency != "" {
		return schedule.Periods[0].Expected.Currency
	}
	for _, p := range payments {
		if p.Amount.Currency != "" {
			return p.Amount.Currency
		}
	}
	return DefaultCurrency
}
