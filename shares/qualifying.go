package shares

import (
	"github.com/shopspring/decimal"
	"github.com/warp/coop-ledger/generic"
)

// HasQualifyingPayment reports whether the member's dues for the cycle were
// paid in full by the cycle's due instant.
//
// Under QualifyPeriodPaid only payments dated on or before the due instant
// are reconciled against the member's schedule from the first year the dues
// view covers (see FirstScheduleYear) through the cycle's year, and the
// cycle's period must come out PAID. Older payments settle older periods
// first; only what is left carries forward into the cycle.
//
// Under QualifySingleFull one payment of at least the expected amount dated
// on or before the due instant is enough.
//
// A member holding no shares never qualifies.
func HasQualifyingPayment(m Member, payments []generic.Payment, cycle Cycle, policy Policy, unitValue decimal.Decimal) (bool, error) {
	if m.ShareCount <= 0 {
		return false, nil
	}

	var onTime []generic.Payment
	for _, p := range payments {
		if !p.PaidAt.After(cycle.DueAt) {
			onTime = append(onTime, p)
		}
	}
	if len(onTime) == 0 {
		return false, nil
	}

	if policy.QualifyingRule == QualifySingleFull {
		expected := policy.ExpectedPerPeriod(m.ShareCount, unitValue)
		for _, p := range onTime {
			if p.Amount.GreaterThanOrEqual(expected) {
				return true, nil
			}
		}
		return false, nil
	}

	start := FirstScheduleYear(policy, m, onTime, cycle.Year)
	schedule := MemberSchedule(policy, m, unitValue, start, cycle.Year)
	rec, err := generic.Reconcile(onTime, schedule, generic.FixedClock{At: cycle.DueAt})
	if err != nil {
		return false, err
	}
	for _, r := range rec.Periods {
		if cycle.Matches(r.Period) {
			return r.Status == generic.StatusPaid, nil
		}
	}
	return false, nil
}
