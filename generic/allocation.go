/*
allocation.go - Greedy forward payment allocation with carryover

PURPOSE:
  Maps payments onto obligation periods. This is the single allocation
  algorithm in the system: member dues, the admin member view, the loan
  amortization view and the dividend qualifying check all go through it.

ALGORITHM:
  For each payment in PaidAt order (ties keep input order):
  1. Start at the first period with DueAt >= PaidAt. A payment counts toward
     the nearest upcoming due date, never a past one. If every period is due
     before the payment, the whole payment is unallocated.
  2. Walk forward. At each period:
       capacity = max(Expected - already applied to this period, 0)
     If capacity is zero, skip the period (already satisfied).
     Otherwise apply min(payment left, capacity). Anything applied past the
     starting (originating) period is marked IsCarryover, including when the
     starting period was already full.
  3. Stop when the payment is used up or the schedule ends. Any remainder is
     reported as unallocated (prepayment beyond the horizon).

EXAMPLE:
  Expected 2500 per period, one payment of 6000 on period 1's due date:

  Period 1: 2500 (payment start)
  Period 2: 2500 (carryover)
  Period 3: 1000 (carryover)  -> PARTIAL, 1500 remaining

INVARIANTS:
  - Conservation: sum of Applied for a payment + its unallocated remainder
    equals the payment amount exactly.
  - No double-fill: sum of Applied for a period never exceeds Expected.

SEE ALSO:
  - evaluation.go: Turns allocations into per-period status
*/
package generic

import (
	"sort"

	"github.com/shopspring/decimal"
)

// =============================================================================
// ALLOCATIONS - Result of allocating payments to a schedule
// =============================================================================

type Allocations struct {
	// Records in application order (payment order, then period order).
	Records []Allocation

	// Remainders that found no open period.
	Unallocated []UnallocatedPayment
}

// ForPeriod returns the allocation records applied to the given period.
func (a Allocations) ForPeriod(index int) []Allocation {
	var out []Allocation
	for _, r := range a.Records {
		if r.PeriodIndex == index {
			out = append(out, r)
		}
	}
	return out
}

// ForPayment returns the allocation records of the given payment.
func (a Allocations) ForPayment(id PaymentID) []Allocation {
	var out []Allocation
	for _, r := range a.Records {
		if r.PaymentID == id {
			out = append(out, r)
		}
	}
	return out
}

// =============================================================================
// ALLOCATE
// =============================================================================

// ValidatePayments rejects any payment whose amount is not strictly positive.
func ValidatePayments(payments []Payment) error {
	for _, p := range payments {
		if !p.Amount.IsPositive() {
			return &InvalidPaymentAmountError{PaymentID: p.ID, Amount: p.Amount}
		}
	}
	return nil
}

// SortPayments returns a copy of payments ordered by PaidAt.
// Payments sharing a timestamp keep their relative input order.
func SortPayments(payments []Payment) []Payment {
	sorted := make([]Payment, len(payments))
	copy(sorted, payments)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].PaidAt.Before(sorted[j].PaidAt)
	})
	return sorted
}

// Allocate assigns payments to periods of the schedule.
//
// Payments are applied in PaidAt order. An empty schedule is valid and
// leaves every payment unallocated. The only error is
// ErrInvalidPaymentAmount, raised before anything is allocated.
func Allocate(payments []Payment, schedule Schedule) (Allocations, error) {
	if err := ValidatePayments(payments); err != nil {
		return Allocations{}, err
	}

	var result Allocations
	filled := make([]decimal.Decimal, schedule.Len())

	for _, p := range SortPayments(payments) {
		left := p.Amount.Value
		start := schedule.FirstOpenAt(p.PaidAt)

		for i := start; i < schedule.Len() && left.IsPositive(); i++ {
			period := schedule.Periods[i]
			capacity := period.Expected.Value.Sub(filled[i])
			if !capacity.IsPositive() {
				continue
			}

			applied := decimal.Min(left, capacity)
			filled[i] = filled[i].Add(applied)
			left = left.Sub(applied)

			result.Records = append(result.Records, Allocation{
				PaymentID:   p.ID,
				PeriodIndex: period.Index,
				Applied:     Amount{Value: applied, Currency: p.Amount.Currency},
				IsCarryover: i != start,
			})
		}

		if left.IsPositive() {
			result.Unallocated = append(result.Unallocated, UnallocatedPayment{
				PaymentID: p.ID,
				Amount:    Amount{Value: left, Currency: p.Amount.Currency},
			})
		}
	}

	return result, nil
}
