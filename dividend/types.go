/*
Package dividend computes the per-share dividend for a year and distributes
payouts.

PURPOSE:
  At year end the cooperative's profit pool is split across the shares held
  by members who were eligible and paid their dues for the current cycle:

    perShare = profitPool / totalEligibleShares   (0 when no shares qualify)
    payout   = round(perShare * shareCount, 2)

ELIGIBILITY:
  An administrator marks each member eligible or ineligible per (year, cycle).
  A member counts toward the denominator only if:
    1. an eligibility record exists for (year, cycle) with IsEligible = true
    2. the member has a qualifying payment for the cycle (shares package)
  Members with no record, or marked ineligible, are excluded entirely.

CACHING:
  perShare is cached by year. The cache is invalidated whenever the profit
  pool for the year changes or any eligibility record for the year changes.
  Reads go through the cache and recompute on a miss.

PAYOUTS:
  A batch computes perShare once and reuses it for every member. A member
  gets at most one payout per year: a second attempt is rejected by the
  store and reported as a per-item failure. One failure never aborts the
  batch.

SEE ALSO:
  - calculator.go: Pure per-share computation
  - service.go: Cache read-through, invalidation and payout batches
  - shares/qualifying.go: Qualifying-payment check
*/
package dividend

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/coop-ledger/generic"
)

// =============================================================================
// ELIGIBILITY
// =============================================================================

type Eligibility struct {
	MemberID   string
	Year       int
	Cycle      int // 1 or 2
	IsEligible bool
	Reason     string // required when !IsEligible
	UpdatedBy  string
	UpdatedAt  time.Time
}

// Validate checks the cycle and the reason rule.
func (e Eligibility) Validate() error {
	if e.MemberID == "" {
		return generic.ErrMemberNotFound
	}
	if e.Cycle != 1 && e.Cycle != 2 {
		return ErrInvalidCycle
	}
	if !e.IsEligible && e.Reason == "" {
		return ErrReasonRequired
	}
	return nil
}

// =============================================================================
// PROFIT POOL & PAYOUT
// =============================================================================

type ProfitPool struct {
	Year      int
	Amount    generic.Amount
	UpdatedBy string
	UpdatedAt time.Time
}

type Payout struct {
	ID        string
	MemberID  string
	Year      int
	Shares    int
	PerShare  decimal.Decimal
	Amount    generic.Amount
	CreatedBy string
	CreatedAt time.Time
}

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrReasonRequired is returned when an ineligible record has no reason.
	ErrReasonRequired = errors.New("reason required when member is ineligible")

	// ErrInvalidCycle is returned for a cycle other than 1 or 2.
	ErrInvalidCycle = errors.New("cycle must be 1 or 2")

	// ErrDuplicatePayout is returned when a payout for (member, year) exists.
	ErrDuplicatePayout = errors.New("payout already exists for member and year")

	// ErrInvalidProfitPool is returned for a negative profit pool.
	ErrInvalidProfitPool = errors.New("profit pool must not be negative")
)

// DuplicatePayoutError identifies the member and year already paid out.
type DuplicatePayoutError struct {
	MemberID string
	Year     int
}

func (e *DuplicatePayoutError) Error() string {
	return fmt.Sprintf("payout already exists for member %s in %d", e.MemberID, e.Year)
}

func (e *DuplicatePayoutError) Unwrap() error {
	return ErrDuplicatePayout
}

// IsClientError returns true for errors caused by invalid input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrReasonRequired) ||
		errors.Is(err, ErrInvalidCycle) ||
		errors.Is(err, ErrInvalidProfitPool)
}
