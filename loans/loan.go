/*
Package loans provides the loan side of the cooperative ledger: loan records,
their flat monthly amortization, and the repayment schedule that payments are
reconciled against.

PURPOSE:
  A loan is repaid in TermMonths flat installments billed at month end. The
  installment is fixed when the loan is created:

    MonthlyAmortization = round((Principal + Interest) / TermMonths, 2)

  and the schedule is rebuilt on demand from the loan record. Nothing about
  the schedule is persisted.

LIFECYCLE:
  pending  -> created, anchored at ApplicationDate
  released -> funds released, re-anchored at ReleaseDate
  paid     -> every period PAID (derived, set by the caller)

  Loan origination rules (rate selection, eligibility gating) live outside
  this package. Interest is given, not computed.

SEE ALSO:
  - schedule.go: Amortization schedule generation
  - generic/evaluation.go: Reconcile used by the loan schedule view
*/
package loans

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/coop-ledger/generic"
)

// =============================================================================
// LOAN
// =============================================================================

type Status string

const (
	StatusPending  Status = "pending"
	StatusReleased Status = "released"
	StatusPaid     Status = "paid"
)

type Loan struct {
	ID                  string
	MemberID            string
	Principal           generic.Amount
	Interest            generic.Amount
	TermMonths          int
	MonthlyAmortization generic.Amount
	ApplicationDate     time.Time
	ReleaseDate         *time.Time
	DueDate             *time.Time // explicit maturity, may be nil
	Status              Status
	Purpose             string
	CreatedAt           time.Time
}

// Owner scopes the loan's repayments in the ledger.
func (l Loan) Owner() generic.Owner { return generic.LoanOwner(l.ID) }

// Total is principal plus interest.
func (l Loan) Total() generic.Amount { return l.Principal.Add(l.Interest) }

// Anchor is the release date, or the application date before release.
func (l Loan) Anchor() time.Time {
	if l.ReleaseDate != nil {
		return *l.ReleaseDate
	}
	return l.ApplicationDate
}

func (l Loan) IsReleased() bool { return l.ReleaseDate != nil }

// =============================================================================
// ERRORS
// =============================================================================

var (
	ErrInvalidTerm      = errors.New("term months must not be negative")
	ErrInvalidPrincipal = errors.New("principal must be positive")
	ErrAlreadyReleased  = errors.New("loan already released")
)

// EmptyScheduleError is returned when a loan yields no periods at all.
type EmptyScheduleError struct {
	LoanID string
}

func (e *EmptyScheduleError) Error() string {
	return fmt.Sprintf("loan %s: no term, amortization or due date to schedule against", e.LoanID)
}

func (e *EmptyScheduleError) Unwrap() error {
	return generic.ErrEmptySchedule
}

// =============================================================================
// CREATION & RELEASE
// =============================================================================

// ComputeAmortization returns round((principal + interest) / term, 2), or
// zero when term is not positive.
func ComputeAmortization(principal, interest generic.Amount, termMonths int) generic.Amount {
	if termMonths <= 0 {
		return principal.Zero()
	}
	total := principal.Add(interest)
	return generic.NewAmountFromDecimal(
		total.Value.Div(decimal.NewFromInt(int64(termMonths))).Round(2),
		principal.Currency,
	)
}

// NewParams describes a loan application.
type NewParams struct {
	ID              string
	MemberID        string
	Principal       generic.Amount
	Interest        generic.Amount
	TermMonths      int
	ApplicationDate time.Time
	DueDate         *time.Time
	Purpose         string
}

// New creates a pending loan with its amortization fixed.
func New(p NewParams) (Loan, error) {
	if !p.Principal.IsPositive() {
		return Loan{}, ErrInvalidPrincipal
	}
	if p.TermMonths < 0 {
		return Loan{}, ErrInvalidTerm
	}
	interest := p.Interest
	if interest.Currency == "" {
		interest = p.Principal.Zero().Add(interest)
	}

	return Loan{
		ID:                  p.ID,
		MemberID:            p.MemberID,
		Principal:           p.Principal,
		Interest:            interest,
		TermMonths:          p.TermMonths,
		MonthlyAmortization: ComputeAmortization(p.Principal, interest, p.TermMonths),
		ApplicationDate:     p.ApplicationDate,
		DueDate:             p.DueDate,
		Status:              StatusPending,
		Purpose:             p.Purpose,
	}, nil
}

// Release marks the loan released at the given instant. The schedule is
// re-anchored there. A loan without an explicit maturity gets one at the
// end of its last billing month.
func (l *Loan) Release(at time.Time, loc *time.Location) error {
	if l.ReleaseDate != nil {
		return ErrAlreadyReleased
	}
	released := at
	l.ReleaseDate = &released
	l.Status = StatusReleased

	if l.DueDate == nil && l.TermMonths > 0 {
		anchor := at.In(locOrUTC(loc))
		due := generic.EndOfMonth(anchor.Year(), anchor.Month()+time.Month(l.TermMonths), loc)
		l.DueDate = &due
	}
	return nil
}

func locOrUTC(loc *time.Location) *time.Location {
	if loc == nil {
		return time.UTC
	}
	return loc
}
