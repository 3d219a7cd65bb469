/*
Package generic provides the core reconciliation engine.

PURPOSE:
  This package contains obligation-agnostic types and algorithms for mapping
  payments onto a schedule of expected payments. Whether the schedule is a
  member's twice-monthly share dues or a loan's monthly amortization, the same
  engine allocates payments, carries excess forward, and evaluates status.

KEY CONCEPTS IN THIS FILE (types.go):
  - Amount: Exact money value (decimal, never float) with a currency
  - Payment: An immutable, timestamped payment record
  - Owner: What a payment is scoped to (a member's dues or a loan)
  - ObligationPeriod: One expected payment with a due instant

DESIGN PRINCIPLES:
  1. Derived views: Schedules, allocations and statuses are recomputed from
     payments on every query. Only payments are persisted.
  2. Precision: Uses decimal.Decimal so allocation never drifts
  3. Determinism: Same payments + same schedule + same clock = same result
  4. One algorithm: Every view uses Allocate/Evaluate, no per-view copies

USAGE:
  schedule := generic.NewSchedule(periods)
  rec, err := generic.Reconcile(payments, schedule, generic.SystemClock{})

SEE ALSO:
  - allocation.go: Greedy forward allocation with carryover
  - evaluation.go: Per-period status and lateness
  - ledger.go: Payment persistence interface
*/
package generic

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// AMOUNT - Exact money value
// =============================================================================

type Amount struct {
	Value    decimal.Decimal
	Currency Currency
}

type Currency string

const (
	CurrencyPHP Currency = "PHP"
	CurrencyUSD Currency = "USD"
)

// DefaultCurrency is used when a caller does not name one.
var DefaultCurrency = CurrencyPHP

func NewAmount(value int64, currency Currency) Amount {
	return Amount{Value: decimal.NewFromInt(value), Currency: currency}
}

func NewAmountFromDecimal(value decimal.Decimal, currency Currency) Amount {
	return Amount{Value: value, Currency: currency}
}

// ParseAmount parses a decimal string such as "2500.00".
func ParseAmount(s string, currency Currency) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, err
	}
	return Amount{Value: d, Currency: currency}, nil
}

func MustParseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func (a Amount) Zero() Amount                 { return Amount{Value: decimal.Zero, Currency: a.Currency} }
func (a Amount) Add(b Amount) Amount          { return Amount{Value: a.Value.Add(b.Value), Currency: a.Currency} }
func (a Amount) Sub(b Amount) Amount          { return Amount{Value: a.Value.Sub(b.Value), Currency: a.Currency} }
func (a Amount) Mul(s decimal.Decimal) Amount { return Amount{Value: a.Value.Mul(s), Currency: a.Currency} }
func (a Amount) MulInt(n int) Amount          { return a.Mul(decimal.NewFromInt(int64(n))) }
func (a Amount) Neg() Amount                  { return Amount{Value: a.Value.Neg(), Currency: a.Currency} }
func (a Amount) Round(places int32) Amount    { return Amount{Value: a.Value.Round(places), Currency: a.Currency} }
func (a Amount) IsNegative() bool             { return a.Value.IsNegative() }
func (a Amount) IsZero() bool                 { return a.Value.IsZero() }
func (a Amount) IsPositive() bool             { return a.Value.IsPositive() }
func (a Amount) Equal(b Amount) bool          { return a.Value.Equal(b.Value) }
func (a Amount) GreaterThan(b Amount) bool    { return a.Value.GreaterThan(b.Value) }
func (a Amount) GreaterThanOrEqual(b Amount) bool {
	return a.Value.GreaterThanOrEqual(b.Value)
}
func (a Amount) LessThan(b Amount) bool { return a.Value.LessThan(b.Value) }
func (a Amount) Min(b Amount) Amount {
	if a.LessThan(b) {
		return a
	}
	return b
}
func (a Amount) Max(b Amount) Amount {
	if a.GreaterThan(b) {
		return a
	}
	return b
}

// String renders the amount with two decimal places, e.g. "2500.00".
func (a Amount) String() string { return a.Value.StringFixed(2) }

// =============================================================================
// IDENTIFIERS
// =============================================================================

type PaymentID string

type OwnerKind string

const (
	OwnerMember OwnerKind = "member" // share dues of a member
	OwnerLoan   OwnerKind = "loan"   // amortization of a loan
)

// Owner scopes a payment to the obligation it pays down.
type Owner struct {
	Kind OwnerKind
	ID   string
}

func MemberOwner(memberID string) Owner { return Owner{Kind: OwnerMember, ID: memberID} }
func LoanOwner(loanID string) Owner     { return Owner{Kind: OwnerLoan, ID: loanID} }

func (o Owner) String() string { return string(o.Kind) + ":" + o.ID }

// =============================================================================
// PAYMENT - Read-only input to the engine
// =============================================================================

type PaymentMethod string

const (
	MethodCash         PaymentMethod = "cash"
	MethodBankTransfer PaymentMethod = "bank_transfer"
	MethodCheck        PaymentMethod = "check"
	MethodPayroll      PaymentMethod = "payroll_deduction"
	MethodEWallet      PaymentMethod = "e_wallet"
)

type Payment struct {
	ID             PaymentID
	Owner          Owner
	Amount         Amount
	PaidAt         time.Time
	Method         PaymentMethod
	Reference      string
	IdempotencyKey string

	// Audit fields
	RecordedBy string
	CreatedAt  time.Time
}

// =============================================================================
// OBLIGATION PERIOD - One expected payment
// =============================================================================

type ObligationPeriod struct {
	Index    int
	DueAt    time.Time
	Expected Amount
	Label    string // e.g. "2025-07 H1", "Month 3"
}

// =============================================================================
// ALLOCATION - Portion of a payment applied to a period
// =============================================================================

type Allocation struct {
	PaymentID   PaymentID
	PeriodIndex int
	Applied     Amount
	IsCarryover bool
}

// UnallocatedPayment is the part of a payment that found no open period at or
// after its date. It is prepayment beyond the schedule horizon, not an error.
type UnallocatedPayment struct {
	PaymentID PaymentID
	Amount    Amount
}

// =============================================================================
// PERIOD RESULT - Evaluated state of one period
// =============================================================================

type PeriodStatus string

const (
	StatusPaid      PeriodStatus = "PAID"
	StatusPartial   PeriodStatus = "PARTIAL"
	StatusNoPayment PeriodStatus = "NO_PAYMENT"
)

type PeriodResult struct {
	Period    ObligationPeriod
	TotalPaid Amount
	Remaining Amount
	Status    PeriodStatus
	IsPast    bool
	IsLate    bool
}
