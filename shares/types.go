/*
Package shares provides the share-dues side of the cooperative ledger:
members, their twice-monthly contribution schedule, and the dividend cycle
they are measured against.

PURPOSE:
  Members hold a number of shares and owe shareCount * shareUnitValue twice a
  month: once due on the 15th and once at the end of the month. This package
  generates that schedule and answers "which cycle are we in" and "did this
  member pay for it". Allocation and status come from the generic engine.

CYCLES:
  Cycle 1: days 1-15, due on the 15th
  Cycle 2: days 16-end, due on the second-half due day

DUE DAY RULES:
  The second-half due day has two historical interpretations:
    month_end  - the literal last calendar day (Jul 31, Feb 28/29)
    capped_30  - min(30, last day), so 31-day months are due on the 30th
  Both are selectable; Policy carries one rule for schedule generation and
  one for cycle determination.

SEE ALSO:
  - schedule.go: Bi-monthly schedule generation
  - cycle.go: Current cycle determination
  - qualifying.go: Qualifying-payment check for dividends
*/
package shares

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/coop-ledger/generic"
)

// =============================================================================
// MEMBER
// =============================================================================

type Member struct {
	ID         string
	Name       string
	Email      string
	ShareCount int

	// JoinedAt anchors the dues schedule. Zero means "owes every period".
	JoinedAt  time.Time
	CreatedAt time.Time
}

// Owner scopes the member's dues payments in the ledger.
func (m Member) Owner() generic.Owner { return generic.MemberOwner(m.ID) }

// =============================================================================
// DUE DAY RULE
// =============================================================================

type DueDayRule string

const (
	DueMonthEnd DueDayRule = "month_end"
	DueCapped30 DueDayRule = "capped_30"
)

func ParseDueDayRule(s string) (DueDayRule, error) {
	switch DueDayRule(s) {
	case DueMonthEnd, DueCapped30:
		return DueDayRule(s), nil
	case "":
		return DueMonthEnd, nil
	}
	return "", fmt.Errorf("unknown due day rule %q", s)
}

// SecondHalfDay returns the day of month the second-half dues fall on.
func (r DueDayRule) SecondHalfDay(year int, month time.Month) int {
	last := generic.DaysIn(year, month)
	if r == DueCapped30 && last > 30 {
		return 30
	}
	return last
}

// =============================================================================
// QUALIFYING RULE
// =============================================================================

// QualifyingRule selects how a cycle's qualifying payment is decided.
type QualifyingRule string

const (
	// QualifyPeriodPaid reconciles the member's payments and requires the
	// cycle's period to be PAID.
	QualifyPeriodPaid QualifyingRule = "period_paid"

	// QualifySingleFull requires one payment of at least the full expected
	// amount dated on or before the cycle due instant.
	QualifySingleFull QualifyingRule = "single_full_payment"
)

func ParseQualifyingRule(s string) (QualifyingRule, error) {
	switch QualifyingRule(s) {
	case QualifyPeriodPaid, QualifySingleFull:
		return QualifyingRule(s), nil
	case "":
		return QualifyPeriodPaid, nil
	}
	return "", fmt.Errorf("unknown qualifying rule %q", s)
}

// =============================================================================
// POLICY
// =============================================================================

// Policy holds the calendar settings shares are computed under.
type Policy struct {
	Location       *time.Location
	Currency       generic.Currency
	ScheduleRule   DueDayRule
	CycleRule      DueDayRule
	QualifyingRule QualifyingRule
}

func DefaultPolicy() Policy {
	return Policy{
		Location:       time.UTC,
		Currency:       generic.DefaultCurrency,
		ScheduleRule:   DueMonthEnd,
		CycleRule:      DueCapped30,
		QualifyingRule: QualifyPeriodPaid,
	}
}

// RulesDiverge reports whether schedule and cycle due days can disagree.
func (p Policy) RulesDiverge() bool { return p.ScheduleRule != p.CycleRule }

func (p Policy) location() *time.Location {
	if p.Location == nil {
		return time.UTC
	}
	return p.Location
}

func (p Policy) currency() generic.Currency {
	if p.Currency == "" {
		return generic.DefaultCurrency
	}
	return p.Currency
}

// ExpectedPerPeriod returns shareCount * unitValue.
func (p Policy) ExpectedPerPeriod(shareCount int, unitValue decimal.Decimal) generic.Amount {
	return generic.NewAmountFromDecimal(unitValue.Mul(decimal.NewFromInt(int64(shareCount))), p.currency())
}
