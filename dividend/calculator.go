package dividend

import (
	"github.com/shopspring/decimal"
	"github.com/warp/coop-ledger/generic"
	"github.com/warp/coop-ledger/shares"
)

// =============================================================================
// INPUT / RESULT
// =============================================================================

// MemberPayments pairs a member with their dues payments.
type MemberPayments struct {
	Member   shares.Member
	Payments []generic.Payment
}

type Input struct {
	Year        int
	Cycle       shares.Cycle
	ProfitPool  generic.Amount
	Members     []MemberPayments
	Eligibility []Eligibility
	Policy      shares.Policy
	UnitValue   decimal.Decimal
}

// Exclusion explains why a member is left out of the denominator.
type Exclusion struct {
	MemberID string
	Reason   string
}

const (
	ExcludedNoRecord     = "no eligibility record"
	ExcludedIneligible   = "marked ineligible"
	ExcludedNoQualifying = "no qualifying payment"
)

type Qualifier struct {
	MemberID   string
	ShareCount int
}

type Result struct {
	Year                int
	Cycle               shares.Cycle
	ProfitPool          generic.Amount
	TotalEligibleShares int
	PerShare            decimal.Decimal
	Qualifying          []Qualifier
	Excluded            []Exclusion
}

// =============================================================================
// CALCULATE
// =============================================================================

// Calculate computes the per-share amount for a year. It is a pure function
// of its input. Zero qualifying shares give a per-share of 0, not an error;
// the only error is an invalid payment amount in a member's history.
func Calculate(in Input) (Result, error) {
	result := Result{
		Year:       in.Year,
		Cycle:      in.Cycle,
		ProfitPool: in.ProfitPool,
		PerShare:   decimal.Zero,
	}

	records := make(map[string]Eligibility, len(in.Eligibility))
	for _, e := range in.Eligibility {
		if e.Year == in.Year && e.Cycle == in.Cycle.Number {
			records[e.MemberID] = e
		}
	}

	for _, mp := range in.Members {
		id := mp.Member.ID
		rec, ok := records[id]
		if !ok {
			result.Excluded = append(result.Excluded, Exclusion{MemberID: id, Reason: ExcludedNoRecord})
			continue
		}
		if !rec.IsEligible {
			result.Excluded = append(result.Excluded, Exclusion{MemberID: id, Reason: ExcludedIneligible + ": " + rec.Reason})
			continue
		}

		qualifies, err := shares.HasQualifyingPayment(mp.Member, mp.Payments, in.Cycle, in.Policy, in.UnitValue)
		if err != nil {
			return Result{}, err
		}
		if !qualifies {
			result.Excluded = append(result.Excluded, Exclusion{MemberID: id, Reason: ExcludedNoQualifying})
			continue
		}

		result.Qualifying = append(result.Qualifying, Qualifier{MemberID: id, ShareCount: mp.Member.ShareCount})
		result.TotalEligibleShares += mp.Member.ShareCount
	}

	result.PerShare = PerShare(in.ProfitPool.Value, result.TotalEligibleShares)
	return result, nil
}

// PerShare divides the pool by the share count, or returns 0 for no shares.
func PerShare(pool decimal.Decimal, totalShares int) decimal.Decimal {
	if totalShares <= 0 {
		return decimal.Zero
	}
	return pool.Div(decimal.NewFromInt(int64(totalShares)))
}

// PayoutAmount returns round(perShare * shareCount, 2).
func PayoutAmount(perShare decimal.Decimal, shareCount int, currency generic.Currency) generic.Amount {
	return generic.NewAmountFromDecimal(perShare.Mul(decimal.NewFromInt(int64(shareCount))).Round(2), currency)
}
