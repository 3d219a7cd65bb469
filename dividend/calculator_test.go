package dividend_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/coop-ledger/dividend"
	"github.com/warp/coop-ledger/generic"
	"github.com/warp/coop-ledger/shares"
)

var (
	unitValue = decimal.NewFromInt(250)
	today     = time.Date(2025, time.July, 10, 9, 0, 0, 0, time.UTC)
)

func php(v int64) generic.Amount { return generic.NewAmount(v, generic.CurrencyPHP) }

func duesPayment(memberID string, amount int64, at time.Time) generic.Payment {
	return generic.Payment{
		ID:     generic.PaymentID(memberID + "-" + at.Format("0102")),
		Owner:  generic.MemberOwner(memberID),
		Amount: php(amount),
		PaidAt: at,
	}
}

func eligible(memberID string, cycle int) dividend.Eligibility {
	return dividend.Eligibility{MemberID: memberID, Year: 2025, Cycle: cycle, IsEligible: true}
}

func baseInput() dividend.Input {
	policy := shares.DefaultPolicy()
	return dividend.Input{
		Year:       2025,
		Cycle:      shares.CurrentCycle(today, policy),
		ProfitPool: php(100000),
		Policy:     policy,
		UnitValue:  unitValue,
	}
}

// =============================================================================
// CALCULATE
// =============================================================================

func TestCalculate_PerShare(t *testing.T) {
	// GIVEN: three eligible members, two of whom paid the cycle in full
	in := baseInput()
	in.Members = []dividend.MemberPayments{
		{Member: shares.Member{ID: "a", ShareCount: 10}, Payments: []generic.Payment{duesPayment("a", 2500, time.Date(2025, time.July, 5, 0, 0, 0, 0, time.UTC))}},
		{Member: shares.Member{ID: "b", ShareCount: 30}, Payments: []generic.Payment{duesPayment("b", 7500, time.Date(2025, time.July, 15, 8, 0, 0, 0, time.UTC))}},
		{Member: shares.Member{ID: "c", ShareCount: 60}, Payments: []generic.Payment{duesPayment("c", 100, time.Date(2025, time.July, 5, 0, 0, 0, 0, time.UTC))}},
	}
	in.Eligibility = []dividend.Eligibility{eligible("a", 1), eligible("b", 1), eligible("c", 1)}

	// WHEN
	result, err := dividend.Calculate(in)
	require.NoError(t, err)

	// THEN: 100000 / 40 shares
	assert.Equal(t, 40, result.TotalEligibleShares)
	assert.True(t, decimal.NewFromInt(2500).Equal(result.PerShare), "got %s", result.PerShare)
	require.Len(t, result.Qualifying, 2)
	require.Len(t, result.Excluded, 1)
	assert.Equal(t, "c", result.Excluded[0].MemberID)
	assert.Equal(t, dividend.ExcludedNoQualifying, result.Excluded[0].Reason)
}

func TestCalculate_EligibilityFilters(t *testing.T) {
	paid := func(id string) dividend.MemberPayments {
		return dividend.MemberPayments{
			Member:   shares.Member{ID: id, ShareCount: 10},
			Payments: []generic.Payment{duesPayment(id, 2500, time.Date(2025, time.July, 5, 0, 0, 0, 0, time.UTC))},
		}
	}

	in := baseInput()
	in.Members = []dividend.MemberPayments{paid("yes"), paid("no-record"), paid("ineligible"), paid("other-cycle"), paid("other-year")}
	in.Eligibility = []dividend.Eligibility{
		eligible("yes", 1),
		{MemberID: "ineligible", Year: 2025, Cycle: 1, IsEligible: false, Reason: "suspended"},
		eligible("other-cycle", 2),
		{MemberID: "other-year", Year: 2024, Cycle: 1, IsEligible: true},
	}

	result, err := dividend.Calculate(in)
	require.NoError(t, err)

	assert.Equal(t, 10, result.TotalEligibleShares)
	require.Len(t, result.Qualifying, 1)
	assert.Equal(t, "yes", result.Qualifying[0].MemberID)

	reasons := map[string]string{}
	for _, e := range result.Excluded {
		reasons[e.MemberID] = e.Reason
	}
	assert.Equal(t, dividend.ExcludedNoRecord, reasons["no-record"])
	assert.Equal(t, dividend.ExcludedIneligible+": suspended", reasons["ineligible"])
	assert.Equal(t, dividend.ExcludedNoRecord, reasons["other-cycle"])
	assert.Equal(t, dividend.ExcludedNoRecord, reasons["other-year"])
}

func TestCalculate_ZeroEligibleShares(t *testing.T) {
	// GIVEN: eligible members, nobody paid
	in := baseInput()
	in.Members = []dividend.MemberPayments{
		{Member: shares.Member{ID: "a", ShareCount: 10}},
		{Member: shares.Member{ID: "b", ShareCount: 20}},
	}
	in.Eligibility = []dividend.Eligibility{eligible("a", 1), eligible("b", 1)}

	// WHEN
	result, err := dividend.Calculate(in)

	// THEN: defined zero, not an error
	require.NoError(t, err)
	assert.Equal(t, 0, result.TotalEligibleShares)
	assert.True(t, result.PerShare.IsZero())
	assert.Empty(t, result.Qualifying)
}

func TestCalculate_InvalidPaymentPropagates(t *testing.T) {
	in := baseInput()
	in.Members = []dividend.MemberPayments{
		{Member: shares.Member{ID: "a", ShareCount: 10}, Payments: []generic.Payment{duesPayment("a", 0, time.Date(2025, time.July, 5, 0, 0, 0, 0, time.UTC))}},
	}
	in.Eligibility = []dividend.Eligibility{eligible("a", 1)}

	_, err := dividend.Calculate(in)

	assert.ErrorIs(t, err, generic.ErrInvalidPaymentAmount)
}

func TestPerShareAndPayoutAmount(t *testing.T) {
	assert.True(t, dividend.PerShare(decimal.NewFromInt(100), 0).IsZero())

	perShare := dividend.PerShare(decimal.NewFromInt(100000), 3)
	assert.Equal(t, "33333.33", dividend.PayoutAmount(perShare, 1, generic.CurrencyPHP).String())
	assert.Equal(t, "66666.67", dividend.PayoutAmount(perShare, 2, generic.CurrencyPHP).String())
}

// =============================================================================
// ELIGIBILITY
// =============================================================================

func TestEligibility_Validate(t *testing.T) {
	tests := []struct {
		name    string
		rec     dividend.Eligibility
		wantErr error
	}{
		{"eligible", dividend.Eligibility{MemberID: "a", Year: 2025, Cycle: 1, IsEligible: true}, nil},
		{"ineligible with reason", dividend.Eligibility{MemberID: "a", Year: 2025, Cycle: 2, Reason: "arrears"}, nil},
		{"ineligible without reason", dividend.Eligibility{MemberID: "a", Year: 2025, Cycle: 2}, dividend.ErrReasonRequired},
		{"bad cycle", dividend.Eligibility{MemberID: "a", Year: 2025, Cycle: 3, IsEligible: true}, dividend.ErrInvalidCycle},
		{"no member", dividend.Eligibility{Year: 2025, Cycle: 1, IsEligible: true}, generic.ErrMemberNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.rec.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestMemoryCache(t *testing.T) {
	ctx := context.Background()
	c := dividend.NewMemoryCache()

	miss, err := c.Get(ctx, 2025)
	require.NoError(t, err)
	assert.False(t, miss.Found)

	stored, err := c.Set(ctx, 2025, miss.Generation, decimal.NewFromInt(12))
	require.NoError(t, err)
	assert.True(t, stored)
	hit, err := c.Get(ctx, 2025)
	require.NoError(t, err)
	assert.True(t, hit.Found)
	assert.Equal(t, "12", hit.PerShare.String())

	require.NoError(t, c.Invalidate(ctx, 2025))
	after, _ := c.Get(ctx, 2025)
	assert.False(t, after.Found)
	assert.Greater(t, after.Generation, miss.Generation)
}

func TestMemoryCache_SetAfterInvalidateIsDropped(t *testing.T) {
	ctx := context.Background()
	c := dividend.NewMemoryCache()

	// GIVEN: a miss read before an invalidation
	miss, err := c.Get(ctx, 2025)
	require.NoError(t, err)
	require.NoError(t, c.Invalidate(ctx, 2025))

	// WHEN: the value computed from the old read is stored
	stored, err := c.Set(ctx, 2025, miss.Generation, decimal.NewFromInt(12))

	// THEN: it is dropped
	require.NoError(t, err)
	assert.False(t, stored)
	entry, _ := c.Get(ctx, 2025)
	assert.False(t, entry.Found)
}
