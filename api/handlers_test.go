/*
handlers_test.go - HTTP tests for the ledger API

Tests drive the chi router end to end over an in-memory SQLite store:
- Dues view: carryover, late periods, next due, window cut
- Admin member detail: per-period allocations
- Payments: idempotency, validation, unknown owners
- Loans: limits, release, schedule status, lump-sum warning
- Settings and dividends: per-share, eligibility rules, idempotent payouts
- Scenarios and the cycle scheduler
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/warp/coop-ledger/dividend"
	"github.com/warp/coop-ledger/generic"
	"github.com/warp/coop-ledger/loans"
	"github.com/warp/coop-ledger/shares"
	"github.com/warp/coop-ledger/store/sqlite"
)

// =============================================================================
// TEST HARNESS
// =============================================================================

// stepClock is a settable clock shared by the handler and the dividend
// service.
type stepClock struct {
	mu sync.Mutex
	at time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.at
}

func (c *stepClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.at = t
}

type testServer struct {
	h      *Handler
	router http.Handler
	clock  *stepClock
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	clock := &stepClock{at: time.Date(2025, time.July, 10, 9, 0, 0, 0, time.UTC)}
	policy := shares.DefaultPolicy()
	log := zap.NewNop()

	svc := dividend.NewService(store, dividend.NewMemoryCache(), policy, clock, log)
	h := NewHandler(store, svc, policy, clock, log)
	return &testServer{h: h, router: NewRouter(h, nil), clock: clock}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decodeAs[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (s *testServer) createMember(t *testing.T, id string, shareCount int) {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/members", CreateMemberRequest{
		ID:         id,
		Name:       "Member " + id,
		ShareCount: shareCount,
		JoinedAt:   "2025-01-01",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func (s *testServer) pay(t *testing.T, path, amount, paidAt string) *httptest.ResponseRecorder {
	t.Helper()
	return s.do(t, http.MethodPost, path, RecordPaymentRequest{Amount: amount, PaidAt: paidAt, Method: "cash"})
}

// =============================================================================
// DUES
// =============================================================================

func TestMemberDues_LumpSumCarriesOver(t *testing.T) {
	s := newTestServer(t)
	s.createMember(t, "m1", 2)

	// GIVEN: 2 shares at 250 is 500 per period; one payment of six periods
	rec := s.pay(t, "/api/members/m1/payments", "3000", "2025-01-10")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "3000.00", decodeAs[PaymentDTO](t, rec).Amount)

	// WHEN
	rec = s.do(t, http.MethodGet, "/api/members/m1/dues?year=2025", nil)

	// THEN
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	dues := decodeAs[MemberDuesResponse](t, rec)

	assert.Equal(t, "500.00", dues.PerPeriod)
	require.Len(t, dues.Periods, 24)
	for i := 0; i < 6; i++ {
		assert.Equal(t, "PAID", dues.Periods[i].Status, "period %d", i)
	}
	assert.Equal(t, "NO_PAYMENT", dues.Periods[6].Status)
	assert.True(t, dues.Periods[6].IsLate)
	assert.False(t, dues.Periods[12].IsPast, "July H1 is not due yet")

	assert.Equal(t, 6, dues.Summary.Paid)
	assert.Equal(t, 6, dues.Summary.Late)
	assert.Equal(t, "3000.00", dues.Summary.TotalPaid)
	assert.Equal(t, "12000.00", dues.Summary.TotalExpected)
	assert.Equal(t, "9000.00", dues.Summary.TotalRemaining)
	require.NotNil(t, dues.Summary.NextDue)
	assert.Equal(t, "2025-04 H1", dues.Summary.NextDue.Label)
	assert.Empty(t, dues.Periods[0].Allocations, "member view carries no allocations")
}

func TestMemberDues_PriorYearPaymentsSettlePriorYear(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodPost, "/api/members", CreateMemberRequest{
		ID: "m1", Name: "Ana", ShareCount: 1, JoinedAt: "2024-12-01",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	// GIVEN: a December 2024 payment covering both December periods only
	require.Equal(t, http.StatusCreated, s.pay(t, "/api/members/m1/payments", "500", "2024-12-01").Code)

	// WHEN: only 2025 is requested
	dues := decodeAs[MemberDuesResponse](t, s.do(t, http.MethodGet, "/api/members/m1/dues?year=2025", nil))

	// THEN: 2024 absorbed the payment, 2025 shows nothing paid
	require.Len(t, dues.Periods, 24)
	assert.Equal(t, "0.00", dues.Summary.TotalPaid)
	assert.Equal(t, "0.00", dues.Summary.TotalUnallocated)

	// AND: asking for two years shows the December periods paid
	dues = decodeAs[MemberDuesResponse](t, s.do(t, http.MethodGet, "/api/members/m1/dues?year=2025&years=2", nil))
	assert.Equal(t, 2024, dues.FromYear)
	require.Len(t, dues.Periods, 26)
	assert.Equal(t, "PAID", dues.Periods[0].Status)
	assert.Equal(t, "PAID", dues.Periods[1].Status)
}

func TestMemberDues_BadQuery(t *testing.T) {
	s := newTestServer(t)
	s.createMember(t, "m1", 1)

	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/api/members/m1/dues?year=abc", nil).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/api/members/m1/dues?years=0", nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/api/members/ghost/dues", nil).Code)
}

func TestAdminMember_ShowsCarryoverAllocations(t *testing.T) {
	s := newTestServer(t)
	s.createMember(t, "m1", 2)

	// GIVEN: one payment covering two periods
	pay := decodeAs[PaymentDTO](t, s.pay(t, "/api/members/m1/payments", "1000", "2025-01-02"))

	// WHEN
	rec := s.do(t, http.MethodGet, "/api/admin/members/m1?year=2025", nil)

	// THEN
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decodeAs[AdminMemberResponse](t, rec)

	require.Len(t, resp.Dues.Periods[0].Allocations, 1)
	first := resp.Dues.Periods[0].Allocations[0]
	assert.Equal(t, pay.ID, first.PaymentID)
	assert.Equal(t, "500.00", first.Applied)
	assert.False(t, first.IsCarryover)

	require.Len(t, resp.Dues.Periods[1].Allocations, 1)
	assert.True(t, resp.Dues.Periods[1].Allocations[0].IsCarryover)

	assert.Len(t, resp.Payments, 1)
	assert.Empty(t, resp.Loans)
	assert.Empty(t, resp.Eligibility)
}

// =============================================================================
// PAYMENTS
// =============================================================================

func TestRecordPayment_IdempotencyKey(t *testing.T) {
	s := newTestServer(t)
	s.createMember(t, "m1", 1)
	req := RecordPaymentRequest{Amount: "250", IdempotencyKey: "receipt-001"}

	// GIVEN: a recorded payment
	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/api/members/m1/payments", req).Code)

	// WHEN: the same receipt is posted again
	rec := s.do(t, http.MethodPost, "/api/members/m1/payments", req)

	// THEN
	assert.Equal(t, http.StatusConflict, rec.Code)
	payments := decodeAs[[]PaymentDTO](t, s.do(t, http.MethodGet, "/api/members/m1/payments", nil))
	assert.Len(t, payments, 1)
}

func TestRecordPayment_DuplicateID(t *testing.T) {
	s := newTestServer(t)
	s.createMember(t, "m1", 1)

	// GIVEN: a payment recorded under a caller-chosen ID
	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/api/members/m1/payments", RecordPaymentRequest{ID: "or-1001", Amount: "250"}).Code)

	// WHEN: another payment reuses the ID
	rec := s.do(t, http.MethodPost, "/api/members/m1/payments", RecordPaymentRequest{ID: "or-1001", Amount: "300"})

	// THEN
	assert.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())
	payments := decodeAs[[]PaymentDTO](t, s.do(t, http.MethodGet, "/api/members/m1/payments", nil))
	assert.Len(t, payments, 1)
}

func TestRecordPayment_Validation(t *testing.T) {
	s := newTestServer(t)
	s.createMember(t, "m1", 1)

	tests := []struct {
		name string
		req  RecordPaymentRequest
		want int
	}{
		{"zero amount", RecordPaymentRequest{Amount: "0"}, http.StatusBadRequest},
		{"negative amount", RecordPaymentRequest{Amount: "-10"}, http.StatusBadRequest},
		{"not a number", RecordPaymentRequest{Amount: "ten"}, http.StatusBadRequest},
		{"missing amount", RecordPaymentRequest{}, http.StatusBadRequest},
		{"unknown method", RecordPaymentRequest{Amount: "10", Method: "barter"}, http.StatusBadRequest},
		{"bad date", RecordPaymentRequest{Amount: "10", PaidAt: "July 1st"}, http.StatusBadRequest},
		{"defaults paid_at to now", RecordPaymentRequest{Amount: "10"}, http.StatusCreated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, "/api/members/m1/payments", tt.req)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}

	payments := decodeAs[[]PaymentDTO](t, s.do(t, http.MethodGet, "/api/members/m1/payments", nil))
	require.Len(t, payments, 1)
	assert.Equal(t, s.clock.Now().Format(time.RFC3339), payments[0].PaidAt)
}

func TestRecordPayment_UnknownOwner(t *testing.T) {
	s := newTestServer(t)

	assert.Equal(t, http.StatusNotFound, s.pay(t, "/api/members/ghost/payments", "100", "").Code)
	assert.Equal(t, http.StatusNotFound, s.pay(t, "/api/loans/ghost/payments", "100", "").Code)
}

// =============================================================================
// LOANS
// =============================================================================

func TestLoan_ReleaseAndSchedule(t *testing.T) {
	s := newTestServer(t)
	s.createMember(t, "m1", 1)

	// GIVEN: a 12 month loan of 12000
	rec := s.do(t, http.MethodPost, "/api/loans", CreateLoanRequest{
		ID:              "L1",
		MemberID:        "m1",
		Principal:       "12000",
		TermMonths:      12,
		ApplicationDate: "2025-01-05",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	loan := decodeAs[LoanDTO](t, rec)
	assert.Equal(t, "1000.00", loan.MonthlyAmortization)
	assert.Equal(t, "pending", loan.Status)

	// WHEN: released on Jan 20 and repaid once
	rec = s.do(t, http.MethodPost, "/api/loans/L1/release", ReleaseLoanRequest{ReleasedAt: "2025-01-20"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "released", decodeAs[LoanDTO](t, rec).Status)
	require.Equal(t, http.StatusCreated, s.pay(t, "/api/loans/L1/payments", "1000", "2025-02-20").Code)

	// THEN: installments start at the end of February
	rec = s.do(t, http.MethodGet, "/api/loans/L1/schedule", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	view := decodeAs[LoanScheduleDTO](t, rec)

	require.Len(t, view.Periods, 12)
	assert.Empty(t, view.Warning)
	assert.Equal(t, "PAID", view.Periods[0].Status)
	assert.Equal(t, "2025-02-28T23:59:59Z", view.Periods[0].DueAt)
	assert.Equal(t, 1, view.Summary.Paid)
	assert.Equal(t, 4, view.Summary.Late, "March through June are past due")
	assert.Equal(t, "11000.00", view.Summary.TotalRemaining)

	// AND: releasing twice conflicts
	assert.Equal(t, http.StatusConflict, s.do(t, http.MethodPost, "/api/loans/L1/release", nil).Code)
}

func TestLoan_Limits(t *testing.T) {
	s := newTestServer(t)
	s.createMember(t, "m1", 1)

	base := CreateLoanRequest{MemberID: "m1", TermMonths: 6, ApplicationDate: "2025-03-01"}

	tests := []struct {
		name      string
		principal string
		member    string
		want      int
	}{
		{"below minimum", "999.99", "m1", http.StatusBadRequest},
		{"above maximum", "500000.01", "m1", http.StatusBadRequest},
		{"at minimum", "1000", "m1", http.StatusCreated},
		{"unknown member", "5000", "ghost", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := base
			req.Principal = tt.principal
			req.MemberID = tt.member
			rec := s.do(t, http.MethodPost, "/api/loans", req)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}

func TestLoan_ScheduleWithoutTermWarns(t *testing.T) {
	s := newTestServer(t)
	s.createMember(t, "m1", 1)

	// GIVEN: no term and no maturity
	rec := s.do(t, http.MethodPost, "/api/loans", CreateLoanRequest{
		ID: "L2", MemberID: "m1", Principal: "5000", ApplicationDate: "2025-03-01",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.Equal(t, http.StatusCreated, s.pay(t, "/api/loans/L2/payments", "700", "2025-04-01").Code)

	// WHEN
	rec = s.do(t, http.MethodGet, "/api/loans/L2/schedule", nil)

	// THEN: the view still answers, with every payment unallocated
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	view := decodeAs[LoanScheduleDTO](t, rec)
	assert.NotEmpty(t, view.Warning)
	assert.Empty(t, view.Periods)
	require.Len(t, view.Unallocated, 1)
	assert.Equal(t, "700.00", view.Unallocated[0].Amount)
}

// =============================================================================
// SETTINGS
// =============================================================================

func TestSettings_UnitValueDrivesDues(t *testing.T) {
	s := newTestServer(t)
	s.createMember(t, "m1", 2)

	got := decodeAs[SettingsDTO](t, s.do(t, http.MethodGet, "/api/settings", nil))
	assert.Equal(t, "250", got.ShareUnitValue)

	// WHEN
	rec := s.do(t, http.MethodPut, "/api/settings", UpdateSettingsRequest{
		ShareUnitValue: "300", MinLoanAmount: "1000", MaxLoanAmount: "500000", UpdatedBy: "admin",
	})

	// THEN
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	dues := decodeAs[MemberDuesResponse](t, s.do(t, http.MethodGet, "/api/members/m1/dues", nil))
	assert.Equal(t, "600.00", dues.PerPeriod)

	bad := []UpdateSettingsRequest{
		{ShareUnitValue: "0", MinLoanAmount: "1", MaxLoanAmount: "2"},
		{ShareUnitValue: "250", MinLoanAmount: "5000", MaxLoanAmount: "1000"},
		{ShareUnitValue: "abc", MinLoanAmount: "1", MaxLoanAmount: "2"},
	}
	for i, req := range bad {
		assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPut, "/api/settings", req).Code, "case %d", i)
	}
}

// =============================================================================
// DIVIDENDS
// =============================================================================

func boolPtr(b bool) *bool { return &b }

func TestDividends_PerShareAndPayouts(t *testing.T) {
	s := newTestServer(t)
	s.createMember(t, "a", 4)
	s.createMember(t, "b", 6)
	s.createMember(t, "c", 2)

	// GIVEN: a and b pay July H1 before it is due, c does not pay
	require.Equal(t, http.StatusCreated, s.pay(t, "/api/members/a/payments", "1000", "2025-07-01").Code)
	require.Equal(t, http.StatusCreated, s.pay(t, "/api/members/b/payments", "1500", "2025-07-01").Code)

	rec := s.do(t, http.MethodPut, "/api/dividends/2025/profit-pool", ProfitPoolRequest{Amount: "10000", UpdatedBy: "treasurer"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	for _, id := range []string{"a", "b", "c"} {
		rec := s.do(t, http.MethodPut, "/api/dividends/2025/eligibility", UpsertEligibilityRequest{
			MemberID: id, Cycle: 1, IsEligible: boolPtr(true), UpdatedBy: "treasurer",
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}

	// WHEN
	rec = s.do(t, http.MethodGet, "/api/dividends/2025/per-share", nil)

	// THEN: 10000 over the 10 qualifying shares
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "1000", decodeAs[PerShareResponse](t, rec).PerShare)

	// AND: the payout creates one row per qualifying member
	rec = s.do(t, http.MethodPost, "/api/dividends/2025/payouts", DistributePayoutsRequest{Actor: "treasurer"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	batch := decodeAs[PayoutBatchResponse](t, rec)
	assert.Equal(t, "2025-07 H1", batch.Cycle)
	assert.Equal(t, 2, batch.Summary.Created)
	assert.Equal(t, 0, batch.Summary.Failed)
	assert.Equal(t, "10000.00", batch.Summary.TotalAmount)

	// AND: running it again creates nothing
	again := decodeAs[PayoutBatchResponse](t, s.do(t, http.MethodPost, "/api/dividends/2025/payouts", DistributePayoutsRequest{Actor: "treasurer"}))
	assert.Equal(t, 0, again.Summary.Created)
	assert.Equal(t, 2, again.Summary.Failed)

	payouts := decodeAs[[]PayoutDTO](t, s.do(t, http.MethodGet, "/api/dividends/2025/payouts", nil))
	assert.Len(t, payouts, 2)
}

func TestDividends_EligibilityChangeInvalidatesPerShare(t *testing.T) {
	s := newTestServer(t)
	s.createMember(t, "a", 4)
	s.createMember(t, "b", 4)
	require.Equal(t, http.StatusCreated, s.pay(t, "/api/members/a/payments", "1000", "2025-07-01").Code)
	require.Equal(t, http.StatusCreated, s.pay(t, "/api/members/b/payments", "1000", "2025-07-01").Code)
	s.do(t, http.MethodPut, "/api/dividends/2025/profit-pool", ProfitPoolRequest{Amount: "800"})
	for _, id := range []string{"a", "b"} {
		s.do(t, http.MethodPut, "/api/dividends/2025/eligibility", UpsertEligibilityRequest{MemberID: id, Cycle: 1, IsEligible: boolPtr(true)})
	}
	assert.Equal(t, "100", decodeAs[PerShareResponse](t, s.do(t, http.MethodGet, "/api/dividends/2025/per-share", nil)).PerShare)

	// WHEN: b is marked ineligible
	rec := s.do(t, http.MethodPut, "/api/dividends/2025/eligibility", UpsertEligibilityRequest{
		MemberID: "b", Cycle: 1, IsEligible: boolPtr(false), Reason: "Unpaid loan",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// THEN: the cached value is recomputed
	assert.Equal(t, "200", decodeAs[PerShareResponse](t, s.do(t, http.MethodGet, "/api/dividends/2025/per-share", nil)).PerShare)

	records := decodeAs[[]EligibilityDTO](t, s.do(t, http.MethodGet, "/api/dividends/2025/eligibility", nil))
	require.Len(t, records, 2)
}

func TestDividends_EligibilityValidation(t *testing.T) {
	s := newTestServer(t)
	s.createMember(t, "a", 1)

	tests := []struct {
		name string
		req  UpsertEligibilityRequest
		want int
	}{
		{"ineligible without reason", UpsertEligibilityRequest{MemberID: "a", Cycle: 1, IsEligible: boolPtr(false)}, http.StatusBadRequest},
		{"cycle out of range", UpsertEligibilityRequest{MemberID: "a", Cycle: 3, IsEligible: boolPtr(true)}, http.StatusBadRequest},
		{"missing flag", UpsertEligibilityRequest{MemberID: "a", Cycle: 1}, http.StatusBadRequest},
		{"unknown member", UpsertEligibilityRequest{MemberID: "ghost", Cycle: 1, IsEligible: boolPtr(true)}, http.StatusNotFound},
		{"eligible", UpsertEligibilityRequest{MemberID: "a", Cycle: 2, IsEligible: boolPtr(true)}, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodPut, "/api/dividends/2025/eligibility", tt.req)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}

func TestDividends_NegativePoolAndBadYear(t *testing.T) {
	s := newTestServer(t)

	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPut, "/api/dividends/2025/profit-pool", ProfitPoolRequest{Amount: "-1"}).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/api/dividends/twenty/per-share", nil).Code)

	// No pool, no members: zero, not an error
	rec := s.do(t, http.MethodGet, "/api/dividends/2025/per-share", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "0", decodeAs[PerShareResponse](t, rec).PerShare)
}

// =============================================================================
// SCENARIOS
// =============================================================================

func TestScenario_AdvancePayer(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "advance-payer"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	current := decodeAs[ScenarioDTO](t, s.do(t, http.MethodGet, "/api/scenarios/current", nil))
	assert.Equal(t, "advance-payer", current.ID)

	resp := decodeAs[AdminMemberResponse](t, s.do(t, http.MethodGet, "/api/admin/members/mem-002", nil))
	assert.Equal(t, 6, resp.Dues.Summary.Paid)
	require.Len(t, resp.Dues.Periods[5].Allocations, 1)
	assert.True(t, resp.Dues.Periods[5].Allocations[0].IsCarryover)
}

func TestScenario_LateBorrower(t *testing.T) {
	s := newTestServer(t)
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "late-borrower"}).Code)

	view := decodeAs[LoanScheduleDTO](t, s.do(t, http.MethodGet, "/api/loans/loan-001/schedule", nil))

	assert.Equal(t, 2, view.Summary.Paid)
	assert.Equal(t, 1, view.Summary.Partial)
	assert.Equal(t, "NO_PAYMENT", view.Periods[2].Status)
}

func TestScenario_DividendYear(t *testing.T) {
	s := newTestServer(t)
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "dividend-year"}).Code)

	// 150000 over 15 qualifying shares; the ineligible member is excluded
	rec := s.do(t, http.MethodGet, "/api/dividends/2025/per-share", nil)
	assert.Equal(t, "10000", decodeAs[PerShareResponse](t, rec).PerShare)
}

func TestScenario_LoadResetsPreviousData(t *testing.T) {
	s := newTestServer(t)
	s.createMember(t, "stale", 1)

	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "on-time-member"}).Code)

	members := decodeAs[[]MemberDTO](t, s.do(t, http.MethodGet, "/api/members", nil))
	require.Len(t, members, 1)
	assert.Equal(t, "mem-001", members[0].ID)

	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "nope"}).Code)

	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/api/scenarios/reset", nil).Code)
	assert.Empty(t, decodeAs[[]MemberDTO](t, s.do(t, http.MethodGet, "/api/members", nil)))
}

// =============================================================================
// SCHEDULER
// =============================================================================

func TestCycleScheduler_RefreshesOnRollover(t *testing.T) {
	s := newTestServer(t)
	cs := NewCycleScheduler(s.h)
	ctx := context.Background()

	// GIVEN: the first check always refreshes
	assert.True(t, cs.RunNow(ctx))

	// WHEN: still inside July H1
	s.clock.Set(time.Date(2025, time.July, 14, 0, 0, 0, 0, time.UTC))
	assert.False(t, cs.RunNow(ctx))

	// THEN: crossing into July H2 refreshes again
	s.clock.Set(time.Date(2025, time.July, 16, 0, 0, 0, 0, time.UTC))
	assert.True(t, cs.RunNow(ctx))
}

func TestCycleScheduler_StartStop(t *testing.T) {
	s := newTestServer(t)
	cs := NewCycleScheduler(s.h)
	cs.CheckInterval = time.Hour

	cs.Start()
	cs.Start()
	cs.Stop()
	cs.Stop()
}

// =============================================================================
// ERRORS & HEALTH
// =============================================================================

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"duplicate key", generic.ErrDuplicateIdempotencyKey, http.StatusConflict},
		{"duplicate payment id", fmt.Errorf("payment p1: %w", generic.ErrDuplicatePayment), http.StatusConflict},
		{"duplicate payout", &dividend.DuplicatePayoutError{MemberID: "a", Year: 2025}, http.StatusConflict},
		{"already released", loans.ErrAlreadyReleased, http.StatusConflict},
		{"member missing", fmt.Errorf("load: %w", generic.ErrMemberNotFound), http.StatusNotFound},
		{"bad amount", &generic.InvalidPaymentAmountError{PaymentID: "p"}, http.StatusBadRequest},
		{"reason required", dividend.ErrReasonRequired, http.StatusBadRequest},
		{"bad term", loans.ErrInvalidTerm, http.StatusBadRequest},
		{"validation", validator.ValidationErrors{}, http.StatusBadRequest},
		{"anything else", errors.New("disk full"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/healthz", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}
