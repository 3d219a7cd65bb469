/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	data for demos. Each scenario creates members, loans and payments that
	exercise one reconciliation behavior. Dates are relative to the
	handler's clock so the demo reads the same whenever it is loaded.

AVAILABLE SCENARIOS:

	on-time-member:  Every dues period paid a few days early
	advance-payer:   One lump sum spread over several periods (carryover)
	late-borrower:   Released loan with missed and partial repayments
	dividend-year:   Three members, a profit pool and one ineligible member

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Create members and loans
 3. Record payments through the ledger
 4. Optionally set profit pool and eligibility

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "advance-payer"}

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: record and reconcile paths the scenarios feed
*/
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/coop-ledger/dividend"
	"github.com/warp/coop-ledger/generic"
	"github.com/warp/coop-ledger/loans"
	"github.com/warp/coop-ledger/shares"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "on-time-member",
		Name:        "On-Time Member",
		Description: "Every dues period of the year paid two days before it is due",
		Category:    "dues",
	},
	{
		ID:          "advance-payer",
		Name:        "Advance Payer",
		Description: "A single January payment covering six periods",
		Category:    "dues",
	},
	{
		ID:          "late-borrower",
		Name:        "Late Borrower",
		Description: "Released loan with one missed month and a partial repayment",
		Category:    "loans",
	},
	{
		ID:          "dividend-year",
		Name:        "Dividend Year",
		Description: "Profit pool shared by two eligible members; one member marked ineligible",
		Category:    "dividends",
	},
}

type scenarioLoader func(h *Handler, ctx context.Context) error

var scenarioLoaders = map[string]scenarioLoader{
	"on-time-member": (*Handler).loadOnTimeMemberScenario,
	"advance-payer":  (*Handler).loadAdvancePayerScenario,
	"late-borrower":  (*Handler).loadLateBorrowerScenario,
	"dividend-year":  (*Handler).loadDividendYearScenario,
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.scenarioMu.Lock()
	current := h.currentScenario
	h.scenarioMu.Unlock()

	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadScenario resets the database and loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	load, ok := scenarioLoaders[req.ScenarioID]
	if !ok {
		writeError(w, http.StatusBadRequest, "Unknown scenario", fmt.Errorf("scenario %q", req.ScenarioID))
		return
	}

	h.scenarioMu.Lock()
	defer h.scenarioMu.Unlock()

	ctx := r.Context()
	if err := h.resetAll(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.currentScenario = ""

	if err := load(h, ctx); err != nil {
		h.fail(w, "Failed to load scenario", err)
		return
	}
	h.currentScenario = req.ScenarioID

	h.Logger.Info("scenario loaded", zap.String("scenario", req.ScenarioID))
	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// ResetDatabase clears all data.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	h.scenarioMu.Lock()
	defer h.scenarioMu.Unlock()

	if err := h.resetAll(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.currentScenario = ""
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// resetAll clears the store and the cached per-share of the current year.
func (h *Handler) resetAll(ctx context.Context) error {
	if err := h.Store.Reset(ctx); err != nil {
		return err
	}
	return h.Dividends.InvalidateYear(ctx, h.Clock.Now().In(h.location()).Year())
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func (h *Handler) loadOnTimeMemberScenario(ctx context.Context) error {
	year := h.Clock.Now().In(h.location()).Year()
	m := shares.Member{
		ID:         "mem-001",
		Name:       "Ana Reyes",
		Email:      "ana@example.com",
		ShareCount: 4,
		JoinedAt:   generic.StartOfYear(year, h.location()),
	}
	if err := h.Store.SaveMember(ctx, m); err != nil {
		return err
	}
	return h.payDuesThroughCurrentCycle(ctx, m, "on-time")
}

func (h *Handler) loadAdvancePayerScenario(ctx context.Context) error {
	loc := h.location()
	year := h.Clock.Now().In(loc).Year()
	m := shares.Member{
		ID:         "mem-002",
		Name:       "Ben Santos",
		Email:      "ben@example.com",
		ShareCount: 2,
		JoinedAt:   generic.StartOfYear(year, loc),
	}
	if err := h.Store.SaveMember(ctx, m); err != nil {
		return err
	}

	unitValue, err := h.Store.ShareUnitValue(ctx)
	if err != nil {
		return err
	}
	perPeriod := h.Policy.ExpectedPerPeriod(m.ShareCount, unitValue)

	// Six periods in one payment on Jan 10: the first lands on January H1,
	// the rest carries over into the following five.
	_, err = h.Ledger.Record(ctx, generic.Payment{
		ID:             "pay-advance-001",
		Owner:          m.Owner(),
		Amount:         perPeriod.MulInt(6),
		PaidAt:         time.Date(year, time.January, 10, 9, 0, 0, 0, loc),
		Method:         generic.MethodBankTransfer,
		Reference:      "BT-ADVANCE",
		IdempotencyKey: "advance-payer-scenario-lump-sum",
		RecordedBy:     "scenario",
	})
	return err
}

func (h *Handler) loadLateBorrowerScenario(ctx context.Context) error {
	loc := h.location()
	now := h.Clock.Now().In(loc)

	m := shares.Member{
		ID:         "mem-003",
		Name:       "Carla Mendoza",
		Email:      "carla@example.com",
		ShareCount: 3,
		JoinedAt:   generic.StartOfYear(now.Year()-1, loc),
	}
	if err := h.Store.SaveMember(ctx, m); err != nil {
		return err
	}

	// Released six months ago so the first five installments are past due.
	released := now.AddDate(0, -6, 0)
	l, err := loans.New(loans.NewParams{
		ID:              "loan-001",
		MemberID:        m.ID,
		Principal:       generic.NewAmount(20000, h.Policy.Currency),
		Interest:        generic.NewAmount(1200, h.Policy.Currency),
		TermMonths:      12,
		ApplicationDate: released.AddDate(0, 0, -14),
		Purpose:         "Sari-sari store inventory",
	})
	if err != nil {
		return err
	}
	l.CreatedAt = released.AddDate(0, 0, -14)
	if err := l.Release(released, loc); err != nil {
		return err
	}
	if err := h.Store.SaveLoan(ctx, l); err != nil {
		return err
	}

	schedule, err := loans.BuildSchedule(l, loc)
	if err != nil {
		return err
	}

	// Installments 1 and 2 on time, 3 missed, 4 half paid.
	installments := []struct {
		period int
		share  decimal.Decimal
	}{
		{0, decimal.NewFromInt(1)},
		{1, decimal.NewFromInt(1)},
		{3, decimal.NewFromFloat(0.5)},
	}
	for i, inst := range installments {
		p := schedule.Periods[inst.period]
		_, err := h.Ledger.Record(ctx, generic.Payment{
			ID:             generic.PaymentID(fmt.Sprintf("pay-loan-001-%02d", i+1)),
			Owner:          l.Owner(),
			Amount:         p.Expected.Mul(inst.share).Round(2),
			PaidAt:         p.DueAt.AddDate(0, 0, -1),
			Method:         generic.MethodPayroll,
			IdempotencyKey: fmt.Sprintf("late-borrower-scenario-%d", i+1),
			RecordedBy:     "scenario",
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) loadDividendYearScenario(ctx context.Context) error {
	loc := h.location()
	now := h.Clock.Now()
	year := now.In(loc).Year()

	members := []shares.Member{
		{ID: "mem-010", Name: "Dante Cruz", Email: "dante@example.com", ShareCount: 10},
		{ID: "mem-011", Name: "Elena Garcia", Email: "elena@example.com", ShareCount: 5},
		{ID: "mem-012", Name: "Felix Ramos", Email: "felix@example.com", ShareCount: 5},
	}
	for _, m := range members {
		m.JoinedAt = generic.StartOfYear(year, loc)
		if err := h.Store.SaveMember(ctx, m); err != nil {
			return err
		}
		if err := h.payDuesThroughCurrentCycle(ctx, m, "dividend-year"); err != nil {
			return err
		}
	}

	if err := h.Dividends.SetProfitPool(ctx, dividend.ProfitPool{
		Year:      year,
		Amount:    generic.NewAmount(150000, h.Policy.Currency),
		UpdatedBy: "scenario",
	}); err != nil {
		return err
	}

	cycle := shares.CurrentCycle(now, h.Policy)
	records := []dividend.Eligibility{
		{MemberID: "mem-010", IsEligible: true},
		{MemberID: "mem-011", IsEligible: true},
		{MemberID: "mem-012", IsEligible: false, Reason: "Suspended pending audit of share certificate"},
	}
	for _, e := range records {
		e.Year, e.Cycle, e.UpdatedBy = year, cycle.Number, "scenario"
		if err := h.Dividends.UpsertEligibility(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

// payDuesThroughCurrentCycle records one payment per dues period of the
// year up to and including the current cycle's period. Each is paid two
// days early, or now when that would be in the future.
func (h *Handler) payDuesThroughCurrentCycle(ctx context.Context, m shares.Member, prefix string) error {
	loc := h.location()
	now := h.Clock.Now()
	year := now.In(loc).Year()
	cycle := shares.CurrentCycle(now, h.Policy)

	unitValue, err := h.Store.ShareUnitValue(ctx)
	if err != nil {
		return err
	}

	schedule := shares.MemberSchedule(h.Policy, m, unitValue, year, year)
	var batch []generic.Payment
	for _, p := range schedule.Periods {
		if p.DueAt.After(cycle.DueAt) && !cycle.Matches(p) {
			break
		}
		paidAt := p.DueAt.AddDate(0, 0, -2)
		if paidAt.After(now) {
			paidAt = now
		}
		batch = append(batch, generic.Payment{
			ID:             generic.PaymentID(fmt.Sprintf("pay-%s-%s-%02d", prefix, m.ID, p.Index)),
			Owner:          m.Owner(),
			Amount:         p.Expected,
			PaidAt:         paidAt,
			Method:         generic.MethodCash,
			IdempotencyKey: fmt.Sprintf("%s-scenario-%s-%02d", prefix, m.ID, p.Index),
			RecordedBy:     "scenario",
			CreatedAt:      now,
		})
	}
	return h.Store.AppendPayments(ctx, batch)
}
