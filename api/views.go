/*
views.go - Read models projected from a reconciliation

PURPOSE:
  Every screen that shows a schedule (member dues, admin member detail, loan
  schedule) is a projection of one generic.Reconciliation. Nothing here
  allocates or evaluates on its own; the engine runs once per obligation and
  the projections only select and format.

DUES WINDOW:
  A dues reconciliation always starts at the member's first year (join year,
  or the year of the earliest payment) so that older payments settle older
  periods. The requested window is cut from the result afterwards and its
  summary recomputed over the visible periods.

SEE ALSO:
  - generic/evaluation.go: Reconcile, Summarize
  - shares/schedule.go: MemberSchedule
  - loans/schedule.go: BuildSchedule
*/
package api

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/warp/coop-ledger/dividend"
	"github.com/warp/coop-ledger/generic"
	"github.com/warp/coop-ledger/loans"
	"github.com/warp/coop-ledger/shares"
)

// =============================================================================
// DUES
// =============================================================================

// duesView is a member's reconciliation cut to a window of years.
type duesView struct {
	PerPeriod   generic.Amount
	Periods     []generic.PeriodResult
	Allocations generic.Allocations
	Unallocated []generic.UnallocatedPayment
	Summary     generic.Summary
	EvaluatedAt time.Time
}

func (h *Handler) memberDues(ctx context.Context, m shares.Member, fromYear, toYear int) (*duesView, error) {
	unitValue, err := h.Store.ShareUnitValue(ctx)
	if err != nil {
		return nil, fmt.Errorf("load share unit value: %w", err)
	}

	payments, err := h.Ledger.Payments(ctx, m.Owner())
	if err != nil {
		return nil, fmt.Errorf("load payments: %w", err)
	}

	loc := h.location()
	start := shares.FirstScheduleYear(h.Policy, m, payments, fromYear)
	schedule := shares.MemberSchedule(h.Policy, m, unitValue, start, toYear)

	rec, err := generic.Reconcile(payments, schedule, h.Clock)
	if err != nil {
		return nil, err
	}

	windowStart := generic.StartOfYear(fromYear, loc)
	var visible []generic.PeriodResult
	for _, pr := range rec.Periods {
		if !pr.Period.DueAt.Before(windowStart) {
			visible = append(visible, pr)
		}
	}

	currency := h.Policy.Currency
	return &duesView{
		PerPeriod:   h.Policy.ExpectedPerPeriod(m.ShareCount, unitValue),
		Periods:     visible,
		Allocations: rec.Allocations,
		Unallocated: rec.Allocations.Unallocated,
		Summary:     generic.Summarize(visible, rec.Allocations.Unallocated, currency),
		EvaluatedAt: rec.EvaluatedAt,
	}, nil
}

// =============================================================================
// LOANS
// =============================================================================

// loanSchedule reconciles a loan's repayments against its amortization
// schedule. A loan without any schedule is returned with a warning.
func (h *Handler) loanSchedule(ctx context.Context, l loans.Loan, withAllocations bool) (LoanScheduleDTO, error) {
	view := LoanScheduleDTO{Loan: toLoanDTO(l)}

	schedule, err := loans.BuildSchedule(l, h.location())
	if err != nil {
		if !errors.Is(err, generic.ErrEmptySchedule) {
			return view, err
		}
		view.Warning = err.Error()
	}

	payments, err := h.Ledger.Payments(ctx, l.Owner())
	if err != nil {
		return view, fmt.Errorf("load repayments: %w", err)
	}

	rec, err := generic.Reconcile(payments, schedule, h.Clock)
	if err != nil {
		return view, err
	}

	view.Summary = toSummaryDTO(rec.Summary)
	view.Periods = toPeriodDTOs(rec.Periods, rec.Allocations, withAllocations)
	view.Unallocated = toUnallocatedDTOs(rec.Allocations.Unallocated)
	return view, nil
}

// =============================================================================
// PROJECTIONS
// =============================================================================

func toPeriodDTO(pr generic.PeriodResult) PeriodDTO {
	return PeriodDTO{
		Index:     pr.Period.Index,
		Label:     pr.Period.Label,
		DueAt:     pr.Period.DueAt.Format(time.RFC3339),
		Expected:  pr.Period.Expected.String(),
		Paid:      pr.TotalPaid.String(),
		Remaining: pr.Remaining.String(),
		Status:    string(pr.Status),
		IsPast:    pr.IsPast,
		IsLate:    pr.IsLate,
	}
}

func toPeriodDTOs(periods []generic.PeriodResult, allocs generic.Allocations, withAllocations bool) []PeriodDTO {
	dtos := make([]PeriodDTO, len(periods))
	for i, pr := range periods {
		dtos[i] = toPeriodDTO(pr)
		if !withAllocations {
			continue
		}
		for _, a := range allocs.ForPeriod(pr.Period.Index) {
			dtos[i].Allocations = append(dtos[i].Allocations, AllocationDTO{
				PaymentID:   string(a.PaymentID),
				Applied:     a.Applied.String(),
				IsCarryover: a.IsCarryover,
			})
		}
	}
	return dtos
}

func toSummaryDTO(s generic.Summary) SummaryDTO {
	dto := SummaryDTO{
		TotalExpected:    s.TotalExpected.String(),
		TotalPaid:        s.TotalPaid.String(),
		TotalRemaining:   s.TotalRemaining.String(),
		TotalUnallocated: s.TotalUnallocated.String(),
		Paid:             s.Paid,
		Partial:          s.Partial,
		NoPayment:        s.NoPayment,
		Late:             s.Late,
		FullyPaid:        s.FullyPaid,
	}
	if s.NextDue != nil {
		next := toPeriodDTO(*s.NextDue)
		dto.NextDue = &next
	}
	return dto
}

func toUnallocatedDTOs(items []generic.UnallocatedPayment) []UnallocatedDTO {
	dtos := make([]UnallocatedDTO, len(items))
	for i, u := range items {
		dtos[i] = UnallocatedDTO{PaymentID: string(u.PaymentID), Amount: u.Amount.String()}
	}
	return dtos
}

func toMemberDTO(m shares.Member) MemberDTO {
	dto := MemberDTO{
		ID:         m.ID,
		Name:       m.Name,
		Email:      m.Email,
		ShareCount: m.ShareCount,
	}
	if !m.JoinedAt.IsZero() {
		dto.JoinedAt = m.JoinedAt.Format(dateLayout)
	}
	if !m.CreatedAt.IsZero() {
		dto.CreatedAt = m.CreatedAt.Format(time.RFC3339)
	}
	return dto
}

func toPaymentDTO(p generic.Payment) PaymentDTO {
	return PaymentDTO{
		ID:             string(p.ID),
		OwnerKind:      string(p.Owner.Kind),
		OwnerID:        p.Owner.ID,
		Amount:         p.Amount.String(),
		Currency:       string(p.Amount.Currency),
		PaidAt:         p.PaidAt.Format(time.RFC3339),
		Method:         string(p.Method),
		Reference:      p.Reference,
		IdempotencyKey: p.IdempotencyKey,
		RecordedBy:     p.RecordedBy,
		CreatedAt:      p.CreatedAt.Format(time.RFC3339),
	}
}

func toPaymentDTOs(payments []generic.Payment) []PaymentDTO {
	dtos := make([]PaymentDTO, len(payments))
	for i, p := range payments {
		dtos[i] = toPaymentDTO(p)
	}
	return dtos
}

func toLoanDTO(l loans.Loan) LoanDTO {
	dto := LoanDTO{
		ID:                  l.ID,
		MemberID:            l.MemberID,
		Principal:           l.Principal.String(),
		Interest:            l.Interest.String(),
		Total:               l.Total().String(),
		Currency:            string(l.Principal.Currency),
		TermMonths:          l.TermMonths,
		MonthlyAmortization: l.MonthlyAmortization.String(),
		ApplicationDate:     l.ApplicationDate.Format(dateLayout),
		Status:              string(l.Status),
		Purpose:             l.Purpose,
	}
	if l.ReleaseDate != nil {
		dto.ReleaseDate = l.ReleaseDate.Format(time.RFC3339)
	}
	if l.DueDate != nil {
		dto.DueDate = l.DueDate.Format(dateLayout)
	}
	return dto
}

func toEligibilityDTO(e dividend.Eligibility) EligibilityDTO {
	dto := EligibilityDTO{
		MemberID:   e.MemberID,
		Year:       e.Year,
		Cycle:      e.Cycle,
		IsEligible: e.IsEligible,
		Reason:     e.Reason,
		UpdatedBy:  e.UpdatedBy,
	}
	if !e.UpdatedAt.IsZero() {
		dto.UpdatedAt = e.UpdatedAt.Format(time.RFC3339)
	}
	return dto
}
