/*
handlers.go - HTTP API handlers for the cooperative ledger

PURPOSE:
  Exposes the reconciliation engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.
  Handlers never allocate payments themselves; every schedule view goes
  through views.go.

ENDPOINTS:
  Members:
    GET    /api/members                     List members
    POST   /api/members                     Create or update a member
    GET    /api/members/{id}                Member details
    POST   /api/members/{id}/payments       Record a dues payment
    GET    /api/members/{id}/payments       Dues payment history
    GET    /api/members/{id}/dues           Self-service dues schedule

  Admin:
    GET    /api/admin/members/{id}          Member detail with allocations and loans

  Loans:
    POST   /api/loans                       Apply for a loan
    GET    /api/loans/{id}                  Loan details
    POST   /api/loans/{id}/release          Release a loan
    POST   /api/loans/{id}/payments         Record a repayment
    GET    /api/loans/{id}/schedule         Amortization schedule with status

  Settings:
    GET    /api/settings                    Share unit value and loan limits
    PUT    /api/settings                    Replace settings

  Dividends:
    PUT    /api/dividends/{year}/profit-pool
    GET    /api/dividends/{year}/per-share
    GET    /api/dividends/{year}/eligibility
    PUT    /api/dividends/{year}/eligibility
    POST   /api/dividends/{year}/payouts    Bulk payout for the year
    GET    /api/dividends/{year}/payouts

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Resource not found
  - 409: Conflict (idempotency, duplicate payout, already released)
  - 500: Internal errors

SECURITY NOTE:
  No authentication or authorization. Actor names in request bodies are
  recorded for audit only.

SEE ALSO:
  - dto.go: Request/response data structures
  - views.go: Reconciliation projections
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/coop-ledger/dividend"
	"github.com/warp/coop-ledger/generic"
	"github.com/warp/coop-ledger/loans"
	"github.com/warp/coop-ledger/shares"
	"github.com/warp/coop-ledger/store/sqlite"
)

const dateLayout = "2006-01-02"

// maxDuesYears bounds the window of the dues view.
const maxDuesYears = 10

var (
	// ErrLoanOutOfRange is returned when a principal is outside the
	// configured loan limits.
	ErrLoanOutOfRange = errors.New("principal outside configured loan limits")

	errInvalidDate = errors.New("invalid date")
	errInvalidYear = errors.New("invalid year")
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store     *sqlite.Store
	Ledger    *generic.PaymentLedger
	Dividends *dividend.Service
	Policy    shares.Policy
	Clock     generic.Clock
	Logger    *zap.Logger

	validate *validator.Validate

	scenarioMu      sync.Mutex
	currentScenario string
}

// NewHandler wires the handler. A nil clock uses the system clock and a nil
// logger discards output.
func NewHandler(store *sqlite.Store, dividends *dividend.Service, policy shares.Policy, clock generic.Clock, logger *zap.Logger) *Handler {
	if clock == nil {
		clock = generic.SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if policy.Currency == "" {
		policy.Currency = generic.DefaultCurrency
	}
	return &Handler{
		Store:     store,
		Ledger:    generic.NewPaymentLedger(store, clock),
		Dividends: dividends,
		Policy:    policy,
		Clock:     clock,
		Logger:    logger,
		validate:  newValidator(),
	}
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterValidation("decimal", func(fl validator.FieldLevel) bool {
		_, err := decimal.NewFromString(fl.Field().String())
		return err == nil
	})
	return v
}

func (h *Handler) location() *time.Location {
	if h.Policy.Location == nil {
		return time.UTC
	}
	return h.Policy.Location
}

// decode reads and validates a JSON request body.
func (h *Handler) decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return h.validate.Struct(dst)
}

// =============================================================================
// MEMBER HANDLERS
// =============================================================================

// ListMembers returns all members.
func (h *Handler) ListMembers(w http.ResponseWriter, r *http.Request) {
	members, err := h.Store.ListMembers(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list members", err)
		return
	}

	dtos := make([]MemberDTO, len(members))
	for i, m := range members {
		dtos[i] = toMemberDTO(m)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetMember returns a single member.
func (h *Handler) GetMember(w http.ResponseWriter, r *http.Request) {
	m, ok := h.loadMember(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toMemberDTO(*m))
}

// CreateMember creates or updates a member.
func (h *Handler) CreateMember(w http.ResponseWriter, r *http.Request) {
	var req CreateMemberRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid member", err)
		return
	}

	m := shares.Member{
		ID:         req.ID,
		Name:       req.Name,
		Email:      req.Email,
		ShareCount: req.ShareCount,
		CreatedAt:  h.Clock.Now(),
	}
	if req.JoinedAt != "" {
		joined, err := parseDate(req.JoinedAt, h.location())
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid joined_at format (use YYYY-MM-DD)", err)
			return
		}
		m.JoinedAt = joined
	}

	if err := h.Store.SaveMember(r.Context(), m); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save member", err)
		return
	}
	writeJSON(w, http.StatusCreated, toMemberDTO(m))
}

// loadMember writes a 404 and returns false when the member is missing.
func (h *Handler) loadMember(w http.ResponseWriter, r *http.Request) (*shares.Member, bool) {
	id := chi.URLParam(r, "id")
	m, err := h.Store.GetMember(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get member", err)
		return nil, false
	}
	if m == nil {
		writeError(w, http.StatusNotFound, "Member not found", generic.ErrMemberNotFound)
		return nil, false
	}
	return m, true
}

// =============================================================================
// PAYMENT HANDLERS
// =============================================================================

// RecordMemberPayment records a share dues payment.
// POST /api/members/{id}/payments
func (h *Handler) RecordMemberPayment(w http.ResponseWriter, r *http.Request) {
	m, ok := h.loadMember(w, r)
	if !ok {
		return
	}
	h.recordPayment(w, r, m.Owner())
}

// ListMemberPayments returns the member's dues payments in PaidAt order.
func (h *Handler) ListMemberPayments(w http.ResponseWriter, r *http.Request) {
	m, ok := h.loadMember(w, r)
	if !ok {
		return
	}
	payments, err := h.Ledger.Payments(r.Context(), m.Owner())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load payments", err)
		return
	}
	writeJSON(w, http.StatusOK, toPaymentDTOs(payments))
}

// RecordLoanPayment records a loan repayment.
// POST /api/loans/{id}/payments
func (h *Handler) RecordLoanPayment(w http.ResponseWriter, r *http.Request) {
	l, ok := h.loadLoan(w, r)
	if !ok {
		return
	}
	h.recordPayment(w, r, l.Owner())
}

func (h *Handler) recordPayment(w http.ResponseWriter, r *http.Request, owner generic.Owner) {
	var req RecordPaymentRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid payment", err)
		return
	}

	amount, err := generic.ParseAmount(req.Amount, h.Policy.Currency)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}

	p := generic.Payment{
		ID:             generic.PaymentID(req.ID),
		Owner:          owner,
		Amount:         amount,
		Method:         generic.PaymentMethod(req.Method),
		Reference:      req.Reference,
		IdempotencyKey: req.IdempotencyKey,
		RecordedBy:     req.RecordedBy,
	}
	if p.ID == "" {
		p.ID = generic.PaymentID(uuid.NewString())
	}
	if req.PaidAt != "" {
		if p.PaidAt, err = parseInstant(req.PaidAt, h.location()); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid paid_at (use RFC3339 or YYYY-MM-DD)", err)
			return
		}
	}

	recorded, err := h.Ledger.Record(r.Context(), p)
	if err != nil {
		h.fail(w, "Failed to record payment", err)
		return
	}

	h.Logger.Info("payment recorded",
		zap.String("payment_id", string(recorded.ID)),
		zap.String("owner", owner.String()),
		zap.String("amount", recorded.Amount.String()))
	writeJSON(w, http.StatusCreated, toPaymentDTO(recorded))
}

// =============================================================================
// DUES VIEWS
// =============================================================================

// GetMemberDues returns the member's reconciled dues schedule.
// GET /api/members/{id}/dues?year=2025&years=1
func (h *Handler) GetMemberDues(w http.ResponseWriter, r *http.Request) {
	m, ok := h.loadMember(w, r)
	if !ok {
		return
	}

	toYear, err := h.yearParam(r.URL.Query().Get("year"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid year", err)
		return
	}
	years := 1
	if s := r.URL.Query().Get("years"); s != "" {
		years, err = strconv.Atoi(s)
		if err != nil || years < 1 || years > maxDuesYears {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("years must be between 1 and %d", maxDuesYears), err)
			return
		}
	}
	fromYear := toYear - years + 1

	view, err := h.memberDues(r.Context(), *m, fromYear, toYear)
	if err != nil {
		h.fail(w, "Failed to reconcile dues", err)
		return
	}

	writeJSON(w, http.StatusOK, MemberDuesResponse{
		Member:      toMemberDTO(*m),
		FromYear:    fromYear,
		ToYear:      toYear,
		PerPeriod:   view.PerPeriod.String(),
		EvaluatedAt: view.EvaluatedAt.Format(time.RFC3339),
		Summary:     toSummaryDTO(view.Summary),
		Periods:     toPeriodDTOs(view.Periods, view.Allocations, false),
		Unallocated: toUnallocatedDTOs(view.Unallocated),
	})
}

// GetAdminMember returns the admin detail of a member: dues with per-period
// allocations, every loan with its schedule, the payment history and the
// eligibility records of the year.
// GET /api/admin/members/{id}?year=2025
func (h *Handler) GetAdminMember(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	m, ok := h.loadMember(w, r)
	if !ok {
		return
	}

	year, err := h.yearParam(r.URL.Query().Get("year"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid year", err)
		return
	}

	dues, err := h.memberDues(ctx, *m, year, year)
	if err != nil {
		h.fail(w, "Failed to reconcile dues", err)
		return
	}

	memberLoans, err := h.Store.ListLoansByMember(ctx, m.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load loans", err)
		return
	}
	loanViews := make([]LoanScheduleDTO, 0, len(memberLoans))
	for _, l := range memberLoans {
		view, err := h.loanSchedule(ctx, l, true)
		if err != nil {
			h.fail(w, "Failed to reconcile loan "+l.ID, err)
			return
		}
		loanViews = append(loanViews, view)
	}

	payments, err := h.Ledger.Payments(ctx, m.Owner())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load payments", err)
		return
	}

	records, err := h.Store.ListEligibility(ctx, year)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load eligibility", err)
		return
	}
	eligibility := []EligibilityDTO{}
	for _, e := range records {
		if e.MemberID == m.ID {
			eligibility = append(eligibility, toEligibilityDTO(e))
		}
	}

	writeJSON(w, http.StatusOK, AdminMemberResponse{
		Member:      toMemberDTO(*m),
		Year:        year,
		EvaluatedAt: dues.EvaluatedAt.Format(time.RFC3339),
		Dues: DuesDetailDTO{
			PerPeriod:   dues.PerPeriod.String(),
			Summary:     toSummaryDTO(dues.Summary),
			Periods:     toPeriodDTOs(dues.Periods, dues.Allocations, true),
			Unallocated: toUnallocatedDTOs(dues.Unallocated),
		},
		Loans:       loanViews,
		Payments:    toPaymentDTOs(payments),
		Eligibility: eligibility,
	})
}

// =============================================================================
// LOAN HANDLERS
// =============================================================================

// CreateLoan records a pending loan with its amortization fixed.
func (h *Handler) CreateLoan(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateLoanRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid loan", err)
		return
	}

	member, err := h.Store.GetMember(ctx, req.MemberID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get member", err)
		return
	}
	if member == nil {
		writeError(w, http.StatusNotFound, "Member not found", generic.ErrMemberNotFound)
		return
	}

	principal, err := generic.ParseAmount(req.Principal, h.Policy.Currency)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid principal", err)
		return
	}
	interest := principal.Zero()
	if req.Interest != "" {
		if interest, err = generic.ParseAmount(req.Interest, h.Policy.Currency); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid interest", err)
			return
		}
	}

	settings, err := h.Store.GetSettings(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load settings", err)
		return
	}
	if principal.Value.LessThan(settings.MinLoanAmount) || principal.Value.GreaterThan(settings.MaxLoanAmount) {
		writeError(w, http.StatusBadRequest,
			fmt.Sprintf("Principal must be between %s and %s", settings.MinLoanAmount, settings.MaxLoanAmount),
			ErrLoanOutOfRange)
		return
	}

	applied, err := parseDate(req.ApplicationDate, h.location())
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid application_date", err)
		return
	}
	var dueDate *time.Time
	if req.DueDate != "" {
		d, err := parseDate(req.DueDate, h.location())
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid due_date", err)
			return
		}
		dueDate = &d
	}

	id := req.ID
	if id == "" {
		id = uuid.NewString()
	}

	loan, err := loans.New(loans.NewParams{
		ID:              id,
		MemberID:        member.ID,
		Principal:       principal,
		Interest:        interest,
		TermMonths:      req.TermMonths,
		ApplicationDate: applied,
		DueDate:         dueDate,
		Purpose:         req.Purpose,
	})
	if err != nil {
		h.fail(w, "Invalid loan", err)
		return
	}
	loan.CreatedAt = h.Clock.Now()

	if err := h.Store.SaveLoan(ctx, loan); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save loan", err)
		return
	}
	writeJSON(w, http.StatusCreated, toLoanDTO(loan))
}

// GetLoan returns a single loan.
func (h *Handler) GetLoan(w http.ResponseWriter, r *http.Request) {
	l, ok := h.loadLoan(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toLoanDTO(*l))
}

// ReleaseLoan releases a pending loan and re-anchors its schedule.
func (h *Handler) ReleaseLoan(w http.ResponseWriter, r *http.Request) {
	l, ok := h.loadLoan(w, r)
	if !ok {
		return
	}

	var req ReleaseLoanRequest
	if r.ContentLength > 0 {
		if err := h.decode(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid release request", err)
			return
		}
	}

	at := h.Clock.Now()
	if req.ReleasedAt != "" {
		var err error
		if at, err = parseInstant(req.ReleasedAt, h.location()); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid released_at", err)
			return
		}
	}

	if err := l.Release(at, h.location()); err != nil {
		h.fail(w, "Failed to release loan", err)
		return
	}
	if err := h.Store.SaveLoan(r.Context(), *l); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save loan", err)
		return
	}

	h.Logger.Info("loan released", zap.String("loan_id", l.ID), zap.Time("released_at", at))
	writeJSON(w, http.StatusOK, toLoanDTO(*l))
}

// GetLoanSchedule returns the amortization schedule reconciled against the
// loan's repayments.
func (h *Handler) GetLoanSchedule(w http.ResponseWriter, r *http.Request) {
	l, ok := h.loadLoan(w, r)
	if !ok {
		return
	}
	view, err := h.loanSchedule(r.Context(), *l, r.URL.Query().Get("allocations") == "true")
	if err != nil {
		h.fail(w, "Failed to reconcile loan", err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) loadLoan(w http.ResponseWriter, r *http.Request) (*loans.Loan, bool) {
	id := chi.URLParam(r, "id")
	l, err := h.Store.GetLoan(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get loan", err)
		return nil, false
	}
	if l == nil {
		writeError(w, http.StatusNotFound, "Loan not found", generic.ErrLoanNotFound)
		return nil, false
	}
	return l, true
}

// =============================================================================
// SETTINGS
// =============================================================================

func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	s, err := h.Store.GetSettings(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load settings", err)
		return
	}
	writeJSON(w, http.StatusOK, toSettingsDTO(s))
}

// UpdateSettings replaces the settings. A new share unit value changes every
// expected amount, so all cached per-share values of the current year are
// dropped.
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req UpdateSettingsRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid settings", err)
		return
	}

	s := sqlite.Settings{
		ShareUnitValue: decimal.RequireFromString(req.ShareUnitValue),
		MinLoanAmount:  decimal.RequireFromString(req.MinLoanAmount),
		MaxLoanAmount:  decimal.RequireFromString(req.MaxLoanAmount),
		UpdatedBy:      req.UpdatedBy,
		UpdatedAt:      h.Clock.Now(),
	}
	if !s.ShareUnitValue.IsPositive() {
		writeError(w, http.StatusBadRequest, "share_unit_value must be positive", nil)
		return
	}
	if s.MinLoanAmount.IsNegative() || s.MaxLoanAmount.LessThan(s.MinLoanAmount) {
		writeError(w, http.StatusBadRequest, "Loan limits must satisfy 0 <= min <= max", nil)
		return
	}

	if err := h.Store.SaveSettings(ctx, s); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save settings", err)
		return
	}
	if err := h.Dividends.InvalidateYear(ctx, h.Clock.Now().In(h.location()).Year()); err != nil {
		h.Logger.Warn("per-share invalidation failed after settings change", zap.Error(err))
	}
	writeJSON(w, http.StatusOK, toSettingsDTO(s))
}

func toSettingsDTO(s sqlite.Settings) SettingsDTO {
	dto := SettingsDTO{
		ShareUnitValue: s.ShareUnitValue.String(),
		MinLoanAmount:  s.MinLoanAmount.String(),
		MaxLoanAmount:  s.MaxLoanAmount.String(),
		UpdatedBy:      s.UpdatedBy,
	}
	if !s.UpdatedAt.IsZero() {
		dto.UpdatedAt = s.UpdatedAt.Format(time.RFC3339)
	}
	return dto
}

// =============================================================================
// DIVIDENDS
// =============================================================================

// SetProfitPool stores the year's profit pool.
// PUT /api/dividends/{year}/profit-pool
func (h *Handler) SetProfitPool(w http.ResponseWriter, r *http.Request) {
	year, ok := h.pathYear(w, r)
	if !ok {
		return
	}

	var req ProfitPoolRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid profit pool", err)
		return
	}
	amount, err := generic.ParseAmount(req.Amount, h.Policy.Currency)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}

	pool := dividend.ProfitPool{Year: year, Amount: amount, UpdatedBy: req.UpdatedBy, UpdatedAt: h.Clock.Now()}
	if err := h.Dividends.SetProfitPool(r.Context(), pool); err != nil {
		h.fail(w, "Failed to set profit pool", err)
		return
	}
	writeJSON(w, http.StatusOK, ProfitPoolDTO{
		Year:      pool.Year,
		Amount:    pool.Amount.String(),
		Currency:  string(pool.Amount.Currency),
		UpdatedBy: pool.UpdatedBy,
		UpdatedAt: pool.UpdatedAt.Format(time.RFC3339),
	})
}

// GetPerShare returns the cached per-share dividend of the year.
// GET /api/dividends/{year}/per-share
func (h *Handler) GetPerShare(w http.ResponseWriter, r *http.Request) {
	year, ok := h.pathYear(w, r)
	if !ok {
		return
	}
	v, err := h.Dividends.PerShare(r.Context(), year)
	if err != nil {
		h.fail(w, "Failed to compute per-share", err)
		return
	}
	writeJSON(w, http.StatusOK, PerShareResponse{Year: year, PerShare: v.String()})
}

func (h *Handler) ListEligibility(w http.ResponseWriter, r *http.Request) {
	year, ok := h.pathYear(w, r)
	if !ok {
		return
	}
	records, err := h.Dividends.ListEligibility(r.Context(), year)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load eligibility", err)
		return
	}
	dtos := make([]EligibilityDTO, len(records))
	for i, e := range records {
		dtos[i] = toEligibilityDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// UpsertEligibility sets a member's eligibility for one cycle of the year.
// PUT /api/dividends/{year}/eligibility
func (h *Handler) UpsertEligibility(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	year, ok := h.pathYear(w, r)
	if !ok {
		return
	}

	var req UpsertEligibilityRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid eligibility", err)
		return
	}

	member, err := h.Store.GetMember(ctx, req.MemberID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get member", err)
		return
	}
	if member == nil {
		writeError(w, http.StatusNotFound, "Member not found", generic.ErrMemberNotFound)
		return
	}

	e := dividend.Eligibility{
		MemberID:   req.MemberID,
		Year:       year,
		Cycle:      req.Cycle,
		IsEligible: *req.IsEligible,
		Reason:     req.Reason,
		UpdatedBy:  req.UpdatedBy,
		UpdatedAt:  h.Clock.Now(),
	}
	if err := h.Dividends.UpsertEligibility(ctx, e); err != nil {
		h.fail(w, "Failed to save eligibility", err)
		return
	}
	if e.IsEligible {
		e.Reason = ""
	}
	writeJSON(w, http.StatusOK, toEligibilityDTO(e))
}

// DistributePayouts runs the bulk payout of the year. Per-member failures
// are reported in the body; the request itself still succeeds.
// POST /api/dividends/{year}/payouts
func (h *Handler) DistributePayouts(w http.ResponseWriter, r *http.Request) {
	year, ok := h.pathYear(w, r)
	if !ok {
		return
	}

	var req DistributePayoutsRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid payout request", err)
		return
	}

	batch, err := h.Dividends.DistributePayouts(r.Context(), year, req.Actor)
	if err != nil {
		h.fail(w, "Failed to distribute payouts", err)
		return
	}

	resp := PayoutBatchResponse{
		Year:    batch.Year,
		Cycle:   batch.Cycle.Label(),
		Created: make([]PayoutDTO, len(batch.Created)),
		Failed:  make([]PayoutFailureDTO, len(batch.Failed)),
		Summary: PayoutSummaryDTO{
			Total:       batch.Summary.Total,
			Created:     batch.Summary.Created,
			Failed:      batch.Summary.Failed,
			TotalAmount: batch.Summary.TotalAmount.String(),
			PerShare:    batch.Summary.PerShare.String(),
		},
	}
	for i, p := range batch.Created {
		resp.Created[i] = toPayoutDTO(p)
	}
	for i, f := range batch.Failed {
		resp.Failed[i] = PayoutFailureDTO{MemberID: f.MemberID, Error: f.Err.Error()}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) ListPayouts(w http.ResponseWriter, r *http.Request) {
	year, ok := h.pathYear(w, r)
	if !ok {
		return
	}
	payouts, err := h.Dividends.ListPayouts(r.Context(), year)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list payouts", err)
		return
	}
	dtos := make([]PayoutDTO, len(payouts))
	for i, p := range payouts {
		dtos[i] = toPayoutDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func toPayoutDTO(p dividend.Payout) PayoutDTO {
	return PayoutDTO{
		ID:        p.ID,
		MemberID:  p.MemberID,
		Year:      p.Year,
		Shares:    p.Shares,
		PerShare:  p.PerShare.String(),
		Amount:    p.Amount.String(),
		Currency:  string(p.Amount.Currency),
		CreatedBy: p.CreatedBy,
		CreatedAt: p.CreatedAt.Format(time.RFC3339),
	}
}

// =============================================================================
// HELPERS
// =============================================================================

// yearParam parses an optional year, defaulting to the current year in the
// ledger's timezone.
func (h *Handler) yearParam(s string) (int, error) {
	if s == "" {
		return h.Clock.Now().In(h.location()).Year(), nil
	}
	year, err := strconv.Atoi(s)
	if err != nil || year < 1900 || year > 9999 {
		return 0, fmt.Errorf("%w: %q", errInvalidYear, s)
	}
	return year, nil
}

func (h *Handler) pathYear(w http.ResponseWriter, r *http.Request) (int, bool) {
	year, err := h.yearParam(chi.URLParam(r, "year"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid year", err)
		return 0, false
	}
	return year, true
}

// parseDate parses YYYY-MM-DD as midnight in loc.
func parseDate(s string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(dateLayout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", errInvalidDate, s)
	}
	return t, nil
}

// parseInstant accepts RFC3339 or a bare date.
func parseInstant(s string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	return parseDate(s, loc)
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	var verrs validator.ValidationErrors
	switch {
	case errors.Is(err, generic.ErrDuplicateIdempotencyKey),
		errors.Is(err, generic.ErrDuplicatePayment),
		errors.Is(err, dividend.ErrDuplicatePayout),
		errors.Is(err, loans.ErrAlreadyReleased):
		return http.StatusConflict
	case generic.IsNotFound(err):
		return http.StatusNotFound
	case generic.IsClientError(err),
		dividend.IsClientError(err),
		errors.Is(err, loans.ErrInvalidPrincipal),
		errors.Is(err, loans.ErrInvalidTerm),
		errors.Is(err, ErrLoanOutOfRange),
		errors.As(err, &verrs):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// fail writes err with the status its kind maps to.
func (h *Handler) fail(w http.ResponseWriter, message string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.Logger.Error(message, zap.Error(err))
	}
	writeError(w, status, message, err)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
