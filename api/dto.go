/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. Money is always a
  decimal string ("2500.00"), never a JSON number. Dates are "YYYY-MM-DD"
  on input where a calendar day is meant, RFC3339 otherwise.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

VALIDATION:
  Request types carry go-playground/validator tags and are checked by
  Handler.decode before any domain call. The custom "decimal" tag accepts
  any string shopspring/decimal can parse.

SEE ALSO:
  - handlers.go: Uses these types
  - views.go: Builds the period and summary DTOs from a reconciliation
*/
package api

// =============================================================================
// MEMBERS
// =============================================================================

type MemberDTO struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Email      string `json:"email,omitempty"`
	ShareCount int    `json:"share_count"`
	JoinedAt   string `json:"joined_at,omitempty"`
	CreatedAt  string `json:"created_at,omitempty"`
}

type CreateMemberRequest struct {
	ID         string `json:"id" validate:"required,max=64"`
	Name       string `json:"name" validate:"required,max=200"`
	Email      string `json:"email" validate:"omitempty,email"`
	ShareCount int    `json:"share_count" validate:"gte=0"`
	JoinedAt   string `json:"joined_at" validate:"omitempty,datetime=2006-01-02"`
}

// =============================================================================
// PAYMENTS
// =============================================================================

type PaymentDTO struct {
	ID             string `json:"id"`
	OwnerKind      string `json:"owner_kind"`
	OwnerID        string `json:"owner_id"`
	Amount         string `json:"amount"`
	Currency       string `json:"currency"`
	PaidAt         string `json:"paid_at"`
	Method         string `json:"method,omitempty"`
	Reference      string `json:"reference,omitempty"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
	RecordedBy     string `json:"recorded_by,omitempty"`
	CreatedAt      string `json:"created_at"`
}

// RecordPaymentRequest records a share dues payment or a loan repayment.
// PaidAt accepts RFC3339 or YYYY-MM-DD and defaults to now.
type RecordPaymentRequest struct {
	ID             string `json:"id" validate:"omitempty,max=64"`
	Amount         string `json:"amount" validate:"required,decimal"`
	PaidAt         string `json:"paid_at"`
	Method         string `json:"method" validate:"omitempty,oneof=cash bank_transfer check payroll_deduction e_wallet"`
	Reference      string `json:"reference" validate:"max=200"`
	IdempotencyKey string `json:"idempotency_key" validate:"max=128"`
	RecordedBy     string `json:"recorded_by" validate:"max=64"`
}

// =============================================================================
// RECONCILIATION VIEWS
// =============================================================================

type AllocationDTO struct {
	PaymentID   string `json:"payment_id"`
	Applied     string `json:"applied"`
	IsCarryover bool   `json:"is_carryover"`
}

type PeriodDTO struct {
	Index       int             `json:"index"`
	Label       string          `json:"label"`
	DueAt       string          `json:"due_at"`
	Expected    string          `json:"expected"`
	Paid        string          `json:"paid"`
	Remaining   string          `json:"remaining"`
	Status      string          `json:"status"`
	IsPast      bool            `json:"is_past"`
	IsLate      bool            `json:"is_late"`
	Allocations []AllocationDTO `json:"allocations,omitempty"`
}

type UnallocatedDTO struct {
	PaymentID string `json:"payment_id"`
	Amount    string `json:"amount"`
}

type SummaryDTO struct {
	TotalExpected    string     `json:"total_expected"`
	TotalPaid        string     `json:"total_paid"`
	TotalRemaining   string     `json:"total_remaining"`
	TotalUnallocated string     `json:"total_unallocated"`
	Paid             int        `json:"paid"`
	Partial          int        `json:"partial"`
	NoPayment        int        `json:"no_payment"`
	Late             int        `json:"late"`
	FullyPaid        bool       `json:"fully_paid"`
	NextDue          *PeriodDTO `json:"next_due,omitempty"`
}

// MemberDuesResponse is the member self-service view of their dues.
type MemberDuesResponse struct {
	Member      MemberDTO        `json:"member"`
	FromYear    int              `json:"from_year"`
	ToYear      int              `json:"to_year"`
	PerPeriod   string           `json:"per_period"`
	EvaluatedAt string           `json:"evaluated_at"`
	Summary     SummaryDTO       `json:"summary"`
	Periods     []PeriodDTO      `json:"periods"`
	Unallocated []UnallocatedDTO `json:"unallocated"`
}

// AdminMemberResponse is the admin member detail page.
type AdminMemberResponse struct {
	Member      MemberDTO         `json:"member"`
	Year        int               `json:"year"`
	EvaluatedAt string            `json:"evaluated_at"`
	Dues        DuesDetailDTO     `json:"dues"`
	Loans       []LoanScheduleDTO `json:"loans"`
	Payments    []PaymentDTO      `json:"payments"`
	Eligibility []EligibilityDTO  `json:"eligibility"`
}

type DuesDetailDTO struct {
	PerPeriod   string           `json:"per_period"`
	Summary     SummaryDTO       `json:"summary"`
	Periods     []PeriodDTO      `json:"periods"`
	Unallocated []UnallocatedDTO `json:"unallocated"`
}

// =============================================================================
// LOANS
// =============================================================================

type LoanDTO struct {
	ID                  string `json:"id"`
	MemberID            string `json:"member_id"`
	Principal           string `json:"principal"`
	Interest            string `json:"interest"`
	Total               string `json:"total"`
	Currency            string `json:"currency"`
	TermMonths          int    `json:"term_months"`
	MonthlyAmortization string `json:"monthly_amortization"`
	ApplicationDate     string `json:"application_date"`
	ReleaseDate         string `json:"release_date,omitempty"`
	DueDate             string `json:"due_date,omitempty"`
	Status              string `json:"status"`
	Purpose             string `json:"purpose,omitempty"`
}

type CreateLoanRequest struct {
	ID              string `json:"id" validate:"omitempty,max=64"`
	MemberID        string `json:"member_id" validate:"required"`
	Principal       string `json:"principal" validate:"required,decimal"`
	Interest        string `json:"interest" validate:"omitempty,decimal"`
	TermMonths      int    `json:"term_months" validate:"gte=0,lte=360"`
	ApplicationDate string `json:"application_date" validate:"required,datetime=2006-01-02"`
	DueDate         string `json:"due_date" validate:"omitempty,datetime=2006-01-02"`
	Purpose         string `json:"purpose" validate:"max=500"`
}

type ReleaseLoanRequest struct {
	ReleasedAt string `json:"released_at"`
}

// LoanScheduleDTO is a loan with its reconciled amortization schedule.
type LoanScheduleDTO struct {
	Loan        LoanDTO          `json:"loan"`
	Summary     SummaryDTO       `json:"summary"`
	Periods     []PeriodDTO      `json:"periods"`
	Unallocated []UnallocatedDTO `json:"unallocated"`
	Warning     string           `json:"warning,omitempty"`
}

// =============================================================================
// SETTINGS
// =============================================================================

type SettingsDTO struct {
	ShareUnitValue string `json:"share_unit_value"`
	MinLoanAmount  string `json:"min_loan_amount"`
	MaxLoanAmount  string `json:"max_loan_amount"`
	UpdatedBy      string `json:"updated_by,omitempty"`
	UpdatedAt      string `json:"updated_at,omitempty"`
}

type UpdateSettingsRequest struct {
	ShareUnitValue string `json:"share_unit_value" validate:"required,decimal"`
	MinLoanAmount  string `json:"min_loan_amount" validate:"required,decimal"`
	MaxLoanAmount  string `json:"max_loan_amount" validate:"required,decimal"`
	UpdatedBy      string `json:"updated_by" validate:"max=64"`
}

// =============================================================================
// DIVIDENDS
// =============================================================================

type ProfitPoolRequest struct {
	Amount    string `json:"amount" validate:"required,decimal"`
	UpdatedBy string `json:"updated_by" validate:"max=64"`
}

type ProfitPoolDTO struct {
	Year      int    `json:"year"`
	Amount    string `json:"amount"`
	Currency  string `json:"currency"`
	UpdatedBy string `json:"updated_by,omitempty"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

type PerShareResponse struct {
	Year     int    `json:"year"`
	PerShare string `json:"per_share"`
}

type EligibilityDTO struct {
	MemberID   string `json:"member_id"`
	Year       int    `json:"year"`
	Cycle      int    `json:"cycle"`
	IsEligible bool   `json:"is_eligible"`
	Reason     string `json:"reason,omitempty"`
	UpdatedBy  string `json:"updated_by,omitempty"`
	UpdatedAt  string `json:"updated_at,omitempty"`
}

type UpsertEligibilityRequest struct {
	MemberID   string `json:"member_id" validate:"required"`
	Cycle      int    `json:"cycle" validate:"required,oneof=1 2"`
	IsEligible *bool  `json:"is_eligible" validate:"required"`
	Reason     string `json:"reason" validate:"max=500"`
	UpdatedBy  string `json:"updated_by" validate:"max=64"`
}

type DistributePayoutsRequest struct {
	Actor string `json:"actor" validate:"required,max=64"`
}

type PayoutDTO struct {
	ID        string `json:"id"`
	MemberID  string `json:"member_id"`
	Year      int    `json:"year"`
	Shares    int    `json:"shares"`
	PerShare  string `json:"per_share"`
	Amount    string `json:"amount"`
	Currency  string `json:"currency"`
	CreatedBy string `json:"created_by,omitempty"`
	CreatedAt string `json:"created_at"`
}

type PayoutFailureDTO struct {
	MemberID string `json:"member_id"`
	Error    string `json:"error"`
}

type PayoutBatchResponse struct {
	Year    int                `json:"year"`
	Cycle   string             `json:"cycle"`
	Created []PayoutDTO        `json:"created"`
	Failed  []PayoutFailureDTO `json:"failed"`
	Summary PayoutSummaryDTO   `json:"summary"`
}

type PayoutSummaryDTO struct {
	Total       int    `json:"total"`
	Created     int    `json:"created"`
	Failed      int    `json:"failed"`
	TotalAmount string `json:"total_amount"`
	PerShare    string `json:"per_share"`
}

// =============================================================================
// SCENARIOS
// =============================================================================

type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id" validate:"required"`
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
