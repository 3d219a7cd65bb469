/*
errors.go - Centralized error types for the reconciliation engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Domain packages wrap these errors with additional context.

ERROR CATEGORIES:
  1. Input errors - Payment amounts the engine refuses to allocate
  2. Schedule errors - Degenerate schedules (non-fatal)
  3. Ledger errors - Payment persistence failures
  4. Lookup errors - Missing members or loans

The engine itself is pure computation over validated inputs. Only
ErrInvalidPaymentAmount is ever returned by Allocate; everything else is
raised by the ledger and the domain packages around it.

SEE ALSO:
  - allocation.go: Returns InvalidPaymentAmountError
  - ledger.go: Returns ErrDuplicateIdempotencyKey
  - store/memory.go, store/sqlite: Return ErrDuplicatePayment
  - loans/schedule.go: Wraps ErrEmptySchedule
*/
package generic

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidPaymentAmount is returned when a payment with amount <= 0 is
	// supplied. It is rejected before allocation, never silently skipped.
	ErrInvalidPaymentAmount = errors.New("invalid payment amount")

	// ErrEmptySchedule is returned when schedule generation yields zero periods.
	// It is not fatal: reconciling against an empty schedule leaves every
	// payment unallocated.
	ErrEmptySchedule = errors.New("empty obligation schedule")

	// ErrDuplicateIdempotencyKey is returned when a payment with the same
	// idempotency key already exists. This is expected behavior for retries.
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")

	// ErrDuplicatePayment is returned when a caller-supplied payment ID is
	// already in the ledger.
	ErrDuplicatePayment = errors.New("duplicate payment id")

	// ErrMemberNotFound is returned when a referenced member doesn't exist.
	ErrMemberNotFound = errors.New("member not found")

	// ErrLoanNotFound is returned when a referenced loan doesn't exist.
	ErrLoanNotFound = errors.New("loan not found")

	// ErrInvalidOwner is returned when a payment has no owner.
	ErrInvalidOwner = errors.New("payment owner required")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InvalidPaymentAmountError identifies the offending payment.
type InvalidPaymentAmountError struct {
	PaymentID PaymentID
	Amount    Amount
}

func (e *InvalidPaymentAmountError) Error() string {
	return fmt.Sprintf("invalid payment amount: payment %s has amount %s (must be > 0)",
		e.PaymentID, e.Amount)
}

func (e *InvalidPaymentAmountError) Unwrap() error {
	return ErrInvalidPaymentAmount
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidPaymentAmount) ||
		errors.Is(err, ErrInvalidOwner) ||
		errors.Is(err, ErrDuplicateIdempotencyKey) ||
		errors.Is(err, ErrDuplicatePayment)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrMemberNotFound) ||
		errors.Is(err, ErrLoanNotFound)
}
