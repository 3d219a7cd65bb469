/*
ledger.go - Append-only payment log

PURPOSE:
  The payment ledger is the source of truth for everything the engine
  shows. There is no "paid" flag on a period and no stored balance that can
  drift: status is always recomputed by replaying payments through
  Allocate/Evaluate.

CRITICAL INVARIANTS:
  1. APPEND-ONLY: No Update, No Delete.
  2. VALID: Amount > 0 is enforced here, at the write boundary
  3. IDEMPOTENT: Same idempotency key = same payment (no duplicates)

SEE ALSO:
  - store.go: Low-level persistence interface
*/
package generic

import (
	"context"
	"time"
)

// =============================================================================
// PAYMENT LEDGER
// =============================================================================

type PaymentLedger struct {
	Store PaymentStore
	Clock Clock
}

func NewPaymentLedger(store PaymentStore, clock Clock) *PaymentLedger {
	if clock == nil {
		clock = SystemClock{}
	}
	return &PaymentLedger{Store: store, Clock: clock}
}

// Record validates and appends a payment.
func (l *PaymentLedger) Record(ctx context.Context, p Payment) (Payment, error) {
	if p.Owner.ID == "" || p.Owner.Kind == "" {
		return Payment{}, ErrInvalidOwner
	}
	if !p.Amount.IsPositive() {
		return Payment{}, &InvalidPaymentAmountError{PaymentID: p.ID, Amount: p.Amount}
	}

	if p.IdempotencyKey != "" {
		exists, err := l.Store.PaymentKeyExists(ctx, p.IdempotencyKey)
		if err != nil {
			return Payment{}, err
		}
		if exists {
			return Payment{}, ErrDuplicateIdempotencyKey
		}
	}

	if p.CreatedAt.IsZero() {
		p.CreatedAt = l.Clock.Now()
	}
	if p.PaidAt.IsZero() {
		p.PaidAt = p.CreatedAt
	}

	if err := l.Store.AppendPayment(ctx, p); err != nil {
		return Payment{}, err
	}
	return p, nil
}

// Payments returns all payments for the owner, chronologically.
func (l *PaymentLedger) Payments(ctx context.Context, owner Owner) ([]Payment, error) {
	return l.Store.Payments(ctx, owner)
}

// PaymentsThrough returns payments dated on or before the given instant.
func (l *PaymentLedger) PaymentsThrough(ctx context.Context, owner Owner, through time.Time) ([]Payment, error) {
	return l.Store.PaymentsInRange(ctx, owner, time.Time{}, through)
}

// Reconcile loads the owner's payments and reconciles them against schedule.
func (l *PaymentLedger) Reconcile(ctx context.Context, owner Owner, schedule Schedule) (*Reconciliation, error) {
	payments, err := l.Store.Payments(ctx, owner)
	if err != nil {
		return nil, err
	}
	return Reconcile(payments, schedule, l.Clock)
}
