/*
store.go - Persistence interface for payments

PURPOSE:
  Defines the interface between the engine and the database for the only
  facts the engine reads: raw payments. Schedules, allocations and statuses
  are never stored, they are recomputed from payments on every query.

APPEND-ONLY CONTRACT:
  - Append(): Single payment write
  - NO Update() or Delete() methods exist
  Corrections are recorded as new payments by the surrounding application.

IDEMPOTENCY:
  A payment may carry an idempotency key. If the key already exists the
  write is rejected with ErrDuplicateIdempotencyKey, so a double-submitted
  form cannot record the same payment twice.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: SQLite
  - generic/store/memory.go: In-memory for testing

SEE ALSO:
  - ledger.go: Validating wrapper around PaymentStore
*/
package generic

import (
	"context"
	"time"
)

// PaymentStore handles persistence of payments.
// IMPORTANT: PaymentStore is APPEND-ONLY. No Update, No Delete.
type PaymentStore interface {
	// AppendPayment persists a payment. Returns ErrDuplicateIdempotencyKey if
	// the payment's idempotency key exists.
	AppendPayment(ctx context.Context, p Payment) error

	// Payments returns all payments for the owner, ordered by PaidAt.
	Payments(ctx context.Context, owner Owner) ([]Payment, error)

	// PaymentsInRange returns payments with PaidAt in [from, to].
	PaymentsInRange(ctx context.Context, owner Owner, from, to time.Time) ([]Payment, error)

	// PaymentKeyExists checks if an idempotency key already exists.
	PaymentKeyExists(ctx context.Context, idempotencyKey string) (bool, error)
}
