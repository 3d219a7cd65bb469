// Package store provides PaymentStore implementations.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/warp/coop-ledger/generic"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu          sync.RWMutex
	payments    map[generic.Owner][]generic.Payment
	ids         map[generic.PaymentID]bool
	idempotency map[string]bool
}

func NewMemory() *Memory {
	return &Memory{
		payments:    make(map[generic.Owner][]generic.Payment),
		ids:         make(map[generic.PaymentID]bool),
		idempotency: make(map[string]bool),
	}
}

// AppendPayment adds a single payment. Append-only.
func (m *Memory) AppendPayment(_ context.Context, p generic.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendLocked(p)
}

// AppendPayments adds multiple payments atomically.
func (m *Memory) AppendPayments(_ context.Context, ps []generic.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	seen := make(map[string]bool, len(ps))
	seenIDs := make(map[generic.PaymentID]bool, len(ps))
	for _, p := range ps {
		if m.ids[p.ID] || seenIDs[p.ID] {
			return fmt.Errorf("payment %s: %w", p.ID, generic.ErrDuplicatePayment)
		}
		seenIDs[p.ID] = true
		if p.IdempotencyKey == "" {
			continue
		}
		if m.idempotency[p.IdempotencyKey] || seen[p.IdempotencyKey] {
			return generic.ErrDuplicateIdempotencyKey
		}
		seen[p.IdempotencyKey] = true
	}

	for _, p := range ps {
		if err := m.appendLocked(p); err != nil {
			return err
		}
	}
	return nil
}

func (m *Memory) appendLocked(p generic.Payment) error {
	if p.IdempotencyKey != "" && m.idempotency[p.IdempotencyKey] {
		return generic.ErrDuplicateIdempotencyKey
	}
	if m.ids[p.ID] {
		return fmt.Errorf("payment %s: %w", p.ID, generic.ErrDuplicatePayment)
	}

	ps := m.payments[p.Owner]

	// Insert after any payment with the same PaidAt so ties keep arrival order.
	i := sort.Search(len(ps), func(i int) bool {
		return ps[i].PaidAt.After(p.PaidAt)
	})

	ps = append(ps, generic.Payment{})
	copy(ps[i+1:], ps[i:])
	ps[i] = p
	m.payments[p.Owner] = ps
	m.ids[p.ID] = true

	if p.IdempotencyKey != "" {
		m.idempotency[p.IdempotencyKey] = true
	}
	return nil
}

func (m *Memory) Payments(_ context.Context, owner generic.Owner) ([]generic.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]generic.Payment, len(m.payments[owner]))
	copy(result, m.payments[owner])
	return result, nil
}

// PaymentsInRange returns payments with from <= PaidAt <= to. A zero from
// means no lower bound.
func (m *Memory) PaymentsInRange(_ context.Context, owner generic.Owner, from, to time.Time) ([]generic.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []generic.Payment
	for _, p := range m.payments[owner] {
		if (from.IsZero() || !p.PaidAt.Before(from)) && !p.PaidAt.After(to) {
			result = append(result, p)
		}
	}
	return result, nil
}

func (m *Memory) PaymentKeyExists(_ context.Context, idempotencyKey string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.idempotency[idempotencyKey], nil
}
