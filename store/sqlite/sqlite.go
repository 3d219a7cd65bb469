/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Persists the only facts the ledger keeps: payments, members, loans, system
  settings, profit pools, cycle eligibility and dividend payouts. Schedules,
  allocations and period statuses are never stored; they are recomputed from
  these rows on every query.

INTERFACES IMPLEMENTED:
  generic.PaymentStore: Payment ledger (append-only)
  dividend.Store:       Profit pools, eligibility, payouts

APPEND-ONLY ENFORCEMENT:
  - No UPDATE statements on the payments table
  - No DELETE statements on the payments table
  - Payouts are insert-only, one per (member, year)

KEY TABLES:
  payments:          Immutable ledger of member dues and loan repayments
  members:           Member records with share counts
  loans:             Loan parameters (principal, term, amortization, dates)
  settings:          Single-row system configuration
  profit_pools:      Profit pool per year
  cycle_eligibility: Eligibility per (member, year, cycle)
  payouts:           Dividend payouts, unique per (member, year)

MONEY & TIME:
  Money is stored as decimal TEXT, never REAL. Timestamps are stored as
  fixed-width UTC text so that ORDER BY on the column is chronological.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. The pool is limited to a single
  connection so ":memory:" databases are shared by every query.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging):
  - Multiple readers don't block
  - Single writer at a time

USAGE:
  store, err := sqlite.New("./data/coop.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  ledger := generic.NewPaymentLedger(store, generic.SystemClock{})

SEE ALSO:
  - generic/store.go: PaymentStore interface
  - dividend/service.go: dividend.Store interface
  - generic/store/memory.go: In-memory payments for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/coop-ledger/generic"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db       *sql.DB
	mu       sync.RWMutex
	defaults Settings
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db, defaults: DefaultSettings()}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// WithDefaults sets the settings returned until settings are saved.
func (s *Store) WithDefaults(d Settings) *Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.defaults = d
	return s
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Payments (append-only ledger)
	CREATE TABLE IF NOT EXISTS payments (
		id TEXT PRIMARY KEY,
		owner_kind TEXT NOT NULL,
		owner_id TEXT NOT NULL,
		amount TEXT NOT NULL,
		currency TEXT NOT NULL,
		paid_at TEXT NOT NULL,
		method TEXT,
		reference TEXT,
		idempotency_key TEXT UNIQUE,
		recorded_by TEXT,
		created_at TEXT NOT NULL
	);

	-- Reconciliation hot path: all payments of one owner in date order
	CREATE INDEX IF NOT EXISTS idx_payments_owner_paid_at
		ON payments(owner_kind, owner_id, paid_at);

	-- Members
	CREATE TABLE IF NOT EXISTS members (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT,
		share_count INTEGER NOT NULL DEFAULT 0 CHECK (share_count >= 0),
		joined_at TEXT,
		created_at TEXT NOT NULL
	);

	-- Loans
	CREATE TABLE IF NOT EXISTS loans (
		id TEXT PRIMARY KEY,
		member_id TEXT NOT NULL REFERENCES members(id),
		principal TEXT NOT NULL,
		interest TEXT NOT NULL,
		currency TEXT NOT NULL,
		term_months INTEGER NOT NULL DEFAULT 0,
		monthly_amortization TEXT NOT NULL,
		application_date TEXT NOT NULL,
		release_date TEXT,
		due_date TEXT,
		status TEXT NOT NULL DEFAULT 'pending',
		purpose TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_loans_member
		ON loans(member_id);

	-- System settings (single row)
	CREATE TABLE IF NOT EXISTS settings (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		share_unit_value TEXT NOT NULL,
		min_loan_amount TEXT NOT NULL,
		max_loan_amount TEXT NOT NULL,
		updated_by TEXT,
		updated_at TEXT NOT NULL
	);

	-- Profit pool per year
	CREATE TABLE IF NOT EXISTS profit_pools (
		year INTEGER PRIMARY KEY,
		amount TEXT NOT NULL,
		currency TEXT NOT NULL,
		updated_by TEXT,
		updated_at TEXT NOT NULL
	);

	-- Cycle eligibility, upserted per (member, year, cycle)
	CREATE TABLE IF NOT EXISTS cycle_eligibility (
		member_id TEXT NOT NULL REFERENCES members(id),
		year INTEGER NOT NULL,
		cycle INTEGER NOT NULL CHECK (cycle IN (1, 2)),
		is_eligible BOOLEAN NOT NULL,
		reason TEXT,
		updated_by TEXT,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (member_id, year, cycle)
	);

	CREATE INDEX IF NOT EXISTS idx_cycle_eligibility_year
		ON cycle_eligibility(year, cycle);

	-- Dividend payouts
	CREATE TABLE IF NOT EXISTS payouts (
		id TEXT PRIMARY KEY,
		member_id TEXT NOT NULL REFERENCES members(id),
		year INTEGER NOT NULL,
		shares INTEGER NOT NULL,
		per_share TEXT NOT NULL,
		amount TEXT NOT NULL,
		currency TEXT NOT NULL,
		created_by TEXT,
		created_at TEXT NOT NULL
	);

	-- CRITICAL: at most one payout per member per year
	CREATE UNIQUE INDEX IF NOT EXISTS idx_unique_member_year_payout
		ON payouts(member_id, year);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// PAYMENT STORE (generic.PaymentStore interface)
// =============================================================================

// AppendPayment adds a payment to the ledger.
func (s *Store) AppendPayment(ctx context.Context, p generic.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.appendPayment(ctx, s.db, p)
}

func (s *Store) appendPayment(ctx context.Context, db interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}, p generic.Payment) error {
	query := `
		INSERT INTO payments
		(id, owner_kind, owner_id, amount, currency, paid_at, method, reference,
		 idempotency_key, recorded_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	createdAt := p.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := db.ExecContext(ctx, query,
		p.ID,
		p.Owner.Kind,
		p.Owner.ID,
		p.Amount.Value.String(),
		currencyOrDefault(p.Amount.Currency),
		formatTime(p.PaidAt),
		nullString(string(p.Method)),
		nullString(p.Reference),
		nullString(p.IdempotencyKey),
		nullString(p.RecordedBy),
		formatTime(createdAt),
	)

	if err != nil {
		if isUniqueConstraintError(err) {
			if strings.Contains(err.Error(), "idempotency_key") {
				return generic.ErrDuplicateIdempotencyKey
			}
			return fmt.Errorf("payment %s: %w", p.ID, generic.ErrDuplicatePayment)
		}
		return fmt.Errorf("failed to append payment: %w", err)
	}

	return nil
}

// AppendPayments adds multiple payments atomically.
func (s *Store) AppendPayments(ctx context.Context, ps []generic.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make(map[string]bool)
	for _, p := range ps {
		if p.IdempotencyKey != "" {
			if keys[p.IdempotencyKey] {
				return generic.ErrDuplicateIdempotencyKey
			}
			keys[p.IdempotencyKey] = true
		}
	}

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	for _, p := range ps {
		if err := s.appendPayment(ctx, sqlTx, p); err != nil {
			return err
		}
	}

	return sqlTx.Commit()
}

// Payments returns all payments for the owner in PaidAt order.
// Payments sharing a PaidAt come back in insertion order.
func (s *Store) Payments(ctx context.Context, owner generic.Owner) ([]generic.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, owner_kind, owner_id, amount, currency, paid_at, method, reference,
		       idempotency_key, recorded_by, created_at
		FROM payments
		WHERE owner_kind = ? AND owner_id = ?
		ORDER BY paid_at ASC, rowid ASC
	`

	return s.queryPayments(ctx, query, owner.Kind, owner.ID)
}

// PaymentsInRange returns payments with from <= PaidAt <= to. A zero from
// means no lower bound.
func (s *Store) PaymentsInRange(ctx context.Context, owner generic.Owner, from, to time.Time) ([]generic.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lower := ""
	if !from.IsZero() {
		lower = formatTime(from)
	}

	query := `
		SELECT id, owner_kind, owner_id, amount, currency, paid_at, method, reference,
		       idempotency_key, recorded_by, created_at
		FROM payments
		WHERE owner_kind = ? AND owner_id = ?
		  AND paid_at >= ? AND paid_at <= ?
		ORDER BY paid_at ASC, rowid ASC
	`

	return s.queryPayments(ctx, query, owner.Kind, owner.ID, lower, formatTime(to))
}

// PaymentKeyExists checks if an idempotency key exists.
func (s *Store) PaymentKeyExists(ctx context.Context, idempotencyKey string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM payments WHERE idempotency_key = ?",
		idempotencyKey,
	).Scan(&count)

	return count > 0, err
}

// GetPayment retrieves a payment by ID.
func (s *Store) GetPayment(ctx context.Context, id generic.PaymentID) (*generic.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	payments, err := s.queryPayments(ctx, `
		SELECT id, owner_kind, owner_id, amount, currency, paid_at, method, reference,
		       idempotency_key, recorded_by, created_at
		FROM payments WHERE id = ?
	`, id)
	if err != nil || len(payments) == 0 {
		return nil, err
	}
	return &payments[0], nil
}

func (s *Store) queryPayments(ctx context.Context, query string, args ...any) ([]generic.Payment, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query payments: %w", err)
	}
	defer rows.Close()

	var payments []generic.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}

	return payments, rows.Err()
}

func scanPayment(rows *sql.Rows) (generic.Payment, error) {
	var (
		p              generic.Payment
		amount         string
		currency       string
		paidAt         string
		method         sql.NullString
		reference      sql.NullString
		idempotencyKey sql.NullString
		recordedBy     sql.NullString
		createdAt      string
	)

	err := rows.Scan(
		&p.ID, &p.Owner.Kind, &p.Owner.ID, &amount, &currency, &paidAt,
		&method, &reference, &idempotencyKey, &recordedBy, &createdAt,
	)
	if err != nil {
		return p, fmt.Errorf("failed to scan payment: %w", err)
	}

	if p.Amount, err = parseAmount(amount, currency); err != nil {
		return p, fmt.Errorf("payment %s: %w", p.ID, err)
	}
	p.PaidAt = parseTime(paidAt)
	p.CreatedAt = parseTime(createdAt)
	p.Method = generic.PaymentMethod(method.String)
	p.Reference = reference.String
	p.IdempotencyKey = idempotencyKey.String
	p.RecordedBy = recordedBy.String

	return p, nil
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo). Children go first so foreign
// keys hold.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"payouts", "cycle_eligibility", "profit_pools", "settings", "payments", "loans", "members"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("reset %s: %w", table, err)
		}
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

// timeLayout is fixed-width so lexical order equals chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339Nano, s)
	}
	return t
}

func formatTimePtr(t *time.Time) sql.NullString {
	if t == nil || t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseTimePtr(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t := parseTime(s.String)
	return &t
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func parseAmount(value, currency string) (generic.Amount, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return generic.Amount{}, fmt.Errorf("invalid stored amount %q: %w", value, err)
	}
	return generic.NewAmountFromDecimal(d, generic.Currency(currency)), nil
}

func currencyOrDefault(c generic.Currency) generic.Currency {
	if c == "" {
		return generic.DefaultCurrency
	}
	return c
}

func isUniqueConstraintError(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.ExtendedCode == sqlite3.ErrConstraintUnique ||
			se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
