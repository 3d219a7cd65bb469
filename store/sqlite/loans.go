package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/warp/coop-ledger/loans"
)

// =============================================================================
// LOAN STORE
// =============================================================================

// SaveLoan inserts or updates a loan.
func (s *Store) SaveLoan(ctx context.Context, l loans.Loan) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO loans
		(id, member_id, principal, interest, currency, term_months, monthly_amortization,
		 application_date, release_date, due_date, status, purpose, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			principal = excluded.principal,
			interest = excluded.interest,
			term_months = excluded.term_months,
			monthly_amortization = excluded.monthly_amortization,
			release_date = excluded.release_date,
			due_date = excluded.due_date,
			status = excluded.status,
			purpose = excluded.purpose
	`

	createdAt := l.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, query,
		l.ID, l.MemberID,
		l.Principal.Value.String(),
		l.Interest.Value.String(),
		currencyOrDefault(l.Principal.Currency),
		l.TermMonths,
		l.MonthlyAmortization.Value.String(),
		formatTime(l.ApplicationDate),
		formatTimePtr(l.ReleaseDate),
		formatTimePtr(l.DueDate),
		l.Status,
		nullString(l.Purpose),
		formatTime(createdAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save loan: %w", err)
	}
	return nil
}

// GetLoan retrieves a loan by ID. Returns nil, nil when not found.
func (s *Store) GetLoan(ctx context.Context, id string) (*loans.Loan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, selectLoans+" WHERE id = ?", id)
	l, err := scanLoan(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// ListLoansByMember returns a member's loans, oldest application first.
func (s *Store) ListLoansByMember(ctx context.Context, memberID string) ([]loans.Loan, error) {
	return s.queryLoans(ctx, selectLoans+" WHERE member_id = ? ORDER BY application_date, id", memberID)
}

// ListLoans returns every loan, oldest application first.
func (s *Store) ListLoans(ctx context.Context) ([]loans.Loan, error) {
	return s.queryLoans(ctx, selectLoans+" ORDER BY application_date, id")
}

const selectLoans = `
	SELECT id, member_id, principal, interest, currency, term_months, monthly_amortization,
	       application_date, release_date, due_date, status, purpose, created_at
	FROM loans`

func (s *Store) queryLoans(ctx context.Context, query string, args ...any) ([]loans.Loan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []loans.Loan
	for rows.Next() {
		l, err := scanLoan(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, l)
	}
	return result, rows.Err()
}

func scanLoan(row rowScanner) (loans.Loan, error) {
	var (
		l               loans.Loan
		principal       string
		interest        string
		currency        string
		amortization    string
		applicationDate string
		releaseDate     sql.NullString
		dueDate         sql.NullString
		purpose         sql.NullString
		createdAt       string
	)

	err := row.Scan(
		&l.ID, &l.MemberID, &principal, &interest, &currency, &l.TermMonths, &amortization,
		&applicationDate, &releaseDate, &dueDate, &l.Status, &purpose, &createdAt,
	)
	if err != nil {
		return l, err
	}

	if l.Principal, err = parseAmount(principal, currency); err != nil {
		return l, err
	}
	if l.Interest, err = parseAmount(interest, currency); err != nil {
		return l, err
	}
	if l.MonthlyAmortization, err = parseAmount(amortization, currency); err != nil {
		return l, err
	}
	l.ApplicationDate = parseTime(applicationDate)
	l.ReleaseDate = parseTimePtr(releaseDate)
	l.DueDate = parseTimePtr(dueDate)
	l.Purpose = purpose.String
	l.CreatedAt = parseTime(createdAt)
	return l, nil
}
