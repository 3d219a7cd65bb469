package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/coop-ledger/dividend"
	"github.com/warp/coop-ledger/generic"
)

// =============================================================================
// SETTINGS
// =============================================================================

// Settings is the single-row system configuration.
type Settings struct {
	ShareUnitValue decimal.Decimal
	MinLoanAmount  decimal.Decimal
	MaxLoanAmount  decimal.Decimal
	UpdatedBy      string
	UpdatedAt      time.Time
}

func DefaultSettings() Settings {
	return Settings{
		ShareUnitValue: decimal.NewFromInt(250),
		MinLoanAmount:  decimal.NewFromInt(1000),
		MaxLoanAmount:  decimal.NewFromInt(500000),
	}
}

// GetSettings returns the stored settings, or the defaults if none are saved.
func (s *Store) GetSettings(ctx context.Context) (Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		st                     Settings
		unit, minLoan, maxLoan string
		updatedBy              sql.NullString
		updatedAt              string
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT share_unit_value, min_loan_amount, max_loan_amount, updated_by, updated_at FROM settings WHERE id = 1",
	).Scan(&unit, &minLoan, &maxLoan, &updatedBy, &updatedAt)

	if err == sql.ErrNoRows {
		return s.defaults, nil
	}
	if err != nil {
		return Settings{}, err
	}

	if st.ShareUnitValue, err = decimal.NewFromString(unit); err != nil {
		return Settings{}, fmt.Errorf("invalid share unit value %q: %w", unit, err)
	}
	if st.MinLoanAmount, err = decimal.NewFromString(minLoan); err != nil {
		return Settings{}, fmt.Errorf("invalid min loan amount %q: %w", minLoan, err)
	}
	if st.MaxLoanAmount, err = decimal.NewFromString(maxLoan); err != nil {
		return Settings{}, fmt.Errorf("invalid max loan amount %q: %w", maxLoan, err)
	}
	st.UpdatedBy = updatedBy.String
	st.UpdatedAt = parseTime(updatedAt)
	return st, nil
}

// SaveSettings replaces the settings row.
func (s *Store) SaveSettings(ctx context.Context, st Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	updatedAt := st.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (id, share_unit_value, min_loan_amount, max_loan_amount, updated_by, updated_at)
		VALUES (1, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			share_unit_value = excluded.share_unit_value,
			min_loan_amount = excluded.min_loan_amount,
			max_loan_amount = excluded.max_loan_amount,
			updated_by = excluded.updated_by,
			updated_at = excluded.updated_at
	`,
		st.ShareUnitValue.String(), st.MinLoanAmount.String(), st.MaxLoanAmount.String(),
		nullString(st.UpdatedBy), formatTime(updatedAt),
	)
	return err
}

// ShareUnitValue returns the configured value of one share per period.
func (s *Store) ShareUnitValue(ctx context.Context) (decimal.Decimal, error) {
	st, err := s.GetSettings(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	return st.ShareUnitValue, nil
}

// =============================================================================
// PROFIT POOLS (dividend.Store)
// =============================================================================

func (s *Store) ProfitPool(ctx context.Context, year int) (*dividend.ProfitPool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		pool      = dividend.ProfitPool{Year: year}
		amount    string
		currency  string
		updatedBy sql.NullString
		updatedAt string
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT amount, currency, updated_by, updated_at FROM profit_pools WHERE year = ?",
		year,
	).Scan(&amount, &currency, &updatedBy, &updatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if pool.Amount, err = parseAmount(amount, currency); err != nil {
		return nil, err
	}
	pool.UpdatedBy = updatedBy.String
	pool.UpdatedAt = parseTime(updatedAt)
	return &pool, nil
}

func (s *Store) SetProfitPool(ctx context.Context, pool dividend.ProfitPool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO profit_pools (year, amount, currency, updated_by, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(year) DO UPDATE SET
			amount = excluded.amount,
			currency = excluded.currency,
			updated_by = excluded.updated_by,
			updated_at = excluded.updated_at
	`,
		pool.Year, pool.Amount.Value.String(), currencyOrDefault(pool.Amount.Currency),
		nullString(pool.UpdatedBy), formatTime(pool.UpdatedAt),
	)
	return err
}

// =============================================================================
// CYCLE ELIGIBILITY (dividend.Store)
// =============================================================================

// UpsertEligibility inserts or replaces the record for (member, year, cycle).
func (s *Store) UpsertEligibility(ctx context.Context, e dividend.Eligibility) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cycle_eligibility (member_id, year, cycle, is_eligible, reason, updated_by, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(member_id, year, cycle) DO UPDATE SET
			is_eligible = excluded.is_eligible,
			reason = excluded.reason,
			updated_by = excluded.updated_by,
			updated_at = excluded.updated_at
	`,
		e.MemberID, e.Year, e.Cycle, e.IsEligible,
		nullString(e.Reason), nullString(e.UpdatedBy), formatTime(e.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert eligibility: %w", err)
	}
	return nil
}

// ListEligibility returns every record for the year, both cycles.
func (s *Store) ListEligibility(ctx context.Context, year int) ([]dividend.Eligibility, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT member_id, year, cycle, is_eligible, reason, updated_by, updated_at
		FROM cycle_eligibility
		WHERE year = ?
		ORDER BY cycle, member_id
	`, year)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []dividend.Eligibility
	for rows.Next() {
		var (
			e         dividend.Eligibility
			reason    sql.NullString
			updatedBy sql.NullString
			updatedAt string
		)
		if err := rows.Scan(&e.MemberID, &e.Year, &e.Cycle, &e.IsEligible, &reason, &updatedBy, &updatedAt); err != nil {
			return nil, err
		}
		e.Reason = reason.String
		e.UpdatedBy = updatedBy.String
		e.UpdatedAt = parseTime(updatedAt)
		result = append(result, e)
	}
	return result, rows.Err()
}

// =============================================================================
// PAYOUTS (dividend.Store)
// =============================================================================

// CreatePayout inserts a payout. A second payout for the same member and
// year is rejected with *dividend.DuplicatePayoutError, never overwritten.
func (s *Store) CreatePayout(ctx context.Context, p dividend.Payout) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	createdAt := p.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO payouts (id, member_id, year, shares, per_share, amount, currency, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		p.ID, p.MemberID, p.Year, p.Shares, p.PerShare.String(),
		p.Amount.Value.String(), currencyOrDefault(p.Amount.Currency),
		nullString(p.CreatedBy), formatTime(createdAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return &dividend.DuplicatePayoutError{MemberID: p.MemberID, Year: p.Year}
		}
		return fmt.Errorf("failed to create payout: %w", err)
	}
	return nil
}

func (s *Store) ListPayouts(ctx context.Context, year int) ([]dividend.Payout, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, member_id, year, shares, per_share, amount, currency, created_by, created_at
		FROM payouts
		WHERE year = ?
		ORDER BY created_at, member_id
	`, year)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []dividend.Payout
	for rows.Next() {
		var (
			p         dividend.Payout
			perShare  string
			amount    string
			currency  string
			createdBy sql.NullString
			createdAt string
		)
		if err := rows.Scan(&p.ID, &p.MemberID, &p.Year, &p.Shares, &perShare, &amount, &currency, &createdBy, &createdAt); err != nil {
			return nil, err
		}
		if p.PerShare, err = decimal.NewFromString(perShare); err != nil {
			return nil, fmt.Errorf("payout %s: invalid per share %q: %w", p.ID, perShare, err)
		}
		if p.Amount, err = parseAmount(amount, currency); err != nil {
			return nil, err
		}
		p.CreatedBy = createdBy.String
		p.CreatedAt = parseTime(createdAt)
		result = append(result, p)
	}
	return result, rows.Err()
}

// =============================================================================
// INTERFACE ASSERTIONS
// =============================================================================

var (
	_ generic.PaymentStore = (*Store)(nil)
	_ dividend.Store       = (*Store)(nil)
)
