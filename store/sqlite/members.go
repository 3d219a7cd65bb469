package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/warp/coop-ledger/shares"
)

// =============================================================================
// MEMBER STORE
// =============================================================================

// SaveMember inserts or updates a member.
func (s *Store) SaveMember(ctx context.Context, m shares.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO members (id, name, email, share_count, joined_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			email = excluded.email,
			share_count = excluded.share_count,
			joined_at = excluded.joined_at
	`

	createdAt := m.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, query,
		m.ID, m.Name, nullString(m.Email), m.ShareCount,
		formatTimePtr(&m.JoinedAt),
		formatTime(createdAt),
	)
	return err
}

// GetMember retrieves a member by ID. Returns nil, nil when not found.
func (s *Store) GetMember(ctx context.Context, id string) (*shares.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT id, name, email, share_count, joined_at, created_at FROM members WHERE id = ?",
		id,
	)

	m, err := scanMember(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// ListMembers returns all members ordered by name.
func (s *Store) ListMembers(ctx context.Context) ([]shares.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, email, share_count, joined_at, created_at FROM members ORDER BY name, id",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []shares.Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMember(row rowScanner) (shares.Member, error) {
	var (
		m         shares.Member
		email     sql.NullString
		joinedAt  sql.NullString
		createdAt string
	)
	if err := row.Scan(&m.ID, &m.Name, &email, &m.ShareCount, &joinedAt, &createdAt); err != nil {
		return m, err
	}
	m.Email = email.String
	if t := parseTimePtr(joinedAt); t != nil {
		m.JoinedAt = *t
	}
	m.CreatedAt = parseTime(createdAt)
	return m, nil
}
