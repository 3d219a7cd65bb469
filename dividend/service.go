package dividend

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/coop-ledger/generic"
	"github.com/warp/coop-ledger/shares"
)

// Store is what the dividend service reads and writes.
type Store interface {
	ListMembers(ctx context.Context) ([]shares.Member, error)
	Payments(ctx context.Context, owner generic.Owner) ([]generic.Payment, error)
	ShareUnitValue(ctx context.Context) (decimal.Decimal, error)

	// ProfitPool returns nil when no pool is set for the year.
	ProfitPool(ctx context.Context, year int) (*ProfitPool, error)
	SetProfitPool(ctx context.Context, pool ProfitPool) error

	ListEligibility(ctx context.Context, year int) ([]Eligibility, error)
	UpsertEligibility(ctx context.Context, e Eligibility) error

	// CreatePayout returns an error wrapping ErrDuplicatePayout if the
	// member already has a payout for the year.
	CreatePayout(ctx context.Context, p Payout) error
	ListPayouts(ctx context.Context, year int) ([]Payout, error)
}

// =============================================================================
// SERVICE
// =============================================================================

type Service struct {
	store  Store
	cache  PerShareCache
	policy shares.Policy
	clock  generic.Clock
	logger *zap.Logger
}

func NewService(store Store, cache PerShareCache, policy shares.Policy, clock generic.Clock, logger *zap.Logger) *Service {
	if cache == nil {
		cache = NewMemoryCache()
	}
	if clock == nil {
		clock = generic.SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if policy.Currency == "" {
		policy.Currency = generic.DefaultCurrency
	}
	return &Service{store: store, cache: cache, policy: policy, clock: clock, logger: logger}
}

// Compute loads every input for the year and runs Calculate. It bypasses
// the cache.
func (s *Service) Compute(ctx context.Context, year int) (Result, error) {
	cycle := shares.CycleForYear(year, s.clock.Now(), s.policy)

	pool := generic.Amount{Value: decimal.Zero, Currency: s.policy.Currency}
	stored, err := s.store.ProfitPool(ctx, year)
	if err != nil {
		return Result{}, fmt.Errorf("load profit pool: %w", err)
	}
	if stored != nil {
		pool = stored.Amount
	}

	unitValue, err := s.store.ShareUnitValue(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("load share unit value: %w", err)
	}

	eligibility, err := s.store.ListEligibility(ctx, year)
	if err != nil {
		return Result{}, fmt.Errorf("load eligibility: %w", err)
	}

	members, err := s.store.ListMembers(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("load members: %w", err)
	}

	eligible := make(map[string]bool, len(eligibility))
	for _, e := range eligibility {
		if e.Cycle == cycle.Number && e.IsEligible {
			eligible[e.MemberID] = true
		}
	}

	inputs := make([]MemberPayments, 0, len(members))
	for _, m := range members {
		mp := MemberPayments{Member: m}
		// Only eligible members need their history.
		if eligible[m.ID] {
			mp.Payments, err = s.store.Payments(ctx, m.Owner())
			if err != nil {
				return Result{}, fmt.Errorf("load payments for member %s: %w", m.ID, err)
			}
		}
		inputs = append(inputs, mp)
	}

	return Calculate(Input{
		Year:        year,
		Cycle:       cycle,
		ProfitPool:  pool,
		Members:     inputs,
		Eligibility: eligibility,
		Policy:      s.policy,
		UnitValue:   unitValue,
	})
}

// PerShare returns the cached per-share value for the year, computing and
// caching it on a miss. A failing cache is logged and bypassed. A value
// computed while the year was invalidated is returned but not cached.
func (s *Service) PerShare(ctx context.Context, year int) (decimal.Decimal, error) {
	entry, err := s.cache.Get(ctx, year)
	cacheable := err == nil
	if err != nil {
		s.logger.Warn("per-share cache read failed", zap.Int("year", year), zap.Error(err))
	} else if entry.Found {
		return entry.PerShare, nil
	}

	result, err := s.Compute(ctx, year)
	if err != nil {
		return decimal.Zero, err
	}

	if cacheable {
		stored, err := s.cache.Set(ctx, year, entry.Generation, result.PerShare)
		switch {
		case err != nil:
			s.logger.Warn("per-share cache write failed", zap.Int("year", year), zap.Error(err))
		case !stored:
			s.logger.Debug("per-share invalidated during compute, not cached", zap.Int("year", year))
		}
	}
	s.logger.Debug("per-share computed",
		zap.Int("year", year),
		zap.String("cycle", result.Cycle.Label()),
		zap.Int("eligible_shares", result.TotalEligibleShares),
		zap.String("per_share", result.PerShare.String()))
	return result.PerShare, nil
}

// SetProfitPool stores the pool for the year and invalidates its per-share.
func (s *Service) SetProfitPool(ctx context.Context, pool ProfitPool) error {
	if pool.Amount.IsNegative() {
		return ErrInvalidProfitPool
	}
	if pool.UpdatedAt.IsZero() {
		pool.UpdatedAt = s.clock.Now()
	}
	if err := s.store.SetProfitPool(ctx, pool); err != nil {
		return fmt.Errorf("save profit pool: %w", err)
	}
	return s.InvalidateYear(ctx, pool.Year)
}

// UpsertEligibility stores the record and invalidates the year's per-share.
func (s *Service) UpsertEligibility(ctx context.Context, e Eligibility) error {
	if err := e.Validate(); err != nil {
		return err
	}
	if e.IsEligible {
		e.Reason = ""
	}
	if e.UpdatedAt.IsZero() {
		e.UpdatedAt = s.clock.Now()
	}
	if err := s.store.UpsertEligibility(ctx, e); err != nil {
		return fmt.Errorf("save eligibility: %w", err)
	}
	return s.InvalidateYear(ctx, e.Year)
}

func (s *Service) ListEligibility(ctx context.Context, year int) ([]Eligibility, error) {
	return s.store.ListEligibility(ctx, year)
}

// InvalidateYear drops the cached per-share for the year.
func (s *Service) InvalidateYear(ctx context.Context, year int) error {
	if err := s.cache.Invalidate(ctx, year); err != nil {
		return fmt.Errorf("invalidate per-share %d: %w", year, err)
	}
	s.logger.Info("per-share invalidated", zap.Int("year", year))
	return nil
}

// =============================================================================
// PAYOUTS
// =============================================================================

type PayoutFailure struct {
	MemberID string
	Err      error
}

type BatchSummary struct {
	Total       int
	Created     int
	Failed      int
	TotalAmount generic.Amount
	PerShare    decimal.Decimal
}

type PayoutBatch struct {
	Year    int
	Cycle   shares.Cycle
	Created []Payout
	Failed  []PayoutFailure
	Summary BatchSummary
}

// DistributePayouts creates one payout per qualifying member. The per-share
// value is computed once and used for the whole batch. Per-member failures,
// including duplicates, are collected and never abort the batch; only
// failing to compute the batch itself returns an error.
func (s *Service) DistributePayouts(ctx context.Context, year int, actor string) (*PayoutBatch, error) {
	result, err := s.Compute(ctx, year)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, year, result.PerShare); err != nil {
		s.logger.Warn("per-share cache write failed", zap.Int("year", year), zap.Error(err))
	}

	currency := result.ProfitPool.Currency
	if currency == "" {
		currency = s.policy.Currency
	}

	batch := &PayoutBatch{
		Year:  year,
		Cycle: result.Cycle,
		Summary: BatchSummary{
			Total:       len(result.Qualifying),
			TotalAmount: generic.Amount{Value: decimal.Zero, Currency: currency},
			PerShare:    result.PerShare,
		},
	}

	now := s.clock.Now()
	for _, q := range result.Qualifying {
		payout := Payout{
			ID:        uuid.NewString(),
			MemberID:  q.MemberID,
			Year:      year,
			Shares:    q.ShareCount,
			PerShare:  result.PerShare,
			Amount:    PayoutAmount(result.PerShare, q.ShareCount, currency),
			CreatedBy: actor,
			CreatedAt: now,
		}

		if err := s.store.CreatePayout(ctx, payout); err != nil {
			if !errors.Is(err, ErrDuplicatePayout) {
				s.logger.Error("payout failed", zap.String("member_id", q.MemberID), zap.Int("year", year), zap.Error(err))
			}
			batch.Failed = append(batch.Failed, PayoutFailure{MemberID: q.MemberID, Err: err})
			continue
		}

		batch.Created = append(batch.Created, payout)
		batch.Summary.TotalAmount = batch.Summary.TotalAmount.Add(payout.Amount)
	}

	batch.Summary.Created = len(batch.Created)
	batch.Summary.Failed = len(batch.Failed)

	s.logger.Info("payout batch finished",
		zap.Int("year", year),
		zap.String("cycle", result.Cycle.Label()),
		zap.Int("total", batch.Summary.Total),
		zap.Int("created", batch.Summary.Created),
		zap.Int("failed", batch.Summary.Failed),
		zap.String("per_share", result.PerShare.String()),
		zap.String("actor", actor))
	return batch, nil
}

func (s *Service) ListPayouts(ctx context.Context, year int) ([]Payout, error) {
	return s.store.ListPayouts(ctx, year)
}
