/*
scheduler.go - Dividend cycle rollover scheduler

PURPOSE:
  The per-share dividend depends on which distribution cycle is current:
  only payments made inside that cycle qualify a member. When the cycle
  rolls over, the cached value of the year is stale. The scheduler
  periodically checks the current cycle and, when it changed, invalidates
  the year's cached per-share and recomputes it.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Remembers the last cycle label it saw; the first check always warms
  - A failed recompute is logged and retried on the next tick

USAGE:
  scheduler := NewCycleScheduler(handler)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - shares/cycle.go: CurrentCycle
  - dividend/service.go: InvalidateYear, PerShare
*/
package api

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/warp/coop-ledger/shares"
)

// CycleScheduler refreshes the cached per-share value on cycle rollover.
type CycleScheduler struct {
	Handler       *Handler
	CheckInterval time.Duration
	Enabled       bool

	ticker    *time.Ticker
	stop      chan struct{}
	wg        sync.WaitGroup
	mu        sync.Mutex
	stateMu   sync.Mutex
	lastCycle string
}

// NewCycleScheduler creates a scheduler checking once an hour.
func NewCycleScheduler(h *Handler) *CycleScheduler {
	return &CycleScheduler{
		Handler:       h,
		CheckInterval: time.Hour,
		Enabled:       true,
	}
}

// Start begins the scheduler.
func (cs *CycleScheduler) Start() {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	log := cs.Handler.Logger
	if !cs.Enabled {
		log.Info("cycle scheduler disabled")
		return
	}
	if cs.ticker != nil {
		return
	}

	cs.ticker = time.NewTicker(cs.CheckInterval)
	cs.stop = make(chan struct{})
	cs.wg.Add(1)
	go cs.run()

	log.Info("cycle scheduler started", zap.Duration("interval", cs.CheckInterval))
}

// Stop stops the scheduler and waits for a running check to finish.
func (cs *CycleScheduler) Stop() {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if cs.ticker == nil {
		return
	}
	cs.ticker.Stop()
	close(cs.stop)
	cs.wg.Wait()
	cs.ticker = nil
	cs.Handler.Logger.Info("cycle scheduler stopped")
}

func (cs *CycleScheduler) run() {
	defer cs.wg.Done()

	cs.RunNow(context.Background())

	for {
		select {
		case <-cs.ticker.C:
			cs.RunNow(context.Background())
		case <-cs.stop:
			return
		}
	}
}

// RunNow performs one check. It reports whether the cycle rolled over.
func (cs *CycleScheduler) RunNow(ctx context.Context) bool {
	h := cs.Handler
	cycle := shares.CurrentCycle(h.Clock.Now(), h.Policy)
	label := cycle.Label()

	cs.stateMu.Lock()
	changed := label != cs.lastCycle
	previous := cs.lastCycle
	cs.stateMu.Unlock()

	if !changed {
		return false
	}

	h.Logger.Info("dividend cycle rollover",
		zap.String("from", previous),
		zap.String("to", label),
		zap.Time("due_at", cycle.DueAt))

	if err := h.Dividends.InvalidateYear(ctx, cycle.Year); err != nil {
		h.Logger.Warn("per-share invalidation failed", zap.Int("year", cycle.Year), zap.Error(err))
		return true
	}
	perShare, err := h.Dividends.PerShare(ctx, cycle.Year)
	if err != nil {
		h.Logger.Error("per-share recompute failed", zap.Int("year", cycle.Year), zap.Error(err))
		return true
	}

	cs.stateMu.Lock()
	cs.lastCycle = label
	cs.stateMu.Unlock()

	h.Logger.Info("per-share refreshed", zap.Int("year", cycle.Year), zap.String("per_share", perShare.String()))
	return true
}
