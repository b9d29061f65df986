// Package monitor implements the position monitor: a periodic poll of
// every open position that checks mechanical exits before the
// strategic evaluator, and serializes ticks per position while letting
// distinct positions tick concurrently. Grounded on the teacher's
// internal/workers.Pool worker-pool/bounded-queue shape, repurposed
// from generic task dispatch to one task per open position per tick.
package monitor

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/atlas-desktop/trading-backend/internal/evaluator"
	"github.com/atlas-desktop/trading-backend/internal/events"
	"github.com/atlas-desktop/trading-backend/internal/execution"
	"github.com/atlas-desktop/trading-backend/internal/treasury"
	"github.com/atlas-desktop/trading-backend/internal/workers"
	"github.com/atlas-desktop/trading-backend/pkg/types"
	"go.uber.org/zap"
)

// SnapshotFetcher is the feed's best-effort current-state lookup for a
// single token. A miss (ok=false) leaves the position untouched for
// that tick.
type SnapshotFetcher interface {
	Snapshot(ctx context.Context, address string) (snap *types.TokenSnapshot, ok bool)
}

// tracked is the monitor's bookkeeping for one open position.
type tracked struct {
	position   *types.Position
	genome     *types.StrategyGenome
	trade      *types.Trade
	heldSince  time.Time
	inFlight   atomic.Bool
	mu         sync.Mutex
	previous   *types.TokenSnapshot
}

// Config controls polling cadence and pool sizing.
type Config struct {
	PollInterval time.Duration
	NumWorkers   int
	QueueSize    int
}

// DefaultConfig returns the documented poll cadence and a small fixed
// worker pool, since per-position ticks are I/O bound, not CPU bound.
func DefaultConfig() Config {
	return Config{PollInterval: 20 * time.Second, NumWorkers: 8, QueueSize: 4096}
}

// Monitor polls every tracked position on an interval, closing it
// through the execution adapter when a mechanical or strategic exit
// fires.
type Monitor struct {
	logger  *zap.Logger
	cfg     Config
	feed    SnapshotFetcher
	adapter execution.Adapter
	trsy    *treasury.Manager
	bus     *events.Bus

	pool *workers.Pool

	mu        sync.RWMutex
	positions map[string]*tracked

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New constructs a Monitor. Call Start to begin polling.
func New(logger *zap.Logger, cfg Config, feed SnapshotFetcher, adapter execution.Adapter, trsy *treasury.Manager, bus *events.Bus) *Monitor {
	poolCfg := workers.DefaultPoolConfig("position-monitor")
	if cfg.NumWorkers > 0 {
		poolCfg.NumWorkers = cfg.NumWorkers
	}
	if cfg.QueueSize > 0 {
		poolCfg.QueueSize = cfg.QueueSize
	}
	poolCfg.TaskTimeout = 15 * time.Second

	return &Monitor{
		logger:    logger,
		cfg:       cfg,
		feed:      feed,
		adapter:   adapter,
		trsy:      trsy,
		bus:       bus,
		pool:      workers.NewPool(logger, poolCfg),
		positions: make(map[string]*tracked),
	}
}

// Track begins polling a newly opened position.
func (m *Monitor) Track(position *types.Position, genome *types.StrategyGenome, trade *types.Trade) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.positions[position.TradeID] = &tracked{
		position:  position,
		genome:    genome,
		trade:     trade,
		heldSince: trade.OpenedAt,
	}
}

// Untrack stops polling a position, e.g. after it closes via another
// path.
func (m *Monitor) Untrack(tradeID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.positions, tradeID)
}

// Open reports how many positions are currently tracked.
func (m *Monitor) Open() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.positions)
}

// Start begins the polling loop. Start is idempotent; calling it twice
// without an intervening Stop is a no-op.
func (m *Monitor) Start(ctx context.Context) {
	if m.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.pool.Start()

	interval := m.cfg.PollInterval
	if interval <= 0 {
		interval = DefaultConfig().PollInterval
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.pollOnce(ctx)
			}
		}
	}()
}

// Stop cancels the polling loop and stops the worker pool. In-flight
// ticks run to their next suspension point and are not forcibly
// interrupted.
func (m *Monitor) Stop() {
	if m.cancel == nil {
		return
	}
	m.cancel()
	m.wg.Wait()
	_ = m.pool.Stop()
	m.cancel = nil
}

// pollOnce submits one tick task per tracked position, skipping any
// position whose previous tick is still in flight.
func (m *Monitor) pollOnce(ctx context.Context) {
	m.mu.RLock()
	snap := make([]*tracked, 0, len(m.positions))
	for _, t := range m.positions {
		snap = append(snap, t)
	}
	m.mu.RUnlock()

	for _, t := range snap {
		t := t
		if !t.inFlight.CompareAndSwap(false, true) {
			continue
		}
		if err := m.pool.SubmitFunc(func(jobCtx context.Context) error {
			defer t.inFlight.Store(false)
			m.tick(jobCtx, t)
			return nil
		}); err != nil {
			t.inFlight.Store(false)
			m.logger.Warn("position monitor queue full, tick skipped", zap.String("tradeId", t.trade.ID))
		}
	}
}

// tick runs the full per-position evaluation contract: fetch snapshot,
// recompute live fields and broadcast the refreshed position, check
// mechanical exits before the strategic evaluator and close on a hit.
// The snapshot is cached as previous once the strategic evaluator has
// run.
func (m *Monitor) tick(ctx context.Context, t *tracked) {
	t.mu.Lock()
	defer t.mu.Unlock()

	current, ok := m.feed.Snapshot(ctx, t.trade.TokenAddr)
	if !ok {
		return
	}
	now := current.FetchedAt
	if now.IsZero() {
		now = time.Now()
	}

	t.position.Recompute(t.trade.EntryPrice, current.PriceUSD, t.trade.AmountSol, now)
	m.bus.Publish(events.KindPositionUpdated, events.PositionUpdated{Position: t.position})

	if reason, hit := mechanicalExit(t.trade, current.PriceUSD, now); hit {
		m.close(ctx, t, current.PriceUSD, reason, now)
		return
	}

	decision := evaluator.ShouldSell(t.genome, t.position, current, t.previous, t.trade.EntryPrice, t.heldSince, now)
	t.previous = current
	if !decision.ShouldSell {
		return
	}
	reason := evaluator.MapExitReason(decision.MatchedPatterns)
	m.close(ctx, t, current.PriceUSD, reason, now)
}

// mechanicalExit checks the trade's fixed exit levels in documented
// order: take profit, then stop loss, then the time-based exit.
func mechanicalExit(trade *types.Trade, currentPrice float64, now time.Time) (types.ExitReason, bool) {
	switch {
	case trade.TakeProfitPrice > 0 && currentPrice >= trade.TakeProfitPrice:
		return types.ExitTakeProfit, true
	case trade.StopLossPrice > 0 && currentPrice <= trade.StopLossPrice:
		return types.ExitStopLoss, true
	case !trade.TimeExitTimestamp.IsZero() && !now.Before(trade.TimeExitTimestamp):
		return types.ExitTimeExit, true
	default:
		return "", false
	}
}

// close executes the exit through the adapter, unwinds the treasury
// lock, stops tracking the position and broadcasts the closed trade.
func (m *Monitor) close(ctx context.Context, t *tracked, currentPrice float64, reason types.ExitReason, now time.Time) {
	result := m.adapter.Sell(ctx, t.trade, currentPrice, reason, now)
	if !result.OK {
		m.logger.Warn("sell execution failed, position stays open",
			zap.String("tradeId", t.trade.ID), zap.Error(result.Err))
		return
	}

	if err := m.trsy.RecordTradeClose(result.Trade); err != nil {
		m.logger.Error("treasury failed to record trade close",
			zap.String("tradeId", t.trade.ID), zap.Error(err))
	}

	pnlSol := 0.0
	if result.Trade.PnLSol != nil {
		pnlSol, _ = result.Trade.PnLSol.Float64()
	}
	amountSol, _ := t.trade.AmountSol.Float64()
	t.genome.Performance.RecordTrade(pnlSol, amountSol, t.genome.Genes.TakeProfitMultiplier, t.genome.Genes.StopLossMultiplier, now.Sub(t.heldSince))

	m.Untrack(t.trade.ID)
	m.bus.Publish(events.KindTradeClosed, events.TradeClosed{Trade: result.Trade})
}
