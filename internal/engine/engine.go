// Package engine implements the trading engine: the coordinator that
// subscribes to the feed, ranks signals across active strategies,
// enforces concurrency caps, and opens/closes positions through the
// execution adapter and position monitor. Grounded on the teacher's
// internal/autonomous.TradingAgent lifecycle and loop shape
// (isRunning guard, stopChan, ticker-driven main loop plus a second
// background loop), generalized from a single-strategy agent to many
// concurrently active genomes.
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/atlas-desktop/trading-backend/internal/evaluator"
	"github.com/atlas-desktop/trading-backend/internal/events"
	"github.com/atlas-desktop/trading-backend/internal/execution"
	"github.com/atlas-desktop/trading-backend/internal/feed"
	"github.com/atlas-desktop/trading-backend/internal/monitor"
	"github.com/atlas-desktop/trading-backend/internal/sizing"
	"github.com/atlas-desktop/trading-backend/internal/treasury"
	"github.com/atlas-desktop/trading-backend/pkg/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Config controls concurrency caps and polling cadence.
type Config struct {
	MaxConcurrentTrades int
	FullScanInterval    time.Duration
}

// DefaultConfig returns the documented caps and scan cadence.
func DefaultConfig() Config {
	return Config{MaxConcurrentTrades: 20, FullScanInterval: 60 * time.Second}
}

// GenomeSource supplies the currently active genomes the engine
// evaluates every token against. The genetic engine and scheduler own
// mutation of this population; the trading engine only reads it.
type GenomeSource interface {
	Active() []*types.StrategyGenome
}

// Engine is the running coordinator. Zero value is not usable; use
// New.
type Engine struct {
	logger  *zap.Logger
	cfg     Config
	genomes GenomeSource
	fd      feed.Feed
	adapter execution.Adapter
	trsy    *treasury.Manager
	mon     *monitor.Monitor
	bus     *events.Bus
	sizer   *sizing.Sizer

	mu          sync.Mutex
	running     bool
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	openByStrat map[string]int
	openTotal   int

	closedSub *events.Subscription
}

// New constructs an Engine.
func New(logger *zap.Logger, cfg Config, genomes GenomeSource, fd feed.Feed, adapter execution.Adapter, trsy *treasury.Manager, mon *monitor.Monitor, bus *events.Bus) *Engine {
	return &Engine{
		logger:      logger,
		cfg:         cfg,
		genomes:     genomes,
		fd:          fd,
		adapter:     adapter,
		trsy:        trsy,
		mon:         mon,
		bus:         bus,
		sizer:       sizing.New(sizing.DefaultConfig()),
		openByStrat: make(map[string]int),
	}
}

// Start transitions stopped -> running: it subscribes to the feed,
// starts the position monitor and begins the periodic full-scan loop.
// Calling Start while already running is a no-op.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return nil
	}
	e.running = true
	ctx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.mu.Unlock()

	if err := e.fd.Start(ctx); err != nil {
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
		return err
	}
	e.mon.Start(ctx)

	discoveries := e.fd.Subscribe(ctx)
	e.closedSub = e.bus.Subscribe(256, events.KindTradeClosed)
	e.wg.Add(3)
	go e.discoveryLoop(ctx, discoveries)
	go e.scanLoop(ctx)
	go e.releaseLoop(e.closedSub)

	e.bus.Publish(events.KindEngineStarted, events.EngineStarted{Mode: "running"})
	e.logger.Info("trading engine started")
	return nil
}

// Stop transitions running -> stopped: it cancels the discovery and
// scan loops, ends the release loop by unsubscribing it, waits for all
// three, and stops the position monitor and feed underneath it.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	cancel := e.cancel
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if e.closedSub != nil {
		e.bus.Unsubscribe(e.closedSub)
	}
	e.wg.Wait()
	e.mon.Stop()
	e.fd.Stop()

	e.bus.Publish(events.KindEngineStopped, events.EngineStopped{Reason: "stopped"})
	e.logger.Info("trading engine stopped")
}

// IsRunning reports the engine's lifecycle state.
func (e *Engine) IsRunning() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// discoveryLoop evaluates every newly discovered token against the
// active population as it arrives.
func (e *Engine) discoveryLoop(ctx context.Context, discoveries <-chan *types.TokenSnapshot) {
	defer e.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case token, ok := <-discoveries:
			if !ok {
				return
			}
			e.evaluateToken(ctx, token)
		}
	}
}

// scanLoop periodically re-evaluates every token the feed currently
// knows about, since a token's fundamentals can cross a strategy's
// entry gate well after its discovery tick.
func (e *Engine) scanLoop(ctx context.Context) {
	defer e.wg.Done()
	interval := e.cfg.FullScanInterval
	if interval <= 0 {
		interval = DefaultConfig().FullScanInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.fullScan(ctx)
		}
	}
}

// lister is satisfied by feeds that can enumerate their currently known
// tokens; the full scan uses it when available and is a no-op
// otherwise, since a discovery-only feed has nothing further to
// re-evaluate between discoveries.
type lister interface {
	List() []*types.TokenSnapshot
}

// fullScan re-evaluates every token the feed currently knows about,
// since a token's fundamentals can cross a strategy's entry gate well
// after its discovery tick.
func (e *Engine) fullScan(ctx context.Context) {
	l, ok := e.fd.(lister)
	if !ok {
		return
	}
	for _, token := range l.List() {
		e.evaluateToken(ctx, token)
	}
}

// evaluateToken runs shouldBuy across every active genome that is not
// already at its own per-strategy concurrency cap, emits signal:generated
// for every qualifying match, then opens a trade for at most the single
// highest-scoring one. Ties keep the first-seen genome, since genomes are
// iterated in the source's stable order. Caps are rechecked with fresh
// counts immediately before the trade is opened, so a signal that wins
// the ranking can still be dropped without a trade if a concurrent
// evaluation has filled its slot in the meantime.
func (e *Engine) evaluateToken(ctx context.Context, token *types.TokenSnapshot) {
	if e.atGlobalCap() {
		return
	}

	active := e.genomes.Active()

	var best *types.StrategyGenome
	var bestDecision evaluator.BuyDecision
	for _, g := range active {
		if g.IsDead() || e.atStrategyCap(g) {
			continue
		}
		decision := evaluator.ShouldBuy(g, token)
		if !decision.ShouldTrade {
			continue
		}
		e.bus.Publish(events.KindSignalGenerated, events.SignalGenerated{
			StrategyID: g.ID, Token: token, Score: decision.Score, Reasons: decision.Reasons,
		})
		if best == nil || decision.Score > bestDecision.Score {
			best = g
			bestDecision = decision
		}
	}
	if best == nil {
		return
	}

	if !e.reserveSlot(best) {
		return
	}

	amount := e.investmentAmount(best)
	if amount.IsZero() || !e.trsy.CanTrade(best.ID, amount) {
		e.releaseSlot(best)
		return
	}
	if err := e.trsy.LockFunds(best.ID, amount); err != nil {
		e.releaseSlot(best)
		return
	}

	result := e.adapter.Buy(ctx, best.ID, token, amount, best.Genes, time.Now())
	if !result.OK {
		_ = e.trsy.UnlockFunds(best.ID, amount)
		e.releaseSlot(best)
		e.bus.Publish(events.KindError, events.ErrorOccurred{Component: "engine", Err: result.Err})
		return
	}

	position := &types.Position{
		TradeID:    result.Trade.ID,
		StrategyID: best.ID,
		TokenAddr:  token.Address,
	}
	position.Recompute(result.Trade.EntryPrice, result.Trade.EntryPrice, result.Trade.AmountSol, result.Trade.OpenedAt)
	e.mon.Track(position, best, result.Trade)

	e.bus.Publish(events.KindTradeOpened, events.TradeOpened{Trade: result.Trade})
}

// atGlobalCap reports whether the global concurrency cap is currently
// saturated, so a token event can be dropped before scoring any strategy
// against it.
func (e *Engine) atGlobalCap() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	maxConcurrent := e.cfg.MaxConcurrentTrades
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultConfig().MaxConcurrentTrades
	}
	return e.openTotal >= maxConcurrent
}

// atStrategyCap reports whether a genome already holds as many open
// positions as its evolved maxSimultaneousPositions allows, so it can be
// excluded before shouldBuy runs rather than after it wins the ranking.
func (e *Engine) atStrategyCap(g *types.StrategyGenome) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	perStrat := g.Genes.MaxSimultaneousPositions
	if perStrat <= 0 {
		perStrat = 1
	}
	return e.openByStrat[g.ID] >= perStrat
}

// reserveSlot enforces the global and per-strategy concurrency caps,
// using fresh counts at decision time.
func (e *Engine) reserveSlot(g *types.StrategyGenome) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	maxConcurrent := e.cfg.MaxConcurrentTrades
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultConfig().MaxConcurrentTrades
	}
	if e.openTotal >= maxConcurrent {
		return false
	}
	perStrat := g.Genes.MaxSimultaneousPositions
	if perStrat <= 0 {
		perStrat = 1
	}
	if e.openByStrat[g.ID] >= perStrat {
		return false
	}
	e.openByStrat[g.ID]++
	e.openTotal++
	return true
}

// releaseLoop frees a reserved slot whenever the position monitor
// reports a trade closed, so the concurrency caps reflect currently
// open trades rather than accumulating forever.
func (e *Engine) releaseLoop(sub *events.Subscription) {
	defer e.wg.Done()
	for ev := range sub.Events() {
		closed, ok := ev.Payload.(events.TradeClosed)
		if !ok || closed.Trade == nil {
			continue
		}
		e.releaseSlotByID(closed.Trade.StrategyID)
	}
}

// investmentAmount sizes a buy as a fractional-Kelly share of its
// strategy's current available allocation, scaled from the genome's
// nominal investmentPercent by its own track record and evolved
// reward/risk multipliers.
func (e *Engine) investmentAmount(g *types.StrategyGenome) decimal.Decimal {
	snap := e.trsy.Snapshot()
	alloc, ok := snap.Allocations[g.ID]
	if !ok {
		return decimal.Zero
	}
	fraction := e.sizer.Fraction(g.Performance, g.Genes)
	pct := decimal.NewFromFloat(fraction)
	return alloc.AvailableSol.Mul(pct)
}

func (e *Engine) releaseSlot(g *types.StrategyGenome) {
	e.releaseSlotByID(g.ID)
}

func (e *Engine) releaseSlotByID(strategyID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.openByStrat[strategyID] > 0 {
		e.openByStrat[strategyID]--
	}
	if e.openTotal > 0 {
		e.openTotal--
	}
}
