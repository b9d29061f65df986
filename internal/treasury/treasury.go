// Package treasury implements the shared capital accountant: per
// strategy allocation, lock/unlock, and PnL application on close.
//
// Per §5 of the spec, a coarser single-writer lock is an acceptable
// implementation of "operations on a given strategy's allocation are
// serialized; operations on distinct strategies may interleave" — this
// mirrors the single sync.RWMutex the teacher's backtester.Portfolio
// uses to guard its position map.
package treasury

import (
	"errors"
	"sync"

	"github.com/atlas-desktop/trading-backend/pkg/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ErrUnknownStrategy is returned when an operation targets a strategy id
// that has no allocation.
var ErrUnknownStrategy = errors.New("treasury: unknown strategy")

// ErrInsufficientFunds is returned when a lock would overdraw a
// strategy's allocation.
var ErrInsufficientFunds = errors.New("treasury: insufficient funds")

// Manager is the process-wide treasury. Zero value is not usable; use
// New.
type Manager struct {
	logger *zap.Logger
	mu     sync.Mutex
	state  types.Treasury
}

// New constructs a Manager with the given starting capital.
func New(logger *zap.Logger, totalSol decimal.Decimal, reservePercent float64, maxAllocationPerStrategy decimal.Decimal) *Manager {
	return &Manager{
		logger: logger,
		state: types.Treasury{
			TotalSol:                 totalSol,
			AvailableToTrade:         totalSol,
			LockedInPositions:        decimal.Zero,
			TotalPnL:                 decimal.Zero,
			ReservePercent:           reservePercent,
			MaxAllocationPerStrategy: maxAllocationPerStrategy,
			Allocations:              make(map[string]*types.StrategyAllocation),
		},
	}
}

// Snapshot returns a copy of the current treasury state for read-only
// consumption (event fan-out, persistence).
func (m *Manager) Snapshot() types.Treasury {
	m.mu.Lock()
	defer m.mu.Unlock()

	allocs := make(map[string]*types.StrategyAllocation, len(m.state.Allocations))
	for id, a := range m.state.Allocations {
		cp := *a
		allocs[id] = &cp
	}
	snap := m.state
	snap.Allocations = allocs
	return snap
}

// AllocateToStrategies recomputes each active strategy's allocation from
// the current total, preserving prior lockedSol and realizedPnL. Dead or
// removed strategies with lockedSol=0 drop out.
func (m *Manager) AllocateToStrategies(activeStrategyIDs []string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	reserve := m.state.TotalSol.Mul(decimal.NewFromFloat(m.state.ReservePercent))
	tradable := m.state.TotalSol.Sub(reserve)

	n := len(activeStrategyIDs)
	if n == 0 {
		return
	}
	perStrategy := tradable.Div(decimal.NewFromInt(int64(n)))
	if perStrategy.GreaterThan(m.state.MaxAllocationPerStrategy) {
		perStrategy = m.state.MaxAllocationPerStrategy
	}

	active := make(map[string]struct{}, n)
	for _, sid := range activeStrategyIDs {
		active[sid] = struct{}{}
		alloc, ok := m.state.Allocations[sid]
		if !ok {
			alloc = &types.StrategyAllocation{StrategyID: sid}
			m.state.Allocations[sid] = alloc
		}
		alloc.AllocatedSol = perStrategy
		alloc.AvailableSol = alloc.AllocatedSol.Sub(alloc.LockedSol)
	}

	for sid, alloc := range m.state.Allocations {
		if _, ok := active[sid]; ok {
			continue
		}
		if alloc.LockedSol.IsZero() {
			delete(m.state.Allocations, sid)
		}
	}
}

// CanTrade reports whether the strategy's available allocation covers
// amt.
func (m *Manager) CanTrade(strategyID string, amt decimal.Decimal) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	alloc, ok := m.state.Allocations[strategyID]
	if !ok {
		return false
	}
	return alloc.AvailableSol.GreaterThanOrEqual(amt)
}

// LockFunds moves amt from available to locked for a strategy. Returns
// ErrInsufficientFunds (no state change) if the invariant
// availableSol >= 0 would be violated, and ErrUnknownStrategy if the
// strategy has no allocation.
func (m *Manager) LockFunds(strategyID string, amt decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	alloc, ok := m.state.Allocations[strategyID]
	if !ok {
		return ErrUnknownStrategy
	}
	if alloc.AvailableSol.LessThan(amt) {
		return ErrInsufficientFunds
	}
	alloc.AvailableSol = alloc.AvailableSol.Sub(amt)
	alloc.LockedSol = alloc.LockedSol.Add(amt)
	m.state.LockedInPositions = m.state.LockedInPositions.Add(amt)
	m.state.AvailableToTrade = m.state.AvailableToTrade.Sub(amt)
	return nil
}

// UnlockFunds reverses a lock, flooring at zero.
func (m *Manager) UnlockFunds(strategyID string, amt decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.unlockLocked(strategyID, amt)
}

func (m *Manager) unlockLocked(strategyID string, amt decimal.Decimal) error {
	alloc, ok := m.state.Allocations[strategyID]
	if !ok {
		return ErrUnknownStrategy
	}
	unlockAmt := utilsMin(alloc.LockedSol, amt)
	alloc.LockedSol = alloc.LockedSol.Sub(unlockAmt)
	alloc.AvailableSol = alloc.AvailableSol.Add(unlockAmt)
	m.state.LockedInPositions = decimalMaxZero(m.state.LockedInPositions.Sub(unlockAmt))
	m.state.AvailableToTrade = m.state.AvailableToTrade.Add(unlockAmt)
	return nil
}

// RecordTradeClose unlocks the trade's locked amount, applies pnlSol to
// the strategy's realized PnL and allocation, and to the treasury's
// totals. trade.PnLSol must be set.
func (m *Manager) RecordTradeClose(trade *types.Trade) error {
	if trade.PnLSol == nil {
		return errors.New("treasury: trade has no pnlSol")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	alloc, ok := m.state.Allocations[trade.StrategyID]
	if !ok {
		return ErrUnknownStrategy
	}

	if err := m.unlockLocked(trade.StrategyID, trade.AmountSol); err != nil {
		return err
	}

	pnl := *trade.PnLSol
	alloc.RealizedPnL = alloc.RealizedPnL.Add(pnl)
	alloc.AllocatedSol = alloc.AllocatedSol.Add(pnl)
	alloc.AvailableSol = alloc.AvailableSol.Add(pnl)

	m.state.TotalSol = m.state.TotalSol.Add(pnl)
	m.state.TotalPnL = m.state.TotalPnL.Add(pnl)
	m.state.AvailableToTrade = m.state.AvailableToTrade.Add(pnl)

	m.logger.Info("trade closed",
		zap.String("strategyId", trade.StrategyID),
		zap.String("tradeId", trade.ID),
		zap.String("pnlSol", pnl.String()),
	)
	return nil
}

func utilsMin(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}

func decimalMaxZero(d decimal.Decimal) decimal.Decimal {
	if d.LessThan(decimal.Zero) {
		return decimal.Zero
	}
	return d
}
