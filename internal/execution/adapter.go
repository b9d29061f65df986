// Package execution implements the thin buy/sell boundary between the
// trading engine and a venue. The paper adapter synthesizes a fill with
// symmetric slippage, grounded on the teacher's
// internal/execution/executor.go simulateExecution path; the real
// adapter maps a transaction id back from an injected venue client. The
// monitor/engine code treats both identically.
package execution

import (
	"context"
	"errors"
	"time"

	"github.com/atlas-desktop/trading-backend/pkg/types"
	"github.com/shopspring/decimal"
)

// ErrNoFill is returned when a venue could not produce a fill.
var ErrNoFill = errors.New("execution: no fill")

// BuyResult is the outcome of a buy attempt.
type BuyResult struct {
	OK    bool
	Trade *types.Trade
	Err   error
}

// SellResult is the outcome of a sell attempt.
type SellResult struct {
	OK    bool
	Trade *types.Trade
	Err   error
}

// Adapter is the execution boundary. Paper and real implementations
// share this contract; callers never branch on which one they hold.
type Adapter interface {
	// Buy opens a position for strategy on token, spending amountSol.
	// genes carries the mechanical exit multipliers needed to derive
	// takeProfitPrice/stopLossPrice/timeExitTimestamp on the Trade.
	Buy(ctx context.Context, strategyID string, token *types.TokenSnapshot, amountSol decimal.Decimal, genes types.Genes, now time.Time) BuyResult

	// Sell closes an open trade at the token's current price, recording
	// the given exit reason.
	Sell(ctx context.Context, trade *types.Trade, currentPrice float64, reason types.ExitReason, now time.Time) SellResult
}
