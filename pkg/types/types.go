// Package types provides the shared domain model for the trading
// simulator: token snapshots, trades, positions, the treasury ledger and
// evolution cycle records. Gene/genome/performance types live in
// genome.go alongside these.
package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// ExitReason is the reason a trade was closed.
type ExitReason string

const (
	ExitTakeProfit ExitReason = "take_profit"
	ExitStopLoss   ExitReason = "stop_loss"
	ExitTimeExit   ExitReason = "time_exit"
	ExitVolumeDrop ExitReason = "volume_drop"
	ExitManual     ExitReason = "manual"
)

// SellUrgency is the strategic-exit urgency tier returned by the evaluator.
type SellUrgency string

const (
	UrgencyImmediate SellUrgency = "immediate"
	UrgencySoon      SellUrgency = "soon"
	UrgencyConsider  SellUrgency = "consider"
	UrgencyHold      SellUrgency = "hold"
)

// SocialLinks are the best-effort social handles reported by the feed.
type SocialLinks struct {
	Twitter  string `json:"twitter,omitempty"`
	Telegram string `json:"telegram,omitempty"`
	Website  string `json:"website,omitempty"`
}

// TokenSnapshot is an immutable point-in-time view of a token. The
// position monitor keeps a one-deep "previous" snapshot per open
// position so sell evaluation can compute deltas; two positions on the
// same token each keep their own.
type TokenSnapshot struct {
	Address         string          `json:"address"`
	Name            string          `json:"name"`
	Symbol          string          `json:"symbol"`
	MarketCap       float64         `json:"marketCap"`
	Volume24h       float64         `json:"volume24h"`
	Liquidity       float64         `json:"liquidity"`
	Holders         int             `json:"holders"`
	CreatedAt       time.Time       `json:"createdAt"`
	Creator         string          `json:"creator"`
	SocialLinks     SocialLinks     `json:"socialLinks"`
	PriceUSD        float64         `json:"priceUSD"`
	PriceChange24h  float64         `json:"priceChange24h"`
	FetchedAt       time.Time       `json:"fetchedAt"`
}

// Trade is a single strategy's round trip on a token. State machine: open
// once, closed once.
type Trade struct {
	ID          string          `json:"id"`
	StrategyID  string          `json:"strategyId"`
	TokenAddr   string          `json:"tokenAddress"`
	TokenName   string          `json:"tokenName"`
	TokenSymbol string          `json:"tokenSymbol"`
	EntryPrice  float64         `json:"entryPrice"`
	AmountSol   decimal.Decimal `json:"amountSol"`

	TakeProfitPrice   float64   `json:"takeProfitPrice"`
	StopLossPrice     float64   `json:"stopLossPrice"`
	TimeExitTimestamp time.Time `json:"timeExitTimestamp"`

	IsPaperTrade bool       `json:"isPaperTrade"`
	OpenedAt     time.Time  `json:"openedAt"`
	ClosedAt     *time.Time `json:"closedAt,omitempty"`

	ExitPrice  *float64         `json:"exitPrice,omitempty"`
	PnLSol     *decimal.Decimal `json:"pnlSol,omitempty"`
	PnLPercent *float64         `json:"pnlPercent,omitempty"`
	ExitReason *ExitReason      `json:"exitReason,omitempty"`
}

// IsOpen reports whether the trade has not yet been closed.
func (t *Trade) IsOpen() bool { return t.ClosedAt == nil }

// NewTrade derives a Trade from a fill, computing the mechanical exit
// levels from the genome that produced the buy.
func NewTrade(id, strategyID string, token *TokenSnapshot, entryPrice float64, amountSol decimal.Decimal, takeProfitMultiplier, stopLossMultiplier, timeBasedExitMinutes float64, isPaper bool, openedAt time.Time) *Trade {
	return &Trade{
		ID:                id,
		StrategyID:        strategyID,
		TokenAddr:         token.Address,
		TokenName:         token.Name,
		TokenSymbol:       token.Symbol,
		EntryPrice:        entryPrice,
		AmountSol:         amountSol,
		TakeProfitPrice:   entryPrice * takeProfitMultiplier,
		StopLossPrice:     entryPrice * stopLossMultiplier,
		TimeExitTimestamp: openedAt.Add(time.Duration(timeBasedExitMinutes) * time.Minute),
		IsPaperTrade:      isPaper,
		OpenedAt:          openedAt,
	}
}

// Position is the live view of an open trade: exactly one per open trade,
// destroyed on close.
type Position struct {
	TradeID               string    `json:"tradeId"`
	StrategyID            string    `json:"strategyId"`
	TokenAddr             string    `json:"tokenAddress"`
	CurrentPrice          float64   `json:"currentPrice"`
	UnrealizedPnLSol      float64   `json:"unrealizedPnLSol"`
	UnrealizedPnLPercent  float64   `json:"unrealizedPnLPercent"`
	TokenAmount           float64   `json:"tokenAmount"`
	OpenedAt              time.Time `json:"openedAt"`
	LastUpdated           time.Time `json:"lastUpdated"`
}

// Recompute refreshes the live fields for a new current price.
func (p *Position) Recompute(entryPrice, currentPrice float64, amountSol decimal.Decimal, now time.Time) {
	p.CurrentPrice = currentPrice
	pct := 0.0
	if entryPrice != 0 {
		pct = (currentPrice - entryPrice) / entryPrice
	}
	p.UnrealizedPnLPercent = pct
	amt, _ := amountSol.Float64()
	p.UnrealizedPnLSol = amt * pct
	p.LastUpdated = now
}

// StrategyAllocation is one strategy's slice of the treasury.
type StrategyAllocation struct {
	StrategyID   string          `json:"strategyId"`
	AllocatedSol decimal.Decimal `json:"allocatedSol"`
	LockedSol    decimal.Decimal `json:"lockedSol"`
	AvailableSol decimal.Decimal `json:"availableSol"`
	RealizedPnL  decimal.Decimal `json:"realizedPnL"`
}

// Treasury is the single process-wide capital accumulator.
type Treasury struct {
	TotalSol                 decimal.Decimal                `json:"totalSol"`
	AvailableToTrade         decimal.Decimal                `json:"availableToTrade"`
	LockedInPositions        decimal.Decimal                `json:"lockedInPositions"`
	TotalPnL                 decimal.Decimal                `json:"totalPnL"`
	ReservePercent           float64                         `json:"reservePercent"`
	MaxAllocationPerStrategy decimal.Decimal                `json:"maxAllocationPerStrategy"`
	Allocations              map[string]*StrategyAllocation `json:"allocations"`
}

// EvolutionCycle is the immutable record of a single generation
// transition.
type EvolutionCycle struct {
	Generation      int       `json:"generation"`
	Timestamp       time.Time `json:"timestamp"`
	Survivors       []string  `json:"survivors"`
	Dead            []string  `json:"dead"`
	NewlyBorn       []string  `json:"newlyBorn"`
	AvgFitness      float64   `json:"avgFitness"`
	BestFitness     float64   `json:"bestFitness"`
	TotalPnLSol     float64   `json:"totalPnLSol"`
	BestStrategyID  string    `json:"bestStrategyId"`
}
