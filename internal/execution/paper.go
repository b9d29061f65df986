package execution

import (
	"context"
	"time"

	"github.com/atlas-desktop/trading-backend/pkg/types"
	"github.com/atlas-desktop/trading-backend/pkg/utils"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PaperAdapter synthesizes fills without contacting any venue. Every
// other component behaves identically to real mode (spec Glossary,
// "Paper mode").
type PaperAdapter struct {
	logger   *zap.Logger
	slippage float64
}

// NewPaperAdapter constructs a paper adapter with a fixed symmetric
// slippage fraction (e.g. 0.02 for 2%).
func NewPaperAdapter(logger *zap.Logger, slippage float64) *PaperAdapter {
	return &PaperAdapter{logger: logger, slippage: slippage}
}

var _ Adapter = (*PaperAdapter)(nil)

// Buy applies effectiveBuyPrice = priceUSD*(1+slippage) and synthesizes
// a Trade with derived mechanical exit levels.
func (p *PaperAdapter) Buy(ctx context.Context, strategyID string, token *types.TokenSnapshot, amountSol decimal.Decimal, genes types.Genes, now time.Time) BuyResult {
	effectiveBuyPrice := token.PriceUSD * (1 + p.slippage)

	trade := types.NewTrade(
		utils.GenerateTradeID(), strategyID, token, effectiveBuyPrice, amountSol,
		genes.TakeProfitMultiplier, genes.StopLossMultiplier, genes.TimeBasedExit,
		true, now,
	)

	p.logger.Info("paper buy filled",
		zap.String("strategyId", strategyID),
		zap.String("token", token.Symbol),
		zap.Float64("effectiveBuyPrice", effectiveBuyPrice),
		zap.String("amountSol", amountSol.String()),
	)
	return BuyResult{OK: true, Trade: trade}
}

// Sell applies effectiveSellPrice = currentPrice*(1-slippage) and
// computes pnlSol/pnlPercent relative to the trade's entry price.
func (p *PaperAdapter) Sell(ctx context.Context, trade *types.Trade, currentPrice float64, reason types.ExitReason, now time.Time) SellResult {
	effectiveSellPrice := currentPrice * (1 - p.slippage)

	pnlPercent := 0.0
	if trade.EntryPrice != 0 {
		pnlPercent = (effectiveSellPrice - trade.EntryPrice) / trade.EntryPrice
	}
	amt, _ := trade.AmountSol.Float64()
	pnlSol := decimal.NewFromFloat(amt * pnlPercent)

	closed := *trade
	closed.ClosedAt = &now
	closed.ExitPrice = &effectiveSellPrice
	closed.PnLSol = &pnlSol
	closed.PnLPercent = &pnlPercent
	closed.ExitReason = &reason

	p.logger.Info("paper sell filled",
		zap.String("tradeId", trade.ID),
		zap.Float64("effectiveSellPrice", effectiveSellPrice),
		zap.String("pnlSol", pnlSol.String()),
		zap.String("reason", string(reason)),
	)
	return SellResult{OK: true, Trade: &closed}
}
