package execution

import (
	"context"
	"time"

	"github.com/atlas-desktop/trading-backend/pkg/types"
	"github.com/atlas-desktop/trading-backend/pkg/utils"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// VenueClient is the minimal RPC boundary a real adapter submits orders
// through. Real order routing against any live venue is a spec
// Non-goal; this interface exists so a venue integration can be wired in
// without touching the engine, matching the teacher's
// internal/blockchain.SolanaClient RPC-call shape.
type VenueClient interface {
	SubmitBuy(ctx context.Context, tokenAddress string, amountSol decimal.Decimal) (fillPrice float64, txID string, err error)
	SubmitSell(ctx context.Context, tokenAddress string, tokenAmount float64) (fillPrice float64, txID string, err error)
}

// RealAdapter submits to a venue and maps its transaction id back onto a
// Trade. Shares the Buy/Sell contract with PaperAdapter byte for byte;
// the engine cannot tell them apart.
type RealAdapter struct {
	logger *zap.Logger
	venue  VenueClient
}

// NewRealAdapter constructs a real adapter over an injected venue
// client.
func NewRealAdapter(logger *zap.Logger, venue VenueClient) *RealAdapter {
	return &RealAdapter{logger: logger, venue: venue}
}

var _ Adapter = (*RealAdapter)(nil)

func (r *RealAdapter) Buy(ctx context.Context, strategyID string, token *types.TokenSnapshot, amountSol decimal.Decimal, genes types.Genes, now time.Time) BuyResult {
	fillPrice, txID, err := r.venue.SubmitBuy(ctx, token.Address, amountSol)
	if err != nil {
		return BuyResult{OK: false, Err: err}
	}

	trade := types.NewTrade(
		utils.GenerateTradeID(), strategyID, token, fillPrice, amountSol,
		genes.TakeProfitMultiplier, genes.StopLossMultiplier, genes.TimeBasedExit,
		false, now,
	)
	r.logger.Info("real buy filled", zap.String("txId", txID), zap.Float64("fillPrice", fillPrice))
	return BuyResult{OK: true, Trade: trade}
}

func (r *RealAdapter) Sell(ctx context.Context, trade *types.Trade, currentPrice float64, reason types.ExitReason, now time.Time) SellResult {
	tokenAmount, _ := trade.AmountSol.Float64()
	if trade.EntryPrice != 0 {
		tokenAmount /= trade.EntryPrice
	}

	fillPrice, txID, err := r.venue.SubmitSell(ctx, trade.TokenAddr, tokenAmount)
	if err != nil {
		return SellResult{OK: false, Err: err}
	}

	pnlPercent := 0.0
	if trade.EntryPrice != 0 {
		pnlPercent = (fillPrice - trade.EntryPrice) / trade.EntryPrice
	}
	amt, _ := trade.AmountSol.Float64()
	pnlSol := decimal.NewFromFloat(amt * pnlPercent)

	closed := *trade
	closed.ClosedAt = &now
	closed.ExitPrice = &fillPrice
	closed.PnLSol = &pnlSol
	closed.PnLPercent = &pnlPercent
	closed.ExitReason = &reason

	r.logger.Info("real sell filled", zap.String("txId", txID), zap.Float64("fillPrice", fillPrice))
	return SellResult{OK: true, Trade: &closed}
}
