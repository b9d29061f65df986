package execution_test

import (
	"context"
	"testing"
	"time"

	"github.com/atlas-desktop/trading-backend/internal/execution"
	"github.com/atlas-desktop/trading-backend/pkg/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func TestPaperAdapterBuyAppliesSlippageAndDerivesExitLevels(t *testing.T) {
	adapter := execution.NewPaperAdapter(zap.NewNop(), 0.02)
	token := &types.TokenSnapshot{Address: "addr", Symbol: "TOK", PriceUSD: 1.0}
	genes := types.Genes{TakeProfitMultiplier: 3, StopLossMultiplier: 0.5, TimeBasedExit: 60}

	result := adapter.Buy(context.Background(), "strat1", token, decimal.NewFromInt(2), genes, time.Now())
	if !result.OK {
		t.Fatalf("Buy() OK = false, want true")
	}
	if result.Trade.EntryPrice != 1.02 {
		t.Errorf("Buy() entryPrice = %f, want 1.02 (1.0 * 1.02 slippage)", result.Trade.EntryPrice)
	}
	if result.Trade.TakeProfitPrice != 1.02*3 {
		t.Errorf("Buy() takeProfitPrice = %f, want %f", result.Trade.TakeProfitPrice, 1.02*3)
	}
	if result.Trade.StopLossPrice != 1.02*0.5 {
		t.Errorf("Buy() stopLossPrice = %f, want %f", result.Trade.StopLossPrice, 1.02*0.5)
	}
	if !result.Trade.IsOpen() {
		t.Error("Buy() produced a trade that is already closed")
	}
}

func TestPaperAdapterSellAppliesSlippageAndComputesPnL(t *testing.T) {
	adapter := execution.NewPaperAdapter(zap.NewNop(), 0.02)
	trade := &types.Trade{ID: "t1", EntryPrice: 1.0, AmountSol: decimal.NewFromInt(10)}

	result := adapter.Sell(context.Background(), trade, 2.0, types.ExitTakeProfit, time.Now())
	if !result.OK {
		t.Fatalf("Sell() OK = false, want true")
	}
	closed := result.Trade
	if closed.IsOpen() {
		t.Fatal("Sell() produced a trade that is still open")
	}
	wantExitPrice := 2.0 * 0.98
	if *closed.ExitPrice != wantExitPrice {
		t.Errorf("Sell() exitPrice = %f, want %f", *closed.ExitPrice, wantExitPrice)
	}
	wantPct := (wantExitPrice - 1.0) / 1.0
	if *closed.PnLPercent != wantPct {
		t.Errorf("Sell() pnlPercent = %f, want %f", *closed.PnLPercent, wantPct)
	}
	if *closed.ExitReason != types.ExitTakeProfit {
		t.Errorf("Sell() exitReason = %s, want take_profit", *closed.ExitReason)
	}
	// original trade must be left untouched (closed is a copy)
	if trade.ClosedAt != nil {
		t.Error("Sell() mutated the original trade in place, want an independent copy")
	}
}
