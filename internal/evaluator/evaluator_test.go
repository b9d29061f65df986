package evaluator_test

import (
	"testing"
	"time"

	"github.com/atlas-desktop/trading-backend/internal/evaluator"
	"github.com/atlas-desktop/trading-backend/pkg/types"
)

func baseGenome() *types.StrategyGenome {
	return &types.StrategyGenome{
		ID: "g1",
		Genes: types.Genes{
			EntryMcapMin:   10_000,
			EntryMcapMax:   500_000,
			EntryVolumeMin: 5_000,
			BuyPatterns:    []string{"early_momentum"},
		},
	}
}

func baseToken() *types.TokenSnapshot {
	return &types.TokenSnapshot{
		Address:   "addr1",
		Name:      "MoonDoge",
		Symbol:    "MDOGE",
		MarketCap: 100_000,
		Volume24h: 20_000,
		Holders:   500,
		PriceUSD:  1.0,
	}
}

func TestShouldBuyRejectsOutOfRangeMarketCap(t *testing.T) {
	g := baseGenome()
	token := baseToken()
	token.MarketCap = g.Genes.EntryMcapMax + 1

	d := evaluator.ShouldBuy(g, token)
	if d.ShouldTrade {
		t.Fatalf("ShouldBuy() = %+v, want ShouldTrade=false for out-of-range market cap", d)
	}
	if d.Score != 0 {
		t.Errorf("ShouldBuy() score = %d, want 0 on the first gate failing", d.Score)
	}
}

func TestShouldBuyRejectsLowVolumeAfterMcapGate(t *testing.T) {
	g := baseGenome()
	token := baseToken()
	token.Volume24h = g.Genes.EntryVolumeMin - 1

	d := evaluator.ShouldBuy(g, token)
	if d.ShouldTrade {
		t.Fatalf("ShouldBuy() should reject below-minimum volume")
	}
	if d.Score != 20 {
		t.Errorf("ShouldBuy() score = %d, want 20 (mcap gate passed, volume gate failed)", d.Score)
	}
}

func TestShouldBuyRequiresPatternOrKeywordMatch(t *testing.T) {
	g := baseGenome()
	g.Genes.BuyPatterns = nil
	g.Genes.TokenNameKeywords = nil
	token := baseToken()

	d := evaluator.ShouldBuy(g, token)
	if d.ShouldTrade {
		t.Fatalf("ShouldBuy() should not trade without any matched pattern or keyword, got %+v", d)
	}
}

func TestShouldSellUrgencyTiersByScore(t *testing.T) {
	g := baseGenome()
	g.Genes.SellSignals.ProfitSecuring = 0.2
	g.Genes.SellSignals.TrailingStop = 0.9

	position := &types.Position{UnrealizedPnLPercent: 0.25}
	current := &types.TokenSnapshot{PriceUSD: 1.25, MarketCap: 100_000}
	now := time.Now()

	d := evaluator.ShouldSell(g, position, current, nil, 1.0, now.Add(-time.Hour), now)
	if !d.ShouldSell {
		t.Fatalf("ShouldSell() = %+v, want ShouldSell=true once profit-securing fires", d)
	}
	if d.Urgency != types.UrgencySoon {
		t.Errorf("ShouldSell() urgency = %s, want soon for a 25-point score", d.Urgency)
	}
}

func TestShouldSellHoldsWhenNoSignalFires(t *testing.T) {
	g := baseGenome()
	g.Genes.SellSignals.TrailingStop = 0.9
	g.Genes.TimeBasedExit = 120
	position := &types.Position{UnrealizedPnLPercent: 0.01}
	current := &types.TokenSnapshot{PriceUSD: 1.01, MarketCap: 100_000}
	now := time.Now()

	d := evaluator.ShouldSell(g, position, current, nil, 1.0, now.Add(-time.Minute), now)
	if d.ShouldSell {
		t.Fatalf("ShouldSell() = %+v, want hold when nothing fires", d)
	}
	if d.Urgency != types.UrgencyHold {
		t.Errorf("ShouldSell() urgency = %s, want hold", d.Urgency)
	}
}

func TestMapExitReasonPrefersEarliestMatchInTable(t *testing.T) {
	got := evaluator.MapExitReason([]string{"trailing_stop_hit", "volume_collapse"})
	if got != types.ExitStopLoss {
		t.Fatalf("MapExitReason() = %s, want stop_loss for the first-matched pattern", got)
	}
}

func TestMapExitReasonDefaultsToManual(t *testing.T) {
	got := evaluator.MapExitReason([]string{"unmapped_pattern"})
	if got != types.ExitManual {
		t.Fatalf("MapExitReason() = %s, want manual for an unmapped pattern", got)
	}
}
