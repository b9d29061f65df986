package sizing_test

import (
	"testing"

	"github.com/atlas-desktop/trading-backend/internal/sizing"
	"github.com/atlas-desktop/trading-backend/pkg/types"
)

func TestFractionReturnsNominalBelowMinTradeHistory(t *testing.T) {
	s := sizing.New(sizing.DefaultConfig())
	genes := types.Genes{InvestmentPercent: 0.1, TakeProfitMultiplier: 3, StopLossMultiplier: 0.5}
	perf := types.Performance{TradesExecuted: 2, WinRate: 0.9}

	if got := s.Fraction(perf, genes); got != 0.1 {
		t.Errorf("Fraction() = %f, want the nominal 0.1 with only 2 trades of history", got)
	}
}

func TestFractionStaysWithinNominalForAStrongWinRate(t *testing.T) {
	s := sizing.New(sizing.DefaultConfig())
	genes := types.Genes{InvestmentPercent: 0.3, TakeProfitMultiplier: 3, StopLossMultiplier: 0.5}
	perf := types.Performance{TradesExecuted: 20, WinRate: 0.7}

	got := s.Fraction(perf, genes)
	if got <= 0 || got > genes.InvestmentPercent {
		t.Fatalf("Fraction() = %f, want in (0, %f] for a 70%% win rate with a 4:1 reward/risk", got, genes.InvestmentPercent)
	}
}

func TestFractionFallsBackToNominalForALosingRecord(t *testing.T) {
	s := sizing.New(sizing.DefaultConfig())
	genes := types.Genes{InvestmentPercent: 0.1, TakeProfitMultiplier: 1.2, StopLossMultiplier: 0.9}
	perf := types.Performance{TradesExecuted: 20, WinRate: 0.2}

	if got := s.Fraction(perf, genes); got != genes.InvestmentPercent {
		t.Errorf("Fraction() = %f, want the nominal %f when the Kelly edge is non-positive", got, genes.InvestmentPercent)
	}
}

func TestFractionReturnsZeroWhenNominalIsZero(t *testing.T) {
	s := sizing.New(sizing.DefaultConfig())
	genes := types.Genes{InvestmentPercent: 0, TakeProfitMultiplier: 3, StopLossMultiplier: 0.5}
	perf := types.Performance{TradesExecuted: 50, WinRate: 0.8}

	if got := s.Fraction(perf, genes); got != 0 {
		t.Errorf("Fraction() = %f, want 0 when the genome's nominal investmentPercent is 0", got)
	}
}

func TestFractionNeverExceedsNominalCap(t *testing.T) {
	s := sizing.New(sizing.Config{KellyFraction: 1.0, MinPositionPct: 0.001})
	genes := types.Genes{InvestmentPercent: 0.05, TakeProfitMultiplier: 5, StopLossMultiplier: 0.2}
	perf := types.Performance{TradesExecuted: 50, WinRate: 0.9}

	got := s.Fraction(perf, genes)
	if got > genes.InvestmentPercent {
		t.Fatalf("Fraction() = %f, want capped at the nominal investmentPercent %f even at full Kelly", got, genes.InvestmentPercent)
	}
}
