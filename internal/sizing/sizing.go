// Package sizing scales a genome's nominal investmentPercent by a
// fractional-Kelly estimate of its edge. A strategy with enough history
// and a positive edge invests the fractional-Kelly share, capped at its
// nominal investmentPercent; a strategy with too little history or no
// positive edge invests its nominal investmentPercent unchanged.
// Adapted from the teacher's internal/sizing PositionSizer, which
// computed the same Kelly fraction against a portfolio of symbols; here
// it runs per-genome against the genetic population's own evolved
// reward/risk multipliers instead of a portfolio's correlation/regime
// inputs, since the trading engine has no notion of either.
package sizing

import (
	"math"

	"github.com/atlas-desktop/trading-backend/pkg/types"
)

// Config bounds the Kelly-derived fraction actually used.
type Config struct {
	// KellyFraction scales the full Kelly estimate down; 0.25 ("quarter
	// Kelly") is the teacher's own documented default.
	KellyFraction float64
	// MinPositionPct is the floor applied once a genome has enough trade
	// history to produce a Kelly estimate at all.
	MinPositionPct float64
}

// DefaultConfig returns the teacher's quarter-Kelly default.
func DefaultConfig() Config {
	return Config{KellyFraction: 0.25, MinPositionPct: 0.005}
}

// Sizer turns a genome's performance record and evolved genes into an
// investment fraction.
type Sizer struct {
	cfg Config
}

// New constructs a Sizer.
func New(cfg Config) *Sizer {
	if cfg.KellyFraction <= 0 {
		cfg.KellyFraction = DefaultConfig().KellyFraction
	}
	if cfg.MinPositionPct <= 0 {
		cfg.MinPositionPct = DefaultConfig().MinPositionPct
	}
	return &Sizer{cfg: cfg}
}

// Fraction returns the share of available allocation to invest, capped
// above by the genome's own evolved investmentPercent (its nominal,
// untuned sizing gene) and below by the configured minimum once a Kelly
// estimate exists. With fewer than 5 trades of history, or a
// non-positive Kelly edge, the genome's nominal investmentPercent is
// returned unchanged: there isn't yet enough signal to size up or down
// from it.
func (s *Sizer) Fraction(perf types.Performance, genes types.Genes) float64 {
	nominal := genes.InvestmentPercent
	if nominal <= 0 {
		return 0
	}
	if perf.TradesExecuted < 5 {
		return nominal
	}

	kelly := s.kelly(perf.WinRate, genes.TakeProfitMultiplier, genes.StopLossMultiplier)
	if kelly <= 0 {
		return nominal
	}

	fraction := kelly * s.cfg.KellyFraction
	if fraction > nominal {
		fraction = nominal
	}
	if fraction < s.cfg.MinPositionPct {
		fraction = s.cfg.MinPositionPct
	}
	return fraction
}

// kelly implements f* = p - q/b, where p is the win rate, q = 1-p, and b
// is the reward/risk ratio implied by the genome's own evolved
// take-profit and stop-loss multipliers (the "b:1" payoff the genome is
// actually wired to capture or cut at).
func (s *Sizer) kelly(winRate, takeProfitMultiplier, stopLossMultiplier float64) float64 {
	if winRate <= 0 || winRate >= 1 {
		return 0
	}
	reward := takeProfitMultiplier - 1
	risk := 1 - stopLossMultiplier
	if risk <= 0 || reward <= 0 {
		return 0
	}
	b := reward / risk

	p := winRate
	q := 1 - p
	kelly := p - q/b
	return math.Max(0, math.Min(kelly, 1))
}
