// Package evaluator implements the token evaluator's buy/sell decision
// functions: pure reductions from a genome plus a token snapshot (and,
// for sells, a position and optional previous snapshot) to a score and a
// categorical action with reasons.
package evaluator

import (
	"strings"
	"time"

	"github.com/atlas-desktop/trading-backend/internal/catalog"
	"github.com/atlas-desktop/trading-backend/pkg/types"
)

// BuyDecision is the result of shouldBuy.
type BuyDecision struct {
	ShouldTrade     bool
	Score           int
	MatchedPatterns []string
	MatchedKeywords []string
	SocialScore     int
	Reasons         []string
}

// ShouldBuy reduces a genome + token snapshot to a buy decision. Steps
// run in the order documented in the spec; failing a gate short-circuits
// with the score accumulated so far.
func ShouldBuy(g *types.StrategyGenome, token *types.TokenSnapshot) BuyDecision {
	genes := g.Genes

	if token.MarketCap < genes.EntryMcapMin || token.MarketCap > genes.EntryMcapMax {
		return BuyDecision{ShouldTrade: false, Score: 0, Reasons: []string{"Market cap outside range"}}
	}
	score := 20

	if token.Volume24h < genes.EntryVolumeMin {
		return BuyDecision{ShouldTrade: false, Score: score, Reasons: []string{"Volume below minimum"}}
	}
	score += 15

	var matchedPatterns []string
	for _, p := range genes.BuyPatterns {
		if catalog.MatchBuyPattern(p, token) {
			matchedPatterns = append(matchedPatterns, p)
			score += 15
		}
	}

	var matchedKeywords []string
	haystack := strings.ToLower(token.Name) + " " + strings.ToLower(token.Symbol)
	for _, kw := range genes.TokenNameKeywords {
		if kw != "" && strings.Contains(haystack, strings.ToLower(kw)) {
			matchedKeywords = append(matchedKeywords, kw)
			score += 10
		}
	}

	socialScore, socialPassed := evaluateSocial(genes.SocialSignals, token)
	if socialPassed {
		score += socialScore
	}

	reasons := []string{}
	shouldTrade := score >= 50 && (len(matchedPatterns) > 0 || len(matchedKeywords) > 0)
	if !shouldTrade {
		reasons = append(reasons, "Score or pattern/keyword threshold not met")
	}

	return BuyDecision{
		ShouldTrade:     shouldTrade,
		Score:           score,
		MatchedPatterns: matchedPatterns,
		MatchedKeywords: matchedKeywords,
		SocialScore:     socialScore,
		Reasons:         reasons,
	}
}

// evaluateSocial counts the non-zero-threshold sub-signals that pass,
// each worth +10. The block passes iff there are no extant checks, or at
// least half of them passed. Holders compares directly against the
// token's holder count; Twitter/Telegram thresholds gate on the
// corresponding social link being present, since the feed's token
// snapshot carries handles, not live follower counts.
func evaluateSocial(s types.SocialSignals, token *types.TokenSnapshot) (score int, passed bool) {
	checks := 0
	hits := 0

	if s.HoldersMin > 0 {
		checks++
		if token.Holders >= s.HoldersMin {
			hits++
			score += 10
		}
	}
	if s.TwitterFollowers > 0 {
		checks++
		if token.SocialLinks.Twitter != "" {
			hits++
			score += 10
		}
	}
	if s.TelegramMembers > 0 {
		checks++
		if token.SocialLinks.Telegram != "" {
			hits++
			score += 10
		}
	}

	if checks == 0 {
		return score, true
	}
	return score, hits*2 >= checks
}

// SellDecision is the result of shouldSell.
type SellDecision struct {
	ShouldSell            bool
	Urgency                types.SellUrgency
	Score                  int
	MatchedPatterns        []string
	Reasons                []string
	SuggestedExitPercent   float64
}

// ShouldSell computes an additive score from independent strategic-exit
// signals plus the sellPatterns catalog, and maps the total to an
// urgency tier.
func ShouldSell(g *types.StrategyGenome, position *types.Position, current *types.TokenSnapshot, previous *types.TokenSnapshot, entryPrice float64, heldSince time.Time, now time.Time) SellDecision {
	genes := g.Genes
	sig := genes.SellSignals

	pnlPct := position.UnrealizedPnLPercent
	var deltaPrice, deltaVol, deltaLiquidity float64
	var deltaHolders int
	hasPrevious := previous != nil
	if hasPrevious {
		if previous.PriceUSD != 0 {
			deltaPrice = (current.PriceUSD - previous.PriceUSD) / previous.PriceUSD
		}
		if previous.Volume24h != 0 {
			deltaVol = (current.Volume24h - previous.Volume24h) / previous.Volume24h
		}
		if previous.Liquidity != 0 {
			deltaLiquidity = (current.Liquidity - previous.Liquidity) / previous.Liquidity
		}
		deltaHolders = current.Holders - previous.Holders
	}

	score := 0
	var matched []string
	var reasons []string

	if sig.MomentumReversal && pnlPct > 0.05 && deltaPrice < -0.05 {
		score += 30
		matched = append(matched, "momentum_death")
		reasons = append(reasons, "momentum reversal")
	}
	if sig.VolumeDry && deltaVol < -0.3 {
		score += 25
		matched = append(matched, "volume_collapse")
		reasons = append(reasons, "volume drying up")
	}
	if sig.HoldersDumping && deltaHolders < -5 {
		score += 20
		matched = append(matched, "holder_exodus")
		reasons = append(reasons, "holders leaving")
	}
	if pnlPct < -0.10 {
		score += 35
		matched = append(matched, "price_dump")
		reasons = append(reasons, "hard drawdown")
	}
	if sig.McapCeiling > 0 && current.MarketCap >= sig.McapCeiling {
		score += 35
		matched = append(matched, "mcap_ceiling")
		reasons = append(reasons, "market cap ceiling reached")
	}
	if sig.ProfitSecuring > 0 && pnlPct >= sig.ProfitSecuring {
		score += 25
		matched = append(matched, "profit_secure")
		reasons = append(reasons, "profit target reached")
	}

	peak := entryPrice
	if current.PriceUSD > peak {
		peak = current.PriceUSD
	}
	if hasPrevious && previous.PriceUSD > peak {
		peak = previous.PriceUSD
	}
	if peak > 0 && (peak-current.PriceUSD)/peak >= sig.TrailingStop {
		score += 40
		matched = append(matched, "trailing_stop_hit")
		reasons = append(reasons, "trailing stop hit")
	}

	heldMinutes := now.Sub(heldSince).Minutes()
	for _, p := range genes.SellPatterns {
		delta := catalog.SellDelta{
			EntryPrice:     entryPrice,
			HeldMinutes:    heldMinutes,
			UnrealizedPnL:  pnlPct,
			DeltaVolume:    deltaVol,
			DeltaHolders:   deltaHolders,
			DeltaLiquidity: deltaLiquidity,
			HasPrevious:    hasPrevious,
		}
		if catalog.MatchSellPattern(p, current, delta) {
			score += 15
			matched = append(matched, p)
			reasons = append(reasons, "pattern "+p+" matched")
		}
	}

	if heldMinutes > 0.8*genes.TimeBasedExit && pnlPct < 0.05 {
		score += 15
		matched = append(matched, "time_decay")
		reasons = append(reasons, "time decay")
	}

	urgency := types.UrgencyHold
	exitPercent := 0.0
	switch {
	case score >= 40:
		urgency = types.UrgencyImmediate
		exitPercent = 1.0
	case score >= 25:
		urgency = types.UrgencySoon
		exitPercent = 0.75
	case score >= 15:
		urgency = types.UrgencyConsider
		exitPercent = 0.5
	}

	return SellDecision{
		ShouldSell:           score >= 25,
		Urgency:              urgency,
		Score:                score,
		MatchedPatterns:      matched,
		Reasons:              reasons,
		SuggestedExitPercent: exitPercent,
	}
}

// MapExitReason maps a sell decision's matched patterns to the Trade
// exit reason, per the position monitor's §4.3 step 4 table.
func MapExitReason(matchedPatterns []string) types.ExitReason {
	for _, p := range matchedPatterns {
		switch p {
		case "trailing_stop_hit":
			return types.ExitStopLoss
		case "profit_secure", "mcap_ceiling":
			return types.ExitTakeProfit
		case "volume_collapse", "liquidity_drain":
			return types.ExitVolumeDrop
		case "time_decay":
			return types.ExitTimeExit
		}
	}
	return types.ExitManual
}
