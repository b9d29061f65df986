// Package catalog holds the fixed buy/sell pattern tags the genetic
// engine draws genes from and the token evaluator matches against. Rule
// bodies are grounded directly on the spec's Glossary.
package catalog

import (
	"regexp"
	"strings"

	"github.com/atlas-desktop/trading-backend/pkg/types"
)

// BuyPatterns is the fixed catalog genesis genomes draw buyPatterns from.
// Contains 15 tags, matching the spec's "fixed catalog of >= 15 tags".
var BuyPatterns = []string{
	"cat_meme", "dog_meme", "ai_narrative", "agent_narrative",
	"low_holder_gem", "whale_accumulation", "animal_meme", "food_meme",
	"degen_play", "frog_meme", "space_narrative", "gaming_narrative",
	"defi_narrative", "meme_revival", "new_listing_pump",
}

// SellPatterns is the fixed catalog genesis genomes draw sellPatterns
// from. Contains 10 tags, matching the spec's "fixed catalog of >= 10
// tags".
var SellPatterns = []string{
	"volume_collapse", "whale_dump", "holder_exodus", "hype_fade",
	"liquidity_drain", "time_decay", "momentum_death", "mcap_ceiling",
	"profit_secure", "trailing_stop_hit",
}

var animalMemeRe = regexp.MustCompile(`(?i)(cat|dog|ape|frog|pepe|monkey|bear|bull)`)
var foodMemeRe = regexp.MustCompile(`(?i)(pizza|burger|taco|sushi|ramen|food)`)

// MatchBuyPattern evaluates one buy pattern's rule against a token
// snapshot. Returns whether it matched.
func MatchBuyPattern(pattern string, token *types.TokenSnapshot) bool {
	name := strings.ToLower(token.Name)
	symbol := strings.ToLower(token.Symbol)
	haystack := name + " " + symbol

	switch pattern {
	case "cat_meme":
		return strings.Contains(haystack, "cat")
	case "dog_meme":
		return strings.Contains(haystack, "dog") || strings.Contains(haystack, "inu") || strings.Contains(haystack, "shib")
	case "ai_narrative":
		return strings.Contains(haystack, "ai") || strings.Contains(haystack, "gpt") || strings.Contains(haystack, "neural")
	case "agent_narrative":
		return strings.Contains(haystack, "agent")
	case "low_holder_gem":
		return token.Holders < 100 && token.Volume24h > 5000
	case "whale_accumulation":
		return token.MarketCap > 0 && token.Volume24h > token.MarketCap*0.5
	case "animal_meme":
		return animalMemeRe.MatchString(haystack)
	case "food_meme":
		return foodMemeRe.MatchString(haystack)
	case "degen_play":
		return token.PriceChange24h > 100 && token.Holders > 50
	case "frog_meme":
		return strings.Contains(haystack, "frog") || strings.Contains(haystack, "pepe")
	case "space_narrative":
		return strings.Contains(haystack, "space") || strings.Contains(haystack, "moon") || strings.Contains(haystack, "rocket")
	case "gaming_narrative":
		return strings.Contains(haystack, "game") || strings.Contains(haystack, "play")
	case "defi_narrative":
		return strings.Contains(haystack, "defi") || strings.Contains(haystack, "yield") || strings.Contains(haystack, "swap")
	case "meme_revival":
		return strings.Contains(haystack, "2.0") || strings.Contains(haystack, "revival") || strings.Contains(haystack, "returns")
	case "new_listing_pump":
		return token.PriceChange24h > 50
	default:
		return false
	}
}

// SellDelta carries the previous-vs-current deltas a sell pattern rule
// needs. All fields are zero when no previous snapshot exists.
type SellDelta struct {
	EntryPrice      float64
	HeldMinutes     float64
	UnrealizedPnL   float64
	DeltaVolume     float64 // fractional change, e.g. -0.3 = -30%
	DeltaHolders    int
	DeltaLiquidity  float64 // fractional change
	HasPrevious     bool
}

// MatchSellPattern evaluates one sell pattern's rule. `current` is the
// live price; delta carries the previous-comparison fields.
func MatchSellPattern(pattern string, current *types.TokenSnapshot, delta SellDelta) bool {
	switch pattern {
	case "volume_collapse":
		return delta.DeltaVolume < -0.5
	case "whale_dump":
		return delta.DeltaVolume > 0.5 && current.PriceUSD < delta.EntryPrice
	case "holder_exodus":
		return delta.DeltaHolders < -20
	case "hype_fade":
		return delta.DeltaVolume < -0.3 && delta.DeltaHolders < 0
	case "liquidity_drain":
		return delta.HasPrevious && delta.DeltaLiquidity < -0.3
	case "time_decay":
		return delta.HeldMinutes > 30 && delta.UnrealizedPnL < 0.1
	case "momentum_death":
		// Open question (spec §9): the original compares
		// unrealizedPnLPercent to itself scaled by 0.7, an expression
		// that is identically false. Treated as a no-op; momentum
		// reversal is covered by sellSignals.momentumReversal instead.
		return false
	case "mcap_ceiling", "profit_secure", "trailing_stop_hit":
		// These three are derived directly from sellSignals thresholds
		// in the evaluator, not from a standalone pattern rule.
		return false
	default:
		return false
	}
}
