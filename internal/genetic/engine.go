// Package genetic implements the evolutionary engine: genesis population
// generation, fitness scoring, selection, crossover, mutation and the
// whole-cycle orchestration that retires losers and breeds offspring.
//
// Every operation here takes its random source as an explicit
// parameter (per the "inject a seedable generator" redesign note) so
// that cycles are reproducible in tests. Nothing here performs I/O;
// Select and RunCycle do write fitness, status and death timestamp onto
// the genomes passed in. The only failure mode is an empty population,
// handled by returning the input unchanged.
package genetic

import (
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/atlas-desktop/trading-backend/internal/catalog"
	"github.com/atlas-desktop/trading-backend/pkg/types"
	"github.com/atlas-desktop/trading-backend/pkg/utils"
	"go.uber.org/zap"
)

// Field envelopes. Mutation clamps to these bounds; genesis draws
// uniformly within them.
const (
	entryMcapMinLo, entryMcapMinHi = 1000.0, 200000.0
	entryMcapSpanLo, entryMcapSpanHi = 20000.0, 2000000.0
	entryVolumeMinLo, entryVolumeMinHi = 500.0, 50000.0

	twitterFollowersHi = 50000
	telegramMembersHi  = 20000
	holdersMinHi       = 1000

	takeProfitMultLo, takeProfitMultHi = 1.2, 20.0
	stopLossMultLo, stopLossMultHi     = 0.1, 0.95
	timeBasedExitLo, timeBasedExitHi   = 5.0, 1440.0
	volumeDropExitLo, volumeDropExitHi = 0.05, 0.95

	mcapCeilingHi     = 10000000.0
	profitSecuringLo  = 0.0
	profitSecuringHi  = 1.0
	trailingStopLo    = 0.05
	trailingStopHi    = 0.9

	investmentPercentLo, investmentPercentHi = 0.01, 1.0
	maxSimultaneousPositionsLo, maxSimultaneousPositionsHi = 1, 10
	maxDrawdownLo, maxDrawdownHi = 0.05, 1.0
	diversificationLo, diversificationHi = 0.0, 1.0

	mutateSpread = 0.2 // U(-0.2, 0.2) envelope factor
)

var tokenNameKeywordPool = []string{
	"moon", "safe", "baby", "mini", "elon", "doge", "pepe", "based",
	"chad", "king", "rocket", "gem", "ai", "agent", "meta",
}

// Config parameterizes selection; population size and operator rates.
type Config struct {
	PopulationSize  int
	SurvivorPercent float64
	DeadPercent     float64
	MutationRate    float64
	CrossoverRate   float64
}

// Engine is the stateful wrapper around the pure genetic operators: it
// only tracks the current generation counter across cycles.
type Engine struct {
	logger            *zap.Logger
	cfg               Config
	currentGeneration int
}

// NewEngine constructs an Engine at generation 0.
func NewEngine(logger *zap.Logger, cfg Config) *Engine {
	return &Engine{logger: logger, cfg: cfg}
}

// CurrentGeneration returns the engine's generation counter.
func (e *Engine) CurrentGeneration() int { return e.currentGeneration }

func pick(rng *rand.Rand) bool { return rng.Float64() < 0.5 }

func drawSubset(rng *rand.Rand, catalogSet []string, minN, maxN int) []string {
	n := minN + rng.Intn(maxN-minN+1)
	if n > len(catalogSet) {
		n = len(catalogSet)
	}
	idxs := rng.Perm(len(catalogSet))[:n]
	out := make([]string, 0, n)
	for _, i := range idxs {
		out = append(out, catalogSet[i])
	}
	return out
}

func randomGenes(rng *rand.Rand) types.Genes {
	mcapMin := entryMcapMinLo + rng.Float64()*(entryMcapMinHi-entryMcapMinLo)
	mcapMax := mcapMin + entryMcapSpanLo + rng.Float64()*(entryMcapSpanHi-entryMcapSpanLo)

	whales := []string{}
	if rng.Float64() < 0.3 {
		n := 1 + rng.Intn(3)
		for i := 0; i < n; i++ {
			whales = append(whales, utils.GenerateID("whale"))
		}
	}

	g := types.Genes{
		EntryMcapMin:   mcapMin,
		EntryMcapMax:   mcapMax,
		EntryVolumeMin: entryVolumeMinLo + rng.Float64()*(entryVolumeMinHi-entryVolumeMinLo),
		SocialSignals: types.SocialSignals{
			TwitterFollowers: rng.Intn(twitterFollowersHi + 1),
			TelegramMembers:  rng.Intn(telegramMembersHi + 1),
			HoldersMin:       rng.Intn(holdersMinHi + 1),
		},
		BuyPatterns:       drawSubset(rng, catalog.BuyPatterns, 1, 4),
		WhaleWallets:      whales,
		TokenNameKeywords: drawSubset(rng, tokenNameKeywordPool, 0, 3),

		TakeProfitMultiplier: takeProfitMultLo + rng.Float64()*(takeProfitMultHi-takeProfitMultLo),
		StopLossMultiplier:   stopLossMultLo + rng.Float64()*(stopLossMultHi-stopLossMultLo),
		TimeBasedExit:        timeBasedExitLo + rng.Float64()*(timeBasedExitHi-timeBasedExitLo),
		VolumeDropExit:       volumeDropExitLo + rng.Float64()*(volumeDropExitHi-volumeDropExitLo),

		SellSignals: types.SellSignals{
			MomentumReversal: true,
			VolumeDry:        true,
			HoldersDumping:   true,
			McapCeiling:      rng.Float64() * mcapCeilingHi,
			ProfitSecuring:   profitSecuringLo + rng.Float64()*(profitSecuringHi-profitSecuringLo),
			TrailingStop:     trailingStopLo + rng.Float64()*(trailingStopHi-trailingStopLo),
		},
		SellPatterns: drawSubset(rng, catalog.SellPatterns, 1, 3),

		InvestmentPercent:        investmentPercentLo + rng.Float64()*(investmentPercentHi-investmentPercentLo),
		MaxSimultaneousPositions: maxSimultaneousPositionsLo + rng.Intn(maxSimultaneousPositionsHi-maxSimultaneousPositionsLo+1),
		MaxDrawdown:              maxDrawdownLo + rng.Float64()*(maxDrawdownHi-maxDrawdownLo),
		Diversification:          diversificationLo + rng.Float64()*(diversificationHi-diversificationLo),
	}
	return g
}

// GenerateGenesis produces n genomes with generation=0, empty
// parentIds, random genes drawn uniformly from the documented ranges.
func (e *Engine) GenerateGenesis(rng *rand.Rand, n int, now time.Time) []*types.StrategyGenome {
	out := make([]*types.StrategyGenome, 0, n)
	for i := 0; i < n; i++ {
		genes := randomGenes(rng)
		out = append(out, &types.StrategyGenome{
			ID:             utils.GenerateGenomeID(),
			Generation:     0,
			ParentIDs:      nil,
			Genes:          genes,
			Performance:    types.NewPerformance(),
			Status:         types.StatusActive,
			Archetype:      ArchetypeOf(genes),
			BirthTimestamp: now,
		})
	}
	return out
}

// ArchetypeOf deterministically classifies a gene bundle. Evaluated in
// order; first match wins.
func ArchetypeOf(g types.Genes) types.Archetype {
	switch {
	case g.TakeProfitMultiplier > 5 && g.StopLossMultiplier < 0.5:
		return types.ArchetypeAggressive
	case g.StopLossMultiplier > 0.7 && g.TakeProfitMultiplier < 3:
		return types.ArchetypeConservative
	case g.SocialSignals.TwitterFollowers > 5000 || g.SocialSignals.TelegramMembers > 2000:
		return types.ArchetypeSocial
	case len(g.WhaleWallets) > 0:
		return types.ArchetypeWhaleFollower
	case g.EntryMcapMax < 100000 && g.TimeBasedExit < 30:
		return types.ArchetypeSniper
	default:
		return types.ArchetypeMomentum
	}
}

// Fitness computes the stored [0,100] fitness score from a performance
// record: a weighted blend of pnl, win rate, Sharpe and consistency.
func Fitness(p types.Performance) float64 {
	pnlScore := utils.Clamp(50+p.TotalPnL*10, 0, 100)
	winRateScore := p.WinRate * 100
	sharpeScore := utils.Clamp(50+p.SharpeRatio*20, 0, 100)
	consistencyScore := math.Max(0, 100-p.MaxDrawdown*200)

	score := 0.4*pnlScore + 0.25*winRateScore + 0.2*sharpeScore + 0.15*consistencyScore
	return utils.Clamp(score, 0, 100)
}

// Select sorts non-dead genomes by descending fitness, classifying the
// top survivorPercent as survivors, the bottom deadPercent as dead (with
// deathTimestamp set), and the middle band as mutators.
func (e *Engine) Select(pop []*types.StrategyGenome, now time.Time) (survivors, mutators, dead []*types.StrategyGenome) {
	live := make([]*types.StrategyGenome, 0, len(pop))
	for _, g := range pop {
		if !g.IsDead() {
			live = append(live, g)
		}
	}

	sort.SliceStable(live, func(i, j int) bool {
		return live[i].Performance.FitnessScore > live[j].Performance.FitnessScore
	})

	n := len(live)
	survivorCount := int(math.Floor(float64(n) * e.cfg.SurvivorPercent))
	deadCount := int(math.Floor(float64(n) * e.cfg.DeadPercent))
	if survivorCount+deadCount > n {
		deadCount = n - survivorCount
	}

	survivors = append(survivors, live[:survivorCount]...)
	deadStart := n - deadCount
	for i := deadStart; i < n; i++ {
		g := live[i]
		g.Status = types.StatusDead
		t := now
		g.DeathTimestamp = &t
		dead = append(dead, g)
	}
	mutators = append(mutators, live[survivorCount:deadStart]...)
	return survivors, mutators, dead
}

func crossoverStrings(rng *rand.Rand, a, b []string) []string {
	if pick(rng) {
		return append([]string{}, a...)
	}
	return append([]string{}, b...)
}

func unionStrings(a, b []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(a)+len(b))
	for _, s := range append(append([]string{}, a...), b...) {
		if _, ok := seen[s]; !ok {
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}

// Crossover combines two parents' genes: for every scalar, vector and
// nested-record field, pick parent a or b with probability 0.5
// independently, except whaleWallets which is the union of both sets.
func Crossover(rng *rand.Rand, a, b types.Genes) types.Genes {
	child := types.Genes{}

	if pick(rng) {
		child.EntryMcapMin = a.EntryMcapMin
	} else {
		child.EntryMcapMin = b.EntryMcapMin
	}
	if pick(rng) {
		child.EntryMcapMax = a.EntryMcapMax
	} else {
		child.EntryMcapMax = b.EntryMcapMax
	}
	if pick(rng) {
		child.EntryVolumeMin = a.EntryVolumeMin
	} else {
		child.EntryVolumeMin = b.EntryVolumeMin
	}

	if pick(rng) {
		child.SocialSignals.TwitterFollowers = a.SocialSignals.TwitterFollowers
	} else {
		child.SocialSignals.TwitterFollowers = b.SocialSignals.TwitterFollowers
	}
	if pick(rng) {
		child.SocialSignals.TelegramMembers = a.SocialSignals.TelegramMembers
	} else {
		child.SocialSignals.TelegramMembers = b.SocialSignals.TelegramMembers
	}
	if pick(rng) {
		child.SocialSignals.HoldersMin = a.SocialSignals.HoldersMin
	} else {
		child.SocialSignals.HoldersMin = b.SocialSignals.HoldersMin
	}

	child.BuyPatterns = crossoverStrings(rng, a.BuyPatterns, b.BuyPatterns)
	child.TokenNameKeywords = crossoverStrings(rng, a.TokenNameKeywords, b.TokenNameKeywords)
	child.SellPatterns = crossoverStrings(rng, a.SellPatterns, b.SellPatterns)
	child.WhaleWallets = unionStrings(a.WhaleWallets, b.WhaleWallets)

	if pick(rng) {
		child.TakeProfitMultiplier = a.TakeProfitMultiplier
	} else {
		child.TakeProfitMultiplier = b.TakeProfitMultiplier
	}
	if pick(rng) {
		child.StopLossMultiplier = a.StopLossMultiplier
	} else {
		child.StopLossMultiplier = b.StopLossMultiplier
	}
	if pick(rng) {
		child.TimeBasedExit = a.TimeBasedExit
	} else {
		child.TimeBasedExit = b.TimeBasedExit
	}
	if pick(rng) {
		child.VolumeDropExit = a.VolumeDropExit
	} else {
		child.VolumeDropExit = b.VolumeDropExit
	}

	child.SellSignals = types.SellSignals{MomentumReversal: true, VolumeDry: true, HoldersDumping: true}
	if pick(rng) {
		child.SellSignals.McapCeiling = a.SellSignals.McapCeiling
	} else {
		child.SellSignals.McapCeiling = b.SellSignals.McapCeiling
	}
	if pick(rng) {
		child.SellSignals.ProfitSecuring = a.SellSignals.ProfitSecuring
	} else {
		child.SellSignals.ProfitSecuring = b.SellSignals.ProfitSecuring
	}
	if pick(rng) {
		child.SellSignals.TrailingStop = a.SellSignals.TrailingStop
	} else {
		child.SellSignals.TrailingStop = b.SellSignals.TrailingStop
	}

	if pick(rng) {
		child.InvestmentPercent = a.InvestmentPercent
	} else {
		child.InvestmentPercent = b.InvestmentPercent
	}
	if pick(rng) {
		child.MaxSimultaneousPositions = a.MaxSimultaneousPositions
	} else {
		child.MaxSimultaneousPositions = b.MaxSimultaneousPositions
	}
	if pick(rng) {
		child.MaxDrawdown = a.MaxDrawdown
	} else {
		child.MaxDrawdown = b.MaxDrawdown
	}
	if pick(rng) {
		child.Diversification = a.Diversification
	} else {
		child.Diversification = b.Diversification
	}

	return child
}

func mutateStringSet(rng *rand.Rand, set []string, catalogSet []string, rate float64, cap int) []string {
	if rng.Float64() >= rate {
		return set
	}
	out := append([]string{}, set...)
	if rng.Float64() < 0.5 && len(out) < cap {
		present := map[string]struct{}{}
		for _, s := range out {
			present[s] = struct{}{}
		}
		candidates := make([]string, 0, len(catalogSet))
		for _, c := range catalogSet {
			if _, ok := present[c]; !ok {
				candidates = append(candidates, c)
			}
		}
		if len(candidates) > 0 {
			out = append(out, candidates[rng.Intn(len(candidates))])
		}
	} else if len(out) >= 2 {
		i := rng.Intn(len(out))
		out = append(out[:i], out[i+1:]...)
	}
	return out
}

// Mutate perturbs genes in place semantics (returns a copy): each
// mutable scalar has probability `rate` of being replaced by
// clamp(v*(1+U(-0.2,0.2)), fieldMin, fieldMax); set-valued fields add or
// remove an element with probability `rate`. sellSignals booleans stay
// true by invariant. Mutating re-derives the archetype via the caller.
func Mutate(rng *rand.Rand, g types.Genes, rate float64) types.Genes {
	m := g // shallow copy; slices re-sliced below are copy-on-write via mutateStringSet

	if rng.Float64() < rate {
		m.EntryMcapMin = utils.MutateByFactor(rng, g.EntryMcapMin, mutateSpread, entryMcapMinLo, entryMcapMinHi)
	}
	if rng.Float64() < rate {
		m.EntryMcapMax = utils.MutateByFactor(rng, g.EntryMcapMax, mutateSpread, m.EntryMcapMin+entryMcapSpanLo, entryMcapMinHi+entryMcapSpanHi)
	}
	if rng.Float64() < rate {
		m.EntryVolumeMin = utils.MutateByFactor(rng, g.EntryVolumeMin, mutateSpread, entryVolumeMinLo, entryVolumeMinHi)
	}
	if rng.Float64() < rate {
		m.TakeProfitMultiplier = utils.MutateByFactor(rng, g.TakeProfitMultiplier, mutateSpread, takeProfitMultLo, takeProfitMultHi)
	}
	if rng.Float64() < rate {
		m.StopLossMultiplier = utils.MutateByFactor(rng, g.StopLossMultiplier, mutateSpread, stopLossMultLo, stopLossMultHi)
	}
	if rng.Float64() < rate {
		m.TimeBasedExit = utils.MutateByFactor(rng, g.TimeBasedExit, mutateSpread, timeBasedExitLo, timeBasedExitHi)
	}
	if rng.Float64() < rate {
		m.VolumeDropExit = utils.MutateByFactor(rng, g.VolumeDropExit, mutateSpread, volumeDropExitLo, volumeDropExitHi)
	}
	if rng.Float64() < rate {
		m.SellSignals.McapCeiling = utils.MutateByFactor(rng, g.SellSignals.McapCeiling, mutateSpread, 0, mcapCeilingHi)
	}
	if rng.Float64() < rate {
		m.SellSignals.ProfitSecuring = utils.MutateByFactor(rng, g.SellSignals.ProfitSecuring, mutateSpread, profitSecuringLo, profitSecuringHi)
	}
	if rng.Float64() < rate {
		m.SellSignals.TrailingStop = utils.MutateByFactor(rng, g.SellSignals.TrailingStop, mutateSpread, trailingStopLo, trailingStopHi)
	}
	if rng.Float64() < rate {
		m.InvestmentPercent = utils.MutateByFactor(rng, g.InvestmentPercent, mutateSpread, investmentPercentLo, investmentPercentHi)
	}
	if rng.Float64() < rate {
		m.MaxDrawdown = utils.MutateByFactor(rng, g.MaxDrawdown, mutateSpread, maxDrawdownLo, maxDrawdownHi)
	}
	if rng.Float64() < rate {
		m.Diversification = utils.MutateByFactor(rng, g.Diversification, mutateSpread, diversificationLo, diversificationHi)
	}
	if rng.Float64() < rate {
		mutated := utils.MutateByFactor(rng, float64(g.MaxSimultaneousPositions), mutateSpread, maxSimultaneousPositionsLo, maxSimultaneousPositionsHi)
		m.MaxSimultaneousPositions = int(math.Round(mutated))
	}

	m.SellSignals.MomentumReversal = true
	m.SellSignals.VolumeDry = true
	m.SellSignals.HoldersDumping = true

	m.BuyPatterns = mutateStringSet(rng, g.BuyPatterns, catalog.BuyPatterns, rate, 6)
	m.TokenNameKeywords = mutateStringSet(rng, g.TokenNameKeywords, tokenNameKeywordPool, rate, 5)
	m.SellPatterns = mutateStringSet(rng, g.SellPatterns, catalog.SellPatterns, rate, 5)

	return m
}

// Breed produces a child genome via crossover then mutation at half the
// configured rate.
func (e *Engine) Breed(rng *rand.Rand, a, b *types.StrategyGenome, now time.Time) *types.StrategyGenome {
	genes := Crossover(rng, a.Genes, b.Genes)
	genes = Mutate(rng, genes, e.cfg.MutationRate/2)
	return &types.StrategyGenome{
		ID:             utils.GenerateGenomeID(),
		Generation:     e.currentGeneration + 1,
		ParentIDs:      []string{a.ID, b.ID},
		Genes:          genes,
		Performance:    types.NewPerformance(),
		Status:         types.StatusActive,
		Archetype:      ArchetypeOf(genes),
		BirthTimestamp: now,
	}
}

// RunCycle recomputes fitness for every non-dead entry, selects, breeds
// paired survivors, mutates mutators in place (as copies), tops the
// population back up to populationSize by breeding additional offspring
// from distinct survivors, and emits the EvolutionCycle record. Per
// spec §9, if fewer than two survivors exist, no additional offspring
// can be produced and the final population may be smaller than the
// target.
func (e *Engine) RunCycle(rng *rand.Rand, pop []*types.StrategyGenome, now time.Time) ([]*types.StrategyGenome, *types.EvolutionCycle) {
	if len(pop) == 0 {
		e.logger.Warn("runCycle called with empty population")
		return pop, nil
	}

	for _, g := range pop {
		if !g.IsDead() {
			g.Performance.FitnessScore = Fitness(g.Performance)
		}
	}

	survivors, mutators, dead := e.Select(pop, now)

	order := rng.Perm(len(survivors))
	shuffled := make([]*types.StrategyGenome, len(survivors))
	for i, idx := range order {
		shuffled[i] = survivors[idx]
	}

	var offspring []*types.StrategyGenome
	for i := 0; i+1 < len(shuffled); i += 2 {
		offspring = append(offspring, e.Breed(rng, shuffled[i], shuffled[i+1], now))
	}

	mutated := make([]*types.StrategyGenome, 0, len(mutators))
	for _, g := range mutators {
		genes := Mutate(rng, g.Genes, e.cfg.MutationRate)
		mutated = append(mutated, &types.StrategyGenome{
			ID:             g.ID,
			Generation:     g.Generation,
			ParentIDs:      g.ParentIDs,
			Genes:          genes,
			Performance:    g.Performance,
			Status:         g.Status,
			Archetype:      ArchetypeOf(genes),
			BirthTimestamp: g.BirthTimestamp,
			DisplayName:    g.DisplayName,
		})
	}

	newPop := make([]*types.StrategyGenome, 0, e.cfg.PopulationSize)
	newPop = append(newPop, survivors...)
	newPop = append(newPop, offspring...)
	newPop = append(newPop, mutated...)

	for len(newPop) < e.cfg.PopulationSize && len(survivors) >= 2 {
		i := rng.Intn(len(survivors))
		j := rng.Intn(len(survivors))
		if i == j {
			continue
		}
		child := e.Breed(rng, survivors[i], survivors[j], now)
		offspring = append(offspring, child)
		newPop = append(newPop, child)
	}

	e.currentGeneration++

	var sumFitness, totalPnL, bestFitness float64
	var bestID string
	liveCount := 0
	for _, g := range pop {
		if !g.IsDead() {
			sumFitness += g.Performance.FitnessScore
			liveCount++
			if g.Performance.FitnessScore > bestFitness || bestID == "" {
				bestFitness = g.Performance.FitnessScore
				bestID = g.ID
			}
		}
		totalPnL += g.Performance.TotalPnL
	}
	avgFitness := 0.0
	if liveCount > 0 {
		avgFitness = sumFitness / float64(liveCount)
	}

	ids := func(gs []*types.StrategyGenome) []string {
		out := make([]string, len(gs))
		for i, g := range gs {
			out[i] = g.ID
		}
		return out
	}

	cycle := &types.EvolutionCycle{
		Generation:     e.currentGeneration,
		Timestamp:      now,
		Survivors:      ids(survivors),
		Dead:           ids(dead),
		NewlyBorn:      ids(offspring),
		AvgFitness:     avgFitness,
		BestFitness:    bestFitness,
		TotalPnLSol:    totalPnL,
		BestStrategyID: bestID,
	}
	e.logger.Info("evolution cycle complete",
		zap.Int("generation", cycle.Generation),
		zap.Int("survivors", len(survivors)),
		zap.Int("dead", len(dead)),
		zap.Float64("avgFitness", avgFitness),
		zap.Float64("bestFitness", bestFitness),
	)

	return newPop, cycle
}
