package engine

import (
	"context"
	"testing"
	"time"

	"github.com/atlas-desktop/trading-backend/internal/events"
	"github.com/atlas-desktop/trading-backend/internal/execution"
	"github.com/atlas-desktop/trading-backend/internal/monitor"
	"github.com/atlas-desktop/trading-backend/internal/treasury"
	"github.com/atlas-desktop/trading-backend/pkg/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type stubFeed struct {
	snaps map[string]*types.TokenSnapshot
}

func (f *stubFeed) Subscribe(ctx context.Context) <-chan *types.TokenSnapshot {
	return make(chan *types.TokenSnapshot)
}
func (f *stubFeed) Snapshot(ctx context.Context, address string) (*types.TokenSnapshot, bool) {
	s, ok := f.snaps[address]
	return s, ok
}
func (f *stubFeed) Start(ctx context.Context) error { return nil }
func (f *stubFeed) Stop()                           {}

type stubAdapter struct {
	buyOK     bool
	buyCalled int
}

func (a *stubAdapter) Buy(ctx context.Context, strategyID string, token *types.TokenSnapshot, amountSol decimal.Decimal, genes types.Genes, now time.Time) execution.BuyResult {
	a.buyCalled++
	if !a.buyOK {
		return execution.BuyResult{OK: false}
	}
	trade := types.NewTrade("trade1", strategyID, token, token.PriceUSD, amountSol, genes.TakeProfitMultiplier, genes.StopLossMultiplier, genes.TimeBasedExit, true, now)
	return execution.BuyResult{OK: true, Trade: trade}
}
func (a *stubAdapter) Sell(ctx context.Context, trade *types.Trade, currentPrice float64, reason types.ExitReason, now time.Time) execution.SellResult {
	return execution.SellResult{OK: true, Trade: trade}
}

func newTestEngine(t *testing.T, cfg Config, adapter *stubAdapter) *Engine {
	t.Helper()
	trsy := treasury.New(zap.NewNop(), decimal.NewFromInt(100), 0, decimal.NewFromInt(100))
	trsy.AllocateToStrategies([]string{"g1"})
	bus := events.New(zap.NewNop())
	t.Cleanup(bus.Stop)
	fd := &stubFeed{snaps: map[string]*types.TokenSnapshot{}}
	mon := monitor.New(zap.NewNop(), monitor.Config{PollInterval: time.Hour, NumWorkers: 1, QueueSize: 4}, fd, adapter, trsy, bus)
	return New(zap.NewNop(), cfg, nil, fd, adapter, trsy, mon, bus)
}

func genomeWithCap(id string, maxPositions int) *types.StrategyGenome {
	return &types.StrategyGenome{ID: id, Genes: types.Genes{MaxSimultaneousPositions: maxPositions, InvestmentPercent: 0.1}}
}

func TestReserveSlotEnforcesPerStrategyCap(t *testing.T) {
	e := newTestEngine(t, Config{MaxConcurrentTrades: 10}, &stubAdapter{})
	g := genomeWithCap("g1", 1)

	if !e.reserveSlot(g) {
		t.Fatal("reserveSlot() = false on the first reservation, want true")
	}
	if e.reserveSlot(g) {
		t.Fatal("reserveSlot() = true, want false once the per-strategy cap of 1 is reached")
	}
	e.releaseSlot(g)
	if !e.reserveSlot(g) {
		t.Fatal("reserveSlot() = false after releaseSlot freed the only slot, want true")
	}
}

func TestReserveSlotEnforcesGlobalCap(t *testing.T) {
	e := newTestEngine(t, Config{MaxConcurrentTrades: 1}, &stubAdapter{})
	a := genomeWithCap("a", 5)
	b := genomeWithCap("b", 5)

	if !e.reserveSlot(a) {
		t.Fatal("reserveSlot(a) = false, want true")
	}
	if e.reserveSlot(b) {
		t.Fatal("reserveSlot(b) = true, want false once the global cap of 1 is reached")
	}
}

func TestReleaseSlotByIDFreesCapacity(t *testing.T) {
	e := newTestEngine(t, Config{MaxConcurrentTrades: 1}, &stubAdapter{})
	g := genomeWithCap("g1", 1)
	if !e.reserveSlot(g) {
		t.Fatal("reserveSlot() = false, want true")
	}

	e.releaseSlotByID("g1")
	if e.openTotal != 0 {
		t.Fatalf("openTotal = %d, want 0 after releaseSlotByID", e.openTotal)
	}
	if !e.reserveSlot(g) {
		t.Fatal("reserveSlot() after releaseSlotByID = false, want true")
	}
}

func TestInvestmentAmountUsesAvailableAllocationAndPercent(t *testing.T) {
	e := newTestEngine(t, DefaultConfig(), &stubAdapter{})
	g := genomeWithCap("g1", 1)
	g.Genes.InvestmentPercent = 0.25

	amount := e.investmentAmount(g)
	want := decimal.NewFromInt(100).Mul(decimal.NewFromFloat(0.25))
	if !amount.Equal(want) {
		t.Fatalf("investmentAmount() = %s, want %s", amount, want)
	}
}

func TestInvestmentAmountZeroForUnknownStrategy(t *testing.T) {
	e := newTestEngine(t, DefaultConfig(), &stubAdapter{})
	g := genomeWithCap("ghost", 1)

	if !e.investmentAmount(g).IsZero() {
		t.Fatal("investmentAmount() should be zero for a strategy with no allocation")
	}
}

type genomeSourceFunc func() []*types.StrategyGenome

func (f genomeSourceFunc) Active() []*types.StrategyGenome { return f() }

func TestEvaluateTokenOpensTradeForHighestScoringGenome(t *testing.T) {
	adapter := &stubAdapter{buyOK: true}
	e := newTestEngine(t, DefaultConfig(), adapter)

	weak := genomeWithCap("weak", 1)
	weak.Genes.EntryMcapMin = 0
	weak.Genes.EntryMcapMax = 1_000_000
	weak.Genes.EntryVolumeMin = 0
	weak.Genes.BuyPatterns = []string{"cat_meme"}

	strong := genomeWithCap("strong", 1)
	strong.Genes.EntryMcapMin = 0
	strong.Genes.EntryMcapMax = 1_000_000
	strong.Genes.EntryVolumeMin = 0
	strong.Genes.BuyPatterns = []string{"cat_meme"}
	strong.Genes.TokenNameKeywords = []string{"cat"}

	trsy := treasury.New(zap.NewNop(), decimal.NewFromInt(100), 0, decimal.NewFromInt(100))
	trsy.AllocateToStrategies([]string{"weak", "strong"})
	e.trsy = trsy

	e.genomes = genomeSourceFunc(func() []*types.StrategyGenome { return []*types.StrategyGenome{weak, strong} })

	token := &types.TokenSnapshot{Address: "addr1", Name: "CatCoin", Symbol: "CAT", MarketCap: 100, Volume24h: 100, PriceUSD: 1.0}
	e.evaluateToken(context.Background(), token)

	if adapter.buyCalled != 1 {
		t.Fatalf("buyCalled = %d, want 1", adapter.buyCalled)
	}
	if e.openByStrat["strong"] != 1 {
		t.Fatalf("openByStrat[strong] = %d, want 1 (the higher-scoring genome should win)", e.openByStrat["strong"])
	}
	if e.openByStrat["weak"] != 0 {
		t.Fatalf("openByStrat[weak] = %d, want 0", e.openByStrat["weak"])
	}
}

func TestEvaluateTokenEmitsSignalForEveryQualifyingStrategy(t *testing.T) {
	adapter := &stubAdapter{buyOK: true}
	e := newTestEngine(t, DefaultConfig(), adapter)

	weak := genomeWithCap("weak", 1)
	weak.Genes.EntryMcapMin = 0
	weak.Genes.EntryMcapMax = 1_000_000
	weak.Genes.EntryVolumeMin = 0
	weak.Genes.BuyPatterns = []string{"cat_meme"}

	strong := genomeWithCap("strong", 1)
	strong.Genes.EntryMcapMin = 0
	strong.Genes.EntryMcapMax = 1_000_000
	strong.Genes.EntryVolumeMin = 0
	strong.Genes.BuyPatterns = []string{"cat_meme"}
	strong.Genes.TokenNameKeywords = []string{"cat"}

	trsy := treasury.New(zap.NewNop(), decimal.NewFromInt(100), 0, decimal.NewFromInt(100))
	trsy.AllocateToStrategies([]string{"weak", "strong"})
	e.trsy = trsy
	e.genomes = genomeSourceFunc(func() []*types.StrategyGenome { return []*types.StrategyGenome{weak, strong} })

	sub := e.bus.Subscribe(8, events.KindSignalGenerated)
	token := &types.TokenSnapshot{Address: "addr1", Name: "CatCoin", Symbol: "CAT", MarketCap: 100, Volume24h: 100, PriceUSD: 1.0}
	e.evaluateToken(context.Background(), token)

	var signaled []string
	for {
		select {
		case ev := <-sub.Events():
			sig, ok := ev.Payload.(events.SignalGenerated)
			if ok {
				signaled = append(signaled, sig.StrategyID)
			}
			continue
		default:
		}
		break
	}

	if len(signaled) != 2 {
		t.Fatalf("signal:generated count = %d, want 2 (one per qualifying strategy), got %v", len(signaled), signaled)
	}
	if adapter.buyCalled != 1 {
		t.Fatalf("buyCalled = %d, want 1 (only the highest-scoring signal opens a trade)", adapter.buyCalled)
	}
}

func TestEvaluateTokenFallsThroughWhenTopScorerIsAtItsOwnCap(t *testing.T) {
	adapter := &stubAdapter{buyOK: true}
	e := newTestEngine(t, DefaultConfig(), adapter)

	weak := genomeWithCap("weak", 1)
	weak.Genes.EntryMcapMin = 0
	weak.Genes.EntryMcapMax = 1_000_000
	weak.Genes.EntryVolumeMin = 0
	weak.Genes.BuyPatterns = []string{"cat_meme"}

	strong := genomeWithCap("strong", 1)
	strong.Genes.EntryMcapMin = 0
	strong.Genes.EntryMcapMax = 1_000_000
	strong.Genes.EntryVolumeMin = 0
	strong.Genes.BuyPatterns = []string{"cat_meme"}
	strong.Genes.TokenNameKeywords = []string{"cat"}

	trsy := treasury.New(zap.NewNop(), decimal.NewFromInt(100), 0, decimal.NewFromInt(100))
	trsy.AllocateToStrategies([]string{"weak", "strong"})
	e.trsy = trsy
	e.genomes = genomeSourceFunc(func() []*types.StrategyGenome { return []*types.StrategyGenome{weak, strong} })

	// strong already holds its only slot, so the pre-filter excludes it
	// from shouldBuy entirely; weak is still under its own cap and wins.
	if !e.reserveSlot(strong) {
		t.Fatal("reserveSlot(strong) = false, want true")
	}

	token := &types.TokenSnapshot{Address: "addr1", Name: "CatCoin", Symbol: "CAT", MarketCap: 100, Volume24h: 100, PriceUSD: 1.0}
	e.evaluateToken(context.Background(), token)

	if adapter.buyCalled != 1 {
		t.Fatalf("buyCalled = %d, want 1 (the under-cap strategy should still trade)", adapter.buyCalled)
	}
	if e.openByStrat["weak"] != 1 {
		t.Fatalf("openByStrat[weak] = %d, want 1", e.openByStrat["weak"])
	}
}

func TestEvaluateTokenSkipsDeadGenomes(t *testing.T) {
	adapter := &stubAdapter{buyOK: true}
	e := newTestEngine(t, DefaultConfig(), adapter)

	dead := genomeWithCap("dead", 1)
	dead.Status = types.StatusDead
	dead.Genes.EntryMcapMax = 1_000_000
	dead.Genes.BuyPatterns = []string{"cat_meme"}

	e.genomes = genomeSourceFunc(func() []*types.StrategyGenome { return []*types.StrategyGenome{dead} })

	token := &types.TokenSnapshot{Address: "addr1", Name: "CatCoin", Symbol: "CAT", MarketCap: 100, Volume24h: 100, PriceUSD: 1.0}
	e.evaluateToken(context.Background(), token)

	if adapter.buyCalled != 0 {
		t.Fatalf("buyCalled = %d, want 0 for a dead genome", adapter.buyCalled)
	}
}
