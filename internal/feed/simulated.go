package feed

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/atlas-desktop/trading-backend/pkg/utils"
	"github.com/atlas-desktop/trading-backend/pkg/types"
	"go.uber.org/zap"
)

// SimulatedConfig controls the synthetic token generator.
type SimulatedConfig struct {
	Seed             int64
	SpawnInterval    time.Duration // how often a brand new token appears
	TickInterval     time.Duration // how often existing tokens' prices walk
	MaxLiveTokens    int
}

// DefaultSimulatedConfig returns the documented paper-mode cadence.
func DefaultSimulatedConfig() SimulatedConfig {
	return SimulatedConfig{
		Seed:          time.Now().UnixNano(),
		SpawnInterval: 8 * time.Second,
		TickInterval:  5 * time.Second,
		MaxLiveTokens: 200,
	}
}

// simToken is one token's mutable simulated state.
type simToken struct {
	snap types.TokenSnapshot
}

// Simulated generates a new-token stream and random-walks each token's
// price, volume and liquidity thereafter. Used for paper mode when no
// live feed is configured.
type Simulated struct {
	logger *zap.Logger
	cfg    SimulatedConfig
	rng    *rand.Rand

	mu     sync.Mutex
	tokens map[string]*simToken

	subs   []chan *types.TokenSnapshot
	subsMu sync.Mutex

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSimulated constructs a Simulated feed. Deterministic for a fixed
// Seed.
func NewSimulated(logger *zap.Logger, cfg SimulatedConfig) *Simulated {
	return &Simulated{
		logger: logger,
		cfg:    cfg,
		rng:    rand.New(rand.NewSource(cfg.Seed)),
		tokens: make(map[string]*simToken),
	}
}

var _ Feed = (*Simulated)(nil)

// Subscribe returns a channel of newly discovered tokens. Callers must
// keep draining it; a slow subscriber only misses future ticks, it
// never blocks the generator (buffered, drop-oldest not needed at this
// scale).
func (s *Simulated) Subscribe(ctx context.Context) <-chan *types.TokenSnapshot {
	ch := make(chan *types.TokenSnapshot, 64)
	s.subsMu.Lock()
	s.subs = append(s.subs, ch)
	s.subsMu.Unlock()
	go func() {
		<-ctx.Done()
	}()
	return ch
}

// List returns a snapshot of every token currently known, for the
// engine's periodic full scan.
func (s *Simulated) List() []*types.TokenSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*types.TokenSnapshot, 0, len(s.tokens))
	for _, t := range s.tokens {
		cp := t.snap
		out = append(out, &cp)
	}
	return out
}

// Snapshot returns the current in-memory state for a token, if known.
func (s *Simulated) Snapshot(ctx context.Context, address string) (*types.TokenSnapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[address]
	if !ok {
		return nil, false
	}
	cp := t.snap
	return &cp, true
}

// Start begins spawning and walking tokens in the background.
func (s *Simulated) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	spawn := s.cfg.SpawnInterval
	if spawn <= 0 {
		spawn = DefaultSimulatedConfig().SpawnInterval
	}
	tick := s.cfg.TickInterval
	if tick <= 0 {
		tick = DefaultSimulatedConfig().TickInterval
	}

	s.wg.Add(2)
	go s.spawnLoop(ctx, spawn)
	go s.tickLoop(ctx, tick)
	return nil
}

// Stop halts background generation.
func (s *Simulated) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Simulated) spawnLoop(ctx context.Context, interval time.Duration) {
	defer s.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.spawnOne()
		}
	}
}

func (s *Simulated) spawnOne() {
	s.mu.Lock()
	if len(s.tokens) >= s.cfg.MaxLiveTokens {
		s.mu.Unlock()
		return
	}
	now := time.Now()
	snap := types.TokenSnapshot{
		Address:        utils.GenerateID("tok"),
		Name:           randomTokenName(s.rng),
		Symbol:         randomTokenSymbol(s.rng),
		MarketCap:      5_000 + s.rng.Float64()*95_000,
		Volume24h:      1_000 + s.rng.Float64()*50_000,
		Liquidity:      2_000 + s.rng.Float64()*40_000,
		Holders:        10 + s.rng.Intn(500),
		CreatedAt:      now,
		Creator:        utils.GenerateID("wallet"),
		PriceUSD:       0.0000001 + s.rng.Float64()*0.001,
		PriceChange24h: 0,
		FetchedAt:      now,
	}
	if s.rng.Float64() < 0.3 {
		snap.SocialLinks.Twitter = "https://twitter.com/" + snap.Symbol
	}
	if s.rng.Float64() < 0.2 {
		snap.SocialLinks.Telegram = "https://t.me/" + snap.Symbol
	}
	s.tokens[snap.Address] = &simToken{snap: snap}
	s.mu.Unlock()

	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- &snap:
		default:
		}
	}
}

func (s *Simulated) tickLoop(ctx context.Context, interval time.Duration) {
	defer s.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.walkAll()
		}
	}
}

// walkAll applies one random-walk step to every live token's price,
// volume, liquidity and holder count. Grounded on the teacher's
// generateSampleData random-walk formula, adapted to a token's wider
// and faster-moving fields.
func (s *Simulated) walkAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for _, t := range s.tokens {
		prevPrice := t.snap.PriceUSD
		drift := (s.rng.Float64() - 0.48) * 0.08
		t.snap.PriceUSD = math.Max(prevPrice*(1+drift), 1e-12)
		if prevPrice > 0 {
			t.snap.PriceChange24h = (t.snap.PriceUSD - prevPrice) / prevPrice
		}
		t.snap.Volume24h = math.Max(t.snap.Volume24h*(1+(s.rng.Float64()-0.5)*0.2), 0)
		t.snap.Liquidity = math.Max(t.snap.Liquidity*(1+(s.rng.Float64()-0.5)*0.1), 0)
		t.snap.MarketCap = t.snap.PriceUSD * 1_000_000_000
		t.snap.Holders += s.rng.Intn(11) - 3
		if t.snap.Holders < 0 {
			t.snap.Holders = 0
		}
		t.snap.FetchedAt = now
	}
}

var tokenPrefixes = []string{"Moon", "Doge", "Pepe", "Baby", "Mega", "Solar", "Turbo", "Giga", "Based", "Degen"}
var tokenSuffixes = []string{"Coin", "Inu", "AI", "Fi", "X", "Token", "Labs", "Protocol", "Swap", "Chain"}

func randomTokenName(rng *rand.Rand) string {
	return tokenPrefixes[rng.Intn(len(tokenPrefixes))] + tokenSuffixes[rng.Intn(len(tokenSuffixes))]
}

func randomTokenSymbol(rng *rand.Rand) string {
	letters := "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	b := make([]byte, 4)
	for i := range b {
		b[i] = letters[rng.Intn(len(letters))]
	}
	return string(b)
}
