package feed

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"go.uber.org/zap"
)

func newTestSimulated(seed int64) *Simulated {
	return NewSimulated(zap.NewNop(), SimulatedConfig{Seed: seed, MaxLiveTokens: 10})
}

func TestSpawnOneAddsTokenAndPublishesToSubscribers(t *testing.T) {
	s := newTestSimulated(1)
	ch := s.Subscribe(context.Background())

	s.spawnOne()

	if len(s.List()) != 1 {
		t.Fatalf("List() length = %d, want 1 after spawnOne", len(s.List()))
	}
	select {
	case tok := <-ch:
		if tok.Address == "" {
			t.Error("published token has an empty address")
		}
	default:
		t.Fatal("spawnOne did not publish to the subscriber channel")
	}
}

func TestSpawnOneRespectsMaxLiveTokens(t *testing.T) {
	s := NewSimulated(zap.NewNop(), SimulatedConfig{Seed: 1, MaxLiveTokens: 2})
	s.spawnOne()
	s.spawnOne()
	s.spawnOne()

	if got := len(s.List()); got != 2 {
		t.Fatalf("List() length = %d, want 2 (capped at MaxLiveTokens)", got)
	}
}

func TestSnapshotUnknownAddressReturnsFalse(t *testing.T) {
	s := newTestSimulated(1)
	_, ok := s.Snapshot(context.Background(), "nope")
	if ok {
		t.Fatal("Snapshot() ok = true for an address that was never spawned")
	}
}

func TestSnapshotAndListReturnIndependentCopies(t *testing.T) {
	s := newTestSimulated(1)
	s.spawnOne()
	addr := s.List()[0].Address

	snap, ok := s.Snapshot(context.Background(), addr)
	if !ok {
		t.Fatal("Snapshot() ok = false, want true for a spawned token")
	}
	snap.PriceUSD = 999

	again, _ := s.Snapshot(context.Background(), addr)
	if again.PriceUSD == 999 {
		t.Fatal("mutating a returned snapshot leaked into internal state")
	}
}

func TestWalkAllUpdatesPriceDerivedFieldsAndClampsHolders(t *testing.T) {
	s := newTestSimulated(1)
	s.spawnOne()
	addr := s.List()[0].Address

	before, _ := s.Snapshot(context.Background(), addr)
	s.walkAll()
	after, _ := s.Snapshot(context.Background(), addr)

	if after.FetchedAt.Before(before.FetchedAt) {
		t.Error("walkAll did not advance FetchedAt")
	}
	if after.MarketCap != after.PriceUSD*1_000_000_000 {
		t.Errorf("MarketCap = %f, want derived from PriceUSD (%f * 1e9)", after.MarketCap, after.PriceUSD)
	}
	if after.Holders < 0 {
		t.Errorf("Holders = %d, want clamped to >= 0", after.Holders)
	}
}

func TestWalkAllNeverDrivesPriceToZeroOrBelow(t *testing.T) {
	s := newTestSimulated(2)
	s.spawnOne()
	addr := s.List()[0].Address

	for i := 0; i < 500; i++ {
		s.walkAll()
	}
	snap, _ := s.Snapshot(context.Background(), addr)
	if snap.PriceUSD <= 0 {
		t.Fatalf("PriceUSD = %f after repeated walks, want > 0", snap.PriceUSD)
	}
}

func TestStartStopRunsSpawnAndTickLoopsAndShutsDownCleanly(t *testing.T) {
	s := NewSimulated(zap.NewNop(), SimulatedConfig{
		Seed:          3,
		SpawnInterval: 5 * time.Millisecond,
		TickInterval:  5 * time.Millisecond,
		MaxLiveTokens: 10,
	})
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	time.Sleep(40 * time.Millisecond)
	s.Stop()

	if len(s.List()) == 0 {
		t.Fatal("List() is empty after running the spawn loop, want at least one spawned token")
	}
}

func TestRandomTokenNameAndSymbolAreNonEmpty(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	name := randomTokenName(rng)
	symbol := randomTokenSymbol(rng)
	if name == "" || len(symbol) != 4 {
		t.Fatalf("randomTokenName/Symbol = (%q,%q), want non-empty name and a 4-letter symbol", name, symbol)
	}
}
