package scheduler_test

import (
	"context"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/atlas-desktop/trading-backend/internal/events"
	"github.com/atlas-desktop/trading-backend/internal/genetic"
	"github.com/atlas-desktop/trading-backend/internal/registry"
	"github.com/atlas-desktop/trading-backend/internal/scheduler"
	"github.com/atlas-desktop/trading-backend/internal/treasury"
	"github.com/atlas-desktop/trading-backend/pkg/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type fakeStore struct {
	mu           sync.Mutex
	savedGenomes []*types.StrategyGenome
	savedCycles  []*types.EvolutionCycle
	saveCycleErr error
}

func (f *fakeStore) SaveGenome(ctx context.Context, g *types.StrategyGenome) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.savedGenomes = append(f.savedGenomes, g)
	return nil
}

func (f *fakeStore) SaveCycle(ctx context.Context, c *types.EvolutionCycle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.savedCycles = append(f.savedCycles, c)
	return f.saveCycleErr
}

func newTestScheduler(t *testing.T, store *fakeStore, population []*types.StrategyGenome) (*scheduler.Scheduler, *events.Bus) {
	t.Helper()
	reg := registry.New()
	reg.Load(population)

	engine := genetic.NewEngine(zap.NewNop(), genetic.Config{
		PopulationSize:  len(population),
		SurvivorPercent: 0.5,
		DeadPercent:     0.2,
		MutationRate:    0.1,
		CrossoverRate:   0.5,
	})
	trsy := treasury.New(zap.NewNop(), decimal.NewFromInt(100), 0, decimal.NewFromInt(100))
	bus := events.New(zap.NewNop())
	t.Cleanup(bus.Stop)
	rng := rand.New(rand.NewSource(1))

	s := scheduler.New(zap.NewNop(), scheduler.Config{}, engine, reg, trsy, store, bus, rng)
	return s, bus
}

func seedPopulation(rng *rand.Rand, n int) []*types.StrategyGenome {
	e := genetic.NewEngine(zap.NewNop(), genetic.Config{PopulationSize: n})
	return e.GenerateGenesis(rng, n, time.Now())
}

func TestTriggerNowPersistsGenomesAndCycle(t *testing.T) {
	store := &fakeStore{}
	population := seedPopulation(rand.New(rand.NewSource(1)), 10)
	s, bus := newTestScheduler(t, store, population)
	sub := bus.Subscribe(16, events.KindEvolutionDone)

	if err := s.TriggerNow(context.Background()); err != nil {
		t.Fatalf("TriggerNow() error = %v", err)
	}

	store.mu.Lock()
	savedGenomes := len(store.savedGenomes)
	savedCycles := len(store.savedCycles)
	store.mu.Unlock()

	if savedGenomes == 0 {
		t.Fatal("TriggerNow() did not persist any genomes")
	}
	if savedCycles != 1 {
		t.Fatalf("TriggerNow() persisted %d cycles, want 1", savedCycles)
	}

	select {
	case ev := <-sub.Events():
		if ev.Kind != events.KindEvolutionDone {
			t.Fatalf("event kind = %s, want evolution:done", ev.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("TriggerNow() did not publish an evolution:done event")
	}
}

func TestTriggerNowRejectsOverlappingCycles(t *testing.T) {
	store := &fakeStore{}
	population := seedPopulation(rand.New(rand.NewSource(2)), 10)
	s, _ := newTestScheduler(t, store, population)

	s.Start(context.Background())
	defer s.Stop()

	var wg sync.WaitGroup
	errs := make([]error, 2)
	wg.Add(2)
	for i := 0; i < 2; i++ {
		i := i
		go func() {
			defer wg.Done()
			errs[i] = s.TriggerNow(context.Background())
		}()
	}
	wg.Wait()

	overlapped := errs[0] == scheduler.ErrCycleInProgress || errs[1] == scheduler.ErrCycleInProgress
	if !overlapped {
		t.Skip("both TriggerNow calls happened to run sequentially; overlap guard exercised only under contention")
	}
}

func TestTriggerNowOnEmptyPopulationSkipsWithoutPanicking(t *testing.T) {
	store := &fakeStore{}
	s, bus := newTestScheduler(t, store, nil)
	sub := bus.Subscribe(16, events.KindEvolutionDone)

	if err := s.TriggerNow(context.Background()); err != nil {
		t.Fatalf("TriggerNow() error = %v, want nil on an empty population", err)
	}

	store.mu.Lock()
	savedCycles := len(store.savedCycles)
	store.mu.Unlock()
	if savedCycles != 0 {
		t.Fatalf("TriggerNow() persisted %d cycles for an empty population, want 0", savedCycles)
	}

	select {
	case ev := <-sub.Events():
		t.Fatalf("TriggerNow() published %s for an empty population, want no evolution:done", ev.Kind)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestTriggerNowPropagatesCycleSaveErrorAndPublishesEvolutionError(t *testing.T) {
	store := &fakeStore{saveCycleErr: context.DeadlineExceeded}
	population := seedPopulation(rand.New(rand.NewSource(3)), 10)
	s, bus := newTestScheduler(t, store, population)
	sub := bus.Subscribe(16, events.KindEvolutionError)

	err := s.TriggerNow(context.Background())
	if err == nil {
		t.Fatal("TriggerNow() error = nil, want the store's SaveCycle error propagated")
	}

	select {
	case ev := <-sub.Events():
		if ev.Kind != events.KindEvolutionError {
			t.Fatalf("event kind = %s, want evolution:error", ev.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("TriggerNow() did not publish an evolution:error event on a persistence failure")
	}
}
