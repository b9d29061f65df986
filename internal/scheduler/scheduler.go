// Package scheduler drives the evolution cycle on a clock. The default
// trigger is a daily cron entry; a manual one-shot trigger is exposed
// for operator-initiated cycles. Grounded on the teacher's
// internal/events ticker-driven loop shape and on
// github.com/robfig/cron/v3, the cron library carried from
// other_examples/manifests/aristath-sentinel's go.mod.
package scheduler

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/atlas-desktop/trading-backend/internal/events"
	"github.com/atlas-desktop/trading-backend/internal/genetic"
	"github.com/atlas-desktop/trading-backend/internal/registry"
	"github.com/atlas-desktop/trading-backend/internal/treasury"
	"github.com/atlas-desktop/trading-backend/pkg/types"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// ErrCycleInProgress is returned by TriggerNow when a cycle is already
// running.
var ErrCycleInProgress = errors.New("scheduler: evolution cycle already in progress")

// Store is the persistence boundary the scheduler writes births, deaths
// and cycle records through.
type Store interface {
	SaveGenome(ctx context.Context, g *types.StrategyGenome) error
	SaveCycle(ctx context.Context, c *types.EvolutionCycle) error
}

// Config controls the cron expression for the automatic trigger.
type Config struct {
	// Spec is a standard 5-field cron expression. The documented default
	// is daily at midnight.
	Spec string
}

// DefaultConfig returns the documented daily-midnight trigger.
func DefaultConfig() Config {
	return Config{Spec: "0 0 * * *"}
}

// Scheduler triggers genetic.Engine.RunCycle on a cron schedule or on
// demand, refusing to start a second cycle while one is already
// running.
type Scheduler struct {
	logger *zap.Logger
	cfg    Config
	engine *genetic.Engine
	reg    *registry.Registry
	trsy   *treasury.Manager
	store  Store
	bus    *events.Bus
	rng    *rand.Rand

	cron *cron.Cron

	mu        sync.Mutex
	isRunning bool
}

// New constructs a Scheduler. rng must not be shared concurrently with
// any other caller; the scheduler is the only writer of the
// population's generation, so this is safe as long as nothing else
// also breeds genomes from the same source.
func New(logger *zap.Logger, cfg Config, engine *genetic.Engine, reg *registry.Registry, trsy *treasury.Manager, store Store, bus *events.Bus, rng *rand.Rand) *Scheduler {
	return &Scheduler{
		logger: logger,
		cfg:    cfg,
		engine: engine,
		reg:    reg,
		trsy:   trsy,
		store:  store,
		bus:    bus,
		rng:    rng,
		cron:   cron.New(),
	}
}

// Start registers the cron trigger and begins running it in the
// background.
func (s *Scheduler) Start(ctx context.Context) error {
	spec := s.cfg.Spec
	if spec == "" {
		spec = DefaultConfig().Spec
	}
	_, err := s.cron.AddFunc(spec, func() {
		if err := s.TriggerNow(ctx); err != nil && !errors.Is(err, ErrCycleInProgress) {
			s.logger.Error("scheduled evolution cycle failed", zap.Error(err))
		}
	})
	if err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

// Stop halts the cron trigger. In-flight cycles run to completion.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// TriggerNow runs one evolution cycle immediately, refusing to overlap
// a cycle already in progress.
func (s *Scheduler) TriggerNow(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return ErrCycleInProgress
	}
	s.isRunning = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()
	}()

	population := s.reg.All()
	s.bus.Publish(events.KindEvolutionStarted, events.EvolutionStarted{Generation: s.engine.CurrentGeneration()})

	newPop, cycle := s.engine.RunCycle(s.rng, population, time.Now())
	if cycle == nil {
		s.logger.Warn("evolution cycle skipped: empty population")
		return nil
	}

	var births, deaths []*types.StrategyGenome
	for _, g := range newPop {
		if err := s.store.SaveGenome(ctx, g); err != nil {
			s.logger.Error("failed to persist genome", zap.String("id", g.ID), zap.Error(err))
		}
		s.reg.Put(g)
		for _, pid := range cycle.NewlyBorn {
			if pid == g.ID {
				births = append(births, g)
				break
			}
		}
	}
	for _, id := range cycle.Dead {
		if g, ok := s.reg.Get(id); ok {
			deaths = append(deaths, g)
		}
	}

	if err := s.store.SaveCycle(ctx, cycle); err != nil {
		s.logger.Error("failed to persist evolution cycle", zap.Error(err))
		s.bus.Publish(events.KindEvolutionError, events.EvolutionFailed{Err: err})
		return err
	}

	s.trsy.AllocateToStrategies(s.reg.ActiveIDs())

	if len(births) > 0 {
		s.bus.Publish(events.KindEvolutionBirths, events.EvolutionBirths{Children: births})
	}
	if len(deaths) > 0 {
		s.bus.Publish(events.KindEvolutionDeaths, events.EvolutionDeaths{Dead: deaths})
	}
	s.bus.Publish(events.KindEvolutionDone, events.EvolutionCompleted{Cycle: cycle})
	s.bus.Publish(events.KindTreasuryUpdated, events.TreasuryUpdated{Treasury: s.trsy.Snapshot()})

	s.logger.Info("evolution cycle completed",
		zap.Int("generation", cycle.Generation),
		zap.Int("survivors", len(cycle.Survivors)),
		zap.Int("dead", len(cycle.Dead)),
		zap.Int("newlyBorn", len(cycle.NewlyBorn)),
		zap.Float64("bestFitness", cycle.BestFitness),
	)
	return nil
}
