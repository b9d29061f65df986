// Command seed populates an empty strategy database with a genesis
// population, matching the teacher's convention of one small
// single-purpose binary per operational task.
package main

import (
	"context"
	"flag"
	"math/rand"
	"time"

	"github.com/atlas-desktop/trading-backend/internal/config"
	"github.com/atlas-desktop/trading-backend/internal/genetic"
	"github.com/atlas-desktop/trading-backend/internal/storage"
	"go.uber.org/zap"
)

func main() {
	configFile := flag.String("config", "", "Path to a YAML config file")
	force := flag.Bool("force", false, "Seed even if genomes already exist, adding alongside them")
	flag.Parse()

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	cfg, err := config.Load(*configFile)
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	store, err := storage.Open(logger, cfg.Storage.DSN)
	if err != nil {
		logger.Fatal("failed to open storage", zap.Error(err))
	}
	defer store.Close()

	ctx := context.Background()
	existing, err := store.ListGenomes(ctx)
	if err != nil {
		logger.Fatal("failed to list genomes", zap.Error(err))
	}
	if len(existing) > 0 && !*force {
		logger.Info("genomes already exist, pass --force to seed anyway", zap.Int("count", len(existing)))
		return
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	eng := genetic.NewEngine(logger, genetic.Config{PopulationSize: cfg.Genetic.PopulationSize})
	genesis := eng.GenerateGenesis(rng, cfg.Genetic.PopulationSize, time.Now())

	for _, g := range genesis {
		if err := store.SaveGenome(ctx, g); err != nil {
			logger.Error("failed to persist genome", zap.String("id", g.ID), zap.Error(err))
			continue
		}
	}
	logger.Info("seeded genesis population", zap.Int("count", len(genesis)))
}
