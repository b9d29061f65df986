// Command reset clears trades, evolution cycles and treasury history
// and empties the graveyard, then rebuilds a fresh treasury snapshot
// for the surviving population. Use seed beforehand if the population
// itself also needs to start over.
package main

import (
	"context"
	"flag"

	"github.com/atlas-desktop/trading-backend/internal/config"
	"github.com/atlas-desktop/trading-backend/internal/storage"
	"go.uber.org/zap"
)

func main() {
	configFile := flag.String("config", "", "Path to a YAML config file")
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

	if err := store.Reset(context.Background(), cfg.Treasury.WalletPerAgent); err != nil {
		logger.Fatal("failed to reset storage", zap.Error(err))
	}
	logger.Info("storage reset: trades, cycles, treasury and graveyard cleared; treasury rebuilt")
}
