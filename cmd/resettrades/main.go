// Command resettrades clears trade history and performance track
// record while leaving the evolving strategy population and treasury
// intact.
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

	if err := store.ResetTrades(context.Background()); err != nil {
		logger.Fatal("failed to reset trades", zap.Error(err))
	}
	logger.Info("trade history, evolution cycles and genome performance cleared")
}
