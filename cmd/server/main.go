// Package main provides the entry point for the trading simulator
// server: config and storage load, then genetic engine, treasury,
// execution adapter, feed, position monitor, trading engine,
// scheduler and API server wired up in dependency order. Shutdown stops
// the scheduler, then the trading engine (which stops the monitor and
// feed), then the API server, then closes storage.
package main

import (
	"context"
	"flag"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/atlas-desktop/trading-backend/internal/config"
	"github.com/atlas-desktop/trading-backend/internal/engine"
	"github.com/atlas-desktop/trading-backend/internal/events"
	"github.com/atlas-desktop/trading-backend/internal/execution"
	"github.com/atlas-desktop/trading-backend/internal/feed"
	"github.com/atlas-desktop/trading-backend/internal/genetic"
	"github.com/atlas-desktop/trading-backend/internal/metrics"
	"github.com/atlas-desktop/trading-backend/internal/monitor"
	"github.com/atlas-desktop/trading-backend/internal/registry"
	"github.com/atlas-desktop/trading-backend/internal/scheduler"
	"github.com/atlas-desktop/trading-backend/internal/storage"
	"github.com/atlas-desktop/trading-backend/internal/api"
	"github.com/atlas-desktop/trading-backend/internal/treasury"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	configFile := flag.String("config", "", "Path to a YAML config file")
	logLevel := flag.String("log-level", "", "Override the configured log level")
	paper := flag.Bool("paper", true, "Run in paper trading mode")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		// Fatal: a malformed config file aborts startup per the
		// validation/fatal error taxonomy.
		panic(err)
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	cfg.Engine.PaperTrading = *paper

	logger := setupLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("starting trading simulator",
		zap.Bool("paperTrading", cfg.Engine.PaperTrading),
		zap.Int("populationSize", cfg.Genetic.PopulationSize),
	)

	store, err := storage.Open(logger, cfg.Storage.DSN)
	if err != nil {
		logger.Fatal("failed to open storage", zap.Error(err))
	}

	reg := registry.New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	existing, err := store.ListGenomes(ctx)
	if err != nil {
		logger.Fatal("failed to load genomes", zap.Error(err))
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	geneticEngine := genetic.NewEngine(logger, genetic.Config{
		PopulationSize:  cfg.Genetic.PopulationSize,
		SurvivorPercent: cfg.Genetic.SurvivorPercent,
		DeadPercent:     cfg.Genetic.DeadPercent,
		MutationRate:    cfg.Genetic.MutationRate,
		CrossoverRate:   cfg.Genetic.CrossoverRate,
	})

	if len(existing) == 0 {
		logger.Info("no persisted genomes found, seeding genesis population")
		genesis := geneticEngine.GenerateGenesis(rng, cfg.Genetic.PopulationSize, time.Now())
		for _, g := range genesis {
			if err := store.SaveGenome(ctx, g); err != nil {
				logger.Error("failed to persist genesis genome", zap.String("id", g.ID), zap.Error(err))
				continue
			}
			reg.Put(g)
		}
	} else {
		reg.Load(existing)
	}

	bus := events.New(logger)
	bus.Publish(events.KindStrategiesLoaded, events.StrategiesLoaded{Count: reg.Len()})

	trsy := treasury.New(logger, decimal.NewFromFloat(cfg.Treasury.TotalSol), cfg.Treasury.ReservePercent,
		decimal.NewFromFloat(cfg.Treasury.MaxAllocationPerStrategy))
	trsy.AllocateToStrategies(reg.ActiveIDs())

	var adapter execution.Adapter = execution.NewPaperAdapter(logger, cfg.Engine.Slippage)

	var tokenFeed feed.Feed
	if cfg.Feed.Mode == "simulated" {
		tokenFeed = feed.NewSimulated(logger, feed.DefaultSimulatedConfig())
	} else {
		logger.Fatal("feed mode not supported in this build", zap.String("mode", cfg.Feed.Mode))
	}

	mon := monitor.New(logger, monitor.Config{
		PollInterval: cfg.Engine.MonitorPollInterval,
	}, tokenFeed, adapter, trsy, bus)

	tradingEngine := engine.New(logger, engine.Config{
		MaxConcurrentTrades: cfg.Engine.MaxConcurrentTrades,
		FullScanInterval:    cfg.Engine.FullScanInterval,
	}, reg, tokenFeed, adapter, trsy, mon, bus)

	evoScheduler := scheduler.New(logger, scheduler.Config{Spec: cfg.Scheduler.CronSpec},
		geneticEngine, reg, trsy, store, bus, rng)

	if cfg.Server.EnableMetrics {
		_ = metrics.New()
	}
	apiServer := api.NewServer(logger, cfg.Server, reg, trsy, store, bus)

	if err := tradingEngine.Start(ctx); err != nil {
		logger.Fatal("failed to start trading engine", zap.Error(err))
	}
	if err := evoScheduler.Start(ctx); err != nil {
		logger.Fatal("failed to start scheduler", zap.Error(err))
	}
	go func() {
		if err := apiServer.Start(ctx); err != nil {
			logger.Error("api server error", zap.Error(err))
		}
	}()

	logger.Info("trading simulator started",
		zap.String("http", "http://"+cfg.Server.Host+":"+portString(cfg.Server.Port)+"/api/v1"),
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	logger.Info("shutdown signal received")

	cancel()
	evoScheduler.Stop()
	tradingEngine.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := apiServer.Stop(shutdownCtx); err != nil {
		logger.Error("error during api server shutdown", zap.Error(err))
	}

	if err := store.Close(); err != nil {
		logger.Error("error closing storage", zap.Error(err))
	}

	logger.Info("trading simulator stopped")
}

func portString(p int) string {
	if p == 0 {
		return "8080"
	}
	digits := []byte{}
	for p > 0 {
		digits = append([]byte{byte('0' + p%10)}, digits...)
		p /= 10
	}
	return string(digits)
}

func setupLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	cfg := zap.Config{
		Level:       zap.NewAtomicLevelAt(zapLevel),
		Development: false,
		Encoding:    "console",
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "time",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			MessageKey:     "msg",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.CapitalColorLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.StringDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	return logger
}
