// Package config loads the typed application configuration via viper,
// finishing the teacher's go.mod require of github.com/spf13/viper,
// which the teacher's own cmd/server/main.go never wired up (it reads
// flag-only config). Precedence, highest first: CLI flags, environment
// variables (TRADESIM_ prefix), config file, documented defaults.
package config

import (
	"strings"

	"github.com/atlas-desktop/trading-backend/pkg/types"
	"github.com/spf13/viper"
)

// Defaults returns the documented default configuration.
func Defaults() types.Config {
	return types.Config{
		LogLevel: "info",
		Genetic: types.GeneticConfig{
			PopulationSize:  50,
			SurvivorPercent: 0.2,
			DeadPercent:     0.1,
			MutationRate:    0.3,
			CrossoverRate:   0.7,
		},
		Treasury: types.TreasuryConfig{
			TotalSol:                 100,
			ReservePercent:           0.2,
			MaxAllocationPerStrategy: 10,
			WalletPerAgent:           1,
		},
		Engine: types.EngineConfig{
			MaxConcurrentTrades: 20,
			FullScanInterval:    60_000_000_000,
			MonitorPollInterval: 20_000_000_000,
			Slippage:            0.02,
			PaperTrading:        true,
		},
		Scheduler: types.SchedulerConfig{CronSpec: "0 0 * * *"},
		Server: types.ServerConfig{
			Host: "0.0.0.0", Port: 8080, WebSocketPath: "/ws",
			ReadTimeout: 15_000_000_000, WriteTimeout: 15_000_000_000, EnableMetrics: true,
		},
		Storage:   types.StorageConfig{Driver: "sqlite", DSN: "./tradesim.db"},
		Feed:      types.FeedConfig{Mode: "simulated"},
	}
}

// Load reads configFile (if non-empty), overlays TRADESIM_-prefixed
// environment variables, and unmarshals into a types.Config seeded
// with Defaults().
func Load(configFile string) (types.Config, error) {
	cfg := Defaults()

	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v, cfg)

	v.SetEnvPrefix("TRADESIM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return cfg, err
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// setDefaults seeds viper's own default layer from a types.Config so
// that an absent config file or env var still resolves to the
// documented defaults after Unmarshal.
func setDefaults(v *viper.Viper, cfg types.Config) {
	v.SetDefault("logLevel", cfg.LogLevel)
	v.SetDefault("genetic.populationSize", cfg.Genetic.PopulationSize)
	v.SetDefault("genetic.survivorPercent", cfg.Genetic.SurvivorPercent)
	v.SetDefault("genetic.deadPercent", cfg.Genetic.DeadPercent)
	v.SetDefault("genetic.mutationRate", cfg.Genetic.MutationRate)
	v.SetDefault("genetic.crossoverRate", cfg.Genetic.CrossoverRate)
	v.SetDefault("treasury.totalSol", cfg.Treasury.TotalSol)
	v.SetDefault("treasury.reservePercent", cfg.Treasury.ReservePercent)
	v.SetDefault("treasury.maxAllocationPerStrategy", cfg.Treasury.MaxAllocationPerStrategy)
	v.SetDefault("treasury.walletPerAgent", cfg.Treasury.WalletPerAgent)
	v.SetDefault("engine.maxConcurrentTrades", cfg.Engine.MaxConcurrentTrades)
	v.SetDefault("engine.fullScanInterval", cfg.Engine.FullScanInterval)
	v.SetDefault("engine.monitorPollInterval", cfg.Engine.MonitorPollInterval)
	v.SetDefault("engine.slippage", cfg.Engine.Slippage)
	v.SetDefault("engine.paperTrading", cfg.Engine.PaperTrading)
	v.SetDefault("scheduler.cronSpec", cfg.Scheduler.CronSpec)
	v.SetDefault("server.host", cfg.Server.Host)
	v.SetDefault("server.port", cfg.Server.Port)
	v.SetDefault("server.webSocketPath", cfg.Server.WebSocketPath)
	v.SetDefault("server.readTimeout", cfg.Server.ReadTimeout)
	v.SetDefault("server.writeTimeout", cfg.Server.WriteTimeout)
	v.SetDefault("server.enableMetrics", cfg.Server.EnableMetrics)
	v.SetDefault("storage.driver", cfg.Storage.Driver)
	v.SetDefault("storage.dsn", cfg.Storage.DSN)
	v.SetDefault("feed.mode", cfg.Feed.Mode)
	v.SetDefault("feed.streamUrl", cfg.Feed.StreamURL)
}
