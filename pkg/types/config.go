package types

import "time"

// GeneticConfig parameterizes the genetic engine's selection and
// variation operators.
type GeneticConfig struct {
	PopulationSize  int     `mapstructure:"populationSize" json:"populationSize"`
	SurvivorPercent float64 `mapstructure:"survivorPercent" json:"survivorPercent"`
	DeadPercent     float64 `mapstructure:"deadPercent" json:"deadPercent"`
	MutationRate    float64 `mapstructure:"mutationRate" json:"mutationRate"`
	CrossoverRate   float64 `mapstructure:"crossoverRate" json:"crossoverRate"`
}

// TreasuryConfig seeds the treasury at startup.
type TreasuryConfig struct {
	TotalSol                 float64 `mapstructure:"totalSol" json:"totalSol"`
	ReservePercent           float64 `mapstructure:"reservePercent" json:"reservePercent"`
	MaxAllocationPerStrategy float64 `mapstructure:"maxAllocationPerStrategy" json:"maxAllocationPerStrategy"`
	WalletPerAgent           float64 `mapstructure:"walletPerAgent" json:"walletPerAgent"`
}

// EngineConfig controls the trading engine's concurrency caps and polling
// cadences.
type EngineConfig struct {
	MaxConcurrentTrades int           `mapstructure:"maxConcurrentTrades" json:"maxConcurrentTrades"`
	FullScanInterval    time.Duration `mapstructure:"fullScanInterval" json:"fullScanInterval"`
	MonitorPollInterval time.Duration `mapstructure:"monitorPollInterval" json:"monitorPollInterval"`
	Slippage            float64       `mapstructure:"slippage" json:"slippage"`
	PaperTrading        bool          `mapstructure:"paperTrading" json:"paperTrading"`
}

// SchedulerConfig controls the evolution trigger.
type SchedulerConfig struct {
	CronSpec string `mapstructure:"cronSpec" json:"cronSpec"`
}

// ServerConfig controls the HTTP/WebSocket UI fan-out surface.
type ServerConfig struct {
	Host          string        `mapstructure:"host" json:"host"`
	Port          int           `mapstructure:"port" json:"port"`
	WebSocketPath string        `mapstructure:"webSocketPath" json:"webSocketPath"`
	ReadTimeout   time.Duration `mapstructure:"readTimeout" json:"readTimeout"`
	WriteTimeout  time.Duration `mapstructure:"writeTimeout" json:"writeTimeout"`
	EnableMetrics bool          `mapstructure:"enableMetrics" json:"enableMetrics"`
}

// StorageConfig controls the persistence layer.
type StorageConfig struct {
	Driver string `mapstructure:"driver" json:"driver"` // "sqlite", "memory"
	DSN    string `mapstructure:"dsn" json:"dsn"`
}

// FeedConfig controls the external token feed.
type FeedConfig struct {
	Mode      string `mapstructure:"mode" json:"mode"` // "simulated", "websocket"
	StreamURL string `mapstructure:"streamUrl" json:"streamUrl"`
}

// Config is the top-level application configuration, loaded by
// internal/config via viper.
type Config struct {
	LogLevel  string          `mapstructure:"logLevel" json:"logLevel"`
	Genetic   GeneticConfig   `mapstructure:"genetic" json:"genetic"`
	Treasury  TreasuryConfig  `mapstructure:"treasury" json:"treasury"`
	Engine    EngineConfig    `mapstructure:"engine" json:"engine"`
	Scheduler SchedulerConfig `mapstructure:"scheduler" json:"scheduler"`
	Server    ServerConfig    `mapstructure:"server" json:"server"`
	Storage   StorageConfig   `mapstructure:"storage" json:"storage"`
	Feed      FeedConfig      `mapstructure:"feed" json:"feed"`
}
