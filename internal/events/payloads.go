package events

import "github.com/atlas-desktop/trading-backend/pkg/types"

// TokenDiscovered accompanies KindTokenDiscovered.
type TokenDiscovered struct {
	Token *types.TokenSnapshot
}

// SignalGenerated accompanies KindSignalGenerated.
type SignalGenerated struct {
	StrategyID string
	Token      *types.TokenSnapshot
	Score      int
	Reasons    []string
}

// TradeOpened accompanies KindTradeOpened.
type TradeOpened struct {
	Trade *types.Trade
}

// TradeClosed accompanies KindTradeClosed.
type TradeClosed struct {
	Trade *types.Trade
}

// PositionUpdated accompanies KindPositionUpdated.
type PositionUpdated struct {
	Position *types.Position
}

// EngineStarted accompanies KindEngineStarted and KindSimulatorStarted.
type EngineStarted struct {
	Mode string
}

// EngineStopped accompanies KindEngineStopped and KindSimulatorStopped.
type EngineStopped struct {
	Reason string
}

// ErrorOccurred accompanies KindError.
type ErrorOccurred struct {
	Component string
	Err       error
}

// TreasuryUpdated accompanies KindTreasuryUpdated.
type TreasuryUpdated struct {
	Treasury types.Treasury
}

// StrategiesLoaded accompanies KindStrategiesLoaded.
type StrategiesLoaded struct {
	Count int
}

// EvolutionStarted accompanies KindEvolutionStarted.
type EvolutionStarted struct {
	Generation int
}

// EvolutionBirths accompanies KindEvolutionBirths.
type EvolutionBirths struct {
	Children []*types.StrategyGenome
}

// EvolutionDeaths accompanies KindEvolutionDeaths.
type EvolutionDeaths struct {
	Dead []*types.StrategyGenome
}

// EvolutionCompleted accompanies KindEvolutionDone.
type EvolutionCompleted struct {
	Cycle *types.EvolutionCycle
}

// EvolutionFailed accompanies KindEvolutionError.
type EvolutionFailed struct {
	Err error
}
