// Package metrics registers the prometheus collectors the simulator
// exposes on /metrics, finishing the teacher's go.mod require of
// github.com/prometheus/client_golang, which the teacher's own code
// never wired up.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles every collector the simulator updates.
type Metrics struct {
	EvolutionCycles   prometheus.Counter
	BirthsTotal       prometheus.Counter
	DeathsTotal       prometheus.Counter
	OpenPositions     prometheus.Gauge
	TreasuryTotalSol  prometheus.Gauge
	TreasuryLockedSol prometheus.Gauge
	TradesOpenedTotal prometheus.Counter
	TradesClosedTotal *prometheus.CounterVec
	BestFitness       prometheus.Gauge
}

// New registers every collector against the default registerer. Call
// once at startup.
func New() *Metrics {
	return &Metrics{
		EvolutionCycles: promauto.NewCounter(prometheus.CounterOpts{
			Name: "simulator_evolution_cycles_total",
			Help: "Total number of evolution cycles run.",
		}),
		BirthsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "simulator_strategy_births_total",
			Help: "Total number of strategies born via breeding.",
		}),
		DeathsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "simulator_strategy_deaths_total",
			Help: "Total number of strategies retired as dead.",
		}),
		OpenPositions: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "simulator_open_positions",
			Help: "Current number of open positions across all strategies.",
		}),
		TreasuryTotalSol: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "simulator_treasury_total_sol",
			Help: "Current total treasury capital, in SOL.",
		}),
		TreasuryLockedSol: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "simulator_treasury_locked_sol",
			Help: "Current treasury capital locked in open positions, in SOL.",
		}),
		TradesOpenedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "simulator_trades_opened_total",
			Help: "Total number of trades opened.",
		}),
		TradesClosedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "simulator_trades_closed_total",
			Help: "Total number of trades closed, by exit reason.",
		}, []string{"reason"}),
		BestFitness: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "simulator_best_fitness",
			Help: "Fitness score of the best strategy in the current population.",
		}),
	}
}
