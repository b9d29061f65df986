package metrics_test

import (
	"testing"

	"github.com/atlas-desktop/trading-backend/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// New registers every collector against the default registerer, so this
// package exercises it exactly once across all its tests to avoid a
// duplicate-registration panic on the second call.
func TestNewRegistersCollectorsAndTracksUpdates(t *testing.T) {
	m := metrics.New()

	m.EvolutionCycles.Inc()
	m.BirthsTotal.Add(3)
	m.OpenPositions.Set(5)
	m.TradesClosedTotal.WithLabelValues("take_profit").Inc()

	if got := testutil.ToFloat64(m.EvolutionCycles); got != 1 {
		t.Errorf("EvolutionCycles = %f, want 1", got)
	}
	if got := testutil.ToFloat64(m.BirthsTotal); got != 3 {
		t.Errorf("BirthsTotal = %f, want 3", got)
	}
	if got := testutil.ToFloat64(m.OpenPositions); got != 5 {
		t.Errorf("OpenPositions = %f, want 5", got)
	}
	if got := testutil.ToFloat64(m.TradesClosedTotal.WithLabelValues("take_profit")); got != 1 {
		t.Errorf("TradesClosedTotal{reason=take_profit} = %f, want 1", got)
	}
}
