// Package registry holds the live in-memory population of strategy
// genomes shared between the trading engine, the scheduler and the
// API layer. It is the single place the population's membership
// changes, guarded by one mutex, matching the coarser-lock allowance
// the treasury manager also takes. Genomes are shared pointers: the
// position monitor and the genetic engine update their fields in place.
package registry

import (
	"sort"
	"sync"

	"github.com/atlas-desktop/trading-backend/pkg/types"
)

// Registry is the process's live genome population.
type Registry struct {
	mu      sync.RWMutex
	genomes map[string]*types.StrategyGenome
}

// New constructs an empty Registry.
func New() *Registry {
	return &Registry{genomes: make(map[string]*types.StrategyGenome)}
}

// Load replaces the entire population, e.g. from storage at startup.
func (r *Registry) Load(genomes []*types.StrategyGenome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.genomes = make(map[string]*types.StrategyGenome, len(genomes))
	for _, g := range genomes {
		r.genomes[g.ID] = g
	}
}

// Put inserts or replaces a single genome.
func (r *Registry) Put(g *types.StrategyGenome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.genomes[g.ID] = g
}

// Get returns a genome by id.
func (r *Registry) Get(id string) (*types.StrategyGenome, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.genomes[id]
	return g, ok
}

// All returns every genome, sorted by id for stable iteration order.
func (r *Registry) All() []*types.StrategyGenome {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*types.StrategyGenome, 0, len(r.genomes))
	for _, g := range r.genomes {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Active returns every non-dead genome, sorted by id. Satisfies
// engine.GenomeSource.
func (r *Registry) Active() []*types.StrategyGenome {
	all := r.All()
	out := make([]*types.StrategyGenome, 0, len(all))
	for _, g := range all {
		if !g.IsDead() {
			out = append(out, g)
		}
	}
	return out
}

// ActiveIDs returns the ids of every non-dead genome, for treasury
// allocation.
func (r *Registry) ActiveIDs() []string {
	active := r.Active()
	ids := make([]string, len(active))
	for i, g := range active {
		ids[i] = g.ID
	}
	return ids
}

// Len returns the population size.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.genomes)
}
