// Package feed provides the trading engine's view of new-token
// discovery and live snapshots. The simulated implementation generates
// a synthetic token stream with a random-walk price series, grounded on
// the teacher's internal/data.Store.generateSampleData random-walk
// approach; a websocket-backed implementation can satisfy the same
// Feed interface against a real venue.
package feed

import (
	"context"
	"time"

	"github.com/atlas-desktop/trading-backend/pkg/types"
)

// Feed is the boundary the trading engine and position monitor consume.
// Subscribe delivers newly discovered tokens; Snapshot is a best-effort
// point lookup of a token's current state, used by the position
// monitor on every tick.
type Feed interface {
	Subscribe(ctx context.Context) <-chan *types.TokenSnapshot
	Snapshot(ctx context.Context, address string) (*types.TokenSnapshot, bool)
	Start(ctx context.Context) error
	Stop()
}

// Clock abstracts time.Now for deterministic tests.
type Clock func() time.Time
