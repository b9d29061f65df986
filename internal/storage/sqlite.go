// Package storage persists genomes, trades and evolution cycles to
// sqlite via plain database/sql, grounded on the raw-SQL (no ORM)
// style of other_examples' SynapseStrike strategy store: hand-written
// CREATE TABLE/INSERT/SELECT statements, no query builder.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/atlas-desktop/trading-backend/pkg/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const schema = `
CREATE TABLE IF NOT EXISTS genomes (
	id TEXT PRIMARY KEY,
	generation INTEGER NOT NULL,
	parent_ids TEXT NOT NULL,
	genes BLOB NOT NULL,
	performance BLOB NOT NULL,
	status TEXT NOT NULL,
	archetype TEXT NOT NULL,
	display_name TEXT NOT NULL DEFAULT '',
	birth_timestamp DATETIME NOT NULL,
	death_timestamp DATETIME
);
CREATE TABLE IF NOT EXISTS trades (
	id TEXT PRIMARY KEY,
	strategy_id TEXT NOT NULL,
	token_address TEXT NOT NULL,
	token_name TEXT NOT NULL,
	token_symbol TEXT NOT NULL,
	entry_price REAL NOT NULL,
	amount_sol TEXT NOT NULL,
	take_profit_price REAL NOT NULL,
	stop_loss_price REAL NOT NULL,
	time_exit_timestamp DATETIME NOT NULL,
	is_paper_trade BOOLEAN NOT NULL,
	opened_at DATETIME NOT NULL,
	closed_at DATETIME,
	exit_price REAL,
	pnl_sol TEXT,
	pnl_percent REAL,
	exit_reason TEXT
);
CREATE INDEX IF NOT EXISTS idx_trades_strategy ON trades(strategy_id);
CREATE INDEX IF NOT EXISTS idx_trades_open ON trades(closed_at);
CREATE TABLE IF NOT EXISTS evolution_cycles (
	generation INTEGER PRIMARY KEY,
	timestamp DATETIME NOT NULL,
	survivors TEXT NOT NULL,
	dead TEXT NOT NULL,
	newly_born TEXT NOT NULL,
	avg_fitness REAL NOT NULL,
	best_fitness REAL NOT NULL,
	total_pnl_sol REAL NOT NULL,
	best_strategy_id TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS treasury_snapshots (
	taken_at DATETIME PRIMARY KEY,
	total_sol TEXT NOT NULL,
	available_to_trade TEXT NOT NULL,
	locked_in_positions TEXT NOT NULL,
	total_pnl TEXT NOT NULL
);
`

// Store is the sqlite-backed repository for strategies, trades,
// evolution cycles and treasury snapshots.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

// Open opens (and migrates) the sqlite database at path.
func Open(logger *zap.Logger, path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("storage: open: %w", err)
	}
	db.SetMaxOpenConns(1) // sqlite allows one writer; serialize through database/sql's pool.

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: migrate: %w", err)
	}
	return &Store{db: db, logger: logger}, nil
}

// Close releases the underlying connection.
func (s *Store) Close() error { return s.db.Close() }

// SaveGenome upserts a genome record.
func (s *Store) SaveGenome(ctx context.Context, g *types.StrategyGenome) error {
	genesBlob, err := EncodeGenes(g.Genes)
	if err != nil {
		return err
	}
	perfBlob, err := EncodePerformance(g.Performance)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO genomes (id, generation, parent_ids, genes, performance, status, archetype, display_name, birth_timestamp, death_timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			generation=excluded.generation, parent_ids=excluded.parent_ids, genes=excluded.genes,
			performance=excluded.performance, status=excluded.status, archetype=excluded.archetype,
			display_name=excluded.display_name, death_timestamp=excluded.death_timestamp
	`, g.ID, g.Generation, joinIDs(g.ParentIDs), genesBlob, perfBlob, string(g.Status),
		string(g.Archetype), g.DisplayName, g.BirthTimestamp, nullableTime(g.DeathTimestamp))
	return err
}

// ListGenomes returns every genome whose row decodes cleanly. A row
// that fails to decode is logged and skipped rather than aborting the
// whole load.
func (s *Store) ListGenomes(ctx context.Context) ([]*types.StrategyGenome, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, generation, parent_ids, genes, performance, status, archetype, display_name, birth_timestamp, death_timestamp
		FROM genomes
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*types.StrategyGenome
	for rows.Next() {
		var (
			id, parentIDs, status, archetype, displayName string
			generation                                    int
			genesBlob, perfBlob                           []byte
			birth                                         time.Time
			death                                          sql.NullTime
		)
		if err := rows.Scan(&id, &generation, &parentIDs, &genesBlob, &perfBlob, &status, &archetype, &displayName, &birth, &death); err != nil {
			s.logger.Warn("genome row scan failed, skipping", zap.Error(err))
			continue
		}
		genes, err := DecodeGenes(genesBlob)
		if err != nil {
			s.logger.Warn("genome row invalid genes, skipping", zap.String("id", id), zap.Error(err))
			continue
		}
		perf, err := DecodePerformance(perfBlob)
		if err != nil {
			s.logger.Warn("genome row invalid performance, skipping", zap.String("id", id), zap.Error(err))
			continue
		}
		g := &types.StrategyGenome{
			ID:             id,
			Generation:     generation,
			ParentIDs:      splitIDs(parentIDs),
			Genes:          genes,
			Performance:    perf,
			Status:         types.Status(status),
			Archetype:      types.Archetype(archetype),
			DisplayName:    displayName,
			BirthTimestamp: birth,
		}
		if death.Valid {
			t := death.Time
			g.DeathTimestamp = &t
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// SaveTrade upserts a trade record.
func (s *Store) SaveTrade(ctx context.Context, t *types.Trade) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO trades (id, strategy_id, token_address, token_name, token_symbol, entry_price, amount_sol,
			take_profit_price, stop_loss_price, time_exit_timestamp, is_paper_trade, opened_at,
			closed_at, exit_price, pnl_sol, pnl_percent, exit_reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			closed_at=excluded.closed_at, exit_price=excluded.exit_price, pnl_sol=excluded.pnl_sol,
			pnl_percent=excluded.pnl_percent, exit_reason=excluded.exit_reason
	`, t.ID, t.StrategyID, t.TokenAddr, t.TokenName, t.TokenSymbol, t.EntryPrice, t.AmountSol.String(),
		t.TakeProfitPrice, t.StopLossPrice, t.TimeExitTimestamp, t.IsPaperTrade, t.OpenedAt,
		nullableTime(t.ClosedAt), nullableFloat(t.ExitPrice), nullablePnL(t.PnLSol), nullableFloat(t.PnLPercent), nullableReason(t.ExitReason))
	return err
}

// OpenTrades returns every trade with no closed_at, for resuming
// position monitoring after a restart.
func (s *Store) OpenTrades(ctx context.Context) ([]*types.Trade, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, strategy_id, token_address, token_name, token_symbol, entry_price, amount_sol,
			take_profit_price, stop_loss_price, time_exit_timestamp, is_paper_trade, opened_at
		FROM trades WHERE closed_at IS NULL
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*types.Trade
	for rows.Next() {
		var t types.Trade
		var amountStr string
		if err := rows.Scan(&t.ID, &t.StrategyID, &t.TokenAddr, &t.TokenName, &t.TokenSymbol, &t.EntryPrice,
			&amountStr, &t.TakeProfitPrice, &t.StopLossPrice, &t.TimeExitTimestamp, &t.IsPaperTrade, &t.OpenedAt); err != nil {
			s.logger.Warn("trade row scan failed, skipping", zap.Error(err))
			continue
		}
		amt, err := decimal.NewFromString(amountStr)
		if err != nil {
			s.logger.Warn("trade row invalid amount, skipping", zap.String("id", t.ID), zap.Error(err))
			continue
		}
		t.AmountSol = amt
		out = append(out, &t)
	}
	return out, rows.Err()
}

// SaveCycle inserts an immutable evolution cycle record.
func (s *Store) SaveCycle(ctx context.Context, c *types.EvolutionCycle) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO evolution_cycles (generation, timestamp, survivors, dead, newly_born, avg_fitness, best_fitness, total_pnl_sol, best_strategy_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(generation) DO NOTHING
	`, c.Generation, c.Timestamp, joinIDs(c.Survivors), joinIDs(c.Dead), joinIDs(c.NewlyBorn),
		c.AvgFitness, c.BestFitness, c.TotalPnLSol, c.BestStrategyID)
	return err
}

// SaveTreasurySnapshot records a point-in-time treasury total for
// historical charting.
func (s *Store) SaveTreasurySnapshot(ctx context.Context, t types.Treasury, takenAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO treasury_snapshots (taken_at, total_sol, available_to_trade, locked_in_positions, total_pnl)
		VALUES (?, ?, ?, ?, ?)
	`, takenAt, t.TotalSol.String(), t.AvailableToTrade.String(), t.LockedInPositions.String(), t.TotalPnL.String())
	return err
}

// Reset clears trades, evolution cycles and treasury snapshots, empties
// the graveyard (dead genomes only; the active population survives),
// and rebuilds a fresh treasury snapshot at activeCount*walletPerAgent.
// Used by the reset CLI to start a fresh run against the same
// population.
func (s *Store) Reset(ctx context.Context, walletPerAgent float64) error {
	for _, table := range []string{"trades", "evolution_cycles", "treasury_snapshots"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("storage: reset %s: %w", table, err)
		}
	}
	if _, err := s.db.ExecContext(ctx, "DELETE FROM genomes WHERE status = ?", string(types.StatusDead)); err != nil {
		return fmt.Errorf("storage: reset genomes: %w", err)
	}

	var activeCount int
	row := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM genomes")
	if err := row.Scan(&activeCount); err != nil {
		return fmt.Errorf("storage: count active genomes: %w", err)
	}

	total := decimal.NewFromFloat(walletPerAgent).Mul(decimal.NewFromInt(int64(activeCount)))
	treasury := types.Treasury{TotalSol: total, AvailableToTrade: total, LockedInPositions: decimal.Zero, TotalPnL: decimal.Zero}
	if err := s.SaveTreasurySnapshot(ctx, treasury, time.Now()); err != nil {
		return fmt.Errorf("storage: rebuild treasury snapshot: %w", err)
	}
	return nil
}

// ResetTrades deletes every trade and evolution cycle record and resets
// every genome's performance to its genesis value, leaving the
// population and treasury intact. Used by the reset-trades CLI to
// re-run evolution from a clean track record without reseeding.
func (s *Store) ResetTrades(ctx context.Context) error {
	for _, table := range []string{"trades", "evolution_cycles"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("storage: reset %s: %w", table, err)
		}
	}

	freshPerf, err := EncodePerformance(types.NewPerformance())
	if err != nil {
		return fmt.Errorf("storage: encode fresh performance: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "UPDATE genomes SET performance = ?", freshPerf); err != nil {
		return fmt.Errorf("storage: reset genome performance: %w", err)
	}
	return nil
}

func nullableTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}

func nullableFloat(f *float64) interface{} {
	if f == nil {
		return nil
	}
	return *f
}

func nullablePnL(d *decimal.Decimal) interface{} {
	if d == nil {
		return nil
	}
	return d.String()
}

func nullableReason(r *types.ExitReason) interface{} {
	if r == nil {
		return nil
	}
	return string(*r)
}

func joinIDs(ids []string) string {
	out := ""
	for i, id := range ids {
		if i > 0 {
			out += ","
		}
		out += id
	}
	return out
}

func splitIDs(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	return out
}
