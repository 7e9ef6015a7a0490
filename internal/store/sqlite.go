package store

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strconv"
	"time"

	"quantarena/internal/domain"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Compile-time interface check.
var _ ResultStore = (*SQLiteStore)(nil)

// SQLiteStore implements ResultStore backed by a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS tournament_runs (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	created_at INTEGER NOT NULL,
	start_date INTEGER NOT NULL,
	end_date   INTEGER NOT NULL,
	data_mode  TEXT    NOT NULL,
	seed       TEXT    NOT NULL,
	stress     INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS strategy_results (
	run_id        INTEGER NOT NULL REFERENCES tournament_runs(id),
	rank          INTEGER NOT NULL,
	strategy      TEXT    NOT NULL,
	total_return  REAL    NOT NULL,
	cagr          REAL    NOT NULL,
	sharpe        REAL    NOT NULL,
	max_drawdown  REAL    NOT NULL,
	win_rate      REAL    NOT NULL,
	profit_factor REAL,
	trades        INTEGER NOT NULL,
	PRIMARY KEY (run_id, strategy)
);

CREATE TABLE IF NOT EXISTS trades (
	run_id     INTEGER NOT NULL REFERENCES tournament_runs(id),
	strategy   TEXT    NOT NULL,
	seq        INTEGER NOT NULL,
	order_id   TEXT    NOT NULL,
	symbol     TEXT    NOT NULL,
	side       TEXT    NOT NULL,
	qty        INTEGER NOT NULL,
	fill_price REAL    NOT NULL,
	fee        REAL    NOT NULL,
	trade_date INTEGER NOT NULL,
	PRIMARY KEY (run_id, strategy, seq)
);
`

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and ensures
// the schema exists.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveTournament writes the run, its ranked results, and the per-strategy
// ledgers in one transaction. An infinite profit factor is stored as NULL
// and read back as +Inf; the seed is stored as decimal text because SQLite
// integers are signed 64-bit.
func (s *SQLiteStore) SaveTournament(ctx context.Context, run RunRecord, results []ResultRecord, ledgers map[string][]domain.Trade) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO tournament_runs (created_at, start_date, end_date, data_mode, seed, stress)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		run.CreatedAt.Unix(), run.StartDate.Unix(), run.EndDate.Unix(),
		run.DataMode, strconv.FormatUint(run.Seed, 10), boolInt(run.Stress))
	if err != nil {
		return 0, fmt.Errorf("inserting run: %w", err)
	}
	runID, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	for _, r := range results {
		pf := sql.NullFloat64{Float64: r.ProfitFactor, Valid: !math.IsInf(r.ProfitFactor, 0)}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO strategy_results
			 (run_id, rank, strategy, total_return, cagr, sharpe, max_drawdown, win_rate, profit_factor, trades)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			runID, r.Rank, r.Strategy, r.TotalReturn, r.CAGR, r.Sharpe,
			r.MaxDrawdown, r.WinRate, pf, r.Trades)
		if err != nil {
			return 0, fmt.Errorf("inserting result for %s: %w", r.Strategy, err)
		}

		for seq, t := range ledgers[r.Strategy] {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO trades
				 (run_id, strategy, seq, order_id, symbol, side, qty, fill_price, fee, trade_date)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				runID, r.Strategy, seq, t.OrderID, t.Symbol, string(t.Side),
				t.Qty, t.FillPrice, t.Fee, t.Date.Unix())
			if err != nil {
				return 0, fmt.Errorf("inserting trade %d for %s: %w", seq, r.Strategy, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return runID, nil
}

// ListRuns returns the most recent runs, newest first.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, created_at, start_date, end_date, data_mode, seed, stress
		 FROM tournament_runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		var r RunRecord
		var createdAt, startDate, endDate int64
		var seed string
		var stress int
		if err := rows.Scan(&r.ID, &createdAt, &startDate, &endDate, &r.DataMode, &seed, &stress); err != nil {
			return nil, err
		}
		parsed, err := strconv.ParseUint(seed, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("run %d: invalid seed %q: %w", r.ID, seed, err)
		}
		r.CreatedAt = time.Unix(createdAt, 0).UTC()
		r.StartDate = time.Unix(startDate, 0).UTC()
		r.EndDate = time.Unix(endDate, 0).UTC()
		r.Seed = parsed
		r.Stress = stress != 0
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// ResultsForRun returns a run's results ordered by rank.
func (s *SQLiteStore) ResultsForRun(ctx context.Context, runID int64) ([]ResultRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT rank, strategy, total_return, cagr, sharpe, max_drawdown, win_rate, profit_factor, trades
		 FROM strategy_results WHERE run_id = ? ORDER BY rank`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []ResultRecord
	for rows.Next() {
		var r ResultRecord
		var pf sql.NullFloat64
		if err := rows.Scan(&r.Rank, &r.Strategy, &r.TotalReturn, &r.CAGR, &r.Sharpe,
			&r.MaxDrawdown, &r.WinRate, &pf, &r.Trades); err != nil {
			return nil, err
		}
		if pf.Valid {
			r.ProfitFactor = pf.Float64
		} else {
			r.ProfitFactor = math.Inf(1)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// TradesForRun returns one strategy's ledger for a run in fill order.
func (s *SQLiteStore) TradesForRun(ctx context.Context, runID int64, strategy string) ([]domain.Trade, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT order_id, symbol, side, qty, fill_price, fee, trade_date
		 FROM trades WHERE run_id = ? AND strategy = ? ORDER BY seq`, runID, strategy)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trades []domain.Trade
	for rows.Next() {
		var t domain.Trade
		var side string
		var date int64
		if err := rows.Scan(&t.OrderID, &t.Symbol, &side, &t.Qty, &t.FillPrice, &t.Fee, &date); err != nil {
			return nil, err
		}
		t.Side = domain.OrderSide(side)
		t.Date = time.Unix(date, 0).UTC()
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
