// Package store persists bar data and tournament results: Parquet files for
// price series, SQLite for run history.
package store

import (
	"context"
	"time"

	"quantarena/internal/domain"
)

// BarStore persists and retrieves OHLCV bar data.
type BarStore interface {
	// WriteBars persists a batch of bars under the given market.
	WriteBars(ctx context.Context, bars []domain.Bar, market string) error

	// ReadBars returns bars for the given symbol and market within [start, end].
	ReadBars(ctx context.Context, symbol string, market string, start, end time.Time) ([]domain.Bar, error)

	// ListSymbols returns all distinct symbols available in the given market.
	ListSymbols(ctx context.Context, market string) ([]string, error)
}

// RunRecord is one persisted tournament run.
type RunRecord struct {
	ID        int64
	CreatedAt time.Time
	StartDate time.Time
	EndDate   time.Time
	DataMode  string
	Seed      uint64
	Stress    bool
}

// ResultRecord is one strategy's ranked outcome within a run.
type ResultRecord struct {
	Rank         int
	Strategy     string
	TotalReturn  float64
	CAGR         float64
	Sharpe       float64
	MaxDrawdown  float64
	WinRate      float64
	ProfitFactor float64
	Trades       int
}

// ResultStore persists tournament outcomes.
type ResultStore interface {
	// SaveTournament writes a run, its ranked results, and the per-strategy
	// trade ledgers in one transaction, returning the new run id.
	SaveTournament(ctx context.Context, run RunRecord, results []ResultRecord, ledgers map[string][]domain.Trade) (int64, error)

	// ListRuns returns the most recent runs, newest first, up to limit.
	ListRuns(ctx context.Context, limit int) ([]RunRecord, error)

	// ResultsForRun returns a run's results ordered by rank.
	ResultsForRun(ctx context.Context, runID int64) ([]ResultRecord, error)

	// TradesForRun returns one strategy's ledger for a run in fill order.
	TradesForRun(ctx context.Context, runID int64, strategy string) ([]domain.Trade, error)
}
