// Package store persists and retrieves the platform's durable data: OHLCV
// bar history in Parquet files and backtest/optimization results in SQLite.
package store

import (
	"context"
	"time"

	"ignition/internal/domain"
)

// BarStore persists and retrieves OHLCV bar data.
type BarStore interface {
	// WriteBars persists a batch of bars, merging with any already stored.
	WriteBars(ctx context.Context, bars []domain.Bar) error

	// ReadBars returns bars for the given symbol within [start, end],
	// ordered by timestamp.
	ReadBars(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error)

	// ListSymbols returns all distinct symbols with stored bar data.
	ListSymbols(ctx context.Context) ([]string, error)
}

// RunMeta describes one recorded backtest or optimization run.
type RunMeta struct {
	ID             int64
	Kind           string // "backtest" or "optimize"
	Symbol         string
	StartDate      string
	EndDate        string
	InitialCapital float64
	Commission     float64
	CreatedAt      time.Time
}

// ResultStore records runs, their result tables, and their trade events.
type ResultStore interface {
	// SaveRun records run metadata and returns the new run ID.
	SaveRun(ctx context.Context, meta RunMeta) (int64, error)

	// SaveResults appends result rows for a run.
	SaveResults(ctx context.Context, runID int64, rows []domain.ResultRow) error

	// SaveTradeEvents appends trade events for a run.
	SaveTradeEvents(ctx context.Context, runID int64, events []domain.TradeEvent) error

	// ListRuns returns the most recent runs, newest first, up to limit.
	ListRuns(ctx context.Context, limit int) ([]RunMeta, error)

	// ResultsForRun returns the stored result rows for a run, in insert order.
	ResultsForRun(ctx context.Context, runID int64) ([]domain.ResultRow, error)

	// EventsForRun returns the stored trade events for a run, in insert order.
	EventsForRun(ctx context.Context, runID int64) ([]domain.TradeEvent, error)
}
