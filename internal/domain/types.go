// Package domain defines the core data types shared across the ignition
// platform: OHLCV bars, trade events, ledger rows, equity points, and
// performance metrics.
package domain

import (
	"math"
	"time"
)

// ---------------------------------------------------------------------------
// Market data
// ---------------------------------------------------------------------------

// Bar is one OHLCV observation for a fixed time interval. Bars form an
// ordered, append-only sequence with strictly increasing timestamps.
type Bar struct {
	Symbol    string
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    int64
}

// ---------------------------------------------------------------------------
// Trade events
// ---------------------------------------------------------------------------

// EventKind identifies the type of a trade event.
type EventKind string

const (
	EventEntryLong  EventKind = "entry_long"
	EventEntryShort EventKind = "entry_short"
	EventExitLong   EventKind = "exit_long"
	EventExitShort  EventKind = "exit_short"
)

// IsEntry reports whether the event opens a position.
func (k EventKind) IsEntry() bool {
	return k == EventEntryLong || k == EventEntryShort
}

// IsExit reports whether the event closes a position.
func (k EventKind) IsExit() bool {
	return k == EventExitLong || k == EventExitShort
}

// TradeEvent is a single entry or exit emitted by the signal engine. Events
// are produced in timestamp order; the exit for a position always immediately
// follows the entry it closes.
type TradeEvent struct {
	Timestamp time.Time
	Kind      EventKind
	Price     float64
	Reason    string
}

// ---------------------------------------------------------------------------
// Positions
// ---------------------------------------------------------------------------

// PositionSide is the direction of an open position.
type PositionSide string

const (
	PositionFlat  PositionSide = "flat"
	PositionLong  PositionSide = "long"
	PositionShort PositionSide = "short"
)

// ---------------------------------------------------------------------------
// Backtest output
// ---------------------------------------------------------------------------

// LedgerRow is one matched entry+exit pair with realized P&L. GrossPnL is the
// raw price difference for the side; NetPnL subtracts commission charged once
// at entry and once at exit.
type LedgerRow struct {
	Side       PositionSide
	EntryTime  time.Time
	ExitTime   time.Time
	EntryPrice float64
	ExitPrice  float64
	GrossPnL   float64
	Commission float64
	NetPnL     float64
}

// EquityPoint is one mark on the equity curve. Points are strictly ordered by
// timestamp: one at run start plus one per closed trade.
type EquityPoint struct {
	Timestamp time.Time
	Equity    float64
}

// ---------------------------------------------------------------------------
// Metrics
// ---------------------------------------------------------------------------

// Canonical metric names, used for optimization targets and result sorting.
const (
	MetricTotalReturn  = "total_return"
	MetricSharpeRatio  = "sharpe_ratio"
	MetricMaxDrawdown  = "max_drawdown"
	MetricWinRate      = "win_rate"
	MetricProfitFactor = "profit_factor"
	MetricTradeCount   = "trade_count"
)

// Metrics holds the summary statistics for one backtest run. Percentage
// metrics (TotalReturn, MaxDrawdown) are expressed in percent. A metric that
// could not be computed is NaN.
type Metrics struct {
	TotalReturn  float64
	SharpeRatio  float64
	MaxDrawdown  float64
	WinRate      float64
	ProfitFactor float64
	TradeCount   int
}

// EmptyMetrics returns the Metrics for a run with no completed trades: every
// statistic is NaN and the trade count is zero.
func EmptyMetrics() Metrics {
	nan := math.NaN()
	return Metrics{
		TotalReturn:  nan,
		SharpeRatio:  nan,
		MaxDrawdown:  nan,
		WinRate:      nan,
		ProfitFactor: nan,
	}
}

// Value looks up a metric by its canonical name. The second return value is
// false for unknown names.
func (m Metrics) Value(name string) (float64, bool) {
	switch name {
	case MetricTotalReturn:
		return m.TotalReturn, true
	case MetricSharpeRatio:
		return m.SharpeRatio, true
	case MetricMaxDrawdown:
		return m.MaxDrawdown, true
	case MetricWinRate:
		return m.WinRate, true
	case MetricProfitFactor:
		return m.ProfitFactor, true
	case MetricTradeCount:
		return float64(m.TradeCount), true
	default:
		return 0, false
	}
}

// Defined reports whether the named metric exists and is a real number.
func (m Metrics) Defined(name string) bool {
	v, ok := m.Value(name)
	return ok && !math.IsNaN(v)
}

// ---------------------------------------------------------------------------
// Optimization results
// ---------------------------------------------------------------------------

// ResultRow is one row of the optimization result table: a parameter
// combination and the metrics of its backtest.
type ResultRow struct {
	Params  map[string]float64
	Metrics Metrics
}
