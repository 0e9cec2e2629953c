// Package report renders backtest and optimization results as fixed-width
// text tables for the command-line binaries.
package report

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"ignition/internal/domain"
)

// ---------------------------------------------------------------------------
// Value formatting
// ---------------------------------------------------------------------------

// FormatMetric formats a metric value, rendering undefined values as "-" and
// an infinite profit factor as "inf".
func FormatMetric(v float64) string {
	switch {
	case math.IsNaN(v):
		return "-"
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	default:
		return fmt.Sprintf("%.4f", v)
	}
}

// FormatMoney formats a dollar amount as X.XX with a sign.
func FormatMoney(v float64) string {
	if math.IsNaN(v) {
		return "-"
	}
	return fmt.Sprintf("%+.2f", v)
}

// FormatPct formats a fraction-of-capital value as a signed percentage.
func FormatPct(v float64) string {
	if math.IsNaN(v) {
		return "-"
	}
	return fmt.Sprintf("%+.2f%%", v)
}

// ---------------------------------------------------------------------------
// Tables
// ---------------------------------------------------------------------------

// MetricsSummary renders a backtest metrics block, one metric per line.
func MetricsSummary(m domain.Metrics) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%-16s %s\n", "total_return", FormatPct(m.TotalReturn))
	fmt.Fprintf(&b, "%-16s %s\n", "sharpe_ratio", FormatMetric(m.SharpeRatio))
	fmt.Fprintf(&b, "%-16s %s\n", "max_drawdown", FormatPct(m.MaxDrawdown))
	fmt.Fprintf(&b, "%-16s %s\n", "win_rate", FormatMetric(m.WinRate))
	fmt.Fprintf(&b, "%-16s %s\n", "profit_factor", FormatMetric(m.ProfitFactor))
	fmt.Fprintf(&b, "%-16s %d\n", "trades", m.TradeCount)
	return b.String()
}

// LedgerTable renders the trade ledger, one row per completed trade.
func LedgerTable(rows []domain.LedgerRow) string {
	if len(rows) == 0 {
		return "no completed trades\n"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%-5s  %-20s  %-20s  %10s  %10s  %10s  %10s\n",
		"side", "entry", "exit", "entry px", "exit px", "gross", "net")
	for _, r := range rows {
		fmt.Fprintf(&b, "%-5s  %-20s  %-20s  %10.2f  %10.2f  %10s  %10s\n",
			r.Side,
			r.EntryTime.UTC().Format(time.DateTime),
			r.ExitTime.UTC().Format(time.DateTime),
			r.EntryPrice,
			r.ExitPrice,
			FormatMoney(r.GrossPnL),
			FormatMoney(r.NetPnL),
		)
	}
	return b.String()
}

// ResultsTable renders optimizer result rows with their parameter settings.
// Parameter columns appear in sorted name order so the table is stable
// regardless of grid declaration order.
func ResultsTable(rows []domain.ResultRow) string {
	if len(rows) == 0 {
		return "no results\n"
	}

	names := paramNames(rows)

	var b strings.Builder
	fmt.Fprintf(&b, "%4s", "#")
	for _, n := range names {
		fmt.Fprintf(&b, "  %*s", columnWidth(n), n)
	}
	fmt.Fprintf(&b, "  %12s  %12s  %12s  %8s  %13s  %6s\n",
		"total_return", "sharpe_ratio", "max_drawdown", "win_rate", "profit_factor", "trades")

	for i, r := range rows {
		fmt.Fprintf(&b, "%4d", i+1)
		for _, n := range names {
			v, ok := r.Params[n]
			if !ok {
				fmt.Fprintf(&b, "  %*s", columnWidth(n), "-")
				continue
			}
			fmt.Fprintf(&b, "  %*s", columnWidth(n), trimFloat(v))
		}
		fmt.Fprintf(&b, "  %12s  %12s  %12s  %8s  %13s  %6d\n",
			FormatMetric(r.Metrics.TotalReturn),
			FormatMetric(r.Metrics.SharpeRatio),
			FormatMetric(r.Metrics.MaxDrawdown),
			FormatMetric(r.Metrics.WinRate),
			FormatMetric(r.Metrics.ProfitFactor),
			r.Metrics.TradeCount,
		)
	}
	return b.String()
}

// paramNames collects the union of parameter names across all rows, sorted.
func paramNames(rows []domain.ResultRow) []string {
	seen := make(map[string]struct{})
	for _, r := range rows {
		for n := range r.Params {
			seen[n] = struct{}{}
		}
	}
	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// columnWidth sizes a parameter column to its header, with a floor wide
// enough for typical values.
func columnWidth(name string) int {
	if len(name) < 8 {
		return 8
	}
	return len(name)
}

// trimFloat renders a float without trailing zeros.
func trimFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
