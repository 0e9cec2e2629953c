// Package optimize searches a strategy parameter space by exhaustively
// backtesting every combination of candidate values and ranking the surviving
// results by a chosen metric.
package optimize

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
	"sync/atomic"

	"ignition/internal/backtest"
	"ignition/internal/domain"
	"ignition/internal/signal"
)

// progressEvery is how many evaluated combinations pass between progress
// log lines.
const progressEvery = 50

// Optimizer drives signal-engine and backtester runs across a parameter
// grid. It owns the aggregated result table; every combination gets a fresh
// engine and backtester, sharing only the read-only bar sequence.
type Optimizer struct {
	bars       []domain.Bar
	capital    float64
	commission float64
	workers    int
	log        *slog.Logger

	results []domain.ResultRow
}

// New creates an Optimizer over the given bars with shared backtest capital
// and per-trade commission. Evaluation is sequential unless SetWorkers raises
// the worker count.
func New(bars []domain.Bar, capital, commission float64) *Optimizer {
	return &Optimizer{
		bars:       bars,
		capital:    capital,
		commission: commission,
		workers:    1,
		log:        slog.Default().With("component", "optimizer"),
	}
}

// SetWorkers sets the number of parallel evaluation workers. Each combination
// owns private engine and backtester state, so the result table is identical
// regardless of worker count.
func (o *Optimizer) SetWorkers(n int) {
	if n < 1 {
		n = 1
	}
	o.workers = n
}

// RunGridSearch evaluates every combination in the grid and returns the rows
// that produced a non-empty ledger with a defined optimization metric, in
// enumeration order. An empty table means no successful backtests, which is a
// normal outcome, not an error.
func (o *Optimizer) RunGridSearch(grid *Grid, optimizeMetric string) ([]domain.ResultRow, error) {
	if _, ok := (domain.Metrics{}).Value(optimizeMetric); !ok {
		return nil, fmt.Errorf("optimize: unknown metric %q", optimizeMetric)
	}

	dims := grid.Dimensions()
	combos := grid.Combos()
	o.log.Info("starting grid search",
		"combinations", len(combos),
		"metric", optimizeMetric,
		"workers", o.workers,
	)

	rows := make([]*domain.ResultRow, len(combos))

	var done atomic.Int64
	progress := func() {
		n := done.Add(1)
		if n%progressEvery == 0 {
			o.log.Info("grid search progress", "done", n, "total", len(combos))
		}
	}

	if o.workers <= 1 {
		for i, combo := range combos {
			rows[i] = o.evaluate(dims, combo, optimizeMetric)
			progress()
		}
	} else {
		indexes := make(chan int)
		var wg sync.WaitGroup
		for w := 0; w < o.workers; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := range indexes {
					rows[i] = o.evaluate(dims, combos[i], optimizeMetric)
					progress()
				}
			}()
		}
		for i := range combos {
			indexes <- i
		}
		close(indexes)
		wg.Wait()
	}

	o.results = o.results[:0]
	for _, r := range rows {
		if r != nil {
			o.results = append(o.results, *r)
		}
	}

	o.log.Info("grid search complete",
		"combinations", len(combos),
		"successful", len(o.results),
	)

	out := make([]domain.ResultRow, len(o.results))
	copy(out, o.results)
	return out, nil
}

// evaluate runs one parameter combination end to end. Any failure — invalid
// parameters, an engine error, zero trades, or an undefined optimization
// metric — discards the combination without aborting the search.
func (o *Optimizer) evaluate(dims []Dimension, combo []float64, metric string) *domain.ResultRow {
	params := signal.DefaultParams()
	applied := make(map[string]float64, len(dims))
	for i, d := range dims {
		if err := params.Apply(d.Name, combo[i]); err != nil {
			o.log.Warn("skipping combination", "param", d.Name, "err", err)
			return nil
		}
		applied[d.Name] = combo[i]
	}

	engine, err := signal.NewEngine(params)
	if err != nil {
		o.log.Warn("skipping combination", "err", err)
		return nil
	}

	// Replay the bars cumulatively, one at a time, mirroring live operation.
	for i := range o.bars {
		if err := engine.ProcessBar(o.bars[:i+1]); err != nil {
			o.log.Warn("skipping combination", "err", err)
			return nil
		}
	}

	events := engine.Signals()
	if len(events) == 0 {
		return nil
	}

	bt := backtest.New(o.bars, o.capital, o.commission)
	if err := bt.Run(events); err != nil {
		o.log.Warn("skipping combination", "err", err)
		return nil
	}

	ledger, equity := bt.Results()
	if len(ledger) == 0 || len(equity) < 2 {
		return nil
	}

	m := bt.CalculateMetrics(ledger, equity)
	if !m.Defined(metric) {
		return nil
	}

	return &domain.ResultRow{Params: applied, Metrics: m}
}

// Results returns the full result table from the last grid search.
func (o *Optimizer) Results() []domain.ResultRow {
	out := make([]domain.ResultRow, len(o.results))
	copy(out, o.results)
	return out
}

// BestResults returns the top-N rows of the result table sorted by the named
// metric, descending unless ascending is set. Rows whose metric is undefined
// sort to the worst end of the requested order, so they only surface when
// every result is undefined. An unknown sort metric falls back to total
// return. An empty table yields an empty slice.
func (o *Optimizer) BestResults(topN int, sortBy string, ascending bool) []domain.ResultRow {
	if len(o.results) == 0 {
		return nil
	}

	if _, ok := (domain.Metrics{}).Value(sortBy); !ok {
		o.log.Warn("unknown sort metric, falling back to total_return", "metric", sortBy)
		sortBy = domain.MetricTotalReturn
	}

	worst := math.Inf(-1)
	if ascending {
		worst = math.Inf(1)
	}
	key := func(r domain.ResultRow) float64 {
		v, ok := r.Metrics.Value(sortBy)
		if !ok || math.IsNaN(v) {
			return worst
		}
		return v
	}

	sorted := make([]domain.ResultRow, len(o.results))
	copy(sorted, o.results)
	sort.SliceStable(sorted, func(i, j int) bool {
		if ascending {
			return key(sorted[i]) < key(sorted[j])
		}
		return key(sorted[i]) > key(sorted[j])
	})

	if topN > 0 && topN < len(sorted) {
		sorted = sorted[:topN]
	}
	return sorted
}
