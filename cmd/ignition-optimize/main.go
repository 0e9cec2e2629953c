// Command ignition-optimize grid-searches strategy parameters over stored
// bars, prints the ranked results, and records the run in the results
// database.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	ossignal "os/signal"
	"strings"
	"syscall"
	"time"

	"ignition/internal/config"
	"ignition/internal/domain"
	"ignition/internal/optimize"
	"ignition/internal/report"
	"ignition/internal/store"
	"ignition/internal/util"
)

func main() {
	symbolFlag := flag.String("symbol", "", "symbol to optimize over (overrides config)")
	startFlag := flag.String("start", "", "start date YYYY-MM-DD (overrides config)")
	endFlag := flag.String("end", "", "end date YYYY-MM-DD (overrides config)")
	csvPath := flag.String("csv", "", "load bars from a CSV file instead of the bar store")
	noSave := flag.Bool("no-save", false, "skip recording the run in the results database")
	flag.Parse()

	cfgPath := "config/ignition.yaml"
	if p := os.Getenv("IGNITION_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)

	if len(cfg.Optimizer.Ranges) == 0 {
		log.Fatal("no optimizer ranges configured")
	}

	bt := cfg.Backtest
	if *symbolFlag != "" {
		bt.Symbol = strings.ToUpper(*symbolFlag)
	}
	if *startFlag != "" {
		bt.StartDate = *startFlag
	}
	if *endFlag != "" {
		bt.EndDate = *endFlag
	}

	ctx, cancel := ossignal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	bars, err := loadBars(ctx, cfg, bt, *csvPath)
	if err != nil {
		log.Fatalf("failed to load bars: %v", err)
	}
	if len(bars) == 0 {
		log.Fatalf("no bars for %s in [%s, %s]", bt.Symbol, bt.StartDate, bt.EndDate)
	}
	logger.Info("loaded bars", "symbol", bt.Symbol, "bars", len(bars))

	grid := optimize.NewGrid()
	for _, r := range cfg.Optimizer.Ranges {
		grid.Add(r.Name, r.Values...)
	}

	opt := optimize.New(bars, bt.InitialCapital, bt.Commission)
	opt.SetWorkers(cfg.Optimizer.Workers)

	if _, err := opt.RunGridSearch(grid, cfg.Optimizer.Metric); err != nil {
		log.Fatalf("grid search: %v", err)
	}

	best := opt.BestResults(cfg.Optimizer.TopN, cfg.Optimizer.Metric, cfg.Optimizer.Ascending)
	fmt.Println(report.ResultsTable(best))

	if *noSave || len(best) == 0 {
		return
	}
	if err := saveRun(ctx, cfg, bt, best); err != nil {
		log.Fatalf("failed to record run: %v", err)
	}
}

// loadBars reads the bar slice from the CSV file when given, the Parquet
// store otherwise.
func loadBars(ctx context.Context, cfg *config.Config, bt config.BacktestConfig, csvPath string) ([]domain.Bar, error) {
	if csvPath != "" {
		return store.ReadBarsCSV(csvPath, bt.Symbol)
	}

	start, err := time.Parse("2006-01-02", bt.StartDate)
	if err != nil {
		return nil, fmt.Errorf("start date: %w", err)
	}
	end, err := time.Parse("2006-01-02", bt.EndDate)
	if err != nil {
		return nil, fmt.Errorf("end date: %w", err)
	}
	end = end.Add(24*time.Hour - time.Nanosecond)

	ps := store.NewParquetStore(cfg.Storage.DataDir)
	return ps.ReadBars(ctx, bt.Symbol, start, end)
}

// saveRun records the run and its ranked result rows.
func saveRun(ctx context.Context, cfg *config.Config, bt config.BacktestConfig, rows []domain.ResultRow) error {
	rs, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
	if err != nil {
		return err
	}
	defer rs.Close()

	runID, err := rs.SaveRun(ctx, store.RunMeta{
		Kind:           "optimize",
		Symbol:         bt.Symbol,
		StartDate:      bt.StartDate,
		EndDate:        bt.EndDate,
		InitialCapital: bt.InitialCapital,
		Commission:     bt.Commission,
	})
	if err != nil {
		return err
	}
	if err := rs.SaveResults(ctx, runID, rows); err != nil {
		return err
	}
	slog.Info("run recorded", "runID", runID, "results", len(rows))
	return nil
}
