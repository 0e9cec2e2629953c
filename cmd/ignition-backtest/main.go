// Command ignition-backtest replays stored bars through the momentum
// ignition strategy, prints the ledger and metrics, and records the run in
// the results database.
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

	"ignition/internal/backtest"
	"ignition/internal/config"
	"ignition/internal/domain"
	"ignition/internal/report"
	"ignition/internal/signal"
	"ignition/internal/store"
	"ignition/internal/util"
)

func main() {
	symbolFlag := flag.String("symbol", "", "symbol to backtest (overrides config)")
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

	ctx, cancel := signalContext()
	defer cancel()

	bars, err := loadBars(ctx, cfg, bt, *csvPath)
	if err != nil {
		log.Fatalf("failed to load bars: %v", err)
	}
	if len(bars) == 0 {
		log.Fatalf("no bars for %s in [%s, %s]", bt.Symbol, bt.StartDate, bt.EndDate)
	}
	logger.Info("loaded bars", "symbol", bt.Symbol, "bars", len(bars))

	engine, err := signal.NewEngine(cfg.Strategy)
	if err != nil {
		log.Fatalf("invalid strategy parameters: %v", err)
	}
	for i := range bars {
		if err := engine.ProcessBar(bars[:i+1]); err != nil {
			log.Fatalf("signal engine: %v", err)
		}
	}
	events := engine.Signals()
	logger.Info("signals generated", "events", len(events))

	runner := backtest.New(bars, bt.InitialCapital, bt.Commission)
	if err := runner.Run(events); err != nil {
		log.Fatalf("backtest: %v", err)
	}
	ledger, equity := runner.Results()
	metrics := runner.CalculateMetrics(ledger, equity)

	fmt.Println(report.LedgerTable(ledger))
	fmt.Println(report.MetricsSummary(metrics))

	if *noSave {
		return
	}
	if err := saveRun(ctx, cfg, bt, events, metrics); err != nil {
		log.Fatalf("failed to record run: %v", err)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	return ossignal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// loadBars reads the backtest bar slice from the CSV file when given, the
// Parquet store otherwise.
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
	// Include bars through the end of the last day.
	end = end.Add(24*time.Hour - time.Nanosecond)

	ps := store.NewParquetStore(cfg.Storage.DataDir)
	return ps.ReadBars(ctx, bt.Symbol, start, end)
}

// saveRun records the run, its single result row, and its trade events.
func saveRun(ctx context.Context, cfg *config.Config, bt config.BacktestConfig, events []domain.TradeEvent, metrics domain.Metrics) error {
	rs, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
	if err != nil {
		return err
	}
	defer rs.Close()

	runID, err := rs.SaveRun(ctx, store.RunMeta{
		Kind:           "backtest",
		Symbol:         bt.Symbol,
		StartDate:      bt.StartDate,
		EndDate:        bt.EndDate,
		InitialCapital: bt.InitialCapital,
		Commission:     bt.Commission,
	})
	if err != nil {
		return err
	}

	row := domain.ResultRow{Params: map[string]float64{}, Metrics: metrics}
	if err := rs.SaveResults(ctx, runID, []domain.ResultRow{row}); err != nil {
		return err
	}
	if err := rs.SaveTradeEvents(ctx, runID, events); err != nil {
		return err
	}
	slog.Info("run recorded", "runID", runID)
	return nil
}
