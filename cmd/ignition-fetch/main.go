// Command ignition-fetch downloads historical daily bars from Alpaca into
// the Parquet bar store, or imports them from a local CSV file.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"ignition/internal/config"
	"ignition/internal/gather"
	"ignition/internal/store"
	"ignition/internal/util"
)

func main() {
	symbolsFlag := flag.String("symbols", "", "comma-separated symbol list (overrides config)")
	csvPath := flag.String("csv", "", "import bars from a CSV file instead of the Alpaca API")
	csvSymbol := flag.String("csv-symbol", "", "symbol for the imported CSV bars")
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

	pstore := store.NewParquetStore(cfg.Storage.DataDir)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *csvPath != "" {
		if *csvSymbol == "" {
			log.Fatal("-csv requires -csv-symbol")
		}
		bars, err := store.ReadBarsCSV(*csvPath, strings.ToUpper(*csvSymbol))
		if err != nil {
			log.Fatalf("failed to read CSV: %v", err)
		}
		if err := pstore.WriteBars(ctx, bars); err != nil {
			log.Fatalf("failed to write bars: %v", err)
		}
		logger.Info("imported bars from CSV", "file", *csvPath, "symbol", *csvSymbol, "bars", len(bars))
		return
	}

	symbols := cfg.Gather.Symbols
	if *symbolsFlag != "" {
		symbols = strings.Split(*symbolsFlag, ",")
		for i := range symbols {
			symbols[i] = strings.ToUpper(strings.TrimSpace(symbols[i]))
		}
	}

	dates, err := parseRange(cfg.Gather.StartDate, cfg.Gather.EndDate)
	if err != nil {
		log.Fatalf("invalid gather date range: %v", err)
	}

	gatherer := gather.NewBarGatherer(
		cfg.Alpaca.APIKey,
		cfg.Alpaca.APISecret,
		cfg.Alpaca.DataURL,
		cfg.Alpaca.Feed,
		pstore,
		symbols,
		dates,
		cfg.Gather.RateLimitPerMin,
	)

	logger.Info("starting fetch", "gatherer", gatherer.Name(), "symbols", len(symbols))
	if err := gatherer.Run(ctx); err != nil {
		log.Fatalf("fetch error: %v", err)
	}
}

// parseRange parses YYYY-MM-DD bounds, defaulting the end to today.
func parseRange(start, end string) (gather.DateRange, error) {
	var r gather.DateRange
	var err error

	r.Start, err = time.Parse("2006-01-02", start)
	if err != nil {
		return r, err
	}
	if end == "" {
		r.End = time.Now().UTC().Truncate(24 * time.Hour)
		return r, nil
	}
	r.End, err = time.Parse("2006-01-02", end)
	return r, err
}
