package gather

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"ignition/internal/domain"
	"ignition/internal/store"
	"ignition/internal/util"
)

// Compile-time interface check.
var _ Gatherer = (*BarGatherer)(nil)

// maxSymbolsPerRequest bounds how many symbols go into one multi-bar call.
const maxSymbolsPerRequest = 200

// BarGatherer fetches daily OHLCV bars for a fixed symbol list from the
// Alpaca market-data API and writes them to the bar store.
type BarGatherer struct {
	client  barClient
	store   store.BarStore
	symbols []string
	dates   DateRange
	feed    string
	limiter *util.RateLimiter
	log     *slog.Logger

	retryDelay time.Duration
}

// barClient is the slice of the Alpaca market-data client the gatherer uses.
type barClient interface {
	GetMultiBars(symbols []string, req marketdata.GetBarsRequest) (map[string][]marketdata.Bar, error)
}

// NewBarGatherer creates a BarGatherer with the given Alpaca credentials,
// target store, symbol list, and date range. rateLimitPerMin caps API calls.
func NewBarGatherer(apiKey, apiSecret, dataURL, feed string, s store.BarStore, symbols []string, dates DateRange, rateLimitPerMin int) *BarGatherer {
	opts := marketdata.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
	}
	if dataURL != "" {
		opts.BaseURL = dataURL
	}
	if feed == "" {
		feed = "sip"
	}

	return &BarGatherer{
		client:  marketdata.NewClient(opts),
		store:   s,
		symbols: symbols,
		dates:   dates,
		feed:    feed,
		limiter: util.NewRateLimiter(rateLimitPerMin),
		log:     slog.Default().With("gatherer", "alpaca-bars"),

		retryDelay: time.Second,
	}
}

// Name returns the gatherer identifier.
func (g *BarGatherer) Name() string { return "alpaca-bars" }

// Run fetches daily bars for every configured symbol and writes them to the
// store. Symbol batches that fail after retries abort the run; bars already
// written stay written, so a rerun resumes by overwriting cleanly.
func (g *BarGatherer) Run(ctx context.Context) error {
	if len(g.symbols) == 0 {
		return fmt.Errorf("gather: no symbols configured")
	}

	batches := chunkSymbols(g.symbols, maxSymbolsPerRequest)
	runStart := time.Now()
	g.log.Info("starting bar gather",
		"symbols", len(g.symbols),
		"batches", len(batches),
		"start", g.dates.Start.Format("2006-01-02"),
		"end", g.dates.End.Format("2006-01-02"),
	)

	var total int
	for i, batch := range batches {
		if err := g.limiter.Wait(ctx); err != nil {
			return err
		}

		var bars []domain.Bar
		err := util.Retry(ctx, 3, g.retryDelay, func() error {
			var err error
			bars, err = g.fetchMultiBars(ctx, batch)
			return err
		})
		if err != nil {
			return fmt.Errorf("gather: batch %d/%d: %w", i+1, len(batches), err)
		}

		if err := g.store.WriteBars(ctx, bars); err != nil {
			return fmt.Errorf("gather: writing batch %d/%d: %w", i+1, len(batches), err)
		}
		total += len(bars)

		g.log.Info("batch done",
			"batch", fmt.Sprintf("%d/%d", i+1, len(batches)),
			"bars", len(bars),
			"elapsed", time.Since(runStart).Round(time.Second),
		)
	}

	g.log.Info("bar gather complete", "bars", total)
	return nil
}

// fetchMultiBars fetches daily bars for multiple symbols in a single API call.
func (g *BarGatherer) fetchMultiBars(ctx context.Context, symbols []string) ([]domain.Bar, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	multiBars, err := g.client.GetMultiBars(symbols, marketdata.GetBarsRequest{
		TimeFrame: marketdata.OneDay,
		Start:     g.dates.Start,
		End:       g.dates.End,
		Feed:      marketdata.Feed(g.feed),
	})
	if err != nil {
		return nil, fmt.Errorf("GetMultiBars: %w", err)
	}

	return barsFromMulti(multiBars), nil
}

// barsFromMulti flattens an Alpaca multi-bar response into domain bars.
func barsFromMulti(multiBars map[string][]marketdata.Bar) []domain.Bar {
	var bars []domain.Bar
	for symbol, alpacaBars := range multiBars {
		for _, ab := range alpacaBars {
			bars = append(bars, domain.Bar{
				Symbol:    strings.ToUpper(symbol),
				Timestamp: ab.Timestamp,
				Open:      ab.Open,
				High:      ab.High,
				Low:       ab.Low,
				Close:     ab.Close,
				Volume:    int64(ab.Volume),
			})
		}
	}
	return bars
}

// chunkSymbols splits symbols into batches of at most size.
func chunkSymbols(symbols []string, size int) [][]string {
	if size < 1 {
		size = 1
	}
	var batches [][]string
	for i := 0; i < len(symbols); i += size {
		end := min(i+size, len(symbols))
		batches = append(batches, symbols[i:end])
	}
	return batches
}
