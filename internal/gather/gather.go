// Package gather downloads historical market data and persists it to the bar
// store for later backtesting.
package gather

import (
	"context"
	"time"
)

// Gatherer is the interface for all data gathering processes.
type Gatherer interface {
	// Name returns the gatherer identifier.
	Name() string
	// Run fetches the configured data range. It returns when the range is
	// complete or ctx is cancelled.
	Run(ctx context.Context) error
}

// DateRange is an inclusive time range for data fetching.
type DateRange struct {
	Start time.Time
	End   time.Time
}
