// Package backtest replays trade events against a historical bar sequence to
// produce a realized-P&L ledger, an equity curve, and summary performance
// statistics.
package backtest

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"ignition/internal/domain"
)

// ErrEventOrder is returned when the trade-event sequence violates the
// engine's contract: an entry while a position is open, an exit with no open
// position, a side mismatch, or timestamps out of order.
var ErrEventOrder = errors.New("backtest: malformed event sequence")

// Backtester owns the ledger and equity curve derived from one trade-event
// list over one bar sequence. The bar sequence is shared read-only.
type Backtester struct {
	bars           []domain.Bar
	initialCapital float64
	commission     float64

	ledger []domain.LedgerRow
	equity []domain.EquityPoint
}

// New creates a Backtester over the given bars with a starting capital and a
// flat per-trade commission (charged once at entry and once at exit).
func New(bars []domain.Bar, initialCapital, commission float64) *Backtester {
	return &Backtester{
		bars:           bars,
		initialCapital: initialCapital,
		commission:     commission,
	}
}

// Run replays the events in order, pairing each entry with its next same-side
// exit into a ledger row and marking the equity curve at each exit. Any prior
// results are discarded. An entry left open at the end of the sequence
// produces no ledger row.
func (b *Backtester) Run(events []domain.TradeEvent) error {
	b.ledger = nil
	b.equity = nil

	if len(b.bars) > 0 {
		b.equity = append(b.equity, domain.EquityPoint{
			Timestamp: b.bars[0].Timestamp,
			Equity:    b.initialCapital,
		})
	}

	equity := b.initialCapital
	var open *domain.TradeEvent

	for i := range events {
		ev := &events[i]
		if i > 0 && ev.Timestamp.Before(events[i-1].Timestamp) {
			return fmt.Errorf("%w: event %d timestamp %v precedes %v",
				ErrEventOrder, i, ev.Timestamp, events[i-1].Timestamp)
		}

		switch {
		case ev.Kind.IsEntry():
			if open != nil {
				return fmt.Errorf("%w: entry %s at %v while a position is open",
					ErrEventOrder, ev.Kind, ev.Timestamp)
			}
			open = ev

		case ev.Kind.IsExit():
			if open == nil {
				return fmt.Errorf("%w: exit %s at %v with no open position",
					ErrEventOrder, ev.Kind, ev.Timestamp)
			}
			side := domain.PositionLong
			if open.Kind == domain.EventEntryShort {
				side = domain.PositionShort
			}
			if (side == domain.PositionLong) != (ev.Kind == domain.EventExitLong) {
				return fmt.Errorf("%w: exit %s at %v does not match entry %s",
					ErrEventOrder, ev.Kind, ev.Timestamp, open.Kind)
			}

			gross := ev.Price - open.Price
			if side == domain.PositionShort {
				gross = open.Price - ev.Price
			}
			commission := 2 * b.commission
			net := gross - commission

			b.ledger = append(b.ledger, domain.LedgerRow{
				Side:       side,
				EntryTime:  open.Timestamp,
				ExitTime:   ev.Timestamp,
				EntryPrice: open.Price,
				ExitPrice:  ev.Price,
				GrossPnL:   gross,
				Commission: commission,
				NetPnL:     net,
			})

			equity += net
			b.equity = append(b.equity, domain.EquityPoint{
				Timestamp: ev.Timestamp,
				Equity:    equity,
			})
			open = nil

		default:
			return fmt.Errorf("%w: unknown event kind %q", ErrEventOrder, ev.Kind)
		}
	}
	return nil
}

// Results returns the ledger and equity curve built by the last Run.
func (b *Backtester) Results() ([]domain.LedgerRow, []domain.EquityPoint) {
	return b.ledger, b.equity
}

// CalculateMetrics derives summary statistics from a ledger and equity curve.
// With an empty ledger or fewer than two equity points it returns NaN-valued
// metrics: a run with no signals is a normal outcome, not an error.
//
// The Sharpe ratio is the mean of per-trade net returns on initial capital
// divided by their sample standard deviation, with no annualization. Zero
// return variance yields NaN.
func (b *Backtester) CalculateMetrics(ledger []domain.LedgerRow, equity []domain.EquityPoint) domain.Metrics {
	if len(ledger) == 0 || len(equity) < 2 {
		return domain.EmptyMetrics()
	}

	m := domain.Metrics{TradeCount: len(ledger)}

	final := equity[len(equity)-1].Equity
	m.TotalReturn = (final - b.initialCapital) / b.initialCapital * 100

	returns := make([]float64, len(ledger))
	wins := 0
	grossProfit := 0.0
	grossLoss := 0.0
	for i, row := range ledger {
		returns[i] = row.NetPnL / b.initialCapital
		if row.NetPnL > 0 {
			wins++
			grossProfit += row.NetPnL
		} else {
			grossLoss += -row.NetPnL
		}
	}

	mean := stat.Mean(returns, nil)
	sd := stat.StdDev(returns, nil)
	if sd == 0 || math.IsNaN(sd) {
		m.SharpeRatio = math.NaN()
	} else {
		m.SharpeRatio = mean / sd
	}

	peak := equity[0].Equity
	maxDD := 0.0
	for _, pt := range equity {
		if pt.Equity > peak {
			peak = pt.Equity
		}
		if peak > 0 {
			if dd := (peak - pt.Equity) / peak * 100; dd > maxDD {
				maxDD = dd
			}
		}
	}
	m.MaxDrawdown = maxDD

	m.WinRate = float64(wins) / float64(len(ledger))

	switch {
	case grossLoss > 0:
		m.ProfitFactor = grossProfit / grossLoss
	case grossProfit > 0:
		m.ProfitFactor = math.Inf(1)
	default:
		m.ProfitFactor = math.NaN()
	}

	return m
}
