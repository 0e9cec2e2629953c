package backtest

import (
	"errors"
	"math"
	"testing"
	"time"

	"ignition/internal/domain"
)

var t0 = time.Date(2025, 7, 29, 9, 30, 0, 0, time.UTC)

func ts(i int) time.Time { return t0.Add(time.Duration(i) * time.Minute) }

func flatBars(n int) []domain.Bar {
	bars := make([]domain.Bar, n)
	for i := range bars {
		bars[i] = domain.Bar{
			Symbol:    "ESU25",
			Timestamp: ts(i),
			Open:      100, High: 101, Low: 99, Close: 100,
			Volume: 10,
		}
	}
	return bars
}

func ev(i int, kind domain.EventKind, price float64) domain.TradeEvent {
	return domain.TradeEvent{Timestamp: ts(i), Kind: kind, Price: price, Reason: "test"}
}

// threeTradeEvents: long +10, long -5, short +15 gross.
func threeTradeEvents() []domain.TradeEvent {
	return []domain.TradeEvent{
		ev(1, domain.EventEntryLong, 100),
		ev(2, domain.EventExitLong, 110),
		ev(3, domain.EventEntryLong, 100),
		ev(4, domain.EventExitLong, 95),
		ev(5, domain.EventEntryShort, 100),
		ev(6, domain.EventExitShort, 85),
	}
}

func TestRunBuildsLedgerAndEquity(t *testing.T) {
	bt := New(flatBars(10), 1000, 0)
	if err := bt.Run(threeTradeEvents()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	ledger, equity := bt.Results()
	if len(ledger) != 3 {
		t.Fatalf("ledger has %d rows, want 3", len(ledger))
	}

	wantNet := []float64{10, -5, 15}
	wantSide := []domain.PositionSide{domain.PositionLong, domain.PositionLong, domain.PositionShort}
	for i, row := range ledger {
		if row.NetPnL != wantNet[i] {
			t.Errorf("row %d NetPnL = %v, want %v", i, row.NetPnL, wantNet[i])
		}
		if row.GrossPnL != wantNet[i] {
			t.Errorf("row %d GrossPnL = %v, want %v (zero commission)", i, row.GrossPnL, wantNet[i])
		}
		if row.Side != wantSide[i] {
			t.Errorf("row %d Side = %s, want %s", i, row.Side, wantSide[i])
		}
	}

	// Initial point plus one per closed trade.
	if len(equity) != 4 {
		t.Fatalf("equity has %d points, want 4", len(equity))
	}
	wantEquity := []float64{1000, 1010, 1005, 1020}
	for i, pt := range equity {
		if pt.Equity != wantEquity[i] {
			t.Errorf("equity[%d] = %v, want %v", i, pt.Equity, wantEquity[i])
		}
	}

	// Equity is strictly ordered by time with no duplicate timestamps.
	for i := 1; i < len(equity); i++ {
		if !equity[i].Timestamp.After(equity[i-1].Timestamp) {
			t.Errorf("equity[%d] timestamp %v not after equity[%d] %v",
				i, equity[i].Timestamp, i-1, equity[i-1].Timestamp)
		}
	}
}

func TestLedgerEquityDeltaInvariant(t *testing.T) {
	bt := New(flatBars(10), 1000, 0.25)
	if err := bt.Run(threeTradeEvents()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	ledger, equity := bt.Results()
	sum := 0.0
	for _, row := range ledger {
		sum += row.NetPnL
	}
	delta := equity[len(equity)-1].Equity - equity[0].Equity
	if math.Abs(sum-delta) > 1e-9 {
		t.Errorf("sum of ledger NetPnL = %v, equity delta = %v; must match", sum, delta)
	}
}

func TestCommissionChargedBothLegs(t *testing.T) {
	bt := New(flatBars(5), 1000, 0.5)
	events := []domain.TradeEvent{
		ev(1, domain.EventEntryLong, 100),
		ev(2, domain.EventExitLong, 110),
	}
	if err := bt.Run(events); err != nil {
		t.Fatalf("Run: %v", err)
	}
	ledger, _ := bt.Results()
	if len(ledger) != 1 {
		t.Fatalf("ledger has %d rows, want 1", len(ledger))
	}
	row := ledger[0]
	if row.GrossPnL != 10 {
		t.Errorf("GrossPnL = %v, want 10", row.GrossPnL)
	}
	if row.Commission != 1.0 {
		t.Errorf("Commission = %v, want 1.0 (0.5 per leg)", row.Commission)
	}
	if row.NetPnL != 9 {
		t.Errorf("NetPnL = %v, want 9", row.NetPnL)
	}
}

func TestOpenPositionAtEndProducesNoRow(t *testing.T) {
	bt := New(flatBars(5), 1000, 0)
	events := []domain.TradeEvent{
		ev(1, domain.EventEntryLong, 100),
		ev(2, domain.EventExitLong, 105),
		ev(3, domain.EventEntryShort, 104),
	}
	if err := bt.Run(events); err != nil {
		t.Fatalf("Run: %v", err)
	}
	ledger, equity := bt.Results()
	if len(ledger) != 1 {
		t.Errorf("ledger has %d rows, want 1 (trailing entry unclosed)", len(ledger))
	}
	if len(equity) != 2 {
		t.Errorf("equity has %d points, want 2", len(equity))
	}
}

func TestRunRejectsMalformedSequences(t *testing.T) {
	cases := []struct {
		name   string
		events []domain.TradeEvent
	}{
		{"exit while flat", []domain.TradeEvent{ev(1, domain.EventExitLong, 100)}},
		{"double entry", []domain.TradeEvent{
			ev(1, domain.EventEntryLong, 100),
			ev(2, domain.EventEntryShort, 101),
		}},
		{"side mismatch", []domain.TradeEvent{
			ev(1, domain.EventEntryLong, 100),
			ev(2, domain.EventExitShort, 101),
		}},
		{"timestamps out of order", []domain.TradeEvent{
			ev(5, domain.EventEntryLong, 100),
			ev(2, domain.EventExitLong, 101),
		}},
		{"unknown kind", []domain.TradeEvent{
			{Timestamp: ts(1), Kind: domain.EventKind("hold"), Price: 100},
		}},
	}

	for _, c := range cases {
		bt := New(flatBars(10), 1000, 0)
		if err := bt.Run(c.events); !errors.Is(err, ErrEventOrder) {
			t.Errorf("%s: Run() = %v, want ErrEventOrder", c.name, err)
		}
	}
}

func TestCalculateMetrics(t *testing.T) {
	bt := New(flatBars(10), 1000, 0)
	if err := bt.Run(threeTradeEvents()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	ledger, equity := bt.Results()
	m := bt.CalculateMetrics(ledger, equity)

	if m.TradeCount != 3 {
		t.Errorf("TradeCount = %d, want 3", m.TradeCount)
	}
	if math.Abs(m.TotalReturn-2.0) > 1e-9 {
		t.Errorf("TotalReturn = %v, want 2.0", m.TotalReturn)
	}
	if math.Abs(m.SharpeRatio-0.6405126152203486) > 1e-9 {
		t.Errorf("SharpeRatio = %v, want 0.6405126152203486", m.SharpeRatio)
	}
	if math.Abs(m.MaxDrawdown-0.49504950495049505) > 1e-9 {
		t.Errorf("MaxDrawdown = %v, want 0.49504950495", m.MaxDrawdown)
	}
	if math.Abs(m.WinRate-2.0/3.0) > 1e-9 {
		t.Errorf("WinRate = %v, want 2/3", m.WinRate)
	}
	if math.Abs(m.ProfitFactor-5.0) > 1e-9 {
		t.Errorf("ProfitFactor = %v, want 5 (25 profit / 5 loss)", m.ProfitFactor)
	}
}

func TestCalculateMetricsNoTrades(t *testing.T) {
	bt := New(flatBars(10), 1000, 0)
	if err := bt.Run(nil); err != nil {
		t.Fatalf("Run(nil): %v", err)
	}
	ledger, equity := bt.Results()
	if len(ledger) != 0 {
		t.Fatalf("ledger has %d rows, want 0", len(ledger))
	}

	m := bt.CalculateMetrics(ledger, equity)
	if m.TradeCount != 0 {
		t.Errorf("TradeCount = %d, want 0", m.TradeCount)
	}
	for _, name := range []string{
		domain.MetricTotalReturn, domain.MetricSharpeRatio,
		domain.MetricMaxDrawdown, domain.MetricWinRate, domain.MetricProfitFactor,
	} {
		if m.Defined(name) {
			v, _ := m.Value(name)
			t.Errorf("%s = %v, want NaN for a no-trade run", name, v)
		}
	}
}

func TestCalculateMetricsZeroVariance(t *testing.T) {
	// Two identical trades: zero return variance makes Sharpe undefined.
	bt := New(flatBars(10), 1000, 0)
	events := []domain.TradeEvent{
		ev(1, domain.EventEntryLong, 100),
		ev(2, domain.EventExitLong, 110),
		ev(3, domain.EventEntryLong, 100),
		ev(4, domain.EventExitLong, 110),
	}
	if err := bt.Run(events); err != nil {
		t.Fatalf("Run: %v", err)
	}
	ledger, equity := bt.Results()
	m := bt.CalculateMetrics(ledger, equity)

	if !math.IsNaN(m.SharpeRatio) {
		t.Errorf("SharpeRatio = %v, want NaN for zero variance", m.SharpeRatio)
	}
	// All winners: gross loss is zero, profit factor is +Inf.
	if !math.IsInf(m.ProfitFactor, 1) {
		t.Errorf("ProfitFactor = %v, want +Inf", m.ProfitFactor)
	}
	if m.WinRate != 1 {
		t.Errorf("WinRate = %v, want 1", m.WinRate)
	}
}

func TestShortPnL(t *testing.T) {
	bt := New(flatBars(5), 1000, 0)
	events := []domain.TradeEvent{
		ev(1, domain.EventEntryShort, 100),
		ev(2, domain.EventExitShort, 90),
	}
	if err := bt.Run(events); err != nil {
		t.Fatalf("Run: %v", err)
	}
	ledger, _ := bt.Results()
	if ledger[0].GrossPnL != 10 {
		t.Errorf("short GrossPnL = %v, want 10 (entry 100, exit 90)", ledger[0].GrossPnL)
	}
}
