// Package signal implements the momentum-ignition signal engine: a bar-by-bar
// state machine that watches for volatility consolidation, a rate-of-change
// ignition, a trend filter, and oscillator confirmations, and emits entry and
// exit trade events with an ATR trailing stop.
package signal

import (
	"fmt"
	"math"
	"time"

	"ignition/internal/domain"
	"ignition/internal/indicator"
)

// Event reason tags.
const (
	ReasonTrailingStop = "trailing_stop"
	ReasonLongEntry    = "consolidation_breakout_long_confirmed"
	ReasonShortEntry   = "consolidation_breakout_short_confirmed"
)

type momentumSignal string

const (
	momentumNone  momentumSignal = "none"
	momentumLong  momentumSignal = "long"
	momentumShort momentumSignal = "short"
)

type trendState string

const (
	trendSideways trendState = "sideways"
	trendUp       trendState = "uptrend"
	trendDown     trendState = "downtrend"
)

// conditions is the full evaluation of one bar: every input the transition
// logic needs, computed over the cumulative history.
type conditions struct {
	timestamp     time.Time
	close         float64
	high          float64
	low           float64
	atr           float64
	consolidating bool
	momentum      momentumSignal
	trend         trendState
	stochLong     bool
	stochShort    bool
	macdLong      bool
	macdShort     bool
}

// Engine is a per-run signal state machine. It owns exactly one position
// variable and its trade-event log; instances are never shared across
// parameter combinations.
type Engine struct {
	params Params

	position     domain.PositionSide
	entryPrice   float64
	trailingStop float64

	events []domain.TradeEvent
}

// NewEngine validates the parameter set and returns a fresh engine in the
// flat state.
func NewEngine(params Params) (*Engine, error) {
	if params.ATRAvgWindow == 0 {
		params.ATRAvgWindow = 20
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Engine{
		params:   params,
		position: domain.PositionFlat,
	}, nil
}

// Params returns the engine's parameter set.
func (e *Engine) Params() Params { return e.params }

// Position returns the current side, entry price, and trailing stop. Entry
// price and stop are only meaningful while a position is open.
func (e *Engine) Position() (domain.PositionSide, float64, float64) {
	return e.position, e.entryPrice, e.trailingStop
}

// Signals returns a snapshot of all trade events emitted so far, in
// timestamp order.
func (e *Engine) Signals() []domain.TradeEvent {
	out := make([]domain.TradeEvent, len(e.events))
	copy(out, e.events)
	return out
}

// ProcessBar advances the state machine by one bar. The history slice is the
// full cumulative bar sequence up to and including the new bar; the engine
// never mutates it. When the history is shorter than the required lookback
// the call is a no-op. At most one state transition happens per call, and an
// exit never cascades into a re-entry within the same call.
func (e *Engine) ProcessBar(history []domain.Bar) error {
	if len(history) < e.params.MaxLookback() {
		return nil
	}

	cond, err := e.evaluate(history)
	if err != nil {
		return fmt.Errorf("signal: evaluating bar %s: %w",
			history[len(history)-1].Timestamp.Format(time.RFC3339), err)
	}

	e.step(cond)
	return nil
}

// evaluate recomputes all indicators over the cumulative history and distills
// them into the conditions for the newest bar. Recomputation from scratch on
// every call keeps the engine equivalent to an offline calculation over the
// whole series.
func (e *Engine) evaluate(history []domain.Bar) (conditions, error) {
	p := e.params
	last := history[len(history)-1]

	cond := conditions{
		timestamp: last.Timestamp,
		close:     last.Close,
		high:      last.High,
		low:       last.Low,
		momentum:  momentumNone,
		trend:     trendSideways,
	}

	atr, err := indicator.ATR(history, p.ATRPeriod)
	if err != nil {
		return cond, err
	}
	cond.atr = atr[len(atr)-1]

	// Consolidation: current ATR well below its recent average.
	if len(atr) >= p.ATRAvgWindow {
		sum := 0.0
		for _, v := range atr[len(atr)-p.ATRAvgWindow:] {
			sum += v
		}
		avg := sum / float64(p.ATRAvgWindow)
		cond.consolidating = cond.atr < avg*p.ATRThresholdFactor
	}

	// Momentum ignition from ROC versus a symmetric threshold.
	roc, err := indicator.ROC(history, p.ROCPeriod)
	if err != nil {
		return cond, err
	}
	if r := roc[len(roc)-1]; !math.IsNaN(r) {
		switch {
		case r > p.ROCThreshold:
			cond.momentum = momentumLong
		case r < -p.ROCThreshold:
			cond.momentum = momentumShort
		}
	}

	// Trend from close versus the long SMA.
	sma, err := indicator.SMA(history, p.TrendMAPeriod)
	if err != nil {
		return cond, err
	}
	if s := sma[len(sma)-1]; !math.IsNaN(s) {
		switch {
		case last.Close > s:
			cond.trend = trendUp
		case last.Close < s:
			cond.trend = trendDown
		}
	}

	cond.stochLong, cond.stochShort, err = e.stochConfirmations(history)
	if err != nil {
		return cond, err
	}

	cond.macdLong, cond.macdShort, err = e.macdConfirmation(history)
	if err != nil {
		return cond, err
	}

	return cond, nil
}

// stochConfirmations evaluates the four-oscillator confirmation policy: every
// oscillator's %K and %D beyond the shared threshold, plus a cross of the
// slowest oscillator's %K over/under its %D at or beyond the alert level. Any
// unavailable value forces both confirmations false.
func (e *Engine) stochConfirmations(history []domain.Bar) (long, short bool, err error) {
	p := e.params

	type pair struct{ k, d []float64 }
	var pairs [4]pair
	for i, sp := range []StochParams{p.FastStoch1, p.FastStoch2, p.SlowStoch1, p.SlowStoch2} {
		k, d, err := indicator.Stochastic(history, sp.KPeriod, sp.DPeriod, sp.Smoothing)
		if err != nil {
			return false, false, err
		}
		pairs[i] = pair{k, d}
	}

	n := len(history)
	slowest := pairs[3]
	curK, curD := slowest.k[n-1], slowest.d[n-1]
	prevK, prevD := slowest.k[n-2], slowest.d[n-2]

	for _, pr := range pairs {
		if math.IsNaN(pr.k[n-1]) || math.IsNaN(pr.d[n-1]) {
			return false, false, nil
		}
	}
	if math.IsNaN(prevK) || math.IsNaN(prevD) {
		return false, false, nil
	}

	allOversold := true
	allOverbought := true
	for _, pr := range pairs {
		if pr.k[n-1] >= p.StochOversold || pr.d[n-1] >= p.StochOversold {
			allOversold = false
		}
		if pr.k[n-1] <= p.StochOverbought || pr.d[n-1] <= p.StochOverbought {
			allOverbought = false
		}
	}

	crossUp := prevK < prevD && curK > curD
	crossDown := prevK > prevD && curK < curD

	long = allOversold && crossUp && curK <= p.SlowStochOversoldAlert
	short = allOverbought && crossDown && curK >= p.SlowStochOverboughtAlert
	return long, short, nil
}

// macdConfirmation requires both the macd and signal lines on the entry side
// of zero with the histogram flipping sign between the previous and current
// bar. Any unavailable value forces both confirmations false.
func (e *Engine) macdConfirmation(history []domain.Bar) (long, short bool, err error) {
	p := e.params

	macd, sig, hist, err := indicator.MACD(history, p.MACDFastPeriod, p.MACDSlowPeriod, p.MACDSignalPeriod)
	if err != nil {
		return false, false, err
	}

	n := len(history)
	m, s := macd[n-1], sig[n-1]
	h, hPrev := hist[n-1], hist[n-2]
	if math.IsNaN(m) || math.IsNaN(s) || math.IsNaN(h) || math.IsNaN(hPrev) {
		return false, false, nil
	}

	long = m < 0 && s < 0 && hPrev < 0 && h > 0
	short = m > 0 && s > 0 && hPrev > 0 && h < 0
	return long, short, nil
}

// step applies the transition logic for one evaluated bar: the exit check
// runs first, and an exit consumes the whole call.
func (e *Engine) step(c conditions) {
	switch e.position {
	case domain.PositionLong:
		// Ratchet the stop upward only.
		if ns := c.close - c.atr*e.params.StopMultiple; ns > e.trailingStop {
			e.trailingStop = ns
		}
		if c.low <= e.trailingStop {
			e.emit(c.timestamp, domain.EventExitLong, e.trailingStop, ReasonTrailingStop)
			e.reset()
		}
		return

	case domain.PositionShort:
		// Ratchet the stop downward only.
		if ns := c.close + c.atr*e.params.StopMultiple; ns < e.trailingStop {
			e.trailingStop = ns
		}
		if c.high >= e.trailingStop {
			e.emit(c.timestamp, domain.EventExitShort, e.trailingStop, ReasonTrailingStop)
			e.reset()
		}
		return
	}

	// Flat: evaluate entries.
	switch {
	case c.consolidating && c.momentum == momentumLong && c.trend == trendUp &&
		c.stochLong && c.macdLong:
		e.emit(c.timestamp, domain.EventEntryLong, c.close, ReasonLongEntry)
		e.position = domain.PositionLong
		e.entryPrice = c.close
		e.trailingStop = c.close - c.atr*e.params.StopMultiple

	case c.consolidating && c.momentum == momentumShort && c.trend == trendDown &&
		c.stochShort && c.macdShort:
		e.emit(c.timestamp, domain.EventEntryShort, c.close, ReasonShortEntry)
		e.position = domain.PositionShort
		e.entryPrice = c.close
		e.trailingStop = c.close + c.atr*e.params.StopMultiple
	}
}

func (e *Engine) emit(ts time.Time, kind domain.EventKind, price float64, reason string) {
	e.events = append(e.events, domain.TradeEvent{
		Timestamp: ts,
		Kind:      kind,
		Price:     price,
		Reason:    reason,
	})
}

func (e *Engine) reset() {
	e.position = domain.PositionFlat
	e.entryPrice = 0
	e.trailingStop = 0
}
