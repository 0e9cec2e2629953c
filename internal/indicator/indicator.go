// Package indicator provides technical indicator calculations over ordered
// OHLCV bar sequences. Every function returns one or more series aligned
// one-to-one with the input bars; positions for which the indicator is not yet
// defined hold math.NaN, never a silent zero.
package indicator

import (
	"errors"
	"fmt"
	"math"

	"ignition/internal/domain"
)

// ErrInvalidInput is returned when an indicator is called with a non-positive
// period or an empty bar sequence.
var ErrInvalidInput = errors.New("indicator: invalid input")

func validate(bars []domain.Bar, periods ...int) error {
	if len(bars) == 0 {
		return fmt.Errorf("%w: empty bar sequence", ErrInvalidInput)
	}
	for _, p := range periods {
		if p < 1 {
			return fmt.Errorf("%w: period %d < 1", ErrInvalidInput, p)
		}
	}
	return nil
}

// ema computes a recursive exponential moving average of values with smoothing
// factor alpha = 2/(period+1), seeded with the first value. NaN inputs
// propagate until the first real value appears.
func ema(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	alpha := 2.0 / (float64(period) + 1.0)

	prev := math.NaN()
	for i, v := range values {
		if math.IsNaN(prev) {
			prev = v
		} else if !math.IsNaN(v) {
			prev = alpha*v + (1-alpha)*prev
		}
		out[i] = prev
	}
	return out
}

// rollingMean computes a trailing arithmetic mean over a window of the given
// size. Positions before the window fills, or whose window contains a NaN,
// are NaN.
func rollingMean(values []float64, window int) []float64 {
	out := make([]float64, len(values))
	for i := range out {
		out[i] = math.NaN()
	}
	for i := window - 1; i < len(values); i++ {
		sum := 0.0
		ok := true
		for j := i - window + 1; j <= i; j++ {
			if math.IsNaN(values[j]) {
				ok = false
				break
			}
			sum += values[j]
		}
		if ok {
			out[i] = sum / float64(window)
		}
	}
	return out
}

// ATR computes the Average True Range: an exponentially weighted moving
// average of the true range with span equal to period, seeded by the first
// true-range value. Every position is defined.
func ATR(bars []domain.Bar, period int) ([]float64, error) {
	if err := validate(bars, period); err != nil {
		return nil, fmt.Errorf("ATR: %w", err)
	}

	tr := make([]float64, len(bars))
	tr[0] = bars[0].High - bars[0].Low
	for i := 1; i < len(bars); i++ {
		hl := bars[i].High - bars[i].Low
		hc := math.Abs(bars[i].High - bars[i-1].Close)
		lc := math.Abs(bars[i].Low - bars[i-1].Close)
		tr[i] = math.Max(hl, math.Max(hc, lc))
	}
	return ema(tr, period), nil
}

// ROC computes the Rate of Change: the percentage change of close versus the
// close `period` bars earlier. The first `period` positions are NaN.
func ROC(bars []domain.Bar, period int) ([]float64, error) {
	if err := validate(bars, period); err != nil {
		return nil, fmt.Errorf("ROC: %w", err)
	}

	out := make([]float64, len(bars))
	for i := range out {
		if i < period {
			out[i] = math.NaN()
			continue
		}
		out[i] = (bars[i].Close/bars[i-period].Close - 1) * 100
	}
	return out, nil
}

// SMA computes the simple moving average of close over a trailing window of
// `period` bars. Positions before the window fills are NaN.
func SMA(bars []domain.Bar, period int) ([]float64, error) {
	if err := validate(bars, period); err != nil {
		return nil, fmt.Errorf("SMA: %w", err)
	}

	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}
	return rollingMean(closes, period), nil
}

// Stochastic computes the stochastic oscillator. The raw %K compares close to
// the trailing kPeriod high/low range, mapping a flat (zero) range to 0 rather
// than NaN or Inf. The returned %K is the raw value smoothed over `smoothing`
// bars, and %D is the trailing mean of the smoothed %K over dPeriod bars.
func Stochastic(bars []domain.Bar, kPeriod, dPeriod, smoothing int) (k, d []float64, err error) {
	if err := validate(bars, kPeriod, dPeriod, smoothing); err != nil {
		return nil, nil, fmt.Errorf("Stochastic: %w", err)
	}

	raw := make([]float64, len(bars))
	for i := range raw {
		if i < kPeriod-1 {
			raw[i] = math.NaN()
			continue
		}
		lo := math.Inf(1)
		hi := math.Inf(-1)
		for j := i - kPeriod + 1; j <= i; j++ {
			lo = math.Min(lo, bars[j].Low)
			hi = math.Max(hi, bars[j].High)
		}
		if hi == lo {
			raw[i] = 0
			continue
		}
		raw[i] = 100 * (bars[i].Close - lo) / (hi - lo)
	}

	k = rollingMean(raw, smoothing)
	d = rollingMean(k, dPeriod)
	return k, d, nil
}

// MACD computes the Moving Average Convergence Divergence: the difference of
// the fast and slow close EMAs, a signal line (EMA of the macd line over the
// signal period), and the histogram (macd minus signal). Every position is
// defined.
func MACD(bars []domain.Bar, fast, slow, signal int) (macd, sig, hist []float64, err error) {
	if err := validate(bars, fast, slow, signal); err != nil {
		return nil, nil, nil, fmt.Errorf("MACD: %w", err)
	}

	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}

	fastEMA := ema(closes, fast)
	slowEMA := ema(closes, slow)

	macd = make([]float64, len(bars))
	for i := range macd {
		macd[i] = fastEMA[i] - slowEMA[i]
	}

	sig = ema(macd, signal)

	hist = make([]float64, len(bars))
	for i := range hist {
		hist[i] = macd[i] - sig[i]
	}
	return macd, sig, hist, nil
}
