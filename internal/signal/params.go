package signal

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidParams is returned when a parameter set fails validation at
// engine construction.
var ErrInvalidParams = errors.New("signal: invalid params")

// StochParams configures one stochastic oscillator.
type StochParams struct {
	KPeriod   int `yaml:"k_period"`
	DPeriod   int `yaml:"d_period"`
	Smoothing int `yaml:"smoothing"`
}

func (s StochParams) validate(name string) error {
	if s.KPeriod < 1 || s.DPeriod < 1 || s.Smoothing < 1 {
		return fmt.Errorf("%w: %s periods must be >= 1, got %d/%d/%d",
			ErrInvalidParams, name, s.KPeriod, s.DPeriod, s.Smoothing)
	}
	return nil
}

func (s StochParams) maxPeriod() int {
	return max(s.KPeriod, s.DPeriod, s.Smoothing)
}

// Params fully configures one signal engine instance. It is the strongly
// typed replacement for the original free-form parameter dictionary: every
// field is validated once at engine construction rather than at first use.
type Params struct {
	// Volatility / consolidation detection.
	ATRPeriod          int     `yaml:"atr_period"`
	ATRThresholdFactor float64 `yaml:"atr_threshold_factor"`
	ATRAvgWindow       int     `yaml:"atr_avg_window"`

	// Momentum ignition.
	ROCPeriod    int     `yaml:"roc_period"`
	ROCThreshold float64 `yaml:"roc_threshold"`

	// Long-term trend filter.
	TrendMAPeriod int `yaml:"trend_ma_period"`

	// Trailing stop distance in ATR multiples.
	StopMultiple float64 `yaml:"atr_stop_multiple"`

	// Confirmation oscillators: two fast and two slow parameterizations.
	// SlowStoch2 is the slowest oscillator and drives the cross check.
	FastStoch1 StochParams `yaml:"fast_stoch_1"`
	FastStoch2 StochParams `yaml:"fast_stoch_2"`
	SlowStoch1 StochParams `yaml:"slow_stoch_1"`
	SlowStoch2 StochParams `yaml:"slow_stoch_2"`

	// Shared oversold/overbought thresholds for all four oscillators, plus
	// tighter alert levels applied to the slowest oscillator only.
	StochOversold            float64 `yaml:"stoch_oversold"`
	StochOverbought          float64 `yaml:"stoch_overbought"`
	SlowStochOversoldAlert   float64 `yaml:"slow_stoch_oversold_alert"`
	SlowStochOverboughtAlert float64 `yaml:"slow_stoch_overbought_alert"`

	// MACD confirmation.
	MACDFastPeriod   int `yaml:"macd_fast_period"`
	MACDSlowPeriod   int `yaml:"macd_slow_period"`
	MACDSignalPeriod int `yaml:"macd_signal_period"`
}

// DefaultParams returns the reference parameter set: ATR(14) consolidation at
// 0.7 of its 20-bar average, ROC(5) ignition at ±0.5%, SMA(200) trend filter,
// 2×ATR trailing stop, stochastics 9/3/3, 14/3/3, 40/4/4 and 60/10/10 with
// 20/80 thresholds and 15/85 alert levels, and MACD 12/26/9.
func DefaultParams() Params {
	return Params{
		ATRPeriod:          14,
		ATRThresholdFactor: 0.7,
		ATRAvgWindow:       20,
		ROCPeriod:          5,
		ROCThreshold:       0.5,
		TrendMAPeriod:      200,
		StopMultiple:       2.0,
		FastStoch1:         StochParams{KPeriod: 9, DPeriod: 3, Smoothing: 3},
		FastStoch2:         StochParams{KPeriod: 14, DPeriod: 3, Smoothing: 3},
		SlowStoch1:         StochParams{KPeriod: 40, DPeriod: 4, Smoothing: 4},
		SlowStoch2:         StochParams{KPeriod: 60, DPeriod: 10, Smoothing: 10},
		StochOversold:      20,
		StochOverbought:    80,
		SlowStochOversoldAlert:   15,
		SlowStochOverboughtAlert: 85,
		MACDFastPeriod:   12,
		MACDSlowPeriod:   26,
		MACDSignalPeriod: 9,
	}
}

// Validate checks every field and fails fast with ErrInvalidParams.
func (p Params) Validate() error {
	type period struct {
		name  string
		value int
	}
	for _, pd := range []period{
		{"atr_period", p.ATRPeriod},
		{"atr_avg_window", p.ATRAvgWindow},
		{"roc_period", p.ROCPeriod},
		{"trend_ma_period", p.TrendMAPeriod},
		{"macd_fast_period", p.MACDFastPeriod},
		{"macd_slow_period", p.MACDSlowPeriod},
		{"macd_signal_period", p.MACDSignalPeriod},
	} {
		if pd.value < 1 {
			return fmt.Errorf("%w: %s must be >= 1, got %d", ErrInvalidParams, pd.name, pd.value)
		}
	}

	for _, s := range []struct {
		name string
		sp   StochParams
	}{
		{"fast_stoch_1", p.FastStoch1},
		{"fast_stoch_2", p.FastStoch2},
		{"slow_stoch_1", p.SlowStoch1},
		{"slow_stoch_2", p.SlowStoch2},
	} {
		if err := s.sp.validate(s.name); err != nil {
			return err
		}
	}

	if p.ATRThresholdFactor <= 0 {
		return fmt.Errorf("%w: atr_threshold_factor must be > 0, got %v", ErrInvalidParams, p.ATRThresholdFactor)
	}
	if p.StopMultiple <= 0 {
		return fmt.Errorf("%w: atr_stop_multiple must be > 0, got %v", ErrInvalidParams, p.StopMultiple)
	}
	if p.ROCThreshold < 0 {
		return fmt.Errorf("%w: roc_threshold must be >= 0, got %v", ErrInvalidParams, p.ROCThreshold)
	}
	if p.StochOversold >= p.StochOverbought {
		return fmt.Errorf("%w: stoch_oversold (%v) must be below stoch_overbought (%v)",
			ErrInvalidParams, p.StochOversold, p.StochOverbought)
	}
	return nil
}

// MaxLookback returns the minimum history length the engine needs before it
// evaluates anything: the largest configured period plus a margin of two bars
// for previous-value comparisons.
func (p Params) MaxLookback() int {
	m := max(
		p.ATRPeriod,
		p.ROCPeriod,
		p.TrendMAPeriod,
		p.FastStoch1.maxPeriod(),
		p.FastStoch2.maxPeriod(),
		p.SlowStoch1.maxPeriod(),
		p.SlowStoch2.maxPeriod(),
		p.MACDFastPeriod,
		p.MACDSlowPeriod,
		p.MACDSignalPeriod,
	)
	return m + 2
}

// Apply sets a single parameter by its wire name, the hook used by grid
// search to overlay one candidate value onto a base parameter set. Integer
// parameters reject fractional values.
func (p *Params) Apply(name string, value float64) error {
	setInt := func(dst *int) error {
		if value != math.Trunc(value) {
			return fmt.Errorf("%w: %s requires an integer, got %v", ErrInvalidParams, name, value)
		}
		*dst = int(value)
		return nil
	}

	switch name {
	case "atr_period":
		return setInt(&p.ATRPeriod)
	case "atr_threshold_factor":
		p.ATRThresholdFactor = value
	case "atr_avg_window":
		return setInt(&p.ATRAvgWindow)
	case "roc_period":
		return setInt(&p.ROCPeriod)
	case "roc_threshold":
		p.ROCThreshold = value
	case "trend_ma_period":
		return setInt(&p.TrendMAPeriod)
	case "atr_stop_multiple":
		p.StopMultiple = value
	case "fast_stoch_k_period_1":
		return setInt(&p.FastStoch1.KPeriod)
	case "fast_stoch_d_period_1":
		return setInt(&p.FastStoch1.DPeriod)
	case "fast_stoch_smoothing_1":
		return setInt(&p.FastStoch1.Smoothing)
	case "fast_stoch_k_period_2":
		return setInt(&p.FastStoch2.KPeriod)
	case "fast_stoch_d_period_2":
		return setInt(&p.FastStoch2.DPeriod)
	case "fast_stoch_smoothing_2":
		return setInt(&p.FastStoch2.Smoothing)
	case "slow_stoch_k_period_1":
		return setInt(&p.SlowStoch1.KPeriod)
	case "slow_stoch_d_period_1":
		return setInt(&p.SlowStoch1.DPeriod)
	case "slow_stoch_smoothing_1":
		return setInt(&p.SlowStoch1.Smoothing)
	case "slow_stoch_k_period_2":
		return setInt(&p.SlowStoch2.KPeriod)
	case "slow_stoch_d_period_2":
		return setInt(&p.SlowStoch2.DPeriod)
	case "slow_stoch_smoothing_2":
		return setInt(&p.SlowStoch2.Smoothing)
	case "stoch_oversold":
		p.StochOversold = value
	case "stoch_overbought":
		p.StochOverbought = value
	case "slow_stoch_oversold_alert":
		p.SlowStochOversoldAlert = value
	case "slow_stoch_overbought_alert":
		p.SlowStochOverboughtAlert = value
	case "macd_fast_period":
		return setInt(&p.MACDFastPeriod)
	case "macd_slow_period":
		return setInt(&p.MACDSlowPeriod)
	case "macd_signal_period":
		return setInt(&p.MACDSignalPeriod)
	default:
		return fmt.Errorf("%w: unknown parameter %q", ErrInvalidParams, name)
	}
	return nil
}
