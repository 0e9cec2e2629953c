package signal

import (
	"errors"
	"testing"
)

func TestDefaultParamsValid(t *testing.T) {
	if err := DefaultParams().Validate(); err != nil {
		t.Fatalf("DefaultParams failed validation: %v", err)
	}
}

func TestParamsValidateRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Params)
	}{
		{"zero atr_period", func(p *Params) { p.ATRPeriod = 0 }},
		{"negative roc_period", func(p *Params) { p.ROCPeriod = -3 }},
		{"zero trend_ma_period", func(p *Params) { p.TrendMAPeriod = 0 }},
		{"zero stoch k", func(p *Params) { p.SlowStoch2.KPeriod = 0 }},
		{"zero stoch smoothing", func(p *Params) { p.FastStoch1.Smoothing = 0 }},
		{"zero threshold factor", func(p *Params) { p.ATRThresholdFactor = 0 }},
		{"negative stop multiple", func(p *Params) { p.StopMultiple = -1 }},
		{"negative roc threshold", func(p *Params) { p.ROCThreshold = -0.5 }},
		{"oversold above overbought", func(p *Params) { p.StochOversold = 90; p.StochOverbought = 10 }},
		{"zero macd slow", func(p *Params) { p.MACDSlowPeriod = 0 }},
	}

	for _, c := range cases {
		p := DefaultParams()
		c.mutate(&p)
		if err := p.Validate(); !errors.Is(err, ErrInvalidParams) {
			t.Errorf("%s: Validate() = %v, want ErrInvalidParams", c.name, err)
		}
	}
}

func TestNewEngineRejectsInvalidParams(t *testing.T) {
	p := DefaultParams()
	p.ATRPeriod = 0
	if _, err := NewEngine(p); !errors.Is(err, ErrInvalidParams) {
		t.Fatalf("NewEngine error = %v, want ErrInvalidParams", err)
	}
}

func TestParamsApply(t *testing.T) {
	p := DefaultParams()

	if err := p.Apply("atr_period", 20); err != nil {
		t.Fatalf("Apply(atr_period): %v", err)
	}
	if p.ATRPeriod != 20 {
		t.Errorf("ATRPeriod = %d, want 20", p.ATRPeriod)
	}

	if err := p.Apply("roc_threshold", 1.5); err != nil {
		t.Fatalf("Apply(roc_threshold): %v", err)
	}
	if p.ROCThreshold != 1.5 {
		t.Errorf("ROCThreshold = %v, want 1.5", p.ROCThreshold)
	}

	if err := p.Apply("slow_stoch_k_period_2", 50); err != nil {
		t.Fatalf("Apply(slow_stoch_k_period_2): %v", err)
	}
	if p.SlowStoch2.KPeriod != 50 {
		t.Errorf("SlowStoch2.KPeriod = %d, want 50", p.SlowStoch2.KPeriod)
	}

	if err := p.Apply("slow_stoch_oversold_alert", 12); err != nil {
		t.Fatalf("Apply(slow_stoch_oversold_alert): %v", err)
	}
	if p.SlowStochOversoldAlert != 12 {
		t.Errorf("SlowStochOversoldAlert = %v, want 12", p.SlowStochOversoldAlert)
	}
}

func TestParamsApplyErrors(t *testing.T) {
	p := DefaultParams()

	if err := p.Apply("no_such_param", 1); !errors.Is(err, ErrInvalidParams) {
		t.Errorf("Apply(unknown) = %v, want ErrInvalidParams", err)
	}
	if err := p.Apply("atr_period", 14.5); !errors.Is(err, ErrInvalidParams) {
		t.Errorf("Apply(fractional period) = %v, want ErrInvalidParams", err)
	}
}

func TestMaxLookback(t *testing.T) {
	p := DefaultParams()
	// Largest configured period is the 200-bar trend SMA, plus a two-bar
	// margin for previous-value comparisons.
	if got := p.MaxLookback(); got != 202 {
		t.Errorf("MaxLookback = %d, want 202", got)
	}

	p.SlowStoch2.KPeriod = 300
	if got := p.MaxLookback(); got != 302 {
		t.Errorf("MaxLookback = %d, want 302", got)
	}
}
