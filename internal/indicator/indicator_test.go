package indicator

import (
	"errors"
	"math"
	"testing"
	"time"

	"ignition/internal/domain"
)

// makeBars builds a bar sequence from (high, low, close) triples with one
// minute between bars. Open is set to the close for simplicity.
func makeBars(hlc [][3]float64) []domain.Bar {
	start := time.Date(2025, 7, 29, 9, 30, 0, 0, time.UTC)
	bars := make([]domain.Bar, len(hlc))
	for i, v := range hlc {
		bars[i] = domain.Bar{
			Symbol:    "ESU25",
			Timestamp: start.Add(time.Duration(i) * time.Minute),
			Open:      v[2],
			High:      v[0],
			Low:       v[1],
			Close:     v[2],
			Volume:    100,
		}
	}
	return bars
}

func closeBars(closes []float64) []domain.Bar {
	hlc := make([][3]float64, len(closes))
	for i, c := range closes {
		hlc[i] = [3]float64{c, c, c}
	}
	return makeBars(hlc)
}

func almostEqual(a, b float64) bool {
	if math.IsNaN(a) && math.IsNaN(b) {
		return true
	}
	return math.Abs(a-b) < 1e-9
}

func assertSeries(t *testing.T, name string, got, want []float64) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("%s: series length = %d, want %d", name, len(got), len(want))
	}
	for i := range want {
		if !almostEqual(got[i], want[i]) {
			t.Errorf("%s[%d] = %v, want %v", name, i, got[i], want[i])
		}
	}
}

var testHLC = [][3]float64{
	{12, 10, 11},
	{13, 11, 12},
	{12, 9, 10},
	{14, 12, 13},
	{13, 11, 12.5},
}

func TestATR(t *testing.T) {
	bars := makeBars(testHLC)
	got, err := ATR(bars, 3)
	if err != nil {
		t.Fatalf("ATR: %v", err)
	}
	// True ranges: 2, 2, 3, 4, 2. EMA span 3 (alpha 0.5) seeded at 2.
	assertSeries(t, "ATR", got, []float64{2, 2, 2.5, 3.25, 2.625})
}

func TestROC(t *testing.T) {
	bars := closeBars([]float64{100, 102, 101, 104, 106})
	got, err := ROC(bars, 2)
	if err != nil {
		t.Fatalf("ROC: %v", err)
	}
	nan := math.NaN()
	assertSeries(t, "ROC", got, []float64{nan, nan, 1.0000000000000009, 1.9607843137254832, 4.950495049504955})
}

func TestSMA(t *testing.T) {
	bars := closeBars([]float64{100, 102, 101, 104, 106})
	got, err := SMA(bars, 3)
	if err != nil {
		t.Fatalf("SMA: %v", err)
	}
	nan := math.NaN()
	assertSeries(t, "SMA", got, []float64{nan, nan, 101, 102.33333333333333, 103.66666666666667})
}

func TestStochastic(t *testing.T) {
	bars := makeBars(testHLC)
	k, d, err := Stochastic(bars, 3, 2, 2)
	if err != nil {
		t.Fatalf("Stochastic: %v", err)
	}
	nan := math.NaN()
	assertSeries(t, "%K", k, []float64{nan, nan, nan, 52.5, 75})
	assertSeries(t, "%D", d, []float64{nan, nan, nan, nan, 63.75})
}

func TestStochasticFlatRange(t *testing.T) {
	// Constant high=low=close bars: the range is zero, so raw %K must be 0
	// (never NaN or Inf) at every index where the window is full.
	bars := closeBars([]float64{50, 50, 50, 50, 50, 50})
	k, d, err := Stochastic(bars, 3, 2, 1)
	if err != nil {
		t.Fatalf("Stochastic: %v", err)
	}
	for i := 2; i < len(k); i++ {
		if k[i] != 0 {
			t.Errorf("%%K[%d] = %v, want 0 for flat range", i, k[i])
		}
	}
	for i := 3; i < len(d); i++ {
		if d[i] != 0 {
			t.Errorf("%%D[%d] = %v, want 0 for flat range", i, d[i])
		}
	}
}

func TestMACD(t *testing.T) {
	bars := closeBars([]float64{100, 102, 101, 104, 106})
	macd, sig, hist, err := MACD(bars, 3, 5, 3)
	if err != nil {
		t.Fatalf("MACD: %v", err)
	}
	assertSeries(t, "macd", macd, []float64{0, 0.3333333333333286, 0.22222222222220012, 0.6481481481481239, 1.015432098765416})
	assertSeries(t, "signal", sig, []float64{0, 0.1666666666666643, 0.1944444444444322, 0.42129629629627807, 0.718364197530847})
	assertSeries(t, "histogram", hist, []float64{0, 0.1666666666666643, 0.02777777777776791, 0.22685185185184586, 0.29706790123456894})
}

func TestInvalidInput(t *testing.T) {
	bars := makeBars(testHLC)

	if _, err := ATR(nil, 14); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("ATR(nil) error = %v, want ErrInvalidInput", err)
	}
	if _, err := ATR(bars, 0); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("ATR(period=0) error = %v, want ErrInvalidInput", err)
	}
	if _, err := ROC(bars, -1); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("ROC(period=-1) error = %v, want ErrInvalidInput", err)
	}
	if _, err := SMA(nil, 3); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("SMA(nil) error = %v, want ErrInvalidInput", err)
	}
	if _, _, err := Stochastic(bars, 3, 0, 1); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("Stochastic(dPeriod=0) error = %v, want ErrInvalidInput", err)
	}
	if _, _, _, err := MACD(bars, 12, 26, 0); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("MACD(signal=0) error = %v, want ErrInvalidInput", err)
	}
}

func TestSeriesAlignment(t *testing.T) {
	// Every indicator output must be aligned one-to-one with its input.
	bars := makeBars(testHLC)

	atr, _ := ATR(bars, 2)
	roc, _ := ROC(bars, 2)
	sma, _ := SMA(bars, 2)
	k, d, _ := Stochastic(bars, 2, 2, 2)
	macd, sig, hist, _ := MACD(bars, 2, 3, 2)

	for name, s := range map[string][]float64{
		"ATR": atr, "ROC": roc, "SMA": sma,
		"%K": k, "%D": d,
		"macd": macd, "signal": sig, "histogram": hist,
	} {
		if len(s) != len(bars) {
			t.Errorf("%s length = %d, want %d", name, len(s), len(bars))
		}
	}
}
