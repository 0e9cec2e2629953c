package config

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleYAML = `
storage:
  data_dir: /tmp/ignition-data
  sqlite_path: /tmp/ignition-data/results.db

alpaca:
  api_key: key-from-file
  api_secret: secret-from-file

logging:
  level: debug
  format: text

gather:
  symbols: [SPY, QQQ]
  start_date: "2024-01-01"
  end_date: "2024-12-31"

backtest:
  symbol: SPY
  start_date: "2024-01-01"
  end_date: "2024-06-30"
  initial_capital: 250000
  commission: 0.01

strategy:
  atr_period: 10
  roc_threshold: 0.75

optimizer:
  metric: total_return
  top_n: 5
  workers: 4
  ranges:
    - name: atr_stop_multiple
      values: [1.5, 2.0, 2.5]
    - name: roc_threshold
      values: [0.25, 0.5]
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ignition.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Storage.DataDir != "/tmp/ignition-data" {
		t.Errorf("DataDir = %q", cfg.Storage.DataDir)
	}
	if cfg.Alpaca.APIKey != "key-from-file" {
		t.Errorf("APIKey = %q", cfg.Alpaca.APIKey)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "text" {
		t.Errorf("Logging = %+v", cfg.Logging)
	}
	if cfg.Backtest.InitialCapital != 250000 || cfg.Backtest.Commission != 0.01 {
		t.Errorf("Backtest = %+v", cfg.Backtest)
	}

	// Fields the file sets override the defaults; the rest keep them.
	if cfg.Strategy.ATRPeriod != 10 {
		t.Errorf("Strategy.ATRPeriod = %d, want 10", cfg.Strategy.ATRPeriod)
	}
	if cfg.Strategy.ROCThreshold != 0.75 {
		t.Errorf("Strategy.ROCThreshold = %v, want 0.75", cfg.Strategy.ROCThreshold)
	}
	if cfg.Strategy.TrendMAPeriod != 200 {
		t.Errorf("Strategy.TrendMAPeriod = %d, want default 200", cfg.Strategy.TrendMAPeriod)
	}
	if cfg.Alpaca.Feed != "sip" {
		t.Errorf("Alpaca.Feed = %q, want default sip", cfg.Alpaca.Feed)
	}

	if cfg.Optimizer.Metric != "total_return" || cfg.Optimizer.Workers != 4 {
		t.Errorf("Optimizer = %+v", cfg.Optimizer)
	}
	if len(cfg.Optimizer.Ranges) != 2 || cfg.Optimizer.Ranges[0].Name != "atr_stop_multiple" {
		t.Errorf("Ranges = %+v", cfg.Optimizer.Ranges)
	}
	if got := cfg.Optimizer.Ranges[1].Values; len(got) != 2 || got[0] != 0.25 {
		t.Errorf("Ranges[1].Values = %v", got)
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "backtest:\n  symbol: SPY\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Backtest.InitialCapital != 100000 {
		t.Errorf("InitialCapital = %v, want 100000", cfg.Backtest.InitialCapital)
	}
	if cfg.Backtest.Commission != 0.005 {
		t.Errorf("Commission = %v, want 0.005", cfg.Backtest.Commission)
	}
	if cfg.Optimizer.Metric != "sharpe_ratio" || cfg.Optimizer.TopN != 10 {
		t.Errorf("Optimizer defaults = %+v", cfg.Optimizer)
	}
	if err := cfg.Strategy.Validate(); err != nil {
		t.Errorf("default strategy params invalid: %v", err)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("DATA_DIR", "/override/data")
	t.Setenv("ALPACA_API_KEY", "legacy-key")
	t.Setenv("APCA_API_KEY_ID", "canonical-key")
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("OPTIMIZER_WORKERS", "8")

	cfg, err := Load(writeConfig(t, sampleYAML))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Storage.DataDir != "/override/data" {
		t.Errorf("DataDir = %q, want env override", cfg.Storage.DataDir)
	}
	// Canonical APCA name wins over both the file and the legacy env var.
	if cfg.Alpaca.APIKey != "canonical-key" {
		t.Errorf("APIKey = %q, want canonical-key", cfg.Alpaca.APIKey)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Level = %q, want warn", cfg.Logging.Level)
	}
	if cfg.Optimizer.Workers != 8 {
		t.Errorf("Workers = %d, want 8", cfg.Optimizer.Workers)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"negative capital", "backtest:\n  initial_capital: -1\n"},
		{"negative commission", "backtest:\n  commission: -0.5\n"},
		{"bad strategy params", "strategy:\n  atr_period: 0\n"},
		{"unnamed range", "optimizer:\n  ranges:\n    - values: [1, 2]\n"},
		{"empty range", "optimizer:\n  ranges:\n    - name: atr_period\n      values: []\n"},
		{"malformed yaml", "backtest: [not a map\n"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tc.body)); err == nil {
				t.Errorf("Load accepted %s", tc.name)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("Load accepted a missing file")
	}
}
