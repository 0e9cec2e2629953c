package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"ignition/internal/signal"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for the ignition backtester.
type Config struct {
	Storage   Storage         `yaml:"storage"`
	Alpaca    Alpaca          `yaml:"alpaca"`
	Logging   Logging         `yaml:"logging"`
	Gather    GatherConfig    `yaml:"gather"`
	Backtest  BacktestConfig  `yaml:"backtest"`
	Strategy  signal.Params   `yaml:"strategy"`
	Optimizer OptimizerConfig `yaml:"optimizer"`
}

// Storage holds paths for data persistence.
type Storage struct {
	DataDir    string `yaml:"data_dir"`
	SQLitePath string `yaml:"sqlite_path"`
}

// Alpaca holds credentials and endpoints for the Alpaca market data API.
type Alpaca struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	DataURL   string `yaml:"data_url"`
	Feed      string `yaml:"feed"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// GatherConfig controls historical bar downloads.
type GatherConfig struct {
	Symbols         []string `yaml:"symbols"`
	StartDate       string   `yaml:"start_date"`
	EndDate         string   `yaml:"end_date"`
	RateLimitPerMin int      `yaml:"rate_limit_per_min"`
}

// BacktestConfig selects the data slice and ledger economics for a run.
type BacktestConfig struct {
	Symbol         string  `yaml:"symbol"`
	StartDate      string  `yaml:"start_date"`
	EndDate        string  `yaml:"end_date"`
	InitialCapital float64 `yaml:"initial_capital"`
	Commission     float64 `yaml:"commission"`
}

// OptimizerConfig drives a grid search over strategy parameters. Each range
// names a strategy parameter and lists the candidate values to sweep.
type OptimizerConfig struct {
	Metric    string       `yaml:"metric"`
	TopN      int          `yaml:"top_n"`
	Ascending bool         `yaml:"ascending"`
	Workers   int          `yaml:"workers"`
	Ranges    []ParamRange `yaml:"ranges"`
}

// ParamRange is one grid dimension: a strategy parameter wire name and its
// candidate values.
type ParamRange struct {
	Name   string    `yaml:"name"`
	Values []float64 `yaml:"values"`
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Default returns a Config with workable defaults: relative data paths, the
// default strategy parameter set, and the standard ledger economics.
func Default() *Config {
	return &Config{
		Storage: Storage{
			DataDir:    "data",
			SQLitePath: "data/ignition.db",
		},
		Alpaca: Alpaca{
			Feed: "sip",
		},
		Logging: Logging{
			Level:  "info",
			Format: "json",
		},
		Gather: GatherConfig{
			RateLimitPerMin: 200,
		},
		Backtest: BacktestConfig{
			InitialCapital: 100000,
			Commission:     0.005,
		},
		Strategy: signal.DefaultParams(),
		Optimizer: OptimizerConfig{
			Metric:  "sharpe_ratio",
			TopN:    10,
			Workers: 1,
		},
	}
}

// Load reads the YAML configuration file at the given path, parses it over
// the defaults, and then applies environment variable overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate cross-checks the fields a run cannot proceed without.
func (c *Config) Validate() error {
	if c.Backtest.InitialCapital <= 0 {
		return fmt.Errorf("config: backtest.initial_capital must be positive, got %v", c.Backtest.InitialCapital)
	}
	if c.Backtest.Commission < 0 {
		return fmt.Errorf("config: backtest.commission must not be negative, got %v", c.Backtest.Commission)
	}
	if err := c.Strategy.Validate(); err != nil {
		return fmt.Errorf("config: strategy: %w", err)
	}
	for _, r := range c.Optimizer.Ranges {
		if r.Name == "" {
			return fmt.Errorf("config: optimizer range with empty name")
		}
		if len(r.Values) == 0 {
			return fmt.Errorf("config: optimizer range %q has no values", r.Name)
		}
	}
	return nil
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}

	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}

	if v := os.Getenv("ALPACA_API_KEY"); v != "" {
		cfg.Alpaca.APIKey = v
	}

	if v := os.Getenv("ALPACA_API_SECRET"); v != "" {
		cfg.Alpaca.APISecret = v
	}

	if v := os.Getenv("ALPACA_DATA_URL"); v != "" {
		cfg.Alpaca.DataURL = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}

	if v := os.Getenv("OPTIMIZER_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Optimizer.Workers = n
		}
	}

	// Standard Alpaca env vars (highest priority — canonical names used by SDK).
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.Alpaca.APISecret = v
	}
}
