// Package config holds the immutable configuration consumed by the
// simulation kernel. Values are loaded once, validated, and passed into
// constructors; no component reads ambient global state.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for a tournament run.
type Config struct {
	Logging    Logging    `yaml:"logging"`
	Trading    Trading    `yaml:"trading"`
	Risk       Risk       `yaml:"risk"`
	Stress     Stress     `yaml:"stress"`
	Data       Data       `yaml:"data"`
	Tournament Tournament `yaml:"tournament"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Trading defines execution cost parameters. SlippageBps shifts fills against
// the trader: buys at price*(1+bps/10000), sells at price*(1-bps/10000).
type Trading struct {
	InitialCash float64 `yaml:"initial_cash"`
	FeeRate     float64 `yaml:"fee_rate"`
	MinFee      float64 `yaml:"min_fee"`
	SlippageBps float64 `yaml:"slippage_bps"`
}

// Risk defines the engine-level automatic trading rules. All values are
// fractions (0.05 = 5%); a zero threshold disables that rule.
type Risk struct {
	StopLossPct       float64 `yaml:"stop_loss_pct"`
	ScaleInThreshold  float64 `yaml:"scale_in_threshold"`
	ScaleInFraction   float64 `yaml:"scale_in_fraction"`
	ScaleOutThreshold float64 `yaml:"scale_out_threshold"`
	ScaleOutFraction  float64 `yaml:"scale_out_fraction"`
}

// Stress configures the three-stage scenario generator. Returns and
// thresholds are fractions (-0.20 = a 20% drop).
type Stress struct {
	Enabled            bool      `yaml:"enabled"`
	JumpEnabled        bool      `yaml:"jump_enabled"`
	JumpProbability    float64   `yaml:"jump_probability"`
	JumpSizes          []float64 `yaml:"jump_sizes"`
	JumpDirection      string    `yaml:"jump_direction"` // down, up, both
	ExtremeEnabled     bool      `yaml:"extreme_enabled"`
	ExtremeProbability float64   `yaml:"extreme_probability"`
	Distribution       string    `yaml:"distribution"` // gev, pareto, threshold
	TailThreshold      float64   `yaml:"tail_threshold"`
	ExtremeShape       float64   `yaml:"extreme_shape"`
	ExtremeScale       float64   `yaml:"extreme_scale"`
	QuantileEnabled    bool      `yaml:"quantile_enabled"`
	QuantileLevel      float64   `yaml:"quantile_level"`
	LookbackDays       int       `yaml:"lookback_days"`
	Seed               uint64    `yaml:"seed"`
}

// Data selects the price-series source.
type Data struct {
	Mode            string   `yaml:"mode"` // synthetic, parquet, alpaca
	DataDir         string   `yaml:"data_dir"`
	SQLitePath      string   `yaml:"sqlite_path"`
	Market          string   `yaml:"market"`
	Symbols         []string `yaml:"symbols"`
	AlpacaAPIKey    string   `yaml:"alpaca_api_key"`
	AlpacaAPISecret string   `yaml:"alpaca_api_secret"`
	AlpacaDataURL   string   `yaml:"alpaca_data_url"`
}

// Tournament controls the coordinator. MaxWorkers zero means one worker per
// CPU. StrategyTimeout bounds a single strategy decision; zero disables the
// fuse.
type Tournament struct {
	MaxWorkers      int      `yaml:"max_workers"`
	StrategyTimeout Duration `yaml:"strategy_timeout"`
}

// Duration wraps time.Duration for YAML decoding of strings like "5s".
type Duration time.Duration

// UnmarshalYAML decodes a duration string.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// ---------------------------------------------------------------------------
// Defaults and loading
// ---------------------------------------------------------------------------

// Default returns the built-in configuration: $100k starting cash, 1bp fee
// with $1 minimum, no slippage, risk rules off, stress off.
func Default() *Config {
	return &Config{
		Logging: Logging{Level: "info", Format: "json"},
		Trading: Trading{
			InitialCash: 100000.0,
			FeeRate:     0.0001,
			MinFee:      1.0,
			SlippageBps: 0.0,
		},
		Stress: Stress{
			JumpProbability:    0.02,
			JumpSizes:          []float64{-0.20, -0.15, -0.10},
			JumpDirection:      "down",
			ExtremeProbability: 0.01,
			Distribution:       "gev",
			TailThreshold:      -0.15,
			ExtremeShape:       -0.3,
			ExtremeScale:       0.10,
			QuantileLevel:      0.01,
			LookbackDays:       30,
			Seed:               1,
		},
		Data: Data{
			Mode:       "synthetic",
			DataDir:    "data",
			SQLitePath: "data/arena.db",
			Market:     "us",
		},
		Tournament: Tournament{
			StrategyTimeout: Duration(5 * time.Second),
		},
	}
}

// Load reads the YAML configuration at path on top of the defaults, applies
// environment overrides, and validates the result. No partially-valid
// configuration is ever returned.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("ARENA_DATA_DIR"); v != "" {
		cfg.Data.DataDir = v
	}
	if v := os.Getenv("ARENA_SQLITE_PATH"); v != "" {
		cfg.Data.SQLitePath = v
	}
	if v := os.Getenv("ALPACA_DATA_URL"); v != "" {
		cfg.Data.AlpacaDataURL = v
	}

	// Canonical Alpaca env vars used by the SDK.
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.Data.AlpacaAPIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.Data.AlpacaAPISecret = v
	}
}

// ---------------------------------------------------------------------------
// Validation
// ---------------------------------------------------------------------------

// Validate rejects invalid parameter combinations. Out-of-range values are an
// error, never silently clamped or defaulted.
func (c *Config) Validate() error {
	if err := c.Trading.Validate(); err != nil {
		return fmt.Errorf("trading: %w", err)
	}
	if err := c.Risk.Validate(); err != nil {
		return fmt.Errorf("risk: %w", err)
	}
	if err := c.Stress.Validate(); err != nil {
		return fmt.Errorf("stress: %w", err)
	}
	if err := c.Data.validate(); err != nil {
		return fmt.Errorf("data: %w", err)
	}
	if c.Tournament.MaxWorkers < 0 {
		return fmt.Errorf("tournament: max_workers must not be negative")
	}
	if c.Tournament.StrategyTimeout < 0 {
		return fmt.Errorf("tournament: strategy_timeout must not be negative")
	}
	return nil
}

// Validate checks the trading-cost parameters. Exported because the order
// engine re-validates at construction.
func (t Trading) Validate() error {
	if t.InitialCash <= 0 {
		return fmt.Errorf("initial_cash must be positive, got %v", t.InitialCash)
	}
	if t.FeeRate < 0 || t.FeeRate >= 1 {
		return fmt.Errorf("fee_rate must be in [0, 1), got %v", t.FeeRate)
	}
	if t.MinFee < 0 {
		return fmt.Errorf("min_fee must not be negative, got %v", t.MinFee)
	}
	if t.SlippageBps < 0 {
		return fmt.Errorf("slippage_bps must not be negative, got %v", t.SlippageBps)
	}
	return nil
}

// Validate checks the risk-rule parameters.
func (r Risk) Validate() error {
	if r.StopLossPct < 0 || r.StopLossPct >= 1 {
		return fmt.Errorf("stop_loss_pct must be in [0, 1), got %v", r.StopLossPct)
	}
	for name, v := range map[string]float64{
		"scale_in_threshold":  r.ScaleInThreshold,
		"scale_out_threshold": r.ScaleOutThreshold,
	} {
		if v < 0 {
			return fmt.Errorf("%s must not be negative, got %v", name, v)
		}
	}
	for name, v := range map[string]float64{
		"scale_in_fraction":  r.ScaleInFraction,
		"scale_out_fraction": r.ScaleOutFraction,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%s must be in [0, 1], got %v", name, v)
		}
	}
	if r.ScaleInThreshold > 0 && r.ScaleInFraction == 0 {
		return fmt.Errorf("scale_in_threshold set but scale_in_fraction is zero")
	}
	if r.ScaleOutThreshold > 0 && r.ScaleOutFraction == 0 {
		return fmt.Errorf("scale_out_threshold set but scale_out_fraction is zero")
	}
	return nil
}

// Validate checks the stress parameters. Exported because the scenario
// generator re-validates at construction.
func (s Stress) Validate() error {
	if !s.Enabled {
		return nil
	}
	if s.JumpProbability < 0 || s.JumpProbability > 1 {
		return fmt.Errorf("jump_probability must be in [0, 1], got %v", s.JumpProbability)
	}
	if s.ExtremeProbability < 0 || s.ExtremeProbability > 1 {
		return fmt.Errorf("extreme_probability must be in [0, 1], got %v", s.ExtremeProbability)
	}
	if s.JumpEnabled && len(s.JumpSizes) == 0 {
		return fmt.Errorf("jump stage enabled with empty jump_sizes")
	}
	switch s.JumpDirection {
	case "down", "up", "both":
	default:
		return fmt.Errorf("jump_direction must be down, up, or both, got %q", s.JumpDirection)
	}
	switch s.Distribution {
	case "gev", "pareto", "threshold":
	default:
		return fmt.Errorf("distribution must be gev, pareto, or threshold, got %q", s.Distribution)
	}
	if s.ExtremeEnabled && s.TailThreshold >= 0 {
		return fmt.Errorf("tail_threshold must be negative, got %v", s.TailThreshold)
	}
	if s.ExtremeScale < 0 {
		return fmt.Errorf("extreme_scale must not be negative, got %v", s.ExtremeScale)
	}
	if s.QuantileLevel <= 0 || s.QuantileLevel >= 1 {
		return fmt.Errorf("quantile_level must be in (0, 1), got %v", s.QuantileLevel)
	}
	if s.LookbackDays < 2 {
		return fmt.Errorf("lookback_days must be at least 2, got %d", s.LookbackDays)
	}
	return nil
}

func (d Data) validate() error {
	switch d.Mode {
	case "synthetic", "parquet", "alpaca":
	default:
		return fmt.Errorf("mode must be synthetic, parquet, or alpaca, got %q", d.Mode)
	}
	if d.Mode != "synthetic" && d.DataDir == "" {
		return fmt.Errorf("data_dir required for mode %q", d.Mode)
	}
	return nil
}
