// Package config loads and validates the operator-supplied run
// configuration. Validation is fail-fast: a bad config never reaches the
// decision cycle.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/quantfold/tradebot/market"
	"github.com/quantfold/tradebot/risk"
	"github.com/quantfold/tradebot/strategies"
)

// Config is the complete run configuration.
type Config struct {
	Account  AccountConfig  `json:"account" yaml:"account"`
	Risk     RiskConfig     `json:"risk" yaml:"risk"`
	Session  SessionConfig  `json:"session" yaml:"session"`
	Sizing   SizingConfig   `json:"sizing" yaml:"sizing"`
	Engine   EngineConfig   `json:"engine" yaml:"engine"`
	Arbiter  ArbiterConfig  `json:"arbiter" yaml:"arbiter"`
	Strategy StrategyConfig `json:"strategy" yaml:"strategy"`
	Feeds    FeedsConfig    `json:"feeds" yaml:"feeds"`
	Journal  JournalConfig  `json:"journal" yaml:"journal"`
}

// AccountConfig seeds the portfolio.
type AccountConfig struct {
	InitialCash  float64 `json:"initial_cash" yaml:"initial_cash"`
	MarginFactor float64 `json:"margin_factor" yaml:"margin_factor"`
}

// RiskConfig carries the gate limits and circuit-breaker thresholds.
type RiskConfig struct {
	MinEquity           float64 `json:"min_equity" yaml:"min_equity"`
	DailyLossLimit      float64 `json:"daily_loss_limit" yaml:"daily_loss_limit"`
	MaxDrawdownPct      float64 `json:"max_drawdown_pct" yaml:"max_drawdown_pct"`
	ExposureCapPct      float64 `json:"exposure_cap_pct" yaml:"exposure_cap_pct"`
	MaxPositionNotional float64 `json:"max_position_notional" yaml:"max_position_notional"`
	MaxOpenPositions    int     `json:"max_open_positions" yaml:"max_open_positions"`
	CooldownBars        int     `json:"cooldown_bars" yaml:"cooldown_bars"`
}

// SessionConfig defines trading hours in exchange-local time.
type SessionConfig struct {
	Open     string `json:"open" yaml:"open"`   // "09:30"
	Close    string `json:"close" yaml:"close"` // "16:00"
	Timezone string `json:"timezone" yaml:"timezone"`
}

// SizingConfig selects the position-sizing method.
type SizingConfig struct {
	Method     string  `json:"method" yaml:"method"` // percent | fixed | risk_based
	PctEquity  float64 `json:"pct_equity,omitempty" yaml:"pct_equity,omitempty"`
	FixedValue float64 `json:"fixed_value,omitempty" yaml:"fixed_value,omitempty"`
	RiskPct    float64 `json:"risk_pct,omitempty" yaml:"risk_pct,omitempty"`
}

// EngineConfig carries the fill model.
type EngineConfig struct {
	FillOnClose    bool    `json:"fill_on_close" yaml:"fill_on_close"`
	SlippageRate   float64 `json:"slippage_rate" yaml:"slippage_rate"`
	CommissionRate float64 `json:"commission_rate" yaml:"commission_rate"`
}

// ArbiterConfig tunes signal arbitration.
type ArbiterConfig struct {
	FreshnessSeconds int  `json:"freshness_seconds,omitempty" yaml:"freshness_seconds,omitempty"`
	RequireConsensus bool `json:"require_consensus" yaml:"require_consensus"`
}

// StrategyConfig names the strategy and the streams it watches.
type StrategyConfig struct {
	Name        string             `json:"name" yaml:"name"`
	Params      map[string]float64 `json:"params,omitempty" yaml:"params,omitempty"`
	Instruments []string           `json:"instruments" yaml:"instruments"`
	Timeframes  []string           `json:"timeframes" yaml:"timeframes"` // "5m", "15m", ...
}

// FeedConfig is one replay data file for one stream.
type FeedConfig struct {
	Path       string `json:"path" yaml:"path"`
	Instrument string `json:"instrument" yaml:"instrument"`
	Timeframe  string `json:"timeframe" yaml:"timeframe"`
}

// FeedsConfig holds bar sources: CSV files for replay, a websocket URL for
// live.
type FeedsConfig struct {
	CSV []FeedConfig `json:"csv,omitempty" yaml:"csv,omitempty"`
	WS  string       `json:"ws,omitempty" yaml:"ws,omitempty"`
}

// JournalConfig selects the journal backend.
type JournalConfig struct {
	Type       string `json:"type" yaml:"type"` // none | csv | sqlite
	TradesFile string `json:"trades_file,omitempty" yaml:"trades_file,omitempty"`
	EquityFile string `json:"equity_file,omitempty" yaml:"equity_file,omitempty"`
	DBPath     string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
}

// LoadFromFile reads and validates a YAML or JSON config.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		if jerr := json.Unmarshal(data, cfg); jerr != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate rejects any configuration the decision cycle cannot run with.
func (c *Config) Validate() error {
	if c.Account.InitialCash <= 0 {
		return fmt.Errorf("account.initial_cash must be positive")
	}
	if c.Account.MarginFactor < 1 {
		return fmt.Errorf("account.margin_factor must be at least 1")
	}
	if c.Risk.ExposureCapPct <= 0 || c.Risk.ExposureCapPct > 1 {
		return fmt.Errorf("risk.exposure_cap_pct must be in (0, 1]")
	}
	if c.Risk.MaxDrawdownPct < 0 || c.Risk.MaxDrawdownPct >= 100 {
		return fmt.Errorf("risk.max_drawdown_pct must be in [0, 100)")
	}
	if c.Risk.CooldownBars < 0 {
		return fmt.Errorf("risk.cooldown_bars must not be negative")
	}
	if _, err := c.SessionHours(); err != nil {
		return fmt.Errorf("session: %w", err)
	}
	if _, err := c.SizingParams(); err != nil {
		return err
	}
	if c.Strategy.Name == "" {
		return fmt.Errorf("strategy.name is required")
	}
	if _, err := strategies.ByName(c.Strategy.Name, c.Strategy.Params); err != nil {
		return err
	}
	if len(c.Strategy.Instruments) == 0 {
		return fmt.Errorf("strategy.instruments must not be empty")
	}
	if len(c.Strategy.Timeframes) == 0 {
		return fmt.Errorf("strategy.timeframes must not be empty")
	}
	if _, err := c.Timeframes(); err != nil {
		return err
	}
	if c.Engine.SlippageRate < 0 || c.Engine.CommissionRate < 0 {
		return fmt.Errorf("engine rates must not be negative")
	}
	switch c.Journal.Type {
	case "", "none":
	case "csv":
		if c.Journal.TradesFile == "" || c.Journal.EquityFile == "" {
			return fmt.Errorf("journal trades_file and equity_file required for CSV type")
		}
	case "sqlite":
		if c.Journal.DBPath == "" {
			return fmt.Errorf("journal db_path required for SQLite type")
		}
	default:
		return fmt.Errorf("journal.type must be 'none', 'csv' or 'sqlite'")
	}
	for _, f := range c.Feeds.CSV {
		if f.Path == "" || f.Instrument == "" {
			return fmt.Errorf("feed entries need path and instrument")
		}
		if _, err := market.ParseTimeframe(f.Timeframe); err != nil {
			return fmt.Errorf("feed %s: %w", f.Path, err)
		}
	}
	return nil
}

// SessionHours parses the session block.
func (c *Config) SessionHours() (risk.SessionHours, error) {
	return risk.ParseSessionHours(c.Session.Open, c.Session.Close, c.Session.Timezone)
}

// SizingParams parses the sizing block.
func (c *Config) SizingParams() (risk.SizingParams, error) {
	p := risk.SizingParams{
		PctEquity:  c.Sizing.PctEquity,
		FixedValue: c.Sizing.FixedValue,
		RiskPct:    c.Sizing.RiskPct,
	}
	switch c.Sizing.Method {
	case "percent":
		p.Method = risk.SizePercent
		if p.PctEquity <= 0 || p.PctEquity > 1 {
			return p, fmt.Errorf("sizing.pct_equity must be in (0, 1]")
		}
	case "fixed":
		p.Method = risk.SizeFixed
		if p.FixedValue <= 0 {
			return p, fmt.Errorf("sizing.fixed_value must be positive")
		}
	case "risk_based":
		p.Method = risk.SizeRisk
		if p.RiskPct <= 0 || p.RiskPct > 1 {
			return p, fmt.Errorf("sizing.risk_pct must be in (0, 1]")
		}
	default:
		return p, fmt.Errorf("sizing.method must be 'percent', 'fixed' or 'risk_based'")
	}
	return p, nil
}

// Timeframes parses the strategy timeframe list.
func (c *Config) Timeframes() ([]market.Timeframe, error) {
	out := make([]market.Timeframe, 0, len(c.Strategy.Timeframes))
	for _, s := range c.Strategy.Timeframes {
		tf, err := market.ParseTimeframe(s)
		if err != nil {
			return nil, fmt.Errorf("strategy.timeframes: %w", err)
		}
		out = append(out, tf)
	}
	return out, nil
}

// Default returns a runnable baseline configuration.
func Default() *Config {
	return &Config{
		Account: AccountConfig{InitialCash: 100000, MarginFactor: 1},
		Risk: RiskConfig{
			MinEquity:        25000,
			DailyLossLimit:   1000,
			MaxDrawdownPct:   15,
			ExposureCapPct:   0.90,
			MaxOpenPositions: 5,
			CooldownBars:     10,
		},
		Session: SessionConfig{Open: "09:30", Close: "16:00", Timezone: "America/New_York"},
		Sizing:  SizingConfig{Method: "percent", PctEquity: 0.10},
		Engine:  EngineConfig{FillOnClose: true},
		Strategy: StrategyConfig{
			Name:        "ema-cross",
			Instruments: []string{"AAPL"},
			Timeframes:  []string{"5m", "15m"},
		},
		Journal: JournalConfig{Type: "csv", TradesFile: "./trades.csv", EquityFile: "./equity.csv"},
	}
}
