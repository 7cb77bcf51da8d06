package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfold/tradebot/risk"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultValidates(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoadYAML(t *testing.T) {
	path := writeConfig(t, "cfg.yaml", `
account:
  initial_cash: 50000
  margin_factor: 2
risk:
  min_equity: 10000
  daily_loss_limit: 500
  max_drawdown_pct: 10
  exposure_cap_pct: 0.8
  max_open_positions: 3
  cooldown_bars: 5
session:
  open: "09:30"
  close: "16:00"
  timezone: "America/New_York"
sizing:
  method: risk_based
  risk_pct: 0.01
engine:
  fill_on_close: false
  commission_rate: 0.001
strategy:
  name: ema-cross
  instruments: [AAPL, MSFT]
  timeframes: [5m, 15m]
journal:
  type: sqlite
  db_path: ./run.sqlite
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, 50_000.0, cfg.Account.InitialCash)
	assert.Equal(t, 2.0, cfg.Account.MarginFactor)
	assert.False(t, cfg.Engine.FillOnClose)

	sizing, err := cfg.SizingParams()
	require.NoError(t, err)
	assert.Equal(t, risk.SizeRisk, sizing.Method)

	tfs, err := cfg.Timeframes()
	require.NoError(t, err)
	assert.Len(t, tfs, 2)

	session, err := cfg.SessionHours()
	require.NoError(t, err)
	assert.Equal(t, "America/New_York", session.Location.String())
}

func TestLoadJSON(t *testing.T) {
	path := writeConfig(t, "cfg.json", `{
  "account": {"initial_cash": 100000, "margin_factor": 1},
  "risk": {"exposure_cap_pct": 0.9},
  "session": {"open": "09:30", "close": "16:00", "timezone": "UTC"},
  "sizing": {"method": "percent", "pct_equity": 0.1},
  "strategy": {"name": "noop", "instruments": ["AAPL"], "timeframes": ["5m"]},
  "journal": {"type": "none"}
}`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "noop", cfg.Strategy.Name)
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero cash", func(c *Config) { c.Account.InitialCash = 0 }},
		{"sub-1 margin", func(c *Config) { c.Account.MarginFactor = 0.5 }},
		{"exposure cap too high", func(c *Config) { c.Risk.ExposureCapPct = 1.5 }},
		{"negative cooldown", func(c *Config) { c.Risk.CooldownBars = -1 }},
		{"drawdown 100", func(c *Config) { c.Risk.MaxDrawdownPct = 100 }},
		{"bad session open", func(c *Config) { c.Session.Open = "930" }},
		{"close before open", func(c *Config) { c.Session.Open = "16:00"; c.Session.Close = "09:30" }},
		{"bad timezone", func(c *Config) { c.Session.Timezone = "Nowhere/Void" }},
		{"bad sizing method", func(c *Config) { c.Sizing.Method = "martingale" }},
		{"percent without value", func(c *Config) { c.Sizing = SizingConfig{Method: "percent"} }},
		{"unknown strategy", func(c *Config) { c.Strategy.Name = "teleport" }},
		{"no instruments", func(c *Config) { c.Strategy.Instruments = nil }},
		{"no timeframes", func(c *Config) { c.Strategy.Timeframes = nil }},
		{"bad timeframe", func(c *Config) { c.Strategy.Timeframes = []string{"soon"} }},
		{"negative slippage", func(c *Config) { c.Engine.SlippageRate = -0.1 }},
		{"csv journal without files", func(c *Config) { c.Journal = JournalConfig{Type: "csv"} }},
		{"sqlite journal without path", func(c *Config) { c.Journal = JournalConfig{Type: "sqlite"} }},
		{"bad journal type", func(c *Config) { c.Journal.Type = "parchment" }},
		{"feed missing path", func(c *Config) { c.Feeds.CSV = []FeedConfig{{Instrument: "AAPL", Timeframe: "5m"}} }},
		{"feed bad timeframe", func(c *Config) {
			c.Feeds.CSV = []FeedConfig{{Path: "x.csv", Instrument: "AAPL", Timeframe: "nope"}}
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadRejectsGarbage(t *testing.T) {
	path := writeConfig(t, "cfg.yaml", "{{{not yaml or json")
	_, err := LoadFromFile(path)
	assert.Error(t, err)

	_, err = LoadFromFile("/does/not/exist.yaml")
	assert.Error(t, err)
}
