package cmd

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "tradebot",
	Short: "A bar-driven trading decision engine for replay and live execution",
	Long: `Tradebot turns streams of completed price bars into trading decisions.

It provides:
  - Deterministic backtesting over recorded bar data
  - Live trading against a streaming bar feed
  - Multi-timeframe signal arbitration
  - A risk gate with daily-loss and drawdown circuit breakers
  - Trade journals in CSV or SQLite`,
}

var (
	logLevel string
	logJSON  bool
)

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(setupLogging)
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "emit JSON logs instead of console output")
}

func setupLogging() {
	level, err := zerolog.ParseLevel(logLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if !logJSON {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}
