package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/quantfold/tradebot/broker"
	"github.com/quantfold/tradebot/config"
	"github.com/quantfold/tradebot/live"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Trade live against a streaming bar feed",
	Long: `Run connects to a websocket bar feed and trades through the same
decision cycle the backtester uses. SIGINT or SIGTERM flattens all open
positions and exits.

Example:
  tradebot run -c config.yaml`,
	RunE: runLive,
}

var runConfigPath string

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVarP(&runConfigPath, "config", "c", "", "path to config file (required)")
	runCmd.MarkFlagRequired("config")
}

func runLive(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromFile(runConfigPath)
	if err != nil {
		return err
	}
	if cfg.Feeds.WS == "" {
		return fmt.Errorf("config has no ws feed url")
	}

	j, err := openJournal(cfg)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer j.Close()

	cy, _, err := buildCycle(cfg, j)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	guard := broker.NewGuard(broker.NewPaper(cy.Engine.Portfolio()))
	cy.Gate.Broker = guard
	cy.Router = guard

	trader := live.NewTrader(cy, &live.WSFeed{URL: cfg.Feeds.WS})
	trader.Guard = guard
	if err := trader.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
