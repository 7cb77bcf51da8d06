package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quantfold/tradebot/backtest"
	"github.com/quantfold/tradebot/config"
	"github.com/quantfold/tradebot/market"
)

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Replay recorded bars through the decision cycle",
	Long: `Backtest replays CSV bar data through the same decision cycle used for
live trading. The replay is deterministic: identical data and configuration
produce identical trades.

Example:
  tradebot backtest -c config.yaml --close-end`,
	RunE: runBacktest,
}

var (
	btConfigPath string
	btCloseEnd   bool
)

func init() {
	rootCmd.AddCommand(backtestCmd)
	backtestCmd.Flags().StringVarP(&btConfigPath, "config", "c", "", "path to config file (required)")
	backtestCmd.Flags().BoolVar(&btCloseEnd, "close-end", true, "close all open positions at end of replay")
	backtestCmd.MarkFlagRequired("config")
}

func runBacktest(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromFile(btConfigPath)
	if err != nil {
		return err
	}
	if len(cfg.Feeds.CSV) == 0 {
		return fmt.Errorf("config has no csv feeds")
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

	feeds := make([]backtest.BarFeed, 0, len(cfg.Feeds.CSV))
	for _, fc := range cfg.Feeds.CSV {
		tf, err := market.ParseTimeframe(fc.Timeframe)
		if err != nil {
			return err
		}
		f, err := backtest.OpenCSVFeed(fc.Path, fc.Instrument, tf)
		if err != nil {
			return err
		}
		feeds = append(feeds, f)
	}

	runner := &backtest.Runner{
		Cycle:   cy,
		Feed:    backtest.Merge(feeds...),
		Options: backtest.Options{CloseEnd: btCloseEnd},
	}
	res, err := runner.Run(context.Background())
	if err != nil {
		return fmt.Errorf("replay: %w", err)
	}

	fmt.Printf("Replay %s .. %s\n", res.Start.Format("2006-01-02 15:04"), res.End.Format("2006-01-02 15:04"))
	fmt.Printf("  Trades: %d (wins %d, losses %d)\n", res.Trades, res.Wins, res.Losses)
	fmt.Printf("  Cash:   %.2f\n", res.Cash)
	fmt.Printf("  Equity: %.2f\n", res.Equity)
	return nil
}
