package cmd

import (
	"fmt"
	"time"

	"github.com/quantfold/tradebot/arbiter"
	"github.com/quantfold/tradebot/config"
	"github.com/quantfold/tradebot/engine"
	"github.com/quantfold/tradebot/journal"
	"github.com/quantfold/tradebot/portfolio"
	"github.com/quantfold/tradebot/risk"
	"github.com/quantfold/tradebot/strategies"
)

// buildCycle wires a full decision cycle from a validated config. Both the
// backtest and run commands start here so the two paths cannot drift.
func buildCycle(cfg *config.Config, j journal.Journal) (*engine.Cycle, *risk.State, error) {
	session, err := cfg.SessionHours()
	if err != nil {
		return nil, nil, err
	}
	sizing, err := cfg.SizingParams()
	if err != nil {
		return nil, nil, err
	}

	pf := portfolio.New(cfg.Account.InitialCash, cfg.Account.MarginFactor)
	state := risk.NewState(cfg.Account.InitialCash, cfg.Risk.DailyLossLimit, cfg.Risk.CooldownBars)
	gate := risk.NewGate(risk.Policy{
		MinEquity:           cfg.Risk.MinEquity,
		DailyLossLimit:      cfg.Risk.DailyLossLimit,
		MaxDrawdownPct:      cfg.Risk.MaxDrawdownPct,
		ExposureCapPct:      cfg.Risk.ExposureCapPct,
		MaxPositionNotional: cfg.Risk.MaxPositionNotional,
		MaxOpenPositions:    cfg.Risk.MaxOpenPositions,
		Session:             session,
	}, state)

	var arbOpts []arbiter.Option
	if cfg.Arbiter.FreshnessSeconds > 0 {
		arbOpts = append(arbOpts, arbiter.WithWindow(time.Duration(cfg.Arbiter.FreshnessSeconds)*time.Second))
	}
	arbOpts = append(arbOpts, arbiter.WithConsensus(cfg.Arbiter.RequireConsensus))

	eng := engine.New(engine.Config{
		FillOnClose:    cfg.Engine.FillOnClose,
		SlippageRate:   cfg.Engine.SlippageRate,
		CommissionRate: cfg.Engine.CommissionRate,
		Session:        session,
	}, pf, j)
	eng.SetTradeClosedListener(state)

	cy := &engine.Cycle{
		Engine: eng,
		State:  state,
		Gate:   gate,
		Arb:    arbiter.New(arbOpts...),
		Sizing: sizing,
		NewStrategy: func() strategies.Strategy {
			s, err := strategies.ByName(cfg.Strategy.Name, cfg.Strategy.Params)
			if err != nil {
				panic(fmt.Sprintf("strategy %q vanished after validation: %v", cfg.Strategy.Name, err))
			}
			return s
		},
	}
	return cy, state, nil
}

// openJournal builds the configured journal backend.
func openJournal(cfg *config.Config) (journal.Journal, error) {
	switch cfg.Journal.Type {
	case "", "none":
		return journal.Discard{}, nil
	case "csv":
		return journal.NewCSV(cfg.Journal.TradesFile, cfg.Journal.EquityFile)
	case "sqlite":
		return journal.NewSQLite(cfg.Journal.DBPath)
	default:
		return nil, fmt.Errorf("unknown journal type %q", cfg.Journal.Type)
	}
}
