package live

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/quantfold/tradebot/broker"
	"github.com/quantfold/tradebot/engine"
	"github.com/quantfold/tradebot/market"
	"github.com/quantfold/tradebot/portfolio"
)

// command is an operator control delivered into the event loop.
type command int

const (
	cmdResume command = iota
	cmdResetPeak
	cmdFlatten
)

// Trader is the live event loop. Bars and operator commands are serialized
// onto one goroutine, so the cycle, portfolio and risk state have a single
// writer and no decision ever runs on a partially applied update.
type Trader struct {
	Cycle *engine.Cycle
	Feed  *WSFeed

	// Guard, when set, is polled for account health so broker outages trip
	// the risk gate's broker check.
	Guard *broker.Guard

	cmds chan command
}

func NewTrader(cy *engine.Cycle, feed *WSFeed) *Trader {
	return &Trader{Cycle: cy, Feed: feed, cmds: make(chan command, 4)}
}

// Resume clears an active pause. Required for drawdown and broker pauses,
// which never clear on their own.
func (t *Trader) Resume() { t.cmds <- cmdResume }

// ResetPeak rebases the drawdown high-water mark to current equity.
func (t *Trader) ResetPeak() { t.cmds <- cmdResetPeak }

// Flatten closes all open positions at their last marks.
func (t *Trader) Flatten() { t.cmds <- cmdFlatten }

// Run consumes the feed until ctx ends, then flattens and returns.
func (t *Trader) Run(ctx context.Context) error {
	bars := t.Feed.Stream(ctx)
	log.Info().Msg("live trader started")

	health := time.NewTicker(30 * time.Second)
	defer health.Stop()

	for {
		select {
		case <-health.C:
			t.pollBroker(ctx)

		case <-ctx.Done():
			t.Cycle.Engine.CloseAll(time.Now().UTC(), portfolio.ExitSessionEnd)
			log.Info().Msg("live trader stopped")
			return ctx.Err()

		case cmd := <-t.cmds:
			t.apply(cmd)

		case b, ok := <-bars:
			if !ok {
				t.Cycle.Engine.CloseAll(time.Now().UTC(), portfolio.ExitEndOfData)
				return nil
			}
			if err := t.Cycle.OnBar(b); err != nil && !market.IsOutOfOrder(err) {
				return err
			}
		}
	}
}

// pollBroker refreshes account health through the circuit breaker. Failures
// count toward tripping it; the gate reads the result on its next check.
func (t *Trader) pollBroker(ctx context.Context) {
	if t.Guard == nil {
		return
	}
	if _, err := t.Guard.Account(ctx); err != nil {
		log.Warn().Err(err).Msg("broker health poll failed")
	}
}

func (t *Trader) apply(cmd command) {
	switch cmd {
	case cmdResume:
		t.Cycle.State.Resume()
	case cmdResetPeak:
		t.Cycle.State.ResetPeak(t.Cycle.Engine.Portfolio().Equity())
	case cmdFlatten:
		t.Cycle.Engine.CloseAll(time.Now().UTC(), portfolio.ExitSignal)
	}
}
