package engine

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/quantfold/tradebot/arbiter"
	"github.com/quantfold/tradebot/broker"
	"github.com/quantfold/tradebot/indicators"
	"github.com/quantfold/tradebot/market"
	"github.com/quantfold/tradebot/portfolio"
	"github.com/quantfold/tradebot/risk"
	"github.com/quantfold/tradebot/strategies"
)

// Cycle is the per-bar decision pipeline shared by replay and live trading:
// lifecycle first, then indicators, then the strategy, then arbitration,
// sizing and the risk gate. Replay and live differ only in where bars come
// from; every decision in between runs through this one type, and "now" is
// always the bar timestamp so replays are deterministic.
type Cycle struct {
	Engine *Engine
	State  *risk.State
	Gate   *risk.Gate
	Arb    *arbiter.Arbiter

	Sizing     risk.SizingParams
	TrackerCfg indicators.TrackerConfig

	// Router, when set, must acknowledge an approved entry before the
	// engine fills it. Live trading points this at the breaker-wrapped
	// broker; replay leaves it nil and the engine fills its own orders.
	Router broker.Broker

	// NewStrategy builds one strategy instance per stream so crossover
	// state never leaks across instruments or timeframes.
	NewStrategy func() strategies.Strategy

	trackers map[market.Stream]*indicators.Tracker
	strats   map[market.Stream]strategies.Strategy
}

// OnBar runs one full decision cycle for a bar. Out-of-order bars skip the
// cycle for their stream; everything else proceeds even while paused, since
// exits and accounting must continue when entries are suppressed.
func (cy *Cycle) OnBar(b market.Bar) error {
	closedBefore := cy.Engine.Portfolio().ClosedCount()
	if err := cy.Engine.ProcessBar(b); err != nil {
		return err
	}

	// A cooldown starts counting on the bar after the one that closed the
	// trade, so the tick is skipped on closing bars and runs after the
	// entry filter has seen the current count.
	defer func() {
		if cy.Engine.Portfolio().ClosedCount() == closedBefore {
			cy.State.TickCooldown(b.Instrument)
		}
	}()

	cy.State.Roll(b.Time, cy.Gate.Policy.Session)
	cy.State.ObserveEquity(cy.Engine.Portfolio().Equity())

	tracker := cy.trackerFor(b.Stream())
	tracker.Update(b)
	fields := tracker.Fields()

	// A strategy only sees the position its own stream opened.
	pos := cy.Engine.Portfolio().Position(b.Instrument)
	if pos != nil && pos.Timeframe != b.Timeframe {
		pos = nil
	}

	sig := cy.strategyFor(b.Stream()).OnBar(b, fields, pos)
	if sig == nil {
		return nil
	}

	// Exits go straight to the engine: no arbitration, no gate. A paused
	// system can always reduce risk.
	if sig.Direction.IsExit() {
		cy.Engine.SubmitExit(ExitOrder{Instrument: b.Instrument, Reason: portfolio.ExitSignal}, b)
		return nil
	}

	if n := cy.State.CooldownRemaining(b.Instrument); n > 0 {
		log.Debug().Str("instrument", b.Instrument).Int("bars_left", n).
			Msg("entry suppressed by cooldown")
		return nil
	}

	cy.Arb.Submit(b.Instrument, arbiter.Candidate{
		Signal:  *sig,
		Arrived: b.Time,
		Price:   b.Close,
		Fields:  fields,
	})

	winner, ok := cy.Arb.Select(b.Instrument, b.Time)
	if !ok {
		return nil
	}

	snap := cy.Engine.Portfolio().Snapshot()

	var stopDistance float64
	if winner.Signal.Stop != nil {
		stopDistance = abs(winner.Price - *winner.Signal.Stop)
	}
	qty := risk.Size(cy.Sizing, winner.Price, stopDistance, snap, cy.Gate.Policy.ExposureCapPct)
	if qty <= 0 {
		log.Debug().Str("instrument", b.Instrument).Msg("sized to zero")
		return nil
	}

	order := risk.Order{
		Instrument: b.Instrument,
		Side:       winner.Signal.Direction.Side(),
		Quantity:   qty,
		Price:      winner.Price,
	}
	dec := cy.Gate.Check(order, snap, b.Time)
	if !dec.Approved() {
		log.Info().Str("instrument", b.Instrument).
			Str("outcome", dec.Outcome.String()).
			Str("check", dec.Check).
			Str("reason", dec.Reason).Msg("entry rejected")
		return nil
	}

	if cy.Router != nil {
		fill, err := cy.Router.PlaceOrder(context.Background(), broker.OrderRequest{
			Instrument: b.Instrument,
			Side:       order.Side,
			Quantity:   qty,
			Stop:       winner.Signal.Stop,
			Target:     winner.Signal.Target,
		})
		if err != nil {
			log.Warn().Str("instrument", b.Instrument).Err(err).
				Msg("entry rejected by broker")
			return nil
		}
		log.Info().Str("instrument", b.Instrument).
			Str("order_id", fill.OrderID).
			Float64("price", fill.Price).Msg("order acknowledged")
	}

	cy.Engine.SubmitEntry(EntryOrder{
		Instrument:       b.Instrument,
		Timeframe:        winner.Signal.Timeframe,
		Side:             order.Side,
		Quantity:         qty,
		Stop:             winner.Signal.Stop,
		Target:           winner.Signal.Target,
		TrailingDistance: winner.Signal.TrailingDistance,
		Reason:           winner.Signal.Reason,
	}, b)
	return nil
}

func (cy *Cycle) trackerFor(s market.Stream) *indicators.Tracker {
	if cy.trackers == nil {
		cy.trackers = make(map[market.Stream]*indicators.Tracker)
	}
	t, ok := cy.trackers[s]
	if !ok {
		t = indicators.NewTracker(cy.TrackerCfg)
		cy.trackers[s] = t
	}
	return t
}

func (cy *Cycle) strategyFor(s market.Stream) strategies.Strategy {
	if cy.strats == nil {
		cy.strats = make(map[market.Stream]strategies.Strategy)
	}
	st, ok := cy.strats[s]
	if !ok {
		st = cy.NewStrategy()
		cy.strats[s] = st
	}
	return st
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
