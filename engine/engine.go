// Package engine owns the order and position lifecycle: it turns entry and
// exit requests into fills against incoming bars, detects stop, target and
// trailing exits, and forces positions flat at session close. The same
// engine drives both replay and live trading so a strategy backtested here
// behaves identically against a broker feed.
package engine

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/quantfold/tradebot/internal/id"
	"github.com/quantfold/tradebot/journal"
	"github.com/quantfold/tradebot/market"
	"github.com/quantfold/tradebot/portfolio"
	"github.com/quantfold/tradebot/risk"
)

// Config carries the fill model knobs.
type Config struct {
	// FillOnClose fills signal-driven orders at the close of the bar that
	// produced the signal. When false, orders queue and fill at the open of
	// the next bar on the same instrument and timeframe.
	FillOnClose bool

	// SlippageRate worsens signal-driven fill prices by this fraction.
	// Stop and target fills are exempt: they execute at the trigger level.
	SlippageRate float64

	// CommissionRate is charged per fill as a fraction of fill notional.
	CommissionRate float64

	Session risk.SessionHours
}

// EntryOrder is a request to open a position.
type EntryOrder struct {
	Instrument       string
	Timeframe        market.Timeframe
	Side             portfolio.Side
	Quantity         int
	Stop             *float64
	Target           *float64
	TrailingDistance *float64
	Reason           string
}

// ExitOrder is a request to flatten an open position.
type ExitOrder struct {
	Instrument string
	Reason     string
}

// TradeClosedListener is notified after the engine closes a position, with
// the lock released. The risk state uses this to track daily P&L and
// cooldowns.
type TradeClosedListener interface {
	OnTradeClosed(instrument string, pl float64, reason string, at time.Time)
}

type pending struct {
	entry *EntryOrder
	exit  *ExitOrder
}

// Engine applies bars to the portfolio. All mutation happens under one
// mutex; listeners and the journal are invoked outside it.
type Engine struct {
	mu       sync.Mutex
	cfg      Config
	pf       *portfolio.Portfolio
	clock    *market.Clock
	journal  journal.Journal
	listener TradeClosedListener
	queue    map[market.Stream][]pending
	seq      uint64
}

func New(cfg Config, pf *portfolio.Portfolio, j journal.Journal) *Engine {
	if j == nil {
		j = journal.Discard{}
	}
	return &Engine{
		cfg:     cfg,
		pf:      pf,
		clock:   market.NewClock(),
		journal: j,
		queue:   make(map[market.Stream][]pending),
	}
}

// SetTradeClosedListener registers the close callback. Called after each
// close with the engine lock released to avoid re-entrancy deadlocks.
func (e *Engine) SetTradeClosedListener(l TradeClosedListener) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listener = l
}

func (e *Engine) Portfolio() *portfolio.Portfolio { return e.pf }

// slip worsens a fill price for the given side and direction. Entries pay
// up, exits receive less.
func (e *Engine) slip(price float64, side portfolio.Side, entry bool) float64 {
	adj := price * e.cfg.SlippageRate
	worse := side == portfolio.Long
	if !entry {
		worse = !worse
	}
	if worse {
		return price + adj
	}
	return price - adj
}

func (e *Engine) commission(price float64, qty int) float64 {
	return e.cfg.CommissionRate * price * float64(qty)
}

// ProcessBar advances the engine by one bar. Order of operations:
// pending fills at the bar open, then stop/target detection, then the
// trailing ratchet, then session-end flattening at the bar close, then
// mark-to-market. Bars that do not advance their stream's clock are
// rejected.
func (e *Engine) ProcessBar(b market.Bar) error {
	if err := e.clock.Observe(b); err != nil {
		log.Warn().Str("instrument", b.Instrument).
			Str("timeframe", b.Timeframe.String()).
			Time("bar_time", b.Time).Err(err).Msg("bar dropped")
		return err
	}

	e.mu.Lock()

	var closed []portfolio.Trade

	for _, p := range e.queue[b.Stream()] {
		if p.entry != nil {
			e.fillEntryLocked(*p.entry, b.Open, b.Time)
		}
		if p.exit != nil {
			if t, ok := e.fillExitLocked(*p.exit, b.Open, b.Time); ok {
				closed = append(closed, t)
			}
		}
	}
	delete(e.queue, b.Stream())

	// Stop, target and trailing evaluate only on the stream the position
	// was opened from.
	pos := e.pf.Position(b.Instrument)
	if pos != nil && pos.Timeframe == b.Timeframe {
		if price, reason, hit := CheckExit(pos, b); hit {
			t, err := e.pf.ClosePosition(b.Instrument, price, b.Time, reason, e.commission(price, pos.Quantity))
			if err == nil {
				closed = append(closed, t)
			}
		} else {
			TrailStop(pos, b.Close)
		}
	}

	// Session-end flattening fires from any stream of the instrument, not
	// just the one the position was opened from.
	if pos = e.pf.Position(b.Instrument); pos != nil && e.cfg.Session.AtOrAfterClose(b.Time) {
		px := e.slip(b.Close, pos.Side, false)
		t, err := e.pf.ClosePosition(b.Instrument, px, b.Time, portfolio.ExitSessionEnd, e.commission(px, pos.Quantity))
		if err == nil {
			closed = append(closed, t)
		}
	}

	e.pf.SetMark(b.Instrument, b.Close)
	snap := e.pf.Snapshot()
	listener := e.listener
	e.mu.Unlock()

	e.record(closed, listener)

	if err := e.journal.RecordEquity(journal.EquitySnapshot{
		Time:     b.Time,
		Cash:     snap.Cash,
		Equity:   snap.Equity,
		Exposure: snap.Exposure,
	}); err != nil {
		return fmt.Errorf("record equity: %w", err)
	}
	return nil
}

// SubmitEntry accepts an entry order per the configured fill policy.
func (e *Engine) SubmitEntry(o EntryOrder, b market.Bar) {
	e.mu.Lock()
	if e.cfg.FillOnClose {
		e.fillEntryLocked(o, b.Close, b.Time)
		e.mu.Unlock()
		return
	}
	s := market.Stream{Instrument: o.Instrument, Timeframe: o.Timeframe}
	e.queue[s] = append(e.queue[s], pending{entry: &o})
	e.mu.Unlock()
}

// SubmitExit accepts an exit order per the configured fill policy. Exit
// orders queued for next-open fill before the position's own stop fires
// still fill first: pending fills precede trigger checks within a bar.
func (e *Engine) SubmitExit(o ExitOrder, b market.Bar) {
	e.mu.Lock()
	if e.cfg.FillOnClose {
		t, ok := e.fillExitLocked(o, b.Close, b.Time)
		listener := e.listener
		e.mu.Unlock()
		if ok {
			e.record([]portfolio.Trade{t}, listener)
		}
		return
	}
	s := market.Stream{Instrument: b.Instrument, Timeframe: b.Timeframe}
	e.queue[s] = append(e.queue[s], pending{exit: &o})
	e.mu.Unlock()
}

// CloseAll flattens every open position at its last mark. Used at the end
// of a replay and on operator shutdown.
func (e *Engine) CloseAll(at time.Time, reason string) []portfolio.Trade {
	e.mu.Lock()
	trades := e.pf.CloseAll(at, reason, e.cfg.CommissionRate)
	listener := e.listener
	e.mu.Unlock()

	e.record(trades, listener)
	return trades
}

func (e *Engine) fillEntryLocked(o EntryOrder, price float64, at time.Time) {
	if o.Quantity <= 0 {
		return
	}
	px := e.slip(price, o.Side, true)
	e.seq++
	p := &portfolio.Position{
		ID:               id.At(at, e.seq),
		Instrument:       o.Instrument,
		Timeframe:        o.Timeframe,
		Side:             o.Side,
		EntryPrice:       px,
		Quantity:         o.Quantity,
		Stop:             o.Stop,
		Target:           o.Target,
		TrailingDistance: o.TrailingDistance,
		EntryTime:        at,
		Status:           portfolio.Open,
	}
	comm := e.commission(px, o.Quantity)
	p.SetEntryCommission(comm)
	if err := e.pf.OpenPosition(p, comm); err != nil {
		log.Warn().Str("instrument", o.Instrument).Err(err).Msg("entry rejected")
		return
	}
	log.Info().Str("instrument", o.Instrument).
		Str("side", o.Side.String()).
		Int("quantity", o.Quantity).
		Float64("price", px).
		Str("reason", o.Reason).Msg("position opened")
}

func (e *Engine) fillExitLocked(o ExitOrder, price float64, at time.Time) (portfolio.Trade, bool) {
	pos := e.pf.Position(o.Instrument)
	if pos == nil {
		return portfolio.Trade{}, false
	}
	px := e.slip(price, pos.Side, false)
	reason := o.Reason
	if reason == "" {
		reason = portfolio.ExitSignal
	}
	t, err := e.pf.ClosePosition(o.Instrument, px, at, reason, e.commission(px, pos.Quantity))
	if err != nil {
		return portfolio.Trade{}, false
	}
	return t, true
}

// record journals closed trades and notifies the listener, outside the lock.
func (e *Engine) record(trades []portfolio.Trade, listener TradeClosedListener) {
	for _, t := range trades {
		log.Info().Str("instrument", t.Instrument).
			Str("side", t.Side.String()).
			Float64("exit", t.ExitPrice).
			Float64("pl", t.RealizedPL).
			Str("reason", t.Reason).Msg("position closed")
		if err := e.journal.RecordTrade(journal.TradeRecord{
			TradeID:    t.ID,
			Instrument: t.Instrument,
			Side:       t.Side.String(),
			Quantity:   t.Quantity,
			EntryPrice: t.EntryPrice,
			ExitPrice:  t.ExitPrice,
			EntryTime:  t.EntryTime,
			ExitTime:   t.ExitTime,
			Commission: t.Commission,
			RealizedPL: t.RealizedPL,
			Reason:     t.Reason,
		}); err != nil {
			log.Error().Err(err).Str("trade", t.ID).Msg("journal write failed")
		}
		if listener != nil {
			listener.OnTradeClosed(t.Instrument, t.RealizedPL, t.Reason, t.ExitTime)
		}
	}
}
