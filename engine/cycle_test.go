package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfold/tradebot/arbiter"
	"github.com/quantfold/tradebot/broker"
	"github.com/quantfold/tradebot/indicators"
	"github.com/quantfold/tradebot/market"
	"github.com/quantfold/tradebot/portfolio"
	"github.com/quantfold/tradebot/risk"
	"github.com/quantfold/tradebot/strategies"
)

// scriptStrategy emits pre-planned signals keyed by bar time.
type scriptStrategy struct {
	signals map[time.Time]*strategies.Signal
}

func (s *scriptStrategy) Name() string { return "script" }

func (s *scriptStrategy) OnBar(b market.Bar, _ indicators.Fields, _ *portfolio.Position) *strategies.Signal {
	return s.signals[b.Time]
}

func entrySignal(tm time.Time, stop float64) *strategies.Signal {
	return &strategies.Signal{
		Direction: strategies.EnterLong,
		Stop:      fptr(stop),
		Timeframe: tf5m,
		BarTime:   tm,
		Reason:    "scripted",
	}
}

func newTestCycle(t *testing.T, script *scriptStrategy, cooldownBars int) *Cycle {
	t.Helper()
	session := testSession(t)
	state := risk.NewState(100_000, 1000, cooldownBars)
	gate := risk.NewGate(risk.Policy{
		ExposureCapPct:   0.90,
		MaxOpenPositions: 5,
		Session:          session,
	}, state)
	eng := New(Config{FillOnClose: true, Session: session}, portfolio.New(100_000, 1), nil)
	eng.SetTradeClosedListener(state)
	return &Cycle{
		Engine:      eng,
		State:       state,
		Gate:        gate,
		Arb:         arbiter.New(),
		Sizing:      risk.SizingParams{Method: risk.SizeFixed, FixedValue: 1000},
		NewStrategy: func() strategies.Strategy { return script },
	}
}

func TestCycleOpensAndStopsOut(t *testing.T) {
	t0 := monday
	script := &scriptStrategy{signals: map[time.Time]*strategies.Signal{
		t0: entrySignal(t0, 95),
	}}
	cy := newTestCycle(t, script, 0)

	require.NoError(t, cy.OnBar(barAt(t0, 99, 101, 98, 100)))
	pos := cy.Engine.Portfolio().Position("AAPL")
	require.NotNil(t, pos)
	assert.Equal(t, 10, pos.Quantity) // 1000 fixed value at price 100

	require.NoError(t, cy.OnBar(barAt(t0.Add(5*time.Minute), 98, 99, 94, 96)))
	assert.Nil(t, cy.Engine.Portfolio().Position("AAPL"))
	trades := cy.Engine.Portfolio().ClosedTrades()
	require.Len(t, trades, 1)
	assert.Equal(t, portfolio.ExitStopLoss, trades[0].Reason)
}

func TestCyclePauseBlocksEntriesNotExits(t *testing.T) {
	t0 := monday
	script := &scriptStrategy{signals: map[time.Time]*strategies.Signal{
		t0:                       entrySignal(t0, 95),
		t0.Add(10 * time.Minute): entrySignal(t0.Add(10*time.Minute), 95),
	}}
	cy := newTestCycle(t, script, 0)

	require.NoError(t, cy.OnBar(barAt(t0, 99, 101, 98, 100)))
	require.NotNil(t, cy.Engine.Portfolio().Position("AAPL"))

	cy.State.Pause(risk.PauseDrawdown, "manual")

	// The stop exit still runs while paused.
	require.NoError(t, cy.OnBar(barAt(t0.Add(5*time.Minute), 98, 99, 94, 96)))
	assert.Nil(t, cy.Engine.Portfolio().Position("AAPL"))
	require.Len(t, cy.Engine.Portfolio().ClosedTrades(), 1)

	// A new entry signal does not.
	require.NoError(t, cy.OnBar(barAt(t0.Add(10*time.Minute), 99, 101, 98, 100)))
	assert.Nil(t, cy.Engine.Portfolio().Position("AAPL"))

	// Operator resume restores entries.
	cy.State.Resume()
	script.signals[t0.Add(15*time.Minute)] = entrySignal(t0.Add(15*time.Minute), 95)
	require.NoError(t, cy.OnBar(barAt(t0.Add(15*time.Minute), 99, 101, 98, 100)))
	assert.NotNil(t, cy.Engine.Portfolio().Position("AAPL"))
}

func TestCycleCooldownSuppressesEntries(t *testing.T) {
	t0 := monday
	script := &scriptStrategy{signals: map[time.Time]*strategies.Signal{
		t0: entrySignal(t0, 99.5),
	}}
	cy := newTestCycle(t, script, 2)

	require.NoError(t, cy.OnBar(barAt(t0, 99, 101, 98, 100)))
	require.NotNil(t, cy.Engine.Portfolio().Position("AAPL"))

	// Stop out; the loss starts the cooldown.
	require.NoError(t, cy.OnBar(barAt(t0.Add(5*time.Minute), 100, 100.5, 99, 99.6)))
	require.Len(t, cy.Engine.Portfolio().ClosedTrades(), 1)
	assert.Equal(t, 2, cy.State.CooldownRemaining("AAPL"))

	// Entry signals during the cooldown are dropped before arbitration.
	for i := 2; i <= 3; i++ {
		tm := t0.Add(time.Duration(i) * 5 * time.Minute)
		script.signals[tm] = entrySignal(tm, 95)
		require.NoError(t, cy.OnBar(barAt(tm, 99, 101, 98, 100)))
		assert.Nil(t, cy.Engine.Portfolio().Position("AAPL"))
	}

	// Cooldown expired, next signal trades again.
	tm := t0.Add(20 * time.Minute)
	script.signals[tm] = entrySignal(tm, 95)
	require.NoError(t, cy.OnBar(barAt(tm, 99, 101, 98, 100)))
	assert.NotNil(t, cy.Engine.Portfolio().Position("AAPL"))
}

func TestCycleExitSignalBypassesGate(t *testing.T) {
	t0 := monday
	script := &scriptStrategy{signals: map[time.Time]*strategies.Signal{
		t0: entrySignal(t0, 90),
		t0.Add(5 * time.Minute): {
			Direction: strategies.ExitLong,
			Timeframe: tf5m,
			BarTime:   t0.Add(5 * time.Minute),
		},
	}}
	cy := newTestCycle(t, script, 0)

	require.NoError(t, cy.OnBar(barAt(t0, 99, 101, 98, 100)))
	require.NotNil(t, cy.Engine.Portfolio().Position("AAPL"))

	cy.State.Pause(risk.PauseBroker, "transport down")
	require.NoError(t, cy.OnBar(barAt(t0.Add(5*time.Minute), 100, 102, 99, 101)))

	assert.Nil(t, cy.Engine.Portfolio().Position("AAPL"))
	trades := cy.Engine.Portfolio().ClosedTrades()
	require.Len(t, trades, 1)
	assert.Equal(t, portfolio.ExitSignal, trades[0].Reason)
}

func TestCycleZeroSizeAbandonsEntry(t *testing.T) {
	t0 := monday
	script := &scriptStrategy{signals: map[time.Time]*strategies.Signal{
		t0: entrySignal(t0, 95),
	}}
	cy := newTestCycle(t, script, 0)
	cy.Gate.Policy.ExposureCapPct = 0.05

	// Park exposure on another instrument past the cap so the sizer has no
	// remaining capacity at all.
	pf := cy.Engine.Portfolio()
	require.NoError(t, pf.OpenPosition(&portfolio.Position{
		ID:         "seed",
		Instrument: "MSFT",
		Timeframe:  tf5m,
		Side:       portfolio.Long,
		EntryPrice: 100,
		Quantity:   60,
		EntryTime:  t0,
		Status:     portfolio.Open,
	}, 0))
	pf.SetMark("MSFT", 100)

	require.NoError(t, cy.OnBar(barAt(t0, 99, 101, 98, 100)))
	assert.Nil(t, cy.Engine.Portfolio().Position("AAPL"))
}

// stubRouter stands in for the breaker-wrapped live broker.
type stubRouter struct {
	reqs []broker.OrderRequest
	err  error
}

func (r *stubRouter) Account(context.Context) (broker.Account, error) {
	return broker.Account{}, nil
}

func (r *stubRouter) PlaceOrder(_ context.Context, req broker.OrderRequest) (broker.Fill, error) {
	r.reqs = append(r.reqs, req)
	if r.err != nil {
		return broker.Fill{}, r.err
	}
	return broker.Fill{OrderID: "ack", Instrument: req.Instrument, Quantity: req.Quantity, Price: 100}, nil
}

func TestCycleRoutesEntriesThroughRouter(t *testing.T) {
	t0 := monday
	script := &scriptStrategy{signals: map[time.Time]*strategies.Signal{
		t0: entrySignal(t0, 95),
	}}
	cy := newTestCycle(t, script, 0)
	router := &stubRouter{}
	cy.Router = router

	require.NoError(t, cy.OnBar(barAt(t0, 99, 101, 98, 100)))
	require.NotNil(t, cy.Engine.Portfolio().Position("AAPL"))
	require.Len(t, router.reqs, 1)
	assert.Equal(t, "AAPL", router.reqs[0].Instrument)
	assert.Equal(t, portfolio.Long, router.reqs[0].Side)
	assert.Equal(t, 10, router.reqs[0].Quantity)
}

func TestCycleRouterRejectionAbandonsEntry(t *testing.T) {
	t0 := monday
	script := &scriptStrategy{signals: map[time.Time]*strategies.Signal{
		t0: entrySignal(t0, 95),
	}}
	cy := newTestCycle(t, script, 0)
	cy.Router = &stubRouter{err: errors.New("circuit breaker is open")}

	require.NoError(t, cy.OnBar(barAt(t0, 99, 101, 98, 100)))
	assert.Nil(t, cy.Engine.Portfolio().Position("AAPL"))
}
