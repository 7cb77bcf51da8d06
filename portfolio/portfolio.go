// Package portfolio holds the shared account state: cash, open positions,
// exposure and the closed-trade history. It is data, not a process — the
// lifecycle engine is the only writer, everyone else reads a Snapshot.
package portfolio

import (
	"fmt"
	"sort"
	"time"

	"github.com/quantfold/tradebot/market"
)

// Side of a position: +1 long, -1 short.
type Side int8

const (
	Long  Side = +1
	Short Side = -1
)

func (s Side) String() string {
	if s == Short {
		return "short"
	}
	return "long"
}

// Status of a position handle.
type Status int8

const (
	Open Status = iota
	Closed
)

// Position is one open holding. At most one per instrument at any time.
// The stop level is the only field mutated while open (trailing updates).
type Position struct {
	ID               string
	Instrument       string
	Timeframe        market.Timeframe // stream that opened it; exits evaluate on its bars
	Side             Side
	EntryPrice       float64
	Quantity         int
	Stop             *float64
	Target           *float64
	TrailingDistance *float64
	EntryTime        time.Time
	Status           Status
	CloseReason      string

	entryCommission float64
}

// SetEntryCommission records the commission paid when the position opened so
// realized P/L can net both legs.
func (p *Position) SetEntryCommission(c float64) { p.entryCommission = c }

// Notional is the entry value of the position.
func (p *Position) Notional() float64 {
	return p.EntryPrice * float64(p.Quantity)
}

// UnrealizedPL marks the position against price.
func (p *Position) UnrealizedPL(price float64) float64 {
	return float64(p.Side) * (price - p.EntryPrice) * float64(p.Quantity)
}

// Trade is a completed round trip, appended to history when a position closes.
type Trade struct {
	ID         string
	Instrument string
	Side       Side
	Quantity   int
	EntryPrice float64
	ExitPrice  float64
	EntryTime  time.Time
	ExitTime   time.Time
	Commission float64 // entry + exit
	RealizedPL float64
	Reason     string
}

// Snapshot is a consistent read-only view handed to sizing, the risk gate
// and the arbiter. Never hand out the live maps.
type Snapshot struct {
	Cash            float64
	Equity          float64
	Exposure        float64
	BuyingPower     float64
	OpenPositions   int
	OpenInstruments map[string]bool
}

// Portfolio is the single shared mutable resource. All mutation goes through
// the lifecycle engine under its lock.
type Portfolio struct {
	cash         float64
	marginFactor float64
	positions    map[string]*Position
	closed       []Trade
	marks        map[string]float64 // last close per instrument
}

func New(initialCash, marginFactor float64) *Portfolio {
	if marginFactor <= 0 {
		marginFactor = 1
	}
	return &Portfolio{
		cash:         initialCash,
		marginFactor: marginFactor,
		positions:    make(map[string]*Position),
		marks:        make(map[string]float64),
	}
}

func (pf *Portfolio) Cash() float64 { return pf.cash }

// Position returns the open position for instrument, or nil.
func (pf *Portfolio) Position(instrument string) *Position {
	return pf.positions[instrument]
}

func (pf *Portfolio) OpenCount() int { return len(pf.positions) }

// Exposure is the total entry notional across all open positions.
func (pf *Portfolio) Exposure() float64 {
	var total float64
	for _, p := range pf.positions {
		total += p.Notional()
	}
	return total
}

// SetMark records the latest close for an instrument, used to value equity.
func (pf *Portfolio) SetMark(instrument string, price float64) {
	pf.marks[instrument] = price
}

// Mark returns the last recorded close for an instrument.
func (pf *Portfolio) Mark(instrument string) (float64, bool) {
	m, ok := pf.marks[instrument]
	return m, ok
}

// Equity is cash plus the marked value of open positions. A long contributes
// quantity*mark; a short contributes its entry notional plus unrealized P/L
// (the short-sale proceeds already sit in cash).
func (pf *Portfolio) Equity() float64 {
	equity := pf.cash
	for _, p := range pf.positions {
		mark, ok := pf.marks[p.Instrument]
		if !ok {
			mark = p.EntryPrice
		}
		if p.Side == Long {
			equity += mark * float64(p.Quantity)
		} else {
			equity -= mark * float64(p.Quantity)
		}
	}
	return equity
}

// BuyingPower is margin-adjusted purchasing capacity.
func (pf *Portfolio) BuyingPower() float64 {
	return pf.Equity() * pf.marginFactor
}

func (pf *Portfolio) Snapshot() Snapshot {
	open := make(map[string]bool, len(pf.positions))
	for instrument := range pf.positions {
		open[instrument] = true
	}
	return Snapshot{
		Cash:            pf.cash,
		Equity:          pf.Equity(),
		Exposure:        pf.Exposure(),
		BuyingPower:     pf.BuyingPower(),
		OpenPositions:   len(pf.positions),
		OpenInstruments: open,
	}
}

// OpenPosition admits a filled entry. It enforces the one-position-per-
// instrument invariant and applies entry cash accounting: longs pay
// notional + commission, shorts receive notional - commission.
func (pf *Portfolio) OpenPosition(p *Position, commission float64) error {
	if p == nil || p.Quantity <= 0 {
		return fmt.Errorf("open position: invalid quantity")
	}
	if _, ok := pf.positions[p.Instrument]; ok {
		return fmt.Errorf("open position: %s already has an open position", p.Instrument)
	}
	if p.Side == Long {
		pf.cash -= p.Notional() + commission
	} else {
		pf.cash += p.Notional() - commission
	}
	p.Status = Open
	pf.positions[p.Instrument] = p
	return nil
}

// ClosePosition settles the open position for instrument at exitPrice,
// removes it, and appends the completed trade to history.
func (pf *Portfolio) ClosePosition(instrument string, exitPrice float64, exitTime time.Time,
	reason string, exitCommission float64) (Trade, error) {

	p, ok := pf.positions[instrument]
	if !ok {
		return Trade{}, fmt.Errorf("close position: no open position for %s", instrument)
	}

	if p.Side == Long {
		pf.cash += exitPrice*float64(p.Quantity) - exitCommission
	} else {
		pf.cash -= exitPrice*float64(p.Quantity) + exitCommission
	}

	entryCommission := p.entryCommission
	pl := float64(p.Side)*(exitPrice-p.EntryPrice)*float64(p.Quantity) - entryCommission - exitCommission

	p.Status = Closed
	p.CloseReason = reason
	delete(pf.positions, instrument)

	tr := Trade{
		ID:         p.ID,
		Instrument: p.Instrument,
		Side:       p.Side,
		Quantity:   p.Quantity,
		EntryPrice: p.EntryPrice,
		ExitPrice:  exitPrice,
		EntryTime:  p.EntryTime,
		ExitTime:   exitTime,
		Commission: entryCommission + exitCommission,
		RealizedPL: pl,
		Reason:     reason,
	}
	pf.closed = append(pf.closed, tr)
	return tr, nil
}

// CloseAll settles every open position at its last mark, in instrument
// order so replays produce identical trade sequences.
func (pf *Portfolio) CloseAll(at time.Time, reason string, commissionRate float64) []Trade {
	instruments := make([]string, 0, len(pf.positions))
	for instrument := range pf.positions {
		instruments = append(instruments, instrument)
	}
	sort.Strings(instruments)

	trades := make([]Trade, 0, len(instruments))
	for _, instrument := range instruments {
		p := pf.positions[instrument]
		mark, ok := pf.marks[instrument]
		if !ok {
			mark = p.EntryPrice
		}
		t, err := pf.ClosePosition(instrument, mark, at, reason,
			commissionRate*mark*float64(p.Quantity))
		if err == nil {
			trades = append(trades, t)
		}
	}
	return trades
}

// ClosedCount returns the number of completed round trips.
func (pf *Portfolio) ClosedCount() int { return len(pf.closed) }

// ClosedTrades returns the round-trip history in close order.
func (pf *Portfolio) ClosedTrades() []Trade {
	out := make([]Trade, len(pf.closed))
	copy(out, pf.closed)
	return out
}
