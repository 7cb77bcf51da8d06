// Package risk is the admission-control layer between a winning signal and
// the lifecycle engine: an ordered check pipeline with circuit-breaker state,
// plus the position-sizing calculator and the session-hours filter.
package risk

import (
	"fmt"
	"time"

	"github.com/quantfold/tradebot/portfolio"
)

// Outcome of a gate evaluation. Admission failures are first-class values,
// never errors.
type Outcome int8

const (
	// Approve admits the order.
	Approve Outcome = iota
	// Block rejects this order only; the system stays active.
	Block
	// Pause rejects the order and suppresses all new entries until the
	// pause's reset policy clears it.
	Pause
)

func (o Outcome) String() string {
	switch o {
	case Approve:
		return "approve"
	case Block:
		return "block"
	case Pause:
		return "pause"
	}
	return "unknown"
}

// Decision is the gate's verdict with the specific failing check and reason.
type Decision struct {
	Outcome Outcome
	Check   string
	Reason  string
}

func (d Decision) Approved() bool { return d.Outcome == Approve }

// Order is a sized entry proposal presented to the gate.
type Order struct {
	Instrument string
	Side       portfolio.Side
	Quantity   int
	Price      float64
}

func (o Order) Notional() float64 { return o.Price * float64(o.Quantity) }

// Policy carries the configured limits. Validated at startup by config.
type Policy struct {
	MinEquity           float64
	DailyLossLimit      float64
	MaxDrawdownPct      float64 // e.g. 15 means 15%
	ExposureCapPct      float64 // fraction of equity, e.g. 0.90
	MaxPositionNotional float64
	MaxOpenPositions    int
	Session             SessionHours
}

// BrokerStatus is the transport-side health input for check #2. A circuit
// breaker or an account flag both satisfy it.
type BrokerStatus interface {
	TradingBlocked() bool
}

// Gate runs the ordered admission pipeline. Check order is fixed: an order
// failing several checks always reports the earliest one.
type Gate struct {
	Policy Policy
	State  *State
	Broker BrokerStatus // optional
}

func NewGate(policy Policy, state *State) *Gate {
	return &Gate{Policy: policy, State: state}
}

// Check validates a proposed entry. Exits never come here: callers route
// exit signals straight to the engine so a paused system can still flatten.
func (g *Gate) Check(o Order, snap portfolio.Snapshot, now time.Time) Decision {
	// 1. Trading currently paused.
	if paused, reason := g.State.Paused(); paused {
		return Decision{Outcome: Block, Check: "paused", Reason: "trading paused: " + reason}
	}

	// 2. Broker-reported trading block.
	if g.Broker != nil && g.Broker.TradingBlocked() {
		reason := "trading blocked by broker"
		g.State.Pause(PauseBroker, reason)
		return Decision{Outcome: Pause, Check: "broker", Reason: reason}
	}

	// 3. Equity below the minimum-equity threshold.
	if g.Policy.MinEquity > 0 && snap.Equity < g.Policy.MinEquity {
		reason := fmt.Sprintf("equity %.2f below minimum %.2f", snap.Equity, g.Policy.MinEquity)
		g.State.Pause(PauseMinEquity, reason)
		return Decision{Outcome: Pause, Check: "min_equity", Reason: reason}
	}

	// 4. Daily realized loss at the configured limit.
	if daily := g.State.DailyPL(); g.Policy.DailyLossLimit > 0 && daily <= -g.Policy.DailyLossLimit {
		reason := fmt.Sprintf("daily loss %.2f at limit %.2f", daily, g.Policy.DailyLossLimit)
		g.State.Pause(PauseDailyLoss, reason)
		return Decision{Outcome: Pause, Check: "daily_loss", Reason: reason}
	}

	// 5. Drawdown from peak equity.
	if peak := g.State.PeakEquity(); g.Policy.MaxDrawdownPct > 0 && peak > 0 {
		dd := (peak - snap.Equity) / peak * 100
		if dd >= g.Policy.MaxDrawdownPct {
			reason := fmt.Sprintf("drawdown %.1f%% at limit %.1f%%", dd, g.Policy.MaxDrawdownPct)
			g.State.Pause(PauseDrawdown, reason)
			return Decision{Outcome: Pause, Check: "drawdown", Reason: reason}
		}
	}

	// 6. Instrument already holds a position.
	if snap.OpenInstruments[o.Instrument] {
		return Decision{Outcome: Block, Check: "instrument_busy",
			Reason: "already in a position for " + o.Instrument}
	}

	// 7. Open-position count at the maximum.
	if g.Policy.MaxOpenPositions > 0 && snap.OpenPositions >= g.Policy.MaxOpenPositions {
		return Decision{Outcome: Block, Check: "max_positions",
			Reason: fmt.Sprintf("open positions %d at max %d", snap.OpenPositions, g.Policy.MaxOpenPositions)}
	}

	// 8. Total exposure at or above the cap.
	if limit := snap.Equity * g.Policy.ExposureCapPct; snap.Exposure >= limit {
		return Decision{Outcome: Block, Check: "exposure_cap",
			Reason: fmt.Sprintf("exposure %.2f at cap %.2f", snap.Exposure, limit)}
	}

	// 9. Single-position notional above the maximum.
	if g.Policy.MaxPositionNotional > 0 && o.Notional() > g.Policy.MaxPositionNotional {
		return Decision{Outcome: Block, Check: "max_notional",
			Reason: fmt.Sprintf("notional %.2f above max %.2f", o.Notional(), g.Policy.MaxPositionNotional)}
	}

	// 10. Margin-adjusted buying power.
	if available := snap.BuyingPower - snap.Exposure; o.Notional() > available {
		return Decision{Outcome: Block, Check: "buying_power",
			Reason: fmt.Sprintf("notional %.2f above available buying power %.2f", o.Notional(), available)}
	}

	// 11. Session hours.
	if !g.Policy.Session.Contains(now) {
		return Decision{Outcome: Block, Check: "session",
			Reason: "outside trading session hours"}
	}

	return Decision{Outcome: Approve, Check: "", Reason: "approved"}
}
