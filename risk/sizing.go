package risk

import (
	"math"

	"github.com/quantfold/tradebot/portfolio"
)

// SizingMethod selects how the desired notional is derived.
type SizingMethod string

const (
	SizePercent SizingMethod = "percent"
	SizeFixed   SizingMethod = "fixed"
	SizeRisk    SizingMethod = "risk_based"
)

// SizingParams configures the calculator.
type SizingParams struct {
	Method     SizingMethod
	PctEquity  float64 // percent-of-equity fraction, e.g. 0.90
	FixedValue float64 // dollars for fixed sizing
	RiskPct    float64 // fraction of equity at risk for risk-based sizing
}

// Size converts a desired trade into a constrained share quantity.
// The capping order matters: exposure capacity and buying power are
// independent constraints and the tighter one must win before shares are
// computed; flooring first would allow overshoot.
//
// Returns 0 to mean "do not trade".
func Size(p SizingParams, price, stopDistance float64, snap portfolio.Snapshot, exposureCapPct float64) int {
	if price <= 0 {
		return 0
	}

	// 1. Desired notional value.
	var desired float64
	switch p.Method {
	case SizeFixed:
		desired = p.FixedValue
	case SizeRisk:
		if stopDistance > 0 {
			desired = (snap.Equity * p.RiskPct / stopDistance) * price
		} else {
			desired = snap.Equity * p.RiskPct
		}
	default: // percent
		desired = snap.Equity * p.PctEquity
	}

	// 2. Cap by remaining exposure capacity.
	remaining := snap.Equity*exposureCapPct - snap.Exposure
	if desired > remaining {
		desired = remaining
	}

	// 3. Cap by available buying power.
	available := snap.BuyingPower - snap.Exposure
	if desired > available {
		desired = available
	}

	if desired <= 0 {
		return 0
	}

	// 4. Integer shares, floored at one. A positive capped value always
	// buys at least one share; only exhausted capacity returns 0 above.
	qty := int(math.Floor(desired / price))
	if qty < 1 {
		qty = 1
	}
	return qty
}
