package engine

import (
	"github.com/quantfold/tradebot/market"
	"github.com/quantfold/tradebot/portfolio"
)

// CheckExit inspects a bar for stop or target penetration on an open
// position. Both replay and live paths call this one function so their
// fills can never disagree.
//
// When a single bar spans both levels the stop wins: intrabar ordering is
// unknowable from OHLC alone, so the engine assumes the worse path. Fills
// are reported at the exact trigger price, not the bar close.
func CheckExit(p *portfolio.Position, b market.Bar) (price float64, reason string, hit bool) {
	if p == nil || p.Status != portfolio.Open {
		return 0, "", false
	}
	switch p.Side {
	case portfolio.Long:
		if p.Stop != nil && b.Low <= *p.Stop {
			return *p.Stop, portfolio.ExitStopLoss, true
		}
		if p.Target != nil && b.High >= *p.Target {
			return *p.Target, portfolio.ExitTakeProfit, true
		}
	case portfolio.Short:
		if p.Stop != nil && b.High >= *p.Stop {
			return *p.Stop, portfolio.ExitStopLoss, true
		}
		if p.Target != nil && b.Low <= *p.Target {
			return *p.Target, portfolio.ExitTakeProfit, true
		}
	}
	return 0, "", false
}

// TrailStop ratchets a trailing stop toward the close. The stop only ever
// tightens: a long stop never moves down, a short stop never moves up.
// Returns true when the stop moved.
func TrailStop(p *portfolio.Position, close float64) bool {
	if p == nil || p.TrailingDistance == nil {
		return false
	}
	d := *p.TrailingDistance
	switch p.Side {
	case portfolio.Long:
		candidate := close - d
		if p.Stop == nil || candidate > *p.Stop {
			p.Stop = &candidate
			return true
		}
	case portfolio.Short:
		candidate := close + d
		if p.Stop == nil || candidate < *p.Stop {
			p.Stop = &candidate
			return true
		}
	}
	return false
}
