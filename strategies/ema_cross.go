package strategies

import (
	"github.com/quantfold/tradebot/indicators"
	"github.com/quantfold/tradebot/market"
	"github.com/quantfold/tradebot/portfolio"
)

// EMACross trades fast/slow EMA crossovers:
//   - enters only on a cross, with ATR-derived stop and target
//   - exits an open position on the opposite cross
//
// Stop distance is StopATR multiples of ATR; target is RR times the stop
// distance beyond entry.
type EMACross struct {
	StopATR float64 // stop distance in ATR multiples (default 1.5)
	RR      float64 // target as a multiple of stop distance (default 2.5)

	lastDiff     float64
	haveLastDiff bool
}

func NewEMACross(params map[string]float64) *EMACross {
	s := &EMACross{StopATR: 1.5, RR: 2.5}
	if v, ok := params["stop_atr"]; ok && v > 0 {
		s.StopATR = v
	}
	if v, ok := params["rr"]; ok && v > 0 {
		s.RR = v
	}
	return s
}

func (s *EMACross) Name() string { return "ema-cross" }

func (s *EMACross) OnBar(b market.Bar, fields indicators.Fields, pos *portfolio.Position) *Signal {
	fast, okF := fields.Get("ema_fast")
	slow, okS := fields.Get("ema_slow")
	if !okF || !okS {
		return nil
	}

	diff := fast - slow
	if !s.haveLastDiff {
		s.lastDiff = diff
		s.haveLastDiff = true
		return nil
	}

	crossedUp := s.lastDiff <= 0 && diff > 0
	crossedDown := s.lastDiff >= 0 && diff < 0
	s.lastDiff = diff

	if !crossedUp && !crossedDown {
		return nil
	}

	// A cross against an open position is an exit, never a reversal here;
	// re-entry competes in the arbiter on a later bar.
	if pos != nil {
		if pos.Side == portfolio.Long && crossedDown {
			return &Signal{
				Direction: ExitLong,
				Timeframe: b.Timeframe,
				BarTime:   b.Time,
				Reason:    "ema crossunder",
			}
		}
		if pos.Side == portfolio.Short && crossedUp {
			return &Signal{
				Direction: ExitShort,
				Timeframe: b.Timeframe,
				BarTime:   b.Time,
				Reason:    "ema crossover",
			}
		}
		return nil
	}

	atr, okA := fields.Get("atr")
	if !okA || atr <= 0 {
		return nil
	}
	stopDist := atr * s.StopATR

	if crossedUp {
		return &Signal{
			Direction: EnterLong,
			Stop:      ptr(b.Close - stopDist),
			Target:    ptr(b.Close + stopDist*s.RR),
			Timeframe: b.Timeframe,
			BarTime:   b.Time,
			Reason:    "ema crossover",
		}
	}
	return &Signal{
		Direction: EnterShort,
		Stop:      ptr(b.Close + stopDist),
		Target:    ptr(b.Close - stopDist*s.RR),
		Timeframe: b.Timeframe,
		BarTime:   b.Time,
		Reason:    "ema crossunder",
	}
}

func init() {
	Register("ema-cross", func(params map[string]float64) Strategy { return NewEMACross(params) })
}
