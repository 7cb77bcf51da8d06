// Package arbiter reconciles competing entry signals from different
// observation intervals into at most one decision per instrument per cycle.
package arbiter

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/quantfold/tradebot/indicators"
	"github.com/quantfold/tradebot/strategies"
)

// DefaultFreshnessWindow is the maximum age at which a buffered signal stays
// eligible. Eviction is pure timestamp arithmetic; nothing blocks.
const DefaultFreshnessWindow = 120 * time.Second

// Scoring thresholds. Trend strength above Strong earns full weight, above
// Moderate half weight, otherwise a fifth. Momentum outside (Oversold,
// Overbought) is an extreme band.
const (
	strongTrend   = 25.0
	moderateTrend = 20.0
	overbought    = 80.0
	oversold      = 20.0

	defaultTrend = 15.0 // assumed weak trend when the field is absent
)

// Candidate is a buffered entry signal with its arrival time and the
// indicator snapshot it was produced against.
type Candidate struct {
	Signal  strategies.Signal
	Arrived time.Time
	Price   float64 // close of the signal bar, for reward:risk
	Fields  indicators.Fields
}

// Breakdown is the component decomposition of a score.
type Breakdown struct {
	Trend         float64
	RewardRisk    float64
	TimeframePref float64
	Agreement     float64
	Momentum      float64
}

func (b Breakdown) Total() float64 {
	return b.Trend + b.RewardRisk + b.TimeframePref + b.Agreement + b.Momentum
}

// ScoredSignal is the transient result of one arbitration cycle.
type ScoredSignal struct {
	Candidate
	Score     float64
	Breakdown Breakdown
}

// Arbiter buffers recent entry signals per instrument and selects one winner
// per decision cycle.
type Arbiter struct {
	window           time.Duration
	requireConsensus bool
	buf              map[string][]Candidate
}

type Option func(*Arbiter)

// WithWindow overrides the freshness window.
func WithWindow(d time.Duration) Option {
	return func(a *Arbiter) {
		if d > 0 {
			a.window = d
		}
	}
}

// WithConsensus makes the arbiter select nothing while fresh signals
// disagree on direction, instead of letting the highest score win.
func WithConsensus(on bool) Option {
	return func(a *Arbiter) { a.requireConsensus = on }
}

func New(opts ...Option) *Arbiter {
	a := &Arbiter{
		window: DefaultFreshnessWindow,
		buf:    make(map[string][]Candidate),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Submit buffers an entry candidate. Exit signals never come here.
func (a *Arbiter) Submit(instrument string, c Candidate) {
	if !c.Signal.Direction.IsEntry() {
		return
	}
	a.buf[instrument] = append(a.buf[instrument], c)
}

// fresh evicts stale candidates in place and returns the survivors.
func (a *Arbiter) fresh(instrument string, now time.Time) []Candidate {
	kept := a.buf[instrument][:0]
	for _, c := range a.buf[instrument] {
		if now.Sub(c.Arrived) <= a.window {
			kept = append(kept, c)
		}
	}
	a.buf[instrument] = kept
	return kept
}

// Select runs one arbitration cycle for an instrument: evict stale signals,
// score the fresh ones, pick the winner and clear the buffer. Losers may
// reappear on a future bar and be re-evaluated.
func (a *Arbiter) Select(instrument string, now time.Time) (ScoredSignal, bool) {
	candidates := a.fresh(instrument, now)
	if len(candidates) == 0 {
		return ScoredSignal{}, false
	}
	defer func() { delete(a.buf, instrument) }()

	if a.requireConsensus && directionsDisagree(candidates) {
		log.Debug().Str("instrument", instrument).Msg("arbiter: no direction consensus")
		return ScoredSignal{}, false
	}

	var best ScoredSignal
	haveBest := false
	for i, c := range candidates {
		bd := a.score(i, c, candidates)
		sc := ScoredSignal{Candidate: c, Score: bd.Total(), Breakdown: bd}
		if !haveBest || better(sc, best) {
			best = sc
			haveBest = true
		}
	}

	log.Debug().
		Str("instrument", instrument).
		Str("direction", best.Signal.Direction.String()).
		Str("timeframe", best.Signal.Timeframe.String()).
		Float64("score", best.Score).
		Int("candidates", len(candidates)).
		Msg("arbiter: winner selected")
	return best, true
}

// better orders by score, then shorter timeframe, then earlier arrival.
func better(a, b ScoredSignal) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.Signal.Timeframe != b.Signal.Timeframe {
		return a.Signal.Timeframe < b.Signal.Timeframe
	}
	return a.Arrived.Before(b.Arrived)
}

func directionsDisagree(cs []Candidate) bool {
	for _, c := range cs[1:] {
		if c.Signal.Direction != cs[0].Signal.Direction {
			return true
		}
	}
	return false
}

func (a *Arbiter) score(idx int, c Candidate, all []Candidate) Breakdown {
	var bd Breakdown

	// Trend-strength term, capped at 40.
	trend, ok := c.Fields.Get(indicators.FieldTrend)
	if !ok {
		trend = defaultTrend
	}
	switch {
	case trend > strongTrend:
		bd.Trend = trend
		if bd.Trend > 40 {
			bd.Trend = 40
		}
	case trend > moderateTrend:
		bd.Trend = trend * 0.5
	default:
		bd.Trend = trend * 0.2
	}

	// Reward:risk term, capped at 30.
	if c.Signal.Stop != nil && c.Signal.Target != nil && c.Price > 0 {
		risk := abs(c.Price - *c.Signal.Stop)
		reward := abs(*c.Signal.Target - c.Price)
		if risk > 0 {
			bd.RewardRisk = reward / risk * 10
			if bd.RewardRisk > 30 {
				bd.RewardRisk = 30
			}
		}
	}

	// Timeframe preference rewards shorter observation intervals.
	if v := 20 - c.Signal.Timeframe.Minutes()*1.5; v > 0 {
		bd.TimeframePref = v
	}

	// Cross-timeframe agreement: every other fresh same-direction signal.
	for i, other := range all {
		if i == idx {
			continue
		}
		if other.Signal.Direction == c.Signal.Direction {
			bd.Agreement += 10
		}
	}

	// Momentum-extremity adjustment: penalize buying into extreme-overbought
	// or selling into extreme-oversold; reward a non-extreme reading.
	if rsi, ok := c.Fields.Get(indicators.FieldMomentum); ok {
		long := c.Signal.Direction == strategies.EnterLong
		switch {
		case long && rsi > overbought:
			bd.Momentum = -10
		case !long && rsi < oversold:
			bd.Momentum = -10
		case rsi <= overbought && rsi >= oversold:
			bd.Momentum = 5
		}
	}

	return bd
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
