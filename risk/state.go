package risk

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/quantfold/tradebot/portfolio"
)

// PauseTag classifies why trading is paused. It decides the reset policy:
// daily-loss and min-equity pauses clear at the next session boundary,
// drawdown and broker pauses require an operator Resume.
type PauseTag string

const (
	PauseDailyLoss PauseTag = "daily_loss"
	PauseMinEquity PauseTag = "min_equity"
	PauseDrawdown  PauseTag = "drawdown"
	PauseBroker    PauseTag = "broker"
)

// sessionReset reports whether the pause clears automatically on rollover.
func (t PauseTag) sessionReset() bool {
	return t == PauseDailyLoss || t == PauseMinEquity
}

// State is the circuit-breaker and accounting state shared by the gate and
// the lifecycle engine's trade-closed notifications. All writes happen on the
// decision-cycle goroutine; the mutex exists for operator Resume and for
// read-only consumers on other goroutines.
type State struct {
	mu sync.Mutex

	paused      bool
	pauseTag    PauseTag
	pauseReason string

	dailyPL     float64 // realized P/L accumulated this session
	peakEquity  float64
	sessionDate time.Time

	cooldownBars int // bars to sit out per instrument after a stop-loss exit
	cooldowns    map[string]int

	dailyLossLimit float64
}

// NewState seeds the peak with the starting equity.
func NewState(initialEquity, dailyLossLimit float64, cooldownBars int) *State {
	return &State{
		peakEquity:     initialEquity,
		dailyLossLimit: dailyLossLimit,
		cooldownBars:   cooldownBars,
		cooldowns:      make(map[string]int),
	}
}

// Paused returns the flag and the triggering reason.
func (s *State) Paused() (bool, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused, s.pauseReason
}

// Pause suppresses all new entries until the tag's reset policy clears it.
func (s *State) Pause(tag PauseTag, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pauseLocked(tag, reason)
}

func (s *State) pauseLocked(tag PauseTag, reason string) {
	if s.paused {
		return
	}
	s.paused = true
	s.pauseTag = tag
	s.pauseReason = reason
	log.Warn().Str("tag", string(tag)).Str("reason", reason).Msg("trading paused")
}

// Resume is the operator control clearing any pause.
func (s *State) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.paused {
		return
	}
	log.Info().Str("was", s.pauseReason).Msg("trading resumed")
	s.paused = false
	s.pauseTag = ""
	s.pauseReason = ""
}

// Roll resets session-scoped state when now crosses into a new session date:
// the daily P/L counter restarts and session-reset pauses clear. Peak equity
// survives rollover; only an operator resets it.
func (s *State) Roll(now time.Time, session SessionHours) {
	s.mu.Lock()
	defer s.mu.Unlock()

	day := session.Date(now)
	if s.sessionDate.IsZero() {
		s.sessionDate = day
		return
	}
	if day.Equal(s.sessionDate) {
		return
	}

	log.Info().Time("session", day).Float64("prev_daily_pl", s.dailyPL).Msg("session rollover")
	s.sessionDate = day
	s.dailyPL = 0

	if s.paused && s.pauseTag.sessionReset() {
		s.paused = false
		s.pauseTag = ""
		s.pauseReason = ""
	}
}

// ObserveEquity advances the peak-equity high-water mark.
func (s *State) ObserveEquity(equity float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if equity > s.peakEquity {
		s.peakEquity = equity
	}
}

// PeakEquity returns the high-water mark for drawdown measurement.
func (s *State) PeakEquity() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.peakEquity
}

// ResetPeak is an explicit operator action; nothing else lowers the peak.
func (s *State) ResetPeak(equity float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.peakEquity = equity
}

// DailyPL returns realized P/L accumulated in the current session.
func (s *State) DailyPL() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dailyPL
}

// OnTradeClosed is the engine's trade-closed notification: it accumulates the
// session's realized P/L, starts the per-instrument cooldown after a stop-loss
// exit, and trips the daily-loss breaker when the limit is crossed.
func (s *State) OnTradeClosed(instrument string, pl float64, reason string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.dailyPL += pl
	if reason == portfolio.ExitStopLoss && s.cooldownBars > 0 {
		s.cooldowns[instrument] = s.cooldownBars
	}

	if s.dailyLossLimit > 0 && s.dailyPL <= -s.dailyLossLimit {
		s.pauseLocked(PauseDailyLoss, "daily loss limit hit")
	}

	log.Info().
		Str("instrument", instrument).
		Float64("pl", pl).
		Str("reason", reason).
		Float64("daily_pl", s.dailyPL).
		Msg("trade closed")
}

// CooldownRemaining reports bars left before instrument may signal entries
// again. This is a strategy-level filter, not a gate check.
func (s *State) CooldownRemaining(instrument string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cooldowns[instrument]
}

// TickCooldown consumes one bar of an instrument's cooldown.
func (s *State) TickCooldown(instrument string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n := s.cooldowns[instrument]; n > 0 {
		s.cooldowns[instrument] = n - 1
	}
}
