package strategies

import (
	"fmt"
	"strings"
	"time"

	"github.com/quantfold/tradebot/indicators"
	"github.com/quantfold/tradebot/market"
	"github.com/quantfold/tradebot/portfolio"
)

// Direction is a signal's proposed action.
type Direction int8

const (
	EnterLong Direction = iota
	EnterShort
	ExitLong
	ExitShort
)

func (d Direction) String() string {
	switch d {
	case EnterLong:
		return "enter-long"
	case EnterShort:
		return "enter-short"
	case ExitLong:
		return "exit-long"
	case ExitShort:
		return "exit-short"
	}
	return "unknown"
}

func (d Direction) IsEntry() bool { return d == EnterLong || d == EnterShort }
func (d Direction) IsExit() bool  { return d == ExitLong || d == ExitShort }

// Side maps an entry direction onto the position side it would open.
func (d Direction) Side() portfolio.Side {
	if d == EnterShort || d == ExitShort {
		return portfolio.Short
	}
	return portfolio.Long
}

// Signal is a strategy's proposed action for the current bar. Exit signals
// bypass arbitration and the risk gate; entries compete in the arbiter.
type Signal struct {
	Direction        Direction
	Stop             *float64
	Target           *float64
	TrailingDistance *float64
	Timeframe        market.Timeframe
	BarTime          time.Time
	Reason           string
}

// Strategy consumes a bar, a read-only indicator snapshot and the open
// position handle (nil when flat) and emits at most one signal.
type Strategy interface {
	Name() string
	OnBar(b market.Bar, fields indicators.Fields, pos *portfolio.Position) *Signal
}

var registry = make(map[string]func(params map[string]float64) Strategy)

// Register makes a strategy constructor available by name.
func Register(name string, ctor func(params map[string]float64) Strategy) {
	registry[name] = ctor
}

// ByName builds a registered strategy with the given parameter overrides.
func ByName(name string, params map[string]float64) (Strategy, error) {
	ctor, ok := registry[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("unknown strategy %q (registered: %s)", name, strings.Join(Names(), ", "))
	}
	return ctor(params), nil
}

// Names lists registered strategies.
func Names() []string {
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	return out
}

func ptr(v float64) *float64 { return &v }
