package strategies

import (
	"github.com/quantfold/tradebot/indicators"
	"github.com/quantfold/tradebot/market"
	"github.com/quantfold/tradebot/portfolio"
)

// Noop never signals. Baseline for wiring tests.
type Noop struct{}

func (Noop) Name() string { return "noop" }

func (Noop) OnBar(market.Bar, indicators.Fields, *portfolio.Position) *Signal {
	return nil
}

func init() {
	Register("noop", func(map[string]float64) Strategy { return Noop{} })
}
