package backtest

import (
	"context"
	"fmt"
	"time"

	"github.com/quantfold/tradebot/engine"
	"github.com/quantfold/tradebot/market"
	"github.com/quantfold/tradebot/portfolio"
)

// Options controls end-of-replay behavior.
type Options struct {
	// CloseEnd flattens all remaining positions at the last mark when the
	// dataset is exhausted.
	CloseEnd    bool
	CloseReason string
}

// Result summarizes a finished replay.
type Result struct {
	Cash   float64
	Equity float64
	Trades int
	Wins   int
	Losses int
	Start  time.Time
	End    time.Time
}

// Runner drives the decision cycle over a bar feed.
type Runner struct {
	Cycle   *engine.Cycle
	Feed    BarFeed
	Options Options
}

// Run executes the replay loop: read bar, run the cycle, repeat until EOF.
// Out-of-order bars are skipped, not fatal; the clock already logged them.
func (r *Runner) Run(ctx context.Context) (Result, error) {
	if r.Cycle == nil {
		return Result{}, fmt.Errorf("backtest: Cycle is required")
	}
	if r.Feed == nil {
		return Result{}, fmt.Errorf("backtest: Feed is required")
	}
	defer r.Feed.Close()

	var start, end time.Time
	for {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		b, ok, err := r.Feed.Next()
		if err != nil {
			return Result{}, err
		}
		if !ok {
			break
		}

		if start.IsZero() {
			start = b.Time
		}
		if b.Time.After(end) {
			end = b.Time
		}

		if err := r.Cycle.OnBar(b); err != nil && !market.IsOutOfOrder(err) {
			return Result{}, err
		}
	}

	if r.Options.CloseEnd {
		reason := r.Options.CloseReason
		if reason == "" {
			reason = portfolio.ExitEndOfData
		}
		r.Cycle.Engine.CloseAll(end, reason)
	}

	pf := r.Cycle.Engine.Portfolio()
	res := Result{
		Cash:   pf.Cash(),
		Equity: pf.Equity(),
		Start:  start,
		End:    end,
	}
	for _, t := range pf.ClosedTrades() {
		res.Trades++
		switch {
		case t.RealizedPL > 0:
			res.Wins++
		case t.RealizedPL < 0:
			res.Losses++
		}
	}
	return res, nil
}
