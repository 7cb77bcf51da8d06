package indicators

import (
	"fmt"

	"github.com/quantfold/tradebot/market"
)

// RSI is a streaming Relative Strength Index using Wilder smoothing.
// Values range 0..100; the arbiter treats >80 as extreme-overbought and
// <20 as extreme-oversold.
type RSI struct {
	period    int
	avgGain   float64
	avgLoss   float64
	prevClose float64
	havePrev  bool
	count     int
}

func NewRSI(period int) *RSI {
	return &RSI{period: period}
}

func (r *RSI) Name() string { return fmt.Sprintf("RSI(%d)", r.period) }

// Warmup needs period+1 bars: deltas require a previous close.
func (r *RSI) Warmup() int { return r.period + 1 }

func (r *RSI) Reset() {
	r.avgGain = 0
	r.avgLoss = 0
	r.havePrev = false
	r.count = 0
}

func (r *RSI) Update(b market.Bar) {
	if !r.havePrev {
		r.prevClose = b.Close
		r.havePrev = true
		return
	}

	delta := b.Close - r.prevClose
	r.prevClose = b.Close

	gain, loss := 0.0, 0.0
	if delta > 0 {
		gain = delta
	} else {
		loss = -delta
	}

	if r.count < r.period {
		// Warmup: simple averages seed the Wilder smoothing.
		r.avgGain += gain
		r.avgLoss += loss
		r.count++
		if r.count == r.period {
			r.avgGain /= float64(r.period)
			r.avgLoss /= float64(r.period)
		}
		return
	}

	p := float64(r.period)
	r.avgGain = (r.avgGain*(p-1) + gain) / p
	r.avgLoss = (r.avgLoss*(p-1) + loss) / p
	r.count++
}

func (r *RSI) Ready() bool { return r.count >= r.period }

func (r *RSI) Value() float64 {
	if !r.Ready() {
		return 0
	}
	if r.avgLoss == 0 {
		return 100
	}
	rs := r.avgGain / r.avgLoss
	return 100 - 100/(1+rs)
}
