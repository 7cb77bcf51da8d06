package indicators

import (
	"fmt"

	"github.com/quantfold/tradebot/market"
)

// ADX implements Wilder's Average Directional Index (trend strength, 0..100).
// The arbiter reads it as the trend-strength field: >25 strong, >20 moderate.
type ADX struct {
	period int

	prev     market.Bar
	havePrev bool

	// Wilder-smoothed running values after warmup.
	trN  float64
	pdmN float64
	mdmN float64

	adx   float64
	dxSum float64

	count int // bars consumed, including the prev seed
	ready bool
}

func NewADX(period int) *ADX {
	return &ADX{period: period}
}

func (a *ADX) Name() string { return fmt.Sprintf("ADX(%d)", a.period) }

// Warmup: period bars seed TR/DM smoothing, then period DX values seed ADX.
func (a *ADX) Warmup() int { return 2*a.period + 1 }

func (a *ADX) Reset() {
	*a = ADX{period: a.period}
}

func (a *ADX) Update(b market.Bar) {
	if !a.havePrev {
		a.prev = b
		a.havePrev = true
		a.count = 1
		return
	}

	upMove := b.High - a.prev.High
	downMove := a.prev.Low - b.Low

	var pdm, mdm float64
	if upMove > downMove && upMove > 0 {
		pdm = upMove
	}
	if downMove > upMove && downMove > 0 {
		mdm = downMove
	}

	tr := trueRange(b, a.prev)
	a.prev = b
	a.count++

	p := float64(a.period)

	// Phase A: accumulate the first period of TR/DM samples.
	if a.count <= a.period+1 {
		a.trN += tr
		a.pdmN += pdm
		a.mdmN += mdm
		if a.count < a.period+1 {
			return
		}
	} else {
		// Wilder smoothing once seeded.
		a.trN = a.trN - a.trN/p + tr
		a.pdmN = a.pdmN - a.pdmN/p + pdm
		a.mdmN = a.mdmN - a.mdmN/p + mdm
	}

	dx := a.dx()

	// Phase B: accumulate period DX values to seed ADX, then smooth.
	dxSamples := a.count - a.period - 1
	switch {
	case dxSamples < a.period:
		a.dxSum += dx
	case dxSamples == a.period:
		a.dxSum += dx
		a.adx = a.dxSum / p
		a.ready = true
	default:
		a.adx = (a.adx*(p-1) + dx) / p
	}
}

func (a *ADX) dx() float64 {
	if a.trN == 0 {
		return 0
	}
	pdi := 100 * a.pdmN / a.trN
	mdi := 100 * a.mdmN / a.trN
	sum := pdi + mdi
	if sum == 0 {
		return 0
	}
	diff := pdi - mdi
	if diff < 0 {
		diff = -diff
	}
	return 100 * diff / sum
}

func (a *ADX) Ready() bool { return a.ready }

func (a *ADX) Value() float64 {
	if !a.ready {
		return 0
	}
	return a.adx
}
