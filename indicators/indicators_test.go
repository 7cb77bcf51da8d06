package indicators

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfold/tradebot/market"
)

func closeBar(c float64) market.Bar {
	return market.Bar{Instrument: "AAPL", Close: c, High: c, Low: c, Open: c}
}

func ohlc(o, h, l, c float64) market.Bar {
	return market.Bar{Instrument: "AAPL", Open: o, High: h, Low: l, Close: c}
}

func TestEMASeedsWithSimpleAverage(t *testing.T) {
	e := NewEMA(3)

	e.Update(closeBar(1))
	e.Update(closeBar(2))
	assert.False(t, e.Ready())
	assert.Equal(t, 0.0, e.Value())

	e.Update(closeBar(3))
	require.True(t, e.Ready())
	assert.InDelta(t, 2.0, e.Value(), 1e-9)

	// multiplier 2/(3+1) = 0.5
	e.Update(closeBar(4))
	assert.InDelta(t, 3.0, e.Value(), 1e-9)
}

func TestEMAReset(t *testing.T) {
	e := NewEMA(2)
	e.Update(closeBar(1))
	e.Update(closeBar(2))
	require.True(t, e.Ready())

	e.Reset()
	assert.False(t, e.Ready())
}

func TestRSIAllGains(t *testing.T) {
	r := NewRSI(3)
	for _, c := range []float64{1, 2, 3, 4} {
		r.Update(closeBar(c))
	}
	require.True(t, r.Ready())
	assert.Equal(t, 100.0, r.Value())
}

func TestRSIBalanced(t *testing.T) {
	r := NewRSI(2)
	// Deltas +1, -1 give equal average gain and loss: RSI 50.
	for _, c := range []float64{10, 11, 10} {
		r.Update(closeBar(c))
	}
	require.True(t, r.Ready())
	assert.InDelta(t, 50.0, r.Value(), 1e-9)
}

func TestRSIWarmupLength(t *testing.T) {
	r := NewRSI(14)
	assert.Equal(t, 15, r.Warmup())
	for i := 0; i < 14; i++ {
		r.Update(closeBar(float64(100 + i)))
	}
	assert.False(t, r.Ready())
	r.Update(closeBar(120))
	assert.True(t, r.Ready())
}

func TestATRConstantRange(t *testing.T) {
	a := NewATR(3)
	for i := 0; i < 5; i++ {
		a.Update(ohlc(11, 12, 10, 11))
	}
	require.True(t, a.Ready())
	assert.InDelta(t, 2.0, a.Value(), 1e-9)
}

func TestATRUsesGaps(t *testing.T) {
	a := NewATR(2)
	a.Update(ohlc(11, 12, 10, 11))
	// Gap up: TR = high - prevClose = 20 - 11 = 9.
	a.Update(ohlc(19, 20, 18, 19))
	a.Update(ohlc(19, 20, 18, 19))
	require.True(t, a.Ready())
	assert.Greater(t, a.Value(), 2.0)
}

func TestADXReadyAfterWarmup(t *testing.T) {
	a := NewADX(14)
	assert.Equal(t, 29, a.Warmup())

	// A steady uptrend produces a strong, bounded reading.
	price := 100.0
	for i := 0; i < 40; i++ {
		a.Update(ohlc(price, price+1.5, price-0.5, price+1))
		price += 1
		if i < a.Warmup()-1 {
			assert.False(t, a.Ready(), "bar %d", i)
		}
	}
	require.True(t, a.Ready())
	assert.Greater(t, a.Value(), 20.0)
	assert.LessOrEqual(t, a.Value(), 100.0)
}

func TestTrackerFieldsAppearAsIndicatorsWarmUp(t *testing.T) {
	tr := NewTracker(TrackerConfig{FastEMA: 2, SlowEMA: 3, RSI: 2, ADX: 2, ATR: 2})

	b := ohlc(100, 101, 99, 100.5)
	b.Timeframe = market.Timeframe(5 * time.Minute)
	tr.Update(b)

	fields := tr.Fields()
	_, ok := fields.Get("ema_fast")
	assert.False(t, ok, "nothing ready after one bar")

	price := 100.0
	for i := 0; i < 10; i++ {
		bb := ohlc(price, price+1, price-1, price+0.5)
		tr.Update(bb)
		price += 0.5
	}

	fields = tr.Fields()
	for _, name := range []string{"ema_fast", "ema_slow", "rsi", "adx", "atr"} {
		_, ok := fields.Get(name)
		assert.True(t, ok, "field %s missing", name)
	}
}

func TestFieldsGet(t *testing.T) {
	f := Fields{"adx": 28.5}
	v, ok := f.Get(FieldTrend)
	assert.True(t, ok)
	assert.Equal(t, 28.5, v)

	_, ok = f.Get(FieldMomentum)
	assert.False(t, ok)

	var nilFields Fields
	_, ok = nilFields.Get("adx")
	assert.False(t, ok)
}
