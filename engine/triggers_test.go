package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/quantfold/tradebot/market"
	"github.com/quantfold/tradebot/portfolio"
)

func fptr(v float64) *float64 { return &v }

func bar(o, h, l, c float64) market.Bar {
	return market.Bar{
		Instrument: "AAPL",
		Timeframe:  market.Timeframe(5 * time.Minute),
		Time:       time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC),
		Open:       o, High: h, Low: l, Close: c,
	}
}

func longPos(stop, target *float64) *portfolio.Position {
	return &portfolio.Position{
		Instrument: "AAPL",
		Side:       portfolio.Long,
		EntryPrice: 100,
		Quantity:   10,
		Stop:       stop,
		Target:     target,
		Status:     portfolio.Open,
	}
}

func TestCheckExitLongStop(t *testing.T) {
	p := longPos(fptr(95), fptr(112.5))

	price, reason, hit := CheckExit(p, bar(99, 100, 94, 96))
	assert.True(t, hit)
	assert.Equal(t, portfolio.ExitStopLoss, reason)
	assert.Equal(t, 95.0, price)
}

func TestCheckExitLongTarget(t *testing.T) {
	p := longPos(fptr(95), fptr(112.5))

	price, reason, hit := CheckExit(p, bar(110, 113, 109, 112))
	assert.True(t, hit)
	assert.Equal(t, portfolio.ExitTakeProfit, reason)
	assert.Equal(t, 112.5, price)
}

func TestCheckExitStopWinsWhenBarSpansBoth(t *testing.T) {
	p := longPos(fptr(95), fptr(112.5))

	// One bar touches both levels. The worse path is assumed.
	price, reason, hit := CheckExit(p, bar(100, 113, 90, 105))
	assert.True(t, hit)
	assert.Equal(t, portfolio.ExitStopLoss, reason)
	assert.Equal(t, 95.0, price)
}

func TestCheckExitShort(t *testing.T) {
	p := &portfolio.Position{
		Instrument: "AAPL",
		Side:       portfolio.Short,
		EntryPrice: 100,
		Quantity:   10,
		Stop:       fptr(105),
		Target:     fptr(90),
		Status:     portfolio.Open,
	}

	price, reason, hit := CheckExit(p, bar(101, 106, 100, 104))
	assert.True(t, hit)
	assert.Equal(t, portfolio.ExitStopLoss, reason)
	assert.Equal(t, 105.0, price)

	p.Stop = fptr(120)
	price, reason, hit = CheckExit(p, bar(95, 96, 89, 91))
	assert.True(t, hit)
	assert.Equal(t, portfolio.ExitTakeProfit, reason)
	assert.Equal(t, 90.0, price)
}

func TestCheckExitNoTrigger(t *testing.T) {
	p := longPos(fptr(95), fptr(112.5))

	_, _, hit := CheckExit(p, bar(100, 102, 98, 101))
	assert.False(t, hit)

	_, _, hit = CheckExit(nil, bar(100, 102, 98, 101))
	assert.False(t, hit)
}

func TestTrailStopRatchetsLong(t *testing.T) {
	p := longPos(fptr(95), nil)
	p.TrailingDistance = fptr(3)

	assert.True(t, TrailStop(p, 104))
	assert.Equal(t, 101.0, *p.Stop)

	// A lower close never loosens the stop.
	assert.False(t, TrailStop(p, 100))
	assert.Equal(t, 101.0, *p.Stop)

	assert.True(t, TrailStop(p, 110))
	assert.Equal(t, 107.0, *p.Stop)
}

func TestTrailStopRatchetsShort(t *testing.T) {
	p := &portfolio.Position{
		Side:             portfolio.Short,
		EntryPrice:       100,
		Quantity:         5,
		Stop:             fptr(105),
		TrailingDistance: fptr(3),
		Status:           portfolio.Open,
	}

	assert.True(t, TrailStop(p, 96))
	assert.Equal(t, 99.0, *p.Stop)

	assert.False(t, TrailStop(p, 98))
	assert.Equal(t, 99.0, *p.Stop)
}

func TestTrailStopSetsMissingStop(t *testing.T) {
	p := longPos(nil, nil)
	p.TrailingDistance = fptr(2)

	assert.True(t, TrailStop(p, 100))
	assert.Equal(t, 98.0, *p.Stop)
}

func TestTrailStopNoDistance(t *testing.T) {
	p := longPos(fptr(95), nil)
	assert.False(t, TrailStop(p, 200))
	assert.Equal(t, 95.0, *p.Stop)
}
