package indicators

import "github.com/quantfold/tradebot/market"

// Tracker bundles one stream's indicators and snapshots them as Fields.
// One tracker per (instrument, timeframe); only ready indicators appear in
// the snapshot, so consumers must tolerate missing fields during warmup.
type Tracker struct {
	fast *EMA
	slow *EMA
	rsi  *RSI
	adx  *ADX
	atr  *ATR
}

// TrackerConfig carries indicator periods. Zero values take the defaults
// below, matching the periods the reference strategies expect.
type TrackerConfig struct {
	FastEMA int
	SlowEMA int
	RSI     int
	ADX     int
	ATR     int
}

func NewTracker(cfg TrackerConfig) *Tracker {
	if cfg.FastEMA <= 0 {
		cfg.FastEMA = 9
	}
	if cfg.SlowEMA <= 0 {
		cfg.SlowEMA = 21
	}
	if cfg.RSI <= 0 {
		cfg.RSI = 14
	}
	if cfg.ADX <= 0 {
		cfg.ADX = 14
	}
	if cfg.ATR <= 0 {
		cfg.ATR = 10
	}
	return &Tracker{
		fast: NewEMA(cfg.FastEMA),
		slow: NewEMA(cfg.SlowEMA),
		rsi:  NewRSI(cfg.RSI),
		adx:  NewADX(cfg.ADX),
		atr:  NewATR(cfg.ATR),
	}
}

func (t *Tracker) Update(b market.Bar) {
	t.fast.Update(b)
	t.slow.Update(b)
	t.rsi.Update(b)
	t.adx.Update(b)
	t.atr.Update(b)
}

func (t *Tracker) Reset() {
	t.fast.Reset()
	t.slow.Reset()
	t.rsi.Reset()
	t.adx.Reset()
	t.atr.Reset()
}

// Fields returns the current snapshot. Missing keys mean "not warmed up yet".
func (t *Tracker) Fields() Fields {
	f := make(Fields, 5)
	if t.fast.Ready() {
		f["ema_fast"] = t.fast.Value()
	}
	if t.slow.Ready() {
		f["ema_slow"] = t.slow.Value()
	}
	if t.rsi.Ready() {
		f[FieldMomentum] = t.rsi.Value()
	}
	if t.adx.Ready() {
		f[FieldTrend] = t.adx.Value()
	}
	if t.atr.Ready() {
		f["atr"] = t.atr.Value()
	}
	return f
}
