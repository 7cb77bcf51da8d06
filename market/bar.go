package market

import (
	"fmt"
	"time"
)

// Timeframe is the fixed interval of one bar stream (e.g. 5m, 10m, 1h).
type Timeframe time.Duration

func (tf Timeframe) Duration() time.Duration { return time.Duration(tf) }

// Minutes returns the interval length in minutes.
func (tf Timeframe) Minutes() float64 {
	return time.Duration(tf).Minutes()
}

func (tf Timeframe) String() string {
	d := time.Duration(tf)
	if d >= time.Hour && d%time.Hour == 0 {
		return fmt.Sprintf("%dh", int(d.Hours()))
	}
	return fmt.Sprintf("%dm", int(d.Minutes()))
}

// ParseTimeframe accepts Go duration syntax ("5m", "1h", "90s").
func ParseTimeframe(s string) (Timeframe, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("parse timeframe %q: %w", s, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("parse timeframe %q: must be positive", s)
	}
	return Timeframe(d), nil
}

// Bar is one OHLCV observation for an (instrument, timeframe) stream.
// Immutable once produced.
type Bar struct {
	Instrument string
	Timeframe  Timeframe
	Time       time.Time
	Open       float64
	High       float64
	Low        float64
	Close      float64
	Volume     float64
}

// Stream identifies the (instrument, timeframe) series a bar belongs to.
type Stream struct {
	Instrument string
	Timeframe  Timeframe
}

func (b Bar) Stream() Stream {
	return Stream{Instrument: b.Instrument, Timeframe: b.Timeframe}
}

func (s Stream) String() string {
	return s.Instrument + "/" + s.Timeframe.String()
}
