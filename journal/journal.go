// Package journal is the persistence boundary: closed-trade records and
// periodic equity snapshots for downstream metrics computation. It does not
// compute performance statistics itself.
package journal

import "time"

type TradeRecord struct {
	TradeID    string
	Instrument string
	Side       string // "long" or "short"
	Quantity   int
	EntryPrice float64
	ExitPrice  float64
	EntryTime  time.Time
	ExitTime   time.Time
	Commission float64
	RealizedPL float64
	Reason     string
}

type EquitySnapshot struct {
	Time     time.Time
	Cash     float64
	Equity   float64
	Exposure float64
}

type Journal interface {
	RecordTrade(TradeRecord) error
	RecordEquity(EquitySnapshot) error
	Close() error
}

// Discard drops everything. Useful when a driver runs without persistence.
type Discard struct{}

func (Discard) RecordTrade(TradeRecord) error     { return nil }
func (Discard) RecordEquity(EquitySnapshot) error { return nil }
func (Discard) Close() error                      { return nil }
