// Package backtest replays recorded bars through the decision cycle. A
// replay over the same dataset and configuration produces the same trades
// every time.
package backtest

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/quantfold/tradebot/market"
)

// BarFeed yields bars one at a time. Implementations must be deterministic
// and return (ok=false, err=nil) at EOF.
type BarFeed interface {
	Next() (b market.Bar, ok bool, err error)
	Close() error
}

// CSVFeed reads bars for one instrument and timeframe from a CSV file with
// a header row and columns: time,open,high,low,close,volume. Times are
// RFC3339.
type CSVFeed struct {
	instrument string
	timeframe  market.Timeframe
	f          *os.File
	r          *csv.Reader
	line       int
}

func OpenCSVFeed(path, instrument string, tf market.Timeframe) (*CSVFeed, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open feed: %w", err)
	}
	r := csv.NewReader(f)
	r.FieldsPerRecord = 6
	if _, err := r.Read(); err != nil { // header
		f.Close()
		return nil, fmt.Errorf("read feed header: %w", err)
	}
	return &CSVFeed{instrument: instrument, timeframe: tf, f: f, r: r, line: 1}, nil
}

func (c *CSVFeed) Next() (market.Bar, bool, error) {
	rec, err := c.r.Read()
	if err == io.EOF {
		return market.Bar{}, false, nil
	}
	if err != nil {
		return market.Bar{}, false, err
	}
	c.line++

	t, err := time.Parse(time.RFC3339, rec[0])
	if err != nil {
		return market.Bar{}, false, fmt.Errorf("line %d: bad time %q: %w", c.line, rec[0], err)
	}
	vals := make([]float64, 5)
	for i, s := range rec[1:] {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return market.Bar{}, false, fmt.Errorf("line %d: bad number %q: %w", c.line, s, err)
		}
		vals[i] = v
	}
	return market.Bar{
		Instrument: c.instrument,
		Timeframe:  c.timeframe,
		Time:       t,
		Open:       vals[0],
		High:       vals[1],
		Low:        vals[2],
		Close:      vals[3],
		Volume:     vals[4],
	}, true, nil
}

func (c *CSVFeed) Close() error { return c.f.Close() }

// SliceFeed yields a fixed slice of bars, mostly for tests.
type SliceFeed struct {
	bars []market.Bar
	i    int
}

func NewSliceFeed(bars []market.Bar) *SliceFeed { return &SliceFeed{bars: bars} }

func (s *SliceFeed) Next() (market.Bar, bool, error) {
	if s.i >= len(s.bars) {
		return market.Bar{}, false, nil
	}
	b := s.bars[s.i]
	s.i++
	return b, true, nil
}

func (s *SliceFeed) Close() error { return nil }

// mergeFeed interleaves several feeds into one chronological stream.
// Equal timestamps resolve by feed position, so the merge order is stable
// and replays are reproducible regardless of map iteration or scheduling.
type mergeFeed struct {
	feeds []BarFeed
	heads []*market.Bar
}

// Merge combines feeds into one time-ordered feed. Each input feed must be
// internally ordered.
func Merge(feeds ...BarFeed) BarFeed {
	if len(feeds) == 1 {
		return feeds[0]
	}
	return &mergeFeed{feeds: feeds, heads: make([]*market.Bar, len(feeds))}
}

func (m *mergeFeed) Next() (market.Bar, bool, error) {
	best := -1
	for i, f := range m.feeds {
		if m.heads[i] == nil && f != nil {
			b, ok, err := f.Next()
			if err != nil {
				return market.Bar{}, false, err
			}
			if !ok {
				m.feeds[i] = nil
				continue
			}
			m.heads[i] = &b
		}
		if m.heads[i] == nil {
			continue
		}
		if best < 0 || m.heads[i].Time.Before(m.heads[best].Time) {
			best = i
		}
	}
	if best < 0 {
		return market.Bar{}, false, nil
	}
	b := *m.heads[best]
	m.heads[best] = nil
	return b, true, nil
}

func (m *mergeFeed) Close() error {
	var first error
	for _, f := range m.feeds {
		if f == nil {
			continue
		}
		if err := f.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
