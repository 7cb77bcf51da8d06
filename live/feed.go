// Package live runs the decision cycle against a streaming bar feed. The
// cycle itself is shared with replay; this package only supplies the feed,
// the event loop and the operator controls.
package live

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/quantfold/tradebot/market"
)

// barMessage is the wire format of one completed bar.
type barMessage struct {
	Instrument string  `json:"instrument"`
	Timeframe  string  `json:"timeframe"`
	Time       string  `json:"time"`
	Open       float64 `json:"open"`
	High       float64 `json:"high"`
	Low        float64 `json:"low"`
	Close      float64 `json:"close"`
	Volume     float64 `json:"volume"`
}

// WSFeed streams bars from a websocket endpoint, reconnecting with backoff
// until the context ends.
type WSFeed struct {
	URL       string
	Reconnect time.Duration // delay between reconnect attempts, default 5s
}

// Stream delivers parsed bars on the returned channel. Malformed messages
// are logged and dropped; the channel closes when ctx is done.
func (f *WSFeed) Stream(ctx context.Context) <-chan market.Bar {
	delay := f.Reconnect
	if delay <= 0 {
		delay = 5 * time.Second
	}
	out := make(chan market.Bar, 64)

	go func() {
		defer close(out)
		for {
			if err := f.readLoop(ctx, out); err != nil {
				log.Warn().Str("url", f.URL).Err(err).Msg("feed disconnected")
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
		}
	}()
	return out
}

func (f *WSFeed) readLoop(ctx context.Context, out chan<- market.Bar) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, f.URL, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	log.Info().Str("url", f.URL).Msg("feed connected")
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		b, err := parseBar(data)
		if err != nil {
			log.Warn().Err(err).Msg("bad bar message dropped")
			continue
		}
		select {
		case out <- b:
		case <-ctx.Done():
			return nil
		}
	}
}

func parseBar(data []byte) (market.Bar, error) {
	var m barMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return market.Bar{}, err
	}
	tf, err := market.ParseTimeframe(m.Timeframe)
	if err != nil {
		return market.Bar{}, err
	}
	t, err := time.Parse(time.RFC3339, m.Time)
	if err != nil {
		return market.Bar{}, err
	}
	return market.Bar{
		Instrument: m.Instrument,
		Timeframe:  tf,
		Time:       t,
		Open:       m.Open,
		High:       m.High,
		Low:        m.Low,
		Close:      m.Close,
		Volume:     m.Volume,
	}, nil
}
