package live

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfold/tradebot/market"
)

func TestParseBar(t *testing.T) {
	b, err := parseBar([]byte(`{
		"instrument": "AAPL", "timeframe": "5m",
		"time": "2026-03-02T14:00:00Z",
		"open": 100, "high": 101, "low": 99, "close": 100.5, "volume": 1200
	}`))
	require.NoError(t, err)
	assert.Equal(t, "AAPL", b.Instrument)
	assert.Equal(t, market.Timeframe(5*time.Minute), b.Timeframe)
	assert.Equal(t, 100.5, b.Close)
	assert.Equal(t, 1200.0, b.Volume)
}

func TestParseBarRejectsMalformed(t *testing.T) {
	_, err := parseBar([]byte(`not json`))
	assert.Error(t, err)

	_, err = parseBar([]byte(`{"instrument":"AAPL","timeframe":"soon","time":"2026-03-02T14:00:00Z"}`))
	assert.Error(t, err)

	_, err = parseBar([]byte(`{"instrument":"AAPL","timeframe":"5m","time":"yesterday"}`))
	assert.Error(t, err)
}

func TestWSFeedStreamsBars(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.WriteJSON(barMessage{
			Instrument: "AAPL", Timeframe: "5m",
			Time: "2026-03-02T14:00:00Z",
			Open: 100, High: 101, Low: 99, Close: 100.5, Volume: 10,
		})
		// Malformed payload: dropped, not fatal.
		conn.WriteMessage(websocket.TextMessage, []byte("garbage"))
		conn.WriteJSON(barMessage{
			Instrument: "AAPL", Timeframe: "5m",
			Time: "2026-03-02T14:05:00Z",
			Open: 100.5, High: 102, Low: 100, Close: 101.5, Volume: 12,
		})
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	feed := &WSFeed{URL: "ws" + strings.TrimPrefix(srv.URL, "http")}
	bars := feed.Stream(ctx)

	b1 := <-bars
	assert.Equal(t, 100.5, b1.Close)
	b2 := <-bars
	assert.Equal(t, 101.5, b2.Close)
	cancel()
}
