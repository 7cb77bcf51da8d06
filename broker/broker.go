// Package broker defines the live execution boundary. Replay never touches
// this package; the lifecycle engine fills its own orders. Live trading
// routes entries through a Broker and reports transport health back to the
// risk gate via the Guard.
package broker

import (
	"context"

	"github.com/quantfold/tradebot/portfolio"
)

// Broker is the minimal live execution surface.
type Broker interface {
	Account(ctx context.Context) (Account, error)
	PlaceOrder(ctx context.Context, req OrderRequest) (Fill, error)
}

// Account is the broker-side view of the trading account.
type Account struct {
	ID             string
	Currency       string
	Cash           float64
	Equity         float64
	TradingBlocked bool
}

// OrderRequest asks for a market fill with attached protective levels.
type OrderRequest struct {
	Instrument string
	Side       portfolio.Side
	Quantity   int
	Stop       *float64
	Target     *float64
}

// Fill reports the executed order.
type Fill struct {
	OrderID    string
	Instrument string
	Quantity   int
	Price      float64
}
