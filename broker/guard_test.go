package broker

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfold/tradebot/portfolio"
)

type flakyBroker struct {
	fail    bool
	account Account
}

func (f *flakyBroker) Account(ctx context.Context) (Account, error) {
	if f.fail {
		return Account{}, errors.New("connection refused")
	}
	return f.account, nil
}

func (f *flakyBroker) PlaceOrder(ctx context.Context, req OrderRequest) (Fill, error) {
	if f.fail {
		return Fill{}, errors.New("connection refused")
	}
	return Fill{OrderID: "o1", Instrument: req.Instrument, Quantity: req.Quantity, Price: 100}, nil
}

func TestGuardOpensAfterConsecutiveFailures(t *testing.T) {
	b := &flakyBroker{fail: true}
	g := NewGuard(b)
	ctx := context.Background()

	assert.False(t, g.TradingBlocked())
	for i := 0; i < 3; i++ {
		_, err := g.Account(ctx)
		require.Error(t, err)
	}
	assert.True(t, g.TradingBlocked(), "breaker open after three failures")

	// While open, calls fail fast without reaching the broker.
	b.fail = false
	_, err := g.Account(ctx)
	assert.Error(t, err)
}

func TestGuardPassesResultsThrough(t *testing.T) {
	b := &flakyBroker{account: Account{ID: "acct", Equity: 50_000}}
	g := NewGuard(b)
	ctx := context.Background()

	acct, err := g.Account(ctx)
	require.NoError(t, err)
	assert.Equal(t, "acct", acct.ID)
	assert.False(t, g.TradingBlocked())

	fill, err := g.PlaceOrder(ctx, OrderRequest{Instrument: "AAPL", Side: portfolio.Long, Quantity: 10})
	require.NoError(t, err)
	assert.Equal(t, 10, fill.Quantity)
}

func TestGuardHonorsAccountFlag(t *testing.T) {
	b := &flakyBroker{account: Account{ID: "acct", TradingBlocked: true}}
	g := NewGuard(b)

	_, err := g.Account(context.Background())
	require.NoError(t, err)
	assert.True(t, g.TradingBlocked(), "account flag blocks trading")
}

func TestPaperBroker(t *testing.T) {
	pf := portfolio.New(100_000, 1)
	p := NewPaper(pf)
	ctx := context.Background()

	acct, err := p.Account(ctx)
	require.NoError(t, err)
	assert.Equal(t, 100_000.0, acct.Cash)

	_, err = p.PlaceOrder(ctx, OrderRequest{Instrument: "AAPL", Quantity: 10})
	assert.Error(t, err, "no mark yet")

	pf.SetMark("AAPL", 101)
	fill, err := p.PlaceOrder(ctx, OrderRequest{Instrument: "AAPL", Side: portfolio.Long, Quantity: 10})
	require.NoError(t, err)
	assert.Equal(t, 101.0, fill.Price)
	assert.NotEmpty(t, fill.OrderID)
}
