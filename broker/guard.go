package broker

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
)

// Guard wraps a Broker with a circuit breaker. While the breaker is open,
// or while the broker flags the account, Guard reports trading as blocked,
// which the risk gate turns into a pause.
type Guard struct {
	broker  Broker
	cb      *gobreaker.CircuitBreaker
	blocked bool // last account-level flag seen
}

func NewGuard(b Broker) *Guard {
	settings := gobreaker.Settings{
		Name:        "broker",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).Msg("broker breaker state change")
		},
	}
	return &Guard{broker: b, cb: gobreaker.NewCircuitBreaker(settings)}
}

// TradingBlocked satisfies risk.BrokerStatus.
func (g *Guard) TradingBlocked() bool {
	return g.blocked || g.cb.State() == gobreaker.StateOpen
}

func (g *Guard) Account(ctx context.Context) (Account, error) {
	v, err := g.cb.Execute(func() (interface{}, error) {
		return g.broker.Account(ctx)
	})
	if err != nil {
		return Account{}, err
	}
	acct := v.(Account)
	g.blocked = acct.TradingBlocked
	return acct, nil
}

func (g *Guard) PlaceOrder(ctx context.Context, req OrderRequest) (Fill, error) {
	v, err := g.cb.Execute(func() (interface{}, error) {
		return g.broker.PlaceOrder(ctx, req)
	})
	if err != nil {
		return Fill{}, err
	}
	return v.(Fill), nil
}
