package broker

import (
	"context"
	"fmt"

	"github.com/quantfold/tradebot/internal/id"
	"github.com/quantfold/tradebot/portfolio"
)

// Paper is an in-process broker for live paper trading. Fills come back at
// the instrument's last mark; account state mirrors the portfolio.
type Paper struct {
	pf *portfolio.Portfolio
}

func NewPaper(pf *portfolio.Portfolio) *Paper {
	return &Paper{pf: pf}
}

func (p *Paper) Account(ctx context.Context) (Account, error) {
	return Account{
		ID:       "PAPER",
		Currency: "USD",
		Cash:     p.pf.Cash(),
		Equity:   p.pf.Equity(),
	}, nil
}

func (p *Paper) PlaceOrder(ctx context.Context, req OrderRequest) (Fill, error) {
	mark, ok := p.pf.Mark(req.Instrument)
	if !ok {
		return Fill{}, fmt.Errorf("paper: no mark for %s", req.Instrument)
	}
	return Fill{
		OrderID:    id.New(),
		Instrument: req.Instrument,
		Quantity:   req.Quantity,
		Price:      mark,
	}, nil
}
