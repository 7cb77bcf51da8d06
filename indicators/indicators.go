// Package indicators computes named numeric fields from a bar history.
// Pure with respect to engine state: trackers consume closed bars and expose
// a read-only Fields snapshot per bar.
package indicators

import "github.com/quantfold/tradebot/market"

// Indicator computes a single streaming value from closed bars. Deterministic
// and safe to use in replay and live alike.
type Indicator interface {
	// Name returns a stable identifier like "EMA(20)" or "RSI(14)".
	Name() string

	// Warmup returns how many bars are needed before Ready() can be true.
	Warmup() int

	// Reset clears all internal state.
	Reset()

	// Update consumes the next closed bar.
	Update(b market.Bar)

	// Ready reports whether Value() is meaningful.
	Ready() bool

	// Value returns the current value; callers must check Ready() first.
	Value() float64
}

// Fields is the named numeric snapshot handed to strategies and the arbiter.
type Fields map[string]float64

// Well-known field names consumed by the arbiter.
const (
	FieldTrend    = "adx" // trend-strength reading
	FieldMomentum = "rsi" // momentum-extremity reading
)

// Get returns the field value and whether it is present.
func (f Fields) Get(name string) (float64, bool) {
	v, ok := f[name]
	return v, ok
}
