package market

import (
	"errors"
	"fmt"
	"time"
)

// ErrOutOfOrder reports a bar whose timestamp does not advance its stream.
// Callers skip the affected instrument's cycle and continue; other streams
// are unaffected.
var ErrOutOfOrder = errors.New("bar out of order")

// IsOutOfOrder reports whether err is an out-of-order bar rejection.
func IsOutOfOrder(err error) bool { return errors.Is(err, ErrOutOfOrder) }

// Clock tracks the last observed timestamp per stream so drivers can reject
// duplicate or backward bars before they reach shared state.
type Clock struct {
	last map[Stream]time.Time
}

func NewClock() *Clock {
	return &Clock{last: make(map[Stream]time.Time)}
}

// Observe records b's timestamp. A bar at or before the previous bar of the
// same stream returns ErrOutOfOrder and leaves the clock unchanged.
func (c *Clock) Observe(b Bar) error {
	s := b.Stream()
	if prev, ok := c.last[s]; ok && !b.Time.After(prev) {
		return fmt.Errorf("%s: bar at %s not after %s: %w",
			s, b.Time.Format(time.RFC3339), prev.Format(time.RFC3339), ErrOutOfOrder)
	}
	c.last[s] = b.Time
	return nil
}
