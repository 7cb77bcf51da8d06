package risk

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SessionHours defines the configured trading window for gate check #11 and
// the engine's end-of-session forced exit. Weekends are always closed.
type SessionHours struct {
	Open     time.Duration // offset from local midnight, e.g. 9h30m
	Close    time.Duration // e.g. 16h
	Location *time.Location
}

// ParseSessionHours reads "HH:MM" open/close values in the named timezone.
func ParseSessionHours(open, close, tz string) (SessionHours, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return SessionHours{}, fmt.Errorf("session timezone %q: %w", tz, err)
	}
	o, err := parseClock(open)
	if err != nil {
		return SessionHours{}, fmt.Errorf("session open: %w", err)
	}
	c, err := parseClock(close)
	if err != nil {
		return SessionHours{}, fmt.Errorf("session close: %w", err)
	}
	if c <= o {
		return SessionHours{}, fmt.Errorf("session close %s must be after open %s", close, open)
	}
	return SessionHours{Open: o, Close: c, Location: loc}, nil
}

func parseClock(s string) (time.Duration, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("want HH:MM, got %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("bad hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("bad minute in %q", s)
	}
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute, nil
}

func (s SessionHours) local(t time.Time) time.Time {
	if s.Location != nil {
		return t.In(s.Location)
	}
	return t
}

func (s SessionHours) sinceMidnight(t time.Time) time.Duration {
	lt := s.local(t)
	return time.Duration(lt.Hour())*time.Hour +
		time.Duration(lt.Minute())*time.Minute +
		time.Duration(lt.Second())*time.Second
}

// Contains reports whether t falls inside the trading session.
func (s SessionHours) Contains(t time.Time) bool {
	lt := s.local(t)
	if wd := lt.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return false
	}
	tod := s.sinceMidnight(t)
	return tod >= s.Open && tod <= s.Close
}

// AtOrAfterClose reports whether t has reached the session-end timestamp.
// Weekends count as after close.
func (s SessionHours) AtOrAfterClose(t time.Time) bool {
	lt := s.local(t)
	if wd := lt.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return true
	}
	return s.sinceMidnight(t) >= s.Close
}

// Date returns the session date of t in the session timezone, used for the
// daily rollover of loss counters and pauses.
func (s SessionHours) Date(t time.Time) time.Time {
	lt := s.local(t)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, lt.Location())
}
