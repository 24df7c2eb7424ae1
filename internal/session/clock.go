package session

import "time"

// Clock tracks the exam countdown against an absolute end instant. Remaining
// time is recomputed from the wall clock on every tick, never accumulated
// from tick counts, so a suspended runtime or a clock jump cannot drift it.
// The expiry edge is latched: it reports true exactly once.
type Clock struct {
	end           time.Time
	start         time.Time // zero when unknown
	firstObserved time.Time
	expired       bool
	onExpired     func()
}

// NewClock builds a countdown toward end. start may be zero; progress then
// uses a synthetic window from the first observation. onExpired may be nil.
func NewClock(end, start, now time.Time, onExpired func()) *Clock {
	return &Clock{
		end:           end,
		start:         start,
		firstObserved: now,
		onExpired:     onExpired,
	}
}

// Remaining is max(0, end - now).
func (c *Clock) Remaining(now time.Time) time.Duration {
	r := c.end.Sub(now)
	if r < 0 {
		return 0
	}
	return r
}

// Tick recomputes remaining time and reports the expiry edge. The edge is
// true on the first tick at or past the end instant and never again, even if
// the handler is re-entered after expiry.
func (c *Clock) Tick(now time.Time) (remaining time.Duration, edge bool) {
	remaining = c.Remaining(now)
	if remaining > 0 || c.expired {
		return remaining, false
	}
	c.expired = true
	if c.onExpired != nil {
		c.onExpired()
	}
	return 0, true
}

func (c *Clock) Expired() bool {
	return c.expired
}

// Progress is the fraction of the exam window still remaining, in [0, 1].
func (c *Clock) Progress(now time.Time) float64 {
	origin := c.start
	if origin.IsZero() {
		origin = c.firstObserved
	}
	total := c.end.Sub(origin)
	if total <= 0 {
		return 0
	}
	p := float64(c.Remaining(now)) / float64(total)
	if p > 1 {
		return 1
	}
	return p
}
