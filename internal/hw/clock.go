package hw

import "time"

// TickClock is a deterministic clock advanced by the control loop once per
// tick. It is not safe for concurrent use.
type TickClock struct {
	period time.Duration
	now    time.Duration
	ticks  uint64
}

func NewTickClock(period time.Duration) *TickClock {
	return &TickClock{period: period}
}

func (c *TickClock) Now() time.Duration { return c.now }

func (c *TickClock) Period() time.Duration { return c.period }

func (c *TickClock) Ticks() uint64 { return c.ticks }

// Advance moves the clock forward by one period and returns the new time.
func (c *TickClock) Advance() time.Duration {
	c.now += c.period
	c.ticks++
	return c.now
}

// Set jumps the clock to t. Used by tests to model jitter or stalls.
func (c *TickClock) Set(t time.Duration) {
	c.now = t
}
