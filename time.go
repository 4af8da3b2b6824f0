package sprender

import "time"

type Clock struct {
	Time time.Time
	Dt   time.Duration
	now  func() time.Time
}

func NewClock() *Clock {
	return newClockWith(time.Now)
}

func newClockWith(now func() time.Time) *Clock {
	return &Clock{Time: now(), now: now}
}

func (c *Clock) Tick() {
	now := c.now()
	c.Dt = now.Sub(c.Time)
	c.Time = now
}

// Seconds is the last frame delta in seconds.
func (c *Clock) Seconds() float32 {
	return float32(c.Dt.Seconds())
}
