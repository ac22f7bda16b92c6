package engine

import "sync/atomic"

// Clock numbers the windows an engine processes. Window numbers start at 1
// and are never reused within an instance; they key deltas in the store
// together with the engine name.
//
// Safe for concurrent use, although only the goroutine holding the engine's
// critical section calls Next.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a clock whose first Next returns 1.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock resuming after start, e.g. to continue window
// numbering of a restarted engine from the store's last recorded window.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next advances the clock and returns the new window number.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last window number handed out (0 before the first).
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
