package engine

import "sync/atomic"

// Clock is the logical clock stamping committed state changes.
//
// Every ChangeState that commits takes the next seq. Notifications carry it,
// and persisted snapshots are keyed by (engine id, seq), so the history of
// one engine is totally ordered without consulting wall-clock time.
//
// Thread-safety: Clock uses atomic operations, but an Engine is not safe for
// concurrent use, so in practice only one goroutine calls Next.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a clock at 0. The first committed change gets seq 1.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock positioned at start.
// Used to continue numbering after loading the latest persisted snapshot.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next advances the clock and returns the new seq.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last issued seq without advancing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
