package engine

import "sync/atomic"

// Clock hands out object ids for one file.
//
// Ids are strictly increasing and never reused, including ids taken by a
// transaction that was later cancelled. Object order within a type follows
// id order.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations).
type Clock struct {
	last atomic.Int64
}

// NewClock creates a clock for a new file. Its first id is 1.
func NewClock() *Clock {
	return NewClockAt(0)
}

// NewClockAt resumes a persisted file whose highest id is last.
func NewClockAt(last int64) *Clock {
	c := &Clock{}
	c.last.Store(last)
	return c
}

// Next takes a fresh id.
func (c *Clock) Next() int64 {
	return c.last.Add(1)
}

// Current returns the highest id taken so far, 0 if none.
func (c *Clock) Current() int64 {
	return c.last.Load()
}
