package engine

import (
	"sync"
)

// call is one Proxy request waiting for the Loop goroutine.
type call struct {
	fn   func()
	done chan struct{}
	// dropped is set when the loop shut down before running fn.
	dropped bool
}

// callQueue is a thread-safe FIFO of pending calls.
//
// The queue is unbounded: callers block on their own done channel, not on
// the queue, so a slow call never stalls enqueuing.
//
// The queue uses a channel for signaling to enable context-aware waiting
// in the Run loop.
type callQueue struct {
	mu     sync.Mutex
	calls  []*call
	closed bool
	signal chan struct{} // buffered, size 1
}

func newCallQueue() *callQueue {
	return &callQueue{
		calls:  make([]*call, 0, 16),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue adds a call to the back of the queue.
// Returns false if the queue is closed.
func (q *callQueue) Enqueue(c *call) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.calls = append(q.calls, c)

	// Non-blocking: the buffer of 1 coalesces signals.
	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// TryDequeue removes the front call without blocking.
func (q *callQueue) TryDequeue() (*call, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.calls) == 0 {
		return nil, false
	}
	c := q.calls[0]
	// Nil the slot so the closure can be collected.
	q.calls[0] = nil
	if len(q.calls) == 1 {
		q.calls = q.calls[:0]
	} else {
		q.calls = q.calls[1:]
	}
	return c, true
}

// Wait returns a channel that signals when calls may be available. It is
// closed when the queue closes.
func (q *callQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *callQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.calls)
}

// Close stops accepting calls and wakes any waiter. Calls already queued
// stay queued.
func (q *callQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}

// Drain closes the queue and removes every pending call.
func (q *callQueue) Drain() []*call {
	q.Close()

	q.mu.Lock()
	defer q.mu.Unlock()
	pending := q.calls
	q.calls = nil
	return pending
}
