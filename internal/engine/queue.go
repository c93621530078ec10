package engine

import (
	"sync"

	"github.com/roach88/fincollect/internal/scheduler"
)

// request is one scheduler input waiting to be processed.
type request struct {
	input scheduler.Input

	// reply receives the result; nil for ticker inputs. Buffered (size 1)
	// so the loop never blocks on a caller that went away.
	reply chan Result

	// cancelled is the caller's ctx.Done(); nil for ticker inputs.
	cancelled <-chan struct{}
}

// callerGone reports whether the submitting caller stopped waiting.
func (r request) callerGone() bool {
	select {
	case <-r.cancelled:
		return true
	default:
		return false
	}
}

// requestQueue is a thread-safe FIFO queue for requests.
//
// The queue is unbounded so producers (ticker, operator calls) never block
// on the loop.
//
// The queue uses a channel for signaling to enable context-aware waiting
// in the Run loop (prevents goroutine hangs on context cancellation).
type requestQueue struct {
	mu       sync.Mutex
	requests []request
	closed   bool
	signal   chan struct{} // Signals request availability (buffered, size 1)
}

// newRequestQueue creates an empty request queue.
func newRequestQueue() *requestQueue {
	return &requestQueue{
		requests: make([]request, 0, 16),
		signal:   make(chan struct{}, 1),
	}
}

// Enqueue adds a request to the back of the queue.
// Thread-safe: may be called from any goroutine.
// Returns false if the queue is closed.
func (q *requestQueue) Enqueue(r request) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.requests = append(q.requests, r)

	// Non-blocking - buffer of 1 coalesces multiple signals
	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// TryDequeue attempts to dequeue without blocking.
// Returns (request{}, false) if queue is empty.
func (q *requestQueue) TryDequeue() (request, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.requests) == 0 {
		return request{}, false
	}

	r := q.requests[0]

	// Drop the slot's references so the backing array does not pin them.
	q.requests[0] = request{}

	if len(q.requests) == 1 {
		q.requests = q.requests[:0]
	} else {
		q.requests = q.requests[1:]
	}

	return r, true
}

// Wait returns a channel that signals when requests may be available.
// Use with select for context-aware waiting:
//
//	select {
//	case <-ctx.Done():
//	    return ctx.Err()
//	case <-q.Wait():
//	    // Try TryDequeue
//	}
func (q *requestQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *requestQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.requests)
}

// Close signals that no more requests will be enqueued.
// Wakes any blocked waiters by closing the signal channel.
func (q *requestQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.signal)
}

// Closed reports whether Close has been called.
func (q *requestQueue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Drain removes and returns everything still queued.
func (q *requestQueue) Drain() []request {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := q.requests
	q.requests = nil
	return out
}
