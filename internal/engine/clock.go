package engine

import (
	"sync/atomic"
	"time"
)

// WallClock supplies the current time to the scheduler. Every input is
// stamped with it when enqueued.
type WallClock interface {
	Now() time.Time
}

// SystemClock is the production WallClock.
type SystemClock struct{}

// Now returns the current UTC time.
func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// Sequence numbers processed requests. Each request gets a strictly
// increasing value, logged with its intents so a cycle can be followed
// across log lines.
//
// Thread-safety: Sequence is safe for concurrent use (atomic operations).
// In practice only the Run goroutine calls Next().
type Sequence struct {
	seq atomic.Int64
}

// Next returns the next sequence number.
func (s *Sequence) Next() int64 {
	return s.seq.Add(1)
}

// Current returns the last number handed out, 0 before the first.
func (s *Sequence) Current() int64 {
	return s.seq.Load()
}
