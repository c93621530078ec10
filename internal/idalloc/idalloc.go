// Package idalloc hands out process-unique 64-bit ids in blocks reserved
// from durable storage.
//
// Ids are strictly increasing for the lifetime of an Allocator. Across
// restarts the unused tail of a block is abandoned; storage never returns
// the same block twice, so ids are never reissued.
package idalloc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

// DefaultBlockSize is the granularity of durable reservations.
const DefaultBlockSize = 65536

// ErrInvalidCount is returned when zero ids are requested.
var ErrInvalidCount = errors.New("idalloc: count must be greater than zero")

// BlockReserver reserves a contiguous range of size ids in durable storage
// and returns the first id of the range. Implementations must never return
// overlapping ranges.
type BlockReserver interface {
	ReserveIdBlock(ctx context.Context, size uint64) (uint64, error)
}

// block is an immutable reservation [next, end) whose cursor advances
// atomically.
type block struct {
	next atomic.Uint64
	end  uint64
}

// Allocator serves ids from the current block without locking and refills
// under a mutex when the block is exhausted.
//
// Thread-safety: all methods are safe for concurrent use.
type Allocator struct {
	reserver  BlockReserver
	blockSize uint64
	cur       atomic.Pointer[block]
	refillMu  sync.Mutex
	logger    *slog.Logger
}

// Option configures an Allocator.
type Option func(*Allocator)

// WithBlockSize overrides DefaultBlockSize. Zero is ignored.
func WithBlockSize(size uint64) Option {
	return func(a *Allocator) {
		if size > 0 {
			a.blockSize = size
		}
	}
}

// WithLogger sets the logger used for refill events.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Allocator) {
		a.logger = logger
	}
}

// New creates an Allocator. No storage call is made until the first id is
// requested.
func New(reserver BlockReserver, opts ...Option) *Allocator {
	a := &Allocator{
		reserver:  reserver,
		blockSize: DefaultBlockSize,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.cur.Store(&block{})
	return a
}

// NextId returns a single id.
func (a *Allocator) NextId(ctx context.Context) (uint64, error) {
	return a.NextIdRange(ctx, 1)
}

// NextIdRange reserves count contiguous ids and returns the first one.
// On a storage failure no ids are handed out and the caller may retry.
func (a *Allocator) NextIdRange(ctx context.Context, count uint32) (uint64, error) {
	if count == 0 {
		return 0, ErrInvalidCount
	}
	n := uint64(count)

	for {
		if first, ok := a.tryTake(n); ok {
			return first, nil
		}
		if err := a.refill(ctx, n); err != nil {
			return 0, err
		}
	}
}

// tryTake is the lock-free fast path: a CAS loop on the current block.
func (a *Allocator) tryTake(n uint64) (uint64, bool) {
	b := a.cur.Load()
	for {
		next := b.next.Load()
		if next == 0 || b.end-next < n || next > b.end {
			return 0, false
		}
		if b.next.CompareAndSwap(next, next+n) {
			return next, true
		}
	}
}

// refill installs a new block large enough for n ids. Callers that queued on
// the mutex while another goroutine refilled find room on the re-check and
// return without touching storage.
func (a *Allocator) refill(ctx context.Context, n uint64) error {
	a.refillMu.Lock()
	defer a.refillMu.Unlock()

	b := a.cur.Load()
	if next := b.next.Load(); next != 0 && next <= b.end && b.end-next >= n {
		return nil
	}

	size := roundUp(n, a.blockSize)
	first, err := a.reserver.ReserveIdBlock(ctx, size)
	if err != nil {
		return fmt.Errorf("reserve id block of %d: %w", size, err)
	}
	if first == 0 {
		return fmt.Errorf("reserve id block of %d: storage returned id 0", size)
	}

	// Close the old block so a concurrent fast path cannot hand out an id
	// lower than the ones the new block will serve.
	closeBlock(b)

	nb := &block{end: first + size}
	nb.next.Store(first)
	a.cur.Store(nb)

	a.logger.Debug("id block reserved", "first", first, "size", size)
	return nil
}

func closeBlock(b *block) {
	for {
		next := b.next.Load()
		if next >= b.end {
			return
		}
		if b.next.CompareAndSwap(next, b.end) {
			return
		}
	}
}

func roundUp(n, multiple uint64) uint64 {
	if n%multiple == 0 {
		return n
	}
	return (n/multiple + 1) * multiple
}
