package idalloc

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memReserver mimics the durable sequence: blocks are handed out back to
// back starting at 1.
type memReserver struct {
	mu    sync.Mutex
	last  uint64
	calls atomic.Int32
	sizes []uint64
	fail  error
	delay time.Duration
}

func (r *memReserver) ReserveIdBlock(ctx context.Context, size uint64) (uint64, error) {
	r.calls.Add(1)
	if r.delay > 0 {
		time.Sleep(r.delay)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return 0, r.fail
	}
	first := r.last + 1
	r.last += size
	r.sizes = append(r.sizes, size)
	return first, nil
}

func TestNextId_StrictlyIncreasing(t *testing.T) {
	r := &memReserver{}
	a := New(r, WithBlockSize(4))

	var prev uint64
	for i := 0; i < 20; i++ {
		id, err := a.NextId(context.Background())
		require.NoError(t, err)
		assert.Greater(t, id, prev)
		prev = id
	}
	assert.Equal(t, uint64(20), prev)
	assert.Equal(t, int32(5), r.calls.Load())
}

func TestNextIdRange_ZeroCount(t *testing.T) {
	a := New(&memReserver{})

	_, err := a.NextIdRange(context.Background(), 0)
	assert.ErrorIs(t, err, ErrInvalidCount)
}

func TestNextIdRange_RoundsReservationUpToBlockSize(t *testing.T) {
	r := &memReserver{}
	a := New(r, WithBlockSize(10))

	first, err := a.NextIdRange(context.Background(), 25)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), first)
	assert.Equal(t, []uint64{30}, r.sizes)

	// 5 ids remain in the block
	next, err := a.NextIdRange(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, uint64(26), next)
	assert.Equal(t, int32(1), r.calls.Load())
}

func TestNextIdRange_AbandonsTailWhenBlockTooSmall(t *testing.T) {
	r := &memReserver{}
	a := New(r, WithBlockSize(10))

	_, err := a.NextIdRange(context.Background(), 8)
	require.NoError(t, err)

	first, err := a.NextIdRange(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, uint64(11), first, "ids 9 and 10 are abandoned, never reissued")

	id, err := a.NextId(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(16), id)
}

func TestNextIdRange_DefaultBlockSize(t *testing.T) {
	r := &memReserver{}
	a := New(r)

	_, err := a.NextIdRange(context.Background(), DefaultBlockSize+1)
	require.NoError(t, err)
	assert.Equal(t, []uint64{2 * DefaultBlockSize}, r.sizes)
}

func TestNextIdRange_StorageFailureHandsOutNothing(t *testing.T) {
	boom := errors.New("disk full")
	r := &memReserver{fail: boom}
	a := New(r, WithBlockSize(4))

	_, err := a.NextId(context.Background())
	require.ErrorIs(t, err, boom)

	r.mu.Lock()
	r.fail = nil
	r.mu.Unlock()

	id, err := a.NextId(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(1), id)
}

func TestNextIdRange_ConcurrentCallersNeverOverlap(t *testing.T) {
	r := &memReserver{}
	a := New(r, WithBlockSize(16))

	const goroutines = 32
	const perGoroutine = 50

	type span struct{ first, count uint64 }
	results := make([][]span, goroutines)

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for g := 0; g < goroutines; g++ {
		go func(g int) {
			defer wg.Done()
			for i := 0; i < perGoroutine; i++ {
				count := uint32(i%3 + 1)
				first, err := a.NextIdRange(context.Background(), count)
				if !assert.NoError(t, err) {
					return
				}
				results[g] = append(results[g], span{first, uint64(count)})
			}
		}(g)
	}
	wg.Wait()

	var all []span
	for g := range results {
		// per caller, ids only go up
		for i := 1; i < len(results[g]); i++ {
			assert.Greater(t, results[g][i].first, results[g][i-1].first)
		}
		all = append(all, results[g]...)
	}

	sort.Slice(all, func(i, j int) bool { return all[i].first < all[j].first })
	for i := 1; i < len(all); i++ {
		prevEnd := all[i-1].first + all[i-1].count
		require.LessOrEqual(t, prevEnd, all[i].first, "ranges overlap at %d", all[i].first)
	}
}

func TestNextId_ThunderingHerdReservesOnce(t *testing.T) {
	r := &memReserver{delay: 20 * time.Millisecond}
	a := New(r)

	const goroutines = 50
	var wg sync.WaitGroup
	wg.Add(goroutines)
	ids := make([]uint64, goroutines)
	for g := 0; g < goroutines; g++ {
		go func(g int) {
			defer wg.Done()
			id, err := a.NextId(context.Background())
			assert.NoError(t, err)
			ids[g] = id
		}(g)
	}
	wg.Wait()

	assert.Equal(t, int32(1), r.calls.Load())
	seen := make(map[uint64]bool)
	for _, id := range ids {
		assert.False(t, seen[id], "duplicate id %d", id)
		seen[id] = true
	}
}
