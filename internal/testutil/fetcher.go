package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/roach88/fincollect/internal/model"
)

// ScriptedFetcher serves canned directory listings and financials.
//
// Each call pops the next scripted response for its endpoint; when a script
// runs dry the last response is repeated. An endpoint with nothing scripted
// returns an error. Calls are recorded for assertions.
//
// Thread-safety: all methods are safe for concurrent use.
type ScriptedFetcher struct {
	mu          sync.Mutex
	directories []scripted[model.DirectorySnapshot]
	financials  map[model.InstrumentKey][]scripted[model.InstrumentFinancials]

	directoryCalls  int
	instrumentCalls []model.InstrumentKey
}

type scripted[T any] struct {
	value T
	err   error
}

// NewScriptedFetcher creates a fetcher with nothing scripted.
func NewScriptedFetcher() *ScriptedFetcher {
	return &ScriptedFetcher{
		financials: make(map[model.InstrumentKey][]scripted[model.InstrumentFinancials]),
	}
}

// QueueDirectory appends a directory listing built from instruments.
func (f *ScriptedFetcher) QueueDirectory(instruments ...model.Instrument) *ScriptedFetcher {
	snapshot := make(model.DirectorySnapshot)
	for _, i := range instruments {
		snapshot.Add(i)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.directories = append(f.directories, scripted[model.DirectorySnapshot]{value: snapshot})
	return f
}

// QueueDirectoryError appends a failing directory fetch.
func (f *ScriptedFetcher) QueueDirectoryError(err error) *ScriptedFetcher {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.directories = append(f.directories, scripted[model.DirectorySnapshot]{err: err})
	return f
}

// QueueFinancials appends a financials response for key.
func (f *ScriptedFetcher) QueueFinancials(key model.InstrumentKey, fin model.InstrumentFinancials) *ScriptedFetcher {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.financials[key] = append(f.financials[key], scripted[model.InstrumentFinancials]{value: fin})
	return f
}

// QueueFinancialsError appends a failing financials fetch for key.
func (f *ScriptedFetcher) QueueFinancialsError(key model.InstrumentKey, err error) *ScriptedFetcher {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.financials[key] = append(f.financials[key], scripted[model.InstrumentFinancials]{err: err})
	return f
}

// FetchDirectory implements fetcher.Fetcher.
func (f *ScriptedFetcher) FetchDirectory(ctx context.Context) (model.DirectorySnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.directoryCalls++

	if len(f.directories) == 0 {
		return nil, fmt.Errorf("scripted fetcher: no directory scripted")
	}
	next := pop(&f.directories)
	return next.value, next.err
}

// FetchInstrumentData implements fetcher.Fetcher.
func (f *ScriptedFetcher) FetchInstrumentData(ctx context.Context, key model.InstrumentKey) (model.InstrumentFinancials, error) {
	if err := ctx.Err(); err != nil {
		return model.InstrumentFinancials{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.instrumentCalls = append(f.instrumentCalls, key)

	script := f.financials[key]
	if len(script) == 0 {
		return model.InstrumentFinancials{}, fmt.Errorf("scripted fetcher: no financials scripted for %s", key)
	}
	next := pop(&script)
	f.financials[key] = script
	return next.value, next.err
}

// DirectoryCalls returns how many directory fetches were made.
func (f *ScriptedFetcher) DirectoryCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.directoryCalls
}

// InstrumentCalls returns the keys fetched, in call order.
func (f *ScriptedFetcher) InstrumentCalls() []model.InstrumentKey {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.InstrumentKey(nil), f.instrumentCalls...)
}

// pop removes and returns the head of a script, keeping the last entry.
func pop[T any](script *[]scripted[T]) scripted[T] {
	s := *script
	head := s[0]
	if len(s) > 1 {
		*script = s[1:]
	}
	return head
}
