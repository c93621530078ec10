// Package registry keeps the in-memory set of active instruments and the
// operator's priority queue of company symbols.
//
// The sorted instrument list and the priority queue are independent critical
// sections with their own mutexes; no method holds both locks at once.
// Round-robin traversal is stateless: callers pass the previous key and get
// its successor, so insertions and removals between calls are harmless.
package registry

import (
	"log/slog"
	"slices"
	"sort"
	"sync"

	"github.com/roach88/fincollect/internal/model"
)

// Registry is safe for concurrent use.
type Registry struct {
	mu          sync.Mutex
	instruments []model.Instrument // sorted by key, unique keys

	priorityMu sync.Mutex
	priority   []string

	logger *slog.Logger
}

// New creates an empty registry.
func New(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{logger: logger}
}

// InitializeDirectory bulk-loads the active set, replacing anything loaded
// before. Intended for startup only. Obsoleted instruments are skipped and
// duplicate keys keep their last occurrence.
func (r *Registry) InitializeDirectory(instruments []model.Instrument) {
	active := make([]model.Instrument, 0, len(instruments))
	for _, i := range instruments {
		if !i.IsObsolete() {
			active = append(active, i)
		}
	}
	slices.SortStableFunc(active, func(a, b model.Instrument) int {
		return a.Key().Compare(b.Key())
	})
	active = compactLast(active)

	r.mu.Lock()
	r.instruments = active
	r.mu.Unlock()
}

// compactLast removes adjacent duplicates keeping the last of each run.
func compactLast(sorted []model.Instrument) []model.Instrument {
	out := sorted[:0]
	for i, inst := range sorted {
		if i+1 < len(sorted) && sorted[i+1].Key() == inst.Key() {
			continue
		}
		out = append(out, inst)
	}
	return out
}

// Len returns the number of active instruments.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.instruments)
}

// Instruments returns a snapshot of the active set in key order.
func (r *Registry) Instruments() []model.Instrument {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.instruments)
}

// search returns the index of the first instrument whose key is >= key.
// Caller must hold r.mu.
func (r *Registry) search(key model.InstrumentKey) (int, bool) {
	return slices.BinarySearchFunc(r.instruments, key, func(i model.Instrument, k model.InstrumentKey) int {
		return i.Key().Compare(k)
	})
}

// AddInstrument inserts i in key order. An instrument with the same key is
// replaced.
func (r *Registry) AddInstrument(i model.Instrument) {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx, found := r.search(i.Key())
	if found {
		r.instruments[idx] = i
		return
	}
	r.instruments = slices.Insert(r.instruments, idx, i)
}

// RemoveInstrument removes the instrument with i's key. Removing a key that
// is not present is a no-op.
func (r *Registry) RemoveInstrument(i model.Instrument) {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx, found := r.search(i.Key())
	if !found {
		return
	}
	r.instruments = slices.Delete(r.instruments, idx, idx+1)
}

// Lookup returns the active instrument with the given key.
func (r *Registry) Lookup(key model.InstrumentKey) (model.Instrument, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx, found := r.search(key)
	if !found {
		return model.Instrument{}, false
	}
	return r.instruments[idx], true
}

// DiffAgainstDirectory compares the registry with a fresh directory listing.
// It returns the candidates present in the snapshot but not in the registry
// (ids unassigned) and the registered instruments absent from the snapshot.
// Both lists are in key order. The registry is not modified.
func (r *Registry) DiffAgainstDirectory(snapshot model.DirectorySnapshot) (newInstruments, obsoleted []model.Instrument) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, byInstrument := range snapshot {
		for _, candidate := range byInstrument {
			if _, found := r.search(candidate.Key()); !found {
				newInstruments = append(newInstruments, candidate)
			}
		}
	}

	for _, inst := range r.instruments {
		byInstrument, ok := snapshot[inst.CompanySymbol]
		if !ok {
			obsoleted = append(obsoleted, inst)
			continue
		}
		candidate, ok := byInstrument[inst.InstrumentSymbol]
		if !ok || candidate.Exchange != inst.Exchange {
			obsoleted = append(obsoleted, inst)
		}
	}

	slices.SortFunc(newInstruments, func(a, b model.Instrument) int {
		return a.Key().Compare(b.Key())
	})
	return newInstruments, obsoleted
}

// NextInstrumentKey returns the smallest key strictly greater than prev,
// wrapping to the first key when prev is the last (or beyond it). The zero
// key sorts before every real key, so it yields the first instrument.
// Returns false only when the registry is empty.
func (r *Registry) NextInstrumentKey(prev model.InstrumentKey) (model.InstrumentKey, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.instruments) == 0 {
		return model.InstrumentKey{}, false
	}

	idx := sort.Search(len(r.instruments), func(i int) bool {
		return r.instruments[i].Key().Compare(prev) > 0
	})
	if idx == len(r.instruments) {
		idx = 0
	}
	return r.instruments[idx].Key(), true
}

// firstForCompany returns the first instrument of a company in key order.
func (r *Registry) firstForCompany(companySymbol string) (model.InstrumentKey, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx, _ := r.search(model.InstrumentKey{CompanySymbol: companySymbol})
	if idx < len(r.instruments) && r.instruments[idx].CompanySymbol == companySymbol {
		return r.instruments[idx].Key(), true
	}
	return model.InstrumentKey{}, false
}

// SetPriorityCompanies replaces the priority queue with symbols, dropping
// repeats after their first occurrence. It returns how many of the distinct
// symbols currently resolve to a known instrument; unknown symbols are still
// queued and skipped when dequeued.
func (r *Registry) SetPriorityCompanies(symbols []string) int {
	queue := make([]string, 0, len(symbols))
	seen := make(map[string]struct{}, len(symbols))
	for _, s := range symbols {
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		queue = append(queue, s)
	}

	valid := 0
	for _, s := range queue {
		if _, ok := r.firstForCompany(s); ok {
			valid++
		}
	}

	r.priorityMu.Lock()
	r.priority = queue
	r.priorityMu.Unlock()

	return valid
}

// TryDequeueNextPriorityInstrumentKey pops company symbols off the front of
// the priority queue until one resolves to a known instrument, returning
// that company's first instrument key. Symbols that no longer resolve are
// discarded.
func (r *Registry) TryDequeueNextPriorityInstrumentKey() (model.InstrumentKey, bool) {
	for {
		symbol, ok := r.popPriority()
		if !ok {
			return model.InstrumentKey{}, false
		}
		if key, found := r.firstForCompany(symbol); found {
			return key, true
		}
		r.logger.Warn("skipping unknown priority company", "company", symbol)
	}
}

func (r *Registry) popPriority() (string, bool) {
	r.priorityMu.Lock()
	defer r.priorityMu.Unlock()

	if len(r.priority) == 0 {
		return "", false
	}
	s := r.priority[0]
	r.priority = r.priority[1:]
	if len(r.priority) == 0 {
		r.priority = nil
	}
	return s, true
}

// GetPriorityCompanySymbols returns the queued symbols in dequeue order
// without consuming them.
func (r *Registry) GetPriorityCompanySymbols() []string {
	r.priorityMu.Lock()
	defer r.priorityMu.Unlock()

	out := make([]string, len(r.priority))
	copy(out, r.priority)
	return out
}
