package scheduler

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fincollect/internal/model"
	"github.com/roach88/fincollect/internal/registry"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func at(d time.Duration) time.Time { return t0.Add(d) }

func key(company, instrument string) model.InstrumentKey {
	return model.InstrumentKey{CompanySymbol: company, InstrumentSymbol: instrument, Exchange: "BVB"}
}

func newRegistry(keys ...model.InstrumentKey) *registry.Registry {
	r := registry.New(discardLogger())
	instruments := make([]model.Instrument, 0, len(keys))
	for i, k := range keys {
		instruments = append(instruments, model.Instrument{ID: uint64(i + 1), InstrumentKey: k})
	}
	r.InitializeDirectory(instruments)
	return r
}

func newScheduler(reg Registry, initial model.SchedulerState) *Scheduler {
	return New(reg, initial, Config{}, discardLogger())
}

func kinds(out Output) []IntentKind {
	ks := make([]IntentKind, 0, len(out.Intents))
	for _, i := range out.Intents {
		ks = append(ks, i.Kind)
	}
	return ks
}

func fetchedKeys(out Output) []model.InstrumentKey {
	var keys []model.InstrumentKey
	for _, i := range out.Intents {
		if i.Kind == IntentFetchInstrumentData {
			keys = append(keys, i.Key)
		}
	}
	return keys
}

func TestProcess_FreshStartFiresBothTimers(t *testing.T) {
	s := newScheduler(newRegistry(key("A", "A")), model.SchedulerState{})

	out := s.Process(Timeout{Now: t0})

	assert.Equal(t, []IntentKind{
		IntentFetchDirectory,
		IntentFetchInstrumentData,
		IntentPersistSchedulerState,
	}, kinds(out))

	state := s.State()
	require.NotNil(t, state.NextFetchDirectoryAt)
	require.NotNil(t, state.NextFetchInstrumentDataAt)
	assert.Equal(t, at(time.Hour), *state.NextFetchDirectoryAt)
	assert.Equal(t, at(4*time.Minute), *state.NextFetchInstrumentDataAt)
	assert.Equal(t, key("A", "A"), state.PrevInstrumentKey)
	assert.Equal(t, state, out.Intents[2].State)
}

func TestProcess_EmptyRegistryStillSchedulesDirectory(t *testing.T) {
	s := newScheduler(newRegistry(), model.SchedulerState{})

	out := s.Process(Timeout{Now: t0})

	assert.Equal(t, []IntentKind{IntentFetchDirectory, IntentPersistSchedulerState}, kinds(out))
	state := s.State()
	require.NotNil(t, state.NextFetchInstrumentDataAt, "instrument timer advances even with nothing to fetch")
	assert.True(t, state.PrevInstrumentKey.IsZero())
}

func TestProcess_TimerExpiryIsStrict(t *testing.T) {
	s := newScheduler(newRegistry(key("A", "A")), model.SchedulerState{})
	s.Process(Timeout{Now: t0})

	out := s.Process(Timeout{Now: at(4 * time.Minute)})
	assert.Empty(t, out.Intents, "now == next does not fire")

	out = s.Process(Timeout{Now: at(4*time.Minute + time.Second)})
	assert.Equal(t, []IntentKind{IntentFetchInstrumentData, IntentPersistSchedulerState}, kinds(out))
}

func TestProcess_RoundRobinWrapsAround(t *testing.T) {
	s := newScheduler(newRegistry(key("A", "A"), key("B", "B"), key("C", "C")), model.SchedulerState{})

	var got []model.InstrumentKey
	for i := 0; i < 5; i++ {
		out := s.Process(Timeout{Now: at(time.Duration(i) * 5 * time.Minute)})
		got = append(got, fetchedKeys(out)...)
	}

	assert.Equal(t, []model.InstrumentKey{
		key("A", "A"), key("B", "B"), key("C", "C"), key("A", "A"), key("B", "B"),
	}, got)
}

func TestProcess_PriorityDoesNotDisturbRoundRobin(t *testing.T) {
	reg := newRegistry(key("A", "A"), key("B", "B"), key("C", "C"))
	s := newScheduler(reg, model.SchedulerState{})

	s.Process(Timeout{Now: t0}) // fetches A
	out := s.Process(SetPriorityCompanies{Now: at(time.Minute), Symbols: []string{"C"}})
	assert.Equal(t, 1, out.ValidPriorityCount)

	out = s.Process(Timeout{Now: at(5 * time.Minute)})
	assert.Equal(t, []model.InstrumentKey{key("C", "C")}, fetchedKeys(out))
	assert.Equal(t, key("A", "A"), s.State().PrevInstrumentKey, "cursor untouched by priority fetch")

	out = s.Process(Timeout{Now: at(10 * time.Minute)})
	assert.Equal(t, []model.InstrumentKey{key("B", "B")}, fetchedKeys(out), "round-robin resumes after A")
}

func TestProcess_PauseSuppressesFetches(t *testing.T) {
	s := newScheduler(newRegistry(key("A", "A")), model.SchedulerState{})
	s.Process(Timeout{Now: t0})

	out := s.Process(PauseService{Now: at(time.Minute), Pause: true})
	assert.Equal(t, []IntentKind{IntentPersistCommonServiceState, IntentPersistSchedulerState}, kinds(out))
	assert.True(t, out.Intents[0].Paused)
	assert.True(t, s.Paused())

	for _, d := range []time.Duration{5 * time.Minute, 2 * time.Hour, 48 * time.Hour} {
		out = s.Process(Timeout{Now: at(d)})
		assert.Empty(t, out.Intents, "paused timeout at %s", d)
	}
	assert.Equal(t, at(48*time.Hour), s.CurrentTime())
}

func TestProcess_ResumeFiresOverdueTimers(t *testing.T) {
	s := newScheduler(newRegistry(key("A", "A")), model.SchedulerState{})
	s.Process(Timeout{Now: t0})
	s.Process(PauseService{Now: at(time.Minute), Pause: true})

	out := s.Process(PauseService{Now: at(3 * time.Hour), Pause: false})

	assert.Equal(t, []IntentKind{
		IntentPersistCommonServiceState,
		IntentFetchDirectory,
		IntentFetchInstrumentData,
		IntentPersistSchedulerState,
	}, kinds(out))
	assert.False(t, out.Intents[0].Paused)
}

func TestProcess_RedundantPauseWritesNothing(t *testing.T) {
	s := newScheduler(newRegistry(key("A", "A")), model.SchedulerState{})
	s.Process(Timeout{Now: t0})

	out := s.Process(PauseService{Now: at(time.Minute), Pause: false})
	assert.Empty(t, out.Intents, "already running")

	s.Process(PauseService{Now: at(2 * time.Minute), Pause: true})
	out = s.Process(PauseService{Now: at(3 * time.Minute), Pause: true})
	assert.Empty(t, out.Intents, "already paused")
}

func TestProcess_RestoredPausedStateStaysPaused(t *testing.T) {
	s := newScheduler(newRegistry(key("A", "A")), model.SchedulerState{IsPaused: true})

	out := s.Process(Timeout{Now: t0})

	assert.Empty(t, out.Intents)
	assert.Nil(t, s.State().NextFetchDirectoryAt)
}

func TestProcess_TimeoutWhilePausedIsLoggedAsUnexpected(t *testing.T) {
	var buf strings.Builder
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))
	s := New(newRegistry(key("A", "A")), model.SchedulerState{IsPaused: true}, Config{}, logger)

	out := s.Process(Timeout{Now: t0})

	assert.Empty(t, out.Intents)
	assert.Contains(t, buf.String(), "level=WARN")
	assert.Contains(t, buf.String(), "unexpected timeout while paused")
}

func TestProcess_IgnoreRawReportForwardsRequest(t *testing.T) {
	s := newScheduler(newRegistry(key("A", "A")), model.SchedulerState{})
	s.Process(Timeout{Now: t0})

	ids := []uint64{3, 4}
	out := s.Process(IgnoreRawReport{Now: at(time.Minute), Request: model.IgnoreRequest{
		InstrumentID: 1, KeepID: 2, IgnoreIDs: ids,
	}})

	require.Equal(t, []IntentKind{IntentIgnoreRawReport}, kinds(out))
	ids[0] = 99
	assert.Equal(t, []uint64{3, 4}, out.Intents[0].Ignore.IgnoreIDs, "intent owns its ids")
}

func TestProcess_GetPriorityCompanies(t *testing.T) {
	s := newScheduler(newRegistry(key("A", "A"), key("B", "B")), model.SchedulerState{})

	out := s.Process(SetPriorityCompanies{Now: t0, Symbols: []string{"B", "X", "B", "A"}})
	assert.Equal(t, 2, out.ValidPriorityCount)

	// The set itself fires both timers; B is dequeued for the first fetch.
	assert.Equal(t, []model.InstrumentKey{key("B", "B")}, fetchedKeys(out))

	out = s.Process(GetPriorityCompanies{Now: t0})
	assert.Equal(t, []string{"X", "A"}, out.PriorityCompanies)
	assert.Empty(t, out.Intents)
}

func TestProcess_PersistedStateIsACopy(t *testing.T) {
	s := newScheduler(newRegistry(key("A", "A")), model.SchedulerState{})
	out := s.Process(Timeout{Now: t0})

	persisted := out.Intents[len(out.Intents)-1].State
	*persisted.NextFetchDirectoryAt = time.Time{}

	assert.Equal(t, at(time.Hour), *s.State().NextFetchDirectoryAt)
}

func TestProcess_CustomIntervals(t *testing.T) {
	s := New(newRegistry(key("A", "A")), model.SchedulerState{}, Config{
		DirectoryInterval:  10 * time.Minute,
		InstrumentInterval: time.Minute,
	}, discardLogger())

	s.Process(Timeout{Now: t0})

	state := s.State()
	assert.Equal(t, at(10*time.Minute), *state.NextFetchDirectoryAt)
	assert.Equal(t, at(time.Minute), *state.NextFetchInstrumentDataAt)
}

func TestIntentKind_String(t *testing.T) {
	assert.Equal(t, "FetchDirectory", IntentFetchDirectory.String())
	assert.Equal(t, "IntentKind(42)", IntentKind(42).String())
}

func trace(s *Scheduler, inputs []Input) string {
	var b strings.Builder
	for _, in := range inputs {
		out := s.Process(in)
		fmt.Fprintf(&b, "> %s\n", in)
		switch in.(type) {
		case SetPriorityCompanies:
			fmt.Fprintf(&b, "  valid=%d\n", out.ValidPriorityCount)
		case GetPriorityCompanies:
			fmt.Fprintf(&b, "  priority=%v\n", out.PriorityCompanies)
		}
		if len(out.Intents) == 0 {
			b.WriteString("  (none)\n")
		}
		for _, i := range out.Intents {
			fmt.Fprintf(&b, "  %s\n", i)
		}
	}
	return b.String()
}

func TestProcess_GoldenTrace(t *testing.T) {
	reg := newRegistry(key("AAA", "AAA"), key("BBB", "BBB"), key("BBB", "BBB2"), key("CCC", "CCC"))
	s := newScheduler(reg, model.SchedulerState{})

	got := trace(s, []Input{
		Timeout{Now: t0},
		Timeout{Now: at(2 * time.Minute)},
		Timeout{Now: at(4 * time.Minute)},
		SetPriorityCompanies{Now: at(4 * time.Minute), Symbols: []string{"CCC", "ZZZ", "CCC"}},
		Timeout{Now: at(5 * time.Minute)},
		GetPriorityCompanies{Now: at(6 * time.Minute)},
		Timeout{Now: at(10 * time.Minute)},
		PauseService{Now: at(11 * time.Minute), Pause: true},
		PauseService{Now: at(12 * time.Minute), Pause: true},
		Timeout{Now: at(2 * time.Hour)},
		IgnoreRawReport{Now: at(2*time.Hour + time.Minute), Request: model.IgnoreRequest{
			InstrumentID: 7, KeepID: 2, IgnoreIDs: []uint64{3, 4},
		}},
		PauseService{Now: at(2*time.Hour + 2*time.Minute), Pause: false},
		Timeout{Now: at(2*time.Hour + 7*time.Minute)},
		Timeout{Now: at(2*time.Hour + 12*time.Minute)},
	})

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "scheduler_trace", []byte(got))
}
