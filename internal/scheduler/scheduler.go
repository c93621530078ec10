package scheduler

import (
	"log/slog"
	"time"

	"github.com/roach88/fincollect/internal/model"
)

// Default timer intervals.
const (
	DefaultDirectoryInterval  = time.Hour
	DefaultInstrumentInterval = 4 * time.Minute
)

// Registry is the subset of the instrument registry the scheduler consults.
type Registry interface {
	NextInstrumentKey(prev model.InstrumentKey) (model.InstrumentKey, bool)
	TryDequeueNextPriorityInstrumentKey() (model.InstrumentKey, bool)
	SetPriorityCompanies(symbols []string) int
	GetPriorityCompanySymbols() []string
}

// Config holds the scheduler's timer intervals. Zero values fall back to
// the defaults.
type Config struct {
	DirectoryInterval  time.Duration
	InstrumentInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.DirectoryInterval <= 0 {
		c.DirectoryInterval = DefaultDirectoryInterval
	}
	if c.InstrumentInterval <= 0 {
		c.InstrumentInterval = DefaultInstrumentInterval
	}
	return c
}

// Scheduler decides when to fetch what. See package doc.
type Scheduler struct {
	cfg      Config
	registry Registry
	logger   *slog.Logger

	state   model.SchedulerState
	curTime time.Time
}

// New creates a scheduler starting from initial, typically the state loaded
// from storage (or the zero state on a fresh install).
func New(registry Registry, initial model.SchedulerState, cfg Config, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		cfg:      cfg.withDefaults(),
		registry: registry,
		logger:   logger,
		state:    initial.Clone(),
	}
}

// State returns a copy of the current scheduler state.
func (s *Scheduler) State() model.SchedulerState {
	return s.state.Clone()
}

// Paused reports whether the collector is paused.
func (s *Scheduler) Paused() bool {
	return s.state.IsPaused
}

// CurrentTime returns the time of the last processed input.
func (s *Scheduler) CurrentTime() time.Time {
	return s.curTime
}

// Process consumes one input and returns the resulting intents.
//
// Intents are ordered: the service-state write first, then fetches, then
// the scheduler-state write.
func (s *Scheduler) Process(in Input) Output {
	prev := s.state.Clone()
	s.curTime = in.At()

	var out Output
	switch v := in.(type) {
	case Timeout:
		if s.state.IsPaused {
			s.logger.Warn("unexpected timeout while paused", "at", v.Now)
			return out
		}
	case PauseService:
		if v.Pause != s.state.IsPaused {
			s.state.IsPaused = v.Pause
			out.Intents = append(out.Intents, Intent{
				Kind:   IntentPersistCommonServiceState,
				Paused: v.Pause,
			})
			s.logger.Info("service pause changed", "paused", v.Pause)
		}
	case IgnoreRawReport:
		out.Intents = append(out.Intents, Intent{
			Kind:   IntentIgnoreRawReport,
			Ignore: cloneIgnore(v.Request),
		})
	case SetPriorityCompanies:
		out.ValidPriorityCount = s.registry.SetPriorityCompanies(v.Symbols)
		s.logger.Info("priority companies set",
			"requested", len(v.Symbols),
			"valid", out.ValidPriorityCount)
	case GetPriorityCompanies:
		out.PriorityCompanies = s.registry.GetPriorityCompanySymbols()
	default:
		s.logger.Warn("unknown scheduler input", "input", in.String())
		return out
	}

	out.Intents = append(out.Intents, s.tick()...)

	if !s.state.Equal(prev) {
		out.Intents = append(out.Intents, Intent{
			Kind:  IntentPersistSchedulerState,
			State: s.state.Clone(),
		})
	}
	return out
}

// tick fires whichever timers have expired. A nil timer counts as expired.
func (s *Scheduler) tick() []Intent {
	if s.state.IsPaused {
		return nil
	}

	var intents []Intent
	if s.expired(s.state.NextFetchDirectoryAt) {
		s.state.NextFetchDirectoryAt = s.after(s.cfg.DirectoryInterval)
		intents = append(intents, Intent{Kind: IntentFetchDirectory})
	}

	if s.expired(s.state.NextFetchInstrumentDataAt) {
		s.state.NextFetchInstrumentDataAt = s.after(s.cfg.InstrumentInterval)
		if key, ok := s.nextInstrument(); ok {
			intents = append(intents, Intent{Kind: IntentFetchInstrumentData, Key: key})
		}
	}
	return intents
}

// nextInstrument prefers the priority queue; otherwise it advances the
// round-robin cursor.
func (s *Scheduler) nextInstrument() (model.InstrumentKey, bool) {
	if key, ok := s.registry.TryDequeueNextPriorityInstrumentKey(); ok {
		return key, true
	}
	key, ok := s.registry.NextInstrumentKey(s.state.PrevInstrumentKey)
	if !ok {
		s.logger.Debug("no instruments known yet")
		return model.InstrumentKey{}, false
	}
	s.state.PrevInstrumentKey = key
	return key, true
}

func (s *Scheduler) expired(next *time.Time) bool {
	return next == nil || s.curTime.After(*next)
}

func (s *Scheduler) after(d time.Duration) *time.Time {
	t := s.curTime.Add(d)
	return &t
}

func cloneIgnore(r model.IgnoreRequest) model.IgnoreRequest {
	r.IgnoreIDs = append([]uint64(nil), r.IgnoreIDs...)
	return r
}
