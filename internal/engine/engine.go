package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/roach88/fincollect/internal/model"
	"github.com/roach88/fincollect/internal/scheduler"
)

// Default driver timings.
const (
	DefaultTickInterval     = 10 * time.Second
	DefaultOperationTimeout = 2 * time.Minute
)

// Executor carries out scheduler intents. Every call receives a context
// bounded by the operation timeout.
type Executor interface {
	FetchDirectory(ctx context.Context) error
	FetchInstrumentData(ctx context.Context, key model.InstrumentKey) error
	PersistSchedulerState(ctx context.Context, state model.SchedulerState) error
	PersistServicePaused(ctx context.Context, paused bool) error
	IgnoreRawReport(ctx context.Context, req model.IgnoreRequest) error
}

// Result is what a Submit caller receives once its input was processed.
type Result struct {
	Output scheduler.Output

	// Err joins the failures of the input's intents, nil if all succeeded.
	Err error
}

// Engine is the single-writer driver loop around the scheduler.
//
// Thread-safety model:
//   - Submit(), Stop(), Paused(), Now(): safe from any goroutine
//   - Run(): must be called from exactly one goroutine
//
// The scheduler is touched only by the Run goroutine.
type Engine struct {
	sched  *scheduler.Scheduler
	exec   Executor
	queue  *requestQueue
	clock  WallClock
	seq    Sequence
	runGen RunTokenGenerator
	logger *slog.Logger

	tickInterval     time.Duration
	operationTimeout time.Duration

	paused atomic.Bool // mirror of the scheduler's flag for the ticker
	done   chan struct{}
}

// Option allows configuration of engine parameters.
type Option func(*Engine)

// WithClock sets the wall clock. Default: SystemClock.
func WithClock(c WallClock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithRunTokens sets the run token generator. Default: UUIDv7Generator.
func WithRunTokens(g RunTokenGenerator) Option {
	return func(e *Engine) { e.runGen = g }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithTickInterval sets how often Timeout inputs are generated.
// Zero disables the ticker; inputs then come only from Submit.
func WithTickInterval(d time.Duration) Option {
	return func(e *Engine) { e.tickInterval = d }
}

// WithOperationTimeout bounds every intent execution. Default: 2 minutes.
func WithOperationTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.operationTimeout = d
		}
	}
}

// New creates an engine around a scheduler restored from durable state.
func New(sched *scheduler.Scheduler, exec Executor, opts ...Option) *Engine {
	e := &Engine{
		sched:            sched,
		exec:             exec,
		queue:            newRequestQueue(),
		clock:            SystemClock{},
		runGen:           UUIDv7Generator{},
		logger:           slog.Default(),
		tickInterval:     DefaultTickInterval,
		operationTimeout: DefaultOperationTimeout,
		done:             make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.paused.Store(sched.Paused())
	return e
}

// Now returns the engine's current wall-clock time. Callers use it to stamp
// inputs passed to Submit.
func (e *Engine) Now() time.Time {
	return e.clock.Now()
}

// Paused reports whether the collector is paused, as of the last processed
// input.
func (e *Engine) Paused() bool {
	return e.paused.Load()
}

// Submit enqueues an input and waits until it has been processed, returning
// the scheduler output and any intent failures. It must not be called from
// the Run goroutine.
//
// If ctx ends first, Submit returns ctx.Err(). An input still queued at that
// point is dropped; one the loop has already started runs to completion.
func (e *Engine) Submit(ctx context.Context, in scheduler.Input) (scheduler.Output, error) {
	if in == nil {
		return scheduler.Output{}, newInvalidInputError("nil input")
	}
	if err := ctx.Err(); err != nil {
		return scheduler.Output{}, err
	}

	reply := make(chan Result, 1)
	if !e.queue.Enqueue(request{input: in, reply: reply, cancelled: ctx.Done()}) {
		return scheduler.Output{}, newQueueClosedError()
	}

	select {
	case res := <-reply:
		return res.Output, res.Err
	case <-e.done:
		// The loop may have answered just before exiting.
		select {
		case res := <-reply:
			return res.Output, res.Err
		default:
			return scheduler.Output{}, newQueueClosedError()
		}
	case <-ctx.Done():
		return scheduler.Output{}, ctx.Err()
	}
}

// Run starts the single-writer loop and, unless disabled, the ticker. The
// first tick is enqueued immediately. Blocks until ctx is cancelled or Stop
// is called and the queue has drained.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info("engine starting",
		"tick_interval", e.tickInterval,
		"operation_timeout", e.operationTimeout,
		"paused", e.Paused())
	defer close(e.done)

	if e.tickInterval > 0 {
		e.enqueueTick()
		go e.runTicker(ctx)
	}

	for {
		if r, ok := e.queue.TryDequeue(); ok {
			e.process(ctx, r)
			continue
		}

		select {
		case <-ctx.Done():
			e.logger.Info("engine stopping: context cancelled")
			e.queue.Close()
			e.queue.Drain()
			return ctx.Err()

		case <-e.queue.Wait():
			// The signal channel closes when the queue is closed.
			if e.queue.Closed() && e.queue.Len() == 0 {
				e.logger.Info("engine stopping: queue closed")
				return nil
			}
		}
	}
}

// Stop gracefully shuts down the engine. Requests already queued are still
// processed; new ones are refused.
func (e *Engine) Stop() {
	e.queue.Close()
}

func (e *Engine) runTicker(ctx context.Context) {
	t := time.NewTicker(e.tickInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-e.done:
			return
		case <-t.C:
			e.enqueueTick()
		}
	}
}

func (e *Engine) enqueueTick() {
	if e.Paused() {
		return
	}
	e.queue.Enqueue(request{input: scheduler.Timeout{Now: e.clock.Now()}})
}

// process feeds one request through the scheduler and executes the
// resulting intents in order.
// CRITICAL: Called only from Run() goroutine - single-writer guarantee.
func (e *Engine) process(ctx context.Context, r request) {
	if r.callerGone() {
		e.logger.Warn("dropping input, caller stopped waiting", "input", r.input.String())
		return
	}

	seq := e.seq.Next()
	run := e.runGen.Generate()

	e.logger.Debug("processing input", "seq", seq, "run", run, "input", r.input.String())

	out := e.sched.Process(r.input)
	e.paused.Store(e.sched.Paused())

	var errs []error
	for _, intent := range out.Intents {
		if err := e.execute(ctx, intent); err != nil {
			rerr := NewIntentError(run, intent.Kind.String(), err)
			e.logger.Error("intent failed",
				"seq", seq,
				"run", run,
				"intent", intent.String(),
				"error", err)
			errs = append(errs, rerr)
			continue
		}
		e.logger.Debug("intent done", "seq", seq, "run", run, "intent", intent.String())
	}

	if r.reply != nil {
		r.reply <- Result{Output: out, Err: errors.Join(errs...)}
	}
}

func (e *Engine) execute(ctx context.Context, intent scheduler.Intent) error {
	ctx, cancel := context.WithTimeout(ctx, e.operationTimeout)
	defer cancel()

	switch intent.Kind {
	case scheduler.IntentFetchDirectory:
		return e.exec.FetchDirectory(ctx)
	case scheduler.IntentFetchInstrumentData:
		return e.exec.FetchInstrumentData(ctx, intent.Key)
	case scheduler.IntentPersistSchedulerState:
		return e.exec.PersistSchedulerState(ctx, intent.State)
	case scheduler.IntentPersistCommonServiceState:
		return e.exec.PersistServicePaused(ctx, intent.Paused)
	case scheduler.IntentIgnoreRawReport:
		return e.exec.IgnoreRawReport(ctx, intent.Ignore)
	default:
		return newInvalidInputError("unknown intent " + intent.Kind.String())
	}
}
