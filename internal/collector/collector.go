package collector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/fincollect/internal/consistency"
	"github.com/roach88/fincollect/internal/delta"
	"github.com/roach88/fincollect/internal/engine"
	"github.com/roach88/fincollect/internal/fetcher"
	"github.com/roach88/fincollect/internal/idalloc"
	"github.com/roach88/fincollect/internal/model"
	"github.com/roach88/fincollect/internal/registry"
)

var (
	// ErrEmptyDirectory rejects a directory fetch with no instruments.
	// Applying it would obsolete every known instrument.
	ErrEmptyDirectory = errors.New("directory listing is empty")

	// ErrUnknownInstrument is returned when a fetch targets a key the
	// registry no longer holds.
	ErrUnknownInstrument = errors.New("instrument not in registry")
)

// Store is the durable state the collector reads and writes.
// *store.Store implements it.
type Store interface {
	ApplyInstrumentListChanges(ctx context.Context, added, obsoleted []model.Instrument, at time.Time) error
	LoadCurrentReports(ctx context.Context, instrumentID uint64) ([]model.RawReport, error)
	LoadInstrumentReports(ctx context.Context, instrumentID uint64) ([]model.RawReport, error)
	ApplyReportsDelta(ctx context.Context, d model.RawFinancialsDelta) error
	IgnoreReports(ctx context.Context, instrumentID uint64, ids []uint64, at time.Time) error
	SaveSchedulerState(ctx context.Context, state model.SchedulerState) error
	SetServicePaused(ctx context.Context, name string, paused bool) error
}

// Collector implements engine.Executor.
type Collector struct {
	store    Store
	registry *registry.Registry
	ids      *idalloc.Allocator
	fetcher  fetcher.Fetcher
	delta    *delta.Engine
	clock    engine.WallClock
	logger   *slog.Logger
}

// Option configures a Collector.
type Option func(*Collector)

// WithClock sets the clock used to stamp writes. Default: engine.SystemClock.
func WithClock(c engine.WallClock) Option {
	return func(col *Collector) { col.clock = c }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(col *Collector) { col.logger = l }
}

// New creates a collector.
func New(st Store, reg *registry.Registry, ids *idalloc.Allocator, f fetcher.Fetcher, opts ...Option) *Collector {
	c := &Collector{
		store:    st,
		registry: reg,
		ids:      ids,
		fetcher:  f,
		clock:    engine.SystemClock{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.delta = delta.New(c.logger)
	return c
}

// FetchDirectory implements engine.Executor.
func (c *Collector) FetchDirectory(ctx context.Context) error {
	snapshot, err := c.fetcher.FetchDirectory(ctx)
	if err != nil {
		return err
	}
	if snapshot.Len() == 0 {
		return fmt.Errorf("fetch directory: %w", ErrEmptyDirectory)
	}

	added, obsoleted := c.registry.DiffAgainstDirectory(snapshot)
	if len(added) == 0 && len(obsoleted) == 0 {
		c.logger.Debug("directory unchanged", "instruments", snapshot.Len())
		return nil
	}

	now := c.clock.Now()
	if len(added) > 0 {
		first, err := c.ids.NextIdRange(ctx, uint32(len(added)))
		if err != nil {
			return fmt.Errorf("fetch directory: assign ids: %w", err)
		}
		for i := range added {
			added[i].ID = first + uint64(i)
			added[i].CreatedAt = now
		}
	}

	for _, inst := range obsoleted {
		c.registry.RemoveInstrument(inst)
	}
	for _, inst := range added {
		c.registry.AddInstrument(inst)
	}

	if err := c.store.ApplyInstrumentListChanges(ctx, added, obsoleted, now); err != nil {
		for _, inst := range added {
			c.registry.RemoveInstrument(inst)
		}
		for _, inst := range obsoleted {
			c.registry.AddInstrument(inst)
		}
		return fmt.Errorf("fetch directory: %w", err)
	}

	c.logger.Info("directory applied",
		"added", len(added),
		"obsoleted", len(obsoleted),
		"instruments", c.registry.Len())
	return nil
}

// FetchInstrumentData implements engine.Executor.
func (c *Collector) FetchInstrumentData(ctx context.Context, key model.InstrumentKey) error {
	inst, ok := c.registry.Lookup(key)
	if !ok {
		return fmt.Errorf("fetch %s: %w", key, ErrUnknownInstrument)
	}

	fin, err := c.fetcher.FetchInstrumentData(ctx, key)
	if err != nil {
		return err
	}

	current, err := c.store.LoadCurrentReports(ctx, inst.ID)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", key, err)
	}

	d := c.delta.Compute(inst.ID, current, fin, c.clock.Now())

	// One id per inserted report plus one for the price snapshot.
	first, err := c.ids.NextIdRange(ctx, uint32(len(d.Inserts)+1))
	if err != nil {
		return fmt.Errorf("fetch %s: assign ids: %w", key, err)
	}
	for i := range d.Inserts {
		d.Inserts[i].ID = first + uint64(i)
	}
	d.PriceID = first + uint64(len(d.Inserts))

	if err := c.store.ApplyReportsDelta(ctx, d); err != nil {
		return fmt.Errorf("fetch %s: %w", key, err)
	}

	c.logger.Info("instrument data applied",
		"instrument", key.String(),
		"inserted", len(d.Inserts),
		"updated", len(d.Updates),
		"obsoleted", len(d.Obsoletes),
		"changed", d.HasReportChanges())
	return nil
}

// IgnoreRawReport implements engine.Executor. A rejected request leaves the
// store untouched and returns a *consistency.Error. Repeated ignore ids are
// applied once.
func (c *Collector) IgnoreRawReport(ctx context.Context, req model.IgnoreRequest) error {
	req = req.Deduplicated()
	reports, err := c.store.LoadInstrumentReports(ctx, req.InstrumentID)
	if err != nil {
		return fmt.Errorf("ignore reports: %w", err)
	}

	if err := consistency.Validate(req, reports); err != nil {
		c.logger.Warn("conflict resolution rejected",
			"instrument_id", req.InstrumentID,
			"keep", req.KeepID,
			"error", err)
		return err
	}

	if err := c.store.IgnoreReports(ctx, req.InstrumentID, req.IgnoreIDs, c.clock.Now()); err != nil {
		return err
	}

	c.logger.Info("conflict resolved",
		"instrument_id", req.InstrumentID,
		"keep", req.KeepID,
		"ignored", len(req.IgnoreIDs))
	return nil
}

// PersistSchedulerState implements engine.Executor.
func (c *Collector) PersistSchedulerState(ctx context.Context, state model.SchedulerState) error {
	return c.store.SaveSchedulerState(ctx, state)
}

// PersistServicePaused implements engine.Executor.
func (c *Collector) PersistServicePaused(ctx context.Context, paused bool) error {
	return c.store.SetServicePaused(ctx, ServiceName, paused)
}
