package collector

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/fincollect/internal/model"
	"github.com/roach88/fincollect/internal/registry"
)

// ServiceName keys the collector's rows in the service and scheduler state
// tables.
const ServiceName = "collector"

// StateStore is the durable state read at startup.
// *store.Store implements it.
type StateStore interface {
	LoadSchedulerState(ctx context.Context) (model.SchedulerState, bool, error)
	GetServicePaused(ctx context.Context, name string) (bool, error)
	LoadActiveInstruments(ctx context.Context) ([]model.Instrument, error)
}

// Restore loads the active instruments into reg, queues the configured
// priority companies and returns the scheduler state to resume from. The
// durable service pause flag overrides the one in the scheduler snapshot,
// so a pause or resume recorded while the collector was down is honoured.
func Restore(ctx context.Context, st StateStore, reg *registry.Registry, priority []string, logger *slog.Logger) (model.SchedulerState, error) {
	if logger == nil {
		logger = slog.Default()
	}

	state, found, err := st.LoadSchedulerState(ctx)
	if err != nil {
		return model.SchedulerState{}, fmt.Errorf("restore: %w", err)
	}

	paused, err := st.GetServicePaused(ctx, ServiceName)
	if err != nil {
		return model.SchedulerState{}, fmt.Errorf("restore: %w", err)
	}
	state.IsPaused = paused

	instruments, err := st.LoadActiveInstruments(ctx)
	if err != nil {
		return model.SchedulerState{}, fmt.Errorf("restore: %w", err)
	}
	reg.InitializeDirectory(instruments)

	valid := 0
	if len(priority) > 0 {
		valid = reg.SetPriorityCompanies(priority)
	}

	logger.Info("collector state restored",
		"snapshot_found", found,
		"paused", state.IsPaused,
		"instruments", reg.Len(),
		"priority_companies", len(priority),
		"priority_valid", valid)
	return state, nil
}
