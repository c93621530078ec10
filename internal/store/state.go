package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/fincollect/internal/model"
)

// SchedulerStateName is the row the collector's scheduler snapshot lives in.
const SchedulerStateName = "collector"

// LoadSchedulerState returns the persisted scheduler snapshot. found is false
// on a fresh database.
func (s *Store) LoadSchedulerState(ctx context.Context) (state model.SchedulerState, found bool, err error) {
	var (
		paused                int
		nextDir, nextInstr    sql.NullString
		company, instr, exchg string
	)
	err = s.db.QueryRowContext(ctx, `
		SELECT is_paused, next_fetch_directory_at, next_fetch_instrument_data_at,
		       prev_company_symbol, prev_instrument_symbol, prev_exchange
		FROM scheduler_state
		WHERE name = ?
	`, SchedulerStateName).Scan(&paused, &nextDir, &nextInstr, &company, &instr, &exchg)
	if errors.Is(err, sql.ErrNoRows) {
		return model.SchedulerState{}, false, nil
	}
	if err != nil {
		return model.SchedulerState{}, false, fmt.Errorf("load scheduler state: %w", err)
	}

	state.IsPaused = paused != 0
	if state.NextFetchDirectoryAt, err = parseNullTime(nextDir); err != nil {
		return model.SchedulerState{}, false, fmt.Errorf("load scheduler state: %w", err)
	}
	if state.NextFetchInstrumentDataAt, err = parseNullTime(nextInstr); err != nil {
		return model.SchedulerState{}, false, fmt.Errorf("load scheduler state: %w", err)
	}
	state.PrevInstrumentKey = model.InstrumentKey{
		CompanySymbol:    company,
		InstrumentSymbol: instr,
		Exchange:         exchg,
	}
	return state, true, nil
}

// SaveSchedulerState upserts the scheduler snapshot.
func (s *Store) SaveSchedulerState(ctx context.Context, state model.SchedulerState) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO scheduler_state
		(name, is_paused, next_fetch_directory_at, next_fetch_instrument_data_at,
		 prev_company_symbol, prev_instrument_symbol, prev_exchange, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			is_paused = excluded.is_paused,
			next_fetch_directory_at = excluded.next_fetch_directory_at,
			next_fetch_instrument_data_at = excluded.next_fetch_instrument_data_at,
			prev_company_symbol = excluded.prev_company_symbol,
			prev_instrument_symbol = excluded.prev_instrument_symbol,
			prev_exchange = excluded.prev_exchange,
			updated_at = excluded.updated_at
	`,
		SchedulerStateName,
		boolInt(state.IsPaused),
		formatNullTime(state.NextFetchDirectoryAt),
		formatNullTime(state.NextFetchInstrumentDataAt),
		state.PrevInstrumentKey.CompanySymbol,
		state.PrevInstrumentKey.InstrumentSymbol,
		state.PrevInstrumentKey.Exchange,
		formatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("save scheduler state: %w", err)
	}
	return nil
}

// SetServicePaused records the pause flag of a named service.
func (s *Store) SetServicePaused(ctx context.Context, name string, paused bool) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO service_state (name, is_paused, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			is_paused = excluded.is_paused,
			updated_at = excluded.updated_at
	`, name, boolInt(paused), formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("set service paused %q: %w", name, err)
	}
	return nil
}

// GetServicePaused returns the pause flag of a named service. Unknown
// services are not paused.
func (s *Store) GetServicePaused(ctx context.Context, name string) (bool, error) {
	var paused int
	err := s.db.QueryRowContext(ctx, `
		SELECT is_paused FROM service_state WHERE name = ?
	`, name).Scan(&paused)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get service paused %q: %w", name, err)
	}
	return paused != 0, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
