package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/roach88/fincollect/internal/model"
)

// LoadActiveInstruments returns every instrument not yet obsoleted, in id
// order.
func (s *Store) LoadActiveInstruments(ctx context.Context) ([]model.Instrument, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, company_symbol, instrument_symbol, exchange,
		       company_name, instrument_name, created_at, obsoleted_at
		FROM instruments
		WHERE obsoleted_at IS NULL
		ORDER BY id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query instruments: %w", err)
	}
	defer rows.Close()

	instruments := []model.Instrument{}
	for rows.Next() {
		inst, err := scanInstrument(rows)
		if err != nil {
			return nil, err
		}
		instruments = append(instruments, inst)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate instruments: %w", err)
	}
	return instruments, nil
}

// ApplyInstrumentListChanges inserts added and obsoletes obsoleted in one
// transaction. Added instruments must carry their assigned ids. Obsoleting an
// instrument that is already obsolete fails with ErrStale.
func (s *Store) ApplyInstrumentListChanges(ctx context.Context, added, obsoleted []model.Instrument, at time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("apply instrument changes: begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, inst := range obsoleted {
		res, err := tx.ExecContext(ctx, `
			UPDATE instruments SET obsoleted_at = ?
			WHERE id = ? AND obsoleted_at IS NULL
		`, formatTime(at), inst.ID)
		if err != nil {
			return fmt.Errorf("apply instrument changes: obsolete %d: %w", inst.ID, err)
		}
		if err := expectOneRow(res, "apply instrument changes: obsolete", inst.ID); err != nil {
			return err
		}
	}

	for _, inst := range added {
		if inst.ID == 0 {
			return fmt.Errorf("apply instrument changes: %s has no id", inst.Key())
		}
		createdAt := inst.CreatedAt
		if createdAt.IsZero() {
			createdAt = at
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO instruments
			(id, company_symbol, instrument_symbol, exchange,
			 company_name, instrument_name, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`,
			inst.ID,
			inst.CompanySymbol,
			inst.InstrumentSymbol,
			inst.Exchange,
			inst.CompanyName,
			inst.InstrumentName,
			formatTime(createdAt),
		)
		if err != nil {
			return fmt.Errorf("apply instrument changes: insert %s: %w", inst.Key(), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("apply instrument changes: commit: %w", err)
	}
	return nil
}

// scanInstrument scans a single instrument row.
func scanInstrument(rows *sql.Rows) (model.Instrument, error) {
	var (
		inst       model.Instrument
		createdAt  string
		obsoleteAt sql.NullString
	)
	err := rows.Scan(
		&inst.ID,
		&inst.CompanySymbol,
		&inst.InstrumentSymbol,
		&inst.Exchange,
		&inst.CompanyName,
		&inst.InstrumentName,
		&createdAt,
		&obsoleteAt,
	)
	if err != nil {
		return model.Instrument{}, fmt.Errorf("scan instrument: %w", err)
	}
	if inst.CreatedAt, err = parseTime(createdAt); err != nil {
		return model.Instrument{}, fmt.Errorf("scan instrument %d: %w", inst.ID, err)
	}
	if inst.ObsoletedAt, err = parseNullTime(obsoleteAt); err != nil {
		return model.Instrument{}, fmt.Errorf("scan instrument %d: %w", inst.ID, err)
	}
	return inst, nil
}
