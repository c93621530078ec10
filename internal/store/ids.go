package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
)

const globalSequence = "global"

// ReserveIdBlock durably reserves size consecutive ids and returns the first.
// Ids start at 1; zero is never handed out.
func (s *Store) ReserveIdBlock(ctx context.Context, size uint64) (uint64, error) {
	if size == 0 {
		return 0, fmt.Errorf("reserve id block: size must be positive")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("reserve id block: begin tx: %w", err)
	}
	defer tx.Rollback()

	var next int64
	err = tx.QueryRowContext(ctx, `
		SELECT next_id FROM id_sequence WHERE name = ?
	`, globalSequence).Scan(&next)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		next = 1
	case err != nil:
		return 0, fmt.Errorf("reserve id block: read sequence: %w", err)
	}

	if size > uint64(math.MaxInt64-next) {
		return 0, fmt.Errorf("reserve id block: sequence exhausted at %d", next)
	}
	end := next + int64(size)

	_, err = tx.ExecContext(ctx, `
		INSERT INTO id_sequence (name, next_id) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET next_id = excluded.next_id
	`, globalSequence, end)
	if err != nil {
		return 0, fmt.Errorf("reserve id block: advance sequence: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("reserve id block: commit: %w", err)
	}
	return uint64(next), nil
}
