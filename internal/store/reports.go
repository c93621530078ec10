package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/roach88/fincollect/internal/model"
)

// Raw-data-changed event reasons.
const (
	EventReportsChanged = "reports_changed"
	EventReportsIgnored = "reports_ignored"
)

// RawDataEvent is one row of the raw-data-changed outbox.
type RawDataEvent struct {
	Seq          int64     `json:"seq"`
	InstrumentID uint64    `json:"instrument_id"`
	Reason       string    `json:"reason"`
	CreatedAt    time.Time `json:"created_at"`
}

// PriceSnapshot is an instrument's price and share count at one fetch.
type PriceSnapshot struct {
	ID            uint64          `json:"id"`
	InstrumentID  uint64          `json:"instrument_id"`
	PricePerShare decimal.Decimal `json:"price_per_share"`
	ShareCount    decimal.Decimal `json:"share_count"`
	CreatedAt     time.Time       `json:"created_at"`
}

const reportColumns = `
	id, instrument_id, report_type, report_period_type, report_date, data,
	created_at, obsoleted_at, is_current, check_manually, ignore_report`

// LoadCurrentReports returns the instrument's current reports, including
// conflicting duplicates that await resolution.
func (s *Store) LoadCurrentReports(ctx context.Context, instrumentID uint64) ([]model.RawReport, error) {
	return s.queryReports(ctx, `
		SELECT`+reportColumns+`
		FROM raw_reports
		WHERE instrument_id = ? AND is_current = 1
		ORDER BY id ASC
	`, instrumentID)
}

// LoadInstrumentReports returns every stored version of the instrument's
// reports.
func (s *Store) LoadInstrumentReports(ctx context.Context, instrumentID uint64) ([]model.RawReport, error) {
	return s.queryReports(ctx, `
		SELECT`+reportColumns+`
		FROM raw_reports
		WHERE instrument_id = ?
		ORDER BY id ASC
	`, instrumentID)
}

func (s *Store) queryReports(ctx context.Context, query string, args ...any) ([]model.RawReport, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query reports: %w", err)
	}
	defer rows.Close()

	reports := []model.RawReport{}
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		reports = append(reports, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reports: %w", err)
	}
	return reports, nil
}

// ApplyReportsDelta commits a delta atomically: obsoletes, inserts, updates,
// price rotation and, when any report changed, a raw-data-changed event.
// Inserted reports and the price snapshot must carry assigned ids. A write
// against a report that is no longer current fails with ErrStale and nothing
// is applied.
func (s *Store) ApplyReportsDelta(ctx context.Context, d model.RawFinancialsDelta) error {
	if d.PriceID == 0 {
		return fmt.Errorf("apply reports delta: price snapshot has no id")
	}
	at := formatTime(d.ComputedAt)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("apply reports delta: begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, id := range d.Obsoletes {
		res, err := tx.ExecContext(ctx, `
			UPDATE raw_reports SET is_current = 0, obsoleted_at = ?
			WHERE id = ? AND instrument_id = ? AND is_current = 1
		`, at, id, d.InstrumentID)
		if err != nil {
			return fmt.Errorf("apply reports delta: obsolete %d: %w", id, err)
		}
		if err := expectOneRow(res, "apply reports delta: obsolete", id); err != nil {
			return err
		}
	}

	for _, r := range d.Inserts {
		if r.ID == 0 {
			return fmt.Errorf("apply reports delta: insert %s has no id", r.Key())
		}
		data, err := marshalReportData(r.Data)
		if err != nil {
			return fmt.Errorf("apply reports delta: insert %d: %w", r.ID, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO raw_reports
			(id, instrument_id, report_type, report_period_type, report_date, data,
			 created_at, is_current, check_manually, ignore_report)
			VALUES (?, ?, ?, ?, ?, ?, ?, 1, ?, 0)
		`,
			r.ID,
			d.InstrumentID,
			int(r.Type),
			int(r.Period),
			formatDate(r.ReportDate),
			data,
			at,
			boolInt(r.CheckManually),
		)
		if err != nil {
			return fmt.Errorf("apply reports delta: insert %d: %w", r.ID, err)
		}
	}

	for _, u := range d.Updates {
		data, err := marshalReportData(u.Data)
		if err != nil {
			return fmt.Errorf("apply reports delta: update %d: %w", u.ReportID, err)
		}
		res, err := tx.ExecContext(ctx, `
			UPDATE raw_reports SET data = ?, check_manually = ?
			WHERE id = ? AND instrument_id = ? AND is_current = 1
		`, data, boolInt(u.CheckManually), u.ReportID, d.InstrumentID)
		if err != nil {
			return fmt.Errorf("apply reports delta: update %d: %w", u.ReportID, err)
		}
		if err := expectOneRow(res, "apply reports delta: update", u.ReportID); err != nil {
			return err
		}
	}

	if err := rotatePrice(ctx, tx, d, at); err != nil {
		return err
	}

	if d.HasReportChanges() {
		if err := insertEvent(ctx, tx, d.InstrumentID, EventReportsChanged, at); err != nil {
			return fmt.Errorf("apply reports delta: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("apply reports delta: commit: %w", err)
	}
	return nil
}

func rotatePrice(ctx context.Context, tx *sql.Tx, d model.RawFinancialsDelta, at string) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE instrument_prices SET obsoleted_at = ?
		WHERE instrument_id = ? AND obsoleted_at IS NULL
	`, at, d.InstrumentID)
	if err != nil {
		return fmt.Errorf("apply reports delta: obsolete price: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO instrument_prices
		(id, instrument_id, price_per_share, share_count, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, d.PriceID, d.InstrumentID, d.PricePerShare.String(), d.ShareCount.String(), at)
	if err != nil {
		return fmt.Errorf("apply reports delta: insert price: %w", err)
	}
	return nil
}

// IgnoreReports marks reports as ignored (not current, no manual check) and
// emits a raw-data-changed event, atomically. Callers validate the request
// first; a report that is not current fails with ErrStale.
func (s *Store) IgnoreReports(ctx context.Context, instrumentID uint64, ids []uint64, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("ignore reports: begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, id := range ids {
		res, err := tx.ExecContext(ctx, `
			UPDATE raw_reports
			SET ignore_report = 1, is_current = 0, check_manually = 0
			WHERE id = ? AND instrument_id = ? AND is_current = 1
		`, id, instrumentID)
		if err != nil {
			return fmt.Errorf("ignore reports: %d: %w", id, err)
		}
		if err := expectOneRow(res, "ignore reports", id); err != nil {
			return err
		}
	}

	if err := insertEvent(ctx, tx, instrumentID, EventReportsIgnored, formatTime(at)); err != nil {
		return fmt.Errorf("ignore reports: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("ignore reports: commit: %w", err)
	}
	return nil
}

func insertEvent(ctx context.Context, tx *sql.Tx, instrumentID uint64, reason, at string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO raw_data_events (instrument_id, reason, created_at)
		VALUES (?, ?, ?)
	`, instrumentID, reason, at)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// LoadRawDataEvents returns the instrument's raw-data-changed events in
// emission order.
func (s *Store) LoadRawDataEvents(ctx context.Context, instrumentID uint64) ([]RawDataEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, instrument_id, reason, created_at
		FROM raw_data_events
		WHERE instrument_id = ?
		ORDER BY seq ASC
	`, instrumentID)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := []RawDataEvent{}
	for rows.Next() {
		var (
			ev        RawDataEvent
			createdAt string
		)
		if err := rows.Scan(&ev.Seq, &ev.InstrumentID, &ev.Reason, &createdAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if ev.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("scan event %d: %w", ev.Seq, err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// LoadCurrentPrice returns the instrument's latest price snapshot. found is
// false if the instrument has never been fetched.
func (s *Store) LoadCurrentPrice(ctx context.Context, instrumentID uint64) (p PriceSnapshot, found bool, err error) {
	var price, shares, createdAt string
	err = s.db.QueryRowContext(ctx, `
		SELECT id, instrument_id, price_per_share, share_count, created_at
		FROM instrument_prices
		WHERE instrument_id = ? AND obsoleted_at IS NULL
	`, instrumentID).Scan(&p.ID, &p.InstrumentID, &price, &shares, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return PriceSnapshot{}, false, nil
	}
	if err != nil {
		return PriceSnapshot{}, false, fmt.Errorf("load current price: %w", err)
	}
	if p.PricePerShare, err = parseDecimal(price); err != nil {
		return PriceSnapshot{}, false, fmt.Errorf("load current price: %w", err)
	}
	if p.ShareCount, err = parseDecimal(shares); err != nil {
		return PriceSnapshot{}, false, fmt.Errorf("load current price: %w", err)
	}
	if p.CreatedAt, err = parseTime(createdAt); err != nil {
		return PriceSnapshot{}, false, fmt.Errorf("load current price: %w", err)
	}
	return p, true, nil
}

// scanReport scans a single raw_reports row selected with reportColumns.
func scanReport(rows *sql.Rows) (model.RawReport, error) {
	var (
		r                                  model.RawReport
		reportType, period                 int
		reportDate, data, createdAt        string
		obsoletedAt                        sql.NullString
		isCurrent, checkManually, isIgnore int
	)
	err := rows.Scan(
		&r.ID,
		&r.InstrumentID,
		&reportType,
		&period,
		&reportDate,
		&data,
		&createdAt,
		&obsoletedAt,
		&isCurrent,
		&checkManually,
		&isIgnore,
	)
	if err != nil {
		return model.RawReport{}, fmt.Errorf("scan report: %w", err)
	}

	r.Type = model.ReportType(reportType)
	r.Period = model.ReportPeriodType(period)
	r.IsCurrent = isCurrent != 0
	r.CheckManually = checkManually != 0
	r.IgnoreReport = isIgnore != 0

	if r.ReportDate, err = parseDate(reportDate); err != nil {
		return model.RawReport{}, fmt.Errorf("scan report %d: %w", r.ID, err)
	}
	if r.Data, err = unmarshalReportData(data); err != nil {
		return model.RawReport{}, fmt.Errorf("scan report %d: %w", r.ID, err)
	}
	if r.CreatedAt, err = parseTime(createdAt); err != nil {
		return model.RawReport{}, fmt.Errorf("scan report %d: %w", r.ID, err)
	}
	if r.ObsoletedAt, err = parseNullTime(obsoletedAt); err != nil {
		return model.RawReport{}, fmt.Errorf("scan report %d: %w", r.ID, err)
	}
	return r, nil
}
