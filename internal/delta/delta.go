// Package delta computes the storage changes implied by a fresh scrape of one
// instrument's financial reports.
//
// Compute is pure: it takes the instrument's current reports and the scraped
// batch and returns a model.RawFinancialsDelta. Nothing is written until the
// caller applies the whole delta atomically.
//
// Per scraped report, keyed by (type, period, date):
//
//   - no date, or flagged invalid by the parser: skipped
//   - no current report for the key: insert as a new current report
//   - one current report and nothing new in the scrape: left alone
//   - one current report and only new fields: updated in place with the
//     merged data
//   - one current report and a different value for a stored field: the old
//     version is obsoleted and the merged data inserted as the new current
//     version, keeping history
//   - several current reports for the key: an unresolved conflict awaiting
//     the operator, skipped
//
// Stored fields the scrape is silent on always survive the merge. Reports on
// file whose key is absent from the scrape are never touched.
package delta

import (
	"log/slog"
	"time"

	"github.com/roach88/fincollect/internal/model"
)

// Engine computes report deltas.
type Engine struct {
	logger *slog.Logger
}

// New creates a delta engine.
func New(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{logger: logger}
}

// Compute diffs fetched against current for one instrument. current may
// contain non-current or ignored versions; they are disregarded. Inserted
// reports and the price snapshot carry zero ids for the caller to assign.
func (e *Engine) Compute(instrumentID uint64, current []model.RawReport, fetched model.InstrumentFinancials, now time.Time) model.RawFinancialsDelta {
	b := newBuilder(instrumentID, current, now)

	for _, s := range fetched.Reports {
		if s.Invalid {
			e.logger.Warn("skipping invalid scraped report",
				"instrument_id", instrumentID,
				"type", s.Type,
				"period", s.Period,
				"reason", s.InvalidReason)
			continue
		}
		if s.ReportDate == nil {
			e.logger.Debug("skipping scraped report without date",
				"instrument_id", instrumentID,
				"type", s.Type,
				"period", s.Period)
			continue
		}
		b.add(e.logger, s)
	}

	d := b.build()
	d.PricePerShare = fetched.PricePerShare
	d.ShareCount = fetched.ShareCount
	return d
}

type builder struct {
	instrumentID uint64
	now          time.Time
	current      map[model.ReportKey][]model.RawReport

	inserts     []model.RawReport
	insertIndex map[model.ReportKey]int
	obsoletes   []uint64
	obsoleted   map[uint64]bool
	updates     map[uint64]*model.ReportUpdate
	updateOrder []uint64
}

func newBuilder(instrumentID uint64, current []model.RawReport, now time.Time) *builder {
	byKey := make(map[model.ReportKey][]model.RawReport)
	for _, r := range current {
		if !r.IsCurrent || r.IgnoreReport {
			continue
		}
		byKey[r.Key()] = append(byKey[r.Key()], r)
	}
	return &builder{
		instrumentID: instrumentID,
		now:          now,
		current:      byKey,
		insertIndex:  make(map[model.ReportKey]int),
		obsoleted:    make(map[uint64]bool),
		updates:      make(map[uint64]*model.ReportUpdate),
	}
}

func (b *builder) add(logger *slog.Logger, s model.ScrapedReport) {
	key := s.Key()

	// A second scraped object for a key already inserted in this batch
	// folds into the pending insert.
	if idx, ok := b.insertIndex[key]; ok {
		ins := &b.inserts[idx]
		ins.Data = ins.Data.Merge(s.Data)
		ins.CheckManually = ins.CheckManually || s.CheckManually
		return
	}

	existing := b.current[key]
	switch len(existing) {
	case 0:
		b.insert(key, *s.ReportDate, s.Data.Clone(), s.CheckManually)
	case 1:
		b.compare(existing[0], s)
	default:
		logger.Warn("skipping report with unresolved conflict",
			"instrument_id", b.instrumentID,
			"report", key.String(),
			"current_versions", len(existing))
	}
}

func (b *builder) compare(old model.RawReport, s model.ScrapedReport) {
	base := old.Data
	if u, ok := b.updates[old.ID]; ok {
		base = u.Data
	}
	merged := base.Merge(s.Data)
	if merged.Equal(base) {
		return
	}

	checkManually := old.CheckManually || s.CheckManually
	if u, ok := b.updates[old.ID]; ok {
		checkManually = u.CheckManually || s.CheckManually
	}

	if !base.Revises(s.Data) {
		if u, ok := b.updates[old.ID]; ok {
			u.Data = merged
			u.CheckManually = checkManually
			return
		}
		b.updates[old.ID] = &model.ReportUpdate{
			ReportID:      old.ID,
			Data:          merged,
			CheckManually: checkManually,
		}
		b.updateOrder = append(b.updateOrder, old.ID)
		return
	}

	// Revision: supersede the stored version.
	delete(b.updates, old.ID)
	if !b.obsoleted[old.ID] {
		b.obsoleted[old.ID] = true
		b.obsoletes = append(b.obsoletes, old.ID)
	}
	b.insert(old.Key(), old.ReportDate, merged, checkManually)
}

func (b *builder) insert(key model.ReportKey, date time.Time, data model.RawReportData, checkManually bool) {
	b.insertIndex[key] = len(b.inserts)
	b.inserts = append(b.inserts, model.RawReport{
		InstrumentID:  b.instrumentID,
		Type:          key.Type,
		Period:        key.Period,
		ReportDate:    date.UTC(),
		Data:          data,
		CreatedAt:     b.now,
		IsCurrent:     true,
		CheckManually: checkManually,
	})
}

func (b *builder) build() model.RawFinancialsDelta {
	d := model.RawFinancialsDelta{
		InstrumentID: b.instrumentID,
		Inserts:      b.inserts,
		Obsoletes:    b.obsoletes,
		ComputedAt:   b.now,
	}
	for _, id := range b.updateOrder {
		if u, ok := b.updates[id]; ok {
			d.Updates = append(d.Updates, *u)
		}
	}
	return d
}
