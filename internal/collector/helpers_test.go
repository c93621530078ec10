package collector

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fincollect/internal/idalloc"
	"github.com/roach88/fincollect/internal/model"
	"github.com/roach88/fincollect/internal/registry"
	"github.com/roach88/fincollect/internal/store"
	"github.com/roach88/fincollect/internal/testutil"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixture struct {
	store    *store.Store
	registry *registry.Registry
	fetcher  *testutil.ScriptedFetcher
	clock    *testutil.ManualClock
	col      *Collector
}

// newFixture wires a collector over a temp-dir store. wrap, when given,
// decorates the store the collector writes through.
func newFixture(t *testing.T, wrap func(*store.Store) Store) *fixture {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	f := &fixture{
		store:    st,
		registry: registry.New(discardLogger()),
		fetcher:  testutil.NewScriptedFetcher(),
		clock:    testutil.NewManualClock(t0),
	}

	var writes Store = st
	if wrap != nil {
		writes = wrap(st)
	}
	ids := idalloc.New(st, idalloc.WithBlockSize(16), idalloc.WithLogger(discardLogger()))
	f.col = New(writes, f.registry, ids, f.fetcher,
		WithClock(f.clock),
		WithLogger(discardLogger()))
	return f
}

func instrument(company, symbol string) model.Instrument {
	return model.Instrument{
		InstrumentKey: model.InstrumentKey{
			CompanySymbol:    company,
			InstrumentSymbol: symbol,
			Exchange:         "BVB",
		},
		CompanyName:    company + " SA",
		InstrumentName: symbol,
	}
}

// loadDirectory runs one directory fetch of the given instruments.
func (f *fixture) loadDirectory(t *testing.T, instruments ...model.Instrument) {
	t.Helper()
	f.fetcher.QueueDirectory(instruments...)
	require.NoError(t, f.col.FetchDirectory(context.Background()))
}

func (f *fixture) lookup(t *testing.T, company, symbol string) model.Instrument {
	t.Helper()
	inst, ok := f.registry.Lookup(instrument(company, symbol).Key())
	require.True(t, ok, "%s/%s not registered", company, symbol)
	return inst
}

func reportData(kv ...any) model.RawReportData {
	m := make(map[string]decimal.Decimal, len(kv)/2)
	for i := 0; i < len(kv); i += 2 {
		m[kv[i].(string)] = decimal.RequireFromString(kv[i+1].(string))
	}
	return model.NewRawReportData(m)
}

func annual(year int, data model.RawReportData) model.ScrapedReport {
	d := time.Date(year, 12, 31, 0, 0, 0, 0, time.UTC)
	return model.ScrapedReport{
		Type:       model.ReportTypeBalanceSheet,
		Period:     model.ReportPeriodAnnual,
		ReportDate: &d,
		Data:       data,
	}
}

func financials(price string, reports ...model.ScrapedReport) model.InstrumentFinancials {
	return model.InstrumentFinancials{
		Reports:       reports,
		PricePerShare: decimal.RequireFromString(price),
		ShareCount:    decimal.NewFromInt(1_000_000),
	}
}

// seedConflict stores two current versions of the same report for inst,
// ids 1000 and 1001.
func seedConflict(t *testing.T, st *store.Store, inst model.Instrument) {
	t.Helper()
	date := time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC)
	version := func(id uint64, assets string) model.RawReport {
		return model.RawReport{
			ID:           id,
			InstrumentID: inst.ID,
			Type:         model.ReportTypeBalanceSheet,
			Period:       model.ReportPeriodAnnual,
			ReportDate:   date,
			Data:         reportData("TOTAL ASSETS", assets),
			CreatedAt:    t0,
			IsCurrent:    true,
		}
	}
	err := st.ApplyReportsDelta(context.Background(), model.RawFinancialsDelta{
		InstrumentID:  inst.ID,
		Inserts:       []model.RawReport{version(1000, "10"), version(1001, "11")},
		PricePerShare: decimal.NewFromInt(1),
		ShareCount:    decimal.NewFromInt(1),
		PriceID:       1002,
		ComputedAt:    t0,
	})
	require.NoError(t, err)
}

func currentIDs(t *testing.T, st *store.Store, instrumentID uint64) []uint64 {
	t.Helper()
	reports, err := st.LoadCurrentReports(context.Background(), instrumentID)
	require.NoError(t, err)
	ids := make([]uint64, 0, len(reports))
	for _, r := range reports {
		ids = append(ids, r.ID)
	}
	return ids
}

func eventReasons(t *testing.T, st *store.Store, instrumentID uint64) []string {
	t.Helper()
	events, err := st.LoadRawDataEvents(context.Background(), instrumentID)
	require.NoError(t, err)
	reasons := make([]string, 0, len(events))
	for _, e := range events {
		reasons = append(reasons, e.Reason)
	}
	return reasons
}
