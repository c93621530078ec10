package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fincollect/internal/model"
	"github.com/roach88/fincollect/internal/store"
)

var testNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// executeCommand runs the root command with args and returns stdout.
func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("FINCOLLECT_DB", "")
	t.Setenv("FINCOLLECT_BASE_URL", "")

	out := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func tempDB(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "test.db")
}

// withStore opens the database at path for seeding or inspection.
func withStore(t *testing.T, path string, fn func(ctx context.Context, st *store.Store)) {
	t.Helper()
	st, err := store.Open(path)
	require.NoError(t, err)
	defer st.Close()
	fn(context.Background(), st)
}

func testInstrument(id uint64, company string) model.Instrument {
	return model.Instrument{
		ID: id,
		InstrumentKey: model.InstrumentKey{
			CompanySymbol:    company,
			InstrumentSymbol: company,
			Exchange:         "BVB",
		},
		CompanyName: company + " SA",
		CreatedAt:   testNow,
	}
}

// seedConflict stores instrument 1 (TLV) with two current versions of the
// same report, ids 1000 and 1001.
func seedConflict(t *testing.T, path string) {
	t.Helper()
	withStore(t, path, func(ctx context.Context, st *store.Store) {
		require.NoError(t, st.ApplyInstrumentListChanges(ctx, []model.Instrument{testInstrument(1, "TLV")}, nil, testNow))

		date := time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC)
		version := func(id uint64, assets int64) model.RawReport {
			return model.RawReport{
				ID:           id,
				InstrumentID: 1,
				Type:         model.ReportTypeBalanceSheet,
				Period:       model.ReportPeriodAnnual,
				ReportDate:   date,
				Data:         model.NewRawReportData(map[string]decimal.Decimal{"TOTAL ASSETS": decimal.NewFromInt(assets)}),
				CreatedAt:    testNow,
				IsCurrent:    true,
			}
		}
		require.NoError(t, st.ApplyReportsDelta(ctx, model.RawFinancialsDelta{
			InstrumentID:  1,
			Inserts:       []model.RawReport{version(1000, 10), version(1001, 11)},
			PricePerShare: decimal.NewFromInt(1),
			ShareCount:    decimal.NewFromInt(1),
			PriceID:       1002,
			ComputedAt:    testNow,
		}))
	})
}
