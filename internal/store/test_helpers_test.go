package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/roach88/fincollect/internal/model"
)

var testNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// createTestStore creates a new temp-dir store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestInstrument creates an instrument with minimal required fields.
func createTestInstrument(id uint64, company, symbol string) model.Instrument {
	return model.Instrument{
		ID: id,
		InstrumentKey: model.InstrumentKey{
			CompanySymbol:    company,
			InstrumentSymbol: symbol,
			Exchange:         "BVB",
		},
		CompanyName:    company + " SA",
		InstrumentName: symbol,
		CreatedAt:      testNow,
	}
}

// seedInstrument stores an instrument or fails the test.
func seedInstrument(t *testing.T, s *Store, inst model.Instrument) {
	t.Helper()
	if err := s.ApplyInstrumentListChanges(context.Background(), []model.Instrument{inst}, nil, testNow); err != nil {
		t.Fatalf("seed instrument: %v", err)
	}
}

func reportData(kv ...any) model.RawReportData {
	m := make(map[string]decimal.Decimal, len(kv)/2)
	for i := 0; i < len(kv); i += 2 {
		m[kv[i].(string)] = decimal.RequireFromString(kv[i+1].(string))
	}
	return model.NewRawReportData(m)
}

// createTestReport creates a current annual balance sheet report.
func createTestReport(id, instrumentID uint64, year int, data model.RawReportData) model.RawReport {
	return model.RawReport{
		ID:           id,
		InstrumentID: instrumentID,
		Type:         model.ReportTypeBalanceSheet,
		Period:       model.ReportPeriodAnnual,
		ReportDate:   time.Date(year, 12, 31, 0, 0, 0, 0, time.UTC),
		Data:         data,
		CreatedAt:    testNow,
		IsCurrent:    true,
	}
}

func testDelta(instrumentID, priceID uint64) model.RawFinancialsDelta {
	return model.RawFinancialsDelta{
		InstrumentID:  instrumentID,
		PricePerShare: decimal.RequireFromString("0.4820"),
		ShareCount:    decimal.NewFromInt(7_000_000_000),
		PriceID:       priceID,
		ComputedAt:    testNow,
	}
}
