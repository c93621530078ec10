package consistency

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fincollect/internal/model"
)

func report(id uint64, year int, current bool) model.RawReport {
	return model.RawReport{
		ID:           id,
		InstrumentID: 7,
		Type:         model.ReportTypeIncomeStatement,
		Period:       model.ReportPeriodAnnual,
		ReportDate:   time.Date(year, 12, 31, 0, 0, 0, 0, time.UTC),
		IsCurrent:    current,
	}
}

func request(keep uint64, ignore ...uint64) model.IgnoreRequest {
	return model.IgnoreRequest{InstrumentID: 7, KeepID: keep, IgnoreIDs: ignore}
}

func TestValidate(t *testing.T) {
	threeCurrent := []model.RawReport{
		report(1, 2020, true),
		report(2, 2020, true),
		report(3, 2020, true),
	}
	withHistory := []model.RawReport{
		report(1, 2020, true),
		report(2, 2020, true),
		report(3, 2020, false),
		report(4, 2021, true),
	}

	tests := []struct {
		name    string
		reports []model.RawReport
		req     model.IgnoreRequest
		code    ErrorCode
		ids     []uint64
	}{
		{
			name:    "keep one ignore the rest",
			reports: threeCurrent,
			req:     request(1, 2, 3),
		},
		{
			name:    "non-current siblings need not be listed",
			reports: withHistory,
			req:     request(1, 2),
		},
		{
			name:    "duplicate ignore ids count once",
			reports: withHistory,
			req:     request(1, 2, 2),
		},
		{
			name:    "current report neither kept nor ignored",
			reports: threeCurrent,
			req:     request(1, 2),
			code:    ErrCodeCurrentNeitherKeptNorIgnored,
			ids:     []uint64{3},
		},
		{
			name:    "keep not found",
			reports: threeCurrent,
			req:     request(9, 2, 3),
			code:    ErrCodeKeepNotFound,
			ids:     []uint64{9},
		},
		{
			name:    "keep not current",
			reports: withHistory,
			req:     request(3, 1, 2),
			code:    ErrCodeKeepNotCurrent,
			ids:     []uint64{3},
		},
		{
			name:    "keep also ignored",
			reports: threeCurrent,
			req:     request(1, 1, 2, 3),
			code:    ErrCodeKeepAlsoIgnored,
			ids:     []uint64{1},
		},
		{
			name:    "ignored report not current",
			reports: withHistory,
			req:     request(1, 2, 3),
			code:    ErrCodeIgnoredNotCurrent,
			ids:     []uint64{3},
		},
		{
			name:    "ignored id belongs to another key",
			reports: withHistory,
			req:     request(1, 2, 4),
			code:    ErrCodeIgnoredNotFound,
			ids:     []uint64{4},
		},
		{
			name:    "ignored ids unknown",
			reports: threeCurrent,
			req:     request(1, 2, 3, 12, 11),
			code:    ErrCodeIgnoredNotFound,
			ids:     []uint64{11, 12},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.req, tt.reports)
			if tt.code == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			var ce *Error
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.code, ce.Code)
			assert.Equal(t, tt.ids, ce.ReportIDs)
			assert.Equal(t, uint64(7), ce.InstrumentID)
		})
	}
}

func TestValidate_IgnoredReportCountsAsNotCurrent(t *testing.T) {
	ignored := report(2, 2020, true)
	ignored.IgnoreReport = true

	err := Validate(request(2, 1), []model.RawReport{report(1, 2020, true), ignored})

	assert.Equal(t, ErrCodeKeepNotCurrent, CodeOf(err))
}

func TestError_Wrapped(t *testing.T) {
	err := fmt.Errorf("resolve: %w", Validate(request(1, 2), []model.RawReport{
		report(1, 2020, true), report(2, 2020, true), report(3, 2020, true),
	}))

	assert.True(t, IsConsistencyError(err))
	assert.Equal(t, ErrCodeCurrentNeitherKeptNorIgnored, CodeOf(err))
	assert.Contains(t, err.Error(), "found current report neither kept nor ignored")
	assert.False(t, IsConsistencyError(fmt.Errorf("plain")))
	assert.Equal(t, ErrorCode(""), CodeOf(nil))
}
