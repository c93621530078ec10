package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/roach88/fincollect/internal/model"
)

const timeLayout = time.RFC3339Nano

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t.UTC(), nil
}

func formatNullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseNullTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid {
		return nil, nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func formatDate(t time.Time) string {
	return t.UTC().Format(model.DateLayout)
}

func parseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(model.DateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return t, nil
}

// marshalReportData converts report data to canonical JSON TEXT.
func marshalReportData(d model.RawReportData) (string, error) {
	if d == nil {
		d = model.RawReportData{}
	}
	data, err := json.Marshal(d)
	if err != nil {
		return "", fmt.Errorf("marshal report data: %w", err)
	}
	return string(data), nil
}

// unmarshalReportData parses canonical JSON TEXT. Numbers are decoded
// exactly, never through float64.
func unmarshalReportData(data string) (model.RawReportData, error) {
	if data == "" || data == "{}" {
		return model.RawReportData{}, nil
	}
	var d model.RawReportData
	if err := json.Unmarshal([]byte(data), &d); err != nil {
		return nil, fmt.Errorf("unmarshal report data: %w", err)
	}
	return d, nil
}

func parseDecimal(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse decimal %q: %w", s, err)
	}
	return d, nil
}
