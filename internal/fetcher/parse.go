package fetcher

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/roach88/fincollect/internal/model"
)

type directoryPayload struct {
	Companies []struct {
		Symbol      string `json:"symbol"`
		Name        string `json:"name"`
		Instruments []struct {
			Symbol string `json:"symbol"`
			Name   string `json:"name"`
		} `json:"instruments"`
	} `json:"companies"`
}

// ParseDirectory decodes a directory listing for exchange. Entries without
// a symbol are dropped.
func ParseDirectory(raw []byte, exchange string) (model.DirectorySnapshot, error) {
	var p directoryPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("parse directory: %w", err)
	}

	snapshot := make(model.DirectorySnapshot)
	for _, c := range p.Companies {
		company := strings.TrimSpace(c.Symbol)
		if company == "" {
			continue
		}
		for _, i := range c.Instruments {
			symbol := strings.TrimSpace(i.Symbol)
			if symbol == "" {
				continue
			}
			snapshot.Add(model.Instrument{
				InstrumentKey: model.InstrumentKey{
					CompanySymbol:    company,
					InstrumentSymbol: symbol,
					Exchange:         exchange,
				},
				CompanyName:    strings.TrimSpace(c.Name),
				InstrumentName: strings.TrimSpace(i.Name),
			})
		}
	}
	return snapshot, nil
}

type financialsPayload struct {
	PricePerShare decimal.Decimal   `json:"price_per_share"`
	ShareCount    decimal.Decimal   `json:"share_count"`
	Reports       []json.RawMessage `json:"reports"`
}

// ParseFinancials decodes an instrument's financials. The envelope must be
// well formed; individual reports that are not are returned with Invalid
// set. A report without a date is returned with a nil ReportDate.
func ParseFinancials(raw []byte) (model.InstrumentFinancials, error) {
	var p financialsPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return model.InstrumentFinancials{}, fmt.Errorf("parse financials: %w", err)
	}

	fin := model.InstrumentFinancials{
		PricePerShare: p.PricePerShare,
		ShareCount:    p.ShareCount,
		Reports:       make([]model.ScrapedReport, 0, len(p.Reports)),
	}
	for _, r := range p.Reports {
		fin.Reports = append(fin.Reports, parseReport(r))
	}
	return fin, nil
}

func parseReport(raw json.RawMessage) model.ScrapedReport {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var obj map[string]any
	if err := dec.Decode(&obj); err != nil || obj == nil {
		return invalid(model.ScrapedReport{}, "report is not an object")
	}

	var s model.ScrapedReport
	typeName, _ := obj["type"].(string)
	t, err := model.ParseReportType(typeName)
	if err != nil {
		return invalid(s, err.Error())
	}
	s.Type = t

	periodName, _ := obj["period"].(string)
	p, err := model.ParseReportPeriodType(periodName)
	if err != nil {
		return invalid(s, err.Error())
	}
	s.Period = p

	s.CheckManually, _ = obj["check_manually"].(bool)

	switch d := obj["date"].(type) {
	case nil:
	case string:
		if strings.TrimSpace(d) != "" {
			date, err := parseReportDate(d)
			if err != nil {
				return invalid(s, err.Error())
			}
			s.ReportDate = &date
		}
	default:
		return invalid(s, "date is not a string")
	}

	values, ok := obj["values"].(map[string]any)
	if !ok {
		return invalid(s, "values is not an object")
	}
	data, _, err := model.RawReportDataFromObject(values)
	if err != nil {
		return invalid(s, err.Error())
	}
	s.Data = data
	return s
}

// parseReportDate accepts a plain date or a full RFC 3339 timestamp,
// keeping only the UTC calendar date.
func parseReportDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.ParseInLocation(model.DateLayout, s, time.UTC); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("unparseable report date %q", s)
	}
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
}

func invalid(s model.ScrapedReport, reason string) model.ScrapedReport {
	s.Invalid = true
	s.InvalidReason = reason
	return s
}
