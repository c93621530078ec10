package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ReportType identifies the financial statement a report belongs to.
type ReportType int

const (
	ReportTypeUnknown ReportType = iota
	ReportTypeCashFlow
	ReportTypeIncomeStatement
	ReportTypeBalanceSheet
)

var reportTypeNames = map[ReportType]string{
	ReportTypeCashFlow:        "CashFlow",
	ReportTypeIncomeStatement: "IncomeStatement",
	ReportTypeBalanceSheet:    "BalanceSheet",
}

func (t ReportType) String() string {
	if name, ok := reportTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("ReportType(%d)", int(t))
}

// ParseReportType parses a report type name, case-insensitively.
func ParseReportType(s string) (ReportType, error) {
	for t, name := range reportTypeNames {
		if strings.EqualFold(name, strings.TrimSpace(s)) {
			return t, nil
		}
	}
	return ReportTypeUnknown, fmt.Errorf("unknown report type %q", s)
}

// ReportPeriodType identifies the period a report covers.
type ReportPeriodType int

const (
	ReportPeriodUnknown ReportPeriodType = iota
	ReportPeriodAnnual
	ReportPeriodQuarterly
	ReportPeriodSemiAnnual
)

var reportPeriodNames = map[ReportPeriodType]string{
	ReportPeriodAnnual:     "Annual",
	ReportPeriodQuarterly:  "Quarterly",
	ReportPeriodSemiAnnual: "SemiAnnual",
}

func (p ReportPeriodType) String() string {
	if name, ok := reportPeriodNames[p]; ok {
		return name
	}
	return fmt.Sprintf("ReportPeriodType(%d)", int(p))
}

// ParseReportPeriodType parses a period type name, case-insensitively.
func ParseReportPeriodType(s string) (ReportPeriodType, error) {
	for p, name := range reportPeriodNames {
		if strings.EqualFold(name, strings.TrimSpace(s)) {
			return p, nil
		}
	}
	return ReportPeriodUnknown, fmt.Errorf("unknown report period type %q", s)
}

// DateLayout is the layout of report dates in keys and on the wire.
const DateLayout = "2006-01-02"

// ReportKey groups the versions of one report: at most one of them is
// current and not ignored unless a conflict awaits manual resolution.
type ReportKey struct {
	Type   ReportType
	Period ReportPeriodType
	Date   string // DateLayout
}

func (k ReportKey) String() string {
	return fmt.Sprintf("%s/%s/%s", k.Type, k.Period, k.Date)
}

// NewReportKey builds a key from a report date.
func NewReportKey(t ReportType, p ReportPeriodType, date time.Time) ReportKey {
	return ReportKey{Type: t, Period: p, Date: date.UTC().Format(DateLayout)}
}

// RawReport is one stored version of a report.
type RawReport struct {
	ID            uint64           `json:"id"`
	InstrumentID  uint64           `json:"instrument_id"`
	Type          ReportType       `json:"report_type"`
	Period        ReportPeriodType `json:"report_period_type"`
	ReportDate    time.Time        `json:"report_date"`
	Data          RawReportData    `json:"data"`
	CreatedAt     time.Time        `json:"created_at"`
	ObsoletedAt   *time.Time       `json:"obsoleted_at,omitempty"`
	IsCurrent     bool             `json:"is_current"`
	CheckManually bool             `json:"check_manually"`
	IgnoreReport  bool             `json:"ignore_report"`
}

// Key returns the report's grouping key.
func (r RawReport) Key() ReportKey {
	return NewReportKey(r.Type, r.Period, r.ReportDate)
}

// ScrapedReport is one report object produced by the fetcher.
// Invalid is set when the source object was malformed; such reports, and
// reports without a date, are skipped by the delta engine.
type ScrapedReport struct {
	Type          ReportType
	Period        ReportPeriodType
	ReportDate    *time.Time
	Data          RawReportData
	CheckManually bool
	Invalid       bool
	InvalidReason string
}

// Key returns the report's grouping key. It must only be called when
// ReportDate is set.
func (s ScrapedReport) Key() ReportKey {
	return NewReportKey(s.Type, s.Period, *s.ReportDate)
}

// InstrumentFinancials is everything a single instrument fetch returns.
type InstrumentFinancials struct {
	Reports       []ScrapedReport
	PricePerShare decimal.Decimal
	ShareCount    decimal.Decimal
}

// ReportUpdate rewrites the payload of an existing report in place.
type ReportUpdate struct {
	ReportID      uint64
	Data          RawReportData
	CheckManually bool
}

// RawFinancialsDelta describes the storage changes produced by one scrape of
// one instrument. It is computed in full before anything is written and is
// applied as a single atomic batch.
type RawFinancialsDelta struct {
	InstrumentID  uint64
	Inserts       []RawReport
	Obsoletes     []uint64
	Updates       []ReportUpdate
	PricePerShare decimal.Decimal
	ShareCount    decimal.Decimal
	PriceID       uint64
	ComputedAt    time.Time
}

// HasReportChanges reports whether applying the delta changes any report,
// which is when a raw-data-changed event must be emitted.
func (d RawFinancialsDelta) HasReportChanges() bool {
	return len(d.Inserts) > 0 || len(d.Obsoletes) > 0 || len(d.Updates) > 0
}

// IgnoreRequest is an operator's resolution of a duplicate report: keep
// KeepID, ignore IgnoreIDs. All ids must belong to InstrumentID.
type IgnoreRequest struct {
	InstrumentID uint64   `json:"instrument_id"`
	KeepID       uint64   `json:"keep_id"`
	IgnoreIDs    []uint64 `json:"ignore_ids"`
}

// Deduplicated returns a copy of r with repeated IgnoreIDs dropped, keeping
// the first occurrence of each.
func (r IgnoreRequest) Deduplicated() IgnoreRequest {
	seen := make(map[uint64]struct{}, len(r.IgnoreIDs))
	ids := make([]uint64, 0, len(r.IgnoreIDs))
	for _, id := range r.IgnoreIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	r.IgnoreIDs = ids
	return r
}
