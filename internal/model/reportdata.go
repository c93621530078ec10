package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// RawReportData is the field -> value map of one report.
// Keys are normalized with NormalizeKey; use NewRawReportData or Set to keep
// that invariant.
type RawReportData map[string]decimal.Decimal

// NormalizeKey returns the stored form of a report field key: trimmed, NFC
// normalized and upper case. Lookups against stored data must go through it.
func NormalizeKey(key string) string {
	// cases.Caser is stateful, so one per call.
	return cases.Upper(language.Und).String(norm.NFC.String(strings.TrimSpace(key)))
}

// NewRawReportData builds report data from arbitrary keys, normalizing them.
// When two keys normalize to the same form, the one sorting last wins so the
// result does not depend on map iteration order.
func NewRawReportData(values map[string]decimal.Decimal) RawReportData {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	d := make(RawReportData, len(values))
	for _, k := range keys {
		d.Set(k, values[k])
	}
	return d
}

// Set stores value under the normalized form of key.
func (d RawReportData) Set(key string, value decimal.Decimal) {
	d[NormalizeKey(key)] = value
}

// Get looks up the normalized form of key.
func (d RawReportData) Get(key string) (decimal.Decimal, bool) {
	v, ok := d[NormalizeKey(key)]
	return v, ok
}

// SortedKeys returns the keys in byte order for deterministic iteration.
func (d RawReportData) SortedKeys() []string {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Clone returns a copy that shares nothing with d.
func (d RawReportData) Clone() RawReportData {
	c := make(RawReportData, len(d))
	for k, v := range d {
		c[k] = v
	}
	return c
}

// Merge overlays fresh on top of d. Fresh values win on conflict; keys fresh
// is silent on survive. Neither input is modified.
func (d RawReportData) Merge(fresh RawReportData) RawReportData {
	merged := d.Clone()
	for k, v := range fresh {
		merged[k] = v
	}
	return merged
}

// HasChanges reports whether fresh carries anything d does not already hold:
// a key absent from d, or a key whose value differs. Keys present only in d
// are not changes.
func (d RawReportData) HasChanges(fresh RawReportData) bool {
	return !d.Merge(fresh).Equal(d)
}

// Revises reports whether fresh holds a different value for a key d already
// holds. Pure additions are not revisions.
func (d RawReportData) Revises(fresh RawReportData) bool {
	for k, v := range fresh {
		if old, ok := d[k]; ok && !old.Equal(v) {
			return true
		}
	}
	return false
}

// Equal reports whether both maps hold the same keys with numerically equal
// values.
func (d RawReportData) Equal(other RawReportData) bool {
	if len(d) != len(other) {
		return false
	}
	for k, v := range d {
		o, ok := other[k]
		if !ok || !o.Equal(v) {
			return false
		}
	}
	return true
}

// ParseRawReportData decodes a JSON object. Numeric members become report
// data under normalized keys; every other member (strings, date stamps,
// nested objects) is returned in extras untouched.
func ParseRawReportData(raw []byte) (RawReportData, map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, nil, fmt.Errorf("parse report data: %w", err)
	}
	if obj == nil {
		return nil, nil, fmt.Errorf("parse report data: not an object")
	}
	return splitNumeric(obj)
}

// RawReportDataFromObject is ParseRawReportData for an already decoded
// object. Numbers must have been decoded as json.Number.
func RawReportDataFromObject(obj map[string]any) (RawReportData, map[string]any, error) {
	return splitNumeric(obj)
}

func splitNumeric(obj map[string]any) (RawReportData, map[string]any, error) {
	numeric := make(map[string]decimal.Decimal, len(obj))
	extras := make(map[string]any)
	for k, v := range obj {
		n, ok := v.(json.Number)
		if !ok {
			extras[k] = v
			continue
		}
		d, err := decimal.NewFromString(n.String())
		if err != nil {
			return nil, nil, fmt.Errorf("parse report data: field %q: %w", k, err)
		}
		numeric[k] = d
	}
	return NewRawReportData(numeric), extras, nil
}

// IsEqual compares a stored report against a freshly scraped JSON object.
// Every numeric member of the fresh object must exist in the report with an
// equal value and vice versa; non-numeric members are ignored. Fresh keys are
// normalized before lookup.
//
// IsEqual is the entry point for callers holding raw JSON. The delta engine
// works on parsed data and compares with Merge and Equal directly.
func IsEqual(report RawReport, freshJSON []byte) (bool, error) {
	fresh, _, err := ParseRawReportData(freshJSON)
	if err != nil {
		return false, err
	}
	return report.Data.Equal(fresh), nil
}
