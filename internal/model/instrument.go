package model

import (
	"cmp"
	"fmt"
	"time"
)

// InstrumentKey is the natural identity of an instrument before a durable id
// is assigned. Keys are ordered by company symbol, then instrument symbol,
// then exchange (ordinal string comparison).
type InstrumentKey struct {
	CompanySymbol    string `json:"company_symbol" yaml:"company_symbol"`
	InstrumentSymbol string `json:"instrument_symbol" yaml:"instrument_symbol"`
	Exchange         string `json:"exchange" yaml:"exchange"`
}

// Compare returns -1, 0 or +1 depending on whether k sorts before, equal to
// or after other.
func (k InstrumentKey) Compare(other InstrumentKey) int {
	if c := cmp.Compare(k.CompanySymbol, other.CompanySymbol); c != 0 {
		return c
	}
	if c := cmp.Compare(k.InstrumentSymbol, other.InstrumentSymbol); c != 0 {
		return c
	}
	return cmp.Compare(k.Exchange, other.Exchange)
}

// IsZero reports whether the key is the empty key.
func (k InstrumentKey) IsZero() bool {
	return k == InstrumentKey{}
}

func (k InstrumentKey) String() string {
	return fmt.Sprintf("%s/%s@%s", k.CompanySymbol, k.InstrumentSymbol, k.Exchange)
}

// Instrument is a tradable instrument known to the collector.
// Identity is ID; the key fields are immutable once created.
type Instrument struct {
	ID uint64 `json:"id"`
	InstrumentKey
	CompanyName    string     `json:"company_name"`
	InstrumentName string     `json:"instrument_name"`
	CreatedAt      time.Time  `json:"created_at"`
	ObsoletedAt    *time.Time `json:"obsoleted_at,omitempty"`
}

// Key returns the instrument's natural key.
func (i Instrument) Key() InstrumentKey {
	return i.InstrumentKey
}

// IsObsolete reports whether the instrument has been logically deleted.
func (i Instrument) IsObsolete() bool {
	return i.ObsoletedAt != nil
}

// DirectorySnapshot is one full directory listing as fetched from the
// exchange: company symbol -> instrument symbol -> candidate instrument.
// Candidates carry no id yet.
type DirectorySnapshot map[string]map[string]Instrument

// Add inserts a candidate into the snapshot, creating the company entry when
// needed.
func (d DirectorySnapshot) Add(i Instrument) {
	byInstrument, ok := d[i.CompanySymbol]
	if !ok {
		byInstrument = make(map[string]Instrument)
		d[i.CompanySymbol] = byInstrument
	}
	byInstrument[i.InstrumentSymbol] = i
}

// Len returns the number of instruments in the snapshot.
func (d DirectorySnapshot) Len() int {
	n := 0
	for _, byInstrument := range d {
		n += len(byInstrument)
	}
	return n
}
