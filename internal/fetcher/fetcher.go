// Package fetcher retrieves the instrument directory and per-instrument
// financials from the exchange data source.
//
// HTTPFetcher talks to a JSON HTTP endpoint under a shared rate limit. The
// payloads are parsed tolerantly: a malformed report is marked invalid and
// skipped downstream rather than failing the whole fetch.
package fetcher

import (
	"context"

	"github.com/roach88/fincollect/internal/model"
)

// Fetcher is the collector's view of the data source.
type Fetcher interface {
	// FetchDirectory returns every instrument currently listed.
	FetchDirectory(ctx context.Context) (model.DirectorySnapshot, error)

	// FetchInstrumentData returns the scraped reports, price and share
	// count of one instrument.
	FetchInstrumentData(ctx context.Context, key model.InstrumentKey) (model.InstrumentFinancials, error)
}
