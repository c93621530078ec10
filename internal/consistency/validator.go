// Package consistency validates operator requests that resolve duplicate
// current reports.
//
// A conflict exists when several current reports share one
// (type, period, date) key. The operator resolves it by naming one report to
// keep and the others to ignore. Validate checks the request against the
// reports on file and either accepts it whole or rejects it with an *Error
// carrying a specific code. It never mutates anything; the caller applies
// the resolution only after Validate returns nil.
package consistency

import (
	"slices"

	"github.com/roach88/fincollect/internal/model"
)

// Validate checks req against every stored version of the instrument's
// reports. Ids listed more than once in IgnoreIDs count once.
func Validate(req model.IgnoreRequest, reports []model.RawReport) error {
	keep, ok := find(reports, req.KeepID)
	if !ok {
		return newError(ErrCodeKeepNotFound, req.InstrumentID, "report to keep not found", req.KeepID)
	}
	if !keep.IsCurrent || keep.IgnoreReport {
		return newError(ErrCodeKeepNotCurrent, req.InstrumentID, "report to keep is not current", req.KeepID)
	}

	pending := make(map[uint64]struct{}, len(req.IgnoreIDs))
	for _, id := range req.IgnoreIDs {
		pending[id] = struct{}{}
	}
	if _, ok := pending[keep.ID]; ok {
		return newError(ErrCodeKeepAlsoIgnored, req.InstrumentID, "report to keep is also listed to ignore", keep.ID)
	}

	key := keep.Key()
	for _, r := range reports {
		if r.ID == keep.ID || r.Key() != key {
			continue
		}
		current := r.IsCurrent && !r.IgnoreReport
		if _, listed := pending[r.ID]; listed {
			if !current {
				return newError(ErrCodeIgnoredNotCurrent, req.InstrumentID, "report listed to ignore is not current", r.ID)
			}
			delete(pending, r.ID)
			continue
		}
		if current {
			return newError(ErrCodeCurrentNeitherKeptNorIgnored, req.InstrumentID, "found current report neither kept nor ignored", r.ID)
		}
	}

	if len(pending) > 0 {
		leftover := make([]uint64, 0, len(pending))
		for id := range pending {
			leftover = append(leftover, id)
		}
		slices.Sort(leftover)
		return newError(ErrCodeIgnoredNotFound, req.InstrumentID, "reports listed to ignore not found for the kept report's key", leftover...)
	}
	return nil
}

func find(reports []model.RawReport, id uint64) (model.RawReport, bool) {
	for _, r := range reports {
		if r.ID == id {
			return r, true
		}
	}
	return model.RawReport{}, false
}
