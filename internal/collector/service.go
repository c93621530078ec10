package collector

import (
	"context"
	"errors"
	"time"

	"github.com/roach88/fincollect/internal/engine"
	"github.com/roach88/fincollect/internal/model"
	"github.com/roach88/fincollect/internal/scheduler"
)

// Submitter is the engine surface the operator service needs.
// *engine.Engine implements it.
type Submitter interface {
	Submit(ctx context.Context, in scheduler.Input) (scheduler.Output, error)
	Now() time.Time
}

// Service is the operator surface of a running collector.
//
// Every call is processed as a scheduler input, which also runs any timers
// that are due. Failures of those unrelated fetches are logged by the engine
// and not reported to the operator; only the failure of the intent the call
// itself asked for is returned.
type Service struct {
	engine Submitter
}

// NewService creates a service driving e.
func NewService(e Submitter) *Service {
	return &Service{engine: e}
}

// SetPriorityCompanies replaces the priority queue and returns how many of
// the symbols resolve to a known instrument.
func (s *Service) SetPriorityCompanies(ctx context.Context, symbols []string) (int, error) {
	out, err := s.engine.Submit(ctx, scheduler.SetPriorityCompanies{
		Now:     s.engine.Now(),
		Symbols: append([]string(nil), symbols...),
	})
	if err := ownError(err); err != nil {
		return 0, err
	}
	return out.ValidPriorityCount, nil
}

// GetPriorityCompanies returns the pending priority symbols in order.
func (s *Service) GetPriorityCompanies(ctx context.Context) ([]string, error) {
	out, err := s.engine.Submit(ctx, scheduler.GetPriorityCompanies{Now: s.engine.Now()})
	if err := ownError(err); err != nil {
		return nil, err
	}
	return out.PriorityCompanies, nil
}

// PauseCollector pauses (true) or resumes (false) fetching. The flag is
// persisted before the call returns.
func (s *Service) PauseCollector(ctx context.Context, pause bool) error {
	_, err := s.engine.Submit(ctx, scheduler.PauseService{Now: s.engine.Now(), Pause: pause})
	return ownError(err, scheduler.IntentPersistCommonServiceState)
}

// ResolveConflictingReport keeps keepID and ignores ignoreIDs among the
// duplicate current reports of an instrument. A rejected request returns a
// *consistency.Error and changes nothing.
func (s *Service) ResolveConflictingReport(ctx context.Context, instrumentID, keepID uint64, ignoreIDs []uint64) error {
	_, err := s.engine.Submit(ctx, scheduler.IgnoreRawReport{
		Now: s.engine.Now(),
		Request: model.IgnoreRequest{
			InstrumentID: instrumentID,
			KeepID:       keepID,
			IgnoreIDs:    append([]uint64(nil), ignoreIDs...),
		},
	})
	return ownError(err, scheduler.IntentIgnoreRawReport)
}

// ownError filters a Submit error down to the failures of the given intent
// kinds. Errors that are not intent failures (engine stopped, context done)
// are always returned.
func ownError(err error, kinds ...scheduler.IntentKind) error {
	if err == nil {
		return nil
	}

	var errs []error
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		errs = joined.Unwrap()
	} else {
		errs = []error{err}
	}

	var own []error
	for _, e := range errs {
		var re *engine.RuntimeError
		if !errors.As(e, &re) || re.Code != engine.ErrCodeIntentFailed {
			own = append(own, e)
			continue
		}
		for _, k := range kinds {
			if re.Intent == k.String() {
				own = append(own, e)
				break
			}
		}
	}
	return errors.Join(own...)
}
