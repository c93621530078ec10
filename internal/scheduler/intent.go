package scheduler

import (
	"fmt"

	"github.com/roach88/fincollect/internal/model"
)

// IntentKind distinguishes the actions an executor must perform.
type IntentKind int

const (
	// IntentFetchDirectory refreshes the instrument directory.
	IntentFetchDirectory IntentKind = iota + 1
	// IntentFetchInstrumentData fetches and merges one instrument's reports.
	IntentFetchInstrumentData
	// IntentPersistSchedulerState writes State durably.
	IntentPersistSchedulerState
	// IntentPersistCommonServiceState writes the service pause flag.
	IntentPersistCommonServiceState
	// IntentIgnoreRawReport validates and applies a conflict resolution.
	IntentIgnoreRawReport
)

var intentKindNames = map[IntentKind]string{
	IntentFetchDirectory:            "FetchDirectory",
	IntentFetchInstrumentData:       "FetchInstrumentData",
	IntentPersistSchedulerState:     "PersistSchedulerState",
	IntentPersistCommonServiceState: "PersistCommonServiceState",
	IntentIgnoreRawReport:           "IgnoreRawReport",
}

func (k IntentKind) String() string {
	if name, ok := intentKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("IntentKind(%d)", int(k))
}

// Intent is one action for the executor. Only the fields relevant to Kind
// are set.
type Intent struct {
	Kind   IntentKind
	Key    model.InstrumentKey  // FetchInstrumentData
	State  model.SchedulerState // PersistSchedulerState, a private copy
	Paused bool                 // PersistCommonServiceState
	Ignore model.IgnoreRequest  // IgnoreRawReport
}

func (i Intent) String() string {
	switch i.Kind {
	case IntentFetchInstrumentData:
		return fmt.Sprintf("%s(%s)", i.Kind, i.Key)
	case IntentPersistSchedulerState:
		return fmt.Sprintf("%s(paused=%t dir=%s instr=%s prev=%s)", i.Kind,
			i.State.IsPaused,
			formatTimePtr(i.State.NextFetchDirectoryAt),
			formatTimePtr(i.State.NextFetchInstrumentDataAt),
			i.State.PrevInstrumentKey)
	case IntentPersistCommonServiceState:
		return fmt.Sprintf("%s(paused=%t)", i.Kind, i.Paused)
	case IntentIgnoreRawReport:
		return fmt.Sprintf("%s(instrument=%d keep=%d ignore=%v)", i.Kind,
			i.Ignore.InstrumentID, i.Ignore.KeepID, i.Ignore.IgnoreIDs)
	default:
		return i.Kind.String()
	}
}

// Output is the result of processing one input.
type Output struct {
	Intents []Intent

	// ValidPriorityCount answers SetPriorityCompanies.
	ValidPriorityCount int

	// PriorityCompanies answers GetPriorityCompanies.
	PriorityCompanies []string
}

// Has reports whether the output contains an intent of the given kind.
func (o Output) Has(kind IntentKind) bool {
	for _, i := range o.Intents {
		if i.Kind == kind {
			return true
		}
	}
	return false
}
