package model

import "time"

// SchedulerState is the durable footprint of the collector scheduler.
//
// It is a value: the scheduler computes the next state as a new value and
// compares it with the previous one to decide whether a snapshot must be
// persisted. Timestamps are nil until first scheduled.
type SchedulerState struct {
	IsPaused                  bool          `json:"is_paused"`
	NextFetchDirectoryAt      *time.Time    `json:"next_fetch_directory_at,omitempty"`
	NextFetchInstrumentDataAt *time.Time    `json:"next_fetch_instrument_data_at,omitempty"`
	PrevInstrumentKey         InstrumentKey `json:"prev_instrument_key"`
}

// Equal reports whether two states are identical. Timestamps are compared by
// instant, not by location.
func (s SchedulerState) Equal(other SchedulerState) bool {
	return s.IsPaused == other.IsPaused &&
		equalTimePtr(s.NextFetchDirectoryAt, other.NextFetchDirectoryAt) &&
		equalTimePtr(s.NextFetchInstrumentDataAt, other.NextFetchInstrumentDataAt) &&
		s.PrevInstrumentKey == other.PrevInstrumentKey
}

// Clone returns a deep copy whose timestamp pointers are not shared with s.
func (s SchedulerState) Clone() SchedulerState {
	c := s
	c.NextFetchDirectoryAt = cloneTimePtr(s.NextFetchDirectoryAt)
	c.NextFetchInstrumentDataAt = cloneTimePtr(s.NextFetchInstrumentDataAt)
	return c
}

func equalTimePtr(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

func cloneTimePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
