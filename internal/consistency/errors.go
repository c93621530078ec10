package consistency

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes a rejected conflict resolution.
type ErrorCode string

const (
	// ErrCodeKeepNotFound indicates the report to keep does not exist for
	// the instrument.
	ErrCodeKeepNotFound ErrorCode = "KEEP_NOT_FOUND"

	// ErrCodeKeepNotCurrent indicates the report to keep is not current.
	ErrCodeKeepNotCurrent ErrorCode = "KEEP_NOT_CURRENT"

	// ErrCodeKeepAlsoIgnored indicates the report to keep is also listed to
	// ignore.
	ErrCodeKeepAlsoIgnored ErrorCode = "KEEP_ALSO_IGNORED"

	// ErrCodeCurrentNeitherKeptNorIgnored indicates another current report
	// shares the kept report's key but the request says nothing about it.
	ErrCodeCurrentNeitherKeptNorIgnored ErrorCode = "CURRENT_NEITHER_KEPT_NOR_IGNORED"

	// ErrCodeIgnoredNotCurrent indicates a report listed to ignore is not
	// current.
	ErrCodeIgnoredNotCurrent ErrorCode = "IGNORED_NOT_CURRENT"

	// ErrCodeIgnoredNotFound indicates ids listed to ignore that do not
	// match any report sharing the kept report's key.
	ErrCodeIgnoredNotFound ErrorCode = "IGNORED_NOT_FOUND"
)

// Error is a rejected resolution request. No mutation has happened when it
// is returned.
type Error struct {
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// InstrumentID identifies the affected instrument.
	InstrumentID uint64

	// ReportIDs lists the offending reports, if any.
	ReportIDs []uint64
}

func (e *Error) Error() string {
	if len(e.ReportIDs) > 0 {
		return fmt.Sprintf("%s: %s (instrument=%d, reports=%v)", e.Code, e.Message, e.InstrumentID, e.ReportIDs)
	}
	return fmt.Sprintf("%s: %s (instrument=%d)", e.Code, e.Message, e.InstrumentID)
}

// IsConsistencyError returns true if err is or wraps a consistency Error.
func IsConsistencyError(err error) bool {
	var ce *Error
	return errors.As(err, &ce)
}

// CodeOf returns the code of a wrapped consistency Error, or "" if err is
// not one.
func CodeOf(err error) ErrorCode {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ""
}

func newError(code ErrorCode, instrumentID uint64, msg string, ids ...uint64) *Error {
	return &Error{
		Code:         code,
		Message:      msg,
		InstrumentID: instrumentID,
		ReportIDs:    ids,
	}
}
