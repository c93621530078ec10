package engine

import (
	"errors"
	"fmt"
)

// RuntimeError represents an error detected while driving the scheduler.
//
// Runtime errors include:
//   - Intent failed: the executor could not carry out an intent
//   - Queue closed: the engine stopped before the request was processed
//   - Invalid input: the request could not be enqueued at all
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// RunToken identifies the processing cycle, if one started.
	RunToken string

	// Intent names the failed intent (INTENT_FAILED only).
	Intent string

	// Err is the underlying cause, if any.
	Err error
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeIntentFailed indicates an intent could not be executed.
	ErrCodeIntentFailed RuntimeErrorCode = "INTENT_FAILED"

	// ErrCodeQueueClosed indicates the engine is not accepting requests.
	ErrCodeQueueClosed RuntimeErrorCode = "QUEUE_CLOSED"

	// ErrCodeInvalidInput indicates a malformed request.
	ErrCodeInvalidInput RuntimeErrorCode = "INVALID_INPUT"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.RunToken != "" && e.Intent != "" {
		msg = fmt.Sprintf("%s (run=%s, intent=%s)", msg, e.RunToken, e.Intent)
	} else if e.RunToken != "" {
		msg = fmt.Sprintf("%s (run=%s)", msg, e.RunToken)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// IsIntentError returns true if the error is an intent failure.
// Uses errors.As to handle wrapped errors.
func IsIntentError(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeIntentFailed
	}
	return false
}

// IsQueueClosed returns true if the engine refused or dropped the request
// because it stopped.
func IsQueueClosed(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeQueueClosed
	}
	return false
}

// NewIntentError creates a RuntimeError for a failed intent.
func NewIntentError(runToken, intent string, err error) *RuntimeError {
	return &RuntimeError{
		Code:     ErrCodeIntentFailed,
		Message:  "intent execution failed",
		RunToken: runToken,
		Intent:   intent,
		Err:      err,
	}
}

func newQueueClosedError() *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeQueueClosed,
		Message: "engine is not running",
	}
}

func newInvalidInputError(msg string) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeInvalidInput,
		Message: msg,
	}
}
