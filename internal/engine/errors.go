package engine

import (
	"errors"
	"fmt"
)

// RuntimeError represents an error detected by the engine itself rather
// than a rejected transition.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeStopped indicates the engine no longer accepts events.
	ErrCodeStopped RuntimeErrorCode = "STOPPED"

	// ErrCodeMissingInput indicates an input event without a payload.
	ErrCodeMissingInput RuntimeErrorCode = "MISSING_INPUT"

	// ErrCodeUnknownEvent indicates a queue item of unknown type.
	ErrCodeUnknownEvent RuntimeErrorCode = "UNKNOWN_EVENT"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsStopped returns true if the error reports a stopped engine.
// Uses errors.As to handle wrapped errors.
func IsStopped(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeStopped
	}
	return false
}
