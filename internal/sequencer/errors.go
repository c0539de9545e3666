package sequencer

import (
	"errors"
	"fmt"
)

// InsufficientDataError is returned when more unique samples are requested
// than the dataset holds.
type InsufficientDataError struct {
	Requested int
	Available int
}

// Error implements the error interface.
func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data: requested %d questions, dataset has %d", e.Requested, e.Available)
}

// InvalidSkipError is returned when the question at Index cannot be deferred.
// Skipping the last queue position is meaningless since there is nothing to
// defer it behind.
type InvalidSkipError struct {
	Index  int
	Length int
}

// Error implements the error interface.
func (e *InvalidSkipError) Error() string {
	return fmt.Sprintf("cannot skip question at index %d of %d", e.Index, e.Length)
}

// IsInsufficientData reports whether err is, or wraps, an InsufficientDataError.
func IsInsufficientData(err error) bool {
	var ie *InsufficientDataError
	return errors.As(err, &ie)
}

// IsInvalidSkip reports whether err is, or wraps, an InvalidSkipError.
func IsInvalidSkip(err error) bool {
	var se *InvalidSkipError
	return errors.As(err, &se)
}
