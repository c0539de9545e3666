package session

import (
	"errors"
	"fmt"
)

// Error codes for TransitionError.
const (
	// ErrCodeInvalidPhase means the event does not apply to the current phase.
	ErrCodeInvalidPhase = "E_INVALID_PHASE"
	// ErrCodeStartRejected means the session could not be started.
	ErrCodeStartRejected = "E_START_REJECTED"
	// ErrCodeBadEvent means the event is missing its payload or unknown.
	ErrCodeBadEvent = "E_BAD_EVENT"
)

// TransitionError reports an event the machine refused. The state is left
// unchanged.
type TransitionError struct {
	Code  string
	Phase Phase
	Event EventKind
	Err   error
}

func (e *TransitionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s in phase %s: %v", e.Code, e.Event, e.Phase, e.Err)
	}
	return fmt.Sprintf("%s: %s in phase %s", e.Code, e.Event, e.Phase)
}

func (e *TransitionError) Unwrap() error {
	return e.Err
}

// IsInvalidPhase reports whether err is a TransitionError for an event that
// did not apply in the current phase.
func IsInvalidPhase(err error) bool {
	var te *TransitionError
	if errors.As(err, &te) {
		return te.Code == ErrCodeInvalidPhase
	}
	return false
}

// IsStartRejected reports whether err is a TransitionError for a refused
// session start. The cause is available through errors.As.
func IsStartRejected(err error) bool {
	var te *TransitionError
	if errors.As(err, &te) {
		return te.Code == ErrCodeStartRejected
	}
	return false
}
