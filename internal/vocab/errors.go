package vocab

import (
	"errors"
	"fmt"
)

// Error codes for LoadError.
const (
	ErrCodeNotFound = "E_DATASET_NOT_FOUND"
	ErrCodeParse    = "E_DATASET_PARSE"
	ErrCodeSchema   = "E_DATASET_SCHEMA"
	ErrCodeEmpty    = "E_DATASET_EMPTY"
)

// LoadError reports why a dataset could not be loaded. A dataset that fails
// to load prevents a session from starting.
type LoadError struct {
	Code    string
	Message string
	Path    string
}

func (e *LoadError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s: %s", e.Path, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsLoadError reports whether err is a *LoadError with the given code.
// An empty code matches any LoadError.
func IsLoadError(err error, code string) bool {
	var le *LoadError
	if !errors.As(err, &le) {
		return false
	}
	return code == "" || le.Code == code
}
