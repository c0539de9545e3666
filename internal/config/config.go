// Package config holds the settings a quiz session is started with.
//
// Settings are fixed at session start. Resolve turns user-supplied values
// into concrete ones against a dataset size and rejects out-of-range input
// with a *ValidationError, in which case no session is started.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults and bounds used when a value is not supplied.
const (
	DefaultQuestionCount    = 20
	MinTimePerQuestion      = 5 * time.Second
	MaxTimePerQuestion      = 25 * time.Second
	DefaultTimePerQuestion  = 15 * time.Second
	DefaultWarningThreshold = 3 * time.Second
	DefaultPrefetchCount    = 3
	DefaultTickInterval     = 50 * time.Millisecond
)

// Settings configures one session.
type Settings struct {
	UseTimer bool `yaml:"use_timer"`

	// TimeAllowance is the pool shared by every question. Zero selects
	// DefaultTimePerQuestion times the question count.
	TimeAllowance time.Duration `yaml:"time_allowance,omitempty"`

	// QuestionCount is the queue length. Zero selects DefaultQuestionCount,
	// clamped to the dataset size.
	QuestionCount int `yaml:"question_count,omitempty"`

	// UseAllQuestions sets QuestionCount to the dataset size.
	UseAllQuestions bool `yaml:"use_all_questions,omitempty"`

	// WithReplacement samples the queue with independent draws, so
	// questions may repeat and QuestionCount may exceed the dataset size.
	WithReplacement bool `yaml:"with_replacement,omitempty"`

	// AttemptsPerQuestion is copied into each question snapshot. No rule
	// consumes it yet.
	AttemptsPerQuestion *int `yaml:"attempts_per_question,omitempty"`

	WarningThreshold time.Duration `yaml:"warning_threshold,omitempty"`
	PrefetchCount    int           `yaml:"prefetch_count,omitempty"`
	TickInterval     time.Duration `yaml:"tick_interval,omitempty"`
}

// Default returns the settings used when nothing is configured.
func Default() Settings {
	return Settings{UseTimer: true}
}

// ValidationError reports a setting outside its allowed range.
type ValidationError struct {
	Field string
	Value string
	Min   string
	Max   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %s: must be between %s and %s", e.Field, e.Value, e.Min, e.Max)
}

// IsValidationError reports whether err is a *ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// Resolve fills defaults and validates s against a dataset of datasetSize
// entries. The returned copy is fully concrete.
func (s Settings) Resolve(datasetSize int) (Settings, error) {
	if datasetSize <= 0 {
		return Settings{}, &ValidationError{Field: "dataset size", Value: fmt.Sprint(datasetSize), Min: "1", Max: "unbounded"}
	}

	r := s
	switch {
	case r.UseAllQuestions:
		r.QuestionCount = datasetSize
	case r.QuestionCount == 0:
		r.QuestionCount = min(DefaultQuestionCount, datasetSize)
	}

	maxCount := datasetSize
	if r.WithReplacement {
		maxCount = max(datasetSize, r.QuestionCount)
	}
	if r.QuestionCount < 1 || r.QuestionCount > maxCount {
		return Settings{}, &ValidationError{
			Field: "question_count",
			Value: fmt.Sprint(r.QuestionCount),
			Min:   "1",
			Max:   fmt.Sprint(maxCount),
		}
	}

	if r.UseTimer {
		lo := MinTimePerQuestion * time.Duration(r.QuestionCount)
		hi := MaxTimePerQuestion * time.Duration(r.QuestionCount)
		if r.TimeAllowance == 0 {
			r.TimeAllowance = DefaultTimePerQuestion * time.Duration(r.QuestionCount)
		}
		if r.TimeAllowance < lo || r.TimeAllowance > hi {
			return Settings{}, &ValidationError{
				Field: "time_allowance",
				Value: r.TimeAllowance.String(),
				Min:   lo.String(),
				Max:   hi.String(),
			}
		}
	}

	if r.AttemptsPerQuestion != nil && *r.AttemptsPerQuestion < 0 {
		return Settings{}, &ValidationError{Field: "attempts_per_question", Value: fmt.Sprint(*r.AttemptsPerQuestion), Min: "0", Max: "unbounded"}
	}
	if r.WarningThreshold <= 0 {
		r.WarningThreshold = DefaultWarningThreshold
	}
	if r.PrefetchCount <= 0 {
		r.PrefetchCount = DefaultPrefetchCount
	}
	if r.TickInterval <= 0 {
		r.TickInterval = DefaultTickInterval
	}

	return r, nil
}

// LoadFile reads settings from a YAML file, starting from Default.
// Unknown keys are rejected.
func LoadFile(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read settings file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML settings on top of Default.
func Parse(data []byte) (Settings, error) {
	s := Default()
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&s); err != nil {
		return Settings{}, fmt.Errorf("failed to parse settings: %w", err)
	}
	return s, nil
}
