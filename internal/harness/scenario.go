package harness

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/sayquiz/internal/config"
	"github.com/roach88/sayquiz/internal/vocab"
)

// Scenario defines a scripted quiz session.
// Steps drive the engine through simulated speech, timer ticks, cue
// completions and user controls. Assertions check the resulting trace and
// final state.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Seed selects a seeded random source for queue generation. Without a
	// seed every draw is 0, which makes the queue [1, 2, ..., n-1, 0].
	Seed *uint64 `yaml:"seed,omitempty"`

	// Dataset is a dataset file path, relative to the scenario file.
	Dataset string `yaml:"dataset,omitempty"`

	// Entries is an inline dataset, used when Dataset is empty.
	Entries []map[string]any `yaml:"entries,omitempty"`

	// Settings are used by start steps that carry none. Defaults apply when
	// omitted.
	Settings *config.Settings `yaml:"settings,omitempty"`

	// Steps run in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final trace and state.
	// Supported types: trace_contains, trace_order, trace_count,
	// final_state, cues_played
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one scripted action.
type Step struct {
	// Action names what to do, see the Action constants.
	Action string `yaml:"action"`

	// Text is the spoken transcript for say and interim, or the error
	// message for fail.
	Text string `yaml:"text,omitempty"`

	// After is how far the clock moves before a tick.
	After time.Duration `yaml:"after,omitempty"`

	// Cue selects the cue finish_cue completes.
	Cue string `yaml:"cue,omitempty"`

	// Code is the recognition error code for fail.
	Code string `yaml:"code,omitempty"`

	// Settings overrides the scenario settings for a start step.
	Settings *config.Settings `yaml:"settings,omitempty"`

	// ExpectError is the error code the step must fail with.
	ExpectError string `yaml:"expect_error,omitempty"`

	// Expect is checked against the state right after the step, with the
	// same keys as final_state.
	Expect map[string]any `yaml:"expect,omitempty"`
}

// Step actions.
const (
	ActionStart        = "start"
	ActionSay          = "say"
	ActionSayAnswer    = "say_answer"
	ActionInterim      = "interim"
	ActionNoSpeech     = "no_speech"
	ActionFail         = "fail"
	ActionTick         = "tick"
	ActionSkip         = "skip"
	ActionPause        = "pause"
	ActionResume       = "resume"
	ActionAdvance      = "advance"
	ActionReview       = "review"
	ActionPrev         = "prev"
	ActionNext         = "next"
	ActionHome         = "home"
	ActionAudio        = "audio"
	ActionListen       = "listen"
	ActionFinishCue    = "finish_cue"
	ActionCompleteCues = "complete_cues"
)

var knownActions = map[string]bool{
	ActionStart: true, ActionSay: true, ActionSayAnswer: true, ActionInterim: true,
	ActionNoSpeech: true, ActionFail: true, ActionTick: true, ActionSkip: true,
	ActionPause: true, ActionResume: true, ActionAdvance: true, ActionReview: true,
	ActionPrev: true, ActionNext: true, ActionHome: true, ActionAudio: true,
	ActionListen: true, ActionFinishCue: true, ActionCompleteCues: true,
}

// Assertion validates trace or final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "trace_contains": an entry named Name exists, matching Expect
	// - "trace_order": the entries in Names appear in order
	// - "trace_count": the entry named Name appears exactly Count times
	// - "final_state": the final state matches Expect
	// - "cues_played": the cues started are exactly Cues
	Type string `yaml:"type"`

	// Name is a trace entry name such as "signal.matched" or "event.skip".
	Name string `yaml:"name,omitempty"`

	// Names is the expected order (used by trace_order).
	Names []string `yaml:"names,omitempty"`

	// Expect holds the expected field values. Subset match.
	Expect map[string]any `yaml:"expect,omitempty"`

	// Count is the expected number of occurrences (used by trace_count).
	Count int `yaml:"count,omitempty"`

	// Cues is the expected cue sequence (used by cues_played).
	Cues []string `yaml:"cues,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
	AssertCuesPlayed    = "cues_played"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
// A relative dataset path is resolved against the scenario's directory.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	if scenario.Dataset != "" && !filepath.IsAbs(scenario.Dataset) {
		scenario.Dataset = filepath.Join(filepath.Dir(path), scenario.Dataset)
	}
	if scenario.Dataset != "" {
		if _, err := os.Stat(scenario.Dataset); os.IsNotExist(err) {
			return nil, fmt.Errorf("invalid scenario: dataset file not found: %s", scenario.Dataset)
		}
	}

	return scenario, nil
}

// ParseScenario decodes and validates a scenario. Dataset paths are left as
// written.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// LoadDataset returns the scenario's dataset, from its file or from the
// inline entries.
func (s *Scenario) LoadDataset() (*vocab.Dataset, error) {
	if s.Dataset != "" {
		return vocab.Load(s.Dataset)
	}
	data, err := json.Marshal(s.Entries)
	if err != nil {
		return nil, fmt.Errorf("encode inline entries: %w", err)
	}
	return vocab.Parse(data)
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.Dataset == "" && len(s.Entries) == 0 {
		return fmt.Errorf("dataset or entries is required")
	}
	if s.Dataset != "" && len(s.Entries) > 0 {
		return fmt.Errorf("dataset and entries are mutually exclusive")
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

func validateStep(index int, st *Step) error {
	if st.Action == "" {
		return fmt.Errorf("steps[%d]: action is required", index)
	}
	if !knownActions[st.Action] {
		return fmt.Errorf("steps[%d]: unknown action %q", index, st.Action)
	}

	switch st.Action {
	case ActionSay, ActionInterim:
		if st.Text == "" {
			return fmt.Errorf("steps[%d]: text is required for %s", index, st.Action)
		}
	case ActionFail:
		if st.Code == "" {
			return fmt.Errorf("steps[%d]: code is required for fail", index)
		}
	case ActionTick:
		if st.After < 0 {
			return fmt.Errorf("steps[%d]: after must be non-negative", index)
		}
	}
	if st.Settings != nil && st.Action != ActionStart {
		return fmt.Errorf("steps[%d]: settings only apply to start", index)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Name == "" {
			return fmt.Errorf("assertions[%d]: name is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Names) == 0 {
			return fmt.Errorf("assertions[%d]: names list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Name == "" {
			return fmt.Errorf("assertions[%d]: name is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalState:
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	case AssertCuesPlayed:
		if a.Cues == nil {
			return fmt.Errorf("assertions[%d]: cues is required for cues_played", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
