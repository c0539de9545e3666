package harness

import (
	"fmt"

	"github.com/roach88/sayquiz/internal/session"
)

// Trace entry types.
const (
	TraceEvent  = "event"
	TraceSignal = "signal"
)

// TraceEntry is one journaled event or signal of a scenario run.
type TraceEntry struct {
	Seq  int64  `json:"seq"`
	Type string `json:"type"` // "event" or "signal"
	Kind string `json:"kind"`

	// Event fields.
	PhaseBefore string `json:"phase_before,omitempty"`
	PhaseAfter  string `json:"phase_after,omitempty"`
	Rejected    string `json:"rejected,omitempty"`

	// Signal is the decoded signal payload for signal entries.
	Signal *session.Signal `json:"signal,omitempty"`
}

// Name is the entry's assertion name, for example "event.skip" or
// "signal.matched".
func (e TraceEntry) Name() string {
	return e.Type + "." + e.Kind
}

// fields exposes the entry to trace_contains subset matching.
func (e TraceEntry) fields() map[string]string {
	f := map[string]string{"seq": fmt.Sprint(e.Seq)}
	if e.Type == TraceEvent {
		f["phase_before"] = e.PhaseBefore
		f["phase_after"] = e.PhaseAfter
		f["rejected"] = e.Rejected
		return f
	}
	if e.Signal != nil {
		f["phase"] = e.Signal.Phase.String()
		f["index"] = fmt.Sprint(e.Signal.Index)
		f["score"] = fmt.Sprint(e.Signal.Score)
		f["total"] = fmt.Sprint(e.Signal.Total)
		f["completed"] = fmt.Sprint(e.Signal.Completed)
		f["transcript"] = e.Signal.Transcript
	}
	return f
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass is true when every step and assertion held.
	Pass bool `json:"pass"`

	// Trace contains every journaled event and signal in seq order.
	Trace []TraceEntry `json:"trace"`

	// Errors contains step and assertion failures.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// State is the final session snapshot used by final_state assertions.
	State map[string]any `json:"state,omitempty"`

	// Cues lists every cue started, in order.
	Cues []string `json:"cues,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEntry{},
		Errors: []string{},
		State:  make(map[string]any),
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
