package session

import (
	"fmt"

	"github.com/roach88/sayquiz/internal/config"
	"github.com/roach88/sayquiz/internal/sequencer"
	"github.com/roach88/sayquiz/internal/vocab"
)

// Question is the snapshot of the entry being asked.
type Question struct {
	Entry vocab.Entry `json:"entry"`

	// AttemptsRemaining is copied from the settings on every load. Nothing
	// decrements it.
	AttemptsRemaining *int `json:"attempts_remaining,omitempty"`
}

// State is the complete session state. It is a value: Transition returns a
// new State and never mutates its input.
type State struct {
	Phase Phase `json:"phase"`

	// Previous is the phase PAUSED preempted. Non-nil iff Phase is PAUSED.
	Previous *Phase `json:"previous,omitempty"`

	SessionID string          `json:"session_id,omitempty"`
	Settings  config.Settings `json:"settings"`
	Queue     sequencer.Queue `json:"queue,omitempty"`
	Index     int             `json:"index"`

	// Current is non-nil exactly while a question is on screen.
	Current *Question `json:"current,omitempty"`

	// held keeps the question across a pause.
	held *Question

	Score     int  `json:"score"`
	Completed bool `json:"completed"`

	// StreamID is the recognition stream results are accepted from. Empty
	// when no stream should be running.
	StreamID string `json:"stream_id,omitempty"`

	// Transcript is the live transcript for display.
	Transcript string `json:"transcript,omitempty"`
}

// Initial returns the MENU state.
func Initial() State {
	return State{Phase: PhaseMenu}
}

// Started reports whether a session is in progress.
func (s State) Started() bool {
	return s.Phase != PhaseMenu
}

// Effective returns the phase the session is logically in: the preempted
// phase while paused, else Phase.
func (s State) Effective() Phase {
	if s.Phase == PhasePaused && s.Previous != nil {
		return *s.Previous
	}
	return s.Phase
}

// IsLast reports whether the current index is the final queue position.
func (s State) IsLast() bool {
	return s.Queue.IsLast(s.Index)
}

// ScoreFraction is score over queue length, for progress display.
func (s State) ScoreFraction() float64 {
	if len(s.Queue) == 0 {
		return 0
	}
	return float64(s.Score) / float64(len(s.Queue))
}

// clone copies the slices and pointers a transition may replace.
func (s State) clone() State {
	c := s
	c.Queue = s.Queue.Clone()
	if s.Previous != nil {
		p := *s.Previous
		c.Previous = &p
	}
	return c
}

// Check verifies the state invariants and returns the first violation.
func (s State) Check() error {
	if s.Phase == PhaseMenu {
		if s.Current != nil || s.Score != 0 || len(s.Queue) != 0 {
			return fmt.Errorf("menu state carries session data")
		}
		return nil
	}
	if len(s.Queue) == 0 {
		return fmt.Errorf("phase %s with empty queue", s.Phase)
	}
	if s.Index < 0 || s.Index >= len(s.Queue) {
		return fmt.Errorf("index %d out of range [0, %d)", s.Index, len(s.Queue))
	}
	if s.Score < 0 || s.Score > len(s.Queue) {
		return fmt.Errorf("score %d out of range [0, %d]", s.Score, len(s.Queue))
	}
	if s.Phase.showsQuestion() != (s.Current != nil) {
		return fmt.Errorf("phase %s with current question set=%v", s.Phase, s.Current != nil)
	}
	if (s.Phase == PhasePaused) != (s.Previous != nil) {
		return fmt.Errorf("phase %s with previous phase set=%v", s.Phase, s.Previous != nil)
	}
	if s.StreamID != "" && s.Phase != PhaseQuestion {
		return fmt.Errorf("recognition stream open in phase %s", s.Phase)
	}
	return nil
}
