package session

import (
	"github.com/roach88/sayquiz/internal/config"
	"github.com/roach88/sayquiz/internal/recognition"
)

// EventKind names an input to the machine.
type EventKind string

const (
	EventStart            EventKind = "start"
	EventRecognition      EventKind = "recognition"
	EventRecognitionError EventKind = "recognition_error"
	EventTimeWarning      EventKind = "time_warning"
	EventTimeout          EventKind = "timeout"
	EventSkip             EventKind = "skip"
	EventPause            EventKind = "pause"
	EventResume           EventKind = "resume"
	EventAdvance          EventKind = "advance"
	EventReview           EventKind = "review"
	EventNavigate         EventKind = "navigate"
	EventHome             EventKind = "home"
	EventPlayAudio        EventKind = "play_audio"
	EventListen           EventKind = "listen"

	// EventCue asks for a follow-up cue once a previous one finished.
	EventCue EventKind = "cue"
)

// Event is one input. Only the fields relevant to Kind are set.
type Event struct {
	Kind EventKind `json:"kind"`

	Settings    *config.Settings        `json:"settings,omitempty"`
	Recognition *recognition.Event      `json:"recognition,omitempty"`
	Error       *recognition.ErrorEvent `json:"error,omitempty"`
	Delta       int                     `json:"delta,omitempty"`
	Cue         string                  `json:"cue,omitempty"`
}

// Start builds a start event.
func Start(s config.Settings) Event {
	return Event{Kind: EventStart, Settings: &s}
}

// Heard wraps a recognition result.
func Heard(ev recognition.Event) Event {
	return Event{Kind: EventRecognition, Recognition: &ev}
}

// Failed wraps a recognition error.
func Failed(ev recognition.ErrorEvent) Event {
	return Event{Kind: EventRecognitionError, Error: &ev}
}

// Navigate builds a review navigation event.
func Navigate(delta int) Event {
	return Event{Kind: EventNavigate, Delta: delta}
}

// Simple builds an event that carries no payload.
func Simple(kind EventKind) Event {
	return Event{Kind: kind}
}

// isAsync reports whether kind originates from a collaborator rather than
// the learner. Async events that no longer apply are dropped silently.
func (k EventKind) isAsync() bool {
	switch k {
	case EventRecognition, EventRecognitionError, EventTimeWarning, EventTimeout, EventCue:
		return true
	}
	return false
}
