// Package recognition models the speech-recognition stream a quiz session
// listens to.
//
// A recognizer delivers Events on the stream it was started with. Each Event
// carries the full result list known so far and a ResultIndex marking the
// lowest entry that changed; entries before it are settled. Recognition is
// best effort: callers must tolerate late, duplicated, or stale events.
package recognition

import (
	"context"
	"fmt"
)

// Alternative is one ranked hypothesis for a result.
type Alternative struct {
	Transcript string  `json:"transcript"`
	Confidence float32 `json:"confidence,omitempty"`
}

// Result is one segment of recognized speech. Alternatives are ordered by
// rank; a result may have none.
type Result struct {
	Alternatives []Alternative `json:"alternatives"`
	IsFinal      bool          `json:"is_final"`
}

// Top returns the highest ranked transcript, or "" when there is none.
func (r Result) Top() string {
	if len(r.Alternatives) == 0 {
		return ""
	}
	return r.Alternatives[0].Transcript
}

// Event is a recognition update.
type Event struct {
	// StreamID identifies the recognition stream that produced the event.
	StreamID string `json:"stream_id"`

	// ResultIndex is the index of the lowest result that changed.
	ResultIndex int `json:"result_index"`

	// Results is every result known on the stream so far.
	Results []Result `json:"results"`
}

// Pending returns Results[ResultIndex:], clamped to the available range.
func (e Event) Pending() []Result {
	idx := max(e.ResultIndex, 0)
	if idx >= len(e.Results) {
		return nil
	}
	return e.Results[idx:]
}

// ErrorCode classifies recognition failures.
type ErrorCode string

const (
	// ErrNoSpeech means the stream ended without hearing speech. Callers
	// restart the stream.
	ErrNoSpeech ErrorCode = "no-speech"
	// ErrAborted means the stream was cancelled by the recognizer.
	ErrAborted ErrorCode = "aborted"
	// ErrAudioCapture means no audio source could be read.
	ErrAudioCapture ErrorCode = "audio-capture"
	// ErrNetwork means the recognition service was unreachable.
	ErrNetwork ErrorCode = "network"
	// ErrNotAllowed means the recognizer lacks permission or credentials.
	ErrNotAllowed ErrorCode = "not-allowed"
)

// ErrorEvent reports a failure on a stream.
type ErrorEvent struct {
	StreamID string    `json:"stream_id"`
	Code     ErrorCode `json:"code"`
	Message  string    `json:"message,omitempty"`
}

func (e ErrorEvent) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("recognition %s on stream %s", e.Code, e.StreamID)
	}
	return fmt.Sprintf("recognition %s on stream %s: %s", e.Code, e.StreamID, e.Message)
}

// Sink receives stream output. Implementations must be safe to call from
// the recognizer's goroutines.
type Sink interface {
	OnResult(Event)
	OnError(ErrorEvent)
}

// Recognizer runs at most one stream at a time.
type Recognizer interface {
	// Start opens a stream tagged streamID, stopping any previous one.
	Start(ctx context.Context, streamID string, sink Sink) error

	// Stop ends the active stream. Stopping an idle recognizer is a no-op.
	Stop()
}

// SinkFuncs adapts a pair of funcs to Sink. Nil funcs drop their input.
type SinkFuncs struct {
	Result func(Event)
	Error  func(ErrorEvent)
}

func (s SinkFuncs) OnResult(ev Event) {
	if s.Result != nil {
		s.Result(ev)
	}
}

func (s SinkFuncs) OnError(ev ErrorEvent) {
	if s.Error != nil {
		s.Error(ev)
	}
}
