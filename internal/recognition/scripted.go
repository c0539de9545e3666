package recognition

import (
	"context"
	"sync"
)

// Scripted is a Recognizer driven by explicit calls. It backs tests, the
// scenario harness, and typed console input.
//
// Thread-safety: all methods are safe for concurrent use. Sink callbacks run
// on the caller's goroutine, outside the lock.
type Scripted struct {
	mu     sync.Mutex
	sink   Sink
	acc    *Accumulator
	active bool

	starts []string
	stops  int
}

// NewScripted creates an idle scripted recognizer.
func NewScripted() *Scripted {
	return &Scripted{}
}

// Start implements Recognizer.
func (s *Scripted) Start(_ context.Context, streamID string, sink Sink) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sink = sink
	s.acc = NewAccumulator(streamID)
	s.active = true
	s.starts = append(s.starts, streamID)
	return nil
}

// Stop implements Recognizer.
func (s *Scripted) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active {
		s.stops++
	}
	s.active = false
}

// Interim reports a partial hypothesis on the active stream.
func (s *Scripted) Interim(transcript string) bool {
	return s.Push(Hypothesis(transcript, false))
}

// Final reports a settled hypothesis on the active stream.
func (s *Scripted) Final(transcript string) bool {
	return s.Push(Hypothesis(transcript, true))
}

// Push reports r on the active stream. It returns false when no stream is
// active, in which case the input is dropped.
func (s *Scripted) Push(r Result) bool {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return false
	}
	ev := s.acc.Update(r)
	sink := s.sink
	s.mu.Unlock()

	sink.OnResult(ev)
	return true
}

// Fail reports an error on the active stream and ends it, as a real
// recognizer does.
func (s *Scripted) Fail(code ErrorCode, message string) bool {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return false
	}
	ev := ErrorEvent{StreamID: s.acc.streamID, Code: code, Message: message}
	sink := s.sink
	s.active = false
	s.mu.Unlock()

	sink.OnError(ev)
	return true
}

// Active reports whether a stream is open.
func (s *Scripted) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// StreamID returns the ID of the most recently started stream.
func (s *Scripted) StreamID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.starts) == 0 {
		return ""
	}
	return s.starts[len(s.starts)-1]
}

// Starts returns the number of streams opened.
func (s *Scripted) Starts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.starts)
}

// Stops returns the number of times an active stream was stopped.
func (s *Scripted) Stops() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stops
}
