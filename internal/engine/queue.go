package engine

import (
	"sync"

	"github.com/roach88/sayquiz/internal/session"
)

// EventType distinguishes between event kinds.
type EventType int

const (
	// EventTypeInput carries a session event for the state machine.
	EventTypeInput EventType = iota + 1
	// EventTypeTick asks the countdown to re-read its clock.
	EventTypeTick
	// EventTypeBarrier is released once every earlier event was processed.
	EventTypeBarrier
)

// Event wraps the items the Run loop processes.
type Event struct {
	Type  EventType
	Input *session.Event

	// tick is the countdown callback a scheduler handed over. Ticks are
	// evaluated on the Run goroutine, never on the scheduler's.
	tick func()

	// done is closed when a barrier is reached.
	done chan struct{}

	// followUp marks an input a finished cue enqueued.
	followUp bool
}

// Input wraps a session event for Enqueue.
func Input(ev session.Event) Event {
	return Event{Type: EventTypeInput, Input: &ev}
}

// eventQueue is a thread-safe FIFO queue for events.
//
// The queue is unbounded so collaborator callbacks (recognition results, cue
// completions, ticks) never block on a busy loop.
//
// The queue uses a channel for signaling to enable context-aware waiting
// in the Run loop.
type eventQueue struct {
	mu     sync.Mutex
	events []Event
	closed bool
	signal chan struct{} // Signals event availability (buffered, size 1)
}

// newEventQueue creates an empty event queue.
func newEventQueue() *eventQueue {
	return &eventQueue{
		events: make([]Event, 0, 64),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue adds an event to the back of the queue.
// Thread-safe: may be called from any goroutine.
// Returns false if the queue is closed.
func (q *eventQueue) Enqueue(e Event) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.events = append(q.events, e)

	// Non-blocking: the buffer of 1 coalesces multiple signals.
	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// TryDequeue attempts to dequeue without blocking.
// Returns (Event{}, false) if queue is empty.
func (q *eventQueue) TryDequeue() (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.events) == 0 {
		return Event{}, false
	}

	e := q.events[0]

	// Nil out the slot so the backing array does not retain payloads.
	q.events[0] = Event{}

	if len(q.events) == 1 {
		q.events = q.events[:0]
	} else {
		q.events = q.events[1:]
	}

	return e, true
}

// Wait returns a channel that signals when events may be available.
// Use with select for context-aware waiting:
//
//	select {
//	case <-ctx.Done():
//	    return ctx.Err()
//	case <-q.Wait():
//	    // Try TryDequeue
//	}
func (q *eventQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *eventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Closed reports whether Close has been called.
func (q *eventQueue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Close signals that no more events will be enqueued.
// Wakes any blocked waiters by closing the signal channel.
func (q *eventQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.signal)
}
