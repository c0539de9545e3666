package testutil

import "sync"

// ManualScheduler records recurring callbacks and runs them only when Fire
// is called. It stands in for a ticker in countdown and engine tests.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
// Callbacks run outside the lock so they may schedule or cancel.
type ManualScheduler struct {
	mu     sync.Mutex
	nextID int
	tasks  map[int]func()
	order  []int
}

// NewManualScheduler creates an empty scheduler.
func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{tasks: make(map[int]func())}
}

// Every registers fn as a recurring task and returns its cancel func.
// Cancel is idempotent.
func (s *ManualScheduler) Every(fn func()) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	id := s.nextID
	s.tasks[id] = fn
	s.order = append(s.order, id)

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.tasks, id)
	}
}

// Fire runs every active task once, in registration order.
func (s *ManualScheduler) Fire() {
	s.mu.Lock()
	var fns []func()
	live := s.order[:0]
	for _, id := range s.order {
		if fn, ok := s.tasks[id]; ok {
			fns = append(fns, fn)
			live = append(live, id)
		}
	}
	s.order = live
	s.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// Active returns the number of tasks that have not been cancelled.
func (s *ManualScheduler) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}
