package countdown

import (
	"sync"
	"time"
)

// DefaultTickInterval is the refresh cadence of TickerScheduler when none is
// configured. Correctness does not depend on it.
const DefaultTickInterval = 50 * time.Millisecond

// MonotonicClock reads Go's monotonic clock relative to its creation.
type MonotonicClock struct {
	origin time.Time
}

// NewMonotonicClock creates a clock whose zero is the moment of creation.
func NewMonotonicClock() *MonotonicClock {
	return &MonotonicClock{origin: time.Now()}
}

// Now returns the time elapsed since the clock was created.
func (c *MonotonicClock) Now() time.Duration {
	return time.Since(c.origin)
}

// TickerScheduler runs callbacks from a time.Ticker goroutine.
//
// Callbacks run on the ticker goroutine. Callers that need single-threaded
// delivery should wrap fn so it hands off to their own loop.
type TickerScheduler struct {
	Interval time.Duration
}

// Every starts a ticker goroutine invoking fn until cancel is called.
// Cancel is idempotent and may be called from inside fn.
func (s TickerScheduler) Every(fn func()) func() {
	interval := s.Interval
	if interval <= 0 {
		interval = DefaultTickInterval
	}

	stop := make(chan struct{})
	ticker := time.NewTicker(interval)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				fn()
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
		})
	}
}
