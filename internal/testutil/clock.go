package testutil

import (
	"sync"
	"time"
)

// FakeClock is a manually driven monotonic clock for tests.
//
// Now starts at zero and only moves when Advance is called, so countdown
// arithmetic can be asserted exactly regardless of how long a test runs.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type FakeClock struct {
	mu  sync.Mutex
	now time.Duration
}

// NewFakeClock creates a clock reading zero.
func NewFakeClock() *FakeClock {
	return &FakeClock{}
}

// Now returns the current monotonic reading.
func (c *FakeClock) Now() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d. Negative values are ignored,
// a monotonic clock never goes backwards.
func (c *FakeClock) Advance(d time.Duration) {
	if d < 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now += d
}

// Reset sets the clock back to zero for test reuse.
func (c *FakeClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = 0
}
