package engine

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/roach88/sayquiz/internal/journal"
)

// Clock stamps journal records with seq numbers.
//
// Events and signals share one sequence, so a timeline merged from both
// tables is totally ordered. No wall-clock time goes into a stamp, which is
// what keeps two runs of one scenario byte-identical.
//
// Only the Run goroutine stamps; the atomic lets tests and the CLI read the
// position while a session is live.
type Clock struct {
	last atomic.Int64
}

// NewClock returns a clock whose first stamp is 1.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt returns a clock whose first stamp is last+1.
func NewClockAt(last int64) *Clock {
	c := &Clock{}
	c.last.Store(last)
	return c
}

// ClockAfter returns a clock that continues after the highest seq already
// in j, so a session appended to a journal file never collides with an
// earlier one.
func ClockAfter(ctx context.Context, j *journal.Journal) (*Clock, error) {
	last, err := j.MaxSeq(ctx)
	if err != nil {
		return nil, fmt.Errorf("read journal position: %w", err)
	}
	return NewClockAt(last), nil
}

// Next hands out the next stamp.
func (c *Clock) Next() int64 {
	return c.last.Add(1)
}

// Current is the last stamp handed out, 0 before any.
func (c *Clock) Current() int64 {
	return c.last.Load()
}
