// Package countdown implements the session-wide quiz countdown.
//
// A single Timer is shared by every question of a timed session. Elapsed time
// is always derived from a monotonic Clock, never from the number of ticks, so
// a slow or irregular Scheduler cannot cause drift. Pausing stores the elapsed
// offset and resuming re-anchors the start reference from it, which makes
// wall-clock time spent paused invisible to the countdown.
package countdown

import (
	"sync"
	"time"
)

// DefaultWarningThreshold is the remaining time at or below which the
// time-warning signal is raised.
const DefaultWarningThreshold = 3 * time.Second

// Clock reports a monotonic reading. Only differences between readings are
// meaningful.
type Clock interface {
	Now() time.Duration
}

// Scheduler runs fn repeatedly at an implementation-defined cadence until the
// returned cancel func is called.
type Scheduler interface {
	Every(fn func()) (cancel func())
}

// SignalKind identifies a countdown signal.
type SignalKind int

const (
	// SignalTick is emitted on every evaluated tick for display refresh.
	SignalTick SignalKind = iota + 1
	// SignalWarning is emitted when remaining time is at or below the
	// warning threshold and no warning is currently active.
	SignalWarning
	// SignalExpired is emitted exactly once when remaining time reaches zero.
	SignalExpired
)

// String returns the signal name used in logs and traces.
func (k SignalKind) String() string {
	switch k {
	case SignalTick:
		return "tick"
	case SignalWarning:
		return "time_warning"
	case SignalExpired:
		return "time_expired"
	default:
		return "unknown"
	}
}

// Signal carries the countdown reading at the moment it was emitted.
type Signal struct {
	Kind      SignalKind
	Remaining time.Duration
	Total     time.Duration
}

// Listener receives countdown signals. It runs on the goroutine that owns
// the timer's Scheduler callbacks.
type Listener func(Signal)

// Option configures a Timer.
type Option func(*Timer)

// WithWarningThreshold overrides DefaultWarningThreshold.
func WithWarningThreshold(d time.Duration) Option {
	return func(t *Timer) {
		t.threshold = d
	}
}

// WithWarningProbe sets the function reporting whether a warning cue is
// still playing. A warning is raised on every tick inside the threshold for
// which the probe returns false, so an alert that finished playing is
// triggered again.
//
// Without a probe a warning is raised once per countdown.
func WithWarningProbe(active func() bool) Option {
	return func(t *Timer) {
		t.warningActive = active
	}
}

// WithListener sets the signal listener.
func WithListener(l Listener) Option {
	return func(t *Timer) {
		t.listener = l
	}
}

// Timer is a pausable countdown over a single pool of time.
//
// INVARIANTS:
//   - 0 <= remaining <= total
//   - running implies a start reference is set and a tick is scheduled
//   - SignalExpired is emitted at most once between Resets
type Timer struct {
	mu sync.Mutex

	clock     Clock
	scheduler Scheduler
	listener  Listener

	enabled   bool
	total     time.Duration
	remaining time.Duration
	running   bool
	expired   bool

	startRef    time.Duration // clock reading the countdown is measured from
	pausedSpent time.Duration // elapsed time stored at the last pause

	threshold     time.Duration
	warningActive func() bool
	warnedOnce    bool

	cancel func()
}

// New creates a disabled timer. Call Reset to arm it for a session.
func New(clock Clock, scheduler Scheduler, opts ...Option) *Timer {
	t := &Timer{
		clock:     clock,
		scheduler: scheduler,
		threshold: DefaultWarningThreshold,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Reset stops any pending tick and arms the timer with a fresh pool of
// total. A disabled timer ignores Start and Pause, which is how untimed
// sessions are expressed.
func (t *Timer) Reset(total time.Duration, enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopTickLocked()
	if total < 0 {
		total = 0
	}
	t.enabled = enabled
	t.total = total
	t.remaining = total
	t.running = false
	t.expired = false
	t.startRef = 0
	t.pausedSpent = 0
	t.warnedOnce = false
}

// Start begins or resumes the countdown. It is a no-op when the timer is
// disabled, already running, or has expired.
func (t *Timer) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.enabled || t.running || t.expired {
		return
	}
	if t.remaining == 0 && t.pausedSpent == 0 {
		t.remaining = t.total
	}

	t.running = true
	t.startRef = t.clock.Now() - t.pausedSpent
	t.cancel = t.scheduler.Every(t.Tick)
}

// Pause stops the countdown and records the elapsed time so a later Start
// continues from the same remaining value. It is a no-op when the timer is
// disabled or not running.
func (t *Timer) Pause() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pauseLocked()
}

func (t *Timer) pauseLocked() {
	if !t.enabled || !t.running {
		return
	}
	t.stopTickLocked()
	t.pausedSpent = t.clock.Now() - t.startRef
	t.running = false
}

func (t *Timer) stopTickLocked() {
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
}

// Tick re-evaluates the countdown against the clock and emits signals.
// Ticks delivered after Pause or expiry are ignored.
func (t *Timer) Tick() {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return
	}

	elapsed := t.clock.Now() - t.startRef
	if elapsed < 0 {
		elapsed = 0
	}
	remaining := t.total - elapsed
	if remaining < 0 {
		remaining = 0
	}
	t.remaining = remaining

	signals := []Signal{{Kind: SignalTick, Remaining: remaining, Total: t.total}}

	if remaining <= t.threshold && t.shouldWarnLocked() {
		signals = append(signals, Signal{Kind: SignalWarning, Remaining: remaining, Total: t.total})
	}

	if remaining == 0 {
		t.pauseLocked()
		t.expired = true
		signals = append(signals, Signal{Kind: SignalExpired, Remaining: 0, Total: t.total})
	}

	listener := t.listener
	t.mu.Unlock()

	if listener == nil {
		return
	}
	for _, s := range signals {
		listener(s)
	}
}

func (t *Timer) shouldWarnLocked() bool {
	if t.warningActive != nil {
		return !t.warningActive()
	}
	if t.warnedOnce {
		return false
	}
	t.warnedOnce = true
	return true
}

// Running reports whether the countdown is active.
func (t *Timer) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

// Enabled reports whether the current session is timed.
func (t *Timer) Enabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.enabled
}

// Expired reports whether the pool has been exhausted since the last Reset.
func (t *Timer) Expired() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.expired
}

// Remaining returns the remaining time as of the last tick or pause.
func (t *Timer) Remaining() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.remaining
}

// Total returns the pool size set by Reset.
func (t *Timer) Total() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.total
}

// Snapshot returns a consistent reading for display.
func (t *Timer) Snapshot() Reading {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Reading{
		Enabled:   t.enabled,
		Running:   t.running,
		Remaining: t.remaining,
		Total:     t.total,
	}
}
