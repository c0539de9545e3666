package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/sayquiz/internal/countdown"
	"github.com/roach88/sayquiz/internal/journal"
	"github.com/roach88/sayquiz/internal/media"
	"github.com/roach88/sayquiz/internal/recognition"
	"github.com/roach88/sayquiz/internal/session"
)

// Engine is the single-writer session event loop.
//
// CRITICAL: All state mutations and collaborator calls happen on the
// goroutine running Run (or Apply/Drain). Collaborators hand results back
// through Enqueue.
//
// Thread-safety model:
//   - Enqueue(), State(), Timer(): safe from any goroutine
//   - Run(), Apply(), Drain(): from exactly one goroutine, never mixed
//
// INVARIANTS:
//   - at most one recognition stream is open, and only while the phase is
//     QUESTION
//   - the countdown ticks only while the phase is QUESTION
type Engine struct {
	machine *session.Machine
	queue   *eventQueue
	clock   *Clock

	mu    sync.RWMutex
	state session.State

	timer        *countdown.Timer
	timerClock   countdown.Clock
	scheduler    countdown.Scheduler
	timerVisible bool
	// timeoutQueued is set while an expiry sits in the queue unprocessed.
	timeoutQueued bool
	// heldAdvance is set when a cue's advance arrived while paused.
	heldAdvance bool

	recognizer recognition.Recognizer
	prompt     media.Prompt
	cues       media.Cues
	images     *media.ImageCache
	display    Display
	journal    *journal.Journal
	logger     *slog.Logger

	syncPrefetch bool
	sessionID    string // session the event being processed belongs to
}

// Option configures an Engine.
type Option func(*Engine)

// WithRecognizer sets the speech recognizer. Default: recognition.NewScripted().
func WithRecognizer(r recognition.Recognizer) Option {
	return func(e *Engine) { e.recognizer = r }
}

// WithPrompt sets the prompt audio player.
func WithPrompt(p media.Prompt) Option {
	return func(e *Engine) { e.prompt = p }
}

// WithCues sets the sound-effect player.
func WithCues(c media.Cues) Option {
	return func(e *Engine) { e.cues = c }
}

// WithImages sets the image cache. Without one no images are shown.
func WithImages(c *media.ImageCache) Option {
	return func(e *Engine) { e.images = c }
}

// WithDisplay sets the presentation sink.
func WithDisplay(d Display) Option {
	return func(e *Engine) { e.display = d }
}

// WithJournal records every event and signal to j.
func WithJournal(j *journal.Journal) Option {
	return func(e *Engine) { e.journal = j }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithClock sets the logical clock journal records are stamped with.
func WithClock(c *Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithTimerClock sets the monotonic clock the countdown reads.
// Default: countdown.NewMonotonicClock().
func WithTimerClock(c countdown.Clock) Option {
	return func(e *Engine) { e.timerClock = c }
}

// WithScheduler sets the tick source of the countdown.
// Default: countdown.TickerScheduler with the default interval.
func WithScheduler(s countdown.Scheduler) Option {
	return func(e *Engine) { e.scheduler = s }
}

// WithSyncPrefetch makes image prefetch run inline instead of on a
// background goroutine, for deterministic tests.
func WithSyncPrefetch() Option {
	return func(e *Engine) { e.syncPrefetch = true }
}

// New creates an engine in the MENU phase.
func New(machine *session.Machine, opts ...Option) *Engine {
	e := &Engine{
		machine: machine,
		queue:   newEventQueue(),
		clock:   NewClock(),
		state:   session.Initial(),
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.recognizer == nil {
		e.recognizer = recognition.NewScripted()
	}
	if e.prompt == nil {
		e.prompt = &media.RecordingPrompt{}
	}
	if e.cues == nil {
		e.cues = media.NewManualCues()
	}
	if e.display == nil {
		e.display = NopDisplay{}
	}
	if e.timerClock == nil {
		e.timerClock = countdown.NewMonotonicClock()
	}
	if e.scheduler == nil {
		e.scheduler = countdown.TickerScheduler{}
	}

	e.timer = e.newTimer(countdown.DefaultWarningThreshold)
	return e
}

// Enqueue submits an input for processing by the Run loop.
// Thread-safe: may be called from any goroutine.
//
// Returns false if the engine has been stopped.
func (e *Engine) Enqueue(ev session.Event) bool {
	return e.queue.Enqueue(Input(ev))
}

// State returns a snapshot of the session state.
// Thread-safe: may be called from any goroutine.
func (e *Engine) State() session.State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// Timer returns the countdown reading for display.
func (e *Engine) Timer() countdown.Reading {
	return e.currentTimer().Snapshot()
}

// QueueLen returns the current number of pending events.
func (e *Engine) QueueLen() int {
	return e.queue.Len()
}

// Run starts the single-writer event loop.
// Blocks until context is cancelled or Stop() is called.
//
// ERROR HANDLING: On event processing failure, the error is logged with the
// event context and processing continues. A rejected input leaves the
// session exactly as it was.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info("engine starting")
	defer e.shutdown()

	for {
		event, ok := e.queue.TryDequeue()
		if ok {
			if err := e.processEvent(ctx, event); err != nil {
				e.logEventError(event, err)
			}
			continue
		}

		select {
		case <-ctx.Done():
			e.logger.Info("engine stopping: context cancelled")
			e.queue.Close()
			return ctx.Err()

		case <-e.queue.Wait():
			// The signal channel closes with the queue.
			if e.queue.Closed() && e.queue.Len() == 0 {
				e.logger.Info("engine stopping: queue closed")
				return nil
			}
		}
	}
}

// Sync blocks until every event enqueued before the call has been
// processed by Run. Events those events cause may still be pending.
func (e *Engine) Sync(ctx context.Context) error {
	done := make(chan struct{})
	if !e.queue.Enqueue(Event{Type: EventTypeBarrier, done: done}) {
		return &RuntimeError{Code: ErrCodeStopped, Message: "engine stopped"}
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop gracefully shuts down the engine.
// Closes the event queue, which will cause Run() to return.
func (e *Engine) Stop() {
	e.queue.Close()
}

// Apply processes ev immediately, then drains every event it caused. It
// returns the transition error of ev itself, if any.
//
// Apply is the synchronous counterpart of Enqueue+Run for tests and the
// scenario harness. It must not be used while Run is active.
func (e *Engine) Apply(ctx context.Context, ev session.Event) error {
	if e.queue.Closed() {
		return &RuntimeError{Code: ErrCodeStopped, Message: "engine stopped"}
	}
	err := e.processInput(ctx, ev)
	e.Drain(ctx)
	return err
}

// Drain processes queued events until the queue is empty and returns how
// many were processed. It must not be used while Run is active.
func (e *Engine) Drain(ctx context.Context) int {
	n := 0
	for {
		event, ok := e.queue.TryDequeue()
		if !ok {
			return n
		}
		if err := e.processEvent(ctx, event); err != nil {
			e.logEventError(event, err)
		}
		n++
	}
}

func (e *Engine) shutdown() {
	e.recognizer.Stop()
	e.currentTimer().Pause()
	e.cues.StopAll()
	e.prompt.Stop()
}

// processEvent routes a queue item to its handler.
// CRITICAL: Called only from the loop goroutine.
func (e *Engine) processEvent(ctx context.Context, event Event) error {
	switch event.Type {
	case EventTypeInput:
		if event.Input == nil {
			return &RuntimeError{Code: ErrCodeMissingInput, Message: "input event missing session event"}
		}
		if event.followUp && e.holdFollowUp(*event.Input) {
			return nil
		}
		return e.processInput(ctx, *event.Input)

	case EventTypeTick:
		if event.tick != nil {
			event.tick()
		}
		return nil

	case EventTypeBarrier:
		close(event.done)
		return nil

	default:
		return &RuntimeError{Code: ErrCodeUnknownEvent, Message: fmt.Sprintf("unknown event type: %d", event.Type)}
	}
}

// processInput transitions the session, journals the step and executes the
// resulting effects.
func (e *Engine) processInput(ctx context.Context, ev session.Event) error {
	if ev.Kind == session.EventRecognitionError && ev.Error != nil && ev.Error.Code != recognition.ErrNoSpeech {
		e.logger.Warn("recognition error",
			"stream_id", ev.Error.StreamID,
			"code", ev.Error.Code,
			"message", ev.Error.Message,
		)
	}

	if ev.Kind == session.EventTimeout {
		e.timeoutQueued = false
	}

	before := e.State()
	next, effects, err := e.machine.Transition(before, ev)

	e.sessionID = next.SessionID
	if e.sessionID == "" {
		e.sessionID = before.SessionID
	}
	e.journalEvent(ctx, before, next, ev, err)

	if err != nil {
		return err
	}

	if len(effects) == 0 {
		e.logger.Debug("event had no effect",
			"kind", ev.Kind,
			"phase", before.Phase,
		)
	}

	e.mu.Lock()
	e.state = next
	e.mu.Unlock()

	for _, eff := range effects {
		e.execute(ctx, eff)
	}
	if e.heldAdvance && before.Phase == session.PhasePaused && next.Phase == session.PhaseMatched {
		e.heldAdvance = false
		e.logger.Debug("releasing advance held over pause")
		advance := session.Simple(session.EventAdvance)
		e.queue.Enqueue(Event{Type: EventTypeInput, Input: &advance, followUp: true})
	}
	return nil
}

// holdFollowUp keeps the advance of a correct cue that finished while the
// session was paused on a matched question. The advance is released when the
// session resumes.
func (e *Engine) holdFollowUp(ev session.Event) bool {
	s := e.State()
	if ev.Kind != session.EventAdvance || s.Phase != session.PhasePaused || s.Previous == nil || *s.Previous != session.PhaseMatched {
		return false
	}
	e.heldAdvance = true
	e.logger.Debug("cue finished while paused, holding advance")
	return true
}

// execute performs one effect. Collaborator failures are logged here and
// never returned.
func (e *Engine) execute(ctx context.Context, eff session.Effect) {
	switch eff.Kind {
	case session.EffectResetTimer:
		e.resetTimer(eff.Total, eff.Enabled)
	case session.EffectStartTimer:
		e.startTimer()
	case session.EffectPauseTimer:
		e.currentTimer().Pause()
	case session.EffectHideTimer:
		e.timerVisible = false
		e.display.HideTimer()

	case session.EffectStartRecognition:
		e.startRecognition(ctx, eff.StreamID)
	case session.EffectStopRecognition:
		e.recognizer.Stop()

	case session.EffectShowQuestion:
		if eff.Question != nil {
			e.display.ShowQuestion(*eff.Question, e.State())
		}
	case session.EffectShowImage:
		e.display.ShowImage(e.loadImage(ctx, eff.Ref))
	case session.EffectPrefetch:
		e.prefetch(ctx, eff.Refs)
	case session.EffectClearImages:
		if e.images != nil {
			e.images.Reset()
		}
		e.display.ClearImages()

	case session.EffectLoadAudio:
		e.prompt.Load(eff.Ref)
	case session.EffectPlayAudio:
		e.playPrompt(ctx)
	case session.EffectPauseAudio:
		e.prompt.Pause()
	case session.EffectResumeAudio:
		e.prompt.Resume()
	case session.EffectStopAudio:
		e.prompt.Stop()

	case session.EffectPlayCue:
		e.cues.Play(eff.Cue, e.cueDone(eff.Cue, eff.Then))
	case session.EffectPauseCues:
		e.cues.PauseAll()
	case session.EffectResumeCues:
		e.cues.ResumeAll()
	case session.EffectStopCues:
		e.cues.StopAll()

	case session.EffectEmit:
		if eff.Signal != nil {
			e.emit(ctx, *eff.Signal)
		}

	default:
		e.logger.Warn("unknown effect", "kind", eff.Kind)
	}
}

func (e *Engine) currentTimer() *countdown.Timer {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.timer
}

// resetTimer arms a fresh countdown with the warning threshold of the
// session that just started.
func (e *Engine) resetTimer(total time.Duration, enabled bool) {
	threshold := e.State().Settings.WarningThreshold
	if threshold <= 0 {
		threshold = countdown.DefaultWarningThreshold
	}

	old := e.currentTimer()
	old.Reset(0, false)

	t := e.newTimer(threshold)
	t.Reset(total, enabled)

	e.mu.Lock()
	e.timer = t
	e.mu.Unlock()

	e.timerVisible = enabled
	if enabled {
		e.display.ShowTimer(t.Snapshot())
	} else {
		e.display.HideTimer()
	}
}

func (e *Engine) newTimer(threshold time.Duration) *countdown.Timer {
	return countdown.New(e.timerClock, loopScheduler{inner: e.scheduler, queue: e.queue},
		countdown.WithWarningThreshold(threshold),
		countdown.WithWarningProbe(func() bool { return e.cues.Active(session.CueTimeWarning) }),
		countdown.WithListener(e.onTimer),
	)
}

// onTimer runs inside Timer.Tick, on the loop goroutine.
func (e *Engine) onTimer(sig countdown.Signal) {
	switch sig.Kind {
	case countdown.SignalTick:
		if e.timerVisible {
			e.display.ShowTimer(countdown.Reading{
				Enabled:   true,
				Running:   sig.Remaining > 0,
				Remaining: sig.Remaining,
				Total:     sig.Total,
			})
		}
	case countdown.SignalWarning:
		e.queue.Enqueue(Input(session.Simple(session.EventTimeWarning)))
	case countdown.SignalExpired:
		e.enqueueTimeout()
	}
}

// startTimer starts or resumes the countdown. The expiry of a pool that
// ran out while the session was paused or matched was dropped as stale, so
// it is raised again for the question now on screen.
func (e *Engine) startTimer() {
	t := e.currentTimer()
	t.Start()
	if t.Enabled() && t.Expired() && !e.timeoutQueued {
		e.logger.Debug("countdown already expired, ending session")
		e.enqueueTimeout()
	}
}

func (e *Engine) enqueueTimeout() {
	if e.queue.Enqueue(Input(session.Simple(session.EventTimeout))) {
		e.timeoutQueued = true
	}
}

func (e *Engine) startRecognition(ctx context.Context, streamID string) {
	err := e.recognizer.Start(ctx, streamID, recognitionSink{queue: e.queue})
	if err == nil {
		return
	}

	ev := recognition.ErrorEvent{StreamID: streamID, Code: recognition.ErrAborted, Message: err.Error()}
	var re *recognition.ErrorEvent
	if errors.As(err, &re) && re.Code != recognition.ErrNoSpeech {
		ev.Code = re.Code
		ev.Message = re.Message
	}
	e.queue.Enqueue(Input(session.Failed(ev)))
}

func (e *Engine) loadImage(ctx context.Context, ref string) *media.Image {
	if e.images == nil || ref == "" {
		return nil
	}
	return e.images.Get(ctx, ref)
}

func (e *Engine) prefetch(ctx context.Context, refs []string) {
	if e.images == nil || len(refs) == 0 {
		return
	}
	if e.syncPrefetch {
		e.images.Prefetch(ctx, refs)
		return
	}
	go e.images.Prefetch(context.WithoutCancel(ctx), refs)
}

func (e *Engine) playPrompt(ctx context.Context) {
	err := e.prompt.Play(ctx)
	switch {
	case err == nil:
	case errors.Is(err, media.ErrNoAudio):
		e.logger.Debug("no prompt audio for question")
	default:
		e.logger.Warn("prompt playback failed", "error", err)
	}
}

// cueDone returns the completion callback of a cue. It may run on any
// goroutine, so it only logs and enqueues.
func (e *Engine) cueDone(name string, then *session.Event) func(error) {
	var follow *session.Event
	if then != nil {
		ev := *then
		follow = &ev
	}
	return func(err error) {
		if err != nil {
			e.logger.Warn("cue playback failed", "cue", name, "error", err)
		}
		if follow != nil {
			e.queue.Enqueue(Event{Type: EventTypeInput, Input: follow, followUp: true})
		}
	}
}

func (e *Engine) emit(ctx context.Context, sig session.Signal) {
	seq := e.clock.Next()
	if e.journal != nil {
		rec := journal.SignalRecord{
			Seq:       seq,
			SessionID: e.sessionID,
			Kind:      string(sig.Kind),
			Payload:   marshalPayload(sig),
		}
		if err := e.journal.WriteSignal(ctx, rec); err != nil {
			e.logger.Error("journal write failed", "seq", seq, "signal", sig.Kind, "error", err)
		}
	}

	e.logger.Debug("signal",
		"seq", seq,
		"kind", sig.Kind,
		"phase", sig.Phase,
		"index", sig.Index,
		"score", sig.Score,
	)
	e.display.Notify(sig, e.State())
}

func (e *Engine) journalEvent(ctx context.Context, before, after session.State, ev session.Event, err error) {
	seq := e.clock.Next()

	e.logger.Debug("processing event",
		"seq", seq,
		"kind", ev.Kind,
		"phase", before.Phase,
	)

	if e.journal == nil {
		return
	}

	rec := journal.EventRecord{
		Seq:         seq,
		SessionID:   e.sessionID,
		Kind:        string(ev.Kind),
		PhaseBefore: before.Phase.String(),
		PhaseAfter:  after.Phase.String(),
		Payload:     marshalPayload(ev),
	}
	if err != nil {
		rec.PhaseAfter = before.Phase.String()
		var te *session.TransitionError
		if errors.As(err, &te) {
			rec.Rejected = te.Code
		} else {
			rec.Rejected = "E_INTERNAL"
		}
	}
	if werr := e.journal.WriteEvent(ctx, rec); werr != nil {
		e.logger.Error("journal write failed", "seq", seq, "event", ev.Kind, "error", werr)
	}
}

func marshalPayload(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(data)
}

// logEventError logs a failed queue item with its context.
// Rejected inputs are routine (a key pressed in the wrong phase) and are
// logged at debug level.
func (e *Engine) logEventError(event Event, err error) {
	var te *session.TransitionError
	if errors.As(err, &te) {
		e.logger.Debug("event rejected",
			"error", err,
			"code", te.Code,
			"kind", te.Event,
			"phase", te.Phase,
		)
		return
	}

	attrs := []any{"error", err, "event_type", int(event.Type)}
	if event.Input != nil {
		attrs = append(attrs, "kind", event.Input.Kind)
	}
	e.logger.Error("event processing failed", attrs...)
}

// loopScheduler hands countdown ticks to the Run loop instead of running
// them on the scheduler's goroutine.
type loopScheduler struct {
	inner countdown.Scheduler
	queue *eventQueue
}

func (s loopScheduler) Every(fn func()) func() {
	return s.inner.Every(func() {
		s.queue.Enqueue(Event{Type: EventTypeTick, tick: fn})
	})
}

// recognitionSink feeds recognizer callbacks into the loop.
type recognitionSink struct {
	queue *eventQueue
}

func (s recognitionSink) OnResult(ev recognition.Event) {
	s.queue.Enqueue(Input(session.Heard(ev)))
}

func (s recognitionSink) OnError(ev recognition.ErrorEvent) {
	s.queue.Enqueue(Input(session.Failed(ev)))
}
