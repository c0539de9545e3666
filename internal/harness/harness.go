package harness

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/sayquiz/internal/config"
	"github.com/roach88/sayquiz/internal/engine"
	"github.com/roach88/sayquiz/internal/journal"
	"github.com/roach88/sayquiz/internal/media"
	"github.com/roach88/sayquiz/internal/recognition"
	"github.com/roach88/sayquiz/internal/sequencer"
	"github.com/roach88/sayquiz/internal/session"
	"github.com/roach88/sayquiz/internal/testutil"
)

// Step error codes raised by the harness itself. Rejected engine events
// report their session error code instead.
const (
	// ErrCodeNotListening means speech was simulated with no open stream.
	ErrCodeNotListening = "E_NOT_LISTENING"
	// ErrCodeNoCue means finish_cue found nothing to finish.
	ErrCodeNoCue = "E_NO_CUE"
	// ErrCodeNoQuestion means say_answer ran with no question on screen.
	ErrCodeNoQuestion = "E_NO_QUESTION"
)

// maxCueRounds bounds complete_cues, whose follow-up cues may chain.
const maxCueRounds = 16

// StepError reports a step the harness could not perform.
type StepError struct {
	Code   string
	Action string
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Action)
}

// Harness is the test execution engine.
// It wires a real engine to deterministic collaborators: a fake clock, a
// manually fired scheduler, a scripted recognizer and manual cues.
type Harness struct {
	scenario *Scenario
	engine   *engine.Engine
	journal  *journal.Journal

	clock      *testutil.FakeClock
	scheduler  *testutil.ManualScheduler
	recognizer *recognition.Scripted
	cues       *media.ManualCues
	prompt     *media.RecordingPrompt

	logger *slog.Logger
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs against a fresh in-memory journal for isolation.
// An error is returned only when the scenario cannot run at all; step and
// assertion failures are reported in the result.
func Run(scenario *Scenario) (*Result, error) {
	ds, err := scenario.LoadDataset()
	if err != nil {
		return nil, fmt.Errorf("failed to load dataset: %w", err)
	}

	j, err := journal.Open(journal.MemoryDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory journal: %w", err)
	}
	defer j.Close()

	var rng sequencer.Source = testutil.ZeroRand{}
	if scenario.Seed != nil {
		rng = sequencer.NewSeededSource(*scenario.Seed)
	}
	machine := session.NewMachine(ds, rng, testutil.NewSequentialIDGenerator("id"))

	h := &Harness{
		scenario:   scenario,
		journal:    j,
		clock:      testutil.NewFakeClock(),
		scheduler:  testutil.NewManualScheduler(),
		recognizer: recognition.NewScripted(),
		cues:       media.NewManualCues(),
		prompt:     &media.RecordingPrompt{},
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
	}
	h.engine = engine.New(machine,
		engine.WithRecognizer(h.recognizer),
		engine.WithPrompt(h.prompt),
		engine.WithCues(h.cues),
		engine.WithImages(media.NewImageCache(refLoader{}, h.logger)),
		engine.WithJournal(j),
		engine.WithLogger(h.logger),
		engine.WithTimerClock(h.clock),
		engine.WithScheduler(h.scheduler),
		engine.WithSyncPrefetch(),
	)

	ctx := context.Background()
	result := NewResult()

	for i, step := range scenario.Steps {
		err := h.runStep(ctx, step)
		h.checkStep(i, step, err, result)
	}

	trace, err := readTrace(ctx, j)
	if err != nil {
		return nil, fmt.Errorf("failed to read trace: %w", err)
	}
	result.Trace = trace
	result.State = h.snapshot()
	result.Cues = h.cues.Played()

	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(errMsg)
	}

	return result, nil
}

func (h *Harness) checkStep(i int, step Step, err error, result *Result) {
	got := errorCode(err)
	switch {
	case step.ExpectError != "" && got != step.ExpectError:
		result.AddError(fmt.Sprintf("steps[%d] %s: expected error %s, got %s", i, step.Action, step.ExpectError, describe(err)))
	case step.ExpectError == "" && err != nil:
		result.AddError(fmt.Sprintf("steps[%d] %s: unexpected error: %v", i, step.Action, err))
	}

	if len(step.Expect) > 0 {
		if err := compareState(h.snapshot(), step.Expect); err != nil {
			result.AddError(fmt.Sprintf("steps[%d] %s: %v", i, step.Action, err))
		}
	}
}

// runStep performs one step and drains everything it caused.
func (h *Harness) runStep(ctx context.Context, step Step) error {
	eng := h.engine

	switch step.Action {
	case ActionStart:
		return eng.Apply(ctx, session.Start(h.settings(step)))
	case ActionSay:
		return h.speak(ctx, step, h.recognizer.Final(step.Text))
	case ActionSayAnswer:
		st := eng.State()
		if st.Current == nil {
			return &StepError{Code: ErrCodeNoQuestion, Action: step.Action}
		}
		return h.speak(ctx, step, h.recognizer.Final(st.Current.Entry.AnswerText))
	case ActionInterim:
		return h.speak(ctx, step, h.recognizer.Interim(step.Text))
	case ActionNoSpeech:
		return h.speak(ctx, step, h.recognizer.Fail(recognition.ErrNoSpeech, "no speech detected"))
	case ActionFail:
		return h.speak(ctx, step, h.recognizer.Fail(recognition.ErrorCode(step.Code), step.Text))
	case ActionTick:
		h.clock.Advance(step.After)
		h.scheduler.Fire()
		eng.Drain(ctx)
		return nil
	case ActionSkip:
		return eng.Apply(ctx, session.Simple(session.EventSkip))
	case ActionPause:
		return eng.Apply(ctx, session.Simple(session.EventPause))
	case ActionResume:
		return eng.Apply(ctx, session.Simple(session.EventResume))
	case ActionAdvance:
		return eng.Apply(ctx, session.Simple(session.EventAdvance))
	case ActionReview:
		return eng.Apply(ctx, session.Simple(session.EventReview))
	case ActionPrev:
		return eng.Apply(ctx, session.Navigate(-1))
	case ActionNext:
		return eng.Apply(ctx, session.Navigate(1))
	case ActionHome:
		return eng.Apply(ctx, session.Simple(session.EventHome))
	case ActionAudio:
		return eng.Apply(ctx, session.Simple(session.EventPlayAudio))
	case ActionListen:
		return eng.Apply(ctx, session.Simple(session.EventListen))
	case ActionFinishCue:
		if !h.cues.Finish(step.Cue) {
			return &StepError{Code: ErrCodeNoCue, Action: step.Action}
		}
		eng.Drain(ctx)
		return nil
	case ActionCompleteCues:
		for round := 0; round < maxCueRounds && h.cues.FinishAll() > 0; round++ {
			eng.Drain(ctx)
		}
		return nil
	default:
		return fmt.Errorf("unknown action %q", step.Action)
	}
}

// speak drains the recognition events a recognizer call queued, or reports
// that no stream was open.
func (h *Harness) speak(ctx context.Context, step Step, delivered bool) error {
	if !delivered {
		return &StepError{Code: ErrCodeNotListening, Action: step.Action}
	}
	h.engine.Drain(ctx)
	return nil
}

func (h *Harness) settings(step Step) config.Settings {
	switch {
	case step.Settings != nil:
		return *step.Settings
	case h.scenario.Settings != nil:
		return *h.scenario.Settings
	default:
		return config.Default()
	}
}

// snapshot flattens engine state into the final_state vocabulary.
func (h *Harness) snapshot() map[string]any {
	st := h.engine.State()
	timer := h.engine.Timer()

	snap := map[string]any{
		"phase":         st.Phase.String(),
		"index":         st.Index,
		"score":         st.Score,
		"total":         len(st.Queue),
		"completed":     st.Completed,
		"stream_active": h.recognizer.Active(),
		"transcript":    st.Transcript,
		"queue_len":     len(st.Queue),
		"timer_running": timer.Running,
		"remaining":     timer.Text(),
		"prompt":        h.prompt.Loaded(),
		"pending_cues":  len(h.cues.Pending()),
		"answer":        "",
	}
	if st.Current != nil {
		snap["answer"] = st.Current.Entry.AnswerText
	}
	return snap
}

// readTrace converts the whole journal into trace entries.
func readTrace(ctx context.Context, j *journal.Journal) ([]TraceEntry, error) {
	entries, err := j.FullTimeline(ctx)
	if err != nil {
		return nil, err
	}
	return FromJournal(entries)
}

// FromJournal converts journal timeline entries into trace entries,
// decoding signal payloads.
func FromJournal(entries []journal.Entry) ([]TraceEntry, error) {
	trace := make([]TraceEntry, 0, len(entries))
	for _, e := range entries {
		switch {
		case e.Event != nil:
			trace = append(trace, TraceEntry{
				Seq:         e.Seq,
				Type:        TraceEvent,
				Kind:        e.Event.Kind,
				PhaseBefore: e.Event.PhaseBefore,
				PhaseAfter:  e.Event.PhaseAfter,
				Rejected:    e.Event.Rejected,
			})
		case e.Signal != nil:
			var sig session.Signal
			if err := json.Unmarshal([]byte(e.Signal.Payload), &sig); err != nil {
				return nil, fmt.Errorf("decode signal %d: %w", e.Seq, err)
			}
			trace = append(trace, TraceEntry{
				Seq:    e.Seq,
				Type:   TraceSignal,
				Kind:   e.Signal.Kind,
				Signal: &sig,
			})
		}
	}
	return trace, nil
}

func errorCode(err error) string {
	if err == nil {
		return ""
	}
	var te *session.TransitionError
	if errors.As(err, &te) {
		return te.Code
	}
	var se *StepError
	if errors.As(err, &se) {
		return se.Code
	}
	var re *engine.RuntimeError
	if errors.As(err, &re) {
		return string(re.Code)
	}
	return "E_UNKNOWN"
}

func describe(err error) string {
	if err == nil {
		return "none"
	}
	return fmt.Sprintf("%s (%v)", errorCode(err), err)
}

// refLoader resolves every image reference without touching the disk.
type refLoader struct{}

func (refLoader) LoadImage(ctx context.Context, ref string) (*media.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &media.Image{Ref: ref}, nil
}
