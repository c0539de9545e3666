package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sayquiz/internal/config"
	"github.com/roach88/sayquiz/internal/countdown"
	"github.com/roach88/sayquiz/internal/journal"
	"github.com/roach88/sayquiz/internal/media"
	"github.com/roach88/sayquiz/internal/recognition"
	"github.com/roach88/sayquiz/internal/session"
	"github.com/roach88/sayquiz/internal/testutil"
	"github.com/roach88/sayquiz/internal/vocab"
)

var numberWords = []string{"zero", "one", "two", "three", "four"}

func testDataset() *vocab.Dataset {
	entries := make([]vocab.Entry, len(numberWords))
	for i, w := range numberWords {
		entries[i] = vocab.Entry{
			AnswerText: w,
			PromptText: fmt.Sprintf("prompt-%d", i),
			AudioRef:   w + ".mp3",
			ImageRef:   w + ".png",
		}
	}
	return vocab.NewDataset(entries)
}

type recordingDisplay struct {
	NopDisplay
	questions []string
	images    []string
	signals   []session.SignalKind
	timers    []countdown.Reading
	hidden    int
	cleared   int
}

func (d *recordingDisplay) ShowQuestion(q session.Question, _ session.State) {
	d.questions = append(d.questions, q.Entry.AnswerText)
}

func (d *recordingDisplay) ShowImage(img *media.Image) {
	if img == nil {
		d.images = append(d.images, "")
		return
	}
	d.images = append(d.images, img.Ref)
}

func (d *recordingDisplay) ShowTimer(r countdown.Reading) { d.timers = append(d.timers, r) }
func (d *recordingDisplay) HideTimer()                    { d.hidden++ }
func (d *recordingDisplay) ClearImages()                  { d.cleared++ }

func (d *recordingDisplay) Notify(sig session.Signal, _ session.State) {
	d.signals = append(d.signals, sig.Kind)
}

func (d *recordingDisplay) count(kind session.SignalKind) int {
	n := 0
	for _, k := range d.signals {
		if k == kind {
			n++
		}
	}
	return n
}

type countingLoader struct {
	mu    sync.Mutex
	calls []string
}

func (l *countingLoader) LoadImage(_ context.Context, ref string) (*media.Image, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, ref)
	return &media.Image{Ref: ref}, nil
}

type fixture struct {
	engine     *Engine
	clock      *testutil.FakeClock
	sched      *testutil.ManualScheduler
	recognizer *recognition.Scripted
	cues       *media.ManualCues
	prompt     *media.RecordingPrompt
	display    *recordingDisplay
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newFixture builds an engine whose first session queue is {1,2,3,4,0},
// session ID "id-1" and first stream "id-2".
func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		clock:      testutil.NewFakeClock(),
		sched:      testutil.NewManualScheduler(),
		recognizer: recognition.NewScripted(),
		cues:       media.NewManualCues(),
		prompt:     &media.RecordingPrompt{},
		display:    &recordingDisplay{},
	}
	machine := session.NewMachine(testDataset(), testutil.ZeroRand{}, testutil.NewSequentialIDGenerator("id"))
	base := []Option{
		WithTimerClock(f.clock),
		WithScheduler(f.sched),
		WithRecognizer(f.recognizer),
		WithCues(f.cues),
		WithPrompt(f.prompt),
		WithDisplay(f.display),
		WithLogger(quietLogger()),
	}
	f.engine = New(machine, append(base, opts...)...)
	return f
}

func timed(allowance time.Duration) config.Settings {
	return config.Settings{UseTimer: true, QuestionCount: 5, TimeAllowance: allowance}
}

func (f *fixture) apply(t *testing.T, ev session.Event) {
	t.Helper()
	require.NoError(t, f.engine.Apply(context.Background(), ev))
}

func (f *fixture) drain() {
	f.engine.Drain(context.Background())
}

func (f *fixture) tick(d time.Duration) {
	f.clock.Advance(d)
	f.sched.Fire()
	f.drain()
}

func (f *fixture) answer(t *testing.T) {
	t.Helper()
	cur := f.engine.State().Current
	require.NotNil(t, cur)
	require.True(t, f.recognizer.Final(cur.Entry.AnswerText), "recognizer should be listening")
	f.drain()
}

func TestEngine_StartPresentsFirstQuestion(t *testing.T) {
	f := newFixture(t)

	f.apply(t, session.Start(timed(100*time.Second)))

	s := f.engine.State()
	assert.Equal(t, session.PhaseQuestion, s.Phase)
	assert.Equal(t, "id-1", s.SessionID)
	require.NotNil(t, s.Current)
	assert.Equal(t, "one", s.Current.Entry.AnswerText)

	assert.True(t, f.recognizer.Active())
	assert.Equal(t, "id-2", f.recognizer.StreamID())
	assert.Equal(t, []string{"one.mp3"}, f.prompt.Plays())
	assert.Equal(t, []string{"one"}, f.display.questions)
	assert.True(t, f.engine.Timer().Running)
	assert.Equal(t, 100*time.Second, f.engine.Timer().Total)
	assert.Equal(t, 1, f.sched.Active())
}

func TestEngine_MatchAdvancesAfterCorrectCue(t *testing.T) {
	f := newFixture(t)
	f.apply(t, session.Start(timed(100*time.Second)))

	f.answer(t)

	s := f.engine.State()
	assert.Equal(t, session.PhaseMatched, s.Phase)
	assert.Equal(t, 1, s.Score)
	assert.False(t, f.recognizer.Active(), "stream stops on match")
	assert.False(t, f.engine.Timer().Running, "timer pauses on match")
	assert.Equal(t, []string{session.CueCorrect}, f.cues.Pending())

	require.True(t, f.cues.Finish(session.CueCorrect))
	f.drain()

	s = f.engine.State()
	assert.Equal(t, session.PhaseQuestion, s.Phase)
	assert.Equal(t, 1, s.Index)
	assert.Equal(t, "two", s.Current.Entry.AnswerText)
	assert.Equal(t, "id-3", f.recognizer.StreamID())
	assert.True(t, f.engine.Timer().Running)
}

func TestEngine_ManualAdvanceIgnoresLateCue(t *testing.T) {
	f := newFixture(t)
	f.apply(t, session.Start(timed(100*time.Second)))
	f.answer(t)

	f.apply(t, session.Simple(session.EventAdvance))
	require.Equal(t, 1, f.engine.State().Index)

	// The correct cue finishing now enqueues a second advance, which is
	// rejected because the phase is QUESTION again.
	require.True(t, f.cues.Finish(session.CueCorrect))
	f.drain()

	assert.Equal(t, 1, f.engine.State().Index)
	assert.Equal(t, session.PhaseQuestion, f.engine.State().Phase)
}

func TestEngine_StaleRecognitionDropped(t *testing.T) {
	f := newFixture(t)
	f.apply(t, session.Start(timed(100*time.Second)))
	f.apply(t, session.Simple(session.EventSkip))
	require.Equal(t, "two", f.engine.State().Current.Entry.AnswerText)

	f.engine.Enqueue(session.Heard(recognition.Event{
		StreamID: "id-2",
		Results:  []recognition.Result{recognition.Hypothesis("two", true)},
	}))
	f.drain()

	s := f.engine.State()
	assert.Equal(t, session.PhaseQuestion, s.Phase)
	assert.Equal(t, 0, s.Score)
}

func TestEngine_IncorrectFinalPlaysCue(t *testing.T) {
	f := newFixture(t)
	f.apply(t, session.Start(timed(100*time.Second)))

	f.recognizer.Interim("wo")
	f.recognizer.Final("won")
	f.drain()

	assert.Equal(t, []string{session.CueIncorrect}, f.cues.Played())
	assert.Equal(t, 1, f.display.count(session.SignalIncorrectAttempt))
	assert.Equal(t, session.PhaseQuestion, f.engine.State().Phase)
}

func TestEngine_TimeoutEndsSession(t *testing.T) {
	f := newFixture(t, WithJournal(openJournal(t)))
	f.apply(t, session.Start(timed(25*time.Second)))

	f.tick(26 * time.Second)

	s := f.engine.State()
	assert.Equal(t, session.PhaseEnd, s.Phase)
	assert.False(t, s.Completed)
	assert.False(t, f.recognizer.Active())
	assert.Equal(t, 0, f.sched.Active(), "no tick after expiry")
	assert.Equal(t, 1, f.display.count(session.SignalTimeExpired))
	assert.Equal(t, 1, f.display.count(session.SignalSessionEnded))
	assert.Equal(t, []string{session.CueOutOfTime}, f.cues.Pending(), "stop all cues, then out of time")

	require.True(t, f.cues.Finish(session.CueOutOfTime))
	f.drain()
	assert.Equal(t,
		[]string{session.CueTimeWarning, session.CueOutOfTime, session.CueQuizFailed},
		f.cues.Played())
}

// expireBehind fires the expiring tick with ev already queued ahead of the
// timeout the tick raises.
func (f *fixture) expireBehind(t *testing.T, ev func()) {
	t.Helper()
	f.clock.Advance(26 * time.Second)
	f.sched.Fire()
	ev()
	f.drain()
}

func TestEngine_ExpiryBehindPauseEndsOnResume(t *testing.T) {
	f := newFixture(t)
	f.apply(t, session.Start(timed(25*time.Second)))

	f.expireBehind(t, func() {
		require.True(t, f.engine.Enqueue(session.Simple(session.EventPause)))
	})
	require.Equal(t, session.PhasePaused, f.engine.State().Phase)
	require.Equal(t, time.Duration(0), f.engine.Timer().Remaining)

	f.apply(t, session.Simple(session.EventResume))

	s := f.engine.State()
	assert.Equal(t, session.PhaseEnd, s.Phase)
	assert.False(t, s.Completed)
	assert.False(t, f.recognizer.Active())
	assert.Equal(t, 1, f.display.count(session.SignalTimeExpired))
}

func TestEngine_ExpiryBehindMatchEndsOnNextQuestion(t *testing.T) {
	f := newFixture(t)
	f.apply(t, session.Start(timed(25*time.Second)))

	f.expireBehind(t, func() {
		require.True(t, f.recognizer.Final(f.engine.State().Current.Entry.AnswerText))
	})
	require.Equal(t, session.PhaseMatched, f.engine.State().Phase)

	require.True(t, f.cues.Finish(session.CueCorrect))
	f.drain()

	s := f.engine.State()
	assert.Equal(t, session.PhaseEnd, s.Phase)
	assert.False(t, s.Completed)
	assert.Equal(t, 1, s.Score)
	assert.False(t, f.recognizer.Active(), "no stream left open for the next question")
	assert.Equal(t, 1, f.display.count(session.SignalTimeExpired))
}

func TestEngine_ExpiryBehindSkipRaisedOnce(t *testing.T) {
	j := openJournal(t)
	f := newFixture(t, WithJournal(j))
	f.apply(t, session.Start(timed(25*time.Second)))

	f.expireBehind(t, func() {
		require.True(t, f.engine.Enqueue(session.Simple(session.EventSkip)))
	})
	assert.Equal(t, session.PhaseEnd, f.engine.State().Phase)

	events, err := j.ReadEvents(context.Background(), "id-1")
	require.NoError(t, err)
	timeouts := 0
	for _, ev := range events {
		if ev.Kind == string(session.EventTimeout) {
			timeouts++
		}
	}
	assert.Equal(t, 1, timeouts)
}

func TestEngine_StoppedOutOfTimeCueDropsFollowUp(t *testing.T) {
	f := newFixture(t)
	f.apply(t, session.Start(timed(25*time.Second)))
	f.tick(26 * time.Second)

	f.apply(t, session.Simple(session.EventHome))
	assert.Equal(t, 0, f.cues.FinishAll())
	f.drain()

	assert.NotContains(t, f.cues.Played(), session.CueQuizFailed)
	assert.Equal(t, session.PhaseMenu, f.engine.State().Phase)
}

func TestEngine_WarningRetriggersAfterCueFinishes(t *testing.T) {
	f := newFixture(t)
	f.apply(t, session.Start(timed(25*time.Second)))

	f.tick(23 * time.Second)
	require.Equal(t, []string{session.CueTimeWarning}, f.cues.Played())

	f.tick(500 * time.Millisecond)
	assert.Len(t, f.cues.Played(), 1, "no retrigger while the warning plays")

	require.True(t, f.cues.Finish(session.CueTimeWarning))
	f.tick(500 * time.Millisecond)
	assert.Len(t, f.cues.Played(), 2)
	assert.Equal(t, 2, f.display.count(session.SignalTimeWarning))
}

func TestEngine_CustomWarningThreshold(t *testing.T) {
	f := newFixture(t)
	settings := timed(25 * time.Second)
	settings.WarningThreshold = 10 * time.Second
	f.apply(t, session.Start(settings))

	f.tick(16 * time.Second)

	assert.Equal(t, []string{session.CueTimeWarning}, f.cues.Played())
}

func TestEngine_MatchPausesWarningCue(t *testing.T) {
	f := newFixture(t)
	f.apply(t, session.Start(timed(25*time.Second)))
	f.tick(23 * time.Second)
	require.True(t, f.cues.Active(session.CueTimeWarning))

	f.answer(t)

	assert.False(t, f.cues.Active(session.CueTimeWarning))
}

func TestEngine_UntimedSessionHidesTimer(t *testing.T) {
	f := newFixture(t)
	f.apply(t, session.Start(config.Settings{UseTimer: false, QuestionCount: 5}))

	f.tick(time.Hour)

	assert.Equal(t, session.PhaseQuestion, f.engine.State().Phase)
	assert.False(t, f.engine.Timer().Enabled)
	assert.Equal(t, 0, f.sched.Active())
	assert.Equal(t, 1, f.display.hidden)
}

func TestEngine_TickRefreshesDisplay(t *testing.T) {
	f := newFixture(t)
	f.apply(t, session.Start(timed(100*time.Second)))

	f.tick(40 * time.Second)

	require.NotEmpty(t, f.display.timers)
	last := f.display.timers[len(f.display.timers)-1]
	assert.Equal(t, 60*time.Second, last.Remaining)
	assert.Equal(t, "01:00", last.Text())
}

func TestEngine_NoSpeechRestartsStream(t *testing.T) {
	f := newFixture(t)
	f.apply(t, session.Start(timed(100*time.Second)))

	require.True(t, f.recognizer.Fail(recognition.ErrNoSpeech, "silence"))
	f.drain()

	assert.Equal(t, 2, f.recognizer.Starts())
	assert.Equal(t, "id-3", f.recognizer.StreamID())
	assert.True(t, f.recognizer.Active())
	assert.Equal(t, "id-3", f.engine.State().StreamID)
}

func TestEngine_OtherRecognitionErrorClosesStream(t *testing.T) {
	f := newFixture(t)
	f.apply(t, session.Start(timed(100*time.Second)))

	require.True(t, f.recognizer.Fail(recognition.ErrNetwork, "offline"))
	f.drain()

	assert.Equal(t, 1, f.recognizer.Starts())
	assert.Empty(t, f.engine.State().StreamID)
	assert.Equal(t, session.PhaseQuestion, f.engine.State().Phase)

	f.apply(t, session.Simple(session.EventListen))
	assert.True(t, f.recognizer.Active())
	assert.Equal(t, 2, f.recognizer.Starts())
}

type failingRecognizer struct{}

func (failingRecognizer) Start(context.Context, string, recognition.Sink) error {
	return &recognition.ErrorEvent{Code: recognition.ErrAudioCapture, Message: "no microphone"}
}

func (failingRecognizer) Stop() {}

func TestEngine_RecognizerStartFailureClearsStream(t *testing.T) {
	f := newFixture(t, WithRecognizer(failingRecognizer{}))

	f.apply(t, session.Start(timed(100*time.Second)))

	s := f.engine.State()
	assert.Equal(t, session.PhaseQuestion, s.Phase)
	assert.Empty(t, s.StreamID)
}

func TestEngine_PauseResume(t *testing.T) {
	f := newFixture(t)
	f.apply(t, session.Start(timed(100*time.Second)))
	f.tick(10 * time.Second)

	f.apply(t, session.Simple(session.EventPause))
	s := f.engine.State()
	assert.Equal(t, session.PhasePaused, s.Phase)
	assert.Nil(t, s.Current)
	assert.False(t, f.recognizer.Active())
	assert.False(t, f.engine.Timer().Running)
	assert.True(t, f.prompt.Paused())
	atPause := f.engine.Timer().Remaining

	f.clock.Advance(time.Hour)
	f.apply(t, session.Simple(session.EventResume))

	s = f.engine.State()
	assert.Equal(t, session.PhaseQuestion, s.Phase)
	require.NotNil(t, s.Current)
	assert.Equal(t, "one", s.Current.Entry.AnswerText)
	assert.True(t, f.recognizer.Active())
	assert.Equal(t, "id-3", f.recognizer.StreamID())
	assert.False(t, f.prompt.Paused())

	f.tick(0)
	assert.Equal(t, atPause, f.engine.Timer().Remaining)
}

func TestEngine_CorrectCueFinishedBehindPauseAdvancesOnResume(t *testing.T) {
	f := newFixture(t)
	f.apply(t, session.Start(timed(100*time.Second)))
	f.answer(t)

	require.True(t, f.engine.Enqueue(session.Simple(session.EventPause)))
	require.True(t, f.cues.Finish(session.CueCorrect))
	f.drain()

	s := f.engine.State()
	require.Equal(t, session.PhasePaused, s.Phase)
	assert.Equal(t, 0, s.Index, "advance waits for resume")

	f.apply(t, session.Simple(session.EventResume))

	s = f.engine.State()
	assert.Equal(t, session.PhaseQuestion, s.Phase)
	assert.Equal(t, 1, s.Index)
	assert.Equal(t, "two", s.Current.Entry.AnswerText)
	assert.True(t, f.recognizer.Active())
	assert.True(t, f.engine.Timer().Running)
}

func TestEngine_CorrectCueHeldOverPauseAdvancesOnce(t *testing.T) {
	f := newFixture(t)
	f.apply(t, session.Start(timed(100*time.Second)))
	f.answer(t)

	f.apply(t, session.Simple(session.EventPause))
	assert.False(t, f.cues.Finish(session.CueCorrect), "paused cue does not finish")

	f.apply(t, session.Simple(session.EventResume))
	require.Equal(t, session.PhaseMatched, f.engine.State().Phase)

	require.True(t, f.cues.Finish(session.CueCorrect))
	f.drain()

	s := f.engine.State()
	assert.Equal(t, session.PhaseQuestion, s.Phase)
	assert.Equal(t, 1, s.Index)
}

func TestEngine_RejectedInputKeepsState(t *testing.T) {
	f := newFixture(t)

	err := f.engine.Apply(context.Background(), session.Simple(session.EventSkip))

	require.Error(t, err)
	assert.True(t, session.IsInvalidPhase(err))
	assert.Equal(t, session.PhaseMenu, f.engine.State().Phase)
}

func TestEngine_StartRejectedWhenTooManyQuestions(t *testing.T) {
	f := newFixture(t)

	err := f.engine.Apply(context.Background(), session.Start(config.Settings{QuestionCount: 9}))

	assert.True(t, session.IsStartRejected(err))
	assert.Equal(t, session.PhaseMenu, f.engine.State().Phase)
	assert.False(t, f.recognizer.Active())
}

func TestEngine_FullRunCompletes(t *testing.T) {
	f := newFixture(t)
	f.apply(t, session.Start(timed(100*time.Second)))

	for i := 0; i < 3; i++ {
		f.answer(t)
		require.True(t, f.cues.Finish(session.CueCorrect))
		f.drain()
	}
	f.apply(t, session.Simple(session.EventSkip))
	f.apply(t, session.Simple(session.EventSkip))
	for i := 0; i < 2; i++ {
		f.answer(t)
		require.True(t, f.cues.Finish(session.CueCorrect))
		f.drain()
	}

	s := f.engine.State()
	assert.Equal(t, session.PhaseEnd, s.Phase)
	assert.True(t, s.Completed)
	assert.Equal(t, 5, s.Score)
	assert.Contains(t, f.cues.Played(), session.CueQuizCompleted)
	assert.False(t, f.engine.Timer().Running)
	assert.False(t, f.recognizer.Active())
}

func TestEngine_ReviewAndHome(t *testing.T) {
	loader := &countingLoader{}
	images := media.NewImageCache(loader, quietLogger())
	f := newFixture(t, WithImages(images), WithSyncPrefetch())
	f.apply(t, session.Start(timed(25*time.Second)))
	f.tick(26 * time.Second)

	f.apply(t, session.Simple(session.EventReview))
	s := f.engine.State()
	assert.Equal(t, session.PhaseReview, s.Phase)
	assert.Equal(t, 0, s.Index)
	assert.False(t, f.recognizer.Active(), "no recognition in review")
	assert.Equal(t, 1, f.display.hidden)

	f.apply(t, session.Navigate(-1))
	assert.Equal(t, 0, f.engine.State().Index, "before first is a no-op")
	f.apply(t, session.Navigate(1))
	assert.Equal(t, 1, f.engine.State().Index)
	f.apply(t, session.Simple(session.EventPlayAudio))

	f.apply(t, session.Simple(session.EventHome))
	assert.Equal(t, session.PhaseMenu, f.engine.State().Phase)
	assert.Equal(t, 1, f.display.cleared)
	assert.False(t, images.Cached("one.png"))
}

func TestEngine_ImagesShownAndPrefetched(t *testing.T) {
	loader := &countingLoader{}
	images := media.NewImageCache(loader, quietLogger())
	f := newFixture(t, WithImages(images), WithSyncPrefetch())

	f.apply(t, session.Start(timed(100*time.Second)))

	assert.Equal(t, []string{"one.png"}, f.display.images)
	assert.True(t, images.Cached("two.png"))
	assert.True(t, images.Cached("three.png"))
	assert.True(t, images.Cached("four.png"))
	assert.False(t, images.Cached("zero.png"), "only the next three are prefetched")

	f.answer(t)
	require.True(t, f.cues.Finish(session.CueCorrect))
	f.drain()

	assert.Equal(t, []string{"one.png", "two.png"}, f.display.images)
	assert.Equal(t, 5, images.Loads())
}

func openJournal(t *testing.T) *journal.Journal {
	t.Helper()
	j, err := journal.Open(journal.MemoryDSN)
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func TestEngine_JournalsEventsAndSignals(t *testing.T) {
	j := openJournal(t)
	f := newFixture(t, WithJournal(j))

	require.Error(t, f.engine.Apply(context.Background(), session.Simple(session.EventResume)))
	f.apply(t, session.Start(timed(100*time.Second)))
	f.apply(t, session.Simple(session.EventSkip))

	ctx := context.Background()
	events, err := j.ReadEvents(ctx, "id-1")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "start", events[0].Kind)
	assert.Equal(t, "MENU", events[0].PhaseBefore)
	assert.Equal(t, "QUESTION", events[0].PhaseAfter)
	assert.Equal(t, "skip", events[1].Kind)

	rejected, err := j.ReadEvents(ctx, "")
	require.NoError(t, err)
	require.Len(t, rejected, 1)
	assert.Equal(t, session.ErrCodeInvalidPhase, rejected[0].Rejected)

	signals, err := j.ReadSignals(ctx, "id-1")
	require.NoError(t, err)
	var kinds []string
	for _, s := range signals {
		kinds = append(kinds, s.Kind)
	}
	assert.Equal(t, []string{"phase_changed", "question_changed", "question_changed"}, kinds)

	seq, err := j.MaxSeq(ctx)
	require.NoError(t, err)
	assert.Equal(t, f.engine.clock.Current(), seq)
}

func TestEngine_RunProcessesEnqueued(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- f.engine.Run(ctx) }()

	require.True(t, f.engine.Enqueue(session.Start(timed(100*time.Second))))
	assert.Eventually(t, func() bool {
		return f.engine.State().Phase == session.PhaseQuestion
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop")
	}
	assert.False(t, f.recognizer.Active(), "shutdown stops recognition")
	assert.False(t, f.engine.Enqueue(session.Simple(session.EventSkip)))
}

func TestEngine_StopEndsRun(t *testing.T) {
	f := newFixture(t)

	done := make(chan error, 1)
	go func() { done <- f.engine.Run(context.Background()) }()
	f.engine.Stop()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop")
	}

	err := f.engine.Apply(context.Background(), session.Simple(session.EventHome))
	assert.True(t, IsStopped(err))
}

func TestEngine_FailedCueStillContinues(t *testing.T) {
	f := newFixture(t)
	f.cues.FailWith(session.CueCorrect, errors.New("decoder missing"))
	f.apply(t, session.Start(timed(100*time.Second)))

	f.answer(t)

	s := f.engine.State()
	assert.Equal(t, session.PhaseQuestion, s.Phase, "a failed cue still advances")
	assert.Equal(t, 1, s.Index)
}

func TestEngine_SyncWaitsForEarlierEvents(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- f.engine.Run(ctx) }()

	require.True(t, f.engine.Enqueue(session.Start(timed(100*time.Second))))
	require.NoError(t, f.engine.Sync(ctx))
	assert.Equal(t, session.PhaseQuestion, f.engine.State().Phase)
	assert.True(t, f.recognizer.Active(), "the stream is open once start was processed")

	f.engine.Stop()
	<-done
	assert.True(t, IsStopped(f.engine.Sync(ctx)))
}

func TestEngine_SyncHonoursContext(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// No Run loop: the barrier is never reached.
	assert.ErrorIs(t, f.engine.Sync(ctx), context.Canceled)
}
