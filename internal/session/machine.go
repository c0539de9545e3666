package session

import (
	"fmt"

	"github.com/roach88/sayquiz/internal/config"
	"github.com/roach88/sayquiz/internal/matcher"
	"github.com/roach88/sayquiz/internal/recognition"
	"github.com/roach88/sayquiz/internal/sequencer"
	"github.com/roach88/sayquiz/internal/vocab"
)

// IDGenerator produces session and recognition stream IDs.
type IDGenerator interface {
	Generate() string
}

// Machine holds the collaborators a transition needs: the dataset questions
// are drawn from, a random source for sampling, and an ID generator. It has
// no mutable state of its own.
type Machine struct {
	dataset *vocab.Dataset
	rng     sequencer.Source
	ids     IDGenerator
}

// NewMachine creates a machine over dataset. A nil rng uses
// sequencer.DefaultSource.
func NewMachine(dataset *vocab.Dataset, rng sequencer.Source, ids IDGenerator) *Machine {
	if rng == nil {
		rng = sequencer.DefaultSource()
	}
	return &Machine{dataset: dataset, rng: rng, ids: ids}
}

// Dataset returns the dataset questions are drawn from.
func (m *Machine) Dataset() *vocab.Dataset {
	return m.dataset
}

// Transition applies ev to s. On error the returned state is s and there are
// no effects.
func (m *Machine) Transition(s State, ev Event) (State, []Effect, error) {
	if ev.Kind.isAsync() && !m.applies(s, ev) {
		return s, nil, nil
	}

	next, effects, err := m.dispatch(s, ev)
	if err != nil {
		return s, nil, err
	}
	return next, effects, nil
}

func (m *Machine) dispatch(s State, ev Event) (State, []Effect, error) {
	switch ev.Kind {
	case EventStart:
		return m.start(s, ev)
	case EventRecognition:
		return m.heard(s, *ev.Recognition)
	case EventRecognitionError:
		return m.recognitionFailed(s, *ev.Error)
	case EventTimeWarning:
		return s, []Effect{cue(CueTimeWarning, nil), emit(SignalTimeWarning, s)}, nil
	case EventTimeout:
		return m.timeout(s)
	case EventCue:
		return s, []Effect{cue(ev.Cue, nil)}, nil
	case EventSkip:
		return m.skip(s, ev)
	case EventPause:
		return m.pause(s, ev)
	case EventResume:
		return m.resume(s, ev)
	case EventAdvance:
		return m.advance(s, ev)
	case EventReview:
		return m.review(s, ev)
	case EventNavigate:
		return m.navigate(s, ev)
	case EventHome:
		return m.home(s, ev)
	case EventListen:
		if s.Phase != PhaseQuestion {
			return reject(s, ev, ErrCodeInvalidPhase, nil)
		}
		return m.restartStream(s)
	case EventPlayAudio:
		if s.Phase != PhaseQuestion && s.Phase != PhaseReview {
			return reject(s, ev, ErrCodeInvalidPhase, nil)
		}
		return s, []Effect{do(EffectPlayAudio)}, nil
	default:
		return reject(s, ev, ErrCodeBadEvent, fmt.Errorf("unknown event kind %q", ev.Kind))
	}
}

// applies reports whether an asynchronous event still refers to the current
// question.
func (m *Machine) applies(s State, ev Event) bool {
	switch ev.Kind {
	case EventRecognition:
		return s.Phase == PhaseQuestion && s.StreamID != "" && ev.Recognition != nil && ev.Recognition.StreamID == s.StreamID
	case EventRecognitionError:
		return s.Phase == PhaseQuestion && s.StreamID != "" && ev.Error != nil && ev.Error.StreamID == s.StreamID
	case EventTimeWarning, EventTimeout:
		return s.Phase == PhaseQuestion
	case EventCue:
		return s.Phase != PhaseMenu && ev.Cue != ""
	}
	return false
}

func reject(s State, ev Event, code string, err error) (State, []Effect, error) {
	return s, nil, &TransitionError{Code: code, Phase: s.Phase, Event: ev.Kind, Err: err}
}

func (m *Machine) start(s State, ev Event) (State, []Effect, error) {
	if s.Phase != PhaseMenu {
		return reject(s, ev, ErrCodeInvalidPhase, nil)
	}
	if ev.Settings == nil {
		return reject(s, ev, ErrCodeBadEvent, fmt.Errorf("start without settings"))
	}

	size := m.dataset.Len()
	settings, err := ev.Settings.Resolve(size)
	if err != nil {
		return reject(s, ev, ErrCodeStartRejected, err)
	}
	queue, err := sequencer.Generate(m.rng, size, settings.QuestionCount, settings.WithReplacement)
	if err != nil {
		return reject(s, ev, ErrCodeStartRejected, err)
	}

	next := State{
		Phase:     PhaseQuestion,
		SessionID: m.ids.Generate(),
		Settings:  settings,
		Queue:     queue,
	}
	effects := []Effect{
		{Kind: EffectResetTimer, Total: settings.TimeAllowance, Enabled: settings.UseTimer},
		emit(SignalPhaseChanged, next),
	}
	return m.load(next, 0, effects)
}

// load puts the question at idx on screen in next.Phase and appends the
// effects of doing so.
func (m *Machine) load(next State, idx int, effects []Effect) (State, []Effect, error) {
	entry, ok := m.dataset.At(next.Queue.At(idx))
	if !ok {
		return State{}, nil, fmt.Errorf("queue entry %d refers to missing dataset index %d", idx, next.Queue.At(idx))
	}

	next.Index = idx
	next.Current = &Question{Entry: entry, AttemptsRemaining: copyInt(next.Settings.AttemptsPerQuestion)}
	next.Transcript = ""

	if next.StreamID != "" {
		effects = append(effects, do(EffectStopRecognition))
		next.StreamID = ""
	}

	effects = append(effects,
		Effect{Kind: EffectShowQuestion, Question: next.Current},
		Effect{Kind: EffectLoadAudio, Ref: entry.AudioRef},
		Effect{Kind: EffectShowImage, Ref: entry.ImageRef},
	)
	if refs := m.upcomingImages(next, idx+1); len(refs) > 0 {
		effects = append(effects, Effect{Kind: EffectPrefetch, Refs: refs})
	}
	effects = append(effects,
		emit(SignalQuestionChanged, next),
		do(EffectPlayAudio),
	)

	if next.Phase == PhaseQuestion {
		next.StreamID = m.ids.Generate()
		effects = append(effects,
			Effect{Kind: EffectStartRecognition, StreamID: next.StreamID},
			do(EffectStartTimer),
		)
	}
	return next, effects, nil
}

func (m *Machine) upcomingImages(s State, from int) []string {
	to := min(from+s.Settings.PrefetchCount, len(s.Queue))
	var refs []string
	for i := from; i < to; i++ {
		if e, ok := m.dataset.At(s.Queue[i]); ok && e.ImageRef != "" {
			refs = append(refs, e.ImageRef)
		}
	}
	return refs
}

func copyInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func (m *Machine) heard(s State, rev recognition.Event) (State, []Effect, error) {
	v := matcher.Match(s.Current.Entry.AnswerText, rev)

	next := s.clone()
	next.Transcript = v.Transcript

	if v.Kind != matcher.Matched {
		var effects []Effect
		for i := 0; i < v.IncorrectFinals; i++ {
			effects = append(effects, cue(CueIncorrect, nil), emit(SignalIncorrectAttempt, next))
		}
		effects = append(effects, emit(SignalTranscript, next))
		return next, effects, nil
	}

	next.Phase = PhaseMatched
	next.StreamID = ""
	next.Score = min(next.Score+1, len(next.Queue))

	advance := Simple(EventAdvance)
	return next, []Effect{
		do(EffectStopRecognition),
		do(EffectPauseTimer),
		do(EffectPauseCues),
		emit(SignalMatched, next),
		emit(SignalPhaseChanged, next),
		cue(CueCorrect, &advance),
	}, nil
}

func (m *Machine) recognitionFailed(s State, rerr recognition.ErrorEvent) (State, []Effect, error) {
	if rerr.Code != recognition.ErrNoSpeech {
		// The stream is dead; the question stays answerable by skip or
		// timeout.
		next := s.clone()
		next.StreamID = ""
		return next, nil, nil
	}

	return m.restartStream(s)
}

// restartStream replaces the recognition stream of the current question.
func (m *Machine) restartStream(s State) (State, []Effect, error) {
	next := s.clone()
	next.StreamID = m.ids.Generate()
	return next, []Effect{
		do(EffectStopRecognition),
		{Kind: EffectStartRecognition, StreamID: next.StreamID},
	}, nil
}

func (m *Machine) timeout(s State) (State, []Effect, error) {
	next := s.clone()
	next.Phase = PhaseEnd
	next.Completed = false
	next.Current = nil
	next.StreamID = ""
	next.Transcript = ""

	failed := Event{Kind: EventCue, Cue: CueQuizFailed}
	return next, []Effect{
		do(EffectPauseTimer),
		do(EffectStopRecognition),
		do(EffectStopCues),
		emit(SignalTimeExpired, next),
		cue(CueOutOfTime, &failed),
		emit(SignalPhaseChanged, next),
		emit(SignalSessionEnded, next),
	}, nil
}

func (m *Machine) skip(s State, ev Event) (State, []Effect, error) {
	switch s.Phase {
	case PhaseQuestion:
	case PhaseMatched:
		return s, nil, nil
	default:
		return reject(s, ev, ErrCodeInvalidPhase, nil)
	}

	queue, err := sequencer.Skip(s.Queue, s.Index)
	if err != nil {
		// Deferring the last question is meaningless.
		return s, nil, nil
	}

	next := s.clone()
	next.Queue = queue
	return m.load(next, s.Index, nil)
}

func (m *Machine) pause(s State, ev Event) (State, []Effect, error) {
	if !s.Phase.showsQuestion() {
		return reject(s, ev, ErrCodeInvalidPhase, nil)
	}

	next := s.clone()
	prev := s.Phase
	next.Previous = &prev
	next.Phase = PhasePaused
	next.held = s.Current
	next.Current = nil
	next.StreamID = ""

	return next, []Effect{
		do(EffectStopRecognition),
		do(EffectPauseTimer),
		do(EffectPauseCues),
		do(EffectPauseAudio),
		emit(SignalPhaseChanged, next),
	}, nil
}

func (m *Machine) resume(s State, ev Event) (State, []Effect, error) {
	if s.Phase != PhasePaused || s.Previous == nil {
		return reject(s, ev, ErrCodeInvalidPhase, nil)
	}

	next := s.clone()
	next.Phase = *s.Previous
	next.Previous = nil
	next.Current = s.held
	next.held = nil

	effects := []Effect{
		do(EffectResumeAudio),
		do(EffectResumeCues),
	}
	if next.Phase == PhaseQuestion {
		next.StreamID = m.ids.Generate()
		effects = append(effects,
			Effect{Kind: EffectStartRecognition, StreamID: next.StreamID},
			do(EffectStartTimer),
		)
	}
	effects = append(effects, emit(SignalPhaseChanged, next))
	return next, effects, nil
}

func (m *Machine) advance(s State, ev Event) (State, []Effect, error) {
	if s.Phase != PhaseMatched {
		return reject(s, ev, ErrCodeInvalidPhase, nil)
	}

	next := s.clone()
	if s.IsLast() {
		next.Phase = PhaseEnd
		next.Completed = true
		next.Current = nil
		return next, []Effect{
			do(EffectPauseTimer),
			emit(SignalPhaseChanged, next),
			emit(SignalSessionEnded, next),
			cue(CueQuizCompleted, nil),
		}, nil
	}

	idx, _ := sequencer.Advance(s.Queue, s.Index, 1)
	next.Phase = PhaseQuestion
	loaded, effects, err := m.load(next, idx, nil)
	if err != nil {
		return s, nil, err
	}
	return loaded, append([]Effect{emit(SignalPhaseChanged, loaded)}, effects...), nil
}

func (m *Machine) review(s State, ev Event) (State, []Effect, error) {
	if s.Phase != PhaseEnd {
		return reject(s, ev, ErrCodeInvalidPhase, nil)
	}

	next := s.clone()
	next.Phase = PhaseReview
	loaded, effects, err := m.load(next, 0, nil)
	if err != nil {
		return s, nil, err
	}
	return loaded, append([]Effect{
		do(EffectPauseTimer),
		do(EffectHideTimer),
		emit(SignalPhaseChanged, loaded),
	}, effects...), nil
}

func (m *Machine) navigate(s State, ev Event) (State, []Effect, error) {
	if s.Phase != PhaseReview {
		return reject(s, ev, ErrCodeInvalidPhase, nil)
	}

	idx, ok := sequencer.Advance(s.Queue, s.Index, ev.Delta)
	if !ok || idx == s.Index {
		return s, nil, nil
	}
	return m.load(s.clone(), idx, nil)
}

func (m *Machine) home(s State, ev Event) (State, []Effect, error) {
	if s.Phase == PhaseMenu || s.Phase == PhasePaused {
		return reject(s, ev, ErrCodeInvalidPhase, nil)
	}

	next := Initial()
	return next, []Effect{
		do(EffectStopRecognition),
		{Kind: EffectResetTimer, Total: 0, Enabled: false},
		do(EffectStopCues),
		do(EffectStopAudio),
		do(EffectClearImages),
		emit(SignalPhaseChanged, next),
	}, nil
}

// Settings returns the resolved settings a start event would use, without
// starting a session.
func (m *Machine) Settings(s config.Settings) (config.Settings, error) {
	return s.Resolve(m.dataset.Len())
}
