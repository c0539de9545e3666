package session

import "time"

// EffectKind names a side effect for the engine to perform.
type EffectKind string

const (
	EffectResetTimer EffectKind = "reset_timer"
	EffectStartTimer EffectKind = "start_timer"
	EffectPauseTimer EffectKind = "pause_timer"
	EffectHideTimer  EffectKind = "hide_timer"

	EffectStartRecognition EffectKind = "start_recognition"
	EffectStopRecognition  EffectKind = "stop_recognition"

	EffectShowQuestion EffectKind = "show_question"
	EffectShowImage    EffectKind = "show_image"
	EffectPrefetch     EffectKind = "prefetch_images"
	EffectClearImages  EffectKind = "clear_images"

	EffectLoadAudio   EffectKind = "load_audio"
	EffectPlayAudio   EffectKind = "play_audio"
	EffectPauseAudio  EffectKind = "pause_audio"
	EffectResumeAudio EffectKind = "resume_audio"
	EffectStopAudio   EffectKind = "stop_audio"

	EffectPlayCue    EffectKind = "play_cue"
	EffectPauseCues  EffectKind = "pause_cues"
	EffectResumeCues EffectKind = "resume_cues"
	EffectStopCues   EffectKind = "stop_cues"

	EffectEmit EffectKind = "emit"
)

// Sound-effect cue names.
const (
	CueCorrect       = "correct"
	CueIncorrect     = "incorrect"
	CueTimeWarning   = "time_warning"
	CueOutOfTime     = "out_of_time"
	CueQuizCompleted = "quiz_completed"
	CueQuizFailed    = "quiz_failed"
)

// Effect is one side effect. Only the fields relevant to Kind are set.
type Effect struct {
	Kind EffectKind `json:"kind"`

	// Timer.
	Total   time.Duration `json:"total,omitempty"`
	Enabled bool          `json:"enabled,omitempty"`

	// Recognition.
	StreamID string `json:"stream_id,omitempty"`

	// Presentation and assets.
	Question *Question `json:"question,omitempty"`
	Ref      string    `json:"ref,omitempty"`
	Refs     []string  `json:"refs,omitempty"`

	// Cues. Then is fed back to the machine when the cue finishes or fails.
	Cue  string `json:"cue,omitempty"`
	Then *Event `json:"then,omitempty"`

	Signal *Signal `json:"signal,omitempty"`
}

// SignalKind names a notification for presentation.
type SignalKind string

const (
	SignalPhaseChanged     SignalKind = "phase_changed"
	SignalQuestionChanged  SignalKind = "question_changed"
	SignalMatched          SignalKind = "matched"
	SignalIncorrectAttempt SignalKind = "incorrect_attempt"
	SignalTranscript       SignalKind = "transcript"
	SignalTimeWarning      SignalKind = "time_warning"
	SignalTimeExpired      SignalKind = "time_expired"
	SignalSessionEnded     SignalKind = "session_ended"
)

// Signal is a discrete notification with the state it refers to.
type Signal struct {
	Kind       SignalKind `json:"kind"`
	Phase      Phase      `json:"phase"`
	Index      int        `json:"index"`
	Score      int        `json:"score"`
	Total      int        `json:"total"`
	Completed  bool       `json:"completed,omitempty"`
	Transcript string     `json:"transcript,omitempty"`
}

func emit(kind SignalKind, s State) Effect {
	return Effect{Kind: EffectEmit, Signal: &Signal{
		Kind:       kind,
		Phase:      s.Phase,
		Index:      s.Index,
		Score:      s.Score,
		Total:      len(s.Queue),
		Completed:  s.Completed,
		Transcript: s.Transcript,
	}}
}

func do(kind EffectKind) Effect {
	return Effect{Kind: kind}
}

func cue(name string, then *Event) Effect {
	return Effect{Kind: EffectPlayCue, Cue: name, Then: then}
}
