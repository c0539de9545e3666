package session

// Phase is one of the six session states.
type Phase int

const (
	PhaseMenu Phase = iota
	PhaseQuestion
	PhaseMatched
	PhaseReview
	PhaseEnd
	PhasePaused
)

var phaseNames = map[Phase]string{
	PhaseMenu:     "MENU",
	PhaseQuestion: "QUESTION",
	PhaseMatched:  "MATCHED",
	PhaseReview:   "REVIEW",
	PhaseEnd:      "END",
	PhasePaused:   "PAUSED",
}

func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return "UNKNOWN"
}

// ParsePhase converts a phase name back to a Phase.
func ParsePhase(name string) (Phase, bool) {
	for p, n := range phaseNames {
		if n == name {
			return p, true
		}
	}
	return 0, false
}

// showsQuestion reports whether a question is on screen in p.
func (p Phase) showsQuestion() bool {
	return p == PhaseQuestion || p == PhaseMatched || p == PhaseReview
}
