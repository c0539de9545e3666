package cli

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/roach88/sayquiz/internal/countdown"
	"github.com/roach88/sayquiz/internal/engine"
	"github.com/roach88/sayquiz/internal/media"
	"github.com/roach88/sayquiz/internal/session"
)

// syncWriter serializes writes from the engine loop, the cue timers and
// the input loop onto one terminal.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

// consoleDisplay renders the session as text lines.
type consoleDisplay struct {
	engine.NopDisplay
	out       io.Writer
	lastTimer string
}

func newConsoleDisplay(out io.Writer) *consoleDisplay {
	return &consoleDisplay{out: out}
}

func (d *consoleDisplay) ShowQuestion(q session.Question, s session.State) {
	total := len(s.Queue)
	if s.Phase == session.PhaseReview {
		fmt.Fprintf(d.out, "\nReview %d/%d: %s = %s\n", s.Index+1, total, q.Entry.PromptText, q.Entry.AnswerText)
		return
	}
	fmt.Fprintf(d.out, "\nQuestion %d/%d: %s\n", s.Index+1, total, q.Entry.PromptText)
	if q.Entry.AudioRef != "" {
		fmt.Fprintln(d.out, "  (:audio replays the prompt)")
	}
}

func (d *consoleDisplay) ShowImage(img *media.Image) {
	if img == nil {
		return
	}
	fmt.Fprintf(d.out, "  image: %s\n", img.Path)
}

// ShowTimer prints the countdown every ten seconds and each of the last
// five.
func (d *consoleDisplay) ShowTimer(r countdown.Reading) {
	text := r.Text()
	if text == d.lastTimer {
		return
	}
	d.lastTimer = text

	secs := int((r.Remaining + time.Second - 1) / time.Second)
	if secs%10 == 0 || secs <= 5 {
		fmt.Fprintf(d.out, "  time %s\n", text)
	}
}

func (d *consoleDisplay) HideTimer() {
	d.lastTimer = ""
}

func (d *consoleDisplay) Notify(sig session.Signal, s session.State) {
	switch sig.Kind {
	case session.SignalMatched:
		fmt.Fprintf(d.out, "✓ correct (%d/%d)\n", sig.Score, sig.Total)
	case session.SignalIncorrectAttempt:
		fmt.Fprintf(d.out, "✗ heard %q\n", sig.Transcript)
	case session.SignalTimeWarning:
		fmt.Fprintln(d.out, "! time is running out")
	case session.SignalTimeExpired:
		fmt.Fprintln(d.out, "! out of time")
	case session.SignalSessionEnded:
		if sig.Completed {
			fmt.Fprintf(d.out, "\nQuiz completed: %d/%d. :review to go over it, :home for the menu\n", sig.Score, sig.Total)
		} else {
			fmt.Fprintf(d.out, "\nQuiz over: %d/%d. :review to go over it, :home for the menu\n", sig.Score, sig.Total)
		}
	case session.SignalPhaseChanged:
		switch sig.Phase {
		case session.PhasePaused:
			fmt.Fprintln(d.out, "(paused, :resume to continue)")
		case session.PhaseMenu:
			fmt.Fprintln(d.out, "\nMenu. :start to play, :quit to leave")
		}
	}
}
