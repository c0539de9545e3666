package engine

import (
	"github.com/roach88/sayquiz/internal/countdown"
	"github.com/roach88/sayquiz/internal/media"
	"github.com/roach88/sayquiz/internal/session"
)

// Display renders what the learner sees. All calls arrive on the Run
// goroutine and must not block.
type Display interface {
	ShowQuestion(q session.Question, s session.State)
	ShowImage(img *media.Image)
	ClearImages()
	ShowTimer(r countdown.Reading)
	HideTimer()
	Notify(sig session.Signal, s session.State)
}

// NopDisplay ignores everything. Embed it to implement part of Display.
type NopDisplay struct{}

func (NopDisplay) ShowQuestion(session.Question, session.State) {}
func (NopDisplay) ShowImage(*media.Image)                       {}
func (NopDisplay) ClearImages()                                 {}
func (NopDisplay) ShowTimer(countdown.Reading)                  {}
func (NopDisplay) HideTimer()                                   {}
func (NopDisplay) Notify(session.Signal, session.State)         {}
