// Package media provides the prompt audio, sound-effect cue and image
// collaborators a session drives.
//
// Every operation degrades gracefully. A missing or broken asset is logged
// and the question proceeds without it; nothing here returns an error that
// should stop a session.
package media

import (
	"context"
	"errors"
)

// ErrNoAudio is returned by Prompt.Play when no prompt audio is loaded.
var ErrNoAudio = errors.New("no prompt audio loaded")

// Prompt plays the pronunciation audio of the current question.
type Prompt interface {
	// Load selects the audio for the next Play. An empty ref clears it.
	Load(ref string)
	// Play starts playback from the beginning unless already playing.
	Play(ctx context.Context) error
	// Pause holds playback if it is in progress.
	Pause()
	// Resume continues playback held by Pause.
	Resume()
	// Stop ends playback and rewinds.
	Stop()
}

// Cues plays named sound effects. Cues are fire-and-forget: Play returns
// immediately and done, if non-nil, is called once when the cue finishes or
// fails. A cue removed by StopAll never calls done.
type Cues interface {
	Play(name string, done func(error))
	PauseAll()
	ResumeAll()
	StopAll()
	// Active reports whether name is currently audible, that is playing and
	// not paused.
	Active(name string) bool
}
