package media

import (
	"context"
	"sync"
)

// ManualCues is a Cues implementation whose cues finish only when Finish is
// called. It backs the scenario harness and engine tests.
//
// Thread-safety: all methods are safe for concurrent use. done callbacks
// run outside the lock.
type ManualCues struct {
	mu      sync.Mutex
	pending []*pendingCue
	played  []string
	failing map[string]error
}

type pendingCue struct {
	name   string
	done   func(error)
	paused bool
}

// NewManualCues creates an idle cue player.
func NewManualCues() *ManualCues {
	return &ManualCues{failing: make(map[string]error)}
}

// FailWith makes every future Play of name fail immediately with err.
func (c *ManualCues) FailWith(name string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failing[name] = err
}

// Play implements Cues.
func (c *ManualCues) Play(name string, done func(error)) {
	c.mu.Lock()
	c.played = append(c.played, name)
	if err, ok := c.failing[name]; ok {
		c.mu.Unlock()
		if done != nil {
			done(err)
		}
		return
	}
	c.pending = append(c.pending, &pendingCue{name: name, done: done})
	c.mu.Unlock()
}

// Finish completes the oldest unpaused pending cue named name. It reports
// whether one was found.
func (c *ManualCues) Finish(name string) bool {
	c.mu.Lock()
	var hit *pendingCue
	for i, p := range c.pending {
		if p.name == name && !p.paused {
			hit = p
			c.pending = append(c.pending[:i], c.pending[i+1:]...)
			break
		}
	}
	c.mu.Unlock()

	if hit == nil {
		return false
	}
	if hit.done != nil {
		hit.done(nil)
	}
	return true
}

// FinishAll completes every unpaused pending cue in play order.
func (c *ManualCues) FinishAll() int {
	c.mu.Lock()
	var ready, held []*pendingCue
	for _, p := range c.pending {
		if p.paused {
			held = append(held, p)
		} else {
			ready = append(ready, p)
		}
	}
	c.pending = held
	c.mu.Unlock()

	for _, p := range ready {
		if p.done != nil {
			p.done(nil)
		}
	}
	return len(ready)
}

// PauseAll implements Cues.
func (c *ManualCues) PauseAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range c.pending {
		p.paused = true
	}
}

// ResumeAll implements Cues.
func (c *ManualCues) ResumeAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range c.pending {
		p.paused = false
	}
}

// StopAll implements Cues.
func (c *ManualCues) StopAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = nil
}

// Active implements Cues.
func (c *ManualCues) Active(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range c.pending {
		if p.name == name && !p.paused {
			return true
		}
	}
	return false
}

// Played returns every cue name passed to Play, in order.
func (c *ManualCues) Played() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.played...)
}

// Pending returns the names of unfinished cues, in play order.
func (c *ManualCues) Pending() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	names := make([]string, 0, len(c.pending))
	for _, p := range c.pending {
		names = append(names, p.name)
	}
	return names
}

// RecordingPrompt is a Prompt that records calls.
//
// Thread-safety: all methods are safe for concurrent use.
type RecordingPrompt struct {
	mu      sync.Mutex
	ref     string
	playing bool
	paused  bool
	plays   []string
}

// Load implements Prompt.
func (p *RecordingPrompt) Load(ref string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ref = ref
	p.playing = false
	p.paused = false
}

// Play implements Prompt.
func (p *RecordingPrompt) Play(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ref == "" {
		return ErrNoAudio
	}
	if p.playing && !p.paused {
		return nil
	}
	p.playing = true
	p.paused = false
	p.plays = append(p.plays, p.ref)
	return nil
}

// Pause implements Prompt.
func (p *RecordingPrompt) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.playing {
		p.paused = true
	}
}

// Resume implements Prompt.
func (p *RecordingPrompt) Resume() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.paused = false
}

// Stop implements Prompt.
func (p *RecordingPrompt) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.playing = false
	p.paused = false
}

// Finish marks the current playback as ended.
func (p *RecordingPrompt) Finish() {
	p.Stop()
}

// Plays returns every ref a Play started, in order.
func (p *RecordingPrompt) Plays() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.plays...)
}

// Loaded returns the currently loaded ref.
func (p *RecordingPrompt) Loaded() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ref
}

// Paused reports whether playback is held.
func (p *RecordingPrompt) Paused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.paused
}
