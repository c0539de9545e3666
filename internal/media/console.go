package media

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"
)

// DefaultCueLength is how long a console cue counts as audible.
const DefaultCueLength = 600 * time.Millisecond

// ConsoleCues announces cues as text lines and treats each as audible for a
// fixed length.
//
// Thread-safety: all methods are safe for concurrent use.
type ConsoleCues struct {
	out    io.Writer
	length time.Duration
	now    func() time.Time

	mu     sync.Mutex
	nextID int
	active map[int]*consoleCue
}

type consoleCue struct {
	name      string
	done      func(error)
	timer     *time.Timer
	remaining time.Duration
	started   time.Time
	paused    bool
}

// NewConsoleCues writes cue announcements to out. A non-positive length
// uses DefaultCueLength.
func NewConsoleCues(out io.Writer, length time.Duration) *ConsoleCues {
	if length <= 0 {
		length = DefaultCueLength
	}
	return &ConsoleCues{
		out:    out,
		length: length,
		now:    time.Now,
		active: make(map[int]*consoleCue),
	}
}

// Play implements Cues.
func (c *ConsoleCues) Play(name string, done func(error)) {
	c.mu.Lock()
	defer c.mu.Unlock()

	fmt.Fprintf(c.out, "[%s]\n", name)
	c.nextID++
	id := c.nextID
	cue := &consoleCue{name: name, done: done, remaining: c.length, started: c.now()}
	cue.timer = time.AfterFunc(c.length, func() { c.finish(id) })
	c.active[id] = cue
}

func (c *ConsoleCues) finish(id int) {
	c.mu.Lock()
	cue, ok := c.active[id]
	if ok {
		delete(c.active, id)
	}
	c.mu.Unlock()

	if ok && cue.done != nil {
		cue.done(nil)
	}
}

// PauseAll implements Cues.
func (c *ConsoleCues) PauseAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, cue := range c.active {
		if cue.paused || !cue.timer.Stop() {
			continue
		}
		cue.paused = true
		cue.remaining -= c.now().Sub(cue.started)
		if cue.remaining < 0 {
			cue.remaining = 0
		}
	}
}

// ResumeAll implements Cues.
func (c *ConsoleCues) ResumeAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, cue := range c.active {
		if !cue.paused {
			continue
		}
		cue.paused = false
		cue.started = c.now()
		cue.timer.Reset(cue.remaining)
	}
}

// StopAll implements Cues.
func (c *ConsoleCues) StopAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, cue := range c.active {
		cue.timer.Stop()
		delete(c.active, id)
	}
}

// Active implements Cues.
func (c *ConsoleCues) Active(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, cue := range c.active {
		if cue.name == name && !cue.paused {
			return true
		}
	}
	return false
}

// ConsolePrompt prints the prompt audio reference instead of playing it.
type ConsolePrompt struct {
	out    io.Writer
	logger *slog.Logger

	mu     sync.Mutex
	ref    string
	paused bool
}

// NewConsolePrompt writes playback notices to out.
func NewConsolePrompt(out io.Writer, logger *slog.Logger) *ConsolePrompt {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConsolePrompt{out: out, logger: logger}
}

// Load implements Prompt.
func (p *ConsolePrompt) Load(ref string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ref = ref
	p.paused = false
}

// Play implements Prompt.
func (p *ConsolePrompt) Play(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ref == "" {
		return ErrNoAudio
	}
	fmt.Fprintf(p.out, "(audio: %s)\n", p.ref)
	return nil
}

// Pause implements Prompt.
func (p *ConsolePrompt) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.paused = true
}

// Resume implements Prompt.
func (p *ConsolePrompt) Resume() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.paused = false
}

// Stop implements Prompt.
func (p *ConsolePrompt) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.paused = false
	p.logger.Debug("prompt stopped", "ref", p.ref)
}
