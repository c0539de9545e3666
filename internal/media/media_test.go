package media

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDirLoader_ReadsFile(t *testing.T) {
	img, err := DirLoader{Dir: "testdata"}.LoadImage(context.Background(), "red.png")
	require.NoError(t, err)
	assert.Equal(t, "red.png", img.Ref)
	assert.Equal(t, []byte("PNG-red"), img.Data)
}

func TestDirLoader_StaysInsideDir(t *testing.T) {
	_, err := DirLoader{Dir: "testdata"}.LoadImage(context.Background(), "../media.go")
	assert.Error(t, err)
}

func TestImageCache_MemoizesHits(t *testing.T) {
	cache := NewImageCache(DirLoader{Dir: "testdata"}, quietLogger())
	ctx := context.Background()

	first := cache.Get(ctx, "red.png")
	second := cache.Get(ctx, "red.png")

	require.NotNil(t, first)
	assert.Same(t, first, second)
	assert.Equal(t, 1, cache.Loads())
}

func TestImageCache_MissingImageIsNil(t *testing.T) {
	cache := NewImageCache(DirLoader{Dir: "testdata"}, quietLogger())

	assert.Nil(t, cache.Get(context.Background(), "missing.png"))
	assert.Nil(t, cache.Get(context.Background(), ""))
	assert.False(t, cache.Cached("missing.png"))
}

func TestImageCache_PrefetchAndReset(t *testing.T) {
	cache := NewImageCache(DirLoader{Dir: "testdata"}, quietLogger())

	cache.Prefetch(context.Background(), []string{"red.png", "missing.png", ""})
	assert.True(t, cache.Cached("red.png"))
	assert.Equal(t, 1, cache.Loads())

	cache.Reset()
	assert.False(t, cache.Cached("red.png"))
	assert.Equal(t, 0, cache.Loads())
}

// gatedLoader blocks every load until release is closed.
type gatedLoader struct {
	started chan string
	release chan struct{}
}

func (l gatedLoader) LoadImage(_ context.Context, ref string) (*Image, error) {
	l.started <- ref
	<-l.release
	return &Image{Ref: ref}, nil
}

func TestImageCache_LoadAcrossResetNotCached(t *testing.T) {
	loader := gatedLoader{started: make(chan string, 1), release: make(chan struct{})}
	cache := NewImageCache(loader, quietLogger())

	done := make(chan struct{})
	go func() {
		defer close(done)
		cache.Prefetch(context.Background(), []string{"next.png"})
	}()
	require.Equal(t, "next.png", <-loader.started)

	cache.Reset()
	close(loader.release)
	<-done

	assert.False(t, cache.Cached("next.png"), "load begun before reset is dropped")
	assert.Equal(t, 0, cache.Loads())

	require.NotNil(t, cache.Get(context.Background(), "next.png"))
	assert.True(t, cache.Cached("next.png"), "loads after reset cache as usual")
}

func TestManualCues_FinishCallsDone(t *testing.T) {
	cues := NewManualCues()
	var got []string
	cues.Play("correct", func(err error) {
		assert.NoError(t, err)
		got = append(got, "correct")
	})

	assert.True(t, cues.Active("correct"))
	assert.True(t, cues.Finish("correct"))
	assert.False(t, cues.Active("correct"))
	assert.Equal(t, []string{"correct"}, got)
	assert.False(t, cues.Finish("correct"))
}

func TestManualCues_PausedCueIsInactive(t *testing.T) {
	cues := NewManualCues()
	cues.Play("time_warning", nil)

	cues.PauseAll()
	assert.False(t, cues.Active("time_warning"))
	assert.False(t, cues.Finish("time_warning"), "paused cues cannot finish")

	cues.ResumeAll()
	assert.True(t, cues.Active("time_warning"))
}

func TestManualCues_StopAllDropsContinuations(t *testing.T) {
	cues := NewManualCues()
	called := false
	cues.Play("correct", func(error) { called = true })

	cues.StopAll()

	assert.Equal(t, 0, cues.FinishAll())
	assert.False(t, called)
	assert.Equal(t, []string{"correct"}, cues.Played())
}

func TestManualCues_FailureStillCallsDone(t *testing.T) {
	cues := NewManualCues()
	boom := errors.New("decode failed")
	cues.FailWith("quiz_failed", boom)

	var got error
	cues.Play("quiz_failed", func(err error) { got = err })

	assert.ErrorIs(t, got, boom)
	assert.Empty(t, cues.Pending())
}

func TestRecordingPrompt(t *testing.T) {
	p := &RecordingPrompt{}
	assert.ErrorIs(t, p.Play(context.Background()), ErrNoAudio)

	p.Load("neko.mp3")
	require.NoError(t, p.Play(context.Background()))
	require.NoError(t, p.Play(context.Background()))
	assert.Equal(t, []string{"neko.mp3"}, p.Plays(), "play while playing does not restart")

	p.Pause()
	assert.True(t, p.Paused())
	p.Resume()
	p.Finish()
	require.NoError(t, p.Play(context.Background()))
	assert.Equal(t, []string{"neko.mp3", "neko.mp3"}, p.Plays())
}

func TestConsoleCues_FinishesAfterLength(t *testing.T) {
	var buf bytes.Buffer
	cues := NewConsoleCues(&buf, 10*time.Millisecond)
	done := make(chan struct{})

	cues.Play("correct", func(error) { close(done) })

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("cue never finished")
	}
	assert.Contains(t, buf.String(), "[correct]")
	assert.False(t, cues.Active("correct"))
}

func TestConsoleCues_StopAllSuppressesDone(t *testing.T) {
	cues := NewConsoleCues(io.Discard, 20*time.Millisecond)
	var calls atomic.Int32
	cues.Play("correct", func(error) { calls.Add(1) })

	cues.StopAll()
	time.Sleep(60 * time.Millisecond)

	assert.Equal(t, int32(0), calls.Load())
}

func TestConsoleCues_PauseHoldsCue(t *testing.T) {
	cues := NewConsoleCues(io.Discard, time.Hour)
	cues.Play("time_warning", nil)

	assert.True(t, cues.Active("time_warning"))
	cues.PauseAll()
	assert.False(t, cues.Active("time_warning"))
	cues.ResumeAll()
	assert.True(t, cues.Active("time_warning"))
	cues.StopAll()
}

func TestConsolePrompt(t *testing.T) {
	var buf bytes.Buffer
	p := NewConsolePrompt(&buf, quietLogger())

	assert.ErrorIs(t, p.Play(context.Background()), ErrNoAudio)
	p.Load("inu.mp3")
	require.NoError(t, p.Play(context.Background()))
	assert.Equal(t, "(audio: inu.mp3)\n", buf.String())
}
