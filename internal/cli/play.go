package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/sayquiz/internal/config"
	"github.com/roach88/sayquiz/internal/countdown"
	"github.com/roach88/sayquiz/internal/engine"
	"github.com/roach88/sayquiz/internal/journal"
	"github.com/roach88/sayquiz/internal/media"
	"github.com/roach88/sayquiz/internal/recognition"
	"github.com/roach88/sayquiz/internal/recognition/gcpspeech"
	"github.com/roach88/sayquiz/internal/sequencer"
	"github.com/roach88/sayquiz/internal/session"
	"github.com/roach88/sayquiz/internal/vocab"
)

// DefaultAudioCommand captures 16kHz mono LINEAR16 from the default ALSA
// device.
const DefaultAudioCommand = "arecord -q -f S16_LE -r 16000 -c 1 -t raw"

// PlayOptions holds flags for the play command.
type PlayOptions struct {
	*RootOptions
	Dataset      string
	SettingsFile string
	Count        int
	All          bool
	NoTimer      bool
	Time         time.Duration
	Journal      string
	Images       string
	Seed         uint64

	// Cloud speech recognition instead of typed answers.
	GCP         bool
	Credentials string
	Language    string
	AudioCmd    string
}

// PlaySummary is reported when the console session ends.
type PlaySummary struct {
	SessionID string `json:"session_id,omitempty"`
	Phase     string `json:"phase"`
	Score     int    `json:"score"`
	Total     int    `json:"total"`
	Completed bool   `json:"completed"`
}

func (s PlaySummary) String() string {
	if s.SessionID == "" {
		return "No session in progress."
	}
	return fmt.Sprintf("Score %d/%d (%s)", s.Score, s.Total, s.Phase)
}

const playHelp = `Type an answer and press enter to say it. Commands:
  :skip     move the current question to the end of the queue
  :pause    pause the session
  :resume   resume a paused session
  :next     next question (after a match, or in review)
  :prev     previous question in review
  :review   review the finished quiz
  :home     back to the menu
  :start    start a new quiz from the menu
  :audio    replay the prompt audio
  :listen   restart listening
  :help     show this help
  :quit     leave`

// controlEvents maps console commands to payload-free session events.
var controlEvents = map[string]session.EventKind{
	"skip":   session.EventSkip,
	"pause":  session.EventPause,
	"resume": session.EventResume,
	"review": session.EventReview,
	"home":   session.EventHome,
	"audio":  session.EventPlayAudio,
	"listen": session.EventListen,
}

// NewPlayCommand creates the play command.
func NewPlayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PlayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "play",
		Short: "Play a quiz in the console",
		Long: `Play an interactive quiz session in the console.

Each line typed is taken as a final recognition result and matched
against the current answer. Lines starting with ':' are commands, see
:help. With --gcp the microphone is streamed to Google Cloud
Speech-to-Text instead.

Exit codes:
  0 - Session ended normally
  1 - Engine failure
  2 - Command error (dataset, settings, journal, recognizer)

Examples:
  sayquiz play --dataset ./words.json
  sayquiz play --dataset ./words.json --count 5 --time 90s
  sayquiz play --dataset ./words.json --no-timer --journal ./quiz.db
  sayquiz play --dataset ./words.json --gcp --language ja-JP`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Dataset, "dataset", "", "path to the vocabulary JSON (required)")
	_ = cmd.MarkFlagRequired("dataset")
	cmd.Flags().StringVar(&opts.SettingsFile, "settings", "", "YAML settings file")
	cmd.Flags().IntVar(&opts.Count, "count", 0, "number of questions")
	cmd.Flags().BoolVar(&opts.All, "all", false, "ask every entry of the dataset")
	cmd.Flags().BoolVar(&opts.NoTimer, "no-timer", false, "play without the countdown")
	cmd.Flags().DurationVar(&opts.Time, "time", 0, "time allowance for the whole quiz")
	cmd.Flags().StringVar(&opts.Journal, "journal", "", "SQLite journal file (default in memory)")
	cmd.Flags().StringVar(&opts.Images, "images", "", "image directory (default: the dataset's directory)")
	cmd.Flags().Uint64Var(&opts.Seed, "seed", 0, "seed the question order")
	cmd.Flags().BoolVar(&opts.GCP, "gcp", false, "recognize speech with Google Cloud Speech-to-Text")
	cmd.Flags().StringVar(&opts.Credentials, "credentials", "", "service account JSON for --gcp")
	cmd.Flags().StringVar(&opts.Language, "language", gcpspeech.DefaultLanguageCode, "recognition language for --gcp")
	cmd.Flags().StringVar(&opts.AudioCmd, "audio-cmd", DefaultAudioCommand, "command streaming raw microphone audio for --gcp")

	return cmd
}

func runPlay(opts *PlayOptions, cmd *cobra.Command) error {
	logger := setupLogging(opts.Verbose)
	formatter := newFormatter(opts.RootOptions, cmd)

	ds, err := vocab.Load(opts.Dataset)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load dataset", err)
	}

	settings, err := opts.settings(cmd)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load settings", err)
	}
	resolved, err := settings.Resolve(ds.Len())
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid settings", err)
	}
	formatter.VerboseLog("Loaded %d entries, %d questions", ds.Len(), resolved.QuestionCount)

	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	j, err := journal.Open(opts.Journal)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	defer func() {
		if closeErr := j.Close(); closeErr != nil {
			slog.Error("error closing journal", "error", closeErr)
		}
	}()
	clock, err := engine.ClockAfter(ctx, j)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read journal", err)
	}

	recognizer, scripted, err := opts.recognizer(ctx, logger)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to start recognizer", err)
	}
	if closer, ok := recognizer.(io.Closer); ok {
		defer closer.Close()
	}

	imagesDir := opts.Images
	if imagesDir == "" {
		imagesDir = filepath.Dir(opts.Dataset)
	}

	out := &syncWriter{w: cmd.OutOrStdout()}
	machine := session.NewMachine(ds, opts.source(cmd), engine.UUIDv7Generator{})
	eng := engine.New(machine,
		engine.WithRecognizer(recognizer),
		engine.WithPrompt(media.NewConsolePrompt(out, logger)),
		engine.WithCues(media.NewConsoleCues(out, media.DefaultCueLength)),
		engine.WithImages(media.NewImageCache(media.DirLoader{Dir: imagesDir}, logger)),
		engine.WithDisplay(newConsoleDisplay(out)),
		engine.WithJournal(j),
		engine.WithLogger(logger),
		engine.WithClock(clock),
		engine.WithScheduler(countdown.TickerScheduler{Interval: resolved.TickInterval}),
	)

	done := make(chan error, 1)
	go func() { done <- eng.Run(ctx) }()

	fmt.Fprintf(out, "Loaded %d entries from %s. Type :help for commands.\n", ds.Len(), opts.Dataset)
	eng.Enqueue(session.Start(settings))

	p := &player{engine: eng, scripted: scripted, settings: settings, out: out, logger: logger}
	p.loop(ctx, cmd.InOrStdin())

	eng.Stop()
	if err := <-done; err != nil && !errors.Is(err, context.Canceled) {
		return WrapExitError(ExitFailure, "engine error", err)
	}

	s := eng.State()
	return formatter.Success(PlaySummary{
		SessionID: s.SessionID,
		Phase:     s.Phase.String(),
		Score:     s.Score,
		Total:     len(s.Queue),
		Completed: s.Completed,
	})
}

// settings merges the settings file with the flags that were set.
func (o *PlayOptions) settings(cmd *cobra.Command) (config.Settings, error) {
	s := config.Default()
	if o.SettingsFile != "" {
		loaded, err := config.LoadFile(o.SettingsFile)
		if err != nil {
			return config.Settings{}, err
		}
		s = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("count") {
		s.QuestionCount = o.Count
	}
	if o.All {
		s.UseAllQuestions = true
	}
	if o.NoTimer {
		s.UseTimer = false
	}
	if flags.Changed("time") {
		s.TimeAllowance = o.Time
	}
	return s, nil
}

func (o *PlayOptions) source(cmd *cobra.Command) sequencer.Source {
	if cmd.Flags().Changed("seed") {
		return sequencer.NewSeededSource(o.Seed)
	}
	return sequencer.DefaultSource()
}

// recognizer returns the configured recognizer. The scripted recognizer
// behind typed answers is also returned so lines can be fed to it; it is
// nil with --gcp.
func (o *PlayOptions) recognizer(ctx context.Context, logger *slog.Logger) (recognition.Recognizer, *recognition.Scripted, error) {
	if !o.GCP {
		s := recognition.NewScripted()
		return s, s, nil
	}

	argv := strings.Fields(o.AudioCmd)
	if len(argv) == 0 {
		return nil, nil, errors.New("--audio-cmd is empty")
	}
	r, err := gcpspeech.New(ctx,
		gcpspeech.CommandSource(argv[0], argv[1:]...),
		gcpspeech.Config{LanguageCode: o.Language},
		gcpspeech.ClientOptions(o.Credentials),
		gcpspeech.WithLogger(logger),
	)
	if err != nil {
		return nil, nil, err
	}
	return r, nil, nil
}

// player turns console lines into engine input.
type player struct {
	engine   *engine.Engine
	scripted *recognition.Scripted
	settings config.Settings
	out      io.Writer
	logger   *slog.Logger
}

// loop reads lines until EOF, :quit or cancellation.
func (p *player) loop(ctx context.Context, in io.Reader) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	p.sync(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok || !p.handle(ctx, strings.TrimSpace(line)) {
				return
			}
		}
	}
}

// handle processes one line and reports whether to keep reading.
func (p *player) handle(ctx context.Context, line string) bool {
	if line == "" {
		return true
	}
	if !strings.HasPrefix(line, ":") {
		p.say(ctx, line)
		return true
	}

	name := strings.ToLower(strings.TrimPrefix(line, ":"))
	switch name {
	case "quit", "q":
		return false
	case "help":
		fmt.Fprintln(p.out, playHelp)
		return true
	case "start":
		p.engine.Enqueue(session.Start(p.settings))
	case "next":
		if p.engine.State().Phase == session.PhaseReview {
			p.engine.Enqueue(session.Navigate(1))
		} else {
			p.engine.Enqueue(session.Simple(session.EventAdvance))
		}
	case "prev":
		p.engine.Enqueue(session.Navigate(-1))
	default:
		kind, ok := controlEvents[name]
		if !ok {
			fmt.Fprintf(p.out, "unknown command %q, :help lists commands\n", line)
			return true
		}
		p.engine.Enqueue(session.Simple(kind))
	}
	p.sync(ctx)
	return true
}

// say feeds a typed answer to the scripted recognizer.
func (p *player) say(ctx context.Context, text string) {
	if p.scripted == nil {
		fmt.Fprintln(p.out, "(answers are spoken with --gcp)")
		return
	}
	if !p.scripted.Final(text) {
		fmt.Fprintln(p.out, "(not listening)")
		return
	}
	p.sync(ctx)
}

// sync waits until the engine has processed everything enqueued so far,
// so output settles before the next line is read.
func (p *player) sync(ctx context.Context) {
	if err := p.engine.Sync(ctx); err != nil {
		p.logger.Debug("sync interrupted", "error", err)
	}
}
