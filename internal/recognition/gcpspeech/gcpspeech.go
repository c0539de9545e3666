// Package gcpspeech streams microphone audio to Google Cloud Speech-to-Text
// and reports results as recognition events.
package gcpspeech

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"

	speech "cloud.google.com/go/speech/apiv1"
	speechpb "cloud.google.com/go/speech/apiv1/speechpb"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/roach88/sayquiz/internal/recognition"
)

// Defaults for Config.
const (
	DefaultLanguageCode    = "en-US"
	DefaultSampleRateHertz = 16000
	DefaultChunkSize       = 3200 // 100ms of 16kHz mono LINEAR16
)

// Config selects the audio format and recognition language.
type Config struct {
	LanguageCode    string
	SampleRateHertz int
	Encoding        speechpb.RecognitionConfig_AudioEncoding
	ChunkSize       int
	MaxAlternatives int
}

func (c Config) withDefaults() Config {
	if c.LanguageCode == "" {
		c.LanguageCode = DefaultLanguageCode
	}
	if c.SampleRateHertz <= 0 {
		c.SampleRateHertz = DefaultSampleRateHertz
	}
	if c.Encoding == speechpb.RecognitionConfig_ENCODING_UNSPECIFIED {
		c.Encoding = speechpb.RecognitionConfig_LINEAR16
	}
	if c.ChunkSize <= 0 {
		c.ChunkSize = DefaultChunkSize
	}
	if c.MaxAlternatives <= 0 {
		c.MaxAlternatives = 1
	}
	return c
}

func (c Config) streamingConfig() *speechpb.StreamingRecognitionConfig {
	return &speechpb.StreamingRecognitionConfig{
		Config: &speechpb.RecognitionConfig{
			Encoding:        c.Encoding,
			SampleRateHertz: int32(c.SampleRateHertz),
			LanguageCode:    c.LanguageCode,
			MaxAlternatives: int32(c.MaxAlternatives),
		},
		InterimResults: true,
	}
}

// AudioSource opens a raw audio stream in the configured encoding. The
// stream is closed when recognition stops.
type AudioSource func(ctx context.Context) (io.ReadCloser, error)

// CommandSource runs name with args and streams its stdout, for example
// "arecord -q -f S16_LE -r 16000 -c 1 -t raw".
func CommandSource(name string, args ...string) AudioSource {
	return func(ctx context.Context) (io.ReadCloser, error) {
		cmd := exec.CommandContext(ctx, name, args...)
		out, err := cmd.StdoutPipe()
		if err != nil {
			return nil, fmt.Errorf("audio command stdout: %w", err)
		}
		if err := cmd.Start(); err != nil {
			return nil, fmt.Errorf("start audio command: %w", err)
		}
		return &commandReader{ReadCloser: out, cmd: cmd}, nil
	}
}

type commandReader struct {
	io.ReadCloser
	cmd *exec.Cmd
}

func (r *commandReader) Close() error {
	err := r.ReadCloser.Close()
	_ = r.cmd.Wait()
	return err
}

// ClientOptions builds client options from an explicit credentials file,
// falling back to GOOGLE_APPLICATION_CREDENTIALS_JSON and then to
// Application Default Credentials.
func ClientOptions(credentialsFile string) []option.ClientOption {
	if f := strings.TrimSpace(credentialsFile); f != "" {
		return []option.ClientOption{option.WithCredentialsFile(f)}
	}
	if js := strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS_JSON")); strings.HasPrefix(js, "{") {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(js))}
	}
	return nil
}

// OpenFunc opens a bidirectional streaming call.
type OpenFunc func(ctx context.Context) (speechpb.Speech_StreamingRecognizeClient, error)

// Recognizer implements recognition.Recognizer over StreamingRecognize.
//
// Thread-safety: Start and Stop are safe for concurrent use. Sink callbacks
// run on the recognizer's receive goroutine.
type Recognizer struct {
	open   OpenFunc
	audio  AudioSource
	cfg    Config
	logger *slog.Logger
	close  func() error

	mu     sync.Mutex
	cancel context.CancelFunc
}

// Option configures a Recognizer.
type Option func(*Recognizer)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(r *Recognizer) {
		r.logger = l
	}
}

// New dials the Speech API.
func New(ctx context.Context, audio AudioSource, cfg Config, clientOpts []option.ClientOption, opts ...Option) (*Recognizer, error) {
	client, err := speech.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("speech client: %w", err)
	}
	open := func(ctx context.Context) (speechpb.Speech_StreamingRecognizeClient, error) {
		return client.StreamingRecognize(ctx)
	}
	r := NewWithOpener(open, audio, cfg, opts...)
	r.close = client.Close
	return r, nil
}

// NewWithOpener creates a recognizer over an existing streaming opener.
func NewWithOpener(open OpenFunc, audio AudioSource, cfg Config, opts ...Option) *Recognizer {
	r := &Recognizer{
		open:   open,
		audio:  audio,
		cfg:    cfg.withDefaults(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start implements recognition.Recognizer.
func (r *Recognizer) Start(ctx context.Context, streamID string, sink recognition.Sink) error {
	r.Stop()

	sctx, cancel := context.WithCancel(ctx)

	stream, err := r.open(sctx)
	if err != nil {
		cancel()
		return fmt.Errorf("open streaming recognize: %w", err)
	}

	cfgReq := &speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: r.cfg.streamingConfig(),
		},
	}
	if err := stream.Send(cfgReq); err != nil {
		cancel()
		return fmt.Errorf("send streaming config: %w", err)
	}

	src, err := r.audio(sctx)
	if err != nil {
		cancel()
		return &recognition.ErrorEvent{StreamID: streamID, Code: recognition.ErrAudioCapture, Message: err.Error()}
	}

	r.mu.Lock()
	r.cancel = cancel
	r.mu.Unlock()

	go r.pump(sctx, streamID, stream, src, sink)
	go r.receive(sctx, streamID, stream, sink)

	r.logger.Debug("recognition stream started", "stream", streamID)
	return nil
}

// Stop implements recognition.Recognizer.
func (r *Recognizer) Stop() {
	r.mu.Lock()
	cancel := r.cancel
	r.cancel = nil
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// Close stops any stream and releases the client.
func (r *Recognizer) Close() error {
	r.Stop()
	if r.close != nil {
		return r.close()
	}
	return nil
}

func (r *Recognizer) pump(ctx context.Context, streamID string, stream speechpb.Speech_StreamingRecognizeClient, src io.ReadCloser, sink recognition.Sink) {
	defer src.Close()

	buf := make([]byte, r.cfg.ChunkSize)
	for {
		n, err := src.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			sendErr := stream.Send(&speechpb.StreamingRecognizeRequest{
				StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{AudioContent: chunk},
			})
			if sendErr != nil {
				// Recv reports the terminal status.
				return
			}
		}
		if errors.Is(err, io.EOF) {
			if cerr := stream.CloseSend(); cerr != nil {
				r.logger.Debug("close send failed", "stream", streamID, "error", cerr)
			}
			return
		}
		if err != nil {
			if ctx.Err() == nil {
				sink.OnError(recognition.ErrorEvent{StreamID: streamID, Code: recognition.ErrAudioCapture, Message: err.Error()})
			}
			return
		}
	}
}

func (r *Recognizer) receive(ctx context.Context, streamID string, stream speechpb.Speech_StreamingRecognizeClient, sink recognition.Sink) {
	acc := recognition.NewAccumulator(streamID)

	for {
		resp, err := stream.Recv()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			sink.OnError(classify(streamID, err))
			return
		}
		if st := resp.GetError(); st != nil && st.GetCode() != int32(codes.OK) {
			sink.OnError(classify(streamID, status.ErrorProto(st)))
			return
		}

		if len(resp.GetResults()) == 0 {
			continue
		}
		results := make([]recognition.Result, 0, len(resp.GetResults()))
		for _, res := range resp.GetResults() {
			results = append(results, convert(res))
		}
		if ctx.Err() != nil {
			return
		}
		sink.OnResult(acc.UpdateAll(results))
	}
}

func convert(res *speechpb.StreamingRecognitionResult) recognition.Result {
	out := recognition.Result{IsFinal: res.GetIsFinal()}
	for _, alt := range res.GetAlternatives() {
		if alt == nil {
			continue
		}
		out.Alternatives = append(out.Alternatives, recognition.Alternative{
			Transcript: alt.GetTranscript(),
			Confidence: alt.GetConfidence(),
		})
	}
	return out
}

// classify maps a terminal stream error onto a recognition error code. A
// stream that simply ran out (EOF, duration limit) reads as no-speech so the
// caller restarts it.
func classify(streamID string, err error) recognition.ErrorEvent {
	ev := recognition.ErrorEvent{StreamID: streamID, Message: err.Error()}
	if errors.Is(err, io.EOF) {
		ev.Code = recognition.ErrNoSpeech
		ev.Message = ""
		return ev
	}

	switch status.Code(err) {
	case codes.OutOfRange, codes.DeadlineExceeded:
		ev.Code = recognition.ErrNoSpeech
	case codes.Unavailable:
		ev.Code = recognition.ErrNetwork
	case codes.PermissionDenied, codes.Unauthenticated:
		ev.Code = recognition.ErrNotAllowed
	default:
		ev.Code = recognition.ErrAborted
	}
	return ev
}
