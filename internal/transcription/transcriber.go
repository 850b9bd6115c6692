package transcription

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/codebuildervaibhav/video-summarizer/internal/cleanup"
	"github.com/codebuildervaibhav/video-summarizer/internal/config"
	"github.com/codebuildervaibhav/video-summarizer/internal/executor"
	"github.com/codebuildervaibhav/video-summarizer/internal/monitor"
	"github.com/codebuildervaibhav/video-summarizer/internal/types"
)

// Backend names accepted in transcription.backend
const (
	BackendWhisper    = "whisper"
	BackendWhisperCpp = "whisper-cpp"
	BackendOpenAI     = "openai"
)

// TranscriptionError wraps any failure of the speech backend.
type TranscriptionError struct {
	Backend string
	Err     error
}

func (e *TranscriptionError) Error() string {
	return fmt.Sprintf("transcription failed (%s): %v", e.Backend, e.Err)
}

func (e *TranscriptionError) Unwrap() error {
	return e.Err
}

// Request is a single inference call against a WAV file on disk.
type Request struct {
	AudioPath string
	Model     types.ModelSize
	Language  string
	Threads   int
}

// Result is what a backend returns for a Request.
type Result struct {
	Text     string
	Language string
	Segments []types.Segment
}

// Engine runs one speech model inference.
type Engine interface {
	Name() string
	Transcribe(ctx context.Context, req Request) (*Result, error)
}

// NewEngine builds the backend named in cfg.Backend. ffmpegPath is used by
// backends that re-encode audio before inference.
func NewEngine(cfg config.TranscriptionConfig, ffmpegPath, openAIKey string, runner executor.Runner, files *cleanup.TempFiles, logger *zap.Logger) (Engine, error) {
	switch cfg.Backend {
	case BackendWhisper, "":
		return NewWhisperEngine(runner, files, cfg.PythonPath, logger), nil
	case BackendWhisperCpp:
		return NewWhisperCppEngine(runner, files, cfg.WhisperCppBinary, cfg.ModelsDir, logger), nil
	case BackendOpenAI:
		if openAIKey == "" {
			return nil, fmt.Errorf("openai transcription backend requires OPENAI_API_KEY")
		}
		return NewOpenAIEngine(openAIKey, cfg.OpenAIModel, runner, files, ffmpegPath, logger), nil
	default:
		return nil, fmt.Errorf("unknown transcription backend %q", cfg.Backend)
	}
}

// Transcriber runs the transcription stage: it stages the waveform, runs the
// engine, and samples resource usage for as long as inference blocks.
type Transcriber struct {
	engine  Engine
	files   *cleanup.TempFiles
	monitor *monitor.Monitor
	threads int
	logger  *zap.Logger
}

// NewTranscriber creates a Transcriber. mon may be nil to disable sampling.
func NewTranscriber(engine Engine, files *cleanup.TempFiles, mon *monitor.Monitor, threads int, logger *zap.Logger) *Transcriber {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Transcriber{
		engine:  engine,
		files:   files,
		monitor: mon,
		threads: threads,
		logger:  logger,
	}
}

// Backend returns the engine name.
func (t *Transcriber) Backend() string {
	return t.engine.Name()
}

// Transcribe runs inference on audio. onSample receives monitor samples while
// the engine runs; the monitor is stopped before Transcribe returns.
func (t *Transcriber) Transcribe(ctx context.Context, audio *types.ExtractedAudio, model types.ModelSize, language string, onSample func(monitor.Sample)) (*types.Transcription, error) {
	if audio == nil || len(audio.Data) == 0 {
		return nil, &TranscriptionError{Backend: t.engine.Name(), Err: fmt.Errorf("no audio to transcribe")}
	}

	wav, err := t.files.Write("transcribe", ".wav", audio.Data)
	if err != nil {
		return nil, &TranscriptionError{Backend: t.engine.Name(), Err: err}
	}
	defer wav.Release()

	log := t.logger.With(zap.String("backend", t.engine.Name()), zap.String("model", string(model)), zap.String("language", language))
	log.Info("transcription started")
	started := time.Now()

	stop := func() {}
	if t.monitor != nil {
		stop = t.monitor.Start(ctx, onSample)
	}
	res, err := t.engine.Transcribe(ctx, Request{
		AudioPath: wav.Path,
		Model:     model,
		Language:  language,
		Threads:   t.threads,
	})
	stop()

	if err != nil {
		log.Error("transcription failed", zap.Error(err))
		return nil, &TranscriptionError{Backend: t.engine.Name(), Err: err}
	}

	text := strings.TrimSpace(res.Text)
	lang := res.Language
	if lang == "" {
		lang = language
	}

	log.Info("transcription completed",
		zap.Int("segments", len(res.Segments)), zap.Duration("took", time.Since(started)))

	return &types.Transcription{
		Text:        text,
		Language:    lang,
		Model:       model,
		Backend:     t.engine.Name(),
		Segments:    res.Segments,
		WordCount:   len(strings.Fields(text)),
		ProcessedAt: time.Now(),
	}, nil
}
