package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/codebuildervaibhav/video-summarizer/internal/config"
	"github.com/codebuildervaibhav/video-summarizer/internal/monitor"
	"github.com/codebuildervaibhav/video-summarizer/internal/summarization"
	"github.com/codebuildervaibhav/video-summarizer/internal/transcription"
	"github.com/codebuildervaibhav/video-summarizer/internal/types"
)

type Extractor interface {
	Extract(ctx context.Context, media *types.UploadedMedia, threads int) (*types.ExtractedAudio, error)
}

type Transcriber interface {
	Backend() string
	Transcribe(ctx context.Context, audio *types.ExtractedAudio, model types.ModelSize, language string, onSample func(monitor.Sample)) (*types.Transcription, error)
}

type Summarizer interface {
	Summarize(ctx context.Context, gen summarization.Generator, model, text, instruction string) (*types.Summary, error)
}

// Models resolves summary model names.
type Models interface {
	Names() []string
	Has(name string) bool
	Get(ctx context.Context, name string) (summarization.Generator, error)
}

// Options holds the limits and defaults applied to stage requests.
type Options struct {
	MaxUploadBytes      int64
	AllowedExtensions   []string
	DefaultThreads      int
	MaxThreads          int
	Languages           []string
	DefaultLanguage     string
	DefaultModel        types.ModelSize
	DefaultSummaryModel string
	DefaultPrompt       string
	ExtractTimeout      time.Duration
	TranscribeTimeout   time.Duration
	SummarizeTimeout    time.Duration
}

// OptionsFromConfig derives Options from a validated config.
func OptionsFromConfig(cfg *config.Config) Options {
	model, err := types.ParseModelSize(cfg.Transcription.DefaultModel)
	if err != nil {
		model = types.ModelSmall
	}
	return Options{
		MaxUploadBytes:      int64(cfg.Limits.MaxFileSizeMB) * 1024 * 1024,
		AllowedExtensions:   cfg.Limits.AllowedExtensions,
		DefaultThreads:      cfg.FFmpeg.DefaultThreads,
		MaxThreads:          cfg.FFmpeg.MaxThreads,
		Languages:           cfg.Transcription.Languages,
		DefaultLanguage:     cfg.Transcription.DefaultLanguage,
		DefaultModel:        model,
		DefaultSummaryModel: cfg.Summarization.DefaultModel,
		DefaultPrompt:       cfg.Summarization.DefaultPrompt,
		ExtractTimeout:      time.Duration(cfg.FFmpeg.TimeoutSeconds) * time.Second,
		TranscribeTimeout:   time.Duration(cfg.Transcription.TimeoutSeconds) * time.Second,
		SummarizeTimeout:    time.Duration(cfg.Summarization.TimeoutSeconds) * time.Second,
	}
}

// Orchestrator runs the four stages against sessions in a Store. A stage only
// advances the session on success; any failure leaves it as it was.
type Orchestrator struct {
	store       *Store
	hub         *Hub
	extractor   Extractor
	transcriber Transcriber
	summarizer  Summarizer
	models      Models
	opts        Options
	logger      *zap.Logger
}

func New(store *Store, hub *Hub, extractor Extractor, transcriber Transcriber, summarizer Summarizer, models Models, opts Options, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if hub == nil {
		hub = NewHub()
	}
	return &Orchestrator{
		store:       store,
		hub:         hub,
		extractor:   extractor,
		transcriber: transcriber,
		summarizer:  summarizer,
		models:      models,
		opts:        opts,
		logger:      logger,
	}
}

func (o *Orchestrator) Store() *Store {
	return o.store
}

func (o *Orchestrator) Hub() *Hub {
	return o.hub
}

func (o *Orchestrator) Options() Options {
	return o.opts
}

// Backend names the speech backend in use.
func (o *Orchestrator) Backend() string {
	return o.transcriber.Backend()
}

func (o *Orchestrator) SummaryModels() []string {
	return o.models.Names()
}

// begin resolves the session and takes its stage lock.
func (o *Orchestrator) begin(id, stage string) (*Session, func(), error) {
	sess, err := o.store.Get(id)
	if err != nil {
		return nil, nil, err
	}
	release, err := sess.acquire(stage)
	if err != nil {
		return nil, nil, err
	}
	return sess, release, nil
}

func (o *Orchestrator) publishStage(sess *Session, stage, status string, err error) {
	e := Event{
		Type:    EventStage,
		Session: sess.ID,
		Stage:   stage,
		Status:  status,
		State:   sess.State(),
	}
	if err != nil {
		e.Error = err.Error()
	}
	o.hub.Publish(e)
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// Upload validates media and stores it as the session's source, discarding
// any artifacts derived from a previous upload.
func (o *Orchestrator) Upload(ctx context.Context, id string, media *types.UploadedMedia) error {
	sess, release, err := o.begin(id, types.StageUpload)
	if err != nil {
		return err
	}
	defer release()

	log := o.logger.With(zap.String("session", id))

	if o.opts.MaxUploadBytes > 0 && media.Size > o.opts.MaxUploadBytes {
		return fmt.Errorf("%w: %d bytes (max %d)", ErrMediaTooLarge, media.Size, o.opts.MaxUploadBytes)
	}
	if len(media.Data) == 0 {
		return fmt.Errorf("%w: empty file", transcription.ErrUnsupportedMedia)
	}
	if err := transcription.ValidateVideoFormat(media.Filename, media.MimeType, o.opts.AllowedExtensions); err != nil {
		return err
	}
	if media.UploadedAt.IsZero() {
		media.UploadedAt = time.Now()
	}

	sess.setMedia(media)
	log.Info("media uploaded",
		zap.String("filename", media.Filename), zap.String("mime", media.MimeType), zap.Int64("size", media.Size))
	o.publishStage(sess, types.StageUpload, StatusCompleted, nil)
	return nil
}

// Extract converts the uploaded media to WAV. threads <= 0 uses the default.
func (o *Orchestrator) Extract(ctx context.Context, id string, threads int) (*types.ExtractedAudio, error) {
	sess, release, err := o.begin(id, types.StageExtraction)
	if err != nil {
		return nil, err
	}
	defer release()

	media := sess.Media()
	if media == nil {
		return nil, &StageNotReadyError{Stage: types.StageExtraction, Needs: "an uploaded video"}
	}

	if threads <= 0 {
		threads = o.opts.DefaultThreads
	}
	if o.opts.MaxThreads > 0 && threads > o.opts.MaxThreads {
		return nil, fmt.Errorf("%w: threads must be between 1 and %d", ErrInvalidOption, o.opts.MaxThreads)
	}

	o.publishStage(sess, types.StageExtraction, StatusStarted, nil)
	ctx, cancel := withTimeout(ctx, o.opts.ExtractTimeout)
	defer cancel()

	audio, err := o.extractor.Extract(ctx, media, threads)
	if err != nil {
		o.logger.Error("extraction failed", zap.String("session", id), zap.Error(err))
		o.publishStage(sess, types.StageExtraction, StatusFailed, err)
		return nil, err
	}

	sess.setAudio(audio)
	o.publishStage(sess, types.StageExtraction, StatusCompleted, nil)
	return audio, nil
}

// Transcribe runs speech-to-text on the extracted audio. Empty model or
// language fall back to the defaults.
func (o *Orchestrator) Transcribe(ctx context.Context, id, model, language string) (*types.Transcription, error) {
	size := o.opts.DefaultModel
	if strings.TrimSpace(model) != "" {
		parsed, err := types.ParseModelSize(model)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidOption, err)
		}
		size = parsed
	}
	language = strings.ToLower(strings.TrimSpace(language))
	if language == "" {
		language = o.opts.DefaultLanguage
	}
	if !o.supportsLanguage(language) {
		return nil, fmt.Errorf("%w: unsupported language %q", ErrInvalidOption, language)
	}

	sess, release, err := o.begin(id, types.StageTranscription)
	if err != nil {
		return nil, err
	}
	defer release()

	audio := sess.Audio()
	if audio == nil {
		return nil, &StageNotReadyError{Stage: types.StageTranscription, Needs: "extracted audio"}
	}

	o.publishStage(sess, types.StageTranscription, StatusStarted, nil)
	ctx, cancel := withTimeout(ctx, o.opts.TranscribeTimeout)
	defer cancel()

	onSample := func(s monitor.Sample) {
		o.hub.Publish(Event{Type: EventSample, Session: sess.ID, Stage: types.StageTranscription, Sample: &s})
	}

	result, err := o.transcriber.Transcribe(ctx, audio, size, language, onSample)
	if err != nil {
		o.logger.Error("transcription failed", zap.String("session", id), zap.Error(err))
		o.publishStage(sess, types.StageTranscription, StatusFailed, err)
		return nil, err
	}

	sess.setTranscription(result)
	o.publishStage(sess, types.StageTranscription, StatusCompleted, nil)
	return result, nil
}

// Summarize condenses the transcription with the named model and instruction.
func (o *Orchestrator) Summarize(ctx context.Context, id, model, prompt string) (*types.Summary, error) {
	model = strings.TrimSpace(model)
	if model == "" {
		model = o.opts.DefaultSummaryModel
	}
	if !o.models.Has(model) {
		return nil, fmt.Errorf("%w: unknown summary model %q", ErrInvalidOption, model)
	}
	if strings.TrimSpace(prompt) == "" {
		prompt = o.opts.DefaultPrompt
	}

	sess, release, err := o.begin(id, types.StageSummarization)
	if err != nil {
		return nil, err
	}
	defer release()

	tr := sess.Transcription()
	if tr == nil {
		return nil, &StageNotReadyError{Stage: types.StageSummarization, Needs: "a transcription"}
	}

	o.publishStage(sess, types.StageSummarization, StatusStarted, nil)
	ctx, cancel := withTimeout(ctx, o.opts.SummarizeTimeout)
	defer cancel()

	summary, err := o.summarize(ctx, model, tr.Text, prompt)
	if err != nil {
		o.logger.Error("summarization failed", zap.String("session", id), zap.String("model", model), zap.Error(err))
		o.publishStage(sess, types.StageSummarization, StatusFailed, err)
		return nil, err
	}

	sess.setSummary(summary)
	o.publishStage(sess, types.StageSummarization, StatusCompleted, nil)
	return summary, nil
}

func (o *Orchestrator) summarize(ctx context.Context, model, text, prompt string) (*types.Summary, error) {
	gen, err := o.models.Get(ctx, model)
	if err != nil {
		return nil, &summarization.SummarizationError{Model: model, Err: err}
	}
	return o.summarizer.Summarize(ctx, gen, model, text, prompt)
}

func (o *Orchestrator) supportsLanguage(lang string) bool {
	if len(o.opts.Languages) == 0 {
		return true
	}
	for _, l := range o.opts.Languages {
		if strings.EqualFold(l, lang) {
			return true
		}
	}
	return false
}
