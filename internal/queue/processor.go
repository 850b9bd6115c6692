package queue

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/codebuildervaibhav/video-summarizer/internal/monitor"
	"github.com/codebuildervaibhav/video-summarizer/internal/pipeline"
	"github.com/codebuildervaibhav/video-summarizer/internal/storage"
	"github.com/codebuildervaibhav/video-summarizer/internal/types"
)

// FileExtractor converts a video on disk to WAV.
type FileExtractor interface {
	ExtractFile(ctx context.Context, videoPath string, threads int) (*types.ExtractedAudio, error)
}

// Settings picks the model, language and optional summarizer for a batch run.
type Settings struct {
	Language     string
	Model        types.ModelSize
	Threads      int
	SummaryModel string // empty disables summaries
	Prompt       string
}

// Processor runs extract, transcribe and the optional summary for one video,
// writing sidecar files next to it.
type Processor struct {
	extractor   FileExtractor
	transcriber pipeline.Transcriber
	summarizer  pipeline.Summarizer
	models      pipeline.Models
	sidecars    storage.Sidecars
	settings    Settings
	logger      *zap.Logger
}

// NewProcessor creates a Processor. summarizer and models may be nil when
// Settings.SummaryModel is empty.
func NewProcessor(extractor FileExtractor, transcriber pipeline.Transcriber, summarizer pipeline.Summarizer, models pipeline.Models, settings Settings, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{
		extractor:   extractor,
		transcriber: transcriber,
		summarizer:  summarizer,
		models:      models,
		settings:    settings,
		logger:      logger,
	}
}

// Process is a Handler.
func (p *Processor) Process(ctx context.Context, job *Job) error {
	log := p.logger.With(zap.String("video", job.VideoPath))

	log.Info("extracting audio")
	audio, err := p.extractor.ExtractFile(ctx, job.VideoPath, p.settings.Threads)
	if err != nil {
		return err
	}

	log.Info("transcribing",
		zap.String("language", p.settings.Language), zap.String("model", string(p.settings.Model)))
	onSample := func(s monitor.Sample) {
		log.Debug("transcription progress",
			zap.Duration("elapsed", s.Elapsed), zap.Float64("cpu", s.CPUPercent), zap.Float64("mem", s.MemoryPercent))
	}
	tr, err := p.transcriber.Transcribe(ctx, audio, p.settings.Model, p.settings.Language, onSample)
	if err != nil {
		return err
	}

	// The sidecar is named after the requested language, not the detected one.
	tr.Language = p.settings.Language
	path, err := p.sidecars.WriteTranscript(job.VideoPath, tr)
	if err != nil {
		return err
	}
	job.Outputs = append(job.Outputs, path)

	if p.settings.SummaryModel == "" {
		return nil
	}

	gen, err := p.models.Get(ctx, p.settings.SummaryModel)
	if err != nil {
		return fmt.Errorf("summary model: %w", err)
	}
	sum, err := p.summarizer.Summarize(ctx, gen, p.settings.SummaryModel, tr.Text, p.settings.Prompt)
	if err != nil {
		return err
	}
	path, err = p.sidecars.WriteSummary(job.VideoPath, sum)
	if err != nil {
		return err
	}
	job.Outputs = append(job.Outputs, path)
	return nil
}
