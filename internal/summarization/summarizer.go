package summarization

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/codebuildervaibhav/video-summarizer/internal/config"
	"github.com/codebuildervaibhav/video-summarizer/internal/types"
)

// ErrEmptyInput is wrapped in a SummarizationError when there is nothing to summarize.
var ErrEmptyInput = errors.New("nothing to summarize")

// SummarizationError wraps any failure of the summarization stage. Partial
// chunk summaries are never returned alongside it.
type SummarizationError struct {
	Model string
	Err   error
}

func (e *SummarizationError) Error() string {
	if e.Model == "" {
		return fmt.Sprintf("summarization failed: %v", e.Err)
	}
	return fmt.Sprintf("summarization failed (%s): %v", e.Model, e.Err)
}

func (e *SummarizationError) Unwrap() error {
	return e.Err
}

// Options controls chunking, reduction and sampling.
type Options struct {
	SystemPrompt    string
	Cue             string
	ChunkTokens     int
	MaxPartials     int
	MaxDepth        int
	Temperature     float64
	MaxOutputTokens int
}

// OptionsFromConfig copies the summarization settings.
func OptionsFromConfig(cfg config.SummarizationConfig) Options {
	var temperature float64
	if cfg.Temperature != nil {
		temperature = *cfg.Temperature
	}
	return Options{
		SystemPrompt:    cfg.SystemPrompt,
		Cue:             cfg.Cue,
		ChunkTokens:     cfg.ChunkTokens,
		MaxPartials:     cfg.MaxPartials,
		MaxDepth:        cfg.MaxDepth,
		Temperature:     temperature,
		MaxOutputTokens: cfg.MaxOutputTokens,
	}
}

// Summarizer runs the chunk-and-reduce summarization procedure.
type Summarizer struct {
	tokenizer Tokenizer
	opts      Options
	logger    *zap.Logger
}

func New(tokenizer Tokenizer, opts Options, logger *zap.Logger) *Summarizer {
	if opts.Cue == "" {
		opts.Cue = "Resumen:"
	}
	if opts.ChunkTokens <= 0 {
		opts.ChunkTokens = 1000
	}
	if opts.MaxPartials <= 0 {
		opts.MaxPartials = 4
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = 6
	}
	if opts.MaxOutputTokens <= 0 {
		opts.MaxOutputTokens = 500
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Summarizer{tokenizer: tokenizer, opts: opts, logger: logger}
}

// run tracks counters for one Summarize call.
type run struct {
	gen         Generator
	instruction string
	log         *zap.Logger
	chunks      int
	depth       int
}

// Summarize condenses text with gen. model is only used for labelling.
func (s *Summarizer) Summarize(ctx context.Context, gen Generator, model, text, instruction string) (*types.Summary, error) {
	if strings.TrimSpace(text) == "" {
		return nil, &SummarizationError{Model: model, Err: ErrEmptyInput}
	}

	r := &run{
		gen:         gen,
		instruction: instruction,
		log:         s.logger.With(zap.String("model", model)),
	}
	started := time.Now()

	partials, err := s.summarizeChunks(ctx, r, text)
	if err != nil {
		return nil, &SummarizationError{Model: model, Err: err}
	}
	r.chunks = len(partials)

	result, err := s.reduce(ctx, r, partials, len(s.tokenizer.Encode(text)))
	if err != nil {
		return nil, &SummarizationError{Model: model, Err: err}
	}

	r.log.Info("summary generated",
		zap.Int("chunks", r.chunks), zap.Int("depth", r.depth), zap.Duration("took", time.Since(started)))

	return &types.Summary{
		Text:        result,
		Model:       model,
		Prompt:      instruction,
		Chunks:      r.chunks,
		Depth:       r.depth,
		GeneratedAt: time.Now(),
	}, nil
}

// reduce merges chunk summaries. At or below MaxPartials their concatenation is
// returned with no model call; above it the join is summarized again. It stops
// early at MaxDepth or when a round fails to shrink the token count.
func (s *Summarizer) reduce(ctx context.Context, r *run, partials []string, prevTokens int) (string, error) {
	joined := join(partials)
	if len(partials) <= s.opts.MaxPartials {
		return joined, nil
	}

	tokens := len(s.tokenizer.Encode(joined))
	if r.depth >= s.opts.MaxDepth {
		r.log.Warn("reduction depth cap reached", zap.Int("depth", r.depth), zap.Int("partials", len(partials)))
		return joined, nil
	}
	if tokens >= prevTokens {
		r.log.Warn("reduction stopped shrinking", zap.Int("tokens", tokens), zap.Int("previous", prevTokens))
		return joined, nil
	}

	r.depth++
	r.log.Debug("reducing partial summaries", zap.Int("depth", r.depth), zap.Int("partials", len(partials)), zap.Int("tokens", tokens))

	next, err := s.summarizeChunks(ctx, r, joined)
	if err != nil {
		return "", err
	}
	return s.reduce(ctx, r, next, tokens)
}

func (s *Summarizer) summarizeChunks(ctx context.Context, r *run, text string) ([]string, error) {
	chunks := Chunk(s.tokenizer, text, s.opts.ChunkTokens)
	if len(chunks) == 0 {
		return nil, ErrEmptyInput
	}

	partials := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		raw, err := r.gen.Generate(ctx, GenerateRequest{
			System:          s.opts.SystemPrompt,
			Prompt:          BuildPrompt(r.instruction, chunk, s.opts.Cue),
			Temperature:     s.opts.Temperature,
			MaxOutputTokens: s.opts.MaxOutputTokens,
		})
		if err != nil {
			return nil, fmt.Errorf("chunk %d/%d: %w", i+1, len(chunks), err)
		}

		summary := CleanOutput(raw, s.opts.Cue)
		if summary == "" {
			return nil, fmt.Errorf("chunk %d/%d: model returned no summary", i+1, len(chunks))
		}
		partials = append(partials, summary)
	}
	return partials, nil
}

func join(partials []string) string {
	trimmed := make([]string, 0, len(partials))
	for _, p := range partials {
		if p = strings.TrimSpace(p); p != "" {
			trimmed = append(trimmed, p)
		}
	}
	return strings.Join(trimmed, "\n\n")
}
