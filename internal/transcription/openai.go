package transcription

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/codebuildervaibhav/video-summarizer/internal/cleanup"
	"github.com/codebuildervaibhav/video-summarizer/internal/executor"
	"github.com/codebuildervaibhav/video-summarizer/internal/types"
)

// MaxUploadBytes is the hosted transcription API's request file limit.
const MaxUploadBytes = 25 << 20

// Upload format for the hosted API: mono 16 kHz speech-grade MP3, roughly
// 6 KB per second, so about an hour fits under the limit.
const (
	uploadSampleRate = 16000
	uploadBitrate    = "48k"
)

// ErrUploadTooLarge is returned when the compressed audio still exceeds the
// API's file limit.
var ErrUploadTooLarge = errors.New("audio exceeds the transcription API upload limit")

// OpenAIEngine sends the audio to the hosted transcription API. The API
// serves a single model, so Request.Model only travels into the result.
// The extracted waveform is re-encoded to compact mono MP3 before upload.
type OpenAIEngine struct {
	client     *openai.Client
	model      string
	runner     executor.Runner
	files      *cleanup.TempFiles
	ffmpegPath string
	maxUpload  int64
	logger     *zap.Logger
}

func NewOpenAIEngine(apiKey, model string, runner executor.Runner, files *cleanup.TempFiles, ffmpegPath string, logger *zap.Logger) *OpenAIEngine {
	if model == "" {
		model = openai.Whisper1
	}
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OpenAIEngine{
		client:     openai.NewClient(apiKey),
		model:      model,
		runner:     runner,
		files:      files,
		ffmpegPath: ffmpegPath,
		maxUpload:  MaxUploadBytes,
		logger:     logger,
	}
}

func (o *OpenAIEngine) Name() string {
	return BackendOpenAI
}

func (o *OpenAIEngine) Transcribe(ctx context.Context, req Request) (*Result, error) {
	upload, err := o.compress(ctx, req)
	if err != nil {
		return nil, err
	}
	defer upload.Release()

	resp, err := o.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    o.model,
		FilePath: upload.Path,
		Language: req.Language,
		Format:   openai.AudioResponseFormatVerboseJSON,
	})
	if err != nil {
		return nil, err
	}

	segments := make([]types.Segment, len(resp.Segments))
	for i, seg := range resp.Segments {
		segments[i] = types.Segment{
			Start: seg.Start,
			End:   seg.End,
			Text:  strings.TrimSpace(seg.Text),
		}
	}

	return &Result{
		Text:     strings.TrimSpace(resp.Text),
		Language: resp.Language,
		Segments: segments,
	}, nil
}

// compress encodes req.AudioPath into a temp MP3 sized for upload. The caller
// releases the returned file.
func (o *OpenAIEngine) compress(ctx context.Context, req Request) (*cleanup.TempFile, error) {
	out, err := o.files.Reserve("upload", ".mp3")
	if err != nil {
		return nil, fmt.Errorf("reserve upload file: %w", err)
	}

	args := []string{
		"-y",
		"-i", req.AudioPath,
		"-vn",
		"-ac", "1",
		"-ar", strconv.Itoa(uploadSampleRate),
		"-c:a", "libmp3lame",
		"-b:a", uploadBitrate,
	}
	if req.Threads > 0 {
		args = append(args, "-threads", strconv.Itoa(req.Threads))
	}
	args = append(args, out.Path)

	if err := runFFmpeg(ctx, o.runner, o.ffmpegPath, args); err != nil {
		out.Release()
		return nil, err
	}

	info, err := os.Stat(out.Path)
	if err != nil || info.Size() == 0 {
		out.Release()
		return nil, &EmptyOutputError{Path: out.Path}
	}
	if info.Size() > o.maxUpload {
		out.Release()
		return nil, fmt.Errorf("%w: %d bytes after compression, limit %d", ErrUploadTooLarge, info.Size(), o.maxUpload)
	}

	o.logger.Debug("audio compressed for upload", zap.Int64("bytes", info.Size()))
	return out, nil
}
