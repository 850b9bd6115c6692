package transcription

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/codebuildervaibhav/video-summarizer/internal/cleanup"
	"github.com/codebuildervaibhav/video-summarizer/internal/executor"
	"github.com/codebuildervaibhav/video-summarizer/internal/types"
)

// ErrUnsupportedMedia is returned when an upload is not an accepted container
var ErrUnsupportedMedia = errors.New("unsupported media type")

// ConversionError reports an ffmpeg failure. Stderr is ffmpeg's diagnostic output, untouched.
type ConversionError struct {
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ConversionError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("audio conversion failed (exit code %d): %s", e.ExitCode, e.Stderr)
	}
	return fmt.Sprintf("audio conversion failed: %v", e.Err)
}

func (e *ConversionError) Unwrap() error {
	return e.Err
}

// EmptyOutputError reports a conversion that exited cleanly but produced nothing.
type EmptyOutputError struct {
	Path string
}

func (e *EmptyOutputError) Error() string {
	return fmt.Sprintf("audio conversion produced no output (%s)", filepath.Base(e.Path))
}

// Extractor demuxes the audio track of a video into 16-bit stereo 44.1kHz WAV.
type Extractor struct {
	runner     executor.Runner
	files      *cleanup.TempFiles
	ffmpegPath string
	logger     *zap.Logger
}

// NewExtractor creates an Extractor that runs the ffmpeg binary at ffmpegPath.
func NewExtractor(runner executor.Runner, files *cleanup.TempFiles, ffmpegPath string, logger *zap.Logger) *Extractor {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{
		runner:     runner,
		files:      files,
		ffmpegPath: ffmpegPath,
		logger:     logger,
	}
}

// Extract stages the uploaded payload in a temp file and converts it.
func (e *Extractor) Extract(ctx context.Context, media *types.UploadedMedia, threads int) (*types.ExtractedAudio, error) {
	suffix := strings.ToLower(filepath.Ext(media.Filename))
	if suffix == "" {
		suffix = ".mp4"
	}

	staged, err := e.files.Write("upload", suffix, media.Data)
	if err != nil {
		return nil, fmt.Errorf("stage upload: %w", err)
	}
	defer staged.Release()

	return e.ExtractFile(ctx, staged.Path, threads)
}

// ExtractFile converts the video at videoPath. The returned audio owns its
// bytes; the intermediate WAV is removed before returning.
func (e *Extractor) ExtractFile(ctx context.Context, videoPath string, threads int) (*types.ExtractedAudio, error) {
	out, err := e.files.Reserve("audio", ".wav")
	if err != nil {
		return nil, fmt.Errorf("reserve audio file: %w", err)
	}
	defer out.Release()

	args := []string{
		"-y",
		"-i", videoPath,
		"-vn",                   // No video
		"-acodec", "pcm_s16le", // 16-bit PCM
		"-ar", strconv.Itoa(types.SampleRate),
		"-ac", strconv.Itoa(types.Channels),
	}
	if threads > 0 {
		args = append(args, "-threads", strconv.Itoa(threads))
	}
	args = append(args, out.Path)

	e.logger.Info("extracting audio", zap.String("input", filepath.Base(videoPath)), zap.Int("threads", threads))
	started := time.Now()

	if err := runFFmpeg(ctx, e.runner, e.ffmpegPath, args); err != nil {
		return nil, err
	}

	info, err := os.Stat(out.Path)
	if err != nil || info.Size() == 0 {
		return nil, &EmptyOutputError{Path: out.Path}
	}

	data, err := os.ReadFile(out.Path)
	if err != nil {
		return nil, fmt.Errorf("read extracted audio: %w", err)
	}
	if len(data) == 0 {
		return nil, &EmptyOutputError{Path: out.Path}
	}

	e.logger.Info("audio extracted",
		zap.Int("bytes", len(data)), zap.Duration("took", time.Since(started)))

	return &types.ExtractedAudio{
		Data:          data,
		SampleRate:    types.SampleRate,
		Channels:      types.Channels,
		BitsPerSample: types.BitsPerSample,
		Threads:       threads,
		ExtractedAt:   time.Now(),
	}, nil
}

// runFFmpeg runs ffmpeg and maps a failure to a ConversionError.
func runFFmpeg(ctx context.Context, runner executor.Runner, ffmpegPath string, args []string) error {
	res, err := runner.Run(ctx, ffmpegPath, args...)
	if err == nil {
		return nil
	}
	var exitErr *executor.ExitError
	if errors.As(err, &exitErr) {
		stderr := exitErr.Stderr
		if res != nil {
			stderr = res.Stderr
		}
		return &ConversionError{ExitCode: exitErr.ExitCode, Stderr: stderr, Err: err}
	}
	return &ConversionError{ExitCode: -1, Err: err}
}

// ValidateVideoFormat checks the filename extension against allowed and, when
// given, that the declared MIME type is a video or generic binary type.
func ValidateVideoFormat(filename, mimeType string, allowed []string) error {
	ext := strings.ToLower(filepath.Ext(filename))
	supported := false
	for _, format := range allowed {
		if ext == format {
			supported = true
			break
		}
	}
	if !supported {
		return fmt.Errorf("%w: extension %q (allowed: %s)", ErrUnsupportedMedia, ext, strings.Join(allowed, ", "))
	}

	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.Index(mimeType, ";"); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	if mimeType != "" && !strings.HasPrefix(mimeType, "video/") && mimeType != "application/octet-stream" {
		return fmt.Errorf("%w: content type %q", ErrUnsupportedMedia, mimeType)
	}
	return nil
}
