package transcription

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/codebuildervaibhav/video-summarizer/internal/cleanup"
	"github.com/codebuildervaibhav/video-summarizer/internal/executor"
	"github.com/codebuildervaibhav/video-summarizer/internal/types"
)

// WhisperEngine wraps Python's OpenAI Whisper CLI
type WhisperEngine struct {
	runner     executor.Runner
	files      *cleanup.TempFiles
	pythonPath string
	logger     *zap.Logger
}

// NewWhisperEngine creates an engine that calls `python -m whisper`.
func NewWhisperEngine(runner executor.Runner, files *cleanup.TempFiles, pythonPath string, logger *zap.Logger) *WhisperEngine {
	if pythonPath == "" {
		pythonPath = "python"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WhisperEngine{runner: runner, files: files, pythonPath: pythonPath, logger: logger}
}

func (w *WhisperEngine) Name() string {
	return BackendWhisper
}

// Transcribe processes an audio file and returns the transcript
func (w *WhisperEngine) Transcribe(ctx context.Context, req Request) (*Result, error) {
	outDir, err := w.files.MkdirTemp("whisper")
	if err != nil {
		return nil, err
	}
	defer outDir.Release()

	absAudioPath, err := filepath.Abs(req.AudioPath)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	args := []string{"-m", "whisper",
		absAudioPath,
		"--model", string(req.Model),
		"--output_dir", outDir.Path,
		"--output_format", "json", // JSON carries segments
		"--fp16", "False", // CPU compatibility
		"--verbose", "False",
	}
	if req.Language != "" {
		args = append(args, "--language", req.Language)
	}
	if req.Threads > 0 {
		args = append(args, "--threads", strconv.Itoa(req.Threads))
	}

	if _, err := w.runner.Run(ctx, w.pythonPath, args...); err != nil {
		return nil, err
	}

	baseName := strings.TrimSuffix(filepath.Base(absAudioPath), filepath.Ext(absAudioPath))
	jsonData, err := os.ReadFile(filepath.Join(outDir.Path, baseName+".json"))
	if err != nil {
		return nil, fmt.Errorf("failed to read whisper output: %w", err)
	}
	return parseWhisperJSON(jsonData)
}

// whisperOutput matches Python Whisper's JSON output format
type whisperOutput struct {
	Text     string           `json:"text"`
	Language string           `json:"language"`
	Segments []whisperSegment `json:"segments"`
}

type whisperSegment struct {
	ID    int     `json:"id"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

func parseWhisperJSON(data []byte) (*Result, error) {
	var out whisperOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to parse whisper JSON: %w", err)
	}

	segments := make([]types.Segment, len(out.Segments))
	for i, seg := range out.Segments {
		segments[i] = types.Segment{
			Start: seg.Start,
			End:   seg.End,
			Text:  strings.TrimSpace(seg.Text),
		}
	}

	return &Result{
		Text:     strings.TrimSpace(out.Text),
		Language: out.Language,
		Segments: segments,
	}, nil
}
