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

// WhisperCppEngine runs the whisper.cpp command line binary against ggml models.
type WhisperCppEngine struct {
	runner    executor.Runner
	files     *cleanup.TempFiles
	binary    string
	modelsDir string
	logger    *zap.Logger
}

func NewWhisperCppEngine(runner executor.Runner, files *cleanup.TempFiles, binary, modelsDir string, logger *zap.Logger) *WhisperCppEngine {
	if binary == "" {
		binary = "whisper-cli"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WhisperCppEngine{runner: runner, files: files, binary: binary, modelsDir: modelsDir, logger: logger}
}

func (w *WhisperCppEngine) Name() string {
	return BackendWhisperCpp
}

// ModelPath returns the ggml checkpoint for size. whisper.cpp ships large as large-v3.
func (w *WhisperCppEngine) ModelPath(size types.ModelSize) string {
	name := string(size)
	if size == types.ModelLarge {
		name = "large-v3"
	}
	return filepath.Join(w.modelsDir, "ggml-"+name+".bin")
}

func (w *WhisperCppEngine) Transcribe(ctx context.Context, req Request) (*Result, error) {
	modelPath := w.ModelPath(req.Model)
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("model not found at %s: %w", modelPath, err)
	}

	outDir, err := w.files.MkdirTemp("whispercpp")
	if err != nil {
		return nil, err
	}
	defer outDir.Release()
	prefix := filepath.Join(outDir.Path, "out")

	args := []string{
		"-m", modelPath,
		"-f", req.AudioPath,
		"-oj",
		"-of", prefix,
		"-np",
	}
	if req.Language != "" {
		args = append(args, "-l", req.Language)
	}
	if req.Threads > 0 {
		args = append(args, "-t", strconv.Itoa(req.Threads))
	}

	if _, err := w.runner.Run(ctx, w.binary, args...); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(prefix + ".json")
	if err != nil {
		return nil, fmt.Errorf("failed to read whisper.cpp output: %w", err)
	}
	return parseWhisperCppJSON(data)
}

type whisperCppOutput struct {
	Result struct {
		Language string `json:"language"`
	} `json:"result"`
	Transcription []struct {
		Offsets struct {
			From int64 `json:"from"`
			To   int64 `json:"to"`
		} `json:"offsets"`
		Text string `json:"text"`
	} `json:"transcription"`
}

func parseWhisperCppJSON(data []byte) (*Result, error) {
	var out whisperCppOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to parse whisper.cpp JSON: %w", err)
	}

	var text strings.Builder
	segments := make([]types.Segment, 0, len(out.Transcription))
	for _, seg := range out.Transcription {
		t := strings.TrimSpace(seg.Text)
		if t == "" {
			continue
		}
		if text.Len() > 0 {
			text.WriteByte(' ')
		}
		text.WriteString(t)
		segments = append(segments, types.Segment{
			Start: float64(seg.Offsets.From) / 1000,
			End:   float64(seg.Offsets.To) / 1000,
			Text:  t,
		})
	}

	return &Result{
		Text:     text.String(),
		Language: out.Result.Language,
		Segments: segments,
	}, nil
}
