package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/codebuildervaibhav/video-summarizer/internal/types"
)

// Sidecars writes outputs next to the source video.
type Sidecars struct{}

// baseName strips directory and extension from a video path.
func baseName(videoPath string) string {
	base := filepath.Base(videoPath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// TranscriptPath returns <dir>/whisper-<lang>-<model>-<base>.txt.
func (Sidecars) TranscriptPath(videoPath, language string, model types.ModelSize) string {
	name := fmt.Sprintf("whisper-%s-%s-%s.txt", language, model, baseName(videoPath))
	return filepath.Join(filepath.Dir(videoPath), name)
}

// SummaryPath returns <dir>/summary-<model>-<base>.md.
func (Sidecars) SummaryPath(videoPath, model string) string {
	name := fmt.Sprintf("summary-%s-%s.md", sanitizeFilename(model), baseName(videoPath))
	return filepath.Join(filepath.Dir(videoPath), name)
}

// WriteTranscript saves the transcription text verbatim.
func (s Sidecars) WriteTranscript(videoPath string, t *types.Transcription) (string, error) {
	path := s.TranscriptPath(videoPath, t.Language, t.Model)
	if err := os.WriteFile(path, []byte(t.Text), 0644); err != nil {
		return "", fmt.Errorf("failed to save transcript: %w", err)
	}
	return path, nil
}

// WriteSummary saves the summary as markdown with a title and timestamp.
func (s Sidecars) WriteSummary(videoPath string, sum *types.Summary) (string, error) {
	path := s.SummaryPath(videoPath, sum.Model)
	if err := os.WriteFile(path, []byte(SummaryMarkdown(filepath.Base(videoPath), sum)), 0644); err != nil {
		return "", fmt.Errorf("failed to save summary: %w", err)
	}
	return path, nil
}

// SummaryMarkdown formats a summary document.
func SummaryMarkdown(title string, sum *types.Summary) string {
	generated := sum.GeneratedAt
	if generated.IsZero() {
		generated = time.Now()
	}
	return fmt.Sprintf("# %s\n\n_%s · %s_\n\n%s\n",
		title,
		sum.Model,
		generated.Format("2006-01-02 15:04"),
		strings.TrimSpace(sum.Text),
	)
}

// sanitizeFilename replaces characters that are invalid in filenames
func sanitizeFilename(name string) string {
	replacer := strings.NewReplacer(
		"/", "_", "\\", "_", ":", "_", "*", "_", "?", "_",
		"\"", "_", "<", "_", ">", "_", "|", "_", " ", "_",
	)
	result := replacer.Replace(strings.TrimSpace(name))
	if len(result) > 100 {
		result = result[:100]
	}
	if result == "" {
		result = "untitled"
	}
	return result
}
