package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/codebuildervaibhav/video-summarizer/internal/types"
)

func TestSidecarNaming(t *testing.T) {
	var s Sidecars
	tests := []struct {
		video string
		lang  string
		model types.ModelSize
		want  string
	}{
		{"/videos/clase1.mp4", "es", types.ModelSmall, "/videos/whisper-es-small-clase1.txt"},
		{"/videos/sub/charla.final.mp4", "en", types.ModelLarge, "/videos/sub/whisper-en-large-charla.final.txt"},
	}
	for _, tt := range tests {
		if got := s.TranscriptPath(tt.video, tt.lang, tt.model); got != tt.want {
			t.Errorf("TranscriptPath(%q) = %q, want %q", tt.video, got, tt.want)
		}
	}

	if got := s.SummaryPath("/videos/clase1.mp4", "org/model:v1"); got != "/videos/summary-org_model_v1-clase1.md" {
		t.Errorf("SummaryPath() = %q", got)
	}
}

func TestWriteSidecars(t *testing.T) {
	dir := t.TempDir()
	video := filepath.Join(dir, "clase.mp4")
	var s Sidecars

	path, err := s.WriteTranscript(video, &types.Transcription{Text: "hola mundo", Language: "es", Model: types.ModelBase})
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(path) != "whisper-es-base-clase.txt" {
		t.Errorf("transcript path = %q", path)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "hola mundo" {
		t.Errorf("transcript content = %q", data)
	}

	generated := time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC)
	path, err = s.WriteSummary(video, &types.Summary{Text: " resumen \n", Model: "gpt-4o-mini", GeneratedAt: generated})
	if err != nil {
		t.Fatal(err)
	}
	data, _ = os.ReadFile(path)
	want := "# clase.mp4\n\n_gpt-4o-mini · 2024-05-01 10:30_\n\nresumen\n"
	if string(data) != want {
		t.Errorf("summary content = %q, want %q", data, want)
	}
}

func TestSanitizeFilename(t *testing.T) {
	if got := sanitizeFilename(` a/b\c:d*e?f"g<h>i|j `); got != "a_b_c_d_e_f_g_h_i_j" {
		t.Errorf("sanitizeFilename() = %q", got)
	}
	if got := sanitizeFilename(strings.Repeat("x", 150)); len(got) != 100 {
		t.Errorf("long names should be truncated, got %d chars", len(got))
	}
	if got := sanitizeFilename("  "); got != "untitled" {
		t.Errorf("blank name = %q", got)
	}
}

func TestNewDriveClientWithoutToken(t *testing.T) {
	dir := t.TempDir()
	creds := filepath.Join(dir, "credentials.json")
	body := `{"installed":{"client_id":"id","client_secret":"secret","redirect_uris":["http://localhost"],"auth_uri":"https://accounts.google.com/o/oauth2/auth","token_uri":"https://oauth2.googleapis.com/token"}}`
	if err := os.WriteFile(creds, []byte(body), 0600); err != nil {
		t.Fatal(err)
	}

	_, err := NewDriveClient(context.Background(), creds, filepath.Join(dir, "missing.json"), "Video Summaries")
	if !errors.Is(err, ErrDriveNotAuthorized) {
		t.Errorf("err = %v, want ErrDriveNotAuthorized", err)
	}

	if _, err := NewDriveClient(context.Background(), filepath.Join(dir, "nope.json"), "", ""); err == nil {
		t.Errorf("expected error for missing credentials")
	}
}
