package main

import (
	"os"
	"path/filepath"
	"sort"
	"testing"
)

func TestWalkFindsVideosByExtension(t *testing.T) {
	root := t.TempDir()
	files := []string{
		"a.mp4",
		"nested/deeper/B.MP4",
		"nested/notes.txt",
		"nested/whisper-es-small-a.mp4",
		"nested/whisper-es-small-a.txt",
		"summary-meeting.mp4",
		"summary-gpt-b.md",
		"clip.mov",
	}
	for _, f := range files {
		p := filepath.Join(root, f)
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	var got []string
	n, err := walk(root, []string{".mp4"}, func(path string) {
		rel, _ := filepath.Rel(root, path)
		got = append(got, filepath.ToSlash(rel))
	})
	if err != nil {
		t.Fatalf("walk() error = %v", err)
	}
	sort.Strings(got)

	want := []string{"a.mp4", "nested/deeper/B.MP4", "nested/whisper-es-small-a.mp4", "summary-meeting.mp4"}
	if n != len(want) || len(got) != len(want) {
		t.Fatalf("walk() found %d: %v, want %v", n, got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestSeenSet(t *testing.T) {
	s := newSeenSet()
	if !s.add("a.mp4") {
		t.Error("first add should report new")
	}
	if s.add("a.mp4") {
		t.Error("second add should report duplicate")
	}
}

func TestLoadConfigFallsBackToDefaults(t *testing.T) {
	cfg, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}
	if cfg.FFmpeg.BinaryPath != "ffmpeg" || len(cfg.Limits.AllowedExtensions) == 0 {
		t.Errorf("defaults not applied: %+v", cfg.FFmpeg)
	}
}
