package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatcherReportsSettledVideos(t *testing.T) {
	root := t.TempDir()
	found := make(chan string, 4)

	w, err := New(root, []string{".mp4"}, 50*time.Millisecond, func(ctx context.Context, path string) {
		found <- path
	}, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// Directories created after startup are watched too.
	sub := filepath.Join(root, "nuevo")
	if err := os.Mkdir(sub, 0755); err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(filepath.Join(root, "notes.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	video := filepath.Join(sub, "clase.MP4")
	if err := os.WriteFile(video, []byte("part"), 0644); err != nil {
		t.Fatal(err)
	}

	select {
	case got := <-found:
		if got != video {
			t.Errorf("reported %q, want %q", got, video)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("video was not reported")
	}

	select {
	case extra := <-found:
		t.Errorf("unexpected extra report %q", extra)
	case <-time.After(200 * time.Millisecond):
	}

	cancel()
	if err := <-done; err != context.Canceled {
		t.Errorf("Run() = %v, want context.Canceled", err)
	}
}
