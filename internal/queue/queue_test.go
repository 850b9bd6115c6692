package queue

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/codebuildervaibhav/video-summarizer/internal/monitor"
	"github.com/codebuildervaibhav/video-summarizer/internal/summarization"
	"github.com/codebuildervaibhav/video-summarizer/internal/types"
)

func TestWorkerPoolContinuesPastFailures(t *testing.T) {
	var processed atomic.Int32
	pool := NewWorkerPool(3, func(ctx context.Context, job *Job) error {
		processed.Add(1)
		switch filepath.Base(job.VideoPath) {
		case "bad.mp4":
			return errors.New("conversion failed")
		case "panic.mp4":
			panic("boom")
		}
		return nil
	}, nil)
	pool.Start(context.Background())

	jobs := []*Job{NewJob("a.mp4"), NewJob("bad.mp4"), NewJob("b.mp4"), NewJob("panic.mp4"), NewJob("c.mp4")}
	for _, j := range jobs {
		pool.Enqueue(j)
	}
	pool.Close()

	completed, failed := pool.Stats()
	if completed != 3 || failed != 2 {
		t.Errorf("Stats() = %d completed, %d failed; want 3, 2", completed, failed)
	}
	if processed.Load() != 5 {
		t.Errorf("processed %d jobs, want 5", processed.Load())
	}
	for _, j := range jobs {
		name := filepath.Base(j.VideoPath)
		wantFailed := name == "bad.mp4" || name == "panic.mp4"
		if (j.Status == StatusFailed) != wantFailed {
			t.Errorf("%s: status = %s", name, j.Status)
		}
		if wantFailed && j.Error == nil {
			t.Errorf("%s: error not recorded", name)
		}
	}
}

func TestWorkerPoolCancelledContextFailsQueuedJobs(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ran := false
	pool := NewWorkerPool(1, func(context.Context, *Job) error { ran = true; return nil }, nil)
	pool.Start(ctx)
	job := NewJob("a.mp4")
	pool.Enqueue(job)
	pool.Close()

	if ran {
		t.Errorf("handler should not run after cancellation")
	}
	if job.Status != StatusFailed || !errors.Is(job.Error, context.Canceled) {
		t.Errorf("job = %s / %v", job.Status, job.Error)
	}
}

func TestWorkerPoolEnqueueDuringClose(t *testing.T) {
	entered := make(chan struct{}, 1)
	release := make(chan struct{})
	pool := NewWorkerPool(1, func(context.Context, *Job) error {
		select {
		case entered <- struct{}{}:
		default:
		}
		<-release
		return nil
	}, nil)
	pool.Start(context.Background())

	if err := pool.Enqueue(NewJob("first.mp4")); err != nil {
		t.Fatal(err)
	}
	<-entered
	for i := 0; i < cap(pool.jobQueue); i++ {
		if err := pool.Enqueue(NewJob("queued.mp4")); err != nil {
			t.Fatal(err)
		}
	}

	// The queue is full, so this sender blocks until Close.
	blocked := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				blocked <- fmt.Errorf("panic: %v", r)
			}
		}()
		blocked <- pool.Enqueue(NewJob("late.mp4"))
	}()
	time.Sleep(50 * time.Millisecond)

	closed := make(chan struct{})
	go func() {
		pool.Close()
		close(closed)
	}()
	close(release)

	select {
	case err := <-blocked:
		if err != nil && !errors.Is(err, ErrPoolClosed) {
			t.Errorf("blocked Enqueue = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("blocked Enqueue never returned")
	}
	select {
	case <-closed:
	case <-time.After(5 * time.Second):
		t.Fatal("Close did not return")
	}

	if err := pool.Enqueue(NewJob("after.mp4")); !errors.Is(err, ErrPoolClosed) {
		t.Errorf("Enqueue after Close = %v, want ErrPoolClosed", err)
	}
	if completed, failed := pool.Stats(); completed+failed < 1+cap(pool.jobQueue) {
		t.Errorf("queued jobs were not drained: %d completed, %d failed", completed, failed)
	}
}

type stubExtractor struct{ err error }

func (s stubExtractor) ExtractFile(ctx context.Context, videoPath string, threads int) (*types.ExtractedAudio, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &types.ExtractedAudio{Data: []byte("RIFF"), Threads: threads}, nil
}

type stubTranscriber struct{}

func (stubTranscriber) Backend() string { return "stub" }

func (stubTranscriber) Transcribe(ctx context.Context, audio *types.ExtractedAudio, model types.ModelSize, language string, onSample func(monitor.Sample)) (*types.Transcription, error) {
	return &types.Transcription{Text: "texto transcrito", Language: "auto", Model: model}, nil
}

type stubSummarizer struct{}

func (stubSummarizer) Summarize(ctx context.Context, gen summarization.Generator, model, text, instruction string) (*types.Summary, error) {
	return &types.Summary{Text: "resumen", Model: model}, nil
}

type stubModels struct{}

func (stubModels) Names() []string { return []string{"gpt-4o-mini"} }
func (stubModels) Has(string) bool { return true }
func (stubModels) Get(context.Context, string) (summarization.Generator, error) {
	return nil, nil
}

func TestProcessorWritesSidecars(t *testing.T) {
	dir := t.TempDir()
	video := filepath.Join(dir, "clase.mp4")

	p := NewProcessor(stubExtractor{}, stubTranscriber{}, stubSummarizer{}, stubModels{}, Settings{
		Language:     "es",
		Model:        types.ModelSmall,
		SummaryModel: "gpt-4o-mini",
	}, nil)

	job := NewJob(video)
	if err := p.Process(context.Background(), job); err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	transcript := filepath.Join(dir, "whisper-es-small-clase.txt")
	data, err := os.ReadFile(transcript)
	if err != nil || string(data) != "texto transcrito" {
		t.Errorf("transcript sidecar = %q, %v", data, err)
	}
	if _, err := os.Stat(filepath.Join(dir, "summary-gpt-4o-mini-clase.md")); err != nil {
		t.Errorf("summary sidecar missing: %v", err)
	}
	if len(job.Outputs) != 2 {
		t.Errorf("Outputs = %v", job.Outputs)
	}
}

func TestProcessorStopsOnExtractionFailure(t *testing.T) {
	dir := t.TempDir()
	p := NewProcessor(stubExtractor{err: errors.New("ffmpeg failed")}, stubTranscriber{}, nil, nil, Settings{Language: "es", Model: types.ModelTiny}, nil)

	if err := p.Process(context.Background(), NewJob(filepath.Join(dir, "x.mp4"))); err == nil {
		t.Fatal("expected error")
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("no sidecar should be written on failure")
	}
}
