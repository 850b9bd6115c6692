package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"syscall"

	"go.uber.org/zap"

	"github.com/codebuildervaibhav/video-summarizer/internal/cleanup"
	"github.com/codebuildervaibhav/video-summarizer/internal/config"
	"github.com/codebuildervaibhav/video-summarizer/internal/executor"
	"github.com/codebuildervaibhav/video-summarizer/internal/logging"
	"github.com/codebuildervaibhav/video-summarizer/internal/monitor"
	"github.com/codebuildervaibhav/video-summarizer/internal/queue"
	"github.com/codebuildervaibhav/video-summarizer/internal/summarization"
	"github.com/codebuildervaibhav/video-summarizer/internal/transcription"
	"github.com/codebuildervaibhav/video-summarizer/internal/types"
	"github.com/codebuildervaibhav/video-summarizer/internal/watcher"
)

const usage = `Usage: transcribe-dir [flags] <directory> <language> <tiny|base|small|medium|large>

Transcribes every video under directory and writes
whisper-<language>-<model>-<name>.txt next to each one.

Flags:
`

func main() {
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flag.PrintDefaults()
	}
	configPath := flag.String("config", "config/config.yaml", "path to the YAML config file (defaults are used when missing)")
	threads := flag.Int("threads", 0, "ffmpeg and whisper threads (0 uses the config default)")
	workers := flag.Int("workers", 1, "videos processed in parallel")
	summaryModel := flag.String("summarize", "", "also write summary-<model>-<name>.md using this summary model")
	prompt := flag.String("prompt", "", "summary instruction (defaults to summarization.default_prompt)")
	watch := flag.Bool("watch", false, "keep watching the directory for new videos after the walk")
	flag.Parse()

	if flag.NArg() != 3 {
		flag.Usage()
		os.Exit(2)
	}
	dir, language := flag.Arg(0), strings.ToLower(flag.Arg(1))
	model, err := types.ParseModelSize(flag.Arg(2))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		flag.Usage()
		os.Exit(2)
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		fmt.Fprintf(os.Stderr, "%s is not a directory\n", dir)
		os.Exit(2)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if *summaryModel != "" {
		if _, ok := cfg.Summarization.Model(*summaryModel); !ok {
			fmt.Fprintf(os.Stderr, "unknown summary model %q (configured: %s)\n",
				*summaryModel, strings.Join(cfg.Summarization.ModelNames(), ", "))
			os.Exit(2)
		}
	}
	if *threads <= 0 {
		*threads = cfg.Transcription.Threads
	}

	lg := logging.New(cfg.Logging.Level, nil)
	defer lg.Sync()

	settings := queue.Settings{
		Language:     language,
		Model:        model,
		Threads:      *threads,
		SummaryModel: *summaryModel,
		Prompt:       *prompt,
	}
	if settings.Prompt == "" {
		settings.Prompt = cfg.Summarization.DefaultPrompt
	}

	if err := run(cfg, lg, dir, settings, *workers, *watch); err != nil {
		lg.Error("setup failed", zap.Error(err))
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return config.Default(), nil
	}
	return cfg, err
}

func run(cfg *config.Config, lg *zap.Logger, dir string, settings queue.Settings, workers int, watch bool) error {
	files, err := cleanup.NewTempFiles(cfg.Storage.TempDir, nil, lg.Named("tempfiles"))
	if err != nil {
		return err
	}

	runner := executor.New()
	extractor := transcription.NewExtractor(runner, files, cfg.FFmpeg.BinaryPath, lg.Named("ffmpeg"))
	engine, err := transcription.NewEngine(cfg.Transcription, cfg.FFmpeg.BinaryPath, cfg.Keys.OpenAI, runner, files, lg.Named("whisper"))
	if err != nil {
		return err
	}
	mon := monitor.New(monitor.NewSystemSampler(), monitor.DefaultInterval, lg.Named("monitor"))
	transcriber := transcription.NewTranscriber(engine, files, mon, settings.Threads, lg.Named("transcriber"))

	var (
		summarizer *summarization.Summarizer
		catalog    *summarization.Catalog
	)
	if settings.SummaryModel != "" {
		tokenizer, err := summarization.NewTiktoken(cfg.Summarization.Encoding)
		if err != nil {
			return err
		}
		summarizer = summarization.New(tokenizer, summarization.OptionsFromConfig(cfg.Summarization), lg.Named("summarizer"))
		catalog = summarization.NewCatalog(cfg.Summarization.Models, summarization.ProviderBuilder(cfg.Keys))
	}

	processor := queue.NewProcessor(extractor, transcriber, summarizer, catalog, settings, lg.Named("processor"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool := queue.NewWorkerPool(workers, processor.Process, lg.Named("queue"))
	pool.Start(ctx)

	seen := newSeenSet()
	enqueue := func(path string) {
		if !seen.add(path) {
			return
		}
		if err := pool.Enqueue(queue.NewJob(path)); err != nil {
			lg.Warn("video not queued", zap.String("video", path), zap.Error(err))
		}
	}

	found, err := walk(dir, cfg.Limits.AllowedExtensions, enqueue)
	if err != nil {
		lg.Warn("directory walk incomplete", zap.Error(err))
	}
	lg.Info("directory walk finished", zap.String("dir", dir), zap.Int("videos", found))

	if watch {
		w, err := watcher.New(dir, cfg.Limits.AllowedExtensions, watcher.DefaultSettle, func(ctx context.Context, path string) {
			enqueue(path)
		}, lg.Named("watcher"))
		if err != nil {
			pool.Close()
			return err
		}
		if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			lg.Error("watcher stopped", zap.Error(err))
		}
	}

	pool.Close()
	completed, failed := pool.Stats()
	lg.Info("batch finished", zap.Int("completed", completed), zap.Int("failed", failed))
	return nil
}

// walk calls fn for every file under root with an allowed extension. Unreadable
// entries are logged by the caller and skipped.
func walk(root string, extensions []string, fn func(path string)) (int, error) {
	var (
		found int
		errs  []error
	)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			errs = append(errs, err)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if !slices.Contains(extensions, strings.ToLower(filepath.Ext(path))) {
			return nil
		}
		found++
		fn(path)
		return nil
	})
	if err != nil {
		errs = append(errs, err)
	}
	return found, errors.Join(errs...)
}

type seenSet struct {
	mu    sync.Mutex
	paths map[string]bool
}

func newSeenSet() *seenSet {
	return &seenSet{paths: make(map[string]bool)}
}

// add reports whether path was new.
func (s *seenSet) add(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.paths[path] {
		return false
	}
	s.paths[path] = true
	return true
}
