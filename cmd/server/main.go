package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/filesystem"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/codebuildervaibhav/video-summarizer/internal/cleanup"
	"github.com/codebuildervaibhav/video-summarizer/internal/config"
	"github.com/codebuildervaibhav/video-summarizer/internal/executor"
	"github.com/codebuildervaibhav/video-summarizer/internal/handlers"
	"github.com/codebuildervaibhav/video-summarizer/internal/logging"
	"github.com/codebuildervaibhav/video-summarizer/internal/monitor"
	"github.com/codebuildervaibhav/video-summarizer/internal/pipeline"
	"github.com/codebuildervaibhav/video-summarizer/internal/storage"
	"github.com/codebuildervaibhav/video-summarizer/internal/summarization"
	"github.com/codebuildervaibhav/video-summarizer/internal/transcription"
	"github.com/codebuildervaibhav/video-summarizer/web"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the YAML config file")
	driveAuth := flag.Bool("gdrive-auth", false, "run the Google Drive OAuth flow, save the token and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if *driveAuth {
		if err := storage.Authorize(context.Background(), cfg.GoogleDrive.CredentialsFile, cfg.GoogleDrive.TokenFile, os.Stdin, os.Stdout); err != nil {
			log.Fatalf("Google Drive authorization failed: %v", err)
		}
		log.Printf("Token saved to %s", cfg.GoogleDrive.TokenFile)
		return
	}

	logBuffer := logging.NewLogBuffer(0)
	lg := logging.New(cfg.Logging.Level, logBuffer)
	defer lg.Sync()

	if err := run(cfg, lg, logBuffer); err != nil {
		lg.Fatal("server failed", zap.Error(err))
	}
}

func run(cfg *config.Config, lg *zap.Logger, logBuffer *logging.LogBuffer) error {
	lg.Info("initializing components")

	ledger, err := cleanup.OpenLedger(cfg.Storage.Ledger)
	if err != nil {
		return err
	}
	defer ledger.Close()

	files, err := cleanup.NewTempFiles(cfg.Storage.TempDir, ledger, lg.Named("tempfiles"))
	if err != nil {
		return err
	}
	if n, err := files.SweepOrphans(); err != nil {
		lg.Warn("orphan sweep failed", zap.Error(err))
	} else if n > 0 {
		lg.Info("removed temp files left by a previous run", zap.Int("count", n))
	}

	runner := executor.New()
	extractor := transcription.NewExtractor(runner, files, cfg.FFmpeg.BinaryPath, lg.Named("ffmpeg"))

	engine, err := transcription.NewEngine(cfg.Transcription, cfg.FFmpeg.BinaryPath, cfg.Keys.OpenAI, runner, files, lg.Named("whisper"))
	if err != nil {
		return err
	}
	mon := monitor.New(monitor.NewSystemSampler(), monitor.DefaultInterval, lg.Named("monitor"))
	transcriber := transcription.NewTranscriber(engine, files, mon, cfg.Transcription.Threads, lg.Named("transcriber"))

	tokenizer, err := summarization.NewTiktoken(cfg.Summarization.Encoding)
	if err != nil {
		return err
	}
	summarizer := summarization.New(tokenizer, summarization.OptionsFromConfig(cfg.Summarization), lg.Named("summarizer"))
	catalog := summarization.NewCatalog(cfg.Summarization.Models, summarization.ProviderBuilder(cfg.Keys))

	store := pipeline.NewStore(time.Duration(cfg.Sessions.TTLMinutes) * time.Minute)
	orch := pipeline.New(store, pipeline.NewHub(), extractor, transcriber, summarizer, catalog,
		pipeline.OptionsFromConfig(cfg), lg.Named("pipeline"))

	// Google Drive export is optional and never prompts here; see -gdrive-auth.
	var exporter handlers.Exporter
	if _, err := os.Stat(cfg.GoogleDrive.CredentialsFile); cfg.GoogleDrive.CredentialsFile != "" && err == nil {
		driveClient, err := storage.NewDriveClient(context.Background(),
			cfg.GoogleDrive.CredentialsFile, cfg.GoogleDrive.TokenFile, cfg.GoogleDrive.FolderName)
		switch {
		case errors.Is(err, storage.ErrDriveNotAuthorized):
			lg.Warn("Google Drive credentials found but not authorized; run with -gdrive-auth")
		case err != nil:
			lg.Warn("Google Drive not available", zap.Error(err))
		default:
			exporter = driveClient
			lg.Info("Google Drive export enabled", zap.String("folder", cfg.GoogleDrive.FolderName))
		}
	} else {
		lg.Info("Google Drive credentials not found; export disabled")
	}

	scheduler := cleanup.NewScheduler(cfg.Storage.TempDir, cfg.Cleanup.IntervalMinutes, cfg.Cleanup.MaxAgeHours, lg.Named("cleanup"))
	scheduler.AddTask(func() {
		if n := store.Prune(); n > 0 {
			lg.Info("expired idle sessions", zap.Int("count", n))
		}
	})
	scheduler.Start()
	defer scheduler.Stop()

	app := fiber.New(fiber.Config{
		// Room for multipart framing around the largest accepted video.
		BodyLimit:             cfg.Limits.MaxFileSizeMB*1024*1024 + 1024*1024,
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	app.Use(logger.New(logger.Config{Output: io.MultiWriter(os.Stdout, logBuffer)}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept",
	}))

	handlers.NewAPI(orch, files, exporter, logBuffer, lg.Named("http")).Register(app)

	app.Use("/", filesystem.New(filesystem.Config{
		Root:   http.FS(web.Assets()),
		Index:  "index.html",
		Browse: false,
	}))

	addr := cfg.Server.Addr()
	lg.Info("server starting",
		zap.String("addr", addr),
		zap.String("backend", orch.Backend()),
		zap.Strings("summary_models", orch.SummaryModels()))

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Listen(addr)
	}()

	sigint := make(chan os.Signal, 1)
	signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-sigint:
	}

	lg.Info("shutting down gracefully")
	return app.ShutdownWithTimeout(10 * time.Second)
}
