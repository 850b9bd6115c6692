package cleanup

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Scheduler handles periodic cleanup of the temp directory plus any extra
// housekeeping tasks registered with AddTask.
type Scheduler struct {
	tempDir  string
	interval time.Duration
	maxAge   time.Duration
	logger   *zap.Logger

	mu       sync.Mutex
	tasks    []func()
	stopChan chan struct{}
	stopOnce sync.Once
}

// NewScheduler creates a new cleanup scheduler
func NewScheduler(tempDir string, intervalMinutes, maxAgeHours int, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		tempDir:  tempDir,
		interval: time.Duration(intervalMinutes) * time.Minute,
		maxAge:   time.Duration(maxAgeHours) * time.Hour,
		logger:   logger,
		stopChan: make(chan struct{}),
	}
}

// AddTask registers fn to run on every tick, after the file sweep.
func (s *Scheduler) AddTask(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = append(s.tasks, fn)
}

// Start runs one sweep immediately and then one per interval.
func (s *Scheduler) Start() {
	s.logger.Info("running initial temp file cleanup")
	s.RunOnce()

	ticker := time.NewTicker(s.interval)

	go func() {
		for {
			select {
			case <-ticker.C:
				s.RunOnce()
			case <-s.stopChan:
				ticker.Stop()
				return
			}
		}
	}()

	s.logger.Info("cleanup scheduler started",
		zap.Duration("interval", s.interval), zap.Duration("max_age", s.maxAge))
}

// Stop stops the cleanup scheduler
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
		s.logger.Info("cleanup scheduler stopped")
	})
}

// RunOnce sweeps aged files and runs registered tasks.
func (s *Scheduler) RunOnce() {
	s.cleanOldFiles()

	s.mu.Lock()
	tasks := append([]func(){}, s.tasks...)
	s.mu.Unlock()

	for _, task := range tasks {
		task()
	}
}

// cleanOldFiles removes files older than maxAge from the temp directory
func (s *Scheduler) cleanOldFiles() {
	now := time.Now()

	var deletedCount int
	var deletedSize int64

	err := filepath.Walk(s.tempDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip files we can't access
		}
		if info.IsDir() {
			return nil
		}

		age := now.Sub(info.ModTime())
		if age <= s.maxAge {
			return nil
		}

		size := info.Size()
		if err := os.Remove(path); err != nil {
			s.logger.Warn("failed to delete old file", zap.String("path", path), zap.Error(err))
			return nil
		}
		deletedCount++
		deletedSize += size
		s.logger.Debug("deleted old temp file",
			zap.String("file", filepath.Base(path)),
			zap.Duration("age", age.Round(time.Hour)),
			zap.Int64("size_kb", size/1024))
		return nil
	})

	if err != nil {
		s.logger.Warn("error during cleanup", zap.Error(err))
	}

	if deletedCount > 0 {
		s.logger.Info("cleanup complete",
			zap.Int("files", deletedCount),
			zap.Float64("freed_mb", float64(deletedSize)/(1024*1024)))
	}
}
