package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultSettle is how long a file must stay quiet before it is handed off.
const DefaultSettle = 2 * time.Second

// EventHandler receives each new, fully written file.
type EventHandler func(ctx context.Context, filePath string)

// Watcher reports new files with one of the given extensions anywhere under a root.
type Watcher struct {
	root       string
	extensions []string
	settle     time.Duration
	handler    EventHandler
	logger     *zap.Logger
	watcher    *fsnotify.Watcher

	mu      sync.Mutex
	pending map[string]*time.Timer
}

// New watches root and every directory below it.
func New(root string, extensions []string, settle time.Duration, handler EventHandler, logger *zap.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if settle <= 0 {
		settle = DefaultSettle
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	w := &Watcher{
		root:       root,
		extensions: extensions,
		settle:     settle,
		handler:    handler,
		logger:     logger,
		watcher:    fw,
		pending:    make(map[string]*time.Timer),
	}
	if err := w.addTree(root); err != nil {
		fw.Close()
		return nil, err
	}
	return w, nil
}

func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.watcher.Add(path); err != nil {
			return fmt.Errorf("add watch path %s: %w", path, err)
		}
		return nil
	})
}

// Run blocks until ctx is cancelled or the underlying watcher fails.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()
	defer w.cancelPending()

	w.logger.Info("watching for new videos", zap.String("root", w.root), zap.Strings("extensions", w.extensions))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			w.handleEvent(ctx, event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			w.logger.Error("watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) handleEvent(ctx context.Context, event fsnotify.Event) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return
	}

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addTree(event.Name); err != nil {
				w.logger.Warn("failed to watch new directory", zap.String("dir", event.Name), zap.Error(err))
			}
			return
		}
	}

	if !w.matches(event.Name) {
		return
	}
	w.schedule(ctx, event.Name)
}

// schedule (re)arms the settle timer for path.
func (w *Watcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.pending[path]; ok {
		t.Reset(w.settle)
		return
	}
	w.pending[path] = time.AfterFunc(w.settle, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()

		if ctx.Err() != nil {
			return
		}
		if _, err := os.Stat(path); err != nil {
			return
		}
		w.logger.Info("new video detected", zap.String("path", path))
		w.handler(ctx, path)
	})
}

func (w *Watcher) cancelPending() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, t := range w.pending {
		t.Stop()
		delete(w.pending, path)
	}
}

func (w *Watcher) matches(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range w.extensions {
		if ext == e {
			return true
		}
	}
	return false
}
