package cleanup

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TempFiles hands out scoped temp paths under one directory.
type TempFiles struct {
	dir    string
	ledger *Ledger
	logger *zap.Logger
}

// TempFile is a path reserved under the temp directory. Release removes it;
// calling Release more than once is safe.
type TempFile struct {
	ID   string
	Path string

	owner *TempFiles
	once  sync.Once
}

// NewTempFiles ensures dir exists. ledger may be nil, in which case nothing
// survives a crash for the startup sweep to find.
func NewTempFiles(dir string, ledger *Ledger, logger *zap.Logger) (*TempFiles, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create temp directory: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TempFiles{dir: dir, ledger: ledger, logger: logger}, nil
}

// Dir returns the managed directory.
func (t *TempFiles) Dir() string {
	return t.dir
}

// Reserve records a fresh path with the given suffix without creating it.
func (t *TempFiles) Reserve(purpose, suffix string) (*TempFile, error) {
	id := uuid.New().String()
	tf := &TempFile{
		ID:    id,
		Path:  filepath.Join(t.dir, fmt.Sprintf("%s_%s%s", purpose, id, suffix)),
		owner: t,
	}

	if t.ledger != nil {
		if err := t.ledger.Record(Entry{ID: id, Path: tf.Path, Purpose: purpose, CreatedAt: time.Now()}); err != nil {
			return nil, err
		}
	}
	return tf, nil
}

// Write reserves a path and writes data to it.
func (t *TempFiles) Write(purpose, suffix string, data []byte) (*TempFile, error) {
	tf, err := t.Reserve(purpose, suffix)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(tf.Path, data, 0600); err != nil {
		tf.Release()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	return tf, nil
}

// MkdirTemp reserves and creates a directory.
func (t *TempFiles) MkdirTemp(purpose string) (*TempFile, error) {
	tf, err := t.Reserve(purpose, "")
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(tf.Path, 0755); err != nil {
		tf.Release()
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	return tf, nil
}

// Release removes the file or directory and drops it from the ledger.
func (tf *TempFile) Release() {
	tf.once.Do(func() {
		if err := os.RemoveAll(tf.Path); err != nil {
			tf.owner.logger.Warn("failed to remove temp file", zap.String("path", tf.Path), zap.Error(err))
		}
		if tf.owner.ledger != nil {
			if err := tf.owner.ledger.Forget(tf.ID); err != nil {
				tf.owner.logger.Warn("failed to forget temp file", zap.String("path", tf.Path), zap.Error(err))
			}
		}
	})
}

// SweepOrphans deletes every path still listed in the ledger. Call it once at
// startup, before any stage can reserve new files.
func (t *TempFiles) SweepOrphans() (int, error) {
	if t.ledger == nil {
		return 0, nil
	}

	entries, err := t.ledger.Entries()
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, e := range entries {
		if err := os.RemoveAll(e.Path); err != nil {
			t.logger.Warn("failed to remove orphaned temp file", zap.String("path", e.Path), zap.Error(err))
			continue
		}
		if err := t.ledger.Forget(e.ID); err != nil {
			return removed, err
		}
		removed++
	}

	if removed > 0 {
		t.logger.Info("removed orphaned temp files", zap.Int("count", removed))
	}
	return removed, nil
}
