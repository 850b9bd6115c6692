package logging

import (
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const defaultBufferLines = 1000

// LogBuffer keeps the most recent log lines in memory for the /logs endpoint.
type LogBuffer struct {
	mu       sync.Mutex
	lines    []string
	maxLines int
}

// NewLogBuffer creates a buffer holding at most maxLines lines.
func NewLogBuffer(maxLines int) *LogBuffer {
	if maxLines <= 0 {
		maxLines = defaultBufferLines
	}
	return &LogBuffer{
		lines:    make([]string, 0, maxLines),
		maxLines: maxLines,
	}
}

func (lb *LogBuffer) Write(p []byte) (int, error) {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	for _, line := range strings.Split(strings.TrimRight(string(p), "\n"), "\n") {
		if line == "" {
			continue
		}
		lb.lines = append(lb.lines, line)
	}

	if len(lb.lines) > lb.maxLines {
		lb.lines = append([]string(nil), lb.lines[len(lb.lines)-lb.maxLines:]...)
	}

	return len(p), nil
}

func (lb *LogBuffer) Sync() error {
	return nil
}

// Lines returns a copy of the buffered lines, oldest first.
func (lb *LogBuffer) Lines() []string {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	logs := make([]string, len(lb.lines))
	copy(logs, lb.lines)
	return logs
}

// New builds a console logger that writes to stdout and, when buf is non-nil, to buf.
func New(level string, buf *LogBuffer) *zap.Logger {
	atomic := zap.NewAtomicLevelAt(ParseLevel(level))

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05.000")
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	encoder := zapcore.NewConsoleEncoder(encoderConfig)

	cores := []zapcore.Core{
		zapcore.NewCore(encoder, zapcore.Lock(os.Stdout), atomic),
	}
	if buf != nil {
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(buf), atomic))
	}

	return zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
}

// ParseLevel maps a config level name to a zap level, defaulting to info.
func ParseLevel(level string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
