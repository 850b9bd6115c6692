package executor

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestRunCapturesStdout(t *testing.T) {
	res, err := New().Run(context.Background(), "sh", "-c", "echo hello")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if strings.TrimSpace(res.Stdout) != "hello" {
		t.Errorf("Stdout = %q, want hello", res.Stdout)
	}
}

func TestRunNonZeroExitKeepsStderr(t *testing.T) {
	res, err := New().Run(context.Background(), "sh", "-c", "echo 'Invalid data found' >&2; exit 3")

	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("expected *ExitError, got %v", err)
	}
	if exitErr.ExitCode != 3 {
		t.Errorf("ExitCode = %d, want 3", exitErr.ExitCode)
	}
	if exitErr.Stderr != "Invalid data found" {
		t.Errorf("Stderr = %q", exitErr.Stderr)
	}
	if res == nil || res.ExitCode != 3 {
		t.Errorf("result should carry exit code, got %+v", res)
	}
}

func TestRunMissingBinary(t *testing.T) {
	_, err := New().Run(context.Background(), "definitely-not-a-real-binary-xyz")
	if err == nil {
		t.Fatal("expected error for missing binary")
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		t.Errorf("missing binary should not be an ExitError")
	}
}
