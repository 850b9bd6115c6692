package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Runner executes external commands and captures their output.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (*Result, error)
}

// Result holds the captured output of a finished command.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// ExitError is returned when a command ran but exited non-zero.
type ExitError struct {
	Name     string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ExitError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("command '%s' exited with code %d\nstderr: %s", e.Name, e.ExitCode, e.Stderr)
	}
	return fmt.Sprintf("command '%s' exited with code %d", e.Name, e.ExitCode)
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

type implRunner struct{}

// New creates a Runner backed by os/exec.
func New() Runner {
	return &implRunner{}
}

// Run runs name with args. A non-zero exit yields *ExitError carrying stderr verbatim;
// failures to start the process are returned wrapped.
func (r *implRunner) Run(ctx context.Context, name string, args ...string) (*Result, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := &Result{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}
	if err == nil {
		return res, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
		return res, &ExitError{
			Name:     name,
			ExitCode: res.ExitCode,
			Stderr:   strings.TrimSpace(res.Stderr),
			Err:      err,
		}
	}
	return res, fmt.Errorf("command '%s' failed: %w", name, err)
}
