package pipeline

import (
	"errors"
	"fmt"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionBusy     = errors.New("session is busy")
	ErrMediaTooLarge   = errors.New("media file too large")
	ErrInvalidOption   = errors.New("invalid option")
)

// StageNotReadyError is returned when a stage runs before its input exists.
type StageNotReadyError struct {
	Stage string
	Needs string
}

func (e *StageNotReadyError) Error() string {
	return fmt.Sprintf("%s cannot run yet: %s required", e.Stage, e.Needs)
}

// ErrStageNotReady matches any *StageNotReadyError with errors.Is.
var ErrStageNotReady = errors.New("stage not ready")

func (e *StageNotReadyError) Is(target error) bool {
	return target == ErrStageNotReady
}
