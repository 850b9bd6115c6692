package queue

import (
	"time"

	"github.com/google/uuid"
)

// Job status constants
const (
	StatusQueued     = "QUEUED"
	StatusProcessing = "PROCESSING"
	StatusCompleted  = "COMPLETED"
	StatusFailed     = "FAILED"
)

// Job is one video file to process
type Job struct {
	ID         string
	VideoPath  string
	Status     string
	Error      error
	Outputs    []string
	CreatedAt  time.Time
	FinishedAt time.Time
}

// NewJob creates a new job with default values
func NewJob(videoPath string) *Job {
	return &Job{
		ID:        uuid.New().String(),
		VideoPath: videoPath,
		Status:    StatusQueued,
		CreatedAt: time.Now(),
	}
}
