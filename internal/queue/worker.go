package queue

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrPoolClosed is returned by Enqueue once Close has been called.
var ErrPoolClosed = errors.New("worker pool is closed")

// Handler processes a single job. Returned errors mark the job failed.
type Handler func(ctx context.Context, job *Job) error

// WorkerPool manages a pool of workers processing jobs
type WorkerPool struct {
	jobQueue    chan *Job
	workerCount int
	handler     Handler
	logger      *zap.Logger

	wg        sync.WaitGroup
	closeOnce sync.Once

	// senders counts Enqueue calls in flight; jobQueue is only closed once they return.
	sendMu  sync.Mutex
	closed  bool
	done    chan struct{}
	senders sync.WaitGroup

	mu        sync.Mutex
	completed int
	failed    int
}

// NewWorkerPool creates a new worker pool
func NewWorkerPool(workerCount int, handler Handler, logger *zap.Logger) *WorkerPool {
	if workerCount <= 0 {
		workerCount = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WorkerPool{
		jobQueue:    make(chan *Job, 100),
		workerCount: workerCount,
		handler:     handler,
		logger:      logger,
		done:        make(chan struct{}),
	}
}

// Start initializes all workers
func (wp *WorkerPool) Start(ctx context.Context) {
	wp.logger.Info("starting worker pool", zap.Int("workers", wp.workerCount))
	for i := 0; i < wp.workerCount; i++ {
		wp.wg.Add(1)
		go wp.worker(ctx, i)
	}
}

// Enqueue adds a job to the queue. It blocks while the queue is full and
// returns ErrPoolClosed if the pool is closed first.
func (wp *WorkerPool) Enqueue(job *Job) error {
	wp.sendMu.Lock()
	if wp.closed {
		wp.sendMu.Unlock()
		return ErrPoolClosed
	}
	wp.senders.Add(1)
	wp.sendMu.Unlock()
	defer wp.senders.Done()

	job.Status = StatusQueued
	select {
	case wp.jobQueue <- job:
		wp.logger.Debug("job enqueued", zap.String("job", job.ID), zap.String("video", job.VideoPath))
		return nil
	case <-wp.done:
		return ErrPoolClosed
	}
}

// Close stops accepting jobs and waits for queued ones to finish. Enqueue
// calls blocked on a full queue give up with ErrPoolClosed.
func (wp *WorkerPool) Close() {
	wp.closeOnce.Do(func() {
		wp.sendMu.Lock()
		wp.closed = true
		wp.sendMu.Unlock()

		close(wp.done)
		wp.senders.Wait()
		close(wp.jobQueue)
	})
	wp.wg.Wait()
}

// Stats returns how many jobs completed and failed so far.
func (wp *WorkerPool) Stats() (completed, failed int) {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	return wp.completed, wp.failed
}

// worker processes jobs from the queue
func (wp *WorkerPool) worker(ctx context.Context, id int) {
	defer wp.wg.Done()

	for job := range wp.jobQueue {
		if ctx.Err() != nil {
			wp.finish(job, ctx.Err())
			continue
		}

		// Panic recovery
		func() {
			defer func() {
				if r := recover(); r != nil {
					wp.logger.Error("worker panic",
						zap.Int("worker", id), zap.String("job", job.ID),
						zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
					wp.finish(job, fmt.Errorf("worker panic: %v", r))
				}
			}()

			job.Status = StatusProcessing
			wp.finish(job, wp.handler(ctx, job))
		}()
	}
}

func (wp *WorkerPool) finish(job *Job, err error) {
	job.FinishedAt = time.Now()

	wp.mu.Lock()
	defer wp.mu.Unlock()

	if err != nil {
		job.Status = StatusFailed
		job.Error = err
		wp.failed++
		wp.logger.Error("job failed", zap.String("video", job.VideoPath), zap.Error(err))
		return
	}
	job.Status = StatusCompleted
	wp.completed++
	wp.logger.Info("job completed",
		zap.String("video", job.VideoPath),
		zap.Strings("outputs", job.Outputs),
		zap.Duration("took", job.FinishedAt.Sub(job.CreatedAt)))
}
