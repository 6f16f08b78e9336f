package downloader

import (
	"context"
	"fmt"
	"sync"
	"time"

	"amosync/pkg/logger"
)

// Job is a single camera to process
type Job struct {
	CameraID int
	// Seq is the job's position in submission order
	Seq int
}

// Result is the outcome of one job
type Result[T any] struct {
	Job      Job
	Value    T
	Error    error
	Duration time.Duration
}

// Handler processes one job. It receives the pool's context.
type Handler[T any] func(ctx context.Context, job Job) (T, error)

// WorkerPool runs jobs on a fixed number of workers. A worker never starts
// a job once the pool's context is done, but every job it starts reports a result.
type WorkerPool[T any] struct {
	numWorkers  int
	jobQueue    chan Job
	resultQueue chan Result[T]
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	handler     Handler[T]
	logger      logger.Logger
}

// NewWorkerPool creates a pool bound to ctx
func NewWorkerPool[T any](ctx context.Context, numWorkers int, handler Handler[T], log logger.Logger) (*WorkerPool[T], error) {
	if numWorkers < 1 {
		return nil, fmt.Errorf("workers must be >= 1, got %d", numWorkers)
	}

	ctx, cancel := context.WithCancel(ctx)

	return &WorkerPool[T]{
		numWorkers:  numWorkers,
		jobQueue:    make(chan Job, numWorkers*2),
		resultQueue: make(chan Result[T], numWorkers),
		ctx:         ctx,
		cancel:      cancel,
		handler:     handler,
		logger:      logger.OrDefault(log),
	}, nil
}

// Start launches the workers
func (wp *WorkerPool[T]) Start() {
	wp.logger.InfoWithFields("Starting worker pool", map[string]interface{}{
		"num_workers": wp.numWorkers,
	})

	for i := 0; i < wp.numWorkers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

// Stop closes the queue, waits for running jobs and closes Results.
// It must be called once, after the last Submit.
func (wp *WorkerPool[T]) Stop() {
	close(wp.jobQueue)
	wp.wg.Wait()
	close(wp.resultQueue)
	wp.cancel()

	wp.logger.Debug("Worker pool stopped")
}

// Submit queues a job, failing once the pool's context is done
func (wp *WorkerPool[T]) Submit(job Job) error {
	if err := wp.ctx.Err(); err != nil {
		return fmt.Errorf("worker pool is shutting down: %w", err)
	}

	select {
	case wp.jobQueue <- job:
		wp.logger.DebugWithFields("Job submitted to queue", map[string]interface{}{
			"camera_id": job.CameraID,
		})
		return nil
	case <-wp.ctx.Done():
		return fmt.Errorf("worker pool is shutting down: %w", wp.ctx.Err())
	}
}

// Results must be drained until closed
func (wp *WorkerPool[T]) Results() <-chan Result[T] {
	return wp.resultQueue
}

func (wp *WorkerPool[T]) worker(id int) {
	defer wp.wg.Done()

	for job := range wp.jobQueue {
		if wp.ctx.Err() != nil {
			// leave the rest of the queue unstarted
			continue
		}

		start := time.Now()
		value, err := wp.handler(wp.ctx, job)
		result := Result[T]{
			Job:      job,
			Value:    value,
			Error:    err,
			Duration: time.Since(start),
		}

		wp.logger.DebugWithFields("Worker finished job", map[string]interface{}{
			"worker_id": id,
			"camera_id": job.CameraID,
			"duration":  result.Duration,
		})

		wp.resultQueue <- result
	}
}
