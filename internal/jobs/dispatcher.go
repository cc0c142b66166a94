// Package jobs defines background tasks such as automated code reviews.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/sevigo/jules-warden/internal/core"
)

// dispatcher implements core.JobDispatcher and manages a pool of worker
// goroutines that process queued review jobs.
type dispatcher struct {
	reviewJob  core.Job             // Job implementation executed by each worker.
	jobQueue   chan *core.ReviewJob // Queue of pending review jobs.
	maxWorkers int                  // Number of concurrent workers.
	wg         sync.WaitGroup       // Tracks active workers for graceful shutdown.
	logger     *slog.Logger
}

// NewDispatcher initializes a dispatcher with a worker pool.
// If maxWorkers is 0 or negative, it defaults to 1, which keeps review runs
// for the same pull request strictly ordered.
func NewDispatcher(reviewJob core.Job, maxWorkers int, logger *slog.Logger) core.JobDispatcher {
	if maxWorkers <= 0 {
		maxWorkers = 1
	}
	d := &dispatcher{
		reviewJob:  reviewJob,
		maxWorkers: maxWorkers,
		jobQueue:   make(chan *core.ReviewJob, 100),
		logger:     logger,
	}
	d.startWorkers()
	return d
}

// startWorkers launches maxWorkers goroutines to process jobs from the queue.
func (d *dispatcher) startWorkers() {
	for i := range d.maxWorkers {
		d.wg.Add(1)
		go d.startWorker(i)
	}
}

// startWorker processes jobs from the queue until it's closed.
func (d *dispatcher) startWorker(workerID int) {
	defer d.wg.Done()
	d.logger.Info("starting review worker", "id", workerID)

	for job := range d.jobQueue {
		d.processJob(workerID, job)
	}

	d.logger.Info("shutting down review worker", "id", workerID)
}

// processJob logs and runs one review job.
func (d *dispatcher) processJob(workerID int, job *core.ReviewJob) {
	d.logger.Info("worker processing job",
		"worker_id", workerID,
		"target", job.Event.Target(),
		"delivery_id", job.DeliveryID,
	)

	err := d.reviewJob.Run(context.Background(), job)
	if err != nil {
		d.logger.Error("code review job failed",
			"target", job.Event.Target(),
			"delivery_id", job.DeliveryID,
			"error", err,
		)
	}
}

// Dispatch queues a review job for processing by a worker.
func (d *dispatcher) Dispatch(_ context.Context, job *core.ReviewJob) error {
	d.logger.Info("queuing code review job", "target", job.Event.Target(), "delivery_id", job.DeliveryID)

	select {
	case d.jobQueue <- job:
		return nil
	default:
		return fmt.Errorf("job queue is full, cannot accept new review job")
	}
}

// Stop gracefully shuts down the dispatcher, waiting for all workers to finish.
func (d *dispatcher) Stop() {
	d.logger.Info("stopping dispatcher and waiting for jobs to finish")
	close(d.jobQueue)
	d.wg.Wait()
	d.logger.Info("all review jobs have finished")
}
