package core

import (
	"context"
	"time"
)

// ReviewJob is one queued unit of work. It is created by the webhook handler,
// consumed exactly once by a dispatcher worker, and discarded afterwards; jobs
// do not survive a process restart.
type ReviewJob struct {
	Event      *EventContext
	DeliveryID string
	EnqueuedAt time.Time
}

// JobDispatcher defines the contract for a system that can accept and queue
// background jobs for asynchronous processing. This interface decouples the
// event source (e.g., a webhook handler) from the job execution mechanism.
type JobDispatcher interface {
	// Dispatch accepts a job and queues it for processing. It returns an
	// error if the job cannot be queued, for example when the queue is full,
	// providing a mechanism for backpressure.
	Dispatch(ctx context.Context, job *ReviewJob) error

	// Stop shuts the dispatcher down, waiting for in-flight jobs to finish.
	Stop()
}

// Job represents a single, executable unit of work processed by the
// dispatcher. Each job is triggered by a webhook event and runs the review
// pipeline for it.
type Job interface {
	// Run executes the job's logic. It returns an error only for failures
	// that should mark the job as failed; degraded outcomes (review
	// unavailable, partial publish) are reported on GitHub instead.
	Run(ctx context.Context, job *ReviewJob) error
}
