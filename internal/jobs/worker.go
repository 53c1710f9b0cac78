package jobs

import (
	"context"
	"log/slog"
	"time"

	"dashfin/internal/database"
	"dashfin/internal/logger"
	"dashfin/internal/models"
)

const (
	DefaultPollInterval = 2 * time.Second
	jobTimeout          = 5 * time.Minute
)

// JobHandler is a function that processes a job. A handler that returns
// nil must have marked the job completed.
type JobHandler func(ctx context.Context, job *models.Job, db *database.DB) error

// Worker processes background jobs from the queue
type Worker struct {
	db           *database.DB
	handlers     map[string]JobHandler
	stop         chan struct{}
	done         chan struct{}
	logger       *slog.Logger
	pollInterval time.Duration
}

// NewWorker creates a new job worker polling every pollInterval
// (DefaultPollInterval when zero)
func NewWorker(db *database.DB, logger *slog.Logger, pollInterval time.Duration) *Worker {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	return &Worker{
		db:           db,
		handlers:     make(map[string]JobHandler),
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
		logger:       logger,
		pollInterval: pollInterval,
	}
}

// Register adds a handler for a job type
func (w *Worker) Register(jobType string, handler JobHandler) {
	w.handlers[jobType] = handler
}

// Start begins processing jobs in a background goroutine
func (w *Worker) Start() {
	go func() {
		defer close(w.done)
		w.logger.Info("job_worker_started", "poll_interval", w.pollInterval.String())

		for {
			if !w.RunOnce() {
				select {
				case <-w.stop:
					w.logger.Info("job_worker_stopping")
					return
				case <-time.After(w.pollInterval):
				}
				continue
			}

			select {
			case <-w.stop:
				w.logger.Info("job_worker_stopping")
				return
			default:
			}
		}
	}()
}

// Stop signals the worker to stop and waits for it to finish
func (w *Worker) Stop() {
	close(w.stop)
	<-w.done
	w.logger.Info("job_worker_stopped")
}

// RunOnce claims and processes a single pending job. It reports whether
// a job was found.
func (w *Worker) RunOnce() bool {
	job, err := w.db.ClaimNextJob(context.Background())
	if err != nil {
		w.logger.Error("job_claim_error", "error", err.Error())
		return false
	}
	if job == nil {
		return false
	}
	w.processJob(job)
	return true
}

func (w *Worker) processJob(job *models.Job) {
	l := w.logger.With("job_id", job.ID, "job_type", job.JobType, "attempt", job.Attempts)
	l.Info("job_processing_started")

	// Create context with timeout, carrying the job-scoped logger
	ctx, cancel := context.WithTimeout(logger.WithLogger(context.Background(), l), jobTimeout)
	defer cancel()

	handler, ok := w.handlers[job.JobType]
	if !ok {
		l.Error("job_unknown_type")
		if err := w.db.FailJob(ctx, job.ID, "unknown job type: "+job.JobType); err != nil {
			l.Error("job_fail_error", "error", err.Error())
		}
		return
	}

	// Run the handler
	err := handler(ctx, job, w.db)

	if err != nil {
		l.Error("job_processing_failed", "error", err.Error())

		if job.Attempts >= job.MaxAttempts {
			l.Warn("job_max_attempts_reached")
			err = w.db.FailJob(ctx, job.ID, err.Error())
		} else {
			l.Info("job_retrying")
			err = w.db.RetryJob(ctx, job.ID)
		}
		if err != nil {
			l.Error("job_status_update_error", "error", err.Error())
		}
		return
	}

	l.Info("job_processing_completed")
}
