// Package jobs implements the Job Coordinator: submission,
// deduplication, on-disk cache probing, cancellation, and subprocess
// supervision of the chatvault-worker binary.
package jobs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/chatvault/chatvault/internal/jobevents"
	"github.com/chatvault/chatvault/internal/store"
	"github.com/chatvault/chatvault/internal/types"
)

// ErrInvalidPattern is returned by Submit when pattern is not in the
// fixed enumeration for the requested job type.
var ErrInvalidPattern = errors.New("jobs: pattern not valid for job type")

// Coordinator implements the submit/dedupe/cache/cancel state machine
// described in spec.md §4.7.
type Coordinator struct {
	store        *store.Store
	bus          *jobevents.Bus
	logger       *slog.Logger
	workerBinary string
	pollInterval time.Duration
	abandonedAge time.Duration
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithWorkerBinary overrides the path to the chatvault-worker executable.
// Defaults to "chatvault-worker" resolved via PATH.
func WithWorkerBinary(path string) Option {
	return func(c *Coordinator) { c.workerBinary = path }
}

// WithPollInterval overrides how often the Coordinator polls a running
// job's row to mirror its progress onto the event bus. Defaults to
// one second, the ≤1Hz ceiling from spec.md §5.
func WithPollInterval(d time.Duration) Option {
	return func(c *Coordinator) { c.pollInterval = d }
}

// WithAbandonedAge overrides how long a running job may go without a
// heartbeat before ReapAbandoned considers it dead.
func WithAbandonedAge(d time.Duration) Option {
	return func(c *Coordinator) { c.abandonedAge = d }
}

// New builds a Coordinator over s, publishing state transitions to bus.
func New(s *store.Store, bus *jobevents.Bus, logger *slog.Logger, opts ...Option) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Coordinator{
		store:        s,
		bus:          bus,
		logger:       logger,
		workerBinary: "chatvault-worker",
		pollInterval: 1 * time.Second,
		abandonedAge: 10 * time.Minute,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Submit implements spec.md §4.7 Submission: validate the pattern,
// honor a cache hit, honor an in-flight dedup, or create a new pending
// job and spawn its Worker. The returned bool reports whether an
// existing job was returned (cache hit or dedup) rather than a new one
// created.
func (c *Coordinator) Submit(ctx context.Context, jobType types.JobType, targetID, targetName string, pattern types.Pattern) (types.Job, bool, error) {
	if !types.ValidPattern(jobType, pattern) {
		return types.Job{}, false, ErrInvalidPattern
	}

	if job, ok, err := c.cacheHit(ctx, targetID, pattern); err != nil {
		return types.Job{}, false, err
	} else if ok {
		return job, true, nil
	}

	if job, ok, err := c.store.FindActiveJob(ctx, targetID, pattern); err != nil {
		return types.Job{}, false, err
	} else if ok {
		return job, true, nil
	}

	job := types.Job{
		ID:         uuid.NewString(),
		Type:       jobType,
		TargetID:   targetID,
		TargetName: targetName,
		Pattern:    pattern,
		Status:     types.JobPending,
		CreatedAt:  time.Now(),
	}
	if err := c.store.CreateJob(ctx, job); err != nil {
		if errors.Is(err, store.ErrConflict) {
			if existing, ok, ferr := c.store.FindActiveJob(ctx, targetID, pattern); ferr == nil && ok {
				return existing, true, nil
			}
		}
		return types.Job{}, false, err
	}

	c.bus.Publish(jobevents.Event{Type: jobevents.EventCreated, JobID: job.ID, Status: string(job.Status)})
	c.spawn(job)
	return job, false, nil
}

// cacheHit implements spec.md §4.7 Cache: a done job for (targetID,
// pattern) is honored only while its result file still exists on disk;
// a missing file degrades it to a cache miss so Submit spawns a fresh
// job rather than handing back a dangling path.
func (c *Coordinator) cacheHit(ctx context.Context, targetID string, pattern types.Pattern) (types.Job, bool, error) {
	jobs, err := c.store.ListJobs(ctx, targetID)
	if err != nil {
		return types.Job{}, false, err
	}
	for _, job := range jobs {
		if job.Pattern != pattern || job.Status != types.JobDone {
			continue
		}
		if job.ResultPath == "" {
			continue
		}
		if _, err := os.Stat(job.ResultPath); err != nil {
			continue
		}
		return job, true, nil
	}
	return types.Job{}, false, nil
}

// Check is the read-only cache/dedup probe behind GET
// /api/jobs/check?target_id&pattern — it reports an existing job
// without creating one.
func (c *Coordinator) Check(ctx context.Context, targetID string, pattern types.Pattern) (types.Job, bool, error) {
	if job, ok, err := c.cacheHit(ctx, targetID, pattern); err != nil {
		return types.Job{}, false, err
	} else if ok {
		return job, true, nil
	}
	return c.store.FindActiveJob(ctx, targetID, pattern)
}

// Cancel marks a pending or running job failed with a cancellation
// message and publishes the transition.
func (c *Coordinator) Cancel(ctx context.Context, id string) error {
	if err := c.store.CancelJob(ctx, id); err != nil {
		return err
	}
	c.bus.Publish(jobevents.Event{Type: jobevents.EventFailed, JobID: id, Status: string(types.JobFailed), Error: "cancelled"})
	return nil
}

// spawn launches the worker subprocess for job and starts a background
// poller that mirrors the job row's progress onto the event bus until
// it reaches a terminal status. Both run detached from ctx: a request's
// context ends when its HTTP response is written, long before a job
// finishes.
func (c *Coordinator) spawn(job types.Job) {
	go c.runWorker(job)
	go c.watch(job.ID)
}

// runWorker execs the chatvault-worker binary with the job ID,
// capturing stdout/stderr the way the teacher's TmuxBackend wraps
// exec.CommandContext. The Coordinator does not impose a runtime bound
// here: spec.md §4.7 leaves bounding a Worker's own runtime entirely to
// the Worker, so the only context in play is context.Background() —
// no deadline, no Coordinator-side kill. The worker drives the job's
// status transitions via its own store handle. A failed exec is retried
// up to two more times with exponential backoff; if the last attempt
// also fails, the Coordinator itself marks the job failed with the exec
// error and publishes the failed event.
func (c *Coordinator) runWorker(job types.Job) {
	ctx := context.Background()

	operation := func() error {
		cmd := exec.CommandContext(ctx, c.workerBinary, "--job-id", job.ID)
		var stderr bytes.Buffer
		cmd.Stderr = &stderr
		if err := cmd.Run(); err != nil {
			return fmt.Errorf("worker exec: %w: %s", err, stderr.String())
		}
		return nil
	}

	bo := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 2)
	if err := backoff.Retry(operation, backoff.WithContext(bo, ctx)); err != nil {
		c.logger.Error("worker process failed", "job_id", job.ID, "error", err)
		_ = c.store.UpdateJobStatus(context.Background(), job.ID, types.JobFailed, err.Error(), "")
		c.bus.Publish(jobevents.Event{Type: jobevents.EventFailed, JobID: job.ID, Status: string(types.JobFailed), Error: err.Error()})
	}
}

// watch polls the job row at pollInterval and republishes any change in
// status or progress onto the bus, since the Worker that actually
// mutates the row runs in a different process and cannot reach this
// process's in-memory Bus directly.
func (c *Coordinator) watch(jobID string) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	var lastStatus types.JobStatus
	var lastProgress string

	for range ticker.C {
		job, err := c.store.GetJob(context.Background(), jobID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return
			}
			c.logger.Warn("watch: get job failed", "job_id", jobID, "error", err)
			continue
		}

		progressKey := ""
		if job.Progress != nil {
			progressKey = fmt.Sprintf("%d/%d %s", job.Progress.Current, job.Progress.Total, job.Progress.Message)
		}

		if job.Status != lastStatus || progressKey != lastProgress {
			lastStatus = job.Status
			lastProgress = progressKey

			ev := jobevents.Event{JobID: job.ID, Status: string(job.Status)}
			switch job.Status {
			case types.JobDone:
				ev.Type = jobevents.EventDone
			case types.JobFailed:
				ev.Type = jobevents.EventFailed
				ev.Error = job.Error
			default:
				ev.Type = jobevents.EventProgress
			}
			if job.Progress != nil {
				ev.Current = job.Progress.Current
				ev.Total = job.Progress.Total
				ev.Message = job.Progress.Message
			}
			c.bus.Publish(ev)
		}

		if job.Status.Terminal() {
			return
		}
	}
}

// ReapAbandoned finds running jobs whose worker stopped heartbeating
// and fails them, per spec.md §9's note on a coordinator restart
// needing to detect a dead Worker.
func (c *Coordinator) ReapAbandoned(ctx context.Context) (int, error) {
	stale, err := c.store.ListAbandonedJobs(ctx, c.abandonedAge)
	if err != nil {
		return 0, err
	}
	for _, job := range stale {
		if err := c.store.UpdateJobStatus(ctx, job.ID, types.JobFailed, "abandoned", ""); err != nil {
			return 0, err
		}
		c.bus.Publish(jobevents.Event{Type: jobevents.EventFailed, JobID: job.ID, Status: string(types.JobFailed), Error: "abandoned"})
	}
	return len(stale), nil
}
