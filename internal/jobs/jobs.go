// Package jobs is an in-process registry of background one-shot jobs,
// structured after scheduler.Scheduler's tasks map but generalized from
// recurring named tasks to one-shot cancellable jobs with results.
package jobs

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Status is a job's lifecycle state.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusDone      Status = "done"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Func is the work a job performs. It must observe ctx cancellation to
// cooperate with Cancel and the timeout watchdog.
type Func func(ctx context.Context) (any, error)

// Job is a snapshot of one submitted unit of work.
type Job struct {
	ID         string
	Kind       string
	Payload    any
	Status     Status
	Result     any
	Err        string
	TimeoutSec int
	CreatedAt  time.Time
	StartedAt  *time.Time
	EndedAt    *time.Time
}

type entry struct {
	job       Job
	cancel    context.CancelFunc
	cancelled bool
}

// Runner tracks submitted jobs and enforces a watchdog on stuck workers.
type Runner struct {
	mu     sync.Mutex
	jobs   map[string]*entry
	logger zerolog.Logger
}

// New builds a job Runner.
func New(logger zerolog.Logger) *Runner {
	return &Runner{
		jobs:   make(map[string]*entry),
		logger: logger.With().Str("component", "jobs").Logger(),
	}
}

// Submit launches fn on its own goroutine under a timeout derived from
// timeoutSec, and returns the job's initial queued snapshot.
func (r *Runner) Submit(kind string, payload any, fn Func, timeoutSec int) Job {
	id := uuid.NewString()
	now := time.Now().UTC()

	runCtx, cancel := context.WithTimeout(context.Background(), time.Duration(timeoutSec)*time.Second)

	e := &entry{
		job: Job{
			ID: id, Kind: kind, Payload: payload,
			Status: StatusQueued, TimeoutSec: timeoutSec, CreatedAt: now,
		},
		cancel: cancel,
	}

	r.mu.Lock()
	r.jobs[id] = e
	r.mu.Unlock()

	go r.run(runCtx, id, fn)

	return e.job
}

func (r *Runner) run(ctx context.Context, id string, fn Func) {
	r.mu.Lock()
	e, ok := r.jobs[id]
	if !ok {
		r.mu.Unlock()
		return
	}
	if e.cancelled {
		r.mu.Unlock()
		return
	}
	started := time.Now().UTC()
	e.job.Status = StatusRunning
	e.job.StartedAt = &started
	r.mu.Unlock()

	result, err := fn(ctx)
	ended := time.Now().UTC()

	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok = r.jobs[id]
	if !ok {
		return
	}
	if e.job.Status == StatusCancelled {
		return
	}
	e.job.EndedAt = &ended
	switch {
	case err == context.DeadlineExceeded:
		e.job.Status = StatusFailed
		e.job.Err = "job timeout"
	case err != nil:
		e.job.Status = StatusFailed
		e.job.Err = err.Error()
	default:
		e.job.Status = StatusDone
		e.job.Result = result
	}
}

// Get returns the job's current snapshot, applying the watchdog: a job
// still running past startedAt+timeoutSec+5s is force-failed so callers
// always observe a terminal state even if the worker is wedged.
func (r *Runner) Get(id string) (Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.jobs[id]
	if !ok {
		return Job{}, fmt.Errorf("job %q not found", id)
	}

	if e.job.Status == StatusRunning && e.job.StartedAt != nil {
		deadline := e.job.StartedAt.Add(time.Duration(e.job.TimeoutSec)*time.Second + 5*time.Second)
		if time.Now().UTC().After(deadline) {
			ended := time.Now().UTC()
			e.job.Status = StatusFailed
			e.job.Err = "job watchdog timeout"
			e.job.EndedAt = &ended
			e.cancel()
			r.logger.Warn().Str("id", id).Str("kind", e.job.Kind).Msg("job watchdog fired")
		}
	}

	return e.job, nil
}

// Cancel flips a job's cancelled flag. A queued job is cancelled
// immediately; a running job's context is cancelled but termination is
// best-effort, cooperative with the worker.
func (r *Runner) Cancel(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.jobs[id]
	if !ok {
		return fmt.Errorf("job %q not found", id)
	}

	e.cancelled = true
	e.cancel()

	if e.job.Status == StatusQueued || e.job.Status == StatusRunning {
		e.job.Status = StatusCancelled
		ended := time.Now().UTC()
		e.job.EndedAt = &ended
	}

	return nil
}

// List returns a snapshot of every tracked job, most recent first.
func (r *Runner) List() []Job {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Job, 0, len(r.jobs))
	for _, e := range r.jobs {
		out = append(out, e.job)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}
