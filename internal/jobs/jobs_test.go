package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func waitForTerminal(t *testing.T, r *Runner, id string) Job {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		job, err := r.Get(id)
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if job.Status != StatusQueued && job.Status != StatusRunning {
			return job
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("job never reached a terminal state")
	return Job{}
}

func TestSubmit_SucceedsAndReportsDone(t *testing.T) {
	r := New(zerolog.Nop())
	job := r.Submit("test", nil, func(ctx context.Context) (any, error) {
		return "ok", nil
	}, 5)

	got := waitForTerminal(t, r, job.ID)
	if got.Status != StatusDone {
		t.Fatalf("Status = %q, want %q", got.Status, StatusDone)
	}
	if got.Result != "ok" {
		t.Fatalf("Result = %v, want %q", got.Result, "ok")
	}
}

func TestSubmit_FuncErrorMarksFailed(t *testing.T) {
	r := New(zerolog.Nop())
	wantErr := errors.New("boom")
	job := r.Submit("test", nil, func(ctx context.Context) (any, error) {
		return nil, wantErr
	}, 5)

	got := waitForTerminal(t, r, job.ID)
	if got.Status != StatusFailed || got.Err != "boom" {
		t.Fatalf("unexpected job: %+v", got)
	}
}

func TestGet_WatchdogForceFailsStuckJob(t *testing.T) {
	r := New(zerolog.Nop())
	block := make(chan struct{})
	defer close(block)

	job := r.Submit("test", nil, func(ctx context.Context) (any, error) {
		<-block
		return nil, nil
	}, 0)

	time.Sleep(20 * time.Millisecond)

	var got Job
	deadline := time.Now().Add(7 * time.Second)
	for time.Now().Before(deadline) {
		var err error
		got, err = r.Get(job.ID)
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if got.Status == StatusFailed {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	if got.Status != StatusFailed || got.Err != "job watchdog timeout" {
		t.Fatalf("unexpected job: %+v", got)
	}
}

func TestCancel_QueuedJobCancelledImmediately(t *testing.T) {
	r := New(zerolog.Nop())
	block := make(chan struct{})
	defer close(block)

	job := r.Submit("test", nil, func(ctx context.Context) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}, 5)

	if err := r.Cancel(job.ID); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}

	got, err := r.Get(job.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Status != StatusCancelled {
		t.Fatalf("Status = %q, want %q", got.Status, StatusCancelled)
	}
}

func TestGet_UnknownJobErrors(t *testing.T) {
	r := New(zerolog.Nop())
	if _, err := r.Get("nope"); err == nil {
		t.Fatal("expected error for unknown job id")
	}
}

func TestList_ReturnsAllJobs(t *testing.T) {
	r := New(zerolog.Nop())
	r.Submit("a", nil, func(ctx context.Context) (any, error) { return nil, nil }, 5)
	r.Submit("b", nil, func(ctx context.Context) (any, error) { return nil, nil }, 5)

	if got := len(r.List()); got != 2 {
		t.Fatalf("List() len = %d, want 2", got)
	}
}
