package scheduler

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type fakeNotifier struct {
	messages []string
}

func (f *fakeNotifier) NotifyJobFailed(ctx context.Context, jobKind string, jobErr error) error {
	f.messages = append(f.messages, fmt.Sprintf("%s: %v", jobKind, jobErr))
	return nil
}

func TestExecuteTask_NotifiesAfterConsecutiveFailures(t *testing.T) {
	s, err := New(zerolog.Nop())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	notifier := &fakeNotifier{}
	s.SetNotifier(notifier)

	failing := func(ctx context.Context) error { return errors.New("source unreachable") }
	if err := s.RegisterTask(TaskConfig{ID: "t1", Name: "Test Task", Cron: "0 0 1 1 *", Func: failing}); err != nil {
		t.Fatalf("RegisterTask() error = %v", err)
	}

	for i := 0; i < consecutiveFailuresBeforeAlert; i++ {
		s.executeTask("t1")
	}

	if len(notifier.messages) != 1 {
		t.Fatalf("expected exactly 1 notification after %d consecutive failures, got %d: %v",
			consecutiveFailuresBeforeAlert, len(notifier.messages), notifier.messages)
	}

	// A subsequent success resets the streak, so failing again should not
	// immediately re-notify.
	s.tasks["t1"].config.Func = func(ctx context.Context) error { return nil }
	s.executeTask("t1")
	s.tasks["t1"].config.Func = failing
	s.executeTask("t1")

	if len(notifier.messages) != 1 {
		t.Fatalf("expected no additional notification after streak reset, got %d", len(notifier.messages))
	}
}

func TestRegisterTask_DuplicateIDRejected(t *testing.T) {
	s, err := New(zerolog.Nop())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	cfg := TaskConfig{ID: "dup", Name: "Dup", Cron: "0 0 1 1 *", Func: func(context.Context) error { return nil }}
	if err := s.RegisterTask(cfg); err != nil {
		t.Fatalf("first RegisterTask() error = %v", err)
	}
	if err := s.RegisterTask(cfg); err == nil {
		t.Fatal("expected error registering duplicate task ID")
	}
}

func TestGetTask_NotFound(t *testing.T) {
	s, err := New(zerolog.Nop())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, err := s.GetTask("missing"); err == nil {
		t.Fatal("expected error for unknown task id")
	}
}

func TestRunNow_RejectsWhileRunning(t *testing.T) {
	s, err := New(zerolog.Nop())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	started := make(chan struct{})
	release := make(chan struct{})
	cfg := TaskConfig{ID: "slow", Name: "Slow", Cron: "0 0 1 1 *", Func: func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	}}
	if err := s.RegisterTask(cfg); err != nil {
		t.Fatalf("RegisterTask() error = %v", err)
	}

	if err := s.RunNow("slow"); err != nil {
		t.Fatalf("RunNow() error = %v", err)
	}
	<-started

	if err := s.RunNow("slow"); err == nil {
		t.Fatal("expected error running an already-running task")
	}
	close(release)
	time.Sleep(10 * time.Millisecond)
}
