package tasks

import (
	"context"

	"github.com/animarr/animarr/internal/reconciler"
	"github.com/animarr/animarr/internal/scheduler"
)

const ReconcileTaskID = "library-reconcile"

// RegisterReconcileTask registers the incoming-directory reconciliation
// sweep on a 10-minute timer.
func RegisterReconcileTask(sched *scheduler.Scheduler, svc *reconciler.Service) error {
	fn := func(ctx context.Context) error {
		_, err := svc.Run(ctx)
		return err
	}

	return sched.RegisterTask(scheduler.TaskConfig{
		ID:          ReconcileTaskID,
		Name:        "Library Reconcile",
		Description: "Classify and route newly-downloaded files in the incoming tree",
		Cron:        "*/10 * * * *",
		Func:        fn,
	})
}
