package tasks

import (
	"context"

	"github.com/animarr/animarr/internal/pipeline"
	"github.com/animarr/animarr/internal/reconciler"
	"github.com/animarr/animarr/internal/resolver"
	"github.com/animarr/animarr/internal/scheduler"
)

const RecoveryTaskID = "recovery-combo"

// RegisterRecoveryTask registers the combined sync+reconcile+poll sweep on
// a 20-minute timer, a fast catch-all pass that re-resolves catalog state,
// reconciles the incoming tree and polls sources in one tick.
func RegisterRecoveryTask(sched *scheduler.Scheduler, r *resolver.Resolver, rec *reconciler.Service, pl *pipeline.Pipeline) error {
	fn := func(ctx context.Context) error {
		r.ResolveAll(ctx)
		if _, err := rec.Run(ctx); err != nil {
			return err
		}
		pl.RunAll(ctx, nil)
		return nil
	}

	return sched.RegisterTask(scheduler.TaskConfig{
		ID:          RecoveryTaskID,
		Name:        "Recovery Combo",
		Description: "Re-sync catalog state, reconcile the incoming tree, and poll sources in one pass",
		Cron:        "*/20 * * * *",
		Func:        fn,
	})
}
