package tasks

import (
	"context"
	"time"

	"github.com/animarr/animarr/internal/pipeline"
	"github.com/animarr/animarr/internal/scheduler"
	"github.com/animarr/animarr/internal/store"
)

const PollTaskID = "show-poll"

// ShowLister is the subset of *store.Store the poll task needs to stagger
// per-show pipeline runs.
type ShowLister interface {
	ListShows(ctx context.Context) ([]*store.Show, error)
}

// RegisterPollTask registers the per-show release-acquisition poll on a
// shared 15-minute timer. Each tick walks every show sequentially, pausing
// 20s between shows to spread source load across the tick instead of
// bursting every show's fetch at once.
func RegisterPollTask(sched *scheduler.Scheduler, pl *pipeline.Pipeline, st ShowLister) error {
	fn := func(ctx context.Context) error {
		shows, err := st.ListShows(ctx)
		if err != nil {
			return err
		}
		for i, show := range shows {
			if i > 0 {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(20 * time.Second):
				}
			}
			pl.RunAll(ctx, []int64{show.ID})
		}
		return nil
	}

	return sched.RegisterTask(scheduler.TaskConfig{
		ID:          PollTaskID,
		Name:        "Show Poll",
		Description: "Fetch and enqueue matching releases for every tracked show",
		Cron:        "*/15 * * * *",
		Func:        fn,
	})
}
