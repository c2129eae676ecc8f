package tasks

import (
	"context"

	"github.com/animarr/animarr/internal/poster"
	"github.com/animarr/animarr/internal/scheduler"
)

const PosterGenTaskID = "poster-generation"

// RegisterPosterGenTask registers the poster-generation hook on a 2-hour
// timer. The cron task is its only trigger; no job-runner or HTTP entry
// point calls it.
func RegisterPosterGenTask(sched *scheduler.Scheduler, hook *poster.Hook, st ShowLister) error {
	fn := func(ctx context.Context) error {
		shows, err := st.ListShows(ctx)
		if err != nil {
			return err
		}
		posterShows := make([]poster.Show, 0, len(shows))
		for _, s := range shows {
			posterShows = append(posterShows, poster.Show{TitleCanonical: s.TitleCanonical, CatalogID: s.CatalogID})
		}
		hook.Run(ctx, posterShows)
		return nil
	}

	return sched.RegisterTask(scheduler.TaskConfig{
		ID:          PosterGenTaskID,
		Name:        "Poster Generation",
		Description: "Fetch and cache catalog cover art for every tracked show",
		Cron:        "0 */2 * * *",
		Func:        fn,
	})
}
