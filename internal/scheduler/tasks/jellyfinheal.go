package tasks

import (
	"context"

	"github.com/animarr/animarr/internal/jellyfin"
	"github.com/animarr/animarr/internal/scheduler"
	"github.com/animarr/animarr/internal/store"
)

const JellyfinHealTaskID = "jellyfin-heal"

// RegisterJellyfinHealTask registers the Jellyfin library healing sweep on
// an hourly timer: collect per-show episode stats, then trigger a refresh
// for any series whose season index looks out of order.
func RegisterJellyfinHealTask(sched *scheduler.Scheduler, client *jellyfin.Client, st ShowLister) error {
	fn := func(ctx context.Context) error {
		if client == nil || !client.IsConfigured() {
			return nil
		}
		shows, err := st.ListShows(ctx)
		if err != nil {
			return err
		}

		tracked := make([]jellyfin.TrackedShow, 0, len(shows))
		seasonByShowID := make(map[int64]int, len(shows))
		for _, s := range shows {
			tracked = append(tracked, jellyfin.TrackedShow{ID: s.ID, TitleCanonical: s.TitleCanonical})
			seasonByShowID[s.ID] = seasonFromShow(s)
		}

		jellyfin.CollectStatus(ctx, client, tracked)
		jellyfin.HealSeasonOrder(ctx, client, tracked, seasonByShowID)
		return nil
	}

	return sched.RegisterTask(scheduler.TaskConfig{
		ID:          JellyfinHealTaskID,
		Name:        "Jellyfin Library Heal",
		Description: "Report episode stats and repair out-of-order season indices in Jellyfin",
		Cron:        "0 * * * *",
		Func:        fn,
	})
}

func seasonFromShow(s *store.Show) int {
	return jellyfin.InferSeasonNumber(s.TitleCanonical)
}
