package tasks

import (
	"context"

	"github.com/animarr/animarr/internal/scheduler"
	"github.com/animarr/animarr/internal/torrent"
)

const TorrentMaintenanceTaskID = "torrent-maintenance"

// CompleteShowPathFunc answers whether a save path belongs to a show whose
// episodes are all downloaded.
type CompleteShowPathFunc = torrent.CompleteShowChecker

// RegisterTorrentMaintenanceTask registers the periodic torrent cleanup
// sweep on a 30-minute timer.
func RegisterTorrentMaintenanceTask(sched *scheduler.Scheduler, m *torrent.Maintainer, isCompleteShowPath CompleteShowPathFunc) error {
	fn := func(ctx context.Context) error {
		_, err := m.Sweep(ctx, isCompleteShowPath)
		return err
	}

	return sched.RegisterTask(scheduler.TaskConfig{
		ID:          TorrentMaintenanceTaskID,
		Name:        "Torrent Maintenance",
		Description: "Remove completed, stalled and orphaned torrents per the cleanup rules",
		Cron:        "*/30 * * * *",
		Func:        fn,
	})
}
