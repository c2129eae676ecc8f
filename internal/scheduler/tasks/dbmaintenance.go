package tasks

import (
	"context"

	"github.com/animarr/animarr/internal/database"
	"github.com/animarr/animarr/internal/scheduler"
)

const DBMaintenanceTaskID = "db-maintenance"

// RegisterDBMaintenanceTask registers a nightly WAL checkpoint plus
// integrity check against the library database. It runs well off the hour
// so it never overlaps the show poll's own tick.
func RegisterDBMaintenanceTask(sched *scheduler.Scheduler, db *database.DB) error {
	fn := func(ctx context.Context) error {
		if err := db.Checkpoint(ctx); err != nil {
			return err
		}
		return db.IntegrityCheck(ctx)
	}

	return sched.RegisterTask(scheduler.TaskConfig{
		ID:          DBMaintenanceTaskID,
		Name:        "Database Maintenance",
		Description: "Checkpoint the WAL file and verify database integrity",
		Cron:        "17 4 * * *",
		Func:        fn,
	})
}
