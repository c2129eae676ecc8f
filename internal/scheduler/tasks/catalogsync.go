package tasks

import (
	"context"

	"github.com/animarr/animarr/internal/resolver"
	"github.com/animarr/animarr/internal/scheduler"
)

const CatalogSyncTaskID = "catalog-sync"

// RegisterCatalogSyncTask registers the catalog metadata resync on a
// 6-hour timer.
func RegisterCatalogSyncTask(sched *scheduler.Scheduler, r *resolver.Resolver) error {
	fn := func(ctx context.Context) error {
		r.ResolveAll(ctx)
		return nil
	}

	return sched.RegisterTask(scheduler.TaskConfig{
		ID:          CatalogSyncTaskID,
		Name:        "Catalog Metadata Sync",
		Description: "Re-resolve every tracked show against the catalog and refresh aired/total counts",
		Cron:        "0 */6 * * *",
		Func:        fn,
	})
}
