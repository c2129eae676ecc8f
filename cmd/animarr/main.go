// Command animarr runs the anime acquisition daemon: it resolves catalog
// metadata, polls release sources, hands candidates to qBittorrent, and
// reconciles completed downloads into an organized library, all behind a
// small HTTP control surface.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/animarr/animarr/internal/api"
	"github.com/animarr/animarr/internal/catalog"
	"github.com/animarr/animarr/internal/config"
	"github.com/animarr/animarr/internal/database"
	"github.com/animarr/animarr/internal/jellyfin"
	"github.com/animarr/animarr/internal/jobs"
	"github.com/animarr/animarr/internal/logger"
	"github.com/animarr/animarr/internal/manifest"
	"github.com/animarr/animarr/internal/notify"
	"github.com/animarr/animarr/internal/organizer"
	"github.com/animarr/animarr/internal/pipeline"
	"github.com/animarr/animarr/internal/poster"
	"github.com/animarr/animarr/internal/probe"
	"github.com/animarr/animarr/internal/reconciler"
	"github.com/animarr/animarr/internal/resolver"
	"github.com/animarr/animarr/internal/scheduler"
	"github.com/animarr/animarr/internal/scheduler/tasks"
	"github.com/animarr/animarr/internal/sources"
	"github.com/animarr/animarr/internal/store"
	"github.com/animarr/animarr/internal/torrent"
)

func main() {
	configPath := flag.String("config", "", "path to config file (optional)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(&logger.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Path:       cfg.Logging.Path,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
	})
	defer log.Close()

	if err := run(cfg, log.Logger); err != nil {
		log.Error().Err(err).Msg("animarr exited with error")
		os.Exit(1)
	}
}

func run(cfg *config.Config, log zerolog.Logger) error {
	db, err := database.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	st := store.New(db.Conn(), log)

	catalogClient := catalog.NewClient(catalog.Config{
		BaseURL:        cfg.Catalog.BaseURL,
		TimeoutSeconds: cfg.Catalog.TimeoutSeconds,
	}, log)

	fetcher := sources.NewFetcher(cfg.Sources, log)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	torrentClient, err := torrent.NewClient(ctx, torrent.Config{
		Host:     cfg.Qbit.Host,
		Port:     cfg.Qbit.Port,
		Username: cfg.Qbit.Username,
		Password: cfg.Qbit.Password,
		Category: cfg.Qbit.Category,
	}, log)
	cancel()
	if err != nil {
		return fmt.Errorf("connect to qbittorrent: %w", err)
	}

	pl := pipeline.New(st, fetcher, torrentClient, cfg.Pipeline, cfg.Qbit.SaveRoot, cfg.Library.SubgroupList(), log)

	res := resolver.New(catalogClient, st, log)

	prober := probe.NewService(probe.Config{}, log)
	org := organizer.NewService(cfg.Library.LibraryRoot, log)
	manifestStore := manifest.NewStore(cfg.Library.HashManifestDir)
	reviewQueue := reconciler.NewReviewQueue(cfg.Library.ReviewQueuePath)
	notifier := notify.New(notify.Config{BotToken: cfg.Telegram.BotToken, ChatID: cfg.Telegram.ChatID}, log)

	rec := reconciler.NewService(st, prober, org, manifestStore, torrentClient, torrentClient, reviewQueue, notifier, reconciler.Config{
		IncomingRoot:             cfg.Library.IncomingRoot,
		MinFileSizeMB:            cfg.Reconciler.MinFileSizeMB,
		ReadinessAgeSec:          cfg.Reconciler.ReadinessAgeSec,
		RuntimeOutlierMinSamples: cfg.Reconciler.RuntimeOutlierMinSamples,
	}, log)

	maintainer := torrent.NewMaintainer(torrentClient, time.Duration(cfg.Reconciler.TorrentMaxAgeHours)*time.Hour, log)
	isCompleteShowPath := organizedPathChecker(cfg.Library.LibraryRoot)

	jellyfinClient := jellyfin.NewClient(jellyfin.Config{
		Host:   cfg.Jellyfin.Host,
		Port:   cfg.Jellyfin.Port,
		APIKey: cfg.Jellyfin.APIKey,
	}, log)

	posterHook := poster.New(catalogClient, org, log)

	jobRunner := jobs.New(log)

	sched, err := scheduler.New(log)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	sched.SetNotifier(notifier)

	if err := tasks.RegisterPollTask(sched, pl, st); err != nil {
		return fmt.Errorf("register poll task: %w", err)
	}
	if err := tasks.RegisterReconcileTask(sched, rec); err != nil {
		return fmt.Errorf("register reconcile task: %w", err)
	}
	if err := tasks.RegisterTorrentMaintenanceTask(sched, maintainer, isCompleteShowPath); err != nil {
		return fmt.Errorf("register torrent maintenance task: %w", err)
	}
	if err := tasks.RegisterCatalogSyncTask(sched, res); err != nil {
		return fmt.Errorf("register catalog sync task: %w", err)
	}
	if err := tasks.RegisterRecoveryTask(sched, res, rec, pl); err != nil {
		return fmt.Errorf("register recovery task: %w", err)
	}
	if err := tasks.RegisterPosterGenTask(sched, posterHook, st); err != nil {
		return fmt.Errorf("register poster generation task: %w", err)
	}
	if err := tasks.RegisterJellyfinHealTask(sched, jellyfinClient, st); err != nil {
		return fmt.Errorf("register jellyfin heal task: %w", err)
	}
	if err := tasks.RegisterDBMaintenanceTask(sched, db); err != nil {
		return fmt.Errorf("register db maintenance task: %w", err)
	}

	if err := sched.Start(); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer sched.Stop()

	srv := api.New(cfg, api.Deps{
		Store:              st,
		Pipeline:           pl,
		Reconciler:         rec,
		Resolver:           res,
		Maintainer:         maintainer,
		JobRunner:          jobRunner,
		Scheduler:          sched,
		IsCompleteShowPath: isCompleteShowPath,
	}, log)

	address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	serverErr := make(chan error, 1)
	go func() {
		if err := srv.Start(address); err != nil {
			serverErr <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		return fmt.Errorf("http server: %w", err)
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	return srv.Shutdown(shutdownCtx)
}

// organizedPathChecker reports whether savePath already sits under the
// organized library root, meaning the torrent that produced it is a
// reconciled, complete show and is safe for maintenance to remove.
func organizedPathChecker(libraryRoot string) torrent.CompleteShowChecker {
	root := filepath.Clean(libraryRoot)
	return func(savePath string) bool {
		rel, err := filepath.Rel(root, filepath.Clean(savePath))
		return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
	}
}
