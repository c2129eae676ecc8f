// Package api exposes the daemon's HTTP surface: show tracking endpoints
// and job-trigger endpoints wrapping the pipeline, reconciler, resolver
// and torrent maintenance components under a shared echo server.
package api

import (
	"context"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	apimw "github.com/animarr/animarr/internal/api/middleware"
	"github.com/animarr/animarr/internal/config"
	"github.com/animarr/animarr/internal/jobs"
	"github.com/animarr/animarr/internal/pipeline"
	"github.com/animarr/animarr/internal/reconciler"
	"github.com/animarr/animarr/internal/resolver"
	"github.com/animarr/animarr/internal/scheduler"
	"github.com/animarr/animarr/internal/store"
	"github.com/animarr/animarr/internal/torrent"
)

// Server wires the daemon's services behind an echo HTTP server.
type Server struct {
	echo   *echo.Echo
	logger zerolog.Logger
	cfg    *config.Config

	store      *store.Store
	pipeline   *pipeline.Pipeline
	reconciler *reconciler.Service
	resolver   *resolver.Resolver
	maintainer *torrent.Maintainer
	jobRunner  *jobs.Runner
	scheduler  *scheduler.Scheduler
	isComplete torrent.CompleteShowChecker
}

// Deps bundles the services the API dispatches job requests to.
type Deps struct {
	Store              *store.Store
	Pipeline           *pipeline.Pipeline
	Reconciler         *reconciler.Service
	Resolver           *resolver.Resolver
	Maintainer         *torrent.Maintainer
	JobRunner          *jobs.Runner
	Scheduler          *scheduler.Scheduler
	IsCompleteShowPath torrent.CompleteShowChecker
}

// New builds a Server with its middleware and routes installed.
func New(cfg *config.Config, deps Deps, logger zerolog.Logger) *Server {
	s := &Server{
		echo:       echo.New(),
		logger:     logger.With().Str("component", "api").Logger(),
		cfg:        cfg,
		store:      deps.Store,
		pipeline:   deps.Pipeline,
		reconciler: deps.Reconciler,
		resolver:   deps.Resolver,
		maintainer: deps.Maintainer,
		jobRunner:  deps.JobRunner,
		scheduler:  deps.Scheduler,
		isComplete: deps.IsCompleteShowPath,
	}
	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.echo.Use(middleware.Recover())
	s.echo.Use(middleware.RequestID())
	s.echo.Use(apimw.SecurityHeaders())
	s.echo.Use(middleware.BodyLimit("2M"))
	s.echo.Use(apimw.SameOriginCORS())
	s.echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogMethod:   true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			ev := s.logger.Info()
			if v.Error != nil {
				ev = s.logger.Error().Err(v.Error)
			}
			ev.Str("method", v.Method).Str("uri", v.URI).Int("status", v.Status).
				Dur("latency", v.Latency).Msg("request")
			return nil
		},
	}))
	s.echo.Use(middleware.GzipWithConfig(middleware.GzipConfig{Level: 5}))
}

// Start begins serving HTTP on address, blocking until the server stops.
func (s *Server) Start(address string) error {
	s.logger.Info().Str("address", address).Msg("starting HTTP server")
	return s.echo.Start(address)
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("shutting down HTTP server")
	return s.echo.Shutdown(ctx)
}

// Echo returns the underlying echo instance, for tests.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}
