package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/animarr/animarr/internal/store"
)

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{"ok": true})
}

type upsertShowRequest struct {
	TitleInput         string   `json:"title_input"`
	TitleCanonical     string   `json:"title_canonical"`
	Aliases            []string `json:"aliases"`
	PreferredSubgroups []string `json:"preferred_subgroups"`
	MinScore           int      `json:"min_score"`
}

func (s *Server) handleUpsertShow(c echo.Context) error {
	var req upsertShowRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{"ok": false, "error": "invalid request body"})
	}
	if req.TitleCanonical == "" {
		return c.JSON(http.StatusBadRequest, map[string]any{"ok": false, "error": "title_canonical is required"})
	}

	var profile *store.ShowProfile
	if len(req.PreferredSubgroups) > 0 || req.MinScore > 0 {
		profile = &store.ShowProfile{PreferredSubgroups: req.PreferredSubgroups, MinScore: req.MinScore}
	}

	show, err := s.store.UpsertShow(c.Request().Context(), req.TitleInput, req.TitleCanonical, req.Aliases, profile)
	if err != nil {
		s.logger.Error().Err(err).Msg("upsert show failed")
		return c.JSON(http.StatusInternalServerError, map[string]any{"ok": false, "error": "upsert failed"})
	}
	return c.JSON(http.StatusOK, map[string]any{"ok": true, "show": show})
}

func (s *Server) handleListShows(c echo.Context) error {
	shows, err := s.store.ListShows(c.Request().Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("list shows failed")
		return c.JSON(http.StatusInternalServerError, map[string]any{"ok": false, "error": "list failed"})
	}
	return c.JSON(http.StatusOK, map[string]any{"ok": true, "shows": shows})
}

func (s *Server) handleShowStatus(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{"ok": false, "error": "invalid show id"})
	}
	summary, err := s.store.Status(c.Request().Context(), id)
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]any{"ok": false, "error": "show not found"})
	}
	return c.JSON(http.StatusOK, map[string]any{"ok": true, "status": summary})
}

type intakeShow struct {
	TitleInput         string   `json:"title_input"`
	TitleCanonical     string   `json:"title_canonical"`
	Aliases            []string `json:"aliases"`
	PreferredSubgroups []string `json:"preferred_subgroups"`
	MinScore           int      `json:"min_score"`
}

type intakeRequest struct {
	Shows []intakeShow `json:"shows"`
}

func (s *Server) handleIntake(c echo.Context) error {
	var req intakeRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{"ok": false, "error": "invalid request body"})
	}

	ctx := c.Request().Context()
	upserted := make([]*store.Show, 0, len(req.Shows))
	for _, in := range req.Shows {
		if in.TitleCanonical == "" {
			continue
		}
		var profile *store.ShowProfile
		if len(in.PreferredSubgroups) > 0 || in.MinScore > 0 {
			profile = &store.ShowProfile{PreferredSubgroups: in.PreferredSubgroups, MinScore: in.MinScore}
		}
		show, err := s.store.UpsertShow(ctx, in.TitleInput, in.TitleCanonical, in.Aliases, profile)
		if err != nil {
			s.logger.Error().Err(err).Str("show", in.TitleCanonical).Msg("intake upsert failed")
			continue
		}
		upserted = append(upserted, show)
	}

	return c.JSON(http.StatusOK, map[string]any{"ok": true, "shows": upserted})
}

func (s *Server) handlePollNow(c echo.Context) error {
	results := s.pipeline.RunAll(c.Request().Context(), nil)
	return c.JSON(http.StatusOK, map[string]any{"ok": true, "results": results})
}

func (s *Server) handlePollShowNow(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{"ok": false, "error": "invalid show id"})
	}
	results := s.pipeline.RunAll(c.Request().Context(), []int64{id})
	return c.JSON(http.StatusOK, map[string]any{"ok": true, "results": results})
}

const pollShowAsyncTimeoutSec = 80

func (s *Server) handlePollShowAsync(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{"ok": false, "error": "invalid show id"})
	}

	job := s.jobRunner.Submit("poll-show", id, func(ctx context.Context) (any, error) {
		return s.pipeline.RunAll(ctx, []int64{id}), nil
	}, pollShowAsyncTimeoutSec)

	return c.JSON(http.StatusAccepted, map[string]any{"ok": true, "job": job})
}

func (s *Server) handleJobStatus(c echo.Context) error {
	job, err := s.jobRunner.Get(c.Param("job_id"))
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]any{"ok": false, "error": "job not found"})
	}
	return c.JSON(http.StatusOK, map[string]any{"ok": true, "job": job})
}

func (s *Server) handleJobCancel(c echo.Context) error {
	if err := s.jobRunner.Cancel(c.Param("job_id")); err != nil {
		return c.JSON(http.StatusNotFound, map[string]any{"ok": false, "error": "job not found"})
	}
	return c.JSON(http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleReconcileNow(c echo.Context) error {
	result, err := s.reconciler.Run(c.Request().Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("reconcile failed")
		return c.JSON(http.StatusInternalServerError, map[string]any{"ok": false, "error": "reconcile failed"})
	}
	return c.JSON(http.StatusOK, map[string]any{"ok": true, "result": result})
}

func (s *Server) handleSyncMetadataNow(c echo.Context) error {
	results := s.resolver.ResolveAll(c.Request().Context())
	return c.JSON(http.StatusOK, map[string]any{"ok": true, "results": results})
}

func (s *Server) handleSyncNow(c echo.Context) error {
	ctx := c.Request().Context()
	resolveResults := s.resolver.ResolveAll(ctx)
	pollResults := s.pipeline.RunAll(ctx, nil)
	reconcileResult, err := s.reconciler.Run(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("sync-now reconcile step failed")
	}
	return c.JSON(http.StatusOK, map[string]any{
		"ok": true, "resolve": resolveResults, "poll": pollResults, "reconcile": reconcileResult,
	})
}

func (s *Server) handleQbitMaintenanceNow(c echo.Context) error {
	result, err := s.maintainer.Sweep(c.Request().Context(), s.isComplete)
	if err != nil {
		s.logger.Error().Err(err).Msg("torrent maintenance failed")
		return c.JSON(http.StatusInternalServerError, map[string]any{"ok": false, "error": "maintenance failed"})
	}
	return c.JSON(http.StatusOK, map[string]any{"ok": true, "result": result})
}

func (s *Server) handleRecoveryNow(c echo.Context) error {
	ctx := c.Request().Context()
	resolveResults := s.resolver.ResolveAll(ctx)
	reconcileResult, err := s.reconciler.Run(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("recovery-now reconcile step failed")
	}
	pollResults := s.pipeline.RunAll(ctx, nil)
	return c.JSON(http.StatusOK, map[string]any{
		"ok": true, "resolve": resolveResults, "reconcile": reconcileResult, "poll": pollResults,
	})
}
