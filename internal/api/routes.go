package api

func (s *Server) setupRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/status", s.handleHealth)

	api := s.echo.Group("/api")

	api.POST("/shows", s.handleUpsertShow)
	api.GET("/shows", s.handleListShows)
	api.GET("/shows/:id/status", s.handleShowStatus)
	api.POST("/intake", s.handleIntake)

	api.POST("/jobs/poll-now", s.handlePollNow)
	api.POST("/jobs/poll-show-now/:id", s.handlePollShowNow)
	api.POST("/jobs/poll-show-async/:id", s.handlePollShowAsync)
	api.GET("/jobs/task/:job_id", s.handleJobStatus)
	api.POST("/jobs/task/:job_id/cancel", s.handleJobCancel)
	api.POST("/jobs/reconcile-now", s.handleReconcileNow)
	api.POST("/jobs/sync-metadata-now", s.handleSyncMetadataNow)
	api.POST("/jobs/sync-now", s.handleSyncNow)
	api.POST("/jobs/qbit-maintenance-now", s.handleQbitMaintenanceNow)
	api.POST("/jobs/recovery-now", s.handleRecoveryNow)
}
