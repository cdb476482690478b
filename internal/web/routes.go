package web

import (
	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/roll-call/internal/web/handlers"
	"github.com/kozaktomas/roll-call/internal/web/middleware"
)

func (s *Server) setupRoutes() {
	attendanceHandler := handlers.NewAttendanceHandler(s.services.Attendance, s.jobManager, s.config.Thresholds.Similarity)
	studentsHandler := handlers.NewStudentsHandler(s.services.Registry)
	dashboardHandler := handlers.NewDashboardHandler(s.services.Dashboard, s.config.Thresholds.LowAttendance)
	sessionsHandler := handlers.NewSessionsHandler(s.services.Sessions, s.services.Notifier)
	configHandler := handlers.NewConfigHandler(s.config)

	// Health check (no API key required)
	s.router.Get("/api/v1/health", handlers.HealthCheck)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RequireAPIKey(s.config.Web.APIKey))

		// Attendance
		r.Post("/attendance", attendanceHandler.Mark)
		r.Post("/attendance/jobs", attendanceHandler.StartJob)
		r.Get("/attendance/jobs/{jobId}", attendanceHandler.JobStatus)
		r.Get("/attendance/jobs/{jobId}/events", attendanceHandler.Events)
		r.Delete("/attendance/jobs/{jobId}", attendanceHandler.CancelJob)
		r.Post("/quality", attendanceHandler.Quality)

		// Students
		r.Post("/students", studentsHandler.Register)
		r.Get("/students", studentsHandler.List)

		// Dashboard
		r.Get("/dashboard/overview", dashboardHandler.Overview)
		r.Get("/dashboard/students", dashboardHandler.Students)
		r.Get("/dashboard/students/{id}", dashboardHandler.Student)
		r.Get("/dashboard/eligibility", dashboardHandler.Eligibility)

		// Sessions
		r.Get("/sessions", sessionsHandler.List)
		r.Get("/sessions/{id}", sessionsHandler.Get)
		r.Post("/sessions/{id}/alert", sessionsHandler.Alert)

		// Config
		r.Get("/config", configHandler.Get)
	})
}
