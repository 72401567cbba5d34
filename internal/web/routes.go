package web

import (
	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/attendance-server/internal/web/handlers"
)

func (s *Server) setupRoutes() {
	// Create handlers
	employeesHandler := handlers.NewEmployeesHandler(
		s.backends.Employees,
		s.matcher,
		s.rebuilder,
		s.config.Matcher.Dim,
		s.config.Matcher.Threshold,
	)
	attendanceHandler := handlers.NewAttendanceHandler(s.service, s.reconciler, s.backends.Ledger, s.backends.Employees)
	trialHandler := handlers.NewTrialHandler(s.backends.Trial, s.config.Trial)

	// Health check
	s.router.Get("/api/v1/health", handlers.HealthCheck)

	// API routes
	s.router.Route("/api/v1", func(r chi.Router) {
		// Employees
		r.Get("/employees", employeesHandler.List)
		r.Post("/employees/register", employeesHandler.Register)
		r.Post("/employees/find-by-embedding", employeesHandler.FindByEmbedding)
		r.Get("/employees/{employeeId}", employeesHandler.Get)
		r.Put("/employees/{employeeId}", employeesHandler.Update)
		r.Delete("/employees/{employeeId}", employeesHandler.Deactivate)

		// Attendance
		r.Post("/attendance/record", attendanceHandler.Record)
		r.Post("/attendance/sync", attendanceHandler.Sync)
		r.Get("/attendance/history", attendanceHandler.History)
		r.Get("/attendance/daily-summary", attendanceHandler.DailySummary)
		r.Get("/attendance/stats/{employeeId}", attendanceHandler.Stats)

		// Trial licensing
		r.Post("/trial/validate", trialHandler.Validate)
		r.Post("/trial/register", trialHandler.Register)
		r.Get("/trial/status", trialHandler.Status)
	})
}
