package web

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/kozaktomas/attendance-server/internal/attendance"
	"github.com/kozaktomas/attendance-server/internal/config"
	"github.com/kozaktomas/attendance-server/internal/database"
	"github.com/kozaktomas/attendance-server/internal/match"
	"github.com/kozaktomas/attendance-server/internal/web/middleware"
)

// Backends bundles the storage interfaces the server serves from.
type Backends struct {
	Employees database.EmployeeWriter
	Ledger    database.AttendanceLedger
	Trial     database.TrialDeviceStore
}

// Server represents the web server
type Server struct {
	config     *config.Config
	router     *chi.Mux
	httpServer *http.Server
	backends   Backends
	matcher    match.Matcher
	rebuilder  match.Rebuilder
	service    *attendance.Service
	reconciler *attendance.Reconciler
}

// NewServer creates a new web server
func NewServer(cfg *config.Config, backends Backends, matcher match.Matcher, rebuilder match.Rebuilder) *Server {
	r := chi.NewRouter()

	s := &Server{
		config:     cfg,
		router:     r,
		backends:   backends,
		matcher:    matcher,
		rebuilder:  rebuilder,
		service:    attendance.NewService(backends.Employees, backends.Ledger, matcher),
		reconciler: attendance.NewReconciler(backends.Employees, backends.Ledger),
	}

	// Set up middleware stack
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(60 * time.Second))
	r.Use(middleware.CORS())

	// Set up routes
	s.setupRoutes()

	// Create HTTP server
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Web.Host, cfg.Web.Port),
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Start starts the HTTP server
func (s *Server) Start() error {
	log.Printf("Starting web server on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("Shutting down web server...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}

// Router returns the chi router for testing
func (s *Server) Router() *chi.Mux {
	return s.router
}
