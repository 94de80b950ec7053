// Package core is the HTTP chassis of the floodcast API: a chi router with
// the shared middleware chain, the JSON envelope helpers, request
// validation, health probes and Prometheus metrics. Domain handlers attach
// themselves through V1RouteRegistrars.
package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"floodcast/internal/config"
)

// MetricsCollector records API request telemetry.
type MetricsCollector interface {
	RecordRequest(method, route, status string, duration time.Duration)
}

// Server holds the dependencies of the HTTP surface.
type Server struct {
	Config    *config.Config
	Logger    *slog.Logger
	Validator *Validator
	Metrics   MetricsCollector

	// MetricsHandler serves GET /metrics when set.
	MetricsHandler http.Handler
	HealthProbes   []HealthProbe

	// V1RouteRegistrars mount domain routes under /v1.
	V1RouteRegistrars []func(chi.Router)

	// Closers are released in order on Shutdown.
	Closers []io.Closer

	router *chi.Mux
}

// NewServer creates a Server. Routes are mounted separately via MountRoutes
// so tests can customize registration.
func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}
	return &Server{
		Config:    cfg,
		Logger:    logger,
		Validator: NewValidator(logger),
		router:    chi.NewRouter(),
	}, nil
}

// Handler returns the router as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Router returns the underlying chi.Mux.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Shutdown releases registered resources, reporting every close failure.
func (s *Server) Shutdown(ctx context.Context) error {
	s.Logger.InfoContext(ctx, "server shutdown initiated")

	var errs []error
	for _, c := range s.Closers {
		if err := c.Close(); err != nil {
			s.Logger.ErrorContext(ctx, "error releasing resource", "error", err)
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	s.Logger.InfoContext(ctx, "server shutdown complete")
	return nil
}
