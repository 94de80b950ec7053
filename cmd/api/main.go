// Package main is the entry point for the floodcast HTTP API.
//
// It loads configuration, opens the database pool, wires the forecasting
// service behind the core chassis and serves until SIGINT or SIGTERM.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"floodcast/internal/api/handlers"
	"floodcast/internal/app"
	"floodcast/internal/config"
	"floodcast/internal/core"
	"floodcast/internal/db"
	"floodcast/internal/queue"
	"floodcast/internal/types"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := app.NewLogger(cfg.LogLevel)
	logger.Info("floodcast API starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"commit", cfg.Build.Commit,
		"port", cfg.Server.Port,
	)

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}

	var enqueuer handlers.BasinEnqueuer
	if cfg.AWS.BasinRunQueue != "" {
		awsCfg, err := app.LoadAWS(ctx, cfg.AWS)
		if err != nil {
			pool.Close()
			return err
		}
		// Keep a typed nil out of the interface.
		if trigger := queue.NewBasinRunTrigger(app.NewSQSClient(awsCfg, cfg.AWS), cfg.AWS, types.RealClock{}, logger); trigger != nil {
			enqueuer = trigger
		}
	} else {
		logger.Info("SQS_BASIN_RUNS not set, asynchronous basin runs disabled")
	}

	srv, err := buildServer(cfg, pool, enqueuer, logger)
	if err != nil {
		pool.Close()
		return err
	}
	return runHTTPServer(srv, cfg, logger)
}

// buildServer wires repositories, the forecasting service and handlers on a
// core.Server with its routes mounted.
func buildServer(cfg *config.Config, pool *pgxpool.Pool, enqueuer handlers.BasinEnqueuer, logger *slog.Logger) (*core.Server, error) {
	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("creating server: %w", err)
	}

	collector := core.NewPrometheusCollector()
	srv.Metrics = collector
	srv.MetricsHandler = collector.Handler()

	var conn db.DBTX
	if pool != nil {
		conn = pool
		srv.HealthProbes = append(srv.HealthProbes, core.DatabaseProbe{DB: pool})
		srv.Closers = append(srv.Closers, poolCloser{pool})
	}

	repos := app.NewRepositories(conn)
	service := app.NewForecastService(cfg, repos, collector, logger)

	defaults := handlers.RequestDefaults{
		PredictionHours: cfg.Forecast.DefaultHours,
		StepHours:       cfg.Forecast.DefaultStepHours,
	}
	forecastHandler := handlers.NewForecastHandler(service, enqueuer, defaults, srv.Validator, logger)
	catalogHandler := handlers.NewCatalogHandler(repos.Models, repos.Sensors, repos.Basins, logger)

	srv.V1RouteRegistrars = append(srv.V1RouteRegistrars,
		func(r chi.Router) { r.Route("/forecast", forecastHandler.RegisterRoutes) },
		catalogHandler.RegisterRoutes,
	)

	srv.MountRoutes()
	return srv, nil
}

// poolCloser adapts pgxpool.Pool to io.Closer.
type poolCloser struct{ pool *pgxpool.Pool }

func (p poolCloser) Close() error {
	p.pool.Close()
	return nil
}

func runHTTPServer(srv *core.Server, cfg *config.Config, logger *slog.Logger) error {
	addr := ":" + cfg.Server.Port

	// The write timeout must outlive the per-request context timeout so a
	// basin run can still answer with its summary.
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.Server.RequestTimeout + 10*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("server stopped cleanly")
	return nil
}
