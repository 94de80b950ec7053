// Package main is the forecast worker Lambda. It consumes basin-run
// messages from SQS, runs every eligible sensor of the basin through the
// forecasting service and publishes run metrics to CloudWatch.
//
// With APP_ENV=local it reads one event (or one bare message) from stdin
// instead of starting the Lambda runtime:
//
//	echo '{"river_basin_code":"BRANTAS","only_active":true}' | go run ./cmd/forecast-worker
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"floodcast/internal/app"
	"floodcast/internal/config"
	"floodcast/internal/db"
	"floodcast/internal/telemetry"
	"floodcast/internal/types"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: loading configuration: %v\n", err)
		os.Exit(1)
	}

	logger := app.NewLogger(cfg.LogLevel)
	logger.Info("forecast worker initializing (cold start)",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
	)

	ctx := context.Background()
	awsCfg, err := app.LoadAWS(ctx, cfg.AWS)
	if err != nil {
		logger.Error("failed to load AWS SDK config", "error", err)
		os.Exit(1)
	}

	pool, err := db.NewPool(ctx, cfg.Database)
	if err != nil {
		logger.Error("failed to open database pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	metrics := telemetry.NewCloudWatchRunMetrics(
		app.NewCloudWatchClient(awsCfg, cfg.AWS),
		cfg.Observability.MetricNamespace,
		logger,
	)
	service := app.NewForecastService(cfg, app.NewRepositories(pool), metrics, logger)

	handler := &Handler{
		runner:  service,
		metrics: metrics,
		clock:   types.RealClock{},
		logger:  logger,
	}

	if cfg.Environment == "local" {
		if err := runLocal(ctx, handler); err != nil {
			logger.Error("local run failed", "error", err)
			os.Exit(1)
		}
		return
	}

	lambda.Start(handler.Handle)
}

func runLocal(ctx context.Context, handler *Handler) error {
	handler.logger.Info("APP_ENV=local: reading basin run from stdin")
	payload, err := io.ReadAll(os.Stdin)
	if err != nil {
		return fmt.Errorf("reading stdin: %w", err)
	}
	if len(payload) == 0 {
		return fmt.Errorf("no input received on stdin")
	}

	ev, err := localEvent(payload)
	if err != nil {
		return fmt.Errorf("parsing stdin: %w", err)
	}

	response, err := handler.Handle(ctx, ev)
	if err != nil {
		return err
	}
	if len(response.BatchItemFailures) > 0 {
		out, _ := json.MarshalIndent(response, "", "  ")
		fmt.Fprintln(os.Stderr, string(out))
		return fmt.Errorf("%d record(s) failed", len(response.BatchItemFailures))
	}
	return nil
}
