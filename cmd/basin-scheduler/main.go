// Package main is the basin scheduler Lambda. An EventBridge rule invokes
// it every hour; it enqueues one basin run per river basin for the forecast
// worker. A manual invocation may pass a scheduler.DispatchInput to target
// specific basins.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"floodcast/internal/app"
	"floodcast/internal/config"
	"floodcast/internal/db"
	"floodcast/internal/queue"
	"floodcast/internal/scheduler"
	"floodcast/internal/types"
)

// Dispatcher runs one dispatch cycle.
type Dispatcher interface {
	Dispatch(ctx context.Context, in scheduler.DispatchInput) (*scheduler.DispatchResult, error)
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: loading configuration: %v\n", err)
		os.Exit(1)
	}
	logger := app.NewLogger(cfg.LogLevel)
	logger.Info("basin scheduler initializing (cold start)", "environment", cfg.Environment)

	if cfg.AWS.BasinRunQueue == "" {
		logger.Error("SQS_BASIN_RUNS is required for the basin scheduler")
		os.Exit(1)
	}

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

	trigger := queue.NewBasinRunTrigger(app.NewSQSClient(awsCfg, cfg.AWS), cfg.AWS, types.RealClock{}, logger)
	dispatcher := scheduler.NewBasinDispatcher(db.NewRiverBasinRepository(pool), trigger, logger)

	lambda.Start(newHandler(dispatcher, logger))
}

// newHandler fails the invocation when nothing could be enqueued so the
// EventBridge retry policy kicks in. Partial failures are left to the next
// tick.
func newHandler(d Dispatcher, logger *slog.Logger) func(ctx context.Context, in scheduler.DispatchInput) (*scheduler.DispatchResult, error) {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, in scheduler.DispatchInput) (*scheduler.DispatchResult, error) {
		logger.InfoContext(ctx, "basin scheduler invoked",
			"basins", in.Basins,
			"include_inactive", in.IncludeInactive,
		)

		res, err := d.Dispatch(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("basin dispatch failed: %w", err)
		}
		if len(res.Enqueued) == 0 && len(res.Failed) > 0 {
			return res, fmt.Errorf("basin dispatch failed: no basin enqueued, %d failed", len(res.Failed))
		}
		return res, nil
	}
}
