// Package scheduler fans scheduled forecasting out to the worker queue: on
// every tick it enqueues one basin run per river basin.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/google/uuid"

	"floodcast/internal/types"
)

// ScheduleReason tags messages produced by the dispatcher.
const ScheduleReason = "schedule"

// BasinCatalog lists the river basins.
type BasinCatalog interface {
	List(ctx context.Context) ([]types.RiverBasin, error)
}

// BasinEnqueuer schedules one basin run.
type BasinEnqueuer interface {
	Enqueue(ctx context.Context, basinCode string, onlyActive bool, reason string) (string, error)
}

// DispatchInput is the optional payload of a manual invocation. An empty
// Basins list means every basin in the catalog.
type DispatchInput struct {
	Basins          []string `json:"basins"`
	IncludeInactive bool     `json:"include_inactive"`
}

// DispatchResult reports one dispatch cycle.
type DispatchResult struct {
	Enqueued map[string]string `json:"enqueued"`
	Failed   []string          `json:"failed,omitempty"`
	Skipped  []string          `json:"skipped,omitempty"`
}

// BasinDispatcher enqueues scheduled basin runs.
type BasinDispatcher struct {
	catalog BasinCatalog
	queue   BasinEnqueuer
	logger  *slog.Logger
}

func NewBasinDispatcher(catalog BasinCatalog, queue BasinEnqueuer, logger *slog.Logger) *BasinDispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &BasinDispatcher{catalog: catalog, queue: queue, logger: logger}
}

// Dispatch enqueues a run for each selected basin. One basin failing to
// enqueue never blocks the rest; it is retried on the next tick. Requested
// codes that are not in the catalog are skipped.
func (d *BasinDispatcher) Dispatch(ctx context.Context, in DispatchInput) (*DispatchResult, error) {
	basins, err := d.catalog.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing river basins: %w", err)
	}

	known := make(map[string]bool, len(basins))
	targets := make([]string, 0, len(basins))
	for _, b := range basins {
		known[b.Code] = true
		if len(in.Basins) == 0 || slices.Contains(in.Basins, b.Code) {
			targets = append(targets, b.Code)
		}
	}

	res := &DispatchResult{Enqueued: make(map[string]string, len(targets))}
	for _, code := range in.Basins {
		if !known[code] {
			res.Skipped = append(res.Skipped, code)
		}
	}

	for _, code := range targets {
		runCtx := types.WithRunID(ctx, uuid.NewString())
		runID, err := d.queue.Enqueue(runCtx, code, !in.IncludeInactive, ScheduleReason)
		if err != nil {
			d.logger.ErrorContext(ctx, "failed to enqueue scheduled basin run",
				"river_basin_code", code,
				"error", err,
			)
			res.Failed = append(res.Failed, code)
			continue
		}
		res.Enqueued[code] = runID
	}

	d.logger.InfoContext(ctx, "basin dispatch cycle complete",
		"enqueued", len(res.Enqueued),
		"failed", len(res.Failed),
		"skipped", len(res.Skipped),
	)
	return res, nil
}
