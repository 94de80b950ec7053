package forecasting

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/errgroup"

	"floodcast/internal/types"
)

// RunBasin forecasts every forecastable sensor of a river basin. Sensors run
// in parallel up to BasinConcurrency and fail independently; the summary
// lists them in the order the catalog returned them. Only an unknown basin
// or a failed sensor listing fails the whole call.
func (s *Service) RunBasin(ctx context.Context, basinCode string, onlyActive bool) (*BasinSummary, error) {
	if s.deps.BasinSensors == nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "basin runs are not configured", nil)
	}
	if s.deps.Basins != nil {
		if _, err := s.deps.Basins.ByCode(ctx, basinCode); err != nil {
			return nil, err
		}
	}

	ctx, runID := s.ensureRunID(ctx)
	sensors, err := s.deps.BasinSensors.BasinSensors(ctx, basinCode, onlyActive)
	if err != nil {
		return nil, err
	}

	summary := &BasinSummary{
		RunID:          runID,
		RiverBasinCode: basinCode,
		TotalSensors:   len(sensors),
		Details:        make([]BasinDetail, len(sensors)),
	}

	var mu sync.Mutex
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(max(s.settings.BasinConcurrency, 1))

	for i, sensor := range sensors {
		g.Go(func() error {
			out := s.Run(gCtx, Request{SensorCode: sensor.Code})
			detail := detailFor(sensor.Code, out)

			mu.Lock()
			summary.Details[i] = detail
			switch out.Kind {
			case OutcomeFatal:
				summary.Failed++
			case OutcomeFallback:
				summary.OK++
				summary.Fallbacks++
			default:
				summary.OK++
			}
			mu.Unlock()

			// Per-sensor failures never cancel siblings.
			return nil
		})
	}
	_ = g.Wait()

	s.logger.InfoContext(ctx, "basin run completed",
		"river_basin_code", basinCode,
		"total_sensors", summary.TotalSensors,
		"ok", summary.OK,
		"failed", summary.Failed,
		"fallbacks", summary.Fallbacks,
	)
	return summary, nil
}

func detailFor(sensorCode string, out Outcome) BasinDetail {
	d := BasinDetail{SensorCode: sensorCode, Status: DetailOK}
	if out.Result != nil {
		d.Method = out.Result.Method
		d.RowsInserted = out.Result.RowsInserted
	}
	if out.Kind == OutcomeFatal {
		d.Status = DetailError
		d.ErrorCode = types.CodeOf(out.Err)
		if d.ErrorCode == "" {
			d.ErrorCode = types.ErrCodeInternalUnexpected
		}
		var appErr *types.AppError
		switch {
		case errors.As(out.Err, &appErr):
			d.Error = appErr.Message
		case out.Err != nil:
			d.Error = "internal: " + out.Err.Error()
		}
	}
	return d
}
