package forecasting

import (
	"context"
	"sync"
	"time"

	"floodcast/internal/artifacts"
	"floodcast/internal/fallback"
	"floodcast/internal/scaling"
	"floodcast/internal/types"
)

type fakeSensors map[string]*types.Sensor

func (f fakeSensors) SensorByCode(_ context.Context, code string) (*types.Sensor, error) {
	if s, ok := f[code]; ok {
		return s, nil
	}
	return nil, types.NewAppError(types.ErrCodeNotFoundSensor, "sensor not found", nil)
}

func (f fakeSensors) BasinSensors(_ context.Context, _ string, _ bool) ([]types.Sensor, error) {
	codes := []string{"WL-01", "WL-02", "WL-03"}
	var out []types.Sensor
	for _, c := range codes {
		if s, ok := f[c]; ok {
			out = append(out, *s)
		} else {
			out = append(out, types.Sensor{Code: c})
		}
	}
	return out, nil
}

type fakeModels map[string]*types.Model

func (f fakeModels) ModelByCode(_ context.Context, code string) (*types.Model, error) {
	if m, ok := f[code]; ok {
		return m, nil
	}
	return nil, types.NewAppError(types.ErrCodeNotFoundModel, "model not found", nil)
}

// fakeReadings serves newest-first copies.
type fakeReadings struct {
	points map[string][]types.TimeSeriesPoint
	err    error
}

func (f *fakeReadings) LatestReadings(_ context.Context, code string, limit int) ([]types.TimeSeriesPoint, error) {
	if f.err != nil {
		return nil, f.err
	}
	pts := f.points[code]
	if len(pts) > limit {
		pts = pts[:limit]
	}
	return append([]types.TimeSeriesPoint(nil), pts...), nil
}

type fakeSink struct {
	mu      sync.Mutex
	batches [][]types.PredictionRecord
	err     error
}

func (f *fakeSink) InsertBatch(_ context.Context, recs []types.PredictionRecord) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, recs)
	return int64(len(recs)), nil
}

type predictorFunc func(ctx context.Context, window [][]float64) ([]float64, error)

func (f predictorFunc) Predict(ctx context.Context, window [][]float64) ([]float64, error) {
	return f(ctx, window)
}

type fakeArtifacts struct {
	predictor artifacts.Predictor
	pair      scaling.Pair
	modelErr  error
}

func (f *fakeArtifacts) Model(context.Context, *types.Model) (artifacts.Predictor, error) {
	if f.modelErr != nil {
		return nil, f.modelErr
	}
	return f.predictor, nil
}

func (f *fakeArtifacts) ScalerPair(context.Context, string, string) (scaling.Pair, error) {
	return f.pair, nil
}

// fakeFallback returns a flat statistical forecast and remembers requests.
type fakeFallback struct {
	mu       sync.Mutex
	requests []fallback.Request
	now      time.Time
}

func (f *fakeFallback) Forecast(_ context.Context, sensor *types.Sensor, req fallback.Request) *fallback.Result {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	reason := req.Reason
	if reason == "" {
		reason = types.ReasonNoModelAssigned
	}
	pts := make([]fallback.Point, req.Horizon)
	for i := range pts {
		pts[i] = fallback.Point{
			Timestamp:  f.now.Add(time.Duration(i+1) * req.Step),
			Value:      1.0,
			Confidence: 0.5,
		}
	}
	return &fallback.Result{
		SensorCode: sensor.Code,
		Method:     types.MethodStatisticalFallback,
		Reason:     reason,
		Points:     pts,
	}
}

type recordedOutcome struct {
	kind   OutcomeKind
	method types.ForecastMethod
}

type fakeRecorder struct {
	mu       sync.Mutex
	outcomes []recordedOutcome
}

func (f *fakeRecorder) RecordOutcome(_ context.Context, kind OutcomeKind, method types.ForecastMethod) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outcomes = append(f.outcomes, recordedOutcome{kind, method})
}

type fakeBasins struct{}

func (fakeBasins) ByCode(_ context.Context, code string) (*types.RiverBasin, error) {
	if code != "BRANTAS" {
		return nil, types.NewAppError(types.ErrCodeNotFoundRiverBasin, "river basin not found", nil)
	}
	return &types.RiverBasin{Code: code}, nil
}
