package fallback

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"floodcast/internal/types"
)

var now = time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)

type fakeSensors map[string]*types.Sensor

func (f fakeSensors) SensorByCode(_ context.Context, code string) (*types.Sensor, error) {
	s, ok := f[code]
	if !ok {
		return nil, types.NewAppError(types.ErrCodeNotFoundSensor, "sensor not found", nil)
	}
	return s, nil
}

type fakeHistory struct {
	series map[string][]types.TimeSeriesPoint
	err    error
}

func (f *fakeHistory) ReadingsSince(_ context.Context, code string, since time.Time) ([]types.TimeSeriesPoint, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []types.TimeSeriesPoint
	for _, p := range f.series[code] {
		if !p.Timestamp.Before(since) {
			out = append(out, p)
		}
	}
	return out, nil
}

type fakeFinder struct {
	siblings []types.Sensor
	err      error
}

func (f *fakeFinder) SimilarSensors(context.Context, *types.Sensor, int) ([]types.Sensor, error) {
	return f.siblings, f.err
}

func fptr(v float64) *float64 { return &v }

// hourlySeries returns n hourly points ending one hour before now.
func hourlySeries(n int, value func(i int) float64) []types.TimeSeriesPoint {
	out := make([]types.TimeSeriesPoint, n)
	start := now.Add(-time.Duration(n) * time.Hour)
	for i := range n {
		out[i] = types.TimeSeriesPoint{Timestamp: start.Add(time.Duration(i) * time.Hour), Value: value(i)}
	}
	return out
}

func newTestForecaster(history *fakeHistory, finder SimilarSensorFinder, sensors fakeSensors) *Forecaster {
	return NewForecaster(sensors, history, finder, DefaultSettings(), types.FixedClock{T: now}, nil)
}

func TestForecast_StatisticalWithEnoughHistory(t *testing.T) {
	sensor := &types.Sensor{Code: "WL-1", Parameter: types.ParamWaterLevel}
	history := &fakeHistory{series: map[string][]types.TimeSeriesPoint{
		"WL-1": hourlySeries(12, func(i int) float64 { return 1 + 0.1*float64(i) }),
	}}
	f := newTestForecaster(history, nil, nil)

	res := f.Forecast(context.Background(), sensor, Request{Horizon: 3})

	assert.Equal(t, types.MethodStatisticalFallback, res.Method)
	assert.Equal(t, types.ReasonNoModelAssigned, res.Reason)
	require.Len(t, res.Points, 3)
	assert.InDelta(t, 2.2, res.Points[0].Value, 1e-9)
	assert.InDelta(t, 2.4, res.Points[2].Value, 1e-9)
	assert.InDelta(t, 0.55, res.Points[0].Confidence, 1e-9)
	assert.Equal(t, now.Add(time.Hour), res.Points[0].Timestamp)
}

func TestForecast_PersistenceWithNoHistory(t *testing.T) {
	sensor := &types.Sensor{Code: "WL-2", Parameter: types.ParamWaterLevel}
	f := newTestForecaster(&fakeHistory{}, nil, nil)

	res := f.Forecast(context.Background(), sensor, Request{Horizon: 4})

	assert.Equal(t, types.MethodPersistenceFallback, res.Method)
	assert.Equal(t, types.ReasonInsufficientData, res.Reason)
	require.Len(t, res.Points, 4)
	assert.Equal(t, 1.0, res.Points[0].Value)
	assert.LessOrEqual(t, res.Points[0].Confidence, 0.3)
	assert.InDelta(t, 0.27, res.Points[0].Confidence, 1e-9)
}

func TestForecast_PersistenceUsesLastValue(t *testing.T) {
	sensor := &types.Sensor{Code: "RF-1", Parameter: types.ParamRainfall}
	history := &fakeHistory{series: map[string][]types.TimeSeriesPoint{
		"RF-1": hourlySeries(4, func(i int) float64 { return float64(i) * 2 }),
	}}
	f := newTestForecaster(history, &fakeFinder{}, nil)

	res := f.Forecast(context.Background(), sensor, Request{Horizon: 2})

	assert.Equal(t, types.MethodPersistenceFallback, res.Method)
	assert.Equal(t, 6.0, res.Points[1].Value)
}

func TestForecast_HistoryErrorDegrades(t *testing.T) {
	sensor := &types.Sensor{Code: "T-1", Parameter: types.ParamTemperature}
	f := newTestForecaster(&fakeHistory{err: errors.New("timeout")}, nil, nil)

	res := f.Forecast(context.Background(), sensor, Request{Horizon: 1})

	assert.Equal(t, types.MethodPersistenceFallback, res.Method)
	assert.Equal(t, 25.0, res.Points[0].Value)
}

func TestForecast_ProxySensor(t *testing.T) {
	sensor := &types.Sensor{Code: "WL-NEW", Parameter: types.ParamWaterLevel, Latitude: fptr(-7.00), Longitude: fptr(110.40)}
	near := types.Sensor{Code: "WL-NEAR", Latitude: fptr(-7.05), Longitude: fptr(110.40)}
	far := types.Sensor{Code: "WL-FAR", Latitude: fptr(-8.00), Longitude: fptr(110.40)}

	history := &fakeHistory{series: map[string][]types.TimeSeriesPoint{
		"WL-NEW":  hourlySeries(5, func(int) float64 { return 2 }),
		"WL-NEAR": hourlySeries(30, func(int) float64 { return 1 }),
	}}
	f := newTestForecaster(history, &fakeFinder{siblings: []types.Sensor{far, near}}, nil)

	res := f.Forecast(context.Background(), sensor, Request{Horizon: 2})

	assert.Equal(t, types.ProxyMethod("WL-NEAR"), res.Method)
	assert.Equal(t, types.ReasonUsingSimilarSensor, res.Reason)
	assert.Equal(t, "WL-NEAR", res.ProxySensorCode)
	// only 5 overlapping timestamps, so the factor stays neutral
	assert.Equal(t, 1.0, res.CorrelationFactor)
	require.Len(t, res.Points, 2)
	assert.InDelta(t, 1.0, res.Points[0].Value, 1e-9)
	assert.InDelta(t, 0.55*0.7, res.Points[0].Confidence, 1e-9)
}

func TestForecast_ProxyNeedsLocation(t *testing.T) {
	sensor := &types.Sensor{Code: "WL-X", Parameter: types.ParamWaterLevel}
	near := types.Sensor{Code: "WL-NEAR", Latitude: fptr(0), Longitude: fptr(0)}
	history := &fakeHistory{series: map[string][]types.TimeSeriesPoint{
		"WL-NEAR": hourlySeries(30, func(int) float64 { return 1 }),
	}}
	f := newTestForecaster(history, &fakeFinder{siblings: []types.Sensor{near}}, nil)

	res := f.Forecast(context.Background(), sensor, Request{Horizon: 1})
	assert.Equal(t, types.MethodPersistenceFallback, res.Method)
}

func TestForecast_ProxyCandidateWithoutHistory(t *testing.T) {
	sensor := &types.Sensor{Code: "WL-A", Parameter: types.ParamWaterLevel, Latitude: fptr(0), Longitude: fptr(0)}
	near := types.Sensor{Code: "WL-B", Latitude: fptr(0.01), Longitude: fptr(0)}
	f := newTestForecaster(&fakeHistory{}, &fakeFinder{siblings: []types.Sensor{near}}, nil)

	res := f.Forecast(context.Background(), sensor, Request{Horizon: 1})
	assert.Equal(t, types.MethodPersistenceFallback, res.Method)
}

func TestForecastByCode(t *testing.T) {
	sensors := fakeSensors{"WL-1": {Code: "WL-1", Parameter: types.ParamHumidity}}
	f := newTestForecaster(&fakeHistory{}, nil, sensors)

	res, err := f.ForecastByCode(context.Background(), "WL-1", Request{Horizon: 6})
	require.NoError(t, err)
	assert.Len(t, res.Points, 6)
	assert.Equal(t, 70.0, res.Points[0].Value)

	_, err = f.ForecastByCode(context.Background(), "missing", Request{Horizon: 6})
	assert.True(t, types.IsCode(err, types.ErrCodeNotFoundSensor))
}
