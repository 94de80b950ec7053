// Package fallback produces forecasts for sensors that cannot be served by a
// trained model. It tries three tiers in order of evidentiary strength:
// statistical extrapolation of the sensor's own history, a statistical
// forecast borrowed from a nearby sibling sensor, and persistence of the
// last known value. The cascade always yields a forecast for an existing
// sensor.
package fallback

import (
	"context"
	"log/slog"
	"time"

	"floodcast/internal/types"
)

// SensorLookup resolves a sensor by code. A missing sensor is reported as a
// not_found_sensor AppError.
type SensorLookup interface {
	SensorByCode(ctx context.Context, code string) (*types.Sensor, error)
}

// HistoryStore returns a sensor's readings at or after since, oldest first.
type HistoryStore interface {
	ReadingsSince(ctx context.Context, sensorCode string, since time.Time) ([]types.TimeSeriesPoint, error)
}

// SimilarSensorFinder lists active sensors measuring the same parameter that
// have a model assigned, excluding the sensor itself.
type SimilarSensorFinder interface {
	SimilarSensors(ctx context.Context, sensor *types.Sensor, limit int) ([]types.Sensor, error)
}

// Settings tune the cascade.
type Settings struct {
	HistoryWindow     time.Duration
	CorrelationWindow time.Duration
	ProxyRadiusKm     float64
	ProxyPenalty      float64
	CandidateLimit    int
	MinHistory        int
}

// DefaultSettings returns a week of history, a 30 day correlation window,
// a 50 km proxy radius and a 0.7 proxy penalty.
func DefaultSettings() Settings {
	return Settings{
		HistoryWindow:     168 * time.Hour,
		CorrelationWindow: 720 * time.Hour,
		ProxyRadiusKm:     50,
		ProxyPenalty:      0.7,
		CandidateLimit:    5,
		MinHistory:        10,
	}
}

// Request describes one fallback run.
type Request struct {
	Horizon int
	Step    time.Duration
	// Reason is recorded when the sensor's own history is used. It defaults
	// to no_model_assigned.
	Reason types.FallbackReason
}

// Result is the outcome of the cascade.
type Result struct {
	SensorCode        string               `json:"sensor_code"`
	Method            types.ForecastMethod `json:"method"`
	Reason            types.FallbackReason `json:"fallback_reason"`
	Points            []Point              `json:"predictions"`
	ProxySensorCode   string               `json:"proxy_sensor_code,omitempty"`
	ProxyDistanceKm   float64              `json:"proxy_distance_km,omitempty"`
	CorrelationFactor float64              `json:"correlation_factor,omitempty"`
}

// Forecaster runs the fallback cascade.
type Forecaster struct {
	sensors  SensorLookup
	history  HistoryStore
	finder   SimilarSensorFinder
	settings Settings
	clock    types.Clock
	logger   *slog.Logger
}

// NewForecaster wires a Forecaster. A nil finder disables the proxy tier.
func NewForecaster(sensors SensorLookup, history HistoryStore, finder SimilarSensorFinder, settings Settings, clock types.Clock, logger *slog.Logger) *Forecaster {
	if clock == nil {
		clock = types.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Forecaster{
		sensors:  sensors,
		history:  history,
		finder:   finder,
		settings: settings,
		clock:    clock,
		logger:   logger,
	}
}

// ForecastByCode resolves the sensor and runs the cascade. It fails only if
// the sensor cannot be resolved.
func (f *Forecaster) ForecastByCode(ctx context.Context, sensorCode string, req Request) (*Result, error) {
	sensor, err := f.sensors.SensorByCode(ctx, sensorCode)
	if err != nil {
		return nil, err
	}
	return f.Forecast(ctx, sensor, req), nil
}

// Forecast runs the cascade for an already resolved sensor.
func (f *Forecaster) Forecast(ctx context.Context, sensor *types.Sensor, req Request) *Result {
	if req.Step <= 0 {
		req.Step = time.Hour
	}
	if req.Reason == "" {
		req.Reason = types.ReasonNoModelAssigned
	}
	now := f.clock.Now()

	history := f.readings(ctx, sensor.Code, now.Add(-f.settings.HistoryWindow))

	if len(history) >= f.settings.MinHistory {
		return &Result{
			SensorCode: sensor.Code,
			Method:     types.MethodStatisticalFallback,
			Reason:     req.Reason,
			Points:     Statistical(history, now, req.Horizon, req.Step),
		}
	}

	if res := f.proxy(ctx, sensor, now, req); res != nil {
		return res
	}

	value := sensor.Parameter.DefaultValue()
	if len(history) > 0 {
		value = history[len(history)-1].Value
	}
	f.logger.InfoContext(ctx, "using persistence fallback",
		"sensor_code", sensor.Code,
		"history_points", len(history),
	)
	return &Result{
		SensorCode: sensor.Code,
		Method:     types.MethodPersistenceFallback,
		Reason:     types.ReasonInsufficientData,
		Points:     Persistence(value, now, req.Horizon, req.Step),
	}
}

// proxy borrows the nearest sibling's history. It returns nil when no
// candidate has enough data.
func (f *Forecaster) proxy(ctx context.Context, sensor *types.Sensor, now time.Time, req Request) *Result {
	if f.finder == nil || !sensor.HasLocation() {
		return nil
	}
	siblings, err := f.finder.SimilarSensors(ctx, sensor, f.settings.CandidateLimit)
	if err != nil {
		f.logger.WarnContext(ctx, "similar sensor search failed",
			"sensor_code", sensor.Code,
			"error", err,
		)
		return nil
	}
	candidates := RankCandidates(sensor, siblings, f.settings.ProxyRadiusKm)
	if len(candidates) == 0 {
		return nil
	}

	// Only the nearest candidate is considered.
	nearest := candidates[0]
	proxyHistory := f.readings(ctx, nearest.Sensor.Code, now.Add(-f.settings.HistoryWindow))
	if len(proxyHistory) < f.settings.MinHistory {
		return nil
	}

	corrSince := now.Add(-f.settings.CorrelationWindow)
	factor := CorrelationFactor(
		f.readings(ctx, sensor.Code, corrSince),
		f.readings(ctx, nearest.Sensor.Code, corrSince),
	)

	points := Statistical(proxyHistory, now, req.Horizon, req.Step)
	for i := range points {
		points[i].Value *= factor
		points[i].Confidence *= f.settings.ProxyPenalty
	}

	f.logger.InfoContext(ctx, "using proxy sensor forecast",
		"sensor_code", sensor.Code,
		"proxy_sensor_code", nearest.Sensor.Code,
		"distance_km", nearest.DistanceKm,
		"correlation_factor", factor,
	)
	return &Result{
		SensorCode:        sensor.Code,
		Method:            types.ProxyMethod(nearest.Sensor.Code),
		Reason:            types.ReasonUsingSimilarSensor,
		Points:            points,
		ProxySensorCode:   nearest.Sensor.Code,
		ProxyDistanceKm:   nearest.DistanceKm,
		CorrelationFactor: factor,
	}
}

// readings treats a store failure as missing history so the cascade can
// still degrade to a lower tier.
func (f *Forecaster) readings(ctx context.Context, sensorCode string, since time.Time) []types.TimeSeriesPoint {
	pts, err := f.history.ReadingsSince(ctx, sensorCode, since)
	if err != nil {
		f.logger.WarnContext(ctx, "history unavailable for fallback",
			"sensor_code", sensorCode,
			"error", err,
		)
		return nil
	}
	return pts
}
