// Package app assembles the forecasting stack from configuration. Both the
// API and the forecast worker build their service through here.
package app

import (
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"floodcast/internal/artifacts"
	"floodcast/internal/confidence"
	"floodcast/internal/config"
	"floodcast/internal/db"
	"floodcast/internal/external"
	"floodcast/internal/fallback"
	"floodcast/internal/forecasting"
	"floodcast/internal/timeseries"
	"floodcast/internal/types"
)

// Repositories groups the pgx repositories over one pool.
type Repositories struct {
	Sensors     *db.SensorRepository
	Models      *db.ModelRepository
	Basins      *db.RiverBasinRepository
	Scalers     *db.ScalerRepository
	Readings    *db.ReadingRepository
	Predictions *db.PredictionRepository
}

// NewRepositories builds every repository on conn.
func NewRepositories(conn db.DBTX) Repositories {
	return Repositories{
		Sensors:     db.NewSensorRepository(conn),
		Models:      db.NewModelRepository(conn),
		Basins:      db.NewRiverBasinRepository(conn),
		Scalers:     db.NewScalerRepository(conn),
		Readings:    db.NewReadingRepository(conn),
		Predictions: db.NewPredictionRepository(conn),
	}
}

// NewForecastService wires the orchestrator with its artifact store,
// remote inference client, confidence scorer and fallback cascade.
// recorder may be nil.
func NewForecastService(cfg *config.Config, repos Repositories, recorder forecasting.OutcomeRecorder, logger *slog.Logger) *forecasting.Service {
	clock := types.RealClock{}

	inference := external.NewInferenceClient(
		&http.Client{Timeout: cfg.Inference.Timeout},
		external.InferenceClientConfig{
			BaseURL:    cfg.Inference.BaseURL,
			MaxRetries: cfg.Inference.MaxRetries,
			Logger:     logger,
		},
	)
	store := artifacts.NewStore(cfg.Artifacts.BaseDir, repos.Scalers, inference, logger)
	scorer := confidence.NewScorer(ScorerSettings(cfg.Confidence), repos.Predictions, clock, logger)
	cascade := fallback.NewForecaster(repos.Sensors, repos.Readings, repos.Sensors, FallbackSettings(cfg.Fallback), clock, logger)

	return forecasting.NewService(forecasting.Deps{
		Sensors:      repos.Sensors,
		Models:       repos.Models,
		Readings:     repos.Readings,
		Predictions:  repos.Predictions,
		Artifacts:    store,
		Scorer:       scorer,
		Fallback:     cascade,
		Recorder:     recorder,
		Basins:       repos.Basins,
		BasinSensors: repos.Sensors,
		Clock:        clock,
	}, ServiceSettings(cfg), logger)
}

// ServiceSettings maps the forecast and preprocessing sections.
func ServiceSettings(cfg *config.Config) forecasting.Settings {
	return forecasting.Settings{
		DefaultHours:       cfg.Forecast.DefaultHours,
		DefaultStepsIn:     cfg.Forecast.DefaultStepsIn,
		HistoryMultiple:    cfg.Forecast.HistoryMultiple,
		ExtrapolationDecay: cfg.Forecast.ExtrapolationDecay,
		BasinConcurrency:   cfg.Forecast.BasinConcurrency,
		Preprocess: timeseries.Options{
			Resample:  cfg.Preprocess.Resample,
			FillLimit: cfg.Preprocess.FillLimit,
			IQRK:      cfg.Preprocess.IQRK,
		},
	}
}

// ScorerSettings maps the confidence section.
func ScorerSettings(c config.ConfidenceConfig) confidence.Settings {
	return confidence.Settings{
		Weights: confidence.Weights{
			DataQuality:        c.WeightDataQuality,
			ModelConsistency:   c.WeightModelConsistency,
			HistoricalAccuracy: c.WeightHistoricalAccuracy,
			InputStability:     c.WeightInputStability,
			PredictionVariance: c.WeightPredictionVariance,
		},
		ConsistencyDecay:  c.ConsistencyDecay,
		AccuracyDecay:     c.AccuracyDecay,
		VarianceDecay:     c.VarianceDecay,
		AccuracyLookback:  c.AccuracyLookback,
		AccuracyLimit:     c.AccuracyLimit,
		AccuracyTolerance: c.AccuracyTolerance,
	}
}

// FallbackSettings maps the fallback section onto the cascade defaults.
func FallbackSettings(c config.FallbackConfig) fallback.Settings {
	s := fallback.DefaultSettings()
	s.ProxyRadiusKm = c.ProxyRadiusKm
	s.ProxyPenalty = c.ProxyPenalty
	s.HistoryWindow = time.Duration(c.HistoryHours) * time.Hour
	s.CorrelationWindow = time.Duration(c.CorrelationHours) * time.Hour
	return s
}

// NewLogger returns a JSON logger on stdout at the named level.
func NewLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
