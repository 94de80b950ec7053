package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"floodcast/internal/config"
)

func testConfig() *config.Config {
	cfg := &config.Config{Environment: "local"}
	cfg.Inference.BaseURL = "http://inference.local:8501"
	cfg.Inference.Timeout = 5 * time.Second
	cfg.Forecast = config.ForecastConfig{
		DefaultHours: 6, DefaultStepHours: 0.5, DefaultStepsIn: 12,
		HistoryMultiple: 3, ExtrapolationDecay: 0.9, BasinConcurrency: 8,
	}
	cfg.Preprocess = config.PreprocessConfig{FillLimit: 2, IQRK: 1.5, Resample: 15 * time.Minute}
	cfg.Confidence = config.ConfidenceConfig{
		WeightDataQuality: 0.2, WeightModelConsistency: 0.2, WeightHistoricalAccuracy: 0.2,
		WeightInputStability: 0.2, WeightPredictionVariance: 0.2,
		ConsistencyDecay: 1, AccuracyDecay: 2, VarianceDecay: 3,
		AccuracyLookback: 48 * time.Hour, AccuracyLimit: 10, AccuracyTolerance: time.Minute,
	}
	cfg.Fallback = config.FallbackConfig{
		ProxyRadiusKm: 25, ProxyPenalty: 0.5, HistoryHours: 72, CorrelationHours: 240,
	}
	return cfg
}

func TestServiceSettings(t *testing.T) {
	s := ServiceSettings(testConfig())

	assert.Equal(t, 6, s.DefaultHours)
	assert.Equal(t, 12, s.DefaultStepsIn)
	assert.Equal(t, 3, s.HistoryMultiple)
	assert.Equal(t, 0.9, s.ExtrapolationDecay)
	assert.Equal(t, 8, s.BasinConcurrency)
	assert.Equal(t, 15*time.Minute, s.Preprocess.Resample)
	assert.Equal(t, 2, s.Preprocess.FillLimit)
	assert.Equal(t, 1.5, s.Preprocess.IQRK)
}

func TestScorerSettings(t *testing.T) {
	s := ScorerSettings(testConfig().Confidence)

	assert.Equal(t, 0.2, s.Weights.PredictionVariance)
	assert.Equal(t, 1.0, s.ConsistencyDecay)
	assert.Equal(t, 48*time.Hour, s.AccuracyLookback)
	assert.Equal(t, 10, s.AccuracyLimit)
	assert.Equal(t, time.Minute, s.AccuracyTolerance)
}

func TestFallbackSettings_KeepsCascadeDefaults(t *testing.T) {
	s := FallbackSettings(testConfig().Fallback)

	assert.Equal(t, 25.0, s.ProxyRadiusKm)
	assert.Equal(t, 0.5, s.ProxyPenalty)
	assert.Equal(t, 72*time.Hour, s.HistoryWindow)
	assert.Equal(t, 240*time.Hour, s.CorrelationWindow)
	assert.Positive(t, s.CandidateLimit)
}

func TestNewForecastService(t *testing.T) {
	svc := NewForecastService(testConfig(), NewRepositories(nil), nil, NewLogger("error"))
	require.NotNil(t, svc)
}
