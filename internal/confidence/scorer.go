// Package confidence rates how far a forecast can be trusted, combining five
// independent signals into one weighted score in [0, 1].
package confidence

import (
	"context"
	"log/slog"
	"math"
	"time"

	"gonum.org/v1/gonum/mat"

	"floodcast/internal/types"
)

// Weights are the component weights. They are expected to sum to 1.
type Weights struct {
	DataQuality        float64
	ModelConsistency   float64
	HistoricalAccuracy float64
	InputStability     float64
	PredictionVariance float64
}

// Settings parameterize the scorer.
type Settings struct {
	Weights Weights

	ConsistencyDecay float64
	AccuracyDecay    float64
	VarianceDecay    float64

	// AccuracyLookback bounds how far back past predictions are considered,
	// AccuracyLimit how many, and AccuracyTolerance how far an observation
	// may sit from the predicted timestamp and still count as its actual.
	AccuracyLookback  time.Duration
	AccuracyLimit     int
	AccuracyTolerance time.Duration
}

// DefaultSettings returns the calibrated production weights and decays.
func DefaultSettings() Settings {
	return Settings{
		Weights: Weights{
			DataQuality:        0.25,
			ModelConsistency:   0.20,
			HistoricalAccuracy: 0.25,
			InputStability:     0.15,
			PredictionVariance: 0.15,
		},
		ConsistencyDecay:  2,
		AccuracyDecay:     2,
		VarianceDecay:     3,
		AccuracyLookback:  7 * 24 * time.Hour,
		AccuracyLimit:     50,
		AccuracyTolerance: 5 * time.Minute,
	}
}

// AccuracySource returns past predictions of a sensor/model pair matched
// with the reading observed at their target time.
type AccuracySource interface {
	MatchedPredictions(ctx context.Context, sensorCode, modelCode string, since time.Time, limit int, tolerance time.Duration) ([]types.AccuracyPair, error)
}

// Breakdown exposes every component next to the weighted overall score.
type Breakdown struct {
	DataQuality        float64 `json:"data_quality"`
	ModelConsistency   float64 `json:"model_consistency"`
	HistoricalAccuracy float64 `json:"historical_accuracy"`
	InputStability     float64 `json:"input_stability"`
	PredictionVariance float64 `json:"prediction_variance"`
	Overall            float64 `json:"overall"`
}

// Scorer computes confidence breakdowns. It is safe for concurrent use.
type Scorer struct {
	settings Settings
	source   AccuracySource
	clock    types.Clock
	logger   *slog.Logger
}

// NewScorer creates a Scorer. A nil source makes historical accuracy always
// report its neutral baseline.
func NewScorer(settings Settings, source AccuracySource, clock types.Clock, logger *slog.Logger) *Scorer {
	if clock == nil {
		clock = types.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scorer{settings: settings, source: source, clock: clock, logger: logger}
}

// Settings returns the scorer's configuration.
func (s *Scorer) Settings() Settings { return s.settings }

// Breakdown scores a forecast from its input window and predicted values.
func (s *Scorer) Breakdown(ctx context.Context, sensorCode, modelCode string, window mat.Matrix, preds []float64) Breakdown {
	b := Breakdown{
		DataQuality:        DataQuality(window),
		ModelConsistency:   ModelConsistency(preds, s.settings.ConsistencyDecay),
		HistoricalAccuracy: s.historicalAccuracy(ctx, sensorCode, modelCode),
		InputStability:     InputStability(window),
		PredictionVariance: PredictionVariance(preds, s.settings.VarianceDecay),
	}
	b.Overall = s.settings.Weights.combine(b)
	return b
}

// Score returns only the overall confidence.
func (s *Scorer) Score(ctx context.Context, sensorCode, modelCode string, window mat.Matrix, preds []float64) float64 {
	return s.Breakdown(ctx, sensorCode, modelCode, window, preds).Overall
}

func (s *Scorer) historicalAccuracy(ctx context.Context, sensorCode, modelCode string) float64 {
	if s.source == nil {
		return neutralAccuracy
	}
	since := s.clock.Now().Add(-s.settings.AccuracyLookback)
	pairs, err := s.source.MatchedPredictions(ctx, sensorCode, modelCode, since, s.settings.AccuracyLimit, s.settings.AccuracyTolerance)
	if err != nil {
		s.logger.WarnContext(ctx, "historical accuracy unavailable, using baseline",
			"sensor_code", sensorCode,
			"model_code", modelCode,
			"error", err,
		)
		return neutralAccuracy
	}
	return HistoricalAccuracy(pairs, s.settings.AccuracyDecay)
}

func (w Weights) combine(b Breakdown) float64 {
	sum := b.DataQuality*w.DataQuality +
		b.ModelConsistency*w.ModelConsistency +
		b.HistoricalAccuracy*w.HistoricalAccuracy +
		b.InputStability*w.InputStability +
		b.PredictionVariance*w.PredictionVariance
	return math.Max(0, math.Min(1, sum))
}
