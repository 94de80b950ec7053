// Package forecasting runs the forecast pipeline for a sensor: history is
// cleaned and windowed, scaled, sent to the served model, denormalized,
// extended to the requested horizon, risk-classified and scored. Any
// recoverable failure on that path downgrades the run to the fallback
// cascade instead of failing it. Only a missing sensor, an invalid request
// or a failed write are fatal.
package forecasting

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"slices"
	"time"

	"github.com/google/uuid"

	"floodcast/internal/artifacts"
	"floodcast/internal/confidence"
	"floodcast/internal/fallback"
	"floodcast/internal/horizon"
	"floodcast/internal/risk"
	"floodcast/internal/scaling"
	"floodcast/internal/sequence"
	"floodcast/internal/timeseries"
	"floodcast/internal/types"
)

// Limits accepted for a single run.
const (
	MinHours     = 1
	MaxHours     = 24
	MinStepHours = 0.1
	MaxStepHours = 6.0

	// MaxHorizon bounds the points of one run: MaxHours at MinStepHours.
	MaxHorizon = 240

	// FallbackDefaultHours is the horizon of a fallback-only run when none
	// is requested.
	FallbackDefaultHours = 6
)

// SensorLookup resolves sensors.
type SensorLookup interface {
	SensorByCode(ctx context.Context, code string) (*types.Sensor, error)
}

// ModelLookup resolves catalog models.
type ModelLookup interface {
	ModelByCode(ctx context.Context, code string) (*types.Model, error)
}

// ReadingSource returns the newest readings of a sensor, newest first.
type ReadingSource interface {
	LatestReadings(ctx context.Context, sensorCode string, limit int) ([]types.TimeSeriesPoint, error)
}

// PredictionSink appends a run's records atomically.
type PredictionSink interface {
	InsertBatch(ctx context.Context, records []types.PredictionRecord) (int64, error)
}

// ArtifactResolver provides the served model and scaler pair of a run.
type ArtifactResolver interface {
	Model(ctx context.Context, m *types.Model) (artifacts.Predictor, error)
	ScalerPair(ctx context.Context, modelCode, sensorCode string) (scaling.Pair, error)
}

// FallbackForecaster runs the fallback cascade for a resolved sensor.
type FallbackForecaster interface {
	Forecast(ctx context.Context, sensor *types.Sensor, req fallback.Request) *fallback.Result
}

// OutcomeRecorder observes every finished sensor run.
type OutcomeRecorder interface {
	RecordOutcome(ctx context.Context, kind OutcomeKind, method types.ForecastMethod)
}

// BasinSensorLister lists the forecastable sensors of a basin.
type BasinSensorLister interface {
	BasinSensors(ctx context.Context, basinCode string, onlyActive bool) ([]types.Sensor, error)
}

// BasinLookup resolves river basins.
type BasinLookup interface {
	ByCode(ctx context.Context, code string) (*types.RiverBasin, error)
}

// Settings tune the orchestrator.
type Settings struct {
	DefaultHours       int
	DefaultStepsIn     int
	HistoryMultiple    int
	ExtrapolationDecay float64
	BasinConcurrency   int
	Preprocess         timeseries.Options
}

// DefaultSettings mirrors the configuration defaults.
func DefaultSettings() Settings {
	return Settings{
		DefaultHours:       5,
		DefaultStepsIn:     24,
		HistoryMultiple:    4,
		ExtrapolationDecay: 0.85,
		BasinConcurrency:   4,
		Preprocess:         timeseries.DefaultOptions(),
	}
}

// Deps are the collaborators of a Service. Recorder, Basins and BasinSensors
// may be nil.
type Deps struct {
	Sensors      SensorLookup
	Models       ModelLookup
	Readings     ReadingSource
	Predictions  PredictionSink
	Artifacts    ArtifactResolver
	Scorer       *confidence.Scorer
	Fallback     FallbackForecaster
	Recorder     OutcomeRecorder
	Basins       BasinLookup
	BasinSensors BasinSensorLister
	Clock        types.Clock
}

// Service orchestrates forecast runs. It is safe for concurrent use.
type Service struct {
	deps     Deps
	settings Settings
	logger   *slog.Logger
}

// NewService creates a Service.
func NewService(deps Deps, settings Settings, logger *slog.Logger) *Service {
	if deps.Clock == nil {
		deps.Clock = types.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{deps: deps, settings: settings, logger: logger}
}

// RunSensor runs one sensor and returns its result, or the fatal error.
func (s *Service) RunSensor(ctx context.Context, req Request) (*Result, error) {
	out := s.Run(ctx, req)
	if out.Kind == OutcomeFatal {
		return nil, out.Err
	}
	return out.Result, nil
}

// Run runs one sensor and reports the tagged outcome.
func (s *Service) Run(ctx context.Context, req Request) Outcome {
	ctx, runID := s.ensureRunID(ctx)
	out := s.run(ctx, runID, req)

	method := types.MethodModel
	if out.Result != nil {
		method = out.Result.Method
	}
	if s.deps.Recorder != nil {
		s.deps.Recorder.RecordOutcome(ctx, out.Kind, method)
	}
	return out
}

func (s *Service) run(ctx context.Context, runID string, req Request) Outcome {
	if req.Hours == 0 {
		req.Hours = s.settings.DefaultHours
	}
	if err := validate(req); err != nil {
		return Outcome{Kind: OutcomeFatal, Err: err}
	}

	sensor, err := s.deps.Sensors.SensorByCode(ctx, req.SensorCode)
	if err != nil {
		return Outcome{Kind: OutcomeFatal, Err: err}
	}
	runAt := s.deps.Clock.Now()

	modelCode := req.ModelCode
	if modelCode == "" && sensor.HasModel() {
		modelCode = *sensor.ModelCode
	}
	if modelCode == "" {
		trigger := types.NewAppError(types.ErrCodeNoModelAssigned, "sensor has no model assigned", nil)
		return s.fallbackOutcome(ctx, runID, runAt, sensor, req, trigger)
	}

	res, err := s.modelRun(ctx, sensor, modelCode, req)
	if err != nil {
		if !recoverable(err) {
			return Outcome{Kind: OutcomeFatal, Err: err}
		}
		return s.fallbackOutcome(ctx, runID, runAt, sensor, req, err)
	}

	res.RunID = runID
	res.RunAt = runAt
	if err := s.persist(ctx, res); err != nil {
		return Outcome{Kind: OutcomeFatal, Result: res, Err: err}
	}

	s.logger.InfoContext(ctx, "forecast completed",
		"sensor_code", sensor.Code,
		"model_code", res.ModelCode,
		"horizon", res.Horizon,
		"confidence", res.Confidence,
		"rows_inserted", res.RowsInserted,
	)
	return Outcome{Kind: OutcomeSuccess, Result: res}
}

// modelRun is the model path. Every error it returns is an AppError.
func (s *Service) modelRun(ctx context.Context, sensor *types.Sensor, modelCode string, req Request) (*Result, error) {
	model, err := s.deps.Models.ModelByCode(ctx, modelCode)
	if err != nil {
		return nil, err
	}
	shape, err := sequence.LookupShape(model.Code)
	if err != nil {
		return nil, err
	}

	steps := s.settings.DefaultStepsIn
	if model.NStepsIn != nil && *model.NStepsIn > 0 {
		steps = *model.NStepsIn
	}
	need := max(steps, shape.Features)

	latest, err := s.deps.Readings.LatestReadings(ctx, sensor.Code, need*s.settings.HistoryMultiple)
	if err != nil {
		return nil, err
	}
	if len(latest) == 0 {
		return nil, types.NewInsufficientDataError(need, 0)
	}
	slices.Reverse(latest)

	series, err := timeseries.Preprocess(latest, need, s.settings.Preprocess)
	if err != nil {
		return nil, err
	}
	window, err := sequence.Build(series.Values, steps, shape.Features)
	if err != nil {
		return nil, err
	}

	pair, err := s.deps.Artifacts.ScalerPair(ctx, model.Code, sensor.Code)
	if err != nil {
		return nil, err
	}
	scaled, err := scaling.ApplyInput(window, pair.Input)
	if err != nil {
		return nil, err
	}

	predictor, err := s.deps.Artifacts.Model(ctx, model)
	if err != nil {
		return nil, err
	}
	raw, err := predictor.Predict(ctx, sequence.Rows(scaled))
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, types.NewAppError(types.ErrCodeUpstreamInference, "model returned no output", nil)
	}
	native, err := scaling.ApplyOutput(raw, pair.Output)
	if err != nil {
		return nil, err
	}

	step := stepFor(req, series.Step())
	h := horizonFor(req.Hours, step)
	ext := horizon.Extend(native, h)

	breakdown := s.deps.Scorer.Breakdown(ctx, sensor.Code, model.Code, window, ext.Values[:ext.Native])
	cutoffs := risk.CutoffsOf(sensor)

	points := make([]Point, len(ext.Values))
	conf := breakdown.Overall
	for i, v := range ext.Values {
		if ext.Extrapolated(i) {
			conf *= s.settings.ExtrapolationDecay
		}
		points[i] = Point{
			ForecastTime: series.Last().Add(step * time.Duration(i+1)),
			Value:        v,
			Confidence:   conf,
			Risk:         risk.Classify(v, cutoffs),
			Extrapolated: ext.Extrapolated(i),
		}
	}

	return &Result{
		SensorCode:  sensor.Code,
		ModelCode:   model.Code,
		Method:      types.MethodModel,
		Confidence:  meanConfidence(points),
		Breakdown:   &breakdown,
		Predictions: points,
		StepMinutes: int(step / time.Minute),
		Horizon:     h,
	}, nil
}

// fallbackOutcome runs the cascade after trigger made the model path
// unusable.
func (s *Service) fallbackOutcome(ctx context.Context, runID string, runAt time.Time, sensor *types.Sensor, req Request, trigger error) Outcome {
	reason := types.ReasonModelUnavailable
	switch types.CodeOf(trigger) {
	case types.ErrCodeNoModelAssigned:
		reason = types.ReasonNoModelAssigned
	case types.ErrCodeInsufficientData:
		reason = types.ReasonInsufficientData
	}

	step := stepFor(req, time.Hour)
	res := s.fromFallback(ctx, sensor, fallback.Request{
		Horizon: horizonFor(req.Hours, step),
		Step:    step,
		Reason:  reason,
	})
	res.RunID = runID
	res.RunAt = runAt
	res.FallbackTrigger = types.CodeOf(trigger)

	s.logger.WarnContext(ctx, "forecast downgraded to fallback",
		"sensor_code", sensor.Code,
		"method", res.Method,
		"fallback_reason", res.FallbackReason,
		"error", trigger,
	)

	if err := s.persist(ctx, res); err != nil {
		return Outcome{Kind: OutcomeFatal, Result: res, Err: err}
	}
	return Outcome{Kind: OutcomeFallback, Result: res, Err: trigger}
}

// RunFallback runs only the fallback cascade for a sensor. Its forecast is
// returned but not persisted.
func (s *Service) RunFallback(ctx context.Context, sensorCode string, hours int) (*Result, error) {
	if hours == 0 {
		hours = FallbackDefaultHours
	}
	if hours < MinHours || hours > MaxHours {
		return nil, horizonError(hours)
	}
	ctx, runID := s.ensureRunID(ctx)

	sensor, err := s.deps.Sensors.SensorByCode(ctx, sensorCode)
	if err != nil {
		return nil, err
	}
	res := s.fromFallback(ctx, sensor, fallback.Request{Horizon: hours, Step: time.Hour})
	res.RunID = runID
	res.RunAt = s.deps.Clock.Now()

	if s.deps.Recorder != nil {
		s.deps.Recorder.RecordOutcome(ctx, OutcomeFallback, res.Method)
	}
	return res, nil
}

func (s *Service) fromFallback(ctx context.Context, sensor *types.Sensor, req fallback.Request) *Result {
	fb := s.deps.Fallback.Forecast(ctx, sensor, req)
	cutoffs := risk.CutoffsOf(sensor)

	points := make([]Point, len(fb.Points))
	for i, p := range fb.Points {
		points[i] = Point{
			ForecastTime: p.Timestamp,
			Value:        p.Value,
			Confidence:   p.Confidence,
			Risk:         risk.Classify(p.Value, cutoffs),
		}
	}
	return &Result{
		SensorCode:      sensor.Code,
		ModelCode:       string(fb.Method),
		Method:          fb.Method,
		FallbackReason:  fb.Reason,
		ProxySensorCode: fb.ProxySensorCode,
		Confidence:      meanConfidence(points),
		Predictions:     points,
		StepMinutes:     int(req.Step / time.Minute),
		Horizon:         req.Horizon,
	}
}

func (s *Service) persist(ctx context.Context, res *Result) error {
	if s.deps.Predictions == nil {
		return nil
	}
	n, err := s.deps.Predictions.InsertBatch(ctx, res.records())
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to persist predictions",
			"sensor_code", res.SensorCode,
			"model_code", res.ModelCode,
			"error", err,
		)
		return err
	}
	res.RowsInserted = n
	return nil
}

func (s *Service) ensureRunID(ctx context.Context) (context.Context, string) {
	if id := types.GetRunID(ctx); id != "" {
		return ctx, id
	}
	id := uuid.NewString()
	return types.WithRunID(ctx, id), id
}

// recoverable reports whether err may be absorbed by the fallback cascade.
// Database failures on the model path (model or reading lookup) degrade too,
// since the cascade reads history through its own store.
func recoverable(err error) bool {
	var appErr *types.AppError
	if !errors.As(err, &appErr) {
		return false
	}
	switch appErr.Code {
	case types.ErrCodeNotFoundSensor:
		return false
	case types.ErrCodeNotFoundModel,
		types.ErrCodeInsufficientData,
		types.ErrCodeUnknownModelRequirements,
		types.ErrCodeScalerShapeMismatch,
		types.ErrCodeModelLoadFailed,
		types.ErrCodeInternalArtifact,
		types.ErrCodeInternalDB,
		types.ErrCodeUpstreamInference,
		types.ErrCodeUpstreamUnavailable,
		types.ErrCodeUpstreamRateLimited:
		return true
	}
	return false
}

func validate(req Request) error {
	if req.SensorCode == "" {
		return types.NewAppError(types.ErrCodeValidationMissingField, "sensor_code is required", nil)
	}
	if req.Hours < MinHours || req.Hours > MaxHours {
		return horizonError(req.Hours)
	}
	if req.StepHours != 0 && !ValidStepHours(req.StepHours) {
		return StepSizeError(req.StepHours)
	}
	return nil
}

// ValidStepHours reports whether step lies in [MinStepHours, MaxStepHours].
func ValidStepHours(step float64) bool {
	return step >= MinStepHours && step <= MaxStepHours
}

// StepSizeError is the validation error for a step outside the accepted range.
func StepSizeError(step float64) error {
	return types.NewAppErrorWithDetails(types.ErrCodeValidationStepSize,
		"step_hours must be between 0.1 and 6", nil, map[string]any{"step_hours": step})
}

func horizonError(hours int) error {
	return types.NewAppErrorWithDetails(types.ErrCodeValidationHorizon,
		"hours must be between 1 and 24", nil, map[string]any{"hours": hours})
}

const minStep = time.Duration(MinStepHours * float64(time.Hour))

// stepFor returns the requested step, or inferred when none was requested.
// An inferred interval finer than MinStepHours is widened to it.
func stepFor(req Request, inferred time.Duration) time.Duration {
	if req.StepHours > 0 {
		return time.Duration(req.StepHours * float64(time.Hour))
	}
	if inferred <= 0 {
		return time.Hour
	}
	return max(inferred, minStep)
}

// horizonFor returns ceil(hours / step), clamped to [1, MaxHorizon].
func horizonFor(hours int, step time.Duration) int {
	if step <= 0 {
		return 1
	}
	h := math.Ceil(float64(time.Duration(hours)*time.Hour) / float64(step))
	if h > MaxHorizon {
		return MaxHorizon
	}
	return max(int(h), 1)
}

func meanConfidence(points []Point) float64 {
	if len(points) == 0 {
		return 0
	}
	var sum float64
	for _, p := range points {
		sum += p.Confidence
	}
	return sum / float64(len(points))
}
