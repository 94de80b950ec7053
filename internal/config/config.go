// Package config defines the process configuration for the floodcast API and
// forecast worker. Configuration is loaded once at startup and is immutable
// thereafter.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File (Lowest)
//
// Any missing required value or invalid format fails startup immediately.
package config

import (
	"time"

	"floodcast/internal/types"
)

// SecretString is an alias for types.SecretString so that credentials read
// from the environment never reach a log line in clear text.
type SecretString = types.SecretString

// Config is the top-level configuration struct. Sub-components receive only
// the subsets they need.
type Config struct {
	// System Metadata
	Environment string `envconfig:"APP_ENV" default:"local" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"floodcast"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`

	Server        ServerConfig
	Database      DatabaseConfig
	AWS           AWSConfig
	Inference     InferenceConfig
	Artifacts     ArtifactConfig
	Forecast      ForecastConfig
	Preprocess    PreprocessConfig
	Confidence    ConfidenceConfig
	Fallback      FallbackConfig
	Observability ObservabilityConfig

	// Build Metadata (Injected via ldflags, not Env)
	Build BuildInfo
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string        `envconfig:"PORT" default:"8080"`
	RequestTimeout     time.Duration `envconfig:"REQUEST_TIMEOUT" default:"60s" validate:"gt=0"`
	CorsAllowedOrigins []string      `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
}

// DatabaseConfig holds database connection and pool tuning parameters.
type DatabaseConfig struct {
	URL SecretString `envconfig:"DATABASE_URL" validate:"required"`

	MaxConns          int32         `envconfig:"DB_MAX_CONNS" default:"10" validate:"gte=1"`
	MinConns          int32         `envconfig:"DB_MIN_CONNS" default:"2" validate:"gte=0"`
	MaxConnLifetime   time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	HealthCheckPeriod time.Duration `envconfig:"DB_HEALTH_CHECK_PERIOD" default:"1m"`
}

// AWSConfig holds AWS resource identifiers. BasinRunQueue may be empty, in
// which case asynchronous basin runs are disabled.
type AWSConfig struct {
	Region        string `envconfig:"AWS_REGION" default:"ap-southeast-3"`
	BasinRunQueue string `envconfig:"SQS_BASIN_RUNS" validate:"omitempty,url"`

	// LocalStack Support (Empty in Prod)
	EndpointURL string `envconfig:"AWS_ENDPOINT_URL"`
}

// InferenceConfig points at the model-serving endpoint.
type InferenceConfig struct {
	BaseURL    string        `envconfig:"INFERENCE_BASE_URL" default:"http://localhost:8501" validate:"required,url"`
	Timeout    time.Duration `envconfig:"INFERENCE_TIMEOUT" default:"10s" validate:"gt=0"`
	MaxRetries int           `envconfig:"INFERENCE_MAX_RETRIES" default:"2" validate:"gte=0,lte=10"`
}

// ArtifactConfig locates scaler files on disk.
type ArtifactConfig struct {
	BaseDir string `envconfig:"MODELS_BASE_DIR" default:"."`
}

// ForecastConfig holds run defaults for the model pipeline.
type ForecastConfig struct {
	DefaultHours       int     `envconfig:"FORECAST_DEFAULT_HOURS" default:"5" validate:"gte=1,lte=24"`
	DefaultStepHours   float64 `envconfig:"FORECAST_DEFAULT_STEP_HOURS" default:"1" validate:"gte=0.1,lte=6"`
	DefaultStepsIn     int     `envconfig:"FORECAST_DEFAULT_STEPS_IN" default:"24" validate:"gte=1"`
	HistoryMultiple    int     `envconfig:"FORECAST_HISTORY_MULTIPLE" default:"4" validate:"gte=1"`
	ExtrapolationDecay float64 `envconfig:"EXTRAPOLATION_CONFIDENCE_DECAY" default:"0.85" validate:"gt=0,lte=1"`
	BasinConcurrency   int     `envconfig:"BASIN_CONCURRENCY" default:"4" validate:"gte=1,lte=64"`
}

// PreprocessConfig tunes the time-series cleaning step.
type PreprocessConfig struct {
	FillLimit int           `envconfig:"PREPROCESS_FFILL_LIMIT" default:"3" validate:"gte=0"`
	IQRK      float64       `envconfig:"PREPROCESS_IQR_K" default:"3" validate:"gt=0"`
	Resample  time.Duration `envconfig:"PREPROCESS_RESAMPLE" default:"0s"`
}

// ConfidenceConfig holds component weights and decay rates of the
// confidence score. Weights must sum to 1.
type ConfidenceConfig struct {
	WeightDataQuality        float64 `envconfig:"CONFIDENCE_WEIGHT_DATA_QUALITY" default:"0.25" validate:"gte=0,lte=1"`
	WeightModelConsistency   float64 `envconfig:"CONFIDENCE_WEIGHT_MODEL_CONSISTENCY" default:"0.20" validate:"gte=0,lte=1"`
	WeightHistoricalAccuracy float64 `envconfig:"CONFIDENCE_WEIGHT_HISTORICAL_ACCURACY" default:"0.25" validate:"gte=0,lte=1"`
	WeightInputStability     float64 `envconfig:"CONFIDENCE_WEIGHT_INPUT_STABILITY" default:"0.15" validate:"gte=0,lte=1"`
	WeightPredictionVariance float64 `envconfig:"CONFIDENCE_WEIGHT_PREDICTION_VARIANCE" default:"0.15" validate:"gte=0,lte=1"`

	ConsistencyDecay float64 `envconfig:"CONFIDENCE_CONSISTENCY_DECAY" default:"2" validate:"gt=0"`
	AccuracyDecay    float64 `envconfig:"CONFIDENCE_ACCURACY_DECAY" default:"2" validate:"gt=0"`
	VarianceDecay    float64 `envconfig:"CONFIDENCE_VARIANCE_DECAY" default:"3" validate:"gt=0"`

	AccuracyLookback  time.Duration `envconfig:"CONFIDENCE_ACCURACY_LOOKBACK" default:"168h"`
	AccuracyLimit     int           `envconfig:"CONFIDENCE_ACCURACY_LIMIT" default:"50" validate:"gte=1"`
	AccuracyTolerance time.Duration `envconfig:"CONFIDENCE_ACCURACY_TOLERANCE" default:"5m"`
}

// FallbackConfig tunes the fallback cascade.
type FallbackConfig struct {
	ProxyRadiusKm    float64 `envconfig:"FALLBACK_PROXY_RADIUS_KM" default:"50" validate:"gt=0"`
	ProxyPenalty     float64 `envconfig:"FALLBACK_PROXY_PENALTY" default:"0.7" validate:"gt=0,lte=1"`
	HistoryHours     int     `envconfig:"FALLBACK_HISTORY_HOURS" default:"168" validate:"gte=1"`
	CorrelationHours int     `envconfig:"FALLBACK_CORRELATION_HOURS" default:"720" validate:"gte=1"`
}

// ObservabilityConfig holds telemetry settings.
type ObservabilityConfig struct {
	MetricNamespace string `envconfig:"METRIC_NAMESPACE" default:"Floodcast"`
}

// BuildInfo holds build-time metadata injected via ldflags.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// ConfigErrorType categorizes configuration loading failures.
type ConfigErrorType string

const (
	// ErrValidation indicates the configuration failed struct validation rules.
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
	// ErrParsing indicates a failure when parsing environment variable values
	// into their target types.
	ErrParsing ConfigErrorType = "PARSING_FAILED"
)
