package forecasting

import (
	"time"

	"floodcast/internal/confidence"
	"floodcast/internal/types"
)

// OutcomeKind tags how a sensor run ended.
type OutcomeKind string

const (
	// OutcomeSuccess means the assigned model produced the forecast.
	OutcomeSuccess OutcomeKind = "success"
	// OutcomeFallback means a recoverable failure was absorbed by the
	// fallback cascade. Result is still populated.
	OutcomeFallback OutcomeKind = "fallback"
	// OutcomeFatal means no forecast could be produced for the sensor.
	OutcomeFatal OutcomeKind = "fatal"
)

// Outcome is the tagged result of one sensor run.
type Outcome struct {
	Kind   OutcomeKind
	Result *Result
	// Err is the fatal error, or for OutcomeFallback the error that
	// triggered the downgrade.
	Err error
}

// Request asks for a forecast of one sensor.
type Request struct {
	SensorCode string
	// ModelCode overrides the sensor's assigned model.
	ModelCode string
	Hours     int
	// StepHours is the spacing of forecast points. Zero uses the inferred
	// sampling interval of the history.
	StepHours float64
}

// Point is one forecast value.
type Point struct {
	ForecastTime time.Time       `json:"forecast_time"`
	Value        float64         `json:"value"`
	Confidence   float64         `json:"confidence"`
	Risk         types.RiskLabel `json:"risk_label"`
	Extrapolated bool            `json:"extrapolated"`
}

// Result is the structured forecast returned to callers.
type Result struct {
	SensorCode string `json:"sensor_code"`
	// ModelCode is the model used, or the fallback method tag.
	ModelCode       string                `json:"model_code"`
	Method          types.ForecastMethod  `json:"method"`
	FallbackReason  types.FallbackReason  `json:"fallback_reason,omitempty"`
	FallbackTrigger types.ErrorCode       `json:"fallback_trigger,omitempty"`
	ProxySensorCode string                `json:"proxy_sensor_code,omitempty"`
	Confidence      float64               `json:"confidence_score"`
	Breakdown       *confidence.Breakdown `json:"confidence_breakdown,omitempty"`
	Predictions     []Point               `json:"predictions"`
	StepMinutes     int                   `json:"step_minutes"`
	Horizon         int                   `json:"horizon"`
	RunID           string                `json:"run_id"`
	RunAt           time.Time             `json:"run_at"`
	RowsInserted    int64                 `json:"rows_inserted"`
}

// records converts the result into rows for the prediction store.
func (r *Result) records() []types.PredictionRecord {
	out := make([]types.PredictionRecord, len(r.Predictions))
	for i, p := range r.Predictions {
		conf := p.Confidence
		out[i] = types.PredictionRecord{
			SensorCode:  r.SensorCode,
			ModelCode:   r.ModelCode,
			RunAt:       r.RunAt,
			ForecastFor: p.ForecastTime,
			Value:       p.Value,
			Confidence:  &conf,
			Risk:        p.Risk,
		}
	}
	return out
}

// BasinDetail reports one sensor of a basin run.
type BasinDetail struct {
	SensorCode   string               `json:"sensor_code"`
	Status       string               `json:"status"`
	Method       types.ForecastMethod `json:"method,omitempty"`
	RowsInserted int64                `json:"rows_inserted,omitempty"`
	Error        string               `json:"error,omitempty"`
	ErrorCode    types.ErrorCode      `json:"error_code,omitempty"`
}

// Basin detail statuses.
const (
	DetailOK    = "ok"
	DetailError = "error"
)

// BasinSummary aggregates a basin run. Fallback outcomes count as ok.
type BasinSummary struct {
	RunID          string        `json:"run_id"`
	RiverBasinCode string        `json:"river_basin_code"`
	TotalSensors   int           `json:"total_sensors"`
	OK             int           `json:"ok"`
	Failed         int           `json:"failed"`
	Fallbacks      int           `json:"fallbacks"`
	Details        []BasinDetail `json:"details"`
}
