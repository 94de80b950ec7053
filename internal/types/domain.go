package types

import (
	"encoding/json"
	"time"
)

// TimeSeriesPoint is one observed reading of a sensor.
type TimeSeriesPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// Sensor is a measuring channel mounted on a device. Threshold cutoffs are
// optional; a sensor without all three cannot be risk-classified.
type Sensor struct {
	ID               int64        `json:"id"`
	Code             string       `json:"code"`
	Name             string       `json:"name,omitempty"`
	Parameter        Parameter    `json:"parameter"`
	Unit             string       `json:"unit,omitempty"`
	DeviceCode       string       `json:"device_code"`
	RiverBasinCode   string       `json:"river_basin_code,omitempty"`
	ModelCode        *string      `json:"model_code"`
	ThresholdSafe    *float64     `json:"threshold_safe,omitempty"`
	ThresholdWarning *float64     `json:"threshold_warning,omitempty"`
	ThresholdDanger  *float64     `json:"threshold_danger,omitempty"`
	Status           EntityStatus `json:"status"`
	Latitude         *float64     `json:"latitude,omitempty"`
	Longitude        *float64     `json:"longitude,omitempty"`
	LastSeen         *time.Time   `json:"last_seen,omitempty"`
}

// HasModel reports whether a default model is assigned to the sensor.
func (s *Sensor) HasModel() bool {
	return s.ModelCode != nil && *s.ModelCode != ""
}

// HasLocation reports whether the sensor's device carries coordinates.
func (s *Sensor) HasLocation() bool {
	return s.Latitude != nil && s.Longitude != nil
}

// Model is a trained forecasting model registered in the catalog.
type Model struct {
	ID        int64   `json:"id"`
	Code      string  `json:"code"`
	Name      string  `json:"name"`
	Type      string  `json:"type"`
	Version   *string `json:"version,omitempty"`
	FilePath  *string `json:"file_path"`
	NStepsIn  *int    `json:"n_steps_in,omitempty"`
	NStepsOut *int    `json:"n_steps_out,omitempty"`
	IsActive  bool    `json:"is_active"`
}

// RiverBasin groups devices for basin-wide runs.
type RiverBasin struct {
	ID   int64  `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}

// ScalerAxis identifies which side of the model a scaler normalizes.
type ScalerAxis string

const (
	ScalerAxisInput  ScalerAxis = "x"
	ScalerAxisOutput ScalerAxis = "y"
)

// ScalerArtifact is the catalog row pointing at a fitted scaler file.
type ScalerArtifact struct {
	ID         int64      `json:"id"`
	ModelCode  string     `json:"model_code"`
	SensorCode *string    `json:"sensor_code,omitempty"`
	Axis       ScalerAxis `json:"io_axis"`
	Technique  string     `json:"technique"`
	FilePath   string     `json:"file_path"`
}

// PredictionRecord is one persisted forecast value.
type PredictionRecord struct {
	SensorCode  string    `json:"sensor_code"`
	ModelCode   string    `json:"model_code"`
	RunAt       time.Time `json:"prediction_run_at"`
	ForecastFor time.Time `json:"prediction_for_ts"`
	Value       float64   `json:"predicted_value"`
	Confidence  *float64  `json:"confidence_score,omitempty"`
	Risk        RiskLabel `json:"threshold_prediction_status"`
}

// AccuracyPair is a past prediction matched to the observed value at the
// time it targeted.
type AccuracyPair struct {
	ForecastFor time.Time `json:"forecast_for"`
	Predicted   float64   `json:"predicted"`
	Actual      float64   `json:"actual"`
}

// RiskLabel is the discrete classification of a value against sensor cutoffs.
// The zero value means undefined and is encoded as JSON null.
type RiskLabel string

const (
	RiskUndefined RiskLabel = ""
	RiskSafe      RiskLabel = "safe"
	RiskWarning   RiskLabel = "warning"
	RiskDanger    RiskLabel = "danger"
)

// Rank orders labels for comparison; undefined ranks below safe.
func (l RiskLabel) Rank() int {
	switch l {
	case RiskSafe:
		return 1
	case RiskWarning:
		return 2
	case RiskDanger:
		return 3
	default:
		return 0
	}
}

// MarshalJSON encodes RiskUndefined as null.
func (l RiskLabel) MarshalJSON() ([]byte, error) {
	if l == RiskUndefined {
		return []byte("null"), nil
	}
	return json.Marshal(string(l))
}

// UnmarshalJSON accepts null as RiskUndefined.
func (l *RiskLabel) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*l = RiskUndefined
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	*l = RiskLabel(s)
	return nil
}
