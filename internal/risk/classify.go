// Package risk maps predicted values onto a sensor's alert cutoffs.
package risk

import "floodcast/internal/types"

// Cutoffs are a sensor's ordered thresholds. A nil entry means the sensor is
// not configured for classification.
type Cutoffs struct {
	Safe    *float64
	Warning *float64
	Danger  *float64
}

// CutoffsOf extracts the thresholds of a sensor.
func CutoffsOf(s *types.Sensor) Cutoffs {
	return Cutoffs{Safe: s.ThresholdSafe, Warning: s.ThresholdWarning, Danger: s.ThresholdDanger}
}

// Complete reports whether all three cutoffs are set.
func (c Cutoffs) Complete() bool {
	return c.Safe != nil && c.Warning != nil && c.Danger != nil
}

// Classify labels value against c. It returns RiskUndefined unless all three
// cutoffs are present.
func Classify(value float64, c Cutoffs) types.RiskLabel {
	if !c.Complete() {
		return types.RiskUndefined
	}
	switch {
	case value >= *c.Danger:
		return types.RiskDanger
	case value >= *c.Warning:
		return types.RiskWarning
	default:
		return types.RiskSafe
	}
}
