package types

import "strings"

// EntityStatus is the lifecycle state of a sensor or device.
type EntityStatus string

const (
	StatusActive   EntityStatus = "active"
	StatusInactive EntityStatus = "inactive"
)

// Parameter is the physical quantity a sensor measures.
type Parameter string

const (
	ParamWaterLevel  Parameter = "water_level"
	ParamRainfall    Parameter = "rainfall"
	ParamTemperature Parameter = "temperature"
	ParamHumidity    Parameter = "humidity"
	ParamWindSpeed   Parameter = "wind_speed"
	ParamPressure    Parameter = "pressure"
)

// parameterDefaults are the values used by persistence forecasting when a
// sensor has no history at all.
var parameterDefaults = map[Parameter]float64{
	ParamWaterLevel:  1.0,
	ParamRainfall:    0.0,
	ParamTemperature: 25.0,
	ParamHumidity:    70.0,
	ParamWindSpeed:   5.0,
	ParamPressure:    1013.0,
}

// DefaultValue returns the neutral reading for the parameter, 0 when unknown.
func (p Parameter) DefaultValue() float64 {
	return parameterDefaults[p]
}

// ForecastMethod tags how a forecast was produced.
type ForecastMethod string

const (
	MethodModel               ForecastMethod = "model"
	MethodStatisticalFallback ForecastMethod = "statistical_fallback"
	MethodPersistenceFallback ForecastMethod = "persistence_fallback"
	proxyMethodPrefix                        = "proxy_model_"
)

// ProxyMethod returns the method tag for a forecast borrowed from sensorCode.
func ProxyMethod(sensorCode string) ForecastMethod {
	return ForecastMethod(proxyMethodPrefix + sensorCode)
}

// IsProxy reports whether the method is a proxy-sensor forecast.
func (m ForecastMethod) IsProxy() bool {
	return strings.HasPrefix(string(m), proxyMethodPrefix)
}

// IsFallback reports whether the method is any fallback tier.
func (m ForecastMethod) IsFallback() bool {
	return m == MethodStatisticalFallback || m == MethodPersistenceFallback || m.IsProxy()
}

// FallbackReason records why the fallback cascade picked its tier.
type FallbackReason string

const (
	ReasonNoModelAssigned    FallbackReason = "no_model_assigned"
	ReasonModelUnavailable   FallbackReason = "model_unavailable"
	ReasonUsingSimilarSensor FallbackReason = "using_similar_sensor"
	ReasonInsufficientData   FallbackReason = "insufficient_data"
)
