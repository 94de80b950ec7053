package types

// Telemetry metric names for CloudWatch.
const (
	MetricBasinRunSensorsOK     = "BasinRunSensorsOK"
	MetricBasinRunSensorsFailed = "BasinRunSensorsFailed"
	MetricForecastFallbacks     = "ForecastFallbacks"
	MetricForecastRuns          = "ForecastRuns"

	// Dimension Keys
	DimRiverBasin = "RiverBasin"
	DimMethod     = "Method"

	// Metric Namespace
	MetricNamespace = "Floodcast"
)
