// Package telemetry publishes forecast worker metrics to CloudWatch.
package telemetry

import (
	"context"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"floodcast/internal/forecasting"
	"floodcast/internal/types"
)

// CloudWatchClient is the subset of *cloudwatch.Client used here.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

var _ forecasting.OutcomeRecorder = (*CloudWatchRunMetrics)(nil)

// CloudWatchRunMetrics emits basin-run and per-sensor outcome metrics.
// Publishing failures are logged and never fail the run.
type CloudWatchRunMetrics struct {
	client    CloudWatchClient
	namespace string
	logger    *slog.Logger
}

// NewCloudWatchRunMetrics publishes to namespace, or types.MetricNamespace
// when empty.
func NewCloudWatchRunMetrics(client CloudWatchClient, namespace string, logger *slog.Logger) *CloudWatchRunMetrics {
	if namespace == "" {
		namespace = types.MetricNamespace
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CloudWatchRunMetrics{client: client, namespace: namespace, logger: logger}
}

// RecordBasinRun emits BasinRunSensorsOK and BasinRunSensorsFailed for the
// basin, plus ForecastFallbacks when any sensor fell back.
func (m *CloudWatchRunMetrics) RecordBasinRun(ctx context.Context, summary *forecasting.BasinSummary) {
	if summary == nil {
		return
	}
	basin := []cwtypes.Dimension{{
		Name:  aws.String(types.DimRiverBasin),
		Value: aws.String(summary.RiverBasinCode),
	}}

	data := []cwtypes.MetricDatum{
		count(types.MetricBasinRunSensorsOK, summary.OK, basin),
		count(types.MetricBasinRunSensorsFailed, summary.Failed, basin),
	}
	if summary.Fallbacks > 0 {
		data = append(data, count(types.MetricForecastFallbacks, summary.Fallbacks, basin))
	}

	m.put(ctx, data, "river_basin_code", summary.RiverBasinCode, "run_id", summary.RunID)
}

// RecordOutcome emits ForecastRuns by method and, for fallbacks,
// ForecastFallbacks. Fatal runs are counted under method "none".
func (m *CloudWatchRunMetrics) RecordOutcome(ctx context.Context, kind forecasting.OutcomeKind, method types.ForecastMethod) {
	label := string(method)
	switch {
	case kind == forecasting.OutcomeFatal || label == "":
		label = "none"
	case method.IsProxy():
		label = "proxy_model"
	}
	dims := []cwtypes.Dimension{{
		Name:  aws.String(types.DimMethod),
		Value: aws.String(label),
	}}

	data := []cwtypes.MetricDatum{count(types.MetricForecastRuns, 1, dims)}
	if kind == forecasting.OutcomeFallback {
		data = append(data, count(types.MetricForecastFallbacks, 1, dims))
	}
	m.put(ctx, data, "method", label, "outcome", string(kind))
}

func (m *CloudWatchRunMetrics) put(ctx context.Context, data []cwtypes.MetricDatum, logArgs ...any) {
	_, err := m.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(m.namespace),
		MetricData: data,
	})
	if err != nil {
		m.logger.ErrorContext(ctx, "failed to publish metrics", append([]any{"error", err}, logArgs...)...)
	}
}

func count(name string, n int, dims []cwtypes.Dimension) cwtypes.MetricDatum {
	return cwtypes.MetricDatum{
		MetricName: aws.String(name),
		Value:      aws.Float64(float64(n)),
		Unit:       cwtypes.StandardUnitCount,
		Dimensions: dims,
	}
}
