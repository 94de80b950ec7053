package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"floodcast/internal/forecasting"
	"floodcast/internal/types"
)

type mockCloudWatchClient struct {
	calls     []*cloudwatch.PutMetricDataInput
	returnErr error
}

func (m *mockCloudWatchClient) PutMetricData(_ context.Context, params *cloudwatch.PutMetricDataInput, _ ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	m.calls = append(m.calls, params)
	if m.returnErr != nil {
		return nil, m.returnErr
	}
	return &cloudwatch.PutMetricDataOutput{}, nil
}

func datumByName(t *testing.T, in *cloudwatch.PutMetricDataInput, name string) cwtypes.MetricDatum {
	t.Helper()
	for _, d := range in.MetricData {
		if aws.ToString(d.MetricName) == name {
			return d
		}
	}
	t.Fatalf("metric %s not published", name)
	return cwtypes.MetricDatum{}
}

func TestRecordBasinRun(t *testing.T) {
	cw := &mockCloudWatchClient{}
	m := NewCloudWatchRunMetrics(cw, "", nil)

	m.RecordBasinRun(context.Background(), &forecasting.BasinSummary{
		RunID: "run-1", RiverBasinCode: "BRANTAS", TotalSensors: 5, OK: 4, Failed: 1, Fallbacks: 2,
	})

	require.Len(t, cw.calls, 1)
	in := cw.calls[0]
	assert.Equal(t, types.MetricNamespace, aws.ToString(in.Namespace))
	require.Len(t, in.MetricData, 3)

	ok := datumByName(t, in, types.MetricBasinRunSensorsOK)
	assert.Equal(t, 4.0, aws.ToFloat64(ok.Value))
	assert.Equal(t, cwtypes.StandardUnitCount, ok.Unit)
	require.Len(t, ok.Dimensions, 1)
	assert.Equal(t, types.DimRiverBasin, aws.ToString(ok.Dimensions[0].Name))
	assert.Equal(t, "BRANTAS", aws.ToString(ok.Dimensions[0].Value))

	assert.Equal(t, 1.0, aws.ToFloat64(datumByName(t, in, types.MetricBasinRunSensorsFailed).Value))
	assert.Equal(t, 2.0, aws.ToFloat64(datumByName(t, in, types.MetricForecastFallbacks).Value))
}

func TestRecordBasinRun_NoFallbacks(t *testing.T) {
	cw := &mockCloudWatchClient{}
	NewCloudWatchRunMetrics(cw, "FloodcastStaging", nil).RecordBasinRun(context.Background(),
		&forecasting.BasinSummary{RiverBasinCode: "BRANTAS", OK: 3})

	require.Len(t, cw.calls, 1)
	assert.Equal(t, "FloodcastStaging", aws.ToString(cw.calls[0].Namespace))
	assert.Len(t, cw.calls[0].MetricData, 2)
}

func TestRecordBasinRun_NilSummary(t *testing.T) {
	cw := &mockCloudWatchClient{}
	NewCloudWatchRunMetrics(cw, "", nil).RecordBasinRun(context.Background(), nil)
	assert.Empty(t, cw.calls)
}

func TestRecordOutcome(t *testing.T) {
	tests := []struct {
		name      string
		kind      forecasting.OutcomeKind
		method    types.ForecastMethod
		wantLabel string
		wantData  int
	}{
		{name: "model", kind: forecasting.OutcomeSuccess, method: types.MethodModel, wantLabel: "model", wantData: 1},
		{name: "proxy", kind: forecasting.OutcomeFallback, method: types.ProxyMethod("WL-07"), wantLabel: "proxy_model", wantData: 2},
		{name: "persistence", kind: forecasting.OutcomeFallback, method: types.MethodPersistenceFallback, wantLabel: "persistence_fallback", wantData: 2},
		{name: "fatal", kind: forecasting.OutcomeFatal, method: types.MethodModel, wantLabel: "none", wantData: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cw := &mockCloudWatchClient{}
			NewCloudWatchRunMetrics(cw, "", nil).RecordOutcome(context.Background(), tt.kind, tt.method)

			require.Len(t, cw.calls, 1)
			in := cw.calls[0]
			require.Len(t, in.MetricData, tt.wantData)
			runs := datumByName(t, in, types.MetricForecastRuns)
			assert.Equal(t, tt.wantLabel, aws.ToString(runs.Dimensions[0].Value))
		})
	}
}

func TestPublishFailureIsSwallowed(t *testing.T) {
	cw := &mockCloudWatchClient{returnErr: errors.New("throttled")}
	m := NewCloudWatchRunMetrics(cw, "", nil)

	assert.NotPanics(t, func() {
		m.RecordOutcome(context.Background(), forecasting.OutcomeSuccess, types.MethodModel)
	})
	assert.Len(t, cw.calls, 1)
}
