package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"floodcast/internal/forecasting"
	"floodcast/internal/types"
)

type fakeBasinRunner struct {
	calls  []string
	active []bool
	runIDs []string
	errs   map[string]error
}

func (f *fakeBasinRunner) RunBasin(ctx context.Context, basinCode string, onlyActive bool) (*forecasting.BasinSummary, error) {
	f.calls = append(f.calls, basinCode)
	f.active = append(f.active, onlyActive)
	f.runIDs = append(f.runIDs, types.GetRunID(ctx))
	if err := f.errs[basinCode]; err != nil {
		return nil, err
	}
	return &forecasting.BasinSummary{RiverBasinCode: basinCode, TotalSensors: 2, OK: 2}, nil
}

type fakeRecorder struct {
	summaries []*forecasting.BasinSummary
}

func (f *fakeRecorder) RecordBasinRun(_ context.Context, s *forecasting.BasinSummary) {
	f.summaries = append(f.summaries, s)
}

func newTestHandler(runner *fakeBasinRunner, rec *fakeRecorder) *Handler {
	return &Handler{
		runner:  runner,
		metrics: rec,
		clock:   types.FixedClock{T: time.Date(2025, 2, 3, 7, 0, 5, 0, time.UTC)},
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func record(id, body string) events.SQSMessage {
	return events.SQSMessage{MessageId: id, Body: body}
}

func TestHandle_Success(t *testing.T) {
	runner := &fakeBasinRunner{}
	rec := &fakeRecorder{}
	h := newTestHandler(runner, rec)

	resp, err := h.Handle(context.Background(), events.SQSEvent{Records: []events.SQSMessage{
		record("m1", `{"run_id":"run-1","river_basin_code":"BRANTAS","only_active":true,"requested_at":"2025-02-03T07:00:00Z","trace_id":"req-1"}`),
	}})

	require.NoError(t, err)
	assert.Empty(t, resp.BatchItemFailures)
	assert.Equal(t, []string{"BRANTAS"}, runner.calls)
	assert.Equal(t, []bool{true}, runner.active)
	assert.Equal(t, []string{"run-1"}, runner.runIDs)
	require.Len(t, rec.summaries, 1)
	assert.Equal(t, 2, rec.summaries[0].OK)
}

func TestHandle_OnlyActiveDefaultsToTrue(t *testing.T) {
	runner := &fakeBasinRunner{}
	h := newTestHandler(runner, &fakeRecorder{})

	resp, err := h.Handle(context.Background(), events.SQSEvent{Records: []events.SQSMessage{
		record("m1", `{"river_basin_code":"BRANTAS"}`),
		record("m2", `{"river_basin_code":"SOLO","only_active":false}`),
	}})

	require.NoError(t, err)
	assert.Empty(t, resp.BatchItemFailures)
	assert.Equal(t, []bool{true, false}, runner.active)
}

func TestHandle_PartialFailures(t *testing.T) {
	runner := &fakeBasinRunner{errs: map[string]error{
		"SOLO":    types.NewAppError(types.ErrCodeInternalDB, "failed to list basin sensors", errors.New("conn reset")),
		"UNKNOWN": types.NewAppError(types.ErrCodeNotFoundRiverBasin, "river basin not found", nil),
	}}
	rec := &fakeRecorder{}
	h := newTestHandler(runner, rec)

	resp, err := h.Handle(context.Background(), events.SQSEvent{Records: []events.SQSMessage{
		record("m1", `{"river_basin_code":"BRANTAS"}`),
		record("m2", `{"river_basin_code":"SOLO"}`),
		record("m3", `{"river_basin_code":"UNKNOWN"}`),
		record("m4", `not json`),
		record("m5", `{"run_id":"run-5"}`),
	}})

	require.NoError(t, err)
	require.Len(t, resp.BatchItemFailures, 1)
	assert.Equal(t, "m2", resp.BatchItemFailures[0].ItemIdentifier)
	assert.Equal(t, []string{"BRANTAS", "SOLO", "UNKNOWN"}, runner.calls)
	assert.Len(t, rec.summaries, 1)
}

func TestLocalEvent(t *testing.T) {
	t.Run("full SQS event", func(t *testing.T) {
		ev, err := localEvent([]byte(`{"Records":[{"messageId":"a","body":"{}"},{"messageId":"b","body":"{}"}]}`))
		require.NoError(t, err)
		assert.Len(t, ev.Records, 2)
	})

	t.Run("bare message", func(t *testing.T) {
		body := `{"river_basin_code":"BRANTAS","only_active":false}`
		ev, err := localEvent([]byte(body))
		require.NoError(t, err)
		require.Len(t, ev.Records, 1)
		assert.Equal(t, body, ev.Records[0].Body)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := localEvent([]byte(`[1,2`))
		assert.Error(t, err)
	})
}
