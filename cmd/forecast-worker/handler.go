package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/aws/aws-lambda-go/events"

	"floodcast/internal/forecasting"
	"floodcast/internal/types"
)

// BasinRunner executes one basin run.
type BasinRunner interface {
	RunBasin(ctx context.Context, basinCode string, onlyActive bool) (*forecasting.BasinSummary, error)
}

// BasinRunRecorder publishes the summary of a finished basin run.
type BasinRunRecorder interface {
	RecordBasinRun(ctx context.Context, summary *forecasting.BasinSummary)
}

// Handler consumes basin-run messages from SQS.
type Handler struct {
	runner  BasinRunner
	metrics BasinRunRecorder
	clock   types.Clock
	logger  *slog.Logger
}

// Handle processes every record independently. Records that failed
// transiently are reported in BatchItemFailures so SQS redelivers only them.
func (h *Handler) Handle(ctx context.Context, sqsEvent events.SQSEvent) (events.SQSEventResponse, error) {
	response := events.SQSEventResponse{}

	for _, record := range sqsEvent.Records {
		if err := h.processMessage(ctx, record); err != nil {
			h.logger.ErrorContext(ctx, "basin run failed, will retry",
				"message_id", record.MessageId,
				"error", err,
			)
			response.BatchItemFailures = append(response.BatchItemFailures,
				events.SQSBatchItemFailure{ItemIdentifier: record.MessageId},
			)
		}
	}
	return response, nil
}

// processMessage returns an error only when a retry could succeed. Malformed
// messages and unknown basins are acknowledged and dropped.
func (h *Handler) processMessage(ctx context.Context, record events.SQSMessage) error {
	var msg types.BasinRunMessage
	if err := json.Unmarshal([]byte(record.Body), &msg); err != nil {
		h.logger.ErrorContext(ctx, "dropping malformed basin run message",
			"message_id", record.MessageId,
			"error", err,
		)
		return nil
	}
	if msg.RiverBasinCode == "" {
		h.logger.ErrorContext(ctx, "dropping basin run message without river_basin_code",
			"message_id", record.MessageId,
			"run_id", msg.RunID,
		)
		return nil
	}

	if msg.RunID != "" {
		ctx = types.WithRunID(ctx, msg.RunID)
	}
	if msg.TraceID != "" {
		ctx = types.WithRequestID(ctx, msg.TraceID)
	}

	logger := h.logger.With(
		"message_id", record.MessageId,
		"run_id", msg.RunID,
		"trace_id", msg.TraceID,
		"river_basin_code", msg.RiverBasinCode,
	)
	if !msg.RequestedAt.IsZero() {
		logger.InfoContext(ctx, "processing basin run",
			"queue_lag", h.clock.Now().Sub(msg.RequestedAt).Round(time.Millisecond),
			"only_active", msg.ActiveOnly(),
		)
	}

	summary, err := h.runner.RunBasin(ctx, msg.RiverBasinCode, msg.ActiveOnly())
	if err != nil {
		if types.IsCode(err, types.ErrCodeNotFoundRiverBasin) {
			logger.WarnContext(ctx, "dropping basin run for unknown river basin", "error", err)
			return nil
		}
		return err
	}

	h.metrics.RecordBasinRun(ctx, summary)
	logger.InfoContext(ctx, "basin run processed",
		"total_sensors", summary.TotalSensors,
		"ok", summary.OK,
		"failed", summary.Failed,
		"fallbacks", summary.Fallbacks,
	)
	return nil
}

// localEvent accepts either a full SQS event or a bare BasinRunMessage, so
// local runs can pipe in just the message body.
func localEvent(payload []byte) (events.SQSEvent, error) {
	var ev events.SQSEvent
	if err := json.Unmarshal(payload, &ev); err == nil && len(ev.Records) > 0 {
		return ev, nil
	}

	var msg types.BasinRunMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return events.SQSEvent{}, err
	}
	return events.SQSEvent{Records: []events.SQSMessage{{MessageId: "local", Body: string(payload)}}}, nil
}
