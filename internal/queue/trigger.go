// Package queue publishes basin-run requests to SQS for the forecast worker.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqsTypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/google/uuid"

	"floodcast/internal/config"
	"floodcast/internal/types"
)

// SQSSender is the subset of *sqs.Client the trigger uses.
type SQSSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// BasinRunTrigger enqueues asynchronous basin runs.
type BasinRunTrigger struct {
	client   SQSSender
	queueURL string
	clock    types.Clock
	logger   *slog.Logger
}

// NewBasinRunTrigger returns nil when no queue is configured, which callers
// treat as "async disabled".
func NewBasinRunTrigger(client SQSSender, awsCfg config.AWSConfig, clock types.Clock, logger *slog.Logger) *BasinRunTrigger {
	if client == nil || awsCfg.BasinRunQueue == "" {
		return nil
	}
	if clock == nil {
		clock = types.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BasinRunTrigger{
		client:   client,
		queueURL: awsCfg.BasinRunQueue,
		clock:    clock,
		logger:   logger,
	}
}

// Enqueue sends a BasinRunMessage and returns its run id. The run id from
// ctx is reused when present so the API response and worker logs agree.
func (t *BasinRunTrigger) Enqueue(ctx context.Context, basinCode string, onlyActive bool, reason string) (string, error) {
	runID := types.GetRunID(ctx)
	if runID == "" {
		runID = uuid.NewString()
	}
	traceID := types.GetRequestID(ctx)
	if traceID == "" {
		traceID = runID
	}

	msg := types.BasinRunMessage{
		RunID:          runID,
		RiverBasinCode: basinCode,
		OnlyActive:     &onlyActive,
		RequestedAt:    t.clock.Now().UTC(),
		TraceID:        traceID,
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("queue: failed to marshal BasinRunMessage: %w", err)
	}

	_, err = t.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(t.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]sqsTypes.MessageAttributeValue{
			"reason": {
				DataType:    aws.String("String"),
				StringValue: aws.String(reason),
			},
		},
	})
	if err != nil {
		return "", types.NewAppErrorWithDetails(types.ErrCodeUpstreamQueue,
			"failed to enqueue basin run", err,
			map[string]any{"river_basin_code": basinCode})
	}

	t.logger.InfoContext(ctx, "basin run enqueued",
		"queue_url", t.queueURL,
		"run_id", runID,
		"trace_id", traceID,
		"river_basin_code", basinCode,
		"only_active", onlyActive,
		"reason", reason,
	)
	return runID, nil
}
