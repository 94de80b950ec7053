package db

import (
	"context"
	"time"

	"floodcast/internal/types"
)

// PredictionRepository appends forecast rows to data_prediction and matches
// past forecasts against observations.
type PredictionRepository struct {
	db DBTX
}

// NewPredictionRepository creates a PredictionRepository.
func NewPredictionRepository(db DBTX) *PredictionRepository {
	return &PredictionRepository{db: db}
}

// InsertBatch writes all records in a single statement, so a run is either
// fully persisted or not at all. It returns the number of rows inserted.
func (r *PredictionRepository) InsertBatch(ctx context.Context, records []types.PredictionRecord) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}

	n := len(records)
	sensorCodes := make([]string, n)
	modelCodes := make([]string, n)
	runAts := make([]time.Time, n)
	forecastFors := make([]time.Time, n)
	values := make([]float64, n)
	confidences := make([]*float64, n)
	risks := make([]*string, n)

	for i, rec := range records {
		sensorCodes[i] = rec.SensorCode
		modelCodes[i] = rec.ModelCode
		runAts[i] = rec.RunAt
		forecastFors[i] = rec.ForecastFor
		values[i] = rec.Value
		confidences[i] = rec.Confidence
		risks[i] = nilIfEmpty(string(rec.Risk))
	}

	tag, err := r.db.Exec(ctx,
		`INSERT INTO data_prediction (
			sensor_code, model_code, prediction_run_at, prediction_for_ts,
			predicted_value, confidence_score, threshold_prediction_status
		)
		SELECT * FROM unnest(
			$1::text[], $2::text[], $3::timestamptz[], $4::timestamptz[],
			$5::float8[], $6::float8[], $7::text[]
		)`,
		sensorCodes, modelCodes, runAts, forecastFors, values, confidences, risks,
	)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to insert predictions", err)
	}
	return tag.RowsAffected(), nil
}

// MatchedPredictions returns up to limit past predictions of the sensor and
// model whose target time lies in [since, now], each paired with the reading
// closest to the target within tolerance. Newest targets come first.
func (r *PredictionRepository) MatchedPredictions(ctx context.Context, sensorCode, modelCode string, since time.Time, limit int, tolerance time.Duration) ([]types.AccuracyPair, error) {
	rows, err := r.db.Query(ctx,
		`SELECT p.prediction_for_ts, p.predicted_value, a.value
		 FROM data_prediction p
		 JOIN LATERAL (
			SELECT da.value
			FROM data_actual da
			WHERE da.sensor_code = p.sensor_code
			  AND da.value IS NOT NULL
			  AND da.received_at BETWEEN p.prediction_for_ts - $5 * interval '1 second'
			                         AND p.prediction_for_ts + $5 * interval '1 second'
			ORDER BY abs(extract(epoch FROM da.received_at - p.prediction_for_ts))
			LIMIT 1
		 ) a ON true
		 WHERE p.sensor_code = $1
		   AND p.model_code = $2
		   AND p.prediction_for_ts >= $3
		   AND p.prediction_for_ts <= now()
		 ORDER BY p.prediction_for_ts DESC
		 LIMIT $4`,
		sensorCode, modelCode, since, limit, tolerance.Seconds(),
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query matched predictions", err)
	}
	defer rows.Close()

	var out []types.AccuracyPair
	for rows.Next() {
		var p types.AccuracyPair
		if err := rows.Scan(&p.ForecastFor, &p.Predicted, &p.Actual); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan matched prediction", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating matched predictions", err)
	}
	return out, nil
}

// nilIfEmpty maps "" to SQL NULL for nullable text columns.
func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
