package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"floodcast/internal/types"
)

// ReadingRepository reads observed values from data_actual.
type ReadingRepository struct {
	db DBTX
}

// NewReadingRepository creates a ReadingRepository.
func NewReadingRepository(db DBTX) *ReadingRepository {
	return &ReadingRepository{db: db}
}

// LatestReadings returns up to limit readings of the sensor, newest first.
func (r *ReadingRepository) LatestReadings(ctx context.Context, sensorCode string, limit int) ([]types.TimeSeriesPoint, error) {
	rows, err := r.db.Query(ctx,
		`SELECT received_at, value
		 FROM data_actual
		 WHERE sensor_code = $1 AND value IS NOT NULL
		 ORDER BY received_at DESC
		 LIMIT $2`,
		sensorCode, limit,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query latest readings", err)
	}
	return collectPoints(rows)
}

// ReadingsSince returns the sensor's readings at or after since, oldest first.
func (r *ReadingRepository) ReadingsSince(ctx context.Context, sensorCode string, since time.Time) ([]types.TimeSeriesPoint, error) {
	rows, err := r.db.Query(ctx,
		`SELECT received_at, value
		 FROM data_actual
		 WHERE sensor_code = $1 AND received_at >= $2 AND value IS NOT NULL
		 ORDER BY received_at ASC`,
		sensorCode, since,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query readings", err)
	}
	return collectPoints(rows)
}

func collectPoints(rows pgx.Rows) ([]types.TimeSeriesPoint, error) {
	defer rows.Close()

	var out []types.TimeSeriesPoint
	for rows.Next() {
		var p types.TimeSeriesPoint
		if err := rows.Scan(&p.Timestamp, &p.Value); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan reading row", err)
		}
		p.Timestamp = p.Timestamp.UTC()
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating reading rows", err)
	}
	return out, nil
}
