package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"floodcast/internal/types"
)

// SensorRepository reads sensors joined with their device, which carries the
// river basin and coordinates.
type SensorRepository struct {
	db DBTX
}

// NewSensorRepository creates a SensorRepository.
func NewSensorRepository(db DBTX) *SensorRepository {
	return &SensorRepository{db: db}
}

// sensorColumns must match the scan order in scanSensor.
const sensorColumns = `s.id, s.code, COALESCE(s.name, ''), s.parameter, COALESCE(s.unit, ''),
	s.device_code, COALESCE(d.river_basin_code, ''), s.model_code,
	s.threshold_safe, s.threshold_warning, s.threshold_danger,
	s.status, d.latitude, d.longitude, s.last_seen`

const sensorFrom = `FROM mas_sensors s JOIN mas_devices d ON d.code = s.device_code`

func scanSensor(row pgx.Row) (*types.Sensor, error) {
	var s types.Sensor
	err := row.Scan(
		&s.ID,
		&s.Code,
		&s.Name,
		&s.Parameter,
		&s.Unit,
		&s.DeviceCode,
		&s.RiverBasinCode,
		&s.ModelCode,
		&s.ThresholdSafe,
		&s.ThresholdWarning,
		&s.ThresholdDanger,
		&s.Status,
		&s.Latitude,
		&s.Longitude,
		&s.LastSeen,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func collectSensors(rows pgx.Rows, what string) ([]types.Sensor, error) {
	defer rows.Close()

	var out []types.Sensor
	for rows.Next() {
		s, err := scanSensor(rows)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan "+what, err)
		}
		out = append(out, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating "+what, err)
	}
	return out, nil
}

// SensorByCode returns the sensor with the given code or not_found_sensor.
func (r *SensorRepository) SensorByCode(ctx context.Context, code string) (*types.Sensor, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+sensorColumns+` `+sensorFrom+` WHERE s.code = $1`,
		code,
	)
	s, err := scanSensor(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppErrorWithDetails(types.ErrCodeNotFoundSensor,
				"sensor not found", nil, map[string]any{"sensor_code": code})
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve sensor", err)
	}
	return s, nil
}

// List returns every sensor ordered by code.
func (r *SensorRepository) List(ctx context.Context) ([]types.Sensor, error) {
	rows, err := r.db.Query(ctx, `SELECT `+sensorColumns+` `+sensorFrom+` ORDER BY s.code`)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list sensors", err)
	}
	return collectSensors(rows, "sensor row")
}

// BasinSensors returns the sensors with an assigned model on devices of the
// basin. With onlyActive both the device and the sensor must be active.
func (r *SensorRepository) BasinSensors(ctx context.Context, basinCode string, onlyActive bool) ([]types.Sensor, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+sensorColumns+` `+sensorFrom+`
		 WHERE d.river_basin_code = $1
		   AND s.model_code IS NOT NULL AND s.model_code <> ''
		   AND (NOT $2 OR (s.status = 'active' AND d.status = 'active'))
		 ORDER BY s.code`,
		basinCode, onlyActive,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list basin sensors", err)
	}
	return collectSensors(rows, "basin sensor row")
}

// SimilarSensors returns up to limit active sensors measuring the same
// parameter with an assigned model, nearest first by planar degree distance.
// A sensor without coordinates has no neighbours.
func (r *SensorRepository) SimilarSensors(ctx context.Context, sensor *types.Sensor, limit int) ([]types.Sensor, error) {
	if !sensor.HasLocation() {
		return nil, nil
	}
	rows, err := r.db.Query(ctx,
		`SELECT `+sensorColumns+` `+sensorFrom+`
		 WHERE s.parameter = $1
		   AND s.code <> $2
		   AND s.status = 'active'
		   AND s.model_code IS NOT NULL AND s.model_code <> ''
		   AND d.latitude IS NOT NULL AND d.longitude IS NOT NULL
		 ORDER BY (d.latitude - $3) ^ 2 + (d.longitude - $4) ^ 2
		 LIMIT $5`,
		sensor.Parameter, sensor.Code, *sensor.Latitude, *sensor.Longitude, limit,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query similar sensors", err)
	}
	return collectSensors(rows, "similar sensor row")
}
