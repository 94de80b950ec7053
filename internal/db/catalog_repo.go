package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"floodcast/internal/types"
)

// ModelRepository reads the mas_models catalog.
type ModelRepository struct {
	db DBTX
}

// NewModelRepository creates a ModelRepository.
func NewModelRepository(db DBTX) *ModelRepository {
	return &ModelRepository{db: db}
}

const modelColumns = `id, code, COALESCE(name, ''), COALESCE(type, ''), version, file_path,
	n_steps_in, n_steps_out, is_active`

func scanModel(row pgx.Row) (*types.Model, error) {
	var m types.Model
	if err := row.Scan(
		&m.ID,
		&m.Code,
		&m.Name,
		&m.Type,
		&m.Version,
		&m.FilePath,
		&m.NStepsIn,
		&m.NStepsOut,
		&m.IsActive,
	); err != nil {
		return nil, err
	}
	return &m, nil
}

// ModelByCode returns the model with the given code or not_found_model.
func (r *ModelRepository) ModelByCode(ctx context.Context, code string) (*types.Model, error) {
	row := r.db.QueryRow(ctx, `SELECT `+modelColumns+` FROM mas_models WHERE code = $1`, code)
	m, err := scanModel(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppErrorWithDetails(types.ErrCodeNotFoundModel,
				"model not found", nil, map[string]any{"model_code": code})
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve model", err)
	}
	return m, nil
}

// List returns every model ordered by code.
func (r *ModelRepository) List(ctx context.Context) ([]types.Model, error) {
	rows, err := r.db.Query(ctx, `SELECT `+modelColumns+` FROM mas_models ORDER BY code`)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list models", err)
	}
	defer rows.Close()

	var out []types.Model
	for rows.Next() {
		m, err := scanModel(rows)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan model row", err)
		}
		out = append(out, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating model rows", err)
	}
	return out, nil
}

// RiverBasinRepository reads the mas_river_basins catalog.
type RiverBasinRepository struct {
	db DBTX
}

// NewRiverBasinRepository creates a RiverBasinRepository.
func NewRiverBasinRepository(db DBTX) *RiverBasinRepository {
	return &RiverBasinRepository{db: db}
}

// ByCode returns the basin with the given code or not_found_river_basin.
func (r *RiverBasinRepository) ByCode(ctx context.Context, code string) (*types.RiverBasin, error) {
	var b types.RiverBasin
	err := r.db.QueryRow(ctx,
		`SELECT id, code, COALESCE(name, '') FROM mas_river_basins WHERE code = $1`, code,
	).Scan(&b.ID, &b.Code, &b.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppErrorWithDetails(types.ErrCodeNotFoundRiverBasin,
				"river basin not found", nil, map[string]any{"river_basin_code": code})
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve river basin", err)
	}
	return &b, nil
}

// List returns every basin ordered by code.
func (r *RiverBasinRepository) List(ctx context.Context) ([]types.RiverBasin, error) {
	rows, err := r.db.Query(ctx, `SELECT id, code, COALESCE(name, '') FROM mas_river_basins ORDER BY code`)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list river basins", err)
	}
	defer rows.Close()

	var out []types.RiverBasin
	for rows.Next() {
		var b types.RiverBasin
		if err := rows.Scan(&b.ID, &b.Code, &b.Name); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan river basin row", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating river basin rows", err)
	}
	return out, nil
}

// ScalerRepository reads fitted scaler rows from mas_scalers.
type ScalerRepository struct {
	db DBTX
}

// NewScalerRepository creates a ScalerRepository.
func NewScalerRepository(db DBTX) *ScalerRepository {
	return &ScalerRepository{db: db}
}

// ActiveScaler returns the active scaler for the model and axis. A row bound
// to sensorCode wins over the generic row. It returns nil, nil when the model
// has no scaler on that axis.
func (r *ScalerRepository) ActiveScaler(ctx context.Context, modelCode, sensorCode string, axis types.ScalerAxis) (*types.ScalerArtifact, error) {
	var a types.ScalerArtifact
	err := r.db.QueryRow(ctx,
		`SELECT id, model_code, sensor_code, io_axis, COALESCE(technique, ''), file_path
		 FROM mas_scalers
		 WHERE model_code = $1
		   AND io_axis = $3
		   AND is_active
		   AND (sensor_code = $2 OR sensor_code IS NULL)
		 ORDER BY sensor_code NULLS LAST, id DESC
		 LIMIT 1`,
		modelCode, sensorCode, string(axis),
	).Scan(&a.ID, &a.ModelCode, &a.SensorCode, &a.Axis, &a.Technique, &a.FilePath)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve scaler", err)
	}
	return &a, nil
}
