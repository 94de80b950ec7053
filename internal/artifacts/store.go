// Package artifacts loads model handles and fitted scalers, caching each by
// (model, artifact path) so an artifact is read at most once per process.
package artifacts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"

	"floodcast/internal/scaling"
	"floodcast/internal/types"
)

const zstdSuffix = ".zst"

// Predictor runs inference on one feature window and returns the model's
// native output sequence.
type Predictor interface {
	Predict(ctx context.Context, window [][]float64) ([]float64, error)
}

// ModelLoader makes a served model available under name.
type ModelLoader interface {
	LoadModel(ctx context.Context, name string) (Predictor, error)
}

// ScalerCatalog selects the active scaler row for a model axis, preferring a
// row bound to the sensor over the model-wide row. It returns nil, nil when
// no scaler is registered.
type ScalerCatalog interface {
	ActiveScaler(ctx context.Context, modelCode, sensorCode string, axis types.ScalerAxis) (*types.ScalerArtifact, error)
}

// Store resolves artifacts for the forecast pipeline. It is safe for
// concurrent use.
type Store struct {
	baseDir string
	catalog ScalerCatalog
	loader  ModelLoader
	logger  *slog.Logger

	scalers *Cache[scaling.Transformer]
	models  *Cache[Predictor]

	decoderPool sync.Pool
}

// NewStore creates a Store reading scaler files relative to baseDir.
func NewStore(baseDir string, catalog ScalerCatalog, loader ModelLoader, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		baseDir: baseDir,
		catalog: catalog,
		loader:  loader,
		logger:  logger,
		scalers: NewCache[scaling.Transformer](),
		models:  NewCache[Predictor](),
		decoderPool: sync.Pool{
			New: func() any {
				d, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
				if err != nil {
					panic(fmt.Sprintf("failed to create zstd decoder: %v", err))
				}
				return d
			},
		},
	}
}

// Model returns the predictor for m, loading it on first use.
func (s *Store) Model(ctx context.Context, m *types.Model) (Predictor, error) {
	if m.FilePath == nil || strings.TrimSpace(*m.FilePath) == "" {
		return nil, types.NewAppErrorWithDetails(types.ErrCodeModelLoadFailed,
			"model has no artifact path", nil, map[string]any{"model_code": m.Code})
	}
	path := *m.FilePath
	return s.models.Get(ctx, cacheKey(m.Code, path), func(ctx context.Context) (Predictor, error) {
		name := ServedName(path)
		p, err := s.loader.LoadModel(ctx, name)
		if err != nil {
			return nil, types.NewAppErrorWithDetails(types.ErrCodeModelLoadFailed,
				"failed to load model", err, map[string]any{"model_code": m.Code, "served_name": name})
		}
		s.logger.InfoContext(ctx, "model loaded", "model_code", m.Code, "served_name", name)
		return p, nil
	})
}

// ScalerPair returns the input and output transforms for a model/sensor
// pair. A side without a registered scaler is nil.
func (s *Store) ScalerPair(ctx context.Context, modelCode, sensorCode string) (scaling.Pair, error) {
	in, err := s.scaler(ctx, modelCode, sensorCode, types.ScalerAxisInput)
	if err != nil {
		return scaling.Pair{}, err
	}
	out, err := s.scaler(ctx, modelCode, sensorCode, types.ScalerAxisOutput)
	if err != nil {
		return scaling.Pair{}, err
	}
	return scaling.Pair{Input: in, Output: out}, nil
}

func (s *Store) scaler(ctx context.Context, modelCode, sensorCode string, axis types.ScalerAxis) (scaling.Transformer, error) {
	row, err := s.catalog.ActiveScaler(ctx, modelCode, sensorCode, axis)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, nil
	}
	return s.scalers.Get(ctx, cacheKey(modelCode, row.FilePath), func(ctx context.Context) (scaling.Transformer, error) {
		t, err := s.readScaler(row)
		if err != nil {
			return nil, types.NewAppErrorWithDetails(types.ErrCodeInternalArtifact,
				"failed to load scaler", err,
				map[string]any{"model_code": modelCode, "axis": string(axis), "path": row.FilePath})
		}
		return t, nil
	})
}

func (s *Store) readScaler(row *types.ScalerArtifact) (scaling.Transformer, error) {
	raw, err := os.ReadFile(s.resolve(row.FilePath))
	if err != nil {
		return nil, err
	}
	if strings.HasSuffix(row.FilePath, zstdSuffix) {
		if raw, err = s.decompress(raw); err != nil {
			return nil, err
		}
	}

	var params scaling.Params
	dec := json.NewDecoder(bytes.NewReader(raw))
	if err := dec.Decode(&params); err != nil {
		return nil, fmt.Errorf("decode scaler: %w", err)
	}
	if params.Technique == "" {
		params.Technique = row.Technique
	}
	return scaling.FromParams(params)
}

func (s *Store) decompress(data []byte) ([]byte, error) {
	decoder := s.decoderPool.Get().(*zstd.Decoder)
	defer s.decoderPool.Put(decoder)

	out, err := decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decompression failed: %w", err)
	}
	return out, nil
}

// resolve joins relative artifact paths onto the base directory. Paths
// recorded with Windows separators are normalized.
func (s *Store) resolve(p string) string {
	p = strings.ReplaceAll(p, `\`, "/")
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(s.baseDir, filepath.FromSlash(p))
}

// ServedName derives the serving-side model name from an artifact path by
// dropping directories and extensions: "models/DHOMPO_GRU.h5" serves as
// "DHOMPO_GRU".
func ServedName(path string) string {
	base := filepath.Base(strings.ReplaceAll(path, `\`, "/"))
	if i := strings.IndexByte(base, '.'); i > 0 {
		base = base[:i]
	}
	return base
}

func cacheKey(modelCode, path string) string {
	return modelCode + "|" + path
}
