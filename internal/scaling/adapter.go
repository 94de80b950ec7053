package scaling

import (
	"gonum.org/v1/gonum/mat"

	"floodcast/internal/types"
)

// ApplyInput normalizes a feature window before inference. A nil transform
// passes the window through. A transform fitted on a single feature is
// applied to every cell, since all lag columns carry the same signal; any
// other disagreement with the window width fails with scaler_shape_mismatch.
func ApplyInput(w *mat.Dense, t Transformer) (*mat.Dense, error) {
	if t == nil {
		return w, nil
	}
	rows, cols := w.Dims()
	expected := t.ExpectedFeatures()
	switch expected {
	case cols:
		return t.Transform(w), nil
	case 1:
		flat := mat.NewDense(rows*cols, 1, flatten(w))
		scaled := t.Transform(flat)
		return mat.NewDense(rows, cols, mat.Col(nil, 0, scaled)), nil
	default:
		return nil, types.NewScalerShapeMismatchError(expected, cols).
			WithDetails(map[string]any{"axis": string(types.ScalerAxisInput)})
	}
}

// ApplyOutput inverts the output transform on raw model output. A transform
// fitted on one feature treats the output as a column; one fitted on M
// features treats it as a single row of M values.
func ApplyOutput(raw []float64, t Transformer) ([]float64, error) {
	if t == nil {
		return append([]float64(nil), raw...), nil
	}
	if len(raw) == 0 {
		return nil, nil
	}
	expected := t.ExpectedFeatures()
	switch expected {
	case 1:
		col := mat.NewDense(len(raw), 1, append([]float64(nil), raw...))
		return mat.Col(nil, 0, t.InverseTransform(col)), nil
	case len(raw):
		row := mat.NewDense(1, len(raw), append([]float64(nil), raw...))
		return mat.Row(nil, 0, t.InverseTransform(row)), nil
	default:
		return nil, types.NewScalerShapeMismatchError(expected, len(raw)).
			WithDetails(map[string]any{"axis": string(types.ScalerAxisOutput)})
	}
}

// flatten returns the cells of m in row-major order.
func flatten(m mat.Matrix) []float64 {
	r, c := m.Dims()
	out := make([]float64, 0, r*c)
	for i := range r {
		for j := range c {
			out = append(out, m.At(i, j))
		}
	}
	return out
}
