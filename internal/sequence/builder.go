// Package sequence turns a cleaned chronological series into the
// (time steps x features) lag window a model consumes.
package sequence

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"floodcast/internal/types"
)

// Build returns a timeSteps x features window over the trailing timeSteps
// values. Row k holds the lags [t-F+1, ..., t] for its time step t, oldest
// first. Lags that would reach before the window start are clamped to the
// window's first value.
//
// Build fails with insufficient_data when values has fewer than
// max(timeSteps, features) points.
func Build(values []float64, timeSteps, features int) (*mat.Dense, error) {
	if timeSteps < 1 || features < 1 {
		return nil, types.NewAppError(
			types.ErrCodeInternalUnexpected,
			fmt.Sprintf("invalid window shape %dx%d", timeSteps, features),
			nil,
		)
	}
	need := max(timeSteps, features)
	if len(values) < need {
		return nil, types.NewInsufficientDataError(need, len(values))
	}

	start := len(values) - timeSteps
	w := mat.NewDense(timeSteps, features, nil)
	for k := range timeSteps {
		t := start + k
		for j := range features {
			idx := max(t-(features-1-j), start)
			w.Set(k, j, values[idx])
		}
	}
	return w, nil
}

// Rows copies the window into nested slices, row-major.
func Rows(w mat.Matrix) [][]float64 {
	r, c := w.Dims()
	out := make([][]float64, r)
	for i := range r {
		row := make([]float64, c)
		for j := range c {
			row[j] = w.At(i, j)
		}
		out[i] = row
	}
	return out
}
