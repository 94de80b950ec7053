package sequence

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"floodcast/internal/types"
)

func TestBuild_LagLayout(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5, 6}

	w, err := Build(values, 3, 2)
	require.NoError(t, err)

	assert.Equal(t, [][]float64{
		{4, 4}, // first row clamps its lag to the window start
		{4, 5},
		{5, 6},
	}, Rows(w))
}

func TestBuild_FeaturesWiderThanWindow(t *testing.T) {
	w, err := Build([]float64{10, 20, 30, 40}, 2, 4)
	require.NoError(t, err)

	assert.Equal(t, [][]float64{
		{30, 30, 30, 30},
		{30, 30, 30, 40},
	}, Rows(w))
}

func TestBuild_ShapeAndNoNaN(t *testing.T) {
	values := make([]float64, 50)
	for i := range values {
		values[i] = math.Sin(float64(i))
	}
	for _, tc := range []struct{ steps, feats int }{{24, 4}, {48, 3}, {1, 1}, {5, 5}} {
		w, err := Build(values, tc.steps, tc.feats)
		require.NoError(t, err)
		r, c := w.Dims()
		assert.Equal(t, tc.steps, r)
		assert.Equal(t, tc.feats, c)
		for _, row := range Rows(w) {
			for _, v := range row {
				assert.False(t, math.IsNaN(v))
			}
		}
	}
}

func TestBuild_InsufficientData(t *testing.T) {
	_, err := Build([]float64{1, 2, 3}, 4, 2)
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrCodeInsufficientData))

	_, err = Build([]float64{1, 2, 3}, 2, 5)
	assert.True(t, types.IsCode(err, types.ErrCodeInsufficientData))
}

func TestLookupShape(t *testing.T) {
	s, err := LookupShape("DHOMPO_GRU")
	require.NoError(t, err)
	assert.Equal(t, ModelShape{Features: 4, Outputs: 5}, s)

	s, err = LookupShape("purwodadi_tcn")
	require.NoError(t, err)
	assert.Equal(t, ModelShape{Features: 3, Outputs: 3}, s)

	_, err = LookupShape("KALIGARANG_GRU")
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrCodeUnknownModelRequirements))
}
