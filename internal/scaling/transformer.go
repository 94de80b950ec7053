// Package scaling applies fitted normalizers around model inference.
package scaling

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// Transformer is a fitted per-feature normalizer.
type Transformer interface {
	Transform(m *mat.Dense) *mat.Dense
	InverseTransform(m *mat.Dense) *mat.Dense
	ExpectedFeatures() int
}

// Pair holds the input and output transforms of a model. Either may be nil,
// which means pass-through on that side.
type Pair struct {
	Input  Transformer
	Output Transformer
}

// Technique names accepted in scaler artifacts.
const (
	TechniqueStandard = "standard"
	TechniqueMinMax   = "minmax"
)

// Params is the serialized form of a fitted scaler. Standard scalers carry
// Mean and Scale; min-max scalers carry Min and Scale, where
// scaled = x*Scale + Min.
type Params struct {
	Technique string    `json:"technique"`
	Mean      []float64 `json:"mean,omitempty"`
	Min       []float64 `json:"min,omitempty"`
	Scale     []float64 `json:"scale"`
}

// FromParams builds the Transformer described by p.
func FromParams(p Params) (Transformer, error) {
	if len(p.Scale) == 0 {
		return nil, fmt.Errorf("scaling: artifact has no scale vector")
	}
	switch strings.ToLower(p.Technique) {
	case TechniqueStandard, "standardscaler", "":
		if len(p.Mean) != len(p.Scale) {
			return nil, fmt.Errorf("scaling: mean has %d entries, scale has %d", len(p.Mean), len(p.Scale))
		}
		return NewStandardScaler(p.Mean, p.Scale), nil
	case TechniqueMinMax, "minmaxscaler":
		if len(p.Min) != len(p.Scale) {
			return nil, fmt.Errorf("scaling: min has %d entries, scale has %d", len(p.Min), len(p.Scale))
		}
		return NewMinMaxScaler(p.Min, p.Scale), nil
	default:
		return nil, fmt.Errorf("scaling: unknown technique %q", p.Technique)
	}
}

// StandardScaler maps x to (x - mean) / scale per column.
type StandardScaler struct {
	mean  []float64
	scale []float64
}

// NewStandardScaler copies the fitted vectors. A zero scale entry is treated
// as 1 so constant features pass through centred.
func NewStandardScaler(mean, scale []float64) *StandardScaler {
	return &StandardScaler{mean: append([]float64(nil), mean...), scale: safeScale(scale)}
}

func (s *StandardScaler) ExpectedFeatures() int { return len(s.scale) }

func (s *StandardScaler) Transform(m *mat.Dense) *mat.Dense {
	var out mat.Dense
	out.Apply(func(_, j int, v float64) float64 { return (v - s.mean[j]) / s.scale[j] }, m)
	return &out
}

func (s *StandardScaler) InverseTransform(m *mat.Dense) *mat.Dense {
	var out mat.Dense
	out.Apply(func(_, j int, v float64) float64 { return v*s.scale[j] + s.mean[j] }, m)
	return &out
}

// MinMaxScaler maps x to x*scale + min per column.
type MinMaxScaler struct {
	min   []float64
	scale []float64
}

// NewMinMaxScaler copies the fitted vectors.
func NewMinMaxScaler(mins, scale []float64) *MinMaxScaler {
	return &MinMaxScaler{min: append([]float64(nil), mins...), scale: safeScale(scale)}
}

func (s *MinMaxScaler) ExpectedFeatures() int { return len(s.scale) }

func (s *MinMaxScaler) Transform(m *mat.Dense) *mat.Dense {
	var out mat.Dense
	out.Apply(func(_, j int, v float64) float64 { return v*s.scale[j] + s.min[j] }, m)
	return &out
}

func (s *MinMaxScaler) InverseTransform(m *mat.Dense) *mat.Dense {
	var out mat.Dense
	out.Apply(func(_, j int, v float64) float64 { return (v - s.min[j]) / s.scale[j] }, m)
	return &out
}

func safeScale(scale []float64) []float64 {
	out := make([]float64, len(scale))
	for i, v := range scale {
		if v == 0 {
			v = 1
		}
		out[i] = v
	}
	return out
}
