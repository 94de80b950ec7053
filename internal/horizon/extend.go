// Package horizon stretches native model output to the requested number of
// forecast steps.
package horizon

// Extended is a prediction of the requested length. The first Native values
// are model output; the rest are extrapolated.
type Extended struct {
	Values []float64
	Native int
}

// Extrapolated reports whether step i was produced by trend extrapolation.
func (e Extended) Extrapolated(i int) bool {
	return i >= e.Native
}

// Extend truncates raw to h values, or extends it by repeating the last
// step-to-step difference. A single native value is repeated, since it
// carries no trend.
func Extend(raw []float64, h int) Extended {
	if h <= 0 || len(raw) == 0 {
		return Extended{Values: []float64{}}
	}
	if len(raw) >= h {
		return Extended{Values: append([]float64(nil), raw[:h]...), Native: h}
	}

	out := make([]float64, h)
	copy(out, raw)
	m := len(raw)

	var trend float64
	if m >= 2 {
		trend = raw[m-1] - raw[m-2]
	}
	for i := m; i < h; i++ {
		out[i] = out[i-1] + trend
	}
	return Extended{Values: out, Native: m}
}
