package confidence

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"floodcast/internal/types"
)

// Baselines returned when a component has too little evidence.
const (
	neutralConsistency = 0.8
	neutralAccuracy    = 0.6
	neutralStability   = 0.7
	neutralColumn      = 0.5
	neutralVariance    = 0.8
	zeroMeanVariance   = 0.1

	outlierZ           = 3.0
	minAccuracyMatches = 5
)

// DataQuality scores completeness (share of non-NaN cells) and the share of
// values more than three standard deviations from their column mean.
func DataQuality(w mat.Matrix) float64 {
	rows, cols := w.Dims()
	if rows == 0 || cols == 0 {
		return 0
	}

	var missing, outliers, total int
	for j := range cols {
		valid := validColumn(w, j)
		missing += rows - len(valid)
		if len(valid) > 1 {
			mean, std := stat.PopMeanStdDev(valid, nil)
			if std > 0 {
				for _, v := range valid {
					if math.Abs((v-mean)/std) > outlierZ {
						outliers++
					}
				}
			}
			total += len(valid)
		}
	}

	completeness := 1 - float64(missing)/float64(rows*cols)
	outlierRatio := float64(outliers) / float64(max(total, 1))
	return 0.7*completeness + 0.3*(1-math.Min(outlierRatio, 1))
}

// ModelConsistency scores how smooth the prediction path is:
// exp(-decay * std(diffs) / mean(|p|)).
func ModelConsistency(preds []float64, decay float64) float64 {
	if len(preds) < 2 {
		return neutralConsistency
	}
	diffs := make([]float64, len(preds)-1)
	abs := make([]float64, len(preds))
	for i, p := range preds {
		abs[i] = math.Abs(p)
		if i > 0 {
			diffs[i-1] = p - preds[i-1]
		}
	}
	_, diffStd := stat.PopMeanStdDev(diffs, nil)
	meanAbs := stat.Mean(abs, nil)
	if meanAbs == 0 {
		// Every prediction is zero, so the path is perfectly flat.
		return 1
	}
	return math.Min(math.Exp(-decay*diffStd/meanAbs), 1)
}

// HistoricalAccuracy converts the mean absolute percentage error of matched
// past predictions to exp(-decay * MAPE). Pairs whose actual is zero
// contribute their absolute error.
func HistoricalAccuracy(pairs []types.AccuracyPair, decay float64) float64 {
	if len(pairs) < minAccuracyMatches {
		return neutralAccuracy
	}
	errs := make([]float64, len(pairs))
	for i, p := range pairs {
		e := math.Abs(p.Predicted - p.Actual)
		if p.Actual != 0 {
			e /= math.Abs(p.Actual)
		}
		errs[i] = e
	}
	return math.Min(math.Exp(-decay*stat.Mean(errs, nil)), 1)
}

// InputStability averages exp(-cv) over the window columns, where cv is the
// coefficient of variation of the column's valid values.
func InputStability(w mat.Matrix) float64 {
	rows, cols := w.Dims()
	if rows < 2 || cols == 0 {
		return neutralStability
	}
	scores := make([]float64, cols)
	for j := range cols {
		valid := validColumn(w, j)
		if len(valid) < 2 {
			scores[j] = neutralColumn
			continue
		}
		mean, std := stat.PopMeanStdDev(valid, nil)
		switch {
		case mean == 0 && std == 0:
			scores[j] = 1
		case mean == 0:
			scores[j] = 0
		default:
			scores[j] = math.Min(math.Exp(-std/math.Abs(mean)), 1)
		}
	}
	return stat.Mean(scores, nil)
}

// PredictionVariance scores exp(-decay * std(p) / |mean(p)|).
func PredictionVariance(preds []float64, decay float64) float64 {
	if len(preds) < 2 {
		return neutralVariance
	}
	mean, std := stat.PopMeanStdDev(preds, nil)
	if mean == 0 {
		if std == 0 {
			return 1
		}
		return zeroMeanVariance
	}
	return math.Min(math.Exp(-decay*std/math.Abs(mean)), 1)
}

func validColumn(w mat.Matrix, j int) []float64 {
	rows, _ := w.Dims()
	out := make([]float64, 0, rows)
	for i := range rows {
		if v := w.At(i, j); !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}
