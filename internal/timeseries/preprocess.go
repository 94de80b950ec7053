// Package timeseries cleans raw sensor readings into the chronological,
// evenly spaced series the forecasting pipeline windows over.
package timeseries

import (
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"floodcast/internal/types"
)

// defaultStepMinutes is reported when the sampling interval cannot be inferred.
const defaultStepMinutes = 60

// Options controls the cleaning steps.
type Options struct {
	// Resample buckets readings into fixed intervals by averaging. Zero keeps
	// the native cadence.
	Resample time.Duration
	// FillLimit is the maximum number of consecutive empty buckets that are
	// forward-filled after resampling.
	FillLimit int
	// IQRK is the fence multiplier for outlier clipping. Zero disables clipping.
	IQRK float64
}

// DefaultOptions returns the production defaults: native cadence, fill up to
// three buckets, clip at 3 IQR.
func DefaultOptions() Options {
	return Options{FillLimit: 3, IQRK: 3.0}
}

// Series is a cleaned, chronological slice of readings.
type Series struct {
	Timestamps  []time.Time
	Values      []float64
	StepMinutes int
}

// Len returns the number of points.
func (s *Series) Len() int { return len(s.Values) }

// Step returns the inferred sampling interval.
func (s *Series) Step() time.Duration {
	return time.Duration(s.StepMinutes) * time.Minute
}

// Last returns the timestamp of the newest point.
func (s *Series) Last() time.Time {
	return s.Timestamps[len(s.Timestamps)-1]
}

// Preprocess sorts, optionally resamples and forward-fills, clips outliers
// and keeps the trailing n points. Readings that are still missing after the
// fill step are dropped, so the returned values never contain NaN.
func Preprocess(points []types.TimeSeriesPoint, n int, opts Options) (*Series, error) {
	if len(points) == 0 {
		return nil, types.NewInsufficientDataError(n, 0)
	}

	sorted := make([]types.TimeSeriesPoint, len(points))
	copy(sorted, points)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	ts, vals := split(sorted)
	if opts.Resample > 0 {
		ts, vals = resampleMean(ts, vals, opts.Resample)
		forwardFill(vals, opts.FillLimit)
	}
	ts, vals = dropMissing(ts, vals)

	if opts.IQRK > 0 {
		clipIQR(vals, opts.IQRK)
	}

	if len(vals) < n {
		return nil, types.NewInsufficientDataError(n, len(vals))
	}
	if n > 0 {
		ts = ts[len(ts)-n:]
		vals = vals[len(vals)-n:]
	}

	return &Series{
		Timestamps:  ts,
		Values:      vals,
		StepMinutes: InferStepMinutes(ts),
	}, nil
}

// InferStepMinutes returns the median spacing of ts in whole minutes, or 60
// when there are fewer than two timestamps or the median rounds to zero.
func InferStepMinutes(ts []time.Time) int {
	if len(ts) < 2 {
		return defaultStepMinutes
	}
	diffs := make([]float64, len(ts)-1)
	for i := 1; i < len(ts); i++ {
		diffs[i-1] = ts[i].Sub(ts[i-1]).Seconds()
	}
	minutes := int(math.Floor(median(diffs) / 60))
	if minutes <= 0 {
		return defaultStepMinutes
	}
	return minutes
}

func split(points []types.TimeSeriesPoint) ([]time.Time, []float64) {
	ts := make([]time.Time, len(points))
	vals := make([]float64, len(points))
	for i, p := range points {
		ts[i] = p.Timestamp.UTC()
		vals[i] = p.Value
	}
	return ts, vals
}

// resampleMean averages values into buckets aligned to the interval. Empty
// buckets between the first and last reading are NaN.
func resampleMean(ts []time.Time, vals []float64, every time.Duration) ([]time.Time, []float64) {
	start := ts[0].Truncate(every)
	end := ts[len(ts)-1].Truncate(every)
	buckets := int(end.Sub(start)/every) + 1

	sums := make([]float64, buckets)
	counts := make([]int, buckets)
	for i, t := range ts {
		if math.IsNaN(vals[i]) {
			continue
		}
		b := int(t.Truncate(every).Sub(start) / every)
		sums[b] += vals[i]
		counts[b]++
	}

	outTS := make([]time.Time, buckets)
	outVals := make([]float64, buckets)
	for b := range buckets {
		outTS[b] = start.Add(time.Duration(b) * every)
		if counts[b] == 0 {
			outVals[b] = math.NaN()
			continue
		}
		outVals[b] = sums[b] / float64(counts[b])
	}
	return outTS, outVals
}

// forwardFill copies the last valid value into at most limit consecutive
// NaN slots. Leading NaNs stay missing.
func forwardFill(vals []float64, limit int) {
	last := math.NaN()
	run := 0
	for i, v := range vals {
		if !math.IsNaN(v) {
			last = v
			run = 0
			continue
		}
		run++
		if !math.IsNaN(last) && run <= limit {
			vals[i] = last
		}
	}
}

func dropMissing(ts []time.Time, vals []float64) ([]time.Time, []float64) {
	outTS := ts[:0:0]
	outVals := vals[:0:0]
	for i, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		outTS = append(outTS, ts[i])
		outVals = append(outVals, v)
	}
	return outTS, outVals
}

// clipIQR bounds vals to [Q1-k*IQR, Q3+k*IQR] in place. A zero IQR leaves
// the series untouched.
func clipIQR(vals []float64, k float64) {
	if len(vals) == 0 {
		return
	}
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)
	q1 := stat.Quantile(0.25, stat.LinInterp, sorted, nil)
	q3 := stat.Quantile(0.75, stat.LinInterp, sorted, nil)
	iqr := q3 - q1
	if iqr == 0 || math.IsNaN(iqr) {
		return
	}
	lo, hi := q1-k*iqr, q3+k*iqr
	for i, v := range vals {
		vals[i] = math.Min(math.Max(v, lo), hi)
	}
}

func median(xs []float64) float64 {
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}
