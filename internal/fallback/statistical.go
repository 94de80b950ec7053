package fallback

import (
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"floodcast/internal/types"
)

const (
	trendWindow     = 24
	seasonalMinimum = 168
	minTrendPoints  = 3

	statisticalConfidenceStart = 0.6
	statisticalConfidenceStep  = 0.05
	statisticalConfidenceFloor = 0.1

	persistenceConfidenceStart = 0.3
	persistenceConfidenceStep  = 0.03
	persistenceConfidenceFloor = 0.05

	negativeDecay = 0.9
)

// Point is one fallback forecast value.
type Point struct {
	Timestamp  time.Time `json:"forecast_time"`
	Value      float64   `json:"value"`
	Confidence float64   `json:"confidence"`
}

// Statistical projects history forward with a linear trend fitted to the
// last 24 points and, with at least a week of readings, an hour-of-day
// seasonal multiplier. Fewer than three points degrade to Persistence.
func Statistical(history []types.TimeSeriesPoint, now time.Time, horizon int, step time.Duration) []Point {
	if len(history) < minTrendPoints {
		last := 0.0
		if len(history) > 0 {
			last = history[len(history)-1].Value
		}
		return Persistence(last, now, horizon, step)
	}

	values := make([]float64, len(history))
	for i, p := range history {
		values[i] = p.Value
	}
	recent := values
	if len(recent) >= trendWindow {
		recent = recent[len(recent)-trendWindow:]
	}
	trend := slope(recent)
	base := recent[len(recent)-1]

	seasonal := 1.0
	if len(history) >= seasonalMinimum {
		seasonal = seasonalFactor(history, now.UTC().Hour())
	}

	out := make([]Point, horizon)
	for i := 1; i <= horizon; i++ {
		v := base + trend*float64(i)*seasonal
		if v < 0 {
			v = math.Max(0, base*negativeDecay)
		}
		out[i-1] = Point{
			Timestamp:  now.Add(time.Duration(i) * step),
			Value:      v,
			Confidence: math.Max(statisticalConfidenceFloor, statisticalConfidenceStart-statisticalConfidenceStep*float64(i)),
		}
	}
	return out
}

// Persistence repeats value across the horizon with quickly decaying
// confidence.
func Persistence(value float64, now time.Time, horizon int, step time.Duration) []Point {
	out := make([]Point, horizon)
	for i := 1; i <= horizon; i++ {
		out[i-1] = Point{
			Timestamp:  now.Add(time.Duration(i) * step),
			Value:      value,
			Confidence: math.Max(persistenceConfidenceFloor, persistenceConfidenceStart-persistenceConfidenceStep*float64(i)),
		}
	}
	return out
}

// slope fits y = a + b*x over x = 0..n-1 and returns b.
func slope(y []float64) float64 {
	if len(y) < 2 {
		return 0
	}
	x := make([]float64, len(y))
	for i := range x {
		x[i] = float64(i)
	}
	_, beta := stat.LinearRegression(x, y, nil, false)
	if math.IsNaN(beta) {
		return 0
	}
	return beta
}

// seasonalFactor is the mean reading at hour divided by the mean of the
// hourly profile. It is 1 when either side is not positive.
func seasonalFactor(history []types.TimeSeriesPoint, hour int) float64 {
	var sums, counts [24]float64
	for _, p := range history {
		h := p.Timestamp.UTC().Hour()
		sums[h] += p.Value
		counts[h]++
	}

	profile := make([]float64, 0, 24)
	var atHour float64
	for h := range 24 {
		if counts[h] == 0 {
			continue
		}
		avg := sums[h] / counts[h]
		profile = append(profile, avg)
		if h == hour {
			atHour = avg
		}
	}
	if len(profile) == 0 {
		return 1
	}
	mean := stat.Mean(profile, nil)
	if atHour <= 0 || mean <= 0 {
		return 1
	}
	return atHour / mean
}
