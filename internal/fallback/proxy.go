package fallback

import (
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"floodcast/internal/types"
)

const (
	kmPerDegree        = 111.0
	minOverlap         = 10
	neutralCorrelation = 1.0
)

// Candidate is a sibling sensor eligible to lend its history.
type Candidate struct {
	Sensor     types.Sensor
	DistanceKm float64
}

// RankCandidates keeps sensors within radiusKm of origin, nearest first.
// Distance is the planar degree distance scaled by 111 km per degree.
// Sensors without coordinates are skipped.
func RankCandidates(origin *types.Sensor, sensors []types.Sensor, radiusKm float64) []Candidate {
	if !origin.HasLocation() {
		return nil
	}
	out := make([]Candidate, 0, len(sensors))
	for _, s := range sensors {
		if !s.HasLocation() || s.Code == origin.Code {
			continue
		}
		dLat := *s.Latitude - *origin.Latitude
		dLon := *s.Longitude - *origin.Longitude
		d := math.Hypot(dLat, dLon) * kmPerDegree
		if d <= radiusKm {
			out = append(out, Candidate{Sensor: s, DistanceKm: d})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DistanceKm < out[j].DistanceKm })
	return out
}

// CorrelationFactor is the ratio of the target's mean to the proxy's mean
// over timestamps both sensors reported. It is 1 with fewer than ten shared
// timestamps, a zero proxy mean, or a non-positive ratio.
func CorrelationFactor(target, proxy []types.TimeSeriesPoint) float64 {
	byTime := make(map[time.Time]float64, len(proxy))
	for _, p := range proxy {
		byTime[p.Timestamp.UTC()] = p.Value
	}

	var a, b []float64
	for _, p := range target {
		if v, ok := byTime[p.Timestamp.UTC()]; ok {
			a = append(a, p.Value)
			b = append(b, v)
		}
	}
	if len(a) < minOverlap {
		return neutralCorrelation
	}

	meanProxy := stat.Mean(b, nil)
	if meanProxy == 0 {
		return neutralCorrelation
	}
	ratio := stat.Mean(a, nil) / meanProxy
	if math.IsNaN(ratio) || ratio <= 0 {
		return neutralCorrelation
	}
	return ratio
}
