package l2coords

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// PolarReadings are the distances and angles (radians) of one cycle's
// pixels of a single class, relative to the rover.
type PolarReadings struct {
	Dists  []float64
	Angles []float64
}

// ToPolarReadings converts every point of ps.
func ToPolarReadings(ps PointSet) PolarReadings {
	pr := PolarReadings{Dists: make([]float64, ps.Len()), Angles: make([]float64, ps.Len())}
	for i := range ps.X {
		pr.Dists[i], pr.Angles[i] = ToPolar(ps.X[i], ps.Y[i])
	}
	return pr
}

// Len returns the number of readings.
func (p PolarReadings) Len() int { return len(p.Angles) }

// MeanAngleDeg returns the mean angle in degrees, or 0 when there are no readings.
func (p PolarReadings) MeanAngleDeg() float64 {
	if len(p.Angles) == 0 {
		return 0
	}
	return stat.Mean(p.Angles, nil) * 180 / math.Pi
}

// MinDist returns the nearest distance, or +Inf when there are no readings.
func (p PolarReadings) MinDist() float64 {
	if len(p.Dists) == 0 {
		return math.Inf(1)
	}
	return floats.Min(p.Dists)
}
