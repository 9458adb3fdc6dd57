package line

import (
	"math"
	"math/rand"
)

// IntervalSampler draws inter-arrival gaps.
type IntervalSampler interface {
	Sample(rng *rand.Rand) float64
}

// DurationSampler draws processing times.
type DurationSampler interface {
	Sample(rng *rand.Rand) float64
}

// ExponentialSampler draws exponential gaps with the given mean, giving a
// Poisson arrival stream.
type ExponentialSampler struct {
	Mean float64
}

// Sample returns one exponential draw.
func (s ExponentialSampler) Sample(rng *rand.Rand) float64 {
	return rng.ExpFloat64() * s.Mean
}

// ClampedGaussianSampler draws N(Mean, StdDev) clamped below at Min.
type ClampedGaussianSampler struct {
	Mean   float64
	StdDev float64
	Min    float64
}

// Sample returns one clamped Gaussian draw.
func (s ClampedGaussianSampler) Sample(rng *rand.Rand) float64 {
	return math.Max(s.Min, rng.NormFloat64()*s.StdDev+s.Mean)
}
