package evo

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

const (
	DefaultLinearNormMultiple = 2.0
	DefaultSigmaFloor         = 0.1
)

// Scaler transforms fitness in place after evaluation and before selection.
// Higher stays better.
type Scaler[G Genome[G]] interface {
	Name() string
	Scale(pop Population[G])
}

type NullScaler[G Genome[G]] struct{}

func (NullScaler[G]) Name() string { return "none" }

func (NullScaler[G]) Scale(Population[G]) {}

// LinearNormScaler maps the mean to itself and the best to Multiple times the
// mean, switching to a min-to-zero mapping when that would push the worst
// organism below zero. A non-positive mean is first shifted so the worst
// organism scores zero.
type LinearNormScaler[G Genome[G]] struct {
	Multiple float64
}

func (LinearNormScaler[G]) Name() string { return "linear_norm" }

func (s LinearNormScaler[G]) Scale(pop Population[G]) {
	if len(pop) == 0 {
		return
	}
	c := s.Multiple
	if !(c > 1) {
		c = DefaultLinearNormMultiple
	}
	lo, hi := fitnessRange(pop)
	if lo == hi {
		return
	}
	avg := stat.Mean(pop.Fitnesses(), nil)
	shift := 0.0
	if avg <= 0 {
		shift = lo
		lo, hi, avg = 0, hi-shift, avg-shift
	}
	slope, intercept := linearNormCoefficients(lo, hi, avg, c)
	for i := range pop {
		pop[i].Fitness = slope*(pop[i].Fitness-shift) + intercept
	}
}

// linearNormCoefficients reports the slope and intercept of the linear norm
// transform.
func linearNormCoefficients(lo, hi, avg, c float64) (float64, float64) {
	if lo > (c*avg-hi)/(c-1) {
		delta := hi - avg
		return (c - 1) * avg / delta, avg * (hi - c*avg) / delta
	}
	delta := avg - lo
	return avg / delta, -lo * avg / delta
}

// WindowedScaler shifts fitness so the worst organism scores zero.
type WindowedScaler[G Genome[G]] struct{}

func (WindowedScaler[G]) Name() string { return "windowed" }

func (WindowedScaler[G]) Scale(pop Population[G]) {
	if len(pop) == 0 {
		return
	}
	lo, _ := fitnessRange(pop)
	for i := range pop {
		pop[i].Fitness -= lo
	}
}

// ExponentialScaler computes (A*f + B)^Power. Undefined results score zero.
type ExponentialScaler[G Genome[G]] struct {
	A     float64
	B     float64
	Power float64
}

func DefaultExponentialScaler[G Genome[G]]() ExponentialScaler[G] {
	return ExponentialScaler[G]{A: 1, B: 1, Power: 2}
}

func (ExponentialScaler[G]) Name() string { return "exponential" }

func (s ExponentialScaler[G]) Scale(pop Population[G]) {
	for i := range pop {
		pop[i].Fitness = finiteOrZero(math.Pow(s.A*pop[i].Fitness+s.B, s.Power))
	}
}

// QuadraticScaler computes A*f^2 + B*f + C.
type QuadraticScaler[G Genome[G]] struct {
	A float64
	B float64
	C float64
}

func (QuadraticScaler[G]) Name() string { return "quadratic" }

func (s QuadraticScaler[G]) Scale(pop Population[G]) {
	for i := range pop {
		f := pop[i].Fitness
		pop[i].Fitness = finiteOrZero(s.A*f*f + s.B*f + s.C)
	}
}

// SigmaScaler computes (1 + f/mean) / (2*sigma) with a lower bound of Floor.
// A population without variance scores 1 everywhere. When the mean is not
// positive the fitness is first shifted so the worst organism scores zero,
// which keeps higher raw fitness scaling higher.
type SigmaScaler[G Genome[G]] struct {
	Floor float64
}

func (SigmaScaler[G]) Name() string { return "sigma" }

func (s SigmaScaler[G]) Scale(pop Population[G]) {
	if len(pop) == 0 {
		return
	}
	floor := s.Floor
	if floor <= 0 {
		floor = DefaultSigmaFloor
	}
	mean, variance := meanVariance(pop.Fitnesses())
	sigma2 := 2 * math.Sqrt(variance)
	if sigma2 == 0 || math.IsNaN(sigma2) {
		for i := range pop {
			pop[i].Fitness = 1
		}
		return
	}
	shift := 0.0
	if mean <= 0 {
		shift, _ = fitnessRange(pop)
		mean -= shift
	}
	for i := range pop {
		ratio := 0.0
		if mean != 0 {
			ratio = (pop[i].Fitness - shift) / mean
		}
		f := (1 + ratio) / sigma2
		if !(f >= floor) {
			f = floor
		}
		pop[i].Fitness = f
	}
}

// InvertScaler turns a lower-is-better fitness into higher-is-better by
// reflecting it across the population range.
type InvertScaler[G Genome[G]] struct{}

func (InvertScaler[G]) Name() string { return "invert" }

func (InvertScaler[G]) Scale(pop Population[G]) {
	if len(pop) == 0 {
		return
	}
	lo, hi := fitnessRange(pop)
	for i := range pop {
		pop[i].Fitness = lo + hi - pop[i].Fitness
	}
}

func fitnessRange[G Genome[G]](pop Population[G]) (float64, float64) {
	lo, hi := pop[0].Fitness, pop[0].Fitness
	for _, org := range pop[1:] {
		lo = math.Min(lo, org.Fitness)
		hi = math.Max(hi, org.Fitness)
	}
	return lo, hi
}

func finiteOrZero(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
