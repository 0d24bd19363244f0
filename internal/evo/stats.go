package evo

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// FitnessStats is a snapshot of a population's fitness distribution. Best and
// Worst are copies; ties resolve to the first organism in population order.
type FitnessStats[G Genome[G]] struct {
	Min      float64
	Max      float64
	Mean     float64
	Variance float64
	Sigma    float64
	Best     Organism[G]
	Worst    Organism[G]
}

func NewFitnessStats[G Genome[G]](pop Population[G]) (FitnessStats[G], error) {
	if len(pop) == 0 {
		return FitnessStats[G]{}, ErrEmptyPopulation
	}

	values := pop.Fitnesses()
	best, worst := 0, 0
	for i, f := range values {
		if f > values[best] {
			best = i
		}
		if f < values[worst] {
			worst = i
		}
	}

	mean, variance := meanVariance(values)
	return FitnessStats[G]{
		Min:      values[worst],
		Max:      values[best],
		Mean:     mean,
		Variance: variance,
		Sigma:    math.Sqrt(variance),
		Best:     pop[best].Clone(),
		Worst:    pop[worst].Clone(),
	}, nil
}

// meanVariance uses the n-1 denominator; a single value has zero variance.
func meanVariance(values []float64) (float64, float64) {
	if len(values) < 2 {
		return stat.Mean(values, nil), 0
	}
	return stat.MeanVariance(values, nil)
}
