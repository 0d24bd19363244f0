package evo

import (
	"errors"
	"math/rand"
)

var (
	ErrEmptyPopulation = errors.New("population must not be empty")
	ErrPopulationSize  = errors.New("generation changed population size")
)

// Genome is the minimal capability every genotype provides: a deep copy.
type Genome[G any] interface {
	Clone() G
}

// Mutable genomes perturb themselves in place at the given rate.
type Mutable interface {
	Mutate(rng *rand.Rand, rate float64)
}

// Crossable genomes combine with a second parent into a new child.
type Crossable[G any] interface {
	Genome[G]
	Crossover(rng *rand.Rand, other G) G
}

// MutableGenome is the capability set used by RateMutator.
type MutableGenome[G any] interface {
	Genome[G]
	Mutable
}

type Organism[G Genome[G]] struct {
	Fitness float64
	Genes   G
}

func NewOrganism[G Genome[G]](genes G) Organism[G] {
	return Organism[G]{Genes: genes}
}

func (o Organism[G]) Clone() Organism[G] {
	return Organism[G]{Fitness: o.Fitness, Genes: o.Genes.Clone()}
}

// Reset returns the fitness to its neutral value.
func (o *Organism[G]) Reset() {
	o.Fitness = 0
}

// Population orders organisms by descending fitness when sorted.
type Population[G Genome[G]] []Organism[G]

func (p Population[G]) Len() int           { return len(p) }
func (p Population[G]) Less(i, j int) bool { return p[i].Fitness > p[j].Fitness }
func (p Population[G]) Swap(i, j int)      { p[i], p[j] = p[j], p[i] }

func (p Population[G]) Clone() Population[G] {
	out := make(Population[G], len(p))
	for i := range p {
		out[i] = p[i].Clone()
	}
	return out
}

func (p Population[G]) Fitnesses() []float64 {
	out := make([]float64, len(p))
	for i := range p {
		out[i] = p[i].Fitness
	}
	return out
}

// NewPopulation seeds size organisms from the initializer.
func NewPopulation[G Genome[G]](size int, init func(i int) (G, error)) (Population[G], error) {
	if size <= 0 {
		return nil, ErrEmptyPopulation
	}
	if init == nil {
		return nil, errors.New("genome initializer is required")
	}
	pop := make(Population[G], size)
	for i := range pop {
		genes, err := init(i)
		if err != nil {
			return nil, err
		}
		pop[i] = NewOrganism(genes)
	}
	return pop, nil
}
