package evo

import (
	"fmt"
	"math"
	"math/rand"

	"evocosm/internal/roulette"
)

const DefaultMaxParentRetries = 100

// Mutator perturbs freshly bred children in place.
type Mutator[G Genome[G]] interface {
	Name() string
	Mutate(rng *rand.Rand, children Population[G])
}

// Reproducer breeds exactly limit children from pop.
type Reproducer[G Genome[G]] interface {
	Name() string
	Breed(rng *rand.Rand, pop Population[G], limit int) (Population[G], error)
}

type NullMutator[G Genome[G]] struct{}

func (NullMutator[G]) Name() string {
	return "none"
}

func (NullMutator[G]) Mutate(*rand.Rand, Population[G]) {}

// RateMutator asks every child's genome to mutate itself at Rate.
type RateMutator[G MutableGenome[G]] struct {
	Rate float64
}

func NewRateMutator[G MutableGenome[G]](rate float64) RateMutator[G] {
	return RateMutator[G]{Rate: clampUnit(rate)}
}

func (RateMutator[G]) Name() string {
	return "rate"
}

func (m RateMutator[G]) Mutate(rng *rand.Rand, children Population[G]) {
	rate := clampUnit(m.Rate)
	if rate == 0 {
		return
	}
	for i := range children {
		children[i].Genes.Mutate(rng, rate)
	}
}

// CloneReproducer copies parents chosen in proportion to fitness.
type CloneReproducer[G Genome[G]] struct{}

func (CloneReproducer[G]) Name() string {
	return "clone"
}

func (CloneReproducer[G]) Breed(rng *rand.Rand, pop Population[G], limit int) (Population[G], error) {
	wheel, children, err := prepareBreed(pop, limit)
	if err != nil || limit == 0 {
		return children, err
	}
	for len(children) < limit {
		children = append(children, NewOrganism(pop[wheel.Index(rng)].Genes.Clone()))
	}
	return children, nil
}

// RouletteReproducer picks parents in proportion to max(fitness, 0) and crosses
// them over with probability CrossoverRate. When no parent has positive
// fitness every parent is equally likely.
type RouletteReproducer[G Crossable[G]] struct {
	CrossoverRate    float64
	MaxParentRetries int
}

func NewRouletteReproducer[G Crossable[G]](crossoverRate float64) RouletteReproducer[G] {
	return RouletteReproducer[G]{
		CrossoverRate:    clampUnit(crossoverRate),
		MaxParentRetries: DefaultMaxParentRetries,
	}
}

func (RouletteReproducer[G]) Name() string {
	return "roulette"
}

func (r RouletteReproducer[G]) Breed(rng *rand.Rand, pop Population[G], limit int) (Population[G], error) {
	wheel, children, err := prepareBreed(pop, limit)
	if err != nil || limit == 0 {
		return children, err
	}

	rate := clampUnit(r.CrossoverRate)
	retries := r.MaxParentRetries
	if retries <= 0 {
		retries = DefaultMaxParentRetries
	}
	for len(children) < limit {
		p1 := wheel.Index(rng)
		if rng.Float64() < rate {
			p2 := p1
			for attempt := 0; attempt < retries && p2 == p1; attempt++ {
				p2 = wheel.Index(rng)
			}
			if p2 != p1 {
				children = append(children, NewOrganism(pop[p1].Genes.Crossover(rng, pop[p2].Genes)))
				continue
			}
		}
		children = append(children, NewOrganism(pop[p1].Genes.Clone()))
	}
	return children, nil
}

// prepareBreed validates a breeding request and builds the parent wheel.
func prepareBreed[G Genome[G]](pop Population[G], limit int) (*roulette.Wheel, Population[G], error) {
	if limit < 0 {
		return nil, nil, fmt.Errorf("breed limit must be >= 0, got %d", limit)
	}
	if len(pop) == 0 {
		return nil, nil, ErrEmptyPopulation
	}
	children := make(Population[G], 0, limit)
	if limit == 0 {
		return nil, children, nil
	}
	weights := make([]float64, len(pop))
	positive := false
	for i := range pop {
		if f := pop[i].Fitness; f > 0 {
			weights[i] = f
			positive = true
		}
	}
	// a converged or all-negative population breeds uniformly
	if !positive {
		for i := range weights {
			weights[i] = 1
		}
	}
	wheel, err := roulette.NewWithLimits(weights, 0, math.MaxFloat64)
	if err != nil {
		return nil, nil, fmt.Errorf("parent selection: %w", err)
	}
	return wheel, children, nil
}

func clampUnit(v float64) float64 {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
