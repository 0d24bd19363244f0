package evo

import (
	"context"
	"errors"
	"math/rand"

	"github.com/sourcegraph/conc/pool"
)

// Landscape assigns fitness. TestPopulation must set the fitness of every
// organism; landscapes whose scores depend on the whole population implement
// it directly.
type Landscape[G Genome[G]] interface {
	Test(ctx context.Context, rng *rand.Rand, org *Organism[G]) float64
	TestPopulation(ctx context.Context, rng *rand.Rand, pop Population[G]) (float64, error)
}

// FitnessFunc scores a single genome.
type FitnessFunc[G Genome[G]] func(ctx context.Context, rng *rand.Rand, genes G) float64

// OrganismLandscape scores each organism independently and returns the mean.
//
// With Workers > 1 organisms are evaluated concurrently. Each organism gets its
// own generator seeded from rng in population order, so results do not depend
// on scheduling. Listener callbacks then run on worker goroutines.
type OrganismLandscape[G Genome[G]] struct {
	Fitness  FitnessFunc[G]
	Workers  int
	Listener Listener[G]
}

func NewOrganismLandscape[G Genome[G]](fn FitnessFunc[G], workers int, listener Listener[G]) (*OrganismLandscape[G], error) {
	if fn == nil {
		return nil, errors.New("fitness function is required")
	}
	if workers <= 0 {
		workers = 1
	}
	if listener == nil {
		listener = NullListener[G]{}
	}
	return &OrganismLandscape[G]{Fitness: fn, Workers: workers, Listener: listener}, nil
}

func (l *OrganismLandscape[G]) Test(ctx context.Context, rng *rand.Rand, org *Organism[G]) float64 {
	l.Listener.FitnessTestBegin(*org)
	org.Fitness = l.Fitness(ctx, rng, org.Genes)
	l.Listener.FitnessTestEnd(*org)
	return org.Fitness
}

func (l *OrganismLandscape[G]) TestPopulation(ctx context.Context, rng *rand.Rand, pop Population[G]) (float64, error) {
	if len(pop) == 0 {
		return 0, ErrEmptyPopulation
	}

	if l.Workers <= 1 {
		total := 0.0
		for i := range pop {
			if err := ctx.Err(); err != nil {
				return 0, err
			}
			total += l.Test(ctx, rng, &pop[i])
		}
		return total / float64(len(pop)), nil
	}

	seeds := make([]int64, len(pop))
	for i := range seeds {
		seeds[i] = rng.Int63()
	}
	p := pool.New().WithContext(ctx).WithMaxGoroutines(l.Workers)
	for i := range pop {
		i := i
		p.Go(func(ctx context.Context) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			l.Test(ctx, rand.New(rand.NewSource(seeds[i])), &pop[i])
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return 0, err
	}

	total := 0.0
	for i := range pop {
		total += pop[i].Fitness
	}
	return total / float64(len(pop)), nil
}
