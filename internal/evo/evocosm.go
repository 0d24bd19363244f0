package evo

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync/atomic"
)

// Config wires the strategies an Evocosm drives. Nil strategies fall back to
// their null variants, except Reproducer which defaults to CloneReproducer and
// Analyzer which defaults to running until terminated.
type Config[G Genome[G]] struct {
	Population Population[G]
	Landscape  Landscape[G]
	Mutator    Mutator[G]
	Reproducer Reproducer[G]
	Scaler     Scaler[G]
	Selector   Selector[G]
	Analyzer   Analyzer[G]
	Listener   Listener[G]

	// Rand drives every stochastic step. When nil a generator is seeded
	// from Seed.
	Rand *rand.Rand
	Seed int64

	// Yield is called between phases of a generation.
	Yield func()
}

// Evocosm runs the generational loop over a fixed-size population.
type Evocosm[G Genome[G]] struct {
	cfg        Config[G]
	rng        *rand.Rand
	population Population[G]
	size       int
	iteration  int
	terminated atomic.Bool
}

func New[G Genome[G]](cfg Config[G]) (*Evocosm[G], error) {
	if len(cfg.Population) == 0 {
		return nil, fmt.Errorf("population size must be > 0")
	}
	if cfg.Landscape == nil {
		return nil, fmt.Errorf("landscape is required")
	}
	if cfg.Mutator == nil {
		cfg.Mutator = NullMutator[G]{}
	}
	if cfg.Reproducer == nil {
		cfg.Reproducer = CloneReproducer[G]{}
	}
	if cfg.Scaler == nil {
		cfg.Scaler = NullScaler[G]{}
	}
	if cfg.Selector == nil {
		cfg.Selector = NullSelector[G]{}
	}
	if cfg.Analyzer == nil {
		cfg.Analyzer = MaxIterationsAnalyzer[G]{}
	}
	if cfg.Listener == nil {
		cfg.Listener = NullListener[G]{}
	}
	rng := cfg.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(cfg.Seed))
	}

	return &Evocosm[G]{
		cfg:        cfg,
		rng:        rng,
		population: cfg.Population.Clone(),
		size:       len(cfg.Population),
	}, nil
}

// Terminate asks the run to stop before the next breeding step. It is safe to
// call from any goroutine.
func (e *Evocosm[G]) Terminate() {
	e.terminated.Store(true)
}

func (e *Evocosm[G]) Terminated() bool {
	return e.terminated.Load()
}

func (e *Evocosm[G]) Iteration() int {
	return e.iteration
}

// Population returns a copy of the current population.
func (e *Evocosm[G]) Population() Population[G] {
	return e.population.Clone()
}

func (e *Evocosm[G]) Stats() (FitnessStats[G], error) {
	return NewFitnessStats(e.population)
}

func (e *Evocosm[G]) yield() {
	if e.cfg.Yield != nil {
		e.cfg.Yield()
	}
}

// RunGeneration evaluates the population and, unless the analyzer or a
// termination request stops the run, replaces it with survivors plus mutated
// children. It reports false once the run is complete.
func (e *Evocosm[G]) RunGeneration(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	e.iteration++
	e.cfg.Listener.GenerationBegin(e.population, e.iteration)

	if _, err := e.cfg.Landscape.TestPopulation(ctx, e.rng, e.population); err != nil {
		e.cfg.Listener.ReportError(err.Error())
		return false, fmt.Errorf("generation %d fitness test: %w", e.iteration, err)
	}
	e.cfg.Listener.GenerationEnd(e.population, e.iteration)

	if !e.cfg.Analyzer.Analyze(e.population, e.iteration) {
		e.cfg.Listener.RunComplete(e.population)
		return false, nil
	}
	e.yield()

	if e.terminated.Load() {
		e.cfg.Listener.Report(fmt.Sprintf("terminated at generation %d", e.iteration))
		e.cfg.Listener.RunComplete(e.population)
		return false, nil
	}

	e.cfg.Scaler.Scale(e.population)
	e.yield()

	survivors := e.cfg.Selector.SelectSurvivors(e.population)
	if len(survivors) > e.size {
		return false, fmt.Errorf("%w: selector %s kept %d of %d", ErrPopulationSize, e.cfg.Selector.Name(), len(survivors), e.size)
	}
	e.yield()

	limit := e.size - len(survivors)
	children, err := e.cfg.Reproducer.Breed(e.rng, e.population, limit)
	if err != nil {
		e.cfg.Listener.ReportError(err.Error())
		return false, fmt.Errorf("generation %d breed: %w", e.iteration, err)
	}
	if len(children) != limit {
		return false, fmt.Errorf("%w: reproducer %s bred %d of %d", ErrPopulationSize, e.cfg.Reproducer.Name(), len(children), limit)
	}
	e.yield()

	e.cfg.Mutator.Mutate(e.rng, children)
	e.yield()

	e.population = append(survivors, children...)
	return true, nil
}

// Run loops until the analyzer stops the run, Terminate is called or ctx is
// cancelled.
func (e *Evocosm[G]) Run(ctx context.Context) error {
	for {
		more, err := e.RunGeneration(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				e.cfg.Listener.RunComplete(e.population)
			}
			return err
		}
		if !more {
			return nil
		}
	}
}
