package evo

import (
	"golang.org/x/exp/slices"
)

// Selector picks the organisms that survive unchanged into the next
// generation. Survivors are copies.
type Selector[G Genome[G]] interface {
	Name() string
	SelectSurvivors(pop Population[G]) Population[G]
}

// NullSelector keeps nobody, so every generation is bred from scratch.
type NullSelector[G Genome[G]] struct{}

func (NullSelector[G]) Name() string { return "none" }

func (NullSelector[G]) SelectSurvivors(Population[G]) Population[G] {
	return Population[G]{}
}

// AllSelector keeps everybody.
type AllSelector[G Genome[G]] struct{}

func (AllSelector[G]) Name() string { return "all" }

func (AllSelector[G]) SelectSurvivors(pop Population[G]) Population[G] {
	return pop.Clone()
}

// ElitismSelector keeps the Count fittest organisms. Equal fitness keeps
// population order.
type ElitismSelector[G Genome[G]] struct {
	Count int
}

func (ElitismSelector[G]) Name() string { return "elitism" }

func (s ElitismSelector[G]) SelectSurvivors(pop Population[G]) Population[G] {
	if s.Count <= 0 || len(pop) == 0 {
		return Population[G]{}
	}
	best := make([]int, 0, s.Count+1)
	for i := range pop {
		pos := slices.IndexFunc(best, func(j int) bool {
			return pop[j].Fitness < pop[i].Fitness
		})
		if pos < 0 {
			if len(best) >= s.Count {
				continue
			}
			pos = len(best)
		}
		best = slices.Insert(best, pos, i)
		if len(best) > s.Count {
			best = best[:s.Count]
		}
	}
	out := make(Population[G], len(best))
	for k, idx := range best {
		out[k] = pop[idx].Clone()
	}
	return out
}

// FractionSelector keeps every organism scoring at least Factor times the best
// fitness. The best organism always survives.
type FractionSelector[G Genome[G]] struct {
	Factor float64
}

func (FractionSelector[G]) Name() string { return "fraction" }

func (s FractionSelector[G]) SelectSurvivors(pop Population[G]) Population[G] {
	if len(pop) == 0 {
		return Population[G]{}
	}
	_, best := fitnessRange(pop)
	threshold := clampUnit(s.Factor) * best
	out := make(Population[G], 0, len(pop))
	for i := range pop {
		if pop[i].Fitness >= threshold || pop[i].Fitness == best {
			out = append(out, pop[i].Clone())
		}
	}
	return out
}
