package optimizer

import (
	"evocosm/internal/evo"
)

const DefaultStallLimit = 20

// StallAnalyzer stops a run once the best genes have stayed identical for
// Limit consecutive generations or MaxIterations is reached. It also keeps the
// best raw organism seen so far.
type StallAnalyzer struct {
	Limit         int
	MaxIterations int

	best     evo.Organism[Vector]
	haveBest bool
	previous Vector
	count    int
	stalled  bool
}

func (a *StallAnalyzer) Analyze(pop evo.Population[Vector], iteration int) bool {
	stats, err := evo.NewFitnessStats(pop)
	if err != nil {
		return false
	}

	current := stats.Best.Genes
	if a.previous != nil && a.previous.Equal(current) {
		a.count++
	} else {
		a.count = 0
	}
	a.previous = current.Clone()

	if !a.haveBest || stats.Best.Fitness > a.best.Fitness {
		a.best = stats.Best
		a.haveBest = true
	}

	if a.Limit > 0 && a.count >= a.Limit {
		a.stalled = true
		return false
	}
	return a.MaxIterations <= 0 || iteration < a.MaxIterations
}

// Best reports the fittest organism observed across all generations.
func (a *StallAnalyzer) Best() (evo.Organism[Vector], bool) {
	return a.best, a.haveBest
}

func (a *StallAnalyzer) Stalled() bool {
	return a.stalled
}
