package evo

// Analyzer decides after each evaluation whether the run continues.
type Analyzer[G Genome[G]] interface {
	Analyze(pop Population[G], iteration int) bool
}

// MaxIterationsAnalyzer stops once iteration reaches MaxIterations. Zero means
// run until terminated.
type MaxIterationsAnalyzer[G Genome[G]] struct {
	MaxIterations int
}

func (a MaxIterationsAnalyzer[G]) Analyze(_ Population[G], iteration int) bool {
	return a.MaxIterations <= 0 || iteration < a.MaxIterations
}

// FitnessGoalAnalyzer stops when the best raw fitness reaches Goal or the
// iteration cap is hit.
type FitnessGoalAnalyzer[G Genome[G]] struct {
	Goal          float64
	MaxIterations int
}

func (a FitnessGoalAnalyzer[G]) Analyze(pop Population[G], iteration int) bool {
	if len(pop) > 0 {
		_, best := fitnessRange(pop)
		if best >= a.Goal {
			return false
		}
	}
	return MaxIterationsAnalyzer[G]{MaxIterations: a.MaxIterations}.Analyze(pop, iteration)
}
