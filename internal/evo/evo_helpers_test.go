package evo

import (
	"context"
	"fmt"
	"math/rand"
)

type testGenes []float64

func (g testGenes) Clone() testGenes {
	return append(testGenes(nil), g...)
}

func (g testGenes) Mutate(rng *rand.Rand, rate float64) {
	for i := range g {
		if rng.Float64() < rate {
			g[i] += rng.NormFloat64()
		}
	}
}

func (g testGenes) Crossover(rng *rand.Rand, other testGenes) testGenes {
	out := g.Clone()
	for i := range out {
		if i < len(other) && rng.Intn(2) == 1 {
			out[i] = other[i]
		}
	}
	return out
}

func populationWithFitness(values ...float64) Population[testGenes] {
	pop := make(Population[testGenes], len(values))
	for i, f := range values {
		pop[i] = Organism[testGenes]{Fitness: f, Genes: testGenes{float64(i)}}
	}
	return pop
}

type funcLandscape struct {
	fn func(testGenes) float64
}

func (l funcLandscape) Test(_ context.Context, _ *rand.Rand, org *Organism[testGenes]) float64 {
	org.Fitness = l.fn(org.Genes)
	return org.Fitness
}

func (l funcLandscape) TestPopulation(ctx context.Context, rng *rand.Rand, pop Population[testGenes]) (float64, error) {
	total := 0.0
	for i := range pop {
		total += l.Test(ctx, rng, &pop[i])
	}
	return total / float64(len(pop)), nil
}

type recordingListener struct {
	NullListener[testGenes]
	events []string
	best   []float64
}

func (l *recordingListener) GenerationBegin(pop Population[testGenes], iteration int) {
	l.events = append(l.events, fmt.Sprintf("begin:%d:%d", iteration, len(pop)))
}

func (l *recordingListener) GenerationEnd(pop Population[testGenes], iteration int) {
	l.events = append(l.events, fmt.Sprintf("end:%d", iteration))
	_, hi := fitnessRange(pop)
	l.best = append(l.best, hi)
}

func (l *recordingListener) Report(text string) {
	l.events = append(l.events, "report:"+text)
}

func (l *recordingListener) RunComplete(pop Population[testGenes]) {
	l.events = append(l.events, fmt.Sprintf("complete:%d", len(pop)))
}
