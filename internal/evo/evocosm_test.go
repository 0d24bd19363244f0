package evo

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"strings"
	"testing"
)

var target = testGenes{0.5, -0.25}

func distanceFitness(g testGenes) float64 {
	return -math.Hypot(g[0]-target[0], g[1]-target[1])
}

func randomPopulation(t *testing.T, rng *rand.Rand, size int) Population[testGenes] {
	t.Helper()
	pop, err := NewPopulation(size, func(int) (testGenes, error) {
		return testGenes{rng.Float64()*4 - 2, rng.Float64()*4 - 2}, nil
	})
	if err != nil {
		t.Fatalf("new population: %v", err)
	}
	return pop
}

func TestNewValidatesConfig(t *testing.T) {
	if _, err := New(Config[testGenes]{Landscape: funcLandscape{fn: distanceFitness}}); err == nil {
		t.Fatal("expected error for empty population")
	}
	pop := populationWithFitness(1)
	if _, err := New(Config[testGenes]{Population: pop}); err == nil {
		t.Fatal("expected error for missing landscape")
	}
	if _, err := NewPopulation[testGenes](0, func(int) (testGenes, error) { return nil, nil }); !errors.Is(err, ErrEmptyPopulation) {
		t.Fatalf("expected ErrEmptyPopulation, got %v", err)
	}
}

func TestRunGenerationKeepsPopulationSize(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	selectors := []Selector[testGenes]{
		NullSelector[testGenes]{},
		AllSelector[testGenes]{},
		ElitismSelector[testGenes]{Count: 3},
		FractionSelector[testGenes]{Factor: 0.5},
	}
	for _, sel := range selectors {
		e, err := New(Config[testGenes]{
			Population: randomPopulation(t, rng, 10),
			Landscape:  funcLandscape{fn: distanceFitness},
			Mutator:    NewRateMutator[testGenes](0.2),
			Reproducer: NewRouletteReproducer[testGenes](0.8),
			Scaler:     SigmaScaler[testGenes]{},
			Selector:   sel,
			Rand:       rng,
		})
		if err != nil {
			t.Fatalf("new evocosm: %v", err)
		}
		for gen := 0; gen < 15; gen++ {
			more, err := e.RunGeneration(context.Background())
			if err != nil {
				t.Fatalf("%s generation %d: %v", sel.Name(), gen, err)
			}
			if !more {
				t.Fatalf("%s: unexpected stop", sel.Name())
			}
			if n := len(e.Population()); n != 10 {
				t.Fatalf("%s generation %d: population size %d", sel.Name(), gen, n)
			}
		}
	}
}

func TestElitismKeepsBestMonotonic(t *testing.T) {
	scalers := []Scaler[testGenes]{
		SigmaScaler[testGenes]{},
		WindowedScaler[testGenes]{},
		LinearNormScaler[testGenes]{},
		NullScaler[testGenes]{},
	}
	for _, scaler := range scalers {
		for seed := int64(1); seed <= 50; seed++ {
			rng := rand.New(rand.NewSource(seed))
			listener := &recordingListener{}
			e, err := New(Config[testGenes]{
				Population: randomPopulation(t, rng, 4),
				Landscape:  funcLandscape{fn: distanceFitness},
				Mutator:    NewRateMutator[testGenes](0),
				Reproducer: NewRouletteReproducer[testGenes](1),
				Scaler:     scaler,
				Selector:   ElitismSelector[testGenes]{Count: 1},
				Analyzer:   MaxIterationsAnalyzer[testGenes]{MaxIterations: 50},
				Listener:   listener,
				Rand:       rng,
			})
			if err != nil {
				t.Fatalf("new evocosm: %v", err)
			}
			if err := e.Run(context.Background()); err != nil {
				t.Fatalf("%s seed %d: run: %v", scaler.Name(), seed, err)
			}
			if e.Iteration() != 50 || len(listener.best) != 50 {
				t.Fatalf("%s seed %d: expected 50 generations, got %d (%d events)", scaler.Name(), seed, e.Iteration(), len(listener.best))
			}
			for i := 1; i < len(listener.best); i++ {
				if listener.best[i] < listener.best[i-1] {
					t.Fatalf("%s seed %d: best fitness decreased at generation %d: %g -> %g",
						scaler.Name(), seed, i+1, listener.best[i-1], listener.best[i])
				}
			}
		}
	}
}

func TestAnalyzerStopReportsRunComplete(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	listener := &recordingListener{}
	e, err := New(Config[testGenes]{
		Population: randomPopulation(t, rng, 3),
		Landscape:  funcLandscape{fn: func(testGenes) float64 { return 1 }},
		Analyzer:   MaxIterationsAnalyzer[testGenes]{MaxIterations: 2},
		Selector:   AllSelector[testGenes]{},
		Listener:   listener,
		Rand:       rng,
	})
	if err != nil {
		t.Fatalf("new evocosm: %v", err)
	}
	if err := e.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	want := []string{"begin:1:3", "end:1", "begin:2:3", "end:2", "complete:3"}
	if strings.Join(listener.events, ",") != strings.Join(want, ",") {
		t.Fatalf("unexpected events: %v", listener.events)
	}
}

func TestTerminateStopsBeforeBreeding(t *testing.T) {
	rng := rand.New(rand.NewSource(6))
	listener := &recordingListener{}
	yields := 0
	var e *Evocosm[testGenes]
	e, err := New(Config[testGenes]{
		Population: randomPopulation(t, rng, 4),
		Landscape:  funcLandscape{fn: distanceFitness},
		Reproducer: NewRouletteReproducer[testGenes](1),
		Scaler:     SigmaScaler[testGenes]{},
		Listener:   listener,
		Rand:       rng,
		Yield: func() {
			yields++
			if yields == 7 {
				e.Terminate()
			}
		},
	})
	if err != nil {
		t.Fatalf("new evocosm: %v", err)
	}
	if err := e.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !e.Terminated() {
		t.Fatal("expected terminated flag")
	}
	// five yields per completed generation; the seventh falls in generation 2
	if e.Iteration() != 3 {
		t.Fatalf("expected stop in generation 3, got %d", e.Iteration())
	}
	last := listener.events[len(listener.events)-1]
	if last != "complete:4" {
		t.Fatalf("expected run complete last, got %v", listener.events)
	}
	stats, err := e.Stats()
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Max > 0 {
		t.Fatalf("raw fitness expected after termination, got max %g", stats.Max)
	}
}

func TestRunHonoursContext(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	e, err := New(Config[testGenes]{
		Population: randomPopulation(t, rng, 2),
		Landscape:  funcLandscape{fn: distanceFitness},
		Rand:       rng,
	})
	if err != nil {
		t.Fatalf("new evocosm: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := e.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

type shortReproducer struct{}

func (shortReproducer) Name() string { return "short" }

func (shortReproducer) Breed(_ *rand.Rand, _ Population[testGenes], _ int) (Population[testGenes], error) {
	return Population[testGenes]{}, nil
}

func TestReproducerCountIsEnforced(t *testing.T) {
	rng := rand.New(rand.NewSource(8))
	e, err := New(Config[testGenes]{
		Population: randomPopulation(t, rng, 3),
		Landscape:  funcLandscape{fn: distanceFitness},
		Reproducer: shortReproducer{},
		Rand:       rng,
	})
	if err != nil {
		t.Fatalf("new evocosm: %v", err)
	}
	if _, err := e.RunGeneration(context.Background()); !errors.Is(err, ErrPopulationSize) {
		t.Fatalf("expected ErrPopulationSize, got %v", err)
	}
}

func TestFitnessGoalAnalyzer(t *testing.T) {
	a := FitnessGoalAnalyzer[testGenes]{Goal: 5, MaxIterations: 10}
	if !a.Analyze(populationWithFitness(1, 4), 1) {
		t.Fatal("expected continue below goal")
	}
	if a.Analyze(populationWithFitness(1, 5), 1) {
		t.Fatal("expected stop at goal")
	}
	if a.Analyze(populationWithFitness(1), 10) {
		t.Fatal("expected stop at iteration cap")
	}
	if !(MaxIterationsAnalyzer[testGenes]{}).Analyze(nil, 1_000_000) {
		t.Fatal("zero max iterations must run forever")
	}
}
