package evo

import (
	"math"
	"testing"
)

func fitnessOf(pop Population[testGenes]) []float64 {
	return pop.Fitnesses()
}

func assertClose(t *testing.T, label string, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > 1e-9*math.Max(1, math.Abs(want)) {
		t.Fatalf("%s: expected %.12g, got %.12g", label, want, got)
	}
}

func TestLinearNormScalerNormalBranch(t *testing.T) {
	raw := []float64{1, 2, 3, 4, 100}
	pop := populationWithFitness(raw...)
	const c = 2.0
	avg := 22.0
	// 1 > (2*22 - 100) / (2 - 1) selects the normal branch
	if !(1 > (c*avg-100)/(c-1)) {
		t.Fatal("fixture no longer exercises the normal branch")
	}
	delta := 100 - avg
	slope := (c - 1) * avg / delta
	intercept := avg * (100 - c*avg) / delta

	LinearNormScaler[testGenes]{Multiple: c}.Scale(pop)
	for i, f := range fitnessOf(pop) {
		assertClose(t, "scaled", f, slope*raw[i]+intercept)
	}
	assertClose(t, "max maps to C*avg", pop[4].Fitness, c*avg)
}

func TestLinearNormScalerExtremeBranch(t *testing.T) {
	raw := []float64{2, 10, 10, 10, 10}
	pop := populationWithFitness(raw...)
	const c = 2.0
	avg := 8.4
	if 2 > (c*avg-10)/(c-1) {
		t.Fatal("fixture no longer exercises the extreme branch")
	}
	slope := avg / (avg - 2)
	intercept := -2 * avg / (avg - 2)

	LinearNormScaler[testGenes]{Multiple: c}.Scale(pop)
	for i, f := range fitnessOf(pop) {
		assertClose(t, "scaled", f, slope*raw[i]+intercept)
	}
	assertClose(t, "min maps to zero", pop[0].Fitness, 0)
}

func TestLinearNormScalerNegativeMeanKeepsOrder(t *testing.T) {
	pop := populationWithFitness(-0.1, -1, -2)
	LinearNormScaler[testGenes]{Multiple: 2}.Scale(pop)
	// shifted to [1.9, 1, 0] with mean 29/30, which takes the extreme branch
	// with slope 1 and intercept 0
	for i, want := range []float64{1.9, 1, 0} {
		assertClose(t, "negative mean", pop[i].Fitness, want)
	}
}

func TestLinearNormScalerFlatPopulationUnchanged(t *testing.T) {
	pop := populationWithFitness(3, 3, 3)
	LinearNormScaler[testGenes]{}.Scale(pop)
	for _, f := range fitnessOf(pop) {
		if f != 3 {
			t.Fatalf("expected unchanged fitness, got %g", f)
		}
	}
}

func TestWindowedScaler(t *testing.T) {
	pop := populationWithFitness(-3, 0, 5)
	WindowedScaler[testGenes]{}.Scale(pop)
	want := []float64{0, 3, 8}
	for i, f := range fitnessOf(pop) {
		assertClose(t, "windowed", f, want[i])
	}
}

func TestExponentialAndQuadraticScalers(t *testing.T) {
	pop := populationWithFitness(1, 2, -1)
	DefaultExponentialScaler[testGenes]().Scale(pop)
	for i, want := range []float64{4, 9, 0} {
		assertClose(t, "exponential", pop[i].Fitness, want)
	}

	pop = populationWithFitness(1, 2, 3)
	QuadraticScaler[testGenes]{A: 2, B: -1, C: 0.5}.Scale(pop)
	for i, want := range []float64{1.5, 6.5, 15.5} {
		assertClose(t, "quadratic", pop[i].Fitness, want)
	}
}

func TestSigmaScalerZeroVarianceGivesOne(t *testing.T) {
	pop := populationWithFitness(7, 7, 7, 7)
	SigmaScaler[testGenes]{}.Scale(pop)
	for _, f := range fitnessOf(pop) {
		if f != 1.0 {
			t.Fatalf("expected exactly 1.0, got %g", f)
		}
	}
}

func TestSigmaScalerFormulaAndFloor(t *testing.T) {
	raw := []float64{1, 2, 3, -4, 0.1}
	pop := populationWithFitness(raw...)
	mean, variance := meanVariance(raw)
	sigma2 := 2 * math.Sqrt(variance)

	SigmaScaler[testGenes]{}.Scale(pop)
	for i, f := range fitnessOf(pop) {
		want := (1 + raw[i]/mean) / sigma2
		if want < DefaultSigmaFloor {
			want = DefaultSigmaFloor
		}
		assertClose(t, "sigma", f, want)
		if f < DefaultSigmaFloor {
			t.Fatalf("fitness %g below floor", f)
		}
	}
}

func TestSigmaScalerNonPositiveMeanKeepsOrder(t *testing.T) {
	raw := []float64{-0.1, -1, -2, -20}
	pop := populationWithFitness(raw...)
	mean, variance := meanVariance(raw)
	sigma2 := 2 * math.Sqrt(variance)
	lo := -20.0
	shifted := mean - lo

	SigmaScaler[testGenes]{}.Scale(pop)
	got := fitnessOf(pop)
	for i := range raw {
		want := (1 + (raw[i]-lo)/shifted) / sigma2
		if want < DefaultSigmaFloor {
			want = DefaultSigmaFloor
		}
		assertClose(t, "sigma shifted", got[i], want)
	}
	for i := 1; i < len(got); i++ {
		if got[i] > got[i-1] {
			t.Fatalf("scaled fitness must follow raw order: %v", got)
		}
	}
	if !(got[0] > got[1]) {
		t.Fatalf("best raw organism must scale strictly highest: %v", got)
	}

	best := ElitismSelector[testGenes]{Count: 1}.SelectSurvivors(pop)
	if len(best) != 1 || best[0].Genes[0] != 0 {
		t.Fatalf("elitism after sigma scaling kept %v, want the raw best", best)
	}
}

func TestInvertScaler(t *testing.T) {
	pop := populationWithFitness(1, 4, 10)
	InvertScaler[testGenes]{}.Scale(pop)
	for i, want := range []float64{10, 7, 1} {
		assertClose(t, "invert", pop[i].Fitness, want)
	}
}

func TestResolveScaler(t *testing.T) {
	for _, name := range ListScalers() {
		s, err := ResolveScaler[testGenes](name, 0)
		if err != nil {
			t.Fatalf("resolve %s: %v", name, err)
		}
		if s.Name() != name {
			t.Fatalf("expected name %s, got %s", name, s.Name())
		}
	}
	if _, err := ResolveScaler[testGenes]("linear_norm", 0.5); err == nil {
		t.Fatal("expected error for multiple <= 1")
	}
	if _, err := ResolveScaler[testGenes]("bogus", 0); err == nil {
		t.Fatal("expected error for unknown scaler")
	}
}
