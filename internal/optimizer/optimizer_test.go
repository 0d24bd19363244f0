package optimizer

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// paraboloid peaks at (0.25, -0.5) with fitness 1.
func paraboloid(args []float64) (float64, float64) {
	dx := args[0] - 0.25
	dy := args[1] + 0.5
	z := dx*dx + dy*dy
	return z, 1 / (1 + z)
}

func TestNewValidates(t *testing.T) {
	_, err := New(nil, DefaultConfig())
	require.ErrorIs(t, err, ErrNilFunction)

	cfg := DefaultConfig()
	cfg.Dimensions = 0
	_, err = New(paraboloid, cfg)
	require.Error(t, err)

	cfg = DefaultConfig()
	cfg.Min, cfg.Max = 1, 1
	_, err = New(paraboloid, cfg)
	require.Error(t, err)

	cfg = DefaultConfig()
	cfg.SurvivalFactor = 1.5
	_, err = New(paraboloid, cfg)
	require.Error(t, err)

	cfg = DefaultConfig()
	cfg.ScalingMultiple = 0.5
	_, err = New(paraboloid, cfg)
	require.Error(t, err)
}

func TestOptimizerApproachesPeak(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PopulationSize = 60
	cfg.MaxIterations = 150
	cfg.StallLimit = 0
	cfg.Seed = 42

	opt, err := New(paraboloid, cfg)
	require.NoError(t, err)
	res, err := opt.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 150, res.Iterations)
	assert.False(t, res.Stalled)
	require.Len(t, res.Best.Args, 2)
	assert.Greater(t, res.BestFitness, 0.9)
	assert.InDelta(t, 1/(1+res.Best.Value), res.BestFitness, 1e-12)
}

func TestOptimizerIsReproducible(t *testing.T) {
	run := func(workers int) Result {
		cfg := DefaultConfig()
		cfg.PopulationSize = 20
		cfg.MaxIterations = 25
		cfg.Workers = workers
		cfg.Seed = 7
		opt, err := New(paraboloid, cfg)
		require.NoError(t, err)
		res, err := opt.Run(context.Background())
		require.NoError(t, err)
		return res
	}
	a := run(1)
	b := run(1)
	assert.Equal(t, a.Best.Args, b.Best.Args)
	assert.Equal(t, a.BestFitness, b.BestFitness)
}

func TestStallLimitStopsRun(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PopulationSize = 5
	cfg.MaxIterations = 500
	cfg.StallLimit = 3
	cfg.MutationRate = 0
	cfg.CrossoverRate = 0

	constant := func([]float64) (float64, float64) { return 1, 1 }
	opt, err := New(constant, cfg)
	require.NoError(t, err)
	res, err := opt.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Stalled)
	assert.Less(t, res.Iterations, 500)
}

func TestUndefinedFitnessIsZero(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PopulationSize = 4
	cfg.MaxIterations = 2
	cfg.CacheSize = 16
	calls := 0
	nan := func([]float64) (float64, float64) {
		calls++
		return math.NaN(), math.NaN()
	}
	opt, err := New(nan, cfg)
	require.NoError(t, err)

	v := Vector{0.1, 0.2}
	value, fitness := opt.evaluate(v)
	assert.True(t, math.IsNaN(value))
	assert.Equal(t, 0.0, fitness)
	_, _ = opt.evaluate(v.Clone())
	assert.Equal(t, 1, calls, "second evaluation should hit the cache")
}

func TestVectorOperators(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	v := RandomVector(rng, 8, -2, 2)
	for _, x := range v {
		assert.GreaterOrEqual(t, x, -2.0)
		assert.Less(t, x, 2.0)
	}

	same := v.Clone()
	same.Mutate(rng, 0)
	assert.True(t, same.Equal(v))

	child := v.Crossover(rng, v)
	assert.Len(t, child, len(v))
	assert.False(t, v.Equal(Vector{1}))
}

func TestStallAnalyzerTracksBest(t *testing.T) {
	a := &StallAnalyzer{Limit: 2}
	_, ok := a.Best()
	assert.False(t, ok)
	assert.False(t, a.Stalled())
}

func TestTerminateEndsRunWithBest(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PopulationSize = 10
	cfg.MaxIterations = 0
	cfg.StallLimit = 0
	var opt *Optimizer
	yields := 0
	cfg.Yield = func() {
		yields++
		if yields == 7 {
			opt.Terminate()
		}
	}
	opt, err := New(paraboloid, cfg)
	require.NoError(t, err)
	res, err := opt.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Terminated)
	assert.Equal(t, 3, res.Iterations)
	assert.Greater(t, res.BestFitness, 0.0)
}
