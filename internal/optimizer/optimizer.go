// Package optimizer searches for the maximum-fitness argument vector of a
// user-supplied function.
package optimizer

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"math/rand"

	lru "github.com/hashicorp/golang-lru"

	"evocosm/internal/evo"
)

// Function maps an argument vector to its raw value and its fitness. Higher
// fitness is better.
type Function func(args []float64) (value, fitness float64)

var ErrNilFunction = errors.New("optimizer function is required")

type Config struct {
	Dimensions      int
	Min             float64
	Max             float64
	PopulationSize  int
	MutationRate    float64
	CrossoverRate   float64
	ScalingMultiple float64
	SurvivalFactor  float64
	MaxIterations   int
	StallLimit      int
	Workers         int
	CacheSize       int
	Seed            int64
	Rand            *rand.Rand
	Listener        evo.Listener[Vector]
	Yield           func()

	// Scaler and Selector replace the linear norm scaler and fraction
	// selector built from ScalingMultiple and SurvivalFactor.
	Scaler   evo.Scaler[Vector]
	Selector evo.Selector[Vector]
}

func DefaultConfig() Config {
	return Config{
		Dimensions:      2,
		Min:             -1,
		Max:             1,
		PopulationSize:  100,
		MutationRate:    0.25,
		CrossoverRate:   0.9,
		ScalingMultiple: 10,
		SurvivalFactor:  0.9,
		MaxIterations:   1000,
		StallLimit:      DefaultStallLimit,
		Workers:         1,
	}
}

func (c Config) validate() error {
	if c.Dimensions <= 0 {
		return fmt.Errorf("dimensions must be > 0")
	}
	if !(c.Min < c.Max) || math.IsInf(c.Max-c.Min, 0) {
		return fmt.Errorf("argument range [%g, %g) is invalid", c.Min, c.Max)
	}
	if c.PopulationSize <= 0 {
		return fmt.Errorf("population size must be > 0")
	}
	if c.ScalingMultiple != 0 && !(c.ScalingMultiple > 1) {
		return fmt.Errorf("scaling multiple must be > 1, got %g", c.ScalingMultiple)
	}
	if c.SurvivalFactor < 0 || c.SurvivalFactor > 1 {
		return fmt.Errorf("survival factor must be in [0,1], got %g", c.SurvivalFactor)
	}
	if c.MaxIterations < 0 || c.StallLimit < 0 || c.CacheSize < 0 {
		return fmt.Errorf("iteration, stall and cache limits must be >= 0")
	}
	return nil
}

// Solution is an argument vector with the function value it produced.
type Solution struct {
	Args  Vector  `json:"args"`
	Value float64 `json:"value"`
}

type Result struct {
	Best        Solution
	BestFitness float64
	Iterations  int
	Stalled     bool
	Terminated  bool
}

type Optimizer struct {
	fn       Function
	cfg      Config
	cache    *lru.Cache
	analyzer *StallAnalyzer
	engine   *evo.Evocosm[Vector]
}

func New(fn Function, cfg Config) (*Optimizer, error) {
	if fn == nil {
		return nil, ErrNilFunction
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.ScalingMultiple == 0 {
		cfg.ScalingMultiple = 10
	}
	rng := cfg.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(cfg.Seed))
	}

	o := &Optimizer{
		fn:       fn,
		cfg:      cfg,
		analyzer: &StallAnalyzer{Limit: cfg.StallLimit, MaxIterations: cfg.MaxIterations},
	}
	if cfg.CacheSize > 0 {
		cache, err := lru.New(cfg.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("fitness cache: %w", err)
		}
		o.cache = cache
	}

	pop, err := evo.NewPopulation(cfg.PopulationSize, func(int) (Vector, error) {
		return RandomVector(rng, cfg.Dimensions, cfg.Min, cfg.Max), nil
	})
	if err != nil {
		return nil, err
	}
	landscape, err := evo.NewOrganismLandscape(func(_ context.Context, _ *rand.Rand, genes Vector) float64 {
		_, fitness := o.evaluate(genes)
		return fitness
	}, cfg.Workers, cfg.Listener)
	if err != nil {
		return nil, err
	}

	scaler := cfg.Scaler
	if scaler == nil {
		scaler = evo.LinearNormScaler[Vector]{Multiple: cfg.ScalingMultiple}
	}
	selector := cfg.Selector
	if selector == nil {
		selector = evo.FractionSelector[Vector]{Factor: cfg.SurvivalFactor}
	}

	o.engine, err = evo.New(evo.Config[Vector]{
		Population: pop,
		Landscape:  landscape,
		Mutator:    evo.NewRateMutator[Vector](cfg.MutationRate),
		Reproducer: evo.NewRouletteReproducer[Vector](cfg.CrossoverRate),
		Scaler:     scaler,
		Selector:   selector,
		Analyzer:   o.analyzer,
		Listener:   cfg.Listener,
		Rand:       rng,
		Yield:      cfg.Yield,
	})
	if err != nil {
		return nil, err
	}
	return o, nil
}

type cached struct {
	value   float64
	fitness float64
}

// evaluate calls the function, mapping undefined results to zero.
func (o *Optimizer) evaluate(args Vector) (float64, float64) {
	var key string
	if o.cache != nil {
		key = cacheKey(args)
		if hit, ok := o.cache.Get(key); ok {
			c := hit.(cached)
			return c.value, c.fitness
		}
	}
	value, fitness := o.fn(args)
	if math.IsNaN(fitness) || math.IsInf(fitness, 0) {
		fitness = 0
	}
	if o.cache != nil {
		o.cache.Add(key, cached{value: value, fitness: fitness})
	}
	return value, fitness
}

func cacheKey(args Vector) string {
	buf := make([]byte, 8*len(args))
	for i, v := range args {
		binary.LittleEndian.PutUint64(buf[8*i:], math.Float64bits(v))
	}
	return string(buf)
}

// Terminate stops the run before the next breeding step.
func (o *Optimizer) Terminate() {
	o.engine.Terminate()
}

func (o *Optimizer) Run(ctx context.Context) (Result, error) {
	if err := o.engine.Run(ctx); err != nil {
		return Result{}, err
	}
	best, ok := o.analyzer.Best()
	if !ok {
		return Result{}, fmt.Errorf("optimizer finished without evaluating a generation")
	}
	value, fitness := o.evaluate(best.Genes)
	if o.analyzer.Stalled() && o.cfg.Listener != nil {
		o.cfg.Listener.Report(fmt.Sprintf("best solution unchanged for %d generations", o.cfg.StallLimit))
	}
	return Result{
		Best:        Solution{Args: best.Genes.Clone(), Value: value},
		BestFitness: fitness,
		Iterations:  o.engine.Iteration(),
		Stalled:     o.analyzer.Stalled(),
		Terminated:  o.engine.Terminated(),
	}, nil
}
