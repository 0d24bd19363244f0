package evocosm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"strings"

	"golang.org/x/exp/slices"

	"evocosm/internal/evo"
	"evocosm/internal/fsm"
	"evocosm/internal/metrics"
	"evocosm/internal/model"
	"evocosm/internal/optimizer"
	"evocosm/internal/report"
	"evocosm/internal/scape"
	"evocosm/internal/stats"
)

const (
	ProblemFuncOpt = "funcopt"
	ProblemPD      = "pd"
	ProblemPDFuzzy = "pd-fuzzy"
)

type ProblemInfo struct {
	Name        string
	Description string
}

type runEnv struct {
	runID      string
	logger     *slog.Logger
	collectors *metrics.Collectors
	progress   io.Writer
}

type runResult struct {
	iterations  int
	evaluations int64
	terminated  bool
	stalled     bool
	generations []model.GenerationStats
	bestFitness float64
	bestValue   *float64
	best        *stats.BestOrganism
}

type problem struct {
	info     ProblemInfo
	defaults func(RunRequest) RunRequest
	run      func(ctx context.Context, env runEnv, req RunRequest) (runResult, error)
}

var problems = map[string]problem{
	ProblemFuncOpt: {
		info:     ProblemInfo{Name: ProblemFuncOpt, Description: "maximise the two-dimensional sample function over [-1,1]^2"},
		defaults: funcOptDefaults,
		run:      runFuncOpt,
	},
	ProblemPD: {
		info:     ProblemInfo{Name: ProblemPD, Description: "evolve state machines for the iterated prisoner's dilemma"},
		defaults: dilemmaDefaults,
		run:      runMachineDilemma,
	},
	ProblemPDFuzzy: {
		info:     ProblemInfo{Name: ProblemPDFuzzy, Description: "evolve fuzzy state machines for the iterated prisoner's dilemma"},
		defaults: dilemmaDefaults,
		run:      runFuzzyDilemma,
	},
}

// Problems lists the runnable problems by name.
func (c *Client) Problems() []ProblemInfo {
	out := make([]ProblemInfo, 0, len(problems))
	for _, p := range problems {
		out = append(out, p.info)
	}
	slices.SortFunc(out, func(a, b ProblemInfo) int { return strings.Compare(a.Name, b.Name) })
	return out
}

func lookupProblem(name string) (problem, error) {
	if name == "" {
		name = ProblemFuncOpt
	}
	p, ok := problems[name]
	if !ok {
		return problem{}, fmt.Errorf("unknown problem: %s", name)
	}
	return p, nil
}

func funcOptDefaults(req RunRequest) RunRequest {
	req.Problem = ProblemFuncOpt
	if req.Population == 0 {
		req.Population = 100
	}
	if req.Generations == 0 {
		req.Generations = 1000
	}
	if req.MutationRate == 0 {
		req.MutationRate = 0.25
	}
	if req.CrossoverRate == 0 {
		req.CrossoverRate = 0.9
	}
	if req.Scaler == "" {
		req.Scaler = "linear_norm"
	}
	if req.Selector == "" {
		req.Selector = "fraction"
	}
	if req.Selector == "fraction" && req.SurvivalFactor == 0 {
		req.SurvivalFactor = 0.9
	}
	if req.StallLimit == 0 {
		req.StallLimit = optimizer.DefaultStallLimit
	}
	return req
}

func dilemmaDefaults(req RunRequest) RunRequest {
	if req.Population == 0 {
		req.Population = 100
	}
	if req.Generations == 0 {
		req.Generations = 100
	}
	if req.MutationRate == 0 {
		req.MutationRate = 0.25
	}
	if req.CrossoverRate == 0 {
		req.CrossoverRate = 1
	}
	if req.Scaler == "" {
		req.Scaler = "linear_norm"
	}
	if req.Selector == "" {
		req.Selector = "elitism"
	}
	if req.Selector == "elitism" && req.SurvivorCount == 0 {
		req.SurvivorCount = max(1, req.Population/2)
	}
	if req.Selector == "fraction" && req.SurvivalFactor == 0 {
		req.SurvivalFactor = 0.5
	}
	if req.StateCount == 0 {
		req.StateCount = 4
	}
	if req.Rounds == 0 {
		req.Rounds = 20
	}
	return req
}

// runListeners builds the listener chain shared by every problem.
func runListeners[G evo.Genome[G]](env runEnv) (*report.HistoryListener[G], evo.Listener[G]) {
	history := report.NewHistoryListener[G]()
	all := evo.MultiListener[G]{history, report.NewLogListener[G](env.logger)}
	if env.collectors != nil {
		all = append(all, metrics.NewListener[G](env.collectors, env.runID))
	}
	if env.progress != nil {
		all = append(all, report.NewCSVListener[G](env.progress, true))
	}
	return history, all
}

func bestOrganism[G evo.Genome[G]](history *report.HistoryListener[G], encode func(G) any) (*stats.BestOrganism, float64, error) {
	org, gen, ok := history.Best()
	if !ok {
		return nil, 0, nil
	}
	genes, err := json.Marshal(encode(org.Genes))
	if err != nil {
		return nil, 0, fmt.Errorf("encode best genes: %w", err)
	}
	return &stats.BestOrganism{Generation: gen, Fitness: org.Fitness, Genes: genes}, org.Fitness, nil
}

func runFuncOpt(ctx context.Context, env runEnv, req RunRequest) (runResult, error) {
	scaler, err := evo.ResolveScaler[optimizer.Vector](req.Scaler, req.ScalerParam)
	if err != nil {
		return runResult{}, err
	}
	selector, err := evo.ResolveSelector[optimizer.Vector](req.Selector, req.SurvivorCount, req.SurvivalFactor)
	if err != nil {
		return runResult{}, err
	}
	history, listener := runListeners[optimizer.Vector](env)

	cfg := optimizer.DefaultConfig()
	cfg.Min, cfg.Max = scape.SampleMin, scape.SampleMax
	cfg.PopulationSize = req.Population
	cfg.MaxIterations = req.Generations
	cfg.MutationRate = req.MutationRate
	cfg.CrossoverRate = req.CrossoverRate
	cfg.StallLimit = req.StallLimit
	cfg.Workers = req.Workers
	cfg.CacheSize = 4 * req.Population
	cfg.Seed = req.Seed
	cfg.Listener = listener
	cfg.Scaler = scaler
	cfg.Selector = selector

	opt, err := optimizer.New(scape.SampleFunction, cfg)
	if err != nil {
		return runResult{}, err
	}
	stop := context.AfterFunc(ctx, opt.Terminate)
	defer stop()
	if ctx.Err() != nil {
		opt.Terminate()
	}

	res, err := opt.Run(context.WithoutCancel(ctx))
	if err != nil {
		return runResult{}, err
	}

	genes, err := json.Marshal(res.Best.Args)
	if err != nil {
		return runResult{}, fmt.Errorf("encode best genes: %w", err)
	}
	_, gen, _ := history.Best()
	value := res.Best.Value
	return runResult{
		iterations:  res.Iterations,
		evaluations: history.Evaluations(),
		terminated:  res.Terminated,
		stalled:     res.Stalled,
		generations: history.Generations(),
		bestFitness: res.BestFitness,
		bestValue:   &value,
		best:        &stats.BestOrganism{Generation: gen, Fitness: res.BestFitness, Value: &value, Genes: genes},
	}, nil
}

// strategy is a prisoner's dilemma genome the engine can breed.
type strategy[G any] interface {
	scape.Strategy[G]
	evo.Mutable
	Crossover(rng *rand.Rand, other G) G
}

func runMachineDilemma(ctx context.Context, env runEnv, req RunRequest) (runResult, error) {
	history, listener := runListeners[*fsm.Machine](env)
	landscape := scape.NewMachineDilemma(req.Rounds, req.Workers, listener)
	return evolveStrategies[*fsm.Machine](ctx, req, history, listener, landscape,
		func(rng *rand.Rand) (*fsm.Machine, error) {
			return fsm.New(rng, req.StateCount, 2, 2, fsm.MutationWeights{})
		},
		func(m *fsm.Machine) any { return m.Table() },
	)
}

func runFuzzyDilemma(ctx context.Context, env runEnv, req RunRequest) (runResult, error) {
	history, listener := runListeners[*fsm.Fuzzy](env)
	landscape := scape.NewFuzzyDilemma(req.Rounds, req.Workers, listener)
	return evolveStrategies[*fsm.Fuzzy](ctx, req, history, listener, landscape,
		func(rng *rand.Rand) (*fsm.Fuzzy, error) {
			return fsm.NewFuzzy(rng, req.StateCount, 2, 2, fsm.FuzzyConfig{})
		},
		func(f *fsm.Fuzzy) any { return f.Table() },
	)
}

func evolveStrategies[G strategy[G]](
	ctx context.Context,
	req RunRequest,
	history *report.HistoryListener[G],
	listener evo.Listener[G],
	landscape evo.Landscape[G],
	newGenome func(*rand.Rand) (G, error),
	encode func(G) any,
) (runResult, error) {
	scaler, err := evo.ResolveScaler[G](req.Scaler, req.ScalerParam)
	if err != nil {
		return runResult{}, err
	}
	selector, err := evo.ResolveSelector[G](req.Selector, req.SurvivorCount, req.SurvivalFactor)
	if err != nil {
		return runResult{}, err
	}

	rng := rand.New(rand.NewSource(req.Seed))
	pop, err := evo.NewPopulation(req.Population, func(int) (G, error) {
		return newGenome(rng)
	})
	if err != nil {
		return runResult{}, err
	}

	engine, err := evo.New(evo.Config[G]{
		Population: pop,
		Landscape:  landscape,
		Mutator:    evo.NewRateMutator[G](req.MutationRate),
		Reproducer: evo.NewRouletteReproducer[G](req.CrossoverRate),
		Scaler:     scaler,
		Selector:   selector,
		Analyzer:   evo.MaxIterationsAnalyzer[G]{MaxIterations: req.Generations},
		Listener:   listener,
		Rand:       rng,
	})
	if err != nil {
		return runResult{}, err
	}
	stop := context.AfterFunc(ctx, engine.Terminate)
	defer stop()
	if ctx.Err() != nil {
		engine.Terminate()
	}

	if err := engine.Run(context.WithoutCancel(ctx)); err != nil {
		return runResult{}, err
	}

	best, fitness, err := bestOrganism(history, encode)
	if err != nil {
		return runResult{}, err
	}
	return runResult{
		iterations:  engine.Iteration(),
		evaluations: history.Evaluations(),
		terminated:  engine.Terminated(),
		generations: history.Generations(),
		bestFitness: fitness,
		best:        best,
	}, nil
}
