package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"golang.org/x/exp/slices"

	"evocosm/pkg/evocosm"
)

// runFileConfig is the TOML form of a run request. Zero values fall back to
// the problem defaults.
type runFileConfig struct {
	Problem        string  `toml:"problem"`
	Population     int     `toml:"population"`
	Generations    int     `toml:"generations"`
	Seed           int64   `toml:"seed"`
	Workers        int     `toml:"workers"`
	MutationRate   float64 `toml:"mutation_rate"`
	CrossoverRate  float64 `toml:"crossover_rate"`
	Scaler         string  `toml:"scaler"`
	ScalerParam    float64 `toml:"scaler_param"`
	Selector       string  `toml:"selector"`
	SurvivorCount  int     `toml:"survivor_count"`
	SurvivalFactor float64 `toml:"survival_factor"`
	StateCount     int     `toml:"state_count"`
	Rounds         int     `toml:"rounds"`
	StallLimit     int     `toml:"stall_limit"`
}

func loadRunRequestFromConfig(path string) (evocosm.RunRequest, error) {
	f, err := os.Open(path)
	if err != nil {
		return evocosm.RunRequest{}, fmt.Errorf("open run config: %w", err)
	}
	defer f.Close()

	var cfg runFileConfig
	md, err := toml.NewDecoder(f).Decode(&cfg)
	if err != nil {
		return evocosm.RunRequest{}, fmt.Errorf("decode run config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		slices.Sort(keys)
		return evocosm.RunRequest{}, fmt.Errorf("unknown run config keys in %s: %s", path, strings.Join(keys, ", "))
	}
	return cfg.request(), nil
}

func (c runFileConfig) request() evocosm.RunRequest {
	return evocosm.RunRequest{
		Problem:        c.Problem,
		Population:     c.Population,
		Generations:    c.Generations,
		Seed:           c.Seed,
		Workers:        c.Workers,
		MutationRate:   c.MutationRate,
		CrossoverRate:  c.CrossoverRate,
		Scaler:         c.Scaler,
		ScalerParam:    c.ScalerParam,
		Selector:       c.Selector,
		SurvivorCount:  c.SurvivorCount,
		SurvivalFactor: c.SurvivalFactor,
		StateCount:     c.StateCount,
		Rounds:         c.Rounds,
		StallLimit:     c.StallLimit,
	}
}

// overrideFromFlags copies the explicitly set flag values onto req.
func overrideFromFlags(req *evocosm.RunRequest, set map[string]bool, flags evocosm.RunRequest) {
	if set["problem"] {
		req.Problem = flags.Problem
	}
	if set["pop"] {
		req.Population = flags.Population
	}
	if set["gens"] {
		req.Generations = flags.Generations
	}
	if set["seed"] {
		req.Seed = flags.Seed
	}
	if set["workers"] {
		req.Workers = flags.Workers
	}
	if set["mutation-rate"] {
		req.MutationRate = flags.MutationRate
	}
	if set["crossover-rate"] {
		req.CrossoverRate = flags.CrossoverRate
	}
	if set["scaler"] {
		req.Scaler = flags.Scaler
	}
	if set["scaler-param"] {
		req.ScalerParam = flags.ScalerParam
	}
	if set["selector"] {
		req.Selector = flags.Selector
	}
	if set["survivors"] {
		req.SurvivorCount = flags.SurvivorCount
	}
	if set["survival-factor"] {
		req.SurvivalFactor = flags.SurvivalFactor
	}
	if set["states"] {
		req.StateCount = flags.StateCount
	}
	if set["rounds"] {
		req.Rounds = flags.Rounds
	}
	if set["stall-limit"] {
		req.StallLimit = flags.StallLimit
	}
}
