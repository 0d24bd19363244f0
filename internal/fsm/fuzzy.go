package fsm

import (
	"fmt"
	"math/rand"

	"evocosm/internal/roulette"
)

const (
	defaultFuzzyBase   = 1.0
	defaultFuzzyRange  = 100.0
	defaultFuzzyWinner = 100.0
)

// FuzzyConfig controls how fuzzy transition weights are seeded and mutated.
// With every base and range at zero, rows start at weight 1 with one random
// entry at 100, and mutation draws from [1, 101).
type FuzzyConfig struct {
	OutputBase  float64
	OutputRange float64
	StateBase   float64
	StateRange  float64
	Weights     MutationWeights
}

func (c FuzzyConfig) defaultSeeding() bool {
	return c.OutputBase == 0 && c.OutputRange == 0 && c.StateBase == 0 && c.StateRange == 0
}

func (c FuzzyConfig) withDefaults() FuzzyConfig {
	if c.defaultSeeding() {
		c.OutputBase, c.OutputRange = defaultFuzzyBase, defaultFuzzyRange
		c.StateBase, c.StateRange = defaultFuzzyBase, defaultFuzzyRange
	}
	return c
}

type fuzzyEntry struct {
	next   *roulette.Wheel
	output *roulette.Wheel
}

func (e fuzzyEntry) clone() fuzzyEntry {
	return fuzzyEntry{next: e.next.Clone(), output: e.output.Clone()}
}

// Fuzzy is a state machine whose transitions are drawn from per-entry
// weighted wheels over next states and output symbols.
type Fuzzy struct {
	states  int
	inputs  int
	outputs int
	table   []fuzzyEntry
	init    int
	current int
	cfg     FuzzyConfig
	kinds   *roulette.Wheel
}

func NewFuzzy(rng *rand.Rand, states, inputs, outputs int, cfg FuzzyConfig) (*Fuzzy, error) {
	if err := validateShape(states, inputs, outputs); err != nil {
		return nil, err
	}
	if cfg.OutputBase < 0 || cfg.OutputRange < 0 || cfg.StateBase < 0 || cfg.StateRange < 0 {
		return nil, fmt.Errorf("fuzzy machine weight base and range must be >= 0")
	}
	if !cfg.defaultSeeding() && (cfg.OutputBase+cfg.OutputRange <= 0 || cfg.StateBase+cfg.StateRange <= 0) {
		return nil, fmt.Errorf("fuzzy machine weights must allow a positive total")
	}
	kinds, err := cfg.Weights.wheel()
	if err != nil {
		return nil, err
	}
	f := &Fuzzy{
		states:  states,
		inputs:  inputs,
		outputs: outputs,
		table:   make([]fuzzyEntry, states*inputs),
		cfg:     cfg.withDefaults(),
		kinds:   kinds,
	}
	for s := 0; s < states; s++ {
		if err := f.seedRow(rng, s, !cfg.defaultSeeding()); err != nil {
			return nil, err
		}
	}
	f.init = rng.Intn(states)
	f.current = f.init
	return f, nil
}

// seedRow fills a state's entries. Ranged seeding draws every weight from
// base+range*u; otherwise a single random symbol gets the winning weight.
func (f *Fuzzy) seedRow(rng *rand.Rand, state int, ranged bool) error {
	for i := 0; i < f.inputs; i++ {
		var nextW, outW []float64
		if ranged {
			nextW = rangedWeights(rng, f.states, f.cfg.StateBase, f.cfg.StateRange)
			outW = rangedWeights(rng, f.outputs, f.cfg.OutputBase, f.cfg.OutputRange)
		} else {
			nextW = winnerWeights(rng, f.states)
			outW = winnerWeights(rng, f.outputs)
		}
		next, err := roulette.New(nextW)
		if err != nil {
			return fmt.Errorf("state %d input %d next-state wheel: %w", state, i, err)
		}
		output, err := roulette.New(outW)
		if err != nil {
			return fmt.Errorf("state %d input %d output wheel: %w", state, i, err)
		}
		f.table[state*f.inputs+i] = fuzzyEntry{next: next, output: output}
	}
	return nil
}

func rangedWeights(rng *rand.Rand, n int, base, span float64) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = rng.Float64()*span + base
	}
	return w
}

func winnerWeights(rng *rand.Rand, n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = defaultFuzzyBase
	}
	w[rng.Intn(n)] = defaultFuzzyWinner
	return w
}

func (f *Fuzzy) Size() int         { return f.states }
func (f *Fuzzy) Inputs() int       { return f.inputs }
func (f *Fuzzy) Outputs() int      { return f.outputs }
func (f *Fuzzy) InitState() int    { return f.init }
func (f *Fuzzy) CurrentState() int { return f.current }

// Transition draws an output symbol and the next state for input.
func (f *Fuzzy) Transition(rng *rand.Rand, input int) (int, error) {
	if input < 0 || input >= f.inputs {
		return 0, fmt.Errorf("%w: %d not in [0,%d)", ErrInputRange, input, f.inputs)
	}
	e := f.table[f.current*f.inputs+input]
	output := e.output.Index(rng)
	f.current = e.next.Index(rng)
	return output, nil
}

func (f *Fuzzy) Reset() {
	f.current = f.init
}

func (f *Fuzzy) Clone() *Fuzzy {
	out := *f
	out.table = make([]fuzzyEntry, len(f.table))
	for i, e := range f.table {
		out.table[i] = e.clone()
	}
	return &out
}

func (f *Fuzzy) sameShape(other *Fuzzy) bool {
	return other != nil && f.states == other.states && f.inputs == other.inputs && f.outputs == other.outputs
}

// Crossover splits the table at a random state like Machine.Crossover.
func (f *Fuzzy) Crossover(rng *rand.Rand, other *Fuzzy) *Fuzzy {
	child := f.Clone()
	if !f.sameShape(other) {
		return child
	}
	split := rng.Intn(f.states)
	for i := split * f.inputs; i < len(child.table); i++ {
		child.table[i] = other.table[i].clone()
	}
	if rng.Float64() >= 0.5 {
		child.init = other.init
	}
	child.current = child.init
	return child
}

func (f *Fuzzy) Mutate(rng *rand.Rand, rate float64) {
	rate = clampRate(rate)
	for n := 0; n < f.states; n++ {
		if rng.Float64() >= rate {
			continue
		}
		switch MutationKind(f.kinds.Index(rng)) {
		case MutateOutput:
			e := f.table[rng.Intn(f.states)*f.inputs+rng.Intn(f.inputs)]
			_, _ = e.output.SetWeight(rng.Intn(f.outputs), f.cfg.OutputBase+f.cfg.OutputRange*rng.Float64())
		case MutateTransition:
			e := f.table[rng.Intn(f.states)*f.inputs+rng.Intn(f.inputs)]
			_, _ = e.next.SetWeight(rng.Intn(f.states), f.cfg.StateBase+f.cfg.StateRange*rng.Float64())
		case MutateReplaceState:
			// winner seeding always yields positive totals
			_ = f.seedRow(rng, rng.Intn(f.states), false)
		case MutateSwapStates:
			a := rng.Intn(f.states)
			b := differentIndex(rng, f.states, a)
			for i := 0; i < f.inputs; i++ {
				ia, ib := a*f.inputs+i, b*f.inputs+i
				f.table[ia], f.table[ib] = f.table[ib], f.table[ia]
			}
		case MutateInitState:
			f.init = rng.Intn(f.states)
		}
	}
	f.current = f.init
}

// FuzzyEntry is the encoded form of one fuzzy transition.
type FuzzyEntry struct {
	NextWeights   []float64 `json:"next_weights"`
	OutputWeights []float64 `json:"output_weights"`
}

type FuzzyTable struct {
	InitState int            `json:"init_state"`
	States    [][]FuzzyEntry `json:"states"`
}

func (f *Fuzzy) Table() FuzzyTable {
	out := FuzzyTable{InitState: f.init, States: make([][]FuzzyEntry, f.states)}
	for s := 0; s < f.states; s++ {
		row := make([]FuzzyEntry, f.inputs)
		for i := range row {
			e := f.table[s*f.inputs+i]
			row[i] = FuzzyEntry{NextWeights: weightsOf(e.next), OutputWeights: weightsOf(e.output)}
		}
		out.States[s] = row
	}
	return out
}

func weightsOf(w *roulette.Wheel) []float64 {
	out := make([]float64, w.Len())
	for i := range out {
		out[i], _ = w.Weight(i)
	}
	return out
}
