package fsm

import (
	"fmt"
	"math/rand"

	"evocosm/internal/roulette"
)

type Transition struct {
	Next   int `json:"next"`
	Output int `json:"output"`
}

// Machine is a deterministic state machine. The table is indexed by
// state*inputs + input.
type Machine struct {
	states  int
	inputs  int
	outputs int
	table   []Transition
	init    int
	current int
	kinds   *roulette.Wheel
}

// New builds a machine with a random table and initial state. A zero
// MutationWeights selects the defaults.
func New(rng *rand.Rand, states, inputs, outputs int, weights MutationWeights) (*Machine, error) {
	if err := validateShape(states, inputs, outputs); err != nil {
		return nil, err
	}
	kinds, err := weights.wheel()
	if err != nil {
		return nil, err
	}
	m := &Machine{
		states:  states,
		inputs:  inputs,
		outputs: outputs,
		table:   make([]Transition, states*inputs),
		kinds:   kinds,
	}
	for s := 0; s < states; s++ {
		m.randomizeRow(rng, s)
	}
	m.init = rng.Intn(states)
	m.current = m.init
	return m, nil
}

func (m *Machine) randomizeRow(rng *rand.Rand, state int) {
	row := m.row(state)
	for i := range row {
		row[i] = Transition{Next: rng.Intn(m.states), Output: rng.Intn(m.outputs)}
	}
}

func (m *Machine) row(state int) []Transition {
	return m.table[state*m.inputs : (state+1)*m.inputs]
}

func (m *Machine) Size() int         { return m.states }
func (m *Machine) Inputs() int       { return m.inputs }
func (m *Machine) Outputs() int      { return m.outputs }
func (m *Machine) InitState() int    { return m.init }
func (m *Machine) CurrentState() int { return m.current }

func (m *Machine) Entry(state, input int) (Transition, error) {
	if state < 0 || state >= m.states {
		return Transition{}, fmt.Errorf("state %d not in [0,%d)", state, m.states)
	}
	if input < 0 || input >= m.inputs {
		return Transition{}, fmt.Errorf("%w: %d not in [0,%d)", ErrInputRange, input, m.inputs)
	}
	return m.table[state*m.inputs+input], nil
}

// Transition consumes input, advances the current state and returns the
// output symbol.
func (m *Machine) Transition(input int) (int, error) {
	if input < 0 || input >= m.inputs {
		return 0, fmt.Errorf("%w: %d not in [0,%d)", ErrInputRange, input, m.inputs)
	}
	t := m.table[m.current*m.inputs+input]
	m.current = t.Next
	return t.Output, nil
}

func (m *Machine) Reset() {
	m.current = m.init
}

func (m *Machine) Clone() *Machine {
	out := *m
	out.table = append([]Transition(nil), m.table...)
	return &out
}

func (m *Machine) sameShape(other *Machine) bool {
	return other != nil && m.states == other.states && m.inputs == other.inputs && m.outputs == other.outputs
}

// Crossover returns a child holding the receiver's rows below a random split
// and other's rows from the split on. Machines of different shapes yield a
// clone of the receiver.
func (m *Machine) Crossover(rng *rand.Rand, other *Machine) *Machine {
	child := m.Clone()
	if !m.sameShape(other) {
		return child
	}
	split := rng.Intn(m.states)
	copy(child.table[split*m.inputs:], other.table[split*m.inputs:])
	if rng.Float64() >= 0.5 {
		child.init = other.init
	}
	child.current = child.init
	return child
}

// Mutate gives every state a chance of rate to trigger one mutation.
func (m *Machine) Mutate(rng *rand.Rand, rate float64) {
	rate = clampRate(rate)
	for n := 0; n < m.states; n++ {
		if rng.Float64() >= rate {
			continue
		}
		switch MutationKind(m.kinds.Index(rng)) {
		case MutateOutput:
			if m.outputs < 2 {
				break
			}
			t := &m.table[rng.Intn(m.states)*m.inputs+rng.Intn(m.inputs)]
			t.Output = differentIndex(rng, m.outputs, t.Output)
		case MutateTransition:
			t := &m.table[rng.Intn(m.states)*m.inputs+rng.Intn(m.inputs)]
			t.Next = differentIndex(rng, m.states, t.Next)
		case MutateReplaceState:
			m.randomizeRow(rng, rng.Intn(m.states))
		case MutateSwapStates:
			a := rng.Intn(m.states)
			b := differentIndex(rng, m.states, a)
			rowA, rowB := m.row(a), m.row(b)
			for i := range rowA {
				rowA[i], rowB[i] = rowB[i], rowA[i]
			}
		case MutateInitState:
			m.init = differentIndex(rng, m.states, m.init)
		}
	}
	m.current = m.init
}

// differentIndex draws from [0,n) until the result differs from current. n
// must be >= 2.
func differentIndex(rng *rand.Rand, n, current int) int {
	for {
		choice := rng.Intn(n)
		if choice != current {
			return choice
		}
	}
}

// Table is a read-only view of a machine, suitable for encoding.
type Table struct {
	InitState int            `json:"init_state"`
	States    [][]Transition `json:"states"`
}

func (m *Machine) Table() Table {
	out := Table{InitState: m.init, States: make([][]Transition, m.states)}
	for s := 0; s < m.states; s++ {
		out.States[s] = append([]Transition(nil), m.row(s)...)
	}
	return out
}

// FromTable rebuilds a machine from a Table view. Every state row must have
// the same number of inputs and every entry must be in range.
func FromTable(t Table, outputs int, weights MutationWeights) (*Machine, error) {
	states := len(t.States)
	inputs := 0
	if states > 0 {
		inputs = len(t.States[0])
	}
	if err := validateShape(states, inputs, outputs); err != nil {
		return nil, err
	}
	if t.InitState < 0 || t.InitState >= states {
		return nil, fmt.Errorf("init state %d out of range [0,%d)", t.InitState, states)
	}
	kinds, err := weights.wheel()
	if err != nil {
		return nil, err
	}
	m := &Machine{
		states:  states,
		inputs:  inputs,
		outputs: outputs,
		table:   make([]Transition, 0, states*inputs),
		init:    t.InitState,
		current: t.InitState,
		kinds:   kinds,
	}
	for s, row := range t.States {
		if len(row) != inputs {
			return nil, fmt.Errorf("state %d has %d inputs, want %d", s, len(row), inputs)
		}
		for i, tr := range row {
			if tr.Next < 0 || tr.Next >= states || tr.Output < 0 || tr.Output >= outputs {
				return nil, fmt.Errorf("state %d input %d: transition %+v out of range", s, i, tr)
			}
		}
		m.table = append(m.table, row...)
	}
	return m, nil
}
