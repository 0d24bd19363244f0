// Package fsm provides finite state machines usable as genomes: an exact
// table-driven Machine and a stochastic Fuzzy variant.
package fsm

import (
	"errors"
	"fmt"
	"math"

	"evocosm/internal/roulette"
)

var (
	ErrTooFewStates  = errors.New("state machine requires at least 2 states")
	ErrEmptyAlphabet = errors.New("state machine input and output alphabets must be non-empty")
	ErrInputRange    = errors.New("state machine input out of range")
)

type MutationKind int

const (
	MutateOutput MutationKind = iota
	MutateTransition
	MutateReplaceState
	MutateSwapStates
	MutateInitState
)

func (k MutationKind) String() string {
	switch k {
	case MutateOutput:
		return "output"
	case MutateTransition:
		return "transition"
	case MutateReplaceState:
		return "replace_state"
	case MutateSwapStates:
		return "swap_states"
	case MutateInitState:
		return "init_state"
	default:
		return fmt.Sprintf("mutation(%d)", int(k))
	}
}

// MutationWeights sets the relative chance of each mutation kind.
type MutationWeights struct {
	Output       float64
	Transition   float64
	ReplaceState float64
	SwapStates   float64
	InitState    float64
}

func DefaultMutationWeights() MutationWeights {
	return MutationWeights{
		Output:       20,
		Transition:   20,
		ReplaceState: 20,
		SwapStates:   20,
		InitState:    20,
	}
}

func (w MutationWeights) wheel() (*roulette.Wheel, error) {
	if w == (MutationWeights{}) {
		w = DefaultMutationWeights()
	}
	wheel, err := roulette.NewWithLimits([]float64{w.Output, w.Transition, w.ReplaceState, w.SwapStates, w.InitState}, 0, math.MaxFloat64)
	if err != nil {
		return nil, fmt.Errorf("mutation weights: %w", err)
	}
	return wheel, nil
}

func validateShape(states, inputs, outputs int) error {
	if states < 2 {
		return fmt.Errorf("%w: got %d", ErrTooFewStates, states)
	}
	if inputs < 1 || outputs < 1 {
		return fmt.Errorf("%w: inputs=%d outputs=%d", ErrEmptyAlphabet, inputs, outputs)
	}
	return nil
}

func clampRate(rate float64) float64 {
	if rate < 0 || math.IsNaN(rate) {
		return 0
	}
	if rate > 1 {
		return 1
	}
	return rate
}
