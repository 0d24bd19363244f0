package roulette

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
)

var (
	ErrNoWeights        = errors.New("roulette wheel requires at least one weight")
	ErrNonPositiveTotal = errors.New("roulette wheel total weight must be > 0")
	ErrInvalidLimits    = errors.New("roulette wheel min weight must be < max weight")
	ErrIndexOutOfRange  = errors.New("roulette wheel index out of range")
)

const (
	DefaultMinWeight = math.SmallestNonzeroFloat64
	DefaultMaxWeight = math.MaxFloat64
)

// Wheel draws indices with probability proportional to their weights.
// Weights are a snapshot; rebuild the wheel when the source values change.
type Wheel struct {
	weights []float64
	total   float64
	min     float64
	max     float64
}

func New(weights []float64) (*Wheel, error) {
	return NewWithLimits(weights, DefaultMinWeight, DefaultMaxWeight)
}

func NewWithLimits(weights []float64, minWeight, maxWeight float64) (*Wheel, error) {
	if len(weights) == 0 {
		return nil, ErrNoWeights
	}
	if !(minWeight < maxWeight) {
		return nil, fmt.Errorf("%w: min=%g max=%g", ErrInvalidLimits, minWeight, maxWeight)
	}

	w := &Wheel{
		weights: make([]float64, len(weights)),
		min:     minWeight,
		max:     maxWeight,
	}
	for i, v := range weights {
		w.weights[i] = w.clamp(v)
		w.total += w.weights[i]
	}
	if !(w.total > 0) || math.IsInf(w.total, 0) {
		return nil, fmt.Errorf("%w: total=%g", ErrNonPositiveTotal, w.total)
	}
	return w, nil
}

func (w *Wheel) clamp(v float64) float64 {
	v = math.Abs(v)
	if math.IsNaN(v) || v < w.min {
		return w.min
	}
	if v > w.max {
		return w.max
	}
	return v
}

func (w *Wheel) Len() int {
	return len(w.weights)
}

func (w *Wheel) Total() float64 {
	return w.total
}

// Index returns a weighted-random index in [0, Len()).
func (w *Wheel) Index(rng *rand.Rand) int {
	choice := rng.Float64() * w.total
	last := 0
	for i, weight := range w.weights {
		if weight <= 0 {
			continue
		}
		if choice <= weight {
			return i
		}
		choice -= weight
		last = i
	}
	// float drift can walk past the last positive slot
	return last
}

func (w *Wheel) Weight(i int) (float64, error) {
	if i < 0 || i >= len(w.weights) {
		return 0, fmt.Errorf("%w: %d not in [0,%d)", ErrIndexOutOfRange, i, len(w.weights))
	}
	return w.weights[i], nil
}

// SetWeight replaces weight i and returns the previous value.
func (w *Wheel) SetWeight(i int, weight float64) (float64, error) {
	if i < 0 || i >= len(w.weights) {
		return 0, fmt.Errorf("%w: %d not in [0,%d)", ErrIndexOutOfRange, i, len(w.weights))
	}
	old := w.weights[i]
	w.weights[i] = w.clamp(weight)
	w.total += w.weights[i] - old
	return old, nil
}

func (w *Wheel) Clone() *Wheel {
	out := *w
	out.weights = append([]float64(nil), w.weights...)
	return &out
}
