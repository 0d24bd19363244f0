package optimizer

import (
	"math/rand"

	"evocosm/internal/evoreal"
)

var mutagen = evoreal.New()

// Vector is a real-valued genome evolved through bit-level float operators.
type Vector []float64

// RandomVector draws n values uniformly from [lo, hi).
func RandomVector(rng *rand.Rand, n int, lo, hi float64) Vector {
	v := make(Vector, n)
	for i := range v {
		v[i] = lo + rng.Float64()*(hi-lo)
	}
	return v
}

func (v Vector) Clone() Vector {
	return append(Vector(nil), v...)
}

// Mutate replaces each element with a bit-flipped copy with probability rate.
func (v Vector) Mutate(rng *rand.Rand, rate float64) {
	for i := range v {
		if rng.Float64() < rate {
			v[i] = mutagen.Mutate(rng, v[i])
		}
	}
}

// Crossover splices every element of v with the matching element of other.
func (v Vector) Crossover(rng *rand.Rand, other Vector) Vector {
	child := v.Clone()
	for i := range child {
		if i < len(other) {
			child[i] = mutagen.Crossover(rng, child[i], other[i])
		}
	}
	return child
}

func (v Vector) Equal(other Vector) bool {
	if len(v) != len(other) {
		return false
	}
	for i := range v {
		if v[i] != other[i] {
			return false
		}
	}
	return true
}
