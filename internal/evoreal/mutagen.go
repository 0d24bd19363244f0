// Package evoreal mutates and crosses IEEE-754 doubles at the bit level.
package evoreal

import (
	"fmt"
	"math"
	"math/rand"

	"evocosm/internal/roulette"
)

const (
	signBit      = uint64(1) << 63
	exponentMask = uint64(0x7ff) << 52
	mantissaBits = 52
	exponentBits = 11
	totalBits    = 64
)

const (
	DefaultSignWeight     = 5
	DefaultExponentWeight = 5
	DefaultMantissaWeight = 90
)

const (
	regionSign = iota
	regionExponent
	regionMantissa
)

type Mutagen struct {
	regions *roulette.Wheel
}

func New() *Mutagen {
	m, err := NewWeighted(DefaultSignWeight, DefaultExponentWeight, DefaultMantissaWeight)
	if err != nil {
		panic(err)
	}
	return m
}

// NewWeighted sets the relative chance of touching the sign, exponent and
// mantissa fields.
func NewWeighted(sign, exponent, mantissa float64) (*Mutagen, error) {
	wheel, err := roulette.NewWithLimits([]float64{sign, exponent, mantissa}, 0, math.MaxFloat64)
	if err != nil {
		return nil, fmt.Errorf("real mutagen weights %g/%g/%g: %w", sign, exponent, mantissa, err)
	}
	return &Mutagen{regions: wheel}, nil
}

func nonFinite(bits uint64) bool {
	return bits&exponentMask == exponentMask
}

// Mutate flips exactly one bit of x. Inf and NaN are returned unchanged and the
// result is always finite for finite input.
func (m *Mutagen) Mutate(rng *rand.Rand, x float64) float64 {
	bits := math.Float64bits(x)
	if nonFinite(bits) {
		return x
	}

	switch m.regions.Index(rng) {
	case regionSign:
		bits ^= signBit
	case regionExponent:
		for {
			candidate := bits ^ (uint64(1) << (mantissaBits + rng.Intn(exponentBits)))
			if !nonFinite(candidate) {
				bits = candidate
				break
			}
		}
	default:
		bits ^= uint64(1) << rng.Intn(mantissaBits)
	}
	return math.Float64frombits(bits)
}

// Crossover splices the high bits of a onto the low bits of b at a random
// position.
func (m *Mutagen) Crossover(rng *rand.Rand, a, b float64) float64 {
	abits := math.Float64bits(a)
	bbits := math.Float64bits(b)
	if nonFinite(abits) && nonFinite(bbits) {
		return a
	}
	for {
		mask := ^uint64(0) << rng.Intn(totalBits)
		out := (abits & mask) | (bbits &^ mask)
		if !nonFinite(out) {
			return math.Float64frombits(out)
		}
	}
}
