// Package scape holds ready-made fitness landscapes used by the command line
// tool and the examples.
package scape

import (
	"math"
)

const (
	SampleMin = -1.0
	SampleMax = 1.0
)

// SampleFunction is a two-dimensional test surface with a fitness peak of
// about 7.9468 near (-0.655, 0.5). Points outside [-1,1]x[-1,1], or any
// argument count other than two, score zero.
func SampleFunction(args []float64) (value, fitness float64) {
	if len(args) != 2 {
		return 0, 0
	}
	x, y := args[0], args[1]
	if x < SampleMin || x > SampleMax || y < SampleMin || y > SampleMax {
		return 0, 0
	}
	z := 0.8 + math.Pow(x+0.5, 2) + 2*math.Pow(y-0.5, 2) -
		0.3*math.Cos(3*math.Pi*x) - 0.4*math.Cos(4*math.Pi*y)
	if z == 0 || math.IsNaN(z) || math.IsInf(z, 0) {
		return 0, 0
	}
	return z, 1 / z
}
