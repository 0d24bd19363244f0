package evo

import (
	"errors"
	"fmt"
)

var (
	ErrScalerNotFound   = errors.New("scaler not found")
	ErrSelectorNotFound = errors.New("selector not found")
)

var scalerNames = []string{"none", "linear_norm", "windowed", "exponential", "quadratic", "sigma", "invert"}

var selectorNames = []string{"none", "all", "elitism", "fraction"}

func ListScalers() []string {
	return append([]string(nil), scalerNames...)
}

func ListSelectors() []string {
	return append([]string(nil), selectorNames...)
}

// ResolveScaler builds a scaler by name. param is the linear norm multiple
// or the sigma floor; other scalers use their defaults.
func ResolveScaler[G Genome[G]](name string, param float64) (Scaler[G], error) {
	switch name {
	case "", "none":
		return NullScaler[G]{}, nil
	case "linear_norm":
		if param == 0 {
			param = DefaultLinearNormMultiple
		}
		if !(param > 1) {
			return nil, fmt.Errorf("linear norm multiple must be > 1, got %g", param)
		}
		return LinearNormScaler[G]{Multiple: param}, nil
	case "windowed":
		return WindowedScaler[G]{}, nil
	case "exponential":
		return DefaultExponentialScaler[G](), nil
	case "quadratic":
		return QuadraticScaler[G]{A: 1}, nil
	case "sigma":
		return SigmaScaler[G]{Floor: param}, nil
	case "invert":
		return InvertScaler[G]{}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrScalerNotFound, name)
	}
}

// ResolveSelector builds a survivor selector by name. count feeds elitism and
// factor feeds fraction.
func ResolveSelector[G Genome[G]](name string, count int, factor float64) (Selector[G], error) {
	switch name {
	case "", "none":
		return NullSelector[G]{}, nil
	case "all":
		return AllSelector[G]{}, nil
	case "elitism":
		if count <= 0 {
			return nil, fmt.Errorf("elitism survivor count must be > 0, got %d", count)
		}
		return ElitismSelector[G]{Count: count}, nil
	case "fraction":
		if factor < 0 || factor > 1 {
			return nil, fmt.Errorf("survival factor must be in [0,1], got %g", factor)
		}
		return FractionSelector[G]{Factor: factor}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrSelectorNotFound, name)
	}
}
