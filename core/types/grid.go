package types

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"

	"tax-uncertainty/internal/errors"
)

// SweepGrid is an ordered discretisation of a parameter range
type SweepGrid struct {
	values []float64
}

// NewSweepGrid returns count evenly spaced values over [lo, hi]. The end
// points are exact.
func NewSweepGrid(lo, hi float64, count int) (SweepGrid, error) {
	if count < 2 {
		return SweepGrid{}, errors.Domain("count", "grid needs at least 2 points, got %d", count)
	}
	if math.IsNaN(lo) || math.IsNaN(hi) || math.IsInf(lo, 0) || math.IsInf(hi, 0) {
		return SweepGrid{}, errors.Domain("bounds", "grid bounds must be finite, got [%g, %g]", lo, hi)
	}
	if hi < lo {
		return SweepGrid{}, errors.Domain("bounds", "grid upper bound %g below lower bound %g", hi, lo)
	}
	values := floats.Span(make([]float64, count), lo, hi)
	values[count-1] = hi
	return SweepGrid{values: values}, nil
}

// MustSweepGrid is NewSweepGrid for constant arguments known to be valid
func MustSweepGrid(lo, hi float64, count int) SweepGrid {
	g, err := NewSweepGrid(lo, hi, count)
	if err != nil {
		panic(err)
	}
	return g
}

// NewExplicitGrid builds a grid from caller supplied values, sorted
// ascending. Duplicates are kept.
func NewExplicitGrid(values []float64) (SweepGrid, error) {
	if len(values) < 2 {
		return SweepGrid{}, errors.Domain("count", "grid needs at least 2 points, got %d", len(values))
	}
	cp := make([]float64, len(values))
	copy(cp, values)
	for _, v := range cp {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return SweepGrid{}, errors.Domain("values", "grid value must be finite, got %g", v)
		}
	}
	sort.Float64s(cp)
	return SweepGrid{values: cp}, nil
}

// Values returns a copy of the grid points
func (g SweepGrid) Values() []float64 {
	out := make([]float64, len(g.values))
	copy(out, g.values)
	return out
}

// At returns the i-th grid point
func (g SweepGrid) At(i int) float64 {
	return g.values[i]
}

// Count returns the number of grid points
func (g SweepGrid) Count() int {
	return len(g.values)
}

// Min returns the smallest grid point
func (g SweepGrid) Min() float64 {
	return g.values[0]
}

// Max returns the largest grid point
func (g SweepGrid) Max() float64 {
	return g.values[len(g.values)-1]
}

// Validate checks the grid has at least two points
func (g SweepGrid) Validate(parameter string) error {
	if len(g.values) == 0 {
		return errors.Domain(parameter, "grid is empty")
	}
	if len(g.values) < 2 {
		return errors.Domain(parameter, "grid needs at least 2 points, got %d", len(g.values))
	}
	return nil
}

// Within checks the grid is valid and every point lies in [lo, hi]
func (g SweepGrid) Within(parameter string, lo, hi float64) error {
	if err := g.Validate(parameter); err != nil {
		return err
	}
	for i, v := range g.values {
		if v < lo || v > hi {
			return errors.Domain(parameter, "grid point %d = %g outside [%g, %g]", i, v, lo, hi)
		}
	}
	return nil
}
