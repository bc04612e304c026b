package types

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tax-uncertainty/internal/errors"
)

func TestSweepGridEndpointsAreExact(t *testing.T) {
	g, err := NewSweepGrid(0.05, 0.6, 12)
	require.NoError(t, err)

	assert.Equal(t, 12, g.Count())
	assert.Equal(t, 0.05, g.Min())
	assert.Equal(t, 0.6, g.Max())
	assert.InDelta(t, 0.1, g.At(1), 1e-12)

	values := g.Values()
	values[0] = 99
	assert.Equal(t, 0.05, g.At(0), "Values returns a copy")
}

func TestSweepGridErrors(t *testing.T) {
	tests := []struct {
		name      string
		lo, hi    float64
		count     int
		parameter string
	}{
		{"single point", 0, 1, 1, "count"},
		{"reversed", 1, 0, 3, "bounds"},
		{"nan", math.NaN(), 1, 3, "bounds"},
		{"infinite", 0, math.Inf(1), 3, "bounds"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSweepGrid(tt.lo, tt.hi, tt.count)
			require.True(t, errors.IsDomain(err))
			assert.Equal(t, tt.parameter, errors.Parameter(err))
		})
	}
}

func TestExplicitGridIsSorted(t *testing.T) {
	g, err := NewExplicitGrid([]float64{3, 1, 2, 2})
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 2, 3}, g.Values())

	_, err = NewExplicitGrid([]float64{1})
	assert.True(t, errors.IsDomain(err))
	_, err = NewExplicitGrid([]float64{1, math.NaN()})
	assert.Equal(t, "values", errors.Parameter(err))
}

func TestGridWithin(t *testing.T) {
	g := MustSweepGrid(0, 24, 5)
	assert.NoError(t, g.Within("leisure_grid", 0, 24))

	err := g.Within("leisure_grid", 0, 20)
	assert.Equal(t, "leisure_grid", errors.Parameter(err))

	assert.Equal(t, "tax_grid", errors.Parameter(SweepGrid{}.Validate("tax_grid")))
	assert.Panics(t, func() { MustSweepGrid(0, 1, 0) })
}

func TestModelValidation(t *testing.T) {
	assert.NoError(t, Preferences{Alpha: 0.5, Beta: 0.5}.Validate())
	assert.Equal(t, "alpha", errors.Parameter(Preferences{Alpha: 0, Beta: 1}.Validate()))
	assert.Equal(t, "beta", errors.Parameter(Preferences{Alpha: 1, Beta: math.Inf(1)}.Validate()))
	assert.Equal(t, "total_time", errors.Parameter(Endowment{TotalTime: -1}.Validate()))
	assert.Equal(t, "wage", errors.Parameter(Agent{Wage: 0}.Validate()))
	assert.Equal(t, "nonlabor_income", errors.Parameter(Agent{Wage: 1, NonlaborIncome: -1}.Validate()))
}

func TestTaxRates(t *testing.T) {
	assert.NoError(t, ValidateTaxRate("tax", -0.2), "negative rates are allowed")
	assert.Error(t, ValidateTaxRate("tax", 1))
	assert.Error(t, ValidateTaxRate("tax", math.NaN()))

	u := Gaussian(0.3, 0.1)
	assert.NoError(t, u.Validate())
	assert.False(t, u.IsDegenerate())
	assert.True(t, u.WithSD(0).IsDegenerate())
	assert.Equal(t, 0.4, u.WithMean(0.4).Mean)
	assert.Equal(t, "sd", errors.Parameter(u.WithSD(-0.1).Validate()))
	assert.Equal(t, "kind", errors.Parameter(TaxUncertainty{Mean: 0.3, Kind: "uniform"}.Validate()))
	assert.Equal(t, "clip", errors.Parameter(TaxUncertainty{Mean: 0.3, Kind: KindPoint, Clip: "soft"}.Validate()))
}

func TestConsumptionIsFloored(t *testing.T) {
	a := Agent{Wage: 10, NonlaborIncome: 5}

	c := NewChoice(a, 0.5, 14, Endowment{TotalTime: 24})
	assert.Equal(t, 10.0, c.Labor)
	assert.Equal(t, 55.0, c.Consumption)

	// realized rate above 1 makes labor costly; consumption stops at zero
	assert.Equal(t, 0.0, Consumption(a, 2, 10))
	assert.Equal(t, 25.0, a.WithTransfer(20).NonlaborIncome)
}
