package planner

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tax-uncertainty/core/choice"
	"tax-uncertainty/core/types"
	"tax-uncertainty/internal/errors"
)

func newSolver(t *testing.T) *choice.Solver {
	t.Helper()
	s, err := choice.NewSolver(
		types.Preferences{Alpha: 0.5, Beta: 0.5},
		types.Endowment{TotalTime: 24},
		types.MustSweepGrid(0, 24, 241),
		5,
	)
	require.NoError(t, err)
	return s
}

func newPlanner(t *testing.T, opts Options) *Planner {
	t.Helper()
	p, err := New(newSolver(t), types.Agent{Wage: 20}, types.Agent{Wage: 40}, opts)
	require.NoError(t, err)
	return p
}

func TestCertainWelfareIsAdditive(t *testing.T) {
	p := newPlanner(t, Options{})

	pt, err := p.Welfare(types.Certain(0.3))
	require.NoError(t, err)

	// L* = 12 for both workers; U = sqrt(12 * w*0.7*12)
	u1, u2 := math.Sqrt(12*14*12), math.Sqrt(12*28*12)
	assert.InDelta(t, u1, pt.Workers[0].Certain, 1e-9)
	assert.InDelta(t, u2, pt.Workers[1].Certain, 1e-9)
	assert.InDelta(t, u1+u2, pt.Certain, 1e-9)
	assert.InDelta(t, pt.Certain, pt.Naive, 1e-9)
	assert.InDelta(t, 0, pt.Gap, 1e-9)
	assert.Equal(t, 0.0, pt.Transfer)
}

func TestSocialWeights(t *testing.T) {
	p := newPlanner(t, Options{Weights: [2]float64{2, 0}})

	pt, err := p.Welfare(types.Certain(0.3))
	require.NoError(t, err)
	assert.InDelta(t, 2*math.Sqrt(12*14*12), pt.Certain, 1e-9)
}

func TestUncertainWelfareGapNonNegative(t *testing.T) {
	p := newPlanner(t, Options{Redistribute: true})

	for _, sd := range []float64{0.05, 0.1, 0.2} {
		pt, err := p.Welfare(types.Gaussian(0.3, sd))
		require.NoError(t, err)
		assert.GreaterOrEqual(t, pt.Gap, 0.0, "sd=%g", sd)
		for _, w := range pt.Workers {
			assert.GreaterOrEqual(t, w.EUMax, w.Naive)
		}
	}
}

func TestDemograntTransfer(t *testing.T) {
	plain := newPlanner(t, Options{})
	redistributing := newPlanner(t, Options{Redistribute: true})

	base, err := plain.Welfare(types.Certain(0.3))
	require.NoError(t, err)
	pt, err := redistributing.Welfare(types.Certain(0.3))
	require.NoError(t, err)

	// labor is 12 for both workers: (20*0.3*12 + 40*0.3*12) / 2
	assert.InDelta(t, 108, pt.Transfer, 1e-9)
	assert.Greater(t, pt.Certain, base.Certain)
}

func TestSweepFollowsTaxGrid(t *testing.T) {
	p := newPlanner(t, Options{})
	grid := types.MustSweepGrid(0.05, 0.6, 12)

	points, err := p.Sweep(context.Background(), grid, types.Gaussian(0, 0.1))
	require.NoError(t, err)
	require.Len(t, points, 12)

	for i, pt := range points {
		assert.Equal(t, grid.At(i), pt.Tax)
		assert.Equal(t, 0.1, pt.SD)
	}
	// without transfers welfare falls with the tax rate
	assert.Greater(t, points[0].Certain, points[11].Certain)
}

func TestSweepCanceled(t *testing.T) {
	p := newPlanner(t, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	points, err := p.Sweep(ctx, types.MustSweepGrid(0.1, 0.5, 5), types.Certain(0))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.TypeCanceled))
	assert.Empty(t, points)
}

func TestPlannerDomainErrors(t *testing.T) {
	s := newSolver(t)

	_, err := New(s, types.Agent{Wage: 20}, types.Agent{Wage: 20}, Options{})
	assert.Equal(t, "wages", errors.Parameter(err))

	_, err = New(s, types.Agent{Wage: -1}, types.Agent{Wage: 20}, Options{})
	assert.Equal(t, "wage", errors.Parameter(err))

	_, err = New(s, types.Agent{Wage: 10}, types.Agent{Wage: 20}, Options{Weights: [2]float64{1, -1}})
	assert.Equal(t, "weights", errors.Parameter(err))

	p := newPlanner(t, Options{})
	points, err := p.Sweep(context.Background(), types.MustSweepGrid(0.5, 1, 3), types.Certain(0))
	assert.Equal(t, "tax_mean", errors.Parameter(err))
	assert.Len(t, points, 2, "points before the failing rate are kept")
}
