package search

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"tax-uncertainty/core/choice"
	"tax-uncertainty/core/types"
	"tax-uncertainty/internal/errors"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var population = []types.Agent{{Wage: 10}, {Wage: 20}, {Wage: 40}}

func newSearcher(t *testing.T, opts Options) *Searcher {
	t.Helper()
	solver, err := choice.NewSolver(
		types.Preferences{Alpha: 0.5, Beta: 0.5},
		types.Endowment{TotalTime: 24},
		types.MustSweepGrid(0, 24, 49),
		5,
	)
	require.NoError(t, err)
	s, err := New(solver, opts)
	require.NoError(t, err)
	return s
}

var (
	taxGrid = types.MustSweepGrid(0.05, 0.6, 12)
	sdGrid  = types.MustSweepGrid(0, 0.2, 3)
)

func TestRowsFollowSDGrid(t *testing.T) {
	s := newSearcher(t, Options{Workers: 3})

	res, err := s.Run(context.Background(), population, taxGrid, sdGrid)
	require.NoError(t, err)
	require.True(t, res.Complete)
	require.Len(t, res.Rows, 3)

	for i, row := range res.Rows {
		assert.Equal(t, sdGrid.At(i), row.SD)
		assert.Len(t, row.Cells, 12)
		assert.GreaterOrEqual(t, row.EUMax.Welfare, row.Naive.Welfare, "sd=%g", row.SD)
		assert.InDelta(t, row.Certain.Welfare-row.EUMax.Welfare, row.DeadweightLoss, 1e-12)
	}

	assert.Equal(t, int64(36), res.Stats.TotalCells)
	assert.Equal(t, int64(36), res.Stats.CompletedCells)
	assert.Equal(t, int64(0), res.Stats.SkippedCells)
	assert.Empty(t, res.CellErrors)
}

func TestWithoutTransfersLowestRateWins(t *testing.T) {
	s := newSearcher(t, Options{})

	res, err := s.Run(context.Background(), population, taxGrid, sdGrid)
	require.NoError(t, err)
	for _, row := range res.Rows {
		assert.Equal(t, taxGrid.Min(), row.Certain.Tax)
		assert.Equal(t, taxGrid.Min(), row.Naive.Tax)
		assert.Equal(t, taxGrid.Min(), row.EUMax.Tax)
	}
	// certainty welfare does not depend on sd
	assert.Equal(t, res.Rows[0].Certain, res.Rows[2].Certain)
	assert.Greater(t, res.Rows[2].DeadweightLoss, res.Rows[0].DeadweightLoss)
}

func TestDemograntFavorsHigherRates(t *testing.T) {
	s := newSearcher(t, Options{Redistribute: true})

	res, err := s.Run(context.Background(), population, taxGrid, sdGrid)
	require.NoError(t, err)
	for _, row := range res.Rows {
		assert.Equal(t, taxGrid.Max(), row.Certain.Tax)
		assert.Greater(t, row.Cells[0].Transfer, 0.0)
	}
}

func TestResultIndependentOfWorkerCount(t *testing.T) {
	serial, err := newSearcher(t, Options{Workers: 1, Redistribute: true}).Run(context.Background(), population, taxGrid, sdGrid)
	require.NoError(t, err)
	parallel, err := newSearcher(t, Options{Workers: 8, Redistribute: true}).Run(context.Background(), population, taxGrid, sdGrid)
	require.NoError(t, err)

	if diff := cmp.Diff(serial.Rows, parallel.Rows); diff != "" {
		t.Errorf("rows differ between 1 and 8 workers (-serial +parallel):\n%s", diff)
	}
}

func TestPopulationWeights(t *testing.T) {
	unweighted, err := newSearcher(t, Options{}).Run(context.Background(), population, taxGrid, sdGrid)
	require.NoError(t, err)
	doubled, err := newSearcher(t, Options{Weights: []float64{2, 2, 2}}).Run(context.Background(), population, taxGrid, sdGrid)
	require.NoError(t, err)

	for i := range unweighted.Rows {
		assert.InDelta(t, 2*unweighted.Rows[i].EUMax.Welfare, doubled.Rows[i].EUMax.Welfare, 1e-9)
		assert.Equal(t, unweighted.Rows[i].EUMax.Tax, doubled.Rows[i].EUMax.Tax)
	}
}

func TestArgmaxTiesGoToLowestRate(t *testing.T) {
	cells := []Cell{
		{Tax: 0.3, EUMax: 7},
		{Tax: 0.1, EUMax: 5},
		{Tax: 0.2, EUMax: 7},
	}
	assert.Equal(t, Optimum{Tax: 0.2, Welfare: 7}, argmax(cells, RegimeEUMax))

	reversed := []Cell{cells[2], cells[1], cells[0]}
	assert.Equal(t, Optimum{Tax: 0.2, Welfare: 7}, argmax(reversed, RegimeEUMax))
}

func TestFailingCellsAreIsolated(t *testing.T) {
	s := newSearcher(t, Options{})
	grid, err := types.NewExplicitGrid([]float64{0.2, 0.5, 1.0})
	require.NoError(t, err)

	res, err := s.Run(context.Background(), population, grid, sdGrid)
	require.NoError(t, err)
	require.Len(t, res.Rows, 3)
	require.Len(t, res.CellErrors, 3, "one failing cell per sd")

	for _, ce := range res.CellErrors {
		assert.Equal(t, 1.0, ce.Tax)
		assert.Equal(t, "tax_mean", errors.Parameter(ce))
	}
	for _, row := range res.Rows {
		assert.Equal(t, 1, row.FailedCells)
		assert.Len(t, row.Cells, 2)
		assert.Equal(t, 0.2, row.EUMax.Tax)
	}
}

func TestStopOnError(t *testing.T) {
	s := newSearcher(t, Options{StopOnError: true, Workers: 1})
	grid, err := types.NewExplicitGrid([]float64{0.2, 1.0})
	require.NoError(t, err)

	res, err := s.Run(context.Background(), population, grid, sdGrid)
	require.Error(t, err)
	assert.True(t, errors.IsDomain(err))
	assert.Equal(t, "tax_mean", errors.Parameter(err))

	top, ok := err.(*errors.Error)
	require.True(t, ok, "stop error must be an *errors.Error, got %T", err)
	assert.Equal(t, 1.0, top.Context["tax"])
	var cell CellError
	require.True(t, errors.As(err, &cell))
	assert.Equal(t, 1.0, cell.Tax)

	require.NotNil(t, res)
	assert.False(t, res.Complete)

	// the first sd finished both cells before the stop took effect
	require.Len(t, res.Rows, 1)
	assert.Equal(t, 1, res.Rows[0].FailedCells)
	assert.Len(t, res.CellErrors, 1)
}

func TestCanceledBeforeStart(t *testing.T) {
	s := newSearcher(t, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := s.Run(ctx, population, taxGrid, sdGrid)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.TypeCanceled))
	require.NotNil(t, res)
	assert.Empty(t, res.Rows)
	assert.False(t, res.Complete)
}

func TestEarlyTerminationKeepsCompletedRows(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var finished int64
	perRow := int64(taxGrid.Count())
	s := newSearcher(t, Options{
		Workers: 1,
		Progress: func(p Progress) {
			if atomic.AddInt64(&finished, 1) == perRow {
				cancel()
			}
		},
	})

	res, err := s.Run(ctx, population, taxGrid, sdGrid)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.TypeCanceled))
	require.Len(t, res.Rows, 1)
	assert.Equal(t, 0.0, res.Rows[0].SD)
	assert.Len(t, res.Rows[0].Cells, taxGrid.Count())
	assert.False(t, res.Complete)
	assert.Greater(t, res.Stats.SkippedCells, int64(0))

	full, err := newSearcher(t, Options{}).Run(context.Background(), population, taxGrid, sdGrid)
	require.NoError(t, err)
	if diff := cmp.Diff(full.Rows[0], res.Rows[0], cmpopts.EquateApprox(0, 1e-12)); diff != "" {
		t.Errorf("partial row differs from full run (-full +partial):\n%s", diff)
	}
}

func TestRunDomainErrors(t *testing.T) {
	tests := []struct {
		name      string
		opts      Options
		pop       []types.Agent
		sds       types.SweepGrid
		parameter string
	}{
		{"empty population", Options{}, nil, sdGrid, "population"},
		{"invalid agent", Options{}, []types.Agent{{Wage: 0}}, sdGrid, "wage"},
		{"weight count", Options{Weights: []float64{1}}, population, sdGrid, "weights"},
		{"negative weight", Options{Weights: []float64{1, -1, 1}}, population, sdGrid, "weights"},
		{"negative sd", Options{}, population, types.MustSweepGrid(-0.1, 0.1, 3), "sd_grid"},
		{"empty sd grid", Options{}, population, types.SweepGrid{}, "sd_grid"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newSearcher(t, tt.opts).Run(context.Background(), tt.pop, taxGrid, tt.sds)
			require.True(t, errors.IsDomain(err), "expected DomainError, got %v", err)
			assert.Equal(t, tt.parameter, errors.Parameter(err))
		})
	}
}
