// Package search finds, for each level of tax-rate uncertainty, the policy
// rate that maximizes aggregate welfare of a population.
//
// Every (sd, tax) pair is an independent cell. Cells run on a bounded
// worker pool; each cell sums utility over the population in a fixed order,
// so results do not depend on scheduling. The per-sd argmax is taken over
// the ascending tax grid with ties going to the lowest rate.
//
// A canceled search returns the rows whose cells all finished. Rows for
// sds still in flight are absent, never partially reduced. A failing cell
// is reported in Result.CellErrors and excluded from its row's argmax.
package search

import (
	"context"
	"math"

	"go.uber.org/zap"

	"tax-uncertainty/core/choice"
	"tax-uncertainty/core/types"
	"tax-uncertainty/core/utility"
	"tax-uncertainty/internal/errors"
	"tax-uncertainty/internal/logging"
)

// cancellation is checked once per this many agents inside a cell
const cancelCheckInterval = 64

// Regime names the rule agents use to pick labor
type Regime string

const (
	// RegimeCertain: the rate is known before labor is chosen
	RegimeCertain Regime = "certain"

	// RegimeNaive: labor is chosen at the expected rate
	RegimeNaive Regime = "naive"

	// RegimeEUMax: labor maximizes expected utility over realized rates
	RegimeEUMax Regime = "eu_max"
)

// Options configures a Searcher
type Options struct {
	// Workers bounds the worker pool; <= 0 means 4
	Workers int

	// Kind and Clip shape the rate distribution at every cell. Kind
	// defaults to gaussian.
	Kind types.UncertaintyKind
	Clip types.ClipMode

	// Redistribute pays per-capita revenue back as a demogrant
	Redistribute bool

	// Weights are optional population weights, one per agent
	Weights []float64

	// StopOnError aborts the search at the first failing cell
	StopOnError bool

	// Progress is called after every cell
	Progress ProgressCallback
}

// Cell is aggregate welfare at one (tax, sd) pair
type Cell struct {
	Tax      float64 `json:"tax"`
	SD       float64 `json:"sd"`
	Transfer float64 `json:"transfer"`
	Certain  float64 `json:"welfare_certain"`
	Naive    float64 `json:"welfare_naive"`
	EUMax    float64 `json:"welfare_eumax"`
}

// Welfare returns the cell's welfare under regime r
func (c Cell) Welfare(r Regime) float64 {
	switch r {
	case RegimeNaive:
		return c.Naive
	case RegimeEUMax:
		return c.EUMax
	default:
		return c.Certain
	}
}

// Optimum is the welfare-maximizing rate within one row
type Optimum struct {
	Tax     float64 `json:"tax"`
	Welfare float64 `json:"welfare"`
}

// Row is the search outcome at one sd
type Row struct {
	SD      float64 `json:"sd"`
	Certain Optimum `json:"certain"`
	Naive   Optimum `json:"naive"`
	EUMax   Optimum `json:"eu_max"`

	// DeadweightLoss is certainty welfare minus EU-max welfare, each at
	// its own optimum.
	DeadweightLoss        float64 `json:"deadweight_loss"`
	DeadweightLossPercent float64 `json:"deadweight_loss_pct"`

	FailedCells int    `json:"failed_cells,omitempty"`
	Cells       []Cell `json:"cells,omitempty"`
}

// Result holds the rows in ascending sd order
type Result struct {
	Rows       []Row          `json:"rows"`
	CellErrors []CellError    `json:"cell_errors,omitempty"`
	Stats      ExecutionStats `json:"stats"`

	// Complete is false when the search was interrupted
	Complete bool `json:"complete"`
}

// Searcher runs optimal-tax searches with a fixed model and options
type Searcher struct {
	solver *choice.Solver
	opts   Options
	logger *zap.Logger
}

// New creates a Searcher
func New(solver *choice.Solver, opts Options) (*Searcher, error) {
	if solver == nil {
		return nil, errors.Internal("search requires a solver", nil)
	}
	if opts.Kind == "" {
		opts.Kind = types.KindGaussian
	}
	if opts.Clip == "" {
		opts.Clip = types.ClipNone
	}
	return &Searcher{
		solver: solver,
		opts:   opts,
		logger: logging.Named("search"),
	}, nil
}

// Run evaluates every (tax, sd) cell and reduces each sd to its optimum.
// On cancellation Run returns the partial result together with a CANCELED
// error. With StopOnError the first cell error is returned alongside the
// partial result.
func (s *Searcher) Run(ctx context.Context, population []types.Agent, taxGrid, sdGrid types.SweepGrid) (*Result, error) {
	if err := s.validate(population, taxGrid, sdGrid); err != nil {
		return nil, err
	}

	taxes, sds := taxGrid.Values(), sdGrid.Values()
	prefs, endow := s.solver.Preferences(), s.solver.Endowment()

	transfers := make([]float64, len(taxes))
	if s.opts.Redistribute {
		for i, tau := range taxes {
			transfers[i] = utility.Demogrant(population, tau, prefs, endow)
		}
	}

	// sd-major so that early termination completes whole rows first
	cells := make([]Cell, 0, len(taxes)*len(sds))
	for _, sd := range sds {
		for i, tau := range taxes {
			cells = append(cells, Cell{Tax: tau, SD: sd, Transfer: transfers[i]})
		}
	}
	succeeded := make([]bool, len(cells))

	s.logger.Debug("starting optimal tax search",
		zap.Int("agents", len(population)),
		zap.Int("taxes", len(taxes)),
		zap.Int("sds", len(sds)),
		zap.Int("cells", len(cells)),
		zap.Bool("redistribute", s.opts.Redistribute))

	exec := NewExecutor(s.opts.Workers)
	exec.SetStopOnError(s.opts.StopOnError)
	if s.opts.Progress != nil {
		exec.OnProgress(s.opts.Progress)
	}

	done, runErr := exec.Execute(ctx, cells, func(ctx context.Context, i int) error {
		if err := s.evaluate(ctx, population, &cells[i]); err != nil {
			return err
		}
		succeeded[i] = true
		return nil
	})

	res := &Result{
		CellErrors: exec.GetErrors(),
		Stats:      exec.GetStats(),
	}
	for _, ce := range res.CellErrors {
		s.logger.Warn("cell failed", logging.Cell(ce.Tax, ce.SD), zap.String("error", ce.Message))
	}

	for j, sd := range sds {
		block := cells[j*len(taxes) : (j+1)*len(taxes)]
		blockDone := done[j*len(taxes) : (j+1)*len(taxes)]
		blockOK := succeeded[j*len(taxes) : (j+1)*len(taxes)]
		row, ok := reduceRow(sd, block, blockDone, blockOK)
		if !ok {
			continue
		}
		s.logger.Debug("sd complete",
			zap.Float64("sd", sd),
			logging.Rate("opt_tax_certain", row.Certain.Tax),
			logging.Rate("opt_tax_eumax", row.EUMax.Tax))
		res.Rows = append(res.Rows, row)
	}
	res.Complete = runErr == nil && len(res.Rows) == len(sds)

	if runErr != nil {
		if ctx.Err() != nil {
			return res, errors.Canceled("optimal tax search interrupted", runErr)
		}
		return res, cellFailure(runErr)
	}

	s.logger.Info("optimal tax search complete",
		zap.Int("rows", len(res.Rows)),
		zap.Int("cell_errors", len(res.CellErrors)),
		zap.Duration("elapsed", res.Stats.EndTime.Sub(res.Stats.StartTime)))
	return res, nil
}

func (s *Searcher) validate(population []types.Agent, taxGrid, sdGrid types.SweepGrid) error {
	if len(population) == 0 {
		return errors.Domain("population", "population is empty")
	}
	for _, a := range population {
		if err := a.Validate(); err != nil {
			return err
		}
	}
	if s.opts.Weights != nil {
		if len(s.opts.Weights) != len(population) {
			return errors.Domain("weights", "got %d weights for %d agents", len(s.opts.Weights), len(population))
		}
		for _, w := range s.opts.Weights {
			if !(w >= 0) || math.IsInf(w, 0) {
				return errors.Domain("weights", "population weights must be finite and >= 0, got %g", w)
			}
		}
	}
	if err := taxGrid.Validate("tax_grid"); err != nil {
		return err
	}
	if err := sdGrid.Validate("sd_grid"); err != nil {
		return err
	}
	if sdGrid.Min() < 0 {
		return errors.Domain("sd_grid", "sd must be >= 0, got %g", sdGrid.Min())
	}
	return nil
}

// evaluate fills the welfare fields of one cell
func (s *Searcher) evaluate(ctx context.Context, population []types.Agent, cell *Cell) error {
	unc := types.TaxUncertainty{Mean: cell.Tax, SD: cell.SD, Kind: s.opts.Kind, Clip: s.opts.Clip}
	nodes, err := s.solver.Nodes(unc)
	if err != nil {
		return err
	}

	prefs, endow := s.solver.Preferences(), s.solver.Endowment()
	var certain, naive, eumax float64
	for i, a := range population {
		if i%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		a = a.WithTransfer(cell.Transfer)
		w := s.weight(i)
		certain += w * utility.IndirectUtility(a, cell.Tax, prefs, endow)
		naive += w * s.solver.NaiveUtility(a, nodes)
		eumax += w * s.solver.EUMaxUtility(a, nodes)
	}

	cell.Certain, cell.Naive, cell.EUMax = certain, naive, eumax
	return nil
}

func (s *Searcher) weight(i int) float64 {
	if s.opts.Weights == nil {
		return 1
	}
	return s.opts.Weights[i]
}

// reduceRow returns false when a cell of the block never finished or no
// cell succeeded.
func reduceRow(sd float64, block []Cell, done, succeeded []bool) (Row, bool) {
	row := Row{SD: sd}
	for i := range block {
		if !done[i] {
			return Row{}, false
		}
		if succeeded[i] {
			row.Cells = append(row.Cells, block[i])
		} else {
			row.FailedCells++
		}
	}
	if len(row.Cells) == 0 {
		return Row{}, false
	}

	row.Certain = argmax(row.Cells, RegimeCertain)
	row.Naive = argmax(row.Cells, RegimeNaive)
	row.EUMax = argmax(row.Cells, RegimeEUMax)
	row.DeadweightLoss = row.Certain.Welfare - row.EUMax.Welfare
	if row.Certain.Welfare > 0 {
		row.DeadweightLossPercent = row.DeadweightLoss / row.Certain.Welfare * 100
	}
	return row, true
}

// argmax picks the highest welfare; equal welfare goes to the lower rate
// regardless of cell order.
func argmax(cells []Cell, r Regime) Optimum {
	best := Optimum{Tax: cells[0].Tax, Welfare: cells[0].Welfare(r)}
	for _, c := range cells[1:] {
		w := c.Welfare(r)
		if w > best.Welfare || (w == best.Welfare && c.Tax < best.Tax) {
			best = Optimum{Tax: c.Tax, Welfare: w}
		}
	}
	return best
}

// cellFailure lifts the cell error that stopped a search to an *errors.Error
// of the same category as its cause.
func cellFailure(err error) error {
	var ce *CellError
	if !errors.As(err, &ce) {
		return err
	}
	typ := errors.TypeInternal
	var cause *errors.Error
	if errors.As(ce.Cause, &cause) {
		typ = cause.Type
	}
	return errors.Wrap(typ, "optimal tax search stopped", *ce).
		WithContext("tax", ce.Tax).
		WithContext("sd", ce.SD)
}
