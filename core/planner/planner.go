// Package planner computes social welfare for a two-worker economy.
//
// Welfare is the weighted sum of each worker's utility under three regimes:
// certainty (the rate is known before labor is chosen), naive (labor is
// chosen at the expected rate) and EU-max (labor maximizes expected utility
// over the realized rate). Workers do not interact; total welfare is
// additive unless the demogrant option links them through a shared transfer.
package planner

import (
	"context"

	"go.uber.org/zap"

	"tax-uncertainty/core/choice"
	"tax-uncertainty/core/types"
	"tax-uncertainty/core/utility"
	"tax-uncertainty/internal/errors"
	"tax-uncertainty/internal/logging"
)

// Options configures a Planner
type Options struct {
	// Weights are the social weights of worker 1 and worker 2. Zero value
	// means {1, 1}.
	Weights [2]float64

	// Redistribute pays per-capita revenue back to both workers as a
	// lump-sum transfer.
	Redistribute bool
}

// Point is social welfare at one policy under the three regimes
type Point struct {
	Tax      float64 `json:"tax"`
	SD       float64 `json:"sd"`
	Transfer float64 `json:"transfer"`

	Certain float64 `json:"welfare_certain"`
	Naive   float64 `json:"welfare_naive"`
	EUMax   float64 `json:"welfare_eumax"`

	// Gap is EU-max welfare minus naive welfare
	Gap float64 `json:"welfare_gap"`

	Workers [2]WorkerOutcome `json:"workers"`
}

// Loss returns certainty welfare minus EU-max welfare
func (p Point) Loss() float64 {
	return p.Certain - p.EUMax
}

// WorkerOutcome is one worker's contribution before weighting
type WorkerOutcome struct {
	Wage         float64 `json:"wage"`
	Certain      float64 `json:"utility_certain"`
	Naive        float64 `json:"utility_naive"`
	EUMax        float64 `json:"utility_eumax"`
	EUMaxLeisure float64 `json:"leisure_eumax"`
}

// Planner evaluates a fixed pair of workers
type Planner struct {
	workers [2]types.Agent
	opts    Options
	solver  *choice.Solver
	logger  *zap.Logger
}

// New validates both workers. Their wages must differ.
func New(solver *choice.Solver, w1, w2 types.Agent, opts Options) (*Planner, error) {
	if solver == nil {
		return nil, errors.Internal("planner requires a solver", nil)
	}
	for _, w := range []types.Agent{w1, w2} {
		if err := w.Validate(); err != nil {
			return nil, err
		}
	}
	if w1.Wage == w2.Wage {
		return nil, errors.Domain("wages", "two-worker planner needs distinct wages, got %g twice", w1.Wage)
	}
	if opts.Weights == [2]float64{} {
		opts.Weights = [2]float64{1, 1}
	}
	for _, wt := range opts.Weights {
		if !(wt >= 0) {
			return nil, errors.Domain("weights", "social weights must be >= 0, got %v", opts.Weights)
		}
	}
	return &Planner{
		workers: [2]types.Agent{w1, w2},
		opts:    opts,
		solver:  solver,
		logger:  logging.Named("planner"),
	}, nil
}

// Welfare evaluates social welfare when the rate follows unc. The certainty
// regime uses the mean rate.
func (p *Planner) Welfare(unc types.TaxUncertainty) (Point, error) {
	nodes, err := p.solver.Nodes(unc)
	if err != nil {
		return Point{}, err
	}

	prefs, endow := p.solver.Preferences(), p.solver.Endowment()
	pt := Point{Tax: unc.Mean, SD: unc.SD}
	if p.opts.Redistribute {
		pt.Transfer = utility.Demogrant(p.workers[:], unc.Mean, prefs, endow)
	}

	for i, w := range p.workers {
		a := w.WithTransfer(pt.Transfer)
		out := p.solver.EvaluateNodes(a, nodes)
		wo := WorkerOutcome{
			Wage:         a.Wage,
			Certain:      utility.IndirectUtility(a, unc.Mean, prefs, endow),
			Naive:        out.Naive.Welfare.Utility,
			EUMax:        out.EUMax.Welfare.Utility,
			EUMaxLeisure: out.EUMax.Leisure,
		}
		pt.Workers[i] = wo

		weight := p.opts.Weights[i]
		pt.Certain += weight * wo.Certain
		pt.Naive += weight * wo.Naive
		pt.EUMax += weight * wo.EUMax
	}
	pt.Gap = pt.EUMax - pt.Naive
	return pt, nil
}

// Sweep evaluates Welfare at every rate of taxGrid, holding the shape of
// unc fixed and moving its mean. On cancellation the points computed so far
// are returned with a CANCELED error.
func (p *Planner) Sweep(ctx context.Context, taxGrid types.SweepGrid, unc types.TaxUncertainty) ([]Point, error) {
	if err := taxGrid.Validate("tax_grid"); err != nil {
		return nil, err
	}

	points := make([]Point, 0, taxGrid.Count())
	for _, tau := range taxGrid.Values() {
		if err := ctx.Err(); err != nil {
			return points, errors.Canceled("two-worker sweep interrupted", err)
		}
		pt, err := p.Welfare(unc.WithMean(tau))
		if err != nil {
			return points, err
		}
		points = append(points, pt)
	}

	p.logger.Debug("two-worker sweep complete",
		zap.Int("points", len(points)),
		logging.Rate("tax_min", taxGrid.Min()),
		logging.Rate("tax_max", taxGrid.Max()),
		zap.Float64("sd", unc.SD))
	return points, nil
}
