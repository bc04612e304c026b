// Package engine provides the API-primary analysis engine.
// CLI is a thin wrapper around this engine.
package engine

import (
	"context"
	"runtime"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"tax-uncertainty/core/choice"
	"tax-uncertainty/core/determinism"
	"tax-uncertainty/core/planner"
	"tax-uncertainty/core/population"
	"tax-uncertainty/core/search"
	"tax-uncertainty/core/signal"
	"tax-uncertainty/core/types"
	"tax-uncertainty/internal/config"
	"tax-uncertainty/internal/errors"
	"tax-uncertainty/internal/logging"
)

// Engine is the primary API for the welfare analysis.
// All other interfaces (CLI, tests) are thin wrappers.
type Engine struct {
	cfg    *config.Config
	prefs  types.Preferences
	endow  types.Endowment
	solver *choice.Solver
	logger *zap.Logger

	// progress is forwarded to the optimal tax search
	progress search.ProgressCallback
}

// New validates cfg and builds the shared solver. A nil cfg means
// config.Default().
func New(cfg *config.Config) (*Engine, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	prefs := types.Preferences{Alpha: cfg.Model.Alpha, Beta: cfg.Model.Beta}
	endow := types.Endowment{TotalTime: cfg.Model.TotalTime}

	grid, err := types.NewSweepGrid(0, endow.TotalTime, cfg.Choice.LeisurePoints)
	if err != nil {
		return nil, err
	}
	solver, err := choice.NewSolver(prefs, endow, grid, cfg.Choice.QuadratureNodes)
	if err != nil {
		return nil, err
	}

	return &Engine{
		cfg:    cfg,
		prefs:  prefs,
		endow:  endow,
		solver: solver,
		logger: logging.Named("engine"),
	}, nil
}

// Config returns the engine configuration
func (e *Engine) Config() *config.Config { return e.cfg }

// Solver returns the shared choice solver
func (e *Engine) Solver() *choice.Solver { return e.solver }

// OnProgress registers a callback for optimal tax search progress
func (e *Engine) OnProgress(cb search.ProgressCallback) {
	e.progress = cb
}

// uncertainty builds the configured rate distribution around mean
func (e *Engine) uncertainty(mean, sd float64) types.TaxUncertainty {
	return types.TaxUncertainty{
		Mean: mean,
		SD:   sd,
		Kind: types.UncertaintyKind(e.cfg.Choice.Kind),
		Clip: types.ClipMode(e.cfg.Choice.Clip),
	}
}

func (e *Engine) agent() types.Agent {
	return types.Agent{Wage: e.cfg.Agent.Wage, NonlaborIncome: e.cfg.Agent.NonlaborIncome}
}

// Run executes every phase in order
func (e *Engine) Run(ctx context.Context) (*Report, error) {
	return e.RunPhases(ctx, AllPhases()...)
}

// RunPhases executes the given phases in phase order. On error the report
// holds every block completed so far; an interrupted optimal tax search
// keeps its partial rows.
func (e *Engine) RunPhases(ctx context.Context, phases ...Phase) (*Report, error) {
	start := time.Now()
	report := &Report{}

	summary, err := e.summary(phases)
	if err != nil {
		return nil, err
	}
	report.Summary = summary

	e.logger.Info("starting analysis",
		zap.String("run_id", summary.RunID),
		zap.String("config_hash", summary.ConfigHash),
		zap.Strings("phases", summary.Phases))

	err = e.runPhases(ctx, report, sortPhases(phases))

	report.Summary.Duration = time.Since(start)
	report.Summary.Complete = err == nil
	if report.OptimalTax != nil && !report.OptimalTax.Complete {
		report.Summary.Complete = false
	}
	if err != nil {
		e.logger.Warn("analysis stopped", zap.Error(err))
		return report, err
	}

	e.logger.Info("analysis complete", zap.Duration("duration", report.Summary.Duration))
	return report, nil
}

func (e *Engine) runPhases(ctx context.Context, report *Report, phases []Phase) error {
	for _, phase := range phases {
		if err := ctx.Err(); err != nil {
			return errors.Canceled("analysis interrupted before "+phase.String(), err)
		}

		phaseStart := time.Now()
		e.logger.Debug("phase started", zap.Stringer("phase", phase))

		var err error
		switch phase {
		case PhaseBias:
			report.Bias, err = e.BiasCurve()
		case PhaseUncertainty:
			report.Uncertainty, err = e.UncertaintyCurve(ctx)
		case PhaseTwoWorker:
			report.TwoWorker, err = e.TwoWorker(ctx)
		case PhaseOptimalTax:
			report.OptimalTax, err = e.OptimalTax(ctx)
		default:
			err = errors.Newf(errors.TypeInput, "unknown phase %d", int(phase))
		}
		if err != nil {
			return phaseError(phase, err)
		}

		e.logger.Info("phase complete",
			zap.Stringer("phase", phase),
			zap.Duration("duration", time.Since(phaseStart)))
	}
	return nil
}

// phaseError tags err with the phase it came from. Other error values are
// wrapped first, keeping the category of the first *errors.Error they carry.
func phaseError(phase Phase, err error) error {
	e, ok := err.(*errors.Error)
	if !ok {
		typ := errors.TypeInternal
		var inner *errors.Error
		if errors.As(err, &inner) {
			typ = inner.Type
		}
		e = errors.Wrap(typ, phase.String()+" phase failed", err)
	}
	return e.WithContext("phase", phase.String())
}

// summary records what is needed to reproduce the run
func (e *Engine) summary(phases []Phase) (Summary, error) {
	hash, err := determinism.HashJSON(e.cfg)
	if err != nil {
		return Summary{}, errors.Internal("failed to hash configuration", err)
	}

	names := make([]string, 0, len(phases))
	for _, p := range sortPhases(phases) {
		names = append(names, p.String())
	}

	return Summary{
		RunID:       uuid.NewString(),
		RunKey:      runKeys.Generate(hash.Hex()),
		GeneratedAt: time.Now().UTC(),
		ConfigHash:  hash.Hex(),
		Seed:        e.cfg.Population.Seed,
		Quadrature:  signal.Method(e.uncertainty(e.cfg.Agent.Tax, e.cfg.Uncertainty.SDMax), e.cfg.Choice.QuadratureNodes),
		Nodes:       e.cfg.Choice.QuadratureNodes,
		Phases:      names,
		Config:      e.cfg,
	}, nil
}

var runKeys = determinism.NewIDGenerator("run")

// BiasCurve computes the loss from misperceiving the agent's rate over a
// symmetric bias grid.
func (e *Engine) BiasCurve() (*BiasReport, error) {
	cfg := e.cfg.Bias
	biases, err := types.NewSweepGrid(-cfg.BiasMax, cfg.BiasMax, cfg.Points)
	if err != nil {
		return nil, err
	}

	a := e.agent()
	rows, err := choice.BiasCurve(a, e.cfg.Agent.Tax, biases, e.prefs, e.endow)
	if err != nil {
		return nil, err
	}

	e.logger.Debug("bias curve computed", zap.Int("points", len(rows)))
	return &BiasReport{
		Wage:           a.Wage,
		NonlaborIncome: a.NonlaborIncome,
		TrueTax:        e.cfg.Agent.Tax,
		Rows:           rows,
	}, nil
}

// UncertaintyCurve evaluates the naive and EU-max choices of the
// configured agent at every sd in [0, sd_max].
func (e *Engine) UncertaintyCurve(ctx context.Context) (*UncertaintyReport, error) {
	cfg := e.cfg.Uncertainty
	sds, err := types.NewSweepGrid(0, cfg.SDMax, cfg.Points)
	if err != nil {
		return nil, err
	}

	a := e.agent()
	rows := make([]UncertaintyRecord, 0, sds.Count())
	for _, sd := range sds.Values() {
		if err := ctx.Err(); err != nil {
			return nil, errors.Canceled("uncertainty curve interrupted", err)
		}

		out, err := e.solver.Evaluate(a, e.uncertainty(e.cfg.Agent.Tax, sd))
		if err != nil {
			return nil, err
		}
		rows = append(rows, UncertaintyRecord{
			SD:             sd,
			Nodes:          len(out.Nodes),
			UtilityCertain: out.PerfectInfo.Utility,
			UtilityNaive:   out.Naive.Welfare.Utility,
			UtilityEUMax:   out.EUMax.Welfare.Utility,
			WelfareGap:     out.Gap,
			GapMoneyMetric: out.GapMoneyMetric,
			LeisureNaive:   out.Naive.Leisure,
			LeisureEUMax:   out.EUMax.Leisure,
			LossPctNaive:   out.LossPercent(out.Naive.Welfare.Utility),
			LossPctEUMax:   out.LossPercent(out.EUMax.Welfare.Utility),
		})
	}

	e.logger.Debug("uncertainty curve computed", zap.Int("points", len(rows)))
	return &UncertaintyReport{
		Wage:           a.Wage,
		NonlaborIncome: a.NonlaborIncome,
		Tax:            e.cfg.Agent.Tax,
		Rows:           rows,
	}, nil
}

// TwoWorker evaluates the two-worker planner at the agent's rate and over
// the configured tax range.
func (e *Engine) TwoWorker(ctx context.Context) (*TwoWorkerReport, error) {
	cfg := e.cfg.TwoWorker

	opts := planner.Options{Redistribute: cfg.Redistribute}
	if len(cfg.Weights) == 2 {
		opts.Weights = [2]float64{cfg.Weights[0], cfg.Weights[1]}
	}

	p, err := planner.New(e.solver,
		types.Agent{Wage: cfg.Wage1},
		types.Agent{Wage: cfg.Wage2},
		opts)
	if err != nil {
		return nil, err
	}

	point, err := p.Welfare(e.uncertainty(e.cfg.Agent.Tax, cfg.SD))
	if err != nil {
		return nil, err
	}

	taxes, err := types.NewSweepGrid(cfg.TaxMin, cfg.TaxMax, cfg.TaxPoints)
	if err != nil {
		return nil, err
	}
	curve, err := p.Sweep(ctx, taxes, e.uncertainty(e.cfg.Agent.Tax, cfg.SD))
	if err != nil {
		return nil, err
	}

	weights := opts.Weights
	if weights == ([2]float64{}) {
		weights = [2]float64{1, 1}
	}
	return &TwoWorkerReport{
		Wages:        [2]float64{cfg.Wage1, cfg.Wage2},
		Weights:      weights,
		SD:           cfg.SD,
		Redistribute: cfg.Redistribute,
		Point:        point,
		Curve:        curve,
	}, nil
}

// OptimalTax draws the population and searches the welfare-maximizing
// rate at every sd. An interrupted search returns its partial report with
// the error.
func (e *Engine) OptimalTax(ctx context.Context) (*OptimalTaxReport, error) {
	pc := e.cfg.Population
	agents, err := population.SampleSeeded(population.Params{
		Size:           pc.Size,
		WageMedian:     pc.WageMedian,
		WageShape:      pc.WageShape,
		NonlaborIncome: pc.NonlaborIncome,
	}, pc.Seed)
	if err != nil {
		return nil, err
	}

	sc := e.cfg.Search
	taxes, err := types.NewSweepGrid(sc.TaxLow, sc.TaxHigh, sc.TaxPoints)
	if err != nil {
		return nil, err
	}
	sds, err := types.NewSweepGrid(0, sc.SDMax, sc.SDPoints)
	if err != nil {
		return nil, err
	}

	workers := sc.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	searcher, err := search.New(e.solver, search.Options{
		Workers:      workers,
		Kind:         types.UncertaintyKind(e.cfg.Choice.Kind),
		Clip:         types.ClipMode(e.cfg.Choice.Clip),
		Redistribute: sc.Redistribute,
		StopOnError:  sc.StopOnError,
		Progress:     e.progress,
	})
	if err != nil {
		return nil, err
	}

	e.logger.Debug("population drawn",
		zap.Int("size", len(agents)),
		zap.Uint64("seed", pc.Seed),
		zap.Int("workers", workers))

	result, err := searcher.Run(ctx, agents, taxes, sds)
	if result == nil {
		return nil, err
	}

	report := &OptimalTaxReport{
		Population:   population.Describe(agents),
		Redistribute: sc.Redistribute,
		Rows:         result.Rows,
		CellErrors:   result.CellErrors,
		Stats:        result.Stats,
		Complete:     result.Complete,
	}
	if !e.cfg.Output.IncludeCells {
		for i := range report.Rows {
			report.Rows[i].Cells = nil
		}
	}
	return report, err
}
