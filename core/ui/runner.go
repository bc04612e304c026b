// Package ui - Interactive analysis runner with live progress
package ui

import (
	"context"
	"time"

	"tax-uncertainty/core/engine"
	"tax-uncertainty/core/search"
)

// AnalysisRunner runs the engine with live UI feedback
type AnalysisRunner struct {
	w      *Writer
	engine *engine.Engine
}

// NewAnalysisRunner creates a runner
func NewAnalysisRunner(w *Writer, e *engine.Engine) *AnalysisRunner {
	return &AnalysisRunner{w: w, engine: e}
}

// Run executes phases and shows a progress bar for the optimal tax search.
// The report is returned even when the run stops early.
func (r *AnalysisRunner) Run(ctx context.Context, phases ...engine.Phase) (*engine.Report, error) {
	if len(phases) == 0 {
		phases = engine.AllPhases()
	}
	cfg := r.engine.Config()

	r.w.Header("Tax Uncertainty Analysis")

	var bar *ProgressBar
	for _, p := range phases {
		if p == engine.PhaseOptimalTax {
			cells := cfg.Search.TaxPoints * cfg.Search.SDPoints
			r.w.Info("Searching %d cells over %d agents", cells, cfg.Population.Size)
			bar = r.w.NewProgressBar(cells, "Optimal tax")
			r.engine.OnProgress(func(prog search.Progress) {
				bar.Update(int(prog.Completed + prog.Failed))
			})
			defer r.engine.OnProgress(nil)
		}
	}

	report, err := r.engine.RunPhases(ctx, phases...)
	if bar != nil {
		bar.Done()
	}
	if err != nil {
		r.w.Error("Analysis stopped: %v", err)
	}
	if report == nil {
		return nil, err
	}

	if ot := report.OptimalTax; ot != nil && len(ot.CellErrors) > 0 {
		r.w.Warning("%d cells failed and were left out of the optimum", len(ot.CellErrors))
		for _, ce := range ot.CellErrors {
			r.w.Debug("tax=%g sd=%g: %s", ce.Tax, ce.SD, ce.Message)
		}
	}
	if err == nil {
		r.w.Success("Completed %d phases", len(report.Summary.Phases))
	}
	return report, err
}

// DisplaySummary shows the reproducibility record of a report
func (r *AnalysisRunner) DisplaySummary(report *engine.Report) {
	s := report.Summary
	panel := r.w.NewPanel("Run Summary")
	panel.Add("run", "%s", s.RunID)
	panel.Add("key", "%s", s.RunKey)
	panel.Add("config", "%s", s.ConfigHash[:12])
	panel.Add("seed", "%d", s.Seed)
	panel.Add("quadrature", "%s", s.Quadrature)
	panel.Add("duration", "%s", s.Duration.Round(time.Millisecond))
	if !s.Complete {
		panel.Add("status", "incomplete")
	}
	panel.Render()
}
