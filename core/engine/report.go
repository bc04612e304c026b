package engine

import (
	"time"

	"tax-uncertainty/core/choice"
	"tax-uncertainty/core/determinism"
	"tax-uncertainty/core/planner"
	"tax-uncertainty/core/population"
	"tax-uncertainty/core/search"
	"tax-uncertainty/internal/config"
)

// Report is the output of a run. Blocks that were not requested are nil.
type Report struct {
	Summary     Summary            `json:"summary"`
	Bias        *BiasReport        `json:"bias,omitempty"`
	Uncertainty *UncertaintyReport `json:"uncertainty,omitempty"`
	TwoWorker   *TwoWorkerReport   `json:"two_worker,omitempty"`
	OptimalTax  *OptimalTaxReport  `json:"optimal_tax,omitempty"`
}

// Summary captures the input configuration for reproducibility
type Summary struct {
	// RunID is unique per run
	RunID string `json:"run_id"`

	// RunKey is derived from the configuration alone; equal configs give
	// equal keys.
	RunKey determinism.StableID `json:"run_key"`

	GeneratedAt time.Time     `json:"generated_at"`
	Duration    time.Duration `json:"duration"`
	ConfigHash  string        `json:"config_hash"`
	Seed        uint64        `json:"seed"`

	// Quadrature names the expectation approximation, the only source of
	// approximation error in the results.
	Quadrature string `json:"quadrature"`
	Nodes      int    `json:"quadrature_nodes"`

	Phases   []string       `json:"phases"`
	Complete bool           `json:"complete"`
	Config   *config.Config `json:"config"`
}

// BiasReport is the loss from optimizing against trueTax+bias
type BiasReport struct {
	Wage           float64           `json:"wage"`
	NonlaborIncome float64           `json:"nonlabor_income"`
	TrueTax        float64           `json:"true_tax"`
	Rows           []choice.BiasLoss `json:"rows"`
}

// UncertaintyRecord compares the two decisions at one sd
type UncertaintyRecord struct {
	SD             float64  `json:"sd"`
	Nodes          int      `json:"nodes"`
	UtilityCertain float64  `json:"utility_certain"`
	UtilityNaive   float64  `json:"utility_uncertain_naive"`
	UtilityEUMax   float64  `json:"utility_uncertain_eumax"`
	WelfareGap     float64  `json:"welfare_gap"`
	GapMoneyMetric *float64 `json:"welfare_gap_money_metric,omitempty"`
	LeisureNaive   float64  `json:"leisure_naive"`
	LeisureEUMax   float64  `json:"leisure_eumax"`
	LossPctNaive   float64  `json:"loss_pct_naive"`
	LossPctEUMax   float64  `json:"loss_pct_eumax"`
}

// UncertaintyReport is the loss-versus-sd curve for one agent
type UncertaintyReport struct {
	Wage           float64             `json:"wage"`
	NonlaborIncome float64             `json:"nonlabor_income"`
	Tax            float64             `json:"tax"`
	Rows           []UncertaintyRecord `json:"rows"`
}

// TwoWorkerReport holds the planner at the agent's rate and its tax sweep
type TwoWorkerReport struct {
	Wages        [2]float64      `json:"wages"`
	Weights      [2]float64      `json:"weights"`
	SD           float64         `json:"sd"`
	Redistribute bool            `json:"redistribute"`
	Point        planner.Point   `json:"point"`
	Curve        []planner.Point `json:"curve"`
}

// OptimalTaxReport is the optimal rate per sd over a sampled population
type OptimalTaxReport struct {
	Population   population.Summary    `json:"population"`
	Redistribute bool                  `json:"redistribute"`
	Rows         []search.Row          `json:"rows"`
	CellErrors   []search.CellError    `json:"cell_errors,omitempty"`
	Stats        search.ExecutionStats `json:"stats"`
	Complete     bool                  `json:"complete"`
}
