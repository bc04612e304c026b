// Package choice solves the labor decision an agent makes before the tax
// rate is realized.
//
// Two decisions are compared. The naive decision commits to the certainty
// optimum at the expected realized rate, the weighted mean of the nodes. With
// clipping on this differs from the nominal mean. The expected-utility-maximizing (EU-max)
// decision picks the leisure level, from a candidate grid, with the highest
// probability weighted utility over realized rates. Labor is fixed ex ante;
// consumption is realized ex post at each rate and floored at zero per node,
// before weighting.
//
// The objective is a weighted sum of shifted single-peaked curves and is not
// unimodal for every rate distribution, so the EU-max search is exhaustive
// over the grid. The naive leisure is always added to the candidate set;
// hence EU-max utility >= naive utility holds exactly.
package choice

import (
	"math"

	"tax-uncertainty/core/signal"
	"tax-uncertainty/core/types"
	"tax-uncertainty/core/utility"
	"tax-uncertainty/internal/errors"
)

// Decision is a committed leisure level and its expected welfare
type Decision struct {
	Leisure             float64             `json:"leisure"`
	Labor               float64             `json:"labor"`
	ExpectedConsumption float64             `json:"expected_consumption"`
	Welfare             types.WelfareResult `json:"welfare"`
}

// Outcome compares the naive and EU-max decisions for one agent and one
// tax signal.
type Outcome struct {
	Nodes []signal.Node `json:"nodes"`

	// NaiveRate is the expected realized rate the naive decision optimizes
	// against.
	NaiveRate float64 `json:"naive_rate"`

	Naive Decision `json:"naive"`
	EUMax Decision `json:"eu_max"`

	// PerfectInfo is expected utility when the agent observes the realized
	// rate before choosing.
	PerfectInfo types.WelfareResult `json:"perfect_info"`

	// Gap is EU-max utility minus naive utility; never negative.
	Gap            float64  `json:"welfare_gap"`
	GapMoneyMetric *float64 `json:"welfare_gap_money_metric,omitempty"`
}

// LossPercent returns the percentage loss of u relative to the
// perfect-information baseline, or 0 when the baseline is not positive.
func (o *Outcome) LossPercent(u float64) float64 {
	return lossPercent(o.PerfectInfo.Utility, u)
}

func lossPercent(base, u float64) float64 {
	if base <= 0 {
		return 0
	}
	return (base - u) / base * 100
}

// Solver holds validated preferences, endowment and leisure grid so that
// repeated evaluations skip argument checks.
type Solver struct {
	prefs   types.Preferences
	endow   types.Endowment
	leisure []float64
	nodes   int
}

// NewSolver validates the model and the leisure grid. nodes is the
// quadrature node count used for gaussian signals.
func NewSolver(p types.Preferences, e types.Endowment, grid types.SweepGrid, nodes int) (*Solver, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	if err := grid.Within("leisure_grid", 0, e.TotalTime); err != nil {
		return nil, err
	}
	if nodes < 1 {
		return nil, errors.Domain("nodes", "quadrature node count must be >= 1, got %d", nodes)
	}
	return &Solver{prefs: p, endow: e, leisure: grid.Values(), nodes: nodes}, nil
}

// Preferences returns the solver's preferences
func (s *Solver) Preferences() types.Preferences { return s.prefs }

// Endowment returns the solver's endowment
func (s *Solver) Endowment() types.Endowment { return s.endow }

// NodeCount returns the quadrature node count
func (s *Solver) NodeCount() int { return s.nodes }

// Nodes discretises u with the solver's node count
func (s *Solver) Nodes(u types.TaxUncertainty) ([]signal.Node, error) {
	return signal.Nodes(u, s.nodes)
}

// Evaluate computes the naive and EU-max decisions for agent under u.
func (s *Solver) Evaluate(a types.Agent, u types.TaxUncertainty) (*Outcome, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}
	nodes, err := s.Nodes(u)
	if err != nil {
		return nil, err
	}
	return s.EvaluateNodes(a, nodes), nil
}

// EvaluateNodes is Evaluate for an agent and node set already validated by
// the caller.
func (s *Solver) EvaluateNodes(a types.Agent, nodes []signal.Node) *Outcome {
	rate := signal.Mean(nodes)
	naiveLeisure := s.naiveLeisure(a, nodes)
	naiveEU := s.ExpectedUtility(a, naiveLeisure, nodes)

	bestLeisure, bestEU := s.search(a, nodes, naiveLeisure, naiveEU)

	out := &Outcome{
		Nodes:       nodes,
		NaiveRate:   rate,
		Naive:       s.decision(a, naiveLeisure, naiveEU, nodes),
		EUMax:       s.decision(a, bestLeisure, bestEU, nodes),
		PerfectInfo: s.perfectInfo(a, nodes),
	}
	out.Gap = bestEU - naiveEU
	out.GapMoneyMetric = utility.ConvertWithMarginal(out.Gap, s.expectedMarginal(a, bestLeisure, nodes))
	return out
}

// EUMaxUtility returns only the EU-max expected utility. It is the hot path
// of population sweeps.
func (s *Solver) EUMaxUtility(a types.Agent, nodes []signal.Node) float64 {
	naiveLeisure := s.naiveLeisure(a, nodes)
	_, best := s.search(a, nodes, naiveLeisure, s.ExpectedUtility(a, naiveLeisure, nodes))
	return best
}

// NaiveUtility returns the expected utility of the naive decision
func (s *Solver) NaiveUtility(a types.Agent, nodes []signal.Node) float64 {
	return s.ExpectedUtility(a, s.naiveLeisure(a, nodes), nodes)
}

func (s *Solver) naiveLeisure(a types.Agent, nodes []signal.Node) float64 {
	return utility.OptimalLeisure(a, signal.Mean(nodes), s.prefs, s.endow)
}

// ExpectedUtility returns sum_i w_i * U(L, max(0, w(1-tau_i)(T-L) + v))
func (s *Solver) ExpectedUtility(a types.Agent, leisure float64, nodes []signal.Node) float64 {
	if leisure == 0 {
		return 0
	}
	labor := s.endow.TotalTime - leisure
	lPow := math.Pow(leisure, s.prefs.Alpha)
	var eu float64
	for _, n := range nodes {
		c := types.Consumption(a, n.Rate, labor)
		if c == 0 {
			continue
		}
		eu += n.Weight * lPow * math.Pow(c, s.prefs.Beta)
	}
	return eu
}

// search scans the grid plus the naive leisure. Ties go to the smaller
// leisure so the result does not depend on candidate order.
func (s *Solver) search(a types.Agent, nodes []signal.Node, naiveLeisure, naiveEU float64) (float64, float64) {
	bestLeisure, bestEU := naiveLeisure, naiveEU
	for _, l := range s.leisure {
		eu := s.ExpectedUtility(a, l, nodes)
		if eu > bestEU || (eu == bestEU && l < bestLeisure) {
			bestLeisure, bestEU = l, eu
		}
	}
	return bestLeisure, bestEU
}

func (s *Solver) decision(a types.Agent, leisure, eu float64, nodes []signal.Node) Decision {
	labor := s.endow.TotalTime - leisure
	var ec float64
	for _, n := range nodes {
		ec += n.Weight * types.Consumption(a, n.Rate, labor)
	}
	return Decision{
		Leisure:             leisure,
		Labor:               labor,
		ExpectedConsumption: ec,
		Welfare: types.WelfareResult{
			Utility:     eu,
			MoneyMetric: utility.ConvertWithMarginal(eu, s.expectedMarginal(a, leisure, nodes)),
		},
	}
}

// expectedMarginal is E[dU/dC] at a fixed leisure level
func (s *Solver) expectedMarginal(a types.Agent, leisure float64, nodes []signal.Node) float64 {
	labor := s.endow.TotalTime - leisure
	var m float64
	for _, n := range nodes {
		c := types.Consumption(a, n.Rate, labor)
		m += n.Weight * utility.MarginalUtilityConsumption(leisure, c, s.prefs)
	}
	return m
}

func (s *Solver) perfectInfo(a types.Agent, nodes []signal.Node) types.WelfareResult {
	var eu, muc float64
	for _, n := range nodes {
		c := types.NewChoice(a, n.Rate, utility.OptimalLeisure(a, n.Rate, s.prefs, s.endow), s.endow)
		eu += n.Weight * utility.Eval(c.Leisure, c.Consumption, s.prefs)
		muc += n.Weight * utility.MarginalUtilityConsumption(c.Leisure, c.Consumption, s.prefs)
	}
	return types.WelfareResult{Utility: eu, MoneyMetric: utility.ConvertWithMarginal(eu, muc)}
}

// Evaluate validates every argument and runs a one-off Solver.
func Evaluate(a types.Agent, u types.TaxUncertainty, p types.Preferences, e types.Endowment, grid types.SweepGrid, nodes int) (*Outcome, error) {
	s, err := NewSolver(p, e, grid, nodes)
	if err != nil {
		return nil, err
	}
	return s.Evaluate(a, u)
}
