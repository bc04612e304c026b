// Package utility evaluates Cobb-Douglas preferences and solves the agent's
// labor choice when the tax rate is known.
package utility

import (
	"math"

	"tax-uncertainty/core/types"
	"tax-uncertainty/internal/errors"
)

// Utility returns leisure^alpha * consumption^beta.
// Zero leisure or zero consumption yields zero utility.
func Utility(leisure, consumption float64, p types.Preferences) (float64, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}
	if leisure < 0 || math.IsNaN(leisure) {
		return 0, errors.Domain("leisure", "must be >= 0, got %g", leisure)
	}
	if consumption < 0 || math.IsNaN(consumption) {
		return 0, errors.Domain("consumption", "must be >= 0, got %g", consumption)
	}
	return Eval(leisure, consumption, p), nil
}

// Eval is Utility without argument checks, for callers that have already
// validated preferences and keep leisure and consumption non-negative.
func Eval(leisure, consumption float64, p types.Preferences) float64 {
	if leisure == 0 || consumption == 0 {
		return 0
	}
	return math.Pow(leisure, p.Alpha) * math.Pow(consumption, p.Beta)
}

// MarginalUtilityLeisure returns dU/dL. It is +Inf at zero leisure.
func MarginalUtilityLeisure(leisure, consumption float64, p types.Preferences) float64 {
	if leisure == 0 {
		return math.Inf(1)
	}
	return p.Alpha * math.Pow(leisure, p.Alpha-1) * math.Pow(consumption, p.Beta)
}

// MarginalUtilityConsumption returns dU/dC. It is +Inf at zero consumption.
func MarginalUtilityConsumption(leisure, consumption float64, p types.Preferences) float64 {
	if consumption == 0 {
		return math.Inf(1)
	}
	return p.Beta * math.Pow(leisure, p.Alpha) * math.Pow(consumption, p.Beta-1)
}

// MarginalRateOfSubstitution returns MU_L / MU_C = (alpha/beta) * C/L
func MarginalRateOfSubstitution(leisure, consumption float64, p types.Preferences) float64 {
	if leisure == 0 {
		return math.Inf(1)
	}
	return (p.Alpha / p.Beta) * (consumption / leisure)
}

// MoneyMetric converts a utility level into consumption units using the
// marginal utility of consumption at the given allocation. It returns nil
// when that marginal utility is zero or infinite.
func MoneyMetric(u float64, at types.Choice, p types.Preferences) *float64 {
	return moneyMetric(u, MarginalUtilityConsumption(at.Leisure, at.Consumption, p))
}

func moneyMetric(u, muc float64) *float64 {
	if muc == 0 || math.IsInf(muc, 0) || math.IsNaN(muc) {
		return nil
	}
	m := u / muc
	return &m
}

// ConvertWithMarginal converts a utility amount using an already computed
// marginal utility of consumption.
func ConvertWithMarginal(u, muc float64) *float64 {
	return moneyMetric(u, muc)
}

// OptimalLeisure returns the closed form certainty optimum
//
//	L* = alpha*(w(1-tau)T + v) / (w(1-tau)(alpha+beta))
//
// clipped to [0, T]. A non-positive net wage gives the corner L* = T.
func OptimalLeisure(a types.Agent, tau float64, p types.Preferences, e types.Endowment) float64 {
	netWage := a.NetWage(tau)
	if netWage <= 0 {
		return e.TotalTime
	}
	l := p.Alpha * (netWage*e.TotalTime + a.NonlaborIncome) / (netWage * p.Sum())
	return math.Min(math.Max(l, 0), e.TotalTime)
}

// OptimalLeisureCertain validates its inputs and returns the certainty
// optimal Choice at rate tau. tau is a realized rate, so values >= 1 are
// accepted here and resolve to the full-leisure corner.
func OptimalLeisureCertain(a types.Agent, tau float64, p types.Preferences, e types.Endowment) (types.Choice, error) {
	if err := validate(a, tau, p, e); err != nil {
		return types.Choice{}, err
	}
	return types.NewChoice(a, tau, OptimalLeisure(a, tau, p, e), e), nil
}

// LaborSupply returns T - L* at rate tau
func LaborSupply(a types.Agent, tau float64, p types.Preferences, e types.Endowment) float64 {
	return e.TotalTime - OptimalLeisure(a, tau, p, e)
}

// IndirectUtility returns utility at the certainty optimum for rate tau
func IndirectUtility(a types.Agent, tau float64, p types.Preferences, e types.Endowment) float64 {
	c := types.NewChoice(a, tau, OptimalLeisure(a, tau, p, e), e)
	return Eval(c.Leisure, c.Consumption, p)
}

// Evaluate returns the certainty optimum and its welfare, with the money
// metric taken at that allocation.
func Evaluate(a types.Agent, tau float64, p types.Preferences, e types.Endowment) (types.Choice, types.WelfareResult, error) {
	c, err := OptimalLeisureCertain(a, tau, p, e)
	if err != nil {
		return types.Choice{}, types.WelfareResult{}, err
	}
	u := Eval(c.Leisure, c.Consumption, p)
	return c, types.WelfareResult{Utility: u, MoneyMetric: MoneyMetric(u, c, p)}, nil
}

func validate(a types.Agent, tau float64, p types.Preferences, e types.Endowment) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if err := e.Validate(); err != nil {
		return err
	}
	if err := a.Validate(); err != nil {
		return err
	}
	if math.IsNaN(tau) || math.IsInf(tau, 0) {
		return errors.Domain("tax_rate", "tax rate must be finite, got %g", tau)
	}
	return nil
}

// Demogrant returns per-capita revenue at rate tau, with each agent's labor
// chosen under certainty before any transfer. Paying it back as a lump sum
// to every agent balances the budget.
func Demogrant(agents []types.Agent, tau float64, p types.Preferences, e types.Endowment) float64 {
	if len(agents) == 0 {
		return 0
	}
	var revenue float64
	for _, a := range agents {
		revenue += a.Wage * tau * LaborSupply(a, tau, p, e)
	}
	return revenue / float64(len(agents))
}
