// Package types defines the value objects shared by the welfare engine.
// All values are immutable once constructed; every computation call creates
// its own.
package types

import (
	"math"

	"tax-uncertainty/internal/errors"
)

// Preferences are the Cobb-Douglas exponents on leisure (Alpha) and
// consumption (Beta). They need not sum to one.
type Preferences struct {
	Alpha float64 `json:"alpha"`
	Beta  float64 `json:"beta"`
}

// Validate rejects non-positive or non-finite exponents
func (p Preferences) Validate() error {
	if !(p.Alpha > 0) || math.IsInf(p.Alpha, 0) {
		return errors.Domain("alpha", "leisure exponent must be > 0, got %g", p.Alpha)
	}
	if !(p.Beta > 0) || math.IsInf(p.Beta, 0) {
		return errors.Domain("beta", "consumption exponent must be > 0, got %g", p.Beta)
	}
	return nil
}

// Sum returns Alpha+Beta
func (p Preferences) Sum() float64 {
	return p.Alpha + p.Beta
}

// Endowment is the total disposable time T
type Endowment struct {
	TotalTime float64 `json:"total_time"`
}

// Validate rejects a non-positive time endowment
func (e Endowment) Validate() error {
	if !(e.TotalTime > 0) || math.IsInf(e.TotalTime, 0) {
		return errors.Domain("total_time", "must be > 0, got %g", e.TotalTime)
	}
	return nil
}

// Agent is a worker with wage rate w and non-labor income v
type Agent struct {
	Wage           float64 `json:"wage"`
	NonlaborIncome float64 `json:"nonlabor_income"`
}

// Validate rejects non-positive wages and negative non-labor income
func (a Agent) Validate() error {
	if !(a.Wage > 0) || math.IsInf(a.Wage, 0) {
		return errors.Domain("wage", "must be > 0, got %g", a.Wage)
	}
	if !(a.NonlaborIncome >= 0) || math.IsInf(a.NonlaborIncome, 0) {
		return errors.Domain("nonlabor_income", "must be >= 0, got %g", a.NonlaborIncome)
	}
	return nil
}

// NetWage returns w*(1-tau)
func (a Agent) NetWage(tau float64) float64 {
	return a.Wage * (1 - tau)
}

// WithTransfer returns a copy of the agent with a lump-sum transfer added
// to non-labor income.
func (a Agent) WithTransfer(transfer float64) Agent {
	a.NonlaborIncome += transfer
	return a
}

// ValidateTaxRate checks that a marginal rate is finite and below 1.
// Negative rates are allowed (refundable credit analog).
func ValidateTaxRate(parameter string, tau float64) error {
	if math.IsNaN(tau) || math.IsInf(tau, 0) {
		return errors.Domain(parameter, "tax rate must be finite, got %g", tau)
	}
	if tau >= 1 {
		return errors.Domain(parameter, "tax rate must be < 1, got %g", tau)
	}
	return nil
}

// UncertaintyKind selects how the realized tax rate is distributed
type UncertaintyKind string

const (
	// KindPoint is a degenerate distribution at the mean
	KindPoint UncertaintyKind = "point"

	// KindGaussian is mean + Normal(0, sd^2) noise
	KindGaussian UncertaintyKind = "gaussian"

	// KindFivePoint is the symmetric five-scenario approximation
	// z = {-1.5,-0.5,0,0.5,1.5}, p = {.1,.2,.4,.2,.1}
	KindFivePoint UncertaintyKind = "five_point"
)

// ClipMode controls whether realized rates are clipped
type ClipMode string

const (
	// ClipNone leaves realized rates unclipped
	ClipNone ClipMode = "none"

	// ClipUnit clips realized rates to [0, 1]
	ClipUnit ClipMode = "unit"
)

// TaxUncertainty describes the distribution of the realized marginal rate
type TaxUncertainty struct {
	Mean float64         `json:"mean"`
	SD   float64         `json:"sd"`
	Kind UncertaintyKind `json:"kind"`
	Clip ClipMode        `json:"clip,omitempty"`
}

// Certain returns a point distribution at tau
func Certain(tau float64) TaxUncertainty {
	return TaxUncertainty{Mean: tau, Kind: KindPoint, Clip: ClipNone}
}

// Gaussian returns a normal distribution around mean with the given sd
func Gaussian(mean, sd float64) TaxUncertainty {
	return TaxUncertainty{Mean: mean, SD: sd, Kind: KindGaussian, Clip: ClipNone}
}

// Validate checks the mean rate, sd and kind
func (u TaxUncertainty) Validate() error {
	if err := ValidateTaxRate("tax_mean", u.Mean); err != nil {
		return err
	}
	if !(u.SD >= 0) || math.IsInf(u.SD, 0) {
		return errors.Domain("sd", "must be >= 0, got %g", u.SD)
	}
	switch u.Kind {
	case KindPoint, KindGaussian, KindFivePoint:
	default:
		return errors.Domain("kind", "unknown uncertainty kind %q", u.Kind)
	}
	switch u.Clip {
	case "", ClipNone, ClipUnit:
	default:
		return errors.Domain("clip", "unknown clip mode %q", u.Clip)
	}
	return nil
}

// IsDegenerate reports whether the distribution collapses to its mean
func (u TaxUncertainty) IsDegenerate() bool {
	return u.Kind == KindPoint || u.SD == 0
}

// WithMean returns a copy centred on a different mean rate
func (u TaxUncertainty) WithMean(mean float64) TaxUncertainty {
	u.Mean = mean
	return u
}

// WithSD returns a copy with a different sd
func (u TaxUncertainty) WithSD(sd float64) TaxUncertainty {
	u.SD = sd
	return u
}

// Choice is a leisure/labor allocation and the consumption it yields at the
// tax rate actually faced.
type Choice struct {
	Leisure     float64 `json:"leisure"`
	Labor       float64 `json:"labor"`
	Consumption float64 `json:"consumption"`
}

// NewChoice builds the allocation for a leisure level at a faced rate.
// Consumption is floored at zero.
func NewChoice(a Agent, tau, leisure float64, e Endowment) Choice {
	labor := e.TotalTime - leisure
	return Choice{
		Leisure:     leisure,
		Labor:       labor,
		Consumption: Consumption(a, tau, labor),
	}
}

// Consumption returns max(0, w*(1-tau)*labor + v)
func Consumption(a Agent, tau, labor float64) float64 {
	return math.Max(0, a.NetWage(tau)*labor+a.NonlaborIncome)
}

// WelfareResult is a utility level with an optional money-metric conversion
type WelfareResult struct {
	Utility     float64  `json:"utility"`
	MoneyMetric *float64 `json:"money_metric,omitempty"`
}
