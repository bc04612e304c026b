package utility

import (
	"math"
	"testing"

	"tax-uncertainty/core/types"
	"tax-uncertainty/internal/errors"
)

const tolerance = 1e-9

var half = types.Preferences{Alpha: 0.5, Beta: 0.5}

func assertClose(t *testing.T, expected, actual float64, description string) {
	t.Helper()
	if math.Abs(expected-actual) > tolerance {
		t.Errorf("%s: expected %.10f, got %.10f", description, expected, actual)
	}
}

func TestUtilityCalculation(t *testing.T) {
	u, err := Utility(16, 100, half)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertClose(t, 40, u, "sqrt(16)*sqrt(100)")

	p := types.Preferences{Alpha: 0.3, Beta: 0.7}
	u, err = Utility(10, 50, p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertClose(t, math.Pow(10, 0.3)*math.Pow(50, 0.7), u, "asymmetric exponents")
}

func TestUtilityZeroConvention(t *testing.T) {
	if u, _ := Utility(0, 100, half); u != 0 {
		t.Errorf("expected 0 utility at zero leisure, got %g", u)
	}
	if u, _ := Utility(10, 0, half); u != 0 {
		t.Errorf("expected 0 utility at zero consumption, got %g", u)
	}
}

func TestUtilityDomainErrors(t *testing.T) {
	tests := []struct {
		name        string
		leisure     float64
		consumption float64
		prefs       types.Preferences
		parameter   string
	}{
		{"negative leisure", -1, 10, half, "leisure"},
		{"negative consumption", 1, -10, half, "consumption"},
		{"zero alpha", 1, 1, types.Preferences{Alpha: 0, Beta: 0.5}, "alpha"},
		{"negative beta", 1, 1, types.Preferences{Alpha: 0.5, Beta: -1}, "beta"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Utility(tt.leisure, tt.consumption, tt.prefs)
			if !errors.IsDomain(err) {
				t.Fatalf("expected DomainError, got %v", err)
			}
			if p := errors.Parameter(err); p != tt.parameter {
				t.Errorf("expected parameter %q, got %q", tt.parameter, p)
			}
		})
	}
}

func TestMarginalUtilities(t *testing.T) {
	l, c := 16.0, 100.0
	assertClose(t, 0.5*math.Pow(l, -0.5)*math.Pow(c, 0.5), MarginalUtilityLeisure(l, c, half), "MU_L")
	assertClose(t, 0.5*math.Pow(l, 0.5)*math.Pow(c, -0.5), MarginalUtilityConsumption(l, c, half), "MU_C")
	assertClose(t, c/l, MarginalRateOfSubstitution(l, c, half), "MRS")

	if !math.IsInf(MarginalUtilityLeisure(0, c, half), 1) {
		t.Error("expected +Inf marginal utility of leisure at zero leisure")
	}
	if !math.IsInf(MarginalUtilityConsumption(l, 0, half), 1) {
		t.Error("expected +Inf marginal utility of consumption at zero consumption")
	}
}

// alpha=beta=0.5, T=100, w=20, v=0, tau=0.3 -> L* = 50
func TestOptimalLeisureClosedForm(t *testing.T) {
	agent := types.Agent{Wage: 20}
	c, err := OptimalLeisureCertain(agent, 0.3, half, types.Endowment{TotalTime: 100})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertClose(t, 50, c.Leisure, "leisure")
	assertClose(t, 50, c.Labor, "labor")
	assertClose(t, 20*0.7*50, c.Consumption, "consumption")
}

func TestOptimalLeisureWithTransfers(t *testing.T) {
	agent := types.Agent{Wage: 20, NonlaborIncome: 100}
	e := types.Endowment{TotalTime: 24}
	got := OptimalLeisure(agent, 0.25, half, e)
	expected := 0.5 * (15*24 + 100) / 15
	assertClose(t, expected, got, "leisure with transfers")
}

func TestOptimalLeisureClipsAtEndowment(t *testing.T) {
	agent := types.Agent{Wage: 1, NonlaborIncome: 1000}
	e := types.Endowment{TotalTime: 24}
	if got := OptimalLeisure(agent, 0.2, half, e); got != 24 {
		t.Errorf("expected leisure clipped to 24, got %g", got)
	}
}

// Non-positive net wage falls back to full leisure instead of the closed form.
func TestOptimalLeisureCornerSolution(t *testing.T) {
	agent := types.Agent{Wage: 10}
	e := types.Endowment{TotalTime: 24}

	for _, tau := range []float64{1.0, 1.2} {
		c, err := OptimalLeisureCertain(agent, tau, half, e)
		if err != nil {
			t.Fatalf("tau=%g: unexpected error: %v", tau, err)
		}
		if c.Leisure != 24 {
			t.Errorf("tau=%g: expected full leisure 24, got %g", tau, c.Leisure)
		}
		if c.Labor != 0 {
			t.Errorf("tau=%g: expected zero labor, got %g", tau, c.Labor)
		}
	}
}

func TestOptimalLeisureRejectsInvalidInputs(t *testing.T) {
	e := types.Endowment{TotalTime: 24}
	if _, err := OptimalLeisureCertain(types.Agent{Wage: 0}, 0.3, half, e); errors.Parameter(err) != "wage" {
		t.Errorf("expected wage DomainError, got %v", err)
	}
	if _, err := OptimalLeisureCertain(types.Agent{Wage: 10}, math.NaN(), half, e); errors.Parameter(err) != "tax_rate" {
		t.Errorf("expected tax_rate DomainError, got %v", err)
	}
	if _, err := OptimalLeisureCertain(types.Agent{Wage: 10}, 0.3, half, types.Endowment{}); errors.Parameter(err) != "total_time" {
		t.Errorf("expected total_time DomainError, got %v", err)
	}
}

func TestLaborSupplyAndIndirectUtility(t *testing.T) {
	agent := types.Agent{Wage: 20}
	e := types.Endowment{TotalTime: 24}

	assertClose(t, 12, LaborSupply(agent, 0.3, half, e), "labor supply")
	expected := math.Sqrt(12) * math.Sqrt(20*0.7*12)
	assertClose(t, expected, IndirectUtility(agent, 0.3, half, e), "indirect utility")
}

// For alpha+beta=1 Cobb-Douglas, U / MU_C = C / beta.
func TestMoneyMetric(t *testing.T) {
	agent := types.Agent{Wage: 20}
	c, w, err := Evaluate(agent, 0.3, half, types.Endowment{TotalTime: 100})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if w.MoneyMetric == nil {
		t.Fatal("expected money metric")
	}
	assertClose(t, c.Consumption/0.5, *w.MoneyMetric, "money metric")

	if m := MoneyMetric(0, types.Choice{Leisure: 24}, half); m != nil {
		t.Errorf("expected nil money metric at zero consumption, got %g", *m)
	}
}
