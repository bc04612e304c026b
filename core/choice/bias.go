package choice

import (
	"tax-uncertainty/core/types"
	"tax-uncertainty/core/utility"
)

// BiasLoss is the welfare cost of optimizing against a misperceived rate
type BiasLoss struct {
	Bias          float64 `json:"bias"`
	PerceivedRate float64 `json:"perceived_rate"`
	Leisure       float64 `json:"leisure"`
	Utility       float64 `json:"utility"`
	Absolute      float64 `json:"loss_abs"`
	Percent       float64 `json:"loss_pct"`
}

// LossFromBias returns the utility lost when the agent chooses leisure as
// if the rate were trueRate+bias but faces trueRate. A perceived rate at or
// above 1 leads the agent to the full-leisure corner.
func LossFromBias(a types.Agent, trueRate, bias float64, p types.Preferences, e types.Endowment) (BiasLoss, error) {
	if err := types.ValidateTaxRate("true_tax", trueRate); err != nil {
		return BiasLoss{}, err
	}
	opt, err := utility.OptimalLeisureCertain(a, trueRate, p, e)
	if err != nil {
		return BiasLoss{}, err
	}

	best := utility.Eval(opt.Leisure, opt.Consumption, p)
	perceived := trueRate + bias
	l := utility.OptimalLeisure(a, perceived, p, e)
	c := types.NewChoice(a, trueRate, l, e)
	u := utility.Eval(c.Leisure, c.Consumption, p)

	return BiasLoss{
		Bias:          bias,
		PerceivedRate: perceived,
		Leisure:       l,
		Utility:       u,
		Absolute:      best - u,
		Percent:       lossPercent(best, u),
	}, nil
}

// BiasCurve evaluates LossFromBias at every point of a bias grid
func BiasCurve(a types.Agent, trueRate float64, biases types.SweepGrid, p types.Preferences, e types.Endowment) ([]BiasLoss, error) {
	if err := biases.Validate("bias_grid"); err != nil {
		return nil, err
	}
	out := make([]BiasLoss, 0, biases.Count())
	for _, b := range biases.Values() {
		loss, err := LossFromBias(a, trueRate, b, p, e)
		if err != nil {
			return nil, err
		}
		out = append(out, loss)
	}
	return out, nil
}
