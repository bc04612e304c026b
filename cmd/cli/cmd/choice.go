// Package cmd - choice command
package cmd

import (
	"github.com/spf13/cobra"

	"tax-uncertainty/core/engine"
)

var (
	choiceWage     float64
	choiceTax      float64
	choiceNonlabor float64
	choiceSDMax    float64
	choicePoints   int
	choiceBiasMax  float64
)

// choiceCmd evaluates one worker's labor choice
var choiceCmd = &cobra.Command{
	Use:   "choice",
	Short: "Compare naive and expected-utility labor choices for one worker",
	Long: `Evaluate one worker facing a noisy tax signal. Reports the loss from a
misperceived rate and, for each signal sd, the utility of the naive choice
(optimal at the expected rate) and of the expected-utility-maximizing choice.

Examples:
  taxwelfare choice
  taxwelfare choice --wage 25 --tax 0.35 --nonlabor 100 --sd 0.15`,
	Args: cobra.NoArgs,
	RunE: runChoice,
}

func init() {
	addOutputFlags(choiceCmd)
	f := choiceCmd.Flags()
	f.Float64Var(&choiceWage, "wage", 0, "hourly wage")
	f.Float64Var(&choiceTax, "tax", 0, "expected marginal tax rate")
	f.Float64Var(&choiceNonlabor, "nonlabor", 0, "non-labor income")
	f.Float64Var(&choiceSDMax, "sd", 0, "largest signal sd")
	f.IntVar(&choicePoints, "points", 0, "sd grid points")
	f.Float64Var(&choiceBiasMax, "bias", 0, "largest rate misperception")
}

func runChoice(cmd *cobra.Command, args []string) error {
	cfg := currentConfig()
	f := cmd.Flags()
	if f.Changed("wage") {
		cfg.Agent.Wage = choiceWage
	}
	if f.Changed("tax") {
		cfg.Agent.Tax = choiceTax
	}
	if f.Changed("nonlabor") {
		cfg.Agent.NonlaborIncome = choiceNonlabor
	}
	if f.Changed("sd") {
		cfg.Uncertainty.SDMax = choiceSDMax
	}
	if f.Changed("points") {
		cfg.Uncertainty.Points = choicePoints
	}
	if f.Changed("bias") {
		cfg.Bias.BiasMax = choiceBiasMax
	}
	return execute(cmd, cfg, []engine.Phase{engine.PhaseBias, engine.PhaseUncertainty})
}
