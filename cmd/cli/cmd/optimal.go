// Package cmd - optimal command
package cmd

import (
	"github.com/spf13/cobra"

	"tax-uncertainty/core/engine"
)

var (
	optTaxLow         float64
	optTaxHigh        float64
	optTaxPoints      int
	optSDMax          float64
	optSDPoints       int
	optWorkers        int
	optSeed           uint64
	optSize           int
	optStopOnError    bool
	optNoRedistribute bool
)

// optimalCmd runs the optimal tax search
var optimalCmd = &cobra.Command{
	Use:   "optimal",
	Short: "Search the welfare-maximizing tax rate at each uncertainty level",
	Long: `Draw a log-normal wage population and find, for every signal sd, the tax
rate that maximizes aggregate welfare under certainty, the naive rule and
expected-utility maximization. Interrupting the search keeps every sd row
already completed.

Examples:
  taxwelfare optimal
  taxwelfare optimal --tax-points 60 --sd-points 9 --workers 8
  taxwelfare optimal --seed 7 --size 5000 --format csv`,
	Args: cobra.NoArgs,
	RunE: runOptimal,
}

func init() {
	addOutputFlags(optimalCmd)
	f := optimalCmd.Flags()
	f.Float64Var(&optTaxLow, "tax-low", 0, "lowest tax rate searched")
	f.Float64Var(&optTaxHigh, "tax-high", 0, "highest tax rate searched")
	f.IntVar(&optTaxPoints, "tax-points", 0, "tax grid points")
	f.Float64Var(&optSDMax, "sd-max", 0, "largest signal sd")
	f.IntVar(&optSDPoints, "sd-points", 0, "sd grid points")
	f.IntVar(&optWorkers, "workers", 0, "parallel workers (0 = one per CPU)")
	f.Uint64Var(&optSeed, "seed", 0, "population seed")
	f.IntVar(&optSize, "size", 0, "population size")
	f.BoolVar(&optStopOnError, "stop-on-error", false, "abort at the first failing cell")
	f.BoolVar(&optNoRedistribute, "no-redistribute", false, "do not return revenue as a demogrant")
	f.BoolVar(&includeCells, "include-cells", false, "include every search cell in the output")
}

func runOptimal(cmd *cobra.Command, args []string) error {
	cfg := currentConfig()
	f := cmd.Flags()
	if f.Changed("tax-low") {
		cfg.Search.TaxLow = optTaxLow
	}
	if f.Changed("tax-high") {
		cfg.Search.TaxHigh = optTaxHigh
	}
	if f.Changed("tax-points") {
		cfg.Search.TaxPoints = optTaxPoints
	}
	if f.Changed("sd-max") {
		cfg.Search.SDMax = optSDMax
	}
	if f.Changed("sd-points") {
		cfg.Search.SDPoints = optSDPoints
	}
	if f.Changed("workers") {
		cfg.Search.Workers = optWorkers
	}
	if f.Changed("seed") {
		cfg.Population.Seed = optSeed
	}
	if f.Changed("size") {
		cfg.Population.Size = optSize
	}
	if f.Changed("stop-on-error") {
		cfg.Search.StopOnError = optStopOnError
	}
	if f.Changed("no-redistribute") {
		cfg.Search.Redistribute = !optNoRedistribute
	}
	if f.Changed("include-cells") {
		cfg.Output.IncludeCells = includeCells
	}
	return execute(cmd, cfg, []engine.Phase{engine.PhaseOptimalTax})
}
