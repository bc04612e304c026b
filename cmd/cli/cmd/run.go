// Package cmd - run command
package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"tax-uncertainty/core/engine"
	"tax-uncertainty/core/output"
	"tax-uncertainty/core/ui"
	"tax-uncertainty/internal/config"
	"tax-uncertainty/internal/errors"
)

var (
	outputFormat string
	outputPath   string
	precision    int
	includeCells bool
	phaseNames   []string
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full analysis",
	Long: `Run every analysis block: the bias loss curve, the uncertainty loss
curve, the two-worker planner and the optimal tax search.

Examples:
  taxwelfare run
  taxwelfare run --phase uncertainty --phase two_worker
  taxwelfare run --format json -o report.json`,
	Args: cobra.NoArgs,
	RunE: runAnalysis,
}

func init() {
	addOutputFlags(runCmd)
	runCmd.Flags().StringSliceVar(&phaseNames, "phase", nil, "phases to run (bias, uncertainty, two_worker, optimal_tax)")
	runCmd.Flags().BoolVar(&includeCells, "include-cells", false, "include every search cell in the output")
}

// addOutputFlags registers the flags shared by analysis commands
func addOutputFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&outputFormat, "format", "f", "", "output format (table, json, csv)")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "write the report to a file instead of stdout")
	cmd.Flags().IntVar(&precision, "precision", 0, "decimals in rendered values")
}

func runAnalysis(cmd *cobra.Command, args []string) error {
	cfg := currentConfig()
	if cmd.Flags().Changed("include-cells") {
		cfg.Output.IncludeCells = includeCells
	}

	phases := make([]engine.Phase, 0, len(phaseNames))
	for _, name := range phaseNames {
		p, err := engine.ParsePhase(name)
		if err != nil {
			return err
		}
		phases = append(phases, p)
	}
	if len(phases) == 0 {
		phases = engine.AllPhases()
	}
	return execute(cmd, cfg, phases)
}

// currentConfig returns a copy of the loaded configuration that a command
// may override from its flags.
func currentConfig() *config.Config {
	cfg := *config.Get()
	cfg.TwoWorker.Weights = append([]float64(nil), cfg.TwoWorker.Weights...)
	return &cfg
}

// execute runs phases with progress on stderr and writes the report. A
// partial report is still written when the run is interrupted.
func execute(cmd *cobra.Command, cfg *config.Config, phases []engine.Phase) error {
	if cmd.Flags().Changed("format") {
		cfg.Output.Format = outputFormat
	}
	if cmd.Flags().Changed("precision") {
		cfg.Output.Precision = precision
	}

	e, err := engine.New(cfg)
	if err != nil {
		return err
	}

	w := ui.NewWriter(cmd.ErrOrStderr(), noColor)
	if verbose {
		w.SetVerbosity(2)
	}
	runner := ui.NewAnalysisRunner(w, e)

	report, runErr := runner.Run(cmd.Context(), phases...)
	if report == nil {
		return runErr
	}
	if err := writeReport(cmd, cfg, report); err != nil {
		return err
	}
	runner.DisplaySummary(report)
	return runErr
}

func writeReport(cmd *cobra.Command, cfg *config.Config, report *engine.Report) error {
	formatter, err := output.Get(cfg.Output.Format, cfg.Output.Precision)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if outputPath != "" {
		f, err := os.Create(outputPath)
		if err != nil {
			return errors.Wrap(errors.TypeInput, "failed to create output file", err)
		}
		defer f.Close()
		out = f
	} else if tf, ok := formatter.(*output.TableFormatter); ok {
		tf.Color = !noColor
	}

	return formatter.Render(out, report)
}
