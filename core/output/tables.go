package output

import (
	"tax-uncertainty/core/engine"
)

// Table is one record sequence of a report in column form. These are the
// rows plotting tools consume.
type Table struct {
	Name    string      `json:"name"`
	Columns []string    `json:"columns"`
	Rows    [][]float64 `json:"rows"`
}

var (
	biasColumns = []string{"bias", "perceived_rate", "leisure", "utility", "loss_abs", "loss_pct"}

	uncertaintyColumns = []string{
		"sd", "nodes", "utility_certain", "utility_uncertain_naive", "utility_uncertain_eumax",
		"welfare_gap", "leisure_naive", "leisure_eumax", "loss_pct_naive", "loss_pct_eumax",
	}

	twoWorkerColumns = []string{
		"tax", "sd", "transfer", "utility_certain", "utility_uncertain_naive", "utility_uncertain_eumax",
		"welfare_gap", "loss",
	}

	optimalColumns = []string{
		"sd", "tax_certain", "welfare_certain", "tax_naive", "welfare_naive", "tax_eumax", "welfare_eumax",
		"deadweight_loss", "deadweight_loss_pct", "failed_cells",
	}

	cellColumns = []string{
		"sd", "tax", "transfer", "utility_certain", "utility_uncertain_naive", "utility_uncertain_eumax", "welfare_gap",
	}
)

// Tables flattens every block present in report, in phase order
func Tables(report *engine.Report) []Table {
	var tables []Table

	if b := report.Bias; b != nil {
		t := Table{Name: "bias", Columns: biasColumns}
		for _, r := range b.Rows {
			t.Rows = append(t.Rows, []float64{r.Bias, r.PerceivedRate, r.Leisure, r.Utility, r.Absolute, r.Percent})
		}
		tables = append(tables, t)
	}

	if u := report.Uncertainty; u != nil {
		t := Table{Name: "uncertainty", Columns: uncertaintyColumns}
		for _, r := range u.Rows {
			t.Rows = append(t.Rows, []float64{
				r.SD, float64(r.Nodes), r.UtilityCertain, r.UtilityNaive, r.UtilityEUMax,
				r.WelfareGap, r.LeisureNaive, r.LeisureEUMax, r.LossPctNaive, r.LossPctEUMax,
			})
		}
		tables = append(tables, t)
	}

	if tw := report.TwoWorker; tw != nil {
		t := Table{Name: "two_worker", Columns: twoWorkerColumns}
		for _, p := range tw.Curve {
			t.Rows = append(t.Rows, []float64{
				p.Tax, p.SD, p.Transfer, p.Certain, p.Naive, p.EUMax, p.Gap, p.Loss(),
			})
		}
		tables = append(tables, t)
	}

	if ot := report.OptimalTax; ot != nil {
		t := Table{Name: "optimal_tax", Columns: optimalColumns}
		cells := Table{Name: "optimal_tax_cells", Columns: cellColumns}
		for _, r := range ot.Rows {
			t.Rows = append(t.Rows, []float64{
				r.SD, r.Certain.Tax, r.Certain.Welfare, r.Naive.Tax, r.Naive.Welfare,
				r.EUMax.Tax, r.EUMax.Welfare, r.DeadweightLoss, r.DeadweightLossPercent,
				float64(r.FailedCells),
			})
			for _, c := range r.Cells {
				cells.Rows = append(cells.Rows, []float64{
					c.SD, c.Tax, c.Transfer, c.Certain, c.Naive, c.EUMax, c.EUMax - c.Naive,
				})
			}
		}
		tables = append(tables, t)
		if len(cells.Rows) > 0 {
			tables = append(tables, cells)
		}
	}

	return tables
}

// integerColumns are rendered without decimals
var integerColumns = map[string]bool{
	"nodes":        true,
	"failed_cells": true,
}
