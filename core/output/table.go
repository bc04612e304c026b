package output

import (
	"io"
	"strings"

	"tax-uncertainty/core/determinism"
	"tax-uncertainty/core/engine"
	"tax-uncertainty/core/ui"
)

// TableFormatter renders every record table as a bordered terminal table
type TableFormatter struct {
	Precision int

	// Color enables styled headers
	Color bool
}

var tableTitles = map[string]string{
	"bias":              "Loss From Rate Misperception",
	"uncertainty":       "Welfare Versus Rate Uncertainty",
	"two_worker":        "Two-Worker Social Welfare",
	"optimal_tax":       "Optimal Tax Versus Uncertainty",
	"optimal_tax_cells": "Search Cells",
}

// Format returns the format type
func (f *TableFormatter) Format() Format { return FormatTable }

// Render writes report to w
func (f *TableFormatter) Render(w io.Writer, report *engine.Report) error {
	uw := ui.NewWriter(w, !f.Color)

	for _, t := range Tables(report) {
		title, ok := tableTitles[t.Name]
		if !ok {
			title = strings.ReplaceAll(t.Name, "_", " ")
		}
		uw.Header(title)

		tbl := uw.NewTable(t.Columns...)
		for _, row := range t.Rows {
			cells := make([]string, len(row))
			for j, v := range row {
				p := places(f.Precision)
				if integerColumns[t.Columns[j]] {
					p = 0
				}
				cells[j] = determinism.Format(v, p)
			}
			tbl.AddRow(cells...)
		}
		tbl.Render()
	}

	if ot := report.OptimalTax; ot != nil {
		pop := ot.Population
		uw.Println("")
		uw.Info("population: %d agents, median wage %s, mean %s",
			pop.Count, determinism.Format(pop.Median, 2), determinism.Format(pop.Mean, 2))
		if len(ot.CellErrors) > 0 {
			uw.Warning("%d cells failed", len(ot.CellErrors))
		}
		if !ot.Complete {
			uw.Warning("search interrupted; rows for remaining sd values are absent")
		}
	}
	return nil
}
