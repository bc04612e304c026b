package output

import (
	"encoding/json"
	"io"

	"tax-uncertainty/core/determinism"
	"tax-uncertainty/core/engine"
	"tax-uncertainty/core/population"
	"tax-uncertainty/core/search"
	"tax-uncertainty/internal/errors"
)

// JSONFormatter writes the summary and every record table as one JSON
// document. Values are rounded half away from zero to Precision decimals;
// non-finite values become strings.
type JSONFormatter struct {
	Precision int
	Indent    bool
}

type jsonDocument struct {
	Summary    engine.Summary         `json:"summary"`
	Tables     []jsonTable            `json:"tables"`
	Population *population.Summary    `json:"population,omitempty"`
	Search     *search.ExecutionStats `json:"search,omitempty"`
	CellErrors []search.CellError     `json:"cell_errors,omitempty"`
}

type jsonTable struct {
	Name    string                 `json:"name"`
	Columns []string               `json:"columns"`
	Rows    [][]determinism.Amount `json:"rows"`
}

// Format returns the format type
func (f *JSONFormatter) Format() Format { return FormatJSON }

// Render writes report to w
func (f *JSONFormatter) Render(w io.Writer, report *engine.Report) error {
	doc := jsonDocument{Summary: report.Summary, Tables: []jsonTable{}}

	for _, t := range Tables(report) {
		jt := jsonTable{Name: t.Name, Columns: t.Columns, Rows: make([][]determinism.Amount, len(t.Rows))}
		for i, row := range t.Rows {
			jt.Rows[i] = make([]determinism.Amount, len(row))
			for j, v := range row {
				p := places(f.Precision)
				if integerColumns[t.Columns[j]] {
					p = 0
				}
				jt.Rows[i][j] = determinism.NewAmount(v, p)
			}
		}
		doc.Tables = append(doc.Tables, jt)
	}

	if ot := report.OptimalTax; ot != nil {
		doc.Population = &ot.Population
		doc.Search = &ot.Stats
		doc.CellErrors = ot.CellErrors
	}

	enc := json.NewEncoder(w)
	if f.Indent {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(doc); err != nil {
		return errors.Internal("failed to encode report", err)
	}
	return nil
}
