package output

import (
	"encoding/csv"
	"fmt"
	"io"

	"tax-uncertainty/core/determinism"
	"tax-uncertainty/core/engine"
	"tax-uncertainty/internal/errors"
)

// CSVFormatter writes one CSV block per record table. Each block starts
// with a "# table: <name>" line and blocks are separated by a blank line.
// Summary fields are written first as "# key: value" comment lines.
type CSVFormatter struct {
	Precision int
}

// Format returns the format type
func (f *CSVFormatter) Format() Format { return FormatCSV }

// Render writes report to w
func (f *CSVFormatter) Render(w io.Writer, report *engine.Report) error {
	s := report.Summary
	header := [][2]string{
		{"run_id", s.RunID},
		{"run_key", string(s.RunKey)},
		{"config_hash", s.ConfigHash},
		{"seed", fmt.Sprint(s.Seed)},
		{"quadrature", s.Quadrature},
		{"complete", fmt.Sprint(s.Complete)},
	}
	for _, kv := range header {
		if _, err := fmt.Fprintf(w, "# %s: %s\n", kv[0], kv[1]); err != nil {
			return errors.Internal("failed to write csv header", err)
		}
	}

	for _, t := range Tables(report) {
		if _, err := fmt.Fprintf(w, "\n# table: %s\n", t.Name); err != nil {
			return errors.Internal("failed to write csv table", err)
		}

		cw := csv.NewWriter(w)
		if err := cw.Write(t.Columns); err != nil {
			return errors.Internal("failed to write csv columns", err)
		}
		record := make([]string, len(t.Columns))
		for _, row := range t.Rows {
			for j, v := range row {
				record[j] = f.cell(t.Columns[j], v)
			}
			if err := cw.Write(record); err != nil {
				return errors.Internal("failed to write csv row", err)
			}
		}
		cw.Flush()
		if err := cw.Error(); err != nil {
			return errors.Internal("failed to flush csv", err)
		}
	}
	return nil
}

func (f *CSVFormatter) cell(column string, v float64) string {
	if integerColumns[column] {
		return determinism.Format(v, 0)
	}
	return determinism.Format(v, places(f.Precision))
}
