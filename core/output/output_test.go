package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tax-uncertainty/core/choice"
	"tax-uncertainty/core/engine"
	"tax-uncertainty/core/search"
	"tax-uncertainty/internal/errors"
)

func testReport() *engine.Report {
	return &engine.Report{
		Summary: engine.Summary{
			RunID:      "r1",
			RunKey:     "run-abc",
			ConfigHash: "abc",
			Seed:       42,
			Quadrature: "point (1 node)",
			Nodes:      1,
			Complete:   true,
		},
		Bias: &engine.BiasReport{
			TrueTax: 0.3,
			Rows: []choice.BiasLoss{
				{Bias: -0.1, PerceivedRate: 0.2, Leisure: 11, Utility: 9.5, Absolute: 0.25, Percent: 2.5},
			},
		},
		Uncertainty: &engine.UncertaintyReport{
			Rows: []engine.UncertaintyRecord{
				{SD: 0, Nodes: 1, UtilityCertain: 10.5, UtilityNaive: 10.5, UtilityEUMax: 10.5},
				{SD: 0.1, Nodes: 3, UtilityCertain: 10.25, UtilityNaive: 10.125, UtilityEUMax: 10.1875, WelfareGap: 0.0625},
			},
		},
		OptimalTax: &engine.OptimalTaxReport{
			Rows: []search.Row{{
				SD:      0.1,
				Certain: search.Optimum{Tax: 0.4, Welfare: 100},
				Naive:   search.Optimum{Tax: 0.3, Welfare: 98},
				EUMax:   search.Optimum{Tax: 0.35, Welfare: 99},

				DeadweightLoss:        1,
				DeadweightLossPercent: 1,
				FailedCells:           2,
			}},
			Complete: true,
		},
	}
}

func TestGet(t *testing.T) {
	f, err := Get("JSON", 4)
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f.Format())

	_, err = Get("xml", 4)
	assert.True(t, errors.IsType(err, errors.TypeNotSupported))
}

func TestRegistry(t *testing.T) {
	r := DefaultRegistry(6)
	assert.Error(t, r.Register(&CSVFormatter{}))

	var names []Format
	for _, f := range r.GetAll() {
		names = append(names, f.Format())
	}
	assert.Equal(t, []Format{FormatCSV, FormatJSON, FormatTable}, names)
}

func TestTablesFollowPhaseOrder(t *testing.T) {
	tables := Tables(testReport())
	require.Len(t, tables, 3)
	assert.Equal(t, "bias", tables[0].Name)
	assert.Equal(t, "uncertainty", tables[1].Name)
	assert.Equal(t, "optimal_tax", tables[2].Name)

	for _, tbl := range tables {
		for _, row := range tbl.Rows {
			assert.Len(t, row, len(tbl.Columns), tbl.Name)
		}
	}

	report := testReport()
	report.OptimalTax.Rows[0].Cells = []search.Cell{{Tax: 0.3, SD: 0.1, Naive: 98, EUMax: 98.5}}
	tables = Tables(report)
	require.Len(t, tables, 4)
	assert.Equal(t, "optimal_tax_cells", tables[3].Name)
	assert.Equal(t, 0.5, tables[3].Rows[0][6])
}

func TestCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&CSVFormatter{Precision: 2}).Render(&buf, testReport()))

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "# run_id: r1\n# run_key: run-abc\n# config_hash: abc\n# seed: 42\n"))
	assert.Contains(t, out, "\n# table: uncertainty\nsd,nodes,utility_certain,utility_uncertain_naive,utility_uncertain_eumax,welfare_gap,")
	assert.Contains(t, out, "\n0.10,3,10.25,10.13,10.19,0.06,")
	assert.Contains(t, out, "\n0.10,0.40,100.00,0.30,98.00,0.35,99.00,1.00,1.00,2\n")
}

func TestJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&JSONFormatter{Precision: 3}).Render(&buf, testReport()))

	var doc struct {
		Summary struct {
			RunID string `json:"run_id"`
			Seed  uint64 `json:"seed"`
		} `json:"summary"`
		Tables []struct {
			Name    string      `json:"name"`
			Columns []string    `json:"columns"`
			Rows    [][]float64 `json:"rows"`
		} `json:"tables"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))

	assert.Equal(t, "r1", doc.Summary.RunID)
	assert.Equal(t, uint64(42), doc.Summary.Seed)
	require.Len(t, doc.Tables, 3)

	unc := doc.Tables[1]
	assert.Equal(t, "uncertainty", unc.Name)
	assert.Equal(t, []float64{0.1, 3, 10.25, 10.125, 10.188, 0.063}, unc.Rows[1][:6])

	assert.Contains(t, buf.String(), `"nodes"`)
	assert.NotContains(t, buf.String(), "3.000", "integer columns carry no decimals")
}

func TestTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&TableFormatter{Precision: 2}).Render(&buf, testReport()))

	out := buf.String()
	assert.Contains(t, out, "Welfare Versus Rate Uncertainty")
	assert.Contains(t, out, "utility_uncertain_eumax")
	assert.Contains(t, out, "10.19")
	assert.Contains(t, out, "Optimal Tax Versus Uncertainty")
	assert.NotContains(t, out, "\x1b[")
}
