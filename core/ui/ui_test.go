package ui

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tax-uncertainty/core/engine"
	"tax-uncertainty/internal/config"
)

func TestWriterVerbosity(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, true)

	w.Success("done %d", 3)
	w.Debug("hidden")
	assert.Equal(t, "✓ done 3\n", buf.String())

	buf.Reset()
	w.SetVerbosity(0)
	w.Info("quiet")
	w.Warning("still shown")
	assert.Equal(t, "⚠ still shown\n", buf.String())

	buf.Reset()
	w.SetVerbosity(2)
	w.Debug("tax=%g", 0.3)
	assert.Equal(t, "  tax=0.3\n", buf.String())
}

func TestTableRendersCells(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, true)

	tbl := w.NewTable("sd", "welfare_gap")
	tbl.AddRow("0.000", "0.000000")
	tbl.AddRow("0.200", "0.001234")
	tbl.Render()

	out := buf.String()
	assert.Contains(t, out, "welfare_gap")
	assert.Contains(t, out, "0.001234")
	assert.Equal(t, 0, strings.Count(out, "\x1b["), "no escape codes without color")
}

func TestProgressBarNeverMovesBack(t *testing.T) {
	var buf bytes.Buffer
	bar := NewWriter(&buf, true).NewProgressBar(4, "cells")

	bar.Update(3)
	bar.Update(2)
	assert.Equal(t, 3, bar.current)

	bar.Update(4)
	bar.Done()
	assert.Contains(t, buf.String(), "100% (4/4)")
}

func TestAnalysisRunner(t *testing.T) {
	cfg := config.Default()
	cfg.Choice.LeisurePoints = 25
	cfg.Search.TaxPoints = 3
	cfg.Search.SDPoints = 2
	cfg.Search.Workers = 1
	cfg.Population.Size = 10

	e, err := engine.New(cfg)
	require.NoError(t, err)

	var buf bytes.Buffer
	runner := NewAnalysisRunner(NewWriter(&buf, true), e)

	report, err := runner.Run(context.Background(), engine.PhaseOptimalTax)
	require.NoError(t, err)
	require.NotNil(t, report.OptimalTax)

	runner.DisplaySummary(report)

	out := buf.String()
	assert.Contains(t, out, "(6/6)")
	assert.Contains(t, out, "Completed 1 phases")
	assert.Contains(t, out, "Run Summary")
	assert.Contains(t, out, report.Summary.ConfigHash[:12])
}
