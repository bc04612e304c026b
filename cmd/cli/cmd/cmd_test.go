package cmd

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tax-uncertainty/internal/config"
)

func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)

	err := rootCmd.Execute()
	return out.String(), errOut.String(), err
}

func TestVersion(t *testing.T) {
	out, _, err := runCLI(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "taxwelfare version "+version+"\n", out)
}

func TestConfigShowJSON(t *testing.T) {
	out, _, err := runCLI(t, "config", "show", "--as", "json")
	require.NoError(t, err)

	var cfg config.Config
	require.NoError(t, json.Unmarshal([]byte(out), &cfg))
	assert.Equal(t, config.Get().Population.Seed, cfg.Population.Seed)
}

func TestConfigInitAndValidate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "analysis.hcl")

	_, _, err := runCLI(t, "config", "init", path)
	require.NoError(t, err)

	_, _, err = runCLI(t, "config", "init", path)
	assert.Error(t, err, "existing files are not overwritten")

	out, _, err := runCLI(t, "config", "validate", path)
	require.NoError(t, err)
	assert.Contains(t, out, "is valid")
}

func TestPopulationJSON(t *testing.T) {
	out, _, err := runCLI(t, "population", "--size", "50", "--seed", "3", "--json")
	require.NoError(t, err)

	var s struct {
		Count int     `json:"count"`
		Min   float64 `json:"min"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &s))
	assert.Equal(t, 50, s.Count)
	assert.Greater(t, s.Min, 0.0)
}

func TestChoiceCSV(t *testing.T) {
	out, stderr, err := runCLI(t, "choice", "--format", "csv", "--points", "3", "--nonlabor", "100")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out, "# run_id: "))
	assert.Contains(t, out, "# table: bias\n")
	assert.Contains(t, out, "# table: uncertainty\n")
	assert.NotContains(t, out, "# table: optimal_tax")
	assert.Contains(t, stderr, "Run Summary")
}

func TestRunRejectsUnknownPhase(t *testing.T) {
	_, _, err := runCLI(t, "run", "--phase", "plots")
	assert.Error(t, err)
}
