package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/provstream/internal/harness"
	"github.com/roach88/provstream/internal/testutil"
)

const harnessScenarios = "../harness/testdata/scenarios"

const hotScenario = `name: hot
description: "A hot reading is classified at coldstart"
prefixes:
  fs: "http://foodsafety/ns#"
  d: "http://foodsafety/data/"
schema_file: foodsafety.ttl
rule_files:
  coldstart: [hot.ru]
windows:
  - rows:
      - ["d:R1", "fs:temperature", '"70"^^xsd:double']
    expect: { state: warm, delta: 1 }
assertions:
  - type: store_size
    count: %d
`

// writeScenarioDir writes a scenario directory holding the food-safety
// schema, the hot rule and one scenario file per entry of scenarios.
func writeScenarioDir(t *testing.T, scenarios map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"foodsafety.ttl": testutil.Schema,
		"hot.ru":         testutil.HotRule,
	}
	for name, content := range scenarios {
		files[name] = content
	}
	require.NoError(t, testutil.WriteSpecDir(dir, files))
	return dir
}

func executeTest(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewTestCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestTestCommandMissingArgs(t *testing.T) {
	_, err := executeTest(t, "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestTestCommandNonExistentScenariosDir(t *testing.T) {
	_, err := executeTest(t, "text", filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "scenarios directory not found")
}

func TestTestCommandEmptyScenariosDir(t *testing.T) {
	out, err := executeTest(t, "text", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found.")
}

func TestTestCommandHarnessScenarios(t *testing.T) {
	out, err := executeTest(t, "text", harnessScenarios)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ hot_then_frozen")
	assert.Contains(t, out, "✓ latest_window")
	assert.Contains(t, out, "✓ coldstart_failure")
	assert.Contains(t, out, "Test Summary: 3 passed, 0 failed, 3 total")
	assert.Contains(t, out, "✓ All scenarios passed")
}

func TestTestCommandFilter(t *testing.T) {
	out, err := executeTest(t, "json", harnessScenarios, "--filter", "hot*")
	require.NoError(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 1, resp.Data.Total)
	require.Len(t, resp.Data.Scenarios, 1)
	assert.Equal(t, "hot_then_frozen", resp.Data.Scenarios[0].Name)
}

func TestTestCommandInvalidFilter(t *testing.T) {
	_, err := executeTest(t, "text", harnessScenarios, "--filter", "[")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTestCommandFailingAssertion(t *testing.T) {
	dir := writeScenarioDir(t, map[string]string{
		"hot.yaml": fmt.Sprintf(hotScenario, 5),
	})

	out, err := executeTest(t, "text", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ hot")
	assert.Contains(t, out, "Assertion failed: store_size")
	assert.Contains(t, out, "Test Summary: 0 passed, 1 failed, 1 total")
}

func TestTestCommandFailingJSON(t *testing.T) {
	dir := writeScenarioDir(t, map[string]string{
		"hot.yaml": fmt.Sprintf(hotScenario, 5),
	})

	out, err := executeTest(t, "json", dir)
	require.Error(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
		Error  *CLIError  `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E_TEST_FAILED", resp.Error.Code)
	assert.Equal(t, 1, resp.Data.Failed)
	require.Len(t, resp.Data.Scenarios, 1)
	assert.NotEmpty(t, resp.Data.Scenarios[0].Errors)
}

func TestTestCommandInvalidScenario(t *testing.T) {
	dir := writeScenarioDir(t, map[string]string{
		"broken.yaml": "name: broken\n",
	})

	out, err := executeTest(t, "text", dir)
	require.Error(t, err)
	assert.Contains(t, out, "✗ broken")
	assert.Contains(t, out, "failed to load scenario")
}

func TestTestCommandUpdateThenCompare(t *testing.T) {
	dir := writeScenarioDir(t, map[string]string{
		"hot.yaml": fmt.Sprintf(hotScenario, 1),
	})
	goldenPath := filepath.Join(dir, "golden", "hot.golden")

	out, err := executeTest(t, "text", dir, "--update")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ hot (golden updated)")

	golden, err := os.ReadFile(goldenPath)
	require.NoError(t, err)
	scenario, err := harness.LoadScenario(filepath.Join(dir, "hot.yaml"))
	require.NoError(t, err)
	result, err := harness.Run(scenario)
	require.NoError(t, err)
	assert.Equal(t, string(harness.Dump("hot", result)), string(golden))

	// Golden matches: passes.
	_, err = executeTest(t, "text", dir)
	require.NoError(t, err)

	// Golden drifts: fails.
	require.NoError(t, os.WriteFile(goldenPath, []byte("scenario: hot\n"), 0o644))
	out, err = executeTest(t, "text", dir)
	require.Error(t, err)
	assert.Contains(t, out, "dump does not match golden file")
}

func TestGoldenFilePath(t *testing.T) {
	assert.Equal(t,
		filepath.Join("scenarios", "golden", "hot.golden"),
		goldenFilePath(filepath.Join("scenarios", "hot.yaml")))
	assert.Equal(t,
		filepath.Join("a", "b", "golden", "x.golden"),
		goldenFilePath(filepath.Join("a", "b", "x.yml")))
}

func TestFindScenarioFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, testutil.WriteSpecDir(dir, map[string]string{
		"a.yaml":             "",
		"nested/b.yml":       "",
		"golden/a.golden":    "",
		"foodsafety.ttl":     "",
		"nested/skip.json":   "",
		"nested/hot_two.yml": "",
	}))

	files, err := findScenarioFiles(dir, "")
	require.NoError(t, err)
	assert.Len(t, files, 3)

	files, err = findScenarioFiles(dir, "hot*")
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, filepath.Join(dir, "nested", "hot_two.yml"), files[0])
}
