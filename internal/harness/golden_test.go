package harness

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScenarios_Golden(t *testing.T) {
	paths, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		name := strings.TrimSuffix(filepath.Base(path), ".yaml")
		t.Run(name, func(t *testing.T) {
			s, err := LoadScenario(path)
			require.NoError(t, err)
			assert.Equal(t, name, s.Name, "scenario name must match its file")

			result, err := RunWithGolden(t, s)
			require.NoError(t, err)
			assert.True(t, result.Pass, "%v", result.Errors)
		})
	}
}

func TestDump(t *testing.T) {
	r := &Result{
		Trace: []TraceEvent{
			{Seq: 1, Rows: 2, Stage: "coldstart", State: "warm", Delta: []string{"<a> <b> <c> ."}},
			{Seq: 2, Rows: 0, Stage: "warm", State: "warm"},
			{Seq: 3, Rows: 1, State: "failed", Error: "INTERNAL"},
		},
		Final: FinalState{
			State:      "failed",
			Snapshot:   1,
			StoreSize:  1,
			Deltas:     1,
			Facts:      []string{"<a> <b> <c> ."},
			SetupError: "QUERY",
		},
	}

	want := `scenario: demo
setup error=QUERY
window 1 coldstart rows=2 state=warm delta=1
  <a> <b> <c> .
window 2 warm rows=0 state=warm delta=0
window 3 rows=1 state=failed error=INTERNAL
final state=failed snapshot=1 store=1 deltas=1
  <a> <b> <c> .
`
	assert.Equal(t, want, string(Dump("demo", r)))
}

func TestAssertGolden_ExistingResult(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/coldstart_failure.yaml")
	require.NoError(t, err)

	result, err := Run(s)
	require.NoError(t, err)
	AssertGolden(t, "coldstart_failure", result)
}
