package harness

import (
	"fmt"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// Dump renders a result as the golden text for scenario name:
//
//	scenario: <name>
//	setup error=<KIND>                      (only when setup failed)
//	window <seq> [<stage>] rows=<n> state=<state> delta=<n>|error=<KIND>
//	  <delta fact>
//	final state=<state> snapshot=<n> store=<n> deltas=<n>
//	  <stored fact>
//
// Facts are N-Triples lines in graph order.
func Dump(name string, r *Result) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "scenario: %s\n", name)
	if r.Final.SetupError != "" {
		fmt.Fprintf(&b, "setup error=%s\n", r.Final.SetupError)
	}
	for _, e := range r.Trace {
		fmt.Fprintf(&b, "window %d", e.Seq)
		if e.Stage != "" {
			fmt.Fprintf(&b, " %s", e.Stage)
		}
		fmt.Fprintf(&b, " rows=%d state=%s", e.Rows, e.State)
		if e.Error != "" {
			fmt.Fprintf(&b, " error=%s\n", e.Error)
		} else {
			fmt.Fprintf(&b, " delta=%d\n", len(e.Delta))
		}
		for _, line := range e.Delta {
			fmt.Fprintf(&b, "  %s\n", line)
		}
	}
	fmt.Fprintf(&b, "final state=%s snapshot=%d store=%d deltas=%d\n",
		r.Final.State, r.Final.Snapshot, r.Final.StoreSize, r.Final.Deltas)
	for _, line := range r.Final.Facts {
		fmt.Fprintf(&b, "  %s\n", line)
	}
	return []byte(b.String())
}

// RunWithGolden executes a scenario and compares its dump against
// testdata/golden/<scenario.Name>.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	AssertGolden(t, scenario.Name, result)
	return result, nil
}

// AssertGolden compares an existing result's dump against the golden file
// for scenarioName without re-running it.
func AssertGolden(t *testing.T, scenarioName string, result *Result) {
	t.Helper()

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, Dump(scenarioName, result))
}
