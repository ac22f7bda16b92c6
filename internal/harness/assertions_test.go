package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/provstream/internal/rdf"
	"github.com/roach88/provstream/internal/testutil"
)

func sampleResult() *Result {
	return &Result{
		Pass: true,
		Trace: []TraceEvent{
			{Seq: 1, Rows: 1, Stage: "coldstart", State: "warm", Delta: []string{testutil.Classified("R1", "Hot").String()}},
			{Seq: 2, Rows: 1, Stage: "warm", State: "failed", Error: "INTERNAL"},
		},
		Final: FinalState{
			State:     "failed",
			Snapshot:  1,
			StoreSize: 1,
			Deltas:    1,
			Facts:     []string{testutil.Classified("R1", "Hot").String()},
		},
	}
}

func testPrefixes() rdf.Prefixes {
	p := rdf.NewPrefixes()
	p["fs"] = testutil.NS
	p["d"] = testutil.DataNS
	return p
}

func TestEvaluateAssertions_Pass(t *testing.T) {
	assertions := []Assertion{
		{Type: AssertFinalState, State: "failed"},
		{Type: AssertSnapshotSize, Count: intPtr(1)},
		{Type: AssertStoreSize, Count: intPtr(1)},
		{Type: AssertDeltaCount, Count: intPtr(1)},
		{Type: AssertStoreContains, Fact: []string{"d:R1", "rdf:type", "fs:Hot"}},
		{Type: AssertStoreExcludes, Fact: []string{"d:R1", "rdf:type", "fs:Frozen"}},
		{Type: AssertErrorKind, Kind: "INTERNAL"},
	}
	assert.Empty(t, EvaluateAssertions(sampleResult(), assertions, testPrefixes()))
}

func TestEvaluateAssertions_Failures(t *testing.T) {
	tests := []struct {
		name      string
		assertion Assertion
		want      []string
	}{
		{
			name:      "final state",
			assertion: Assertion{Type: AssertFinalState, State: "warm"},
			want:      []string{"Assertion failed: final_state", "Expected: state warm", "Actual: state failed"},
		},
		{
			name:      "store size",
			assertion: Assertion{Type: AssertStoreSize, Count: intPtr(4)},
			want:      []string{"Assertion failed: store_size", "Expected: 4", "Actual: 1"},
		},
		{
			name:      "contains",
			assertion: Assertion{Type: AssertStoreContains, Fact: []string{"d:R9", "rdf:type", "fs:Hot"}},
			want:      []string{"Assertion failed: store_contains", "<http://foodsafety/data/R9>", "not found"},
		},
		{
			name:      "excludes",
			assertion: Assertion{Type: AssertStoreExcludes, Fact: []string{"d:R1", "rdf:type", "fs:Hot"}},
			want:      []string{"Assertion failed: store_excludes", "Actual: found"},
		},
		{
			name:      "error kind",
			assertion: Assertion{Type: AssertErrorKind, Kind: "QUERY"},
			want:      []string{"Assertion failed: error_kind", "Actual: INTERNAL"},
		},
		{
			name:      "missing count",
			assertion: Assertion{Type: AssertDeltaCount},
			want:      []string{"assertion[0]: delta_count requires count"},
		},
		{
			name:      "unknown type",
			assertion: Assertion{Type: "trace_count"},
			want:      []string{`unknown assertion type "trace_count"`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := EvaluateAssertions(sampleResult(), []Assertion{tt.assertion}, testPrefixes())
			require.Len(t, errs, 1)
			for _, w := range tt.want {
				assert.Contains(t, errs[0], w)
			}
		})
	}
}

func TestAssertionError_IncludesTrace(t *testing.T) {
	err := &AssertionError{
		Type:     AssertDeltaCount,
		Expected: "2",
		Actual:   "1",
		Trace:    sampleResult().Trace,
	}
	msg := err.Error()
	assert.Contains(t, msg, "Full trace:")
	assert.Contains(t, msg, "[1] rows=1 state=warm delta=1")
	assert.Contains(t, msg, "[2] rows=1 state=failed delta=0 error=INTERNAL")
}

func TestAssertErrorKind_SetupError(t *testing.T) {
	r := &Result{Final: FinalState{SetupError: "CONFIGURATION"}}
	errs := EvaluateAssertions(r, []Assertion{{Type: AssertErrorKind, Kind: "CONFIGURATION"}}, testPrefixes())
	assert.Empty(t, errs)

	errs = EvaluateAssertions(&Result{}, []Assertion{{Type: AssertErrorKind, Kind: "CONFIGURATION"}}, testPrefixes())
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "Actual: no errors")
}
