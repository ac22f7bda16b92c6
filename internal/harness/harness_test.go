package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/provstream/internal/rdf"
	"github.com/roach88/provstream/internal/testutil"
)

func intPtr(n int) *int { return &n }

func inlineScenario() *Scenario {
	return &Scenario{
		Name:        "inline",
		Description: "inline rules",
		Prefixes:    map[string]string{"fs": testutil.NS, "d": testutil.DataNS},
		Schema:      testutil.Schema,
		Rules: RuleSet{
			Coldstart: []string{testutil.HotRule},
			Warm:      []string{testutil.HotRule, testutil.FrozenRule},
		},
		Windows: []WindowStep{
			{Rows: [][]string{{"d:R1", "fs:temperature", `"70"^^xsd:double`}}},
			{Rows: [][]string{{"d:R2", "fs:temperature", `"-1"^^xsd:double`}}},
		},
	}
}

func TestRun_Inline(t *testing.T) {
	result, err := Run(inlineScenario())
	require.NoError(t, err)

	assert.True(t, result.Pass, "%v", result.Errors)
	require.Len(t, result.Trace, 2)

	assert.Equal(t, "coldstart", result.Trace[0].Stage)
	assert.Equal(t, "warm", result.Trace[0].State)
	assert.Equal(t, []string{testutil.Classified("R1", "Hot").String()}, result.Trace[0].Delta)

	assert.Equal(t, "warm", result.Trace[1].Stage)
	assert.Equal(t, []string{testutil.Classified("R2", "Frozen").String()}, result.Trace[1].Delta)

	assert.Equal(t, "warm", result.Final.State)
	assert.Equal(t, 2, result.Final.Deltas)
	assert.Equal(t, 2, result.Final.StoreSize)
	assert.Empty(t, result.Final.SetupError)
}

func TestRun_ExpectMismatch(t *testing.T) {
	s := inlineScenario()
	s.Windows[0].Expect = &ExpectClause{State: "failed", Delta: intPtr(3)}
	s.Windows[1].Expect = &ExpectClause{Error: "QUERY"}

	result, err := Run(s)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 3)
	assert.Contains(t, result.Errors[0], "window 1: expected state failed, got warm")
	assert.Contains(t, result.Errors[1], "window 1: expected delta of 3 facts, got 1")
	assert.Contains(t, result.Errors[2], "window 2: expected error QUERY, window succeeded")
}

func TestRun_SetupError(t *testing.T) {
	s := inlineScenario()
	s.Schema = "this is not turtle"

	result, err := Run(s)
	require.NoError(t, err)

	assert.Equal(t, "CONFIGURATION", result.Final.SetupError)
	assert.Equal(t, "failed", result.Final.State)
	for _, e := range result.Trace {
		assert.Empty(t, e.Stage)
		assert.Equal(t, "CONFIGURATION", e.Error)
	}
}

func TestRun_BadRuleFailsOnFirstWindow(t *testing.T) {
	s := inlineScenario()
	s.Rules.Coldstart = []string{"INSERT { ?s ?p } WHERE {"}

	result, err := Run(s)
	require.NoError(t, err)

	assert.Empty(t, result.Final.SetupError, "rules are parsed when they run")
	assert.Equal(t, "QUERY", result.Trace[0].Error)
	assert.Equal(t, "failed", result.Final.State)
}

func TestRun_AssertionsRecorded(t *testing.T) {
	s := inlineScenario()
	s.Assertions = []Assertion{
		{Type: AssertDeltaCount, Count: intPtr(5)},
		{Type: AssertStoreContains, Fact: []string{"d:R1", "rdf:type", "fs:Hot"}},
	}

	result, err := Run(s)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "Assertion failed: delta_count")
}

func TestRun_Deterministic(t *testing.T) {
	first, err := Run(inlineScenario())
	require.NoError(t, err)
	second, err := Run(inlineScenario())
	require.NoError(t, err)

	assert.Equal(t, Dump("inline", first), Dump("inline", second))
}

func TestExpandCell(t *testing.T) {
	p := rdf.NewPrefixes()
	p["fs"] = testutil.NS

	tests := []struct {
		in   string
		want string
	}{
		{"fs:Hot", testutil.NS + "Hot"},
		{"rdf:type", rdf.RDFType},
		{"<http://x/y>", "<http://x/y>"},
		{`"70"^^xsd:double`, `"70"^^xsd:double`},
		{"http://x/y", "http://x/y"},
		{"_:b0", "_:b0"},
		{"70", "70"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, expandCell(p, tt.in), tt.in)
	}
}

func TestFactTriple(t *testing.T) {
	p := rdf.NewPrefixes()
	p["fs"] = testutil.NS
	p["d"] = testutil.DataNS

	got, err := factTriple(p, []string{"d:R1", "rdf:type", "fs:Hot"})
	require.NoError(t, err)
	assert.Equal(t, testutil.Classified("R1", "Hot"), got)

	got, err = factTriple(p, []string{"d:R1", "fs:temperature", `"70"^^xsd:double`})
	require.NoError(t, err)
	assert.Equal(t, rdf.Double(70), got.O)

	_, err = factTriple(p, []string{"a b", "fs:x", "fs:y"})
	require.Error(t, err)

	_, err = factTriple(p, []string{"fs:x"})
	require.Error(t, err)
}
