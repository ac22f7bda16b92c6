package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/provstream/internal/rdf"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFull trace:\n")
	for _, event := range e.Trace {
		fmt.Fprintf(&buf, "  [%d] rows=%d state=%s delta=%d", event.Seq, event.Rows, event.State, len(event.Delta))
		if event.Error != "" {
			fmt.Fprintf(&buf, " error=%s", event.Error)
		}
		buf.WriteByte('\n')
	}

	return buf.String()
}

func assertFinalState(result *Result, a Assertion) error {
	if result.Final.State == a.State {
		return nil
	}
	return &AssertionError{
		Type:     AssertFinalState,
		Expected: "state " + a.State,
		Actual:   "state " + result.Final.State,
		Trace:    result.Trace,
	}
}

func assertCount(result *Result, a Assertion) error {
	var actual int
	switch a.Type {
	case AssertSnapshotSize:
		actual = result.Final.Snapshot
	case AssertStoreSize:
		actual = result.Final.StoreSize
	case AssertDeltaCount:
		actual = result.Final.Deltas
	}
	if actual == *a.Count {
		return nil
	}
	return &AssertionError{
		Type:     a.Type,
		Expected: fmt.Sprintf("%d", *a.Count),
		Actual:   fmt.Sprintf("%d", actual),
		Trace:    result.Trace,
	}
}

// assertStoreFact checks the presence (store_contains) or absence
// (store_excludes) of a fact in the final store.
func assertStoreFact(result *Result, a Assertion, prefixes rdf.Prefixes) error {
	t, err := factTriple(prefixes, a.Fact)
	if err != nil {
		return fmt.Errorf("%s: %w", a.Type, err)
	}
	line := t.String()
	found := slices.Contains(result.Final.Facts, line)
	want := a.Type == AssertStoreContains
	if found == want {
		return nil
	}

	expected, actual := "store contains "+line, "not found"
	if !want {
		expected, actual = "store does not contain "+line, "found"
	}
	return &AssertionError{
		Type:     a.Type,
		Expected: expected,
		Actual:   actual,
		Trace:    result.Trace,
	}
}

func assertErrorKind(result *Result, a Assertion) error {
	if result.Final.SetupError == a.Kind {
		return nil
	}
	var seen []string
	for _, e := range result.Trace {
		if e.Error == a.Kind {
			return nil
		}
		if e.Error != "" {
			seen = append(seen, e.Error)
		}
	}
	actual := "no errors"
	if len(seen) > 0 {
		actual = strings.Join(seen, ", ")
	}
	return &AssertionError{
		Type:     AssertErrorKind,
		Expected: "an error of kind " + a.Kind,
		Actual:   actual,
		Trace:    result.Trace,
	}
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, prefixes rdf.Prefixes) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertFinalState:
			err = assertFinalState(result, assertion)
		case AssertSnapshotSize, AssertStoreSize, AssertDeltaCount:
			if assertion.Count == nil {
				err = fmt.Errorf("assertion[%d]: %s requires count", i, assertion.Type)
			} else {
				err = assertCount(result, assertion)
			}
		case AssertStoreContains, AssertStoreExcludes:
			err = assertStoreFact(result, assertion, prefixes)
		case AssertErrorKind:
			err = assertErrorKind(result, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
