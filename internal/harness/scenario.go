package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/roach88/provstream/internal/engine"
	"github.com/roach88/provstream/internal/ir"
)

// Scenario defines an inference scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Prefixes are available to row cells and assertion facts.
	Prefixes map[string]string `yaml:"prefixes,omitempty"`

	// Schema is inline Turtle. Exactly one of Schema and SchemaFile is set.
	Schema     string `yaml:"schema,omitempty"`
	SchemaFile string `yaml:"schema_file,omitempty"`

	// Rules are inline rule texts. RuleFiles are read at load time and
	// appended after the inline rules of the same stage.
	Rules     RuleSet `yaml:"rules,omitempty"`
	RuleFiles RuleSet `yaml:"rule_files,omitempty"`

	// Retention is "all" (default) or "latest".
	Retention string `yaml:"retention,omitempty"`

	// InstanceID fixes the engine instance ID. Defaults to "test-instance".
	InstanceID string `yaml:"instance_id,omitempty"`

	// Windows are delivered to the engine in order.
	Windows []WindowStep `yaml:"windows"`

	// Assertions validate the final state.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// RuleSet holds rule texts or rule file paths per stage.
type RuleSet struct {
	Coldstart []string `yaml:"coldstart,omitempty"`
	Warm      []string `yaml:"warm,omitempty"`
}

// WindowStep is one window result table.
type WindowStep struct {
	// Rows hold subject, predicate and object cells.
	Rows [][]string `yaml:"rows"`

	// Expect is checked right after the window is processed. Nil skips it.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause specifies the expected outcome of one window.
type ExpectClause struct {
	// State is the lifecycle state after the window.
	State string `yaml:"state,omitempty"`

	// Delta is the number of facts appended by the window.
	Delta *int `yaml:"delta,omitempty"`

	// Error is the expected error kind. Empty expects success.
	Error string `yaml:"error,omitempty"`
}

// Assertion validates the final state.
type Assertion struct {
	Type  string   `yaml:"type"`
	State string   `yaml:"state,omitempty"`
	Count *int     `yaml:"count,omitempty"`
	Kind  string   `yaml:"kind,omitempty"`
	Fact  []string `yaml:"fact,omitempty"`
}

// Assertion type constants.
const (
	AssertFinalState    = "final_state"
	AssertSnapshotSize  = "snapshot_size"
	AssertStoreSize     = "store_size"
	AssertDeltaCount    = "delta_count"
	AssertStoreContains = "store_contains"
	AssertStoreExcludes = "store_excludes"
	AssertErrorKind     = "error_kind"
)

var validStates = []string{
	engine.StateUninitialized.String(),
	engine.StateColdstartPending.String(),
	engine.StateWarm.String(),
	engine.StateFailed.String(),
}

// LoadScenario reads and parses a scenario YAML file. Schema and rule files
// are resolved relative to the scenario file's directory.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file, resolving
// schema and rule files relative to basePath.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data, basePath)
}

// ParseScenario parses scenario YAML. Unknown fields are rejected.
func ParseScenario(data []byte, basePath string) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	if err := resolveFiles(&scenario, basePath); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// resolveFiles reads the schema and rule files into the inline fields.
func resolveFiles(s *Scenario, basePath string) error {
	read := func(p string) (string, error) {
		if !filepath.IsAbs(p) && basePath != "" {
			p = filepath.Join(basePath, p)
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", p, err)
		}
		return string(data), nil
	}

	if s.SchemaFile != "" {
		text, err := read(s.SchemaFile)
		if err != nil {
			return err
		}
		s.Schema = text
	}
	for _, p := range s.RuleFiles.Coldstart {
		text, err := read(p)
		if err != nil {
			return err
		}
		s.Rules.Coldstart = append(s.Rules.Coldstart, text)
	}
	for _, p := range s.RuleFiles.Warm {
		text, err := read(p)
		if err != nil {
			return err
		}
		s.Rules.Warm = append(s.Rules.Warm, text)
	}
	return nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if (s.Schema == "") == (s.SchemaFile == "") {
		return fmt.Errorf("exactly one of schema and schema_file is required")
	}
	if _, ok := engine.ParseRetention(s.Retention); !ok {
		return fmt.Errorf("retention %q: want all or latest", s.Retention)
	}
	if len(s.Windows) == 0 {
		return fmt.Errorf("windows list is required and must be non-empty")
	}

	for i, w := range s.Windows {
		for j, row := range w.Rows {
			if len(row) != 3 {
				return fmt.Errorf("windows[%d].rows[%d]: want 3 cells, have %d", i, j, len(row))
			}
		}
		if w.Expect == nil {
			continue
		}
		if w.Expect.State != "" && !slices.Contains(validStates, w.Expect.State) {
			return fmt.Errorf("windows[%d].expect: unknown state %q", i, w.Expect.State)
		}
		if w.Expect.Delta != nil && *w.Expect.Delta < 0 {
			return fmt.Errorf("windows[%d].expect: delta must be non-negative", i)
		}
		if w.Expect.Error != "" && !validKind(w.Expect.Error) {
			return fmt.Errorf("windows[%d].expect: unknown error kind %q", i, w.Expect.Error)
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertFinalState:
		if !slices.Contains(validStates, a.State) {
			return fmt.Errorf("assertions[%d]: unknown state %q for final_state", index, a.State)
		}
	case AssertSnapshotSize, AssertStoreSize, AssertDeltaCount:
		if a.Count == nil {
			return fmt.Errorf("assertions[%d]: count is required for %s", index, a.Type)
		}
		if *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for %s", index, a.Type)
		}
	case AssertStoreContains, AssertStoreExcludes:
		if len(a.Fact) != 3 {
			return fmt.Errorf("assertions[%d]: fact must have 3 cells for %s", index, a.Type)
		}
	case AssertErrorKind:
		if !validKind(a.Kind) {
			return fmt.Errorf("assertions[%d]: unknown kind %q for error_kind", index, a.Kind)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}

func validKind(k string) bool {
	return slices.Contains(ir.Kinds, ir.Kind(k))
}
