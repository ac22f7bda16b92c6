package ir

import (
	"fmt"
	"strings"
	"time"
)

// Reading is one sensor sample.
type Reading struct {
	ID        int       `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// Quadruple is a fact on the evaluator's input stream. Subject and
// Predicate are IRIs; Object is an IRI or a literal in N-Triples form.
type Quadruple struct {
	Subject         string `json:"subject"`
	Predicate       string `json:"predicate"`
	Object          string `json:"object"`
	TimestampMillis int64  `json:"timestamp_ms"`
}

// Row is one tuple of an evaluator result. Only the first three columns
// are read by the inference engine.
type Row []string

// Table is the evaluator output for one window closure.
type Table struct {
	Rows []Row `json:"rows"`
}

// Len returns the number of rows.
func (t Table) Len() int { return len(t.Rows) }

// Stage selects which rule sequence runs for a window.
type Stage int

const (
	// StageColdstart runs exactly once, on the first window.
	StageColdstart Stage = iota + 1
	// StageWarm runs on every window after a successful coldstart.
	StageWarm
)

func (s Stage) String() string {
	switch s {
	case StageColdstart:
		return "coldstart"
	case StageWarm:
		return "warm"
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// ParseStage matches a stage name case-insensitively.
func ParseStage(name string) (Stage, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "coldstart":
		return StageColdstart, nil
	case "warm":
		return StageWarm, nil
	}
	return 0, ConfigurationError(fmt.Sprintf("unknown rule stage %q (want coldstart or warm)", name), nil)
}

// EngineSpec is a compiled engine declaration. The *Path fields come from
// the pipeline configuration; the text fields are filled by the loader.
type EngineSpec struct {
	Name   string        `json:"name"`
	Stream string        `json:"stream"`
	Window time.Duration `json:"window"`
	Slide  time.Duration `json:"slide"`

	QueryPath      string   `json:"query_path"`
	SchemaPath     string   `json:"schema_path"`
	ColdstartPaths []string `json:"coldstart_paths"`
	WarmPaths      []string `json:"warm_paths"`

	Query     string   `json:"-"`
	Schema    string   `json:"-"`
	Coldstart []string `json:"-"`
	Warm      []string `json:"-"`
}

// Rules returns the rule texts for a stage in registration order.
func (s *EngineSpec) Rules(stage Stage) []string {
	if stage == StageColdstart {
		return s.Coldstart
	}
	return s.Warm
}
