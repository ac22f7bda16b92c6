package compiler

import (
	"fmt"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/provstream/internal/ir"
)

// CompileEngines compiles every engine under the top-level "engine" struct
// in declaration order. It stops at the first error.
func CompileEngines(root cue.Value) ([]*ir.EngineSpec, error) {
	enginesVal := root.LookupPath(cue.ParsePath("engine"))
	if !enginesVal.Exists() {
		return nil, nil
	}
	iter, err := enginesVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var specs []*ir.EngineSpec
	for iter.Next() {
		spec, err := CompileEngine(iter.Value())
		if err != nil {
			return specs, err
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

// CompileEngine parses one engine declaration into an EngineSpec. Only the
// *Path fields are set; reading the referenced files is the loader's job.
//
// The value is the engine struct itself, e.g.:
//
//	v := ctx.CompileString(`engine: temperature: { ... }`)
//	spec, err := CompileEngine(v.LookupPath(cue.ParsePath("engine.temperature")))
func CompileEngine(v cue.Value) (*ir.EngineSpec, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	spec := &ir.EngineSpec{}
	labels := v.Path().Selectors()
	if len(labels) > 0 {
		spec.Name = labels[len(labels)-1].String()
	}

	var err error
	if spec.Stream, err = requiredString(v, "stream"); err != nil {
		return nil, err
	}
	if spec.QueryPath, err = requiredString(v, "query"); err != nil {
		return nil, err
	}
	if spec.SchemaPath, err = requiredString(v, "schema"); err != nil {
		return nil, err
	}
	if spec.Window, err = duration(v, "window", true); err != nil {
		return nil, err
	}
	if spec.Slide, err = duration(v, "slide", false); err != nil {
		return nil, err
	}
	if spec.Slide == 0 {
		// Tumbling window.
		spec.Slide = spec.Window
	}

	if err := parseRules(v, spec); err != nil {
		return nil, err
	}
	return spec, nil
}

func requiredString(v cue.Value, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", &CompileError{
			Field:   field,
			Message: field + " is required",
			Pos:     v.Pos(),
		}
	}
	s, err := fv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	if s == "" {
		return "", &CompileError{Field: field, Message: field + " must be non-empty", Pos: fv.Pos()}
	}
	return s, nil
}

func duration(v cue.Value, field string, required bool) (time.Duration, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		if required {
			return 0, &CompileError{Field: field, Message: field + " is required", Pos: v.Pos()}
		}
		return 0, nil
	}
	s, err := fv.String()
	if err != nil {
		return 0, formatCUEError(err)
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, &CompileError{
			Field:   field,
			Message: fmt.Sprintf("invalid duration %q", s),
			Pos:     fv.Pos(),
		}
	}
	if d <= 0 {
		return 0, &CompileError{Field: field, Message: field + " must be positive", Pos: fv.Pos()}
	}
	return d, nil
}

// parseRules reads the rules struct. Stage keys are matched
// case-insensitively; each stage holds a list of rule file paths.
func parseRules(v cue.Value, spec *ir.EngineSpec) error {
	rulesVal := v.LookupPath(cue.ParsePath("rules"))
	if !rulesVal.Exists() {
		return nil
	}
	iter, err := rulesVal.Fields()
	if err != nil {
		return formatCUEError(err)
	}
	for iter.Next() {
		label := iter.Label()
		stage, err := ir.ParseStage(label)
		if err != nil {
			return &CompileError{
				Field:   "rules." + label,
				Message: fmt.Sprintf("unknown rule stage %q (want coldstart or warm)", label),
				Pos:     iter.Value().Pos(),
			}
		}
		paths, err := stringList(iter.Value())
		if err != nil {
			return err
		}
		if stage == ir.StageColdstart {
			spec.ColdstartPaths = append(spec.ColdstartPaths, paths...)
		} else {
			spec.WarmPaths = append(spec.WarmPaths, paths...)
		}
	}
	return nil
}

func stringList(v cue.Value) ([]string, error) {
	// A single path is accepted in place of a one-element list.
	if s, err := v.String(); err == nil {
		return []string{s}, nil
	}
	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var out []string
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out = append(out, s)
	}
	return out, nil
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// First error with position info.
	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
