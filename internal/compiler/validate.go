package compiler

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/roach88/provstream/internal/ir"
)

// Validation error codes (E100-E199)
const (
	// General validation errors (E100)
	ErrUnsupportedIRType = "E100" // unsupported IR type for validation

	// EngineSpec errors (E101-E109)
	ErrEngineNameEmpty   = "E101" // engine name is required
	ErrStreamNotIRI      = "E102" // stream must be an absolute IRI
	ErrSlideExceedsRange = "E103" // slide longer than window
	ErrNoColdstartRules  = "E104" // at least one coldstart rule required
	ErrDuplicateName     = "E105" // duplicate engine name
	ErrInvalidPath       = "E106" // empty, absolute or escaping file path
)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks compiled engine declarations. It returns every problem
// found rather than stopping at the first.
func Validate(v any) []ValidationError {
	switch spec := v.(type) {
	case *ir.EngineSpec:
		return validateEngineSpec(spec)
	case ir.EngineSpec:
		return validateEngineSpec(&spec)
	case []*ir.EngineSpec:
		return validateEngineSpecs(spec)
	default:
		return []ValidationError{{
			Field:   "type",
			Message: fmt.Sprintf("unsupported IR type: %T", v),
			Code:    ErrUnsupportedIRType,
		}}
	}
}

func validateEngineSpecs(specs []*ir.EngineSpec) []ValidationError {
	var errs []ValidationError
	seen := make(map[string]bool)
	for i, spec := range specs {
		if seen[spec.Name] {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("engine[%d].name", i),
				Message: fmt.Sprintf("duplicate engine name: %q", spec.Name),
				Code:    ErrDuplicateName,
			})
		}
		seen[spec.Name] = true
		errs = append(errs, validateEngineSpec(spec)...)
	}
	return errs
}

func validateEngineSpec(spec *ir.EngineSpec) []ValidationError {
	var errs []ValidationError
	prefix := "engine." + spec.Name

	if strings.TrimSpace(spec.Name) == "" {
		errs = append(errs, ValidationError{
			Field:   "engine.name",
			Message: "engine name is required and must be non-empty",
			Code:    ErrEngineNameEmpty,
		})
	}

	if !isAbsoluteIRI(spec.Stream) {
		errs = append(errs, ValidationError{
			Field:   prefix + ".stream",
			Message: fmt.Sprintf("stream %q is not an absolute IRI", spec.Stream),
			Code:    ErrStreamNotIRI,
		})
	}

	if spec.Slide > spec.Window {
		errs = append(errs, ValidationError{
			Field:   prefix + ".slide",
			Message: fmt.Sprintf("slide %s exceeds window %s", spec.Slide, spec.Window),
			Code:    ErrSlideExceedsRange,
		})
	}

	if len(spec.ColdstartPaths) == 0 {
		errs = append(errs, ValidationError{
			Field:   prefix + ".rules.coldstart",
			Message: "at least one coldstart rule is required",
			Code:    ErrNoColdstartRules,
		})
	}

	errs = append(errs, validatePath(prefix+".query", spec.QueryPath)...)
	errs = append(errs, validatePath(prefix+".schema", spec.SchemaPath)...)
	for i, p := range spec.ColdstartPaths {
		errs = append(errs, validatePath(fmt.Sprintf("%s.rules.coldstart[%d]", prefix, i), p)...)
	}
	for i, p := range spec.WarmPaths {
		errs = append(errs, validatePath(fmt.Sprintf("%s.rules.warm[%d]", prefix, i), p)...)
	}
	return errs
}

// validatePath requires a relative path that stays inside the spec directory.
func validatePath(field, p string) []ValidationError {
	var msg string
	switch {
	case strings.TrimSpace(p) == "":
		msg = "path is required"
	case filepath.IsAbs(p):
		msg = fmt.Sprintf("path %q must be relative to the spec directory", p)
	case !filepath.IsLocal(p):
		msg = fmt.Sprintf("path %q escapes the spec directory", p)
	default:
		return nil
	}
	return []ValidationError{{Field: field, Message: msg, Code: ErrInvalidPath}}
}

func isAbsoluteIRI(s string) bool {
	if strings.ContainsAny(s, " \t\n<>\"{}") {
		return false
	}
	u, err := url.Parse(s)
	return err == nil && u.Scheme != ""
}
