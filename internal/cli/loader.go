package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/roach88/provstream/internal/compiler"
	"github.com/roach88/provstream/internal/ir"
)

// LoadMode controls how errors are handled during spec loading.
type LoadMode int

const (
	// LoadModeFailFast stops on the first error encountered.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll collects all errors before returning.
	LoadModeCollectAll
)

// LoadResult contains the results of loading specs from a directory.
type LoadResult struct {
	Engines   []*ir.EngineSpec
	CUEValue  cue.Value // The raw CUE value for additional processing
	FileCount int       // Number of CUE files found
}

// LoadError represents an error that occurred during spec loading.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
	Err     error
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *LoadError) Unwrap() error { return e.Err }

// LoadSpecs loads the CUE pipeline declarations in dir, compiles every
// engine in declaration order and reads the schema, query and rule files
// each engine references, relative to dir.
// If mode is LoadModeFailFast, returns on first error.
// If mode is LoadModeCollectAll, collects all errors.
func LoadSpecs(dir string, mode LoadMode) (*LoadResult, []error) {
	var errs []error

	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("specs directory not found: %s", dir)}}
	}
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing specs directory: %v", err)}}
	}
	if !info.IsDir() {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}}
	}

	cueFiles, err := FindCUEFiles(dir)
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}}
	}
	if len(cueFiles) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}}
	}

	ctx := cuecontext.New()
	cfg := &load.Config{Dir: dir}
	instances := load.Instances([]string{"."}, cfg)
	if len(instances) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}}
	}

	inst := instances[0]
	if inst.Err != nil {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}}
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, []error{&LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}}
	}

	result := &LoadResult{
		CUEValue:  value,
		FileCount: len(cueFiles),
	}

	enginesVal := value.LookupPath(cue.ParsePath("engine"))
	if enginesVal.Exists() {
		iter, iterErr := enginesVal.Fields()
		if iterErr != nil {
			errs = append(errs, &LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("iterating engines: %v", iterErr)})
			if mode == LoadModeFailFast {
				return result, errs
			}
		} else {
			for iter.Next() {
				spec, compileErr := compiler.CompileEngine(iter.Value())
				if compileErr != nil {
					errs = append(errs, convertCompileError(compileErr, "engine."+iter.Label()))
					if mode == LoadModeFailFast {
						return result, errs
					}
					continue
				}
				if readErr := readEngineFiles(dir, spec); readErr != nil {
					errs = append(errs, readErr)
					if mode == LoadModeFailFast {
						return result, errs
					}
					continue
				}
				result.Engines = append(result.Engines, spec)
			}
		}
	}

	if len(result.Engines) == 0 && len(errs) == 0 {
		errs = append(errs, &LoadError{Code: ErrCodeGeneric, Message: "no engines found in specs"})
	}

	return result, errs
}

// readEngineFiles fills the text fields of spec from the files it names.
func readEngineFiles(dir string, spec *ir.EngineSpec) error {
	read := func(rel string) (string, error) {
		data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(rel)))
		if err != nil {
			cfgErr := ir.ConfigurationError(fmt.Sprintf("engine %s: read %s", spec.Name, rel), err)
			return "", &LoadError{Code: ErrCodeReadFailed, Message: cfgErr.Error(), Err: cfgErr}
		}
		return string(data), nil
	}

	var err error
	if spec.Schema, err = read(spec.SchemaPath); err != nil {
		return err
	}
	if spec.Query, err = read(spec.QueryPath); err != nil {
		return err
	}
	spec.Coldstart = spec.Coldstart[:0]
	for _, p := range spec.ColdstartPaths {
		text, err := read(p)
		if err != nil {
			return err
		}
		spec.Coldstart = append(spec.Coldstart, text)
	}
	spec.Warm = spec.Warm[:0]
	for _, p := range spec.WarmPaths {
		text, err := read(p)
		if err != nil {
			return err
		}
		spec.Warm = append(spec.Warm, text)
	}
	return nil
}

// FindCUEFiles walks the directory and returns all .cue file paths.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// convertCompileError converts a compiler error to a LoadError with position info.
func convertCompileError(err error, context string) *LoadError {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    MapFieldToErrorCode(compileErr.Field),
			Message: fmt.Sprintf("%s: %s", context, compileErr.Message),
			Pos:     compileErr.Pos,
			Err:     err,
		}
	}
	return &LoadError{
		Code:    ErrCodeGeneric,
		Message: fmt.Sprintf("%s: %v", context, err),
		Err:     err,
	}
}

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build failed
	ErrCodeWriteFailed = "E007" // File write error
	ErrCodeReadFailed  = "E008" // Referenced file unreadable

	// Engine declaration errors
	ErrCodeMissingField = "E110" // Required field missing or empty
	ErrCodeBadDuration  = "E111" // Window or slide not a positive duration
	ErrCodeBadStage     = "E112" // Unknown rule stage key

	// Content errors found by validate
	ErrCodeBadSchema = "E120" // Schema is not valid Turtle
	ErrCodeBadQuery  = "E121" // Windowed query does not parse
	ErrCodeBadRule   = "E122" // Rule does not parse
)

// MapFieldToErrorCode maps a compiler error field to an error code.
func MapFieldToErrorCode(field string) string {
	switch field {
	case "stream", "query", "schema":
		return ErrCodeMissingField
	case "window", "slide":
		return ErrCodeBadDuration
	}
	if strings.HasPrefix(field, "rules.") {
		return ErrCodeBadStage
	}
	return ErrCodeGeneric
}
