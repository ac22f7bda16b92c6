package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"cuelang.org/go/cue/token"
	"github.com/spf13/cobra"

	"github.com/roach88/provstream/internal/compiler"
	"github.com/roach88/provstream/internal/ir"
	"github.com/roach88/provstream/internal/rdf"
	"github.com/roach88/provstream/internal/rules"
	"github.com/roach88/provstream/internal/window"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid   bool                       `json:"valid"`
	Engines int                        `json:"engines"`
	Errors  []compiler.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <specs-dir>",
		Short: "Validate engine declarations and the files they reference",
		Long: `Validate the engine declarations of a specs directory without running them.

Compiles the CUE files, checks each declaration, parses every schema as
Turtle, every windowed query and every coldstart and warm rule. Rules are
parsed, not executed, so a rule that infers nothing still validates.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, specsDir string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}

	loadResult, loadErrors := LoadSpecs(specsDir, LoadModeCollectAll)

	// Handle load errors (directory not found, no files, etc.)
	if loadResult == nil && len(loadErrors) > 0 {
		var loadErr *LoadError
		if errors.As(loadErrors[0], &loadErr) {
			return outputValidateError(formatter, loadErr.Code, loadErr.Message, nil)
		}
		return outputValidateError(formatter, ErrCodeGeneric, loadErrors[0].Error(), nil)
	}

	formatter.VerboseLog("Found %d CUE file(s) in %s", loadResult.FileCount, specsDir)

	var validationErrors []compiler.ValidationError
	for _, err := range loadErrors {
		validationErrors = append(validationErrors, loadValidationError(err))
	}
	validationErrors = append(validationErrors, compiler.Validate(loadResult.Engines)...)
	for _, spec := range loadResult.Engines {
		formatter.VerboseLog("Validating engine: %s", spec.Name)
		validationErrors = append(validationErrors, ValidateContent(spec)...)
	}

	if len(validationErrors) > 0 {
		return outputValidationErrors(formatter, validationErrors)
	}
	return outputValidateSuccess(formatter, len(loadResult.Engines))
}

// ValidateContent parses the schema, query and rule texts of a loaded
// engine without executing anything.
func ValidateContent(spec *ir.EngineSpec) []compiler.ValidationError {
	var errs []compiler.ValidationError
	field := "engine." + spec.Name

	if _, err := rdf.ParseTurtle(spec.Schema); err != nil {
		errs = append(errs, compiler.ValidationError{
			Field:   field + ".schema",
			Message: fmt.Sprintf("%s: %v", spec.SchemaPath, err),
			Code:    ErrCodeBadSchema,
		})
	}

	_, err := window.ParseSpec(window.QuerySpec{
		Name:   spec.Name,
		Stream: spec.Stream,
		Range:  spec.Window,
		Step:   spec.Slide,
		Text:   spec.Query,
	})
	if err != nil {
		errs = append(errs, compiler.ValidationError{
			Field:   field + ".query",
			Message: fmt.Sprintf("%s: %v", spec.QueryPath, err),
			Code:    ErrCodeBadQuery,
		})
	}

	for _, stage := range []ir.Stage{ir.StageColdstart, ir.StageWarm} {
		paths := spec.ColdstartPaths
		if stage == ir.StageWarm {
			paths = spec.WarmPaths
		}
		for i, text := range spec.Rules(stage) {
			if _, err := rules.ParseUpdate(text); err != nil {
				name := fmt.Sprintf("%s rule %d", stage, i+1)
				if i < len(paths) {
					name = paths[i]
				}
				errs = append(errs, compiler.ValidationError{
					Field:   fmt.Sprintf("%s.rules.%s[%d]", field, stage, i),
					Message: fmt.Sprintf("%s: %v", name, err),
					Code:    ErrCodeBadRule,
				})
			}
		}
	}
	return errs
}

// loadValidationError converts a loader error to a validation error.
func loadValidationError(err error) compiler.ValidationError {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return compiler.ValidationError{
			Field:   "load",
			Message: loadErr.Message,
			Code:    loadErr.Code,
			Line:    getLineFromCuePos(loadErr.Pos),
		}
	}
	return compiler.ValidationError{Field: "load", Message: err.Error(), Code: ErrCodeGeneric}
}

// getLineFromCuePos extracts line number from a token.Pos.
func getLineFromCuePos(pos token.Pos) int {
	if pos.IsValid() {
		return pos.Line()
	}
	return 0
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, engines int) error {
	if formatter.Format == "json" {
		return formatter.Success(ValidationResult{Valid: true, Engines: engines})
	}

	fmt.Fprintf(formatter.Writer, "✓ All specs valid (%d engine(s))\n", engines)
	return nil
}

// outputValidateError outputs a single validation error.
func outputValidateError(formatter *OutputFormatter, code, message string, details interface{}) error {
	_ = formatter.Error(code, message, details)
	// Load errors are command-level errors (exit code 2)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}

// outputValidationErrors outputs multiple validation errors.
func outputValidationErrors(formatter *OutputFormatter, errs []compiler.ValidationError) error {
	if formatter.Format == "json" {
		result := ValidationResult{
			Valid:  false,
			Errors: errs,
		}

		response := CLIResponse{
			Status: "error",
			Data:   result,
			Error: &CLIError{
				Code:    errs[0].Code,
				Message: errs[0].Message,
			},
		}

		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}

		// Validation failures = exit code 1 (test/validation failure)
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		if err.Line > 0 {
			fmt.Fprintf(formatter.Writer, "line %d\n", err.Line)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s: %s\n\n", err.Code, err.Field, err.Message)
	}

	// Validation failures = exit code 1 (test/validation failure)
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}
