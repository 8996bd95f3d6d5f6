package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/omnistate/internal/compiler"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid       bool                       `json:"valid"`
	Collections []string                   `json:"collections,omitempty"`
	Errors      []compiler.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [schema]",
		Short: "Validate a store schema",
		Long: `Compile a CUE store schema and check it: collection names, primary
keys, field names and seed rows. The schema argument may be a file or a
directory; without it the configured schema is used.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			return runValidate(rootOpts, path, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	if path == "" {
		cfg, err := opts.LoadConfig()
		if err != nil {
			return err
		}
		path = cfg.Schema
	}

	loadResult, err := LoadSchema(path)
	if err != nil {
		var loadErr *LoadError
		if errors.As(err, &loadErr) {
			return outputValidateError(formatter, loadErr.Code, loadErr.Message, nil)
		}
		return outputValidateError(formatter, ErrCodeGeneric, err.Error(), nil)
	}

	formatter.VerboseLog("Found %d CUE file(s) in %s", loadResult.FileCount, path)

	if errs := compiler.Validate(loadResult.Spec); len(errs) > 0 {
		return outputValidationErrors(formatter, errs)
	}

	names := make([]string, len(loadResult.Spec.Collections))
	for i, c := range loadResult.Spec.Collections {
		names[i] = c.Name
	}
	return outputValidateSuccess(formatter, names)
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, collections []string) error {
	if formatter.Format == "json" {
		return formatter.Success(ValidationResult{Valid: true, Collections: collections})
	}

	fmt.Fprintf(formatter.Writer, "✓ Schema valid (%d collection(s))\n", len(collections))
	return nil
}

// outputValidateError outputs a single load error.
func outputValidateError(formatter *OutputFormatter, code, message string, details any) error {
	_ = formatter.Error(code, message, details)
	// Load errors are command-level errors (exit code 2)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}

// outputValidationErrors outputs multiple validation errors.
func outputValidationErrors(formatter *OutputFormatter, errs []compiler.ValidationError) error {
	if formatter.Format == "json" {
		response := CLIResponse{
			Status: "error",
			Data:   ValidationResult{Valid: false, Errors: errs},
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

	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}
