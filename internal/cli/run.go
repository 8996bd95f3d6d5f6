package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/omnistate/internal/harness"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Update bool   // regenerate golden files
	Filter string // scenario filter (glob pattern)
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name   string   `json:"name"`
	Pass   bool     `json:"pass"`
	Errors []string `json:"errors,omitempty"`
}

// RunResult holds the overall scenario run result.
type RunResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <scenario-file-or-dir>",
		Short: "Run YAML scenarios",
		Long: `Run YAML scenarios against a fresh in-memory store each.

Every scenario names its schema, drives the store through set, query,
write and expect steps, then checks its assertions. When a golden file
exists at golden/<name>.golden next to the scenario, the trace and final
state must match it byte for byte.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  omni run ./scenarios
  omni run ./scenarios --filter "kanban_*"
  omni run ./scenarios --update
  omni run ./scenarios/kanban_query.yaml --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarios(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")

	return cmd
}

func runScenarios(opts *RunOptions, path string, cmd *cobra.Command) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return NewExitError(ExitCommandError, fmt.Sprintf("scenarios not found: %s", path))
	}

	scenarioFiles, err := findScenarioFiles(path, opts.Filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to find scenarios", err)
	}

	if len(scenarioFiles) == 0 {
		if opts.Format == "json" {
			return outputRunJSON(cmd, RunResult{Scenarios: []ScenarioResult{}})
		}
		fmt.Fprintln(cmd.OutOrStdout(), "No scenarios found.")
		return nil
	}

	result := RunResult{
		Scenarios: make([]ScenarioResult, 0, len(scenarioFiles)),
		Total:     len(scenarioFiles),
	}
	for _, scenarioFile := range scenarioFiles {
		scenResult := runScenario(scenarioFile, opts)
		result.Scenarios = append(result.Scenarios, scenResult)

		if opts.Format != "json" {
			printScenarioResult(cmd, scenResult)
		}
		if scenResult.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
	}

	if opts.Format == "json" {
		return outputRunJSON(cmd, result)
	}
	return outputRunText(cmd, result)
}

// findScenarioFiles returns path itself when it is a file, or every YAML
// file under it whose base name matches filter.
func findScenarioFiles(path string, filter string) ([]string, error) {
	var files []string

	err := filepath.Walk(path, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		ext := filepath.Ext(p)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}

		if filter != "" {
			name := strings.TrimSuffix(filepath.Base(p), ext)
			matched, err := filepath.Match(filter, name)
			if err != nil {
				return fmt.Errorf("invalid filter pattern: %w", err)
			}
			if !matched {
				return nil
			}
		}

		files = append(files, p)
		return nil
	})

	return files, err
}

// runScenario executes a single scenario and returns the result.
func runScenario(scenarioFile string, opts *RunOptions) ScenarioResult {
	scenario, err := harness.LoadScenario(scenarioFile)
	if err != nil {
		return ScenarioResult{
			Name:   filepath.Base(scenarioFile),
			Errors: []string{fmt.Sprintf("failed to load scenario: %v", err)},
		}
	}

	result, err := harness.Run(scenario)
	if err != nil {
		return ScenarioResult{
			Name:   scenario.Name,
			Errors: []string{fmt.Sprintf("execution failed: %v", err)},
		}
	}

	snapshot, err := harness.Snapshot(scenario.Name, result)
	if err != nil {
		return ScenarioResult{
			Name:   scenario.Name,
			Errors: []string{fmt.Sprintf("snapshot failed: %v", err)},
		}
	}

	goldenPath := goldenFilePath(scenarioFile, scenario.Name)
	errs := result.Errors

	switch {
	case opts.Update:
		if err := writeGolden(goldenPath, snapshot); err != nil {
			errs = append(errs, fmt.Sprintf("%s: failed to update golden file: %v", ErrCodeWriteFailed, err))
		}
	default:
		golden, err := os.ReadFile(goldenPath)
		switch {
		case os.IsNotExist(err):
			// No golden file - assertion-based validation only
		case err != nil:
			errs = append(errs, fmt.Sprintf("failed to read golden file: %v", err))
		case !bytes.Equal(golden, snapshot):
			errs = append(errs, "golden file mismatch (run with --update to regenerate)")
		}
	}

	return ScenarioResult{
		Name:   scenario.Name,
		Pass:   len(errs) == 0,
		Errors: errs,
	}
}

// goldenFilePath returns the path to the golden file for a scenario.
func goldenFilePath(scenarioFile, name string) string {
	return filepath.Join(filepath.Dir(scenarioFile), "golden", name+".golden")
}

func writeGolden(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create golden directory: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

func printScenarioResult(cmd *cobra.Command, r ScenarioResult) {
	w := cmd.OutOrStdout()
	if r.Pass {
		fmt.Fprintf(w, "✓ %s\n", r.Name)
		return
	}
	fmt.Fprintf(w, "✗ %s\n", r.Name)
	for _, e := range r.Errors {
		fmt.Fprintf(w, "  %s\n", e)
	}
}

// outputRunJSON outputs the run result as JSON.
func outputRunJSON(cmd *cobra.Command, result RunResult) error {
	response := CLIResponse{
		Status: "ok",
		Data:   result,
	}
	if result.Failed > 0 {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    "E_SCENARIO_FAILED",
			Message: fmt.Sprintf("%d scenario(s) failed", result.Failed),
		}
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(response); err != nil {
		return err
	}

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}
	return nil
}

// outputRunText outputs the run summary as text.
func outputRunText(cmd *cobra.Command, result RunResult) error {
	w := cmd.OutOrStdout()

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Summary: %d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}

	fmt.Fprintln(w, "✓ All scenarios passed")
	return nil
}
