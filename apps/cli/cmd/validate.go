package cmd

import (
	"errors"
	"fmt"

	"github.com/abdul-hamid-achik/pagespec/packages/core/parser"
	"github.com/abdul-hamid-achik/pagespec/packages/suites/history"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate [file|directory...]",
	Short: "Validate pagespec files without running them",
	Long: `Validate *.pagespec.yaml files for syntax and schema errors without
starting a browser.

Without arguments the built-in conversation history suite is validated.

Examples:
  pagespec validate
  pagespec validate history.pagespec.yaml
  pagespec validate ./scenarios/`,
	ValidArgsFunction: scenarioArgs,
	RunE:              validateCommand,
}

var errValidation = errors.New("validation failed")

func validateCommand(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		if _, err := history.Suite(); err != nil {
			return withExit(ExitParseError, fmt.Errorf("built-in suite: %w", err))
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Valid: built-in %s\n", history.FileName)
		return nil
	}

	files, err := collectFiles(args)
	if err != nil {
		return withExit(ExitUsageError, err)
	}
	if len(files) == 0 {
		return withExit(ExitUsageError, errNoScenarioFiles)
	}

	hasErrors := false
	for _, file := range files {
		if _, err := parser.ParseFile(file); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error in %s: %v\n", file, err)
			hasErrors = true
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "Valid: %s\n", file)
		}
	}

	if hasErrors {
		return withExit(ExitParseError, errValidation)
	}
	return nil
}
