package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/abdul-hamid-achik/pagespec/packages/core/parser"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list [file|directory...]",
	Short: "List all scenarios in pagespec files",
	Long: `List all scenarios defined in *.pagespec.yaml files.

Without arguments the built-in conversation history suite is listed.

Examples:
  pagespec list
  pagespec list history.pagespec.yaml
  pagespec list ./scenarios/`,
	ValidArgsFunction: scenarioArgs,
	RunE:              listCommand,
}

func listCommand(cmd *cobra.Command, args []string) error {
	suites, err := loadSuites(args)
	if err != nil {
		return withExit(ExitParseError, err)
	}

	for _, suite := range suites {
		printSuite(cmd.OutOrStdout(), suite)
	}
	return nil
}

func printSuite(w io.Writer, suite *parser.Suite) {
	title := suite.Name
	if suite.Path != "" {
		title = fmt.Sprintf("%s (%s)", suite.Name, suite.Path)
	}
	fmt.Fprintf(w, "%s:\n", title)

	for _, sc := range suite.Scenarios {
		var marks []string
		if sc.Only {
			marks = append(marks, "only")
		}
		if sc.Skip != "" {
			marks = append(marks, "skip: "+sc.Skip)
		}
		if len(sc.SkipUnless) > 0 {
			marks = append(marks, "conditional")
		}

		line := "  - " + sc.Name
		if len(marks) > 0 {
			line += " [" + strings.Join(marks, ", ") + "]"
		}
		fmt.Fprintln(w, line)

		if tags := append(append([]string{}, suite.Tags...), sc.Tags...); len(tags) > 0 {
			fmt.Fprintf(w, "    tags: %s\n", strings.Join(tags, ", "))
		}
	}
	fmt.Fprintln(w)
}
