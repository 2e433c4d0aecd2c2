package output

import (
	"fmt"
	"io"
	"os"

	"github.com/abdul-hamid-achik/pagespec/packages/core/runner"
	"github.com/fatih/color"
)

// formatValue formats a value for display, truncating or summarizing large values
func formatValue(v any, maxLen int) string {
	switch val := v.(type) {
	case nil:
		return "<none>"
	case []any:
		if len(val) <= 5 {
			break
		}
		return fmt.Sprintf("[list with %d items]", len(val))
	case map[string]any:
		return fmt.Sprintf("{object with %d keys}", len(val))
	case string:
		if len(val) > maxLen {
			return fmt.Sprintf("%q...", val[:maxLen])
		}
		return fmt.Sprintf("%q", val)
	}
	str := fmt.Sprintf("%v", v)
	if len(str) > maxLen {
		return str[:maxLen] + "..."
	}
	return str
}

// ConsoleFormatter is the "list" reporter: one line per scenario and,
// with printSteps, one line per step.
type ConsoleFormatter struct {
	writer     io.Writer
	verbose    bool
	noColor    bool
	printSteps bool
}

type ConsoleOption func(*ConsoleFormatter)

func NewConsoleFormatter(opts ...ConsoleOption) *ConsoleFormatter {
	f := &ConsoleFormatter{
		writer: os.Stdout,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.noColor {
		color.NoColor = true
	}
	return f
}

func WithWriter(w io.Writer) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.writer = w
	}
}

func WithVerbose(v bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.verbose = v
	}
}

func WithNoColor(nc bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.noColor = nc
	}
}

// WithPrintSteps lists every step under its scenario.
func WithPrintSteps(p bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.printSteps = p
	}
}

func (f *ConsoleFormatter) FormatResult(result *runner.RunResult) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()
	faint := color.New(color.Faint).SprintFunc()
	bold := color.New(color.Bold).SprintFunc()

	title := result.File
	if result.Suite != "" {
		title = fmt.Sprintf("%s (%s)", result.Suite, result.File)
	}
	fmt.Fprintf(f.writer, "\n%s\n", bold("Running: "+title))
	if f.verbose && result.BaseURL != "" {
		fmt.Fprintf(f.writer, "%s\n", faint("Base URL: "+result.BaseURL))
	}
	fmt.Fprintf(f.writer, "\n")

	for _, r := range result.Results {
		switch r.Status {
		case runner.StatusSkipped:
			fmt.Fprintf(f.writer, "  %s %s", yellow("-"), r.Name)
			if r.SkipReason != "" && r.SkipReason != "filtered out" {
				fmt.Fprintf(f.writer, " %s", yellow(fmt.Sprintf("(%s)", r.SkipReason)))
			}
			fmt.Fprintf(f.writer, "\n")
			continue
		case runner.StatusPassed:
			fmt.Fprintf(f.writer, "  %s %s %s\n", green("✓"), r.Name, cyan(fmt.Sprintf("(%dms)", r.Duration.Milliseconds())))
		case runner.StatusFlaky:
			fmt.Fprintf(f.writer, "  %s %s %s %s\n", yellow("±"), r.Name,
				cyan(fmt.Sprintf("(%dms)", r.Duration.Milliseconds())),
				yellow(fmt.Sprintf("flaky, passed on attempt %d", r.Attempts)))
		case runner.StatusFailed:
			line := fmt.Sprintf("  %s %s %s", red("✗"), r.Name, cyan(fmt.Sprintf("(%dms)", r.Duration.Milliseconds())))
			if r.Attempts > 1 {
				line += red(fmt.Sprintf(" after %d attempts", r.Attempts))
			}
			fmt.Fprintln(f.writer, line)
		}

		if f.printSteps || r.Status == runner.StatusFailed {
			f.formatSteps(r)
		}

		if r.Status == runner.StatusFailed && r.Error != nil {
			fmt.Fprintf(f.writer, "    %s %v\n", red(r.Failure.String()+" failure:"), r.Error)
		}

		if !r.Artifacts.Empty() && (r.Status == runner.StatusFailed || f.verbose) {
			for _, path := range []string{r.Artifacts.Screenshot, r.Artifacts.Video, r.Artifacts.Trace} {
				if path != "" {
					fmt.Fprintf(f.writer, "    %s %s\n", faint("attachment:"), path)
				}
			}
		}
	}

	fmt.Fprintf(f.writer, "\n")
	fmt.Fprintf(f.writer, "Scenarios: ")
	if result.Passed > 0 {
		fmt.Fprintf(f.writer, "%s, ", green(fmt.Sprintf("%d passed", result.Passed)))
	}
	if result.Flaky > 0 {
		fmt.Fprintf(f.writer, "%s, ", yellow(fmt.Sprintf("%d flaky", result.Flaky)))
	}
	if result.Failed > 0 {
		fmt.Fprintf(f.writer, "%s, ", red(fmt.Sprintf("%d failed", result.Failed)))
	}
	if result.Skipped > 0 {
		fmt.Fprintf(f.writer, "%s, ", yellow(fmt.Sprintf("%d skipped", result.Skipped)))
	}
	total := result.Passed + result.Failed + result.Skipped
	fmt.Fprintf(f.writer, "%d total\n", total)
	fmt.Fprintf(f.writer, "Time:      %dms\n", result.Duration.Milliseconds())
	if s := result.Stats; s != nil && s.Attempts > 0 {
		fmt.Fprintf(f.writer, "Attempts:  %d (p50 %dms, p95 %dms, max %dms)\n",
			s.Attempts, s.P50.Milliseconds(), s.P95.Milliseconds(), s.Max.Milliseconds())
	}
	fmt.Fprintf(f.writer, "\n")
}

// formatSteps prints the steps of the last attempt. The failing step also
// lists its failed assertion.
func (f *ConsoleFormatter) formatSteps(r *runner.ScenarioResult) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	faint := color.New(color.Faint).SprintFunc()

	for _, st := range r.Steps {
		symbol := green("✓")
		if !st.Passed() {
			symbol = red("✗")
		}
		name := st.Name
		if st.Hook {
			name = faint("before each") + " " + name
		}
		fmt.Fprintf(f.writer, "      %s %s %s\n", symbol, name, faint(fmt.Sprintf("(%dms)", st.Duration.Milliseconds())))

		if st.Passed() && !f.verbose {
			continue
		}
		for _, a := range st.Assertions {
			if a.Passed && !f.verbose {
				continue
			}
			mark := green("→")
			if !a.Passed {
				mark = red("→")
			}
			fmt.Fprintf(f.writer, "        %s %s %s\n", mark, a.Subject, a.Operator)
			if a.Expected != nil {
				fmt.Fprintf(f.writer, "          Expected: %s\n", formatValue(a.Expected, 100))
			}
			fmt.Fprintf(f.writer, "          Actual:   %s\n", formatValue(a.Actual, 100))
			if a.Message != "" && !a.Passed {
				fmt.Fprintf(f.writer, "          %s\n", a.Message)
			}
		}
	}
}

func (f *ConsoleFormatter) FormatError(err error) {
	red := color.New(color.FgRed).SprintFunc()
	fmt.Fprintf(f.writer, "%s %v\n", red("Error:"), err)
}

func (f *ConsoleFormatter) FormatHeader(version string) {
	bold := color.New(color.Bold).SprintFunc()
	fmt.Fprintf(f.writer, "%s %s\n", bold("pagespec"), version)
}
