package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/pagespec/packages/core/runner"
	"gopkg.in/yaml.v3"
)

// TAPFormatter formats test results in TAP (Test Anything Protocol) format
type TAPFormatter struct {
	writer    io.Writer
	testCount int
	results   []tapResult
}

type tapResult struct {
	number     int
	name       string
	status     runner.Status
	skipReason string
	failure    string
	error      string
	attempts   int
	assertions []string
	artifacts  string
}

type TAPOption func(*TAPFormatter)

func NewTAPFormatter(opts ...TAPOption) *TAPFormatter {
	f := &TAPFormatter{
		writer:  os.Stdout,
		results: make([]tapResult, 0),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func TAPWithWriter(w io.Writer) TAPOption {
	return func(f *TAPFormatter) {
		f.writer = w
	}
}

func (f *TAPFormatter) FormatResult(result *runner.RunResult) {
	for _, r := range result.Results {
		f.testCount++
		tr := tapResult{
			number:     f.testCount,
			name:       r.Name,
			status:     r.Status,
			skipReason: r.SkipReason,
			attempts:   r.Attempts,
			artifacts:  r.Artifacts.Dir,
		}

		if r.Error != nil {
			tr.error = r.Error.Error()
			tr.failure = r.Failure.String()
		}

		for _, st := range r.Steps {
			for _, a := range st.Assertions {
				if !a.Passed {
					tr.assertions = append(tr.assertions, fmt.Sprintf(
						"%s %s: expected %v, got %v",
						a.Subject, a.Operator, a.Expected, a.Actual))
				}
			}
		}

		f.results = append(f.results, tr)
	}
}

func (f *TAPFormatter) FormatError(err error) {
	// Errors are included in individual test results
}

func (f *TAPFormatter) FormatHeader(version string) {
	// Header is written in Flush
}

// tapDiagnostic is the YAML block TAP 13 allows below a test line.
type tapDiagnostic struct {
	Message   string   `yaml:"message,omitempty"`
	Failure   string   `yaml:"failure,omitempty"`
	Flaky     bool     `yaml:"flaky,omitempty"`
	Attempts  int      `yaml:"attempts,omitempty"`
	Failures  []string `yaml:"failures,omitempty"`
	Artifacts string   `yaml:"artifacts,omitempty"`
}

// Flush writes the accumulated TAP output
func (f *TAPFormatter) Flush(totalDuration time.Duration) error {
	fmt.Fprintf(f.writer, "TAP version 13\n")
	fmt.Fprintf(f.writer, "1..%d\n", f.testCount)

	for _, r := range f.results {
		switch r.status {
		case runner.StatusSkipped:
			reason := r.skipReason
			if reason == "" || reason == "filtered out" {
				reason = "SKIP"
			}
			fmt.Fprintf(f.writer, "ok %d - %s # SKIP %s\n", r.number, r.name, reason)
		case runner.StatusFlaky:
			fmt.Fprintf(f.writer, "ok %d - %s\n", r.number, r.name)
			if err := f.diagnostic(tapDiagnostic{Flaky: true, Attempts: r.attempts}); err != nil {
				return err
			}
		case runner.StatusFailed:
			fmt.Fprintf(f.writer, "not ok %d - %s\n", r.number, r.name)
			err := f.diagnostic(tapDiagnostic{
				Message:   r.error,
				Failure:   r.failure,
				Attempts:  r.attempts,
				Failures:  r.assertions,
				Artifacts: r.artifacts,
			})
			if err != nil {
				return err
			}
		default:
			fmt.Fprintf(f.writer, "ok %d - %s\n", r.number, r.name)
		}
	}

	fmt.Fprintf(f.writer, "# %s\n", totalDuration.Round(time.Millisecond))
	return nil
}

func (f *TAPFormatter) diagnostic(d tapDiagnostic) error {
	data, err := yaml.Marshal(d)
	if err != nil {
		return fmt.Errorf("encoding TAP diagnostic: %w", err)
	}
	fmt.Fprintf(f.writer, "  ---\n")
	for _, line := range strings.Split(strings.TrimRight(string(data), "\n"), "\n") {
		fmt.Fprintf(f.writer, "  %s\n", line)
	}
	fmt.Fprintf(f.writer, "  ...\n")
	return nil
}
