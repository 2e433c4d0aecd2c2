package output

import (
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/abdul-hamid-achik/pagespec/packages/core/runner"
)

// JSONOutput represents the complete JSON output structure
type JSONOutput struct {
	Summary  JSONSummary `json:"summary"`
	Tests    []JSONTest  `json:"tests"`
	Duration float64     `json:"duration"`
	Time     string      `json:"time"`
}

// JSONSummary represents the test summary
type JSONSummary struct {
	Total   int `json:"total"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
	Flaky   int `json:"flaky"`
}

// JSONTest represents a single scenario result
type JSONTest struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	File        string          `json:"file"`
	Suite       string          `json:"suite,omitempty"`
	Tags        []string        `json:"tags,omitempty"`
	Status      string          `json:"status"`
	SkipReason  string          `json:"skipReason,omitempty"`
	Attempts    int             `json:"attempts"`
	Duration    float64         `json:"duration"`
	Failure     string          `json:"failure,omitempty"`
	Error       string          `json:"error,omitempty"`
	Steps       []JSONStep      `json:"steps,omitempty"`
	Artifacts   *JSONArtifacts  `json:"artifacts,omitempty"`
}

// JSONStep represents one step of the last attempt
type JSONStep struct {
	Name       string          `json:"name"`
	Action     string          `json:"action"`
	Locator    string          `json:"locator,omitempty"`
	Hook       bool            `json:"hook,omitempty"`
	Passed     bool            `json:"passed"`
	Duration   float64         `json:"duration"`
	Error      string          `json:"error,omitempty"`
	Assertions []JSONAssertion `json:"assertions,omitempty"`
}

// JSONAssertion represents an assertion result
type JSONAssertion struct {
	Subject  string `json:"subject"`
	Operator string `json:"operator"`
	Expected any    `json:"expected"`
	Actual   any    `json:"actual"`
	Passed   bool   `json:"passed"`
	Message  string `json:"message,omitempty"`
}

type JSONArtifacts struct {
	Screenshot string `json:"screenshot,omitempty"`
	Video      string `json:"video,omitempty"`
	Trace      string `json:"trace,omitempty"`
}

// JSONFormatter formats test results as JSON
type JSONFormatter struct {
	writer  io.Writer
	results []JSONTest
}

type JSONOption func(*JSONFormatter)

func NewJSONFormatter(opts ...JSONOption) *JSONFormatter {
	f := &JSONFormatter{
		writer:  os.Stdout,
		results: make([]JSONTest, 0),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func JSONWithWriter(w io.Writer) JSONOption {
	return func(f *JSONFormatter) {
		f.writer = w
	}
}

func (f *JSONFormatter) FormatResult(result *runner.RunResult) {
	for _, r := range result.Results {
		f.results = append(f.results, jsonTest(result, r))
	}
}

func jsonTest(result *runner.RunResult, r *runner.ScenarioResult) JSONTest {
	test := JSONTest{
		Name:        r.Name,
		Description: r.Description,
		File:        result.File,
		Suite:       result.Suite,
		Tags:        r.Tags,
		Status:      r.Status.String(),
		Attempts:    r.Attempts,
		Duration:    float64(r.Duration.Milliseconds()),
	}

	if r.SkipReason != "" && r.SkipReason != "filtered out" {
		test.SkipReason = r.SkipReason
	}

	if r.Error != nil {
		test.Error = r.Error.Error()
		test.Failure = r.Failure.String()
	}

	for _, st := range r.Steps {
		step := JSONStep{
			Name:     st.Name,
			Action:   st.Action,
			Locator:  st.Locator,
			Hook:     st.Hook,
			Passed:   st.Passed(),
			Duration: float64(st.Duration.Milliseconds()),
		}
		if st.Error != nil {
			step.Error = st.Error.Error()
		}
		for _, a := range st.Assertions {
			step.Assertions = append(step.Assertions, JSONAssertion{
				Subject:  a.Subject,
				Operator: a.Operator,
				Expected: a.Expected,
				Actual:   a.Actual,
				Passed:   a.Passed,
				Message:  a.Message,
			})
		}
		test.Steps = append(test.Steps, step)
	}

	if !r.Artifacts.Empty() {
		test.Artifacts = &JSONArtifacts{
			Screenshot: r.Artifacts.Screenshot,
			Video:      r.Artifacts.Video,
			Trace:      r.Artifacts.Trace,
		}
	}
	return test
}

func (f *JSONFormatter) FormatError(err error) {
	// Errors are included in individual test results
}

func (f *JSONFormatter) FormatHeader(version string) {
	// No header needed for JSON output
}

// Flush writes the accumulated JSON output
func (f *JSONFormatter) Flush(totalDuration time.Duration) error {
	var summary JSONSummary
	for _, t := range f.results {
		switch t.Status {
		case runner.StatusSkipped.String():
			summary.Skipped++
		case runner.StatusFailed.String():
			summary.Failed++
		case runner.StatusFlaky.String():
			summary.Flaky++
			summary.Passed++
		default:
			summary.Passed++
		}
	}
	summary.Total = len(f.results)

	output := JSONOutput{
		Summary:  summary,
		Tests:    f.results,
		Duration: float64(totalDuration.Milliseconds()),
		Time:     time.Now().Format(time.RFC3339),
	}

	encoder := json.NewEncoder(f.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(output)
}
