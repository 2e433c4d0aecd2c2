package output

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/abdul-hamid-achik/pagespec/packages/assertions"
	"github.com/abdul-hamid-achik/pagespec/packages/core/runner"
	"github.com/abdul-hamid-achik/pagespec/packages/stats"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func sampleResult() *runner.RunResult {
	failedAssertion := &assertions.Result{
		Subject:  ".card__body input:nth=0 value",
		Operator: "equals",
		Expected: "01.09.2023",
		Actual:   "",
		Message:  `expected "01.09.2023", got ""`,
	}
	return &runner.RunResult{
		RunID:    "run-1",
		File:     "history.pagespec.yaml",
		Suite:    "chat history",
		BaseURL:  "http://localhost:8080",
		Duration: 1500 * time.Millisecond,
		Passed:   2,
		Failed:   2,
		Skipped:  1,
		Flaky:    1,
		Stats: &stats.Summary{
			Attempts: 5,
			Percentiles: stats.Percentiles{
				P50: 200 * time.Millisecond,
				P95: 900 * time.Millisecond,
				Max: time.Second,
			},
		},
		Results: []*runner.ScenarioResult{
			{
				Name:     "dates round-trip",
				Status:   runner.StatusPassed,
				Attempts: 1,
				Duration: 120 * time.Millisecond,
				Steps: []*runner.StepResult{
					{Name: "goto /chat/history", Action: "goto", Hook: true},
					{Name: "fill .card__body input:nth=0", Action: "fill", Locator: ".card__body input:nth=0"},
				},
			},
			{
				Name:     "column filter",
				Status:   runner.StatusFlaky,
				Attempts: 2,
				Duration: 300 * time.Millisecond,
			},
			{
				Name:     "start date is kept",
				Status:   runner.StatusFailed,
				Attempts: 2,
				Duration: 800 * time.Millisecond,
				Failure:  runner.FailureAssertion,
				Error:    errors.New("step 2 (fill): value mismatch"),
				Steps: []*runner.StepResult{
					{
						Name:       "fill .card__body input:nth=0",
						Action:     "fill",
						Error:      errors.New("value mismatch"),
						Assertions: []*assertions.Result{failedAssertion},
					},
				},
				Artifacts: runner.Artifacts{
					Dir:        "test-results/start-date",
					Screenshot: "test-results/start-date/screenshot.png",
					Trace:      "test-results/start-date/trace.zip",
				},
				AttemptErrors: []error{errors.New("first"), errors.New("second")},
			},
			{
				Name:     "session fixture",
				Status:   runner.StatusFailed,
				Attempts: 1,
				Failure:  runner.FailurePrecondition,
				Error:    errors.New("session fixture: no session"),
			},
			{
				Name:       "search",
				Status:     runner.StatusSkipped,
				SkipReason: "condition not met: table rows count greaterThan 0 (got 0)",
			},
		},
	}
}

func TestConsoleFormatter(t *testing.T) {
	t.Run("scenario lines and summary", func(t *testing.T) {
		var buf bytes.Buffer
		f := NewConsoleFormatter(WithWriter(&buf), WithNoColor(true))
		f.FormatResult(sampleResult())
		out := buf.String()

		assert.Contains(t, out, "Running: chat history (history.pagespec.yaml)")
		assert.Contains(t, out, "✓ dates round-trip (120ms)")
		assert.Contains(t, out, "± column filter")
		assert.Contains(t, out, "flaky, passed on attempt 2")
		assert.Contains(t, out, "✗ start date is kept (800ms) after 2 attempts")
		assert.Contains(t, out, "assertion failure: step 2 (fill): value mismatch")
		assert.Contains(t, out, "precondition failure: session fixture: no session")
		assert.Contains(t, out, "- search (condition not met")
		assert.Contains(t, out, "attachment: test-results/start-date/screenshot.png")
		assert.Contains(t, out, "2 passed")
		assert.Contains(t, out, "1 flaky")
		assert.Contains(t, out, "2 failed")
		assert.Contains(t, out, "1 skipped")
		assert.Contains(t, out, "5 total")
		assert.Contains(t, out, "Attempts:  5 (p50 200ms, p95 900ms, max 1000ms)")
	})

	t.Run("failed steps are always listed", func(t *testing.T) {
		var buf bytes.Buffer
		f := NewConsoleFormatter(WithWriter(&buf), WithNoColor(true))
		f.FormatResult(sampleResult())
		out := buf.String()

		assert.Contains(t, out, "✗ fill .card__body input:nth=0")
		assert.Contains(t, out, `Expected: "01.09.2023"`)
		assert.NotContains(t, out, "before each goto /chat/history")
	})

	t.Run("print steps lists passing steps", func(t *testing.T) {
		var buf bytes.Buffer
		f := NewConsoleFormatter(WithWriter(&buf), WithNoColor(true), WithPrintSteps(true))
		f.FormatResult(sampleResult())

		assert.Contains(t, buf.String(), "✓ before each goto /chat/history")
	})

	t.Run("header and error", func(t *testing.T) {
		var buf bytes.Buffer
		f := NewConsoleFormatter(WithWriter(&buf), WithNoColor(true))
		f.FormatHeader("1.2.3")
		f.FormatError(errors.New("boom"))

		assert.Contains(t, buf.String(), "pagespec 1.2.3")
		assert.Contains(t, buf.String(), "Error: boom")
	})
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  string
	}{
		{"nil", nil, "<none>"},
		{"string", "abc", `"abc"`},
		{"long string", strings.Repeat("a", 12), `"aaaaaaaaaa"...`},
		{"number", 42, "42"},
		{"short list", []any{1, 2}, "[1 2]"},
		{"long list", []any{1, 2, 3, 4, 5, 6}, "[list with 6 items]"},
		{"object", map[string]any{"a": 1}, "{object with 1 keys}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatValue(tt.value, 10))
		})
	}
}

func TestJSONFormatter(t *testing.T) {
	var buf bytes.Buffer
	f := NewJSONFormatter(JSONWithWriter(&buf))
	f.FormatResult(sampleResult())
	require.NoError(t, f.Flush(2*time.Second))

	var out JSONOutput
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))

	assert.Equal(t, JSONSummary{Total: 5, Passed: 2, Failed: 2, Skipped: 1, Flaky: 1}, out.Summary)
	assert.Equal(t, float64(2000), out.Duration)
	require.Len(t, out.Tests, 5)

	failed := out.Tests[2]
	assert.Equal(t, "failed", failed.Status)
	assert.Equal(t, "assertion", failed.Failure)
	assert.Equal(t, 2, failed.Attempts)
	require.Len(t, failed.Steps, 1)
	assert.False(t, failed.Steps[0].Passed)
	require.Len(t, failed.Steps[0].Assertions, 1)
	assert.Equal(t, "01.09.2023", failed.Steps[0].Assertions[0].Expected)
	require.NotNil(t, failed.Artifacts)
	assert.Equal(t, "test-results/start-date/trace.zip", failed.Artifacts.Trace)

	assert.Equal(t, "flaky", out.Tests[1].Status)
	assert.True(t, out.Tests[0].Steps[0].Hook)
	assert.Equal(t, "skipped", out.Tests[4].Status)
	assert.NotEmpty(t, out.Tests[4].SkipReason)
}

func TestJUnitFormatter(t *testing.T) {
	var buf bytes.Buffer
	f := NewJUnitFormatter(JUnitWithWriter(&buf))
	f.FormatResult(sampleResult())
	require.NoError(t, f.Flush(2*time.Second))

	out := buf.String()
	require.True(t, strings.HasPrefix(out, `<?xml version="1.0" encoding="UTF-8"?>`))

	var suites JUnitTestSuites
	require.NoError(t, xml.Unmarshal(buf.Bytes(), &suites))

	assert.Equal(t, "pagespec", suites.Name)
	assert.Equal(t, 5, suites.Tests)
	assert.Equal(t, 1, suites.Failures)
	assert.Equal(t, 1, suites.Errors)
	assert.Equal(t, 1, suites.Skipped)
	require.Len(t, suites.TestSuites, 1)

	cases := suites.TestSuites[0].TestCases
	require.Len(t, cases, 5)
	assert.Equal(t, "chat history", suites.TestSuites[0].Name)
	assert.Nil(t, cases[0].Failure)
	assert.Contains(t, cases[1].SystemOut, "flaky")
	require.NotNil(t, cases[2].Failure)
	assert.Equal(t, "assertion", cases[2].Failure.Type)
	assert.Contains(t, cases[2].Failure.Content, "attempt 1: first")
	assert.Contains(t, cases[2].Failure.Content, "[[ATTACHMENT|test-results/start-date/screenshot.png]]")
	require.NotNil(t, cases[3].Error)
	assert.Equal(t, "precondition", cases[3].Error.Type)
	require.NotNil(t, cases[4].Skipped)
}

func TestTAPFormatter(t *testing.T) {
	var buf bytes.Buffer
	f := NewTAPFormatter(TAPWithWriter(&buf))
	f.FormatResult(sampleResult())
	require.NoError(t, f.Flush(time.Second))

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "TAP version 13\n1..5\n"))
	assert.Contains(t, out, "ok 1 - dates round-trip\n")
	assert.Contains(t, out, "ok 2 - column filter\n  ---\n  flaky: true\n  attempts: 2\n")
	assert.Contains(t, out, "not ok 3 - start date is kept\n")
	assert.Contains(t, out, "  failure: assertion\n")
	assert.Contains(t, out, "not ok 4 - session fixture\n")
	assert.Contains(t, out, "ok 5 - search # SKIP condition not met")
}

func TestTAPFormatter_DiagnosticIsYAML(t *testing.T) {
	var buf bytes.Buffer
	f := NewTAPFormatter(TAPWithWriter(&buf))
	f.FormatResult(&runner.RunResult{Results: []*runner.ScenarioResult{{
		Name:     "quoted",
		Status:   runner.StatusFailed,
		Attempts: 1,
		Failure:  runner.FailureLocator,
		Error:    errors.New(`locator "div.select__trigger:has-text('Vali')": not found`),
	}}})
	require.NoError(t, f.Flush(time.Second))

	out := buf.String()
	start := strings.Index(out, "  ---\n")
	end := strings.Index(out, "  ...\n")
	require.True(t, start >= 0 && end > start, out)

	var d tapDiagnostic
	require.NoError(t, yaml.Unmarshal([]byte(out[start+len("  ---\n"):end]), &d))
	assert.Equal(t, `locator "div.select__trigger:has-text('Vali')": not found`, d.Message)
	assert.Equal(t, "locator", d.Failure)
	assert.Equal(t, 1, d.Attempts)
}

func TestHTMLFormatter(t *testing.T) {
	var buf bytes.Buffer
	reportDir := filepath.Join("playwright-report")
	f := NewHTMLFormatter(HTMLWithWriter(&buf), HTMLWithReportDir(reportDir))
	f.FormatHeader("1.2.3")
	f.FormatResult(sampleResult())
	require.NoError(t, f.Flush(time.Second))

	out := buf.String()
	assert.Contains(t, out, "<title>pagespec report</title>")
	assert.Contains(t, out, "pagespec 1.2.3")
	assert.Contains(t, out, "5 total")
	assert.Contains(t, out, "1 flaky")
	assert.Contains(t, out, "start date is kept")
	assert.Contains(t, out, "assertion failure: step 2 (fill): value mismatch")
	assert.Contains(t, out, `src="../test-results/start-date/screenshot.png"`)
	assert.Contains(t, out, `href="../test-results/start-date/trace.zip"`)
	assert.Contains(t, out, "2 attempts")
}

func TestHTMLFormatter_Escapes(t *testing.T) {
	var buf bytes.Buffer
	f := NewHTMLFormatter(HTMLWithWriter(&buf))
	f.FormatResult(&runner.RunResult{
		File: "x.pagespec.yaml",
		Results: []*runner.ScenarioResult{
			{Name: "<script>alert(1)</script>", Status: runner.StatusPassed, Attempts: 1},
		},
	})
	require.NoError(t, f.Flush(0))

	assert.NotContains(t, buf.String(), "<script>alert(1)</script>")
	assert.Contains(t, buf.String(), "&lt;script&gt;")
}

type recordingFormatter struct {
	headers []string
	results int
	errs    []error
	flushed bool
	fail    error
}

func (r *recordingFormatter) FormatResult(*runner.RunResult) { r.results++ }
func (r *recordingFormatter) FormatError(err error)          { r.errs = append(r.errs, err) }
func (r *recordingFormatter) FormatHeader(v string)          { r.headers = append(r.headers, v) }
func (r *recordingFormatter) Flush(time.Duration) error {
	r.flushed = true
	return r.fail
}

type plainFormatter struct{ results int }

func (p *plainFormatter) FormatResult(*runner.RunResult) { p.results++ }
func (p *plainFormatter) FormatError(error)              {}
func (p *plainFormatter) FormatHeader(string)            {}

func TestMulti(t *testing.T) {
	first := &recordingFormatter{fail: errors.New("disk full")}
	second := &recordingFormatter{}
	plain := &plainFormatter{}

	m := NewMulti(first, plain)
	m.Add(second)
	assert.Equal(t, 3, m.Len())

	m.FormatHeader("v1")
	m.FormatResult(&runner.RunResult{})
	m.FormatError(errors.New("oops"))

	err := m.Flush(time.Second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")

	for _, r := range []*recordingFormatter{first, second} {
		assert.Equal(t, []string{"v1"}, r.headers)
		assert.Equal(t, 1, r.results)
		assert.Len(t, r.errs, 1)
		assert.True(t, r.flushed)
	}
	assert.Equal(t, 1, plain.results)
}

func TestOpenCommand(t *testing.T) {
	tests := []struct {
		goos string
		want string
	}{
		{"darwin", "open"},
		{"windows", "rundll32"},
		{"linux", "xdg-open"},
	}
	for _, tt := range tests {
		t.Run(tt.goos, func(t *testing.T) {
			cmd := OpenCommand(tt.goos, "report/index.html")
			assert.Equal(t, tt.want, filepath.Base(cmd.Args[0]))
			assert.Equal(t, "report/index.html", cmd.Args[len(cmd.Args)-1])
		})
	}
}
