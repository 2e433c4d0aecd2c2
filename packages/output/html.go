package output

import (
	"fmt"
	"html/template"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/abdul-hamid-achik/pagespec/packages/core/runner"
)

// HTMLOutput represents the complete HTML output structure
type HTMLOutput struct {
	Version        string
	Summary        HTMLSummary
	Tests          []HTMLTest
	Duration       float64
	Time           string
	PassedPercent  float64
	FailedPercent  float64
	SkippedPercent float64
}

// HTMLSummary represents the test summary for HTML output
type HTMLSummary struct {
	Total   int
	Passed  int
	Failed  int
	Skipped int
	Flaky   int
}

// HTMLTest represents a single scenario result for HTML output
type HTMLTest struct {
	Name        string
	Description string
	File        string
	Status      string
	SkipReason  string
	Attempts    int
	Duration    float64
	Failure     string
	Error       string
	Steps       []HTMLStep
	Attachments []HTMLAttachment
}

// HTMLStep represents one step of the last attempt
type HTMLStep struct {
	Name       string
	Hook       bool
	Passed     bool
	Duration   float64
	Error      string
	Assertions []HTMLAssertion
}

// HTMLAssertion represents an assertion result for HTML output
type HTMLAssertion struct {
	Subject     string
	Operator    string
	ExpectedStr string
	ActualStr   string
	Passed      bool
	Message     string
}

// HTMLAttachment links a screenshot, video or trace
type HTMLAttachment struct {
	Kind  string
	Href  string
	Image bool
}

// HTMLFormatter formats test results as HTML
type HTMLFormatter struct {
	writer    io.Writer
	reportDir string
	results   []HTMLTest
	version   string
}

// HTMLOption is a functional option for HTMLFormatter
type HTMLOption func(*HTMLFormatter)

// NewHTMLFormatter creates a new HTML formatter
func NewHTMLFormatter(opts ...HTMLOption) *HTMLFormatter {
	f := &HTMLFormatter{
		writer:  os.Stdout,
		results: make([]HTMLTest, 0),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// HTMLWithWriter sets the output writer
func HTMLWithWriter(w io.Writer) HTMLOption {
	return func(f *HTMLFormatter) {
		f.writer = w
	}
}

// HTMLWithReportDir makes attachment links relative to the report directory.
func HTMLWithReportDir(dir string) HTMLOption {
	return func(f *HTMLFormatter) {
		f.reportDir = dir
	}
}

// FormatResult accumulates a test result
func (f *HTMLFormatter) FormatResult(result *runner.RunResult) {
	for _, r := range result.Results {
		test := HTMLTest{
			Name:        r.Name,
			Description: r.Description,
			File:        result.File,
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
			step := HTMLStep{
				Name:     st.Name,
				Hook:     st.Hook,
				Passed:   st.Passed(),
				Duration: float64(st.Duration.Milliseconds()),
			}
			if st.Error != nil {
				step.Error = st.Error.Error()
			}
			for _, a := range st.Assertions {
				step.Assertions = append(step.Assertions, HTMLAssertion{
					Subject:     a.Subject,
					Operator:    a.Operator,
					ExpectedStr: formatValue(a.Expected, 200),
					ActualStr:   formatValue(a.Actual, 200),
					Passed:      a.Passed,
					Message:     a.Message,
				})
			}
			test.Steps = append(test.Steps, step)
		}

		if r.Artifacts.Screenshot != "" {
			test.Attachments = append(test.Attachments, HTMLAttachment{Kind: "screenshot", Href: f.link(r.Artifacts.Screenshot), Image: true})
		}
		if r.Artifacts.Video != "" {
			test.Attachments = append(test.Attachments, HTMLAttachment{Kind: "video", Href: f.link(r.Artifacts.Video)})
		}
		if r.Artifacts.Trace != "" {
			test.Attachments = append(test.Attachments, HTMLAttachment{Kind: "trace", Href: f.link(r.Artifacts.Trace)})
		}

		f.results = append(f.results, test)
	}
}

func (f *HTMLFormatter) link(path string) string {
	if f.reportDir == "" {
		return filepath.ToSlash(path)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	dir, err := filepath.Abs(f.reportDir)
	if err != nil {
		return filepath.ToSlash(path)
	}
	rel, err := filepath.Rel(dir, abs)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

// FormatError handles errors (no-op for HTML, errors are in test results)
func (f *HTMLFormatter) FormatError(err error) {
	// Errors are included in individual test results
}

// FormatHeader captures the version for the HTML report
func (f *HTMLFormatter) FormatHeader(version string) {
	f.version = version
}

// Flush writes the accumulated HTML output
func (f *HTMLFormatter) Flush(totalDuration time.Duration) error {
	var summary HTMLSummary
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

	var passedPct, failedPct, skippedPct float64
	if summary.Total > 0 {
		total := float64(summary.Total)
		passedPct = float64(summary.Passed) / total * 100
		failedPct = float64(summary.Failed) / total * 100
		skippedPct = float64(summary.Skipped) / total * 100
	}

	output := HTMLOutput{
		Version:        f.version,
		Summary:        summary,
		Tests:          f.results,
		Duration:       float64(totalDuration.Milliseconds()),
		Time:           time.Now().Format("2006-01-02 15:04:05"),
		PassedPercent:  passedPct,
		FailedPercent:  failedPct,
		SkippedPercent: skippedPct,
	}

	tmpl, err := template.New("report").Parse(htmlTemplate)
	if err != nil {
		return fmt.Errorf("failed to parse HTML template: %w", err)
	}

	return tmpl.Execute(f.writer, output)
}

const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>pagespec report</title>
<style>
body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", sans-serif; margin: 2rem; color: #222; }
h1 { font-size: 1.4rem; margin-bottom: 0.2rem; }
.meta { color: #777; font-size: 0.85rem; }
.bar { display: flex; height: 8px; border-radius: 4px; overflow: hidden; margin: 1rem 0; background: #eee; }
.bar .passed { background: #2e7d32; }
.bar .failed { background: #c62828; }
.bar .skipped { background: #f9a825; }
.counts span { margin-right: 1rem; }
details { border: 1px solid #ddd; border-radius: 4px; margin: 0.5rem 0; padding: 0.4rem 0.8rem; }
summary { cursor: pointer; }
.status { display: inline-block; min-width: 4.5rem; font-weight: 600; }
.status.passed { color: #2e7d32; }
.status.failed { color: #c62828; }
.status.skipped { color: #f9a825; }
.status.flaky { color: #ef6c00; }
.steps { list-style: none; padding-left: 1rem; }
.steps li.fail { color: #c62828; }
.hook { color: #777; }
.error { white-space: pre-wrap; background: #fdecea; padding: 0.5rem; border-radius: 4px; }
table.assertions { border-collapse: collapse; margin: 0.3rem 0 0.3rem 1.5rem; font-size: 0.85rem; }
table.assertions td { padding: 0.1rem 0.6rem; border-bottom: 1px solid #eee; }
img.screenshot { max-width: 640px; border: 1px solid #ddd; margin-top: 0.5rem; }
</style>
</head>
<body>
<h1>pagespec report</h1>
<div class="meta">{{if .Version}}pagespec {{.Version}} · {{end}}{{.Time}} · {{printf "%.0f" .Duration}}ms</div>
<div class="bar">
<div class="passed" style="width: {{printf "%.2f" .PassedPercent}}%"></div>
<div class="failed" style="width: {{printf "%.2f" .FailedPercent}}%"></div>
<div class="skipped" style="width: {{printf "%.2f" .SkippedPercent}}%"></div>
</div>
<div class="counts">
<span>{{.Summary.Total}} total</span>
<span class="status passed">{{.Summary.Passed}} passed</span>
<span class="status failed">{{.Summary.Failed}} failed</span>
<span class="status flaky">{{.Summary.Flaky}} flaky</span>
<span class="status skipped">{{.Summary.Skipped}} skipped</span>
</div>
{{range .Tests}}
<details{{if eq .Status "failed"}} open{{end}}>
<summary><span class="status {{.Status}}">{{.Status}}</span> {{.Name}} <span class="meta">{{.File}} · {{printf "%.0f" .Duration}}ms{{if gt .Attempts 1}} · {{.Attempts}} attempts{{end}}</span></summary>
{{if .Description}}<p class="meta">{{.Description}}</p>{{end}}
{{if .SkipReason}}<p class="meta">skipped: {{.SkipReason}}</p>{{end}}
{{if .Error}}<div class="error">{{.Failure}} failure: {{.Error}}</div>{{end}}
{{if .Steps}}<ul class="steps">
{{range .Steps}}<li class="{{if .Passed}}pass{{else}}fail{{end}}">{{if .Passed}}✓{{else}}✗{{end}} {{if .Hook}}<span class="hook">before each</span> {{end}}{{.Name}} <span class="meta">{{printf "%.0f" .Duration}}ms</span>
{{if .Assertions}}<table class="assertions">
{{range .Assertions}}<tr><td>{{if .Passed}}✓{{else}}✗{{end}}</td><td>{{.Subject}}</td><td>{{.Operator}}</td><td>{{.ExpectedStr}}</td><td>{{.ActualStr}}</td><td>{{.Message}}</td></tr>
{{end}}</table>{{end}}</li>
{{end}}</ul>{{end}}
{{range .Attachments}}<div><a href="{{.Href}}">{{.Kind}}</a>{{if .Image}}<br><img class="screenshot" src="{{.Href}}" alt="{{.Kind}}">{{end}}</div>
{{end}}
</details>
{{end}}
</body>
</html>
`
