package runner

import (
	"time"

	"github.com/abdul-hamid-achik/pagespec/packages/assertions"
	"github.com/abdul-hamid-achik/pagespec/packages/stats"
)

type Status int

const (
	StatusPassed Status = iota
	StatusFailed
	StatusSkipped
	// StatusFlaky is a pass on a retry after a failed attempt. It counts as passed.
	StatusFlaky
)

func (s Status) String() string {
	switch s {
	case StatusPassed:
		return "passed"
	case StatusFailed:
		return "failed"
	case StatusSkipped:
		return "skipped"
	case StatusFlaky:
		return "flaky"
	default:
		return "unknown"
	}
}

// OK reports whether the status does not fail the run.
func (s Status) OK() bool {
	return s != StatusFailed
}

type RunResult struct {
	RunID    string
	File     string
	Suite    string
	BaseURL  string
	Results  []*ScenarioResult
	Duration time.Duration
	Passed   int
	Failed   int
	Skipped  int
	Flaky    int
	Stats    *stats.Summary
	// Error is set when the suite could not run at all, e.g. a failing setup hook.
	Error error
}

// Success reports whether no scenario failed.
func (r *RunResult) Success() bool {
	return r.Failed == 0 && r.Error == nil
}

func (r *RunResult) count(sr *ScenarioResult) {
	switch sr.Status {
	case StatusPassed:
		r.Passed++
	case StatusFlaky:
		r.Passed++
		r.Flaky++
	case StatusFailed:
		r.Failed++
	case StatusSkipped:
		r.Skipped++
	}
}

type ScenarioResult struct {
	Name        string
	Description string
	Tags        []string
	Status      Status
	SkipReason  string
	Attempts    int
	Duration    time.Duration
	// Steps of the last attempt, before_each steps first.
	Steps     []*StepResult
	Error     error
	Failure   FailureKind
	Artifacts Artifacts
	// AttemptErrors holds the error of every failed attempt, in order.
	AttemptErrors []error
}

type StepResult struct {
	Name       string
	Action     string
	Locator    string
	Hook       bool // a before_each step
	Duration   time.Duration
	Assertions []*assertions.Result
	Error      error
}

// Passed reports whether the step ran without error.
func (s *StepResult) Passed() bool {
	return s.Error == nil
}

// Artifacts are the failure diagnostics kept for the last attempt.
type Artifacts struct {
	Dir        string
	Screenshot string
	Video      string
	Trace      string
}

func (a Artifacts) Empty() bool {
	return a.Screenshot == "" && a.Video == "" && a.Trace == ""
}
