// Package notify sends run summaries of pagespec scenarios to chat webhooks.
package notify

import (
	"errors"
	"fmt"
	"time"

	"github.com/abdul-hamid-achik/pagespec/packages/core/runner"
)

// NotifyOn specifies when to send notifications
type NotifyOn string

const (
	// NotifyAlways sends notifications for every run
	NotifyAlways NotifyOn = "always"
	// NotifyFailure sends notifications only when scenarios fail
	NotifyFailure NotifyOn = "failure"
	// NotifySuccess sends notifications only when every scenario passes
	NotifySuccess NotifyOn = "success"
	// NotifyRecovery sends notifications on failure and on the first passing run after one
	NotifyRecovery NotifyOn = "recovery"
)

// ParseNotifyOn validates a notification policy name.
func ParseNotifyOn(s string) (NotifyOn, error) {
	switch n := NotifyOn(s); n {
	case NotifyAlways, NotifyFailure, NotifySuccess, NotifyRecovery:
		return n, nil
	case "":
		return NotifyFailure, nil
	default:
		return "", fmt.Errorf("unknown notify policy %q (want always, failure, success or recovery)", s)
	}
}

// RunSummary represents the summary of a run for notifications
type RunSummary struct {
	RunID            string           `json:"run_id,omitempty"`
	BaseURL          string           `json:"base_url,omitempty"`
	TotalFiles       int              `json:"total_files"`
	TotalScenarios   int              `json:"total_scenarios"`
	PassedScenarios  int              `json:"passed_scenarios"`
	FailedScenarios  int              `json:"failed_scenarios"`
	FlakyScenarios   int              `json:"flaky_scenarios"`
	SkippedScenarios int              `json:"skipped_scenarios"`
	Duration         time.Duration    `json:"duration"`
	Failed           []FailedScenario `json:"failed,omitempty"`
	IsRecovery       bool             `json:"is_recovery,omitempty"`
}

// FailedScenario represents a failed scenario for notifications
type FailedScenario struct {
	Name     string `json:"name"`
	File     string `json:"file"`
	Kind     string `json:"kind"`
	Attempts int    `json:"attempts"`
	Error    string `json:"error,omitempty"`
}

// NewRunSummary summarizes the suite results of one run.
func NewRunSummary(results []*runner.RunResult, duration time.Duration) *RunSummary {
	s := &RunSummary{
		TotalFiles: len(results),
		Duration:   duration,
	}
	for _, r := range results {
		if s.RunID == "" {
			s.RunID = r.RunID
		}
		if s.BaseURL == "" {
			s.BaseURL = r.BaseURL
		}
		s.TotalScenarios += len(r.Results)
		s.PassedScenarios += r.Passed
		s.FailedScenarios += r.Failed
		s.FlakyScenarios += r.Flaky
		s.SkippedScenarios += r.Skipped

		for _, sr := range r.Results {
			if sr.Status != runner.StatusFailed {
				continue
			}
			fs := FailedScenario{
				Name:     sr.Name,
				File:     r.File,
				Kind:     sr.Failure.String(),
				Attempts: sr.Attempts,
			}
			if sr.Error != nil {
				fs.Error = sr.Error.Error()
			}
			s.Failed = append(s.Failed, fs)
		}
	}
	return s
}

// Notifier is the interface for notification services
type Notifier interface {
	// Notify sends a notification about a run
	Notify(summary *RunSummary) error

	// Name returns the name of the notifier
	Name() string
}

// Manager manages multiple notifiers
type Manager struct {
	notifiers []Notifier
	notifyOn  NotifyOn
	lastState bool // true if last run was successful
}

// NewManager creates a new notification manager
func NewManager(notifyOn NotifyOn, notifiers ...Notifier) *Manager {
	return &Manager{
		notifiers: notifiers,
		notifyOn:  notifyOn,
		lastState: true, // Assume success initially
	}
}

// AddNotifier adds a notifier to the manager
func (m *Manager) AddNotifier(n Notifier) {
	m.notifiers = append(m.notifiers, n)
}

// Len returns the number of notifiers.
func (m *Manager) Len() int {
	return len(m.notifiers)
}

// Notify sends notifications based on the configured policy
func (m *Manager) Notify(summary *RunSummary) error {
	shouldNotify := false
	currentSuccess := summary.FailedScenarios == 0

	switch m.notifyOn {
	case NotifyAlways:
		shouldNotify = true
	case NotifyFailure:
		shouldNotify = !currentSuccess
	case NotifySuccess:
		shouldNotify = currentSuccess
	case NotifyRecovery:
		if !m.lastState && currentSuccess {
			shouldNotify = true
			summary.IsRecovery = true
		}
		if !currentSuccess {
			shouldNotify = true
		}
	}

	m.lastState = currentSuccess

	if !shouldNotify {
		return nil
	}

	var errs []error
	for _, n := range m.notifiers {
		if err := n.Notify(summary); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", n.Name(), err))
		}
	}
	return errors.Join(errs...)
}

func headline(summary *RunSummary) string {
	switch {
	case summary.FailedScenarios > 0:
		return fmt.Sprintf("%d scenario(s) failed", summary.FailedScenarios)
	case summary.IsRecovery:
		return "Scenarios recovered!"
	default:
		return "All scenarios passed!"
	}
}
