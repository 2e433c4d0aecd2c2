// Package metrics exports run metrics of pagespec scenarios.
package metrics

import (
	"errors"
	"sync"
	"time"

	"github.com/abdul-hamid-achik/pagespec/packages/core/runner"
)

// ScenarioMetrics is the outcome of one scenario, all attempts included.
type ScenarioMetrics struct {
	Suite      string    `json:"suite"`
	Scenario   string    `json:"scenario"`
	Status     string    `json:"status"`
	Failure    string    `json:"failure,omitempty"`
	Attempts   int       `json:"attempts"`
	DurationMs float64   `json:"duration_ms"`
	Timestamp  time.Time `json:"timestamp"`
}

// AggregateMetrics represents aggregated metrics from one or more suites
type AggregateMetrics struct {
	TotalScenarios int64                         `json:"total_scenarios"`
	Passed         int64                         `json:"passed"`
	Failed         int64                         `json:"failed"`
	Skipped        int64                         `json:"skipped"`
	Flaky          int64                         `json:"flaky"`
	RunDurationMs  float64                       `json:"run_duration_ms"`
	MinDurationMs  float64                       `json:"min_duration_ms"`
	MaxDurationMs  float64                       `json:"max_duration_ms"`
	AvgDurationMs  float64                       `json:"avg_duration_ms"`
	ByFailure      map[string]int64              `json:"by_failure"`
	ByScenario     map[string]*ScenarioAggregate `json:"by_scenario"`
}

// ScenarioAggregate represents aggregated metrics for a single scenario
type ScenarioAggregate struct {
	Name          string  `json:"name"`
	Runs          int64   `json:"runs"`
	Failures      int64   `json:"failures"`
	Attempts      int64   `json:"attempts"`
	AvgDurationMs float64 `json:"avg_duration_ms"`
	MaxDurationMs float64 `json:"max_duration_ms"`
}

// Exporter is the interface for metrics exporters
type Exporter interface {
	// Export exports metrics to the target destination
	Export(metrics *AggregateMetrics) error

	// ExportSingle exports a single scenario metric
	ExportSingle(metric *ScenarioMetrics) error

	// Close closes the exporter and flushes any buffered data
	Close() error
}

// Collector collects metrics from scenario runs
type Collector struct {
	mu        sync.Mutex
	aggregate *AggregateMetrics
	exporters []Exporter
	now       func() time.Time
	// executed scenarios and their summed duration, for the average
	executed   int64
	executedMs float64
}

// NewCollector creates a new metrics collector
func NewCollector(exporters ...Exporter) *Collector {
	return &Collector{
		exporters: exporters,
		aggregate: newAggregate(),
		now:       time.Now,
	}
}

func newAggregate() *AggregateMetrics {
	return &AggregateMetrics{
		ByFailure:  make(map[string]int64),
		ByScenario: make(map[string]*ScenarioAggregate),
	}
}

// RecordRun records every scenario of a suite run and adds its duration to
// the run duration.
func (c *Collector) RecordRun(result *runner.RunResult) {
	for _, sr := range result.Results {
		m := &ScenarioMetrics{
			Suite:      result.Suite,
			Scenario:   sr.Name,
			Status:     sr.Status.String(),
			Attempts:   sr.Attempts,
			DurationMs: float64(sr.Duration.Milliseconds()),
			Timestamp:  c.now(),
		}
		if sr.Status == runner.StatusFailed {
			m.Failure = sr.Failure.String()
		}
		c.Record(m)
	}

	c.mu.Lock()
	c.aggregate.RunDurationMs += float64(result.Duration.Milliseconds())
	c.mu.Unlock()
}

// Record records a scenario metric
func (c *Collector) Record(m *ScenarioMetrics) {
	c.mu.Lock()
	c.updateAggregate(m)
	c.mu.Unlock()

	for _, exp := range c.exporters {
		_ = exp.ExportSingle(m)
	}
}

func (c *Collector) updateAggregate(m *ScenarioMetrics) {
	a := c.aggregate
	a.TotalScenarios++

	switch m.Status {
	case runner.StatusPassed.String():
		a.Passed++
	case runner.StatusFlaky.String():
		a.Passed++
		a.Flaky++
	case runner.StatusFailed.String():
		a.Failed++
		a.ByFailure[m.Failure]++
	case runner.StatusSkipped.String():
		a.Skipped++
		// skipped scenarios never ran; they do not count towards durations
		return
	}

	c.executed++
	c.executedMs += m.DurationMs
	if c.executed == 1 || m.DurationMs < a.MinDurationMs {
		a.MinDurationMs = m.DurationMs
	}
	if m.DurationMs > a.MaxDurationMs {
		a.MaxDurationMs = m.DurationMs
	}
	a.AvgDurationMs = c.executedMs / float64(c.executed)

	key := m.Scenario
	if m.Suite != "" {
		key = m.Suite + " / " + m.Scenario
	}
	sa, ok := a.ByScenario[key]
	if !ok {
		sa = &ScenarioAggregate{Name: key}
		a.ByScenario[key] = sa
	}
	sa.Runs++
	sa.Attempts += int64(m.Attempts)
	if m.Status == runner.StatusFailed.String() {
		sa.Failures++
	}
	if m.DurationMs > sa.MaxDurationMs {
		sa.MaxDurationMs = m.DurationMs
	}
	sa.AvgDurationMs = (sa.AvgDurationMs*float64(sa.Runs-1) + m.DurationMs) / float64(sa.Runs)
}

// GetAggregate returns the aggregated metrics
func (c *Collector) GetAggregate() *AggregateMetrics {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.aggregate
}

// Flush exports all aggregated metrics
func (c *Collector) Flush() error {
	aggregate := c.GetAggregate()
	var errs []error
	for _, exp := range c.exporters {
		if err := exp.Export(aggregate); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes all exporters
func (c *Collector) Close() error {
	var errs []error
	for _, exp := range c.exporters {
		if err := exp.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
