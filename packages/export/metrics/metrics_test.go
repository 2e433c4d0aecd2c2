package metrics

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/abdul-hamid-achik/pagespec/packages/core/runner"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRun() *runner.RunResult {
	return &runner.RunResult{
		Suite:    "chat history",
		Duration: 4 * time.Second,
		Results: []*runner.ScenarioResult{
			{Name: "dates", Status: runner.StatusPassed, Attempts: 1, Duration: time.Second},
			{Name: "columns", Status: runner.StatusFlaky, Attempts: 2, Duration: 3 * time.Second},
			{Name: "search", Status: runner.StatusFailed, Attempts: 2, Duration: 2 * time.Second, Failure: runner.FailureLocator},
			{Name: "scroll", Status: runner.StatusSkipped, SkipReason: "filtered out"},
		},
	}
}

func TestCollector_RecordRun(t *testing.T) {
	c := NewCollector()
	c.RecordRun(sampleRun())

	a := c.GetAggregate()
	assert.Equal(t, int64(4), a.TotalScenarios)
	assert.Equal(t, int64(2), a.Passed)
	assert.Equal(t, int64(1), a.Flaky)
	assert.Equal(t, int64(1), a.Failed)
	assert.Equal(t, int64(1), a.Skipped)
	assert.Equal(t, float64(4000), a.RunDurationMs)
	assert.Equal(t, float64(1000), a.MinDurationMs)
	assert.Equal(t, float64(3000), a.MaxDurationMs)
	assert.Equal(t, float64(2000), a.AvgDurationMs)
	assert.Equal(t, map[string]int64{"locator": 1}, a.ByFailure)

	require.Contains(t, a.ByScenario, "chat history / search")
	search := a.ByScenario["chat history / search"]
	assert.Equal(t, int64(1), search.Failures)
	assert.Equal(t, int64(2), search.Attempts)
	assert.NotContains(t, a.ByScenario, "chat history / scroll")
}

func TestCollector_AcrossRuns(t *testing.T) {
	c := NewCollector()
	c.RecordRun(sampleRun())
	c.RecordRun(sampleRun())

	a := c.GetAggregate()
	assert.Equal(t, int64(8), a.TotalScenarios)
	assert.Equal(t, float64(8000), a.RunDurationMs)
	dates := a.ByScenario["chat history / dates"]
	assert.Equal(t, int64(2), dates.Runs)
	assert.Equal(t, float64(1000), dates.AvgDurationMs)
}

type failingExporter struct{ closed bool }

func (f *failingExporter) Export(*AggregateMetrics) error       { return errors.New("export failed") }
func (f *failingExporter) ExportSingle(*ScenarioMetrics) error { return nil }
func (f *failingExporter) Close() error {
	f.closed = true
	return nil
}

func TestCollector_FlushJoinsErrors(t *testing.T) {
	var buf bytes.Buffer
	failing := &failingExporter{}
	c := NewCollector(failing, NewJSONExporter(WithJSONWriter(&buf)))
	c.RecordRun(sampleRun())

	err := c.Flush()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "export failed")
	assert.NotEmpty(t, buf.String(), "later exporters still run")

	require.NoError(t, c.Close())
	assert.True(t, failing.closed)
}

func TestPrometheusExporter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "textfile", "pagespec.prom")
	p := NewPrometheusExporter(WithPrometheusFile(path))
	c := NewCollector(p)
	c.RecordRun(sampleRun())
	require.NoError(t, c.Flush())

	assert.Equal(t, float64(1), testutil.ToFloat64(p.scenarios.WithLabelValues("passed")))
	assert.Equal(t, float64(1), testutil.ToFloat64(p.scenarios.WithLabelValues("flaky")))
	assert.Equal(t, float64(1), testutil.ToFloat64(p.scenarios.WithLabelValues("failed")))
	assert.Equal(t, float64(1), testutil.ToFloat64(p.scenarios.WithLabelValues("skipped")))
	assert.Equal(t, float64(1), testutil.ToFloat64(p.failures.WithLabelValues("locator")))
	assert.Equal(t, float64(5), testutil.ToFloat64(p.attempts))
	assert.Equal(t, float64(4), testutil.ToFloat64(p.runDuration))

	// skipped scenarios are not observed
	count, err := testutil.GatherAndCount(p.Registry(), "pagespec_scenario_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, "# TYPE pagespec_scenarios_total counter")
	assert.Contains(t, text, `pagespec_scenarios_total{status="failed"} 1`)
	assert.Contains(t, text, "# TYPE pagespec_scenario_duration_seconds histogram")
	assert.Contains(t, text, "pagespec_run_duration_seconds 4")
}

func TestPrometheusExporter_NoFile(t *testing.T) {
	p := NewPrometheusExporter()
	require.NoError(t, p.Export(&AggregateMetrics{RunDurationMs: 1500}))
	assert.Equal(t, 1.5, testutil.ToFloat64(p.runDuration))
	require.NoError(t, p.Close())
}

func TestJSONExporter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metrics.json")
	j := NewJSONExporter(WithJSONFile(path), WithJSONVersion("1.2.3"))
	c := NewCollector(j)
	c.RecordRun(sampleRun())
	require.NoError(t, c.Flush())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var out JSONMetricsOutput
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, "1.2.3", out.Metadata.Version)
	assert.Equal(t, int64(4), out.Summary.TotalScenarios)
	require.Len(t, out.Scenarios, 4)
	assert.Equal(t, "search", out.Scenarios[2].Scenario)
	assert.Equal(t, "locator", out.Scenarios[2].Failure)
}
