package metrics

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusExporter keeps scenario metrics in a private registry and
// writes them in the node_exporter textfile format.
type PrometheusExporter struct {
	registry    *prometheus.Registry
	scenarios   *prometheus.CounterVec
	failures    *prometheus.CounterVec
	attempts    prometheus.Counter
	duration    *prometheus.HistogramVec
	runDuration prometheus.Gauge
	lastRun     prometheus.Gauge
	filePath    string
}

// PrometheusOption is a functional option for PrometheusExporter
type PrometheusOption func(*PrometheusExporter)

// WithPrometheusFile sets the textfile the metrics are written to on Export.
func WithPrometheusFile(path string) PrometheusOption {
	return func(p *PrometheusExporter) {
		p.filePath = path
	}
}

// DurationBuckets are the scenario duration histogram buckets in seconds.
var DurationBuckets = prometheus.ExponentialBuckets(0.25, 2, 10)

// NewPrometheusExporter creates a new Prometheus metrics exporter
func NewPrometheusExporter(opts ...PrometheusOption) *PrometheusExporter {
	p := &PrometheusExporter{
		registry: prometheus.NewRegistry(),
		scenarios: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pagespec_scenarios_total",
			Help: "Scenarios run, by final status.",
		}, []string{"status"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pagespec_scenario_failures_total",
			Help: "Failed scenarios, by failure kind.",
		}, []string{"kind"}),
		attempts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pagespec_scenario_attempts_total",
			Help: "Scenario attempts, retries included.",
		}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pagespec_scenario_duration_seconds",
			Help:    "Scenario duration over all attempts.",
			Buckets: DurationBuckets,
		}, []string{"status"}),
		runDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pagespec_run_duration_seconds",
			Help: "Duration of the whole run.",
		}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pagespec_last_run_timestamp_seconds",
			Help: "Unix time the run finished.",
		}),
	}

	for _, opt := range opts {
		opt(p)
	}

	p.registry.MustRegister(p.scenarios, p.failures, p.attempts, p.duration, p.runDuration, p.lastRun)
	return p
}

// Registry returns the registry holding the exporter's metrics.
func (p *PrometheusExporter) Registry() *prometheus.Registry {
	return p.registry
}

// ExportSingle records one scenario outcome
func (p *PrometheusExporter) ExportSingle(metric *ScenarioMetrics) error {
	p.scenarios.WithLabelValues(metric.Status).Inc()
	if metric.Failure != "" {
		p.failures.WithLabelValues(metric.Failure).Inc()
	}
	if metric.Attempts > 0 {
		p.attempts.Add(float64(metric.Attempts))
		p.duration.WithLabelValues(metric.Status).Observe(metric.DurationMs / 1000)
	}
	return nil
}

// Export sets the run gauges and writes the textfile
func (p *PrometheusExporter) Export(metrics *AggregateMetrics) error {
	p.runDuration.Set(metrics.RunDurationMs / 1000)
	p.lastRun.SetToCurrentTime()

	if p.filePath == "" {
		return nil
	}
	if dir := filepath.Dir(p.filePath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create metrics directory: %w", err)
		}
	}
	if err := prometheus.WriteToTextfile(p.filePath, p.registry); err != nil {
		return fmt.Errorf("failed to write metrics file: %w", err)
	}
	return nil
}

// Close is a no-op; the textfile is complete after Export.
func (p *PrometheusExporter) Close() error {
	return nil
}
