package stats

import (
	"sort"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// Attempt durations are recorded in milliseconds, from 1ms up to 30 minutes.
const (
	minValue = 1
	maxValue = 30 * 60 * 1000
	sigFigs  = 3
)

// Collector aggregates scenario attempt durations. It is safe for
// concurrent use by the runner's workers.
type Collector struct {
	mu        sync.Mutex
	histogram *hdrhistogram.Histogram
	scenarios map[string]*scenarioStats
	order     []string
	attempts  int64
	failures  int64
}

type scenarioStats struct {
	histogram *hdrhistogram.Histogram
	attempts  int64
	failures  int64
}

func NewCollector() *Collector {
	return &Collector{
		histogram: hdrhistogram.New(minValue, maxValue, sigFigs),
		scenarios: make(map[string]*scenarioStats),
	}
}

func clamp(d time.Duration) int64 {
	ms := d.Milliseconds()
	if ms < minValue {
		return minValue
	}
	if ms > maxValue {
		return maxValue
	}
	return ms
}

// Record adds one attempt of scenario name.
func (c *Collector) Record(name string, d time.Duration, failed bool) {
	v := clamp(d)

	c.mu.Lock()
	defer c.mu.Unlock()

	_ = c.histogram.RecordValue(v)
	c.attempts++
	if failed {
		c.failures++
	}

	s, ok := c.scenarios[name]
	if !ok {
		s = &scenarioStats{histogram: hdrhistogram.New(minValue, maxValue, sigFigs)}
		c.scenarios[name] = s
		c.order = append(c.order, name)
	}
	_ = s.histogram.RecordValue(v)
	s.attempts++
	if failed {
		s.failures++
	}
}

type Percentiles struct {
	P50  time.Duration
	P95  time.Duration
	P99  time.Duration
	Min  time.Duration
	Max  time.Duration
	Mean time.Duration
}

func percentiles(h *hdrhistogram.Histogram) Percentiles {
	if h.TotalCount() == 0 {
		return Percentiles{}
	}
	return Percentiles{
		P50:  time.Duration(h.ValueAtQuantile(50)) * time.Millisecond,
		P95:  time.Duration(h.ValueAtQuantile(95)) * time.Millisecond,
		P99:  time.Duration(h.ValueAtQuantile(99)) * time.Millisecond,
		Min:  time.Duration(h.Min()) * time.Millisecond,
		Max:  time.Duration(h.Max()) * time.Millisecond,
		Mean: time.Duration(h.Mean() * float64(time.Millisecond)),
	}
}

type ScenarioSummary struct {
	Name     string
	Attempts int64
	Failures int64
	Percentiles
}

type Summary struct {
	Attempts int64
	Failures int64
	Percentiles
	// Scenarios are listed in the order they were first recorded.
	Scenarios []*ScenarioSummary
}

func (c *Collector) Summary() *Summary {
	c.mu.Lock()
	defer c.mu.Unlock()

	summary := &Summary{
		Attempts:    c.attempts,
		Failures:    c.failures,
		Percentiles: percentiles(c.histogram),
	}
	for _, name := range c.order {
		s := c.scenarios[name]
		summary.Scenarios = append(summary.Scenarios, &ScenarioSummary{
			Name:        name,
			Attempts:    s.attempts,
			Failures:    s.failures,
			Percentiles: percentiles(s.histogram),
		})
	}
	return summary
}

// Slowest returns up to n scenarios ordered by their maximum attempt duration.
func (s *Summary) Slowest(n int) []*ScenarioSummary {
	sorted := append([]*ScenarioSummary(nil), s.Scenarios...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Max > sorted[j].Max
	})
	if n < len(sorted) {
		sorted = sorted[:n]
	}
	return sorted
}
