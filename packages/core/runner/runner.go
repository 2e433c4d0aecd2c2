package runner

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/abdul-hamid-achik/pagespec/packages/browser"
	"github.com/abdul-hamid-achik/pagespec/packages/core/config"
	"github.com/abdul-hamid-achik/pagespec/packages/core/env"
	"github.com/abdul-hamid-achik/pagespec/packages/core/parser"
	"github.com/abdul-hamid-achik/pagespec/packages/fixture"
	"github.com/abdul-hamid-achik/pagespec/packages/stats"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const (
	// DefaultWorkers is used when Config.Workers is not set
	DefaultWorkers = 1
	// DefaultTimeout bounds one scenario attempt when neither the scenario nor the config sets one
	DefaultTimeout = 30 * time.Second
	// ExpectInterval is the polling interval of expectations
	ExpectInterval = 100 * time.Millisecond
)

type Config struct {
	BaseURL       string
	StorageState  string
	Retries       int
	RetryDelay    time.Duration
	Workers       int
	Timeout       time.Duration
	ActionTimeout time.Duration
	ExpectTimeout time.Duration
	LaunchRate    float64
	ForbidOnly    bool
	Bail          bool
	Verbose       bool
	NameFilter    string
	TagsFilter    []string
	Grep          string
	// OutputDir receives screenshots, videos and traces. Empty disables them.
	OutputDir  string
	Screenshot string
	Video      string
	Trace      string
	Setup      []string
	Teardown   []string
	// Variables override suite variables, e.g. from --var flags.
	Variables map[string]string
}

// FromConfig maps a resolved run configuration onto runner settings.
// Call config.ResolveMode first so retries and workers are set.
func FromConfig(cfg *config.Config) *Config {
	return &Config{
		BaseURL:       cfg.BaseURL,
		StorageState:  cfg.StorageState,
		Retries:       cfg.GetRetries(),
		RetryDelay:    cfg.RetryDelay,
		Workers:       cfg.Workers,
		Timeout:       cfg.Timeout,
		ActionTimeout: cfg.ActionTimeout,
		ExpectTimeout: cfg.ExpectTimeout,
		LaunchRate:    cfg.LaunchRate,
		ForbidOnly:    cfg.GetForbidOnly(),
		Bail:          cfg.GetBail(),
		Verbose:       cfg.GetVerbose(),
		OutputDir:     cfg.OutputDir,
		Screenshot:    cfg.Artifacts.Screenshot,
		Video:         cfg.Artifacts.Video,
		Trace:         cfg.Artifacts.Trace,
		Setup:         cfg.Setup,
		Teardown:      cfg.Teardown,
	}
}

type Runner struct {
	launcher browser.Launcher
	resolver *env.Resolver
	config   *Config
	stats    *stats.Collector
	limiter  *rate.Limiter
	warn     env.WarnFunc
	now      func() time.Time
	hookOut  io.Writer
}

type Option func(*Runner)

// WithResolver sets the resolver every suite starts from.
func WithResolver(res *env.Resolver) Option {
	return func(r *Runner) {
		r.resolver = res
	}
}

// WithStats records attempt durations into c in addition to the per-suite summary.
func WithStats(c *stats.Collector) Option {
	return func(r *Runner) {
		r.stats = c
	}
}

// WithWarnFunc receives non-fatal problems such as unresolved variables.
func WithWarnFunc(fn env.WarnFunc) Option {
	return func(r *Runner) {
		r.warn = fn
	}
}

// WithClock sets the clock used to check session fixture expiry.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) {
		r.now = now
	}
}

// WithHookOutput receives the output of setup and teardown commands in verbose mode.
func WithHookOutput(w io.Writer) Option {
	return func(r *Runner) {
		r.hookOut = w
	}
}

func NewRunner(cfg *Config, launcher browser.Launcher, opts ...Option) *Runner {
	if cfg == nil {
		cfg = &Config{}
	}

	r := &Runner{
		launcher: launcher,
		config:   cfg,
		now:      time.Now,
		hookOut:  os.Stderr,
		warn: func(format string, args ...any) {
			fmt.Fprintf(os.Stderr, "warning: "+format+"\n", args...)
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.resolver == nil {
		r.resolver = env.NewResolver()
	}
	r.resolver.SetWarnFunc(r.warn)
	if cfg.LaunchRate > 0 {
		r.limiter = rate.NewLimiter(rate.Limit(cfg.LaunchRate), 1)
	}
	return r
}

// suiteRun is the state shared by the scenarios of one suite.
type suiteRun struct {
	suite    *parser.Suite
	baseURL  string
	baseDir  string
	resolver *env.Resolver
	stats    *stats.Collector
}

func (r *Runner) RunFile(ctx context.Context, path string) (*RunResult, error) {
	suite, err := parser.ParseFile(path)
	if err != nil {
		return nil, fmt.Errorf("parsing file: %w", err)
	}
	return r.RunSuite(ctx, suite)
}

// RunSuite runs every selected scenario of suite. Scenario failures are
// reported in the result; the returned error is reserved for suites that
// cannot be run, such as only markers under ForbidOnly.
func (r *Runner) RunSuite(ctx context.Context, suite *parser.Suite) (*RunResult, error) {
	if r.config.ForbidOnly && suite.HasOnly() {
		return nil, fmt.Errorf("%w: %s contains scenarios marked only", ErrOnlyForbidden, suite.Path)
	}

	start := time.Now()
	run := r.prepare(suite)
	result := &RunResult{
		RunID:   uuid.NewString(),
		File:    suite.Path,
		Suite:   suite.Name,
		BaseURL: run.baseURL,
	}

	hasOnly := suite.HasOnly()
	results := make([]*ScenarioResult, len(suite.Scenarios))
	var runnable []int
	for i, sc := range suite.Scenarios {
		switch {
		case !r.shouldRun(suite, sc, hasOnly):
			results[i] = skipped(sc, "filtered out")
		case sc.Skip != "":
			results[i] = skipped(sc, sc.Skip)
		default:
			runnable = append(runnable, i)
		}
	}

	if len(runnable) > 0 {
		hookDir := run.baseDir
		setup := append(append([]string{}, r.config.Setup...), suite.Setup...)
		if err := r.runHooks(ctx, "setup", setup, hookDir, run.resolver); err != nil {
			r.failAll(results, runnable, suite, err)
		} else if err := r.checkFixture(run.baseURL); err != nil {
			r.failAll(results, runnable, suite, err)
		} else {
			r.runScenarios(ctx, run, results, runnable)
		}

		teardown := append(append([]string{}, suite.Teardown...), r.config.Teardown...)
		if err := r.runTeardown(ctx, teardown, hookDir, run.resolver); err != nil {
			r.warn("%v", err)
		}
	}

	for _, sr := range results {
		result.Results = append(result.Results, sr)
		result.count(sr)
	}
	result.Stats = run.stats.Summary()
	result.Duration = time.Since(start)
	return result, nil
}

func (r *Runner) prepare(suite *parser.Suite) *suiteRun {
	resolver := r.resolver.Clone()

	vars := env.MergeVariables(
		env.FromStrings(resolver.ResolveAll(suite.Variables)),
		env.LoadSystemEnv(env.VarPrefix),
		env.FromStrings(r.config.Variables),
	)
	resolver.SetVariables(vars)

	baseURL := r.config.BaseURL
	if baseURL == "" {
		baseURL = resolver.Resolve(suite.BaseURL)
	}
	resolver.SetVariable("baseURL", baseURL)

	baseDir := "."
	if suite.Path != "" {
		baseDir = filepath.Dir(suite.Path)
	}

	return &suiteRun{
		suite:    suite,
		baseURL:  baseURL,
		baseDir:  baseDir,
		resolver: resolver,
		stats:    stats.NewCollector(),
	}
}

// checkFixture validates the session fixture once per suite.
func (r *Runner) checkFixture(baseURL string) error {
	if r.config.StorageState == "" {
		return nil
	}
	if _, err := fixture.Check(r.config.StorageState, baseURL, r.now()); err != nil {
		return fmt.Errorf("session fixture: %w", err)
	}
	return nil
}

func (r *Runner) failAll(results []*ScenarioResult, indices []int, suite *parser.Suite, err error) {
	for _, i := range indices {
		sc := suite.Scenarios[i]
		results[i] = &ScenarioResult{
			Name:        sc.Name,
			Description: sc.Description,
			Tags:        sc.Tags,
			Status:      StatusFailed,
			Error:       err,
			Failure:     FailurePrecondition,
		}
	}
}

func skipped(sc *parser.Scenario, reason string) *ScenarioResult {
	return &ScenarioResult{
		Name:        sc.Name,
		Description: sc.Description,
		Tags:        sc.Tags,
		Status:      StatusSkipped,
		SkipReason:  reason,
	}
}

// runScenarios fills results[i] for every index in runnable, running up to
// Workers scenarios at once. With Bail no scenario is started after the
// first failure.
func (r *Runner) runScenarios(ctx context.Context, run *suiteRun, results []*ScenarioResult, runnable []int) {
	workers := r.config.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}

	var wg sync.WaitGroup
	var bailed atomic.Bool
	sem := make(chan struct{}, workers)

	for _, idx := range runnable {
		sc := run.suite.Scenarios[idx]

		select {
		case sem <- struct{}{}: // acquire semaphore
		case <-ctx.Done():
			results[idx] = skipped(sc, "run cancelled")
			continue
		}
		if bailed.Load() {
			<-sem
			results[idx] = skipped(sc, "bail: an earlier scenario failed")
			continue
		}
		if ctx.Err() != nil {
			<-sem
			results[idx] = skipped(sc, "run cancelled")
			continue
		}

		wg.Add(1)
		go func(idx int, sc *parser.Scenario) {
			defer wg.Done()
			defer func() { <-sem }() // release semaphore

			res := r.runScenario(ctx, run, sc)
			results[idx] = res
			if res.Status == StatusFailed && r.config.Bail {
				bailed.Store(true)
			}
		}(idx, sc)
	}

	wg.Wait()
}

func (r *Runner) shouldRun(suite *parser.Suite, sc *parser.Scenario, hasOnly bool) bool {
	if hasOnly && !sc.Only {
		return false
	}

	if r.config.NameFilter != "" {
		if !matchesPattern(sc.Name, r.config.NameFilter) {
			return false
		}
	}

	if len(r.config.TagsFilter) > 0 {
		tags := append(append([]string{}, suite.Tags...), sc.Tags...)
		if !hasAnyTag(tags, r.config.TagsFilter) {
			return false
		}
	}

	if r.config.Grep != "" {
		haystack := strings.ToLower(sc.Name + " " + sc.Description)
		if !strings.Contains(haystack, strings.ToLower(r.config.Grep)) {
			return false
		}
	}

	return true
}

// matchesPattern matches name against a pattern with an optional leading
// and/or trailing *.
func matchesPattern(name, pattern string) bool {
	if pattern == "" {
		return true
	}

	if len(pattern) > 1 && pattern[0] == '*' && pattern[len(pattern)-1] == '*' {
		return strings.Contains(name, pattern[1:len(pattern)-1])
	}

	if pattern[0] == '*' {
		return strings.HasSuffix(name, pattern[1:])
	}

	if pattern[len(pattern)-1] == '*' {
		return strings.HasPrefix(name, pattern[:len(pattern)-1])
	}

	return name == pattern
}

func hasAnyTag(tags []string, filters []string) bool {
	for _, filter := range filters {
		for _, tag := range tags {
			if tag == filter {
				return true
			}
		}
	}
	return false
}
