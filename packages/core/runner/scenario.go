package runner

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/pagespec/packages/assertions"
	"github.com/abdul-hamid-achik/pagespec/packages/browser"
	"github.com/abdul-hamid-achik/pagespec/packages/core/config"
	"github.com/abdul-hamid-achik/pagespec/packages/core/parser"
)

type attemptResult struct {
	steps      []*StepResult
	artifacts  Artifacts
	err        error
	skipReason string
	duration   time.Duration
}

// runScenario runs sc until an attempt passes or its retries are used up.
// Every attempt starts over from before_each in a fresh session.
func (r *Runner) runScenario(ctx context.Context, run *suiteRun, sc *parser.Scenario) *ScenarioResult {
	maxRetries := r.config.Retries
	if sc.Retries != nil {
		maxRetries = *sc.Retries
	}

	res := &ScenarioResult{
		Name:        sc.Name,
		Description: sc.Description,
		Tags:        sc.Tags,
	}
	start := time.Now()

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 && r.config.RetryDelay > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(r.config.RetryDelay):
			}
		}

		a := r.runAttempt(ctx, run, sc, attempt)
		res.Attempts = attempt + 1
		res.Steps = a.steps
		res.Artifacts = a.artifacts

		if errors.Is(a.err, ErrSkipped) {
			res.Status = StatusSkipped
			res.SkipReason = a.skipReason
			res.Error = nil
			res.Failure = FailureNone
			break
		}

		failed := a.err != nil
		run.stats.Record(sc.Name, a.duration, failed)
		if r.stats != nil {
			r.stats.Record(sc.Name, a.duration, failed)
		}

		if !failed {
			res.Status = StatusPassed
			if attempt > 0 {
				res.Status = StatusFlaky
			}
			res.Error = nil
			res.Failure = FailureNone
			break
		}

		res.Status = StatusFailed
		res.Error = a.err
		res.Failure = KindOf(a.err)
		res.AttemptErrors = append(res.AttemptErrors, a.err)

		if ctx.Err() != nil {
			break
		}
	}

	res.Duration = time.Since(start)
	return res
}

func (r *Runner) runAttempt(ctx context.Context, run *suiteRun, sc *parser.Scenario, attempt int) (a attemptResult) {
	start := time.Now()
	defer func() { a.duration = time.Since(start) }()

	timeout := sc.Timeout
	if timeout <= 0 {
		timeout = r.config.Timeout
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	actx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if r.limiter != nil {
		if err := r.limiter.Wait(actx); err != nil {
			a.err = fmt.Errorf("waiting for a browser launch slot: %w", err)
			return a
		}
	}

	dir := r.artifactDir(run.suite, sc, attempt)
	session, err := r.launcher.NewSession(browser.SessionOptions{
		BaseURL:       run.baseURL,
		StorageState:  r.config.StorageState,
		ArtifactDir:   dir,
		RecordVideo:   dir != "" && records(r.config.Video, attempt),
		RecordTrace:   dir != "" && records(r.config.Trace, attempt),
		ActionTimeout: r.config.ActionTimeout,
	})
	if err != nil {
		a.err = fmt.Errorf("opening browser session: %w", err)
		return a
	}

	page := session.Page()
	x := &execution{
		ctx:       actx,
		config:    r.config,
		page:      page,
		resolver:  run.resolver.Clone(),
		evaluator: assertions.NewEvaluator(page, assertions.WithBaseDir(run.baseDir)),
		warn:      r.warn,
	}

	a.err = func() error {
		for _, st := range run.suite.BeforeEach {
			sr, err := x.step(st, len(a.steps))
			sr.Hook = true
			a.steps = append(a.steps, sr)
			if err != nil {
				return asPrecondition(err)
			}
		}

		if len(sc.SkipUnless) > 0 {
			reason, ok := x.skipUnless(sc.SkipUnless)
			if !ok {
				a.skipReason = reason
				return ErrSkipped
			}
		}

		for _, st := range sc.Steps {
			sr, err := x.step(st, len(a.steps))
			a.steps = append(a.steps, sr)
			if err != nil {
				return err
			}
		}
		return nil
	}()

	failed := a.err != nil && !errors.Is(a.err, ErrSkipped)
	if dir != "" && screenshots(r.config.Screenshot, failed) {
		path := filepath.Join(dir, "screenshot.png")
		if err := page.Screenshot(path); err != nil {
			x.warn("screenshot of %q failed: %v", sc.Name, err)
		} else {
			a.artifacts.Screenshot = path
		}
	}

	kept, err := session.Close(browser.Keep{
		Video: keeps(r.config.Video, failed),
		Trace: keeps(r.config.Trace, failed),
	})
	if err != nil {
		x.warn("closing browser session of %q: %v", sc.Name, err)
	}
	a.artifacts.Video = kept.Video
	a.artifacts.Trace = kept.Trace
	if !a.artifacts.Empty() {
		a.artifacts.Dir = dir
	}
	return a
}

// asPrecondition reclassifies a before_each failure.
func asPrecondition(err error) error {
	var se *StepError
	if errors.As(err, &se) {
		c := *se
		c.Kind = FailurePrecondition
		return &c
	}
	return err
}

// records reports whether a video or trace is recorded for attempt.
func records(policy string, attempt int) bool {
	switch policy {
	case config.CaptureOn, config.CaptureRetainOnFailure:
		return true
	case config.CaptureOnFirstRetry:
		return attempt == 1
	default:
		return false
	}
}

// keeps reports whether a recording survives the end of the attempt.
func keeps(policy string, failed bool) bool {
	switch policy {
	case config.CaptureOn, config.CaptureOnFirstRetry:
		return true
	case config.CaptureRetainOnFailure:
		return failed
	default:
		return false
	}
}

func screenshots(policy string, failed bool) bool {
	return policy == config.CaptureOn || (policy == config.CaptureOnlyOnFailure && failed)
}

var slugUnsafe = regexp.MustCompile(`[^a-z0-9]+`)

// slug turns a scenario name into a directory name.
func slug(s string) string {
	s = slugUnsafe.ReplaceAllString(strings.ToLower(s), "-")
	s = strings.Trim(s, "-")
	if len(s) > 80 {
		s = strings.TrimRight(s[:80], "-")
	}
	if s == "" {
		s = "scenario"
	}
	return s
}

// artifactDir is outputDir/<suite>-<scenario>[-retryN], empty when
// artifacts are disabled.
func (r *Runner) artifactDir(suite *parser.Suite, sc *parser.Scenario, attempt int) string {
	if r.config.OutputDir == "" {
		return ""
	}
	name := sc.Name
	if suite.Name != "" {
		name = suite.Name + " " + sc.Name
	}
	dir := slug(name)
	if attempt > 0 {
		dir = fmt.Sprintf("%s-retry%d", dir, attempt)
	}
	return filepath.Join(r.config.OutputDir, dir)
}
