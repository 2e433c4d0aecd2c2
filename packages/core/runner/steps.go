package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/abdul-hamid-achik/pagespec/packages/assertions"
	"github.com/abdul-hamid-achik/pagespec/packages/browser"
	"github.com/abdul-hamid-achik/pagespec/packages/core/env"
	"github.com/abdul-hamid-achik/pagespec/packages/core/parser"
)

// execution is one attempt of a scenario against one page.
type execution struct {
	ctx       context.Context
	config    *Config
	page      browser.Page
	resolver  *env.Resolver
	evaluator *assertions.Evaluator
	warn      env.WarnFunc
}

// bound caps d to the time left before the attempt deadline. Browser calls
// block without a context, so the deadline is passed down as a timeout.
func (x *execution) bound(d time.Duration) time.Duration {
	deadline, ok := x.ctx.Deadline()
	if !ok {
		return d
	}
	left := time.Until(deadline)
	if left <= 0 {
		return time.Millisecond
	}
	if d <= 0 || d > left {
		return left
	}
	return d
}

// step performs the step's action, then checks its expectations in order.
func (x *execution) step(st *parser.Step, index int) (*StepResult, error) {
	locator := x.resolver.Resolve(st.Locator)
	sr := &StepResult{
		Name:    x.resolver.Resolve(st.Describe()),
		Action:  st.Action.String(),
		Locator: locator,
	}
	start := time.Now()
	defer func() { sr.Duration = time.Since(start) }()

	fail := func(kind FailureKind, err error) (*StepResult, error) {
		sr.Error = err
		return sr, &StepError{Kind: kind, Step: index, Name: sr.Name, Cause: err}
	}

	if err := x.ctx.Err(); err != nil {
		return fail(FailureTimeout, fmt.Errorf("scenario deadline reached before step: %w", err))
	}

	if err := x.act(st, locator); err != nil {
		return fail(x.classifyAction(st, err), err)
	}

	for _, exp := range st.Expect {
		res, kind := x.expect(exp, locator)
		sr.Assertions = append(sr.Assertions, res)
		if !res.Passed {
			return fail(kind, describeFailure(res))
		}
	}
	return sr, nil
}

func (x *execution) act(st *parser.Step, locator string) error {
	timeout := st.Timeout
	if timeout <= 0 && st.Action != parser.ActionPause {
		timeout = x.config.ActionTimeout
	}

	switch st.Action {
	case parser.ActionNone:
		return nil
	case parser.ActionGoto:
		return x.page.Goto(x.resolver.Resolve(st.Value), x.bound(timeout))
	case parser.ActionWaitLoad:
		return x.page.WaitForLoadState(string(st.State), x.bound(timeout))
	case parser.ActionPause:
		select {
		case <-x.ctx.Done():
			return x.ctx.Err()
		case <-time.After(timeout):
			return nil
		}
	}

	loc := x.page.Locator(locator)
	switch st.Action {
	case parser.ActionClick:
		return loc.Click(browser.ClickOptions{ClickCount: st.ClickCount, Timeout: x.bound(timeout)})
	case parser.ActionFill:
		return loc.Fill(x.resolver.Resolve(st.Value), x.bound(timeout))
	case parser.ActionCheck:
		return loc.Check(x.bound(timeout))
	case parser.ActionUncheck:
		return loc.Uncheck(x.bound(timeout))
	case parser.ActionBlur:
		return loc.Blur(x.bound(timeout))
	case parser.ActionWaitFor:
		return loc.WaitFor(string(st.State), x.bound(timeout))
	default:
		return fmt.Errorf("unsupported action %s", st.Action)
	}
}

// classifyAction maps a failed action onto the failure taxonomy. Element
// actions fail as locator failures: the element never became actionable.
// Explicit waits fail as timeouts.
func (x *execution) classifyAction(st *parser.Step, err error) FailureKind {
	if x.ctx.Err() != nil {
		return FailureTimeout
	}
	switch st.Action {
	case parser.ActionWaitFor, parser.ActionWaitLoad, parser.ActionPause:
		return FailureTimeout
	case parser.ActionGoto:
		if errors.Is(err, browser.ErrTimeout) {
			return FailureTimeout
		}
		return FailurePrecondition
	default:
		return FailureLocator
	}
}

// effective resolves the expectation's own locator (or the step's) and
// its expected value.
func (x *execution) effective(exp *parser.Expectation, stepLocator string) *parser.Expectation {
	e := *exp
	e.Locator = x.resolver.Resolve(exp.Locator)
	if e.Locator == "" {
		e.Locator = stepLocator
	}
	e.Expected = x.resolver.ResolveValue(exp.Expected)
	return &e
}

// expect evaluates exp until it holds or its timeout elapses; with Once it
// is evaluated a single time.
func (x *execution) expect(exp *parser.Expectation, stepLocator string) (*assertions.Result, FailureKind) {
	e := x.effective(exp, stepLocator)

	timeout := e.Timeout
	if timeout <= 0 {
		timeout = x.config.ExpectTimeout
	}

	var res *assertions.Result
	check := func() bool {
		res = x.evaluator.Evaluate(e)
		return res.Passed
	}
	if e.Once {
		check()
	} else {
		_ = poll(x.ctx, timeout, ExpectInterval, check)
	}

	if res.Passed {
		return res, FailureNone
	}
	return res, x.classifyExpectation(e, res)
}

func (x *execution) classifyExpectation(e *parser.Expectation, res *assertions.Result) FailureKind {
	if x.ctx.Err() != nil {
		return FailureTimeout
	}
	if res.Err != nil && assertions.IsObservationError(res.Err) {
		return FailureLocator
	}
	// an element that never appeared is a locator failure, not a wrong value
	if !e.Property.PageLevel() && e.Property.Kind != parser.PropCount {
		if n, err := x.page.Locator(e.Locator).Count(); err == nil && n == 0 {
			return FailureLocator
		}
	}
	return FailureAssertion
}

// skipUnless evaluates the conditions once each, or polls those with an
// explicit timeout. It returns the reason when a condition does not hold.
func (x *execution) skipUnless(conditions []*parser.Expectation) (string, bool) {
	for _, c := range conditions {
		e := x.effective(c, "")
		var res *assertions.Result
		check := func() bool {
			res = x.evaluator.Evaluate(e)
			return res.Passed
		}
		if e.Timeout > 0 && !e.Once {
			_ = poll(x.ctx, e.Timeout, ExpectInterval, check)
		} else {
			check()
		}
		if !res.Passed {
			return fmt.Sprintf("condition not met: %s %s %s (got %s)",
				res.Subject, res.Operator, formatValue(res.Expected), formatValue(res.Actual)), false
		}
	}
	return "", true
}

func describeFailure(res *assertions.Result) error {
	if res.Err != nil {
		return fmt.Errorf("%s: %w", res.Subject, res.Err)
	}
	if res.Expected == nil {
		return fmt.Errorf("%s %s: %s", res.Subject, res.Operator, res.Message)
	}
	return fmt.Errorf("%s %s %s: %s", res.Subject, res.Operator, formatValue(res.Expected), res.Message)
}

func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "nothing"
	case string:
		return fmt.Sprintf("%q", val)
	default:
		return fmt.Sprintf("%v", val)
	}
}
