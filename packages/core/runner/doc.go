// Package runner executes pagespec scenario suites against a browser.
//
// Each scenario attempt gets a fresh browser session and runs the suite's
// before_each steps, then its own steps strictly in order. Scenarios of a
// suite run on a bounded pool of workers. A failed scenario is retried from
// the start; a pass after a failure is reported as flaky.
//
// Failures are classified as precondition, locator, assertion or timeout
// failures (see FailureKind) and carry the failing step in a *StepError.
// Screenshots, videos and traces are kept according to the artifact policies.
package runner
