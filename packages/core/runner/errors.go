package runner

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrOnlyForbidden is returned when a suite carries only markers while
	// ForbidOnly is set, as in CI mode.
	ErrOnlyForbidden = errors.New("only markers are forbidden")
	// ErrSkipped ends an attempt whose skip_unless condition does not hold.
	ErrSkipped = errors.New("scenario skipped")
)

// FailureKind classifies why a scenario failed.
type FailureKind int

const (
	FailureNone FailureKind = iota
	// FailurePrecondition: before_each, the session fixture or the browser
	// session did not reach the expected state.
	FailurePrecondition
	// FailureLocator: the element never appeared or was ambiguous.
	FailureLocator
	// FailureAssertion: the observed value did not match.
	FailureAssertion
	// FailureTimeout: a bounded wait or the scenario deadline elapsed.
	FailureTimeout
)

func (k FailureKind) String() string {
	switch k {
	case FailureNone:
		return ""
	case FailurePrecondition:
		return "precondition"
	case FailureLocator:
		return "locator"
	case FailureAssertion:
		return "assertion"
	case FailureTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// StepError is the failure of one step of an attempt.
type StepError struct {
	Kind  FailureKind
	Step  int // index into the attempt's steps, before_each steps first
	Name  string
	Cause error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s failure in step %d (%s): %v", e.Kind, e.Step+1, e.Name, e.Cause)
}

func (e *StepError) Unwrap() error {
	return e.Cause
}

// KindOf returns the failure kind carried by err, FailureNone if there is none.
func KindOf(err error) FailureKind {
	var se *StepError
	if errors.As(err, &se) {
		return se.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return FailureTimeout
	}
	if err != nil {
		return FailurePrecondition
	}
	return FailureNone
}
