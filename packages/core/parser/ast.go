package parser

import (
	"fmt"
	"strings"
	"time"
)

// Suite is one scenario file: a shared precondition plus independent scenarios.
type Suite struct {
	Name       string
	Path       string
	BaseURL    string
	Tags       []string
	Variables  map[string]string
	Setup      []string
	Teardown   []string
	BeforeEach []*Step
	Scenarios  []*Scenario
}

// HasOnly reports whether any scenario carries an only marker.
func (s *Suite) HasOnly() bool {
	for _, sc := range s.Scenarios {
		if sc.Only {
			return true
		}
	}
	return false
}

type Scenario struct {
	Name        string
	Description string
	Tags        []string
	Only        bool
	Skip        string
	SkipUnless  []*Expectation
	Timeout     time.Duration
	Retries     *int
	Steps       []*Step
	Line        int
}

type Step struct {
	Name       string
	Locator    string
	Action     Action
	Value      string
	ClickCount int
	State      ElementState
	Timeout    time.Duration
	Expect     []*Expectation
	Line       int
}

// Describe returns a one-line summary used by step reporters.
func (s *Step) Describe() string {
	if s.Name != "" {
		return s.Name
	}
	switch s.Action {
	case ActionNone:
		if s.Locator != "" {
			return "expect " + s.Locator
		}
		return "expect page"
	case ActionGoto:
		return "goto " + s.Value
	case ActionFill:
		return fmt.Sprintf("fill %s with %q", s.Locator, s.Value)
	case ActionPause:
		return "pause " + s.Timeout.String()
	case ActionWaitLoad:
		return "wait for " + string(s.State)
	case ActionWaitFor:
		return fmt.Sprintf("wait for %s to be %s", s.Locator, s.State)
	default:
		return s.Action.String() + " " + s.Locator
	}
}

type Action int

const (
	ActionNone Action = iota
	ActionGoto
	ActionClick
	ActionFill
	ActionCheck
	ActionUncheck
	ActionBlur
	ActionWaitFor
	ActionWaitLoad
	ActionPause
)

var actionNames = map[Action]string{
	ActionNone:     "none",
	ActionGoto:     "goto",
	ActionClick:    "click",
	ActionFill:     "fill",
	ActionCheck:    "check",
	ActionUncheck:  "uncheck",
	ActionBlur:     "blur",
	ActionWaitFor:  "wait_for",
	ActionWaitLoad: "wait_load",
	ActionPause:    "pause",
}

func (a Action) String() string {
	if name, ok := actionNames[a]; ok {
		return name
	}
	return "unknown"
}

// NeedsLocator reports whether the action operates on an element.
func (a Action) NeedsLocator() bool {
	switch a {
	case ActionClick, ActionFill, ActionCheck, ActionUncheck, ActionBlur, ActionWaitFor:
		return true
	}
	return false
}

func parseAction(s string) (Action, bool) {
	if s == "" {
		return ActionNone, true
	}
	for a, name := range actionNames {
		if name == s {
			return a, true
		}
	}
	return ActionNone, false
}

// ElementState is the target state of wait_for and wait_load steps.
type ElementState string

const (
	StateVisible  ElementState = "visible"
	StateHidden   ElementState = "hidden"
	StateAttached ElementState = "attached"
	StateDetached ElementState = "detached"

	StateLoad             ElementState = "load"
	StateDOMContentLoaded ElementState = "domcontentloaded"
	StateNetworkIdle      ElementState = "networkidle"
)

func (s ElementState) isElementState() bool {
	switch s {
	case StateVisible, StateHidden, StateAttached, StateDetached:
		return true
	}
	return false
}

func (s ElementState) isLoadState() bool {
	switch s {
	case StateLoad, StateDOMContentLoaded, StateNetworkIdle:
		return true
	}
	return false
}

// Expectation is one observation of the page compared against an expected value.
// Unless Once is set the observation is retried until it holds or Timeout elapses.
type Expectation struct {
	Locator  string
	Property Property
	Operator AssertionOperator
	Expected any
	Timeout  time.Duration
	Once     bool
	Line     int
}

// Property names the DOM (or page) value an expectation reads.
type Property struct {
	Kind PropertyKind
	Name string // css property for style:, attribute for attr:
}

type PropertyKind int

const (
	PropURL PropertyKind = iota
	PropValue
	PropVisible
	PropChecked
	PropText
	PropInnerText
	PropCount
	PropStyle
	PropAttr
	PropTitle
)

func (p Property) String() string {
	switch p.Kind {
	case PropURL:
		return "url"
	case PropValue:
		return "value"
	case PropVisible:
		return "visible"
	case PropChecked:
		return "checked"
	case PropText:
		return "text"
	case PropInnerText:
		return "inner_text"
	case PropCount:
		return "count"
	case PropStyle:
		return "style:" + p.Name
	case PropAttr:
		return "attr:" + p.Name
	case PropTitle:
		return "title"
	default:
		return "unknown"
	}
}

// PageLevel reports whether the property is read from the page rather than an element.
func (p Property) PageLevel() bool {
	return p.Kind == PropURL || p.Kind == PropTitle
}

func parseProperty(s string) (Property, error) {
	s = strings.TrimSpace(s)
	if name, ok := strings.CutPrefix(s, "style:"); ok {
		if name == "" {
			return Property{}, fmt.Errorf("style property needs a css property name")
		}
		return Property{Kind: PropStyle, Name: name}, nil
	}
	if name, ok := strings.CutPrefix(s, "attr:"); ok {
		if name == "" {
			return Property{}, fmt.Errorf("attr property needs an attribute name")
		}
		return Property{Kind: PropAttr, Name: name}, nil
	}
	switch s {
	case "url":
		return Property{Kind: PropURL}, nil
	case "value":
		return Property{Kind: PropValue}, nil
	case "visible":
		return Property{Kind: PropVisible}, nil
	case "checked":
		return Property{Kind: PropChecked}, nil
	case "text":
		return Property{Kind: PropText}, nil
	case "inner_text":
		return Property{Kind: PropInnerText}, nil
	case "count":
		return Property{Kind: PropCount}, nil
	case "title":
		return Property{Kind: PropTitle}, nil
	}
	return Property{}, fmt.Errorf("unknown property %q", s)
}

type AssertionOperator int

const (
	OpEquals AssertionOperator = iota
	OpNotEquals
	OpGreaterThan
	OpGreaterOrEqual
	OpLessThan
	OpLessOrEqual
	OpContains
	OpNotContains
	OpStartsWith
	OpEndsWith
	OpMatches
	OpIn
	OpNotIn
	OpEmpty
	OpNotEmpty
	OpSchema
)

func (op AssertionOperator) String() string {
	switch op {
	case OpEquals:
		return "=="
	case OpNotEquals:
		return "!="
	case OpGreaterThan:
		return ">"
	case OpGreaterOrEqual:
		return ">="
	case OpLessThan:
		return "<"
	case OpLessOrEqual:
		return "<="
	case OpContains:
		return "contains"
	case OpNotContains:
		return "!contains"
	case OpStartsWith:
		return "startsWith"
	case OpEndsWith:
		return "endsWith"
	case OpMatches:
		return "matches"
	case OpIn:
		return "in"
	case OpNotIn:
		return "!in"
	case OpEmpty:
		return "empty"
	case OpNotEmpty:
		return "!empty"
	case OpSchema:
		return "schema"
	default:
		return "unknown"
	}
}

// NeedsValue reports whether the operator compares against an expected value.
func (op AssertionOperator) NeedsValue() bool {
	return op != OpEmpty && op != OpNotEmpty
}

var operatorAliases = map[string]AssertionOperator{
	"==": OpEquals, "equals": OpEquals, "eq": OpEquals,
	"!=": OpNotEquals, "not_equals": OpNotEquals, "ne": OpNotEquals,
	">": OpGreaterThan, "gt": OpGreaterThan,
	">=": OpGreaterOrEqual, "gte": OpGreaterOrEqual,
	"<": OpLessThan, "lt": OpLessThan,
	"<=": OpLessOrEqual, "lte": OpLessOrEqual,
	"contains": OpContains, "!contains": OpNotContains, "not_contains": OpNotContains,
	"startsWith": OpStartsWith, "starts_with": OpStartsWith,
	"endsWith": OpEndsWith, "ends_with": OpEndsWith,
	"matches": OpMatches,
	"in": OpIn, "!in": OpNotIn, "not_in": OpNotIn,
	"empty": OpEmpty, "!empty": OpNotEmpty, "not_empty": OpNotEmpty,
	"schema": OpSchema,
}

// ParseOperator accepts both the symbolic and the word form of an operator.
func ParseOperator(s string) (AssertionOperator, bool) {
	op, ok := operatorAliases[strings.TrimSpace(s)]
	return op, ok
}

type ParseError struct {
	File    string
	Line    int
	Column  int
	Message string
}

func (e *ParseError) Error() string {
	if e.File != "" {
		return fmt.Sprintf("%s:%d:%d: %s", e.File, e.Line, e.Column, e.Message)
	}
	return fmt.Sprintf("line %d: %s", e.Line, e.Message)
}
