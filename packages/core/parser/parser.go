package parser

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// FileExtensions are the suffixes recognised as scenario files.
var FileExtensions = []string{".pagespec.yaml", ".pagespec.yml"}

// IsScenarioFile reports whether path looks like a scenario file.
func IsScenarioFile(path string) bool {
	base := filepath.Base(path)
	for _, ext := range FileExtensions {
		if strings.HasSuffix(base, ext) {
			return true
		}
	}
	return false
}

func ParseFile(path string) (*Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario file: %w", err)
	}
	return Parse(string(data), path)
}

// Parse decodes scenario file content. filename is used for error positions
// and as the suite path.
func Parse(input, filename string) (*Suite, error) {
	var doc yaml.Node
	dec := yaml.NewDecoder(strings.NewReader(input))
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &ParseError{File: filename, Line: 1, Column: 1, Message: "empty scenario file"}
		}
		return nil, &ParseError{File: filename, Line: 1, Column: 1, Message: err.Error()}
	}

	p := &parser{file: filename}
	suite, err := p.suite(doc.Content[0])
	if err != nil {
		return nil, err
	}
	suite.Path = filename
	if err := p.validate(suite); err != nil {
		return nil, err
	}
	return suite, nil
}

type parser struct {
	file string
}

func (p *parser) errorf(n *yaml.Node, format string, args ...any) *ParseError {
	return &ParseError{File: p.file, Line: n.Line, Column: n.Column, Message: fmt.Sprintf(format, args...)}
}

// fields walks a mapping node, rejecting keys outside allowed.
func (p *parser) fields(n *yaml.Node, allowed ...string) (map[string]*yaml.Node, error) {
	if n.Kind != yaml.MappingNode {
		return nil, p.errorf(n, "expected a mapping")
	}
	out := make(map[string]*yaml.Node, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		key, val := n.Content[i], n.Content[i+1]
		known := false
		for _, a := range allowed {
			if key.Value == a {
				known = true
				break
			}
		}
		if !known {
			return nil, p.errorf(key, "unknown field %q", key.Value)
		}
		if _, dup := out[key.Value]; dup {
			return nil, p.errorf(key, "duplicate field %q", key.Value)
		}
		out[key.Value] = val
	}
	return out, nil
}

func (p *parser) str(n *yaml.Node) (string, error) {
	if n == nil {
		return "", nil
	}
	if n.Kind != yaml.ScalarNode {
		return "", p.errorf(n, "expected a string")
	}
	return n.Value, nil
}

func (p *parser) strList(n *yaml.Node) ([]string, error) {
	if n == nil {
		return nil, nil
	}
	if n.Kind == yaml.ScalarNode {
		return []string{n.Value}, nil
	}
	if n.Kind != yaml.SequenceNode {
		return nil, p.errorf(n, "expected a list of strings")
	}
	out := make([]string, 0, len(n.Content))
	for _, item := range n.Content {
		s, err := p.str(item)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func (p *parser) duration(n *yaml.Node) (time.Duration, error) {
	if n == nil {
		return 0, nil
	}
	if n.Kind != yaml.ScalarNode {
		return 0, p.errorf(n, "expected a duration")
	}
	// bare integers are milliseconds
	if ms, err := strconv.Atoi(n.Value); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	d, err := time.ParseDuration(n.Value)
	if err != nil {
		return 0, p.errorf(n, "invalid duration %q (use 500ms, 5s, 1m)", n.Value)
	}
	return d, nil
}

func (p *parser) boolean(n *yaml.Node) (bool, error) {
	if n == nil {
		return false, nil
	}
	var b bool
	if err := n.Decode(&b); err != nil {
		return false, p.errorf(n, "expected true or false")
	}
	return b, nil
}

func (p *parser) suite(n *yaml.Node) (*Suite, error) {
	f, err := p.fields(n, "name", "base_url", "tags", "variables", "setup", "teardown", "before_each", "scenarios")
	if err != nil {
		return nil, err
	}
	s := &Suite{Variables: map[string]string{}}
	if s.Name, err = p.str(f["name"]); err != nil {
		return nil, err
	}
	if s.BaseURL, err = p.str(f["base_url"]); err != nil {
		return nil, err
	}
	if s.Tags, err = p.strList(f["tags"]); err != nil {
		return nil, err
	}
	if s.Setup, err = p.strList(f["setup"]); err != nil {
		return nil, err
	}
	if s.Teardown, err = p.strList(f["teardown"]); err != nil {
		return nil, err
	}
	if v := f["variables"]; v != nil {
		if err := v.Decode(&s.Variables); err != nil {
			return nil, p.errorf(v, "variables must map names to strings")
		}
	}
	if s.BeforeEach, err = p.steps(f["before_each"]); err != nil {
		return nil, err
	}
	sc := f["scenarios"]
	if sc == nil {
		return nil, p.errorf(n, "suite has no scenarios")
	}
	if sc.Kind != yaml.SequenceNode {
		return nil, p.errorf(sc, "scenarios must be a list")
	}
	for _, item := range sc.Content {
		scenario, err := p.scenario(item)
		if err != nil {
			return nil, err
		}
		s.Scenarios = append(s.Scenarios, scenario)
	}
	return s, nil
}

func (p *parser) scenario(n *yaml.Node) (*Scenario, error) {
	f, err := p.fields(n, "name", "description", "tags", "only", "skip", "skip_unless", "timeout", "retries", "steps")
	if err != nil {
		return nil, err
	}
	sc := &Scenario{Line: n.Line}
	if sc.Name, err = p.str(f["name"]); err != nil {
		return nil, err
	}
	if sc.Description, err = p.str(f["description"]); err != nil {
		return nil, err
	}
	if sc.Tags, err = p.strList(f["tags"]); err != nil {
		return nil, err
	}
	if sc.Only, err = p.boolean(f["only"]); err != nil {
		return nil, err
	}
	if sc.Skip, err = p.str(f["skip"]); err != nil {
		return nil, err
	}
	if sc.Timeout, err = p.duration(f["timeout"]); err != nil {
		return nil, err
	}
	if r := f["retries"]; r != nil {
		var retries int
		if err := r.Decode(&retries); err != nil || retries < 0 {
			return nil, p.errorf(r, "retries must be a non-negative integer")
		}
		sc.Retries = &retries
	}
	if su := f["skip_unless"]; su != nil {
		if sc.SkipUnless, err = p.expectations(su); err != nil {
			return nil, err
		}
	}
	if sc.Steps, err = p.steps(f["steps"]); err != nil {
		return nil, err
	}
	return sc, nil
}

func (p *parser) steps(n *yaml.Node) ([]*Step, error) {
	if n == nil {
		return nil, nil
	}
	if n.Kind != yaml.SequenceNode {
		return nil, p.errorf(n, "steps must be a list")
	}
	out := make([]*Step, 0, len(n.Content))
	for _, item := range n.Content {
		st, err := p.step(item)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, nil
}

func (p *parser) step(n *yaml.Node) (*Step, error) {
	f, err := p.fields(n, "name", "locator", "action", "value", "click_count", "state", "timeout", "expect")
	if err != nil {
		return nil, err
	}
	st := &Step{Line: n.Line}
	if st.Name, err = p.str(f["name"]); err != nil {
		return nil, err
	}
	if st.Locator, err = p.str(f["locator"]); err != nil {
		return nil, err
	}
	actionName, err := p.str(f["action"])
	if err != nil {
		return nil, err
	}
	action, ok := parseAction(actionName)
	if !ok {
		return nil, p.errorf(f["action"], "unknown action %q", actionName)
	}
	st.Action = action
	if st.Value, err = p.str(f["value"]); err != nil {
		return nil, err
	}
	if cc := f["click_count"]; cc != nil {
		if err := cc.Decode(&st.ClickCount); err != nil || st.ClickCount < 1 {
			return nil, p.errorf(cc, "click_count must be a positive integer")
		}
	}
	state, err := p.str(f["state"])
	if err != nil {
		return nil, err
	}
	st.State = ElementState(state)
	if st.Timeout, err = p.duration(f["timeout"]); err != nil {
		return nil, err
	}
	if e := f["expect"]; e != nil {
		if st.Expect, err = p.expectations(e); err != nil {
			return nil, err
		}
	}

	switch st.Action {
	case ActionFill:
		if f["value"] == nil {
			return nil, p.errorf(n, "fill step needs a value")
		}
	case ActionPause:
		if st.Value != "" {
			if st.Timeout, err = p.duration(f["value"]); err != nil {
				return nil, err
			}
			st.Value = ""
		}
		if st.Timeout <= 0 {
			return nil, p.errorf(n, "pause needs a positive duration")
		}
	case ActionWaitLoad:
		if st.State == "" {
			st.State = StateNetworkIdle
		}
		if !st.State.isLoadState() {
			return nil, p.errorf(f["state"], "wait_load state must be load, domcontentloaded or networkidle")
		}
	case ActionWaitFor:
		if st.State == "" {
			st.State = StateVisible
		}
		if !st.State.isElementState() {
			return nil, p.errorf(f["state"], "wait_for state must be visible, hidden, attached or detached")
		}
	case ActionClick:
		if st.ClickCount == 0 {
			st.ClickCount = 1
		}
	}
	return st, nil
}

func (p *parser) expectations(n *yaml.Node) ([]*Expectation, error) {
	if n.Kind == yaml.MappingNode {
		e, err := p.expectation(n)
		if err != nil {
			return nil, err
		}
		return []*Expectation{e}, nil
	}
	if n.Kind != yaml.SequenceNode {
		return nil, p.errorf(n, "expect must be a mapping or a list")
	}
	out := make([]*Expectation, 0, len(n.Content))
	for _, item := range n.Content {
		e, err := p.expectation(item)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func (p *parser) expectation(n *yaml.Node) (*Expectation, error) {
	f, err := p.fields(n, "locator", "property", "op", "value", "timeout", "once")
	if err != nil {
		return nil, err
	}
	e := &Expectation{Line: n.Line, Operator: OpEquals}
	if e.Locator, err = p.str(f["locator"]); err != nil {
		return nil, err
	}
	propNode := f["property"]
	if propNode == nil {
		return nil, p.errorf(n, "expectation needs a property")
	}
	prop, err := p.str(propNode)
	if err != nil {
		return nil, err
	}
	if e.Property, err = parseProperty(prop); err != nil {
		return nil, p.errorf(propNode, "%v", err)
	}
	if opNode := f["op"]; opNode != nil {
		op, ok := ParseOperator(opNode.Value)
		if !ok {
			return nil, p.errorf(opNode, "unknown operator %q", opNode.Value)
		}
		e.Operator = op
	}
	if v := f["value"]; v != nil {
		if err := v.Decode(&e.Expected); err != nil {
			return nil, p.errorf(v, "invalid expected value: %v", err)
		}
	} else if e.Operator.NeedsValue() {
		return nil, p.errorf(n, "operator %s needs a value", e.Operator)
	}
	if e.Timeout, err = p.duration(f["timeout"]); err != nil {
		return nil, err
	}
	if e.Once, err = p.boolean(f["once"]); err != nil {
		return nil, err
	}
	if e.Operator == OpIn || e.Operator == OpNotIn {
		if _, ok := e.Expected.([]any); !ok {
			return nil, p.errorf(n, "operator %s needs a list value", e.Operator)
		}
	}
	return e, nil
}

func (p *parser) validate(s *Suite) error {
	seen := make(map[string]int)
	for _, st := range s.BeforeEach {
		if err := p.validateStep(st); err != nil {
			return err
		}
	}
	for _, sc := range s.Scenarios {
		if strings.TrimSpace(sc.Name) == "" {
			return &ParseError{File: p.file, Line: sc.Line, Column: 1, Message: "scenario has no name"}
		}
		if prev, dup := seen[sc.Name]; dup {
			return &ParseError{File: p.file, Line: sc.Line, Column: 1,
				Message: fmt.Sprintf("duplicate scenario name %q (first defined on line %d)", sc.Name, prev)}
		}
		seen[sc.Name] = sc.Line
		if len(sc.Steps) == 0 && sc.Skip == "" {
			return &ParseError{File: p.file, Line: sc.Line, Column: 1,
				Message: fmt.Sprintf("scenario %q has no steps", sc.Name)}
		}
		for _, e := range sc.SkipUnless {
			if err := p.validateExpectation(e, ""); err != nil {
				return err
			}
		}
		for _, st := range sc.Steps {
			if err := p.validateStep(st); err != nil {
				return err
			}
		}
	}
	return nil
}

func (p *parser) validateStep(st *Step) error {
	if st.Action.NeedsLocator() && st.Locator == "" {
		return &ParseError{File: p.file, Line: st.Line, Column: 1,
			Message: fmt.Sprintf("%s step needs a locator", st.Action)}
	}
	if st.Action == ActionGoto && st.Value == "" {
		return &ParseError{File: p.file, Line: st.Line, Column: 1, Message: "goto step needs a value"}
	}
	if st.Action == ActionNone && len(st.Expect) == 0 {
		return &ParseError{File: p.file, Line: st.Line, Column: 1, Message: "step has neither an action nor expectations"}
	}
	for _, e := range st.Expect {
		if err := p.validateExpectation(e, st.Locator); err != nil {
			return err
		}
	}
	return nil
}

func (p *parser) validateExpectation(e *Expectation, stepLocator string) error {
	if !e.Property.PageLevel() && e.Locator == "" && stepLocator == "" {
		return &ParseError{File: p.file, Line: e.Line, Column: 1,
			Message: fmt.Sprintf("expectation on %s needs a locator", e.Property)}
	}
	return nil
}
