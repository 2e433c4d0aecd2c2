package assertions

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/abdul-hamid-achik/pagespec/packages/browser"
	"github.com/abdul-hamid-achik/pagespec/packages/core/parser"
	"github.com/xeipuuv/gojsonschema"
)

type Result struct {
	Passed   bool
	Message  string
	Expected any
	Actual   any
	Subject  string
	Operator string
	// Err is set when the value could not be observed at all.
	Err error
}

// Evaluator reads page state and compares it against expectations.
type Evaluator struct {
	page    browser.Page
	baseDir string // Base directory for resolving schema file paths
}

// EvaluatorOption is a functional option for configuring an Evaluator.
type EvaluatorOption func(*Evaluator)

// WithBaseDir resolves relative schema paths against dir.
func WithBaseDir(dir string) EvaluatorOption {
	return func(e *Evaluator) {
		e.baseDir = dir
	}
}

func NewEvaluator(page browser.Page, opts ...EvaluatorOption) *Evaluator {
	e := &Evaluator{page: page}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Subject renders the observed property for messages, e.g. "value of #q".
func Subject(exp *parser.Expectation) string {
	if exp.Property.PageLevel() || exp.Locator == "" {
		return exp.Property.String()
	}
	return fmt.Sprintf("%s of %s", exp.Property, exp.Locator)
}

// Evaluate observes exp.Property once and compares it. exp.Locator must
// already be the effective locator and exp.Expected already resolved.
func (e *Evaluator) Evaluate(exp *parser.Expectation) *Result {
	result := &Result{
		Subject:  Subject(exp),
		Operator: exp.Operator.String(),
		Expected: exp.Expected,
	}

	actual, err := e.Observe(exp.Property, exp.Locator)
	if err != nil {
		result.Err = err
		result.Message = err.Error()
		return result
	}
	result.Actual = actual

	passed, msg := e.compare(actual, exp.Operator, exp.Expected)
	result.Passed = passed
	result.Message = msg
	return result
}

// Observe reads one property. Element properties other than visible and
// count fail with browser.ErrNotFound when the locator matches nothing.
func (e *Evaluator) Observe(prop parser.Property, locator string) (any, error) {
	switch prop.Kind {
	case parser.PropURL:
		return e.page.URL(), nil
	case parser.PropTitle:
		return e.page.Title()
	}

	loc := e.page.Locator(locator)
	switch prop.Kind {
	case parser.PropCount:
		return loc.Count()
	case parser.PropVisible:
		return loc.IsVisible()
	}

	n, err := loc.Count()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, fmt.Errorf("%w: %s", browser.ErrNotFound, locator)
	}

	switch prop.Kind {
	case parser.PropValue:
		return loc.InputValue()
	case parser.PropChecked:
		return loc.IsChecked()
	case parser.PropText:
		return loc.TextContent()
	case parser.PropInnerText:
		return loc.InnerText()
	case parser.PropStyle:
		return loc.ComputedStyle(prop.Name)
	case parser.PropAttr:
		return loc.GetAttribute(prop.Name)
	default:
		return nil, fmt.Errorf("unsupported property %s", prop)
	}
}

func (e *Evaluator) compare(actual any, op parser.AssertionOperator, expected any) (bool, string) {
	switch op {
	case parser.OpEquals:
		return e.equals(actual, expected)
	case parser.OpNotEquals:
		passed, _ := e.equals(actual, expected)
		if passed {
			return false, fmt.Sprintf("expected not to equal %v", expected)
		}
		return true, ""
	case parser.OpGreaterThan:
		return e.compareNumeric(actual, expected, ">")
	case parser.OpGreaterOrEqual:
		return e.compareNumeric(actual, expected, ">=")
	case parser.OpLessThan:
		return e.compareNumeric(actual, expected, "<")
	case parser.OpLessOrEqual:
		return e.compareNumeric(actual, expected, "<=")
	case parser.OpContains:
		return e.contains(actual, expected)
	case parser.OpNotContains:
		passed, _ := e.contains(actual, expected)
		if passed {
			return false, fmt.Sprintf("expected not to contain %v", expected)
		}
		return true, ""
	case parser.OpStartsWith:
		return e.startsWith(actual, expected)
	case parser.OpEndsWith:
		return e.endsWith(actual, expected)
	case parser.OpMatches:
		return e.matches(actual, expected)
	case parser.OpIn:
		return e.in(actual, expected)
	case parser.OpNotIn:
		passed, _ := e.in(actual, expected)
		if passed {
			return false, fmt.Sprintf("expected not to be in %v", expected)
		}
		return true, ""
	case parser.OpEmpty:
		return e.empty(actual)
	case parser.OpNotEmpty:
		passed, _ := e.empty(actual)
		if passed {
			return false, "expected a non-empty value"
		}
		return true, ""
	case parser.OpSchema:
		return e.schema(actual, expected)
	default:
		return false, fmt.Sprintf("unknown operator: %v", op)
	}
}

// Compare applies op without reading the page.
func Compare(actual any, op parser.AssertionOperator, expected any) (bool, string) {
	return (&Evaluator{}).compare(actual, op, expected)
}

func (e *Evaluator) equals(actual, expected any) (bool, string) {
	if reflect.DeepEqual(actual, expected) {
		return true, ""
	}

	actualNum, aOk := toFloat64(actual)
	expectedNum, eOk := toFloat64(expected)
	if aOk && eOk && actualNum == expectedNum {
		return true, ""
	}

	actualStr := fmt.Sprintf("%v", actual)
	expectedStr := fmt.Sprintf("%v", expected)
	if actualStr == expectedStr {
		return true, ""
	}

	return false, fmt.Sprintf("expected %q, got %q", expectedStr, actualStr)
}

func (e *Evaluator) compareNumeric(actual, expected any, op string) (bool, string) {
	actualNum, aOk := toFloat64(actual)
	expectedNum, eOk := toFloat64(expected)

	if !aOk || !eOk {
		return false, fmt.Sprintf("cannot compare non-numeric values: %v %s %v", actual, op, expected)
	}

	var passed bool
	switch op {
	case ">":
		passed = actualNum > expectedNum
	case ">=":
		passed = actualNum >= expectedNum
	case "<":
		passed = actualNum < expectedNum
	case "<=":
		passed = actualNum <= expectedNum
	}

	if passed {
		return true, ""
	}
	return false, fmt.Sprintf("expected %v %s %v", actual, op, expected)
}

func (e *Evaluator) contains(actual, expected any) (bool, string) {
	actualStr := fmt.Sprintf("%v", actual)
	expectedStr := fmt.Sprintf("%v", expected)
	if strings.Contains(actualStr, expectedStr) {
		return true, ""
	}
	return false, fmt.Sprintf("expected '%v' to contain '%v'", actual, expected)
}

func (e *Evaluator) startsWith(actual, expected any) (bool, string) {
	actualStr := fmt.Sprintf("%v", actual)
	expectedStr := fmt.Sprintf("%v", expected)
	if strings.HasPrefix(actualStr, expectedStr) {
		return true, ""
	}
	return false, fmt.Sprintf("expected '%v' to start with '%v'", actual, expected)
}

func (e *Evaluator) endsWith(actual, expected any) (bool, string) {
	actualStr := fmt.Sprintf("%v", actual)
	expectedStr := fmt.Sprintf("%v", expected)
	if strings.HasSuffix(actualStr, expectedStr) {
		return true, ""
	}
	return false, fmt.Sprintf("expected '%v' to end with '%v'", actual, expected)
}

func (e *Evaluator) matches(actual, expected any) (bool, string) {
	actualStr := fmt.Sprintf("%v", actual)
	pattern := fmt.Sprintf("%v", expected)

	pattern = strings.TrimPrefix(pattern, "/")
	pattern = strings.TrimSuffix(pattern, "/")

	re, err := regexp.Compile(pattern)
	if err != nil {
		return false, fmt.Sprintf("invalid regex pattern: %v", err)
	}

	if re.MatchString(actualStr) {
		return true, ""
	}
	return false, fmt.Sprintf("expected '%v' to match /%v/", actual, pattern)
}

func (e *Evaluator) in(actual, expected any) (bool, string) {
	arr, ok := expected.([]any)
	if !ok {
		return false, fmt.Sprintf("expected array for 'in' operator, got %T", expected)
	}

	for _, item := range arr {
		if passed, _ := e.equals(actual, item); passed {
			return true, ""
		}
	}
	return false, fmt.Sprintf("expected %v to be in %v", actual, expected)
}

func (e *Evaluator) empty(actual any) (bool, string) {
	if actual == nil {
		return true, ""
	}
	if s, ok := actual.(string); ok {
		if s == "" {
			return true, ""
		}
		return false, fmt.Sprintf("expected empty value, got %q", s)
	}
	if n := computeLength(actual); n == 0 {
		return true, ""
	}
	return false, fmt.Sprintf("expected empty value, got %v", actual)
}

// computeLength returns the length of a value, or -1 if length cannot be computed
func computeLength(actual any) int {
	switch v := actual.(type) {
	case string:
		return len(v)
	case []any:
		return len(v)
	case map[string]any:
		return len(v)
	default:
		rv := reflect.ValueOf(actual)
		switch rv.Kind() {
		case reflect.Slice, reflect.Array, reflect.Map, reflect.String:
			return rv.Len()
		default:
			return -1
		}
	}
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(n), 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

// validatePathWithinBase checks that the resolved path stays within the base directory
func validatePathWithinBase(path, baseDir string) error {
	if baseDir == "" {
		return nil
	}

	cleanBase, err := filepath.Abs(baseDir)
	if err != nil {
		return fmt.Errorf("failed to resolve base directory: %v", err)
	}

	cleanPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %v", err)
	}

	if !strings.HasPrefix(cleanPath, cleanBase+string(filepath.Separator)) && cleanPath != cleanBase {
		return fmt.Errorf("path traversal detected: %s is outside allowed directory %s", path, baseDir)
	}

	return nil
}

// schemaLoader accepts an inline schema (a YAML mapping) or a schema file path.
func (e *Evaluator) schemaLoader(expected any) (gojsonschema.JSONLoader, error) {
	if m, ok := expected.(map[string]any); ok {
		return gojsonschema.NewGoLoader(m), nil
	}

	schemaPath := fmt.Sprintf("%v", expected)
	if !filepath.IsAbs(schemaPath) && e.baseDir != "" {
		schemaPath = filepath.Join(e.baseDir, schemaPath)
	}
	if err := validatePathWithinBase(schemaPath, e.baseDir); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(schemaPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file: %w", err)
	}
	return gojsonschema.NewBytesLoader(data), nil
}

// schema validates the observed value. Strings holding JSON, such as a
// data-* attribute, are decoded first.
func (e *Evaluator) schema(actual, expected any) (bool, string) {
	loader, err := e.schemaLoader(expected)
	if err != nil {
		return false, err.Error()
	}

	var document gojsonschema.JSONLoader
	if s, ok := actual.(string); ok && json.Valid([]byte(s)) {
		document = gojsonschema.NewStringLoader(s)
	} else {
		data, err := json.Marshal(actual)
		if err != nil {
			return false, fmt.Sprintf("failed to marshal actual value: %v", err)
		}
		document = gojsonschema.NewBytesLoader(data)
	}

	result, err := gojsonschema.Validate(loader, document)
	if err != nil {
		return false, fmt.Sprintf("schema validation error: %v", err)
	}
	if result.Valid() {
		return true, ""
	}

	var problems []string
	for _, desc := range result.Errors() {
		problems = append(problems, desc.String())
	}
	return false, fmt.Sprintf("schema validation failed: %s", strings.Join(problems, "; "))
}

// IsObservationError reports whether err means the element was absent or
// ambiguous rather than holding a wrong value.
func IsObservationError(err error) bool {
	return errors.Is(err, browser.ErrNotFound) || errors.Is(err, browser.ErrStrictMode) || errors.Is(err, browser.ErrTimeout)
}
