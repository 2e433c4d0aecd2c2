package env

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/abdul-hamid-achik/pagespec/packages/builtin"
)

func TestResolverHasUnresolvedVariables(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		variables map[string]any
		expected  bool
	}{
		{
			name:      "no variables",
			input:     "hello world",
			variables: nil,
			expected:  false,
		},
		{
			name:      "resolved variable",
			input:     "{{foo}}",
			variables: map[string]any{"foo": "bar"},
			expected:  false,
		},
		{
			name:      "unresolved variable",
			input:     "{{foo}}",
			variables: nil,
			expected:  true,
		},
		{
			name:      "mixed resolved and unresolved",
			input:     "{{foo}} and {{bar}}",
			variables: map[string]any{"foo": "hello"},
			expected:  true,
		},
		{
			name:      "all resolved",
			input:     "{{foo}} and {{bar}}",
			variables: map[string]any{"foo": "hello", "bar": "world"},
			expected:  false,
		},
		{
			name:      "functions and env vars are not variables",
			input:     "{{uuid()}} {{$HOME}}",
			variables: nil,
			expected:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResolver()
			if tt.variables != nil {
				r.SetVariables(tt.variables)
			}

			got := r.HasUnresolvedVariables(tt.input)
			if got != tt.expected {
				t.Errorf("HasUnresolvedVariables(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestResolverGetUnresolvedVariables(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		variables map[string]any
		expected  []string
	}{
		{
			name:      "no variables",
			input:     "hello world",
			variables: nil,
			expected:  nil,
		},
		{
			name:      "resolved variable",
			input:     "{{foo}}",
			variables: map[string]any{"foo": "bar"},
			expected:  nil,
		},
		{
			name:      "single unresolved variable",
			input:     "{{foo}}",
			variables: nil,
			expected:  []string{"foo"},
		},
		{
			name:      "multiple unresolved variables",
			input:     "{{foo}} and {{bar}}",
			variables: nil,
			expected:  []string{"foo", "bar"},
		},
		{
			name:      "mixed resolved and unresolved",
			input:     "{{foo}} and {{bar}} and {{baz}}",
			variables: map[string]any{"bar": "middle"},
			expected:  []string{"foo", "baz"},
		},
		{
			name:      "dotted name",
			input:     "{{console.path}}/history",
			variables: nil,
			expected:  []string{"console.path"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResolver()
			if tt.variables != nil {
				r.SetVariables(tt.variables)
			}

			got := r.GetUnresolvedVariables(tt.input)

			if tt.expected == nil {
				if got != nil {
					t.Errorf("GetUnresolvedVariables(%q) = %v, want nil", tt.input, got)
				}
				return
			}

			if len(got) != len(tt.expected) {
				t.Errorf("GetUnresolvedVariables(%q) returned %d vars, want %d", tt.input, len(got), len(tt.expected))
				return
			}

			for i, v := range tt.expected {
				if got[i] != v {
					t.Errorf("GetUnresolvedVariables(%q)[%d] = %q, want %q", tt.input, i, got[i], v)
				}
			}
		})
	}
}

func TestResolverResolve(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		variables map[string]any
		expected  string
	}{
		{
			name:     "no variables",
			input:    "hello world",
			expected: "hello world",
		},
		{
			name:      "simple variable",
			input:     "hello {{name}}",
			variables: map[string]any{"name": "world"},
			expected:  "hello world",
		},
		{
			name:      "multiple variables",
			input:     "{{greeting}} {{name}}!",
			variables: map[string]any{"greeting": "Hello", "name": "World"},
			expected:  "Hello World!",
		},
		{
			name:      "non-string variable",
			input:     "rows {{rows}}",
			variables: map[string]any{"rows": 0},
			expected:  "rows 0",
		},
		{
			name:      "spaces inside braces",
			input:     "{{ baseURL }}/chat/history",
			variables: map[string]any{"baseURL": "https://admin.example.test"},
			expected:  "https://admin.example.test/chat/history",
		},
		{
			name:     "unknown function stays as-is",
			input:    "{{nope()}}",
			expected: "{{nope()}}",
		},
		{
			name:     "unresolved stays as-is",
			input:    "hello {{unknown}}",
			expected: "hello {{unknown}}",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResolver()
			if tt.variables != nil {
				r.SetVariables(tt.variables)
			}
			got := r.Resolve(tt.input)
			if got != tt.expected {
				t.Errorf("Resolve(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestResolverEnvAndFunctions(t *testing.T) {
	t.Setenv("PAGESPEC_RESOLVER_USER", "admin")

	r := NewResolverWithRegistry(builtin.NewRegistry(builtin.WithClock(func() time.Time {
		return time.Date(2023, 9, 1, 0, 0, 0, 0, time.UTC)
	})))

	if got := r.Resolve("{{$PAGESPEC_RESOLVER_USER}}"); got != "admin" {
		t.Errorf("env lookup = %q", got)
	}
	if got := r.Resolve(`{{date("02.01.2006")}}`); got != "01.09.2023" {
		t.Errorf("date() = %q", got)
	}
	if got := r.Resolve("{{$PAGESPEC_RESOLVER_UNSET}}"); got != "{{$PAGESPEC_RESOLVER_UNSET}}" {
		t.Errorf("unset env var should stay as-is, got %q", got)
	}
}

func TestResolverWarnings(t *testing.T) {
	var warnings []string
	r := NewResolver()
	r.SetWarnFunc(func(format string, args ...any) {
		warnings = append(warnings, fmt.Sprintf(format, args...))
	})

	r.Resolve("{{missing}} {{random(x, 1)}}")
	if len(warnings) != 2 {
		t.Fatalf("got %d warnings, want 2: %v", len(warnings), warnings)
	}
	if !strings.Contains(warnings[0], "unresolved variable: missing") {
		t.Errorf("unexpected warning %q", warnings[0])
	}
	if !strings.Contains(warnings[1], "random(x, 1)") {
		t.Errorf("unexpected warning %q", warnings[1])
	}
}

func TestResolverResolveValue(t *testing.T) {
	r := NewResolver()
	r.SetVariable("mode", "auto")

	got := r.ResolveValue([]any{"{{mode}}", "scroll", 3})
	list, ok := got.([]any)
	if !ok || len(list) != 3 {
		t.Fatalf("ResolveValue() = %#v", got)
	}
	if list[0] != "auto" || list[1] != "scroll" || list[2] != 3 {
		t.Errorf("ResolveValue() = %#v", list)
	}
	if r.ResolveValue(true) != true {
		t.Error("non-string values must pass through")
	}
}

func TestResolverClone(t *testing.T) {
	r := NewResolver()
	r.SetVariable("a", "1")

	clone := r.Clone()
	clone.SetVariable("a", "2")
	clone.SetVariable("b", "3")

	if v, _ := r.GetVariable("a"); v != "1" {
		t.Errorf("original changed through clone: %v", v)
	}
	if r.HasVariable("b") {
		t.Error("clone variable leaked into original")
	}
	if got := clone.Resolve("{{a}}{{b}}"); got != "23" {
		t.Errorf("clone.Resolve() = %q", got)
	}
}

func TestLoadSystemEnvPrefix(t *testing.T) {
	t.Setenv(VarPrefix+"search", "zzz")

	vars := LoadSystemEnv(VarPrefix)
	if vars["search"] != "zzz" {
		t.Errorf("LoadSystemEnv()[search] = %v", vars["search"])
	}

	merged := MergeVariables(FromStrings(map[string]string{"search": "suite", "other": "x"}), vars)
	if merged["search"] != "zzz" || merged["other"] != "x" {
		t.Errorf("MergeVariables() = %v", merged)
	}
}
