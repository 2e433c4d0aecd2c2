package env

import (
	"os"
	"strings"
)

// VarPrefix marks environment variables that override suite variables:
// PAGESPEC_VAR_search=foo sets {{search}}.
const VarPrefix = "PAGESPEC_VAR_"

// MergeVariables merges sources left to right; later sources win.
func MergeVariables(sources ...map[string]any) map[string]any {
	result := make(map[string]any)
	for _, src := range sources {
		for k, v := range src {
			result[k] = v
		}
	}
	return result
}

// FromStrings widens a string map for MergeVariables.
func FromStrings(m map[string]string) map[string]any {
	result := make(map[string]any, len(m))
	for k, v := range m {
		result[k] = v
	}
	return result
}

// LoadSystemEnv returns the process environment. With a prefix only the
// matching variables are returned, keyed without the prefix.
func LoadSystemEnv(prefix string) map[string]any {
	result := make(map[string]any)
	for _, e := range os.Environ() {
		key, value, ok := strings.Cut(e, "=")
		if !ok {
			continue
		}
		if prefix == "" {
			result[key] = value
			continue
		}
		if name, found := strings.CutPrefix(key, prefix); found && name != "" {
			result[name] = value
		}
	}
	return result
}
