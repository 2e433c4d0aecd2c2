// Package history embeds the conversation history scenario set, the suite
// `pagespec run` executes when no scenario files are given.
package history

import (
	_ "embed"

	"github.com/abdul-hamid-achik/pagespec/packages/core/parser"
)

// FileName is the suite path reported for the embedded scenarios.
const FileName = "history.pagespec.yaml"

//go:embed history.pagespec.yaml
var source string

// Source returns the embedded scenario file, e.g. for `pagespec init`.
func Source() string {
	return source
}

// Suite parses the embedded scenarios.
func Suite() (*parser.Suite, error) {
	return parser.Parse(source, FileName)
}
