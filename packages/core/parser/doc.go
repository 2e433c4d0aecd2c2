// Package parser loads pagespec scenario files.
//
// A scenario file is YAML named *.pagespec.yaml. It holds one suite: shared
// before_each steps that establish the precondition, followed by independent
// scenarios. Each step optionally performs one action on a locator and then
// checks a list of expectations against the page.
//
// Unknown keys, unknown actions and malformed durations are rejected with a
// *ParseError pointing at the offending line and column.
package parser
